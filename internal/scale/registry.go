package scale

import (
	"fmt"
	"strings"
)

// TypeDefKind discriminates TypeDef.
type TypeDefKind uint8

const (
	KindComposite TypeDefKind = iota
	KindVariant
	KindSequence
	KindArray
	KindTuple
	KindPrimitive
	KindCompact
	KindBitSequence
)

// Primitive is a scale-info primitive type.
type Primitive uint8

const (
	PrimBool Primitive = iota
	PrimChar
	PrimStr
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimU256
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimI256
)

// Field is a named or positional member of a composite or variant.
type Field struct {
	Name     string // empty for tuple-like members
	Type     uint32
	TypeName string
}

// Variant is one arm of an enum type.
type Variant struct {
	Name   string
	Fields []Field
	Index  uint8
}

// TypeParam is a generic parameter of a type. Type is nil when erased.
type TypeParam struct {
	Name string
	Type *uint32
}

// TypeDef describes the shape of a type. Only the members relevant to
// Kind are set.
type TypeDef struct {
	Kind      TypeDefKind
	Fields    []Field   // composite
	Variants  []Variant // variant
	Elem      uint32    // sequence, array, compact
	Len       uint32    // array
	Tuple     []uint32  // tuple
	Primitive Primitive
	BitStore  uint32 // bit sequence
	BitOrder  uint32
}

// Type is an entry of the portable type registry.
type Type struct {
	ID     uint32
	Path   []string
	Params []TypeParam
	Def    TypeDef
}

// PathString joins Path with "::".
func (t *Type) PathString() string {
	return strings.Join(t.Path, "::")
}

// Param returns the type bound to the named generic parameter.
func (t *Type) Param(name string) (uint32, bool) {
	for _, p := range t.Params {
		if p.Name == name && p.Type != nil {
			return *p.Type, true
		}
	}
	return 0, false
}

// VariantByIndex returns the variant with the given encoded index.
func (t *Type) VariantByIndex(idx uint8) (*Variant, bool) {
	for i := range t.Def.Variants {
		if t.Def.Variants[i].Index == idx {
			return &t.Def.Variants[i], true
		}
	}
	return nil, false
}

// Registry is the portable type registry of a runtime.
type Registry struct {
	types map[uint32]*Type
}

// NewRegistry builds a registry from decoded types.
func NewRegistry(types []Type) *Registry {
	r := &Registry{types: make(map[uint32]*Type, len(types))}
	for i := range types {
		r.types[types[i].ID] = &types[i]
	}
	return r
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	return len(r.types)
}

// Lookup returns the type with the given id.
func (r *Registry) Lookup(id uint32) (*Type, error) {
	t, ok := r.types[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type id %d", ErrInvalid, id)
	}
	return t, nil
}

func decodeRegistry(d *Decoder) (*Registry, error) {
	n, err := d.CompactLen(1)
	if err != nil {
		return nil, fmt.Errorf("type count: %w", err)
	}

	types := make([]Type, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		t, err := decodeType(d)
		if err != nil {
			return nil, fmt.Errorf("type #%d: %w", i, err)
		}
		types = append(types, t)
	}
	return NewRegistry(types), nil
}

func decodeType(d *Decoder) (Type, error) {
	var t Type
	var err error

	if t.ID, err = d.CompactU32(); err != nil {
		return t, err
	}
	if t.Path, err = d.Strings(); err != nil {
		return t, err
	}

	nParams, err := d.CompactLen(1)
	if err != nil {
		return t, err
	}
	for i := 0; i < nParams; i++ {
		var p TypeParam
		if p.Name, err = d.String(); err != nil {
			return t, err
		}
		some, err := d.Option()
		if err != nil {
			return t, err
		}
		if some {
			id, err := d.CompactU32()
			if err != nil {
				return t, err
			}
			p.Type = &id
		}
		t.Params = append(t.Params, p)
	}

	if t.Def, err = decodeTypeDef(d); err != nil {
		return t, err
	}
	if _, err = d.Strings(); err != nil { // docs
		return t, err
	}
	return t, nil
}

func decodeTypeDef(d *Decoder) (TypeDef, error) {
	var def TypeDef

	kind, err := d.U8()
	if err != nil {
		return def, err
	}
	def.Kind = TypeDefKind(kind)

	switch def.Kind {
	case KindComposite:
		def.Fields, err = decodeFields(d)
	case KindVariant:
		def.Variants, err = decodeVariants(d)
	case KindSequence, KindCompact:
		def.Elem, err = d.CompactU32()
	case KindArray:
		if def.Len, err = d.U32(); err == nil {
			def.Elem, err = d.CompactU32()
		}
	case KindTuple:
		var n int
		if n, err = d.CompactLen(1); err == nil {
			for i := 0; i < n && err == nil; i++ {
				var id uint32
				if id, err = d.CompactU32(); err == nil {
					def.Tuple = append(def.Tuple, id)
				}
			}
		}
	case KindPrimitive:
		var p uint8
		if p, err = d.U8(); err == nil {
			if Primitive(p) > PrimI256 {
				err = fmt.Errorf("%w: primitive %d", ErrInvalid, p)
			}
			def.Primitive = Primitive(p)
		}
	case KindBitSequence:
		if def.BitStore, err = d.CompactU32(); err == nil {
			def.BitOrder, err = d.CompactU32()
		}
	default:
		err = fmt.Errorf("%w: type def kind %d", ErrInvalid, kind)
	}
	return def, err
}

func decodeFields(d *Decoder) ([]Field, error) {
	n, err := d.CompactLen(1)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		var f Field
		if f.Name, err = d.OptionString(); err != nil {
			return nil, err
		}
		if f.Type, err = d.CompactU32(); err != nil {
			return nil, err
		}
		if f.TypeName, err = d.OptionString(); err != nil {
			return nil, err
		}
		if _, err = d.Strings(); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func decodeVariants(d *Decoder) ([]Variant, error) {
	n, err := d.CompactLen(1)
	if err != nil {
		return nil, err
	}
	variants := make([]Variant, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		var v Variant
		if v.Name, err = d.String(); err != nil {
			return nil, err
		}
		if v.Fields, err = decodeFields(d); err != nil {
			return nil, err
		}
		if v.Index, err = d.U8(); err != nil {
			return nil, err
		}
		if _, err = d.Strings(); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}
