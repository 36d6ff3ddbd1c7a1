package scale

import (
	"fmt"
	"math/big"
)

// maxDepth bounds recursion on hostile or cyclic type graphs.
const maxDepth = 64

// VariantValue is a decoded enum value. Value is nil for unit variants.
type VariantValue struct {
	Name  string
	Value any
}

// DecodeValue decodes one value of type id from d into plain Go values:
//
//	composite with named fields  map[string]any
//	composite with one field     the field's value
//	other composites, tuples     []any
//	variant                      VariantValue
//	u8 sequence or array         []byte
//	other sequences, arrays      []any
//	bool, str, char              bool, string, rune
//	u8..u64, i8..i64             uint64, int64
//	wider integers               *big.Int
//	compact                      uint64 or *big.Int
//	bit sequence                 []byte (raw store words)
func (r *Registry) DecodeValue(d *Decoder, id uint32) (any, error) {
	return r.decode(d, id, 0)
}

func (r *Registry) decode(d *Decoder, id uint32, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: type nesting too deep", ErrInvalid)
	}
	t, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}

	switch t.Def.Kind {
	case KindComposite:
		return r.decodeFields(d, t.Def.Fields, depth)

	case KindVariant:
		idx, err := d.U8()
		if err != nil {
			return nil, err
		}
		v, ok := t.VariantByIndex(idx)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no variant %d", ErrInvalid, t.PathString(), idx)
		}
		val, err := r.decodeFields(d, v.Fields, depth)
		if err != nil {
			return nil, fmt.Errorf("%s::%s: %w", t.PathString(), v.Name, err)
		}
		return VariantValue{Name: v.Name, Value: val}, nil

	case KindSequence:
		n, err := d.CompactLen(0)
		if err != nil {
			return nil, err
		}
		return r.decodeList(d, t.Def.Elem, n, depth)

	case KindArray:
		return r.decodeList(d, t.Def.Elem, int(t.Def.Len), depth)

	case KindTuple:
		if len(t.Def.Tuple) == 0 {
			return nil, nil
		}
		out := make([]any, 0, len(t.Def.Tuple))
		for _, elem := range t.Def.Tuple {
			v, err := r.decode(d, elem, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case KindPrimitive:
		return decodePrimitive(d, t.Def.Primitive)

	case KindCompact:
		v, err := d.Compact()
		if err != nil {
			return nil, err
		}
		if v.IsUint64() {
			return v.Uint64(), nil
		}
		return v, nil

	case KindBitSequence:
		return r.decodeBits(d, t.Def.BitStore)
	}

	return nil, fmt.Errorf("%w: type def kind %d", ErrInvalid, t.Def.Kind)
}

func (r *Registry) decodeFields(d *Decoder, fields []Field, depth int) (any, error) {
	switch {
	case len(fields) == 0:
		return nil, nil
	case len(fields) == 1 && fields[0].Name == "":
		return r.decode(d, fields[0].Type, depth+1)
	case fields[0].Name != "":
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			v, err := r.decode(d, f.Type, depth+1)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			out[f.Name] = v
		}
		return out, nil
	default:
		out := make([]any, 0, len(fields))
		for _, f := range fields {
			v, err := r.decode(d, f.Type, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
}

func (r *Registry) decodeList(d *Decoder, elem uint32, n int, depth int) (any, error) {
	if r.isByte(elem) {
		b, err := d.Read(n)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), b...), nil
	}

	if n > d.Remaining() {
		// Every element takes at least one byte, except zero-sized ones,
		// which no runtime puts in a long list.
		return nil, fmt.Errorf("%w: list of %d exceeds input", ErrShortBuffer, n)
	}
	out := make([]any, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		v, err := r.decode(d, elem, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Registry) isByte(id uint32) bool {
	t, err := r.Lookup(id)
	return err == nil && t.Def.Kind == KindPrimitive && t.Def.Primitive == PrimU8
}

func (r *Registry) decodeBits(d *Decoder, store uint32) (any, error) {
	bits, err := d.CompactU64()
	if err != nil {
		return nil, err
	}
	word := 1
	if t, err := r.Lookup(store); err == nil && t.Def.Kind == KindPrimitive {
		switch t.Def.Primitive {
		case PrimU16:
			word = 2
		case PrimU32:
			word = 4
		case PrimU64:
			word = 8
		}
	}
	wordBits := uint64(word * 8)
	words := (bits + wordBits - 1) / wordBits
	if words*uint64(word) > uint64(d.Remaining()) {
		return nil, fmt.Errorf("%w: bit sequence of %d bits", ErrShortBuffer, bits)
	}
	b, err := d.Read(int(words) * word)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func decodePrimitive(d *Decoder, p Primitive) (any, error) {
	switch p {
	case PrimBool:
		return d.Bool()
	case PrimChar:
		v, err := d.U32()
		return rune(v), err
	case PrimStr:
		return d.String()
	case PrimU8:
		v, err := d.U8()
		return uint64(v), err
	case PrimU16:
		v, err := d.U16()
		return uint64(v), err
	case PrimU32:
		v, err := d.U32()
		return uint64(v), err
	case PrimU64:
		return d.U64()
	case PrimU128:
		return d.UintN(16)
	case PrimU256:
		return d.UintN(32)
	case PrimI8, PrimI16, PrimI32, PrimI64:
		size := map[Primitive]int{PrimI8: 1, PrimI16: 2, PrimI32: 4, PrimI64: 8}[p]
		v, err := d.IntN(size)
		if err != nil {
			return nil, err
		}
		return v.Int64(), nil
	case PrimI128:
		return d.IntN(16)
	case PrimI256:
		return d.IntN(32)
	}
	return nil, fmt.Errorf("%w: primitive %d", ErrInvalid, p)
}

// Skip decodes and discards one value of type id.
func (r *Registry) Skip(d *Decoder, id uint32) error {
	_, err := r.DecodeValue(d, id)
	return err
}

// AsBigInt converts a decoded integer (uint64, int64 or *big.Int) to *big.Int.
func AsBigInt(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case uint64:
		return new(big.Int).SetUint64(n), true
	case int64:
		return big.NewInt(n), true
	case *big.Int:
		return new(big.Int).Set(n), true
	}
	return nil, false
}

// AsUint64 converts a decoded unsigned integer to uint64.
func AsUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case *big.Int:
		if n.IsUint64() {
			return n.Uint64(), true
		}
	}
	return 0, false
}
