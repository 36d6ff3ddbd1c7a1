package scale

import (
	"encoding/binary"
	"fmt"
)

// MetadataMagic is "meta" read as a little-endian u32.
const MetadataMagic uint32 = 0x6174656d

// StorageHasher identifies how a storage map key is hashed.
type StorageHasher uint8

const (
	HasherBlake2_128 StorageHasher = iota
	HasherBlake2_256
	HasherBlake2_128Concat
	HasherTwox128
	HasherTwox256
	HasherTwox64Concat
	HasherIdentity
)

var hasherNames = [...]string{
	"Blake2_128", "Blake2_256", "Blake2_128Concat", "Twox128", "Twox256", "Twox64Concat", "Identity",
}

func (h StorageHasher) String() string {
	if int(h) < len(hasherNames) {
		return hasherNames[h]
	}
	return fmt.Sprintf("StorageHasher(%d)", uint8(h))
}

// StorageEntry describes one storage item of a pallet.
type StorageEntry struct {
	Name string
	// Optional entries return null when absent; Default entries return
	// Default.
	Optional bool
	IsMap    bool
	Hashers  []StorageHasher
	KeyType  uint32
	Value    uint32
	Default  []byte
}

// PalletStorage groups a pallet's storage entries under a prefix.
type PalletStorage struct {
	Prefix  string
	Entries []StorageEntry
}

// Constant is a pallet constant with its encoded value.
type Constant struct {
	Name  string
	Type  uint32
	Value []byte
}

// Pallet is one module of the runtime.
type Pallet struct {
	Name      string
	Index     uint8
	Storage   *PalletStorage
	Calls     *uint32
	Events    *uint32
	Errors    *uint32
	Constants []Constant
}

// SignedExtension is one element of the transaction extra data.
type SignedExtension struct {
	Identifier       string
	Type             uint32
	AdditionalSigned uint32
}

// ExtrinsicInfo describes the extrinsic format. For V14 the address, call,
// signature and extra types are recovered from the UncheckedExtrinsic
// generic parameters.
type ExtrinsicInfo struct {
	Version          uint8
	Type             uint32
	AddressType      *uint32
	CallType         *uint32
	SignatureType    *uint32
	ExtraType        *uint32
	SignedExtensions []SignedExtension
}

// Metadata is the decoded runtime metadata.
type Metadata struct {
	Version   uint8
	Types     *Registry
	Pallets   []Pallet
	Extrinsic ExtrinsicInfo
}

// DecodeMetadata parses prefixed runtime metadata (V14 or V15).
func DecodeMetadata(b []byte) (*Metadata, error) {
	d := NewDecoder(b)

	magic, err := d.U32()
	if err != nil {
		return nil, fmt.Errorf("metadata magic: %w", err)
	}
	if magic != MetadataMagic {
		return nil, fmt.Errorf("%w: metadata magic 0x%08x", ErrInvalid, magic)
	}
	version, err := d.U8()
	if err != nil {
		return nil, err
	}
	if version != 14 && version != 15 {
		return nil, fmt.Errorf("%w: unsupported metadata version %d", ErrInvalid, version)
	}

	md := &Metadata{Version: version}
	if md.Types, err = decodeRegistry(d); err != nil {
		return nil, fmt.Errorf("metadata types: %w", err)
	}
	if md.Pallets, err = decodePallets(d, version); err != nil {
		return nil, fmt.Errorf("metadata pallets: %w", err)
	}
	if md.Extrinsic, err = decodeExtrinsicInfo(d, version, md.Types); err != nil {
		return nil, fmt.Errorf("metadata extrinsic: %w", err)
	}
	// The remaining sections (runtime type, V15 apis, outer enums, custom)
	// are not needed.
	return md, nil
}

// VersionFromMagic peeks at the version byte of prefixed metadata.
func VersionFromMagic(b []byte) (uint8, bool) {
	if len(b) < 5 || binary.LittleEndian.Uint32(b) != MetadataMagic {
		return 0, false
	}
	return b[4], true
}

func decodePallets(d *Decoder, version uint8) ([]Pallet, error) {
	n, err := d.CompactLen(1)
	if err != nil {
		return nil, err
	}
	pallets := make([]Pallet, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		p, err := decodePallet(d, version)
		if err != nil {
			return nil, fmt.Errorf("pallet #%d: %w", i, err)
		}
		pallets = append(pallets, p)
	}
	return pallets, nil
}

func decodePallet(d *Decoder, version uint8) (Pallet, error) {
	var p Pallet
	var err error

	if p.Name, err = d.String(); err != nil {
		return p, err
	}

	hasStorage, err := d.Option()
	if err != nil {
		return p, err
	}
	if hasStorage {
		if p.Storage, err = decodePalletStorage(d); err != nil {
			return p, fmt.Errorf("%s storage: %w", p.Name, err)
		}
	}

	if p.Calls, err = optionalTypeID(d); err != nil {
		return p, err
	}
	if p.Events, err = optionalTypeID(d); err != nil {
		return p, err
	}

	nConst, err := d.CompactLen(1)
	if err != nil {
		return p, err
	}
	for i := 0; i < nConst; i++ {
		var c Constant
		if c.Name, err = d.String(); err != nil {
			return p, err
		}
		if c.Type, err = d.CompactU32(); err != nil {
			return p, err
		}
		if c.Value, err = d.ByteSlice(); err != nil {
			return p, err
		}
		if _, err = d.Strings(); err != nil {
			return p, err
		}
		p.Constants = append(p.Constants, c)
	}

	if p.Errors, err = optionalTypeID(d); err != nil {
		return p, err
	}
	if p.Index, err = d.U8(); err != nil {
		return p, err
	}
	if version >= 15 {
		if _, err = d.Strings(); err != nil {
			return p, err
		}
	}
	return p, nil
}

func decodePalletStorage(d *Decoder) (*PalletStorage, error) {
	s := &PalletStorage{}
	var err error

	if s.Prefix, err = d.String(); err != nil {
		return nil, err
	}
	n, err := d.CompactLen(1)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		var e StorageEntry
		if e.Name, err = d.String(); err != nil {
			return nil, err
		}
		modifier, err := d.U8()
		if err != nil {
			return nil, err
		}
		e.Optional = modifier == 0

		kind, err := d.U8()
		if err != nil {
			return nil, err
		}
		switch kind {
		case 0:
			if e.Value, err = d.CompactU32(); err != nil {
				return nil, err
			}
		case 1:
			e.IsMap = true
			nh, err := d.CompactLen(1)
			if err != nil {
				return nil, err
			}
			for j := 0; j < nh; j++ {
				h, err := d.U8()
				if err != nil {
					return nil, err
				}
				if int(h) >= len(hasherNames) {
					return nil, fmt.Errorf("%w: storage hasher %d", ErrInvalid, h)
				}
				e.Hashers = append(e.Hashers, StorageHasher(h))
			}
			if e.KeyType, err = d.CompactU32(); err != nil {
				return nil, err
			}
			if e.Value, err = d.CompactU32(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: storage entry kind %d", ErrInvalid, kind)
		}

		if e.Default, err = d.ByteSlice(); err != nil {
			return nil, err
		}
		if _, err = d.Strings(); err != nil {
			return nil, err
		}
		s.Entries = append(s.Entries, e)
	}
	return s, nil
}

func decodeExtrinsicInfo(d *Decoder, version uint8, reg *Registry) (ExtrinsicInfo, error) {
	var x ExtrinsicInfo
	var err error

	if version == 14 {
		if x.Type, err = d.CompactU32(); err != nil {
			return x, err
		}
		if x.Version, err = d.U8(); err != nil {
			return x, err
		}
	} else {
		if x.Version, err = d.U8(); err != nil {
			return x, err
		}
		ids := make([]uint32, 4)
		for i := range ids {
			if ids[i], err = d.CompactU32(); err != nil {
				return x, err
			}
		}
		x.AddressType, x.CallType, x.SignatureType, x.ExtraType = &ids[0], &ids[1], &ids[2], &ids[3]
	}

	n, err := d.CompactLen(1)
	if err != nil {
		return x, err
	}
	for i := 0; i < n; i++ {
		var se SignedExtension
		if se.Identifier, err = d.String(); err != nil {
			return x, err
		}
		if se.Type, err = d.CompactU32(); err != nil {
			return x, err
		}
		if se.AdditionalSigned, err = d.CompactU32(); err != nil {
			return x, err
		}
		x.SignedExtensions = append(x.SignedExtensions, se)
	}

	if version == 14 {
		if t, err := reg.Lookup(x.Type); err == nil {
			x.AddressType = paramPtr(t, "Address")
			x.CallType = paramPtr(t, "Call")
			x.SignatureType = paramPtr(t, "Signature")
			x.ExtraType = paramPtr(t, "Extra")
		}
	}
	return x, nil
}

func paramPtr(t *Type, name string) *uint32 {
	if id, ok := t.Param(name); ok {
		return &id
	}
	return nil
}

func optionalTypeID(d *Decoder) (*uint32, error) {
	some, err := d.Option()
	if err != nil || !some {
		return nil, err
	}
	id, err := d.CompactU32()
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Pallet returns the pallet with the given name.
func (m *Metadata) Pallet(name string) (*Pallet, bool) {
	for i := range m.Pallets {
		if m.Pallets[i].Name == name {
			return &m.Pallets[i], true
		}
	}
	return nil, false
}

// PalletByIndex returns the pallet with the given call index.
func (m *Metadata) PalletByIndex(idx uint8) (*Pallet, bool) {
	for i := range m.Pallets {
		if m.Pallets[i].Index == idx {
			return &m.Pallets[i], true
		}
	}
	return nil, false
}

// StorageEntry returns the named storage entry and its pallet prefix.
func (m *Metadata) StorageEntry(pallet, entry string) (*StorageEntry, string, error) {
	p, ok := m.Pallet(pallet)
	if !ok || p.Storage == nil {
		return nil, "", fmt.Errorf("%w: pallet %q has no storage", ErrInvalid, pallet)
	}
	for i := range p.Storage.Entries {
		if p.Storage.Entries[i].Name == entry {
			return &p.Storage.Entries[i], p.Storage.Prefix, nil
		}
	}
	return nil, "", fmt.Errorf("%w: storage %s.%s not found", ErrInvalid, pallet, entry)
}

// Call resolves a (pallet index, call index) pair to the pallet and the call
// variant.
func (m *Metadata) Call(palletIdx, callIdx uint8) (*Pallet, *Variant, error) {
	p, ok := m.PalletByIndex(palletIdx)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no pallet at index %d", ErrInvalid, palletIdx)
	}
	if p.Calls == nil {
		return nil, nil, fmt.Errorf("%w: pallet %s has no calls", ErrInvalid, p.Name)
	}
	t, err := m.Types.Lookup(*p.Calls)
	if err != nil {
		return nil, nil, err
	}
	v, ok := t.VariantByIndex(callIdx)
	if !ok {
		return nil, nil, fmt.Errorf("%w: pallet %s has no call %d", ErrInvalid, p.Name, callIdx)
	}
	return p, v, nil
}
