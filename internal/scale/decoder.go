// Package scale decodes Substrate's SCALE codec, runtime metadata (V14/V15)
// and arbitrary values described by the metadata type registry.
package scale

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"
	"unicode/utf8"
)

var (
	// ErrShortBuffer is returned when the input ends mid-value.
	ErrShortBuffer = errors.New("scale: unexpected end of input")
	// ErrInvalid is returned for well-sized but malformed input.
	ErrInvalid = errors.New("scale: invalid encoding")
)

// maxPrealloc caps slice preallocation driven by untrusted length prefixes.
const maxPrealloc = 4096

// Decoder reads SCALE values from a byte slice.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder returns a decoder positioned at the start of data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int {
	return d.pos
}

// Read returns the next n bytes without copying.
func (d *Decoder) Read(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, d.Remaining())
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) U8() (uint8, error) {
	b, err := d.Read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) U16() (uint16, error) {
	b, err := d.Read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) U32() (uint32, error) {
	b, err := d.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) U64() (uint64, error) {
	b, err := d.Read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// UintN reads an n-byte little-endian unsigned integer.
func (d *Decoder) UintN(n int) (*big.Int, error) {
	b, err := d.Read(n)
	if err != nil {
		return nil, err
	}
	return leToBig(b), nil
}

// U128 reads a 16-byte little-endian unsigned integer.
func (d *Decoder) U128() (*big.Int, error) {
	return d.UintN(16)
}

// IntN reads an n-byte little-endian two's complement integer.
func (d *Decoder) IntN(n int) (*big.Int, error) {
	v, err := d.UintN(n)
	if err != nil {
		return nil, err
	}
	if n > 0 && d.data[d.pos-1]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(n*8)))
	}
	return v, nil
}

func (d *Decoder) Bool() (bool, error) {
	b, err := d.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool byte 0x%02x", ErrInvalid, b)
	}
}

// Compact reads a compact-encoded unsigned integer of any width.
func (d *Decoder) Compact() (*big.Int, error) {
	b0, err := d.U8()
	if err != nil {
		return nil, err
	}

	switch b0 & 0x03 {
	case 0:
		return big.NewInt(int64(b0 >> 2)), nil
	case 1:
		b1, err := d.U8()
		if err != nil {
			return nil, err
		}
		return big.NewInt(int64(uint16(b0)|uint16(b1)<<8) >> 2), nil
	case 2:
		rest, err := d.Read(3)
		if err != nil {
			return nil, err
		}
		v := uint32(b0) | uint32(rest[0])<<8 | uint32(rest[1])<<16 | uint32(rest[2])<<24
		return big.NewInt(int64(v >> 2)), nil
	default:
		n := int(b0>>2) + 4
		b, err := d.Read(n)
		if err != nil {
			return nil, err
		}
		return leToBig(b), nil
	}
}

// CompactU64 reads a compact integer that must fit in 64 bits.
func (d *Decoder) CompactU64() (uint64, error) {
	v, err := d.Compact()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: compact %s overflows u64", ErrInvalid, v)
	}
	return v.Uint64(), nil
}

// CompactLen reads a compact length prefix and checks it against the
// remaining input, assuming each element takes at least minElemSize bytes.
func (d *Decoder) CompactLen(minElemSize int) (int, error) {
	v, err := d.CompactU64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: length %d", ErrInvalid, v)
	}
	n := int(v)
	if minElemSize > 0 && n*minElemSize > d.Remaining() {
		return 0, fmt.Errorf("%w: length %d exceeds input", ErrShortBuffer, n)
	}
	return n, nil
}

// CompactU32 reads a compact integer that must fit in 32 bits, as used for
// type ids in metadata.
func (d *Decoder) CompactU32() (uint32, error) {
	v, err := d.CompactU64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: compact %d overflows u32", ErrInvalid, v)
	}
	return uint32(v), nil
}

// ByteSlice reads a compact length followed by that many bytes.
func (d *Decoder) ByteSlice() ([]byte, error) {
	n, err := d.CompactLen(1)
	if err != nil {
		return nil, err
	}
	return d.Read(n)
}

// String reads a length-prefixed UTF-8 string.
func (d *Decoder) String() (string, error) {
	b, err := d.ByteSlice()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid utf-8 string", ErrInvalid)
	}
	return string(b), nil
}

// Option reads an Option discriminant: false for None, true for Some.
func (d *Decoder) Option() (bool, error) {
	b, err := d.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: option byte 0x%02x", ErrInvalid, b)
	}
}

// OptionString reads an Option<String>.
func (d *Decoder) OptionString() (string, error) {
	some, err := d.Option()
	if err != nil || !some {
		return "", err
	}
	return d.String()
}

// Strings reads a Vec<String>.
func (d *Decoder) Strings() ([]string, error) {
	n, err := d.CompactLen(1)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		s, err := d.String()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func leToBig(le []byte) *big.Int {
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}
