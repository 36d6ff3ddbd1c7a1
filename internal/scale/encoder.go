package scale

import (
	"bytes"
	"encoding/binary"
	"math/big"
)

// Encoder writes SCALE values.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded output.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Raw appends b unchanged.
func (e *Encoder) Raw(b []byte) *Encoder {
	e.buf.Write(b)
	return e
}

func (e *Encoder) U8(v uint8) *Encoder {
	e.buf.WriteByte(v)
	return e
}

func (e *Encoder) U16(v uint16) *Encoder {
	e.buf.Write(binary.LittleEndian.AppendUint16(nil, v))
	return e
}

func (e *Encoder) U32(v uint32) *Encoder {
	e.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
	return e
}

func (e *Encoder) U64(v uint64) *Encoder {
	e.buf.Write(binary.LittleEndian.AppendUint64(nil, v))
	return e
}

// U128 writes v as 16 little-endian bytes. v must be non-negative and fit.
func (e *Encoder) U128(v *big.Int) *Encoder {
	e.buf.Write(bigToLE(v, 16))
	return e
}

func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		return e.U8(1)
	}
	return e.U8(0)
}

// Compact writes v in compact form.
func (e *Encoder) Compact(v uint64) *Encoder {
	e.buf.Write(EncodeCompact(v))
	return e
}

// CompactBig writes a non-negative v in compact form.
func (e *Encoder) CompactBig(v *big.Int) *Encoder {
	if v.IsUint64() {
		return e.Compact(v.Uint64())
	}
	n := (v.BitLen() + 7) / 8
	e.buf.WriteByte(byte((n-4)<<2) | 0x03)
	e.buf.Write(bigToLE(v, n))
	return e
}

// ByteSlice writes a compact length followed by b.
func (e *Encoder) ByteSlice(b []byte) *Encoder {
	e.Compact(uint64(len(b)))
	e.buf.Write(b)
	return e
}

func (e *Encoder) String(s string) *Encoder {
	return e.ByteSlice([]byte(s))
}

// Strings writes a Vec<String>.
func (e *Encoder) Strings(ss []string) *Encoder {
	e.Compact(uint64(len(ss)))
	for _, s := range ss {
		e.String(s)
	}
	return e
}

// Option writes an Option discriminant.
func (e *Encoder) Option(some bool) *Encoder {
	return e.Bool(some)
}

// EncodeCompact returns the compact encoding of v.
func EncodeCompact(v uint64) []byte {
	switch {
	case v < 1<<6:
		return []byte{byte(v << 2)}
	case v < 1<<14:
		return binary.LittleEndian.AppendUint16(nil, uint16(v<<2)|0x01)
	case v < 1<<30:
		return binary.LittleEndian.AppendUint32(nil, uint32(v<<2)|0x02)
	}

	le := binary.LittleEndian.AppendUint64(nil, v)
	n := 8
	for n > 4 && le[n-1] == 0 {
		n--
	}
	return append([]byte{byte((n-4)<<2) | 0x03}, le[:n]...)
}

func bigToLE(v *big.Int, size int) []byte {
	be := v.Bytes()
	le := make([]byte, size)
	for i := 0; i < len(be) && i < size; i++ {
		le[i] = be[len(be)-1-i]
	}
	return le
}
