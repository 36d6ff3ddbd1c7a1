package substrate

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/hasher"
	"github.com/fd1az/substrate-explorer/internal/scale"
	"github.com/fd1az/substrate-explorer/internal/ss58"
)

// rpcHeader is a header as rendered by the node's JSON-RPC layer.
type rpcHeader struct {
	ParentHash     string `json:"parentHash"`
	Number         string `json:"number"`
	StateRoot      string `json:"stateRoot"`
	ExtrinsicsRoot string `json:"extrinsicsRoot"`
	Digest         struct {
		Logs []string `json:"logs"`
	} `json:"digest"`
}

// rpcSignedBlock is the chain_getBlock result.
type rpcSignedBlock struct {
	Block struct {
		Header     rpcHeader `json:"header"`
		Extrinsics []string  `json:"extrinsics"`
	} `json:"block"`
}

// toHeader normalises h and computes its hash from the SCALE encoding. The
// hash is only authoritative for headers the node pushes without one.
func (h *rpcHeader) toHeader() (domain.Header, error) {
	var out domain.Header
	var err error

	numHex := strings.TrimPrefix(strings.TrimPrefix(h.Number, "0x"), "0X")
	if out.Number, err = strconv.ParseUint(numHex, 16, 64); err != nil {
		return out, fmt.Errorf("header number %q: %w", h.Number, err)
	}
	if out.ParentHash, err = domain.ParseHash(h.ParentHash); err != nil {
		return out, fmt.Errorf("parent hash: %w", err)
	}
	if out.StateRoot, err = domain.ParseHash(h.StateRoot); err != nil {
		return out, fmt.Errorf("state root: %w", err)
	}
	if out.ExtrinsicsRoot, err = domain.ParseHash(h.ExtrinsicsRoot); err != nil {
		return out, fmt.Errorf("extrinsics root: %w", err)
	}

	number, err := codec.Encode(types.NewUCompactFromUInt(out.Number))
	if err != nil {
		return out, fmt.Errorf("encode number: %w", err)
	}
	logCount, err := codec.Encode(types.NewUCompactFromUInt(uint64(len(h.Digest.Logs))))
	if err != nil {
		return out, fmt.Errorf("encode digest length: %w", err)
	}

	enc := make([]byte, 0, 3*common.HashLength+len(number)+len(logCount)+64*len(h.Digest.Logs))
	enc = append(enc, out.ParentHash[:]...)
	enc = append(enc, number...)
	enc = append(enc, out.StateRoot[:]...)
	enc = append(enc, out.ExtrinsicsRoot[:]...)
	enc = append(enc, logCount...)
	// digest items arrive already SCALE-encoded
	for i, l := range h.Digest.Logs {
		b, err := hexutil.Decode(l)
		if err != nil {
			return out, fmt.Errorf("digest log %d: %w", i, err)
		}
		enc = append(enc, b...)
	}
	out.Hash = hasher.Blake2_256(enc)
	return out, nil
}

const unknownCall = "unknown"

// extrinsicDecoder summarises encoded extrinsics against one runtime's
// metadata.
type extrinsicDecoder struct {
	meta   *scale.Metadata
	prefix uint16
}

// decode never fails: undecodable calls are reported as unknown, and the
// signer falls back to the raw address bytes.
func (x *extrinsicDecoder) decode(index int, encoded []byte) (domain.Extrinsic, error) {
	sum := hasher.Blake2_256(encoded)
	out := domain.Extrinsic{
		Index:   index,
		Method:  unknownCall,
		Section: unknownCall,
		Hash:    hexutil.Encode(sum[:]),
	}

	d := scale.NewDecoder(encoded)
	n, err := d.CompactLen(0)
	if err != nil {
		return out, fmt.Errorf("length prefix: %w", err)
	}
	if n > d.Remaining() || n == 0 {
		return out, fmt.Errorf("length prefix %d, %d bytes follow", n, d.Remaining())
	}
	body, _ := d.Read(n)

	version := body[0]
	out.IsSigned = version&0x80 != 0
	general := version&0xc0 == 0x40

	bd := scale.NewDecoder(body[1:])
	var decodeErr error
	switch {
	case out.IsSigned:
		signer, err := x.readSignedPart(bd)
		if signer == "" {
			signer = fallbackSigner(body, x.prefix)
		}
		out.Signer = &signer
		decodeErr = err
	case general:
		decodeErr = x.readGeneralPart(bd)
	}
	if decodeErr != nil {
		return out, decodeErr
	}

	section, method, err := x.readCall(bd)
	if err != nil {
		return out, err
	}
	out.Section, out.Method = section, method
	return out, nil
}

// readSignedPart consumes address, signature and extra. It returns the
// signer address when it could be derived.
func (x *extrinsicDecoder) readSignedPart(d *scale.Decoder) (string, error) {
	info := x.meta.Extrinsic
	if info.AddressType == nil || info.SignatureType == nil {
		return "", fmt.Errorf("metadata lacks address or signature type")
	}

	addr, err := x.meta.Types.DecodeValue(d, *info.AddressType)
	if err != nil {
		return "", fmt.Errorf("address: %w", err)
	}
	signer := x.formatAddress(addr)

	if err := x.meta.Types.Skip(d, *info.SignatureType); err != nil {
		return signer, fmt.Errorf("signature: %w", err)
	}
	if err := x.skipExtra(d); err != nil {
		return signer, err
	}
	return signer, nil
}

// readGeneralPart consumes the extension version byte and the extensions of
// a v5 general transaction.
func (x *extrinsicDecoder) readGeneralPart(d *scale.Decoder) error {
	if _, err := d.U8(); err != nil {
		return fmt.Errorf("extension version: %w", err)
	}
	return x.skipExtra(d)
}

func (x *extrinsicDecoder) skipExtra(d *scale.Decoder) error {
	info := x.meta.Extrinsic
	if len(info.SignedExtensions) == 0 {
		if info.ExtraType != nil {
			if err := x.meta.Types.Skip(d, *info.ExtraType); err != nil {
				return fmt.Errorf("extra: %w", err)
			}
		}
		return nil
	}
	for _, se := range info.SignedExtensions {
		if err := x.meta.Types.Skip(d, se.Type); err != nil {
			return fmt.Errorf("extension %s: %w", se.Identifier, err)
		}
	}
	return nil
}

func (x *extrinsicDecoder) readCall(d *scale.Decoder) (string, string, error) {
	palletIdx, err := d.U8()
	if err != nil {
		return "", "", fmt.Errorf("call pallet index: %w", err)
	}
	callIdx, err := d.U8()
	if err != nil {
		return "", "", fmt.Errorf("call index: %w", err)
	}
	pallet, call, err := x.meta.Call(palletIdx, callIdx)
	if err != nil {
		return "", "", err
	}
	return camelCase(pallet.Name), camelCase(call.Name), nil
}

// formatAddress renders a decoded address value: account ids as SS58,
// 20-byte keys as hex.
func (x *extrinsicDecoder) formatAddress(v any) string {
	if vv, ok := v.(scale.VariantValue); ok {
		v = vv.Value
	}
	b, ok := v.([]byte)
	if !ok {
		return ""
	}
	if len(b) == 32 {
		if s, err := ss58.Encode(b, x.prefix); err == nil {
			return s
		}
	}
	return hexutil.Encode(b)
}

// fallbackSigner reads a MultiAddress::Id straight from the body when the
// metadata could not describe it.
func fallbackSigner(body []byte, prefix uint16) string {
	if len(body) >= 34 && body[1] == 0x00 {
		if s, err := ss58.Encode(body[2:34], prefix); err == nil {
			return s
		}
	}
	end := min(len(body), 34)
	return "0x" + hex.EncodeToString(body[1:end])
}

// camelCase converts runtime names ("transfer_keep_alive", "Balances",
// "XCMPallet") to the lower camel case used for display.
func camelCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(lowerHead(p))
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// lowerHead lowercases the leading run of capitals, keeping the last one
// when it starts the next word ("XCMPallet" -> "xcmPallet").
func lowerHead(s string) string {
	r := []rune(s)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	if n > 1 && n < len(r) && unicode.IsLower(r[n]) {
		n--
	}
	if n == 0 {
		n = 1
	}
	for i := 0; i < n && i < len(r); i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
