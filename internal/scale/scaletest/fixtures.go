package scaletest

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/fd1az/substrate-explorer/internal/hasher"
	"github.com/fd1az/substrate-explorer/internal/scale"
)

// Hex returns b as 0x-prefixed lowercase hex.
func Hex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// Call encodes a call: pallet index, call index, then the arguments.
func Call(pallet, call uint8, args ...[]byte) []byte {
	out := []byte{pallet, call}
	for _, a := range args {
		out = append(out, a...)
	}
	return out
}

// TimestampSet is Timestamp.set(now).
func TimestampSet(now uint64) []byte {
	return Call(PalletTimestamp, CallTimestampSet, scale.EncodeCompact(now))
}

// TransferKeepAlive is Balances.transfer_keep_alive(Id(dest), amount).
func TransferKeepAlive(dest [32]byte, amount uint64) []byte {
	return Call(PalletBalances, CallBalancesTransferKeepAlive, append([]byte{0x00}, dest[:]...), scale.EncodeCompact(amount))
}

// Remark is System.remark(data).
func Remark(data []byte) []byte {
	return Call(PalletSystem, CallSystemRemark, scale.NewEncoder().ByteSlice(data).Bytes())
}

// Unsigned wraps a call as a version 4 unsigned extrinsic, length-prefixed.
func Unsigned(call []byte) []byte {
	body := append([]byte{0x04}, call...)
	return scale.NewEncoder().ByteSlice(body).Bytes()
}

// Signed wraps a call as a version 4 extrinsic signed by signer with an
// immortal era, the given nonce and tip, and a zero sr25519 signature.
func Signed(signer [32]byte, nonce, tip uint64, call []byte) []byte {
	body := scale.NewEncoder().
		U8(0x84).
		U8(0x00).Raw(signer[:]). // MultiAddress::Id
		U8(0x01).Raw(make([]byte, 64)). // MultiSignature::Sr25519
		U8(0x00).                        // CheckMortality: immortal
		Compact(nonce).                  // CheckNonce
		Compact(tip).                    // ChargeTransactionPayment
		Raw(call).
		Bytes()
	return scale.NewEncoder().ByteSlice(body).Bytes()
}

// ExtrinsicHash returns the blake2b-256 hash of an encoded extrinsic.
func ExtrinsicHash(xt []byte) string {
	sum := hasher.Blake2_256(xt)
	return Hex(sum[:])
}

// AccountInfo encodes frame_system::AccountInfo for the fixture runtime.
func AccountInfo(nonce, consumers, providers, sufficients uint32, free, reserved, frozen *big.Int) []byte {
	return scale.NewEncoder().
		U32(nonce).U32(consumers).U32(providers).U32(sufficients).
		U128(free).U128(reserved).U128(frozen).
		U128(new(big.Int)).
		Bytes()
}

// Header is a block header in its decoded form.
type Header struct {
	ParentHash     [32]byte
	Number         uint64
	StateRoot      [32]byte
	ExtrinsicsRoot [32]byte
	Logs           [][]byte
}

// Encode returns the SCALE encoding of the header.
func (h Header) Encode() []byte {
	e := scale.NewEncoder().
		Raw(h.ParentHash[:]).
		Compact(h.Number).
		Raw(h.StateRoot[:]).
		Raw(h.ExtrinsicsRoot[:]).
		Compact(uint64(len(h.Logs)))
	for _, l := range h.Logs {
		e.Raw(l)
	}
	return e.Bytes()
}

// Hash returns the 0x-prefixed blake2b-256 hash of the encoded header.
func (h Header) Hash() string {
	sum := hasher.Blake2_256(h.Encode())
	return Hex(sum[:])
}

// JSON returns the header as the node's RPC layer renders it.
func (h Header) JSON() map[string]any {
	logs := make([]string, 0, len(h.Logs))
	for _, l := range h.Logs {
		logs = append(logs, Hex(l))
	}
	return map[string]any{
		"parentHash":     Hex(h.ParentHash[:]),
		"number":         fmt.Sprintf("0x%x", h.Number),
		"stateRoot":      Hex(h.StateRoot[:]),
		"extrinsicsRoot": Hex(h.ExtrinsicsRoot[:]),
		"digest":         map[string]any{"logs": logs},
	}
}

// SignedBlock returns a chain_getBlock result for the header and encoded
// extrinsics.
func SignedBlock(h Header, extrinsics ...[]byte) map[string]any {
	xts := make([]string, 0, len(extrinsics))
	for _, x := range extrinsics {
		xts = append(xts, Hex(x))
	}
	return map[string]any{
		"block": map[string]any{
			"header":     h.JSON(),
			"extrinsics": xts,
		},
		"justifications": nil,
	}
}

// PreRuntimeLog is a PreRuntime digest item for engine with data.
func PreRuntimeLog(engine string, data []byte) []byte {
	return scale.NewEncoder().U8(6).Raw([]byte(engine)[:4]).ByteSlice(data).Bytes()
}

// Fill returns a 32-byte array with every byte set to b.
func Fill(b byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = b
	}
	return out
}
