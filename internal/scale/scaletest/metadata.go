// Package scaletest builds SCALE fixtures for tests: a small runtime's
// metadata, extrinsics, headers and storage values.
package scaletest

import (
	"fmt"

	"github.com/fd1az/substrate-explorer/internal/scale"
)

// Type ids of the fixture runtime.
const (
	TypeU8 uint32 = iota
	TypeU32
	TypeU64
	TypeU128
	TypeBytes32
	TypeAccountID
	TypeAccountData
	TypeExtraFlags
	TypeAccountInfo
	TypeCompactU128
	TypeMultiAddress
	TypeCompactU32
	TypeBytes
	TypeBytes20
	TypeBytes64
	TypeMultiSignature
	TypeBytes65
	TypeEra
	TypeCheckMortality
	TypeCheckNonce
	TypeChargeTxPayment
	TypeUnit
	TypeBalancesCall
	TypeTimestampCall
	TypeCompactU64
	TypeSystemCall
	TypeRuntimeCall
	TypeUncheckedExtrinsic
	TypeExtra
	TypeBool
	TypeStr
	TypeOptionU32
	TypeI32
	TypeBitVec
)

// Pallet indices of the fixture runtime.
const (
	PalletSystem    uint8 = 0
	PalletTimestamp uint8 = 3
	PalletBalances  uint8 = 5
)

// Call indices within their pallets.
const (
	CallSystemRemark               uint8 = 0
	CallTimestampSet               uint8 = 0
	CallBalancesTransferAllowDeath uint8 = 0
	CallBalancesTransferKeepAlive  uint8 = 3
)

type field struct {
	name string
	ty   uint32
}

type variant struct {
	name   string
	index  uint8
	fields []field
}

type param struct {
	name string
	ty   uint32
}

type typeWriter struct {
	e     *scale.Encoder
	count int
}

func (w *typeWriter) add(id uint32, path []string, params []param, def func(e *scale.Encoder)) {
	if int(id) != w.count {
		panic(fmt.Sprintf("scaletest: type %d written out of order", id))
	}
	w.count++

	w.e.Compact(uint64(id))
	w.e.Strings(path)
	w.e.Compact(uint64(len(params)))
	for _, p := range params {
		w.e.String(p.name)
		w.e.Option(true)
		w.e.Compact(uint64(p.ty))
	}
	def(w.e)
	w.e.Strings(nil)
}

func writeFields(e *scale.Encoder, fields []field) {
	e.Compact(uint64(len(fields)))
	for _, f := range fields {
		e.Option(f.name != "")
		if f.name != "" {
			e.String(f.name)
		}
		e.Compact(uint64(f.ty))
		e.Option(false)
		e.Strings(nil)
	}
}

func composite(fields ...field) func(*scale.Encoder) {
	return func(e *scale.Encoder) {
		e.U8(uint8(scale.KindComposite))
		writeFields(e, fields)
	}
}

func enum(variants ...variant) func(*scale.Encoder) {
	return func(e *scale.Encoder) {
		e.U8(uint8(scale.KindVariant))
		e.Compact(uint64(len(variants)))
		for _, v := range variants {
			e.String(v.name)
			writeFields(e, v.fields)
			e.U8(v.index)
			e.Strings(nil)
		}
	}
}

func sequence(elem uint32) func(*scale.Encoder) {
	return func(e *scale.Encoder) {
		e.U8(uint8(scale.KindSequence))
		e.Compact(uint64(elem))
	}
}

func array(n, elem uint32) func(*scale.Encoder) {
	return func(e *scale.Encoder) {
		e.U8(uint8(scale.KindArray))
		e.U32(n)
		e.Compact(uint64(elem))
	}
}

func tuple(elems ...uint32) func(*scale.Encoder) {
	return func(e *scale.Encoder) {
		e.U8(uint8(scale.KindTuple))
		e.Compact(uint64(len(elems)))
		for _, id := range elems {
			e.Compact(uint64(id))
		}
	}
}

func primitive(p scale.Primitive) func(*scale.Encoder) {
	return func(e *scale.Encoder) {
		e.U8(uint8(scale.KindPrimitive))
		e.U8(uint8(p))
	}
}

func compact(elem uint32) func(*scale.Encoder) {
	return func(e *scale.Encoder) {
		e.U8(uint8(scale.KindCompact))
		e.Compact(uint64(elem))
	}
}

func bitSequence(store, order uint32) func(*scale.Encoder) {
	return func(e *scale.Encoder) {
		e.U8(uint8(scale.KindBitSequence))
		e.Compact(uint64(store))
		e.Compact(uint64(order))
	}
}

func writeTypes(e *scale.Encoder) {
	w := &typeWriter{e: e}
	e.Compact(uint64(TypeBitVec + 1))

	w.add(TypeU8, nil, nil, primitive(scale.PrimU8))
	w.add(TypeU32, nil, nil, primitive(scale.PrimU32))
	w.add(TypeU64, nil, nil, primitive(scale.PrimU64))
	w.add(TypeU128, nil, nil, primitive(scale.PrimU128))
	w.add(TypeBytes32, nil, nil, array(32, TypeU8))
	w.add(TypeAccountID, []string{"sp_core", "crypto", "AccountId32"}, nil,
		composite(field{ty: TypeBytes32}))
	w.add(TypeAccountData, []string{"pallet_balances", "types", "AccountData"}, []param{{"Balance", TypeU128}},
		composite(
			field{"free", TypeU128},
			field{"reserved", TypeU128},
			field{"frozen", TypeU128},
			field{"flags", TypeExtraFlags},
		))
	w.add(TypeExtraFlags, []string{"pallet_balances", "types", "ExtraFlags"}, nil,
		composite(field{ty: TypeU128}))
	w.add(TypeAccountInfo, []string{"frame_system", "AccountInfo"}, []param{{"Nonce", TypeU32}, {"AccountData", TypeAccountData}},
		composite(
			field{"nonce", TypeU32},
			field{"consumers", TypeU32},
			field{"providers", TypeU32},
			field{"sufficients", TypeU32},
			field{"data", TypeAccountData},
		))
	w.add(TypeCompactU128, nil, nil, compact(TypeU128))
	w.add(TypeMultiAddress, []string{"sp_runtime", "multiaddress", "MultiAddress"}, []param{{"AccountId", TypeAccountID}},
		enum(
			variant{"Id", 0, []field{{ty: TypeAccountID}}},
			variant{"Index", 1, []field{{ty: TypeCompactU32}}},
			variant{"Raw", 2, []field{{ty: TypeBytes}}},
			variant{"Address32", 3, []field{{ty: TypeBytes32}}},
			variant{"Address20", 4, []field{{ty: TypeBytes20}}},
		))
	w.add(TypeCompactU32, nil, nil, compact(TypeU32))
	w.add(TypeBytes, nil, nil, sequence(TypeU8))
	w.add(TypeBytes20, nil, nil, array(20, TypeU8))
	w.add(TypeBytes64, nil, nil, array(64, TypeU8))
	w.add(TypeMultiSignature, []string{"sp_runtime", "MultiSignature"}, nil,
		enum(
			variant{"Ed25519", 0, []field{{ty: TypeBytes64}}},
			variant{"Sr25519", 1, []field{{ty: TypeBytes64}}},
			variant{"Ecdsa", 2, []field{{ty: TypeBytes65}}},
		))
	w.add(TypeBytes65, nil, nil, array(65, TypeU8))

	eras := []variant{{name: "Immortal", index: 0}}
	for i := 1; i < 256; i++ {
		eras = append(eras, variant{fmt.Sprintf("Mortal%d", i), uint8(i), []field{{ty: TypeU8}}})
	}
	w.add(TypeEra, []string{"sp_runtime", "generic", "era", "Era"}, nil, enum(eras...))

	w.add(TypeCheckMortality, []string{"frame_system", "extensions", "check_mortality", "CheckMortality"}, nil,
		composite(field{ty: TypeEra}))
	w.add(TypeCheckNonce, []string{"frame_system", "extensions", "check_nonce", "CheckNonce"}, nil,
		composite(field{ty: TypeCompactU32}))
	w.add(TypeChargeTxPayment, []string{"pallet_transaction_payment", "ChargeTransactionPayment"}, nil,
		composite(field{ty: TypeCompactU128}))
	w.add(TypeUnit, nil, nil, tuple())
	w.add(TypeBalancesCall, []string{"pallet_balances", "pallet", "Call"}, nil,
		enum(
			variant{"transfer_allow_death", CallBalancesTransferAllowDeath, []field{{"dest", TypeMultiAddress}, {"value", TypeCompactU128}}},
			variant{"transfer_keep_alive", CallBalancesTransferKeepAlive, []field{{"dest", TypeMultiAddress}, {"value", TypeCompactU128}}},
		))
	w.add(TypeTimestampCall, []string{"pallet_timestamp", "pallet", "Call"}, nil,
		enum(variant{"set", CallTimestampSet, []field{{"now", TypeCompactU64}}}))
	w.add(TypeCompactU64, nil, nil, compact(TypeU64))
	w.add(TypeSystemCall, []string{"frame_system", "pallet", "Call"}, nil,
		enum(variant{"remark", CallSystemRemark, []field{{"remark", TypeBytes}}}))
	w.add(TypeRuntimeCall, []string{"node_runtime", "RuntimeCall"}, nil,
		enum(
			variant{"System", PalletSystem, []field{{ty: TypeSystemCall}}},
			variant{"Timestamp", PalletTimestamp, []field{{ty: TypeTimestampCall}}},
			variant{"Balances", PalletBalances, []field{{ty: TypeBalancesCall}}},
		))
	w.add(TypeUncheckedExtrinsic, []string{"sp_runtime", "generic", "unchecked_extrinsic", "UncheckedExtrinsic"},
		[]param{{"Address", TypeMultiAddress}, {"Call", TypeRuntimeCall}, {"Signature", TypeMultiSignature}, {"Extra", TypeExtra}},
		composite(field{ty: TypeBytes}))
	w.add(TypeExtra, nil, nil, tuple(TypeCheckMortality, TypeCheckNonce, TypeChargeTxPayment))
	w.add(TypeBool, nil, nil, primitive(scale.PrimBool))
	w.add(TypeStr, nil, nil, primitive(scale.PrimStr))
	w.add(TypeOptionU32, []string{"Option"}, []param{{"T", TypeU32}},
		enum(variant{name: "None", index: 0}, variant{"Some", 1, []field{{ty: TypeU32}}}))
	w.add(TypeI32, nil, nil, primitive(scale.PrimI32))
	w.add(TypeBitVec, []string{"BitVec"}, nil, bitSequence(TypeU8, TypeUnit))
}

type storageEntry struct {
	name     string
	optional bool
	hashers  []scale.StorageHasher
	key      uint32
	value    uint32
	def      []byte
}

type pallet struct {
	name      string
	index     uint8
	prefix    string
	storage   []storageEntry
	calls     *uint32
	constants []constant
}

type constant struct {
	name  string
	ty    uint32
	value []byte
}

func ptr(v uint32) *uint32 { return &v }

func pallets() []pallet {
	return []pallet{
		{
			name:   "System",
			index:  PalletSystem,
			prefix: "System",
			storage: []storageEntry{
				{
					name:    "Account",
					hashers: []scale.StorageHasher{scale.HasherBlake2_128Concat},
					key:     TypeAccountID,
					value:   TypeAccountInfo,
					def:     make([]byte, 4*4+16*4),
				},
				{name: "Number", value: TypeU32, def: make([]byte, 4)},
			},
			calls:     ptr(TypeSystemCall),
			constants: []constant{{"SS58Prefix", TypeU32, []byte{42, 0, 0, 0}}},
		},
		{name: "Timestamp", index: PalletTimestamp, calls: ptr(TypeTimestampCall)},
		{
			name:      "Balances",
			index:     PalletBalances,
			calls:     ptr(TypeBalancesCall),
			constants: []constant{{"ExistentialDeposit", TypeU128, make([]byte, 16)}},
		},
	}
}

func writePallets(e *scale.Encoder, version uint8) {
	ps := pallets()
	e.Compact(uint64(len(ps)))
	for _, p := range ps {
		e.String(p.name)

		e.Option(p.prefix != "")
		if p.prefix != "" {
			e.String(p.prefix)
			e.Compact(uint64(len(p.storage)))
			for _, s := range p.storage {
				e.String(s.name)
				e.Bool(!s.optional) // modifier: 0 Optional, 1 Default
				if len(s.hashers) == 0 {
					e.U8(0)
					e.Compact(uint64(s.value))
				} else {
					e.U8(1)
					e.Compact(uint64(len(s.hashers)))
					for _, h := range s.hashers {
						e.U8(uint8(h))
					}
					e.Compact(uint64(s.key))
					e.Compact(uint64(s.value))
				}
				e.ByteSlice(s.def)
				e.Strings(nil)
			}
		}

		e.Option(p.calls != nil)
		if p.calls != nil {
			e.Compact(uint64(*p.calls))
		}
		e.Option(false) // events

		e.Compact(uint64(len(p.constants)))
		for _, c := range p.constants {
			e.String(c.name)
			e.Compact(uint64(c.ty))
			e.ByteSlice(c.value)
			e.Strings(nil)
		}

		e.Option(false) // errors
		e.U8(p.index)
		if version >= 15 {
			e.Strings([]string{p.name + " pallet"})
		}
	}
}

func writeSignedExtensions(e *scale.Encoder) {
	exts := []struct {
		id string
		ty uint32
	}{
		{"CheckMortality", TypeCheckMortality},
		{"CheckNonce", TypeCheckNonce},
		{"ChargeTransactionPayment", TypeChargeTxPayment},
	}
	e.Compact(uint64(len(exts)))
	for _, x := range exts {
		e.String(x.id)
		e.Compact(uint64(x.ty))
		e.Compact(uint64(TypeUnit))
	}
}

// Metadata returns the fixture runtime's prefixed metadata at version 14 or
// 15.
func Metadata(version uint8) []byte {
	e := scale.NewEncoder()
	e.U32(scale.MetadataMagic)
	e.U8(version)

	writeTypes(e)
	writePallets(e, version)

	if version >= 15 {
		e.U8(4)
		e.Compact(uint64(TypeMultiAddress))
		e.Compact(uint64(TypeRuntimeCall))
		e.Compact(uint64(TypeMultiSignature))
		e.Compact(uint64(TypeExtra))
		writeSignedExtensions(e)
		e.Compact(uint64(TypeUnit)) // runtime type
		e.Compact(0)                // apis
		e.Compact(uint64(TypeRuntimeCall))
		e.Compact(uint64(TypeUnit))
		e.Compact(uint64(TypeUnit))
		e.Compact(0) // custom
	} else {
		e.Compact(uint64(TypeUncheckedExtrinsic))
		e.U8(4)
		writeSignedExtensions(e)
		e.Compact(uint64(TypeUnit)) // runtime type
	}

	return e.Bytes()
}
