package substrate

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/hasher"
	"github.com/fd1az/substrate-explorer/internal/logger"
	"github.com/fd1az/substrate-explorer/internal/scale"
	"github.com/fd1az/substrate-explorer/internal/ss58"
)

// AccountReader reads System.Account entries.
type AccountReader struct {
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewAccountReader creates an AccountReader.
func NewAccountReader(log logger.LoggerInterface) *AccountReader {
	return &AccountReader{
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
}

// GetAccount returns the account at address, given as SS58 or as 0x-prefixed
// 32-byte hex. An account with no storage entry reads as all zeros.
func (r *AccountReader) GetAccount(ctx context.Context, conn *Conn, address string) (*domain.Account, error) {
	if !conn.IsConnected() {
		return nil, apperror.NotConnected("get account")
	}

	ctx, span := r.tracer.Start(ctx, "substrate.get_account")
	defer span.End()

	accountID, err := ParseAccountID(address)
	if err != nil {
		return nil, err
	}
	canonical, err := ss58.Encode(accountID, conn.SS58Format())
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidAddress, address)
	}
	span.SetAttributes(attribute.String("account", canonical))

	md := conn.Metadata()
	entry, prefix, err := md.StorageEntry("System", "Account")
	if err != nil {
		return nil, apperror.New(apperror.CodeMetadataDecodeFailed, apperror.WithCause(err))
	}
	key, err := accountStorageKey(conn, prefix, entry, accountID)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeInternalError, "storage key", err)
	}

	var raw *string
	if err := conn.call(ctx, &raw, "state_getStorage", hexutil.Encode(key)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "state_getStorage failed")
		return nil, err
	}

	account := &domain.Account{
		Address: canonical,
		Balance: domain.Balance{Free: "0", Reserved: "0", Frozen: "0"},
	}
	if raw == nil {
		r.logger.Debug(ctx, "account has no storage entry", "account", canonical)
		return account, nil
	}

	encoded, err := hexutil.Decode(*raw)
	if err != nil {
		return nil, apperror.Transport("state_getStorage", err)
	}
	value, err := md.Types.DecodeValue(scale.NewDecoder(encoded), entry.Value)
	if err != nil {
		return nil, apperror.New(apperror.CodeMetadataDecodeFailed,
			apperror.WithCause(err),
			apperror.WithContext("account info"))
	}
	if err := fillAccount(account, value); err != nil {
		return nil, apperror.New(apperror.CodeMetadataDecodeFailed,
			apperror.WithCause(err),
			apperror.WithContext("account info"))
	}

	span.SetStatus(codes.Ok, "ok")
	return account, nil
}

// accountStorageKey builds the System.Account key for accountID from the
// session's storage metadata, or from entry's hashers when the runtime's
// metadata is one the key builder cannot read.
func accountStorageKey(conn *Conn, prefix string, entry *scale.StorageEntry, accountID []byte) ([]byte, error) {
	if sm := conn.storageMetadata(); sm != nil {
		return types.CreateStorageKey(sm, "System", "Account", accountID)
	}
	h := scale.HasherBlake2_128Concat
	if len(entry.Hashers) > 0 {
		h = entry.Hashers[0]
	}
	return hasher.StorageMapKey(prefix, entry.Name, h, accountID)
}

// ParseAccountID accepts an SS58 address of any network or a 0x-prefixed
// 32-byte hex public key.
func ParseAccountID(address string) ([]byte, error) {
	address = strings.TrimSpace(address)
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		b, err := hexutil.Decode("0x" + address[2:])
		if err != nil || len(b) != 32 {
			return nil, apperror.Validation(apperror.CodeInvalidAddress, address)
		}
		return b, nil
	}
	id, _, err := ss58.Decode(address)
	if err != nil || len(id) != 32 {
		return nil, apperror.New(apperror.CodeInvalidAddress,
			apperror.WithCause(err),
			apperror.WithContext(address))
	}
	return id, nil
}

// fillAccount copies an AccountInfo value into a. Older runtimes carry
// misc_frozen and fee_frozen instead of frozen.
func fillAccount(a *domain.Account, v any) error {
	info, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("account info is %T", v)
	}

	var err error
	if a.Nonce, err = field32(info, "nonce"); err != nil {
		return err
	}
	if a.Consumers, err = field32(info, "consumers"); err != nil {
		return err
	}
	if a.Providers, err = field32(info, "providers"); err != nil {
		return err
	}
	// sufficients appeared later; absent means zero
	if _, ok := info["sufficients"]; ok {
		if a.Sufficients, err = field32(info, "sufficients"); err != nil {
			return err
		}
	}

	data, ok := info["data"].(map[string]any)
	if !ok {
		return fmt.Errorf("account data is %T", info["data"])
	}
	free, err := balanceField(data, "free")
	if err != nil {
		return err
	}
	reserved, err := balanceField(data, "reserved")
	if err != nil {
		return err
	}

	var frozen *big.Int
	if _, ok := data["frozen"]; ok {
		if frozen, err = balanceField(data, "frozen"); err != nil {
			return err
		}
	} else {
		misc, err := balanceField(data, "misc_frozen")
		if err != nil {
			return err
		}
		fee, err := balanceField(data, "fee_frozen")
		if err != nil {
			return err
		}
		frozen = misc
		if fee.Cmp(misc) > 0 {
			frozen = fee
		}
	}

	a.Balance = domain.Balance{
		Free:     decimal.NewFromBigInt(free, 0).String(),
		Reserved: decimal.NewFromBigInt(reserved, 0).String(),
		Frozen:   decimal.NewFromBigInt(frozen, 0).String(),
	}
	return nil
}

func field32(m map[string]any, name string) (uint32, error) {
	n, ok := scale.AsUint64(m[name])
	if !ok || n > 1<<32-1 {
		return 0, fmt.Errorf("field %s: unexpected %T", name, m[name])
	}
	return uint32(n), nil
}

func balanceField(m map[string]any, name string) (*big.Int, error) {
	n, ok := scale.AsBigInt(m[name])
	if !ok {
		return nil, fmt.Errorf("field %s: unexpected %T", name, m[name])
	}
	return n, nil
}
