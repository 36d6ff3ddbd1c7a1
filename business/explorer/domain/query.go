package domain

import (
	"strings"

	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
)

// QueryKind is how a free-text search is interpreted.
type QueryKind string

const (
	QueryHeight  QueryKind = "height"
	QueryHash    QueryKind = "hash"
	QueryAddress QueryKind = "address"
)

// ClassifyQuery decides what q refers to: all digits is a block height,
// 0x plus 64 hex digits is a hash, anything else is tried as an address.
func ClassifyQuery(q string) (QueryKind, string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", "", apperror.Validation(apperror.CodeRequiredField, "empty search query")
	}
	if isDigits(q) {
		return QueryHeight, q, nil
	}
	if len(q) == 66 && (strings.HasPrefix(q, "0x") || strings.HasPrefix(q, "0X")) && isHex(q[2:]) {
		return QueryHash, "0x" + strings.ToLower(q[2:]), nil
	}
	return QueryAddress, q, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// ResultKind classifies a search result.
type ResultKind string

const (
	ResultBlock   ResultKind = "block"
	ResultAccount ResultKind = "account"
	ResultUnknown ResultKind = "unknown"
)

// SearchResult is the answer to a search. Exactly one of Block and Account
// is set unless Kind is ResultUnknown.
type SearchResult struct {
	Query   string               `json:"query"`
	Kind    ResultKind           `json:"type"`
	Block   *chainDomain.Block   `json:"block,omitempty"`
	Account *chainDomain.Account `json:"account,omitempty"`
}

// Status is a snapshot of the explorer.
type Status struct {
	Connection chainDomain.ConnectionState `json:"connection"`
	LatestHead *chainDomain.Header         `json:"latestHead,omitempty"`
	Heads      int                         `json:"heads"`
	Reconnects int                         `json:"reconnects"`
}
