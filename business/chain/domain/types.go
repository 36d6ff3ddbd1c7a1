// Package domain contains the core domain types for the chain context.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ConnectionStatus is the lifecycle phase of the node connection.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// ConnectionState describes the node session. Identity fields are empty
// unless Connected.
type ConnectionState struct {
	Status      ConnectionStatus `json:"status"`
	Connected   bool             `json:"connected"`
	Endpoint    string           `json:"endpoint"`
	ChainName   string           `json:"chainName"`
	NodeName    string           `json:"nodeName"`
	NodeVersion string           `json:"nodeVersion"`

	SpecName      string    `json:"specName,omitempty"`
	SpecVersion   uint32    `json:"specVersion,omitempty"`
	SS58Format    uint16    `json:"ss58Format"`
	TokenSymbol   string    `json:"tokenSymbol,omitempty"`
	TokenDecimals uint8     `json:"tokenDecimals,omitempty"`
	ConnectedAt   time.Time `json:"connectedAt,omitzero"`
	Error         string    `json:"error,omitempty"`
}

// Disconnected returns the state of a closed or failed session.
func Disconnected(endpoint string, err error) ConnectionState {
	s := ConnectionState{Status: StatusDisconnected, Endpoint: endpoint}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Header is a block header. Hash is the blake2b-256 of the encoded header.
type Header struct {
	Number         uint64      `json:"number"`
	Hash           common.Hash `json:"hash"`
	ParentHash     common.Hash `json:"parentHash"`
	StateRoot      common.Hash `json:"stateRoot"`
	ExtrinsicsRoot common.Hash `json:"extrinsicsRoot"`
}

// Block is a header plus its extrinsics in node order. HeaderOnly marks a
// block assembled from a header lookup, whose body was not fetched.
type Block struct {
	Header
	Extrinsics []Extrinsic `json:"extrinsics"`
	HeaderOnly bool        `json:"headerOnly,omitempty"`
}

// Extrinsic is a display summary of one extrinsic. Signer is set iff
// IsSigned.
type Extrinsic struct {
	Index    int     `json:"index"`
	Method   string  `json:"method"`
	Section  string  `json:"section"`
	Hash     string  `json:"hash"`
	IsSigned bool    `json:"isSigned"`
	Signer   *string `json:"signer"`
}

// Balance amounts are base-10 strings of the chain's smallest unit.
type Balance struct {
	Free     string `json:"free"`
	Reserved string `json:"reserved"`
	Frozen   string `json:"frozen"`
}

// Account is the System.Account entry of an address.
type Account struct {
	Address     string  `json:"address"`
	Nonce       uint32  `json:"nonce"`
	Consumers   uint32  `json:"consumers"`
	Providers   uint32  `json:"providers"`
	Sufficients uint32  `json:"sufficients"`
	Balance     Balance `json:"balance"`
}

// LookupType classifies a hash lookup.
type LookupType string

const (
	LookupBlock   LookupType = "block"
	LookupUnknown LookupType = "unknown"
)

// LookupResult is the outcome of resolving a hash. Data is nil when Type is
// LookupUnknown.
type LookupResult struct {
	Type LookupType `json:"type"`
	Data *Block     `json:"data"`
}
