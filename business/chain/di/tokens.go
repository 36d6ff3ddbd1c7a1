// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/substrate-explorer/business/chain/app"
	"github.com/fd1az/substrate-explorer/business/chain/infra/substrate"
	"github.com/fd1az/substrate-explorer/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("chain.ChainService")
)

// Private dependency tokens - internal to chain module
var (
	Manager        = di.NewToken[*substrate.Manager]("chain:manager")
	BlockReader    = di.NewToken[*substrate.BlockReader]("chain:blockReader")
	AccountReader  = di.NewToken[*substrate.AccountReader]("chain:accountReader")
	HashResolver   = di.NewToken[*substrate.HashResolver]("chain:hashResolver")
	HeadSubscriber = di.NewToken[*substrate.HeadSubscriber]("chain:headSubscriber")
)

// Helper functions for type-safe access
func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}

func GetManager(c di.ServiceRegistry) *substrate.Manager {
	return di.GetToken(c, Manager)
}

func GetBlockReader(c di.ServiceRegistry) *substrate.BlockReader {
	return di.GetToken(c, BlockReader)
}
