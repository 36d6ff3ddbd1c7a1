// Package chain implements the chain bounded context: the Substrate node
// session and every query made through it.
package chain

import (
	"context"

	"github.com/fd1az/substrate-explorer/business/chain/app"
	chainDI "github.com/fd1az/substrate-explorer/business/chain/di"
	"github.com/fd1az/substrate-explorer/business/chain/infra/substrate"
	"github.com/fd1az/substrate-explorer/internal/config"
	"github.com/fd1az/substrate-explorer/internal/di"
	"github.com/fd1az/substrate-explorer/internal/logger"
	"github.com/fd1az/substrate-explorer/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Manager (private - internal dependency)
	di.RegisterToken(c, chainDI.Manager, func(sr di.ServiceRegistry) *substrate.Manager {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		mgr, err := substrate.NewManager(ManagerConfig(cfg.Node), log)
		if err != nil {
			panic("failed to create connection manager: " + err.Error())
		}
		return mgr
	})

	di.RegisterToken(c, chainDI.BlockReader, func(sr di.ServiceRegistry) *substrate.BlockReader {
		log := sr.Get("logger").(logger.LoggerInterface)
		r, err := substrate.NewBlockReader(log)
		if err != nil {
			panic("failed to create block reader: " + err.Error())
		}
		return r
	})

	di.RegisterToken(c, chainDI.AccountReader, func(sr di.ServiceRegistry) *substrate.AccountReader {
		return substrate.NewAccountReader(sr.Get("logger").(logger.LoggerInterface))
	})

	di.RegisterToken(c, chainDI.HashResolver, func(sr di.ServiceRegistry) *substrate.HashResolver {
		log := sr.Get("logger").(logger.LoggerInterface)
		return substrate.NewHashResolver(chainDI.GetBlockReader(sr), log)
	})

	di.RegisterToken(c, chainDI.HeadSubscriber, func(sr di.ServiceRegistry) *substrate.HeadSubscriber {
		log := sr.Get("logger").(logger.LoggerInterface)
		s, err := substrate.NewHeadSubscriber(log)
		if err != nil {
			panic("failed to create head subscriber: " + err.Error())
		}
		return s
	})

	// Register ChainService (public - exposed to other modules)
	di.RegisterToken(c, chainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		return app.NewChainService(
			chainDI.GetManager(sr),
			chainDI.GetBlockReader(sr),
			di.GetToken(sr, chainDI.AccountReader),
			di.GetToken(sr, chainDI.HashResolver),
			di.GetToken(sr, chainDI.HeadSubscriber),
		)
	})

	return nil
}

// Startup builds the chain services. Connecting is left to the caller,
// which owns the retry policy.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	mgr := chainDI.GetManager(mono.Services())
	mono.OnClose(mgr.Close)
	_ = chainDI.GetChainService(mono.Services())

	log.Info(ctx, "chain module started", "endpoint", mono.Config().Node.Endpoint)
	return nil
}

// ManagerConfig maps node settings onto the connection manager's.
func ManagerConfig(n config.NodeConfig) substrate.ManagerConfig {
	cfg := substrate.DefaultManagerConfig()
	if n.DialTimeout > 0 {
		cfg.DialTimeout = n.DialTimeout
	}
	cfg.RequestTimeout = n.RequestTimeout
	cfg.PingInterval = n.PingInterval
	if n.MaxMessageSize > 0 {
		cfg.MaxMessageSize = n.MaxMessageSize
	}
	cfg.RequestsPerSecond = n.RequestsPerSecond
	cfg.Burst = n.Burst
	if n.SubscriptionBuffer > 0 {
		cfg.SubscriptionBuffer = n.SubscriptionBuffer
	}
	return cfg
}
