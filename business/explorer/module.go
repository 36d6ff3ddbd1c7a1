// Package explorer implements the explorer bounded context: it keeps the
// node session alive, follows new heads, and serves lookups to the TUI,
// the console and the HTTP API.
package explorer

import (
	"context"

	chainDI "github.com/fd1az/substrate-explorer/business/chain/di"
	"github.com/fd1az/substrate-explorer/business/explorer/app"
	explorerDI "github.com/fd1az/substrate-explorer/business/explorer/di"
	"github.com/fd1az/substrate-explorer/business/explorer/infra"
	"github.com/fd1az/substrate-explorer/business/explorer/infra/httpapi"
	"github.com/fd1az/substrate-explorer/internal/config"
	"github.com/fd1az/substrate-explorer/internal/di"
	"github.com/fd1az/substrate-explorer/internal/logger"
	"github.com/fd1az/substrate-explorer/internal/monolith"
)

// Module implements the explorer bounded context.
type Module struct{}

// RegisterServices registers all explorer services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, explorerDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Explorer.TUIMode {
			return infra.NewTUIReporter()
		}
		return infra.NewConsoleReporter()
	})

	di.RegisterToken(c, explorerDI.Explorer, func(sr di.ServiceRegistry) *app.Explorer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		e, err := app.NewExplorer(
			chainDI.GetChainService(sr),
			di.GetToken(sr, explorerDI.Reporter),
			ExplorerConfig(cfg),
			log,
		)
		if err != nil {
			panic("failed to create explorer: " + err.Error())
		}
		return e
	})

	di.RegisterToken(c, explorerDI.APIHandler, func(sr di.ServiceRegistry) *httpapi.Handler {
		log := sr.Get("logger").(logger.LoggerInterface)
		return httpapi.NewHandler(explorerDI.GetExplorer(sr), log)
	})

	return nil
}

// Startup mounts the API. The explorer loop itself is started by the
// entry point once the UI is ready.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	e := explorerDI.GetExplorer(mono.Services())
	mono.OnClose(e.Stop)

	if mono.Config().HTTP.Enabled {
		di.GetToken(mono.Services(), explorerDI.APIHandler).Mount(mono.Router())
	}

	mono.Logger().Info(ctx, "explorer module started",
		"recent_heads", mono.Config().Explorer.RecentHeads,
		"api", mono.Config().HTTP.Enabled,
	)
	return nil
}

// ExplorerConfig maps application settings onto the explorer's.
func ExplorerConfig(cfg *config.Config) app.Config {
	return app.Config{
		Endpoint:       cfg.Node.Endpoint,
		RecentHeads:    cfg.Explorer.RecentHeads,
		MaxReconnects:  cfg.Node.MaxReconnects,
		InitialBackoff: cfg.Node.InitialBackoff,
		MaxBackoff:     cfg.Node.MaxBackoff,
	}
}
