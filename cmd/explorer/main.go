// Package main is the entry point for the Substrate explorer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/substrate-explorer/business/chain"
	"github.com/fd1az/substrate-explorer/business/explorer"
	explorerApp "github.com/fd1az/substrate-explorer/business/explorer/app"
	explorerDI "github.com/fd1az/substrate-explorer/business/explorer/di"
	"github.com/fd1az/substrate-explorer/internal/apm"
	"github.com/fd1az/substrate-explorer/internal/config"
	"github.com/fd1az/substrate-explorer/internal/health"
	"github.com/fd1az/substrate-explorer/internal/logger"
	"github.com/fd1az/substrate-explorer/internal/metrics"
	"github.com/fd1az/substrate-explorer/internal/monolith"
	"github.com/fd1az/substrate-explorer/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("substrate-explorer %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Explorer.TUIMode = tuiMode

	// The TUI owns the terminal, so logs are discarded there.
	out := io.Writer(os.Stderr)
	if tuiMode {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	defer log.Sync()

	log.Info(ctx, "starting substrate explorer",
		"version", version,
		"environment", cfg.App.Environment,
		"endpoint", cfg.Node.Endpoint,
	)

	stopTelemetry, err := startTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer func() {
		if err := mono.Close(); err != nil {
			log.Error(context.Background(), "error during shutdown", "error", err)
		}
	}()

	modules := []monolith.Module{
		&chain.Module{},    // Must be first - owns the node session
		&explorer.Module{}, // Follows heads and serves lookups
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	ex := explorerDI.GetExplorer(mono.Services())

	if cfg.Health.Enabled {
		hs := health.NewServer(cfg.Health.Port, version, log)
		hs.RegisterCheck("node", nodeCheck(ex))
		if err := hs.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
		} else {
			log.Info(ctx, "health server started", "port", cfg.Health.Port)
			defer shutdown(log, "health", hs.Stop)
		}
	}

	// Modules mount their routes during startup, so the API server is
	// started from inside startFunc.
	startFunc := func() (func(), error) {
		if err := mono.StartModules(ctx, modules...); err != nil {
			return nil, fmt.Errorf("failed to start modules: %w", err)
		}
		stopAPI := func() {}
		if cfg.HTTP.Enabled {
			srv := &http.Server{
				Addr:         cfg.HTTP.Addr,
				Handler:      mono.Handler(),
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
			}
			go func() {
				log.Info(ctx, "api server started", "addr", cfg.HTTP.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error(ctx, "api server stopped", "error", err)
				}
			}()
			stopAPI = func() { shutdown(log, "api", srv.Shutdown) }
		}
		if err := ex.Start(ctx); err != nil {
			stopAPI()
			return nil, fmt.Errorf("failed to start explorer: %w", err)
		}
		return stopAPI, nil
	}

	if tuiMode {
		return runTUI(ctx, cfg, ex, startFunc)
	}
	return runCLI(ctx, ex, startFunc, log)
}

func runCLI(ctx context.Context, ex *explorerApp.Explorer, startFunc func() (func(), error), log *logger.Logger) error {
	stopAPI, err := startFunc()
	if err != nil {
		return err
	}
	defer stopAPI()

	log.Info(ctx, "all modules started, following new heads")

	done := make(chan error, 1)
	go func() { done <- ex.Wait() }()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-done:
		// The loop only ends on its own when it gives up on the node.
		runErr = err
	}

	log.Info(ctx, "shutting down")
	if err := ex.Stop(); err != nil {
		log.Error(ctx, "error stopping explorer", "error", err)
	}
	return runErr
}

func runTUI(ctx context.Context, cfg *config.Config, ex *explorerApp.Explorer, startFunc func() (func(), error)) error {
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New(
		ui.WithSearch(ex.Search),
		ui.WithRecentHeads(cfg.Explorer.RecentHeads),
	), tea.WithAltScreen())
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		stopAPI, err := startFunc()
		if err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}
		defer stopAPI()

		done := make(chan error, 1)
		go func() { done <- ex.Wait() }()

		select {
		case <-ctx.Done():
			errCh <- nil
		case err := <-done:
			if err != nil {
				ui.Send(ui.ErrorMsg{Error: err})
			}
			errCh <- err
		}
		_ = ex.Stop()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func startTelemetry(ctx context.Context, cfg *config.Config, log *logger.Logger) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	headers, err := apm.ParseHeaders(cfg.Telemetry.OTLPHeaders)
	if err != nil {
		return nil, fmt.Errorf("telemetry headers: %w", err)
	}

	tp, err := apm.NewTraceProvider(apm.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Exporter:    apm.Exporter(cfg.Telemetry.TraceExporter),
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     headers,
		Insecure:    cfg.Telemetry.OTLPInsecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}, log)
	if err != nil {
		return nil, err
	}

	mp, err := metrics.NewProvider(ctx, metrics.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Exporters:   []metrics.Exporter{metrics.Exporter(cfg.Telemetry.MetricsExporter)},
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     headers,
		Insecure:    cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		_ = tp.Stop()
		return nil, err
	}

	ms := metrics.NewServer(cfg.Telemetry.PrometheusPort, mp, log)
	ms.Start()

	return func() {
		shutdown(log, "metrics", ms.Stop)
		shutdown(log, "meter provider", mp.Shutdown)
		if err := tp.Stop(); err != nil {
			log.Error(context.Background(), "failed to stop trace provider", "error", err)
		}
	}, nil
}

// nodeCheck reports the node session as a health check.
func nodeCheck(ex *explorerApp.Explorer) health.CheckFunc {
	return func(context.Context) (bool, string) {
		st := ex.Status()
		if !st.Connection.Connected {
			msg := string(st.Connection.Status)
			if st.Connection.Error != "" {
				msg += ": " + st.Connection.Error
			}
			return false, msg
		}
		msg := st.Connection.ChainName
		if st.LatestHead != nil {
			msg = fmt.Sprintf("%s at #%d", msg, st.LatestHead.Number)
		}
		return true, msg
	}
}

func shutdown(log *logger.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.Error(ctx, "shutdown failed", "component", name, "error", err)
	}
}
