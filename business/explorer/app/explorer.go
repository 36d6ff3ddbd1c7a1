package app

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	chainApp "github.com/fd1az/substrate-explorer/business/chain/app"
	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/business/explorer/domain"
	"github.com/fd1az/substrate-explorer/internal/apm"
	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/logger"
)

const meterName = "github.com/fd1az/substrate-explorer/business/explorer/app"

// watcherBuffer bounds each WatchHeads channel; slow watchers miss heads.
const watcherBuffer = 64

// ErrGaveUp is reported when MaxReconnects consecutive attempts failed.
var ErrGaveUp = errors.New("explorer: giving up on node connection")

// Config holds the explorer settings.
type Config struct {
	Endpoint       string
	RecentHeads    int
	MaxReconnects  int // 0 = retry forever
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c *Config) withDefaults() {
	if c.RecentHeads < 1 {
		c.RecentHeads = 10
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
}

// Explorer keeps a node session alive, follows new heads, and answers
// searches against the chain.
type Explorer struct {
	chain    chainApp.Chain
	reporter Reporter
	config   Config
	logger   logger.LoggerInterface
	heads    *domain.HeadLog
	tracer   apm.Tracer

	reconnects atomic.Int64
	attempts   metric.Int64Counter
	searches   metric.Int64Counter

	watchMu  sync.Mutex
	watchers map[int]chan chainDomain.Header
	nextID   int

	runMu   sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	stopped bool
}

// NewExplorer creates a new Explorer.
func NewExplorer(chain chainApp.Chain, reporter Reporter, cfg Config, log logger.LoggerInterface) (*Explorer, error) {
	cfg.withDefaults()

	meter := otel.Meter(meterName)
	attempts, err := meter.Int64Counter("explorer_connect_attempts_total",
		metric.WithDescription("Node connection attempts by outcome"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		return nil, err
	}
	searches, err := meter.Int64Counter("explorer_searches_total",
		metric.WithDescription("Searches by result type"),
		metric.WithUnit("{search}"))
	if err != nil {
		return nil, err
	}

	return &Explorer{
		chain:    chain,
		reporter: reporter,
		config:   cfg,
		logger:   log,
		heads:    domain.NewHeadLog(cfg.RecentHeads),
		tracer:   apm.NewTracer(meterName),
		attempts: attempts,
		searches: searches,
		watchers: make(map[int]chan chainDomain.Header),
	}, nil
}

// Start starts the reporter and the background connection loop. It does not
// wait for the node.
func (e *Explorer) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.group != nil || e.stopped {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("explorer already started"))
	}

	if err := e.reporter.Start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	e.cancel = cancel
	e.group = g

	states, unwatch := e.chain.WatchState()
	g.Go(func() error {
		defer unwatch()
		e.forwardStates(gctx, states)
		return nil
	})
	g.Go(func() error {
		return e.run(gctx)
	})

	e.logger.Info(ctx, "explorer started", "endpoint", e.config.Endpoint)
	return nil
}

func (e *Explorer) forwardStates(ctx context.Context, states <-chan chainDomain.ConnectionState) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			e.reporter.UpdateConnection(st)
		}
	}
}

// run connects, follows heads until the stream ends, and reconnects with
// exponential backoff. It returns ErrGaveUp after MaxReconnects consecutive
// failed attempts.
func (e *Explorer) run(ctx context.Context) error {
	backoff := e.config.InitialBackoff
	failures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		_, err := e.chain.Connect(ctx, e.config.Endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			e.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
			e.logger.Warn(ctx, "node connection failed",
				"endpoint", e.config.Endpoint,
				"attempt", failures,
				"retry_in", backoff,
				"error", err,
			)
			e.reporter.ReportError(err)

			if e.config.MaxReconnects > 0 && failures >= e.config.MaxReconnects {
				e.logger.Error(ctx, "giving up on node connection", "attempts", failures)
				e.reporter.ReportError(ErrGaveUp)
				return ErrGaveUp
			}
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, e.config.MaxBackoff)
			continue
		}

		e.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "connected")))
		failures = 0
		backoff = e.config.InitialBackoff

		e.follow(ctx)

		if ctx.Err() != nil {
			return nil
		}
		// Session ended underneath us - try to reconnect
		e.reconnects.Add(1)
		if !sleep(ctx, e.config.InitialBackoff) {
			return nil
		}
	}
}

// follow seeds the head log with the best header and consumes the head
// subscription until it ends.
func (e *Explorer) follow(ctx context.Context) {
	e.heads.Reset()

	if h, err := e.chain.LatestHeader(ctx); err == nil {
		e.onHead(*h)
	} else {
		e.logger.Warn(ctx, "latest header unavailable", "error", err)
	}

	stream, err := e.chain.SubscribeNewHeads(ctx)
	if err != nil {
		e.logger.Error(ctx, "subscribe new heads failed", "error", err)
		e.reporter.ReportError(err)
		return
	}
	defer func() { _ = stream.Unsubscribe() }()

	e.logger.Info(ctx, "subscribed to new heads")

	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-stream.Headers():
			if !ok {
				if err := <-stream.Err(); err != nil {
					e.logger.Warn(ctx, "head subscription ended", "error", err)
					e.reporter.ReportError(err)
				}
				return
			}
			e.onHead(h)
		}
	}
}

func (e *Explorer) onHead(h chainDomain.Header) {
	if !e.heads.Push(h) {
		return
	}
	e.reporter.ReportHead(h)

	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	for _, w := range e.watchers {
		select {
		case w <- h:
		default:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Stop cancels the connection loop, waits for it, and stops the reporter.
func (e *Explorer) Stop() error {
	e.runMu.Lock()
	if e.stopped {
		e.runMu.Unlock()
		return nil
	}
	e.stopped = true
	cancel, g := e.cancel, e.group
	e.runMu.Unlock()

	e.logger.Info(context.Background(), "stopping explorer")

	var errs []error
	if g != nil {
		cancel()
		if err := g.Wait(); err != nil && !errors.Is(err, ErrGaveUp) {
			errs = append(errs, err)
		}
	}

	e.watchMu.Lock()
	for id, w := range e.watchers {
		close(w)
		delete(e.watchers, id)
	}
	e.watchMu.Unlock()

	if err := e.reporter.Stop(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Wait blocks until the connection loop exits and returns its error.
func (e *Explorer) Wait() error {
	e.runMu.Lock()
	g := e.group
	e.runMu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// RecentHeads returns the latest heads, newest first.
func (e *Explorer) RecentHeads() []chainDomain.Header {
	return e.heads.List()
}

// Status returns a snapshot of the connection and head log.
func (e *Explorer) Status() domain.Status {
	st := domain.Status{
		Connection: e.chain.State(),
		Heads:      e.heads.Len(),
		Reconnects: int(e.reconnects.Load()),
	}
	if h, ok := e.heads.Latest(); ok {
		st.LatestHead = &h
	}
	return st
}

// WatchHeads streams heads as they are recorded until cancel is called or
// the explorer stops. Heads are dropped for a watcher that falls behind.
func (e *Explorer) WatchHeads() (<-chan chainDomain.Header, func()) {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()

	ch := make(chan chainDomain.Header, watcherBuffer)
	id := e.nextID
	e.nextID++
	e.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.watchMu.Lock()
			defer e.watchMu.Unlock()
			if w, ok := e.watchers[id]; ok {
				close(w)
				delete(e.watchers, id)
			}
		})
	}
}

// Block returns the block at sel.
func (e *Explorer) Block(ctx context.Context, sel chainDomain.Selector) (*chainDomain.Block, error) {
	return e.chain.GetBlock(ctx, sel)
}

// Account returns the account at address.
func (e *Explorer) Account(ctx context.Context, address string) (*chainDomain.Account, error) {
	return e.chain.GetAccount(ctx, address)
}

// Resolve classifies hash.
func (e *Explorer) Resolve(ctx context.Context, hash string) (chainDomain.LookupResult, error) {
	return e.chain.ResolveHash(ctx, hash)
}

// Search interprets query as a height, a hash or an address and looks it up.
// A hash that matches no block is a ResultUnknown, not an error.
func (e *Explorer) Search(ctx context.Context, query string) (domain.SearchResult, error) {
	ctx, span := e.tracer.Start(ctx, "explorer.Search", attribute.String("query", query))
	defer span.End()

	res, err := e.search(ctx, query)
	span.SetAttributes(attribute.String("result", string(res.Kind)))
	span.NoticeError(err)
	return res, err
}

func (e *Explorer) search(ctx context.Context, query string) (domain.SearchResult, error) {
	kind, q, err := domain.ClassifyQuery(query)
	if err != nil {
		return domain.SearchResult{Query: query, Kind: domain.ResultUnknown}, err
	}

	res := domain.SearchResult{Query: q, Kind: domain.ResultUnknown}
	defer func() {
		e.searches.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(res.Kind))))
	}()

	switch kind {
	case domain.QueryHeight:
		height, err := strconv.ParseUint(q, 10, 64)
		if err != nil {
			return res, apperror.Validation(apperror.CodeInvalidBlockSelector, "height out of range: "+q)
		}
		b, err := e.chain.GetBlock(ctx, chainDomain.AtHeight(height))
		if err != nil {
			return res, err
		}
		res.Kind, res.Block = domain.ResultBlock, b

	case domain.QueryHash:
		lr, err := e.chain.ResolveHash(ctx, q)
		if err != nil {
			return res, err
		}
		if lr.Type == chainDomain.LookupBlock && lr.Data != nil {
			res.Kind, res.Block = domain.ResultBlock, lr.Data
		}

	default:
		acc, err := e.chain.GetAccount(ctx, q)
		if err != nil {
			return res, err
		}
		res.Kind, res.Account = domain.ResultAccount, acc
	}
	return res, nil
}
