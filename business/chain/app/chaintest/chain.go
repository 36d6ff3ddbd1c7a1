// Package chaintest provides an in-memory app.Chain for tests of its consumers.
package chaintest

import (
	"context"
	"sync"

	"github.com/fd1az/substrate-explorer/business/chain/app"
	"github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
)

var _ app.Chain = (*Chain)(nil)

// Chain is a scriptable app.Chain. Blocks, Accounts and ConnectErrs are read
// under the lock; tests set them before use.
type Chain struct {
	mu sync.Mutex

	// ConnectErrs are returned by successive Connect calls before it succeeds.
	ConnectErrs []error
	// Identity is the connected state returned by Connect.
	Identity domain.ConnectionState
	Blocks   []*domain.Block
	Accounts map[string]*domain.Account
	// SubscribeErr, when set, fails SubscribeNewHeads.
	SubscribeErr error

	state    domain.ConnectionState
	connects int
	watchers map[int]chan domain.ConnectionState
	nextID   int
	streams  []*Stream
	streamCh chan *Stream
}

// New returns a disconnected chain.
func New() *Chain {
	return &Chain{
		Identity: domain.ConnectionState{
			Status:    domain.StatusConnected,
			Connected: true,
			ChainName: "Development",
			NodeName:  "Substrate Node",
		},
		Accounts: make(map[string]*domain.Account),
		state:    domain.Disconnected("", nil),
		watchers: make(map[int]chan domain.ConnectionState),
		streamCh: make(chan *Stream, 16),
	}
}

func (c *Chain) Connect(_ context.Context, endpoint string) (domain.ConnectionState, error) {
	c.mu.Lock()
	c.connects++
	if len(c.ConnectErrs) > 0 {
		err := c.ConnectErrs[0]
		c.ConnectErrs = c.ConnectErrs[1:]
		c.setStateLocked(domain.Disconnected(endpoint, err))
		c.mu.Unlock()
		return c.state, err
	}
	st := c.Identity
	st.Endpoint = endpoint
	c.setStateLocked(st)
	c.mu.Unlock()
	return st, nil
}

// Connects returns how many times Connect was called.
func (c *Chain) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *Chain) Disconnect() error {
	c.Drop()
	return nil
}

// Drop ends the session, closing every live head stream with err
// NOT_CONNECTED as a lost connection would.
func (c *Chain) Drop() {
	c.mu.Lock()
	streams := c.streams
	c.streams = nil
	c.setStateLocked(domain.Disconnected(c.state.Endpoint, nil))
	c.mu.Unlock()

	for _, s := range streams {
		s.end(apperror.NotConnected("connection lost"))
	}
}

func (c *Chain) setStateLocked(st domain.ConnectionState) {
	c.state = st
	for _, w := range c.watchers {
		select {
		case w <- st:
		default:
		}
	}
}

func (c *Chain) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Chain) WatchState() (<-chan domain.ConnectionState, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	ch := make(chan domain.ConnectionState, 16)
	c.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Chain) connected() error {
	if !c.state.Connected {
		return apperror.NotConnected("no active session")
	}
	return nil
}

func (c *Chain) GetBlock(_ context.Context, sel domain.Selector) (*domain.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connected(); err != nil {
		return nil, err
	}
	for _, b := range c.Blocks {
		if (sel.IsHash() && b.Hash == sel.Hash()) || (!sel.IsHash() && b.Number == sel.Height()) {
			return b, nil
		}
	}
	return nil, apperror.NotFound(apperror.CodeBlockNotFound, sel.String())
}

func (c *Chain) LatestHeader(_ context.Context) (*domain.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connected(); err != nil {
		return nil, err
	}
	if len(c.Blocks) == 0 {
		return nil, apperror.NotFound(apperror.CodeBlockNotFound, "no blocks")
	}
	h := c.Blocks[len(c.Blocks)-1].Header
	return &h, nil
}

func (c *Chain) FinalizedHeader(ctx context.Context) (*domain.Header, error) {
	return c.LatestHeader(ctx)
}

func (c *Chain) GetAccount(_ context.Context, address string) (*domain.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connected(); err != nil {
		return nil, err
	}
	acc, ok := c.Accounts[address]
	if !ok {
		return nil, apperror.Validation(apperror.CodeInvalidAddress, address)
	}
	return acc, nil
}

func (c *Chain) ResolveHash(_ context.Context, hash string) (domain.LookupResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	unknown := domain.LookupResult{Type: domain.LookupUnknown}
	if err := c.connected(); err != nil {
		return unknown, err
	}
	h, err := domain.ParseHash(hash)
	if err != nil {
		return unknown, nil
	}
	for _, b := range c.Blocks {
		if b.Hash == h {
			return domain.LookupResult{Type: domain.LookupBlock, Data: b}, nil
		}
	}
	return unknown, nil
}

func (c *Chain) SubscribeNewHeads(_ context.Context) (app.HeadStream, error) {
	c.mu.Lock()
	if err := c.connected(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.SubscribeErr != nil {
		err := c.SubscribeErr
		c.mu.Unlock()
		return nil, err
	}
	s := &Stream{
		headers: make(chan domain.Header, 64),
		errc:    make(chan error, 1),
	}
	c.streams = append(c.streams, s)
	c.mu.Unlock()

	c.streamCh <- s
	return s, nil
}

// NextStream returns the next stream opened by SubscribeNewHeads.
func (c *Chain) NextStream(ctx context.Context) (*Stream, error) {
	select {
	case s := <-c.streamCh:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stream is a head subscription fed by the test.
type Stream struct {
	mu           sync.Mutex
	closed       bool
	unsubscribed bool
	headers      chan domain.Header
	errc         chan error
}

// Push delivers h unless the stream has ended.
func (s *Stream) Push(h domain.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.headers <- h
	}
}

func (s *Stream) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err != nil {
		s.errc <- err
	}
	close(s.errc)
	close(s.headers)
}

// Unsubscribed reports whether Unsubscribe was called.
func (s *Stream) Unsubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

func (s *Stream) Headers() <-chan domain.Header { return s.headers }
func (s *Stream) Err() <-chan error             { return s.errc }

func (s *Stream) Unsubscribe() error {
	s.mu.Lock()
	s.unsubscribed = true
	s.mu.Unlock()
	s.end(nil)
	return nil
}
