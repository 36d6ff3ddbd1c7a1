// Package domain contains the core domain types for the explorer context.
package domain

import (
	"sync"

	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
)

// HeadLog keeps the most recent headers, newest first.
type HeadLog struct {
	mu    sync.RWMutex
	limit int
	heads []chainDomain.Header
}

// NewHeadLog creates a log holding at most limit headers.
func NewHeadLog(limit int) *HeadLog {
	if limit < 1 {
		limit = 1
	}
	return &HeadLog{limit: limit, heads: make([]chainDomain.Header, 0, limit)}
}

// Push records h as the newest header. A repeat of the newest hash is
// ignored and reports false.
func (l *HeadLog) Push(h chainDomain.Header) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.heads) > 0 && l.heads[0].Hash == h.Hash {
		return false
	}
	if len(l.heads) < l.limit {
		l.heads = append(l.heads, chainDomain.Header{})
	}
	copy(l.heads[1:], l.heads)
	l.heads[0] = h
	return true
}

// List returns a copy of the recorded headers, newest first.
func (l *HeadLog) List() []chainDomain.Header {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]chainDomain.Header, len(l.heads))
	copy(out, l.heads)
	return out
}

// Latest returns the newest header.
func (l *HeadLog) Latest() (chainDomain.Header, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.heads) == 0 {
		return chainDomain.Header{}, false
	}
	return l.heads[0], true
}

func (l *HeadLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.heads)
}

// Reset drops every recorded header.
func (l *HeadLog) Reset() {
	l.mu.Lock()
	l.heads = l.heads[:0]
	l.mu.Unlock()
}
