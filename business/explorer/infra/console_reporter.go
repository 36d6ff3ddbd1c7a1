// Package infra contains infrastructure adapters for the explorer context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
)

// ConsoleReporter implements Reporter for CLI output. Writes are serialized
// so each report lands on out as one whole line.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsoleReporter creates a new ConsoleReporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout)
}

// NewConsoleReporterTo creates a ConsoleReporter writing to out.
func NewConsoleReporterTo(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out, now: time.Now}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Substrate Explorer Started")
	fmt.Fprintln(r.out, "==========================")
	return nil
}

// ReportHead prints one line per new head.
func (r *ConsoleReporter) ReportHead(h chainDomain.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%s] #%-10d %s (parent %s)\n",
		r.stamp(), h.Number, h.Hash.Hex(), short(h.ParentHash.Hex()))
}

// UpdateConnection prints connection state changes.
func (r *ConsoleReporter) UpdateConnection(s chainDomain.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case s.Connected:
		fmt.Fprintf(r.out, "[%s] connected to %s: %s on %s %s (ss58 %d, %s)\n",
			r.stamp(), s.Endpoint, s.ChainName, s.NodeName, s.NodeVersion, s.SS58Format, s.TokenSymbol)
	case s.Error != "":
		fmt.Fprintf(r.out, "[%s] %s %s: %s\n", r.stamp(), s.Status, s.Endpoint, s.Error)
	default:
		fmt.Fprintf(r.out, "[%s] %s %s\n", r.stamp(), s.Status, s.Endpoint)
	}
}

// ReportError prints a recovered failure.
func (r *ConsoleReporter) ReportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%s] error: %v\n", r.stamp(), err)
}

// Stop prints the farewell line.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Substrate Explorer Stopped")
	return nil
}

func (r *ConsoleReporter) stamp() string {
	return r.now().Format("15:04:05")
}

// short abbreviates a 0x hash to its first and last four digits.
func short(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:6] + "…" + hash[len(hash)-4:]
}
