package infra

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/business/explorer/app"
	"github.com/fd1az/substrate-explorer/pkg/ui"
)

var (
	_ app.Reporter = (*ConsoleReporter)(nil)
	_ app.Reporter = (*TUIReporter)(nil)
)

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf)
	r.now = func() time.Time { return time.Date(2024, 1, 1, 12, 30, 5, 0, time.UTC) }

	require.NoError(t, r.Start(context.Background()))
	r.ReportHead(chainDomain.Header{
		Number:     42,
		Hash:       common.HexToHash("0x" + strings.Repeat("ab", 32)),
		ParentHash: common.HexToHash("0x" + strings.Repeat("cd", 32)),
	})
	r.UpdateConnection(chainDomain.ConnectionState{
		Status:      chainDomain.StatusConnected,
		Connected:   true,
		Endpoint:    "ws://127.0.0.1:9944",
		ChainName:   "Development",
		NodeName:    "Substrate Node",
		NodeVersion: "4.0.0",
		SS58Format:  42,
		TokenSymbol: "UNIT",
	})
	r.UpdateConnection(chainDomain.Disconnected("ws://127.0.0.1:9944", errors.New("refused")))
	r.ReportError(errors.New("boom"))
	require.NoError(t, r.Stop())

	out := buf.String()
	assert.Contains(t, out, "Substrate Explorer Started")
	assert.Contains(t, out, "[12:30:05] #42 ")
	assert.Contains(t, out, "0x"+strings.Repeat("ab", 32))
	assert.Contains(t, out, "parent 0xcdcd…cdcd")
	assert.Contains(t, out, "connected to ws://127.0.0.1:9944: Development on Substrate Node 4.0.0 (ss58 42, UNIT)")
	assert.Contains(t, out, "disconnected ws://127.0.0.1:9944: refused")
	assert.Contains(t, out, "error: boom")
	assert.Contains(t, out, "Substrate Explorer Stopped")
}

func TestTUIReporter(t *testing.T) {
	var msgs []tea.Msg
	r := NewTUIReporterWith(func(m tea.Msg) { msgs = append(msgs, m) })

	h := chainDomain.Header{Number: 7}
	st := chainDomain.ConnectionState{Status: chainDomain.StatusConnecting}
	boom := errors.New("boom")

	require.NoError(t, r.Start(context.Background()))
	r.ReportHead(h)
	r.UpdateConnection(st)
	r.ReportError(boom)
	require.NoError(t, r.Stop())

	require.Len(t, msgs, 5)
	assert.IsType(t, ui.StartupMsg{}, msgs[0])
	assert.Equal(t, ui.HeadMsg{Header: h}, msgs[1])
	assert.Equal(t, ui.ConnectionStateMsg{State: st}, msgs[2])
	assert.Equal(t, ui.ErrorMsg{Error: boom}, msgs[3])
	assert.IsType(t, ui.LogMsg{}, msgs[4])
}

// overlapWriter records whether two writes were ever in flight at once.
type overlapWriter struct {
	busy    atomic.Bool
	overlap atomic.Bool
	lines   atomic.Int64
}

func (w *overlapWriter) Write(p []byte) (int, error) {
	if !w.busy.CompareAndSwap(false, true) {
		w.overlap.Store(true)
		return len(p), nil
	}
	time.Sleep(50 * time.Microsecond)
	w.lines.Add(int64(strings.Count(string(p), "\n")))
	w.busy.Store(false)
	return len(p), nil
}

func TestConsoleReporter_ConcurrentReports(t *testing.T) {
	var w overlapWriter
	r := NewConsoleReporterTo(&w)

	const perKind = 50
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < perKind; i++ {
			r.ReportHead(chainDomain.Header{Number: uint64(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perKind; i++ {
			r.UpdateConnection(chainDomain.ConnectionState{Status: chainDomain.StatusConnecting, Endpoint: "ws://node"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perKind; i++ {
			r.ReportError(errors.New("boom"))
		}
	}()
	wg.Wait()

	assert.False(t, w.overlap.Load(), "reporter writes interleaved")
	assert.Equal(t, int64(3*perKind), w.lines.Load())
}
