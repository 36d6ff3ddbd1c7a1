package infra

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/pkg/ui"
)

// TUIReporter implements Reporter for the Bubble Tea TUI by forwarding
// every event as a message to the running program.
type TUIReporter struct {
	send func(tea.Msg)
}

// NewTUIReporter creates a TUIReporter sending to ui.Program.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{send: ui.Send}
}

// NewTUIReporterWith creates a TUIReporter using send.
func NewTUIReporterWith(send func(tea.Msg)) *TUIReporter {
	return &TUIReporter{send: send}
}

func (r *TUIReporter) Start(ctx context.Context) error {
	r.send(ui.StartupMsg{Step: "Explorer", Status: "connecting", Message: "following new heads"})
	return nil
}

func (r *TUIReporter) ReportHead(h chainDomain.Header) {
	r.send(ui.HeadMsg{Header: h})
}

func (r *TUIReporter) UpdateConnection(s chainDomain.ConnectionState) {
	r.send(ui.ConnectionStateMsg{State: s})
}

func (r *TUIReporter) ReportError(err error) {
	r.send(ui.ErrorMsg{Error: err})
}

func (r *TUIReporter) Stop() error {
	r.send(ui.LogMsg{Level: "info", Message: "explorer stopped"})
	return nil
}
