// Package ui provides the Bubble Tea TUI for the explorer.
package ui

import (
	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
	explorerDomain "github.com/fd1az/substrate-explorer/business/explorer/domain"
)

// Message types for TUI updates

// HeadMsg is sent for every new best-block header.
type HeadMsg struct {
	Header chainDomain.Header
}

// ConnectionStateMsg is sent when the node connection changes.
type ConnectionStateMsg struct {
	State chainDomain.ConnectionState
}

// LookupResultMsg carries the outcome of a search started from the TUI.
type LookupResultMsg struct {
	Query  string
	Result explorerDomain.SearchResult
	Err    error
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "failed"
	Message string // Optional message
}
