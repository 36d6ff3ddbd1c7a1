package ui

import (
	"github.com/charmbracelet/lipgloss"

	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
)

var (
	ColorPrimary   = lipgloss.Color("#E6007A") // Polkadot pink
	ColorSecondary = lipgloss.Color("#10B981")
	ColorDanger    = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorBorder    = lipgloss.Color("#374151")
)

var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorPrimary).
			Padding(0, 2)

	SearchStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1)

	MutedValue       = lipgloss.NewStyle().Foreground(ColorMuted)
	ErrorStyle       = lipgloss.NewStyle().Foreground(ColorDanger)
	ErrorHeaderStyle = ErrorStyle.Bold(true)
	HelpStyle        = MutedValue.Padding(0, 1)
)

// connectionBadges maps a session status to its status-bar badge.
var connectionBadges = map[chainDomain.ConnectionStatus]struct {
	glyph string
	style lipgloss.Style
}{
	chainDomain.StatusConnected:    {"●", lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)},
	chainDomain.StatusConnecting:   {"◐", lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)},
	chainDomain.StatusDisconnected: {"○", lipgloss.NewStyle().Foreground(ColorDanger).Bold(true)},
}

// connectionBadge renders label with the glyph and colour of status.
func connectionBadge(status chainDomain.ConnectionStatus, label string) string {
	b, ok := connectionBadges[status]
	if !ok {
		b = connectionBadges[chainDomain.StatusDisconnected]
	}
	return b.style.Render(b.glyph + " " + label)
}
