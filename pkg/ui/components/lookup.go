package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/substrate-explorer/internal/asset"
)

// ExtrinsicRow is one extrinsic of a looked-up block.
type ExtrinsicRow struct {
	Index  int
	Call   string // section.method
	Signer string // empty when unsigned
	Hash   string
}

// BlockView is a looked-up block.
type BlockView struct {
	Number         uint64
	Hash           string
	Parent         string
	StateRoot      string
	ExtrinsicsRoot string
	HeaderOnly     bool
	Extrinsics     []ExtrinsicRow
}

// AccountView is a looked-up account with balances already formatted.
type AccountView struct {
	Address      string
	Nonce        uint32
	Consumers    uint32
	Providers    uint32
	Sufficients  uint32
	Free         string
	Reserved     string
	Frozen       string
	Transferable string
}

// LookupComponent renders the outcome of the last search.
type LookupComponent struct {
	query   string
	pending bool
	block   *BlockView
	account *AccountView
	err     string
	unknown bool
	maxRows int
}

func NewLookupComponent(maxRows int) *LookupComponent {
	return &LookupComponent{maxRows: maxRows}
}

// Pending marks a search for query as in flight.
func (l *LookupComponent) Pending(query string) {
	*l = LookupComponent{query: query, pending: true, maxRows: l.maxRows}
}

func (l *LookupComponent) ShowBlock(query string, b BlockView) {
	*l = LookupComponent{query: query, block: &b, maxRows: l.maxRows}
}

func (l *LookupComponent) ShowAccount(query string, a AccountView) {
	*l = LookupComponent{query: query, account: &a, maxRows: l.maxRows}
}

func (l *LookupComponent) ShowUnknown(query string) {
	*l = LookupComponent{query: query, unknown: true, maxRows: l.maxRows}
}

func (l *LookupComponent) ShowError(query, msg string) {
	*l = LookupComponent{query: query, err: msg, maxRows: l.maxRows}
}

func (l *LookupComponent) Clear() {
	*l = LookupComponent{maxRows: l.maxRows}
}

// Empty reports whether there is nothing to show.
func (l *LookupComponent) Empty() bool {
	return l.query == ""
}

func (l *LookupComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	signedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("LOOKUP"))
	if l.query != "" {
		sb.WriteString(labelStyle.Render("  " + Abbrev(l.query, 20, 8)))
	}
	sb.WriteString("\n\n")

	field := func(label, value string) {
		sb.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label)), valueStyle.Render(value)))
	}

	switch {
	case l.Empty():
		sb.WriteString(labelStyle.Render("  Press / to search a height, block hash or address"))
	case l.pending:
		sb.WriteString(labelStyle.Render("  Searching..."))
	case l.err != "":
		sb.WriteString(errorStyle.Render("  " + l.err))
	case l.unknown:
		sb.WriteString(labelStyle.Render("  No block with this hash"))
	case l.account != nil:
		a := l.account
		field("Address", a.Address)
		field("Nonce", fmt.Sprintf("%d", a.Nonce))
		field("Free", a.Free)
		field("Reserved", a.Reserved)
		field("Frozen", a.Frozen)
		field("Transferable", a.Transferable)
		field("Refs", fmt.Sprintf("consumers %d, providers %d, sufficients %d", a.Consumers, a.Providers, a.Sufficients))
	case l.block != nil:
		b := l.block
		field("Block", fmt.Sprintf("#%d", b.Number))
		field("Hash", b.Hash)
		field("Parent", b.Parent)
		field("State root", Abbrev(b.StateRoot, 18, 8))
		if b.HeaderOnly {
			sb.WriteString(labelStyle.Render("  Header only; body not available"))
			break
		}
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %d extrinsics", len(b.Extrinsics))))
		sb.WriteString("\n")
		for i, x := range b.Extrinsics {
			if i == l.maxRows {
				sb.WriteString(labelStyle.Render(fmt.Sprintf("  … %d more", len(b.Extrinsics)-i)))
				break
			}
			signer := ""
			if x.Signer != "" {
				signer = signedStyle.Render(" by " + Abbrev(x.Signer, 8, 6))
			}
			sb.WriteString(fmt.Sprintf("  %3d  %-32s%s\n", x.Index, x.Call, signer))
		}
	}
	return sb.String()
}

// FormatBalance renders raw, a base-10 amount of the smallest unit, in
// whole tokens. raw is returned unchanged when it is not a number.
func FormatBalance(raw string, decimals uint8, symbol string) string {
	a, err := asset.ParseAmount(asset.Token{Symbol: symbol, Decimals: decimals}, raw)
	if err != nil {
		return raw
	}
	return a.String()
}

// Transferable renders free minus frozen, floored at zero.
func Transferable(free, frozen string, decimals uint8, symbol string) string {
	tok := asset.Token{Symbol: symbol, Decimals: decimals}
	f, err := asset.ParseAmount(tok, free)
	if err != nil {
		return "n/a"
	}
	fz, err := asset.ParseAmount(tok, frozen)
	if err != nil {
		return "n/a"
	}
	t, err := f.SaturatingSub(fz)
	if err != nil {
		return "n/a"
	}
	return t.String()
}
