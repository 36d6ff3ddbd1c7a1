// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HeadRow is one new head in the list.
type HeadRow struct {
	Number   uint64
	Hash     string
	Parent   string
	Received time.Time
}

// HeadsComponent renders the latest heads, newest first.
type HeadsComponent struct {
	rows    []HeadRow
	maxRows int
	offset  int
}

// NewHeadsComponent creates a new heads component.
func NewHeadsComponent(maxRows int) *HeadsComponent {
	return &HeadsComponent{
		rows:    make([]HeadRow, 0, maxRows),
		maxRows: maxRows,
	}
}

// Add puts row at the top of the list. A repeat of the top hash is ignored.
func (h *HeadsComponent) Add(row HeadRow) {
	if len(h.rows) > 0 && h.rows[0].Hash == row.Hash {
		return
	}
	h.rows = append([]HeadRow{row}, h.rows...)
	if len(h.rows) > h.maxRows {
		h.rows = h.rows[:h.maxRows]
	}
}

// Clear drops every row.
func (h *HeadsComponent) Clear() {
	h.rows = h.rows[:0]
	h.offset = 0
}

func (h *HeadsComponent) Len() int { return len(h.rows) }

// Latest returns the top row.
func (h *HeadsComponent) Latest() (HeadRow, bool) {
	if len(h.rows) == 0 {
		return HeadRow{}, false
	}
	return h.rows[0], true
}

func (h *HeadsComponent) ScrollUp() {
	if h.offset > 0 {
		h.offset--
	}
}

func (h *HeadsComponent) ScrollDown() {
	if h.offset < len(h.rows)-1 {
		h.offset++
	}
}

// View renders at most visible rows starting at the scroll offset.
func (h *HeadsComponent) View(visible int) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	numberStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")).Bold(true)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("NEW HEADS (last %d)", h.maxRows)))
	sb.WriteString("\n\n")

	if len(h.rows) == 0 {
		sb.WriteString(mutedStyle.Render("  Waiting for blocks..."))
		return sb.String()
	}

	end := min(h.offset+visible, len(h.rows))
	for _, row := range h.rows[h.offset:end] {
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			numberStyle.Render(fmt.Sprintf("#%-9d", row.Number)),
			Abbrev(row.Hash, 10, 8),
			mutedStyle.Render(row.Received.Format("15:04:05")),
		))
	}
	if len(h.rows) > visible {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("  %d-%d of %d", h.offset+1, end, len(h.rows))))
	}
	return sb.String()
}

// Abbrev shortens s to its first head and last tail characters.
func Abbrev(s string, head, tail int) string {
	if len(s) <= head+tail+1 {
		return s
	}
	return s[:head] + "…" + s[len(s)-tail:]
}
