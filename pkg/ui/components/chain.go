package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ChainInfo is the identity of the connected node.
type ChainInfo struct {
	Endpoint      string
	Status        string
	Connected     bool
	Chain         string
	NodeName      string
	NodeVersion   string
	SpecName      string
	SpecVersion   uint32
	SS58Format    uint16
	TokenSymbol   string
	TokenDecimals uint8
	Error         string
}

// ChainComponent renders the connection and chain identity.
type ChainComponent struct {
	info ChainInfo
}

func NewChainComponent() *ChainComponent {
	return &ChainComponent{info: ChainInfo{Status: "disconnected"}}
}

// Update replaces the displayed state.
func (c *ChainComponent) Update(info ChainInfo) {
	c.info = info
}

func (c *ChainComponent) Info() ChainInfo {
	return c.info
}

func (c *ChainComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("CHAIN"))
	sb.WriteString("\n\n")

	status := "○ " + c.info.Status
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	switch {
	case c.info.Connected:
		status = "● connected"
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	case c.info.Status == "connecting":
		status = "◐ connecting"
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	}

	line := func(label, value string) {
		if value == "" {
			return
		}
		sb.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render(fmt.Sprintf("%-9s", label)), valueStyle.Render(value)))
	}

	sb.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render(fmt.Sprintf("%-9s", "Status")), style.Render(status)))
	line("Endpoint", c.info.Endpoint)
	if !c.info.Connected {
		if c.info.Error != "" {
			sb.WriteString("  " + style.Render(c.info.Error) + "\n")
		}
		return sb.String()
	}

	line("Chain", c.info.Chain)
	line("Node", strings.TrimSpace(c.info.NodeName+" "+c.info.NodeVersion))
	if c.info.SpecName != "" {
		line("Runtime", fmt.Sprintf("%s/%d", c.info.SpecName, c.info.SpecVersion))
	}
	line("SS58", fmt.Sprintf("%d", c.info.SS58Format))
	if c.info.TokenSymbol != "" {
		line("Token", fmt.Sprintf("%s (%d decimals)", c.info.TokenSymbol, c.info.TokenDecimals))
	}
	return sb.String()
}
