package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
	explorerDomain "github.com/fd1az/substrate-explorer/business/explorer/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "done", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// SearchTimeout bounds a search started from the TUI.
const SearchTimeout = 30 * time.Second

var startupOrder = []string{"config", "node", "heads"}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// SearchFunc looks up a height, block hash or address.
type SearchFunc func(ctx context.Context, query string) (explorerDomain.SearchResult, error)

// Option configures a Model.
type Option func(*Model)

// WithSearch enables the search box.
func WithSearch(fn SearchFunc) Option {
	return func(m *Model) { m.searchFn = fn }
}

// WithRecentHeads sets how many heads the dashboard keeps.
func WithRecentHeads(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.heads = components.NewHeadsComponent(n)
		}
	}
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	chain  *components.ChainComponent
	heads  *components.HeadsComponent
	lookup *components.LookupComponent
	input  textinput.Model
	help   help.Model
	keys   KeyMap

	searchFn  SearchFunc
	searching bool

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	ready     bool
	quitting  bool
	width     int
	height    int
	state     chainDomain.ConnectionState
	headCount uint64
	lastHead  time.Time
	errors    []ErrorEntry // Persistent error panel (last 3)
	logs      []string     // Recent log messages

	// Startup state
	startupComplete bool
	startupSteps    map[string]*StartupStep
	startupTime     time.Time
}

// New creates a new TUI model.
func New(opts ...Option) Model {
	now := time.Now()

	in := textinput.New()
	in.Placeholder = "block height, 0x block hash, or SS58 address"
	in.Prompt = "🔍 "
	in.CharLimit = 128
	in.Width = 60

	m := Model{
		chain:        components.NewChainComponent(),
		heads:        components.NewHeadsComponent(10),
		lookup:       components.NewLookupComponent(12),
		input:        in,
		help:         help.New(),
		keys:         DefaultKeyMap(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		state:        chainDomain.Disconnected("", nil),
		logs:         make([]string, 0, 5),
		errors:       make([]ErrorEntry, 0, 3),
		startupSteps: map[string]*StartupStep{
			"config": {Name: "Loading configuration", Status: "done"},
			"node":   {Name: "Connecting to node", Status: "pending"},
			"heads":  {Name: "Subscribing to new heads", Status: "pending"},
		},
		startupTime: now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m *Model) leaveWelcome() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.leaveWelcome()
		}
		return m, tickCmd()

	case HeadMsg:
		h := msg.Header
		m.heads.Add(components.HeadRow{
			Number:   h.Number,
			Hash:     h.Hash.Hex(),
			Parent:   h.ParentHash.Hex(),
			Received: time.Now(),
		})
		m.headCount++
		m.lastHead = time.Now()
		m.setStep("heads", "connected")
		if m.phase == PhaseStartup {
			m.phase = PhaseDashboard
		}

	case ConnectionStateMsg:
		m.state = msg.State
		m.chain.Update(chainInfo(msg.State))
		switch {
		case msg.State.Connected:
			m.setStep("node", "connected")
			m.setStep("heads", "connecting")
		case msg.State.Status == chainDomain.StatusConnecting:
			m.setStep("node", "connecting")
		case msg.State.Error != "":
			m.setStep("node", "failed")
		}

	case LookupResultMsg:
		m.showResult(msg)

	case ErrorMsg:
		if msg.Error == nil {
			break
		}
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{Message: msg.Error.Error(), Timestamp: time.Now()})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		m.setStep(msg.Step, msg.Status)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Always allow ctrl+c; q only when not typing
	if msg.String() == "ctrl+c" || (!m.searching && key.Matches(msg, m.keys.Quit)) {
		m.quitting = true
		return m, tea.Quit
	}

	// During welcome phase, any other key skips to startup
	if m.phase == PhaseWelcome {
		m.leaveWelcome()
		return m, tickCmd()
	}

	if m.searching {
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.searching = false
			m.input.Blur()
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			query := strings.TrimSpace(m.input.Value())
			m.searching = false
			m.input.Blur()
			if query == "" || m.searchFn == nil {
				return m, nil
			}
			m.lookup.Pending(query)
			return m, m.runSearch(query)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Search):
		if m.searchFn == nil {
			return m, nil
		}
		m.searching = true
		m.input.SetValue("")
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Up):
		m.heads.ScrollUp()
	case key.Matches(msg, m.keys.Down):
		m.heads.ScrollDown()
	case key.Matches(msg, m.keys.Clear):
		m.lookup.Clear()
	case key.Matches(msg, m.keys.ClearErrors):
		m.errors = make([]ErrorEntry, 0, 3)
	}
	return m, nil
}

func (m Model) runSearch(query string) tea.Cmd {
	search := m.searchFn
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), SearchTimeout)
		defer cancel()
		res, err := search(ctx, query)
		return LookupResultMsg{Query: query, Result: res, Err: err}
	}
}

func (m *Model) showResult(msg LookupResultMsg) {
	if msg.Err != nil {
		text := msg.Err.Error()
		var appErr *apperror.AppError
		if errors.As(msg.Err, &appErr) {
			text = appErr.Message
			if appErr.Context != "" {
				text += ": " + appErr.Context
			}
		}
		m.lookup.ShowError(msg.Query, text)
		return
	}

	res := msg.Result
	switch res.Kind {
	case explorerDomain.ResultBlock:
		if res.Block != nil {
			m.lookup.ShowBlock(msg.Query, blockView(res.Block))
			return
		}
	case explorerDomain.ResultAccount:
		if res.Account != nil {
			m.lookup.ShowAccount(msg.Query, m.accountView(res.Account))
			return
		}
	}
	m.lookup.ShowUnknown(msg.Query)
}

func blockView(b *chainDomain.Block) components.BlockView {
	v := components.BlockView{
		Number:         b.Number,
		Hash:           b.Hash.Hex(),
		Parent:         b.ParentHash.Hex(),
		StateRoot:      b.StateRoot.Hex(),
		ExtrinsicsRoot: b.ExtrinsicsRoot.Hex(),
		HeaderOnly:     b.HeaderOnly,
		Extrinsics:     make([]components.ExtrinsicRow, 0, len(b.Extrinsics)),
	}
	for _, x := range b.Extrinsics {
		row := components.ExtrinsicRow{Index: x.Index, Call: x.Section + "." + x.Method, Hash: x.Hash}
		if x.Signer != nil {
			row.Signer = *x.Signer
		}
		v.Extrinsics = append(v.Extrinsics, row)
	}
	return v
}

func (m Model) accountView(a *chainDomain.Account) components.AccountView {
	dec, sym := m.state.TokenDecimals, m.state.TokenSymbol
	return components.AccountView{
		Address:      a.Address,
		Nonce:        a.Nonce,
		Consumers:    a.Consumers,
		Providers:    a.Providers,
		Sufficients:  a.Sufficients,
		Free:         components.FormatBalance(a.Balance.Free, dec, sym),
		Reserved:     components.FormatBalance(a.Balance.Reserved, dec, sym),
		Frozen:       components.FormatBalance(a.Balance.Frozen, dec, sym),
		Transferable: components.Transferable(a.Balance.Free, a.Balance.Frozen, dec, sym),
	}
}

func chainInfo(s chainDomain.ConnectionState) components.ChainInfo {
	return components.ChainInfo{
		Endpoint:      s.Endpoint,
		Status:        string(s.Status),
		Connected:     s.Connected,
		Chain:         s.ChainName,
		NodeName:      s.NodeName,
		NodeVersion:   s.NodeVersion,
		SpecName:      s.SpecName,
		SpecVersion:   s.SpecVersion,
		SS58Format:    s.SS58Format,
		TokenSymbol:   s.TokenSymbol,
		TokenDecimals: s.TokenDecimals,
		Error:         s.Error,
	}
}

func (m *Model) setStep(name, status string) {
	step, ok := m.startupSteps[name]
	if !ok {
		return
	}
	step.Status = status

	for _, s := range m.startupSteps {
		if s.Status != "connected" && s.Status != "done" {
			return
		}
	}
	m.startupComplete = true
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logs = append(logs, fmt.Sprintf("[%s] %s: %s", timestamp, level, message))
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		if !m.startupComplete {
			return m.renderStartupScreen()
		}
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" ⛓  Substrate Explorer "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	visible := 10
	if m.height > 0 {
		visible = max(3, m.height-24)
	}
	left := m.chain.View() + "\n\n" + m.heads.View(visible)

	var right strings.Builder
	if m.searching {
		right.WriteString(SearchStyle.Render(m.input.View()))
		right.WriteString("\n\n")
	}
	right.WriteString(m.lookup.View())

	if m.width > 100 {
		l := BoxStyle.Width(m.width/2 - 2).Render(left)
		r := BoxStyle.Width(m.width/2 - 2).Render(right.String())
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, l, r))
	} else {
		w := max(m.width-4, 40)
		b.WriteString(BoxStyle.Width(w).Render(left))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(w).Render(right.String()))
	}
	b.WriteString("\n\n")

	// Persistent error panel (show last 3 errors)
	if len(m.errors) > 0 {
		b.WriteString(ErrorHeaderStyle.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	logo := `
   ███████╗██╗   ██╗██████╗ ███████╗████████╗██████╗  █████╗ ████████╗███████╗
   ██╔════╝██║   ██║██╔══██╗██╔════╝╚══██╔══╝██╔══██╗██╔══██╗╚══██╔══╝██╔════╝
   ███████╗██║   ██║██████╔╝███████╗   ██║   ██████╔╝███████║   ██║   █████╗
   ╚════██║██║   ██║██╔══██╗╚════██║   ██║   ██╔══██╗██╔══██║   ██║   ██╔══╝
   ███████║╚██████╔╝██████╔╝███████║   ██║   ██║  ██║██║  ██║   ██║   ███████╗
   ╚══════╝ ╚═════╝ ╚═════╝ ╚══════╝   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚══════╝
`
	var sb strings.Builder
	sb.WriteString("\n\n\n\n")
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("                         C H A I N   E X P L O R E R"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                         Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("                   Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  ⛓  Substrate Explorer"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range startupOrder {
		step := m.startupSteps[k]

		var icon, statusText string
		var style lipgloss.Style
		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Retrying", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")

	if m.state.Error != "" {
		sb.WriteString(failedStyle.Render("  " + m.state.Error))
		sb.WriteString("\n")
	}
	if m.state.Endpoint != "" {
		sb.WriteString(MutedValue.Render("  Waiting for first block from " + m.state.Endpoint))
	} else {
		sb.WriteString(MutedValue.Render("  Waiting for first block..."))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if latest, ok := m.heads.Latest(); ok {
		parts = append(parts, fmt.Sprintf("Best: #%d", latest.Number))
	}
	parts = append(parts, fmt.Sprintf("Heads: %d", m.headCount))

	switch {
	case m.state.Connected:
		name := m.state.ChainName
		if name == "" {
			name = m.state.Endpoint
		}
		parts = append(parts, connectionBadge(chainDomain.StatusConnected, name))
	case m.state.Status == chainDomain.StatusConnecting:
		parts = append(parts, connectionBadge(chainDomain.StatusConnecting, "connecting"))
	default:
		parts = append(parts, connectionBadge(chainDomain.StatusDisconnected, "disconnected"))
	}

	if !m.lastHead.IsZero() {
		ago := time.Since(m.lastHead).Round(time.Second)
		indicator := ""
		if ago < 2*time.Second {
			indicator = "▪" // Recent activity indicator
		}
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Last head: %s ago %s", ago, indicator)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// This is set by main.go to signal when to begin loading modules.
var OnStartModules func()

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
	if _, ok := msg.(StartModulesMsg); ok && OnStartModules != nil {
		OnStartModules()
	}
}
