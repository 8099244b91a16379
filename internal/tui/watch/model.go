package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/forgehand/internal/api"
	"github.com/mattjoyce/forgehand/internal/pool"
)

const pollInterval = 2 * time.Second

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	health      api.HealthzResponse
	connected   bool
	workers     []pool.WorkerInfo
	toolchains  []api.ToolchainInfo
	invocations table.Model

	theme     Theme
	lastError string
}

// New creates a new watch TUI model.
func New(apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Invocation", Width: 36},
			{Title: "Toolchain", Width: 10},
			{Title: "Status", Width: 10},
			{Title: "Submitted", Width: 20},
			{Title: "Error", Width: 40},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.Bold(true).Foreground(lipgloss.Color("#61AFEF"))
	s.Selected = s.Selected.Foreground(lipgloss.Color("#E5C07B"))
	t.SetStyles(s)

	return &Model{
		apiURL:      apiURL,
		apiKey:      apiKey,
		invocations: t,
		theme:       NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchHealth(m.apiURL, m.apiKey),
		fetchWorkers(m.apiURL, m.apiKey),
		fetchInvocations(m.apiURL, m.apiKey),
		fetchToolchains(m.apiURL, m.apiKey),
		tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.invocations, cmd = m.invocations.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(
			fetchHealth(m.apiURL, m.apiKey),
			fetchWorkers(m.apiURL, m.apiKey),
			fetchInvocations(m.apiURL, m.apiKey),
			tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
		)

	case healthMsg:
		m.health = api.HealthzResponse(msg)
		m.connected = true
		m.lastError = ""

	case workersMsg:
		m.workers = msg

	case toolchainsMsg:
		m.toolchains = msg

	case invocationsMsg:
		rows := make([]table.Row, 0, len(msg))
		for _, inv := range msg {
			lastError := ""
			if inv.LastError != nil {
				lastError = *inv.LastError
			}
			rows = append(rows, table.Row{
				inv.InvocationID,
				inv.Toolchain,
				inv.Status,
				inv.CreatedAt.Local().Format("15:04:05 Jan 02"),
				lastError,
			})
		}
		m.invocations.SetRows(rows)

	case errMsg:
		m.connected = false
		m.lastError = msg.Error()
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing watch..."
	}

	parts := []string{
		m.renderHeader(),
		m.renderWorkers(),
		m.theme.Border.Render(m.invocations.View()),
	}

	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, m.theme.Dim.Render(" [q] Quit • [↑/↓] Navigate Invocations"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) renderHeader() string {
	status := m.theme.StatusFailed.Render("● disconnected")
	if m.connected {
		status = m.theme.StatusOK.Render("● connected")
	}

	uptime := time.Duration(m.health.UptimeSeconds) * time.Second
	line := fmt.Sprintf("%s  %s  uptime %s  workers %d  toolchains %d",
		m.theme.Title.Render("forgehand watch"),
		status,
		uptime,
		m.health.Workers,
		m.health.Toolchains,
	)
	return m.theme.Border.Width(m.width - 6).Render(line)
}

func (m Model) renderWorkers() string {
	if len(m.workers) == 0 {
		return m.theme.Border.Width(m.width - 6).Render(m.theme.Dim.Render("no workers running"))
	}

	lines := []string{m.theme.Header.Render("WORKER                                KEEP-ALIVE  STATE  INVOCATIONS  AGE")}
	for _, w := range m.workers {
		state := m.theme.StatusQueued.Render(w.State)
		if w.State == "busy" {
			state = m.theme.StatusRunning.Render(w.State)
		}
		lines = append(lines, fmt.Sprintf("%-36s  %-10s  %s  %11d  %s",
			w.ID,
			w.KeepAlive,
			state,
			w.Invocations,
			time.Since(w.StartedAt).Round(time.Second),
		))
	}
	return m.theme.Border.Width(m.width - 6).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Run starts the watch TUI and blocks until the user quits.
func Run(apiURL, apiKey string) error {
	p := tea.NewProgram(New(apiURL, apiKey))
	_, err := p.Run()
	return err
}
