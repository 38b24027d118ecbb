package dash

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vigil-ops/vigil/internal/ingest"
	"github.com/vigil-ops/vigil/internal/model"
)

const (
	// maxRecords bounds the in-memory record list the dashboard keeps.
	maxRecords = 200

	initialPageSize = 50
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	threatStyles = map[string]lipgloss.Style{
		"none":   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		"low":    lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		"medium": lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		"high":   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}

	severityStyles = map[string]lipgloss.Style{
		model.SeverityError: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		model.SeverityWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		model.SeverityInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	}
)

type statsMsg struct{ stats model.AggregateStats }

type pageMsg struct{ page LogPage }

type streamStartedMsg struct{ live <-chan model.LogRecord }

type liveLogMsg struct{ record model.LogRecord }

type streamClosedMsg struct{}

type pollTickMsg struct{}

// statsErrMsg keeps the poll loop alive on a failed fetch; apiErrMsg is for
// one-shot operations and schedules nothing.
type statsErrMsg struct{ err error }

type apiErrMsg struct{ err error }

// DashboardModel is the bubbletea model for the monitor dashboard.
type DashboardModel struct {
	client       *Client
	pollInterval time.Duration

	stats   model.AggregateStats
	records []model.LogRecord
	total   int
	live    <-chan model.LogRecord

	viewport viewport.Model
	width    int
	height   int
	ready    bool

	lastErr     error
	lastUpdated time.Time
	pollPending bool
}

// NewDashboardModel builds the model; the program starts fetching on Init.
func NewDashboardModel(client *Client, pollInterval time.Duration) *DashboardModel {
	if pollInterval <= 0 {
		pollInterval = model.DefaultPollInterval
	}
	return &DashboardModel{client: client, pollInterval: pollInterval}
}

func (m *DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.fetchStats(), m.fetchPage(), m.subscribe())
}

func (m *DashboardModel) fetchStats() tea.Cmd {
	return func() tea.Msg {
		stats, err := m.client.Stats(context.Background())
		if err != nil {
			return statsErrMsg{err}
		}
		return statsMsg{stats}
	}
}

func (m *DashboardModel) fetchPage() tea.Cmd {
	return func() tea.Msg {
		page, err := m.client.Logs(context.Background(), initialPageSize, 0)
		if err != nil {
			return apiErrMsg{err}
		}
		return pageMsg{page}
	}
}

// subscribe opens the broadcast stream once and hands its channel to the
// update loop; waitForLive pulls one record per message.
func (m *DashboardModel) subscribe() tea.Cmd {
	return func() tea.Msg {
		live, err := m.client.Subscribe(context.Background())
		if err != nil {
			return apiErrMsg{err}
		}
		return streamStartedMsg{live}
	}
}

func waitForLive(live <-chan model.LogRecord) tea.Cmd {
	return func() tea.Msg {
		record, ok := <-live
		if !ok {
			return streamClosedMsg{}
		}
		return liveLogMsg{record}
	}
}

// scheduleStatsPoll arms the next poll tick. At most one tick is outstanding
// so a manual refresh cannot stack extra poll loops.
func (m *DashboardModel) scheduleStatsPoll() tea.Cmd {
	if m.pollPending {
		return nil
	}
	m.pollPending = true
	return tea.Tick(m.pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			cmds := []tea.Cmd{m.fetchStats(), m.fetchPage()}
			if m.live == nil {
				cmds = append(cmds, m.subscribe())
			}
			return m, tea.Batch(cmds...)
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, 3)
			m.ready = true
		}
		m.resize()
		m.viewport.SetContent(m.renderRecords())
		return m, nil

	case streamStartedMsg:
		m.live = msg.live
		return m, waitForLive(m.live)

	case statsMsg:
		m.stats = msg.stats
		m.lastUpdated = time.Now()
		m.lastErr = nil
		m.resize()
		return m, m.scheduleStatsPoll()

	case pageMsg:
		m.records = msg.page.Logs
		m.total = msg.page.Total
		m.refreshViewport()
		return m, nil

	case liveLogMsg:
		m.records = append([]model.LogRecord{msg.record}, m.records...)
		if len(m.records) > maxRecords {
			m.records = m.records[:maxRecords]
		}
		m.total++
		m.refreshViewport()
		return m, waitForLive(m.live)

	case streamClosedMsg:
		// Dropped by the server; re-sync from the read endpoints.
		m.live = nil
		return m, tea.Batch(m.fetchPage(), m.subscribe())

	case pollTickMsg:
		m.pollPending = false
		return m, m.fetchStats()

	case statsErrMsg:
		m.lastErr = msg.err
		return m, m.scheduleStatsPoll()

	case apiErrMsg:
		m.lastErr = msg.err
		return m, nil
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *DashboardModel) refreshViewport() {
	if !m.ready {
		return
	}
	m.resize()
	atTop := m.viewport.YOffset == 0
	m.viewport.SetContent(m.renderRecords())
	if atTop {
		m.viewport.GotoTop()
	}
}

// resize keeps the viewport fitted under the header, whose height changes as
// the chart fills in.
func (m *DashboardModel) resize() {
	if !m.ready {
		return
	}
	vpHeight := m.height - lipgloss.Height(m.renderHeader()) - 1
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight
}

func (m *DashboardModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	help := dimStyle.Render("  q quit · r refresh · ↑/↓ scroll")
	return m.renderHeader() + "\n" + m.viewport.View() + "\n" + help
}

func (m *DashboardModel) renderHeader() string {
	threat := m.stats.ThreatLevel
	if threat == "" {
		threat = "none"
	}
	threatStyle, ok := threatStyles[threat]
	if !ok {
		threatStyle = statStyle
	}

	summary := fmt.Sprintf("%s  %s  %s  %s",
		statStyle.Render(fmt.Sprintf("24h total: %d", m.stats.Total)),
		statStyle.Render(fmt.Sprintf("anomalies: %d", m.stats.Anomalies)),
		statStyle.Render(fmt.Sprintf("rate: %.2f%%", m.stats.AnomalyRate)),
		threatStyle.Render("threat: "+strings.ToUpper(threat)),
	)

	status := dimStyle.Render(fmt.Sprintf("stored: %d", m.total))
	if !m.lastUpdated.IsZero() {
		status += dimStyle.Render("  updated " + m.lastUpdated.Format("15:04:05"))
	}
	if m.lastErr != nil {
		status += "  " + errorStyle.Render(m.lastErr.Error())
	}

	header := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("VIGIL")+dimStyle.Render("  database log anomaly monitor"),
		summary,
		m.renderAnomalyChart(),
		status,
	)
	if m.width > 4 {
		return borderStyle.Width(m.width - 2).Render(header)
	}
	return header
}

func (m *DashboardModel) renderRecords() string {
	if len(m.records) == 0 {
		return dimStyle.Render("  no records yet")
	}

	var b strings.Builder
	for _, r := range m.records {
		sev := r.Meta.Severity
		sevStyle, ok := severityStyles[sev]
		if !ok {
			sevStyle = statStyle
		}

		msg := ingest.PayloadMsg(r.Log)
		if msg == "" {
			msg = "(no msg)"
		}

		line := fmt.Sprintf("%s %s %s",
			dimStyle.Render(r.Timestamp.Local().Format("15:04:05")),
			sevStyle.Render(sev),
			msg,
		)
		if r.IsAnomaly {
			line += "  " + errorStyle.Render(fmt.Sprintf("⚠ %.4f", r.AnomalyScore))
			if r.Reason != "" {
				line += "\n" + dimStyle.Render("         "+truncate(r.Reason, m.width-12))
			}
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
