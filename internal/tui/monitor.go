// Package tui implements the interactive dialctl screens: the live
// performance monitor, the DTMF editor form, and the auth and config views.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/history"
	"nathanbeddoewebdev/dialctl/internal/perf/loadtest"
	"nathanbeddoewebdev/dialctl/internal/perf/services"
	"nathanbeddoewebdev/dialctl/internal/perf/stream"
	"nathanbeddoewebdev/dialctl/internal/tui/components"
	"nathanbeddoewebdev/dialctl/internal/tui/styles"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// redrawInterval keeps expiring notices and load-test progress current
// between stream pushes.
const redrawInterval = time.Second

// --- Messages ---

type dashboardLoadedMsg struct {
	err error
}

type refreshTickMsg struct{}

type redrawTickMsg struct{}

type streamEventMsg struct {
	ev stream.Event
}

type streamClosedMsg struct{}

type loadTestStoppedMsg struct {
	err error
}

// MonitorOptions configures RunMonitor.
type MonitorOptions struct {
	// Events delivers stream events. Nil runs the monitor on REST
	// refreshes alone.
	Events <-chan stream.Event

	// RefreshInterval defaults to services.RefreshInterval.
	RefreshInterval time.Duration
}

// --- Monitor model ---

type monitorModel struct {
	ctx    context.Context
	dash   *services.Dashboard
	events <-chan stream.Event

	refreshInterval time.Duration

	quotas table.Model

	width  int
	height int

	loading     bool
	refreshing  bool
	spinner     spinner.Model
	err         error
	streamState stream.State
	confirmStop bool
	quitting    bool
}

func newMonitorModel(ctx context.Context, dash *services.Dashboard, opts MonitorOptions) monitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Blue)

	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = services.RefreshInterval
	}

	t := table.New(
		table.WithColumns(quotaColumns),
		table.WithHeight(6),
		table.WithFocused(true),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.DimGray).
		BorderBottom(true).
		Foreground(styles.Gray).
		Bold(true)
	ts.Selected = ts.Selected.Foreground(styles.White).Background(styles.DarkBlue)
	t.SetStyles(ts)

	state := stream.StateConnecting
	if opts.Events == nil {
		state = stream.StateDisabled
	}

	return monitorModel{
		ctx:             ctx,
		dash:            dash,
		events:          opts.Events,
		refreshInterval: interval,
		quotas:          t,
		loading:         true,
		spinner:         s,
		streamState:     state,
	}
}

// RunMonitor starts the full-window performance monitor. It returns when
// the operator quits or ctx ends.
func RunMonitor(ctx context.Context, dash *services.Dashboard, opts MonitorOptions) error {
	m := newMonitorModel(ctx, dash, opts)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run monitor: %w", err)
	}
	return nil
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.refresh(),
		m.waitForEvent(),
		redrawTick(),
	)
}

func (m monitorModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return dashboardLoadedMsg{err: m.dash.Refresh(m.ctx)}
	}
}

func (m monitorModel) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func redrawTick() tea.Cmd {
	return tea.Tick(redrawInterval, func(time.Time) tea.Msg {
		return redrawTickMsg{}
	})
}

// waitForEvent reads one stream event. The model re-arms it after each
// event so events are handled in arrival order.
func (m monitorModel) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return streamEventMsg{ev: ev}
	}
}

func (m monitorModel) stopLoadTest() tea.Cmd {
	return func() tea.Msg {
		return loadTestStoppedMsg{err: m.dash.LoadTest.Stop(m.ctx)}
	}
}

// --- Update ---

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.quotas.SetWidth(max(msg.Width-4, 20))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case dashboardLoadedMsg:
		m.loading = false
		m.refreshing = false
		m.err = msg.err
		m.quotas.SetRows(m.quotaRows())
		return m, m.scheduleRefresh()

	case refreshTickMsg:
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		return m, m.refresh()

	case redrawTickMsg:
		return m, redrawTick()

	case streamEventMsg:
		m.dash.HandleEvent(m.ctx, msg.ev)
		if st, ok := msg.ev.(stream.StateEvent); ok {
			m.streamState = st.State
		}
		return m, m.waitForEvent()

	case streamClosedMsg:
		if m.streamState != stream.StateDisabled {
			m.streamState = stream.StateClosed
		}
		return m, nil

	case loadTestStoppedMsg:
		if msg.err != nil {
			m.dash.Notices.Error("stop load test", msg.err)
		} else {
			m.dash.Notices.Success("stop load test", "stop requested; results follow shortly")
		}
		return m, nil

	case spinner.TickMsg:
		if m.loading || m.refreshing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	return m, nil
}

// --- Key handling ---

func (m monitorModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmStop {
		m.confirmStop = false
		switch msg.String() {
		case "y", "Y":
			return m, m.stopLoadTest()
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		m.dash.Notices.Info("stop load test", "cancelled")
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit

	case "r":
		if m.refreshing || m.loading {
			return m, nil
		}
		m.refreshing = true
		return m, tea.Batch(m.spinner.Tick, m.refresh())

	case "x":
		if m.dash.LoadTest.State() != loadtest.StateRunning {
			m.dash.Notices.Warn("stop load test", "no load test is running")
			return m, nil
		}
		m.confirmStop = true
		return m, nil

	case "c":
		m.dash.Notices.Clear()
		return m, nil

	case "up", "k", "down", "j", "g", "G":
		var cmd tea.Cmd
		m.quotas, cmd = m.quotas.Update(msg)
		return m, cmd
	}

	return m, nil
}

// --- View ---

var quotaColumns = []table.Column{
	{Title: "COUNTRY", Width: 12},
	{Title: "USED", Width: 8},
	{Title: "LIMIT", Width: 10},
	{Title: "USAGE", Width: 8},
	{Title: "TIER", Width: 10},
}

func (m monitorModel) quotaRows() []table.Row {
	quotas := m.dash.Quotas.Quotas()
	rows := make([]table.Row, 0, len(quotas))
	for _, q := range quotas {
		limit := "unlimited"
		if q.DailyLimit > 0 {
			limit = fmt.Sprintf("%d", q.DailyLimit)
		}
		pct := domain.UsagePercent(q.Used, q.DailyLimit)
		rows = append(rows, table.Row{
			strings.ToUpper(q.Country),
			fmt.Sprintf("%d", q.Used),
			limit,
			fmt.Sprintf("%.0f%%", pct),
			domain.ClassifyUsage(q.Used, q.DailyLimit).String(),
		})
	}
	return rows
}

func (m monitorModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := components.Header(m.width, "monitor", m.dash.Source.GetDisplayName())

	var footerBindings []components.KeyBinding
	switch {
	case m.loading:
		footerBindings = []components.KeyBinding{{Key: "ctrl+c", Desc: "quit"}}
	case m.confirmStop:
		footerBindings = []components.KeyBinding{
			{Key: "y", Desc: "stop load test"},
			{Key: "any", Desc: "cancel"},
		}
	default:
		footerBindings = []components.KeyBinding{
			{Key: "j/k", Desc: "scroll quotas"},
			{Key: "r", Desc: "refresh"},
			{Key: "x", Desc: "stop test"},
			{Key: "c", Desc: "clear notices"},
			{Key: "q", Desc: "quit"},
		}
	}
	footer := components.Footer(m.width, footerBindings)

	statusBar := m.renderStatus()

	headerH := lipgloss.Height(header)
	footerH := lipgloss.Height(footer)
	statusH := lipgloss.Height(statusBar)
	contentH := max(m.height-headerH-footerH-statusH, 1)

	content := m.renderContent(contentH)

	sections := []string{header, content}
	if statusBar != "" {
		sections = append(sections, statusBar)
	}
	sections = append(sections, footer)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m monitorModel) renderStatus() string {
	if m.confirmStop {
		return components.StatusBar(m.width, "Stop the running load test? (y/N)", true)
	}
	if n, ok := m.dash.Notices.Current(); ok {
		return components.NoticeBar(m.width, n)
	}
	if m.err != nil {
		return components.StatusBar(m.width, "Error: "+m.err.Error(), true)
	}
	if last := m.dash.LastSync(); !last.IsZero() {
		return components.StatusBar(m.width, "Last sync "+last.Format("15:04:05"), false)
	}
	return ""
}

func (m monitorModel) renderContent(height int) string {
	if m.loading {
		loadingText := m.spinner.View() + "  Loading dashboard…"
		return lipgloss.Place(
			m.width, height,
			lipgloss.Center, lipgloss.Center,
			styles.MutedText.Render(loadingText),
		)
	}

	colW := max((m.width-4)/2-1, 20)

	live := styles.Card.Width(colW).Render(m.renderLive())
	test := styles.Card.Width(colW).Render(m.renderLoadTest())
	top := lipgloss.JoinHorizontal(lipgloss.Top, live, " ", test)

	samples := m.dash.History.Snapshot()
	cps := components.MetricsChart("CPS", history.Series(samples, func(s domain.MetricSample) float64 { return s.CPS }), colW, "")
	conc := components.MetricsChart("Concurrent calls", history.Series(samples, func(s domain.MetricSample) float64 { return float64(s.ConcurrentCalls) }), colW, "")
	charts := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(colW+4).Render(cps), " ",
		lipgloss.NewStyle().Width(colW+4).Render(conc),
	)

	quotas := lipgloss.JoinVertical(lipgloss.Left,
		styles.Label.Render("CLI quotas"),
		m.quotas.View(),
	)

	body := lipgloss.JoinVertical(lipgloss.Left, top, "", charts, "", quotas)
	return lipgloss.NewStyle().
		Padding(0, 2).
		Height(height).
		MaxHeight(height).
		Render(body)
}

func (m monitorModel) renderLive() string {
	lines := []string{
		styles.Title.Render("Live metrics") + "  " + styles.StatusIndicator(string(m.streamState)),
		"",
	}

	latest, ok := m.dash.History.Latest()
	if !ok {
		lines = append(lines, styles.MutedText.Render("Waiting for the first sample…"))
		return strings.Join(lines, "\n")
	}

	summary := m.dash.Summary()
	lines = append(lines,
		detailRow("CPS", fmt.Sprintf("%.1f (peak %.1f, avg %.1f)", latest.CPS, summary.PeakCPS, summary.AvgCPS)),
		detailRow("Concurrent", fmt.Sprintf("%d (peak %d)", latest.ConcurrentCalls, summary.PeakConcurrent)),
		detailRow("Success", fmt.Sprintf("%.1f%%", latest.SuccessRate)),
		detailRow("Answered", fmt.Sprintf("%d / %d", latest.AnsweredCalls, latest.TotalCalls)),
		detailRow("CLIs", fmt.Sprintf("%d active, %d blocked", latest.ActiveCLIs, latest.BlockedCLIs)),
		detailRow("Window", fmt.Sprintf("%d samples over %s", summary.SampleCount, summary.Window.Round(time.Second))),
	)
	return strings.Join(lines, "\n")
}

func (m monitorModel) renderLoadTest() string {
	ctl := m.dash.LoadTest
	state := ctl.State()

	lines := []string{
		styles.Title.Render("Load test") + "  " + styles.StatusIndicator(string(state)),
		"",
	}

	switch state {
	case loadtest.StateIdle:
		lines = append(lines, styles.MutedText.Render("No load test running."))
	case loadtest.StateStarting, loadtest.StateRunning:
		cfg := ctl.Config()
		lines = append(lines,
			detailRow("Target", fmt.Sprintf("%g CPS for %d min", cfg.TargetCPS, cfg.DurationMinutes)),
			detailRow("Countries", strings.Join(cfg.CountriesToTest, ", ")),
		)
		series := ctl.Series()
		if n := len(series); n > 0 {
			p := series[n-1]
			lines = append(lines,
				detailRow("Current", fmt.Sprintf("%.1f CPS, %d concurrent", p.CPS, p.ConcurrentCalls)),
				detailRow("Errors", fmt.Sprintf("%d", p.Errors)),
			)
		}
	default:
		if res := ctl.Results(); res != nil {
			lines = append(lines,
				detailRow("Avg CPS", fmt.Sprintf("%.2f", res.AvgCPS)),
				detailRow("Max CPS", fmt.Sprintf("%.2f", res.MaxCPS)),
				detailRow("Max conc.", fmt.Sprintf("%d", res.MaxConcurrent)),
				detailRow("Success", fmt.Sprintf("%.1f%%", res.OverallSuccessRate*100)),
				detailRow("Errors", fmt.Sprintf("%d", res.TotalErrors)),
			)
		} else if err := ctl.LastError(); err != nil {
			lines = append(lines, styles.ErrorText.Render(err.Error()))
		} else {
			lines = append(lines, styles.MutedText.Render("Fetching results…"))
		}
	}
	return strings.Join(lines, "\n")
}

func detailRow(label, value string) string {
	return styles.Label.Width(12).Render(label) + styles.Value.Render(value)
}
