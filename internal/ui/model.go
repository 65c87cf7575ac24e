package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertwitch/completion/internal/device"
	"github.com/dustin/go-humanize"
)

const (
	statsInterval = 100 * time.Millisecond
	maxLogLines   = 100
)

//nolint:gochecknoglobals
var (
	// titleStyle defines the style for a panel's title.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	// borderStyle defines the style for a panel's borders.
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4"))

	// infoStyle defines the style for a panel's text.
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	// helpStyle defines the style for the help panel's text.
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 1)
)

// DeviceStatsMsg is a [tea.Msg] containing [device.Stats] information.
type DeviceStatsMsg struct {
	t     time.Time
	stats device.Stats
}

// TeaModel is the principal [tea.Model] for the command-line user interface.
type TeaModel struct {
	width  int
	height int

	cancel context.CancelFunc

	uiHandler *Handler
	startTime time.Time

	fullWidthWithBorders  int
	splitWidthWithBorders int

	stats        device.Stats
	lastUpdate   time.Time
	wakeProgress progress.Model
	logsViewport viewport.Model
	logs         []string

	ready bool
}

// NewTeaModel returns an initial new [TeaModel].
//
//nolint:mnd
func NewTeaModel(uiHandler *Handler, cancel context.CancelFunc) TeaModel {
	return TeaModel{
		uiHandler: uiHandler,
		startTime: time.Now(),
		wakeProgress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(80),
		),
		logsViewport: viewport.New(80, 20),
		logs:         make([]string, 0, maxLogLines),
		cancel:       cancel,
	}
}

// Init initializes the model within a [tea.Program].
func (m TeaModel) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		updateDeviceStats(m.uiHandler.device),
	)
}

// updateDeviceStats produces a [tea.Cmd] that returns a [DeviceStatsMsg]
// after [statsInterval].
func updateDeviceStats(dev deviceProvider) tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		var stats device.Stats
		if dev != nil {
			stats = dev.Stats()
		}

		return DeviceStatsMsg{
			t:     t,
			stats: stats,
		}
	})
}

// Update is the principal message handling method of the model.
//
//nolint:mnd,ireturn
func (m TeaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()

			return m, tea.Quit
		case "q":
			return m, tea.Quit
		case "r":
			if m.uiHandler.trigger != nil {
				m.uiHandler.trigger.SpawnReader()
			}
		case "w":
			if m.uiHandler.trigger != nil {
				m.uiHandler.trigger.Trigger()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.fullWidthWithBorders = m.width - 2
		m.splitWidthWithBorders = (m.width / 2) - 2

		m.wakeProgress.Width = m.splitWidthWithBorders

		// Upper panels take about 40% of the height.
		upperHeight := m.height * 2 / 5
		lowerHeight := m.height - upperHeight

		m.logsViewport.Width = m.fullWidthWithBorders
		m.logsViewport.Height = lowerHeight - 3

		m.renderLogs()

		if !m.ready {
			m.ready = true
			m.uiHandler.Initialized.Store(true)
		}

	case DeviceStatsMsg:
		m.stats = msg.stats
		m.lastUpdate = msg.t

		var pct float64
		if m.stats.Reads > 0 {
			pct = float64(m.stats.Wakeups) / float64(m.stats.Reads)
		}

		cmds = append(cmds,
			m.wakeProgress.SetPercent(pct),
			updateDeviceStats(m.uiHandler.device),
		)

	case LogMsg:
		if len(m.logs) >= maxLogLines {
			m.logs = m.logs[1:]
		}

		m.logs = append(m.logs, string(msg))
		m.renderLogs()

	case progress.FrameMsg:
		updated, cmd := m.wakeProgress.Update(msg)
		if progressModel, ok := updated.(progress.Model); ok {
			m.wakeProgress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	m.logsViewport, cmd = m.logsViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// renderLogs sets the log lines as content of the logs viewport.
func (m *TeaModel) renderLogs() {
	if len(m.logs) == 0 {
		return
	}

	logs := lipgloss.NewStyle().
		Width(m.logsViewport.Width).
		Render(strings.TrimSuffix(strings.Join(m.logs, ""), "\n"))

	m.logsViewport.SetContent(logs)
	m.logsViewport.GotoBottom()
}

// View is the principal rendering function of the model.
func (m TeaModel) View() string {
	if !m.ready {
		return "Loading the GUI..."
	}

	statsSection := lipgloss.JoinHorizontal(
		lipgloss.Top,
		borderStyle.Width(m.splitWidthWithBorders).Render(m.formatDeviceView()),
		borderStyle.Width(m.splitWidthWithBorders).Render(m.formatActivityView()),
	)

	logsSection := borderStyle.
		Width(m.fullWidthWithBorders).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Left,
				titleStyle.Width(m.fullWidthWithBorders).Render("Process Information"),
				lipgloss.NewStyle().Width(m.fullWidthWithBorders).Render(m.logsViewport.View()),
			),
		)

	helpSection := helpStyle.
		Width(m.fullWidthWithBorders).
		Render("r: spawn reader • w: write • q: quit gui • ctrl+c: quit program")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		statsSection,
		logsSection,
		helpSection,
	)
}

// formatDeviceView renders the device panel.
func (m TeaModel) formatDeviceView() string {
	state := "armed"
	switch {
	case !m.stats.Initialized:
		state = "uninitialized"
	case m.stats.Done:
		state = "completed"
	}

	name := m.stats.Name
	if !m.stats.Registered {
		name = "(unregistered)"
	}

	details := fmt.Sprintf(
		"Device: %s (minor %d)\n"+
			"State: %s\n"+
			"Signals: %d\n"+
			"Started: %s\n",
		name,
		m.stats.Minor,
		state,
		m.stats.Signals,
		humanize.Time(m.startTime),
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Width(m.splitWidthWithBorders).Render("Device"),
		"",
		infoStyle.Width(m.splitWidthWithBorders).Render(details),
	)
}

// formatActivityView renders the activity panel.
func (m TeaModel) formatActivityView() string {
	details := fmt.Sprintf(
		"Opens: %d\n"+
			"Reads: %d (woken %d, parked %d)\n"+
			"Writes: %d (%s accepted)\n"+
			"Failures: %d\n",
		m.stats.Opens,
		m.stats.Reads,
		m.stats.Wakeups,
		m.stats.Parked,
		m.stats.Writes,
		humanize.Bytes(m.stats.BytesIn),
		m.stats.Failures,
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Width(m.splitWidthWithBorders).Render("Activity"),
		"",
		m.wakeProgress.View(),
		"",
		infoStyle.Width(m.splitWidthWithBorders).Render(details),
	)
}
