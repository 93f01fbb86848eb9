// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info and warnings
}

// TUI model
type monitorModel struct {
	connInfo string
	interval time.Duration

	connected bool
	serial    uint32
	haveInfo  bool

	lastSample *optv.StatisticsSample
	lastTime   time.Time
	stats      optv.PollStatistics
	inputs     table.Model

	eventLog      []eventLogEntry
	maxLogEntries int
	fatal         error

	width    int
	height   int
	quitting bool
}

// Messages
type monitorTickMsg time.Time
type connectedMsg struct {
	serial uint32
}
type sampleMsg struct {
	result pollResult
	stats  optv.PollStatistics
}
type pollErrorMsg struct {
	err   error
	stats optv.PollStatistics
}
type logLineMsg string
type monitorDoneMsg struct {
	err error
}

func newMonitorModel(connInfo string, interval time.Duration) monitorModel {
	columns := []table.Column{
		{Title: "Input", Width: 6},
		{Title: "Voltage", Width: 12},
		{Title: "Current", Width: 12},
	}

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("12"))
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("10")).
		Bold(false)

	inputs := table.New(
		table.WithColumns(columns),
		table.WithHeight(8),
		table.WithFocused(true),
		table.WithStyles(styles),
	)

	return monitorModel{
		connInfo:      connInfo,
		interval:      interval,
		stats:         *optv.NewPollStatistics(),
		inputs:        inputs,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.inputs, cmd = m.inputs.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		// Rates decay while the device is silent
		m.stats.CalculateRates()
		return m, monitorTickCmd()

	case connectedMsg:
		m.connected = true
		m.serial = msg.serial
		m.haveInfo = true
		m.addLogEntry(fmt.Sprintf("Connected to device %d", msg.serial), false)

	case sampleMsg:
		m.connected = true
		m.stats = msg.stats
		m.lastSample = msg.result.sample
		m.lastTime = msg.result.at
		m.inputs.SetRows(inputRows(msg.result.sample))
		if msg.result.attempts > 1 {
			m.addLogEntry(fmt.Sprintf("Resynchronized after %d attempts", msg.result.attempts), false)
		}
		for _, a := range msg.result.anomalies {
			m.addLogEntry(fmt.Sprintf("%s: %s", optv.FormatAnomalyType(a.Type), a.Message), true)
		}

	case pollErrorMsg:
		m.stats = msg.stats
		if !errors.Is(msg.err, optv.ErrShortRead) && !errors.Is(msg.err, optv.ErrSyncExhausted) {
			m.connected = false
		}
		m.addLogEntry(fmt.Sprintf("POLL ERROR: %v", msg.err), true)

	case logLineMsg:
		m.addLogEntry(string(msg), false)

	case monitorDoneMsg:
		m.connected = false
		m.fatal = msg.err
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Polling stopped: %v", msg.err), true)
		}
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// inputRows converts a sample to table rows, one per input
func inputRows(s *optv.StatisticsSample) []table.Row {
	rows := make([]table.Row, 0, s.NumInputs())
	for i := range s.InputVoltages {
		current := ""
		if i < len(s.InputCurrents) {
			current = strconv.FormatUint(uint64(s.InputCurrents[i]), 10)
		}
		rows = append(rows, table.Row{
			strconv.Itoa(i),
			strconv.FormatUint(uint64(s.InputVoltages[i]), 10),
			current,
		})
	}
	return rows
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("OPTVSTAT - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Interval: %s | Press 'q' to quit", m.connInfo, m.interval)))
	s.WriteString("\n\n")

	// Connection status
	switch {
	case m.fatal != nil:
		s.WriteString(errorStyle.Render("✗ Stopped"))
	case m.connected:
		s.WriteString(valueStyle.Render(fmt.Sprintf("✓ Connected to device %d", m.serial)))
	case m.haveInfo:
		s.WriteString(warningStyle.Render(fmt.Sprintf("⏳ Reconnecting to device %d...", m.serial)))
	default:
		s.WriteString(warningStyle.Render("⏳ Connecting..."))
	}
	s.WriteString("\n\n")

	// Statistics
	var samplePercent float64
	if m.stats.TotalPolls > 0 {
		samplePercent = float64(m.stats.Samples) * 100.0 / float64(m.stats.TotalPolls)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Polls:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPolls)),
		labelStyle.Render("Samples:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.Samples, samplePercent)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Errors())),
	))
	if m.stats.Errors() > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Short Reads:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ShortReads)),
			labelStyle.Render("Sync Failures:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.SyncFailures)),
			labelStyle.Render("Other:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.OtherErrors)),
		))
	}
	if m.stats.Resyncs > 0 || m.stats.Anomalies > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Resyncs:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.Resyncs)),
			labelStyle.Render("Anomalies:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.Anomalies)),
		))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Sample Rate:"), valueStyle.Render(fmt.Sprintf("%.2f/s", m.stats.SampleRate)),
		labelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.2f/s", m.stats.ErrorRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.2f/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest sample
	if m.lastSample != nil {
		s.WriteString(labelStyle.Render(fmt.Sprintf("Latest Sample (%s):", m.lastTime.Format("15:04:05.000"))))
		s.WriteString("\n")

		sampleContent := strings.Builder{}
		sampleContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n\n",
			labelStyle.Render("Inputs:"), valueStyle.Render(strconv.Itoa(m.lastSample.NumInputs())),
			labelStyle.Render("Output V:"), valueStyle.Render(fmt.Sprintf("%d", m.lastSample.OutputVoltage)),
			labelStyle.Render("Load I:"), valueStyle.Render(fmt.Sprintf("%d", m.lastSample.LoadCurrent)),
			labelStyle.Render("Battery I:"), valueStyle.Render(fmt.Sprintf("%d", m.lastSample.BatteryCurrent)),
		))
		if m.lastSample.NumInputs() > 0 {
			sampleContent.WriteString(m.inputs.View())
		} else {
			sampleContent.WriteString(headerStyle.Render("(device reported no inputs)"))
		}

		s.WriteString(boxStyle.Render(sampleContent.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 30 // Reserve space for header, stats and sample
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
