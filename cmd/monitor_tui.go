// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// nodeActivity is what the monitor has seen addressed to one node
type nodeActivity struct {
	address  uint32
	requests uint64
	lastCmd  lux.Command
	lastSeen time.Time
}

// Monitor TUI model
type monitorModel struct {
	connInfo       string
	statsInterval  int
	showAll        bool
	stats          *lux.Statistics
	eventLog       []logEntry
	maxLogEntries  int
	nodes          map[uint32]*nodeActivity
	synchronized   bool
	invalidBytes   int
	connectionLost bool
	width          int
	height         int
	quitting       bool
}

// Messages
type tickMsg time.Time
type syncMsg struct {
	invalidBytes int
}
type busBatchMsg struct {
	events []busEvent
	sync   *syncMsg
}
type connectionLostMsg struct{}
type reconnectedMsg struct {
	connInfo string
}

// formatDuration formats a duration as a human-friendly string
func formatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialMonitorModel(connInfo string, statsInterval int, showAll bool) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         lux.NewStatistics(),
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		nodes:         make(map[uint32]*nodeActivity),
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.nodes = make(map[uint32]*nodeActivity)
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case busBatchMsg:
		if msg.sync != nil {
			m.handleSync(*msg.sync)
		}
		for _, ev := range msg.events {
			m.handleEvent(ev)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.synchronized = false
		m.invalidBytes = 0
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	return m, nil
}

func (m *monitorModel) handleSync(msg syncMsg) {
	m.synchronized = true
	m.invalidBytes = msg.invalidBytes
	if msg.invalidBytes > 0 {
		m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes), false)
	} else {
		m.addLogEntry("Synchronized", false)
	}
}

func (m *monitorModel) handleEvent(ev busEvent) {
	m.stats.Update(ev.packet, ev.decodeErr, ev.validationErrors)

	if ev.decodeErr != nil {
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.decodeErr), true)
		return
	}

	p := ev.packet
	if !p.IsResponse() {
		n, ok := m.nodes[p.Destination]
		if !ok {
			n = &nodeActivity{address: p.Destination}
			m.nodes[p.Destination] = n
		}
		n.requests++
		n.lastCmd = p.Command
		n.lastSeen = p.Timestamp()
	}

	if len(ev.validationErrors) > 0 {
		for _, err := range ev.validationErrors {
			m.addLogEntry(fmt.Sprintf("%08X %s: %s", p.Destination, p.Command, err.Message), true)
		}
	} else if m.showAll {
		m.addLogEntry(fmt.Sprintf("%08X %s idx=%d len=%d", p.Destination, p.Command, p.Index, len(p.Payload)), false)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := logEntry{
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

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
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
	s.WriteString(titleStyle.Render("LUXCTL - BUS MONITOR"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All packets"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Up %s | 'r' reset, 'q' quit",
		m.connInfo, mode, formatDuration(time.Since(m.stats.StartTime)))))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.connectionLost:
		s.WriteString(errorStyle.Render("✗ Connection lost - reconnecting..."))
		s.WriteString("\n\n")
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
		s.WriteString("\n\n")
	}

	// Statistics
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
		errorPercent = float64(m.stats.Errors()) * 100.0 / float64(m.stats.TotalPackets)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidPackets, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.Errors(), errorPercent)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		statsLabelStyle.Render("Requests:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Requests)),
		statsLabelStyle.Render("Responses:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Responses)),
	))

	if m.stats.CRCErrors > 0 || m.stats.MalformedFrames > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.CRCErrors)),
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.MalformedFrames)),
		))
	}

	if m.stats.CatalogAnomalies > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Anomalies:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.CatalogAnomalies)),
			headerStyle.Render("unknown"), m.stats.UnknownCommands,
			headerStyle.Render("length"), m.stats.LengthMismatches,
			headerStyle.Render("nacks"), m.stats.Nacks,
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Packet Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkts/s", m.stats.PacketRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Addressed nodes, busiest first
	if len(m.nodes) > 0 {
		s.WriteString(statsLabelStyle.Render("Destinations:"))
		s.WriteString("\n")

		nodes := make([]*nodeActivity, 0, len(m.nodes))
		for _, n := range m.nodes {
			nodes = append(nodes, n)
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].requests > nodes[j].requests })
		if len(nodes) > 8 {
			nodes = nodes[:8]
		}

		nodeContent := strings.Builder{}
		for _, n := range nodes {
			nodeContent.WriteString(fmt.Sprintf("%s %s %s\n",
				statsLabelStyle.Render(fmt.Sprintf("%08X", n.address)),
				statsValueStyle.Render(fmt.Sprintf("%6d reqs", n.requests)),
				headerStyle.Render(fmt.Sprintf("last %s %s ago", n.lastCmd, time.Since(n.lastSeen).Truncate(time.Second))),
			))
		}
		s.WriteString(boxStyle.Render(strings.TrimSuffix(nodeContent.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 15 - min(len(m.nodes), 8)
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
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
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
