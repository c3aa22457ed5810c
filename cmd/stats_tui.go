// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusNodeList = iota
	focusAddressInput
)

// nodeItem adapts a poll result to list.Item
type nodeItem struct {
	status nodeStatus
}

func (n nodeItem) Title() string { return fmt.Sprintf("Node %08X", n.status.address) }
func (n nodeItem) Description() string {
	switch {
	case n.status.polls == 0:
		return "waiting"
	case n.status.err != nil:
		return "not responding"
	case n.status.id == "":
		return "ok"
	}
	return n.status.id
}
func (n nodeItem) FilterValue() string { return fmt.Sprintf("%X", n.status.address) }

// statsModel is the Bubble Tea model for the stats TUI
type statsModel struct {
	poller   *poller
	connInfo string

	nodes        []nodeStatus
	nodeList     list.Model
	addressInput textinput.Model
	focusedField int

	rounds   int
	lastPoll time.Time
	eventLog []logEntry

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type pollDoneMsg struct{}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialStatsModel(p *poller, connInfo string) statsModel {
	ti := textinput.New()
	ti.Placeholder = "0x42"
	ti.CharLimit = 10
	ti.Width = 12

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	nodeList := list.New([]list.Item{}, delegate, 30, 10)
	nodeList.Title = "Nodes"
	nodeList.SetShowStatusBar(false)
	nodeList.SetShowHelp(false)
	nodeList.SetFilteringEnabled(false)

	m := statsModel{
		poller:       p,
		connInfo:     connInfo,
		nodeList:     nodeList,
		addressInput: ti,
		focusedField: focusNodeList,
		width:        80,
		height:       24,
	}
	m.refresh()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m statsModel) Init() tea.Cmd {
	return nil
}

func (m statsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case pollDoneMsg:
		m.rounds++
		m.lastPoll = time.Now()
		m.refresh()
	}

	return m, nil
}

func (m statsModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focusedField == focusAddressInput {
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			m.blurInput()
			return m, nil
		case "enter":
			m.addFromInput()
			return m, nil
		}
		var cmd tea.Cmd
		m.addressInput, cmd = m.addressInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "a", "tab":
		m.focusedField = focusAddressInput
		cmd := m.addressInput.Focus()
		return m, cmd

	case "d", "delete":
		if s := m.selected(); s != nil {
			m.poller.remove(s.address)
			m.addLogEntry(fmt.Sprintf("Removed %08X", s.address), false)
			m.refresh()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.nodeList, cmd = m.nodeList.Update(msg)
	return m, cmd
}

func (m *statsModel) blurInput() {
	m.focusedField = focusNodeList
	m.addressInput.Blur()
	m.addressInput.SetValue("")
}

func (m *statsModel) addFromInput() {
	value := strings.TrimSpace(m.addressInput.Value())
	defer m.blurInput()
	if value == "" {
		return
	}

	address, err := parseAddress(value)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	m.poller.add(address)
	m.addLogEntry(fmt.Sprintf("Added %08X", address), false)
	m.refresh()
}

// refresh copies the poll table into the list
func (m *statsModel) refresh() {
	m.nodes = m.poller.snapshot()
	items := make([]list.Item, len(m.nodes))
	for i, s := range m.nodes {
		items[i] = nodeItem{status: s}
	}
	m.nodeList.SetItems(items)
}

func (m *statsModel) selected() *nodeStatus {
	idx := m.nodeList.Index()
	if idx < 0 || idx >= len(m.nodes) {
		return nil
	}
	return &m.nodes[idx]
}

func (m *statsModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > 20 {
		m.eventLog = m.eventLog[len(m.eventLog)-20:]
	}
}

func (m *statsModel) updateListSize() {
	listHeight := m.height - 10
	if listHeight < 5 {
		listHeight = 5
	}
	m.nodeList.SetSize(28, listHeight)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m statsModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("LUXCTL - NODE STATISTICS"))
	s.WriteString("\n")
	polled := "never"
	if !m.lastPoll.IsZero() {
		polled = m.lastPoll.Format("15:04:05")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Rounds: %d | Last poll: %s | 'a' add, 'd' remove, 'q' quit",
		m.connInfo, m.rounds, polled)))
	s.WriteString("\n\n")

	// Detail panel for the selected node
	var detail strings.Builder
	sel := m.selected()
	switch {
	case sel == nil:
		detail.WriteString(headerStyle.Render("No nodes. Press 'a' to add one."))
	case sel.polls == 0:
		detail.WriteString(warningStyle.Render(fmt.Sprintf("%08X: waiting for first poll", sel.address)))
	default:
		c := sel.counters
		row := func(label string, v uint32, bad bool) {
			style := valueStyle
			if bad && v > 0 {
				style = errorStyle
			}
			detail.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(fmt.Sprintf("%-15s", label)), style.Render(fmt.Sprintf("%d", v))))
		}
		detail.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(fmt.Sprintf("%-15s", "Address:")), valueStyle.Render(fmt.Sprintf("%08X", sel.address))))
		detail.WriteString(fmt.Sprintf("%s %s\n\n", labelStyle.Render(fmt.Sprintf("%-15s", "ID:")), valueStyle.Render(sel.id)))
		row("Good:", c.Good, false)
		row("Malformed:", c.Malformed, true)
		row("Overrun:", c.Overrun, true)
		row("Bad CRC:", c.BadCRC, true)
		row("Interrupted:", c.RxInterrupted, true)
		detail.WriteString("\n")
		detail.WriteString(headerStyle.Render(fmt.Sprintf("Polls: %d, failed: %d, at %s",
			sel.polls, sel.failures, sel.polled.Format("15:04:05"))))
		if sel.err != nil {
			detail.WriteString("\n")
			detail.WriteString(errorStyle.Render("✗ " + sel.err.Error()))
		}
	}

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(m.nodeList.View()),
		boxStyle.Width(max(m.width-36, 30)).Render(detail.String()),
	)
	s.WriteString(panels)
	s.WriteString("\n")

	if m.focusedField == focusAddressInput {
		s.WriteString(labelStyle.Render("Add node: "))
		s.WriteString(m.addressInput.View())
		s.WriteString(headerStyle.Render("  (enter to add, esc to cancel)"))
		s.WriteString("\n")
	}

	if n := len(m.eventLog); n > 0 {
		entry := m.eventLog[n-1]
		line := entry.timestamp.Format("15:04:05") + " " + entry.message
		if entry.isError {
			s.WriteString(errorStyle.Render("✗ " + line))
		} else {
			s.WriteString(warningStyle.Render("ℹ " + line))
		}
		s.WriteString("\n")
	}

	return s.String()
}
