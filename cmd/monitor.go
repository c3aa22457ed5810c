// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/zbanks/radiance-sub001/pkg/host"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Passively decode bus traffic and detect errors",
	Long: `Decode every Lux frame on the bus and track errors with statistics.

This command validates each frame and detects:
  - Malformed frames (COBS violations, short or oversized frames)
  - CRC errors
  - Requests and responses that do not match the command catalog
  - Nacked commands (ack status other than OK)
  - Statistics and trends (packet rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid packets too.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", false, "Use terminal UI")
}

// busEvent is one decoder result
type busEvent struct {
	packet           *lux.Packet
	decodeErr        error
	validationErrors []lux.ValidationError
}

// syncTracker ignores decode errors until the first good frame, since
// attaching mid-frame always produces one
type syncTracker struct {
	decoder      *lux.Decoder
	synchronized bool
	consumed     int
	invalidBytes int
}

func newSyncTracker() *syncTracker {
	return &syncTracker{decoder: lux.NewDecoder()}
}

// feed decodes one byte. synced is true on the byte that completed the
// first good frame.
func (s *syncTracker) feed(b byte) (ev *busEvent, synced bool) {
	packet, err := s.decoder.DecodeByte(b)

	if !s.synchronized {
		s.consumed++
		if packet == nil {
			// Everything up to the last delimiter belonged to no good frame
			if b == lux.Delimiter {
				s.invalidBytes = s.consumed
			}
			return nil, false
		}
		s.synchronized = true
		synced = true
	}

	if err != nil {
		return &busEvent{decodeErr: err}, false
	}
	if packet == nil {
		return nil, false
	}
	return &busEvent{packet: packet, validationErrors: lux.ValidatePacket(packet)}, synced
}

func runMonitor(cmd *cobra.Command, args []string) error {
	port, connInfo, err := OpenPort()
	if err != nil {
		return err
	}

	// The TUI reader owns the port, since it may replace it
	if useTUI {
		return runMonitorTUI(port, connInfo)
	}
	defer port.Close()
	return runMonitorText(port, connInfo)
}

// readPort copies the port into a channel until it fails
func readPort(port host.Port, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			out <- data
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, host.ErrConnectionClosed) {
				log.Info("connection closed")
			} else {
				log.Error("read failed", "error", err)
			}
			return
		}
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME DROPPED <<<\n\n")
}

// printValidationErrors prints catalog anomalies for a packet
func printValidationErrors(packet *lux.Packet, errs []lux.ValidationError) {
	fmt.Print(lux.FormatPacket(packet))
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, err := range errs {
		switch err.Type {
		case lux.AnomalyNack:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		case lux.AnomalyLengthMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if length, ok := err.Details["length"].(int); ok {
				if expected, ok := err.Details["expected"].(int); ok {
					fmt.Printf("    Length: received=%d, expected=%d\n", length, expected)
				}
			}
		default:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		}
	}

	fmt.Printf("  >>> PACKET FLAGGED <<<\n\n")
}

func runMonitorText(port host.Port, connInfo string) error {
	fmt.Printf("luxctl - Bus Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	tracker := newSyncTracker()
	stats := lux.NewStatistics()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	data := make(chan []byte, 16)
	go readPort(port, data)

	for {
		select {
		case chunk, ok := <-data:
			if !ok {
				fmt.Println()
				fmt.Print(stats.String())
				return nil
			}
			for _, b := range chunk {
				ev, synced := tracker.feed(b)
				if synced {
					if tracker.invalidBytes > 0 {
						fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", tracker.invalidBytes)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}
				if ev == nil {
					continue
				}

				stats.Update(ev.packet, ev.decodeErr, ev.validationErrors)
				switch {
				case ev.decodeErr != nil:
					printDecodeError(ev.decodeErr)
				case len(ev.validationErrors) > 0:
					printValidationErrors(ev.packet, ev.validationErrors)
				case showAll:
					fmt.Print(lux.FormatPacket(ev.packet))
				}
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// busReader feeds the TUI from the port and reopens it when it fails
type busReader struct {
	port host.Port
	p    *tea.Program
	done chan struct{}
}

func runMonitorTUI(port host.Port, connInfo string) error {
	m := initialMonitorModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithAltScreen())

	r := &busReader{port: port, p: p, done: make(chan struct{})}
	go r.loop()

	_, err := p.Run()
	close(r.done)
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func (r *busReader) loop() {
	defer func() { r.port.Close() }()
	for {
		r.readUntilFailure()

		select {
		case <-r.done:
			return
		default:
		}
		r.p.Send(connectionLostMsg{})

		if !r.reconnect() {
			return
		}
	}
}

// readUntilFailure decodes the port and sends events to the TUI in
// batches, so a busy line does not flood the program with messages
func (r *busReader) readUntilFailure() {
	tracker := newSyncTracker()
	data := make(chan []byte, 16)
	go readPort(r.port, data)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var batch busBatchMsg
	flush := func() {
		if batch.sync != nil || len(batch.events) > 0 {
			r.p.Send(batch)
			batch = busBatchMsg{}
		}
	}

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			flush()
		case chunk, ok := <-data:
			if !ok {
				flush()
				return
			}
			for _, b := range chunk {
				ev, synced := tracker.feed(b)
				if synced {
					batch.sync = &syncMsg{invalidBytes: tracker.invalidBytes}
				}
				if ev != nil {
					batch.events = append(batch.events, *ev)
				}
			}
		}
	}
}

// reconnect reopens the port with exponential backoff. It returns false
// if the TUI exited first.
func (r *busReader) reconnect() bool {
	r.port.Close()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-r.done:
			return false
		case <-time.After(backoff):
		}

		port, connInfo, err := OpenPort()
		if err == nil {
			r.port = port
			r.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}
		log.Debug("reconnect failed", "error", err, "backoff", backoff)

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
