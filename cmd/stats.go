// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/cobra"
	"github.com/zbanks/radiance-sub001/pkg/host"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

var (
	statsPollInterval time.Duration
	statsOnce         bool
)

var statsCmd = &cobra.Command{
	Use:   "stats [address...]",
	Short: "Poll packet counters of several nodes",
	Long: `Poll the receive counters and identity of one or more nodes.

Nodes are given as arguments (and --dest). In the terminal UI more nodes
can be added with 'a' and removed with 'd'. With --once every node is
polled a single time and the results are printed.

Examples:
  luxctl stats --port /dev/ttyUSB0 0x10 0x11 0x12
  luxctl stats --udp 192.168.1.50:1337 --dest 0x42 --once`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().DurationVar(&statsPollInterval, "interval", 2*time.Second, "Time between polling rounds")
	statsCmd.Flags().BoolVar(&statsOnce, "once", false, "Poll once and print the results")
}

// nodeStatus is the latest poll result for one node
type nodeStatus struct {
	address  uint32
	id       string
	counters lux.PacketCounters
	err      error
	polled   time.Time
	polls    uint64
	failures uint64
}

// poller queries every node in its table. The table is shared with the
// TUI, which adds and removes nodes while polling runs.
type poller struct {
	driver *host.Driver
	nodes  *xsync.MapOf[uint32, nodeStatus]
}

func newPoller(d *host.Driver, addresses []uint32) *poller {
	p := &poller{
		driver: d,
		nodes:  xsync.NewMapOf[uint32, nodeStatus](),
	}
	for _, a := range addresses {
		p.add(a)
	}
	return p
}

// add starts polling a node. Adding a known node keeps its history.
func (p *poller) add(address uint32) {
	p.nodes.LoadOrStore(address, nodeStatus{address: address})
}

func (p *poller) remove(address uint32) {
	p.nodes.Delete(address)
}

// pollOnce queries every node one after another. The driver owns a
// half-duplex link, so requests are never issued in parallel.
func (p *poller) pollOnce() {
	var addresses []uint32
	p.nodes.Range(func(address uint32, _ nodeStatus) bool {
		addresses = append(addresses, address)
		return true
	})
	sort.Slice(addresses, func(i, j int) bool { return addresses[i] < addresses[j] })

	for _, address := range addresses {
		result := p.poll(address)
		// Skip nodes removed while their request was in flight
		p.nodes.Compute(address, func(old nodeStatus, loaded bool) (nodeStatus, bool) {
			if !loaded {
				return old, true
			}
			result.polls = old.polls + 1
			result.failures = old.failures
			if result.err != nil {
				result.failures++
				result.id = old.id
				result.counters = old.counters
			}
			return result, false
		})
	}
}

func (p *poller) poll(address uint32) nodeStatus {
	status := nodeStatus{address: address, polled: time.Now()}

	counters, err := p.driver.GetPacketCounters(address)
	if err != nil {
		status.err = err
		return status
	}
	status.counters = counters

	id, err := p.driver.GetID(address)
	if err != nil {
		status.err = err
		return status
	}
	status.id = id
	return status
}

// snapshot returns the table sorted by address
func (p *poller) snapshot() []nodeStatus {
	out := make([]nodeStatus, 0, p.nodes.Size())
	p.nodes.Range(func(_ uint32, s nodeStatus) bool {
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].address < out[j].address })
	return out
}

// run polls until the context is done, calling notify after each round
func (p *poller) run(ctx context.Context, interval time.Duration, notify func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.pollOnce()
		notify()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// statsAddresses collects node addresses from --dest and the arguments
func statsAddresses(args []string) ([]uint32, error) {
	var addresses []uint32
	if cfg.Dest != "" {
		dest, err := cfg.Destination()
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, dest)
	}
	for _, arg := range args {
		a, err := parseAddress(arg)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}
	return addresses, nil
}

// formatNodeStatus renders one poll result as a single line
func formatNodeStatus(s nodeStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%08X", s.address)
	switch {
	case s.polls == 0:
		b.WriteString("  (not polled)")
		return b.String()
	case s.err != nil:
		fmt.Fprintf(&b, "  ERROR: %v", s.err)
		return b.String()
	}
	c := s.counters
	fmt.Fprintf(&b, "  %-20q good=%d malformed=%d overrun=%d bad_crc=%d interrupted=%d",
		s.id, c.Good, c.Malformed, c.Overrun, c.BadCRC, c.RxInterrupted)
	if s.failures > 0 {
		fmt.Fprintf(&b, "  (%d/%d polls failed)", s.failures, s.polls)
	}
	return b.String()
}

func runStats(cmd *cobra.Command, args []string) error {
	addresses, err := statsAddresses(args)
	if err != nil {
		return err
	}
	if statsOnce && len(addresses) == 0 {
		return fmt.Errorf("no node addresses given")
	}

	d, connInfo, err := OpenDriver()
	if err != nil {
		return err
	}
	defer d.Close()

	p := newPoller(d, addresses)

	if statsOnce {
		p.pollOnce()
		failed := 0
		for _, s := range p.snapshot() {
			fmt.Println(formatNodeStatus(s))
			if s.err != nil {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d nodes did not respond", failed, len(addresses))
		}
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	prog := tea.NewProgram(initialStatsModel(p, connInfo), tea.WithAltScreen())
	go p.run(ctx, statsPollInterval, func() { prog.Send(pollDoneMsg{}) })

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
