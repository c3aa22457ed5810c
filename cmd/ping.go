// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round trips to a node with GET_ID",
	Long: `Send GET_ID requests to a node and wait for each response.

Every request is a single attempt, so lost frames show up as loss rather
than being hidden by retries. Useful for verifying:
  - The link is established (serial, UDP or WebSocket bridge)
  - The node answers on the given address
  - The baud rate and line turnaround are right

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between pings")
}

func runPing(cmd *cobra.Command, args []string) error {
	dest, err := cfg.Destination()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenDriver()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()
	// One attempt per ping, so every lost reply is reported
	d := conn.WithBudget(0, 1)

	fmt.Printf("luxctl - Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Destination: 0x%08X\n", dest)
	fmt.Printf("Timeout: %s per ping\n", cfg.Timeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0
	var total, best, worst time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		start := time.Now()
		id, err := d.GetID(dest)
		rtt := time.Since(start)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			fmt.Printf("reply from %08X %q, rtt=%v\n", dest, id, rtt.Round(10*time.Microsecond))
			successCount++
			total += rtt
			if best == 0 || rtt < best {
				best = rtt
			}
			worst = max(worst, rtt)
		}

		if i < pingCount {
			time.Sleep(pingInterval)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		pingCount, successCount, float64(failCount)/float64(max(pingCount, 1))*100)
	if successCount > 0 {
		fmt.Printf("rtt min/avg/max = %v/%v/%v\n",
			best.Round(10*time.Microsecond),
			(total / time.Duration(successCount)).Round(10*time.Microsecond),
			worst.Round(10*time.Microsecond))
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
