// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

var (
	packetTestWait time.Duration
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid Lux frame",
	Long: `Wait for a valid Lux frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
Lux frame. It ignores invalid bytes and waits for a complete frame that
passes the CRC check.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking that traffic reaches the host at the right baud rate.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().DurationVar(&packetTestWait, "wait", 10*time.Second, "How long to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	port, connInfo, err := OpenPort()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer port.Close()

	fmt.Printf("luxctl - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s\n", packetTestWait)
	fmt.Printf("Waiting for valid Lux frame...\n\n")

	decoder := lux.NewDecoder()
	buf := make([]byte, 128)

	packetChan := make(chan *lux.Packet, 1)
	errChan := make(chan error, 1)

	go func() {
		invalidFrames := 0
		for {
			n, err := port.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				packet, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					invalidFrames++
					continue
				}
				if packet != nil {
					if invalidFrames > 0 {
						fmt.Printf("(skipped %d invalid frames before sync)\n", invalidFrames)
					}
					packetChan <- packet
					return
				}
			}
		}
	}()

	select {
	case packet := <-packetChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Command: %s (0x%02X)\n", packet.Command, uint8(packet.Command))
		fmt.Printf("  Destination: 0x%08X\n", packet.Destination)
		fmt.Printf("  Payload: %d bytes\n", len(packet.Payload))
		fmt.Printf("  CRC: 0x%08X\n", packet.CRC)
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(packetTestWait):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %s\n", packetTestWait)
		os.Exit(1)
	}

	return nil
}
