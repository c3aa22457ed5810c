// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/zbanks/radiance-sub001/pkg/host"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

var rawLogHex bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display every frame on the bus in human-readable format",
	Long: `Continuously decode and display Lux frames as they arrive.

Each frame is printed with timestamp, destination, command and payload.
Frames that fail to decode are reported inline. With --hex the raw bytes
read from the port are printed as well.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print raw received bytes")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	port, connInfo, err := OpenPort()
	if err != nil {
		return err
	}
	defer port.Close()

	fmt.Printf("luxctl - Raw Packet Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := lux.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := port.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, host.ErrConnectionClosed) {
				log.Info("connection closed")
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}

		if rawLogHex && n > 0 {
			fmt.Printf("[%s] RX %d bytes: % x\n", time.Now().Format("15:04:05.000"), n, buf[:n])
		}

		for i := 0; i < n; i++ {
			packet, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if packet != nil {
				fmt.Print(lux.FormatPacket(packet))
			}
		}
	}
}
