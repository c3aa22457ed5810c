// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zbanks/radiance-sub001/pkg/node"
)

var (
	nodeID        string
	nodeAddress   string
	nodeLength    uint16
	nodeMaxLength int
	nodeStore     string
	nodeFlashBase string
	nodeFlashSize uint32
	nodeListen    string
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a simulated Lux node",
	Long: `Run a simulated Lux node that answers the full command catalog.

The node listens on a serial port (--port) or on a UDP socket (--listen).
Frames are kept in memory; with --store the committed configuration is
saved to a CBOR file and reloaded on reset and restart.

Examples:
  luxctl node --port /dev/ttyUSB1 --address 0x42
  luxctl node --listen :1337 --address 0x42 --store node42.cbor --flash-size 65536`,
	Args: cobra.NoArgs,
	RunE: runNode,
}

func init() {
	rootCmd.AddCommand(nodeCmd)
	nodeCmd.Flags().StringVar(&nodeID, "id", "luxctl simulated node", "Identity string")
	nodeCmd.Flags().StringVar(&nodeAddress, "address", "0x00000001", "Unicast address")
	nodeCmd.Flags().Uint16Var(&nodeLength, "length", 60, "Initial strip length")
	nodeCmd.Flags().IntVar(&nodeMaxLength, "max-length", node.DefaultMaxLength, "Largest accepted strip length")
	nodeCmd.Flags().StringVar(&nodeStore, "store", "", "CBOR file holding the committed configuration")
	nodeCmd.Flags().StringVar(&nodeFlashBase, "flash-base", "0x08004000", "Application flash base address")
	nodeCmd.Flags().Uint32Var(&nodeFlashSize, "flash-size", 0, "Application flash size (0 disables the bootloader)")
	nodeCmd.Flags().StringVar(&nodeListen, "listen", "", "UDP address to listen on instead of a serial port")
}

// loggingStrip records frames in memory and logs them
type loggingStrip struct {
	node.MemoryStrip
	log *slog.Logger
}

func (s *loggingStrip) SetLength(n int) error {
	s.log.Info("strip length", "pixels", n)
	return s.MemoryStrip.SetLength(n)
}

func (s *loggingStrip) Show(pixels []byte) {
	s.MemoryStrip.Show(pixels)
	s.log.Debug("frame shown", "pixels", len(pixels)/3, "shows", s.Shows())
}

func (s *loggingStrip) SetStatusLED(on bool) {
	s.log.Info("status led", "on", on)
	s.MemoryStrip.SetStatusLED(on)
}

// nodeHAL is a HAL that runs on its own goroutines
type nodeHAL interface {
	node.HAL
	Wake() <-chan struct{}
	Err() error
	io.Closer
}

func openNodeHAL() (nodeHAL, string, error) {
	if nodeListen != "" {
		conn, err := net.ListenPacket("udp", nodeListen)
		if err != nil {
			return nil, "", fmt.Errorf("failed to listen on %s: %w", nodeListen, err)
		}
		return node.NewDatagramHAL(conn, log), fmt.Sprintf("UDP: %s", conn.LocalAddr()), nil
	}

	if cfg.Port != "" {
		port, err := OpenSerialPort(cfg.Port, cfg.Baud)
		if err != nil {
			return nil, "", err
		}
		return node.NewPortHAL(port, log), fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --listen must be specified")
}

func runNode(cmd *cobra.Command, args []string) error {
	address, err := parseAddress(nodeAddress)
	if err != nil {
		return err
	}

	var store node.ConfigStore = &node.MemoryStore{}
	if nodeStore != "" {
		store = &node.FileStore{Path: nodeStore}
	}

	var flash *node.Flash
	if nodeFlashSize > 0 {
		base, err := parseAddress(nodeFlashBase)
		if err != nil {
			return err
		}
		flash = node.NewFlash(base, nodeFlashSize)
	}

	hal, connInfo, err := openNodeHAL()
	if err != nil {
		return err
	}
	defer hal.Close()

	device := node.NewDevice(node.DeviceConfig{
		Name:       "luxctl-node",
		Firmware:   rootCmd.Version,
		HardwareID: address,
		LEDType:    "simulated",
		MaxLength:  nodeMaxLength,
		Defaults:   node.DefaultSettings(nodeID, address, nodeLength),
		Store:      store,
		Strip:      &loggingStrip{log: log.WithGroup("strip")},
		Flash:      flash,
		OnReset: func(flags uint8) {
			log.Info("reset", "bootloader", flags&node.ResetBootloader != 0)
		},
		Logger: log,
	})

	engine := node.NewEngine(hal, node.Config{
		Filter:  device,
		Handler: device,
		Logger:  log,
	})

	settings := device.Settings()
	log.Info("node running",
		"link", connInfo,
		"id", settings.ID,
		"filter", settings.Filter.String(),
		"length", settings.Length,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Stop when the link fails
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if hal.Err() != nil {
					cancel()
					return
				}
			}
		}
	}()

	err = node.Run(ctx, engine, hal.Wake())
	if halErr := hal.Err(); halErr != nil {
		return fmt.Errorf("link failed: %w", halErr)
	}
	if errors.Is(err, context.Canceled) {
		c := engine.Counters()
		log.Info("node stopped",
			"good", c.Good,
			"malformed", c.Malformed,
			"overrun", c.Overrun,
			"bad_crc", c.BadCRC,
			"rx_interrupted", c.RxInterrupted,
		)
		return nil
	}
	return err
}
