// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zbanks/radiance-sub001/pkg/host"
)

var (
	frameFile   string
	frameHold   bool
	frameFlip   bool
	frameAck    bool
	framePixels int
)

var lengthCmd = &cobra.Command{
	Use:   "length [pixels]",
	Short: "Read or set the strip length",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(d *host.Driver, dest uint32) error {
			if len(args) == 0 {
				n, err := d.GetLength(dest)
				if err != nil {
					return err
				}
				fmt.Println(n)
				return nil
			}

			n, err := strconv.ParseUint(args[0], 0, 16)
			if err != nil {
				return fmt.Errorf("invalid length %q: %w", args[0], err)
			}
			return d.SetLength(dest, uint16(n))
		})
	},
}

var ledCmd = &cobra.Command{
	Use:       "led on|off",
	Short:     "Switch the node's status LED",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var on bool
		switch strings.ToLower(args[0]) {
		case "on", "1", "true":
			on = true
		case "off", "0", "false":
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}
		return withNode(func(d *host.Driver, dest uint32) error {
			return d.SetLED(dest, on)
		})
	},
}

var frameCmd = &cobra.Command{
	Use:   "frame [rrggbb]",
	Short: "Send a frame to a strip",
	Long: `Send pixel data to a strip: one solid color, or raw RGB bytes from a file.

A solid color fills the whole strip; the length is read from the node
unless --pixels is given. Frames longer than one packet are held chunk by
chunk and flipped with the last one.

--hold stores the frame without showing it. --flip without a color or file
shows a previously held frame. --ack waits for an ack per chunk.

Examples:
  luxctl frame --dest 0x42 ff8000
  luxctl frame --dest 0x80000001 --file pattern.rgb --hold
  luxctl frame --dest 0x80000001 --flip`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFrame,
}

func init() {
	rootCmd.AddCommand(lengthCmd)
	rootCmd.AddCommand(ledCmd)
	rootCmd.AddCommand(frameCmd)
	frameCmd.Flags().StringVar(&frameFile, "file", "", "Raw RGB file to send")
	frameCmd.Flags().BoolVar(&frameHold, "hold", false, "Store the frame without showing it")
	frameCmd.Flags().BoolVar(&frameFlip, "flip", false, "Show the held frame")
	frameCmd.Flags().BoolVar(&frameAck, "ack", false, "Wait for an ack per chunk")
	frameCmd.Flags().IntVar(&framePixels, "pixels", 0, "Pixel count for a solid color (default: node length)")
}

// parseColor parses an rrggbb hex color, with or without a leading #
func parseColor(s string) ([3]byte, error) {
	var rgb [3]byte
	s = strings.TrimPrefix(strings.TrimPrefix(s, "#"), "0x")
	if len(s) != 6 {
		return rgb, fmt.Errorf("invalid color %q: want rrggbb", s)
	}
	if _, err := hex.Decode(rgb[:], []byte(s)); err != nil {
		return rgb, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return rgb, nil
}

// solidFrame repeats one color for n pixels
func solidFrame(rgb [3]byte, n int) []byte {
	return bytes.Repeat(rgb[:], n)
}

func runFrame(cmd *cobra.Command, args []string) error {
	if frameHold && frameFlip {
		return fmt.Errorf("--hold and --flip are exclusive")
	}

	var color *[3]byte
	if len(args) == 1 {
		rgb, err := parseColor(args[0])
		if err != nil {
			return err
		}
		color = &rgb
	}

	var pixels []byte
	if frameFile != "" {
		if color != nil {
			return fmt.Errorf("give either a color or --file, not both")
		}
		data, err := os.ReadFile(frameFile)
		if err != nil {
			return err
		}
		pixels = data
	}

	if color == nil && pixels == nil && !frameFlip {
		return fmt.Errorf("nothing to send: give a color, --file or --flip")
	}

	return withNode(func(d *host.Driver, dest uint32) error {
		if color == nil && pixels == nil {
			return d.Flip(dest, frameAck)
		}

		if color != nil {
			n := framePixels
			if n == 0 {
				length, err := d.GetLength(dest)
				if err != nil {
					return fmt.Errorf("strip length (use --pixels for multicast): %w", err)
				}
				n = int(length)
			}
			pixels = solidFrame(*color, n)
		}

		if err := d.WriteFrame(dest, pixels, host.FrameOptions{Hold: frameHold, Ack: frameAck}); err != nil {
			return err
		}
		if frameFlip {
			return d.Flip(dest, frameAck)
		}
		return nil
	})
}
