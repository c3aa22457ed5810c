// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zbanks/radiance-sub001/pkg/host"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

var (
	flashNoVerify bool
	flashNoReset  bool
)

var flashCmd = &cobra.Command{
	Use:   "flash <image>",
	Short: "Write a firmware image through the bootloader",
	Long: `Write an application image to a node's flash through its bootloader.

Steps:
  1. Invalidate the application so the node stays in its bootloader
  2. Erase the image region starting at the flash base address
  3. Write the image in chunks
  4. Read it back and compare (skip with --no-verify)
  5. Reset the node (skip with --no-reset)

Example:
  luxctl flash --port /dev/ttyUSB0 --dest 0x42 firmware.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runFlash,
}

func init() {
	rootCmd.AddCommand(flashCmd)
	flashCmd.Flags().BoolVar(&flashNoVerify, "no-verify", false, "Skip read-back verification")
	flashCmd.Flags().BoolVar(&flashNoReset, "no-reset", false, "Leave the node in the bootloader")
}

// progressPrinter redraws a single progress line on stderr
func progressPrinter(label string) host.Progress {
	return func(done, total int) {
		pct := 100
		if total > 0 {
			pct = done * 100 / total
		}
		fmt.Fprintf(os.Stderr, "\r%s: %d/%d bytes (%d%%)", label, done, total, pct)
		if done >= total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// firstMismatch returns the offset of the first differing byte, or -1
func firstMismatch(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) != len(b) {
		return n
	}
	return -1
}

func runFlash(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if len(image) == 0 {
		return fmt.Errorf("image %s is empty", args[0])
	}

	return withNode(func(d *host.Driver, dest uint32) error {
		if desc, err := d.GetDescriptor(dest); err == nil {
			if desc.Capabilities&lux.CapBootloader == 0 {
				return fmt.Errorf("node %08X has no bootloader", dest)
			}
			if desc.FlashSize > 0 && uint32(len(image)) > desc.FlashSize {
				return fmt.Errorf("image is %d bytes, flash holds %d", len(image), desc.FlashSize)
			}
		} else {
			log.Warn("descriptor unavailable, skipping size check", "error", err)
		}

		base, err := d.FlashBaseAddr(dest)
		if err != nil {
			return fmt.Errorf("flash base address: %w", err)
		}
		fmt.Printf("Flashing %d bytes at 0x%08X\n", len(image), base)

		if err := d.InvalidateApp(dest); err != nil {
			return fmt.Errorf("invalidate: %w", err)
		}
		if err := d.FlashErase(dest, base, uint32(len(image))); err != nil {
			return fmt.Errorf("erase: %w", err)
		}
		if err := d.FlashWrite(dest, image, progressPrinter("Write")); err != nil {
			return err
		}

		if !flashNoVerify {
			readBack, err := d.FlashRead(dest, base, uint32(len(image)), progressPrinter("Verify"))
			if err != nil {
				return err
			}
			if off := firstMismatch(image, readBack); off >= 0 {
				return fmt.Errorf("verify failed at offset 0x%X", off)
			}
			fmt.Println("Verify OK")
		}

		if flashNoReset {
			return nil
		}
		flags := uint8(0)
		if err := d.Reset(dest, &flags); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		fmt.Println("Node reset")
		return nil
	})
}
