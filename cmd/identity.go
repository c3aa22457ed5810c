// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zbanks/radiance-sub001/pkg/host"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Print a node's identity string",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(d *host.Driver, dest uint32) error {
			id, err := d.GetID(dest)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		})
	},
}

var descriptorCmd = &cobra.Command{
	Use:   "descriptor",
	Short: "Read and print a node's descriptor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(d *host.Driver, dest uint32) error {
			desc, err := d.GetDescriptor(dest)
			if err != nil {
				return err
			}
			fmt.Print(formatDescriptor(desc))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(idCmd)
	rootCmd.AddCommand(descriptorCmd)
}

// formatDescriptor renders a descriptor one field per line
func formatDescriptor(d *lux.Descriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name:         %s\n", d.Name)
	fmt.Fprintf(&b, "Firmware:     %s\n", d.Firmware)
	fmt.Fprintf(&b, "Hardware ID:  0x%08X\n", d.HardwareID)
	fmt.Fprintf(&b, "Strip Length: %d\n", d.StripLength)
	if d.LEDType != "" {
		fmt.Fprintf(&b, "LED Type:     %s\n", d.LEDType)
	}
	if d.Capabilities&lux.CapBootloader != 0 {
		fmt.Fprintf(&b, "Flash:        0x%08X (%d bytes)\n", d.FlashBase, d.FlashSize)
	}

	var caps []string
	if d.Capabilities&lux.CapStrip != 0 {
		caps = append(caps, "strip")
	}
	if d.Capabilities&lux.CapBootloader != 0 {
		caps = append(caps, "bootloader")
	}
	if d.Capabilities&lux.CapStatusLED != 0 {
		caps = append(caps, "status-led")
	}
	if len(caps) == 0 {
		caps = append(caps, "none")
	}
	fmt.Fprintf(&b, "Capabilities: %s\n", strings.Join(caps, ", "))
	return b.String()
}
