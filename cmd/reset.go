// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zbanks/radiance-sub001/pkg/host"
	"github.com/zbanks/radiance-sub001/pkg/node"
)

var resetBootloader bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restart a node",
	Long: `Restart a node. The node reloads its committed configuration, so
uncommitted address or length changes are lost.

With --bootloader the node is asked to stay in its bootloader.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(d *host.Driver, dest uint32) error {
			var flags *uint8
			if resetBootloader {
				f := uint8(node.ResetBootloader)
				flags = &f
			}
			if err := d.Reset(dest, flags); err != nil {
				return err
			}
			fmt.Printf("Node %08X reset\n", dest)
			return nil
		})
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Persist a node's live configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(d *host.Driver, dest uint32) error {
			if err := d.CommitConfig(dest); err != nil {
				return err
			}
			fmt.Printf("Node %08X configuration committed\n", dest)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(commitCmd)
	resetCmd.Flags().BoolVar(&resetBootloader, "bootloader", false, "Stay in the bootloader after reset")
}
