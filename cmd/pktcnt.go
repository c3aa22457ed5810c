// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zbanks/radiance-sub001/pkg/host"
)

var pktcntReset bool

var pktcntCmd = &cobra.Command{
	Use:   "pktcnt",
	Short: "Print a node's receive counters",
	Long: `Print the node's packet counters: good frames, malformed frames,
buffer overruns, CRC failures and receptions interrupted by the
application. With --reset the counters are zeroed after reading.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(d *host.Driver, dest uint32) error {
			c, err := d.GetPacketCounters(dest)
			if err != nil {
				return err
			}
			fmt.Printf("Good:           %d\n", c.Good)
			fmt.Printf("Malformed:      %d\n", c.Malformed)
			fmt.Printf("Overrun:        %d\n", c.Overrun)
			fmt.Printf("Bad CRC:        %d\n", c.BadCRC)
			fmt.Printf("RX Interrupted: %d\n", c.RxInterrupted)

			if pktcntReset {
				if err := d.ResetPacketCounters(dest); err != nil {
					return fmt.Errorf("reset: %w", err)
				}
				fmt.Println("Counters reset")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(pktcntCmd)
	pktcntCmd.Flags().BoolVar(&pktcntReset, "reset", false, "Zero the counters after reading")
}
