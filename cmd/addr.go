// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zbanks/radiance-sub001/pkg/host"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

var (
	addrMulticast string
	addrMask      string
	addrCommit    bool
)

var addrCmd = &cobra.Command{
	Use:   "addr",
	Short: "Read or change a node's address filter",
}

var addrGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the node's live address filter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(d *host.Driver, dest uint32) error {
			f, err := d.GetAddress(dest)
			if err != nil {
				return err
			}
			fmt.Println(f.String())
			return nil
		})
	},
}

var addrSetCmd = &cobra.Command{
	Use:   "set <unicast>...",
	Short: "Replace the node's address filter",
	Long: `Replace the node's address filter with up to 16 unicast addresses and
one multicast address/mask pair.

The change applies immediately but only survives a reset once committed,
either with --commit or a later 'luxctl commit'.

Examples:
  luxctl addr set --dest 0x42 0x42 0x43
  luxctl addr set --dest 0x42 0x42 --mcast 0x80000000 --mask 0x80000000 --commit`,
	Args: cobra.RangeArgs(1, lux.UnicastSlots),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := buildAddressFilter(args, addrMulticast, addrMask)
		if err != nil {
			return err
		}
		return withNode(func(d *host.Driver, dest uint32) error {
			if err := d.SetAddress(dest, f); err != nil {
				return err
			}
			fmt.Printf("Set %s\n", f)
			if !addrCommit {
				return nil
			}
			// The node may now answer on a different address
			target := dest
			if !f.Match(dest) {
				target = f.Unicast[0]
			}
			if err := d.CommitConfig(target); err != nil {
				return fmt.Errorf("commit: %w", err)
			}
			fmt.Println("Committed")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(addrCmd)
	addrCmd.AddCommand(addrGetCmd)
	addrCmd.AddCommand(addrSetCmd)
	addrSetCmd.Flags().StringVar(&addrMulticast, "mcast", fmt.Sprintf("0x%08X", lux.DefaultMulticastMask), "Multicast address")
	addrSetCmd.Flags().StringVar(&addrMask, "mask", fmt.Sprintf("0x%08X", lux.DefaultMulticastMask), "Multicast mask (0 disables multicast)")
	addrSetCmd.Flags().BoolVar(&addrCommit, "commit", false, "Commit the configuration afterwards")
}

// buildAddressFilter parses unicast addresses and the multicast pair
func buildAddressFilter(unicast []string, mcast, mask string) (*lux.AddressFilter, error) {
	if len(unicast) > lux.UnicastSlots {
		return nil, fmt.Errorf("at most %d unicast addresses", lux.UnicastSlots)
	}

	var f lux.AddressFilter
	for i, s := range unicast {
		a, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		if a == lux.AddressHost {
			return nil, fmt.Errorf("address 0 is reserved for the host")
		}
		f.Unicast[i] = a
	}

	var err error
	if f.MulticastAddr, err = parseAddress(mcast); err != nil {
		return nil, err
	}
	if f.MulticastMask, err = parseAddress(mask); err != nil {
		return nil, err
	}
	return &f, nil
}
