// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import (
	"encoding/binary"
	"fmt"
)

// Wire sizes of the node-side structs
const (
	AddressFilterSize  = 8 + 4*UnicastSlots // 72
	PacketCountersSize = 5 * 4              // 20
)

// DefaultMulticastMask selects the multicast group bit shared by all nodes.
const DefaultMulticastMask = 0x80000000

// AddressMatcher decides whether a destination is meant for this node.
type AddressMatcher interface {
	Match(destination uint32) bool
}

// AddressFilter is a node's address configuration: one multicast
// address/mask pair and up to 16 unicast addresses. Unused unicast slots
// are zero.
type AddressFilter struct {
	MulticastAddr uint32
	MulticastMask uint32
	Unicast       [UnicastSlots]uint32
}

// DefaultAddressFilter returns a filter answering to id and to every
// address with the multicast bit set, including AddressAllNodes.
func DefaultAddressFilter(id uint32) AddressFilter {
	f := AddressFilter{
		MulticastAddr: DefaultMulticastMask,
		MulticastMask: DefaultMulticastMask,
	}
	f.Unicast[0] = id
	return f
}

// Match implements AddressMatcher. The host address never matches so nodes
// on a shared line ignore each other's responses.
func (f *AddressFilter) Match(destination uint32) bool {
	if destination == AddressHost {
		return false
	}
	for _, u := range f.Unicast {
		if u != 0 && u == destination {
			return true
		}
	}
	if f.MulticastMask != 0 && destination&f.MulticastMask == f.MulticastAddr&f.MulticastMask {
		return true
	}
	return false
}

// MarshalBinary encodes the filter as 72 little-endian bytes.
func (f *AddressFilter) MarshalBinary() ([]byte, error) {
	out := make([]byte, AddressFilterSize)
	binary.LittleEndian.PutUint32(out[0:], f.MulticastAddr)
	binary.LittleEndian.PutUint32(out[4:], f.MulticastMask)
	for i, u := range f.Unicast {
		binary.LittleEndian.PutUint32(out[8+4*i:], u)
	}
	return out, nil
}

// UnmarshalBinary decodes a 72-byte filter.
func (f *AddressFilter) UnmarshalBinary(data []byte) error {
	if len(data) != AddressFilterSize {
		return fmt.Errorf("address filter is %d bytes (want %d)", len(data), AddressFilterSize)
	}
	f.MulticastAddr = binary.LittleEndian.Uint32(data[0:])
	f.MulticastMask = binary.LittleEndian.Uint32(data[4:])
	for i := range f.Unicast {
		f.Unicast[i] = binary.LittleEndian.Uint32(data[8+4*i:])
	}
	return nil
}

// String lists the active addresses.
func (f *AddressFilter) String() string {
	s := fmt.Sprintf("mcast=0x%08X/0x%08X unicast=[", f.MulticastAddr, f.MulticastMask)
	first := true
	for _, u := range f.Unicast {
		if u == 0 {
			continue
		}
		if !first {
			s += " "
		}
		s += fmt.Sprintf("0x%08X", u)
		first = false
	}
	return s + "]"
}

// PacketCounters are the node engine's receive diagnostics.
type PacketCounters struct {
	Good          uint32
	Malformed     uint32
	Overrun       uint32
	BadCRC        uint32
	RxInterrupted uint32
}

// MarshalBinary encodes the counters as five little-endian u32.
func (c *PacketCounters) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, PacketCountersSize)
	for _, v := range []uint32{c.Good, c.Malformed, c.Overrun, c.BadCRC, c.RxInterrupted} {
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	return out, nil
}

// UnmarshalBinary decodes a 20-byte counter block.
func (c *PacketCounters) UnmarshalBinary(data []byte) error {
	if len(data) != PacketCountersSize {
		return fmt.Errorf("packet counters are %d bytes (want %d)", len(data), PacketCountersSize)
	}
	c.Good = binary.LittleEndian.Uint32(data[0:])
	c.Malformed = binary.LittleEndian.Uint32(data[4:])
	c.Overrun = binary.LittleEndian.Uint32(data[8:])
	c.BadCRC = binary.LittleEndian.Uint32(data[12:])
	c.RxInterrupted = binary.LittleEndian.Uint32(data[16:])
	return nil
}

// Errors returns the sum of all failure counters.
func (c PacketCounters) Errors() uint32 {
	return c.Malformed + c.Overrun + c.BadCRC + c.RxInterrupted
}

func (c PacketCounters) String() string {
	return fmt.Sprintf("good=%d malformed=%d overrun=%d bad_crc=%d rx_interrupted=%d",
		c.Good, c.Malformed, c.Overrun, c.BadCRC, c.RxInterrupted)
}
