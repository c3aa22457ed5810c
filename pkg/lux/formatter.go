// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.timestamp.Format("15:04:05.000")
	direction := "->"
	if p.IsResponse() {
		direction = "<-"
	}

	result := fmt.Sprintf("[%s] %s %s (0x%02X) dest=%08X idx=%d len=%d crc=%08X\n",
		timestamp, direction, p.Command, uint8(p.Command), p.Destination, p.Index, len(p.Payload), p.CRC)

	return result + FormatPayload(p)
}

// FormatAckStatus returns the human-readable name of an ack status
func FormatAckStatus(status uint8) string {
	switch status {
	case AckOK:
		return "OK"
	case AckInvalid:
		return "INVALID"
	case AckRange:
		return "OUT_OF_RANGE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", status)
	}
}

// FormatPayload formats the payload based on command and direction
func FormatPayload(p *Packet) string {
	payload := p.Payload
	spec, known := LookupCommand(p.Command)

	if p.IsResponse() && known && spec.Acked() {
		crc, status, err := ParseAck(payload)
		if err == nil {
			return fmt.Sprintf("  Ack: %s, Request CRC: 0x%08X\n", FormatAckStatus(status), crc)
		}
	}

	if len(payload) == 0 {
		return "  (no payload)\n"
	}

	switch p.Command {
	case CmdGetID:
		if p.IsResponse() {
			return fmt.Sprintf("  ID: %q\n", string(payload))
		}

	case CmdGetDescriptor:
		if p.IsResponse() && p.Index == 0 {
			if d, err := ParseDescriptor(payload); err == nil {
				return formatDescriptor(d)
			}
		}

	case CmdGetAddr, CmdSetAddr:
		var f AddressFilter
		if err := f.UnmarshalBinary(payload); err == nil {
			return fmt.Sprintf("  Filter: %s\n", f.String())
		}

	case CmdGetPktCnt:
		var c PacketCounters
		if err := c.UnmarshalBinary(payload); err == nil {
			return fmt.Sprintf("  Counters: %s\n", c)
		}

	case CmdReset:
		return fmt.Sprintf("  Flags: 0x%02X\n", payload[0])

	case CmdFlashBaseAddr:
		if len(payload) == 4 {
			return fmt.Sprintf("  Base: 0x%08X\n", binary.LittleEndian.Uint32(payload))
		}

	case CmdFlashErase, CmdFlashRead:
		if addr, length, ok := ParseAddrLen(payload); ok && !p.IsResponse() {
			return fmt.Sprintf("  Address: 0x%08X, Length: %d\n", addr, length)
		}

	case CmdFlashWrite:
		return fmt.Sprintf("  Offset: %d, Data: %d bytes\n", int(p.Index)*FlashChunkSize, len(payload))

	case CmdFrame, CmdFrameAck, CmdFrameHold, CmdFrameHoldAck, CmdFrameFlip, CmdFrameFlipAck:
		first := int(p.Index) * FrameChunkSize / 3
		return fmt.Sprintf("  Pixels: %d-%d (%d bytes)\n", first, first+len(payload)/3-1, len(payload))

	case CmdSetLED:
		state := "OFF"
		if payload[0] != 0 {
			state = "ON"
		}
		return fmt.Sprintf("  LED: %s\n", state)

	case CmdSetLength, CmdGetLength:
		if len(payload) == 2 {
			return fmt.Sprintf("  Length: %d pixels\n", binary.LittleEndian.Uint16(payload))
		}
	}

	return formatHexDump(payload)
}

func formatDescriptor(d *Descriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Name: %s, Firmware: %s, Hardware: 0x%08X\n", d.Name, d.Firmware, d.HardwareID)
	fmt.Fprintf(&b, "  Strip: %d pixels", d.StripLength)
	if d.LEDType != "" {
		fmt.Fprintf(&b, " (%s)", d.LEDType)
	}
	b.WriteString("\n")
	if d.Has(CapBootloader) {
		fmt.Fprintf(&b, "  Flash: 0x%08X + %d bytes\n", d.FlashBase, d.FlashSize)
	}
	return b.String()
}

// Default: hex dump
func formatHexDump(payload []byte) string {
	const maxDump = 64

	var b strings.Builder
	b.WriteString("  Payload: ")
	for i, v := range payload {
		if i >= maxDump {
			fmt.Fprintf(&b, "... (%d more)", len(payload)-maxDump)
			break
		}
		if i > 0 && i%16 == 0 {
			b.WriteString("\n           ")
		}
		fmt.Fprintf(&b, "%02X ", v)
	}
	b.WriteString("\n")
	return b.String()
}
