// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import "fmt"

// Command is a one-byte Lux opcode.
type Command uint8

// Identity and lifecycle 0x00-0x03
const (
	CmdGetID         Command = 0x00
	CmdGetDescriptor Command = 0x01
	CmdReset         Command = 0x02
	CmdCommitConfig  Command = 0x03
)

// Addressing and diagnostics 0x04-0x07
const (
	CmdGetAddr     Command = 0x04
	CmdSetAddr     Command = 0x05
	CmdGetPktCnt   Command = 0x06
	CmdResetPktCnt Command = 0x07
)

// Bootloader 0x08-0x0C
const (
	CmdInvalidateApp Command = 0x08
	CmdFlashBaseAddr Command = 0x09
	CmdFlashErase    Command = 0x0A
	CmdFlashWrite    Command = 0x0B
	CmdFlashRead     Command = 0x0C
)

// Strip control 0x10-0x18
const (
	CmdFrame        Command = 0x10
	CmdFrameAck     Command = 0x11
	CmdFrameHold    Command = 0x12
	CmdFrameHoldAck Command = 0x13
	CmdFrameFlip    Command = 0x14
	CmdFrameFlipAck Command = 0x15
	CmdSetLED       Command = 0x16
	CmdSetLength    Command = 0x17
	CmdGetLength    Command = 0x18
)

// Shape describes the payload layout of a request or response.
type Shape int

const (
	ShapeNone     Shape = iota // no packet at all
	ShapeEmpty                 // packet with an empty payload
	ShapeScalar                // fixed-size scalar
	ShapeStruct                // fixed-size struct
	ShapeVariable              // variable-length array
	ShapeAck                   // request CRC + status byte
)

// CommandSpec is the catalog entry for one opcode.
type CommandSpec struct {
	Name     string
	Request  Shape
	Response Shape

	// Payload length bounds for the request (inclusive)
	RequestMin int
	RequestMax int

	// Fixed response length, 0 when variable or ack
	ResponseLen int

	// Indexed commands use the index byte to address a sub-range.
	Indexed bool
}

// Acked returns true if the node answers this command with an ack.
func (s CommandSpec) Acked() bool {
	return s.Response == ShapeAck
}

var commands = map[Command]CommandSpec{
	CmdGetID:         {Name: "GET_ID", Request: ShapeEmpty, Response: ShapeVariable},
	CmdGetDescriptor: {Name: "GET_DESCRIPTOR", Request: ShapeEmpty, Response: ShapeVariable, Indexed: true},
	CmdReset:         {Name: "RESET", Request: ShapeScalar, Response: ShapeAck, RequestMax: 1},
	CmdCommitConfig:  {Name: "COMMIT_CONFIG", Request: ShapeEmpty, Response: ShapeAck},

	CmdGetAddr:     {Name: "GET_ADDR", Request: ShapeEmpty, Response: ShapeStruct, ResponseLen: AddressFilterSize},
	CmdSetAddr:     {Name: "SET_ADDR", Request: ShapeStruct, Response: ShapeAck, RequestMin: AddressFilterSize, RequestMax: AddressFilterSize},
	CmdGetPktCnt:   {Name: "GET_PKTCNT", Request: ShapeEmpty, Response: ShapeStruct, ResponseLen: PacketCountersSize},
	CmdResetPktCnt: {Name: "RESET_PKTCNT", Request: ShapeEmpty, Response: ShapeAck},

	CmdInvalidateApp: {Name: "INVALIDATEAPP", Request: ShapeEmpty, Response: ShapeAck},
	CmdFlashBaseAddr: {Name: "FLASH_BASEADDR", Request: ShapeEmpty, Response: ShapeScalar, ResponseLen: 4},
	CmdFlashErase:    {Name: "FLASH_ERASE", Request: ShapeStruct, Response: ShapeAck, RequestMin: 8, RequestMax: 8},
	CmdFlashWrite:    {Name: "FLASH_WRITE", Request: ShapeVariable, Response: ShapeAck, RequestMin: 1, RequestMax: FlashChunkSize, Indexed: true},
	CmdFlashRead:     {Name: "FLASH_READ", Request: ShapeStruct, Response: ShapeVariable, RequestMin: 8, RequestMax: 8},

	CmdFrame:        {Name: "FRAME", Request: ShapeVariable, Response: ShapeNone, RequestMax: FrameChunkSize, Indexed: true},
	CmdFrameAck:     {Name: "FRAME_ACK", Request: ShapeVariable, Response: ShapeAck, RequestMax: FrameChunkSize, Indexed: true},
	CmdFrameHold:    {Name: "FRAME_HOLD", Request: ShapeVariable, Response: ShapeNone, RequestMax: FrameChunkSize, Indexed: true},
	CmdFrameHoldAck: {Name: "FRAME_HOLD_ACK", Request: ShapeVariable, Response: ShapeAck, RequestMax: FrameChunkSize, Indexed: true},
	CmdFrameFlip:    {Name: "FRAME_FLIP", Request: ShapeVariable, Response: ShapeNone, RequestMax: FrameChunkSize, Indexed: true},
	CmdFrameFlipAck: {Name: "FRAME_FLIP_ACK", Request: ShapeVariable, Response: ShapeAck, RequestMax: FrameChunkSize, Indexed: true},
	CmdSetLED:       {Name: "SET_LED", Request: ShapeScalar, Response: ShapeAck, RequestMin: 1, RequestMax: 1},
	CmdSetLength:    {Name: "SET_LENGTH", Request: ShapeScalar, Response: ShapeAck, RequestMin: 2, RequestMax: 2},
	CmdGetLength:    {Name: "GET_LENGTH", Request: ShapeEmpty, Response: ShapeScalar, ResponseLen: 2},
}

// LookupCommand returns the catalog entry for an opcode.
func LookupCommand(c Command) (CommandSpec, bool) {
	s, ok := commands[c]
	return s, ok
}

// Commands returns every opcode in the catalog in ascending order.
func Commands() []Command {
	out := make([]Command, 0, len(commands))
	for c := Command(0); ; c++ {
		if _, ok := commands[c]; ok {
			out = append(out, c)
		}
		if c == 0xFF {
			break
		}
	}
	return out
}

// String returns the catalog name of the opcode.
func (c Command) String() string {
	if s, ok := commands[c]; ok {
		return s.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(c))
}

// FrameVariant returns the opcode for a frame update with the given
// hold/flip/ack options.
func FrameVariant(hold, flip, ack bool) Command {
	var c Command
	switch {
	case hold:
		c = CmdFrameHold
	case flip:
		c = CmdFrameFlip
	default:
		c = CmdFrame
	}
	if ack {
		c++
	}
	return c
}

// WithoutAck maps an _ACK frame twin to its plain opcode.
func (c Command) WithoutAck() Command {
	switch c {
	case CmdFrameAck, CmdFrameHoldAck, CmdFrameFlipAck:
		return c - 1
	}
	return c
}
