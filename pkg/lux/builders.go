// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import "encoding/binary"

// Request builders create Packets ready for encoding, with payloads laid
// out as the command catalog declares.

// NewGetID creates a GET_ID request.
func NewGetID(destination uint32) *Packet {
	return NewPacket(destination, CmdGetID, 0, nil)
}

// NewGetDescriptor creates a GET_DESCRIPTOR request for one chunk.
func NewGetDescriptor(destination uint32, chunk uint8) *Packet {
	return NewPacket(destination, CmdGetDescriptor, chunk, nil)
}

// NewReset creates a RESET request. flags is optional.
func NewReset(destination uint32, flags *uint8) *Packet {
	var payload []byte
	if flags != nil {
		payload = []byte{*flags}
	}
	return NewPacket(destination, CmdReset, 0, payload)
}

// NewSetAddress creates a SET_ADDR request.
func NewSetAddress(destination uint32, filter *AddressFilter) *Packet {
	payload, _ := filter.MarshalBinary()
	return NewPacket(destination, CmdSetAddr, 0, payload)
}

// NewFlashErase creates a FLASH_ERASE request for [addr, addr+length).
func NewFlashErase(destination, addr, length uint32) *Packet {
	return NewPacket(destination, CmdFlashErase, 0, addrLen(addr, length))
}

// NewFlashRead creates a FLASH_READ request for [addr, addr+length).
func NewFlashRead(destination, addr, length uint32) *Packet {
	return NewPacket(destination, CmdFlashRead, 0, addrLen(addr, length))
}

// NewFlashWrite creates a FLASH_WRITE request for one chunk written at
// base + FlashChunkSize*chunk.
func NewFlashWrite(destination uint32, chunk uint8, data []byte) *Packet {
	return NewPacket(destination, CmdFlashWrite, chunk, data)
}

// NewFrame creates one chunk of a frame update. cmd must be one of the
// FRAME opcodes; see FrameVariant.
func NewFrame(destination uint32, cmd Command, chunk uint8, pixels []byte) *Packet {
	return NewPacket(destination, cmd, chunk, pixels)
}

// NewSetLED creates a SET_LED request for the status LED.
func NewSetLED(destination uint32, on bool) *Packet {
	var v byte
	if on {
		v = 1
	}
	return NewPacket(destination, CmdSetLED, 0, []byte{v})
}

// NewSetLength creates a SET_LENGTH request.
func NewSetLength(destination uint32, length uint16) *Packet {
	return NewPacket(destination, CmdSetLength, 0, binary.LittleEndian.AppendUint16(nil, length))
}

// NewRequest creates a request with an empty payload, for commands that
// take none.
func NewRequest(destination uint32, cmd Command) *Packet {
	return NewPacket(destination, cmd, 0, nil)
}

func addrLen(addr, length uint32) []byte {
	out := binary.LittleEndian.AppendUint32(make([]byte, 0, 8), addr)
	return binary.LittleEndian.AppendUint32(out, length)
}

// ParseAddrLen splits an addr/len request payload.
func ParseAddrLen(payload []byte) (addr, length uint32, ok bool) {
	if len(payload) != 8 {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint32(payload[0:]), binary.LittleEndian.Uint32(payload[4:]), true
}
