// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

// Package lux provides a Go implementation of the Lux serial protocol.
//
// Lux is an addressed, point-to-multipoint binary protocol used by a host
// controller to exchange commands and frame data with LED strip nodes on a
// shared RS-485 line or over UDP. This package provides COBS framing,
// CRC-32 validation, the command catalog, and payload formatting.
package lux

// Packet size limits
const (
	PacketMaxSize  = 1024
	AddressSize    = 4
	HeaderSize     = AddressSize + 2 // destination + command + index
	CRCSize        = 4
	MaxPayloadSize = PacketMaxSize - 18
)

// CRCResidue is the CRC-32 of any frame followed by its own little-endian
// CRC trailer.
const CRCResidue = 0x2144DF1C

// Special addresses
const (
	AddressHost     = 0x00000000 // Responses to the host, never matched by nodes
	AddressAllNodes = 0xFFFFFFFF
)

// Unicast slots in an address filter
const UnicastSlots = 16

// Serial line defaults
const (
	DefaultBaudRate = 3000000
)

// Chunk sizes for indexed commands
const (
	FrameChunkSize = 1002 // 334 RGB pixels
	FlashChunkSize = 512
)

// Ack status values carried after the request CRC in ack payloads
const (
	AckOK      = 0x00
	AckInvalid = 0x01
	AckRange   = 0x02
)

// AckSize is the payload length of an ack response.
const AckSize = CRCSize + 1
