// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Packet is one decoded Lux frame.
type Packet struct {
	Destination uint32
	Command     Command
	Index       uint8
	Payload     []byte

	// CRC is the trailer value, filled in by MarshalBinary and UnmarshalPacket.
	CRC uint32

	timestamp time.Time
}

// NewPacket creates a packet for transmission.
func NewPacket(destination uint32, cmd Command, index uint8, payload []byte) *Packet {
	return &Packet{
		Destination: destination,
		Command:     cmd,
		Index:       index,
		Payload:     payload,
		timestamp:   time.Now(),
	}
}

// Timestamp returns when the packet was created or decoded.
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// IsResponse returns true if the packet is addressed to the host.
func (p *Packet) IsResponse() bool {
	return p.Destination == AddressHost
}

// Len returns the unstuffed frame length including the CRC trailer.
func (p *Packet) Len() int {
	return HeaderSize + len(p.Payload) + CRCSize
}

// MarshalBinary builds the unstuffed frame: destination, command, index,
// payload and the little-endian CRC-32 trailer. p.CRC is updated.
func (p *Packet) MarshalBinary() ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(p.Payload), MaxPayloadSize)
	}

	data := make([]byte, HeaderSize, p.Len())
	binary.LittleEndian.PutUint32(data[0:4], p.Destination)
	data[4] = uint8(p.Command)
	data[5] = p.Index
	data = append(data, p.Payload...)

	p.CRC = Checksum(data)
	data = binary.LittleEndian.AppendUint32(data, p.CRC)

	return data, nil
}

// UnmarshalPacket parses an unstuffed frame and verifies its CRC trailer.
// The payload aliases data.
func UnmarshalPacket(data []byte) (*Packet, error) {
	if len(data) < HeaderSize+CRCSize {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrMalformed, len(data))
	}
	if len(data) > PacketMaxSize {
		return nil, fmt.Errorf("%w: frame too long (%d bytes, max %d)", ErrMalformed, len(data), PacketMaxSize)
	}

	crc := NewCRC32()
	crc.Write(data)
	if !crc.Valid() {
		return nil, fmt.Errorf("%w: residue 0x%08X", ErrBadChecksum, crc.Sum32())
	}

	trailer := len(data) - CRCSize
	return &Packet{
		Destination: binary.LittleEndian.Uint32(data[0:4]),
		Command:     Command(data[4]),
		Index:       data[5],
		Payload:     data[HeaderSize:trailer],
		CRC:         binary.LittleEndian.Uint32(data[trailer:]),
		timestamp:   time.Now(),
	}, nil
}

// EncodeFrame returns the wire form of p: the COBS-stuffed frame followed
// by the delimiter.
func EncodeFrame(p *Packet) ([]byte, error) {
	raw, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(CobsEncode(raw), Delimiter), nil
}

// MustEncodeFrame is EncodeFrame for packets known to fit.
// Panics on encoding error.
func MustEncodeFrame(p *Packet) []byte {
	data, err := EncodeFrame(p)
	if err != nil {
		panic(fmt.Sprintf("lux: encode error: %v", err))
	}
	return data
}

// DecodeFrame parses one stuffed frame, with or without its delimiter.
func DecodeFrame(frame []byte) (*Packet, error) {
	if n := len(frame); n > 0 && frame[n-1] == Delimiter {
		frame = frame[:n-1]
	}
	raw, err := CobsDecode(frame)
	if err != nil {
		return nil, err
	}
	return UnmarshalPacket(raw)
}

// MarshalDatagram builds the UDP form of p. Datagrams are delimited by the
// transport, so there is no stuffing and no CRC trailer; p.CRC is still
// computed for ack correlation.
func (p *Packet) MarshalDatagram() ([]byte, error) {
	raw, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return raw[:len(raw)-CRCSize], nil
}

// UnmarshalDatagram parses the UDP form of a packet. CRC is computed over
// the datagram contents.
func UnmarshalDatagram(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: datagram too short (%d bytes)", ErrMalformed, len(data))
	}
	if len(data) > PacketMaxSize-CRCSize {
		return nil, fmt.Errorf("%w: datagram too long (%d bytes)", ErrMalformed, len(data))
	}
	return &Packet{
		Destination: binary.LittleEndian.Uint32(data[0:4]),
		Command:     Command(data[4]),
		Index:       data[5],
		Payload:     data[HeaderSize:],
		CRC:         Checksum(data),
		timestamp:   time.Now(),
	}, nil
}

// AckPayload builds the payload of an ack response to a request with the
// given CRC.
func AckPayload(requestCRC uint32, status uint8) []byte {
	out := make([]byte, AckSize)
	binary.LittleEndian.PutUint32(out, requestCRC)
	out[CRCSize] = status
	return out
}

// ParseAck splits an ack payload into the echoed request CRC and status.
func ParseAck(payload []byte) (requestCRC uint32, status uint8, err error) {
	if len(payload) != AckSize {
		return 0, 0, fmt.Errorf("%w: ack payload is %d bytes (want %d)", ErrMalformed, len(payload), AckSize)
	}
	return binary.LittleEndian.Uint32(payload), payload[CRCSize], nil
}
