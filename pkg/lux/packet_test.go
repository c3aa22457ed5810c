// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint32(0xCBF43926), Checksum([]byte("123456789")))

	var c CRC32
	for _, b := range []byte("123456789") {
		c.Update(b)
	}
	assert.Equal(t, uint32(0xCBF43926), c.Sum32())
	assert.False(t, c.Valid())

	c.Reset()
	assert.Zero(t, c.Sum32())
}

func TestChecksumResidue(t *testing.T) {
	rng := newFuzzRng(t)
	for _, n := range []int{0, 1, 6, 255, 1020} {
		data := make([]byte, n)
		rng.Read(data)
		data = binary.LittleEndian.AppendUint32(data, Checksum(data))

		c := NewCRC32()
		c.Write(data)
		assert.Equal(t, uint32(CRCResidue), c.Sum32(), "length %d", n)
		assert.True(t, c.Valid())
	}
}

func TestPacketMarshalBinary(t *testing.T) {
	p := NewPacket(0x12345678, CmdSetLength, 3, []byte{0xAA, 0xBB})
	raw, err := p.MarshalBinary()
	require.NoError(t, err)

	require.Len(t, raw, 12)
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12, 0x17, 0x03, 0xAA, 0xBB}, raw[:8])
	assert.Equal(t, Checksum(raw[:8]), binary.LittleEndian.Uint32(raw[8:]))
	assert.Equal(t, Checksum(raw[:8]), p.CRC)
	assert.Equal(t, 12, p.Len())

	got, err := UnmarshalPacket(raw)
	require.NoError(t, err)
	assert.Equal(t, p.Destination, got.Destination)
	assert.Equal(t, p.Command, got.Command)
	assert.Equal(t, p.Index, got.Index)
	assert.Equal(t, p.Payload, got.Payload)
	assert.Equal(t, p.CRC, got.CRC)
	assert.False(t, got.Timestamp().IsZero())
}

func TestPacketPayloadLimit(t *testing.T) {
	p := NewPacket(1, CmdFrame, 0, make([]byte, MaxPayloadSize))
	raw, err := p.MarshalBinary()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(raw), PacketMaxSize)

	p = NewPacket(1, CmdFrame, 0, make([]byte, MaxPayloadSize+1))
	_, err = p.MarshalBinary()
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = EncodeFrame(p)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Panics(t, func() { MustEncodeFrame(p) })
}

func TestUnmarshalPacket_Errors(t *testing.T) {
	good, err := NewPacket(7, CmdGetID, 0, []byte("node")).MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", []byte{}, ErrMalformed},
		{"header only", good[:HeaderSize], ErrMalformed},
		{"nine bytes", good[:9], ErrMalformed},
		{"too long", make([]byte, PacketMaxSize+1), ErrMalformed},
		{"truncated", good[:len(good)-1], ErrBadChecksum},
		{"crc flipped", append(append([]byte{}, good[:len(good)-1]...), good[len(good)-1]^0x01), ErrBadChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalPacket(tt.data)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPacketSingleBitErrors(t *testing.T) {
	raw, err := NewPacket(0x80000001, CmdFrameAck, 2, bytes.Repeat([]byte{0x10, 0x00, 0xFF}, 20)).MarshalBinary()
	require.NoError(t, err)

	// Every single-bit error in the unstuffed frame fails the CRC
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte{}, raw...)
			corrupt[i] ^= 1 << bit
			_, err := UnmarshalPacket(corrupt)
			require.ErrorIs(t, err, ErrBadChecksum, "byte %d bit %d", i, bit)
		}
	}

	// On the wire a flipped bit may also break the stuffing
	stuffed := CobsEncode(raw)
	for i := range stuffed {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte{}, stuffed...)
			corrupt[i] ^= 1 << bit
			_, err := DecodeFrame(corrupt)
			require.Error(t, err, "byte %d bit %d", i, bit)
			assert.True(t, errors.Is(err, ErrMalformed) || errors.Is(err, ErrBadChecksum), "byte %d bit %d: %v", i, bit, err)
		}
	}
}

func TestEncodeDecodeFrame(t *testing.T) {
	p := NewPacket(AddressAllNodes, CmdFrameFlip, 1, bytes.Repeat([]byte{0, 1, 2}, 100))
	frame, err := EncodeFrame(p)
	require.NoError(t, err)

	assert.Equal(t, byte(Delimiter), frame[len(frame)-1])
	assert.NotContains(t, frame[:len(frame)-1], byte(0))

	for _, in := range [][]byte{frame, frame[:len(frame)-1]} {
		got, err := DecodeFrame(in)
		require.NoError(t, err)
		assert.Equal(t, p.Payload, got.Payload)
		assert.Equal(t, p.CRC, got.CRC)
	}
}

func TestDatagram(t *testing.T) {
	p := NewPacket(0x42, CmdSetLED, 0, []byte{1})
	data, err := p.MarshalDatagram()
	require.NoError(t, err)

	assert.Equal(t, []byte{0x42, 0, 0, 0, byte(CmdSetLED), 0, 1}, data)
	assert.Equal(t, Checksum(data), p.CRC)

	got, err := UnmarshalDatagram(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x42), got.Destination)
	assert.Equal(t, CmdSetLED, got.Command)
	assert.Equal(t, []byte{1}, got.Payload)
	assert.Equal(t, p.CRC, got.CRC)

	_, err = UnmarshalDatagram(data[:5])
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = UnmarshalDatagram(make([]byte, PacketMaxSize-CRCSize+1))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestAck(t *testing.T) {
	payload := AckPayload(0xDEADBEEF, AckRange)
	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE, AckRange}, payload)

	crc, status, err := ParseAck(payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), crc)
	assert.Equal(t, uint8(AckRange), status)

	_, _, err = ParseAck(payload[:4])
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestBuilders(t *testing.T) {
	flags := uint8(1)
	filter := DefaultAddressFilter(9)

	tests := []struct {
		name    string
		packet  *Packet
		cmd     Command
		index   uint8
		payload []byte
	}{
		{"get id", NewGetID(5), CmdGetID, 0, nil},
		{"descriptor chunk", NewGetDescriptor(5, 2), CmdGetDescriptor, 2, nil},
		{"reset", NewReset(5, nil), CmdReset, 0, nil},
		{"reset with flags", NewReset(5, &flags), CmdReset, 0, []byte{1}},
		{"set addr", NewSetAddress(5, &filter), CmdSetAddr, 0, mustMarshal(t, &filter)},
		{"flash erase", NewFlashErase(5, 0x08004000, 0x800), CmdFlashErase, 0, []byte{0x00, 0x40, 0x00, 0x08, 0x00, 0x08, 0, 0}},
		{"flash read", NewFlashRead(5, 0x10, 4), CmdFlashRead, 0, []byte{0x10, 0, 0, 0, 4, 0, 0, 0}},
		{"flash write", NewFlashWrite(5, 3, []byte{9}), CmdFlashWrite, 3, []byte{9}},
		{"frame", NewFrame(5, CmdFrameHold, 1, []byte{1, 2, 3}), CmdFrameHold, 1, []byte{1, 2, 3}},
		{"led on", NewSetLED(5, true), CmdSetLED, 0, []byte{1}},
		{"led off", NewSetLED(5, false), CmdSetLED, 0, []byte{0}},
		{"set length", NewSetLength(5, 300), CmdSetLength, 0, []byte{0x2C, 0x01}},
		{"request", NewRequest(5, CmdCommitConfig), CmdCommitConfig, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, uint32(5), tt.packet.Destination)
			assert.Equal(t, tt.cmd, tt.packet.Command)
			assert.Equal(t, tt.index, tt.packet.Index)
			assert.Equal(t, tt.payload, tt.packet.Payload)
			assert.Empty(t, ValidatePacket(tt.packet))
		})
	}

	addr, length, ok := ParseAddrLen(NewFlashRead(5, 0x1234, 99).Payload)
	require.True(t, ok)
	assert.Equal(t, uint32(0x1234), addr)
	assert.Equal(t, uint32(99), length)

	_, _, ok = ParseAddrLen([]byte{1, 2, 3})
	assert.False(t, ok)
}

func mustMarshal(t *testing.T, f *AddressFilter) []byte {
	t.Helper()
	data, err := f.MarshalBinary()
	require.NoError(t, err)
	return data
}
