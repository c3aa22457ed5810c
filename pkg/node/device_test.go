// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package node

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

const testFlashBase = 0x08004000

type testNode struct {
	hal    *fakeHAL
	engine *Engine
	device *Device
	strip  *MemoryStrip
	store  *MemoryStore
	flash  *Flash
	resets []uint8
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()
	n := &testNode{
		hal:   newFakeHAL(),
		strip: &MemoryStrip{},
		store: &MemoryStore{},
		flash: NewFlash(testFlashBase, 4096),
	}
	n.device = NewDevice(DeviceConfig{
		Name:       "test-node",
		Firmware:   "1.2.3",
		HardwareID: 0xC0FFEE,
		LEDType:    "WS2812",
		MaxLength:  600,
		Defaults:   DefaultSettings("lux-test", testAddress, 60),
		Store:      n.store,
		Strip:      n.strip,
		Flash:      n.flash,
		OnReset:    func(flags uint8) { n.resets = append(n.resets, flags) },
	})
	n.engine = NewEngine(n.hal, Config{Filter: n.device, Handler: n.device})
	return n
}

// exchange sends req and returns the reply, or nil if the node stayed
// silent.
func (n *testNode) exchange(t *testing.T, req *lux.Packet) *lux.Packet {
	t.Helper()
	n.hal.feed(frame(t, req)...)
	n.engine.Pump()

	sent := n.hal.sent(t)
	require.LessOrEqual(t, len(sent), 1)
	if len(sent) == 0 {
		return nil
	}
	require.Equal(t, uint32(lux.AddressHost), sent[0].Destination)
	require.Equal(t, req.Command, sent[0].Command)
	return sent[0]
}

func (n *testNode) ack(t *testing.T, req *lux.Packet) uint8 {
	t.Helper()
	resp := n.exchange(t, req)
	require.NotNil(t, resp, "no ack for %s", req.Command)
	crc, status, err := lux.ParseAck(resp.Payload)
	require.NoError(t, err)
	require.Equal(t, req.CRC, crc)
	return status
}

func TestDevice_GetLengthByteAtATime(t *testing.T) {
	n := newTestNode(t)

	for _, b := range frame(t, lux.NewRequest(testAddress, lux.CmdGetLength)) {
		n.hal.feed(b)
		n.engine.Pump()
	}

	sent := n.hal.sent(t)
	require.Len(t, sent, 1)
	assert.Equal(t, uint32(lux.AddressHost), sent[0].Destination)
	assert.Equal(t, lux.CmdGetLength, sent[0].Command)
	assert.Equal(t, []byte{60, 0}, sent[0].Payload)
	assert.Equal(t, uint32(1), n.engine.Counters().Good)
	assert.Zero(t, n.engine.Counters().Errors())
}

func TestDevice_Identity(t *testing.T) {
	n := newTestNode(t)

	resp := n.exchange(t, lux.NewGetID(testAddress))
	require.NotNil(t, resp)
	assert.Equal(t, "lux-test", string(resp.Payload))

	resp = n.exchange(t, lux.NewGetDescriptor(testAddress, 0))
	require.NotNil(t, resp)
	desc, err := lux.ParseDescriptor(resp.Payload)
	require.NoError(t, err)
	assert.Equal(t, "test-node", desc.Name)
	assert.Equal(t, uint16(60), desc.StripLength)
	assert.True(t, desc.Has(lux.CapBootloader))
	assert.Equal(t, uint32(testFlashBase), desc.FlashBase)

	// Past the end the descriptor is empty
	resp = n.exchange(t, lux.NewGetDescriptor(testAddress, 1))
	require.NotNil(t, resp)
	assert.Empty(t, resp.Payload)
}

func TestDevice_Address(t *testing.T) {
	n := newTestNode(t)

	resp := n.exchange(t, lux.NewRequest(testAddress, lux.CmdGetAddr))
	require.NotNil(t, resp)
	var f lux.AddressFilter
	require.NoError(t, f.UnmarshalBinary(resp.Payload))
	assert.Equal(t, lux.DefaultAddressFilter(testAddress), f)

	moved := lux.AddressFilter{}
	moved.Unicast[3] = 42
	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewSetAddress(testAddress, &moved)))

	// The old address is gone, the new one answers
	assert.Nil(t, n.exchange(t, lux.NewGetID(testAddress)))
	assert.NotNil(t, n.exchange(t, lux.NewGetID(42)))
	assert.Nil(t, n.exchange(t, lux.NewGetID(lux.AddressAllNodes)))
}

func TestDevice_CommitAndReset(t *testing.T) {
	n := newTestNode(t)

	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewSetLength(testAddress, 100)))
	assert.Equal(t, 100, n.strip.Length())

	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewRequest(testAddress, lux.CmdCommitConfig)))
	assert.Equal(t, 1, n.store.Saves)

	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewSetLength(testAddress, 200)))

	flags := uint8(0x04)
	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewReset(testAddress, &flags)))
	assert.Equal(t, []uint8{0x04}, n.resets)

	// Uncommitted length is dropped, counters start over
	assert.Equal(t, uint16(100), n.device.Settings().Length)
	assert.Equal(t, 100, n.strip.Length())
	assert.Equal(t, lux.PacketCounters{}, n.engine.Counters())
}

func TestDevice_ResetWithoutStoredSettings(t *testing.T) {
	n := newTestNode(t)

	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewSetLength(testAddress, 200)))
	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewReset(testAddress, nil)))
	assert.Equal(t, uint16(60), n.device.Settings().Length)
	assert.Equal(t, []uint8{0}, n.resets)
}

func TestDevice_ResetBootloader(t *testing.T) {
	n := newTestNode(t)

	flags := uint8(ResetBootloader)
	n.ack(t, lux.NewReset(testAddress, &flags))
	assert.False(t, n.flash.Valid)
}

func TestDevice_PacketCounters(t *testing.T) {
	n := newTestNode(t)

	n.exchange(t, lux.NewGetID(testAddress))
	n.hal.feed(0x02, 0x01, lux.Delimiter) // malformed

	resp := n.exchange(t, lux.NewRequest(testAddress, lux.CmdGetPktCnt))
	require.NotNil(t, resp)
	var c lux.PacketCounters
	require.NoError(t, c.UnmarshalBinary(resp.Payload))
	assert.Equal(t, lux.PacketCounters{Good: 2, Malformed: 1}, c)

	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewRequest(testAddress, lux.CmdResetPktCnt)))
	assert.Equal(t, lux.PacketCounters{}, n.engine.Counters())
}

func TestDevice_IgnoresUnknownCommands(t *testing.T) {
	n := newTestNode(t)

	assert.Nil(t, n.exchange(t, lux.NewRequest(testAddress, lux.Command(0x7F))))
	assert.False(t, n.engine.PacketInMemory())
	assert.NotNil(t, n.exchange(t, lux.NewGetID(testAddress)))
}

func TestDevice_RejectsBadShapes(t *testing.T) {
	n := newTestNode(t)

	// Acked command with the wrong payload length
	req := lux.NewPacket(testAddress, lux.CmdSetLength, 0, []byte{1, 2, 3})
	assert.Equal(t, uint8(lux.AckInvalid), n.ack(t, req))

	// Unacked command is dropped silently
	assert.Nil(t, n.exchange(t, lux.NewPacket(testAddress, lux.CmdGetLength, 0, []byte{1})))
}

func TestDevice_SetLengthRange(t *testing.T) {
	n := newTestNode(t)

	assert.Equal(t, uint8(lux.AckRange), n.ack(t, lux.NewSetLength(testAddress, 601)))
	assert.Equal(t, uint16(60), n.device.Settings().Length)
}

func TestDevice_StatusLED(t *testing.T) {
	n := newTestNode(t)

	n.ack(t, lux.NewSetLED(testAddress, true))
	assert.True(t, n.strip.StatusLED())
	n.ack(t, lux.NewSetLED(testAddress, false))
	assert.False(t, n.strip.StatusLED())
}

func TestDevice_Frames(t *testing.T) {
	n := newTestNode(t)
	require.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewSetLength(testAddress, 400)))

	first := bytes.Repeat([]byte{0x10}, lux.FrameChunkSize)
	second := bytes.Repeat([]byte{0x20}, 3*400-lux.FrameChunkSize)

	// Hold buffers without showing
	assert.Nil(t, n.exchange(t, lux.NewFrame(testAddress, lux.CmdFrameHold, 0, first)))
	assert.Zero(t, n.strip.Shows())

	// Flip shows the whole back buffer
	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewFrame(testAddress, lux.CmdFrameFlipAck, 1, second)))
	require.Equal(t, 1, n.strip.Shows())
	assert.Equal(t, append(append([]byte(nil), first...), second...), n.strip.Front())

	// Plain FRAME writes and shows at once
	assert.Nil(t, n.exchange(t, lux.NewFrame(testAddress, lux.CmdFrame, 0, []byte{1, 2, 3})))
	assert.Equal(t, 2, n.strip.Shows())
	assert.Equal(t, []byte{1, 2, 3, 0x10}, n.strip.Front()[:4])
}

func TestDevice_FrameErrors(t *testing.T) {
	n := newTestNode(t)

	assert.Equal(t, uint8(lux.AckRange), n.ack(t, lux.NewFrame(testAddress, lux.CmdFrameAck, 1, []byte{1, 2, 3})))
	assert.Equal(t, uint8(lux.AckInvalid), n.ack(t, lux.NewFrame(testAddress, lux.CmdFrameAck, 0, []byte{1, 2})))
	assert.Zero(t, n.strip.Shows())
}

func TestDevice_Flash(t *testing.T) {
	n := newTestNode(t)

	resp := n.exchange(t, lux.NewRequest(testAddress, lux.CmdFlashBaseAddr))
	require.NotNil(t, resp)
	assert.Equal(t, uint32(testFlashBase), binary.LittleEndian.Uint32(resp.Payload))

	chunk := bytes.Repeat([]byte{0xA5}, lux.FlashChunkSize)
	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewFlashWrite(testAddress, 1, chunk)))

	resp = n.exchange(t, lux.NewFlashRead(testAddress, testFlashBase+lux.FlashChunkSize-2, 4))
	require.NotNil(t, resp)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xA5, 0xA5}, resp.Payload)

	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewFlashErase(testAddress, testFlashBase+lux.FlashChunkSize, 2)))
	resp = n.exchange(t, lux.NewFlashRead(testAddress, testFlashBase+lux.FlashChunkSize, 3))
	require.NotNil(t, resp)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xA5}, resp.Payload)

	assert.Equal(t, uint8(lux.AckRange), n.ack(t, lux.NewFlashWrite(testAddress, 8, chunk)))
	assert.Equal(t, uint8(lux.AckRange), n.ack(t, lux.NewFlashErase(testAddress, testFlashBase-1, 2)))

	assert.Equal(t, uint8(lux.AckOK), n.ack(t, lux.NewRequest(testAddress, lux.CmdInvalidateApp)))
	assert.False(t, n.flash.Valid)
}

func TestDevice_WithoutFlash(t *testing.T) {
	h := newFakeHAL()
	d := NewDevice(DeviceConfig{Defaults: DefaultSettings("bare", testAddress, 10)})
	e := NewEngine(h, Config{Filter: d, Handler: d})

	req := lux.NewRequest(testAddress, lux.CmdInvalidateApp)
	h.feed(frame(t, req)...)
	e.Pump()

	sent := h.sent(t)
	require.Len(t, sent, 1)
	_, status, err := lux.ParseAck(sent[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, uint8(lux.AckInvalid), status)

	h.feed(frame(t, lux.NewRequest(testAddress, lux.CmdFlashBaseAddr))...)
	e.Pump()
	assert.Empty(t, h.sent(t))
	assert.False(t, d.Descriptor().Has(lux.CapBootloader))
}
