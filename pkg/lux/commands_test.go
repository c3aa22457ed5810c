// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands_Catalog(t *testing.T) {
	cmds := Commands()
	require.Len(t, cmds, 22)
	assert.Equal(t, CmdGetID, cmds[0])
	assert.Equal(t, CmdGetLength, cmds[len(cmds)-1])

	names := map[string]bool{}
	for i, c := range cmds {
		if i > 0 {
			assert.Greater(t, uint8(c), uint8(cmds[i-1]))
		}
		spec, ok := LookupCommand(c)
		require.True(t, ok)
		assert.False(t, names[spec.Name], "duplicate name %s", spec.Name)
		names[spec.Name] = true
		assert.Equal(t, spec.Name, c.String())
		assert.LessOrEqual(t, spec.RequestMin, spec.RequestMax, spec.Name)
		assert.LessOrEqual(t, spec.RequestMax, MaxPayloadSize, spec.Name)
	}

	_, ok := LookupCommand(0x0D)
	assert.False(t, ok)
	assert.Equal(t, "UNKNOWN(0x0D)", Command(0x0D).String())
}

func TestCommands_FrameTwins(t *testing.T) {
	for _, c := range []Command{CmdFrame, CmdFrameHold, CmdFrameFlip} {
		plain, _ := LookupCommand(c)
		acked, ok := LookupCommand(c + 1)
		require.True(t, ok)

		assert.False(t, plain.Acked())
		assert.True(t, acked.Acked())
		assert.Equal(t, plain.Name+"_ACK", acked.Name)
		assert.Equal(t, c, (c + 1).WithoutAck())
		assert.Equal(t, c, c.WithoutAck())
	}
	assert.Equal(t, CmdSetLED, CmdSetLED.WithoutAck())
}

func TestFrameVariant(t *testing.T) {
	tests := []struct {
		hold, flip, ack bool
		want            Command
	}{
		{false, false, false, CmdFrame},
		{false, false, true, CmdFrameAck},
		{true, false, false, CmdFrameHold},
		{true, false, true, CmdFrameHoldAck},
		{false, true, false, CmdFrameFlip},
		{false, true, true, CmdFrameFlipAck},
		{true, true, false, CmdFrameHold},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, FrameVariant(tt.hold, tt.flip, tt.ack))
		})
	}
}

func TestDescriptor(t *testing.T) {
	d := &Descriptor{
		Name:         "porch",
		Firmware:     "1.2.0",
		HardwareID:   0xC0FFEE,
		StripLength:  300,
		LEDType:      "WS2812",
		FlashBase:    0x08004000,
		FlashSize:    0x1C000,
		Capabilities: CapStrip | CapBootloader,
	}

	data, err := MarshalDescriptor(d)
	require.NoError(t, err)

	got, err := ParseDescriptor(data)
	require.NoError(t, err)
	assert.Equal(t, d, got)
	assert.True(t, got.Has(CapBootloader))
	assert.False(t, got.Has(CapStatusLED))

	_, err = ParseDescriptor(nil)
	assert.Error(t, err)
	_, err = ParseDescriptor([]byte{0xFF, 0xFF})
	assert.Error(t, err)
}

func TestDescriptorChunk(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 2*DescriptorChunkSize+10)

	assert.Len(t, DescriptorChunk(data, 0), DescriptorChunkSize)
	assert.Len(t, DescriptorChunk(data, 1), DescriptorChunkSize)
	assert.Len(t, DescriptorChunk(data, 2), 10)
	assert.Empty(t, DescriptorChunk(data, 3))
	assert.NotNil(t, DescriptorChunk(data, 200))

	var joined []byte
	for i := uint8(0); ; i++ {
		chunk := DescriptorChunk(data, i)
		joined = append(joined, chunk...)
		if len(chunk) < DescriptorChunkSize {
			break
		}
	}
	assert.Equal(t, data, joined)
}
