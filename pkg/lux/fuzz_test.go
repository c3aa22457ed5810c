// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomPacket builds a packet with a random catalog command and payload
func randomPacket(rng *rand.Rand) *Packet {
	cmds := Commands()
	payload := make([]byte, rng.Intn(MaxPayloadSize+1))
	for i := range payload {
		// Bias toward zeros so stuffing is exercised
		if rng.Intn(4) != 0 {
			payload[i] = byte(rng.Intn(256))
		}
	}
	return NewPacket(rng.Uint32(), cmds[rng.Intn(len(cmds))], uint8(rng.Intn(256)), payload)
}

// ============================================================
// Framing Fuzz Tests
// ============================================================

func TestFuzz_FrameRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	d := NewDecoder()

	for i := 0; i < rounds; i++ {
		p := randomPacket(rng)
		frame := MustEncodeFrame(p)
		require.NotContains(t, frame[:len(frame)-1], byte(0), "round %d", i)

		var got *Packet
		for j, b := range frame {
			out, err := d.DecodeByte(b)
			require.NoError(t, err, "round %d", i)
			if j < len(frame)-1 {
				require.Nil(t, out, "round %d", i)
			}
			got = out
		}
		require.NotNil(t, got, "round %d", i)
		assert.Equal(t, p.Destination, got.Destination)
		assert.Equal(t, p.Command, got.Command)
		assert.Equal(t, p.Index, got.Index)
		assert.Equal(t, len(p.Payload), len(got.Payload))
		if len(p.Payload) > 0 {
			assert.Equal(t, p.Payload, got.Payload)
		}
	}
}

func TestFuzz_DatagramRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		p := randomPacket(rng)
		data, err := p.MarshalDatagram()
		require.NoError(t, err)

		got, err := UnmarshalDatagram(data)
		require.NoError(t, err, "round %d", i)
		assert.Equal(t, p.CRC, got.CRC)
		assert.Equal(t, p.Destination, got.Destination)
	}
}

func TestFuzz_DecoderNoise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	d := NewDecoder()

	for i := 0; i < rounds; i++ {
		noise := make([]byte, rng.Intn(2*PacketMaxSize))
		rng.Read(noise)
		require.NotPanics(t, func() {
			for _, b := range noise {
				_, _ = d.DecodeByte(b)
			}
		}, "round %d", i)

		// A delimiter followed by a good frame always recovers the stream
		_, _ = d.DecodeByte(Delimiter)
		p := randomPacket(rng)
		var got *Packet
		for _, b := range MustEncodeFrame(p) {
			out, err := d.DecodeByte(b)
			require.NoError(t, err, "round %d", i)
			got = out
		}
		require.NotNil(t, got, "round %d", i)
		assert.Equal(t, p.CRC, got.CRC)
	}
}

func TestFuzz_CobsDecodeNoise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		noise := make([]byte, rng.Intn(600))
		rng.Read(noise)
		assert.NotPanics(t, func() { _, _ = CobsDecode(noise) })
		assert.NotPanics(t, func() { _, _ = DecodeFrame(noise) })
	}
}
