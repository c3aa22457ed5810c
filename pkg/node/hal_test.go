// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package node

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// fakeHAL is an in-memory line. txRoom limits how many bytes Write
// accepts until it is refilled; negative means unlimited.
type fakeHAL struct {
	rx     []byte
	tx     []byte
	txRoom int

	rxOn bool
	txOn bool

	rxToggles int
	txToggles int
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{txRoom: -1}
}

func (h *fakeHAL) RxAvailable() int { return len(h.rx) }

func (h *fakeHAL) Read(p []byte) int {
	n := copy(p, h.rx)
	h.rx = h.rx[n:]
	return n
}

func (h *fakeHAL) TxAvailable() int {
	if h.txRoom < 0 {
		return lux.PacketMaxSize
	}
	return h.txRoom
}

func (h *fakeHAL) Write(p []byte) int {
	n := len(p)
	if h.txRoom >= 0 {
		n = min(n, h.txRoom)
		h.txRoom -= n
	}
	h.tx = append(h.tx, p[:n]...)
	return n
}

func (h *fakeHAL) TxFlushed() bool { return true }

func (h *fakeHAL) SetRx(enabled bool) {
	if enabled != h.rxOn {
		h.rxToggles++
	}
	h.rxOn = enabled
}

func (h *fakeHAL) SetTx(enabled bool) {
	if enabled != h.txOn {
		h.txToggles++
	}
	h.txOn = enabled
}

// feed appends raw line bytes.
func (h *fakeHAL) feed(b ...byte) {
	h.rx = append(h.rx, b...)
}

// sent decodes every frame written so far and clears the output.
func (h *fakeHAL) sent(t *testing.T) []*lux.Packet {
	t.Helper()
	dec := lux.NewDecoder()
	var out []*lux.Packet
	for _, b := range h.tx {
		p, err := dec.DecodeByte(b)
		require.NoError(t, err)
		if p != nil {
			out = append(out, p)
		}
	}
	h.tx = nil
	return out
}

func frame(t *testing.T, p *lux.Packet) []byte {
	t.Helper()
	data, err := lux.EncodeFrame(p)
	require.NoError(t, err)
	return data
}

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}
