// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

// Package node implements the node side of the Lux protocol: a
// cooperative, non-blocking packet engine that is pumped from a main loop,
// the byte I/O abstraction it runs on, and a device application serving
// the command catalog.
package node

import "github.com/zbanks/radiance-sub001/pkg/lux"

// HAL is the line-level byte I/O the engine runs on. Every method must
// return immediately.
type HAL interface {
	// RxAvailable returns the number of bytes Read can return now.
	RxAvailable() int
	// Read copies up to len(p) received bytes into p.
	Read(p []byte) int

	// TxAvailable returns the number of bytes Write accepts now.
	TxAvailable() int
	// Write queues up to len(p) bytes and returns how many were accepted.
	Write(p []byte) int
	// TxFlushed reports that every queued byte has left the line.
	TxFlushed() bool

	// SetRx enables or disables the receiver.
	SetRx(enabled bool)
	// SetTx enables or disables the transmitter (RS-485 driver enable).
	SetTx(enabled bool)
}

// Checksum is a running CRC-32 accumulator. *lux.CRC32 implements it.
type Checksum interface {
	Reset()
	Update(b byte)
	Sum32() uint32
	Valid() bool
}

// Checksummer is implemented by HALs with a hardware CRC unit.
type Checksummer interface {
	NewChecksum() Checksum
}

func newChecksum(hal HAL) Checksum {
	if c, ok := hal.(Checksummer); ok {
		return c.NewChecksum()
	}
	crc := lux.NewCRC32()
	return &crc
}
