// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import "hash/crc32"

// CRC32 is a running zlib CRC-32 accumulator. The zero value is a fresh
// accumulator.
type CRC32 struct {
	sum uint32
}

// NewCRC32 returns an initialized accumulator.
func NewCRC32() CRC32 {
	return CRC32{}
}

// Update feeds one byte.
func (c *CRC32) Update(b byte) {
	c.sum = crc32.Update(c.sum, crc32.IEEETable, []byte{b})
}

// Write feeds a run of bytes. It never fails.
func (c *CRC32) Write(p []byte) (int, error) {
	c.sum = crc32.Update(c.sum, crc32.IEEETable, p)
	return len(p), nil
}

// Sum32 returns the finalized CRC of everything fed so far.
func (c *CRC32) Sum32() uint32 {
	return c.sum
}

// Valid reports whether the accumulated bytes end in a matching CRC trailer.
func (c *CRC32) Valid() bool {
	return c.sum == CRCResidue
}

// Reset restarts the accumulation.
func (c *CRC32) Reset() {
	c.sum = 0
}

// Checksum computes the CRC-32 of data.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
