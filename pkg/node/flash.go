// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package node

import (
	"errors"
	"fmt"
)

// ErrFlashRange is returned for accesses outside the application region.
var ErrFlashRange = errors.New("flash access out of range")

// Flash is an in-memory NOR flash image of the application region served
// by the bootloader commands. Erased bytes read 0xFF and writes can only
// clear bits.
type Flash struct {
	base  uint32
	image []byte

	// Valid is cleared by INVALIDATEAPP so the bootloader stays resident
	// on the next reset.
	Valid bool
}

// NewFlash creates an erased region of size bytes at base.
func NewFlash(base, size uint32) *Flash {
	f := &Flash{
		base:  base,
		image: make([]byte, size),
		Valid: true,
	}
	for i := range f.image {
		f.image[i] = 0xFF
	}
	return f
}

// Base returns the address of the first byte of the region.
func (f *Flash) Base() uint32 {
	return f.base
}

// Size returns the region length in bytes.
func (f *Flash) Size() uint32 {
	return uint32(len(f.image))
}

func (f *Flash) span(addr, length uint32) (int, int, error) {
	if addr < f.base {
		return 0, 0, fmt.Errorf("%w: 0x%08X below base 0x%08X", ErrFlashRange, addr, f.base)
	}
	start := uint64(addr - f.base)
	end := start + uint64(length)
	if end > uint64(len(f.image)) {
		return 0, 0, fmt.Errorf("%w: 0x%08X+%d past end", ErrFlashRange, addr, length)
	}
	return int(start), int(end), nil
}

// Erase sets [addr, addr+length) to 0xFF.
func (f *Flash) Erase(addr, length uint32) error {
	start, end, err := f.span(addr, length)
	if err != nil {
		return err
	}
	for i := start; i < end; i++ {
		f.image[i] = 0xFF
	}
	return nil
}

// Write programs data at addr.
func (f *Flash) Write(addr uint32, data []byte) error {
	start, _, err := f.span(addr, uint32(len(data)))
	if err != nil {
		return err
	}
	for i, b := range data {
		f.image[start+i] &= b
	}
	return nil
}

// Read returns a copy of [addr, addr+length).
func (f *Flash) Read(addr, length uint32) ([]byte, error) {
	start, end, err := f.span(addr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	copy(out, f.image[start:end])
	return out, nil
}
