// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import "fmt"

// Decoder turns a raw byte stream into packets, one byte at a time. It
// resynchronizes on every delimiter, so a corrupted frame costs at most
// that frame.
type Decoder struct {
	cobs      CobsDecoder
	buffer    []byte
	skipping  bool   // overflowed, discarding until the next delimiter
	rawBuffer []byte // Accumulate raw bytes including the delimiter
}

// NewDecoder creates a new stream decoder
func NewDecoder() *Decoder {
	return &Decoder{
		buffer:    make([]byte, 0, PacketMaxSize),
		rawBuffer: make([]byte, 0, CobsMaxEncodedLen(PacketMaxSize)+1),
	}
}

// Reset drops any partial frame
func (d *Decoder) Reset() {
	d.cobs.Reset()
	d.buffer = d.buffer[:0]
	d.skipping = false
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the raw bytes accumulated since the last frame
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte from the wire.
// Returns a completed packet, or nil if the frame is incomplete.
// Returns an error wrapping ErrMalformed or ErrBadChecksum if a frame fails.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	if len(d.rawBuffer) < cap(d.rawBuffer) {
		d.rawBuffer = append(d.rawBuffer, b)
	}

	if b != Delimiter {
		if d.skipping {
			return nil, nil
		}
		out, ok := d.cobs.Feed(b)
		if !ok {
			return nil, nil
		}
		if len(d.buffer) >= PacketMaxSize {
			d.skipping = true
			return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformed, PacketMaxSize)
		}
		d.buffer = append(d.buffer, out)
		return nil, nil
	}

	// Delimiter: close out the frame
	defer d.Reset()

	if d.skipping {
		return nil, nil
	}
	if !d.cobs.Active() {
		// Back-to-back delimiters are idle line, not an error
		return nil, nil
	}
	if err := d.cobs.Finish(); err != nil {
		return nil, err
	}

	raw := make([]byte, len(d.buffer))
	copy(raw, d.buffer)
	return UnmarshalPacket(raw)
}
