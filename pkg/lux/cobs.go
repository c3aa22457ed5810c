// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import "fmt"

// Delimiter terminates every COBS frame on the wire.
const Delimiter = 0x00

// cobsMaxBlock is the number of literal bytes in a block whose code byte is
// 0xFF. Such a block carries no implied zero.
const cobsMaxBlock = 254

// CobsMaxEncodedLen returns the worst-case stuffed length of n bytes,
// excluding the delimiter.
func CobsMaxEncodedLen(n int) int {
	return n + n/cobsMaxBlock + 1
}

// CobsEncode stuffs src so that the result contains no zero bytes. The
// delimiter is not appended.
func CobsEncode(src []byte) []byte {
	dst := make([]byte, 1, CobsMaxEncodedLen(len(src))+1)
	codeIdx := 0
	code := byte(1)

	for _, b := range src {
		if b == 0 {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
			continue
		}
		dst = append(dst, b)
		code++
		if code == 0xFF {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
		}
	}
	dst[codeIdx] = code

	return dst
}

// CobsDecode reverses CobsEncode. src must not include the delimiter.
func CobsDecode(src []byte) ([]byte, error) {
	dst := make([]byte, 0, len(src))

	for i := 0; i < len(src); {
		code := src[i]
		if code == 0 {
			return nil, fmt.Errorf("%w: zero code byte at offset %d", ErrMalformed, i)
		}
		i++

		end := i + int(code) - 1
		if end > len(src) {
			return nil, fmt.Errorf("%w: block of %d at offset %d overruns %d bytes", ErrMalformed, code, i-1, len(src))
		}
		for ; i < end; i++ {
			if src[i] == 0 {
				return nil, fmt.Errorf("%w: embedded zero at offset %d", ErrMalformed, i)
			}
			dst = append(dst, src[i])
		}

		// The implied zero after the final block is the end of the frame.
		if code != 0xFF && i < len(src) {
			dst = append(dst, 0)
		}
	}

	return dst, nil
}

// CobsDecoder unstuffs a frame one byte at a time. Each input byte yields
// at most one output byte, which lets a caller with a fixed buffer decode
// without lookahead. The delimiter is handled by the caller, which then
// calls Finish.
type CobsDecoder struct {
	remaining   int  // literal bytes left in the current block
	pendingZero bool // previous block ended with an implied zero
	active      bool // at least one byte fed since Reset
}

// Reset prepares the decoder for a new frame.
func (d *CobsDecoder) Reset() {
	*d = CobsDecoder{}
}

// Active reports whether any byte has been fed since the last Reset.
func (d *CobsDecoder) Active() bool {
	return d.active
}

// Feed consumes one non-zero stuffed byte. ok is false when the byte was a
// code byte that produced no output.
func (d *CobsDecoder) Feed(b byte) (out byte, ok bool) {
	d.active = true

	if d.remaining > 0 {
		d.remaining--
		return b, true
	}

	// Code byte: flush the previous block's implied zero
	emit := d.pendingZero
	d.remaining = int(b) - 1
	d.pendingZero = b != 0xFF
	return 0, emit
}

// Finish validates the end of the frame at the delimiter.
func (d *CobsDecoder) Finish() error {
	if d.remaining != 0 {
		return fmt.Errorf("%w: frame ended %d bytes into a block", ErrMalformed, d.remaining)
	}
	return nil
}

// CobsEncoder stuffs a frame one byte at a time. A completed block is
// returned by Push or Close and must be written before the next call; the
// returned slice is only valid until then.
type CobsEncoder struct {
	block [cobsMaxBlock]byte
	n     int
	out   [cobsMaxBlock + 2]byte
}

// Reset discards any partial block.
func (e *CobsEncoder) Reset() {
	e.n = 0
}

// Push adds one raw byte. It returns a block ready for output, or nil.
func (e *CobsEncoder) Push(b byte) []byte {
	if b == 0 {
		return e.emit(false)
	}
	e.block[e.n] = b
	e.n++
	if e.n == cobsMaxBlock {
		return e.emit(false)
	}
	return nil
}

// Close emits the final block followed by the delimiter.
func (e *CobsEncoder) Close() []byte {
	return e.emit(true)
}

func (e *CobsEncoder) emit(delimit bool) []byte {
	e.out[0] = byte(e.n + 1)
	copy(e.out[1:], e.block[:e.n])
	size := e.n + 1
	if delimit {
		e.out[size] = Delimiter
		size++
	}
	e.n = 0
	return e.out[:size]
}
