// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import "errors"

// Protocol errors. Callers match with errors.Is; returned errors are
// usually wrapped with context.
var (
	// ErrMalformed is a COBS violation or a frame that overflowed the
	// packet buffer before its delimiter.
	ErrMalformed = errors.New("malformed frame")

	// ErrBadChecksum is a CRC residue mismatch.
	ErrBadChecksum = errors.New("CRC mismatch")

	// ErrOverrun is a frame that arrived before the previous one was consumed.
	ErrOverrun = errors.New("packet overrun")

	// ErrRxInterrupted means the receiver was stopped with bytes pending.
	ErrRxInterrupted = errors.New("receive interrupted")

	// ErrTimeout means no response arrived before the deadline.
	ErrTimeout = errors.New("timed out waiting for response")

	// ErrPayloadTooLarge means a payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload too large")
)
