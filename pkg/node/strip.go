// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package node

import "sync"

// Strip is the LED output a device drives.
type Strip interface {
	// SetLength resizes the strip to n pixels.
	SetLength(n int) error
	// Show latches a full frame of RGB bytes onto the LEDs.
	Show(pixels []byte)
	// SetStatusLED drives the board status LED.
	SetStatusLED(on bool)
}

// MemoryStrip is a Strip that records what it was asked to display.
type MemoryStrip struct {
	mu     sync.Mutex
	length int
	front  []byte
	led    bool
	shows  int
}

// SetLength implements Strip.
func (s *MemoryStrip) SetLength(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.length = n
	return nil
}

// Show implements Strip.
func (s *MemoryStrip) Show(pixels []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.front = append(s.front[:0], pixels...)
	s.shows++
}

// SetStatusLED implements Strip.
func (s *MemoryStrip) SetStatusLED(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.led = on
}

// Length returns the configured pixel count.
func (s *MemoryStrip) Length() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length
}

// Front returns a copy of the last shown frame.
func (s *MemoryStrip) Front() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.front...)
}

// Shows returns how many frames were latched.
func (s *MemoryStrip) Shows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shows
}

// StatusLED returns the status LED state.
func (s *MemoryStrip) StatusLED() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.led
}
