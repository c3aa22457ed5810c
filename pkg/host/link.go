// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

// Package host implements the controller side of the Lux protocol: links
// that move whole packets over a serial line, a websocket bridge or UDP,
// and a blocking driver that sends commands, waits for responses and
// retries.
package host

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// ReadBufferSize is the chunk size used when scanning a stream for
// delimiters.
const ReadBufferSize = 4096

// Link moves whole packets between the host and the bus.
type Link interface {
	// WritePacket frames and sends p. p.CRC is updated.
	WritePacket(p *lux.Packet) error
	// ReadPacket returns the next packet on the bus, or an error wrapping
	// lux.ErrTimeout once deadline passes.
	ReadPacket(deadline time.Time) (*lux.Packet, error)
	// Drain discards pending input.
	Drain() error
	Close() error
}

// Port is a byte stream with a read timeout. A Read that times out
// returns 0, nil. serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

type inputResetter interface {
	ResetInputBuffer() error
}

type rtsSetter interface {
	SetRTS(rts bool) error
}

type drainer interface {
	Drain() error
}

// StreamOptions configure a StreamLink.
type StreamOptions struct {
	// RTS asserts RTS while transmitting, for RS-485 adapters that use it
	// as driver enable.
	RTS    bool
	Logger *slog.Logger
}

// StreamLink carries COBS frames over a byte stream.
type StreamLink struct {
	port    Port
	rts     bool
	log     *slog.Logger
	decoder *lux.Decoder
	buf     []byte
	pending []byte
}

// NewStreamLink creates a link on port.
func NewStreamLink(port Port, opts StreamOptions) *StreamLink {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &StreamLink{
		port:    port,
		rts:     opts.RTS,
		log:     opts.Logger.WithGroup("stream"),
		decoder: lux.NewDecoder(),
		buf:     make([]byte, ReadBufferSize),
	}
}

// WritePacket implements Link.
func (l *StreamLink) WritePacket(p *lux.Packet) error {
	frame, err := lux.EncodeFrame(p)
	if err != nil {
		return err
	}

	if r, ok := l.port.(rtsSetter); ok && l.rts {
		if err := r.SetRTS(true); err != nil {
			return fmt.Errorf("failed to assert RTS: %w", err)
		}
		defer func() {
			if err := r.SetRTS(false); err != nil {
				l.log.Warn("failed to release RTS", "error", err)
			}
		}()
	}

	if _, err := l.port.Write(frame); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if d, ok := l.port.(drainer); ok {
		if err := d.Drain(); err != nil {
			return fmt.Errorf("drain failed: %w", err)
		}
	}
	return nil
}

// ReadPacket implements Link. Corrupt frames are returned as errors
// wrapping lux.ErrMalformed or lux.ErrBadChecksum.
func (l *StreamLink) ReadPacket(deadline time.Time) (*lux.Packet, error) {
	for {
		for len(l.pending) > 0 {
			b := l.pending[0]
			l.pending = l.pending[1:]

			p, err := l.decoder.DecodeByte(b)
			if err != nil {
				return nil, err
			}
			if p != nil {
				return p, nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, lux.ErrTimeout
		}
		if err := l.port.SetReadTimeout(remaining); err != nil {
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}

		n, err := l.port.Read(l.buf)
		if err != nil {
			return nil, fmt.Errorf("read failed: %w", err)
		}
		l.pending = l.buf[:n]
	}
}

// Drain implements Link.
func (l *StreamLink) Drain() error {
	l.decoder.Reset()
	l.pending = nil
	if r, ok := l.port.(inputResetter); ok {
		return r.ResetInputBuffer()
	}
	return nil
}

// Close implements Link.
func (l *StreamLink) Close() error {
	return l.port.Close()
}

// DatagramLink carries one packet per UDP datagram, without stuffing or
// CRC trailer.
type DatagramLink struct {
	conn net.Conn
	buf  []byte
}

// NewDatagramLink creates a link on a connected UDP socket.
func NewDatagramLink(conn net.Conn) *DatagramLink {
	return &DatagramLink{
		conn: conn,
		buf:  make([]byte, lux.PacketMaxSize),
	}
}

// DialUDP connects to a node or bridge at address (host:port).
func DialUDP(address string) (*DatagramLink, error) {
	conn, err := net.Dial("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP link to %s: %w", address, err)
	}
	return NewDatagramLink(conn), nil
}

// WritePacket implements Link.
func (l *DatagramLink) WritePacket(p *lux.Packet) error {
	data, err := p.MarshalDatagram()
	if err != nil {
		return err
	}
	if _, err := l.conn.Write(data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// ReadPacket implements Link.
func (l *DatagramLink) ReadPacket(deadline time.Time) (*lux.Packet, error) {
	if err := l.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	n, err := l.conn.Read(l.buf)
	// A port-unreachable from an earlier send means the node is not
	// listening yet, which is the same as no answer
	for errors.Is(err, syscall.ECONNREFUSED) {
		n, err = l.conn.Read(l.buf)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return nil, lux.ErrTimeout
	}
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}

	data := make([]byte, n)
	copy(data, l.buf[:n])
	return lux.UnmarshalDatagram(data)
}

// Drain implements Link. Datagrams already queued on the socket are
// discarded.
func (l *DatagramLink) Drain() error {
	for {
		if err := l.conn.SetReadDeadline(time.Now()); err != nil {
			return err
		}
		// Deadline or a stale ICMP error; either way nothing is queued
		if _, err := l.conn.Read(l.buf); err != nil {
			return nil
		}
	}
}

// Close implements Link.
func (l *DatagramLink) Close() error {
	return l.conn.Close()
}
