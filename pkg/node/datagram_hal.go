// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package node

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// DatagramHAL runs the engine on a UDP socket. Each received datagram is
// re-framed as a COBS frame with a CRC trailer so the engine sees the same
// byte stream as on a serial line; each transmitted frame is unstuffed and
// sent back as one datagram to the peer that spoke last.
type DatagramHAL struct {
	conn net.PacketConn
	log  *slog.Logger

	mu        sync.Mutex
	rx        byteQueue
	rxEnabled bool
	txActive  bool
	peer      net.Addr
	frame     []byte // stuffed bytes of the frame being transmitted
	err       error

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewDatagramHAL starts receiving on conn.
func NewDatagramHAL(conn net.PacketConn, logger *slog.Logger) *DatagramHAL {
	if logger == nil {
		logger = slog.Default()
	}
	h := &DatagramHAL{
		conn:  conn,
		log:   logger.WithGroup("udp"),
		rx:    byteQueue{size: RxBufferSize},
		frame: make([]byte, 0, lux.CobsMaxEncodedLen(lux.PacketMaxSize)+1),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go h.readLoop()
	return h
}

// Wake is signalled whenever a datagram arrives.
func (h *DatagramHAL) Wake() <-chan struct{} {
	return h.wake
}

// Err returns the error that stopped the socket, if any.
func (h *DatagramHAL) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close stops the reader and closes the socket.
func (h *DatagramHAL) Close() error {
	var err error
	h.once.Do(func() {
		close(h.done)
		err = h.conn.Close()
	})
	return err
}

func (h *DatagramHAL) notify() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *DatagramHAL) readLoop() {
	buf := make([]byte, lux.PacketMaxSize)
	for {
		n, addr, err := h.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-h.done:
			default:
				if !errors.Is(err, net.ErrClosed) {
					h.log.Error("read failed", "error", err)
				}
				h.mu.Lock()
				h.err = err
				h.mu.Unlock()
				h.notify()
			}
			return
		}

		raw := binary.LittleEndian.AppendUint32(buf[:n:n], lux.Checksum(buf[:n]))
		frame := append(lux.CobsEncode(raw), lux.Delimiter)

		h.mu.Lock()
		if h.rxEnabled || h.txActive {
			h.peer = addr
			if h.rx.free() < len(frame) {
				h.log.Warn("receive queue full, dropping datagram", "from", addr, "length", n)
			} else {
				h.rx.push(frame)
			}
		}
		h.mu.Unlock()
		h.notify()
	}
}

// RxAvailable implements HAL.
func (h *DatagramHAL) RxAvailable() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rx.buf)
}

// Read implements HAL.
func (h *DatagramHAL) Read(p []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rx.pop(p)
}

// TxAvailable implements HAL.
func (h *DatagramHAL) TxAvailable() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cap(h.frame) - len(h.frame)
}

// Write implements HAL. A delimiter completes the frame, which is sent
// immediately.
func (h *DatagramHAL) Write(p []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, b := range p {
		if b != lux.Delimiter {
			if len(h.frame) == cap(h.frame) {
				return i
			}
			h.frame = append(h.frame, b)
			continue
		}
		h.sendFrame()
		h.frame = h.frame[:0]
	}
	return len(p)
}

func (h *DatagramHAL) sendFrame() {
	p, err := lux.DecodeFrame(h.frame)
	if err != nil {
		h.log.Error("dropping unencodable frame", "error", err)
		return
	}
	if h.peer == nil {
		h.log.Debug("no peer to reply to")
		return
	}
	data, err := p.MarshalDatagram()
	if err != nil {
		h.log.Error("dropping reply", "error", err)
		return
	}
	if _, err := h.conn.WriteTo(data, h.peer); err != nil {
		h.log.Warn("send failed", "to", h.peer, "error", err)
	}
}

// TxFlushed implements HAL.
func (h *DatagramHAL) TxFlushed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frame) == 0
}

// SetRx implements HAL.
func (h *DatagramHAL) SetRx(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rxEnabled = enabled
	if !enabled {
		h.rx.clear()
	}
}

// SetTx implements HAL. Datagrams arriving while transmitting are queued.
func (h *DatagramHAL) SetTx(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.txActive = enabled
}
