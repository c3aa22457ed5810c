// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package node

import (
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Buffer sizes of the software UART
const (
	RxBufferSize = 4096
	TxBufferSize = 512
)

// byteQueue is a bounded FIFO shared between the engine and an I/O
// goroutine. Callers hold the owning HAL's mutex.
type byteQueue struct {
	buf  []byte
	size int
}

func (q *byteQueue) free() int { return q.size - len(q.buf) }

func (q *byteQueue) push(p []byte) int {
	n := min(len(p), q.free())
	q.buf = append(q.buf, p[:n]...)
	return n
}

func (q *byteQueue) pop(p []byte) int {
	n := copy(p, q.buf)
	q.buf = append(q.buf[:0], q.buf[n:]...)
	return n
}

func (q *byteQueue) clear() { q.buf = q.buf[:0] }

// PortHAL runs the engine on a byte stream port such as a serial device.
// A reader goroutine fills the receive queue and a writer goroutine
// drains the transmit queue, so the engine's calls never block.
type PortHAL struct {
	port io.ReadWriter
	log  *slog.Logger

	mu        sync.Mutex
	rx        byteQueue
	tx        byteQueue
	inflight  bool
	rxEnabled bool
	txActive  bool
	err       error

	kick chan struct{}
	wake chan struct{}
	done chan struct{}
	once sync.Once
}

type rtsSetter interface {
	SetRTS(rts bool) error
}

type drainer interface {
	Drain() error
}

// NewPortHAL starts the I/O goroutines on port. If the port supports
// SetRTS, RTS follows the transmitter enable for RS-485 direction control.
func NewPortHAL(port io.ReadWriter, logger *slog.Logger) *PortHAL {
	if logger == nil {
		logger = slog.Default()
	}
	h := &PortHAL{
		port: port,
		log:  logger.WithGroup("port"),
		rx:   byteQueue{size: RxBufferSize},
		tx:   byteQueue{size: TxBufferSize},
		kick: make(chan struct{}, 1),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go h.readLoop()
	go h.writeLoop()
	return h
}

// Wake is signalled whenever bytes arrive or the transmit queue drains.
func (h *PortHAL) Wake() <-chan struct{} {
	return h.wake
}

// Err returns the error that stopped the port, if any.
func (h *PortHAL) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close stops the goroutines and closes the port if it is closable.
func (h *PortHAL) Close() error {
	var err error
	h.once.Do(func() {
		close(h.done)
		if c, ok := h.port.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

func (h *PortHAL) notify() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *PortHAL) fail(err error) {
	h.mu.Lock()
	if h.err == nil {
		h.err = err
	}
	h.mu.Unlock()
	h.notify()
}

func (h *PortHAL) readLoop() {
	buf := make([]byte, 256)
	for {
		n, err := h.port.Read(buf)
		if n > 0 {
			h.mu.Lock()
			if h.rxEnabled || h.txActive {
				if dropped := n - h.rx.push(buf[:n]); dropped > 0 {
					h.log.Warn("receive queue full", "dropped", dropped)
				}
			}
			h.mu.Unlock()
			h.notify()
		}
		if err != nil {
			select {
			case <-h.done:
			default:
				if !errors.Is(err, io.EOF) {
					h.log.Error("read failed", "error", err)
				}
				h.fail(err)
			}
			return
		}
		select {
		case <-h.done:
			return
		default:
		}
	}
}

func (h *PortHAL) writeLoop() {
	out := make([]byte, TxBufferSize)
	for {
		select {
		case <-h.done:
			return
		case <-h.kick:
		}

		h.mu.Lock()
		n := h.tx.pop(out)
		h.inflight = n > 0
		h.mu.Unlock()
		if n == 0 {
			continue
		}

		_, err := h.port.Write(out[:n])
		if err == nil {
			if d, ok := h.port.(drainer); ok {
				err = d.Drain()
			}
		}

		h.mu.Lock()
		h.inflight = false
		more := len(h.tx.buf) > 0
		h.mu.Unlock()

		if err != nil {
			h.log.Error("write failed", "error", err)
			h.fail(err)
			return
		}
		if more {
			h.kickWriter()
		}
		h.notify()
	}
}

func (h *PortHAL) kickWriter() {
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// RxAvailable implements HAL.
func (h *PortHAL) RxAvailable() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rx.buf)
}

// Read implements HAL.
func (h *PortHAL) Read(p []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rx.pop(p)
}

// TxAvailable implements HAL.
func (h *PortHAL) TxAvailable() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tx.free()
}

// Write implements HAL.
func (h *PortHAL) Write(p []byte) int {
	h.mu.Lock()
	n := h.tx.push(p)
	h.mu.Unlock()
	if n > 0 {
		h.kickWriter()
	}
	return n
}

// TxFlushed implements HAL.
func (h *PortHAL) TxFlushed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tx.buf) == 0 && !h.inflight
}

// SetRx implements HAL. Disabling the receiver discards queued input.
// Input arriving while the transmitter is enabled is still queued.
func (h *PortHAL) SetRx(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rxEnabled = enabled
	if !enabled {
		h.rx.clear()
	}
}

// SetTx implements HAL.
func (h *PortHAL) SetTx(enabled bool) {
	h.mu.Lock()
	h.txActive = enabled
	h.mu.Unlock()

	if r, ok := h.port.(rtsSetter); ok {
		if err := r.SetRTS(enabled); err != nil {
			h.log.Warn("failed to set RTS", "error", err)
		}
	}
}
