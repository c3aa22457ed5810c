// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package node

import (
	"encoding/binary"
	"log/slog"

	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// State is the engine's position in the receive/transmit cycle.
type State int

// Engine states
const (
	StateStart State = iota
	StateReadDestination
	StateReadPayload
	StateSkipCurrentPacket
	StateStopped
	StateEncoderStart
	StateWriteDestination
	StateWritePayload
	StateWriteCRC
	StateFlush
	StateEncoderStalled
)

var stateNames = [...]string{
	"START",
	"READ_DESTINATION",
	"READ_PAYLOAD",
	"SKIP_CURRENT_PACKET",
	"STOPPED",
	"ENCODER_START",
	"WRITE_DESTINATION",
	"WRITE_PAYLOAD",
	"WRITE_CRC",
	"FLUSH",
	"ENCODER_STALLED",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Receiving reports whether the receiver owns the packet buffer.
func (s State) Receiving() bool {
	return s <= StateSkipCurrentPacket
}

// Handler consumes good packets. HandlePacket runs synchronously inside
// Pump; the packet buffer is only valid until the handler replies or
// calls Release.
type Handler interface {
	HandlePacket(e *Engine)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(e *Engine)

// HandlePacket implements Handler.
func (f HandlerFunc) HandlePacket(e *Engine) { f(e) }

// Config holds the engine's collaborators.
type Config struct {
	// Filter decides which destinations this node answers to.
	Filter lux.AddressMatcher
	// Handler receives every good packet. May be nil.
	Handler Handler
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Engine is the node packet engine. It is not safe for concurrent use:
// Pump, the handler and the transmit calls all run on one context.
type Engine struct {
	hal     HAL
	filter  lux.AddressMatcher
	handler Handler
	log     *slog.Logger

	state  State
	resume State // stage to continue after a stall

	dec lux.CobsDecoder
	enc lux.CobsEncoder
	crc Checksum

	// Receive buffers. buf holds everything after the destination.
	dest    [lux.AddressSize]byte
	destLen int
	buf     [lux.PacketMaxSize - lux.AddressSize]byte
	bufLen  int

	packet   lux.Packet
	rxCRC    uint32
	inMemory bool

	// Transmit cursors
	txHeader [lux.HeaderSize]byte
	txCRC    [lux.CRCSize]byte
	txPos    int
	pending  []byte // stuffed bytes the sink has not accepted yet

	counters lux.PacketCounters
	scratch  [1]byte
}

// NewEngine creates an engine on hal. The engine starts receiving on the
// first Pump.
func NewEngine(hal HAL, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		hal:     hal,
		filter:  cfg.Filter,
		handler: cfg.Handler,
		log:     cfg.Logger.WithGroup("engine"),
		state:   StateStart,
		crc:     newChecksum(hal),
	}
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// Packet returns the shared packet buffer. After a good receive it holds
// the decoded packet; before StartTx the application fills it.
func (e *Engine) Packet() *lux.Packet {
	return &e.packet
}

// RxCRC returns the CRC trailer of the last good packet.
func (e *Engine) RxCRC() uint32 {
	return e.rxCRC
}

// PacketInMemory reports whether a received packet awaits consumption.
func (e *Engine) PacketInMemory() bool {
	return e.inMemory
}

// Counters returns a snapshot of the packet counters.
func (e *Engine) Counters() lux.PacketCounters {
	return e.counters
}

// ResetCounters zeroes the packet counters.
func (e *Engine) ResetCounters() {
	e.counters = lux.PacketCounters{}
}

// SetFilter replaces the address predicate.
func (e *Engine) SetFilter(f lux.AddressMatcher) {
	e.filter = f
}

// Release marks the received packet as consumed so the next frame can be
// decoded into the buffer.
func (e *Engine) Release() {
	e.inMemory = false
}

// StopRx disables the receiver so the application may mutate the packet
// buffer. A partially received frame or unread input is counted as
// rx_interrupted and discarded.
func (e *Engine) StopRx() {
	if !e.state.Receiving() {
		return
	}
	if e.state != StateStart && (e.dec.Active() || e.hal.RxAvailable() > 0) {
		e.counters.RxInterrupted++
		e.log.Debug("receive interrupted", "state", e.state)
	}
	e.hal.SetRx(false)
	e.resetRx()
	e.state = StateStopped
}

// StartRx re-enables the receiver after StopRx without transmitting.
func (e *Engine) StartRx() {
	if e.state == StateStopped {
		e.state = StateStart
	}
}

// StartTx begins transmitting the packet buffer. It returns false if a
// transmission is already in progress. The packet is sent from subsequent
// Pump calls; the receiver resumes once the frame is flushed.
func (e *Engine) StartTx() bool {
	if e.Transmitting() {
		return false
	}
	if len(e.packet.Payload) > lux.MaxPayloadSize {
		e.log.Warn("dropping oversized transmit", "command", e.packet.Command, "length", len(e.packet.Payload))
		return false
	}
	e.StopRx()
	e.inMemory = false
	e.state = StateEncoderStart
	return true
}

// Transmitting reports whether a frame is being encoded or flushed.
func (e *Engine) Transmitting() bool {
	return !e.state.Receiving() && e.state != StateStopped
}

// Reply fills the packet buffer with a response to the host and starts
// transmitting it. It returns false without touching the buffer while a
// frame is still being sent.
func (e *Engine) Reply(cmd lux.Command, index uint8, payload []byte) bool {
	if e.Transmitting() {
		return false
	}
	e.StopRx()
	e.packet.Destination = lux.AddressHost
	e.packet.Command = cmd
	e.packet.Index = index
	e.packet.Payload = payload
	return e.StartTx()
}

// Ack replies to the packet in memory with an ack carrying its CRC.
func (e *Engine) Ack(status uint8) bool {
	return e.Reply(e.packet.Command, e.packet.Index, lux.AckPayload(e.rxCRC, status))
}

// Pump advances the engine as far as the HAL allows without blocking.
// Call it as often as possible from the main loop.
func (e *Engine) Pump() {
	for {
		switch e.state {
		case StateStart:
			e.resetRx()
			e.hal.SetTx(false)
			e.hal.SetRx(true)
			e.state = StateReadDestination

		case StateReadDestination, StateReadPayload, StateSkipCurrentPacket:
			if e.hal.RxAvailable() == 0 || e.hal.Read(e.scratch[:]) == 0 {
				return
			}
			e.receive(e.scratch[0])

		case StateStopped:
			return

		case StateEncoderStart:
			e.hal.SetRx(false)
			e.hal.SetTx(true)
			e.enc.Reset()
			e.crc.Reset()
			binary.LittleEndian.PutUint32(e.txHeader[0:4], e.packet.Destination)
			e.txHeader[4] = uint8(e.packet.Command)
			e.txHeader[5] = e.packet.Index
			e.txPos = 0
			e.pending = nil
			e.state = StateWriteDestination

		case StateWriteDestination:
			if !e.flushPending() {
				return
			}
			if e.txPos < len(e.txHeader) {
				e.stuff(e.txHeader[e.txPos])
				continue
			}
			e.txPos = 0
			e.state = StateWritePayload

		case StateWritePayload:
			if !e.flushPending() {
				return
			}
			if e.txPos < len(e.packet.Payload) {
				e.stuff(e.packet.Payload[e.txPos])
				continue
			}
			e.packet.CRC = e.crc.Sum32()
			binary.LittleEndian.PutUint32(e.txCRC[:], e.packet.CRC)
			e.txPos = 0
			e.state = StateWriteCRC

		case StateWriteCRC:
			if !e.flushPending() {
				return
			}
			if e.txPos < len(e.txCRC) {
				e.pending = e.enc.Push(e.txCRC[e.txPos])
				e.txPos++
				continue
			}
			e.pending = e.enc.Close()
			e.state = StateFlush

		case StateFlush:
			if !e.flushPending() || !e.hal.TxFlushed() {
				return
			}
			// Receiver first so no gap opens between the two
			e.hal.SetRx(true)
			e.hal.SetTx(false)
			e.resetRx()
			e.state = StateReadDestination

		case StateEncoderStalled:
			if e.hal.TxAvailable() == 0 {
				return
			}
			e.state = e.resume

		default:
			e.state = StateStart
		}
	}
}

// stuff feeds one checksummed byte into the encoder.
func (e *Engine) stuff(b byte) {
	e.crc.Update(b)
	e.pending = e.enc.Push(b)
	e.txPos++
}

// flushPending writes stuffed bytes to the sink. If the sink is full the
// engine stalls and resumes at the current stage.
func (e *Engine) flushPending() bool {
	if len(e.pending) == 0 {
		return true
	}
	n := e.hal.Write(e.pending)
	e.pending = e.pending[n:]
	if len(e.pending) > 0 {
		e.resume = e.state
		e.state = StateEncoderStalled
		return false
	}
	return true
}

func (e *Engine) resetRx() {
	e.dec.Reset()
	e.crc.Reset()
	e.destLen = 0
	e.bufLen = 0
}

// receive handles one raw byte from the line.
func (e *Engine) receive(b byte) {
	if b == lux.Delimiter {
		e.endOfFrame()
		return
	}
	if e.state == StateSkipCurrentPacket {
		return
	}

	out, ok := e.dec.Feed(b)
	if !ok {
		return
	}
	e.crc.Update(out)

	switch e.state {
	case StateReadDestination:
		e.dest[e.destLen] = out
		e.destLen++
		if e.destLen == lux.AddressSize {
			e.checkDestination()
		}

	case StateReadPayload:
		if e.bufLen >= len(e.buf) {
			e.counters.Malformed++
			e.log.Debug("frame overflows packet buffer")
			e.state = StateSkipCurrentPacket
			return
		}
		e.buf[e.bufLen] = out
		e.bufLen++
	}
}

func (e *Engine) checkDestination() {
	dest := binary.LittleEndian.Uint32(e.dest[:])

	if e.filter == nil || !e.filter.Match(dest) {
		e.state = StateSkipCurrentPacket
		return
	}
	if e.inMemory {
		e.counters.Overrun++
		e.log.Debug("packet overrun", "destination", dest)
		e.state = StateSkipCurrentPacket
		return
	}

	e.packet.Destination = dest
	e.state = StateReadPayload
}

func (e *Engine) endOfFrame() {
	switch e.state {
	case StateReadDestination:
		// A frame too short to carry a destination
		if e.dec.Active() {
			e.counters.Malformed++
		}

	case StateReadPayload:
		if err := e.dec.Finish(); err != nil || e.bufLen < 2+lux.CRCSize {
			e.counters.Malformed++
			e.log.Debug("malformed frame", "length", e.bufLen)
			break
		}
		if !e.crc.Valid() {
			e.counters.BadCRC++
			e.log.Debug("bad CRC", "residue", e.crc.Sum32())
			break
		}
		e.accept()
		return
	}

	e.resetRx()
	e.state = StateReadDestination
}

// accept publishes the decoded frame and hands it to the handler.
func (e *Engine) accept() {
	trailer := e.bufLen - lux.CRCSize
	e.packet.Command = lux.Command(e.buf[0])
	e.packet.Index = e.buf[1]
	e.packet.Payload = e.buf[2:trailer]
	e.rxCRC = binary.LittleEndian.Uint32(e.buf[trailer:e.bufLen])
	e.packet.CRC = e.rxCRC

	e.counters.Good++
	e.inMemory = true

	e.resetRx()
	e.state = StateReadDestination

	if e.handler != nil {
		e.handler.HandlePacket(e)
	}
}
