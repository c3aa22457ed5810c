// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package node

import (
	"encoding/binary"
	"errors"
	"log/slog"

	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// DefaultMaxLength is the largest strip a device accepts unless configured.
const DefaultMaxLength = 1024

// ResetBootloader in the RESET flags asks the node to stay in the
// bootloader after the reset.
const ResetBootloader = 0x01

// DeviceConfig describes a node's fixed identity and hardware.
type DeviceConfig struct {
	Name       string
	Firmware   string
	HardwareID uint32
	LEDType    string
	MaxLength  int

	// Defaults are used when the store holds no settings.
	Defaults Settings

	Store ConfigStore
	Strip Strip
	// Flash enables the bootloader commands. May be nil.
	Flash *Flash

	// OnReset is called after a RESET has been acknowledged.
	OnReset func(flags uint8)

	Logger *slog.Logger
}

// Device is the node application: it serves the command catalog on top of
// an Engine. It is both the engine's Handler and its address filter.
type Device struct {
	cfg      DeviceConfig
	log      *slog.Logger
	settings Settings

	back []byte // frame being assembled by FRAME_HOLD
	resp [lux.MaxPayloadSize]byte

	descriptor []byte
}

// NewDevice creates a device and loads its settings from the store.
func NewDevice(cfg DeviceConfig) *Device {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Strip == nil {
		cfg.Strip = &MemoryStrip{}
	}
	if cfg.Store == nil {
		cfg.Store = &MemoryStore{}
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}

	d := &Device{
		cfg: cfg,
		log: cfg.Logger.WithGroup("device"),
	}
	d.reload()
	return d
}

// Settings returns the live settings, which may differ from the stored
// ones until COMMIT_CONFIG.
func (d *Device) Settings() Settings {
	return d.settings
}

// Match implements lux.AddressMatcher with the live address filter.
func (d *Device) Match(destination uint32) bool {
	return d.settings.Filter.Match(destination)
}

// Descriptor returns the node's self-description.
func (d *Device) Descriptor() *lux.Descriptor {
	desc := &lux.Descriptor{
		Name:         d.cfg.Name,
		Firmware:     d.cfg.Firmware,
		HardwareID:   d.cfg.HardwareID,
		StripLength:  d.settings.Length,
		LEDType:      d.cfg.LEDType,
		Capabilities: lux.CapStrip | lux.CapStatusLED,
	}
	if d.cfg.Flash != nil {
		desc.Capabilities |= lux.CapBootloader
		desc.FlashBase = d.cfg.Flash.Base()
		desc.FlashSize = d.cfg.Flash.Size()
	}
	return desc
}

func (d *Device) reload() {
	settings, err := d.cfg.Store.Load()
	if err != nil {
		if !errors.Is(err, ErrNoSettings) {
			d.log.Warn("falling back to default settings", "error", err)
		}
		settings = d.cfg.Defaults
	}
	d.settings = settings
	if !d.applyLength(int(settings.Length)) {
		d.log.Warn("stored strip length not applied", "length", settings.Length, "max", d.cfg.MaxLength)
	}
}

func (d *Device) applyLength(n int) bool {
	if n > d.cfg.MaxLength {
		return false
	}
	if err := d.cfg.Strip.SetLength(n); err != nil {
		d.log.Warn("strip rejected length", "length", n, "error", err)
		return false
	}
	d.settings.Length = uint16(n)
	if size := 3 * n; size <= cap(d.back) {
		d.back = d.back[:size]
	} else {
		d.back = append(d.back, make([]byte, size-len(d.back))...)
	}
	return true
}

// HandlePacket implements Handler.
func (d *Device) HandlePacket(e *Engine) {
	p := e.Packet()

	spec, ok := lux.LookupCommand(p.Command)
	if !ok {
		d.log.Debug("ignoring unknown command", "command", p.Command)
		e.Release()
		return
	}
	if n := len(p.Payload); n < spec.RequestMin || n > spec.RequestMax {
		d.log.Debug("bad request length", "command", p.Command, "length", n)
		d.reject(e, spec, lux.AckInvalid)
		return
	}

	switch p.Command {
	case lux.CmdGetID:
		e.Reply(p.Command, p.Index, d.respond([]byte(d.settings.ID)))

	case lux.CmdGetDescriptor:
		if p.Index == 0 || d.descriptor == nil {
			data, err := lux.MarshalDescriptor(d.Descriptor())
			if err != nil {
				d.log.Error("descriptor", "error", err)
				e.Release()
				return
			}
			d.descriptor = data
		}
		e.Reply(p.Command, p.Index, d.respond(lux.DescriptorChunk(d.descriptor, p.Index)))

	case lux.CmdReset:
		var flags uint8
		if len(p.Payload) == 1 {
			flags = p.Payload[0]
		}
		e.Ack(lux.AckOK)
		d.reload()
		e.ResetCounters()
		if flags&ResetBootloader != 0 && d.cfg.Flash != nil {
			d.cfg.Flash.Valid = false
		}
		if d.cfg.OnReset != nil {
			d.cfg.OnReset(flags)
		}

	case lux.CmdCommitConfig:
		if err := d.cfg.Store.Save(d.settings); err != nil {
			d.log.Error("commit failed", "error", err)
			e.Ack(lux.AckInvalid)
			return
		}
		e.Ack(lux.AckOK)

	case lux.CmdGetAddr:
		data, _ := d.settings.Filter.MarshalBinary()
		e.Reply(p.Command, p.Index, d.respond(data))

	case lux.CmdSetAddr:
		var f lux.AddressFilter
		if err := f.UnmarshalBinary(p.Payload); err != nil {
			e.Ack(lux.AckInvalid)
			return
		}
		// Ack under the old filter; the new one applies from the next frame.
		e.Ack(lux.AckOK)
		d.settings.Filter = f
		d.log.Info("address filter updated", "filter", f.String())

	case lux.CmdGetPktCnt:
		counters := e.Counters()
		data, _ := counters.MarshalBinary()
		e.Reply(p.Command, p.Index, d.respond(data))

	case lux.CmdResetPktCnt:
		e.ResetCounters()
		e.Ack(lux.AckOK)

	case lux.CmdInvalidateApp, lux.CmdFlashBaseAddr, lux.CmdFlashErase, lux.CmdFlashWrite, lux.CmdFlashRead:
		d.handleFlash(e, spec)

	case lux.CmdFrame, lux.CmdFrameAck, lux.CmdFrameHold, lux.CmdFrameHoldAck, lux.CmdFrameFlip, lux.CmdFrameFlipAck:
		d.handleFrame(e, spec)

	case lux.CmdSetLED:
		d.cfg.Strip.SetStatusLED(p.Payload[0] != 0)
		e.Ack(lux.AckOK)

	case lux.CmdSetLength:
		n := int(binary.LittleEndian.Uint16(p.Payload))
		if !d.applyLength(n) {
			e.Ack(lux.AckRange)
			return
		}
		e.Ack(lux.AckOK)

	case lux.CmdGetLength:
		e.Reply(p.Command, p.Index, binary.LittleEndian.AppendUint16(d.resp[:0], d.settings.Length))

	default:
		e.Release()
	}
}

// respond copies data into the response buffer, which outlives the
// receive buffer while the reply is encoded.
func (d *Device) respond(data []byte) []byte {
	return d.resp[:copy(d.resp[:], data)]
}

func (d *Device) reject(e *Engine, spec lux.CommandSpec, status uint8) {
	if spec.Acked() {
		e.Ack(status)
		return
	}
	e.Release()
}

func (d *Device) handleFlash(e *Engine, spec lux.CommandSpec) {
	p := e.Packet()
	flash := d.cfg.Flash
	if flash == nil {
		d.reject(e, spec, lux.AckInvalid)
		return
	}

	switch p.Command {
	case lux.CmdInvalidateApp:
		flash.Valid = false
		e.Ack(lux.AckOK)

	case lux.CmdFlashBaseAddr:
		e.Reply(p.Command, p.Index, binary.LittleEndian.AppendUint32(d.resp[:0], flash.Base()))

	case lux.CmdFlashErase:
		addr, length, _ := lux.ParseAddrLen(p.Payload)
		if err := flash.Erase(addr, length); err != nil {
			d.log.Debug("erase rejected", "error", err)
			e.Ack(lux.AckRange)
			return
		}
		e.Ack(lux.AckOK)

	case lux.CmdFlashWrite:
		addr := flash.Base() + uint32(p.Index)*lux.FlashChunkSize
		if err := flash.Write(addr, p.Payload); err != nil {
			d.log.Debug("write rejected", "error", err)
			e.Ack(lux.AckRange)
			return
		}
		e.Ack(lux.AckOK)

	case lux.CmdFlashRead:
		addr, length, _ := lux.ParseAddrLen(p.Payload)
		if length > lux.MaxPayloadSize {
			e.Reply(p.Command, p.Index, d.resp[:0])
			return
		}
		data, err := flash.Read(addr, length)
		if err != nil {
			d.log.Debug("read rejected", "error", err)
			data = nil
		}
		e.Reply(p.Command, p.Index, d.respond(data))
	}
}

// handleFrame writes one chunk into the back buffer. FRAME latches it
// immediately, FRAME_HOLD only stores it, FRAME_FLIP stores it and latches
// the whole back buffer.
func (d *Device) handleFrame(e *Engine, spec lux.CommandSpec) {
	p := e.Packet()

	start := int(p.Index) * lux.FrameChunkSize
	end := start + len(p.Payload)
	if len(p.Payload)%3 != 0 {
		d.reject(e, spec, lux.AckInvalid)
		return
	}
	if end > len(d.back) {
		d.log.Debug("frame chunk out of range", "index", p.Index, "length", len(p.Payload), "strip", len(d.back))
		d.reject(e, spec, lux.AckRange)
		return
	}
	copy(d.back[start:end], p.Payload)

	if p.Command.WithoutAck() != lux.CmdFrameHold {
		d.cfg.Strip.Show(d.back)
	}

	if spec.Acked() {
		e.Ack(lux.AckOK)
		return
	}
	e.Release()
}
