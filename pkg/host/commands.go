// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package host

import (
	"encoding/binary"
	"fmt"

	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// maxChunks is the number of chunks an 8-bit index can address.
const maxChunks = 256

// GetID returns the node's identity string.
func (d *Driver) GetID(dest uint32) (string, error) {
	resp, err := d.SendAndWait(lux.NewGetID(dest))
	if err != nil {
		return "", err
	}
	return string(resp.Payload), nil
}

// GetDescriptor reads every descriptor chunk and decodes the result.
func (d *Driver) GetDescriptor(dest uint32) (*lux.Descriptor, error) {
	var data []byte
	for chunk := 0; chunk < maxChunks; chunk++ {
		resp, err := d.SendAndWait(lux.NewGetDescriptor(dest, uint8(chunk)))
		if err != nil {
			return nil, err
		}
		data = append(data, resp.Payload...)
		if len(resp.Payload) < lux.DescriptorChunkSize {
			break
		}
	}
	return lux.ParseDescriptor(data)
}

// GetAddress returns the node's live address filter.
func (d *Driver) GetAddress(dest uint32) (*lux.AddressFilter, error) {
	data, err := d.SendAndWaitLen(lux.NewRequest(dest, lux.CmdGetAddr), lux.AddressFilterSize)
	if err != nil {
		return nil, err
	}
	var f lux.AddressFilter
	if err := f.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &f, nil
}

// SetAddress replaces the node's address filter. It applies at once but
// is only persisted by CommitConfig.
func (d *Driver) SetAddress(dest uint32, f *lux.AddressFilter) error {
	_, err := d.SendAckAndWait(lux.NewSetAddress(dest, f))
	return err
}

// GetPacketCounters returns the node's receive counters.
func (d *Driver) GetPacketCounters(dest uint32) (lux.PacketCounters, error) {
	var c lux.PacketCounters
	data, err := d.SendAndWaitLen(lux.NewRequest(dest, lux.CmdGetPktCnt), lux.PacketCountersSize)
	if err != nil {
		return c, err
	}
	err = c.UnmarshalBinary(data)
	return c, err
}

// ResetPacketCounters zeroes the node's receive counters.
func (d *Driver) ResetPacketCounters(dest uint32) error {
	_, err := d.SendAckAndWait(lux.NewRequest(dest, lux.CmdResetPktCnt))
	return err
}

// Reset restarts the node, which reloads its committed configuration.
func (d *Driver) Reset(dest uint32, flags *uint8) error {
	_, err := d.SendAckAndWait(lux.NewReset(dest, flags))
	return err
}

// CommitConfig persists the node's live configuration.
func (d *Driver) CommitConfig(dest uint32) error {
	_, err := d.SendAckAndWait(lux.NewRequest(dest, lux.CmdCommitConfig))
	return err
}

// GetLength returns the strip length in pixels.
func (d *Driver) GetLength(dest uint32) (uint16, error) {
	data, err := d.SendAndWaitLen(lux.NewRequest(dest, lux.CmdGetLength), 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// SetLength sets the strip length in pixels.
func (d *Driver) SetLength(dest uint32, length uint16) error {
	_, err := d.SendAckAndWait(lux.NewSetLength(dest, length))
	return err
}

// SetLED drives the node's status LED.
func (d *Driver) SetLED(dest uint32, on bool) error {
	_, err := d.SendAckAndWait(lux.NewSetLED(dest, on))
	return err
}

// FrameOptions select the FRAME variant.
type FrameOptions struct {
	// Hold stores every chunk without showing it; a later flip shows it.
	Hold bool
	// Ack waits for an ack per chunk.
	Ack bool
}

// WriteFrame sends RGB pixel data in chunks. A frame that fits one chunk
// is sent as FRAME; longer frames are held chunk by chunk and the last
// chunk flips, so the strip updates at once.
func (d *Driver) WriteFrame(dest uint32, pixels []byte, opts FrameOptions) error {
	if len(pixels)%3 != 0 {
		return fmt.Errorf("frame of %d bytes is not whole RGB pixels", len(pixels))
	}
	chunks := (len(pixels) + lux.FrameChunkSize - 1) / lux.FrameChunkSize
	if chunks == 0 {
		chunks = 1
	}
	if chunks > maxChunks {
		return fmt.Errorf("%w: frame needs %d chunks (max %d)", lux.ErrPayloadTooLarge, chunks, maxChunks)
	}

	for i := 0; i < chunks; i++ {
		start := i * lux.FrameChunkSize
		end := min(start+lux.FrameChunkSize, len(pixels))
		last := i == chunks-1

		var cmd lux.Command
		switch {
		case opts.Hold || !last:
			cmd = lux.FrameVariant(true, false, opts.Ack)
		case chunks > 1:
			cmd = lux.FrameVariant(false, true, opts.Ack)
		default:
			cmd = lux.FrameVariant(false, false, opts.Ack)
		}

		p := lux.NewFrame(dest, cmd, uint8(i), pixels[start:end])
		var err error
		if opts.Ack {
			_, err = d.SendAckAndWait(p)
		} else {
			err = d.Send(p)
		}
		if err != nil {
			return fmt.Errorf("frame chunk %d: %w", i, err)
		}
	}
	return nil
}

// Flip shows a held frame without changing it.
func (d *Driver) Flip(dest uint32, ack bool) error {
	p := lux.NewFrame(dest, lux.FrameVariant(false, true, ack), 0, nil)
	if ack {
		_, err := d.SendAckAndWait(p)
		return err
	}
	return d.Send(p)
}

// InvalidateApp marks the application image invalid so the node stays in
// its bootloader.
func (d *Driver) InvalidateApp(dest uint32) error {
	_, err := d.SendAckAndWait(lux.NewRequest(dest, lux.CmdInvalidateApp))
	return err
}

// FlashBaseAddr returns the address of the application flash region.
func (d *Driver) FlashBaseAddr(dest uint32) (uint32, error) {
	data, err := d.SendAndWaitLen(lux.NewRequest(dest, lux.CmdFlashBaseAddr), 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// FlashErase erases [addr, addr+length).
func (d *Driver) FlashErase(dest, addr, length uint32) error {
	_, err := d.SendAckAndWait(lux.NewFlashErase(dest, addr, length))
	return err
}

// Progress is called after each chunk of a transfer.
type Progress func(done, total int)

// FlashWrite programs data at the start of the application region.
func (d *Driver) FlashWrite(dest uint32, data []byte, progress Progress) error {
	chunks := (len(data) + lux.FlashChunkSize - 1) / lux.FlashChunkSize
	if chunks > maxChunks {
		return fmt.Errorf("%w: image needs %d chunks (max %d)", lux.ErrPayloadTooLarge, chunks, maxChunks)
	}

	for i := 0; i < chunks; i++ {
		start := i * lux.FlashChunkSize
		end := min(start+lux.FlashChunkSize, len(data))
		if _, err := d.SendAckAndWait(lux.NewFlashWrite(dest, uint8(i), data[start:end])); err != nil {
			return fmt.Errorf("flash chunk %d: %w", i, err)
		}
		if progress != nil {
			progress(end, len(data))
		}
	}
	return nil
}

// FlashRead reads [addr, addr+length).
func (d *Driver) FlashRead(dest, addr, length uint32, progress Progress) ([]byte, error) {
	out := make([]byte, 0, length)
	for done := uint32(0); done < length; {
		n := min(length-done, lux.FlashChunkSize)
		data, err := d.SendAndWaitLen(lux.NewFlashRead(dest, addr+done, n), int(n))
		if err != nil {
			return nil, fmt.Errorf("flash read at 0x%08X: %w", addr+done, err)
		}
		out = append(out, data...)
		done += n
		if progress != nil {
			progress(int(done), int(length))
		}
	}
	return out, nil
}
