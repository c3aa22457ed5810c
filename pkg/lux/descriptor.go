// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Capability flags advertised in a Descriptor
const (
	CapStrip      = 1 << 0
	CapBootloader = 1 << 1
	CapStatusLED  = 1 << 2
)

// DescriptorChunkSize is the number of descriptor bytes per GET_DESCRIPTOR
// response; the request index selects the chunk.
const DescriptorChunkSize = 256

// Descriptor is the self-description a node returns for GET_DESCRIPTOR.
// It is CBOR-encoded with integer keys to keep it compact on the wire.
type Descriptor struct {
	Name         string `cbor:"0,keyasint"`
	Firmware     string `cbor:"1,keyasint"`
	HardwareID   uint32 `cbor:"2,keyasint"`
	StripLength  uint16 `cbor:"3,keyasint"`
	LEDType      string `cbor:"4,keyasint,omitempty"`
	FlashBase    uint32 `cbor:"5,keyasint,omitempty"`
	FlashSize    uint32 `cbor:"6,keyasint,omitempty"`
	Capabilities uint32 `cbor:"7,keyasint"`
}

// MarshalDescriptor encodes d as CBOR.
func MarshalDescriptor(d *Descriptor) ([]byte, error) {
	data, err := cbor.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return data, nil
}

// ParseDescriptor decodes a CBOR descriptor.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty descriptor")
	}
	var d Descriptor
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor: %w", err)
	}
	return &d, nil
}

// DescriptorChunk returns the index-th chunk of an encoded descriptor.
// An index past the end yields an empty chunk, which terminates reads.
func DescriptorChunk(data []byte, index uint8) []byte {
	start := int(index) * DescriptorChunkSize
	if start >= len(data) {
		return []byte{}
	}
	end := start + DescriptorChunkSize
	if end > len(data) {
		end = len(data)
	}
	return data[start:end]
}

// Has reports whether a capability flag is set.
func (d *Descriptor) Has(capability uint32) bool {
	return d.Capabilities&capability != 0
}
