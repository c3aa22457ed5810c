// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks what a passive observer of the line sees: the same
// categories a node counts, plus catalog anomalies and rates.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets     uint64
	ValidPackets     uint64
	Requests         uint64
	Responses        uint64
	CRCErrors        uint64
	MalformedFrames  uint64
	DecodeErrors     uint64
	CatalogAnomalies uint64
	UnknownCommands  uint64
	LengthMismatches uint64
	Nacks            uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a packet and its errors
func (s *Statistics) Update(packet *Packet, decodeErr error, validationErrors []ValidationError) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, ErrBadChecksum):
			s.CRCErrors++
		case errors.Is(decodeErr, ErrMalformed):
			s.MalformedFrames++
		default:
			s.DecodeErrors++
		}
		return
	}

	if packet != nil {
		if packet.IsResponse() {
			s.Responses++
		} else {
			s.Requests++
		}
	}

	if len(validationErrors) == 0 {
		s.ValidPackets++
		return
	}

	s.CatalogAnomalies++
	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyUnknownCommand:
			s.UnknownCommands++
		case AnomalyLengthMismatch:
			s.LengthMismatches++
		case AnomalyNack:
			s.Nacks++
		}
	}
}

// Errors returns the total count of frames that failed or were anomalous
func (s *Statistics) Errors() uint64 {
	return s.CRCErrors + s.MalformedFrames + s.DecodeErrors + s.CatalogAnomalies
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalPackets == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, percent(s.ValidPackets))
	result += fmt.Sprintf("  Requests:        %6d\n", s.Requests)
	result += fmt.Sprintf("  Responses:       %6d\n", s.Responses)

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, percent(s.CRCErrors))
	}
	if s.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.MalformedFrames, percent(s.MalformedFrames))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.CatalogAnomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d (%.1f%%)\n", s.CatalogAnomalies, percent(s.CatalogAnomalies))
		if s.UnknownCommands > 0 {
			result += fmt.Sprintf("  Unknown Cmds:    %6d\n", s.UnknownCommands)
		}
		if s.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch: %6d\n", s.LengthMismatches)
		}
		if s.Nacks > 0 {
			result += fmt.Sprintf("  Nacks:           %6d\n", s.Nacks)
		}
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
