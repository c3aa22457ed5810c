// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package lux

import "fmt"

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	AnomalyUnknownCommand AnomalyType = iota
	AnomalyLengthMismatch
	AnomalyUnexpectedIndex
	AnomalyUnexpectedResponse
	AnomalyInvalidValue
	AnomalyNack
)

// ValidationError represents a packet that decoded but does not match the
// command catalog
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket checks a decoded packet against the shapes the command
// catalog declares. Packets addressed to the host are checked as
// responses, everything else as requests.
// Returns a slice of validation errors (empty if packet is valid)
func ValidatePacket(p *Packet) []ValidationError {
	spec, ok := LookupCommand(p.Command)
	if !ok {
		return []ValidationError{{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("Unknown command 0x%02X", uint8(p.Command)),
			Details: map[string]interface{}{"command": uint8(p.Command)},
		}}
	}

	if p.IsResponse() {
		return validateResponse(p, spec)
	}
	return validateRequest(p, spec)
}

// validateRequest checks request payload bounds and index use
func validateRequest(p *Packet, spec CommandSpec) []ValidationError {
	errors := []ValidationError{}

	n := len(p.Payload)
	if n < spec.RequestMin || n > spec.RequestMax {
		errors = append(errors, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s request payload is %d bytes (valid %d-%d)", spec.Name, n, spec.RequestMin, spec.RequestMax),
			Details: map[string]interface{}{"length": n, "min": spec.RequestMin, "max": spec.RequestMax},
		})
	}

	if !spec.Indexed && p.Index != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnexpectedIndex,
			Message: fmt.Sprintf("%s is not indexed but carries index %d", spec.Name, p.Index),
			Details: map[string]interface{}{"index": p.Index},
		})
	}

	switch p.Command {
	case CmdSetAddr:
		var f AddressFilter
		if err := f.UnmarshalBinary(p.Payload); err == nil && f.MulticastMask == 0 && f.Unicast == [UnicastSlots]uint32{} {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: "SET_ADDR filter matches no address",
				Details: map[string]interface{}{"filter": f.String()},
			})
		}
	case CmdFrame, CmdFrameAck, CmdFrameHold, CmdFrameHoldAck, CmdFrameFlip, CmdFrameFlipAck:
		if n%3 != 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("%s pixel payload of %d bytes is not whole RGB pixels", spec.Name, n),
				Details: map[string]interface{}{"length": n},
			})
		}
	}

	return errors
}

// validateResponse checks response shapes and ack status
func validateResponse(p *Packet, spec CommandSpec) []ValidationError {
	n := len(p.Payload)

	switch spec.Response {
	case ShapeNone:
		return []ValidationError{{
			Type:    AnomalyUnexpectedResponse,
			Message: fmt.Sprintf("%s has no response but one was sent", spec.Name),
			Details: map[string]interface{}{"length": n},
		}}

	case ShapeAck:
		_, status, err := ParseAck(p.Payload)
		if err != nil {
			return []ValidationError{{
				Type:    AnomalyLengthMismatch,
				Message: fmt.Sprintf("%s ack is %d bytes (expected %d)", spec.Name, n, AckSize),
				Details: map[string]interface{}{"length": n, "expected": AckSize},
			}}
		}
		if status != AckOK {
			return []ValidationError{{
				Type:    AnomalyNack,
				Message: fmt.Sprintf("%s rejected: %s", spec.Name, FormatAckStatus(status)),
				Details: map[string]interface{}{"status": status},
			}}
		}

	case ShapeScalar, ShapeStruct:
		if n != spec.ResponseLen {
			return []ValidationError{{
				Type:    AnomalyLengthMismatch,
				Message: fmt.Sprintf("%s response is %d bytes (expected %d)", spec.Name, n, spec.ResponseLen),
				Details: map[string]interface{}{"length": n, "expected": spec.ResponseLen},
			}}
		}
	}

	return []ValidationError{}
}
