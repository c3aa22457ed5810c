// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package host

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// Driver defaults
const (
	DefaultTimeout = 1150 * time.Millisecond
	DefaultRetries = 3
)

var (
	// ErrNack means the node answered with a non-OK ack status.
	ErrNack = errors.New("command rejected")

	// ErrAckMismatch means an ack echoed a CRC other than the request's.
	ErrAckMismatch = errors.New("ack does not match request")

	// ErrUnexpectedResponse means a response did not have the shape the
	// command declares.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Options configure a Driver.
type Options struct {
	// Timeout bounds the wait for each response. Zero means DefaultTimeout.
	Timeout time.Duration
	// Retries is the number of attempts per command. Zero means
	// DefaultRetries.
	Retries int
	Logger  *slog.Logger
}

// Driver issues commands over a Link. One request is outstanding at a
// time; concurrent callers are serialized.
type Driver struct {
	link    Link
	timeout time.Duration
	retries int
	log     *slog.Logger

	// shared with views made by WithBudget
	mu *sync.Mutex
}

// NewDriver creates a driver on link.
func NewDriver(link Link, opts Options) *Driver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{
		link:    link,
		timeout: opts.Timeout,
		retries: opts.Retries,
		log:     opts.Logger.WithGroup("driver"),
		mu:      &sync.Mutex{},
	}
}

// WithBudget returns a view of d that waits timeout for each response and
// makes retries attempts per command. Zero keeps d's value. The view shares
// d's link and is serialized with it.
func (d *Driver) WithBudget(timeout time.Duration, retries int) *Driver {
	v := *d
	if timeout > 0 {
		v.timeout = timeout
	}
	if retries > 0 {
		v.retries = retries
	}
	return &v
}

// Link returns the underlying link.
func (d *Driver) Link() Link {
	return d.link
}

// Close closes the link.
func (d *Driver) Close() error {
	return d.link.Close()
}

// Send drains stale input and writes p without waiting for a response.
func (d *Driver) Send(p *lux.Packet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.send(p)
}

func (d *Driver) send(p *lux.Packet) error {
	if err := d.link.Drain(); err != nil {
		return fmt.Errorf("failed to drain input: %w", err)
	}
	if err := d.link.WritePacket(p); err != nil {
		return fmt.Errorf("failed to send %s: %w", p.Command, err)
	}
	return nil
}

// retryable reports whether an attempt failing with err should be retried.
func retryable(err error) bool {
	return errors.Is(err, lux.ErrTimeout) ||
		errors.Is(err, lux.ErrMalformed) ||
		errors.Is(err, lux.ErrBadChecksum) ||
		errors.Is(err, ErrUnexpectedResponse) ||
		errors.Is(err, ErrAckMismatch)
}

// exchange sends p and waits for a response that accept takes, retrying
// on timeouts, corrupt frames and responses accept rejects as retryable.
func (d *Driver) exchange(p *lux.Packet, accept func(*lux.Packet) error) (*lux.Packet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= d.retries; attempt++ {
		if err := d.send(p); err != nil {
			return nil, err
		}

		resp, err := d.link.ReadPacket(time.Now().Add(d.timeout))
		if err == nil {
			err = d.check(p, resp, accept)
		}
		if err == nil {
			return resp, nil
		}
		if !retryable(err) {
			return nil, err
		}

		lastErr = err
		d.log.Debug("attempt failed", "command", p.Command, "destination", p.Destination,
			"attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("%s to 0x%08X failed after %d attempts: %w",
		p.Command, p.Destination, d.retries, lastErr)
}

func (d *Driver) check(req, resp *lux.Packet, accept func(*lux.Packet) error) error {
	if resp.Destination != lux.AddressHost {
		return fmt.Errorf("%w: frame for 0x%08X is not a response", ErrUnexpectedResponse, resp.Destination)
	}
	if resp.Command != req.Command {
		return fmt.Errorf("%w: %s in reply to %s", ErrUnexpectedResponse, resp.Command, req.Command)
	}
	if accept != nil {
		return accept(resp)
	}
	return nil
}

// SendAndWait sends p and returns the node's response.
func (d *Driver) SendAndWait(p *lux.Packet) (*lux.Packet, error) {
	return d.exchange(p, nil)
}

// SendAndWaitLen is SendAndWait for responses of a fixed length.
func (d *Driver) SendAndWaitLen(p *lux.Packet, length int) ([]byte, error) {
	resp, err := d.exchange(p, func(resp *lux.Packet) error {
		if len(resp.Payload) != length {
			return fmt.Errorf("%w: %s response is %d bytes (want %d)",
				ErrUnexpectedResponse, resp.Command, len(resp.Payload), length)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// SendAckAndWait sends p and waits for an ack carrying p's CRC. It returns
// the ack status; a status other than lux.AckOK is also returned as an
// error wrapping ErrNack.
func (d *Driver) SendAckAndWait(p *lux.Packet) (uint8, error) {
	var status uint8
	_, err := d.exchange(p, func(resp *lux.Packet) error {
		crc, s, err := lux.ParseAck(resp.Payload)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
		}
		if crc != p.CRC {
			return fmt.Errorf("%w: got 0x%08X, sent 0x%08X", ErrAckMismatch, crc, p.CRC)
		}
		status = s
		return nil
	})
	if err != nil {
		return 0, err
	}
	if status != lux.AckOK {
		return status, fmt.Errorf("%w: %s to 0x%08X: %s", ErrNack, p.Command, p.Destination, lux.FormatAckStatus(status))
	}
	return status, nil
}
