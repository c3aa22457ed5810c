// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package host

import (
	"bytes"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// bufferPort serves canned input in small reads and records output.
type bufferPort struct {
	in      []byte
	out     bytes.Buffer
	resets  int
	rts     []bool
	drained int
}

func (p *bufferPort) Read(b []byte) (int, error) {
	n := copy(b[:min(len(b), 7)], p.in)
	p.in = p.in[n:]
	return n, nil
}

func (p *bufferPort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *bufferPort) Close() error { return nil }
func (p *bufferPort) SetReadTimeout(time.Duration) error { return nil }
func (p *bufferPort) ResetInputBuffer() error { p.resets++; p.in = nil; return nil }
func (p *bufferPort) SetRTS(rts bool) error { p.rts = append(p.rts, rts); return nil }
func (p *bufferPort) Drain() error { p.drained++; return nil }

func TestStreamLink_WritePacket(t *testing.T) {
	port := &bufferPort{}
	link := NewStreamLink(port, StreamOptions{RTS: true})

	p := lux.NewSetLength(3, 120)
	require.NoError(t, link.WritePacket(p))

	assert.Equal(t, lux.MustEncodeFrame(lux.NewSetLength(3, 120)), port.out.Bytes())
	assert.Equal(t, []bool{true, false}, port.rts)
	assert.Equal(t, 1, port.drained)
	assert.NotZero(t, p.CRC)
}

func TestStreamLink_ReadPacket(t *testing.T) {
	first := lux.MustEncodeFrame(lux.NewPacket(lux.AddressHost, lux.CmdGetID, 0, []byte("a")))
	second := lux.MustEncodeFrame(lux.NewPacket(lux.AddressHost, lux.CmdGetID, 0, []byte("b")))

	port := &bufferPort{in: append(append([]byte{0, 0}, first...), second...)}
	link := NewStreamLink(port, StreamOptions{})
	deadline := time.Now().Add(time.Second)

	p, err := link.ReadPacket(deadline)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), p.Payload)

	// Bytes read past the first frame are kept for the next call
	p, err = link.ReadPacket(deadline)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), p.Payload)
}

func TestStreamLink_ReadErrors(t *testing.T) {
	raw, err := lux.NewPacket(lux.AddressHost, lux.CmdGetID, 0, []byte("x")).MarshalBinary()
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x80
	corrupt := append(lux.CobsEncode(raw), lux.Delimiter)

	tests := []struct {
		name  string
		input []byte
		err   error
	}{
		{"bad checksum", corrupt, lux.ErrBadChecksum},
		{"malformed", []byte{0x05, 0x01, lux.Delimiter}, lux.ErrMalformed},
		{"silence", nil, lux.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := NewStreamLink(&bufferPort{in: tt.input}, StreamOptions{})
			_, err := link.ReadPacket(time.Now().Add(20 * time.Millisecond))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestStreamLink_Drain(t *testing.T) {
	port := &bufferPort{in: []byte{0x03, 0x01}}
	link := NewStreamLink(port, StreamOptions{})

	_, err := link.ReadPacket(time.Now())
	assert.ErrorIs(t, err, lux.ErrTimeout)

	require.NoError(t, link.Drain())
	assert.Equal(t, 1, port.resets)
}

// scriptedConn returns queued read results, then deadline errors
type scriptedConn struct {
	net.Conn
	reads []scriptedRead
}

type scriptedRead struct {
	data []byte
	err  error
}

func (c *scriptedConn) SetReadDeadline(time.Time) error { return nil }

func (c *scriptedConn) Read(b []byte) (int, error) {
	if len(c.reads) == 0 {
		return 0, os.ErrDeadlineExceeded
	}
	r := c.reads[0]
	c.reads = c.reads[1:]
	return copy(b, r.data), r.err
}

func TestDatagramLink_ConnectionRefused(t *testing.T) {
	reply := lux.NewGetID(lux.AddressHost)
	datagram, err := reply.MarshalDatagram()
	require.NoError(t, err)

	tests := []struct {
		name    string
		reads   []scriptedRead
		wantErr error
	}{
		{
			name:    "refused then reply",
			reads:   []scriptedRead{{err: syscall.ECONNREFUSED}, {data: datagram}},
			wantErr: nil,
		},
		{
			name:    "refused until deadline",
			reads:   []scriptedRead{{err: syscall.ECONNREFUSED}, {err: syscall.ECONNREFUSED}},
			wantErr: lux.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := NewDatagramLink(&scriptedConn{reads: tt.reads})
			p, err := link.ReadPacket(time.Now().Add(time.Second))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, lux.CmdGetID, p.Command)
		})
	}
}
