// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package node

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// pipePort joins the two ends of a pipe into a port and records RTS.
type pipePort struct {
	io.Reader
	io.Writer
	rts chan bool
}

func (p *pipePort) SetRTS(rts bool) error {
	select {
	case p.rts <- rts:
	default:
	}
	return nil
}

func startNode(t *testing.T, hal interface {
	HAL
	Wake() <-chan struct{}
}) *Device {
	t.Helper()
	d := NewDevice(DeviceConfig{Defaults: DefaultSettings("pipe", testAddress, 60)})
	e := NewEngine(hal, Config{Filter: d, Handler: d})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, e, hal.Wake()) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
	return d
}

func TestPortHAL_Exchange(t *testing.T) {
	toNodeR, toNodeW := io.Pipe()
	fromNodeR, fromNodeW := io.Pipe()
	port := &pipePort{Reader: toNodeR, Writer: fromNodeW, rts: make(chan bool, 16)}

	hal := NewPortHAL(port, nil)
	t.Cleanup(func() {
		toNodeW.Close()
		fromNodeR.Close()
		hal.Close()
	})
	startNode(t, hal)

	replies := make(chan *lux.Packet, 1)
	go func() {
		dec := lux.NewDecoder()
		buf := make([]byte, 64)
		for {
			n, err := fromNodeR.Read(buf)
			if err != nil {
				return
			}
			for _, b := range buf[:n] {
				if p, _ := dec.DecodeByte(b); p != nil {
					replies <- p
				}
			}
		}
	}()

	// Give the engine a moment to enable its receiver
	require.Eventually(t, func() bool {
		hal.mu.Lock()
		defer hal.mu.Unlock()
		return hal.rxEnabled
	}, time.Second, time.Millisecond)

	req := lux.NewRequest(testAddress, lux.CmdGetLength)
	_, err := toNodeW.Write(lux.MustEncodeFrame(req))
	require.NoError(t, err)

	select {
	case p := <-replies:
		assert.Equal(t, lux.CmdGetLength, p.Command)
		assert.Equal(t, []byte{60, 0}, p.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from node")
	}

	// RTS went high for the reply
	assert.Contains(t, drain(port.rts), true)
}

func drain(ch chan bool) []bool {
	var out []bool
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestPortHAL_Queues(t *testing.T) {
	r, w := io.Pipe()
	t.Cleanup(func() { w.Close() })
	hal := NewPortHAL(&pipePort{Reader: r, Writer: io.Discard}, nil)
	t.Cleanup(func() { hal.Close() })

	hal.SetRx(true)
	_, err := w.Write([]byte{4, 5})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hal.RxAvailable() == 2 }, time.Second, time.Millisecond)

	buf := make([]byte, 1)
	assert.Equal(t, 1, hal.Read(buf))
	assert.Equal(t, byte(4), buf[0])

	// Disabling the receiver drops what is queued
	hal.SetRx(false)
	assert.Zero(t, hal.RxAvailable())

	assert.Equal(t, TxBufferSize, hal.TxAvailable())
	hal.Write([]byte{9, 9, 9})
	require.Eventually(t, hal.TxFlushed, time.Second, time.Millisecond)
}

func TestDatagramHAL_Exchange(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	hal := NewDatagramHAL(conn, nil)
	t.Cleanup(func() { hal.Close() })
	startNode(t, hal)

	client, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	req := lux.NewRequest(testAddress, lux.CmdGetLength)
	data, err := req.MarshalDatagram()
	require.NoError(t, err)

	// The node may not have enabled its receiver yet, so retry
	buf := make([]byte, lux.PacketMaxSize)
	var reply *lux.Packet
	for attempt := 0; attempt < 20 && reply == nil; attempt++ {
		_, err := client.Write(data)
		require.NoError(t, err)

		require.NoError(t, client.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
		n, err := client.Read(buf)
		if err != nil {
			continue
		}
		reply, err = lux.UnmarshalDatagram(buf[:n])
		require.NoError(t, err)
	}

	require.NotNil(t, reply, "no reply from node")
	assert.Equal(t, uint32(lux.AddressHost), reply.Destination)
	assert.Equal(t, lux.CmdGetLength, reply.Command)
	assert.Equal(t, []byte{60, 0}, reply.Payload)
}
