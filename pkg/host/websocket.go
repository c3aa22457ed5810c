// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package host

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed websocket
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketPort is a Port on a websocket bridge that relays the raw serial
// byte stream in binary messages. A reader goroutine queues messages so
// reads can time out without poisoning the connection.
type WebSocketPort struct {
	conn *websocket.Conn

	msgs chan []byte
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	err     error
	buf     []byte
	timeout time.Duration
	wmu     sync.Mutex
}

// NewWebSocketPort wraps an established connection.
func NewWebSocketPort(conn *websocket.Conn) *WebSocketPort {
	w := &WebSocketPort{
		conn:    conn,
		msgs:    make(chan []byte, 64),
		done:    make(chan struct{}),
		timeout: time.Second,
	}
	go w.readLoop()
	return w
}

// DialWebSocket opens a bridge connection with optional HTTP Basic auth.
func DialWebSocket(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (*WebSocketPort, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}

	return NewWebSocketPort(conn), nil
}

func (w *WebSocketPort) readLoop() {
	defer close(w.msgs)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			return
		}
		// Text frames are bridge chatter
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case w.msgs <- data:
		case <-w.done:
			return
		}
	}
}

// Read implements Port.
func (w *WebSocketPort) Read(p []byte) (int, error) {
	w.mu.Lock()
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		w.mu.Unlock()
		return n, nil
	}
	timeout := w.timeout
	w.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data, ok := <-w.msgs:
		if !ok {
			return 0, w.closedErr()
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		n := copy(p, data)
		w.buf = data[n:]
		return n, nil
	case <-timer.C:
		return 0, nil
	}
}

func (w *WebSocketPort) closedErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionClosed, w.err)
	}
	return ErrConnectionClosed
}

// Write implements Port. Each call is sent as one binary message.
func (w *WebSocketPort) Write(p []byte) (int, error) {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetReadTimeout implements Port.
func (w *WebSocketPort) SetReadTimeout(t time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeout = t
	return nil
}

// ResetInputBuffer discards queued messages.
func (w *WebSocketPort) ResetInputBuffer() error {
	w.mu.Lock()
	w.buf = nil
	w.mu.Unlock()
	for {
		select {
		case _, ok := <-w.msgs:
			if !ok {
				return nil
			}
		default:
			return nil
		}
	}
}

// Close implements Port.
func (w *WebSocketPort) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}
