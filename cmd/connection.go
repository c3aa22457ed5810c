// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/zbanks/radiance-sub001/pkg/host"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// OpenSerialPort opens a serial port at 8-N-1
func OpenSerialPort(portName string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return port, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("LUX_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// OpenPort opens a byte stream to the bus: a serial port or a WebSocket
// bridge, based on flags
func OpenPort() (host.Port, string, error) {
	if cfg.URL != "" {
		password := ""
		if cfg.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		port, err := host.DialWebSocket(context.Background(), cfg.URL, cfg.Username, password, cfg.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return port, fmt.Sprintf("WebSocket: %s", cfg.URL), nil
	}

	if cfg.Port != "" {
		port, err := OpenSerialPort(cfg.Port, cfg.Baud)
		if err != nil {
			return nil, "", err
		}

		return port, fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// OpenLink opens a packet link: UDP datagrams, or COBS frames over a
// serial or WebSocket stream
func OpenLink() (host.Link, string, error) {
	if cfg.UDP != "" {
		link, err := host.DialUDP(cfg.UDP)
		if err != nil {
			return nil, "", err
		}
		return link, fmt.Sprintf("UDP: %s", cfg.UDP), nil
	}

	port, info, err := OpenPort()
	if err != nil {
		if cfg.URL == "" && cfg.Port == "" {
			return nil, "", fmt.Errorf("one of --port, --udp or --url must be specified")
		}
		return nil, "", err
	}

	return host.NewStreamLink(port, host.StreamOptions{RTS: cfg.RTS, Logger: log}), info, nil
}

// OpenDriver opens a link and wraps it in a packet driver
func OpenDriver() (*host.Driver, string, error) {
	link, info, err := OpenLink()
	if err != nil {
		return nil, "", err
	}

	log.Debug("connected", "link", info, "timeout", cfg.Timeout, "retries", cfg.Retries)
	return host.NewDriver(link, host.Options{
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
		Logger:  log,
	}), info, nil
}

// withNode opens a driver and resolves --dest for single-node commands
func withNode(fn func(d *host.Driver, dest uint32) error) error {
	dest, err := cfg.Destination()
	if err != nil {
		return err
	}

	d, _, err := OpenDriver()
	if err != nil {
		return err
	}
	defer d.Close()

	return fn(d, dest)
}
