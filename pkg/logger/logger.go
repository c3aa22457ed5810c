// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

// Package logger builds the slog logger shared by the CLI and the node
// simulator.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/phsym/console-slog"
)

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options select the handler and level.
type Options struct {
	Level     string
	Format    string
	AddSource bool
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// New creates a logger writing to w. The console format is meant for
// terminals, JSON for everything else.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		handler = console.NewHandler(w, &console.HandlerOptions{
			AddSource: opts.AddSource,
			Level:     level,
		})
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: opts.AddSource,
			Level:     level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					a.Key = "ts"
				}
				return a
			},
		})
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	return slog.New(handler), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
