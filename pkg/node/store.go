// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// ErrNoSettings is returned by a store that has never been saved to.
var ErrNoSettings = errors.New("no stored settings")

// Settings is the persistent node configuration written by COMMIT_CONFIG
// and reloaded on RESET.
type Settings struct {
	ID     string            `cbor:"0,keyasint"`
	Filter lux.AddressFilter `cbor:"1,keyasint"`
	Length uint16            `cbor:"2,keyasint"`
}

// DefaultSettings returns the factory configuration for a node with the
// given unicast address.
func DefaultSettings(id string, address uint32, length uint16) Settings {
	return Settings{
		ID:     id,
		Filter: lux.DefaultAddressFilter(address),
		Length: length,
	}
}

// ConfigStore persists Settings.
type ConfigStore interface {
	Load() (Settings, error)
	Save(Settings) error
}

// FileStore keeps settings in a CBOR file.
type FileStore struct {
	Path string
}

// Load reads the settings file. A missing file yields ErrNoSettings.
func (s *FileStore) Load() (Settings, error) {
	var cfg Settings

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, ErrNoSettings
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := cbor.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode settings %s: %w", s.Path, err)
	}
	return cfg, nil
}

// Save writes the settings file atomically.
func (s *FileStore) Save(cfg Settings) error {
	data, err := cbor.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".settings-*")
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return os.Rename(tmp.Name(), s.Path)
}

// MemoryStore keeps settings in memory.
type MemoryStore struct {
	mu    sync.Mutex
	cfg   Settings
	saved bool
	Saves int
}

// Load returns the last saved settings.
func (s *MemoryStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.saved {
		return Settings{}, ErrNoSettings
	}
	return s.cfg, nil
}

// Save records cfg.
func (s *MemoryStore) Save(cfg Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	s.saved = true
	s.Saves++
	return nil
}
