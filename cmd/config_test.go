// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zbanks/radiance-sub001/pkg/host"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

// resetViper gives each test a fresh viper bound to the root flags
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	require.NoError(t, viper.BindPFlags(rootCmd.PersistentFlags()))
	t.Cleanup(viper.Reset)
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"66", 66, false},
		{"0x42", 0x42, false},
		{"0X80000001", 0x80000001, false},
		{"0o17", 15, false},
		{"0xFFFFFFFF", 0xFFFFFFFF, false},
		{"0x100000000", 0, true},
		{"-1", 0, true},
		{"node", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAddress(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigDestination(t *testing.T) {
	_, err := (&Config{}).Destination()
	assert.Error(t, err)

	dest, err := (&Config{Dest: "0x42"}).Destination()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x42), dest)
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	c, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, lux.DefaultBaudRate, c.Baud)
	assert.Equal(t, host.DefaultTimeout, c.Timeout)
	assert.Equal(t, host.DefaultRetries, c.Retries)
	assert.Equal(t, "info", c.LogLevel)
	assert.Empty(t, c.Port)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "luxctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"port: /dev/ttyUSB3\nbaud: 115200\ntimeout: 2s\ndest: \"0x42\"\nlog-level: debug\n"), 0o644))

	t.Setenv("LUX_PORT", "/dev/ttyACM0")
	t.Setenv("LUX_NO_SSL_VERIFY", "true")

	c, err := loadConfig(path)
	require.NoError(t, err)

	// Environment wins over the file
	assert.Equal(t, "/dev/ttyACM0", c.Port)
	assert.True(t, c.NoSSLVerify)

	assert.Equal(t, 115200, c.Baud)
	assert.Equal(t, 2*time.Second, c.Timeout)
	assert.Equal(t, "0x42", c.Dest)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	resetViper(t)

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
