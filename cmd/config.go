// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the merged view of flags, environment and config file.
type Config struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	RTS         bool          `mapstructure:"rts"`
	UDP         string        `mapstructure:"udp"`
	URL         string        `mapstructure:"url"`
	Username    string        `mapstructure:"username"`
	NoSSLVerify bool          `mapstructure:"no-ssl-verify"`
	Dest        string        `mapstructure:"dest"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
	LogLevel    string        `mapstructure:"log-level"`
	LogFormat   string        `mapstructure:"log-format"`
}

// loadConfig loads configuration from file, environment, and flags. Flags
// win over environment, which wins over the file.
func loadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("luxctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.luxctl")
		viper.AddConfigPath("/etc/luxctl")
	}
	viper.SetEnvPrefix("LUX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

// Destination parses the configured destination address.
func (c *Config) Destination() (uint32, error) {
	if c.Dest == "" {
		return 0, fmt.Errorf("--dest must be specified")
	}
	return parseAddress(c.Dest)
}

// parseAddress accepts decimal, 0x hex or 0o octal node addresses.
func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}
