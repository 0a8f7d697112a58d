// Package config loads process-level configuration for engined: mailbox
// and broadcast sizing, the default archive directory, log level, and the
// optional control-plane listen address, read once at startup and passed
// down to the EngineManager.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration structure for engined.
type Config struct {
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Log       LogConfig       `mapstructure:"log"`
	ControlPlane ControlPlaneConfig `mapstructure:"control_plane"`
}

// ArchiveConfig controls where engined looks for and creates archives.
type ArchiveConfig struct {
	Dir string `mapstructure:"dir"`
}

// EngineConfig tunes the per-actor mailbox and broadcast behavior.
type EngineConfig struct {
	MailboxSize         int `mapstructure:"mailbox_size"`
	BroadcastBufferSize int `mapstructure:"broadcast_buffer_size"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ControlPlaneConfig controls the optional HTTP surface exposing the
// Command/Response wire envelope over the network.
type ControlPlaneConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads engined.yaml from the first of ., ./config and /etc/engined
// that holds one (if any), layers
// ENGINED_-prefixed environment variables over it, and falls back to the
// defaults below. The config file is optional; a fresh checkout with no
// engined.yaml runs on defaults alone.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("engined")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/engined")

	v.SetEnvPrefix("ENGINED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("archive.dir", "./archives")

	v.SetDefault("engine.mailbox_size", 64)
	v.SetDefault("engine.broadcast_buffer_size", 64)

	v.SetDefault("log.level", "info")

	v.SetDefault("control_plane.enabled", false)
	v.SetDefault("control_plane.addr", "127.0.0.1:4570")
}
