// Package config loads VSTP's tunable parameters (frame size caps,
// reassembly limits, UDP MTU, ACK/retry schedule) the way
// yumosx-pyproc/pkg/pyproc's LoadConfig does: a typed struct with
// mapstructure tags, defaults set programmatically, then overlaid by an
// optional file and VSTP_-prefixed environment variables. This is an
// ambient, operator-facing concern layered on top of core/transport, not
// threaded through the protocol state machines themselves.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable VSTP exposes as "configurable" in spec.md §6.
type Config struct {
	TCP       TCPConfig       `mapstructure:"tcp"`
	UDP       UDPConfig       `mapstructure:"udp"`
	Reassembly ReassemblyConfig `mapstructure:"reassembly"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// TCPConfig covers C5/C6 tunables.
type TCPConfig struct {
	MaxFrameSize int `mapstructure:"max_frame_size"`
}

// UDPConfig covers C8 tunables.
type UDPConfig struct {
	MaxDatagramSize int           `mapstructure:"max_datagram_size"`
	FragmentEnabled bool          `mapstructure:"fragment_enabled"`
	AckTimeout      time.Duration `mapstructure:"ack_timeout"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay   time.Duration `mapstructure:"max_retry_delay"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

// ReassemblyConfig covers C7 tunables.
type ReassemblyConfig struct {
	MaxSessions  int           `mapstructure:"max_sessions"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxFragments int           `mapstructure:"max_fragments"`
}

// LoggingConfig matches the teacher-adjacent pack's LoggingConfig shape.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tcp.max_frame_size", 8*1024*1024)

	v.SetDefault("udp.max_datagram_size", 1200)
	v.SetDefault("udp.fragment_enabled", true)
	v.SetDefault("udp.ack_timeout", 2*time.Second)
	v.SetDefault("udp.retry_delay", 100*time.Millisecond)
	v.SetDefault("udp.max_retry_delay", 5*time.Second)
	v.SetDefault("udp.max_retries", 3)

	v.SetDefault("reassembly.max_sessions", 1000)
	v.SetDefault("reassembly.timeout", 30*time.Second)
	v.SetDefault("reassembly.max_fragments", 255)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load builds a Config from defaults, an optional config file at
// configPath (ignored if empty or not found), and VSTP_-prefixed
// environment variables, in that precedence order.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VSTP")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration Load("") would produce: defaults with
// no file or environment overlay.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// setDefaults alone can never fail to unmarshal; this path exists
		// only to keep Default infallible for callers that don't want to
		// handle an error for the no-file case.
		panic(err)
	}
	return cfg
}
