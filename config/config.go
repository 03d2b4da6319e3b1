// Package config loads the auction house configuration from an optional
// config file and HAMMER_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/StabilityNexus/hammerhouse/core"
)

// Config is the complete hammerd configuration.
type Config struct {
	// Transport.
	ListenAddr string `mapstructure:"listen_addr"`
	VsockPort  uint32 `mapstructure:"vsock_port"` // 0 disables the vsock listener
	AuthHeader string `mapstructure:"auth_header"`
	MaxWorkers int    `mapstructure:"max_workers"`

	// Engine.
	Shards int    `mapstructure:"shards"`
	Digest string `mapstructure:"digest"`

	// Protocol parameters.
	FeeBps   uint32 `mapstructure:"fee_bps"`
	Treasury string `mapstructure:"treasury"`

	// Persistence. Empty disables the store.
	DataDir string `mapstructure:"data_dir"`
}

// Default returns the configuration used when nothing is provided.
func Default() Config {
	return Config{
		ListenAddr: ":8545",
		AuthHeader: "X-Principal",
		MaxWorkers: 64,
		Shards:     4,
		Digest:     "keccak256",
		FeeBps:     100,
		Treasury:   "treasury",
	}
}

// Load reads the configuration from path (optional) and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	defaults := Default()
	v.SetDefault("listen_addr", defaults.ListenAddr)
	v.SetDefault("auth_header", defaults.AuthHeader)
	v.SetDefault("max_workers", defaults.MaxWorkers)
	v.SetDefault("shards", defaults.Shards)
	v.SetDefault("digest", defaults.Digest)
	v.SetDefault("fee_bps", defaults.FeeBps)
	v.SetDefault("treasury", defaults.Treasury)

	v.SetEnvPrefix("HAMMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	if c.Shards <= 0 {
		return fmt.Errorf("shards must be positive, got %d", c.Shards)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", c.MaxWorkers)
	}
	if c.FeeBps > core.FeeDenominator {
		return fmt.Errorf("fee_bps %d exceeds %d", c.FeeBps, core.FeeDenominator)
	}
	if c.Treasury == "" {
		return fmt.Errorf("treasury principal must be set")
	}
	if _, ok := core.ParseDigestKind(c.Digest); !ok {
		return fmt.Errorf("unknown digest %q", c.Digest)
	}
	return nil
}

// DigestKind resolves the configured commitment digest.
func (c Config) DigestKind() core.DigestKind {
	d, _ := core.ParseDigestKind(c.Digest)
	return d
}
