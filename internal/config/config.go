// config.go - Configuration management for the shieldtx tools
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"shieldtx/internal/merkletree"
	"shieldtx/internal/primitives"
	"shieldtx/internal/solver"
	"shieldtx/internal/txbuilder"
)

// Config represents the application configuration
type Config struct {
	// Logging
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	LogFile   string `json:"log_file"`

	// Transaction building
	HashSuite      string `json:"hash_suite"`
	MaxOutputs     int    `json:"max_outputs"`
	MaxInputs      int    `json:"max_inputs"`
	EmitZeroChange bool   `json:"emit_zero_change"`
	MerkleDepth    int    `json:"merkle_depth"`
	ChainID        uint64 `json:"chain_id"`

	// File paths
	KeyDir     string `json:"key_dir"`
	WalletPath string `json:"wallet_path"`
	LedgerPath string `json:"ledger_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "console",
		HashSuite:      primitives.SuitePoseidon,
		MaxOutputs:     txbuilder.DefaultMaxOutputs,
		MaxInputs:      solver.DefaultMaxInputs,
		EmitZeroChange: true,
		MerkleDepth:    merkletree.DefaultDepth,
		ChainID:        1,
		KeyDir:         "keys",
		WalletPath:     "wallet.json",
		LedgerPath:     "ledger.json",
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if errors.Is(err, os.ErrNotExist) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	// Missing keys keep their defaults.
	config := DefaultConfig()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console")
	}
	if _, err := primitives.ByName(c.HashSuite); err != nil {
		return fmt.Errorf("hash_suite: %w", err)
	}
	if c.MaxOutputs <= 0 {
		return fmt.Errorf("max_outputs must be positive")
	}
	if c.MaxInputs <= 0 {
		return fmt.Errorf("max_inputs must be positive")
	}
	if c.MerkleDepth <= 0 || c.MerkleDepth > 32 {
		return fmt.Errorf("merkle_depth must be between 1 and 32")
	}
	return nil
}

// Suite returns the configured primitive suite.
func (c *Config) Suite() (primitives.Suite, error) {
	return primitives.ByName(c.HashSuite)
}

// BuildOptions returns builder options for this configuration.
func (c *Config) BuildOptions() txbuilder.Options {
	opts := txbuilder.DefaultOptions()
	opts.MaxOutputs = c.MaxOutputs
	opts.MaxInputs = c.MaxInputs
	opts.EmitZeroChange = c.EmitZeroChange
	return opts
}
