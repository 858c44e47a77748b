// root.go - Root command, global flags and shared setup.
package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"shieldtx/internal/codec"
	"shieldtx/internal/config"
	"shieldtx/internal/logging"
)

// GlobalFlags are flags shared by every command. Set flags override the config file.
type GlobalFlags struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	HashSuite   string
	MerkleDepth int
	KeyDir      string
	WalletPath  string
	LedgerPath  string
}

var (
	globalFlags GlobalFlags
	cfg         *config.Config
	logger      *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:           "shieldtx",
	Short:         "Build, prove and inspect shielded UTXO transactions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(globalFlags.ConfigPath)
		if err != nil {
			return err
		}
		applyOverrides(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		logger, err = logging.New(cfg)
		if err != nil {
			return err
		}
		logger.Debug().Str("config", globalFlags.ConfigPath).Str("suite", cfg.HashSuite).Msg("configuration loaded")
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return logger.Close()
		}
		return nil
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&globalFlags.ConfigPath, "config", "shieldtx.json", "configuration file (created with defaults if missing)")
	f.StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug|info|warn|error")
	f.StringVar(&globalFlags.LogFormat, "log-format", "", "log format: json|console")
	f.StringVar(&globalFlags.HashSuite, "hash-suite", "", "primitive suite: poseidon|mimc")
	f.IntVar(&globalFlags.MerkleDepth, "merkle-depth", 0, "commitment tree depth")
	f.StringVar(&globalFlags.KeyDir, "key-dir", "", "directory for cached proving and verifying keys")
	f.StringVar(&globalFlags.WalletPath, "wallet", "", "wallet file")
	f.StringVar(&globalFlags.LedgerPath, "ledger", "", "ledger file")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(hashBoundParamsCmd)
	rootCmd.AddCommand(simulateCmd)
}

// applyOverrides copies explicitly set global flags onto c.
func applyOverrides(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("log-level") {
		c.LogLevel = globalFlags.LogLevel
	}
	if f.Changed("log-format") {
		c.LogFormat = globalFlags.LogFormat
	}
	if f.Changed("hash-suite") {
		c.HashSuite = globalFlags.HashSuite
	}
	if f.Changed("merkle-depth") {
		c.MerkleDepth = globalFlags.MerkleDepth
	}
	if f.Changed("key-dir") {
		c.KeyDir = globalFlags.KeyDir
	}
	if f.Changed("wallet") {
		c.WalletPath = globalFlags.WalletPath
	}
	if f.Changed("ledger") {
		c.LedgerPath = globalFlags.LedgerPath
	}
}

// encryptionKey decodes a hex wallet encryption key, or draws a fresh one when s is empty.
func encryptionKey(s string) ([]byte, bool, error) {
	if s == "" {
		k, err := codec.Random(32)
		return k, true, err
	}
	k, err := codec.Arrayify(s)
	if err != nil {
		return nil, false, fmt.Errorf("encryption key: %w", err)
	}
	if len(k) != 32 {
		return nil, false, fmt.Errorf("encryption key must be 32 bytes, got %d", len(k))
	}
	return k, false, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
