// keygen.go - Wallet key generation.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shieldtx/internal/codec"
	"shieldtx/internal/memstore"
	"shieldtx/internal/note"
)

var (
	keygenName          string
	keygenEncryptionKey string
)

type keygenResult struct {
	Name          string           `json:"name"`
	Suite         string           `json:"suite"`
	WalletPath    string           `json:"walletPath"`
	AddressKeys   note.AddressKeys `json:"addressKeys"`
	EncryptionKey string           `json:"encryptionKey,omitempty"`
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create a wallet with fresh keys",
	Long: `Create a wallet with fresh spending, viewing and nullifying keys and save it to the wallet file.

The spending key is stored encrypted under a 32-byte encryption key. Without --encryption-key a
random one is generated and printed once.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		suite, err := cfg.Suite()
		if err != nil {
			return err
		}
		key, generated, err := encryptionKey(keygenEncryptionKey)
		if err != nil {
			return err
		}
		w, err := memstore.NewWallet(keygenName, suite, key)
		if err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		if err := w.Save(cfg.WalletPath); err != nil {
			return fmt.Errorf("save wallet: %w", err)
		}
		logger.Info().Str("wallet", cfg.WalletPath).Str("suite", suite.Name()).Msg("wallet created")

		res := keygenResult{
			Name:        keygenName,
			Suite:       suite.Name(),
			WalletPath:  cfg.WalletPath,
			AddressKeys: w.AddressKeys(),
		}
		if generated {
			res.EncryptionKey = codec.Hexlify(key, true)
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenName, "name", "wallet", "wallet name")
	keygenCmd.Flags().StringVar(&keygenEncryptionKey, "encryption-key", "", "hex 32-byte key sealing the spending key")
}
