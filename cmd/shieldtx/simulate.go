// simulate.go - Local end-to-end run of one shielded transaction.
//
//   - alice deposits a note into a fresh local ledger
//   - alice builds a transfer to bob, with an optional withdraw
//   - the transaction is proved (dummy or Groth16) and, when real, applied to the ledger
//   - bob and alice scan the published ciphertexts for their notes
package main

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"shieldtx/internal/codec"
	"shieldtx/internal/memstore"
	"shieldtx/internal/note"
	"shieldtx/internal/observe"
	"shieldtx/internal/primitives"
	"shieldtx/internal/prover"
	"shieldtx/internal/txbuilder"
)

const (
	proverDummy   = "dummy"
	proverGroth16 = "groth16"
)

type simulateFlags struct {
	Token      string
	Deposit    int64
	Send       int64
	Withdraw   int64
	WithdrawTo string
	OverrideTo string
	Prover     string
	Save       bool
}

var simFlags simulateFlags

type simulateResult struct {
	Transaction *txbuilder.SerializedTransaction `json:"transaction"`
	Applied     bool                             `json:"applied"`
	Tree        int                              `json:"tree"`
	Start       uint64                           `json:"start"`
	Balances    map[string]*big.Int              `json:"balances"`
	Withdrawals []memstore.Withdrawal            `json:"withdrawals,omitempty"`
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Deposit, build, prove, apply and scan one transaction locally",
	Long: `Run one shielded transaction against an in-memory ledger and print the serialized transaction.

A dummy proof is never applied to the ledger. Groth16 proving requires --hash-suite mimc.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulate(cmd)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simFlags.Token, "token", "0x5FbDB2315678afecb367f032d93F642f64180aa3", "ERC20 token address")
	f.Int64Var(&simFlags.Deposit, "deposit", 100, "value of alice's deposited note")
	f.Int64Var(&simFlags.Send, "send", 40, "value sent to bob")
	f.Int64Var(&simFlags.Withdraw, "withdraw", 0, "value withdrawn to a public address")
	f.StringVar(&simFlags.WithdrawTo, "withdraw-to", "0x000000000000000000000000000000000000dEaD", "withdraw address")
	f.StringVar(&simFlags.OverrideTo, "override-to", "", "redirect the withdraw to this address")
	f.StringVar(&simFlags.Prover, "prover", proverDummy, "prover: dummy|groth16")
	f.BoolVar(&simFlags.Save, "save", false, "save the ledger and alice's wallet to the configured paths")
}

func runSimulate(cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := logger.Logger

	switch simFlags.Prover {
	case proverDummy:
	case proverGroth16:
		if cfg.HashSuite != primitives.SuiteMiMC {
			return fmt.Errorf("groth16 proving requires hash_suite %q, have %q", primitives.SuiteMiMC, cfg.HashSuite)
		}
	default:
		return fmt.Errorf("unknown prover %q", simFlags.Prover)
	}
	suite, err := cfg.Suite()
	if err != nil {
		return err
	}
	token, err := note.NewERC20(simFlags.Token)
	if err != nil {
		return err
	}
	key, _, err := encryptionKey("")
	if err != nil {
		return err
	}

	ledger, err := memstore.NewLedger(suite, cfg.MerkleDepth)
	if err != nil {
		return err
	}
	alice, err := memstore.NewWallet("alice", suite, key)
	if err != nil {
		return err
	}
	bob, err := memstore.NewWallet("bob", suite, key)
	if err != nil {
		return err
	}

	deposit, err := note.NewRandomNote(alice.AddressKeys(), big.NewInt(simFlags.Deposit), token)
	if err != nil {
		return err
	}
	cm, err := deposit.Commitment(suite)
	if err != nil {
		return err
	}
	tree, pos, err := ledger.Shield(cm)
	if err != nil {
		return err
	}
	if err := alice.AddNote(tree, pos, deposit); err != nil {
		return err
	}
	log.Info().Int64("value", simFlags.Deposit).Int("tree", tree).Uint64("position", pos).Msg("deposit shielded")

	reg := prometheus.NewRegistry()
	metrics, err := observe.NewMetrics(reg, txbuilder.ErrorClass)
	if err != nil {
		return err
	}
	opts := cfg.BuildOptions()
	opts.Observer = observe.Multi{observe.NewLogger(log), metrics}

	tx, err := txbuilder.New(suite, token, cfg.ChainID, opts)
	if err != nil {
		return err
	}
	if simFlags.Send > 0 {
		out, err := note.NewRandomNote(bob.AddressKeys(), big.NewInt(simFlags.Send), token)
		if err != nil {
			return err
		}
		tx.AddOutput(out)
	}
	if simFlags.Withdraw > 0 {
		to, err := parseAddress(simFlags.WithdrawTo)
		if err != nil {
			return err
		}
		var override *common.Address
		if simFlags.OverrideTo != "" {
			o, err := parseAddress(simFlags.OverrideTo)
			if err != nil {
				return err
			}
			override = &o
		}
		if err := tx.Withdraw(to, big.NewInt(simFlags.Withdraw), override); err != nil {
			return err
		}
	}

	var stx *txbuilder.SerializedTransaction
	if simFlags.Prover == proverGroth16 {
		g := prover.NewGroth16(cfg.KeyDir, log)
		ledger.SetVerifier(g)
		stx, err = tx.Prove(ctx, g, alice, ledger, key)
	} else {
		stx, err = tx.DummyProve(ctx, alice, ledger, key)
	}
	if err != nil {
		log.Error().Str("class", txbuilder.ErrorClass(err)).Err(err).Msg("build failed")
		return err
	}

	res := simulateResult{Transaction: stx, Balances: map[string]*big.Int{}}
	if stx.IsDummy() {
		log.Warn().Msg("dummy proof: transaction not applied to the ledger")
	} else {
		res.Tree, res.Start, err = ledger.AppendTx(stx)
		if err != nil {
			return fmt.Errorf("apply transaction: %w", err)
		}
		res.Applied = true
		for _, w := range []*memstore.Wallet{alice, bob} {
			found, err := w.ScanTransaction(stx, res.Tree, res.Start, token)
			if err != nil {
				return fmt.Errorf("%s scan: %w", w.Name, err)
			}
			log.Info().Str("wallet", w.Name).Int("notes", found).Msg("scanned transaction")
		}
		alice.CheckNoteStatusAgainstLedger(ledger)
		res.Withdrawals = ledger.Withdrawals()
	}
	res.Balances["alice"] = alice.Balance(ctx, token)
	res.Balances["bob"] = bob.Balance(ctx, token)

	if families, err := reg.Gather(); err == nil {
		for _, mf := range families {
			log.Debug().Str("metric", mf.GetName()).Int("series", len(mf.GetMetric())).Msg("collected")
		}
	}

	if simFlags.Save {
		if err := ledger.SaveToFile(cfg.LedgerPath); err != nil {
			return fmt.Errorf("save ledger: %w", err)
		}
		if err := alice.Save(cfg.WalletPath); err != nil {
			return fmt.Errorf("save wallet: %w", err)
		}
		log.Info().Str("ledger", cfg.LedgerPath).Str("wallet", cfg.WalletPath).
			Str("encryption_key", codec.Hexlify(key, true)).Msg("state saved")
	}
	return printJSON(cmd.OutOrStdout(), res)
}
