package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"shieldtx/internal/boundparams"
	"shieldtx/internal/codec"
	"shieldtx/internal/memstore"
)

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "shieldtx.json"), "--log-level", "error"}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.Bytes()
}

func TestKeygen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice.json")
	out := run(t, "--wallet", path, "keygen", "--name", "alice")

	var res keygenResult
	require.NoError(t, json.Unmarshal(out, &res))
	require.Equal(t, "alice", res.Name)
	require.NotEmpty(t, res.EncryptionKey)

	w, err := memstore.LoadWallet(path)
	require.NoError(t, err)
	require.Equal(t, res.AddressKeys, w.AddressKeys())

	key, err := codec.Arrayify(res.EncryptionKey)
	require.NoError(t, err)
	_, err = w.SpendingKeyPair(context.Background(), key)
	require.NoError(t, err)
}

func TestHashBoundParams(t *testing.T) {
	bp := &boundparams.BoundParams{
		TreeNumber:    2,
		Withdraw:      uint8(boundparams.Withdraw),
		AdaptContract: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		CommitmentCiphertext: []boundparams.CommitmentCiphertext{{
			Ciphertext:    [4]*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(4)},
			EphemeralKeys: [2]*big.Int{big.NewInt(5), big.NewInt(6)},
			Memo:          []*big.Int{},
		}},
	}
	raw, err := json.Marshal(bp)
	require.NoError(t, err)
	file := filepath.Join(t.TempDir(), "bp.json")
	require.NoError(t, os.WriteFile(file, raw, 0o644))

	var res hashResult
	require.NoError(t, json.Unmarshal(run(t, "hash-bound-params", file), &res))
	want, err := bp.Hash()
	require.NoError(t, err)
	got, err := codec.HexToBigInt(res.Hash)
	require.NoError(t, err)
	require.Equal(t, 0, want.Cmp(got))
}

func TestSimulateDummy(t *testing.T) {
	out := run(t, "--merkle-depth", "4", "simulate", "--deposit", "100", "--send", "40", "--withdraw", "10", "--prover", "dummy")

	var res simulateResult
	require.NoError(t, json.Unmarshal(out, &res))
	require.False(t, res.Applied)
	require.True(t, res.Transaction.IsDummy())
	require.Len(t, res.Transaction.Commitments, 3)
	require.Len(t, res.Transaction.BoundParams.CommitmentCiphertext, 2)
	require.Equal(t, 0, big.NewInt(100).Cmp(res.Balances["alice"]))
	require.Zero(t, res.Balances["bob"].Sign())
}
