package memstore

import (
	"bytes"
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"shieldtx/internal/boundparams"
	"shieldtx/internal/note"
	"shieldtx/internal/primitives"
	"shieldtx/internal/prover"
	"shieldtx/internal/txbuilder"
)

var encKey = bytes.Repeat([]byte{0x42}, 32)

func token(t *testing.T) note.TokenData {
	t.Helper()
	tok, err := note.NewERC20("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	require.NoError(t, err)
	return tok
}

func wallet(t *testing.T) *Wallet {
	t.Helper()
	w, err := NewWallet("alice", primitives.NewPoseidon(), encKey)
	require.NoError(t, err)
	return w
}

func TestSpendingKeyIsSealed(t *testing.T) {
	w := wallet(t)
	ctx := context.Background()

	kp, err := w.SpendingKeyPair(ctx, encKey)
	require.NoError(t, err)
	pub, err := primitives.NewPoseidon().SpendingPublicKey(kp.PrivateKey)
	require.NoError(t, err)
	require.Equal(t, w.SpendingPublicKey, pub)

	_, err = w.SpendingKeyPair(ctx, bytes.Repeat([]byte{1}, 32))
	require.ErrorIs(t, err, ErrWrongEncryptionKey)
}

func TestBalancesByTree(t *testing.T) {
	w := wallet(t)
	tok := token(t)
	add := func(tree int, pos uint64, v int64) {
		n, err := note.NewRandomNote(w.AddressKeys(), big.NewInt(v), tok)
		require.NoError(t, err)
		require.NoError(t, w.AddNote(tree, pos, n))
	}
	add(1, 5, 10)
	add(0, 9, 20)
	add(0, 2, 30)
	add(0, 2, 30) // duplicate leaf is ignored

	balances, err := w.BalancesByTree(context.Background(), tok)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	require.Equal(t, 0, balances[0].Tree)
	require.Equal(t, uint64(2), balances[0].UTXOs[0].Position)
	require.Equal(t, uint64(9), balances[0].UTXOs[1].Position)
	require.Equal(t, big.NewInt(60), w.Balance(context.Background(), tok))

	other, err := note.NewERC20("0x01")
	require.NoError(t, err)
	balances, err = w.BalancesByTree(context.Background(), other)
	require.NoError(t, err)
	require.Empty(t, balances)
}

func TestWalletSaveLoad(t *testing.T) {
	w := wallet(t)
	n, err := note.NewRandomNote(w.AddressKeys(), big.NewInt(7), token(t))
	require.NoError(t, err)
	require.NoError(t, w.AddNote(0, 0, n))

	path := filepath.Join(t.TempDir(), "alice_wallet.json")
	require.NoError(t, w.Save(path))
	loaded, err := LoadWallet(path)
	require.NoError(t, err)

	require.Equal(t, w.AddressKeys(), loaded.AddressKeys())
	require.Equal(t, w.NullifyingKey(), loaded.NullifyingKey())
	require.Equal(t, big.NewInt(7), loaded.Balance(context.Background(), token(t)))
	_, err = loaded.SpendingKeyPair(context.Background(), encKey)
	require.NoError(t, err)
}

func fakeTx(root *big.Int, nullifiers ...*big.Int) *txbuilder.SerializedTransaction {
	proof := prover.ZeroProof()
	proof.A[0] = big.NewInt(1)
	return txbuilder.Serialize(proof, &prover.PublicInputs{
		MerkleRoot:     root,
		Nullifiers:     nullifiers,
		CommitmentsOut: []*big.Int{big.NewInt(100)},
	}, &boundparams.BoundParams{CommitmentCiphertext: []boundparams.CommitmentCiphertext{zeroCiphertext()}},
		common.Address{}, note.EmptyWithdrawNote().Preimage())
}

func zeroCiphertext() boundparams.CommitmentCiphertext {
	var c boundparams.CommitmentCiphertext
	for i := range c.Ciphertext {
		c.Ciphertext[i] = new(big.Int)
	}
	for i := range c.EphemeralKeys {
		c.EphemeralKeys[i] = new(big.Int)
	}
	return c
}

func TestLedgerRejectsDoubleSpendAndUnknownRoot(t *testing.T) {
	h := primitives.NewPoseidon()
	l, err := NewLedger(h, 4)
	require.NoError(t, err)
	_, _, err = l.Shield(big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	root, err := l.Root(context.Background(), 0)
	require.NoError(t, err)

	_, _, err = l.AppendTx(fakeTx(root, big.NewInt(9)))
	require.NoError(t, err)
	require.True(t, l.HasNullifier(big.NewInt(9)))

	_, _, err = l.AppendTx(fakeTx(root, big.NewInt(9)))
	require.ErrorIs(t, err, ErrDoubleSpend)

	_, _, err = l.AppendTx(fakeTx(root, big.NewInt(10), big.NewInt(10)))
	require.ErrorIs(t, err, ErrDoubleSpend)

	_, _, err = l.AppendTx(fakeTx(big.NewInt(12345), big.NewInt(11)))
	require.ErrorIs(t, err, ErrUnknownRoot)

	dummy := fakeTx(root, big.NewInt(12))
	dummy.Proof = prover.FormatProof(prover.ZeroProof())
	_, _, err = l.AppendTx(dummy)
	require.ErrorIs(t, err, ErrDummyProof)
}

func TestLedgerSaveLoadReplays(t *testing.T) {
	h := primitives.NewPoseidon()
	l, err := NewLedger(h, 4)
	require.NoError(t, err)
	_, _, err = l.Shield(big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	root, _ := l.Root(context.Background(), 0)
	_, _, err = l.AppendTx(fakeTx(root, big.NewInt(9)))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, l.SaveToFile(path))
	loaded, err := LoadLedgerFromFile(path, h, 4)
	require.NoError(t, err)

	want, _ := l.Root(context.Background(), 0)
	got, _ := loaded.Root(context.Background(), 0)
	require.Equal(t, want, got)
	require.True(t, loaded.HasNullifier(big.NewInt(9)))
	require.Len(t, loaded.Tree().Leaves(0), 3)
}
