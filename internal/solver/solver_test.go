package solver

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"shieldtx/internal/note"
)

func utxo(tree int, pos uint64, value int64) UTXO {
	return UTXO{Tree: tree, Position: pos, Note: &note.Note{Value: big.NewInt(value)}}
}

func positions(sel []UTXO) []uint64 {
	out := make([]uint64, len(sel))
	for i, u := range sel {
		out[i] = u.Position
	}
	return out
}

func TestFindSolutionPrefersSmallestSufficient(t *testing.T) {
	utxos := []UTXO{utxo(0, 0, 50), utxo(0, 1, 200), utxo(0, 2, 120), utxo(0, 3, 120)}
	sel := FindSolution(utxos, big.NewInt(100), DefaultMaxInputs)
	require.Equal(t, []uint64{2}, positions(sel))
}

func TestFindSolutionGreedyLargestFirst(t *testing.T) {
	utxos := []UTXO{utxo(0, 0, 10), utxo(0, 1, 40), utxo(0, 2, 30), utxo(0, 3, 5)}
	sel := FindSolution(utxos, big.NewInt(65), DefaultMaxInputs)
	require.Equal(t, []uint64{1, 2}, positions(sel))
}

func TestFindSolutionRespectsInputLimit(t *testing.T) {
	utxos := []UTXO{utxo(0, 0, 10), utxo(0, 1, 10), utxo(0, 2, 10)}
	require.Nil(t, FindSolution(utxos, big.NewInt(30), 2))
	require.Len(t, FindSolution(utxos, big.NewInt(30), 3), 3)
}

func TestFindSolutionZeroAmountSpendsOne(t *testing.T) {
	utxos := []UTXO{utxo(0, 0, 10), utxo(0, 1, 3)}
	sel := FindSolution(utxos, new(big.Int), DefaultMaxInputs)
	require.Equal(t, []uint64{1}, positions(sel))
	require.Nil(t, FindSolution(nil, new(big.Int), DefaultMaxInputs))
}

func TestSelectUTXOsFirstTreeWins(t *testing.T) {
	trees := []TreeBalance{
		{Tree: 2, UTXOs: []UTXO{utxo(2, 0, 500)}},
		{Tree: 0, UTXOs: []UTXO{utxo(0, 0, 20)}},
		{Tree: 1, UTXOs: []UTXO{utxo(1, 4, 100)}},
	}
	tree, sel, err := SelectUTXOs(trees, big.NewInt(90), DefaultMaxInputs)
	require.NoError(t, err)
	require.Equal(t, 1, tree)
	require.Equal(t, []uint64{4}, positions(sel))
}

func TestSelectUTXOsShortfall(t *testing.T) {
	trees := []TreeBalance{{Tree: 0, UTXOs: []UTXO{utxo(0, 0, 20)}}}
	_, _, err := SelectUTXOs(trees, big.NewInt(21), DefaultMaxInputs)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	var ibe *InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	require.Equal(t, Shortfall, ibe.Reason)
	require.Equal(t, big.NewInt(20), ibe.Available)

	_, _, err = SelectUTXOs(nil, new(big.Int), DefaultMaxInputs)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestSelectUTXOsFragmented(t *testing.T) {
	trees := []TreeBalance{
		{Tree: 0, UTXOs: []UTXO{utxo(0, 0, 60)}},
		{Tree: 1, UTXOs: []UTXO{utxo(1, 0, 60)}},
	}
	_, _, err := SelectUTXOs(trees, big.NewInt(100), DefaultMaxInputs)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	var ibe *InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	require.Equal(t, Fragmented, ibe.Reason)
	require.Contains(t, err.Error(), "consolidation")
}

func TestSelectUTXOsInputLimit(t *testing.T) {
	var utxos []UTXO
	for i := 0; i < 11; i++ {
		utxos = append(utxos, utxo(0, uint64(i), 1))
	}
	trees := []TreeBalance{{Tree: 0, UTXOs: utxos}}

	_, _, err := SelectUTXOs(trees, big.NewInt(11), DefaultMaxInputs)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	var ibe *InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	require.Equal(t, InputLimit, ibe.Reason)
	require.Equal(t, DefaultMaxInputs, ibe.MaxInputs)
	require.Contains(t, err.Error(), "at most 10 inputs")
	require.NotContains(t, err.Error(), "single tree")

	// The exact sum is found once the limit allows every note.
	tree, sel, err := SelectUTXOs(trees, big.NewInt(11), 11)
	require.NoError(t, err)
	require.Equal(t, 0, tree)
	require.Len(t, sel, 11)
	require.Equal(t, big.NewInt(11), Sum(sel))
}
