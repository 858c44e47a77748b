package prover

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"shieldtx/internal/primitives"
)

func TestZeroProofShape(t *testing.T) {
	z := ZeroProof()
	require.True(t, z.IsZero())
	f := FormatProof(z)
	require.Zero(t, f.A.X.Sign())
	require.Zero(t, f.B.Y[1].Sign())

	z.C[1] = big.NewInt(1)
	require.False(t, z.IsZero())
}

func TestFormatProofSwapsG2Pairs(t *testing.T) {
	p := &Proof{
		A: [2]*big.Int{big.NewInt(1), big.NewInt(2)},
		B: [2][2]*big.Int{{big.NewInt(3), big.NewInt(4)}, {big.NewInt(5), big.NewInt(6)}},
		C: [2]*big.Int{big.NewInt(7), big.NewInt(8)},
	}
	f := FormatProof(p)
	require.Equal(t, big.NewInt(1), f.A.X)
	require.Equal(t, big.NewInt(2), f.A.Y)
	require.Equal(t, [2]*big.Int{big.NewInt(4), big.NewInt(3)}, f.B.X)
	require.Equal(t, [2]*big.Int{big.NewInt(6), big.NewInt(5)}, f.B.Y)
	require.Equal(t, big.NewInt(7), f.C.X)
}

func TestDigestCoversEveryPublicInput(t *testing.T) {
	h := primitives.NewPoseidon()
	pub := &PublicInputs{
		MerkleRoot:      big.NewInt(1),
		BoundParamsHash: big.NewInt(2),
		Nullifiers:      []*big.Int{big.NewInt(3)},
		CommitmentsOut:  []*big.Int{big.NewInt(4), big.NewInt(5)},
	}
	a, err := pub.Digest(h)
	require.NoError(t, err)
	pub.CommitmentsOut[1] = big.NewInt(6)
	b, err := pub.Digest(h)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

// fixture builds a valid one-in, two-out witness over a depth-2 tree with the leaf at index 1.
func fixture(t *testing.T) (*PublicInputs, *PrivateInputs) {
	t.Helper()
	s := primitives.NewMiMC()
	hash := func(in ...*big.Int) *big.Int {
		out, err := s.Hash(in...)
		require.NoError(t, err)
		return out
	}

	priv := bytes.Repeat([]byte{4}, 32)
	pk, err := s.SpendingPublicKey(priv)
	require.NoError(t, err)

	token := big.NewInt(0xabcdef)
	randomIn := big.NewInt(77)
	npkIn := hash(pk.X, pk.Y, randomIn)
	leaf := hash(npkIn, token, big.NewInt(100))

	sibling0, sibling1 := big.NewInt(11), big.NewInt(12)
	level1 := hash(sibling0, leaf) // index 1: leaf is the right child
	root := hash(level1, sibling1)

	nk := big.NewInt(999)
	index := big.NewInt(1)
	npkOut := []*big.Int{big.NewInt(21), big.NewInt(22)}
	valueOut := []*big.Int{big.NewInt(40), big.NewInt(60)}

	pub := &PublicInputs{
		MerkleRoot:      root,
		BoundParamsHash: big.NewInt(5),
		Nullifiers:      []*big.Int{hash(nk, index)},
		CommitmentsOut: []*big.Int{
			hash(npkOut[0], token, valueOut[0]),
			hash(npkOut[1], token, valueOut[1]),
		},
	}
	digest, err := pub.Digest(s)
	require.NoError(t, err)
	sig, err := s.Sign(priv, digest)
	require.NoError(t, err)

	return pub, &PrivateInputs{
		Token:         token,
		RandomIn:      []*big.Int{randomIn},
		ValueIn:       []*big.Int{big.NewInt(100)},
		PathElements:  [][]*big.Int{{sibling0, sibling1}},
		LeavesIndices: []*big.Int{index},
		ValueOut:      valueOut,
		PublicKey:     [2]*big.Int{pk.X, pk.Y},
		NPKOut:        npkOut,
		NullifyingKey: nk,
		Signature:     [3]*big.Int{sig.R8.X, sig.R8.Y, sig.S},
	}
}

func TestJoinSplitCircuitIsSolved(t *testing.T) {
	pub, priv := fixture(t)
	err := test.IsSolved(NewJoinSplitCircuit(1, 2, 2), assign(pub, priv, 1, 2, 2), ecc.BN254.ScalarField())
	require.NoError(t, err)
}

func TestJoinSplitCircuitRejectsInflation(t *testing.T) {
	pub, priv := fixture(t)
	priv.ValueOut[1] = big.NewInt(61)
	err := test.IsSolved(NewJoinSplitCircuit(1, 2, 2), assign(pub, priv, 1, 2, 2), ecc.BN254.ScalarField())
	require.Error(t, err)
}

func TestJoinSplitCircuitRejectsWrongNullifier(t *testing.T) {
	pub, priv := fixture(t)
	pub.Nullifiers[0] = big.NewInt(1)
	err := test.IsSolved(NewJoinSplitCircuit(1, 2, 2), assign(pub, priv, 1, 2, 2), ecc.BN254.ScalarField())
	require.Error(t, err)
}

func TestGroth16ProveVerify(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	pub, priv := fixture(t)
	g := NewGroth16(t.TempDir(), zerolog.Nop())

	proof, err := g.Prove(context.Background(), pub, priv)
	require.NoError(t, err)
	require.False(t, proof.IsZero())
	require.NoError(t, g.Verify(pub, 2, proof))

	require.ErrorIs(t, g.Verify(pub, 2, ZeroProof()), ErrInvalidProof)

	tampered := *pub
	tampered.BoundParamsHash = big.NewInt(6)
	require.ErrorIs(t, g.Verify(&tampered, 2, proof), ErrInvalidProof)
}

func TestProveRejectsMismatchedShapes(t *testing.T) {
	pub, priv := fixture(t)
	priv.NPKOut = priv.NPKOut[:1]
	_, err := NewGroth16("", zerolog.Nop()).Prove(context.Background(), pub, priv)
	require.ErrorIs(t, err, ErrInvalidInputs)
}
