// inputs.go - Prover input vectors and the prover contract.

package prover

import (
	"context"
	"fmt"
	"math/big"

	"shieldtx/internal/primitives"
)

// PublicInputs are checked by the on-chain verifier.
type PublicInputs struct {
	MerkleRoot      *big.Int   `json:"merkleRoot"`
	BoundParamsHash *big.Int   `json:"boundParamsHash"`
	Nullifiers      []*big.Int `json:"nullifiers"`
	CommitmentsOut  []*big.Int `json:"commitmentsOut"`
}

// Digest is hash(merkleRoot, boundParamsHash, nullifiers..., commitmentsOut...), the message the
// spending key signs.
func (p *PublicInputs) Digest(h primitives.Hasher) (*big.Int, error) {
	fields := make([]*big.Int, 0, 2+len(p.Nullifiers)+len(p.CommitmentsOut))
	fields = append(fields, p.MerkleRoot, p.BoundParamsHash)
	fields = append(fields, p.Nullifiers...)
	fields = append(fields, p.CommitmentsOut...)
	d, err := h.Hash(fields...)
	if err != nil {
		return nil, fmt.Errorf("public input digest: %w", err)
	}
	return d, nil
}

func cloneInts(ns []*big.Int) []*big.Int {
	if ns == nil {
		return nil
	}
	out := make([]*big.Int, len(ns))
	for i, n := range ns {
		out[i] = clone(n)
	}
	return out
}

// Clone returns a deep copy of p.
func (p *PublicInputs) Clone() *PublicInputs {
	if p == nil {
		return nil
	}
	return &PublicInputs{
		MerkleRoot:      clone(p.MerkleRoot),
		BoundParamsHash: clone(p.BoundParamsHash),
		Nullifiers:      cloneInts(p.Nullifiers),
		CommitmentsOut:  cloneInts(p.CommitmentsOut),
	}
}

// PrivateInputs is the witness. Per-input slices are indexed like PublicInputs.Nullifiers, per-output
// slices like PublicInputs.CommitmentsOut.
type PrivateInputs struct {
	Token         *big.Int     `json:"token"`
	RandomIn      []*big.Int   `json:"randomIn"`
	ValueIn       []*big.Int   `json:"valueIn"`
	PathElements  [][]*big.Int `json:"pathElements"`
	LeavesIndices []*big.Int   `json:"leavesIndices"`
	ValueOut      []*big.Int   `json:"valueOut"`
	PublicKey     [2]*big.Int  `json:"publicKey"`
	NPKOut        []*big.Int   `json:"npkOut"`
	NullifyingKey *big.Int     `json:"nullifyingKey"`
	// Signature is [R8.x, R8.y, S].
	Signature [3]*big.Int `json:"signature"`
}

// Clone returns a deep copy of p.
func (p *PrivateInputs) Clone() *PrivateInputs {
	if p == nil {
		return nil
	}
	out := &PrivateInputs{
		Token:         clone(p.Token),
		RandomIn:      cloneInts(p.RandomIn),
		ValueIn:       cloneInts(p.ValueIn),
		LeavesIndices: cloneInts(p.LeavesIndices),
		ValueOut:      cloneInts(p.ValueOut),
		NPKOut:        cloneInts(p.NPKOut),
		NullifyingKey: clone(p.NullifyingKey),
	}
	if p.PathElements != nil {
		out.PathElements = make([][]*big.Int, len(p.PathElements))
		for i, path := range p.PathElements {
			out.PathElements[i] = cloneInts(path)
		}
	}
	for i, n := range p.PublicKey {
		out.PublicKey[i] = clone(n)
	}
	for i, n := range p.Signature {
		out.Signature[i] = clone(n)
	}
	return out
}

// Shape returns the input and output counts and the merkle depth.
func (p *PrivateInputs) Shape() (nIn, nOut, depth int) {
	nIn, nOut = len(p.ValueIn), len(p.ValueOut)
	if len(p.PathElements) > 0 {
		depth = len(p.PathElements[0])
	}
	return nIn, nOut, depth
}

func (p *PrivateInputs) validate(pub *PublicInputs) error {
	nIn, nOut, depth := p.Shape()
	switch {
	case nIn == 0 || nOut == 0:
		return fmt.Errorf("%w: empty inputs or outputs", ErrInvalidInputs)
	case len(p.RandomIn) != nIn || len(p.PathElements) != nIn || len(p.LeavesIndices) != nIn:
		return fmt.Errorf("%w: per-input vectors disagree on length", ErrInvalidInputs)
	case len(p.NPKOut) != nOut:
		return fmt.Errorf("%w: per-output vectors disagree on length", ErrInvalidInputs)
	case len(pub.Nullifiers) != nIn || len(pub.CommitmentsOut) != nOut:
		return fmt.Errorf("%w: public vectors disagree with witness shape", ErrInvalidInputs)
	}
	for _, path := range p.PathElements {
		if len(path) != depth {
			return fmt.Errorf("%w: merkle paths of different depth", ErrInvalidInputs)
		}
	}
	return nil
}

// Prover turns assembled inputs into a proof.
type Prover interface {
	Prove(ctx context.Context, pub *PublicInputs, priv *PrivateInputs) (*Proof, error)
}
