// proof.go - Groth16 proof shapes.
//
// Proof uses the snarkjs layout. FormattedProof is what the EVM verifier takes: the G2 point's coordinate
// pairs are (c1, c0) there, so b's pairs are swapped.

package prover

import (
	"errors"
	"math/big"
)

var (
	ErrInvalidInputs = errors.New("invalid prover inputs")
	ErrInvalidProof  = errors.New("invalid proof")
)

// Proof is a BN254 Groth16 proof.
type Proof struct {
	A [2]*big.Int    `json:"pi_a"`
	B [2][2]*big.Int `json:"pi_b"`
	C [2]*big.Int    `json:"pi_c"`
}

// ZeroProof has the shape of a real proof with every scalar zero. It lets callers estimate cost
// without proving; it never verifies.
func ZeroProof() *Proof {
	z := func() *big.Int { return new(big.Int) }
	return &Proof{
		A: [2]*big.Int{z(), z()},
		B: [2][2]*big.Int{{z(), z()}, {z(), z()}},
		C: [2]*big.Int{z(), z()},
	}
}

// IsZero reports whether p is the placeholder from ZeroProof.
func (p *Proof) IsZero() bool {
	for _, v := range []*big.Int{p.A[0], p.A[1], p.B[0][0], p.B[0][1], p.B[1][0], p.B[1][1], p.C[0], p.C[1]} {
		if v != nil && v.Sign() != 0 {
			return false
		}
	}
	return true
}

// G1Point is an affine G1 point.
type G1Point struct {
	X *big.Int `json:"x"`
	Y *big.Int `json:"y"`
}

// G2Point is an affine G2 point with coordinates in verifier order.
type G2Point struct {
	X [2]*big.Int `json:"x"`
	Y [2]*big.Int `json:"y"`
}

// FormattedProof is the proof as submitted on-chain.
type FormattedProof struct {
	A G1Point `json:"a"`
	B G2Point `json:"b"`
	C G1Point `json:"c"`
}

func clone(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(n)
}

// FormatProof converts p to verifier order.
func FormatProof(p *Proof) FormattedProof {
	return FormattedProof{
		A: G1Point{X: clone(p.A[0]), Y: clone(p.A[1])},
		B: G2Point{
			X: [2]*big.Int{clone(p.B[0][1]), clone(p.B[0][0])},
			Y: [2]*big.Int{clone(p.B[1][1]), clone(p.B[1][0])},
		},
		C: G1Point{X: clone(p.C[0]), Y: clone(p.C[1])},
	}
}

// UnformatProof is the inverse of FormatProof.
func UnformatProof(f FormattedProof) *Proof {
	return &Proof{
		A: [2]*big.Int{clone(f.A.X), clone(f.A.Y)},
		B: [2][2]*big.Int{
			{clone(f.B.X[1]), clone(f.B.X[0])},
			{clone(f.B.Y[1]), clone(f.B.Y[0])},
		},
		C: [2]*big.Int{clone(f.C.X), clone(f.C.Y)},
	}
}
