// primitives.go - Capability interfaces for the curve and hash primitives used by the protocol.
//
// The transaction builder only sees these interfaces. Two suites are provided:
//   - Poseidon: circomlib-compatible Poseidon hashing and BabyJubJub EdDSA (iden3)
//   - MiMC: gnark-crypto MiMC hashing and BN254 twisted-Edwards EdDSA, matching gnark's std circuits
//
// Both suites use X25519 for viewing-key agreement.

package primitives

import (
	"fmt"
	"math/big"
)

// Point is an affine point on the embedded twisted-Edwards curve.
type Point struct {
	X *big.Int `json:"x"`
	Y *big.Int `json:"y"`
}

// Signature is an EdDSA signature as consumed by the circuit: R8 point and scalar S.
type Signature struct {
	R8 Point    `json:"r8"`
	S  *big.Int `json:"s"`
}

// Hasher hashes field elements to a field element.
type Hasher interface {
	Hash(inputs ...*big.Int) (*big.Int, error)
}

// Signer derives spending public keys and signs field elements.
type Signer interface {
	SpendingPublicKey(privateKey []byte) (Point, error)
	Sign(privateKey []byte, msg *big.Int) (*Signature, error)
	Verify(msg *big.Int, sig *Signature, publicKey Point) bool
}

// Agreement is Diffie-Hellman over the viewing-key curve.
type Agreement interface {
	// PrivateScalar expands a 32-byte private key into the scalar used for multiplication.
	PrivateScalar(privateKey []byte) []byte
	ViewingPublicKey(privateKey []byte) ([]byte, error)
	ScalarMult(scalar, point []byte) ([]byte, error)
}

// Suite bundles every primitive the builder needs.
type Suite interface {
	Name() string
	Hasher
	Signer
	Agreement
}

const (
	SuitePoseidon = "poseidon"
	SuiteMiMC     = "mimc"
)

// ByName returns the suite registered under name.
func ByName(name string) (Suite, error) {
	switch name {
	case SuitePoseidon, "":
		return NewPoseidon(), nil
	case SuiteMiMC:
		return NewMiMC(), nil
	default:
		return nil, fmt.Errorf("unknown primitive suite %q", name)
	}
}
