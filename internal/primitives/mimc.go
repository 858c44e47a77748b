package primitives

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"

	"shieldtx/internal/codec"
)

// MiMC is the gnark-native suite. Its hashes and signatures are what gnark's std/hash/mimc and
// std/signature/eddsa gadgets recompute in-circuit.
type MiMC struct {
	X25519
}

func NewMiMC() *MiMC { return &MiMC{} }

func (*MiMC) Name() string { return SuiteMiMC }

func (*MiMC) Hash(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) == 0 {
		return nil, errors.New("mimc: no inputs")
	}
	h := mimc.NewMiMC()
	for _, in := range inputs {
		b, err := codec.FieldBytes(in)
		if err != nil {
			return nil, fmt.Errorf("mimc: %w", err)
		}
		if _, err := h.Write(b); err != nil {
			return nil, fmt.Errorf("mimc: %w", err)
		}
	}
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}

func eddsaKey(privateKey []byte) (*eddsa.PrivateKey, error) {
	if len(privateKey) != 32 {
		return nil, errors.New("eddsa: private key must be 32 bytes")
	}
	// GenerateKey expands the 32-byte seed deterministically.
	return eddsa.GenerateKey(bytes.NewReader(privateKey))
}

func (*MiMC) SpendingPublicKey(privateKey []byte) (Point, error) {
	k, err := eddsaKey(privateKey)
	if err != nil {
		return Point{}, err
	}
	return Point{
		X: k.PublicKey.A.X.BigInt(new(big.Int)),
		Y: k.PublicKey.A.Y.BigInt(new(big.Int)),
	}, nil
}

func (*MiMC) Sign(privateKey []byte, msg *big.Int) (*Signature, error) {
	k, err := eddsaKey(privateKey)
	if err != nil {
		return nil, err
	}
	m, err := codec.FieldBytes(msg)
	if err != nil {
		return nil, fmt.Errorf("eddsa sign: %w", err)
	}
	raw, err := k.Sign(m, mimc.NewMiMC())
	if err != nil {
		return nil, fmt.Errorf("eddsa sign: %w", err)
	}
	var sig eddsa.Signature
	if _, err := sig.SetBytes(raw); err != nil {
		return nil, fmt.Errorf("eddsa sign: %w", err)
	}
	return &Signature{
		R8: Point{X: sig.R.X.BigInt(new(big.Int)), Y: sig.R.Y.BigInt(new(big.Int))},
		S:  new(big.Int).SetBytes(sig.S[:]),
	}, nil
}

func (*MiMC) Verify(msg *big.Int, sig *Signature, publicKey Point) bool {
	if sig == nil || sig.S == nil || sig.R8.X == nil || sig.R8.Y == nil || publicKey.X == nil || publicKey.Y == nil {
		return false
	}
	if sig.S.Sign() < 0 || sig.S.BitLen() > fr.Bytes*8 {
		return false
	}
	m, err := codec.FieldBytes(msg)
	if err != nil {
		return false
	}
	var pub eddsa.PublicKey
	pub.A.X.SetBigInt(publicKey.X)
	pub.A.Y.SetBigInt(publicKey.Y)

	var s eddsa.Signature
	s.R.X.SetBigInt(sig.R8.X)
	s.R.Y.SetBigInt(sig.R8.Y)
	sig.S.FillBytes(s.S[:])

	ok, err := pub.Verify(s.Bytes(), m, mimc.NewMiMC())
	return err == nil && ok
}
