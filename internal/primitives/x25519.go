package primitives

import (
	"crypto/sha512"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// X25519 implements Agreement. Private keys are ed25519 seeds: the scalar is the clamped lower half of
// SHA-512(seed), so a viewing key doubles as an ed25519 signing seed.
type X25519 struct{}

var errKeyLength = errors.New("x25519: key must be 32 bytes")

func (X25519) PrivateScalar(privateKey []byte) []byte {
	h := sha512.Sum512(privateKey)
	s := make([]byte, curve25519.ScalarSize)
	copy(s, h[:curve25519.ScalarSize])
	s[0] &= 248
	s[31] &= 127
	s[31] |= 64
	return s
}

func (x X25519) ViewingPublicKey(privateKey []byte) ([]byte, error) {
	if len(privateKey) != curve25519.ScalarSize {
		return nil, errKeyLength
	}
	return curve25519.X25519(x.PrivateScalar(privateKey), curve25519.Basepoint)
}

func (X25519) ScalarMult(scalar, point []byte) ([]byte, error) {
	if len(scalar) != curve25519.ScalarSize || len(point) != curve25519.PointSize {
		return nil, errKeyLength
	}
	out, err := curve25519.X25519(scalar, point)
	if err != nil {
		return nil, fmt.Errorf("x25519: %w", err)
	}
	return out, nil
}
