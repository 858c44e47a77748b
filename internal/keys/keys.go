// keys.go - Key material and Diffie-Hellman key agreement for note encryption.
//
// Spending keys sign the public-input digest. Viewing keys are X25519 keys: every shielded output gets a
// fresh ephemeral secret r, and the sender publishes r*S and r*R (S, R the sender and recipient viewing
// public keys). The recipient recovers the symmetric key from its private key and r*S, the sender from
// its private key and r*R, so neither side has to store r.

package keys

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"shieldtx/internal/codec"
	"shieldtx/internal/primitives"
)

// SpendingKeyPair signs transactions.
type SpendingKeyPair struct {
	PrivateKey []byte           `json:"privateKey"`
	PublicKey  primitives.Point `json:"pubkey"`
}

// ViewingKeyPair decrypts and encrypts note ciphertexts.
type ViewingKeyPair struct {
	PrivateKey []byte `json:"privateKey"`
	PublicKey  []byte `json:"pubkey"`
}

// NewSpendingKeyPair derives the public half of a spending key.
func NewSpendingKeyPair(s primitives.Signer, privateKey []byte) (*SpendingKeyPair, error) {
	pub, err := s.SpendingPublicKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("spending public key: %w", err)
	}
	return &SpendingKeyPair{PrivateKey: append([]byte(nil), privateKey...), PublicKey: pub}, nil
}

// NewViewingKeyPair derives the public half of a viewing key.
func NewViewingKeyPair(a primitives.Agreement, privateKey []byte) (*ViewingKeyPair, error) {
	pub, err := a.ViewingPublicKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("viewing public key: %w", err)
	}
	return &ViewingKeyPair{PrivateKey: append([]byte(nil), privateKey...), PublicKey: pub}, nil
}

// GenerateSpendingKeyPair draws a fresh spending key.
func GenerateSpendingKeyPair(s primitives.Signer) (*SpendingKeyPair, error) {
	priv, err := codec.Random(codec.Uint256)
	if err != nil {
		return nil, err
	}
	return NewSpendingKeyPair(s, priv)
}

// GenerateViewingKeyPair draws a fresh viewing key.
func GenerateViewingKeyPair(a primitives.Agreement) (*ViewingKeyPair, error) {
	priv, err := codec.Random(codec.Uint256)
	if err != nil {
		return nil, err
	}
	return NewViewingKeyPair(a, priv)
}

// RandomScalar hashes 32 random bytes into a field element. Used for nullifying keys.
func RandomScalar(h primitives.Hasher) (*big.Int, error) {
	b, err := codec.Random(codec.Uint256)
	if err != nil {
		return nil, err
	}
	return h.Hash(codec.ReduceToField(b))
}

// EphemeralKeys draws one ephemeral secret from rnd and returns (r*S, r*R): the first lets the recipient
// recover the shared key, the second lets the sender recover it. A nil rnd uses crypto/rand.
func EphemeralKeys(a primitives.Agreement, rnd io.Reader, senderViewingPub, recipientViewingPub []byte) (forRecipient, forSender []byte, err error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	secret := make([]byte, codec.Uint256)
	if _, err := io.ReadFull(rnd, secret); err != nil {
		return nil, nil, fmt.Errorf("ephemeral secret: %w", err)
	}
	r := a.PrivateScalar(secret)
	rS, err := a.ScalarMult(r, senderViewingPub)
	if err != nil {
		return nil, nil, fmt.Errorf("ephemeral key for sender pubkey: %w", err)
	}
	rR, err := a.ScalarMult(r, recipientViewingPub)
	if err != nil {
		return nil, nil, fmt.Errorf("ephemeral key for recipient pubkey: %w", err)
	}
	return rS, rR, nil
}

// SharedSymmetricKey is the Diffie-Hellman product of a private viewing key and a public point.
func SharedSymmetricKey(a primitives.Agreement, privateKey, publicKey []byte) ([]byte, error) {
	return a.ScalarMult(a.PrivateScalar(privateKey), publicKey)
}
