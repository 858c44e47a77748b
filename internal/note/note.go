// note.go - Shielded notes, commitments and nullifiers.
//
// A Note is a private output: the recipient's keys, 16 bytes of blinding randomness, a value and a token.
// Its commitment hash is what the merkle tree stores; spending it publishes a nullifier derived from the
// owner's nullifying key and the leaf position, which cannot be linked back to the commitment without the key.

package note

import (
	"errors"
	"fmt"
	"math/big"

	"shieldtx/internal/codec"
	"shieldtx/internal/primitives"
)

const (
	// RandomSize is the blinding width in bytes.
	RandomSize = 16
	// MaxValueBits bounds note values so value and randomness share one 32-byte ciphertext block.
	MaxValueBits = 128
)

var ErrInvalidNote = errors.New("invalid note")

// AddressKeys are the public keys a note is addressed to.
type AddressKeys struct {
	SpendingPublicKey primitives.Point `json:"spendingPublicKey"`
	ViewingPublicKey  []byte           `json:"viewingPublicKey"`
}

// Output is anything that can be committed as a transaction output.
type Output interface {
	NotePublicKey(h primitives.Hasher) (*big.Int, error)
	Commitment(h primitives.Hasher) (*big.Int, error)
	Amount() *big.Int
}

// Note is a shielded output. It is not mutated after construction.
type Note struct {
	Recipient AddressKeys `json:"recipient"`
	Random    []byte      `json:"random"`
	Value     *big.Int    `json:"value"`
	Token     TokenData   `json:"token"`
}

// NewNote validates and copies its inputs.
func NewNote(recipient AddressKeys, random []byte, value *big.Int, token TokenData) (*Note, error) {
	if len(random) != RandomSize {
		return nil, fmt.Errorf("%w: random must be %d bytes, got %d", ErrInvalidNote, RandomSize, len(random))
	}
	if value == nil || value.Sign() < 0 || value.BitLen() > MaxValueBits {
		return nil, fmt.Errorf("%w: value must be an unsigned %d-bit integer", ErrInvalidNote, MaxValueBits)
	}
	if recipient.SpendingPublicKey.X == nil || recipient.SpendingPublicKey.Y == nil {
		return nil, fmt.Errorf("%w: missing spending public key", ErrInvalidNote)
	}
	normalized, err := NewTokenData(token.TokenType, token.TokenAddress, token.TokenSubID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNote, err)
	}
	return &Note{
		Recipient: recipient,
		Random:    append([]byte(nil), random...),
		Value:     new(big.Int).Set(value),
		Token:     normalized,
	}, nil
}

// NewRandomNote is NewNote with fresh blinding randomness.
func NewRandomNote(recipient AddressKeys, value *big.Int, token TokenData) (*Note, error) {
	random, err := codec.Random(RandomSize)
	if err != nil {
		return nil, err
	}
	return NewNote(recipient, random, value, token)
}

func (n *Note) Amount() *big.Int { return n.Value }

// RandomInt is the blinding as a field element.
func (n *Note) RandomInt() *big.Int {
	return new(big.Int).SetBytes(n.Random)
}

// NotePublicKey binds the recipient's spending key to this note's randomness.
func (n *Note) NotePublicKey(h primitives.Hasher) (*big.Int, error) {
	return h.Hash(n.Recipient.SpendingPublicKey.X, n.Recipient.SpendingPublicKey.Y, n.RandomInt())
}

// Commitment is hash(notePublicKey, tokenHash, value).
func (n *Note) Commitment(h primitives.Hasher) (*big.Int, error) {
	npk, err := n.NotePublicKey(h)
	if err != nil {
		return nil, err
	}
	return commitment(h, npk, n.Token, n.Value)
}

func commitment(h primitives.Hasher, npk *big.Int, token TokenData, value *big.Int) (*big.Int, error) {
	tokenHash, err := token.Hash()
	if err != nil {
		return nil, err
	}
	return h.Hash(npk, tokenHash, value)
}

// Nullifier is hash(nullifyingKey, position).
func Nullifier(h primitives.Hasher, nullifyingKey *big.Int, position uint64) (*big.Int, error) {
	return h.Hash(nullifyingKey, new(big.Int).SetUint64(position))
}

// SignDigest signs a public-input digest with a spending private key.
func SignDigest(s primitives.Signer, digest *big.Int, spendingPrivateKey []byte) (*primitives.Signature, error) {
	if err := codec.CheckField(digest); err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	return s.Sign(spendingPrivateKey, digest)
}
