package note

import (
	"bytes"
	"fmt"
	"math/big"

	"shieldtx/internal/codec"
	"shieldtx/internal/encryption"
	"shieldtx/internal/primitives"
)

// CiphertextWords is the number of uint256 limbs in a published note ciphertext: iv||tag plus three data blocks.
const CiphertextWords = 4

// Plaintext is what a recipient learns from decrypting a note ciphertext.
type Plaintext struct {
	NPK       *big.Int
	TokenHash *big.Int
	Random    []byte
	Value     *big.Int
}

// Plaintext builds the encryptable fields of n.
func (n *Note) Plaintext(h primitives.Hasher) (*Plaintext, error) {
	npk, err := n.NotePublicKey(h)
	if err != nil {
		return nil, err
	}
	tokenHash, err := n.Token.Hash()
	if err != nil {
		return nil, err
	}
	return &Plaintext{NPK: npk, TokenHash: tokenHash, Random: n.Random, Value: n.Value}, nil
}

// Blocks lays the plaintext out as [npk, tokenHash, random||value], 32 bytes each.
func (p *Plaintext) Blocks() ([][]byte, error) {
	npk, err := codec.NToBytes(p.NPK, codec.Uint256)
	if err != nil {
		return nil, err
	}
	token, err := codec.NToBytes(p.TokenHash, codec.Uint256)
	if err != nil {
		return nil, err
	}
	value, err := codec.NToBytes(p.Value, codec.Uint128)
	if err != nil {
		return nil, err
	}
	if len(p.Random) != RandomSize {
		return nil, fmt.Errorf("%w: random must be %d bytes", ErrInvalidNote, RandomSize)
	}
	last := append(append([]byte(nil), p.Random...), value...)
	return [][]byte{npk, token, last}, nil
}

func plaintextFromBlocks(blocks [][]byte) (*Plaintext, error) {
	if len(blocks) != CiphertextWords-1 {
		return nil, fmt.Errorf("%w: expected %d blocks, got %d", encryption.ErrInvalidBlock, CiphertextWords-1, len(blocks))
	}
	for _, b := range blocks {
		if len(b) != int(codec.Uint256) {
			return nil, encryption.ErrInvalidBlock
		}
	}
	return &Plaintext{
		NPK:       new(big.Int).SetBytes(blocks[0]),
		TokenHash: new(big.Int).SetBytes(blocks[1]),
		Random:    append([]byte(nil), blocks[2][:RandomSize]...),
		Value:     new(big.Int).SetBytes(blocks[2][RandomSize:]),
	}, nil
}

// Encrypt seals the note under a shared key. A nil iv draws a random one.
func (n *Note) Encrypt(h primitives.Hasher, sharedKey, iv []byte) (*encryption.Ciphertext, error) {
	pt, err := n.Plaintext(h)
	if err != nil {
		return nil, err
	}
	blocks, err := pt.Blocks()
	if err != nil {
		return nil, err
	}
	if iv == nil {
		return encryption.Encrypt(sharedKey, blocks)
	}
	return encryption.Seal(sharedKey, iv, blocks)
}

// Decrypt opens a note ciphertext. A wrong key fails with encryption.ErrDecryption.
func Decrypt(ct *encryption.Ciphertext, sharedKey []byte) (*Plaintext, error) {
	blocks, err := encryption.Decrypt(ct, sharedKey)
	if err != nil {
		return nil, err
	}
	return plaintextFromBlocks(blocks)
}

// Open rebuilds the note for its recipient, checking that the decrypted fields really commit to
// the recipient's keys and the expected token.
func (p *Plaintext) Open(h primitives.Hasher, recipient AddressKeys, token TokenData) (*Note, error) {
	n, err := NewNote(recipient, p.Random, p.Value, token)
	if err != nil {
		return nil, err
	}
	npk, err := n.NotePublicKey(h)
	if err != nil {
		return nil, err
	}
	if npk.Cmp(p.NPK) != 0 {
		return nil, fmt.Errorf("%w: note public key does not match recipient keys", ErrInvalidNote)
	}
	tokenHash, err := token.Hash()
	if err != nil {
		return nil, err
	}
	if tokenHash.Cmp(p.TokenHash) != 0 {
		return nil, fmt.Errorf("%w: token hash mismatch", ErrInvalidNote)
	}
	return n, nil
}

// PackCiphertext flattens a note ciphertext into uint256 limbs [iv||tag, d0, d1, d2].
func PackCiphertext(ct *encryption.Ciphertext) ([CiphertextWords]*big.Int, error) {
	var words [CiphertextWords]*big.Int
	if ct == nil || len(ct.IV) != encryption.IVSize || len(ct.Tag) != encryption.TagSize || len(ct.Data) != CiphertextWords-1 {
		return words, encryption.ErrInvalidBlock
	}
	words[0] = new(big.Int).SetBytes(append(append([]byte(nil), ct.IV...), ct.Tag...))
	for i, d := range ct.Data {
		if len(d) != int(codec.Uint256) {
			return words, encryption.ErrInvalidBlock
		}
		words[i+1] = new(big.Int).SetBytes(d)
	}
	return words, nil
}

// UnpackCiphertext is the inverse of PackCiphertext.
func UnpackCiphertext(words [CiphertextWords]*big.Int) (*encryption.Ciphertext, error) {
	limbs := make([][]byte, CiphertextWords)
	for i, w := range words {
		b, err := codec.NToBytes(w, codec.Uint256)
		if err != nil {
			return nil, err
		}
		limbs[i] = b
	}
	return &encryption.Ciphertext{
		IV:   limbs[0][:encryption.IVSize],
		Tag:  limbs[0][encryption.IVSize:],
		Data: limbs[1:],
	}, nil
}

// Equal reports whether two plaintexts carry the same fields.
func (p *Plaintext) Equal(o *Plaintext) bool {
	return p.NPK.Cmp(o.NPK) == 0 && p.TokenHash.Cmp(o.TokenHash) == 0 &&
		p.Value.Cmp(o.Value) == 0 && bytes.Equal(p.Random, o.Random)
}
