// encryption.go - AES-256-GCM encryption of note plaintext blocks.
//
// The ciphertext keeps the caller's block boundaries so each block can be published as its own uint256
// limb. The 16-byte IV and 16-byte tag together fill one more limb.

package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"shieldtx/internal/codec"
)

const (
	KeySize = 32
	IVSize  = 16
	TagSize = 16
)

var (
	// ErrDecryption is returned for any authentication failure; no plaintext is returned with it.
	ErrDecryption   = errors.New("decryption failed")
	ErrInvalidKey   = errors.New("invalid symmetric key length")
	ErrInvalidIV    = errors.New("invalid iv length")
	ErrInvalidBlock = errors.New("invalid ciphertext block")
)

// Ciphertext is an authenticated encryption of a list of blocks.
type Ciphertext struct {
	IV   []byte   `json:"iv"`
	Tag  []byte   `json:"tag"`
	Data [][]byte `json:"data"`
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, IVSize)
}

// Encrypt seals blocks under key with a random IV.
func Encrypt(key []byte, blocks [][]byte) (*Ciphertext, error) {
	iv, err := codec.Random(IVSize)
	if err != nil {
		return nil, err
	}
	return Seal(key, iv, blocks)
}

// Seal encrypts blocks under key with the given IV. An IV must never be reused with the same key.
func Seal(key, iv []byte, blocks [][]byte) (*Ciphertext, error) {
	if len(iv) != IVSize {
		return nil, ErrInvalidIV
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	var plaintext []byte
	for _, b := range blocks {
		plaintext = append(plaintext, b...)
	}
	sealed := aead.Seal(nil, iv, plaintext, nil)
	body, tag := sealed[:len(plaintext)], sealed[len(plaintext):]

	data := make([][]byte, len(blocks))
	offset := 0
	for i, b := range blocks {
		data[i] = append([]byte(nil), body[offset:offset+len(b)]...)
		offset += len(b)
	}
	return &Ciphertext{
		IV:   append([]byte(nil), iv...),
		Tag:  append([]byte(nil), tag...),
		Data: data,
	}, nil
}

// Decrypt is the inverse of Seal. Any tampering or a wrong key yields ErrDecryption.
func Decrypt(ct *Ciphertext, key []byte) ([][]byte, error) {
	if ct == nil || len(ct.IV) != IVSize || len(ct.Tag) != TagSize {
		return nil, ErrInvalidBlock
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	var sealed []byte
	for _, d := range ct.Data {
		sealed = append(sealed, d...)
	}
	sealed = append(sealed, ct.Tag...)

	plaintext, err := aead.Open(nil, ct.IV, sealed, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	blocks := make([][]byte, len(ct.Data))
	offset := 0
	for i, d := range ct.Data {
		blocks[i] = plaintext[offset : offset+len(d)]
		offset += len(d)
	}
	return blocks, nil
}
