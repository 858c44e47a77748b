// codec.go - Fixed-width byte, hex and field-element conversions.
//
// Every value that ends up in a hash (token ids, addresses, randomness, ciphertext limbs) passes through
// these helpers so that its byte pattern is identical on every call and for every independent verifier.

package codec

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ByteLength is a declared width in bytes.
type ByteLength int

const (
	Uint8   ByteLength = 1
	Uint16  ByteLength = 2
	Uint128 ByteLength = 16
	Address ByteLength = 20
	Uint256 ByteLength = 32
)

// HashZero is the 32-byte zero hash, 0x-prefixed.
var HashZero = "0x" + strings.Repeat("00", int(Uint256))

// ZeroAddress is the 20-byte zero address, 0x-prefixed.
var ZeroAddress = "0x" + strings.Repeat("00", int(Address))

// ErrEncoding is matched by every EncodingError.
var ErrEncoding = errors.New("encoding error")

// EncodingError reports malformed or oversized input.
type EncodingError struct {
	Op     string
	Input  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: %s %q: %s", e.Op, e.Input, e.Reason)
}

func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

// SNARKPrime returns the BN254 scalar field modulus.
func SNARKPrime() *big.Int {
	return fr.Modulus()
}

// Strip0x removes a leading 0x/0X.
func Strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// Hexlify encodes b as lowercase hex, optionally 0x-prefixed.
func Hexlify(b []byte, prefix bool) string {
	s := hex.EncodeToString(b)
	if prefix {
		return "0x" + s
	}
	return s
}

// Arrayify decodes a hex string (with or without 0x). An odd number of digits is left-padded with one zero.
func Arrayify(s string) ([]byte, error) {
	raw := Strip0x(s)
	if len(raw)%2 == 1 {
		raw = "0" + raw
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, &EncodingError{Op: "arrayify", Input: s, Reason: "malformed hex"}
	}
	return b, nil
}

// FormatToByteLength left-pads hex data with zeros to exactly length bytes.
// Data longer than length is rejected rather than truncated.
func FormatToByteLength(s string, length ByteLength, prefix bool) (string, error) {
	b, err := Arrayify(s)
	if err != nil {
		return "", err
	}
	padded, err := PadBytes(b, length)
	if err != nil {
		return "", &EncodingError{Op: "format", Input: s, Reason: err.Error()}
	}
	return Hexlify(padded, prefix), nil
}

// PadBytes left-pads b with zeros to length bytes.
func PadBytes(b []byte, length ByteLength) ([]byte, error) {
	if len(b) > int(length) {
		return nil, &EncodingError{Op: "pad", Input: Hexlify(b, true), Reason: fmt.Sprintf("%d bytes exceeds width %d", len(b), length)}
	}
	out := make([]byte, length)
	copy(out[int(length)-len(b):], b)
	return out, nil
}

// Trim keeps the rightmost length bytes of hex data.
func Trim(s string, length ByteLength) (string, error) {
	b, err := Arrayify(s)
	if err != nil {
		return "", err
	}
	if len(b) > int(length) {
		b = b[len(b)-int(length):]
	}
	return Hexlify(b, false), nil
}

// HexToBigInt parses hex data as an unsigned big-endian integer. The empty string is zero.
func HexToBigInt(s string) (*big.Int, error) {
	b, err := Arrayify(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// NToBytes encodes n big-endian in exactly length bytes.
func NToBytes(n *big.Int, length ByteLength) ([]byte, error) {
	if n == nil || n.Sign() < 0 {
		return nil, &EncodingError{Op: "ntobytes", Input: fmt.Sprint(n), Reason: "negative or nil integer"}
	}
	if n.BitLen() > int(length)*8 {
		return nil, &EncodingError{Op: "ntobytes", Input: n.String(), Reason: fmt.Sprintf("does not fit in %d bytes", length)}
	}
	out := make([]byte, length)
	n.FillBytes(out)
	return out, nil
}

// NToHex encodes n as hex of exactly length bytes.
func NToHex(n *big.Int, length ByteLength, prefix bool) (string, error) {
	b, err := NToBytes(n, length)
	if err != nil {
		return "", err
	}
	return Hexlify(b, prefix), nil
}

// ToField interprets b as a big-endian integer that must already be a canonical field element.
func ToField(b []byte) (*big.Int, error) {
	if len(b) > int(Uint256) {
		return nil, &EncodingError{Op: "field", Input: Hexlify(b, true), Reason: "longer than 32 bytes"}
	}
	n := new(big.Int).SetBytes(b)
	if n.Cmp(fr.Modulus()) >= 0 {
		return nil, &EncodingError{Op: "field", Input: Hexlify(b, true), Reason: "not below the field modulus"}
	}
	return n, nil
}

// ReduceToField interprets b as a big-endian integer reduced modulo the field prime.
func ReduceToField(b []byte) *big.Int {
	n := new(big.Int).SetBytes(b)
	return n.Mod(n, fr.Modulus())
}

// CheckField fails unless 0 <= n < p.
func CheckField(n *big.Int) error {
	if n == nil || n.Sign() < 0 || n.Cmp(fr.Modulus()) >= 0 {
		return &EncodingError{Op: "field", Input: fmt.Sprint(n), Reason: "outside the scalar field"}
	}
	return nil
}

// FieldBytes returns the canonical 32-byte encoding of a field element.
func FieldBytes(n *big.Int) ([]byte, error) {
	if err := CheckField(n); err != nil {
		return nil, err
	}
	var e fr.Element
	e.SetBigInt(n)
	b := e.Bytes()
	return b[:], nil
}

// Random returns length bytes from crypto/rand.
func Random(length ByteLength) ([]byte, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read randomness: %w", err)
	}
	return b, nil
}
