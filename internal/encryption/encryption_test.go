package encryption

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func blocks() [][]byte {
	return [][]byte{
		bytes.Repeat([]byte{0xaa}, 32),
		bytes.Repeat([]byte{0xbb}, 32),
		bytes.Repeat([]byte{0xcc}, 32),
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)
	ct, err := Encrypt(key, blocks())
	require.NoError(t, err)
	require.Len(t, ct.IV, IVSize)
	require.Len(t, ct.Tag, TagSize)
	require.Len(t, ct.Data, 3)
	for i, d := range ct.Data {
		require.Len(t, d, 32)
		require.NotEqual(t, blocks()[i], d)
	}

	pt, err := Decrypt(ct, key)
	require.NoError(t, err)
	require.Equal(t, blocks(), pt)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	ct, err := Encrypt(bytes.Repeat([]byte{1}, KeySize), blocks())
	require.NoError(t, err)

	pt, err := Decrypt(ct, bytes.Repeat([]byte{2}, KeySize))
	require.ErrorIs(t, err, ErrDecryption)
	require.Nil(t, pt)
}

func TestDecryptDetectsTampering(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)
	ct, err := Encrypt(key, blocks())
	require.NoError(t, err)

	ct.Data[1][0] ^= 1
	_, err = Decrypt(ct, key)
	require.ErrorIs(t, err, ErrDecryption)

	ct.Data[1][0] ^= 1
	ct.Tag[0] ^= 1
	_, err = Decrypt(ct, key)
	require.ErrorIs(t, err, ErrDecryption)
}

func TestSealIsDeterministicForFixedIV(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)
	iv := bytes.Repeat([]byte{3}, IVSize)
	a, err := Seal(key, iv, blocks())
	require.NoError(t, err)
	b, err := Seal(key, iv, blocks())
	require.NoError(t, err)
	require.Equal(t, a, b)

	_, err = Seal(key, iv[:12], blocks())
	require.ErrorIs(t, err, ErrInvalidIV)
	_, err = Seal(key[:16], iv, blocks())
	require.ErrorIs(t, err, ErrInvalidKey)
}
