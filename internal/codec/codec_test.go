package codec

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatToByteLengthPadsAddressToFieldWidth(t *testing.T) {
	out, err := FormatToByteLength("0xABCDEF0123456789abcdef0123456789ABCDEF01", Uint256, true)
	require.NoError(t, err)
	require.Equal(t, "0x000000000000000000000000abcdef0123456789abcdef0123456789abcdef01", out)

	noPrefix, err := FormatToByteLength("abcdef0123456789abcdef0123456789abcdef01", Uint256, false)
	require.NoError(t, err)
	require.Equal(t, out[2:], noPrefix)
}

func TestFormatToByteLengthRejectsOversized(t *testing.T) {
	_, err := FormatToByteLength("0x"+"11"+HashZero[2:], Uint256, true)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrEncoding))

	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
}

func TestArrayifyRejectsMalformedHex(t *testing.T) {
	_, err := Arrayify("0xzz")
	require.ErrorIs(t, err, ErrEncoding)

	b, err := Arrayify("0xabc")
	require.NoError(t, err)
	require.Equal(t, []byte{0x0a, 0xbc}, b)
}

func TestZeroRoundTripsToSameBytes(t *testing.T) {
	for i := 0; i < 3; i++ {
		h, err := NToHex(big.NewInt(0), Uint256, true)
		require.NoError(t, err)
		require.Equal(t, HashZero, h)

		n, err := HexToBigInt(h)
		require.NoError(t, err)
		require.Zero(t, n.Sign())
	}
	a, err := FormatToByteLength(ZeroAddress, Uint256, true)
	require.NoError(t, err)
	require.Equal(t, HashZero, a)
}

func TestNToBytesWidth(t *testing.T) {
	b, err := NToBytes(big.NewInt(0x0102), Uint16)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, b)

	_, err = NToBytes(big.NewInt(0x010203), Uint16)
	require.ErrorIs(t, err, ErrEncoding)

	_, err = NToBytes(big.NewInt(-1), Uint256)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestFieldBounds(t *testing.T) {
	p := SNARKPrime()

	_, err := ToField(p.Bytes())
	require.ErrorIs(t, err, ErrEncoding)

	pm1 := new(big.Int).Sub(p, big.NewInt(1))
	n, err := ToField(pm1.Bytes())
	require.NoError(t, err)
	require.Zero(t, n.Cmp(pm1))

	require.Zero(t, ReduceToField(p.Bytes()).Sign())

	fb, err := FieldBytes(pm1)
	require.NoError(t, err)
	require.Len(t, fb, 32)
	require.Zero(t, new(big.Int).SetBytes(fb).Cmp(pm1))
}

func TestTrimKeepsRightmostBytes(t *testing.T) {
	out, err := Trim("0x000000000000000000000000abcdef0123456789abcdef0123456789abcdef01", Address)
	require.NoError(t, err)
	require.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", out)
}
