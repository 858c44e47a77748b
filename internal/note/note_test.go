package note

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"shieldtx/internal/codec"
	"shieldtx/internal/encryption"
	"shieldtx/internal/keys"
	"shieldtx/internal/primitives"
)

const testToken = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func recipient(t *testing.T, suite primitives.Suite, seed byte) AddressKeys {
	t.Helper()
	spend, err := keys.NewSpendingKeyPair(suite, bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	view, err := keys.NewViewingKeyPair(suite, bytes.Repeat([]byte{seed + 1}, 32))
	require.NoError(t, err)
	return AddressKeys{SpendingPublicKey: spend.PublicKey, ViewingPublicKey: view.PublicKey}
}

func erc20(t *testing.T) TokenData {
	t.Helper()
	tok, err := NewERC20(testToken)
	require.NoError(t, err)
	return tok
}

func TestTokenNormalization(t *testing.T) {
	tok := erc20(t)
	require.Len(t, codec.Strip0x(tok.TokenAddress), 64)
	require.Equal(t, common.HexToAddress(testToken), tok.Address())

	h, err := tok.Hash()
	require.NoError(t, err)
	addr, _ := codec.HexToBigInt(testToken)
	require.Equal(t, addr, h)

	_, err = NewERC20("0x01" + codec.Strip0x(testToken))
	require.ErrorIs(t, err, codec.ErrEncoding)
}

func TestNFTTokenHashUsesSubID(t *testing.T) {
	a, err := NewTokenData(ERC721, testToken, big.NewInt(1))
	require.NoError(t, err)
	b, err := NewTokenData(ERC721, testToken, big.NewInt(2))
	require.NoError(t, err)
	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	require.NotEqual(t, ha, hb)
	require.NoError(t, codec.CheckField(ha))
	require.False(t, a.Equal(b))
}

func TestCommitmentIsDeterministic(t *testing.T) {
	for _, suite := range []primitives.Suite{primitives.NewPoseidon(), primitives.NewMiMC()} {
		t.Run(suite.Name(), func(t *testing.T) {
			random := bytes.Repeat([]byte{7}, RandomSize)
			a, err := NewNote(recipient(t, suite, 1), random, big.NewInt(100), erc20(t))
			require.NoError(t, err)
			b, err := NewNote(recipient(t, suite, 1), random, big.NewInt(100), erc20(t))
			require.NoError(t, err)

			ca, err := a.Commitment(suite)
			require.NoError(t, err)
			cb, err := b.Commitment(suite)
			require.NoError(t, err)
			require.Equal(t, ca, cb)

			c, err := NewNote(recipient(t, suite, 1), random, big.NewInt(101), erc20(t))
			require.NoError(t, err)
			cc, err := c.Commitment(suite)
			require.NoError(t, err)
			require.NotEqual(t, ca, cc)
		})
	}
}

func TestNewNoteValidation(t *testing.T) {
	suite := primitives.NewPoseidon()
	r := recipient(t, suite, 1)
	_, err := NewNote(r, make([]byte, 15), big.NewInt(1), erc20(t))
	require.ErrorIs(t, err, ErrInvalidNote)
	_, err = NewNote(r, make([]byte, RandomSize), big.NewInt(-1), erc20(t))
	require.ErrorIs(t, err, ErrInvalidNote)
	_, err = NewNote(r, make([]byte, RandomSize), new(big.Int).Lsh(big.NewInt(1), MaxValueBits), erc20(t))
	require.ErrorIs(t, err, ErrInvalidNote)
	_, err = NewNote(AddressKeys{}, make([]byte, RandomSize), big.NewInt(1), erc20(t))
	require.ErrorIs(t, err, ErrInvalidNote)
}

func TestNullifierDependsOnPosition(t *testing.T) {
	suite := primitives.NewPoseidon()
	nk := big.NewInt(12345)
	a, err := Nullifier(suite, nk, 0)
	require.NoError(t, err)
	b, err := Nullifier(suite, nk, 1)
	require.NoError(t, err)
	again, err := Nullifier(suite, nk, 0)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Equal(t, a, again)
}

func TestEncryptDecryptOpen(t *testing.T) {
	suite := primitives.NewPoseidon()
	r := recipient(t, suite, 3)
	n, err := NewRandomNote(r, big.NewInt(42), erc20(t))
	require.NoError(t, err)

	key := bytes.Repeat([]byte{9}, encryption.KeySize)
	ct, err := n.Encrypt(suite, key, nil)
	require.NoError(t, err)

	words, err := PackCiphertext(ct)
	require.NoError(t, err)
	unpacked, err := UnpackCiphertext(words)
	require.NoError(t, err)
	require.Equal(t, ct, unpacked)

	pt, err := Decrypt(unpacked, key)
	require.NoError(t, err)
	want, err := n.Plaintext(suite)
	require.NoError(t, err)
	require.True(t, want.Equal(pt))

	opened, err := pt.Open(suite, r, erc20(t))
	require.NoError(t, err)
	require.Equal(t, n, opened)

	_, err = pt.Open(suite, recipient(t, suite, 5), erc20(t))
	require.ErrorIs(t, err, ErrInvalidNote)

	_, err = Decrypt(ct, bytes.Repeat([]byte{8}, encryption.KeySize))
	require.ErrorIs(t, err, encryption.ErrDecryption)
}

func TestWithdrawNote(t *testing.T) {
	suite := primitives.NewPoseidon()
	addr := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	w, err := NewWithdrawNote(addr, big.NewInt(30), erc20(t))
	require.NoError(t, err)

	npk, err := w.NotePublicKey(suite)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0xff), npk)

	_, err = w.Commitment(suite)
	require.NoError(t, err)

	pre := w.Preimage()
	require.Equal(t, "0x"+string(bytes.Repeat([]byte("0"), 62))+"ff", pre.NPK)
	require.Equal(t, big.NewInt(30), pre.Value)
	require.True(t, pre.Token.Equal(erc20(t)))
}

func TestEmptyWithdrawPreimageIsZero(t *testing.T) {
	pre := EmptyWithdrawNote().Preimage()
	require.Equal(t, codec.HashZero, pre.NPK)
	require.Equal(t, codec.HashZero, pre.Token.TokenAddress)
	require.Equal(t, ERC20, pre.Token.TokenType)
	require.Zero(t, pre.Token.TokenSubID.Sign())
	require.Zero(t, pre.Value.Sign())
}
