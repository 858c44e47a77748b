package primitives

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/iden3/go-iden3-crypto/poseidon"

	"shieldtx/internal/codec"
)

// poseidonWidth is the largest input count a single Poseidon permutation accepts.
const poseidonWidth = 16

// Poseidon is the circomlib-compatible suite.
type Poseidon struct {
	X25519
}

func NewPoseidon() *Poseidon { return &Poseidon{} }

func (*Poseidon) Name() string { return SuitePoseidon }

// Hash absorbs up to 16 inputs directly. Longer inputs are folded left: the running digest becomes the
// first input of the next chunk of 15.
func (*Poseidon) Hash(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) == 0 {
		return nil, errors.New("poseidon: no inputs")
	}
	for _, in := range inputs {
		if err := codec.CheckField(in); err != nil {
			return nil, fmt.Errorf("poseidon: %w", err)
		}
	}
	n := len(inputs)
	if n > poseidonWidth {
		n = poseidonWidth
	}
	acc, err := poseidon.Hash(inputs[:n])
	if err != nil {
		return nil, fmt.Errorf("poseidon: %w", err)
	}
	for rest := inputs[n:]; len(rest) > 0; {
		m := len(rest)
		if m > poseidonWidth-1 {
			m = poseidonWidth - 1
		}
		chunk := append([]*big.Int{acc}, rest[:m]...)
		if acc, err = poseidon.Hash(chunk); err != nil {
			return nil, fmt.Errorf("poseidon: %w", err)
		}
		rest = rest[m:]
	}
	return acc, nil
}

func babyjubKey(privateKey []byte) (*babyjub.PrivateKey, error) {
	if len(privateKey) != 32 {
		return nil, errors.New("babyjub: private key must be 32 bytes")
	}
	var k babyjub.PrivateKey
	copy(k[:], privateKey)
	return &k, nil
}

func (*Poseidon) SpendingPublicKey(privateKey []byte) (Point, error) {
	k, err := babyjubKey(privateKey)
	if err != nil {
		return Point{}, err
	}
	pub := k.Public()
	return Point{X: new(big.Int).Set(pub.X), Y: new(big.Int).Set(pub.Y)}, nil
}

func (*Poseidon) Sign(privateKey []byte, msg *big.Int) (*Signature, error) {
	k, err := babyjubKey(privateKey)
	if err != nil {
		return nil, err
	}
	if err := codec.CheckField(msg); err != nil {
		return nil, fmt.Errorf("babyjub sign: %w", err)
	}
	sig := k.SignPoseidon(msg)
	return &Signature{
		R8: Point{X: sig.R8.X, Y: sig.R8.Y},
		S:  sig.S,
	}, nil
}

func (*Poseidon) Verify(msg *big.Int, sig *Signature, publicKey Point) bool {
	if sig == nil || sig.S == nil || sig.R8.X == nil || publicKey.X == nil || msg == nil {
		return false
	}
	pub := babyjub.PublicKey{X: publicKey.X, Y: publicKey.Y}
	s := &babyjub.Signature{
		R8: &babyjub.Point{X: sig.R8.X, Y: sig.R8.Y},
		S:  sig.S,
	}
	return pub.VerifyPoseidon(msg, s)
}
