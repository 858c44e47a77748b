package note

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"shieldtx/internal/codec"
	"shieldtx/internal/primitives"
)

// CommitmentPreimage is the public opening of a withdraw commitment, checked on-chain before paying out.
type CommitmentPreimage struct {
	NPK   string    `json:"npk"`
	Token TokenData `json:"token"`
	Value *big.Int  `json:"value"`
}

// WithdrawNote pays value to a public address. Its note public key is the address itself.
type WithdrawNote struct {
	WithdrawAddress common.Address `json:"withdrawAddress"`
	Value           *big.Int       `json:"value"`
	Token           TokenData      `json:"token"`
}

// NewWithdrawNote validates a public payout.
func NewWithdrawNote(address common.Address, value *big.Int, token TokenData) (*WithdrawNote, error) {
	if value == nil || value.Sign() < 0 || value.BitLen() > MaxValueBits {
		return nil, fmt.Errorf("%w: withdraw value must be an unsigned %d-bit integer", ErrInvalidNote, MaxValueBits)
	}
	normalized, err := NewTokenData(token.TokenType, token.TokenAddress, token.TokenSubID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNote, err)
	}
	return &WithdrawNote{WithdrawAddress: address, Value: new(big.Int).Set(value), Token: normalized}, nil
}

// EmptyWithdrawNote stands in when no withdraw is requested so the serialized shape never changes.
func EmptyWithdrawNote() *WithdrawNote {
	return &WithdrawNote{
		Token: TokenData{TokenType: ERC20, TokenAddress: codec.HashZero, TokenSubID: new(big.Int)},
		Value: new(big.Int),
	}
}

func (w *WithdrawNote) Amount() *big.Int { return w.Value }

func (w *WithdrawNote) NotePublicKey(primitives.Hasher) (*big.Int, error) {
	return new(big.Int).SetBytes(w.WithdrawAddress.Bytes()), nil
}

func (w *WithdrawNote) Commitment(h primitives.Hasher) (*big.Int, error) {
	npk, _ := w.NotePublicKey(h)
	return commitment(h, npk, w.Token, w.Value)
}

// Preimage returns the opening published alongside the transaction.
func (w *WithdrawNote) Preimage() CommitmentPreimage {
	npk := common.LeftPadBytes(w.WithdrawAddress.Bytes(), int(codec.Uint256))
	sub := w.Token.TokenSubID
	if sub == nil {
		sub = new(big.Int)
	}
	return CommitmentPreimage{
		NPK: codec.Hexlify(npk, true),
		Token: TokenData{
			TokenType:    w.Token.TokenType,
			TokenAddress: w.Token.TokenAddress,
			TokenSubID:   new(big.Int).Set(sub),
		},
		Value: new(big.Int).Set(w.Value),
	}
}
