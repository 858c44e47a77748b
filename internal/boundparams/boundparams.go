// boundparams.go - Public transaction metadata bound into the proof.
//
// The circuit takes keccak256 of the ABI encoding of a single tuple
//
//	(uint16 treeNumber, uint8 withdraw, address adaptContract, bytes32 adaptParams,
//	 (uint256[4] ciphertext, uint256[2] ephemeralKeys, uint256[] memo)[] commitmentCiphertext)
//
// reduced into the BN254 scalar field. The layout is fixed by the on-chain verifier.

package boundparams

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"shieldtx/internal/codec"
)

// WithdrawFlag is the withdraw mode of a transaction.
type WithdrawFlag uint8

const (
	NoWithdraw WithdrawFlag = iota
	// Withdraw pays the withdraw note's own address.
	Withdraw
	// Override pays the transaction's override output address instead.
	Override
)

func (f WithdrawFlag) String() string {
	switch f {
	case NoWithdraw:
		return "NO_WITHDRAW"
	case Withdraw:
		return "WITHDRAW"
	case Override:
		return "OVERRIDE"
	default:
		return fmt.Sprintf("WithdrawFlag(%d)", uint8(f))
	}
}

var ErrInvalidParams = errors.New("invalid bound params")

// CommitmentCiphertext is the published encryption of one shielded output.
type CommitmentCiphertext struct {
	Ciphertext    [4]*big.Int `json:"ciphertext"`
	EphemeralKeys [2]*big.Int `json:"ephemeralKeys"`
	Memo          []*big.Int  `json:"memo"`
}

// BoundParams is bound into the proof through its hash.
type BoundParams struct {
	TreeNumber           uint16                 `json:"treeNumber"`
	Withdraw             uint8                  `json:"withdraw"`
	AdaptContract        common.Address         `json:"adaptContract"`
	AdaptParams          [32]byte               `json:"adaptParams"`
	CommitmentCiphertext []CommitmentCiphertext `json:"commitmentCiphertext"`
}

var boundParamsArgs abi.Arguments

func init() {
	t, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "treeNumber", Type: "uint16"},
		{Name: "withdraw", Type: "uint8"},
		{Name: "adaptContract", Type: "address"},
		{Name: "adaptParams", Type: "bytes32"},
		{Name: "commitmentCiphertext", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "ciphertext", Type: "uint256[4]"},
			{Name: "ephemeralKeys", Type: "uint256[2]"},
			{Name: "memo", Type: "uint256[]"},
		}},
	})
	if err != nil {
		panic(fmt.Sprintf("bound params abi type: %v", err))
	}
	boundParamsArgs = abi.Arguments{{Name: "_boundParams", Type: t}}
}

func checkWord(field string, n *big.Int) error {
	if n == nil || n.Sign() < 0 || n.BitLen() > 256 {
		return fmt.Errorf("%w: %s is not a uint256", ErrInvalidParams, field)
	}
	return nil
}

// Validate checks that every limb is present and fits its ABI width.
func (p *BoundParams) Validate() error {
	if WithdrawFlag(p.Withdraw) > Override {
		return fmt.Errorf("%w: withdraw flag %d", ErrInvalidParams, p.Withdraw)
	}
	for i, c := range p.CommitmentCiphertext {
		for j, w := range c.Ciphertext {
			if err := checkWord(fmt.Sprintf("commitmentCiphertext[%d].ciphertext[%d]", i, j), w); err != nil {
				return err
			}
		}
		for j, w := range c.EphemeralKeys {
			if err := checkWord(fmt.Sprintf("commitmentCiphertext[%d].ephemeralKeys[%d]", i, j), w); err != nil {
				return err
			}
		}
		for j, w := range c.Memo {
			if err := checkWord(fmt.Sprintf("commitmentCiphertext[%d].memo[%d]", i, j), w); err != nil {
				return err
			}
		}
	}
	return nil
}

func cloneInt(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}

// Clone returns a deep copy of p.
func (p *BoundParams) Clone() *BoundParams {
	if p == nil {
		return nil
	}
	out := *p
	if p.CommitmentCiphertext != nil {
		out.CommitmentCiphertext = make([]CommitmentCiphertext, len(p.CommitmentCiphertext))
	}
	for i, c := range p.CommitmentCiphertext {
		var cc CommitmentCiphertext
		for j, w := range c.Ciphertext {
			cc.Ciphertext[j] = cloneInt(w)
		}
		for j, w := range c.EphemeralKeys {
			cc.EphemeralKeys[j] = cloneInt(w)
		}
		if c.Memo != nil {
			cc.Memo = make([]*big.Int, len(c.Memo))
			for j, w := range c.Memo {
				cc.Memo[j] = cloneInt(w)
			}
		}
		out.CommitmentCiphertext[i] = cc
	}
	return &out
}

// Encode returns the ABI encoding of p as a single tuple argument.
func (p *BoundParams) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	normalized := *p
	normalized.CommitmentCiphertext = make([]CommitmentCiphertext, len(p.CommitmentCiphertext))
	for i, c := range p.CommitmentCiphertext {
		if c.Memo == nil {
			c.Memo = []*big.Int{}
		}
		normalized.CommitmentCiphertext[i] = c
	}
	out, err := boundParamsArgs.Pack(normalized)
	if err != nil {
		return nil, fmt.Errorf("abi encode bound params: %w", err)
	}
	return out, nil
}

// Hash is keccak256(Encode(p)) mod p.
func (p *BoundParams) Hash() (*big.Int, error) {
	enc, err := p.Encode()
	if err != nil {
		return nil, err
	}
	return codec.ReduceToField(crypto.Keccak256(enc)), nil
}
