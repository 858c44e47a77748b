// token.go - Token identification for notes.

package note

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"shieldtx/internal/codec"
)

// TokenType distinguishes fungible tokens from NFTs.
type TokenType uint8

const (
	ERC20 TokenType = iota
	ERC721
	ERC1155
)

func (t TokenType) String() string {
	switch t {
	case ERC20:
		return "ERC20"
	case ERC721:
		return "ERC721"
	case ERC1155:
		return "ERC1155"
	default:
		return fmt.Sprintf("TokenType(%d)", uint8(t))
	}
}

// TokenData identifies the asset a note holds. TokenAddress is always stored normalized to 32 bytes.
type TokenData struct {
	TokenType    TokenType `json:"tokenType"`
	TokenAddress string    `json:"tokenAddress"`
	TokenSubID   *big.Int  `json:"tokenSubID"`
}

// NewTokenData validates a 160-bit token address and normalizes it to the 256-bit field width.
func NewTokenData(t TokenType, address string, subID *big.Int) (TokenData, error) {
	if t > ERC1155 {
		return TokenData{}, fmt.Errorf("unknown token type %d", t)
	}
	n, err := codec.HexToBigInt(address)
	if err != nil {
		return TokenData{}, err
	}
	if n.BitLen() > int(codec.Address)*8 {
		return TokenData{}, &codec.EncodingError{Op: "token", Input: address, Reason: "address wider than 160 bits"}
	}
	normalized, err := codec.NToHex(n, codec.Uint256, true)
	if err != nil {
		return TokenData{}, err
	}
	if subID == nil {
		subID = new(big.Int)
	}
	if subID.Sign() < 0 || subID.BitLen() > 256 {
		return TokenData{}, &codec.EncodingError{Op: "token", Input: subID.String(), Reason: "sub-id outside uint256"}
	}
	return TokenData{TokenType: t, TokenAddress: normalized, TokenSubID: new(big.Int).Set(subID)}, nil
}

// NewERC20 is NewTokenData for a fungible token with the default sub-id.
func NewERC20(address string) (TokenData, error) {
	return NewTokenData(ERC20, address, nil)
}

func (t TokenData) subID() *big.Int {
	if t.TokenSubID == nil {
		return new(big.Int)
	}
	return t.TokenSubID
}

// Address returns the 20-byte contract address.
func (t TokenData) Address() common.Address {
	return common.HexToAddress(t.TokenAddress)
}

// Hash is the token field used in commitments. For ERC20 it is the address itself;
// for NFTs it is keccak256(abi.encode(tokenType, address, subID)) reduced into the field.
func (t TokenData) Hash() (*big.Int, error) {
	addr, err := codec.HexToBigInt(t.TokenAddress)
	if err != nil {
		return nil, err
	}
	if t.TokenType == ERC20 {
		return addr, nil
	}
	sub := t.subID()
	if sub.Sign() < 0 || sub.BitLen() > 256 {
		return nil, &codec.EncodingError{Op: "token", Input: sub.String(), Reason: "sub-id outside uint256"}
	}
	preimage := make([]byte, 0, 96)
	preimage = append(preimage, common.LeftPadBytes([]byte{byte(t.TokenType)}, 32)...)
	preimage = append(preimage, common.LeftPadBytes(addr.Bytes(), 32)...)
	preimage = append(preimage, common.LeftPadBytes(sub.Bytes(), 32)...)
	return codec.ReduceToField(crypto.Keccak256(preimage)), nil
}

// Equal compares normalized token identities.
func (t TokenData) Equal(o TokenData) bool {
	return t.TokenType == o.TokenType &&
		strings.EqualFold(codec.Strip0x(t.TokenAddress), codec.Strip0x(o.TokenAddress)) &&
		t.subID().Cmp(o.subID()) == 0
}
