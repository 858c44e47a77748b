package txbuilder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"shieldtx/internal/boundparams"
	"shieldtx/internal/note"
	"shieldtx/internal/prover"
)

// SerializedTransaction is the record handed to the contract layer. Field names are part of the
// calldata contract.
type SerializedTransaction struct {
	Proof            prover.FormattedProof    `json:"proof"`
	MerkleRoot       *big.Int                 `json:"merkleRoot"`
	Nullifiers       []*big.Int               `json:"nullifiers"`
	BoundParams      *boundparams.BoundParams `json:"boundParams"`
	Commitments      []*big.Int               `json:"commitments"`
	WithdrawPreimage note.CommitmentPreimage  `json:"withdrawPreimage"`
	OverrideOutput   common.Address           `json:"overrideOutput"`
}

// Serialize assembles the submission record. It does no hashing or validation. The record owns its
// data: nothing in it aliases pub or bp.
func Serialize(proof *prover.Proof, pub *prover.PublicInputs, bp *boundparams.BoundParams, overrideOutput common.Address, withdrawPreimage note.CommitmentPreimage) *SerializedTransaction {
	pub = pub.Clone()
	if withdrawPreimage.Value != nil {
		withdrawPreimage.Value = new(big.Int).Set(withdrawPreimage.Value)
	}
	if withdrawPreimage.Token.TokenSubID != nil {
		withdrawPreimage.Token.TokenSubID = new(big.Int).Set(withdrawPreimage.Token.TokenSubID)
	}
	return &SerializedTransaction{
		Proof:            prover.FormatProof(proof),
		MerkleRoot:       pub.MerkleRoot,
		Nullifiers:       pub.Nullifiers,
		BoundParams:      bp.Clone(),
		Commitments:      pub.CommitmentsOut,
		WithdrawPreimage: withdrawPreimage,
		OverrideOutput:   overrideOutput,
	}
}

// PublicInputs recomputes the verifier's public inputs from the record.
func (s *SerializedTransaction) PublicInputs() (*prover.PublicInputs, error) {
	if s.BoundParams == nil {
		return nil, fmt.Errorf("%w: missing bound params", boundparams.ErrInvalidParams)
	}
	h, err := s.BoundParams.Hash()
	if err != nil {
		return nil, err
	}
	return &prover.PublicInputs{
		MerkleRoot:      s.MerkleRoot,
		BoundParamsHash: h,
		Nullifiers:      s.Nullifiers,
		CommitmentsOut:  s.Commitments,
	}, nil
}

// IsDummy reports whether the record carries the zero placeholder proof.
func (s *SerializedTransaction) IsDummy() bool {
	return prover.UnformatProof(s.Proof).IsZero()
}
