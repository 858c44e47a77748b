// circuit.go - Join-split circuit for the MiMC suite.
//
// Proves, for nIn inputs and nOut outputs over a merkle tree of the given depth:
//   - every input note opens to a leaf under MerkleRoot at LeavesIndices[i]
//   - Nullifiers[i] = H(nullifyingKey, LeavesIndices[i])
//   - CommitmentsOut[k] = H(npkOut[k], token, valueOut[k]), values below 2^128
//   - sum(valueIn) == sum(valueOut)
//   - the spending key signed H(root, boundParamsHash, nullifiers..., commitments...)
//
// Hashes are gnark's MiMC over BN254, signatures EdDSA on the BN254 twisted-Edwards curve.

package prover

import (
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/signature/eddsa"
)

const valueBits = 128

type JoinSplitCircuit struct {
	// Public inputs
	MerkleRoot      frontend.Variable   `gnark:",public"`
	BoundParamsHash frontend.Variable   `gnark:",public"`
	Nullifiers      []frontend.Variable `gnark:",public"`
	CommitmentsOut  []frontend.Variable `gnark:",public"`

	// Private inputs
	Token         frontend.Variable
	RandomIn      []frontend.Variable
	ValueIn       []frontend.Variable
	PathElements  [][]frontend.Variable
	LeavesIndices []frontend.Variable
	ValueOut      []frontend.Variable
	NPKOut        []frontend.Variable
	NullifyingKey frontend.Variable
	PublicKey     eddsa.PublicKey
	Signature     eddsa.Signature
}

// NewJoinSplitCircuit allocates a circuit of the given shape for compilation or assignment.
func NewJoinSplitCircuit(nIn, nOut, depth int) *JoinSplitCircuit {
	c := &JoinSplitCircuit{
		Nullifiers:     make([]frontend.Variable, nIn),
		CommitmentsOut: make([]frontend.Variable, nOut),
		RandomIn:       make([]frontend.Variable, nIn),
		ValueIn:        make([]frontend.Variable, nIn),
		PathElements:   make([][]frontend.Variable, nIn),
		LeavesIndices:  make([]frontend.Variable, nIn),
		ValueOut:       make([]frontend.Variable, nOut),
		NPKOut:         make([]frontend.Variable, nOut),
	}
	for i := range c.PathElements {
		c.PathElements[i] = make([]frontend.Variable, depth)
	}
	return c
}

func hashVars(api frontend.API, h *mimc.MiMC, vars ...frontend.Variable) frontend.Variable {
	h.Reset()
	h.Write(vars...)
	return h.Sum()
}

func (c *JoinSplitCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	sumIn := frontend.Variable(0)
	for i := range c.ValueIn {
		api.ToBinary(c.ValueIn[i], valueBits)
		sumIn = api.Add(sumIn, c.ValueIn[i])

		npk := hashVars(api, &h, c.PublicKey.A.X, c.PublicKey.A.Y, c.RandomIn[i])
		node := hashVars(api, &h, npk, c.Token, c.ValueIn[i])

		depth := len(c.PathElements[i])
		bits := api.ToBinary(c.LeavesIndices[i], depth)
		for j := 0; j < depth; j++ {
			left := api.Select(bits[j], c.PathElements[i][j], node)
			right := api.Select(bits[j], node, c.PathElements[i][j])
			node = hashVars(api, &h, left, right)
		}
		api.AssertIsEqual(node, c.MerkleRoot)

		api.AssertIsEqual(c.Nullifiers[i], hashVars(api, &h, c.NullifyingKey, c.LeavesIndices[i]))
	}

	sumOut := frontend.Variable(0)
	for k := range c.ValueOut {
		api.ToBinary(c.ValueOut[k], valueBits)
		sumOut = api.Add(sumOut, c.ValueOut[k])
		api.AssertIsEqual(c.CommitmentsOut[k], hashVars(api, &h, c.NPKOut[k], c.Token, c.ValueOut[k]))
	}
	api.AssertIsEqual(sumIn, sumOut)

	digestInputs := []frontend.Variable{c.MerkleRoot, c.BoundParamsHash}
	digestInputs = append(digestInputs, c.Nullifiers...)
	digestInputs = append(digestInputs, c.CommitmentsOut...)
	digest := hashVars(api, &h, digestInputs...)

	curve, err := twistededwards.NewEdCurve(api, tedwards.BN254)
	if err != nil {
		return err
	}
	h.Reset()
	return eddsa.Verify(curve, c.Signature, digest, c.PublicKey, &h)
}

func assignPoint(x, y any) twistededwards.Point {
	return twistededwards.Point{X: x, Y: y}
}

// assign fills a circuit of matching shape from assembled inputs. priv may be nil for a public-only witness.
func assign(pub *PublicInputs, priv *PrivateInputs, nIn, nOut, depth int) *JoinSplitCircuit {
	c := NewJoinSplitCircuit(nIn, nOut, depth)
	c.MerkleRoot = pub.MerkleRoot
	c.BoundParamsHash = pub.BoundParamsHash
	for i, n := range pub.Nullifiers {
		c.Nullifiers[i] = n
	}
	for k, cm := range pub.CommitmentsOut {
		c.CommitmentsOut[k] = cm
	}
	if priv == nil {
		return c
	}
	c.Token = priv.Token
	for i := 0; i < nIn; i++ {
		c.RandomIn[i] = priv.RandomIn[i]
		c.ValueIn[i] = priv.ValueIn[i]
		c.LeavesIndices[i] = priv.LeavesIndices[i]
		for j := 0; j < depth; j++ {
			c.PathElements[i][j] = priv.PathElements[i][j]
		}
	}
	for k := 0; k < nOut; k++ {
		c.ValueOut[k] = priv.ValueOut[k]
		c.NPKOut[k] = priv.NPKOut[k]
	}
	c.NullifyingKey = priv.NullifyingKey
	c.PublicKey.A = assignPoint(priv.PublicKey[0], priv.PublicKey[1])
	c.Signature.R = assignPoint(priv.Signature[0], priv.Signature[1])
	c.Signature.S = priv.Signature[2]
	return c
}
