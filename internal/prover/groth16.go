// groth16.go - Groth16 prover backed by gnark.
//
// One constraint system is compiled per circuit shape (inputs, outputs, merkle depth) and cached along
// with its keys. With a key directory, keys are written on first setup and loaded afterwards.

package prover

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/rs/zerolog"
)

type shape struct {
	nIn, nOut, depth int
}

func (s shape) String() string {
	return fmt.Sprintf("joinsplit_%dx%d_d%d", s.nIn, s.nOut, s.depth)
}

type compiled struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// Groth16 proves with the MiMC join-split circuit.
type Groth16 struct {
	keyDir string
	log    zerolog.Logger

	mu       sync.Mutex
	circuits map[shape]*compiled
}

// NewGroth16 returns a prover. An empty keyDir keeps keys in memory only.
func NewGroth16(keyDir string, log zerolog.Logger) *Groth16 {
	return &Groth16{
		keyDir:   keyDir,
		log:      log.With().Str("component", "groth16").Logger(),
		circuits: make(map[shape]*compiled),
	}
}

func (g *Groth16) circuit(s shape) (*compiled, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.circuits[s]; ok {
		return c, nil
	}

	start := time.Now()
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, NewJoinSplitCircuit(s.nIn, s.nOut, s.depth))
	if err != nil {
		return nil, fmt.Errorf("circuit compilation failed: %w", err)
	}
	var pk groth16.ProvingKey
	var vk groth16.VerifyingKey
	if g.keyDir == "" {
		pk, vk, err = groth16.Setup(ccs)
	} else {
		if err := os.MkdirAll(g.keyDir, 0o755); err != nil {
			return nil, fmt.Errorf("create key dir: %w", err)
		}
		base := filepath.Join(g.keyDir, s.String())
		pk, vk, err = SetupOrLoadKeys(ccs, base+".pk", base+".vk")
	}
	if err != nil {
		return nil, fmt.Errorf("groth16 setup failed: %w", err)
	}
	g.log.Info().
		Str("shape", s.String()).
		Int("constraints", ccs.GetNbConstraints()).
		Dur("took", time.Since(start)).
		Msg("circuit ready")

	c := &compiled{ccs: ccs, pk: pk, vk: vk}
	g.circuits[s] = c
	return c, nil
}

// Prove implements Prover.
func (g *Groth16) Prove(ctx context.Context, pub *PublicInputs, priv *PrivateInputs) (*Proof, error) {
	if err := priv.validate(pub); err != nil {
		return nil, err
	}
	nIn, nOut, depth := priv.Shape()
	c, err := g.circuit(shape{nIn, nOut, depth})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, err := frontend.NewWitness(assign(pub, priv, nIn, nOut, depth), ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness creation failed: %w", err)
	}
	start := time.Now()
	proof, err := groth16.Prove(c.ccs, c.pk, w)
	if err != nil {
		return nil, fmt.Errorf("proof generation failed: %w", err)
	}
	g.log.Debug().Dur("took", time.Since(start)).Msg("proof generated")

	p, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected proof type %T", ErrInvalidProof, proof)
	}
	return fromNative(p), nil
}

// Verify checks proof against the public inputs using the verifying key of the matching shape.
func (g *Groth16) Verify(pub *PublicInputs, depth int, proof *Proof) error {
	if proof == nil || proof.IsZero() {
		return ErrInvalidProof
	}
	nIn, nOut := len(pub.Nullifiers), len(pub.CommitmentsOut)
	c, err := g.circuit(shape{nIn, nOut, depth})
	if err != nil {
		return err
	}
	w, err := frontend.NewWitness(assign(pub, nil, nIn, nOut, depth), ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("public witness creation failed: %w", err)
	}
	if err := groth16.Verify(toNative(proof), c.vk, w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return nil
}

func fromNative(p *groth16_bn254.Proof) *Proof {
	bi := func(e interface{ BigInt(*big.Int) *big.Int }) *big.Int { return e.BigInt(new(big.Int)) }
	return &Proof{
		A: [2]*big.Int{bi(&p.Ar.X), bi(&p.Ar.Y)},
		B: [2][2]*big.Int{
			{bi(&p.Bs.X.A0), bi(&p.Bs.X.A1)},
			{bi(&p.Bs.Y.A0), bi(&p.Bs.Y.A1)},
		},
		C: [2]*big.Int{bi(&p.Krs.X), bi(&p.Krs.Y)},
	}
}

func toNative(p *Proof) *groth16_bn254.Proof {
	var out groth16_bn254.Proof
	out.Ar.X.SetBigInt(clone(p.A[0]))
	out.Ar.Y.SetBigInt(clone(p.A[1]))
	out.Bs.X.A0.SetBigInt(clone(p.B[0][0]))
	out.Bs.X.A1.SetBigInt(clone(p.B[0][1]))
	out.Bs.Y.A0.SetBigInt(clone(p.B[1][0]))
	out.Bs.Y.A1.SetBigInt(clone(p.B[1][1]))
	out.Krs.X.SetBigInt(clone(p.C[0]))
	out.Krs.Y.SetBigInt(clone(p.C[1]))
	return &out
}

// SaveProvingKey saves a Groth16 proving key to disk.
func SaveProvingKey(path string, pk groth16.ProvingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = pk.WriteTo(f)
	return err
}

// SaveVerifyingKey saves a Groth16 verifying key to disk.
func SaveVerifyingKey(path string, vk groth16.VerifyingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = vk.WriteTo(f)
	return err
}

// LoadProvingKey loads a BN254 proving key.
func LoadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

// LoadVerifyingKey loads a BN254 verifying key.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	_, err = vk.ReadFrom(f)
	return vk, err
}

// SetupOrLoadKeys loads keys from disk when both files exist; otherwise it runs a fresh setup and
// writes them. A half-present pair is regenerated.
func SetupOrLoadKeys(ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk, pkErr := LoadProvingKey(pkPath)
	vk, vkErr := LoadVerifyingKey(vkPath)
	if pkErr == nil && vkErr == nil {
		return pk, vk, nil
	}
	if pkErr != nil && !errors.Is(pkErr, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("load proving key: %w", pkErr)
	}
	if vkErr != nil && !errors.Is(vkErr, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("load verifying key: %w", vkErr)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := SaveProvingKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := SaveVerifyingKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}
