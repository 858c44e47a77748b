// transaction.go - Shielded transaction assembly.
//
// A Transaction collects outputs and an optional withdraw, then turns wallet state into the exact public
// and private inputs of the join-split proof:
//  1. check output count and tokens, total the amount to cover
//  2. pick UTXOs from one tree and fetch their merkle proofs
//  3. add a change note back to the wallet, then the withdraw note
//  4. encrypt every shielded output to its recipient
//  5. hash the bound params and sign the public inputs
//
// A failed build returns no inputs and leaves the transaction as it was.

package txbuilder

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"shieldtx/internal/boundparams"
	"shieldtx/internal/codec"
	"shieldtx/internal/encryption"
	"shieldtx/internal/keys"
	"shieldtx/internal/merkletree"
	"shieldtx/internal/note"
	"shieldtx/internal/observe"
	"shieldtx/internal/primitives"
	"shieldtx/internal/prover"
	"shieldtx/internal/solver"
)

// DefaultMaxOutputs is the number of declared outputs the circuits accept besides change and withdraw.
const DefaultMaxOutputs = 3

// MerkleTree is the commitment tree as seen by the builder.
type MerkleTree interface {
	Root(ctx context.Context, tree int) (*big.Int, error)
	Proof(ctx context.Context, tree int, position uint64) (*merkletree.Proof, error)
}

// Wallet exposes the spender's balances and keys. It is read-only during a build.
type Wallet interface {
	BalancesByTree(ctx context.Context, token note.TokenData) ([]solver.TreeBalance, error)
	SpendingKeyPair(ctx context.Context, encryptionKey []byte) (*keys.SpendingKeyPair, error)
	NullifyingKey() *big.Int
	ViewingKeyPair() *keys.ViewingKeyPair
	AddressKeys() note.AddressKeys
}

// AdaptID binds the transaction to an adapter contract call.
type AdaptID struct {
	Contract   common.Address `json:"contract"`
	Parameters [32]byte       `json:"parameters"`
}

// Options tune a build.
type Options struct {
	MaxOutputs int
	MaxInputs  int
	// EmitZeroChange keeps a change note even when it carries no value, so every transaction has the
	// same output structure.
	EmitZeroChange bool
	Observer       observe.Observer
	// Rand supplies note randomness, ephemeral secrets and IVs. Defaults to crypto/rand.
	Rand io.Reader
}

func DefaultOptions() Options {
	return Options{
		MaxOutputs:     DefaultMaxOutputs,
		MaxInputs:      solver.DefaultMaxInputs,
		EmitZeroChange: true,
		Observer:       observe.Nop{},
		Rand:           rand.Reader,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxOutputs <= 0 {
		o.MaxOutputs = d.MaxOutputs
	}
	if o.MaxInputs <= 0 {
		o.MaxInputs = d.MaxInputs
	}
	if o.Observer == nil {
		o.Observer = d.Observer
	}
	if o.Rand == nil {
		o.Rand = d.Rand
	}
	return o
}

// State is the lifecycle stage of a Transaction.
type State int

const (
	Empty State = iota
	OutputsSet
	WithdrawSet
	InputsGenerated
	Proved
)

func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case OutputsSet:
		return "OutputsSet"
	case WithdrawSet:
		return "WithdrawSet"
	case InputsGenerated:
		return "InputsGenerated"
	case Proved:
		return "Proved"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Inputs is everything the prover and the serializer need.
type Inputs struct {
	Private      *prover.PrivateInputs
	Public       *prover.PublicInputs
	BoundParams  *boundparams.BoundParams
	SpendingTree int
	// Outputs are in commitment order: declared outputs, change, then the withdraw note if any.
	Outputs []note.Output
}

// Transaction builds one shielded transfer of a single token.
type Transaction struct {
	suite   primitives.Suite
	opts    Options
	token   note.TokenData
	chainID uint64
	adapt   AdaptID

	mu             sync.Mutex
	state          State
	outputs        []*note.Note
	withdrawFlag   boundparams.WithdrawFlag
	withdrawNote   *note.WithdrawNote
	overrideOutput common.Address
	inputs         *Inputs
}

// New starts an empty transaction for token on chainID.
func New(suite primitives.Suite, token note.TokenData, chainID uint64, opts Options) (*Transaction, error) {
	normalized, err := note.NewTokenData(token.TokenType, token.TokenAddress, token.TokenSubID)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		suite:        suite,
		opts:         opts.withDefaults(),
		token:        normalized,
		chainID:      chainID,
		withdrawNote: note.EmptyWithdrawNote(),
	}, nil
}

func (t *Transaction) Token() note.TokenData { return t.token }
func (t *Transaction) ChainID() uint64 { return t.chainID }

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetAdaptID binds the transaction to an adapter call.
func (t *Transaction) SetAdaptID(a AdaptID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.adapt = a
	t.invalidate()
}

// invalidate drops generated inputs after a change. Callers hold t.mu.
func (t *Transaction) invalidate() {
	t.inputs = nil
	switch {
	case t.withdrawFlag != boundparams.NoWithdraw:
		t.state = WithdrawSet
	case len(t.outputs) > 0:
		t.state = OutputsSet
	default:
		t.state = Empty
	}
}

// AddOutput declares a shielded output. Token and count are checked when inputs are generated.
func (t *Transaction) AddOutput(n *note.Note) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outputs = append(t.outputs, n)
	t.invalidate()
}

// Withdraw pays value out to originalAddress, or to toAddress when given. It may be called once.
func (t *Transaction) Withdraw(originalAddress common.Address, value *big.Int, toAddress *common.Address) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.withdrawFlag != boundparams.NoWithdraw {
		return ErrDuplicateWithdraw
	}
	w, err := note.NewWithdrawNote(originalAddress, value, t.token)
	if err != nil {
		return err
	}
	t.withdrawNote = w
	t.withdrawFlag = boundparams.Withdraw
	if toAddress != nil {
		t.withdrawFlag = boundparams.Override
		t.overrideOutput = *toAddress
	}
	t.invalidate()
	return nil
}

// WithdrawPreimage is the withdraw commitment opening, all zero without a withdraw.
func (t *Transaction) WithdrawPreimage() note.CommitmentPreimage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.withdrawNote.Preimage()
}

// GenerateInputs builds the prover inputs. Once generated they are reused until the transaction changes,
// so a dummy proof and a real proof agree on every public input. Callers get a copy of the cached inputs.
func (t *Transaction) GenerateInputs(ctx context.Context, w Wallet, mt MerkleTree, encryptionKey []byte) (*Inputs, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in, err := t.generate(ctx, w, mt, encryptionKey)
	if err != nil {
		return nil, err
	}
	return in.clone(), nil
}

func (in *Inputs) clone() *Inputs {
	return &Inputs{
		Private:      in.Private.Clone(),
		Public:       in.Public.Clone(),
		BoundParams:  in.BoundParams.Clone(),
		SpendingTree: in.SpendingTree,
		Outputs:      append([]note.Output(nil), in.Outputs...),
	}
}

func (t *Transaction) generate(ctx context.Context, w Wallet, mt MerkleTree, encryptionKey []byte) (*Inputs, error) {
	if t.inputs != nil {
		return t.inputs, nil
	}
	obs := t.opts.Observer
	start := time.Now()
	obs.BuildStarted(len(t.outputs), t.withdrawFlag != boundparams.NoWithdraw)

	in, err := t.build(ctx, w, mt, encryptionKey)
	obs.BuildFinished(time.Since(start), err)
	if err != nil {
		return nil, err
	}
	t.inputs = in
	t.state = InputsGenerated
	return in, nil
}

// randomness is drawn up front, in a fixed order, so that concurrent work stays deterministic for a
// given Rand.
type randomness struct {
	change    []byte
	ephemeral [][]byte
	ivs       [][]byte
}

func (t *Transaction) draw(shielded int) (*randomness, error) {
	read := func(n codec.ByteLength) ([]byte, error) {
		b := make([]byte, n)
		if _, err := io.ReadFull(t.opts.Rand, b); err != nil {
			return nil, fmt.Errorf("read randomness: %w", err)
		}
		return b, nil
	}
	r := &randomness{ephemeral: make([][]byte, shielded), ivs: make([][]byte, shielded)}
	var err error
	if r.change, err = read(note.RandomSize); err != nil {
		return nil, err
	}
	for i := 0; i < shielded; i++ {
		if r.ephemeral[i], err = read(codec.Uint256); err != nil {
			return nil, err
		}
		if r.ivs[i], err = read(encryption.IVSize); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (t *Transaction) build(ctx context.Context, w Wallet, mt MerkleTree, encryptionKey []byte) (*Inputs, error) {
	if len(t.outputs) > t.opts.MaxOutputs {
		return nil, fmt.Errorf("%w: %d declared, limit %d", ErrTooManyOutputs, len(t.outputs), t.opts.MaxOutputs)
	}
	outputTotal := new(big.Int)
	for i, o := range t.outputs {
		if o == nil {
			return nil, fmt.Errorf("%w: output %d is nil", note.ErrInvalidNote, i)
		}
		if !o.Token.Equal(t.token) {
			return nil, fmt.Errorf("%w: output %d", ErrTokenMismatch, i)
		}
		outputTotal.Add(outputTotal, o.Value)
	}
	withdrawValue := new(big.Int)
	if t.withdrawFlag != boundparams.NoWithdraw {
		withdrawValue.Set(t.withdrawNote.Value)
	}
	totalRequired := new(big.Int).Add(outputTotal, withdrawValue)

	balances, err := w.BalancesByTree(ctx, t.token)
	if err != nil {
		return nil, fmt.Errorf("wallet balances: %w", err)
	}
	if len(balances) == 0 {
		return nil, fmt.Errorf("%w: 0x%x", ErrNoBalance, t.token.Address())
	}
	tree, utxos, err := solver.SelectUTXOs(balances, totalRequired, t.opts.MaxInputs)
	if err != nil {
		return nil, err
	}
	if tree < 0 || tree > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d", ErrTreeNumber, tree)
	}
	t.opts.Observer.InputsSelected(tree, len(utxos))

	spending, err := w.SpendingKeyPair(ctx, encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("spending key: %w", err)
	}
	nullifyingKey := w.NullifyingKey()
	viewing := w.ViewingKeyPair()

	merkleRoot, err := mt.Root(ctx, tree)
	if err != nil {
		return nil, fmt.Errorf("merkle root of tree %d: %w", tree, err)
	}

	nullifiers := make([]*big.Int, len(utxos))
	pathElements := make([][]*big.Int, len(utxos))
	leavesIndices := make([]*big.Int, len(utxos))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range utxos {
		g.Go(func() error {
			proof, err := mt.Proof(gctx, tree, u.Position)
			if err != nil {
				return fmt.Errorf("merkle proof for tree %d position %d: %w", tree, u.Position, err)
			}
			nullifier, err := note.Nullifier(t.suite, nullifyingKey, u.Position)
			if err != nil {
				return err
			}
			nullifiers[i] = nullifier
			pathElements[i] = proof.Elements
			leavesIndices[i] = new(big.Int).SetUint64(u.Position)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totalIn := solver.Sum(utxos)
	change := new(big.Int).Sub(totalIn, totalRequired)

	shieldedCount := len(t.outputs)
	emitChange := change.Sign() > 0 || t.opts.EmitZeroChange
	if emitChange {
		shieldedCount++
	}
	rnd, err := t.draw(shieldedCount)
	if err != nil {
		return nil, err
	}

	shielded := append([]*note.Note(nil), t.outputs...)
	if emitChange {
		changeNote, err := note.NewNote(w.AddressKeys(), rnd.change, change, t.token)
		if err != nil {
			return nil, fmt.Errorf("change note: %w", err)
		}
		shielded = append(shielded, changeNote)
	}
	outputs := make([]note.Output, 0, len(shielded)+1)
	for _, n := range shielded {
		outputs = append(outputs, n)
	}
	if t.withdrawFlag != boundparams.NoWithdraw {
		outputs = append(outputs, t.withdrawNote)
	}

	ciphertexts, err := t.encryptOutputs(ctx, viewing, shielded, rnd)
	if err != nil {
		return nil, err
	}

	bp := &boundparams.BoundParams{
		TreeNumber:           uint16(tree),
		Withdraw:             uint8(t.withdrawFlag),
		AdaptContract:        t.adapt.Contract,
		AdaptParams:          t.adapt.Parameters,
		CommitmentCiphertext: ciphertexts,
	}
	bpHash, err := bp.Hash()
	if err != nil {
		return nil, err
	}

	commitments := make([]*big.Int, len(outputs))
	npkOut := make([]*big.Int, len(outputs))
	valueOut := make([]*big.Int, len(outputs))
	for k, o := range outputs {
		if commitments[k], err = o.Commitment(t.suite); err != nil {
			return nil, fmt.Errorf("commitment of output %d: %w", k, err)
		}
		if npkOut[k], err = o.NotePublicKey(t.suite); err != nil {
			return nil, fmt.Errorf("note public key of output %d: %w", k, err)
		}
		valueOut[k] = new(big.Int).Set(o.Amount())
	}

	pub := &prover.PublicInputs{
		MerkleRoot:      merkleRoot,
		BoundParamsHash: bpHash,
		Nullifiers:      nullifiers,
		CommitmentsOut:  commitments,
	}
	digest, err := pub.Digest(t.suite)
	if err != nil {
		return nil, err
	}
	sig, err := note.SignDigest(t.suite, digest, spending.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("sign public inputs: %w", err)
	}

	tokenHash, err := t.token.Hash()
	if err != nil {
		return nil, err
	}
	randomIn := make([]*big.Int, len(utxos))
	valueIn := make([]*big.Int, len(utxos))
	for i, u := range utxos {
		randomIn[i] = u.Note.RandomInt()
		valueIn[i] = new(big.Int).Set(u.Note.Value)
	}

	return &Inputs{
		Private: &prover.PrivateInputs{
			Token:         tokenHash,
			RandomIn:      randomIn,
			ValueIn:       valueIn,
			PathElements:  pathElements,
			LeavesIndices: leavesIndices,
			ValueOut:      valueOut,
			PublicKey:     [2]*big.Int{spending.PublicKey.X, spending.PublicKey.Y},
			NPKOut:        npkOut,
			NullifyingKey: nullifyingKey,
			Signature:     [3]*big.Int{sig.R8.X, sig.R8.Y, sig.S},
		},
		Public:       pub,
		BoundParams:  bp,
		SpendingTree: tree,
		Outputs:      outputs,
	}, nil
}

// encryptOutputs encrypts each shielded output concurrently and returns the ciphertexts in output order.
func (t *Transaction) encryptOutputs(ctx context.Context, viewing *keys.ViewingKeyPair, shielded []*note.Note, rnd *randomness) ([]boundparams.CommitmentCiphertext, error) {
	out := make([]boundparams.CommitmentCiphertext, len(shielded))
	g, _ := errgroup.WithContext(ctx)
	for k, n := range shielded {
		g.Go(func() error {
			forRecipient, forSender, err := keys.EphemeralKeys(t.suite, bytes.NewReader(rnd.ephemeral[k]), viewing.PublicKey, n.Recipient.ViewingPublicKey)
			if err != nil {
				return fmt.Errorf("%w: output %d: %v", ErrMissingSharedKey, k, err)
			}
			shared, err := keys.SharedSymmetricKey(t.suite, viewing.PrivateKey, forSender)
			if err != nil || len(shared) == 0 {
				return fmt.Errorf("%w: output %d: %v", ErrMissingSharedKey, k, err)
			}
			ct, err := n.Encrypt(t.suite, shared, rnd.ivs[k])
			if err != nil {
				return fmt.Errorf("encrypt output %d: %w", k, err)
			}
			words, err := note.PackCiphertext(ct)
			if err != nil {
				return fmt.Errorf("pack output %d: %w", k, err)
			}
			out[k] = boundparams.CommitmentCiphertext{
				Ciphertext: words,
				EphemeralKeys: [2]*big.Int{
					new(big.Int).SetBytes(forRecipient),
					new(big.Int).SetBytes(forSender),
				},
				Memo: []*big.Int{},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Prove generates inputs, proves them and returns the submission record.
func (t *Transaction) Prove(ctx context.Context, p prover.Prover, w Wallet, mt MerkleTree, encryptionKey []byte) (*SerializedTransaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in, err := t.generate(ctx, w, mt, encryptionKey)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	proof, err := p.Prove(ctx, in.Public.Clone(), in.Private.Clone())
	t.opts.Observer.Proved(observe.KindReal, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}
	t.state = Proved
	return Serialize(proof, in.Public, in.BoundParams, t.overrideOutput, t.withdrawNote.Preimage()), nil
}

// DummyProve returns the submission record with a zero proof, for cost estimation only. The result
// never verifies and must not be submitted.
func (t *Transaction) DummyProve(ctx context.Context, w Wallet, mt MerkleTree, encryptionKey []byte) (*SerializedTransaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in, err := t.generate(ctx, w, mt, encryptionKey)
	if err != nil {
		return nil, err
	}
	t.opts.Observer.Proved(observe.KindDummy, 0, nil)
	return Serialize(prover.ZeroProof(), in.Public, in.BoundParams, t.overrideOutput, t.withdrawNote.Preimage()), nil
}
