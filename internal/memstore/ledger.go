// ledger.go - Append-only public ledger of shielded transactions.
//
// The Ledger owns the commitment trees, records every nullifier and rejects double spends. It only
// accepts transactions whose merkle root it has seen for the spending tree and never accepts a
// placeholder proof. With a Verifier set, proofs are checked before anything is applied.

package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"shieldtx/internal/boundparams"
	"shieldtx/internal/merkletree"
	"shieldtx/internal/note"
	"shieldtx/internal/primitives"
	"shieldtx/internal/prover"
	"shieldtx/internal/txbuilder"
)

var (
	ErrDoubleSpend  = errors.New("double-spend detected: nullifier already in ledger")
	ErrUnknownRoot  = errors.New("merkle root is not a known root of the spending tree")
	ErrDummyProof   = errors.New("transaction carries a dummy proof")
	ErrInvalidProof = errors.New("invalid transaction proof")
)

// Verifier checks a proof against public inputs.
type Verifier interface {
	Verify(pub *prover.PublicInputs, depth int, proof *prover.Proof) error
}

// Withdrawal is a public payout made by a transaction.
type Withdrawal struct {
	To    common.Address `json:"to"`
	Value *big.Int       `json:"value"`
	Token note.TokenData `json:"token"`
}

// Entry is one applied batch of commitments: a shield or a transaction.
type Entry struct {
	Tree        int                              `json:"tree"`
	Start       uint64                           `json:"start"`
	Commitments []*big.Int                       `json:"commitments"`
	Nullifiers  []*big.Int                       `json:"nullifiers,omitempty"`
	Transaction *txbuilder.SerializedTransaction `json:"transaction,omitempty"`
	Withdrawal  *Withdrawal                      `json:"withdrawal,omitempty"`
}

// Ledger is the canonical, append-only public ledger.
type Ledger struct {
	Entries []*Entry `json:"entries"`

	mu         sync.RWMutex
	tree       *merkletree.Tree
	nullifiers map[string]struct{}
	roots      map[int]map[string]struct{}
	verifier   Verifier
}

// NewLedger creates an empty ledger over trees of the given depth.
func NewLedger(h primitives.Hasher, depth int) (*Ledger, error) {
	tree, err := merkletree.New(h, depth)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		tree:       tree,
		nullifiers: make(map[string]struct{}),
		roots:      make(map[int]map[string]struct{}),
	}
	empty, _ := tree.Root(context.Background(), 0)
	l.roots[0] = map[string]struct{}{empty.String(): {}}
	return l, nil
}

// SetVerifier makes AppendTx check proofs.
func (l *Ledger) SetVerifier(v Verifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verifier = v
}

// Tree exposes the commitment trees for root and proof lookups.
func (l *Ledger) Tree() *merkletree.Tree { return l.tree }

// Root implements txbuilder.MerkleTree.
func (l *Ledger) Root(ctx context.Context, tree int) (*big.Int, error) {
	return l.tree.Root(ctx, tree)
}

// Proof implements txbuilder.MerkleTree.
func (l *Ledger) Proof(ctx context.Context, tree int, position uint64) (*merkletree.Proof, error) {
	return l.tree.Proof(ctx, tree, position)
}

// HasNullifier returns true if the nullifier is already in the ledger.
func (l *Ledger) HasNullifier(n *big.Int) bool {
	if n == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.nullifiers[n.String()]
	return ok
}

// insert appends commitments and records the new root. Callers hold l.mu.
func (l *Ledger) insert(commitments []*big.Int) (int, uint64, error) {
	tree, start, err := l.tree.Insert(commitments...)
	if err != nil {
		return 0, 0, err
	}
	root, err := l.tree.Root(context.Background(), tree)
	if err != nil {
		return 0, 0, err
	}
	if l.roots[tree] == nil {
		l.roots[tree] = make(map[string]struct{})
	}
	l.roots[tree][root.String()] = struct{}{}
	return tree, start, nil
}

// Shield deposits commitments directly, as a public deposit would.
func (l *Ledger) Shield(commitments ...*big.Int) (int, uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tree, start, err := l.insert(commitments)
	if err != nil {
		return 0, 0, err
	}
	l.Entries = append(l.Entries, &Entry{Tree: tree, Start: start, Commitments: commitments})
	return tree, start, nil
}

// AppendTx applies a transaction. It checks for double spends and unknown roots, verifies the proof
// when a Verifier is set, then inserts the shielded commitments. The withdraw commitment, if any, is
// paid out instead of inserted. Returns where the shielded commitments landed.
func (l *Ledger) AppendTx(tx *txbuilder.SerializedTransaction) (int, uint64, error) {
	if tx.IsDummy() {
		return 0, 0, ErrDummyProof
	}
	pub, err := tx.PublicInputs()
	if err != nil {
		return 0, 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{}, len(tx.Nullifiers))
	for _, n := range tx.Nullifiers {
		key := n.String()
		if _, ok := l.nullifiers[key]; ok {
			return 0, 0, ErrDoubleSpend
		}
		if _, ok := seen[key]; ok {
			return 0, 0, ErrDoubleSpend
		}
		seen[key] = struct{}{}
	}
	spendingTree := int(tx.BoundParams.TreeNumber)
	if _, ok := l.roots[spendingTree][tx.MerkleRoot.String()]; !ok {
		return 0, 0, ErrUnknownRoot
	}
	if l.verifier != nil {
		if err := l.verifier.Verify(pub, l.tree.Depth(), prover.UnformatProof(tx.Proof)); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrInvalidProof, err)
		}
	}

	shielded := len(tx.BoundParams.CommitmentCiphertext)
	if shielded > len(tx.Commitments) {
		return 0, 0, fmt.Errorf("%w: more ciphertexts than commitments", boundparams.ErrInvalidParams)
	}
	var withdrawal *Withdrawal
	switch boundparams.WithdrawFlag(tx.BoundParams.Withdraw) {
	case boundparams.Withdraw, boundparams.Override:
		pre := tx.WithdrawPreimage
		to := common.BytesToAddress(common.FromHex(pre.NPK))
		if boundparams.WithdrawFlag(tx.BoundParams.Withdraw) == boundparams.Override {
			to = tx.OverrideOutput
		}
		withdrawal = &Withdrawal{To: to, Value: pre.Value, Token: pre.Token}
	}

	tree, start, err := l.insert(tx.Commitments[:shielded])
	if err != nil {
		return 0, 0, err
	}
	for key := range seen {
		l.nullifiers[key] = struct{}{}
	}
	l.Entries = append(l.Entries, &Entry{
		Tree:        tree,
		Start:       start,
		Commitments: tx.Commitments[:shielded],
		Nullifiers:  tx.Nullifiers,
		Transaction: tx,
		Withdrawal:  withdrawal,
	})
	return tree, start, nil
}

// Withdrawals returns every public payout so far.
func (l *Ledger) Withdrawals() []Withdrawal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Withdrawal
	for _, e := range l.Entries {
		if e.Withdrawal != nil {
			out = append(out, *e.Withdrawal)
		}
	}
	return out
}

// SaveToFile saves the ledger to a JSON file, overwriting it.
func (l *Ledger) SaveToFile(path string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}

// LoadLedgerFromFile loads a ledger and replays its entries into fresh trees.
func LoadLedgerFromFile(path string, h primitives.Hasher, depth int) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var saved Ledger
	if err := json.NewDecoder(f).Decode(&saved); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	l, err := NewLedger(h, depth)
	if err != nil {
		return nil, err
	}
	for i, e := range saved.Entries {
		tree, start, err := l.insert(e.Commitments)
		if err != nil {
			return nil, fmt.Errorf("replay entry %d: %w", i, err)
		}
		if tree != e.Tree || start != e.Start {
			return nil, fmt.Errorf("replay entry %d: landed at %d/%d, recorded %d/%d", i, tree, start, e.Tree, e.Start)
		}
		for _, n := range e.Nullifiers {
			l.nullifiers[n.String()] = struct{}{}
		}
		l.Entries = append(l.Entries, e)
	}
	return l, nil
}
