// merkletree.go - In-memory incremental commitment trees.
//
// Commitments are appended to fixed-depth binary trees. A batch that does not fit in the current tree
// starts the next one, so a transaction's outputs always share a tree. Empty leaves hold
// keccak256("Railgun") mod p and empty subtrees the hash of two empty children.

package merkletree

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"shieldtx/internal/codec"
	"shieldtx/internal/primitives"
)

// DefaultDepth is the depth of the on-chain trees.
const DefaultDepth = 16

var (
	ErrUnknownTree     = errors.New("unknown merkle tree")
	ErrUnknownPosition = errors.New("leaf position not in tree")
)

// ZeroValue is the empty-leaf value.
func ZeroValue() *big.Int {
	return codec.ReduceToField(crypto.Keccak256([]byte("Railgun")))
}

// Proof is an inclusion proof. Elements are the siblings from leaf to root; bit i of Indices is 1
// when the path goes through a right child at level i.
type Proof struct {
	Leaf     *big.Int   `json:"leaf"`
	Elements []*big.Int `json:"elements"`
	Indices  *big.Int   `json:"indices"`
	Root     *big.Int   `json:"root"`
}

type tree struct {
	// levels[0] are the leaves; levels[depth] holds the root once anything is inserted.
	levels [][]*big.Int
}

// Tree is a sequence of fixed-depth trees. It is safe for concurrent use.
type Tree struct {
	hasher primitives.Hasher
	depth  int
	zeros  []*big.Int

	mu    sync.RWMutex
	trees []*tree
}

// New returns an empty tree set. depth <= 0 selects DefaultDepth.
func New(h primitives.Hasher, depth int) (*Tree, error) {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if depth > 32 {
		return nil, fmt.Errorf("merkle depth %d too large", depth)
	}
	zeros := make([]*big.Int, depth+1)
	zeros[0] = ZeroValue()
	for i := 1; i <= depth; i++ {
		z, err := h.Hash(zeros[i-1], zeros[i-1])
		if err != nil {
			return nil, fmt.Errorf("zero subtree %d: %w", i, err)
		}
		zeros[i] = z
	}
	return &Tree{hasher: h, depth: depth, zeros: zeros}, nil
}

func (t *Tree) Depth() int { return t.depth }

func (t *Tree) capacity() uint64 { return uint64(1) << uint(t.depth) }

func (t *Tree) newTree() *tree {
	return &tree{levels: make([][]*big.Int, t.depth+1)}
}

func (t *Tree) node(tr *tree, level int, index uint64) *big.Int {
	if index < uint64(len(tr.levels[level])) {
		return tr.levels[level][index]
	}
	return t.zeros[level]
}

// Insert appends leaves and returns the tree and position of the first one.
func (t *Tree) Insert(leaves ...*big.Int) (int, uint64, error) {
	if uint64(len(leaves)) > t.capacity() {
		return 0, 0, fmt.Errorf("batch of %d leaves exceeds tree capacity", len(leaves))
	}
	for _, l := range leaves {
		if err := codec.CheckField(l); err != nil {
			return 0, 0, fmt.Errorf("insert leaf: %w", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.trees) == 0 || uint64(len(t.trees[len(t.trees)-1].levels[0]))+uint64(len(leaves)) > t.capacity() {
		t.trees = append(t.trees, t.newTree())
	}
	treeNumber := len(t.trees) - 1
	tr := t.trees[treeNumber]
	start := uint64(len(tr.levels[0]))

	for _, leaf := range leaves {
		index := uint64(len(tr.levels[0]))
		tr.levels[0] = append(tr.levels[0], new(big.Int).Set(leaf))
		for level := 0; level < t.depth; level++ {
			parent := index / 2
			left := t.node(tr, level, parent*2)
			right := t.node(tr, level, parent*2+1)
			h, err := t.hasher.Hash(left, right)
			if err != nil {
				return 0, 0, fmt.Errorf("hash level %d: %w", level, err)
			}
			if parent < uint64(len(tr.levels[level+1])) {
				tr.levels[level+1][parent] = h
			} else {
				tr.levels[level+1] = append(tr.levels[level+1], h)
			}
			index = parent
		}
	}
	return treeNumber, start, nil
}

// Root returns the current root of a tree. A tree that does not exist yet has the empty root.
func (t *Tree) Root(_ context.Context, treeNumber int) (*big.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if treeNumber < 0 {
		return nil, ErrUnknownTree
	}
	if treeNumber >= len(t.trees) {
		return new(big.Int).Set(t.zeros[t.depth]), nil
	}
	return new(big.Int).Set(t.node(t.trees[treeNumber], t.depth, 0)), nil
}

// Proof returns the inclusion proof of a leaf.
func (t *Tree) Proof(_ context.Context, treeNumber int, position uint64) (*Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if treeNumber < 0 || treeNumber >= len(t.trees) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTree, treeNumber)
	}
	tr := t.trees[treeNumber]
	if position >= uint64(len(tr.levels[0])) {
		return nil, fmt.Errorf("%w: tree %d position %d", ErrUnknownPosition, treeNumber, position)
	}
	elements := make([]*big.Int, t.depth)
	index := position
	for level := 0; level < t.depth; level++ {
		elements[level] = new(big.Int).Set(t.node(tr, level, index^1))
		index /= 2
	}
	return &Proof{
		Leaf:     new(big.Int).Set(tr.levels[0][position]),
		Elements: elements,
		Indices:  new(big.Int).SetUint64(position),
		Root:     new(big.Int).Set(t.node(tr, t.depth, 0)),
	}, nil
}

// Verify recomputes the root from a proof.
func Verify(h primitives.Hasher, p *Proof) (bool, error) {
	node := p.Leaf
	for level, sibling := range p.Elements {
		var err error
		if p.Indices.Bit(level) == 1 {
			node, err = h.Hash(sibling, node)
		} else {
			node, err = h.Hash(node, sibling)
		}
		if err != nil {
			return false, err
		}
	}
	return node.Cmp(p.Root) == 0, nil
}

// Leaves returns a copy of a tree's leaves.
func (t *Tree) Leaves(treeNumber int) []*big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if treeNumber < 0 || treeNumber >= len(t.trees) {
		return nil
	}
	out := make([]*big.Int, len(t.trees[treeNumber].levels[0]))
	for i, l := range t.trees[treeNumber].levels[0] {
		out[i] = new(big.Int).Set(l)
	}
	return out
}

// Trees returns the number of trees.
func (t *Tree) Trees() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.trees)
}
