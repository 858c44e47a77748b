// solver.go - Input selection for spending notes.
//
// Selection never mixes trees: a transaction proves membership against a single merkle root, so all
// inputs must come from the same tree. Trees are tried in ascending order and the first one that can
// cover the requested amount wins.

package solver

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"shieldtx/internal/note"
)

// DefaultMaxInputs is the largest input count the circuits are compiled for.
const DefaultMaxInputs = 10

var ErrInsufficientBalance = errors.New("insufficient balance")

// Reason says why no selection exists.
type Reason int

const (
	// Shortfall means the total balance across every tree is below the amount.
	Shortfall Reason = iota
	// Fragmented means the total is enough but no single tree holds it.
	Fragmented
	// InputLimit means a tree holds enough but covering the amount takes more than the maximum
	// number of inputs.
	InputLimit
)

// InsufficientBalanceError carries the totals that made selection fail.
type InsufficientBalanceError struct {
	Reason    Reason
	Required  *big.Int
	Available *big.Int
	MaxInputs int
}

func (e *InsufficientBalanceError) Error() string {
	switch e.Reason {
	case Fragmented:
		return fmt.Sprintf("insufficient balance in any single tree for %s (total %s): balance consolidation is required", e.Required, e.Available)
	case InputLimit:
		return fmt.Sprintf("%s cannot be covered with at most %d inputs (total %s): note consolidation is required", e.Required, e.MaxInputs, e.Available)
	}
	return fmt.Sprintf("insufficient balance: required %s, available %s", e.Required, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// UTXO is an unspent note at a known leaf.
type UTXO struct {
	Tree     int        `json:"tree"`
	Position uint64     `json:"position"`
	Note     *note.Note `json:"note"`
}

func (u UTXO) value() *big.Int {
	if u.Note == nil || u.Note.Value == nil {
		return new(big.Int)
	}
	return u.Note.Value
}

// TreeBalance groups the unspent notes of one token in one tree.
type TreeBalance struct {
	Tree  int    `json:"tree"`
	UTXOs []UTXO `json:"utxos"`
}

// Balance sums the tree's UTXOs.
func (b TreeBalance) Balance() *big.Int {
	return Sum(b.UTXOs)
}

// Sum adds up UTXO values.
func Sum(utxos []UTXO) *big.Int {
	total := new(big.Int)
	for _, u := range utxos {
		total.Add(total, u.value())
	}
	return total
}

// FindSolution picks inputs covering required from one tree, or returns nil.
//
// A single UTXO that covers the amount is preferred, the smallest such one; ties keep input order.
// Otherwise UTXOs are taken largest first until the amount is reached. At least one UTXO is always
// selected so a zero-value transfer still spends something.
func FindSolution(utxos []UTXO, required *big.Int, maxInputs int) []UTXO {
	if len(utxos) == 0 || maxInputs <= 0 {
		return nil
	}
	if required == nil {
		required = new(big.Int)
	}

	best := -1
	for i, u := range utxos {
		if u.value().Cmp(required) < 0 {
			continue
		}
		if best < 0 || u.value().Cmp(utxos[best].value()) < 0 {
			best = i
		}
	}
	if best >= 0 {
		return []UTXO{utxos[best]}
	}

	sorted := append([]UTXO(nil), utxos...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].value().Cmp(sorted[j].value()) > 0
	})
	total := new(big.Int)
	for i, u := range sorted {
		if i == maxInputs {
			return nil
		}
		total.Add(total, u.value())
		if total.Cmp(required) >= 0 {
			return sorted[:i+1]
		}
	}
	return nil
}

// SelectUTXOs returns the first tree, in ascending tree order, that has a solution. With no solution the
// error reason is Shortfall when the total is too low, InputLimit when some tree holds enough but needs
// more than maxInputs notes, and Fragmented otherwise.
func SelectUTXOs(trees []TreeBalance, required *big.Int, maxInputs int) (int, []UTXO, error) {
	if required == nil {
		required = new(big.Int)
	}
	ordered := append([]TreeBalance(nil), trees...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Tree < ordered[j].Tree })

	total := new(big.Int)
	for _, t := range ordered {
		total.Add(total, t.Balance())
	}
	if len(ordered) == 0 || total.Cmp(required) < 0 {
		return 0, nil, &InsufficientBalanceError{Reason: Shortfall, Required: new(big.Int).Set(required), Available: total, MaxInputs: maxInputs}
	}

	reason := Fragmented
	for _, t := range ordered {
		if sel := FindSolution(t.UTXOs, required, maxInputs); sel != nil {
			return t.Tree, sel, nil
		}
		if t.Balance().Cmp(required) >= 0 {
			reason = InputLimit
		}
	}
	return 0, nil, &InsufficientBalanceError{Reason: reason, Required: new(big.Int).Set(required), Available: total, MaxInputs: maxInputs}
}
