// wallet.go - In-memory wallet with JSON persistence.
//
// Holds one account's keys and recognized notes. The spending private key is only stored encrypted
// under the caller's encryption key; everything needed to scan and balance is kept in clear.
// Notes are recognized by trial decryption of published output ciphertexts.

package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"
	"sync"

	"shieldtx/internal/codec"
	"shieldtx/internal/encryption"
	"shieldtx/internal/keys"
	"shieldtx/internal/note"
	"shieldtx/internal/primitives"
	"shieldtx/internal/solver"
	"shieldtx/internal/txbuilder"
)

var ErrWrongEncryptionKey = errors.New("wrong wallet encryption key")

// OwnedNote is a note the wallet can spend, at its leaf.
type OwnedNote struct {
	Tree      int        `json:"tree"`
	Position  uint64     `json:"position"`
	Note      *note.Note `json:"note"`
	Nullifier *big.Int   `json:"nullifier"`
	Spent     bool       `json:"spent"`
}

// Wallet stores a participant's keys and recognized notes.
type Wallet struct {
	Name                 string                 `json:"name"`
	Suite                string                 `json:"suite"`
	EncryptedSpendingKey *encryption.Ciphertext `json:"encryptedSpendingKey"`
	SpendingPublicKey    primitives.Point       `json:"spendingPublicKey"`
	Viewing              *keys.ViewingKeyPair   `json:"viewing"`
	Nullifying           *big.Int               `json:"nullifyingKey"`
	Notes                []*OwnedNote           `json:"notes"`

	mu    sync.RWMutex
	suite primitives.Suite
}

// NewWallet creates a wallet with fresh keys, sealing the spending key under encryptionKey.
func NewWallet(name string, suite primitives.Suite, encryptionKey []byte) (*Wallet, error) {
	spending, err := keys.GenerateSpendingKeyPair(suite)
	if err != nil {
		return nil, err
	}
	viewing, err := keys.GenerateViewingKeyPair(suite)
	if err != nil {
		return nil, err
	}
	nk, err := keys.RandomScalar(suite)
	if err != nil {
		return nil, err
	}
	return FromKeys(name, suite, spending, viewing, nk, encryptionKey)
}

// FromKeys creates a wallet from existing key material.
func FromKeys(name string, suite primitives.Suite, spending *keys.SpendingKeyPair, viewing *keys.ViewingKeyPair, nullifyingKey *big.Int, encryptionKey []byte) (*Wallet, error) {
	sealed, err := encryption.Encrypt(encryptionKey, [][]byte{spending.PrivateKey})
	if err != nil {
		return nil, fmt.Errorf("seal spending key: %w", err)
	}
	return &Wallet{
		Name:                 name,
		Suite:                suite.Name(),
		EncryptedSpendingKey: sealed,
		SpendingPublicKey:    spending.PublicKey,
		Viewing:              viewing,
		Nullifying:           new(big.Int).Set(nullifyingKey),
		suite:                suite,
	}, nil
}

// SpendingKeyPair unseals the spending key.
func (w *Wallet) SpendingKeyPair(_ context.Context, encryptionKey []byte) (*keys.SpendingKeyPair, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	blocks, err := encryption.Decrypt(w.EncryptedSpendingKey, encryptionKey)
	if err != nil {
		if errors.Is(err, encryption.ErrDecryption) || errors.Is(err, encryption.ErrInvalidKey) {
			return nil, fmt.Errorf("%w: %v", ErrWrongEncryptionKey, err)
		}
		return nil, err
	}
	if len(blocks) != 1 {
		return nil, encryption.ErrInvalidBlock
	}
	return &keys.SpendingKeyPair{PrivateKey: blocks[0], PublicKey: w.SpendingPublicKey}, nil
}

func (w *Wallet) NullifyingKey() *big.Int {
	return new(big.Int).Set(w.Nullifying)
}

func (w *Wallet) ViewingKeyPair() *keys.ViewingKeyPair {
	return w.Viewing
}

// AddressKeys is what senders need to pay this wallet.
func (w *Wallet) AddressKeys() note.AddressKeys {
	return note.AddressKeys{SpendingPublicKey: w.SpendingPublicKey, ViewingPublicKey: w.Viewing.PublicKey}
}

// AddNote records a note owned by this wallet at (tree, position).
func (w *Wallet) AddNote(tree int, position uint64, n *note.Note) error {
	nullifier, err := note.Nullifier(w.suite, w.Nullifying, position)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range w.Notes {
		if o.Tree == tree && o.Position == position {
			return nil
		}
	}
	w.Notes = append(w.Notes, &OwnedNote{Tree: tree, Position: position, Note: n, Nullifier: nullifier})
	return nil
}

// BalancesByTree groups unspent notes of token by tree, trees ascending and notes in leaf order.
func (w *Wallet) BalancesByTree(_ context.Context, token note.TokenData) ([]solver.TreeBalance, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	byTree := make(map[int][]solver.UTXO)
	for _, o := range w.Notes {
		if o.Spent || !o.Note.Token.Equal(token) {
			continue
		}
		byTree[o.Tree] = append(byTree[o.Tree], solver.UTXO{Tree: o.Tree, Position: o.Position, Note: o.Note})
	}
	out := make([]solver.TreeBalance, 0, len(byTree))
	for tree, utxos := range byTree {
		sort.Slice(utxos, func(i, j int) bool { return utxos[i].Position < utxos[j].Position })
		out = append(out, solver.TreeBalance{Tree: tree, UTXOs: utxos})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tree < out[j].Tree })
	return out, nil
}

// Balance sums unspent notes of token.
func (w *Wallet) Balance(ctx context.Context, token note.TokenData) *big.Int {
	trees, _ := w.BalancesByTree(ctx, token)
	total := new(big.Int)
	for _, t := range trees {
		total.Add(total, t.Balance())
	}
	return total
}

// tokenFromHash recovers token data from a commitment's token field. ERC20 token fields are the address
// itself; other tokens must be among known.
func tokenFromHash(h *big.Int, known []note.TokenData) (note.TokenData, bool) {
	for _, k := range known {
		if kh, err := k.Hash(); err == nil && kh.Cmp(h) == 0 {
			return k, true
		}
	}
	if h.BitLen() > int(codec.Address)*8 {
		return note.TokenData{}, false
	}
	hexAddr, err := codec.NToHex(h, codec.Address, true)
	if err != nil {
		return note.TokenData{}, false
	}
	t, err := note.NewERC20(hexAddr)
	return t, err == nil
}

// ScanTransaction trial-decrypts the shielded outputs of tx. Outputs are assumed inserted at
// tree, start, start+1, ... in commitment order. It returns the number of notes recognized.
func (w *Wallet) ScanTransaction(tx *txbuilder.SerializedTransaction, tree int, start uint64, known ...note.TokenData) (int, error) {
	if tx.BoundParams == nil {
		return 0, nil
	}
	found := 0
	for i, c := range tx.BoundParams.CommitmentCiphertext {
		if i >= len(tx.Commitments) {
			break
		}
		ephemeral, err := codec.NToBytes(c.EphemeralKeys[0], codec.Uint256)
		if err != nil {
			return found, err
		}
		shared, err := keys.SharedSymmetricKey(w.suite, w.Viewing.PrivateKey, ephemeral)
		if err != nil {
			continue
		}
		ct, err := note.UnpackCiphertext(c.Ciphertext)
		if err != nil {
			return found, err
		}
		pt, err := note.Decrypt(ct, shared)
		if errors.Is(err, encryption.ErrDecryption) {
			continue
		}
		if err != nil {
			return found, err
		}
		token, ok := tokenFromHash(pt.TokenHash, known)
		if !ok {
			continue
		}
		n, err := pt.Open(w.suite, w.AddressKeys(), token)
		if err != nil {
			continue
		}
		cm, err := n.Commitment(w.suite)
		if err != nil || cm.Cmp(tx.Commitments[i]) != 0 {
			continue
		}
		if err := w.AddNote(tree, start+uint64(i), n); err != nil {
			return found, err
		}
		found++
	}
	return found, nil
}

// CheckNoteStatusAgainstLedger marks notes whose nullifiers the ledger has seen as spent.
func (w *Wallet) CheckNoteStatusAgainstLedger(l *Ledger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range w.Notes {
		if !o.Spent && l.HasNullifier(o.Nullifier) {
			o.Spent = true
		}
	}
}

// Save saves the wallet to a JSON file.
func (w *Wallet) Save(path string) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(w)
}

// LoadWallet loads a wallet from a JSON file.
func LoadWallet(path string) (*Wallet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var w Wallet
	if err := json.NewDecoder(f).Decode(&w); err != nil {
		return nil, fmt.Errorf("decode wallet: %w", err)
	}
	if w.suite, err = primitives.ByName(w.Suite); err != nil {
		return nil, err
	}
	if w.Viewing == nil || w.Nullifying == nil || w.EncryptedSpendingKey == nil {
		return nil, errors.New("wallet file is missing key material")
	}
	return &w, nil
}
