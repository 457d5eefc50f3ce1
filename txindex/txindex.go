// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txindex implements the wallet's local transaction index: a
// hash-keyed map of WalletTx records, the AddToWallet merge rule that
// keeps that map up to date as transactions are observed from the
// mempool or blocks, and the IsConfirmed predicate used to decide
// whether a transaction's coins are safe to spend.
package txindex

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/libcoin/wallet/codec"
)

const maxContainer = 1 << 20

// Chain is the subset of the external chain facade this package needs
// in order to merge transactions and evaluate confirmation status.
// Implementations are expected to be backed by a full node, an SPV
// client, or a test double.
type Chain interface {
	// IsFinal reports whether tx's lock time and sequence numbers
	// allow it to be included in the next block.
	IsFinal(tx *wire.MsgTx) bool

	// Depth returns the number of confirmations for the transaction
	// identified by hash. It returns 0 if the transaction is known
	// but unconfirmed, and a negative number if hash is unknown.
	Depth(hash chainhash.Hash) int32
}

// WalletTx augments a transaction with the bookkeeping the wallet
// needs to track its own confirmation status, relay ancestry, and
// which of its outputs have already been spent.
type WalletTx struct {
	Tx *wire.MsgTx

	// BlockHash is the zero hash until the transaction is observed
	// in a block.
	BlockHash chainhash.Hash

	// MerkleBranch and Index locate Tx within BlockHash's merkle
	// tree; Index is -1 until a merkle branch has been computed.
	MerkleBranch []chainhash.Hash
	Index        int

	TimeReceived time.Time

	// FromMe is true if any input of Tx spends a coin this wallet
	// controls.
	FromMe bool

	// SpentBitmap has one entry per output in Tx; SpentBitmap[i] is
	// true once output i has been observed spent by some other
	// transaction this wallet has indexed.
	SpentBitmap []bool

	// VtxPrev holds the ancestor transactions a from-me transaction
	// depends on, carried along so they can be relayed or walked by
	// IsConfirmed without a round trip to the index.
	VtxPrev []*WalletTx
}

// Hash returns the transaction's double-SHA256 hash, the index's
// lookup key for this record.
func (wtx *WalletTx) Hash() chainhash.Hash {
	return wtx.Tx.TxHash()
}

// clone returns a shallow copy of wtx suitable for insertion into the
// index; MerkleBranch, SpentBitmap, and VtxPrev are fresh slices so
// later merges do not alias the caller's copy, while Tx and the
// VtxPrev entries themselves are shared.
func (wtx *WalletTx) clone() *WalletTx {
	cp := *wtx
	cp.MerkleBranch = append([]chainhash.Hash(nil), wtx.MerkleBranch...)
	cp.SpentBitmap = append([]bool(nil), wtx.SpentBitmap...)
	cp.VtxPrev = append([]*WalletTx(nil), wtx.VtxPrev...)
	return &cp
}

// newSpentBitmap returns a bitmap sized to tx's output count, all
// unspent.
func newSpentBitmap(tx *wire.MsgTx) []bool {
	return make([]bool, len(tx.TxOut))
}

// Index is the in-memory map from transaction hash to WalletTx,
// equivalent to the original wallet's mapWallet. It is safe for
// concurrent use.
type Index struct {
	mu  sync.RWMutex
	txs map[chainhash.Hash]*WalletTx

	// IsMine and IsFromMe classify an output/transaction as
	// belonging to this wallet. They are supplied by the caller
	// (typically backed by a keystore.KeyStore) rather than baked
	// into this package, since ownership of a script is a wallet
	// concern, not an indexing concern.
	IsMine   func(*wire.TxOut) bool
	IsFromMe func(*wire.MsgTx) bool

	// Store persists records as they are merged. A nil Store keeps
	// the index memory-only, useful for tests.
	Store Store

	// OnRotateDefaultKey is invoked when AddToWallet observes an
	// output paying the wallet's current default receiving address;
	// it should return a fresh public key to install as the new
	// default, or nil if none is available (e.g. the wallet is
	// locked). Left nil, AddToWallet never rotates the default key.
	OnRotateDefaultKey func() []byte

	defaultKey []byte
}

// New returns an empty Index. isMine and isFromMe classify outputs
// and transactions as belonging to the wallet; store, if non-nil,
// receives every merged record.
func New(isMine func(*wire.TxOut) bool, isFromMe func(*wire.MsgTx) bool, store Store) *Index {
	return &Index{
		txs:      make(map[chainhash.Hash]*WalletTx),
		IsMine:   isMine,
		IsFromMe: isFromMe,
		Store:    store,
	}
}

// SetDefaultKey records the wallet's current default receiving
// public key, the one AddToWallet watches for incoming payments to.
func (idx *Index) SetDefaultKey(pub []byte) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.defaultKey = pub
}

// Load installs recs as the index's initial state, as read back from
// WalletDB on startup. It does not persist anything back to Store.
func (idx *Index) Load(recs map[chainhash.Hash]*WalletTx) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.txs = recs
}

// Get returns the indexed record for hash, or nil if none exists.
func (idx *Index) Get(hash chainhash.Hash) *WalletTx {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.txs[hash]
}

// Len returns the number of transactions currently indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.txs)
}

// All invokes fn once per indexed transaction. fn must not mutate the
// index.
func (idx *Index) All(fn func(*WalletTx)) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, wtx := range idx.txs {
		fn(wtx)
	}
}

// payOut reports whether any output of tx pays pub's address.
//
// AddToWallet is called under idx.mu already held for writing; this
// helper must not attempt to re-acquire it.
func (idx *Index) payOut(tx *wire.MsgTx, pub []byte) bool {
	if pub == nil {
		return false
	}
	for _, out := range tx.TxOut {
		if scriptPaysKey(out.PkScript, pub) {
			return true
		}
	}
	return false
}

// AddToWallet inserts incoming into the index, or merges it into an
// existing record with the same hash if one is already present. It
// returns the stored record and whether this call changed anything
// worth persisting (a new record, or a merge that altered a field).
//
// See wallet.cpp's Wallet::AddToWallet for the merge this mirrors:
// block membership, merkle position, and from-me status only ever
// move from "unknown" to "known", and the spent bitmap only ever
// grows more bits set, never fewer.
func (idx *Index) AddToWallet(incoming *WalletTx) (*WalletTx, bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	hash := incoming.Hash()
	existing, present := idx.txs[hash]

	var changed bool
	var wtx *WalletTx
	if !present {
		wtx = incoming.clone()
		wtx.TimeReceived = time.Now()
		if wtx.SpentBitmap == nil {
			wtx.SpentBitmap = newSpentBitmap(wtx.Tx)
		}
		idx.txs[hash] = wtx
		changed = true
	} else {
		wtx = existing
		var zero chainhash.Hash
		if incoming.BlockHash != zero && incoming.BlockHash != wtx.BlockHash {
			wtx.BlockHash = incoming.BlockHash
			changed = true
		}
		if incoming.Index != -1 && incoming.Index != wtx.Index {
			wtx.MerkleBranch = incoming.MerkleBranch
			wtx.Index = incoming.Index
			changed = true
		}
		if incoming.FromMe && !wtx.FromMe {
			wtx.FromMe = incoming.FromMe
			changed = true
		}
		if orSpentBitmap(wtx.SpentBitmap, incoming.SpentBitmap) {
			changed = true
		}
	}

	if changed && idx.Store != nil {
		if err := idx.Store.PutTx(hash, wtx); err != nil {
			return nil, false, err
		}
	}

	// If an output of the merged transaction pays the current
	// default receiving address, roll it over to a fresh key so the
	// same address is not reused for the next payment.
	if idx.payOut(wtx.Tx, idx.defaultKey) && idx.OnRotateDefaultKey != nil {
		if next := idx.OnRotateDefaultKey(); next != nil {
			idx.defaultKey = next
		}
	}

	idx.updateSpentLocked(wtx.Tx)

	return wtx, changed, nil
}

// orSpentBitmap ORs src into dst in place, returning whether any bit
// of dst changed from false to true.
func orSpentBitmap(dst []bool, src []bool) bool {
	changed := false
	for i := range dst {
		if i < len(src) && src[i] && !dst[i] {
			dst[i] = true
			changed = true
		}
	}
	return changed
}

// AddToWalletIfInvolvingMe indexes tx under blockHash (the zero hash
// if tx is unconfirmed) only if it already has a record, pays us, or
// spends from us. Otherwise it still runs WalletUpdateSpent, so a
// transaction that only spends our coins without paying us back still
// marks those coins spent.
func (idx *Index) AddToWalletIfInvolvingMe(tx *wire.MsgTx, blockHash chainhash.Hash, merkleBranch []chainhash.Hash, index int) (*WalletTx, bool, error) {
	hash := tx.TxHash()

	idx.mu.RLock()
	_, existed := idx.txs[hash]
	idx.mu.RUnlock()

	involved := existed || idx.isMine(tx) || idx.isFromMe(tx)
	if !involved {
		idx.mu.Lock()
		idx.updateSpentLocked(tx)
		idx.mu.Unlock()
		return nil, false, nil
	}

	wtx := &WalletTx{
		Tx:           tx,
		BlockHash:    blockHash,
		MerkleBranch: merkleBranch,
		Index:        index,
		FromMe:       idx.isFromMe(tx),
		SpentBitmap:  newSpentBitmap(tx),
	}
	return idx.AddToWallet(wtx)
}

func (idx *Index) isMine(tx *wire.MsgTx) bool {
	if idx.IsMine == nil {
		return false
	}
	for _, out := range tx.TxOut {
		if idx.IsMine(out) {
			return true
		}
	}
	return false
}

func (idx *Index) isFromMe(tx *wire.MsgTx) bool {
	if idx.IsFromMe == nil {
		return false
	}
	return idx.IsFromMe(tx)
}

// WalletUpdateSpent marks, for each input of tx, the referenced
// output spent if it is ours and not already marked. It is exported
// so callers (e.g. a rescan) can invoke it directly against
// transactions that are not themselves being added to the index.
func (idx *Index) WalletUpdateSpent(tx *wire.MsgTx) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.updateSpentLocked(tx)
}

func (idx *Index) updateSpentLocked(tx *wire.MsgTx) error {
	for _, in := range tx.TxIn {
		prev, ok := idx.txs[in.PreviousOutPoint.Hash]
		if !ok {
			continue
		}
		n := in.PreviousOutPoint.Index
		if int(n) >= len(prev.SpentBitmap) {
			continue
		}
		if prev.SpentBitmap[n] {
			continue
		}
		if idx.IsMine != nil && int(n) < len(prev.Tx.TxOut) && !idx.IsMine(prev.Tx.TxOut[n]) {
			continue
		}
		prev.SpentBitmap[n] = true
		if idx.Store != nil {
			if err := idx.Store.PutTx(prev.Hash(), prev); err != nil {
				return err
			}
		}
	}
	return nil
}

// BlockTx pairs a transaction with its position within a block, the
// unit ScanForWalletTransactions walks forward over.
type BlockTx struct {
	Tx           *wire.MsgTx
	BlockHash    chainhash.Hash
	MerkleBranch []chainhash.Hash
	Index        int
}

// ScanForWalletTransactions calls AddToWalletIfInvolvingMe on every
// transaction txs yields, in order, and returns how many were added
// or updated.
func (idx *Index) ScanForWalletTransactions(txs []BlockTx) (int, error) {
	var n int
	for _, btx := range txs {
		_, changed, err := idx.AddToWalletIfInvolvingMe(
			btx.Tx, btx.BlockHash, btx.MerkleBranch, btx.Index,
		)
		if err != nil {
			return n, err
		}
		if changed {
			n++
		}
	}
	return n, nil
}

// scriptPaysKey is supplied by the wallet package in production; it
// is declared here as a package variable so txindex has no import
// dependency on txscript or the keystore's address derivation, and
// tests can stub it freely.
var scriptPaysKey = func(pkScript, pub []byte) bool {
	return false
}

// SetScriptMatcher overrides the function AddToWallet uses to decide
// whether an output's script pays a given public key. The wallet
// package calls this once at startup with a txscript-backed matcher;
// leaving it unset disables default-key rotation entirely.
func SetScriptMatcher(fn func(pkScript, pub []byte) bool) {
	scriptPaysKey = fn
}

// serialize encodes wtx using the tx codec plus the extra fields
// described by the persisted "tx" record format: vtxPrev, the spent
// bitmap, block hash, merkle branch, index, from-me, and time
// received. VtxPrev entries are serialized recursively, each together
// with its own VtxPrev.
func serialize(wtx *WalletTx) ([]byte, error) {
	var buf bytes.Buffer

	if err := wtx.Tx.Serialize(&buf); err != nil {
		return nil, err
	}
	if _, err := buf.Write(wtx.BlockHash[:]); err != nil {
		return nil, err
	}
	err := codec.WriteContainer(&buf, len(wtx.MerkleBranch), func(i int) error {
		_, err := buf.Write(wtx.MerkleBranch[i][:])
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := codec.WriteInt64(&buf, int64(wtx.Index)); err != nil {
		return nil, err
	}
	if err := codec.WriteInt64(&buf, wtx.TimeReceived.Unix()); err != nil {
		return nil, err
	}
	fromMe := byte(0)
	if wtx.FromMe {
		fromMe = 1
	}
	if _, err := buf.Write([]byte{fromMe}); err != nil {
		return nil, err
	}
	err = codec.WriteContainer(&buf, len(wtx.SpentBitmap), func(i int) error {
		b := byte(0)
		if wtx.SpentBitmap[i] {
			b = 1
		}
		_, err := buf.Write([]byte{b})
		return err
	})
	if err != nil {
		return nil, err
	}
	err = codec.WriteContainer(&buf, len(wtx.VtxPrev), func(i int) error {
		prevBytes, err := serialize(wtx.VtxPrev[i])
		if err != nil {
			return err
		}
		return codec.WriteVarBytes(&buf, prevBytes)
	})
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// deserialize is the inverse of serialize.
func deserialize(data []byte) (*WalletTx, error) {
	r := bytes.NewReader(data)

	tx := new(wire.MsgTx)
	if err := tx.Deserialize(r); err != nil {
		return nil, err
	}

	wtx := &WalletTx{Tx: tx}

	if _, err := io.ReadFull(r, wtx.BlockHash[:]); err != nil {
		return nil, err
	}

	_, err := codec.ReadContainer(r, maxContainer, func(i int) error {
		var h chainhash.Hash
		_, err := io.ReadFull(r, h[:])
		wtx.MerkleBranch = append(wtx.MerkleBranch, h)
		return err
	})
	if err != nil {
		return nil, err
	}

	idx64, err := codec.ReadInt64(r)
	if err != nil {
		return nil, err
	}
	wtx.Index = int(idx64)

	tr, err := codec.ReadInt64(r)
	if err != nil {
		return nil, err
	}
	wtx.TimeReceived = time.Unix(tr, 0)

	var fromMe [1]byte
	if _, err := io.ReadFull(r, fromMe[:]); err != nil {
		return nil, err
	}
	wtx.FromMe = fromMe[0] != 0

	_, err = codec.ReadContainer(r, maxContainer, func(i int) error {
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		wtx.SpentBitmap = append(wtx.SpentBitmap, b[0] != 0)
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, err = codec.ReadContainer(r, maxContainer, func(i int) error {
		prevBytes, err := codec.ReadVarBytes(r, 1<<24)
		if err != nil {
			return err
		}
		prev, err := deserialize(prevBytes)
		if err != nil {
			return err
		}
		wtx.VtxPrev = append(wtx.VtxPrev, prev)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return wtx, nil
}
