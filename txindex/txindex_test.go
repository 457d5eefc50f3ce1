// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txindex

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// fakeChain is a Chain test double whose IsFinal/Depth answers are
// configured per transaction hash.
type fakeChain struct {
	final map[chainhash.Hash]bool
	depth map[chainhash.Hash]int32
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		final: make(map[chainhash.Hash]bool),
		depth: make(map[chainhash.Hash]int32),
	}
}

func (c *fakeChain) IsFinal(tx *wire.MsgTx) bool {
	h := tx.TxHash()
	final, ok := c.final[h]
	if !ok {
		return true
	}
	return final
}

func (c *fakeChain) Depth(hash chainhash.Hash) int32 {
	d, ok := c.depth[hash]
	if !ok {
		return 0
	}
	return d
}

// dummyTx returns a minimally valid transaction distinguished from
// others by nonce in its single input's previous output index.
func dummyTx(nonce uint32, numOut int) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: nonce},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	for i := 0; i < numOut; i++ {
		tx.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x51}})
	}
	return tx
}

func newIndex() *Index {
	return New(
		func(*wire.TxOut) bool { return false },
		func(*wire.MsgTx) bool { return false },
		nil,
	)
}

// TestAddToWalletInsertsNew verifies a never-before-seen transaction
// is inserted with a freshly allocated, all-unspent bitmap (invariant
// 2: spentBitmap.len == outputs.len).
func TestAddToWalletInsertsNew(t *testing.T) {
	idx := newIndex()
	tx := dummyTx(1, 2)

	wtx, changed, err := idx.AddToWallet(&WalletTx{Tx: tx})
	if err != nil {
		t.Fatalf("AddToWallet: %v", err)
	}
	if !changed {
		t.Fatal("expected new insert to report changed")
	}
	if len(wtx.SpentBitmap) != len(tx.TxOut) {
		t.Fatalf("bitmap len = %d, want %d", len(wtx.SpentBitmap), len(tx.TxOut))
	}
	for i, spent := range wtx.SpentBitmap {
		if spent {
			t.Fatalf("output %d marked spent on insert", i)
		}
	}
}

// TestAddToWalletIdempotent verifies invariant 7: merging the same
// record twice leaves the stored value unchanged (besides TimeReceived,
// which is only set on first insert).
func TestAddToWalletIdempotent(t *testing.T) {
	idx := newIndex()
	tx := dummyTx(2, 1)

	first, _, err := idx.AddToWallet(&WalletTx{Tx: tx})
	if err != nil {
		t.Fatalf("first AddToWallet: %v", err)
	}
	firstTime := first.TimeReceived

	second, changed, err := idx.AddToWallet(&WalletTx{Tx: tx})
	if err != nil {
		t.Fatalf("second AddToWallet: %v", err)
	}
	if changed {
		t.Fatal("re-adding an identical record should not report changed")
	}
	if !second.TimeReceived.Equal(firstTime) {
		t.Fatal("TimeReceived must not change on a no-op merge")
	}
	if idx.Len() != 1 {
		t.Fatalf("index has %d entries, want 1", idx.Len())
	}
}

// TestAddToWalletMergeUpgradesBlockInfo exercises scenario S5: an
// unconfirmed record, followed by the same transaction observed in a
// block, should adopt the block hash, merkle branch, and index.
func TestAddToWalletMergeUpgradesBlockInfo(t *testing.T) {
	idx := newIndex()
	tx := dummyTx(3, 1)

	_, _, err := idx.AddToWallet(&WalletTx{Tx: tx, Index: -1})
	if err != nil {
		t.Fatalf("unconfirmed AddToWallet: %v", err)
	}

	blockHash := chainhash.Hash{0xaa}
	branch := []chainhash.Hash{{0x01}}
	confirmed, changed, err := idx.AddToWallet(&WalletTx{
		Tx:           tx,
		BlockHash:    blockHash,
		MerkleBranch: branch,
		Index:        3,
	})
	if err != nil {
		t.Fatalf("confirmed AddToWallet: %v", err)
	}
	if !changed {
		t.Fatal("expected block-info upgrade to report changed")
	}
	if confirmed.BlockHash != blockHash {
		t.Fatalf("BlockHash = %x, want %x", confirmed.BlockHash, blockHash)
	}
	if confirmed.Index != 3 {
		t.Fatalf("Index = %d, want 3", confirmed.Index)
	}
}

// TestWalletUpdateSpentMarksOwnedOutput verifies WalletUpdateSpent
// only marks an output spent when it is ours and not already spent.
func TestWalletUpdateSpentMarksOwnedOutput(t *testing.T) {
	parent := dummyTx(10, 1)

	idx := New(
		func(out *wire.TxOut) bool { return true },
		func(*wire.MsgTx) bool { return false },
		nil,
	)
	if _, _, err := idx.AddToWallet(&WalletTx{Tx: parent}); err != nil {
		t.Fatalf("AddToWallet(parent): %v", err)
	}

	child := wire.NewMsgTx(wire.TxVersion)
	child.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: parent.TxHash(), Index: 0},
	})

	if err := idx.WalletUpdateSpent(child); err != nil {
		t.Fatalf("WalletUpdateSpent: %v", err)
	}

	stored := idx.Get(parent.TxHash())
	if !stored.SpentBitmap[0] {
		t.Fatal("expected output 0 to be marked spent")
	}
}

// TestAddToWalletIfInvolvingMeSkipsUnrelated verifies a transaction
// that neither pays nor spends from the wallet is not indexed.
func TestAddToWalletIfInvolvingMeSkipsUnrelated(t *testing.T) {
	idx := newIndex()
	tx := dummyTx(4, 1)

	var zero chainhash.Hash
	wtx, changed, err := idx.AddToWalletIfInvolvingMe(tx, zero, nil, -1)
	if err != nil {
		t.Fatalf("AddToWalletIfInvolvingMe: %v", err)
	}
	if changed || wtx != nil {
		t.Fatal("unrelated transaction should not be indexed")
	}
	if idx.Len() != 0 {
		t.Fatalf("index has %d entries, want 0", idx.Len())
	}
}

// TestIsConfirmedByDepth covers the simple case: a final transaction
// with at least one confirmation is always confirmed, regardless of
// FromMe or ancestry.
func TestIsConfirmedByDepth(t *testing.T) {
	tx := dummyTx(5, 1)
	wtx := &WalletTx{Tx: tx}

	c := newFakeChain()
	c.depth[tx.TxHash()] = 1

	if !IsConfirmed(c, wtx) {
		t.Fatal("expected transaction with depth >= 1 to be confirmed")
	}
}

// TestIsConfirmedNotFinal covers the fast-rejection path.
func TestIsConfirmedNotFinal(t *testing.T) {
	tx := dummyTx(6, 1)
	wtx := &WalletTx{Tx: tx, FromMe: true}

	c := newFakeChain()
	c.final[tx.TxHash()] = false

	if IsConfirmed(c, wtx) {
		t.Fatal("a non-final transaction must never be confirmed")
	}
}

// TestIsConfirmedFromMeAncestryChain exercises scenario S6/invariant 8:
// a zero-conf from-me transaction is confirmed only if every ancestor
// reachable through VtxPrev is itself final and either confirmed or
// from-me.
func TestIsConfirmedFromMeAncestryChain(t *testing.T) {
	parent := dummyTx(7, 1)
	child := wire.NewMsgTx(wire.TxVersion)
	child.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: parent.TxHash(), Index: 0},
	})
	child.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x51}})

	parentWtx := &WalletTx{Tx: parent, FromMe: true}
	childWtx := &WalletTx{Tx: child, FromMe: true, VtxPrev: []*WalletTx{parentWtx}}

	c := newFakeChain()
	// The parent itself is confirmed by depth, so the BFS need not
	// resolve its own inputs; the child inherits confirmation
	// through the closure rule.
	c.depth[parent.TxHash()] = 1
	if !IsConfirmed(c, childWtx) {
		t.Fatal("expected confirmation via from-me ancestry closure")
	}

	c.final[parent.TxHash()] = false
	if IsConfirmed(c, childWtx) {
		t.Fatal("a non-final ancestor must break the confirmation closure")
	}
}

// TestIsConfirmedMissingAncestorFails verifies that a from-me
// transaction referencing an input whose ancestor is absent from
// VtxPrev is never confirmed by ancestry alone.
func TestIsConfirmedMissingAncestorFails(t *testing.T) {
	child := wire.NewMsgTx(wire.TxVersion)
	child.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0x99}, Index: 0},
	})
	child.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x51}})
	childWtx := &WalletTx{Tx: child, FromMe: true}

	c := newFakeChain()
	if IsConfirmed(c, childWtx) {
		t.Fatal("expected unconfirmed: ancestor not present in VtxPrev")
	}
}

// TestScanForWalletTransactionsCounts verifies
// ScanForWalletTransactions reports the number of transactions that
// were actually added or updated, skipping unrelated ones.
func TestScanForWalletTransactionsCounts(t *testing.T) {
	idx := New(
		func(out *wire.TxOut) bool { return len(out.PkScript) > 0 && out.PkScript[0] == 0x51 },
		func(*wire.MsgTx) bool { return false },
		nil,
	)

	mine := dummyTx(8, 1)
	unrelated := dummyTx(9, 1)
	unrelated.TxOut[0].PkScript = []byte{0x00}

	var zero chainhash.Hash
	n, err := idx.ScanForWalletTransactions([]BlockTx{
		{Tx: mine, BlockHash: zero, Index: -1},
		{Tx: unrelated, BlockHash: zero, Index: -1},
	})
	if err != nil {
		t.Fatalf("ScanForWalletTransactions: %v", err)
	}
	if n != 1 {
		t.Fatalf("scan reported %d changed, want 1", n)
	}
}

// TestSerializeRoundTrip verifies a WalletTx survives the codec used
// for on-disk persistence, including a non-empty VtxPrev.
func TestSerializeRoundTrip(t *testing.T) {
	parent := dummyTx(20, 1)
	tx := dummyTx(21, 2)

	wtx := &WalletTx{
		Tx:           tx,
		BlockHash:    chainhash.Hash{0x01, 0x02},
		MerkleBranch: []chainhash.Hash{{0x03}, {0x04}},
		Index:        2,
		FromMe:       true,
		SpentBitmap:  []bool{true, false},
		VtxPrev:      []*WalletTx{{Tx: parent, SpentBitmap: []bool{false}}},
	}

	data, err := serialize(wtx)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := deserialize(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if got.BlockHash != wtx.BlockHash {
		t.Fatalf("BlockHash = %x, want %x", got.BlockHash, wtx.BlockHash)
	}
	if got.Index != wtx.Index {
		t.Fatalf("Index = %d, want %d", got.Index, wtx.Index)
	}
	if got.FromMe != wtx.FromMe {
		t.Fatalf("FromMe = %v, want %v", got.FromMe, wtx.FromMe)
	}
	if len(got.SpentBitmap) != len(wtx.SpentBitmap) || got.SpentBitmap[0] != true {
		t.Fatalf("SpentBitmap = %v, want %v", got.SpentBitmap, wtx.SpentBitmap)
	}
	if len(got.VtxPrev) != 1 || got.VtxPrev[0].Tx.TxHash() != parent.TxHash() {
		t.Fatal("VtxPrev did not round-trip")
	}
}
