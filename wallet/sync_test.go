// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
)

func TestOnTransactionAcceptedMergesRelevantTx(t *testing.T) {
	w, _ := newTestWallet(t)
	if err := w.TopUpKeyPool(); err != nil {
		t.Fatalf("TopUpKeyPool: %v", err)
	}

	script := payToKeyScript(t, w.defaultPub, w.params)
	tx := dummyTx(1, 5e7, script)

	l := NewSyncListener(w)
	if err := l.OnTransactionAccepted(tx); err != nil {
		t.Fatalf("OnTransactionAccepted: %v", err)
	}

	if got := w.index.Get(tx.TxHash()); got == nil {
		t.Fatal("expected the transaction to be indexed")
	}
	if bal := w.Balance(); bal != 0 {
		t.Fatalf("expected 0 confirmed balance for a mempool-only tx, got %v", bal)
	}
}

func TestOnTransactionAcceptedIgnoresUnrelatedTx(t *testing.T) {
	w, _ := newTestWallet(t)

	tx := dummyTx(1, 5e7, []byte{0x51})
	l := NewSyncListener(w)
	if err := l.OnTransactionAccepted(tx); err != nil {
		t.Fatalf("OnTransactionAccepted: %v", err)
	}
	if got := w.index.Get(tx.TxHash()); got != nil {
		t.Fatal("expected an unrelated transaction not to be indexed")
	}
}

func TestOnBlockAcceptedAdvancesBestBlockAndBalance(t *testing.T) {
	w, chain := newTestWallet(t)
	if err := w.TopUpKeyPool(); err != nil {
		t.Fatalf("TopUpKeyPool: %v", err)
	}

	script := payToKeyScript(t, w.defaultPub, w.params)
	tx := dummyTx(1, 5e7, script)

	block := &wire.MsgBlock{
		Header:       wire.BlockHeader{},
		Transactions: []*wire.MsgTx{tx},
	}
	blockHash := block.BlockHash()
	chain.depth[tx.TxHash()] = 1

	l := NewSyncListener(w)
	if err := l.OnBlockAccepted(block, 100); err != nil {
		t.Fatalf("OnBlockAccepted: %v", err)
	}

	w.mu.Lock()
	best := w.bestBlock
	w.mu.Unlock()
	if best.Height != 100 || best.Hash != blockHash {
		t.Fatalf("unexpected bestBlock %+v", best)
	}

	if bal := w.Balance(); bal != 5e7 {
		t.Fatalf("expected confirmed balance 5e7, got %v", bal)
	}

	wtx := w.index.Get(tx.TxHash())
	if wtx == nil {
		t.Fatal("expected the transaction to be indexed")
	}
	if wtx.BlockHash != blockHash {
		t.Fatalf("expected stored BlockHash %v, got %v", blockHash, wtx.BlockHash)
	}
}

func TestOnReminderDelegatesToResend(t *testing.T) {
	w, chain := newTestWallet(t)
	chain.bestTS = 1

	l := NewSyncListener(w)
	if got := l.OnReminder(); got != nil {
		t.Fatalf("first reminder should only arm the throttle, got %v", got)
	}
}

func TestMerkleBranchForSingleTx(t *testing.T) {
	tx := dummyTx(1, 1, []byte{0x51})
	block := &wire.MsgBlock{Transactions: []*wire.MsgTx{tx}}
	if branch := merkleBranchFor(block, 0); branch != nil {
		t.Fatalf("expected an empty branch for a single-transaction block, got %v", branch)
	}
}

func TestMerkleBranchForTwoTxs(t *testing.T) {
	tx0 := dummyTx(1, 1, []byte{0x51})
	tx1 := dummyTx(2, 1, []byte{0x51})
	block := &wire.MsgBlock{Transactions: []*wire.MsgTx{tx0, tx1}}

	branch0 := merkleBranchFor(block, 0)
	if len(branch0) != 1 || branch0[0] != tx1.TxHash() {
		t.Fatalf("expected tx0's branch to be [tx1 hash], got %v", branch0)
	}
	branch1 := merkleBranchFor(block, 1)
	if len(branch1) != 1 || branch1[0] != tx0.TxHash() {
		t.Fatalf("expected tx1's branch to be [tx0 hash], got %v", branch1)
	}
}
