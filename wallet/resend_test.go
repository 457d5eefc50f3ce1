// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/libcoin/wallet/txindex"
)

func TestResendWalletTransactionsFirstCallArmsOnly(t *testing.T) {
	w, chain := newTestWallet(t)
	chain.bestTS = time.Now().Unix()

	if got := w.ResendWalletTransactions(); got != nil {
		t.Fatalf("first call should do no work, got %v", got)
	}
}

func TestResendWalletTransactionsRebroadcastsStale(t *testing.T) {
	w, chain := newTestWallet(t)

	tx := dummyTx(1, 1e8, []byte{0x51})
	wtx, _, err := w.index.AddToWallet(&txindex.WalletTx{Tx: tx, FromMe: true})
	if err != nil {
		t.Fatalf("AddToWallet: %v", err)
	}
	wtx.TimeReceived = time.Now().Add(-10 * time.Minute)

	chain.bestTS = time.Now().Unix()

	// First call only arms the throttle.
	if got := w.ResendWalletTransactions(); got != nil {
		t.Fatalf("first call should do no work, got %v", got)
	}

	// Force the throttle open and advance best-received-time so the
	// second call actually does work.
	w.mu.Lock()
	w.nextResendTime = time.Now().Add(-time.Second)
	w.mu.Unlock()
	chain.bestTS++

	resent := w.ResendWalletTransactions()
	if len(resent) != 1 || resent[0] != wtx.Hash() {
		t.Fatalf("expected %v rebroadcast, got %v", wtx.Hash(), resent)
	}
	if len(chain.accepted) != 1 {
		t.Fatalf("expected 1 transaction accepted, got %d", len(chain.accepted))
	}
}

func TestResendWalletTransactionsSkipsRecent(t *testing.T) {
	w, chain := newTestWallet(t)

	tx := dummyTx(1, 1e8, []byte{0x51})
	wtx, _, err := w.index.AddToWallet(&txindex.WalletTx{Tx: tx, FromMe: true})
	if err != nil {
		t.Fatalf("AddToWallet: %v", err)
	}
	wtx.TimeReceived = time.Now()

	w.mu.Lock()
	w.nextResendTime = time.Now().Add(-time.Second)
	w.mu.Unlock()
	chain.bestTS = time.Now().Unix()

	if got := w.ResendWalletTransactions(); len(got) != 0 {
		t.Fatalf("expected no rebroadcast for a recent transaction, got %v", got)
	}
}

func TestResendWalletTransactionsSkipsWithoutAdvancingBestTime(t *testing.T) {
	w, _ := newTestWallet(t)

	tx := dummyTx(1, 1e8, []byte{0x51})
	wtx, _, err := w.index.AddToWallet(&txindex.WalletTx{Tx: tx, FromMe: true})
	if err != nil {
		t.Fatalf("AddToWallet: %v", err)
	}
	wtx.TimeReceived = time.Now().Add(-10 * time.Minute)

	// Force the throttle open but leave lastResendTime ahead of
	// BestReceivedTime, as if a later run had already happened: the
	// stale best-received-time guard should skip all work.
	w.mu.Lock()
	w.nextResendTime = time.Now().Add(-time.Second)
	w.lastResendTime = time.Now().Add(time.Hour)
	w.mu.Unlock()

	if got := w.ResendWalletTransactions(); got != nil {
		t.Fatalf("expected no rebroadcast when best-received-time hasn't advanced, got %v", got)
	}
}

func TestReacceptWalletTransactionsSkipsCoinbase(t *testing.T) {
	w, chain := newTestWallet(t)

	cb := dummyTx(0, 50e8, []byte{0x51})
	cb.TxIn[0].PreviousOutPoint = wire.OutPoint{Index: 0xffffffff}
	if _, _, err := w.index.AddToWallet(&txindex.WalletTx{Tx: cb, FromMe: true}); err != nil {
		t.Fatalf("AddToWallet: %v", err)
	}

	w.ReacceptWalletTransactions()
	if len(chain.accepted) != 0 {
		t.Fatalf("expected coinbase transaction not to be reaccepted, got %d", len(chain.accepted))
	}
}

func TestReacceptWalletTransactionsResubmitsPending(t *testing.T) {
	w, chain := newTestWallet(t)

	tx := dummyTx(1, 1e8, []byte{0x51})
	if _, _, err := w.index.AddToWallet(&txindex.WalletTx{Tx: tx, FromMe: true}); err != nil {
		t.Fatalf("AddToWallet: %v", err)
	}

	w.ReacceptWalletTransactions()
	if len(chain.accepted) != 1 {
		t.Fatalf("expected the pending transaction to be reaccepted, got %d", len(chain.accepted))
	}
}
