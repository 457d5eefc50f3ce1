// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/libcoin/wallet/walletdb"
	_ "github.com/libcoin/wallet/walletdb/bdb"
)

// fakeChain is a Chain test double whose answers are configured per
// transaction hash or fixed at construction.
type fakeChain struct {
	mu sync.Mutex

	final   map[chainhash.Hash]bool
	depth   map[chainhash.Hash]int32
	mature  map[chainhash.Hash]int32
	bestTS  int64
	network byte
	accept  bool
	accepted []*wire.MsgTx
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		final:   make(map[chainhash.Hash]bool),
		depth:   make(map[chainhash.Hash]int32),
		mature:  make(map[chainhash.Hash]int32),
		network: chaincfg.MainNetParams.PubKeyHashAddrID,
		accept:  true,
	}
}

func (c *fakeChain) IsFinal(tx *wire.MsgTx) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	final, ok := c.final[tx.TxHash()]
	if !ok {
		return true
	}
	return final
}

func (c *fakeChain) Depth(hash chainhash.Hash) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depth[hash]
}

func (c *fakeChain) BlocksToMaturity(tx *wire.MsgTx) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mature[tx.TxHash()]
}

func (c *fakeChain) BestReceivedTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bestTS
}

func (c *fakeChain) NetworkID() byte { return c.network }

func (c *fakeChain) AcceptTransaction(tx *wire.MsgTx) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accept {
		c.accepted = append(c.accepted, tx)
	}
	return c.accept
}

// newTestWallet creates a freshly initialized wallet backed by a
// throwaway bdb file in t's temp directory.
func newTestWallet(t *testing.T) (*Wallet, *fakeChain) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "wallet.db")
	db, err := walletdb.Create("bdb", dbPath)
	if err != nil {
		t.Fatalf("walletdb.Create: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	chain := newFakeChain()
	rng := rand.New(rand.NewSource(1))

	w, err := Create(db, &chaincfg.MainNetParams, chain, rng)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return w, chain
}

// dummyTx returns a minimally valid transaction distinguished from
// others by nonce in its single input's previous output index, and
// paying amount to pkScript.
func dummyTx(nonce uint32, amount int64, pkScript []byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: nonce},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{Value: amount, PkScript: pkScript})
	return tx
}

// payToKeyScript returns the P2PKH scriptPubKey for a raw public key
// under params.
func payToKeyScript(t *testing.T, pub []byte, params *chaincfg.Params) []byte {
	t.Helper()
	script, err := payToPubKeyScript(pub, params)
	if err != nil {
		t.Fatalf("payToPubKeyScript: %v", err)
	}
	return script
}
