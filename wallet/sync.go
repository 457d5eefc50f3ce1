// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
)

// SyncListener adapts the three notifications an external chain
// facade delivers — a transaction accepted to its mempool, a block
// connected to its best chain, and a periodic reminder tick — into
// wallet mutations. It holds no state of its own beyond the wallet it
// was built around, so nothing prevents constructing one per
// notification source.
type SyncListener struct {
	wallet *Wallet
}

// NewSyncListener returns a SyncListener driving w.
func NewSyncListener(w *Wallet) *SyncListener {
	return &SyncListener{wallet: w}
}

// OnTransactionAccepted is onTxAccepted: a transaction the chain
// facade has accepted to its mempool but not yet mined. It is merged
// into the local index exactly like any other unconfirmed
// transaction, via the zero block hash AddToWalletIfInvolvingMe
// already treats as "no containing block".
func (l *SyncListener) OnTransactionAccepted(tx *wire.MsgTx) error {
	corrID := uuid.New()
	w := l.wallet
	w.mu.Lock()
	defer w.mu.Unlock()

	log.Debugf("[%s] mempool tx accepted: %v", corrID, tx.TxHash())
	_, _, err := w.index.AddToWalletIfInvolvingMe(tx, chainhash.Hash{}, nil, -1)
	if err != nil {
		log.Errorf("[%s] merging mempool tx %v: %v", corrID, tx.TxHash(), err)
	}
	return err
}

// OnBlockAccepted is onBlockAccepted: block has been connected to the
// chain facade's best chain at height. Every one of its transactions
// is offered to the index (AddToWalletIfInvolvingMe silently ignores
// the ones that don't touch the wallet), then the synced-to position
// is advanced and persisted so a later Load resumes from here rather
// than rescanning from genesis.
func (l *SyncListener) OnBlockAccepted(block *wire.MsgBlock, height int32) error {
	corrID := uuid.New()
	w := l.wallet
	w.mu.Lock()
	defer w.mu.Unlock()

	blockHash := block.BlockHash()
	log.Debugf("[%s] block %v (height %d) connected, %d tx", corrID, blockHash, height, len(block.Transactions))
	for i, tx := range block.Transactions {
		merkleBranch := merkleBranchFor(block, i)
		if _, _, err := w.index.AddToWalletIfInvolvingMe(tx, blockHash, merkleBranch, i); err != nil {
			log.Errorf("[%s] merging tx %v from block %v: %v", corrID, tx.TxHash(), blockHash, err)
			return err
		}
	}

	w.bestBlock = BlockIdentity{Hash: blockHash, Height: height}
	return putBestBlock(w.db, w.bestBlock)
}

// OnReminder is onReminder: a periodic tick from the caller's own
// scheduler (there is no timer internal to the wallet), used to drive
// ResendWalletTransactions. It returns the hashes that were
// rebroadcast so the caller can log or trace them.
func (l *SyncListener) OnReminder() []chainhash.Hash {
	corrID := uuid.New()
	resent := l.wallet.ResendWalletTransactions()
	log.Debugf("[%s] reminder tick rebroadcast %d transactions", corrID, len(resent))
	return resent
}

// merkleBranchFor computes the Merkle authentication path proving
// block.Transactions[index] is included in block, the same sibling-
// hash list CMerkleTx::SetMerkleBranch records at acceptance time.
func merkleBranchFor(block *wire.MsgBlock, index int) []chainhash.Hash {
	hashes := make([]chainhash.Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		hashes[i] = tx.TxHash()
	}

	var branch []chainhash.Hash
	for len(hashes) > 1 {
		if len(hashes)%2 == 1 {
			hashes = append(hashes, hashes[len(hashes)-1])
		}
		sibling := index ^ 1
		branch = append(branch, hashes[sibling])

		next := make([]chainhash.Hash, len(hashes)/2)
		for i := range next {
			next[i] = chainhash.DoubleHashH(append(
				append([]byte(nil), hashes[2*i][:]...), hashes[2*i+1][:]...))
		}
		hashes = next
		index /= 2
	}
	return branch
}
