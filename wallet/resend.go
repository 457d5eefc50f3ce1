// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"sort"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/libcoin/wallet/txindex"
)

// resendInterval bounds how often ResendWalletTransactions does real
// work: Wallet::ResendWalletTransactions reschedules itself to
// GetRand(30 * 60) seconds in the future on every call, so repeated
// polling (e.g. from a periodic timer) mostly returns immediately.
const resendInterval = 30 * time.Minute

// resendGracePeriod is how long a transaction is given to confirm on
// its own before ResendWalletTransactions considers it worth
// rebroadcasting.
const resendGracePeriod = 5 * time.Minute

// ResendWalletTransactions rebroadcasts this wallet's own
// transactions that are not yet confirmed, mirroring
// Wallet::ResendWalletTransactions: throttled to roughly once per
// resendInterval with a randomized delay (so external timing cannot
// single out wallet traffic), skipped entirely unless the chain
// facade's best-received time has advanced since the last successful
// call, and restricted to transactions older than resendGracePeriod.
// Candidates are rebroadcast oldest-first. It returns the hashes that
// were handed to the chain facade and accepted.
func (w *Wallet) ResendWalletTransactions() []chainhash.Hash {
	w.mu.Lock()

	now := time.Now()
	if now.Before(w.nextResendTime) {
		w.mu.Unlock()
		return nil
	}
	first := w.nextResendTime.IsZero()
	w.nextResendTime = now.Add(time.Duration(w.rng.Intn(int(resendInterval))))
	if first {
		w.mu.Unlock()
		return nil
	}

	best := w.chain.BestReceivedTime()
	if best < w.lastResendTime.Unix() {
		w.mu.Unlock()
		return nil
	}
	w.lastResendTime = now

	var stale []*txindex.WalletTx
	w.index.All(func(wtx *txindex.WalletTx) {
		if !wtx.FromMe {
			return
		}
		if txindex.IsConfirmed(w.chain, wtx) {
			return
		}
		if time.Unix(best, 0).Sub(wtx.TimeReceived) <= resendGracePeriod {
			return
		}
		stale = append(stale, wtx)
	})
	chain := w.chain
	w.mu.Unlock()

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].TimeReceived.Before(stale[j].TimeReceived)
	})

	var resent []chainhash.Hash
	for _, wtx := range stale {
		if chain.AcceptTransaction(wtx.Tx) {
			resent = append(resent, wtx.Hash())
		}
	}
	log.Debugf("ResendWalletTransactions rebroadcast %d of %d stale "+
		"transaction(s)", len(resent), len(stale))
	return resent
}

// ReacceptWalletTransactions resubmits every own, non-coinbase
// transaction this wallet holds that is not both final and confirmed
// according to the chain facade, the "reaccept any txes of ours that aren't
// already in a block" branch of Wallet::ReacceptWalletTransactions.
// The companion branch there — detecting a coin the chain facade
// already knows was spent by a transaction this wallet has not itself
// indexed — needs the numSpent/isSpent/spentIn chain queries that
// Chain deliberately omits (see DESIGN.md); that half is left to a
// future rescan operation instead.
func (w *Wallet) ReacceptWalletTransactions() {
	w.mu.Lock()
	var pending []*txindex.WalletTx
	w.index.All(func(wtx *txindex.WalletTx) {
		if !wtx.FromMe {
			return
		}
		if blockchain.IsCoinBaseTx(wtx.Tx) {
			return
		}
		if w.chain.IsFinal(wtx.Tx) && txindex.IsConfirmed(w.chain, wtx) {
			return
		}
		pending = append(pending, wtx)
	})
	chain := w.chain
	w.mu.Unlock()

	for _, wtx := range pending {
		chain.AcceptTransaction(wtx.Tx)
	}
}
