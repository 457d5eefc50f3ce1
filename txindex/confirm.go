// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txindex

// IsConfirmed reports whether wtx's coins are safe to spend: either
// it has at least one confirmation itself, or it was created by this
// wallet and every ancestor transaction it carries in VtxPrev is
// final and is itself either confirmed or also from this wallet.
//
// This mirrors Wallet::IsConfirmed's explicit work-queue walk rather
// than recursion, so a long chain of zero-conf from-me transactions
// does not consume stack depth proportional to its length.
func IsConfirmed(c Chain, wtx *WalletTx) bool {
	if !c.IsFinal(wtx.Tx) {
		return false
	}
	if c.Depth(wtx.Hash()) >= 1 {
		return true
	}
	if !wtx.FromMe {
		return false
	}

	// Index ancestors by hash so the work queue can resolve an
	// input's previous transaction in constant time.
	byHash := make(map[[32]byte]*WalletTx, len(wtx.VtxPrev))
	for _, prev := range wtx.VtxPrev {
		byHash[prev.Hash()] = prev
	}

	queue := make([]*WalletTx, 0, len(wtx.VtxPrev)+1)
	queue = append(queue, wtx)

	for i := 0; i < len(queue); i++ {
		cur := queue[i]

		if !c.IsFinal(cur.Tx) {
			return false
		}
		if c.Depth(cur.Hash()) >= 1 {
			continue
		}
		if !cur.FromMe {
			return false
		}

		for _, in := range cur.Tx.TxIn {
			prev, ok := byHash[in.PreviousOutPoint.Hash]
			if !ok {
				return false
			}
			queue = append(queue, prev)
		}
	}

	return true
}
