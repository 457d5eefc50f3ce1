// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	h "github.com/libcoin/wallet/internal/helpers"

	"github.com/libcoin/wallet/coinselect"
	"github.com/libcoin/wallet/keypool"
	"github.com/libcoin/wallet/keystore"
	"github.com/libcoin/wallet/txindex"
	"github.com/libcoin/wallet/wallet/internal/txsizes"
	"github.com/libcoin/wallet/wallet/txauthor"
	"github.com/libcoin/wallet/wallet/txrules"
)

// maxStandardTxSize bounds the serialized size CreateTransaction will
// accept, the way Wallet::CreateTransaction rejects anything at or
// above MAX_BLOCK_SIZE_GEN/5. blockchain.MaxBlockBaseSize is this
// module's nearest resident equivalent to MAX_BLOCK_SIZE_GEN, so the
// same ratio is applied to it rather than hand-picking a number.
const maxStandardTxSize = blockchain.MaxBlockBaseSize / 5

// candidateOutput is the spendable-output half of a coinselect.Coin;
// coinselect only reasons about value and eligibility, so the
// outpoint and script it takes an input from are carried alongside in
// a parallel slice, indexed by Coin.Index.
type candidateOutput struct {
	OutPoint wire.OutPoint
	Value    int64
	PkScript []byte
}

// gatherCoinCandidates walks the transaction index for every unspent,
// wallet-owned output and reports it both in coinselect's terms and
// with enough of the original output to spend it. Called with w.mu
// already held.
func (w *Wallet) gatherCoinCandidates() ([]coinselect.Coin, []candidateOutput) {
	var coins []coinselect.Coin
	var outs []candidateOutput

	w.index.All(func(wtx *txindex.WalletTx) {
		hash := wtx.Hash()
		depth := w.chain.Depth(hash)
		final := w.chain.IsFinal(wtx.Tx)
		confirmed := txindex.IsConfirmed(w.chain, wtx)
		toMaturity := w.chain.BlocksToMaturity(wtx.Tx)

		for i, out := range wtx.Tx.TxOut {
			if i < len(wtx.SpentBitmap) && wtx.SpentBitmap[i] {
				continue
			}
			if !w.isMine(out) {
				continue
			}
			coins = append(coins, coinselect.Coin{
				Index:            len(coins),
				Value:            out.Value,
				Depth:            depth,
				FromMe:           wtx.FromMe,
				BlocksToMaturity: toMaturity,
				Final:            final,
				Confirmed:        confirmed,
			})
			outs = append(outs, candidateOutput{
				OutPoint: wire.OutPoint{Hash: hash, Index: uint32(i)},
				Value:    out.Value,
				PkScript: out.PkScript,
			})
		}
	})
	return coins, outs
}

// secretsSource adapts a CryptoKeyStore to txauthor.SecretsSource, so
// AddAllInputScripts can look up the private key behind a P2PKH
// output's address. This wallet never creates P2SH redeem scripts, so
// GetScript always fails.
type secretsSource struct {
	keys   *keystore.CryptoKeyStore
	params *chaincfg.Params
}

func (s *secretsSource) ChainParams() *chaincfg.Params { return s.params }

func (s *secretsSource) GetKey(addr btcutil.Address) (*btcec.PrivateKey, bool, error) {
	pkh, ok := addr.(*btcutil.AddressPubKeyHash)
	if !ok {
		return nil, false, errors.New("wallet: address is not a pay-to-pubkey-hash address")
	}
	var hash [20]byte
	copy(hash[:], pkh.Hash160()[:])

	priv, err := s.keys.GetPrivKey(keystore.Address{Hash: hash, NetID: s.params.PubKeyHashAddrID})
	if err != nil {
		return nil, false, err
	}
	privKey, _ := btcec.PrivKeyFromBytes(btcec.S256(), priv)
	return privKey, true, nil
}

func (s *secretsSource) GetScript(btcutil.Address) ([]byte, error) {
	return nil, errors.New("wallet: redeem scripts are not supported")
}

var _ txauthor.SecretsSource = (*secretsSource)(nil)

func payToPubKeyScript(pub []byte, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pub), params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// CreateTransaction builds, reserves change for, and signs a
// transaction paying outs. It mirrors Wallet::CreateTransaction's
// convergence loop: select coins for a trial fee, build and sign the
// transaction, measure its real size, and raise the fee and retry if
// the fee that size demands exceeds the trial fee. reserveKey holds
// the change address reservation (empty if no change was needed) and
// must be resolved by the caller with CommitTransaction or by calling
// its ReturnKey method directly to abandon the attempt.
func (w *Wallet) CreateTransaction(outs []*wire.TxOut, relayFeePerKb btcutil.Amount) (*wire.MsgTx, *keypool.ReserveKey, btcutil.Amount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.createTransaction(outs, relayFeePerKb)
}

func (w *Wallet) createTransaction(outs []*wire.TxOut, relayFeePerKb btcutil.Amount) (*wire.MsgTx, *keypool.ReserveKey, btcutil.Amount, error) {
	if len(outs) == 0 {
		return nil, nil, 0, ErrNoOutputs
	}
	for _, out := range outs {
		if err := txrules.CheckOutput(out, relayFeePerKb); err != nil {
			return nil, nil, 0, err
		}
	}

	// effectiveFeePerKb layers the wallet's own configured minimum fee
	// rate (set via SetTransactionFee, the nTransactionFee
	// equivalent) on top of the relay fee rate the caller supplies.
	effectiveFeePerKb := relayFeePerKb + w.txFee

	target := h.SumOutputValues(outs)
	coins, candidates := w.gatherCoinCandidates()
	reserveKey := keypool.NewReserveKey(w.pool)

	var fee btcutil.Amount
	for {
		selected, total, ok := coinselect.Select(w.rng, coins, int64(target+fee))
		if !ok {
			reserveKey.ReturnKey()
			return nil, nil, 0, ErrInsufficientFunds
		}

		txOuts := append([]*wire.TxOut(nil), outs...)
		changeAmount := btcutil.Amount(total) - target - fee
		haveChange := changeAmount > 0 &&
			!txrules.IsDustAmount(changeAmount, txsizes.P2PKHPkScriptSize, effectiveFeePerKb)

		if haveChange {
			changePub, err := reserveKey.GetReservedKey(w.defaultPub)
			if err != nil {
				return nil, nil, 0, err
			}
			changeScript, err := payToPubKeyScript(changePub, w.params)
			if err != nil {
				return nil, nil, 0, err
			}

			pos := w.rng.Intn(len(txOuts) + 1)
			txOuts = append(txOuts, nil)
			copy(txOuts[pos+1:], txOuts[pos:])
			txOuts[pos] = wire.NewTxOut(int64(changeAmount), changeScript)
		} else {
			reserveKey.ReturnKey()
		}

		tx := &wire.MsgTx{Version: wire.TxVersion, TxOut: txOuts, LockTime: 0}
		prevScripts := make([][]byte, len(selected))
		prevValues := make([]btcutil.Amount, len(selected))
		for i, c := range selected {
			cand := candidates[c.Index]
			tx.AddTxIn(wire.NewTxIn(&cand.OutPoint, nil, nil))
			prevScripts[i] = cand.PkScript
			prevValues[i] = btcutil.Amount(cand.Value)
		}

		secrets := &secretsSource{keys: w.keys, params: w.params}
		if err := txauthor.AddAllInputScripts(tx, prevScripts, prevValues, secrets); err != nil {
			reserveKey.ReturnKey()
			return nil, nil, 0, ErrSigningFailed
		}

		size := tx.SerializeSize()
		if size >= maxStandardTxSize {
			reserveKey.ReturnKey()
			return nil, nil, 0, ErrTxTooLarge
		}

		requiredFee := txrules.FeeForSerializeSize(effectiveFeePerKb, size)
		if fee < requiredFee {
			log.Debugf("Fee estimate %v too low for %d-byte transaction, "+
				"raising to %v and retrying coin selection", fee, size, requiredFee)
			fee = requiredFee
			continue
		}

		log.Debugf("Built %d-byte transaction spending %d inputs, fee %v",
			size, len(selected), fee)
		return tx, reserveKey, fee, nil
	}
}

// CommitTransaction finalizes a transaction returned by
// CreateTransaction: it permanently consumes the reserved change key,
// merges the transaction into the local index, marks the coins it
// spends as spent, and hands it to the chain facade to broadcast.
// Matching Wallet::CommitTransaction, a broadcast failure is reported
// but does not undo the merge — the transaction stays recorded either
// way, since its inputs are already committed from the wallet's point
// of view.
func (w *Wallet) CommitTransaction(tx *wire.MsgTx, reserveKey *keypool.ReserveKey) (bool, error) {
	w.mu.Lock()

	if err := reserveKey.KeepKey(); err != nil {
		w.mu.Unlock()
		return false, err
	}

	merged, _, err := w.index.AddToWallet(&txindex.WalletTx{Tx: tx, FromMe: true})
	if err != nil {
		w.mu.Unlock()
		return false, err
	}
	if err := w.index.WalletUpdateSpent(tx); err != nil {
		w.mu.Unlock()
		return false, err
	}
	w.requestCounts[merged.Hash()] = 0

	chain := w.chain
	w.mu.Unlock()

	// AcceptTransaction runs without the wallet lock held: it may
	// block on network I/O and must not re-enter the wallet.
	hash := merged.Hash()
	if accepted := chain.AcceptTransaction(tx); accepted {
		log.Infof("Committed transaction %v", hash)
		return true, nil
	}
	log.Warnf("Transaction %v committed locally but rejected by the "+
		"chain facade; it remains in the wallet for a later resend", hash)
	return false, nil
}
