// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// BlockIdentity identifies a block, or the absence of one, for
// describing the containing block of a transaction.
type BlockIdentity struct {
	Hash   chainhash.Hash
	Height int32
}

// None reports whether b describes no block at all, i.e. the
// transaction it is attached to is unconfirmed.
func (b *BlockIdentity) None() bool {
	return *b == BlockIdentity{Height: -1} || *b == BlockIdentity{}
}

// OutputKind describes the kind of a transaction output.
type OutputKind byte

const (
	OutputKindNormal OutputKind = iota
	OutputKindCoinbase
)

// TransactionOutput describes an output that is at least partially
// controlled by the wallet, whether still unspent or already spent.
type TransactionOutput struct {
	OutPoint        wire.OutPoint
	Output          wire.TxOut
	OutputKind      OutputKind
	ContainingBlock BlockIdentity
	ReceiveTime     time.Time
}

// OutputRedeemer identifies the transaction input that redeems an
// output.
type OutputRedeemer struct {
	TxHash     chainhash.Hash
	InputIndex uint32
}

// P2SHMultiSigOutput describes a transaction output paying to a
// script hash, along with the redeem script needed to spend it.
type P2SHMultiSigOutput struct {
	OutPoint        wire.OutPoint
	OutputAmount    btcutil.Amount
	ContainingBlock BlockIdentity

	P2SHAddress  *btcutil.AddressScriptHash
	RedeemScript []byte
	M, N         uint8
	Redeemer     *OutputRedeemer
}
