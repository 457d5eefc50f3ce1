// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txrules provides transaction rules that a transaction
// author should follow for broad mempool acceptance and fast mining.
package txrules

import (
	"errors"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// DefaultRelayFeePerKb is the default minimum relay fee policy used
// by the reference mempool.
const DefaultRelayFeePerKb btcutil.Amount = 1e3

// GetDustThreshold returns the output value below which an output of
// scriptSize is considered dust: three times the estimated relay cost
// of the output plus the input that would later redeem it.
func GetDustThreshold(scriptSize int, relayFeePerKb btcutil.Amount) btcutil.Amount {
	// 8 bytes for the value, plus the script and the size of a
	// compressed P2PKH input that would spend this output (148
	// bytes), since that is the most common redeeming input.
	totalSize := 8 + wire.VarIntSerializeSize(uint64(scriptSize)) +
		scriptSize + 148

	byteFee := relayFeePerKb / 1000
	relayFee := btcutil.Amount(totalSize) * byteFee
	return 3 * relayFee
}

// IsDustAmount reports whether amount paid to an output of scriptSize
// bytes would be considered dust.
func IsDustAmount(amount btcutil.Amount, scriptSize int, relayFeePerKb btcutil.Amount) bool {
	return amount < GetDustThreshold(scriptSize, relayFeePerKb)
}

// IsDustOutput reports whether a transaction output is dust.
func IsDustOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) bool {
	// An unspendable data-carrier output is never dust.
	if txscript.GetScriptClass(output.PkScript) == txscript.NullDataTy {
		return false
	}
	if txscript.IsUnspendable(output.PkScript) {
		return true
	}
	return IsDustAmount(btcutil.Amount(output.Value), len(output.PkScript), relayFeePerKb)
}

var (
	ErrAmountNegative   = errors.New("transaction output amount is negative")
	ErrAmountExceedsMax = errors.New("transaction output amount exceeds maximum value")
	ErrOutputIsDust     = errors.New("transaction output is dust")
)

// CheckOutput performs simple consensus and policy checks on a
// transaction output.
func CheckOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) error {
	if output.Value < 0 {
		return ErrAmountNegative
	}
	if output.Value > btcutil.MaxSatoshi {
		return ErrAmountExceedsMax
	}
	if IsDustOutput(output, relayFeePerKb) {
		return ErrOutputIsDust
	}
	return nil
}

// FeeForSerializeSize returns the fee a transaction of
// txSerializeSize bytes should pay at relayFeePerKb, rounding up to
// relayFeePerKb itself for any nonzero fee that would otherwise round
// to zero.
func FeeForSerializeSize(relayFeePerKb btcutil.Amount, txSerializeSize int) btcutil.Amount {
	fee := relayFeePerKb * btcutil.Amount(txSerializeSize) / 1000

	if fee == 0 && relayFeePerKb > 0 {
		fee = relayFeePerKb
	}
	if fee < 0 || fee > btcutil.MaxSatoshi {
		fee = btcutil.MaxSatoshi
	}
	return fee
}
