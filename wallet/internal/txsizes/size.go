// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txsizes

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"

	h "github.com/libcoin/wallet/internal/helpers"
)

const (
	// RedeemP2PKHSigScriptSize is the worst-case serialized size of a
	// transaction input script redeeming a compressed P2PKH output:
	// OP_DATA_73 <73-byte DER signature + sighash byte> OP_DATA_33
	// <33-byte compressed pubkey>.
	RedeemP2PKHSigScriptSize = 1 + 73 + 1 + 33

	// P2PKHPkScriptSize is the size of a transaction output script
	// paying a compressed pubkey hash: OP_DUP OP_HASH160
	// OP_DATA_20 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG.
	P2PKHPkScriptSize = 1 + 1 + 1 + 20 + 1 + 1

	// RedeemP2PKHInputSize is the worst-case size of a transaction
	// input redeeming a compressed P2PKH output: 32-byte previous
	// hash, 4-byte output index, the compact size encoding of the
	// signature script, the signature script itself, and a 4-byte
	// sequence number.
	RedeemP2PKHInputSize = 32 + 4 + 1 + RedeemP2PKHSigScriptSize + 4

	// P2PKHOutputSize is the serialized size of a transaction output
	// with a P2PKH output script: 8-byte value, compact size
	// encoding of the script, and the script itself.
	P2PKHOutputSize = 8 + 1 + P2PKHPkScriptSize

	// P2WPKHPkScriptSize is the size of a transaction output script
	// paying a witness pubkey hash: OP_0 OP_DATA_20 <20-byte hash>.
	P2WPKHPkScriptSize = 1 + 1 + 20

	// P2WPKHOutputSize is the serialized size of a transaction
	// output with a P2WPKH output script.
	P2WPKHOutputSize = 8 + 1 + P2WPKHPkScriptSize

	// RedeemP2WPKHScriptSize is the size of the (empty) signature
	// script redeeming a native P2WPKH output.
	RedeemP2WPKHScriptSize = 0

	// RedeemP2WPKHInputSize is the worst-case non-witness size of a
	// transaction input redeeming a P2WPKH output.
	RedeemP2WPKHInputSize = 32 + 4 + 1 + RedeemP2WPKHScriptSize + 4

	// RedeemNestedP2WPKHScriptSize is the size of the signature
	// script redeeming a P2WPKH output nested inside P2SH:
	// compact size 22, OP_0, compact size 20, 20-byte key hash.
	RedeemNestedP2WPKHScriptSize = 1 + 1 + 1 + 20

	// RedeemNestedP2WPKHInputSize is the worst-case non-witness size
	// of a transaction input redeeming a nested P2SH-P2WPKH output.
	RedeemNestedP2WPKHInputSize = 32 + 4 + 1 +
		RedeemNestedP2WPKHScriptSize + 4

	// RedeemP2WPKHInputWitnessWeight is the weight of the witness
	// data spending a P2WPKH or nested P2WPKH output: a 2-item
	// stack, a 73-byte signature and a 33-byte compressed pubkey.
	RedeemP2WPKHInputWitnessWeight = 1 + 1 + 73 + 1 + 33
)

// EstimateSerializeSize returns a worst-case serialized size estimate
// for a signed transaction that spends inputCount compressed P2PKH
// outputs and contains each output in txOuts. The estimate grows by a
// P2PKH change output's size if addChangeOutput is set.
func EstimateSerializeSize(inputCount int, txOuts []*wire.TxOut, addChangeOutput bool) int {
	changeSize := 0
	outputCount := len(txOuts)
	if addChangeOutput {
		changeSize = P2PKHOutputSize
		outputCount++
	}

	// 8 additional bytes for version and locktime.
	return 8 + wire.VarIntSerializeSize(uint64(inputCount)) +
		wire.VarIntSerializeSize(uint64(outputCount)) +
		inputCount*RedeemP2PKHInputSize +
		h.SumOutputSerializeSizes(txOuts) +
		changeSize
}

// EstimateVirtualSize returns a worst-case virtual size estimate for
// a signed transaction spending the given counts of P2PKH, P2WPKH,
// and nested P2WPKH outputs and containing each output in txOuts. The
// estimate grows by a P2WPKH change output's size if addChangeOutput
// is set.
func EstimateVirtualSize(numP2PKHIns, numP2WPKHIns, numNestedP2WPKHIns int,
	txOuts []*wire.TxOut, addChangeOutput bool) int {
	changeSize := 0
	outputCount := len(txOuts)
	if addChangeOutput {
		// Change outputs from this estimator are always P2WPKH.
		changeSize = P2WPKHOutputSize
		outputCount++
	}

	// 8 additional bytes for version and locktime, plus input and
	// output counts, the non-witness parts of every input and
	// output, and the change output if any.
	baseSize := 8 +
		wire.VarIntSerializeSize(
			uint64(numP2PKHIns+numP2WPKHIns+numNestedP2WPKHIns)) +
		wire.VarIntSerializeSize(uint64(len(txOuts))) +
		numP2PKHIns*RedeemP2PKHInputSize +
		numP2WPKHIns*RedeemP2WPKHInputSize +
		numNestedP2WPKHIns*RedeemNestedP2WPKHInputSize +
		h.SumOutputSerializeSizes(txOuts) +
		changeSize

	witnessWeight := 0
	if numP2WPKHIns+numNestedP2WPKHIns > 0 {
		// Segwit marker and flag cost 2 extra weight units.
		witnessWeight = 2 +
			wire.VarIntSerializeSize(
				uint64(numP2WPKHIns+numNestedP2WPKHIns)) +
			numP2WPKHIns*RedeemP2WPKHInputWitnessWeight +
			numNestedP2WPKHIns*RedeemP2WPKHInputWitnessWeight
	}

	// Round the witness weight up before dividing.
	return baseSize + (witnessWeight+3)/blockchain.WitnessScaleFactor
}
