// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package netparams groups the chaincfg network parameters this wallet
// can run against with the default port of the remote chain server it
// talks to on that network.
package netparams

import "github.com/btcsuite/btcd/chaincfg"

// Params couples a chaincfg.Params with the conventional port a chain
// server listens on for that network.
type Params struct {
	*chaincfg.Params
	RPCClientPort string
}

// MainNetParams holds the parameters for the main Bitcoin network.
var MainNetParams = Params{
	Params:        &chaincfg.MainNetParams,
	RPCClientPort: "8334",
}

// TestNet3Params holds the parameters for the test network (version 3).
var TestNet3Params = Params{
	Params:        &chaincfg.TestNet3Params,
	RPCClientPort: "18334",
}

// SimNetParams holds the parameters for the simulation test network.
var SimNetParams = Params{
	Params:        &chaincfg.SimNetParams,
	RPCClientPort: "18556",
}
