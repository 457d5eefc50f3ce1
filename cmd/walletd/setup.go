// Copyright (c) 2014-2015 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/libcoin/wallet/internal/prompt"
	"github.com/libcoin/wallet/wallet"
	"github.com/libcoin/wallet/walletdb"
	_ "github.com/libcoin/wallet/walletdb/bdb"
)

// networkDir returns the directory name holding the wallet's database
// and other network-specific files, for the given chain parameters.
func networkDir(dataDir string, chainParams *chaincfg.Params) string {
	return filepath.Join(dataDir, chainParams.Name)
}

// checkCreateDir checks that path exists and is a directory, creating
// it if it does not exist.
func checkCreateDir(path string) error {
	if fi, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if err = os.MkdirAll(path, 0700); err != nil {
				return fmt.Errorf("cannot create directory: %s", err)
			}
		} else {
			return fmt.Errorf("error checking directory: %s", err)
		}
	} else if !fi.IsDir() {
		return fmt.Errorf("path '%s' is not a directory", path)
	}

	return nil
}

// createWallet prompts for the new wallet's encryption passphrase and
// creates the wallet database at the location indicated by cfg.
func createWallet(cfg *config) error {
	netDir := networkDir(cfg.AppDataDir.Value, activeNet.Params)
	dbPath := filepath.Join(netDir, walletDbName)

	db, err := walletdb.Create("bdb", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	reader := bufio.NewReader(os.Stdin)
	passphrase, encrypt, err := prompt.PrivatePass(reader)
	if err != nil {
		return err
	}

	chain := &dummyStartupChain{}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	w, err := wallet.Create(db, activeNet.Params, chain, rng)
	if err != nil {
		return err
	}
	if err := w.TopUpKeyPool(); err != nil {
		return err
	}
	if encrypt {
		if err := w.EncryptWallet(passphrase); err != nil {
			return err
		}
	}

	fmt.Println("The wallet has been created successfully.")
	return nil
}

// dummyStartupChain is a wallet.Chain that never accepts anything; it
// exists only to satisfy Create's constructor during the interactive
// wallet-creation flow, before the real chain connection is running.
type dummyStartupChain struct{}

func (dummyStartupChain) IsFinal(tx *wire.MsgTx) bool               { return true }
func (dummyStartupChain) Depth(hash chainhash.Hash) int32           { return -1 }
func (dummyStartupChain) BlocksToMaturity(tx *wire.MsgTx) int32     { return 0 }
func (dummyStartupChain) BestReceivedTime() int64                   { return 0 }
func (dummyStartupChain) NetworkID() byte                           { return 0 }
func (dummyStartupChain) AcceptTransaction(tx *wire.MsgTx) bool     { return false }
