// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command dropindex deletes a wallet's indexed transaction history and
// rewinds it to the genesis block, forcing a full rescan on next sync.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	flags "github.com/jessevdk/go-flags"

	"github.com/libcoin/wallet/wallet"
	"github.com/libcoin/wallet/walletdb"
	_ "github.com/libcoin/wallet/walletdb/bdb"
)

var datadir = btcutil.AppDataDir("walletd", false)

var opts = struct {
	Force   bool   `short:"f" description:"Force removal without prompt"`
	DbPath  string `long:"db" description:"Path to wallet database"`
	TestNet bool   `long:"testnet" description:"Database is for the test network (version 3)"`
	SimNet  bool   `long:"simnet" description:"Database is for the simulation test network"`
}{
	DbPath: filepath.Join(datadir, "mainnet", "wallet.db"),
}

func init() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
}

func yes(s string) bool {
	switch s {
	case "y", "Y", "yes", "Yes":
		return true
	default:
		return false
	}
}

func no(s string) bool {
	switch s {
	case "n", "N", "no", "No":
		return true
	default:
		return false
	}
}

func main() {
	os.Exit(mainInt())
}

func mainInt() int {
	params := &chaincfg.MainNetParams
	if opts.TestNet {
		params = &chaincfg.TestNet3Params
	}
	if opts.SimNet {
		params = &chaincfg.SimNetParams
	}

	fmt.Println("Database path:", opts.DbPath)
	if _, err := os.Stat(opts.DbPath); os.IsNotExist(err) {
		fmt.Println("Database file does not exist")
		return 1
	}

	for !opts.Force {
		fmt.Print("Drop all indexed transaction history? [y/N] ")

		scanner := bufio.NewScanner(bufio.NewReader(os.Stdin))
		if !scanner.Scan() {
			return 0
		}
		if err := scanner.Err(); err != nil {
			fmt.Println()
			fmt.Println(err)
			return 1
		}
		resp := scanner.Text()
		if yes(resp) {
			break
		}
		if no(resp) || resp == "" {
			return 0
		}

		fmt.Println("Enter yes or no.")
	}

	db, err := walletdb.Open("bdb", opts.DbPath)
	if err != nil {
		fmt.Println("Failed to open database:", err)
		return 1
	}
	defer db.Close()

	fmt.Println("Dropping indexed transaction history")
	if err := wallet.ResetTransactionHistory(db, params); err != nil {
		fmt.Println("Failed to reset transaction history:", err)
		return 1
	}

	return 0
}
