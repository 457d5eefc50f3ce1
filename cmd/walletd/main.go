// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command walletd runs a passphrase-encrypted wallet that tracks its
// own transactions against a remote btcd-compatible chain server.
package main

import (
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/libcoin/wallet/chain"
	"github.com/libcoin/wallet/netparams"
	"github.com/libcoin/wallet/wallet"
	"github.com/libcoin/wallet/walletdb"
	_ "github.com/libcoin/wallet/walletdb/bdb"
)

// activeNet is the parameter set selected by the --testnet/--simnet
// flags, defaulting to the main network.
var activeNet = &netparams.MainNetParams

const reminderInterval = time.Minute

func main() {
	os.Exit(walletMain())
}

// walletMain is the real entry point, separated from main only so
// deferred cleanups run before os.Exit.
func walletMain() int {
	cfg, _, err := loadConfig()
	if err != nil {
		return 1
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	interrupt := interruptListener()
	defer log.Info("Shutdown complete")

	dbDir := networkDir(cfg.AppDataDir.Value, activeNet.Params)
	dbPath := filepath.Join(dbDir, walletDbName)
	db, err := walletdb.Open("bdb", dbPath)
	if err != nil {
		log.Errorf("Failed to open wallet database: %v", err)
		return 1
	}
	defer db.Close()

	certs := readCAFile(cfg)

	chainClient, err := chain.NewRPCClient(activeNet.Params, cfg.RPCConnect,
		cfg.RPCUser, cfg.RPCPass, certs, cfg.DisableClientTLS, cfg.ReconnectAttempts)
	if err != nil {
		log.Errorf("Failed to create chain server client: %v", err)
		return 1
	}
	if err := chainClient.Start(); err != nil {
		log.Errorf("Failed to connect to chain server: %v", err)
		return 1
	}
	defer chainClient.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	w, status, err := wallet.Load(db, activeNet.Params, chainClient, rng)
	if err != nil {
		log.Errorf("Failed to load wallet: %v", err)
		return 1
	}
	if status == wallet.LoadNeedsFirstRun {
		if err := w.TopUpKeyPool(); err != nil {
			log.Errorf("Failed to seed the key pool: %v", err)
			return 1
		}
	}
	if cfg.TxFee.Amount != 0 {
		w.SetTransactionFee(cfg.TxFee.Amount)
	}

	listener := wallet.NewSyncListener(w)

	addInterruptHandler(func() {
		chainClient.Stop()
		chainClient.WaitForShutdown()
	})

	go dispatchNotifications(chainClient, listener)
	go remindPeriodically(listener)

	log.Infof("walletd version %v started, network %v", version(), activeNet.Params.Name)
	<-interrupt
	return 0
}

// dispatchNotifications feeds every notification pushed by the chain
// client into the sync listener until the notification channel closes.
func dispatchNotifications(chainClient *chain.RPCClient, listener *wallet.SyncListener) {
	for n := range chainClient.Notifications() {
		var err error
		switch n := n.(type) {
		case chain.TransactionAccepted:
			err = listener.OnTransactionAccepted(n.Tx)
		case chain.BlockAccepted:
			err = listener.OnBlockAccepted(n.Block, n.Height)
		}
		if err != nil {
			log.Errorf("Failed to process chain notification: %v", err)
		}
	}
}

// remindPeriodically calls the sync listener's reminder hook on a
// fixed tick; ResendWalletTransactions applies its own throttle so
// most ticks are a no-op.
func remindPeriodically(listener *wallet.SyncListener) {
	ticker := time.NewTicker(reminderInterval)
	defer ticker.Stop()
	for range ticker.C {
		if hashes := listener.OnReminder(); len(hashes) > 0 {
			log.Infof("Rebroadcast %d pending transaction(s)", len(hashes))
		}
	}
}

// readCAFile reads the TLS certificate(s) used to authenticate the
// chain server connection, or returns nil when client TLS is disabled.
func readCAFile(cfg *config) []byte {
	if cfg.DisableClientTLS {
		return nil
	}
	certs, err := ioutil.ReadFile(cfg.CAFile.Value)
	if err != nil {
		log.Warnf("Cannot open CA file: %v", err)
		return nil
	}
	return certs
}

// interruptListener starts the interrupt handler and returns a channel
// that is closed once every registered handler has run.
func interruptListener() <-chan struct{} {
	addInterruptHandler(func() {})
	done := make(chan struct{})
	go func() {
		<-interruptHandlersDone
		close(done)
	}()
	return done
}
