// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain implements the wallet.Chain facade against a remote
// btcd-compatible RPC chain server, and drives a wallet.SyncListener
// from the notifications that server pushes over the same connection.
package chain

import (
	"errors"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/libcoin/wallet/wallet"
)

var _ wallet.Chain = (*RPCClient)(nil)

// TransactionAccepted is pushed when the server's mempool accepts a
// transaction paying to or spending from a watched address.
type TransactionAccepted struct {
	Tx *wire.MsgTx
}

// BlockAccepted is pushed when a new block is connected to the
// server's best chain.
type BlockAccepted struct {
	Block  *wire.MsgBlock
	Height int32
}

// RPCClient is a persistent connection to a btcd-compatible JSON-RPC
// chain server, implementing wallet.Chain directly against it and
// forwarding the server's own push notifications as
// TransactionAccepted/BlockAccepted values.
type RPCClient struct {
	*rpcclient.Client

	connConfig        *rpcclient.ConnConfig
	chainParams       *chaincfg.Params
	reconnectAttempts int

	queue *ConcurrentQueue

	mu         sync.Mutex
	bestHeight int32
	bestTime   time.Time

	quit    chan struct{}
	started bool
	quitMtx sync.Mutex
}

// NewRPCClient creates a connection to a chain server at connect,
// authenticated with user/pass. The connection is not established
// until Start is called. If the remote server turns out to run a
// different network than chainParams names, Start disconnects and
// reports an error.
func NewRPCClient(chainParams *chaincfg.Params, connect, user, pass string,
	certs []byte, disableTLS bool, reconnectAttempts int) (*RPCClient, error) {

	if reconnectAttempts < 0 {
		return nil, errors.New("reconnectAttempts must be non-negative")
	}

	c := &RPCClient{
		connConfig: &rpcclient.ConnConfig{
			Host:                 connect,
			Endpoint:             "ws",
			User:                 user,
			Pass:                 pass,
			Certificates:         certs,
			DisableAutoReconnect: false,
			DisableConnectOnNew:  true,
			DisableTLS:           disableTLS,
		},
		chainParams:       chainParams,
		reconnectAttempts: reconnectAttempts,
		queue:             NewConcurrentQueue(512),
		bestHeight:        -1,
		quit:              make(chan struct{}),
	}

	handlers := &rpcclient.NotificationHandlers{
		OnBlockConnected: c.onBlockConnected,
		OnRecvTx:         c.onRecvTx,
		OnRedeemingTx:    c.onRecvTx,
	}
	client, err := rpcclient.New(c.connConfig, handlers)
	if err != nil {
		return nil, err
	}
	c.Client = client
	return c, nil
}

// Start establishes the connection, verifies the server's network,
// and begins dispatching notifications.
func (c *RPCClient) Start() error {
	if err := c.Connect(c.reconnectAttempts); err != nil {
		return err
	}

	net, err := c.GetCurrentNet()
	if err != nil {
		c.Disconnect()
		return err
	}
	if net != c.chainParams.Net {
		c.Disconnect()
		return errors.New("chain: remote server is on the wrong network")
	}

	hash, height, err := c.GetBestBlock()
	if err != nil {
		c.Disconnect()
		return err
	}
	header, err := c.GetBlockHeader(hash)
	if err != nil {
		c.Disconnect()
		return err
	}

	c.mu.Lock()
	c.bestHeight = height
	c.bestTime = header.Timestamp
	c.mu.Unlock()

	if err := c.NotifyBlocks(); err != nil {
		c.Disconnect()
		return err
	}

	c.quitMtx.Lock()
	c.started = true
	c.quitMtx.Unlock()

	c.queue.Start()
	return nil
}

// Stop disconnects the client and shuts down notification dispatch.
func (c *RPCClient) Stop() {
	c.quitMtx.Lock()
	select {
	case <-c.quit:
	default:
		close(c.quit)
		c.Client.Shutdown()
		c.queue.Stop()
	}
	c.quitMtx.Unlock()
}

// WaitForShutdown blocks until the underlying RPC client has finished
// disconnecting.
func (c *RPCClient) WaitForShutdown() {
	c.Client.WaitForShutdown()
}

// Notifications returns the channel TransactionAccepted and
// BlockAccepted values are pushed on. It must be drained continuously
// — an unread notification stays queued in memory indefinitely
// (ConcurrentQueue has no bound).
func (c *RPCClient) Notifications() <-chan interface{} {
	return c.queue.ChanOut()
}

func (c *RPCClient) onBlockConnected(hash *chainhash.Hash, height int32, blockTime time.Time) {
	block, err := c.Client.GetBlock(hash)
	if err != nil {
		log.Errorf("chain: failed to fetch connected block %v: %v", hash, err)
		return
	}

	c.mu.Lock()
	c.bestHeight = height
	c.bestTime = blockTime
	c.mu.Unlock()

	select {
	case c.queue.ChanIn() <- BlockAccepted{Block: block, Height: height}:
	case <-c.quit:
	}
}

func (c *RPCClient) onRecvTx(tx *btcutil.Tx, _ *btcjson.BlockDetails) {
	c.mu.Lock()
	c.bestTime = time.Now()
	c.mu.Unlock()

	select {
	case c.queue.ChanIn() <- TransactionAccepted{Tx: tx.MsgTx()}:
	case <-c.quit:
	}
}

// IsFinal implements wallet.Chain, deciding finality against the
// server's most recently observed best height and block time, the
// same two quantities CheckFinalTx compares a transaction's locktime
// and sequence numbers against.
func (c *RPCClient) IsFinal(tx *wire.MsgTx) bool {
	c.mu.Lock()
	height, blockTime := c.bestHeight, c.bestTime
	c.mu.Unlock()
	if blockTime.IsZero() {
		blockTime = time.Now()
	}
	return blockchain.IsFinalizedTransaction(btcutil.NewTx(tx), height+1, blockTime)
}

// Depth implements wallet.Chain: the server's confirmation count for
// hash, or -1 if the server does not recognize the transaction at
// all.
func (c *RPCClient) Depth(hash chainhash.Hash) int32 {
	result, err := c.Client.GetRawTransactionVerbose(&hash)
	if err != nil {
		return -1
	}
	return int32(result.Confirmations)
}

// BlocksToMaturity implements wallet.Chain: the number of additional
// confirmations a coinbase output still needs before it is spendable,
// zero for any non-coinbase transaction.
func (c *RPCClient) BlocksToMaturity(tx *wire.MsgTx) int32 {
	if !blockchain.IsCoinBaseTx(tx) {
		return 0
	}
	depth := c.Depth(tx.TxHash())
	if depth < 0 {
		depth = 0
	}
	remaining := int32(c.chainParams.CoinbaseMaturity) - depth
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// BestReceivedTime implements wallet.Chain: the timestamp of the most
// recently observed block or mempool acceptance, the nTimeBestReceived
// equivalent ResendWalletTransactions gates its throttle on.
func (c *RPCClient) BestReceivedTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bestTime.IsZero() {
		return time.Now().Unix()
	}
	return c.bestTime.Unix()
}

// NetworkID implements wallet.Chain.
func (c *RPCClient) NetworkID() byte {
	return c.chainParams.PubKeyHashAddrID
}

// AcceptTransaction implements wallet.Chain by relaying tx to the
// chain server's mempool. It reports false, rather than returning an
// error, on any failure — CommitTransaction and ResendWalletTransactions
// both treat "not accepted" as "try again later", matching
// Wallet::CommitTransaction's own boolean broadcast result.
func (c *RPCClient) AcceptTransaction(tx *wire.MsgTx) bool {
	_, err := c.Client.SendRawTransaction(tx, false)
	if err != nil {
		log.Warnf("chain: transaction %v rejected: %v", tx.TxHash(), err)
		return false
	}
	return true
}
