// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet implements the wallet engine's public facade: the
// coin-selecting, fee-converging transaction builder (TxBuilder) and
// the chain-event listener that keeps the local transaction index and
// key pool in sync with an external chain facade (SyncListener).
//
// Every exported operation acquires the wallet's single logical
// mutex, matching Wallet::cs_wallet's coverage of every public
// method. Go's sync.Mutex is not reentrant, so the "nested
// acquisition is permitted" requirement is satisfied the idiomatic Go
// way instead: public methods lock once and call unexported, lock-
// assuming helpers; no method calls another exported method while
// still holding the lock.
package wallet

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/libcoin/wallet/coinselect"
	"github.com/libcoin/wallet/kdf"
	"github.com/libcoin/wallet/keypool"
	"github.com/libcoin/wallet/keystore"
	"github.com/libcoin/wallet/txindex"
	"github.com/libcoin/wallet/walletdb"
)

// LoadStatus reports the outcome of opening a wallet database,
// mirroring CWalletDB::LoadWallet's DB_LOAD_* result codes.
type LoadStatus int

const (
	// LoadOK indicates every record loaded cleanly.
	LoadOK LoadStatus = iota

	// LoadNeedsFirstRun indicates an empty database: no keys, no
	// transactions, nothing to reconcile. The caller is expected
	// to call TopUpKeyPool to seed the wallet.
	LoadNeedsFirstRun

	// LoadCorrupt indicates a record failed to decode.
	LoadCorrupt
)

// Chain is the external chain facade the wallet consults for
// confirmation depth, finality, coinbase maturity, and transaction
// broadcast (§6). It satisfies txindex.Chain, so a *Wallet can pass
// its own Chain directly to txindex.IsConfirmed and friends.
type Chain interface {
	IsFinal(tx *wire.MsgTx) bool
	Depth(hash chainhash.Hash) int32
	BlocksToMaturity(tx *wire.MsgTx) int32
	BestReceivedTime() int64
	NetworkID() byte
	AcceptTransaction(tx *wire.MsgTx) bool
}

var _ txindex.Chain = Chain(nil)

// RandSource is the randomness seam threaded down into coin
// selection and change-output placement. *rand.Rand satisfies it.
type RandSource interface {
	coinselect.RandSource
}

// Errors returned by Wallet operations, matching §7's error kinds.
var (
	ErrLocked            = errors.New("wallet: locked")
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	ErrFeeTooLarge       = errors.New("wallet: required fee too large")
	ErrTxTooLarge        = errors.New("wallet: transaction too large")
	ErrSigningFailed     = errors.New("wallet: failed to sign input")
	ErrNoOutputs         = errors.New("wallet: transaction has no outputs")
)

// Wallet is the engine's public facade: a key store, a reservable key
// pool, a local transaction index, and the glue connecting them to an
// external chain facade.
type Wallet struct {
	mu sync.Mutex

	db     walletdb.DB
	params *chaincfg.Params
	chain  Chain
	rng    RandSource

	keys  *keystore.CryptoKeyStore
	pool  *keypool.Pool
	index *txindex.Index

	// txFee is the flat per-KB fee the wallet adds on top of the
	// minimum relay fee, the nTransactionFee equivalent. Zero
	// means "rely on txrules.FeeForSerializeSize alone".
	txFee btcutil.Amount

	// requestCounts is mapRequestCount: a transient, never-
	// persisted count of getdata requests seen per transaction,
	// kept only for CommitTransaction's bookkeeping.
	requestCounts map[chainhash.Hash]int

	defaultPub     []byte
	bestBlock      BlockIdentity
	lastResendTime time.Time
	nextResendTime time.Time
}

// Create initializes a brand-new wallet database: every top-level
// bucket, an empty key store, and an empty key pool. The returned
// wallet has no default key yet; call TopUpKeyPool to seed one.
func Create(db walletdb.DB, params *chaincfg.Params, chain Chain, rng RandSource) (*Wallet, error) {
	if err := createBuckets(db); err != nil {
		return nil, err
	}
	idxStore, err := txindex.NewDBStore(db)
	if err != nil {
		return nil, err
	}
	w := newWallet(db, params, chain, rng, keystore.NewCrypto(params.PubKeyHashAddrID), idxStore)
	w.pool.Load(nil)
	return w, nil
}

// Load opens an existing wallet database, streaming every persisted
// record and reconstructing in-memory state: the key store, the key
// pool's resident index set, and the transaction index.
func Load(db walletdb.DB, params *chaincfg.Params, chain Chain, rng RandSource) (*Wallet, LoadStatus, error) {
	ks, err := loadKeyStore(db, params.PubKeyHashAddrID)
	if err != nil {
		return nil, LoadCorrupt, err
	}

	idxStore, err := txindex.NewDBStore(db)
	if err != nil {
		return nil, LoadCorrupt, err
	}

	w := newWallet(db, params, chain, rng, ks, idxStore)

	recs, err := idxStore.LoadAll()
	if err != nil {
		return nil, LoadCorrupt, err
	}
	w.index.Load(recs)

	indexes, err := loadPoolIndexes(db)
	if err != nil {
		return nil, LoadCorrupt, err
	}
	w.pool.Load(indexes)

	pub, err := loadDefaultKey(db)
	if err != nil {
		return nil, LoadCorrupt, err
	}
	w.defaultPub = pub
	if len(pub) != 0 {
		w.index.SetDefaultKey(pub)
	}

	best, err := loadBestBlock(db)
	if err != nil {
		return nil, LoadCorrupt, err
	}
	w.bestBlock = best

	if len(recs) == 0 && len(indexes) == 0 && len(pub) == 0 {
		return w, LoadNeedsFirstRun, nil
	}
	return w, LoadOK, nil
}

func newWallet(db walletdb.DB, params *chaincfg.Params, chain Chain, rng RandSource, ks *keystore.CryptoKeyStore, idxStore *txindex.DBStore) *Wallet {
	w := &Wallet{
		db:            db,
		params:        params,
		chain:         chain,
		rng:           rng,
		keys:          ks,
		requestCounts: make(map[chainhash.Hash]int),
		bestBlock:     BlockIdentity{Height: -1},
	}
	w.index = txindex.New(w.isMine, w.isFromMe, idxStore)
	w.index.OnRotateDefaultKey = w.rotateDefaultKeyScript
	w.pool = keypool.New(&poolStore{db: db}, &persistingGenerator{db: db, keys: ks}, keypool.DefaultTarget)
	return w
}

// persistingGenerator adapts *keystore.CryptoKeyStore to
// keypool.Generator, additionally writing the "key"/"ckey" record for
// every key the pool generates — the pool's own store only persists
// the {time, pub} pool record, not the key material itself.
type persistingGenerator struct {
	db   walletdb.DB
	keys *keystore.CryptoKeyStore
}

func (g *persistingGenerator) IsLocked() bool { return g.keys.IsLocked() }

func (g *persistingGenerator) GenerateKey() (keystore.Address, []byte, error) {
	addr, pub, err := g.keys.GenerateKey()
	if err != nil {
		return keystore.Address{}, nil, err
	}
	if err := persistFreshKey(g.db, g.keys, addr, pub); err != nil {
		return keystore.Address{}, nil, err
	}
	return addr, pub, nil
}

// isMine reports whether out's scriptPubKey pays a key this wallet
// holds.
func (w *Wallet) isMine(out *wire.TxOut) bool {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, w.params)
	if err != nil || len(addrs) != 1 {
		return false
	}
	hash, ok := addressHash160(addrs[0])
	if !ok {
		return false
	}
	return w.keys.HaveKey(keystore.Address{Hash: hash, NetID: w.params.PubKeyHashAddrID})
}

// isFromMe reports whether any input of tx spends a coin this wallet
// indexes, i.e. the wallet itself authored the transaction.
func (w *Wallet) isFromMe(tx *wire.MsgTx) bool {
	for _, in := range tx.TxIn {
		prev := w.index.Get(in.PreviousOutPoint.Hash)
		if prev == nil {
			continue
		}
		if int(in.PreviousOutPoint.Index) < len(prev.Tx.TxOut) && w.isMine(prev.Tx.TxOut[in.PreviousOutPoint.Index]) {
			return true
		}
	}
	return false
}

// addressHash160 extracts the 20-byte hash from a P2PKH address; any
// other address type is never "ours" since KeyStore only ever
// generates P2PKH addresses.
func addressHash160(addr btcutil.Address) ([20]byte, bool) {
	var hash [20]byte
	pkh, ok := addr.(*btcutil.AddressPubKeyHash)
	if !ok {
		return hash, false
	}
	copy(hash[:], pkh.Hash160()[:])
	return hash, true
}

// rotateDefaultKeyScript is txindex.Index.OnRotateDefaultKey: called
// whenever a payment to the current default key is observed, so a
// fresh one takes its place. Matches §9's full-scriptPubKey match
// resolution: the rotated-away key's scriptPubKey is compared, not
// just its raw bytes.
func (w *Wallet) rotateDefaultKeyScript() []byte {
	addr, pub, err := w.keys.GenerateKey()
	if err != nil {
		return w.defaultPub
	}
	if err := persistFreshKey(w.db, w.keys, addr, pub); err != nil {
		return w.defaultPub
	}
	if err := putDefaultKey(w.db, pub); err != nil {
		return w.defaultPub
	}
	w.defaultPub = pub
	return pub
}

// persistFreshKey writes the record for a key just returned by
// keys.GenerateKey: a plaintext "key" record if the store is not yet
// encrypted, or a "ckey" ciphertext record if it is (GenerateKey
// never leaves a post-encryption key resident in plaintext).
func persistFreshKey(db walletdb.DB, ks *keystore.CryptoKeyStore, addr keystore.Address, pub []byte) error {
	if !ks.IsCrypted() {
		priv, err := ks.KeyStore.GetPrivKey(addr)
		if err != nil {
			return err
		}
		return putKeyRecord(db, pub, priv)
	}
	encPriv, err := ks.GetEncryptedKey(addr)
	if err != nil {
		return err
	}
	return putCryptedKeyRecord(db, pub, encPriv)
}

// TopUpKeyPool refills the key pool to its configured target plus one
// (see keypool.Pool.TopUp), persisting every freshly generated record, and assigns a default
// key if none exists yet.
func (w *Wallet) TopUpKeyPool() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.pool.TopUp(); err != nil {
		return err
	}
	if len(w.defaultPub) == 0 {
		addr, pub, err := w.keys.GenerateKey()
		if err != nil {
			return err
		}
		if err := persistFreshKey(w.db, w.keys, addr, pub); err != nil {
			return err
		}
		if err := putDefaultKey(w.db, pub); err != nil {
			return err
		}
		w.defaultPub = pub
		w.index.SetDefaultKey(pub)
	}
	return nil
}

// IsLocked reports whether the key store currently requires a
// passphrase to produce private keys.
func (w *Wallet) IsLocked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.keys.IsLocked()
}

// EncryptWallet encrypts every resident key with a freshly generated
// master key, itself wrapped under passphrase, and persists the
// wrapped master key plus the now-encrypted key records. This is a
// one-way transition: IsCrypted is permanently true afterward. The
// store is left locked: callers must Unlock with passphrase again
// before any private-key operation will succeed.
func (w *Wallet) EncryptWallet(passphrase []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	salt, err := kdf.NewSalt()
	if err != nil {
		return err
	}
	mk, err := kdf.Derive(kdf.MethodDoubleSHA256, passphrase, salt[:], kdf.Calibrate(salt[:]))
	if err != nil {
		return err
	}

	if err := w.keys.EncryptKeys(mk); err != nil {
		mk.Zero()
		return err
	}

	// EncryptKeys keeps its own copy of mk as the resident master key,
	// so mk is zeroed here once it has been wrapped; the resident copy
	// is retired only through w.keys.Lock().
	defer mk.Zero()
	rec, err := wrapMasterKey(passphrase, mk)
	if err != nil {
		w.keys.Lock()
		return err
	}

	addrs := w.keys.GetKeys()
	crecs := make([]struct{ pub, encPriv []byte }, 0, len(addrs))
	for _, addr := range addrs {
		pub, err := w.keys.GetPubKey(addr)
		if err != nil {
			continue
		}
		encPriv, err := w.keys.GetEncryptedKey(addr)
		if err != nil {
			continue
		}
		crecs = append(crecs, struct{ pub, encPriv []byte }{pub, encPriv})
	}

	// The master-key record and every ckey record/plaintext-key
	// deletion must land together: a partial write here would leave
	// the database straddling plaintext and ciphertext for the same
	// keys, with the in-memory store already fully encrypted and no
	// way to tell which records converted. Run them in one
	// transaction, and if the KV store still fails, there is no safe
	// way to continue running with memory and disk diverged — force a
	// restart so the next Load starts over from whatever actually
	// committed.
	err = walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		if err := putMasterKeyRecordTx(tx, rec); err != nil {
			return err
		}
		for _, cr := range crecs {
			if err := putCryptedKeyRecordTx(tx, cr.pub, cr.encPriv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Criticalf("EncryptWallet: failed to persist encrypted keys, exiting: %v", err)
		os.Exit(1)
	}

	w.keys.Lock()
	log.Info("Wallet encrypted")
	return nil
}

// Unlock derives the passphrase key for every persisted master key
// record and, on the first that decrypts successfully, unlocks the
// key store with it. Returns keystore.ErrBadPassphrase-tagged error
// if none match.
func (w *Wallet) Unlock(passphrase []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	recs, err := loadMasterKeyRecords(w.db)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	var lastErr error
	for _, rec := range recs {
		mk, err := unwrapMasterKey(passphrase, rec)
		if err != nil {
			lastErr = err
			continue
		}
		err = w.keys.Unlock(mk)
		mk.Zero()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	log.Warn("Unlock attempted with an incorrect passphrase")
	return lastErr
}

// Lock re-locks the key store, requiring Unlock before any further
// private key material can be retrieved.
func (w *Wallet) Lock() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keys.Lock()
	log.Info("Wallet locked")
}

// Balance sums the value of every unspent, confirmed output this
// wallet holds.
func (w *Wallet) Balance() btcutil.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()

	var total int64
	w.index.All(func(wtx *txindex.WalletTx) {
		if !txindex.IsConfirmed(w.chain, wtx) {
			return
		}
		for i, out := range wtx.Tx.TxOut {
			if i < len(wtx.SpentBitmap) && wtx.SpentBitmap[i] {
				continue
			}
			if w.isMine(out) {
				total += out.Value
			}
		}
	})
	return btcutil.Amount(total)
}

// RequestCount returns the transient getdata request counter for
// hash, or 0 if it has never been tracked.
func (w *Wallet) RequestCount(hash chainhash.Hash) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.requestCounts[hash]
}

// SetTransactionFee sets the flat per-KB fee rate CreateTransaction
// adds on top of whatever relay fee rate its caller supplies,
// equivalent to the original's settable nTransactionFee.
func (w *Wallet) SetTransactionFee(fee btcutil.Amount) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.txFee = fee
}
