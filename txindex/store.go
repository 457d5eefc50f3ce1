// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txindex

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/libcoin/wallet/walletdb"
	"github.com/libcoin/wallet/walletdb/migration"
)

// byteOrder matches wtxmgr's convention: big-endian, so a bucket
// cursor scanning integer keys in byte order also scans them in
// numeric order. Only the version counter uses it directly here.
var byteOrder = binary.BigEndian

// Naming
//
// This file follows the wtxmgr convention: ns is this package's
// namespace bucket, b the bucket currently being operated on, k a
// single bucket key, v a single bucket value.

// bucketTxRecords is the "tx" record bucket described by the
// persisted record keys: ("tx", txhash) -> WalletTx.
var bucketTxRecords = []byte("tx")

// rootVersion is the root bucket's schema version key, consumed by
// walletdb/migration.Manager.
var rootVersion = []byte("version")

const latestVersion = 1

// Store persists WalletTx records as the index merges them. It is
// satisfied by DBStore, and may be stubbed out in tests that only
// care about in-memory merge behavior.
type Store interface {
	PutTx(hash chainhash.Hash, wtx *WalletTx) error
	GetTx(hash chainhash.Hash) (*WalletTx, error)
	LoadAll() (map[chainhash.Hash]*WalletTx, error)
}

// DBStore is the WalletDB-backed Store. It keeps every WalletTx
// record under a single top-level bucket, keyed by transaction hash.
type DBStore struct {
	db walletdb.DB
}

// NewDBStore opens (creating if necessary) the transaction index's
// top-level bucket within db.
func NewDBStore(db walletdb.DB) (*DBStore, error) {
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns, err := tx.CreateTopLevelBucket(bucketTxRecords)
		if err != nil && err != walletdb.ErrBucketExists {
			return err
		}
		if ns == nil {
			ns = tx.ReadWriteBucket(bucketTxRecords)
		}
		return migration.Upgrade(&manager{ns: ns})
	})
	if err != nil {
		return nil, err
	}
	return &DBStore{db: db}, nil
}

// DropAll deletes every persisted WalletTx record and re-creates an
// empty index bucket, for tools that need to force a rescan from
// scratch.
func DropAll(db walletdb.DB) error {
	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		err := tx.DeleteTopLevelBucket(bucketTxRecords)
		if err != nil && err != walletdb.ErrBucketNotFound {
			return err
		}
		ns, err := tx.CreateTopLevelBucket(bucketTxRecords)
		if err != nil {
			return err
		}
		return migration.Upgrade(&manager{ns: ns})
	})
}

// PutTx persists wtx under hash, overwriting any prior record.
func (s *DBStore) PutTx(hash chainhash.Hash, wtx *WalletTx) error {
	v, err := serialize(wtx)
	if err != nil {
		return err
	}
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(bucketTxRecords)
		return ns.Put(hash[:], v)
	})
}

// GetTx returns the record stored under hash, or nil if none exists.
func (s *DBStore) GetTx(hash chainhash.Hash) (*WalletTx, error) {
	var wtx *WalletTx
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(bucketTxRecords)
		v := ns.Get(hash[:])
		if v == nil {
			return nil
		}
		var err error
		wtx, err = deserialize(v)
		return err
	})
	return wtx, err
}

// LoadAll streams every persisted WalletTx record, reconstructing the
// map an Index.Load call expects. This is the WalletDB-backed half of
// LoadWallet (component F): the caller still owns rebuilding
// in-memory ancillary state such as the keystore and keypool from
// their own buckets.
func (s *DBStore) LoadAll() (map[chainhash.Hash]*WalletTx, error) {
	out := make(map[chainhash.Hash]*WalletTx)
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(bucketTxRecords)
		return ns.ForEach(func(k, v []byte) error {
			if len(k) != chainhash.HashSize {
				// Not a tx record (e.g. the version key).
				return nil
			}
			wtx, err := deserialize(v)
			if err != nil {
				return err
			}
			var hash chainhash.Hash
			copy(hash[:], k)
			out[hash] = wtx
			return nil
		})
	})
	return out, err
}

// manager adapts DBStore to the walletdb/migration.Manager interface,
// so a future on-disk format change can ship as a migration.Version
// instead of a hand-rolled version check.
type manager struct {
	ns walletdb.ReadWriteBucket
}

var _ migration.Manager = (*manager)(nil)

func (m *manager) Name() string { return "txindex" }

func (m *manager) Namespace() walletdb.ReadWriteBucket { return m.ns }

func (m *manager) CurrentVersion(ns walletdb.ReadBucket) (uint32, error) {
	v := ns.Get(rootVersion)
	if v == nil {
		return 0, nil
	}
	return byteOrder.Uint32(v), nil
}

func (m *manager) SetVersion(ns walletdb.ReadWriteBucket, version uint32) error {
	var buf [4]byte
	byteOrder.PutUint32(buf[:], version)
	return ns.Put(rootVersion, buf[:])
}

func (m *manager) Versions() []migration.Version {
	return []migration.Version{
		{Number: latestVersion, Migration: nil},
	}
}
