// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/libcoin/wallet/codec"
	"github.com/libcoin/wallet/kdf"
	"github.com/libcoin/wallet/keypool"
	"github.com/libcoin/wallet/keystore"
	"github.com/libcoin/wallet/txindex"
	"github.com/libcoin/wallet/walletdb"
	"github.com/libcoin/wallet/walletdb/migration"
)

// byteOrder matches txindex's convention for the handful of
// fixed-width integer keys this package persists directly.
var byteOrder = binary.BigEndian

// Top-level buckets, one per record family named in the persisted
// record keys: ("key", pub) -> priv, ("ckey", pub) -> ciphertext,
// ("mkey", id) -> MasterKey, ("pool", index) -> {time, pub},
// ("name", addressString) -> label, plus a single "meta" bucket for
// the scalar defaultkey/bestblock/version keys and a "setting"
// bucket for arbitrary named settings.
var (
	bucketKeys     = []byte("key")
	bucketCKeys    = []byte("ckey")
	bucketMKeys    = []byte("mkey")
	bucketPool     = []byte("pool")
	bucketNames    = []byte("name")
	bucketMeta     = []byte("meta")
	bucketSettings = []byte("setting")

	metaDefaultKey = []byte("defaultkey")
	metaBestBlock  = []byte("bestblock")
	metaVersion    = []byte("version")
)

const latestWalletVersion = 1

var allTopLevelBuckets = [][]byte{
	bucketKeys, bucketCKeys, bucketMKeys, bucketPool,
	bucketNames, bucketMeta, bucketSettings,
}

// createBuckets opens (creating if necessary) every top-level bucket
// this package persists into, and seeds the schema version the first
// time a wallet database is created.
func createBuckets(db walletdb.DB) error {
	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		for _, name := range allTopLevelBuckets {
			if _, err := tx.CreateTopLevelBucket(name); err != nil && err != walletdb.ErrBucketExists {
				return err
			}
		}
		meta := tx.ReadWriteBucket(bucketMeta)
		return migration.Upgrade(&manager{ns: meta})
	})
}

// manager adapts the meta bucket's version key to
// walletdb/migration.Manager, the same way txindex.manager does for
// its own bucket.
type manager struct {
	ns walletdb.ReadWriteBucket
}

var _ migration.Manager = (*manager)(nil)

func (m *manager) Name() string                        { return "wallet" }
func (m *manager) Namespace() walletdb.ReadWriteBucket { return m.ns }

func (m *manager) CurrentVersion(ns walletdb.ReadBucket) (uint32, error) {
	v := ns.Get(metaVersion)
	if v == nil {
		return 0, nil
	}
	return byteOrder.Uint32(v), nil
}

func (m *manager) SetVersion(ns walletdb.ReadWriteBucket, version uint32) error {
	var buf [4]byte
	byteOrder.PutUint32(buf[:], version)
	return ns.Put(metaVersion, buf[:])
}

func (m *manager) Versions() []migration.Version {
	return []migration.Version{{Number: latestWalletVersion, Migration: nil}}
}

// MasterKeyRecord is the persisted form of a passphrase-wrapped
// master key: the ("mkey", id) record. EncryptedKey is kdf.Encrypt
// applied to the 48-byte key||iv of the unwrapped master key, using
// a key derived from the user's passphrase via Salt/Method/Iterations.
type MasterKeyRecord struct {
	ID           uint32
	EncryptedKey []byte
	Salt         []byte
	Method       uint32
	Iterations   uint32
}

// loadKeyStore reconstructs a *keystore.CryptoKeyStore from its
// persisted key/ckey buckets. The store is returned locked if any
// ckey records exist; callers unlock it with a passphrase-derived key
// built from the mkey records via Wallet.Unlock.
func loadKeyStore(db walletdb.DB, netID byte) (*keystore.CryptoKeyStore, error) {
	ks := keystore.NewCrypto(netID)
	err := walletdb.View(db, func(tx walletdb.ReadTx) error {
		plain := tx.ReadBucket(bucketKeys)
		if err := plain.ForEach(func(pub, priv []byte) error {
			ks.AddKey(append([]byte{}, pub...), append([]byte{}, priv...))
			return nil
		}); err != nil {
			return err
		}
		crypted := tx.ReadBucket(bucketCKeys)
		return crypted.ForEach(func(pub, encPriv []byte) error {
			ks.AddCryptedKey(append([]byte{}, pub...), append([]byte{}, encPriv...))
			return nil
		})
	})
	return ks, err
}

// putKeyRecord persists a single unencrypted {pub: priv} pair.
func putKeyRecord(db walletdb.DB, pub, priv []byte) error {
	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(bucketKeys).Put(pub, priv)
	})
}

// putCryptedKeyRecordTx persists a single {pub: ciphertext} pair and
// removes any unencrypted record for the same pub, matching
// EncryptKeys' one-way transition. Runs within a transaction the
// caller already holds open, so multiple records can be committed
// atomically (see EncryptWallet).
func putCryptedKeyRecordTx(tx walletdb.ReadWriteTx, pub, encryptedPriv []byte) error {
	b := tx.ReadWriteBucket(bucketCKeys)
	if err := b.Put(pub, encryptedPriv); err != nil {
		return err
	}
	return tx.ReadWriteBucket(bucketKeys).Delete(pub)
}

// putCryptedKeyRecord persists a single {pub: ciphertext} pair in its
// own auto-commit transaction.
func putCryptedKeyRecord(db walletdb.DB, pub, encryptedPriv []byte) error {
	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		return putCryptedKeyRecordTx(tx, pub, encryptedPriv)
	})
}

// putMasterKeyRecordTx persists a MasterKeyRecord under its numeric
// id within a transaction the caller already holds open.
func putMasterKeyRecordTx(tx walletdb.ReadWriteTx, rec MasterKeyRecord) error {
	b := tx.ReadWriteBucket(bucketMKeys)
	buf, err := serializeMasterKey(rec)
	if err != nil {
		return err
	}
	var idKey [4]byte
	byteOrder.PutUint32(idKey[:], rec.ID)
	return b.Put(idKey[:], buf)
}

// loadMasterKeyRecords reads every persisted MasterKeyRecord.
func loadMasterKeyRecords(db walletdb.DB) ([]MasterKeyRecord, error) {
	var recs []MasterKeyRecord
	err := walletdb.View(db, func(tx walletdb.ReadTx) error {
		return tx.ReadBucket(bucketMKeys).ForEach(func(k, v []byte) error {
			rec, err := deserializeMasterKey(v)
			if err != nil {
				return err
			}
			rec.ID = byteOrder.Uint32(k)
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}

func serializeMasterKey(rec MasterKeyRecord) ([]byte, error) {
	return codec.Bytes(func(w io.Writer) error {
		if err := codec.WriteUint32(w, rec.Method); err != nil {
			return err
		}
		if err := codec.WriteUint32(w, rec.Iterations); err != nil {
			return err
		}
		if err := codec.WriteVarBytes(w, rec.Salt); err != nil {
			return err
		}
		return codec.WriteVarBytes(w, rec.EncryptedKey)
	})
}

func deserializeMasterKey(v []byte) (MasterKeyRecord, error) {
	r := bytes.NewReader(v)
	var rec MasterKeyRecord
	var err error
	if rec.Method, err = codec.ReadUint32(r); err != nil {
		return MasterKeyRecord{}, err
	}
	if rec.Iterations, err = codec.ReadUint32(r); err != nil {
		return MasterKeyRecord{}, err
	}
	if rec.Salt, err = codec.ReadVarBytes(r, kdf.SaltSize); err != nil {
		return MasterKeyRecord{}, err
	}
	if rec.EncryptedKey, err = codec.ReadVarBytes(r, maxMasterKeySize); err != nil {
		return MasterKeyRecord{}, err
	}
	return rec, nil
}

// maxMasterKeySize bounds a ciphertext read back from disk: the
// plaintext is always KeySize+IVSize, so even with a full cipher
// block of padding the ciphertext can never approach this.
const maxMasterKeySize = 4096

// wrapMasterKey encrypts a freshly-generated master key for storage
// under a passphrase, self-calibrating the iteration count the same
// way component D's Crypter does.
func wrapMasterKey(passphrase []byte, mk *kdf.Key) (MasterKeyRecord, error) {
	salt, err := kdf.NewSalt()
	if err != nil {
		return MasterKeyRecord{}, err
	}
	iterations := kdf.Calibrate(salt[:])
	passKey, err := kdf.Derive(kdf.MethodDoubleSHA256, passphrase, salt[:], iterations)
	if err != nil {
		return MasterKeyRecord{}, err
	}
	defer passKey.Zero()

	keyBytes := mk.KeyBytes()
	ivBytes := mk.IVBytes()
	plain := append(append([]byte{}, keyBytes[:]...), ivBytes[:]...)

	ciphertext, err := kdf.Encrypt(passKey, plain)
	if err != nil {
		return MasterKeyRecord{}, err
	}
	return MasterKeyRecord{
		EncryptedKey: ciphertext,
		Salt:         append([]byte{}, salt[:]...),
		Method:       kdf.MethodDoubleSHA256,
		Iterations:   iterations,
	}, nil
}

// unwrapMasterKey derives the passphrase key from rec's parameters
// and decrypts rec.EncryptedKey back into the original master key.
func unwrapMasterKey(passphrase []byte, rec MasterKeyRecord) (*kdf.Key, error) {
	passKey, err := kdf.Derive(rec.Method, passphrase, rec.Salt, rec.Iterations)
	if err != nil {
		return nil, err
	}
	defer passKey.Zero()

	plain, err := kdf.Decrypt(passKey, rec.EncryptedKey)
	if err != nil {
		return nil, err
	}
	if len(plain) != kdf.KeySize+kdf.IVSize {
		return nil, kdf.ErrBadPadding
	}
	var key [kdf.KeySize]byte
	var iv [kdf.IVSize]byte
	copy(key[:], plain[:kdf.KeySize])
	copy(iv[:], plain[kdf.KeySize:])
	return kdf.NewKey(key, iv), nil
}

// poolStore adapts the "pool" bucket to keypool.Store.
type poolStore struct {
	db walletdb.DB
}

var _ keypool.Store = (*poolStore)(nil)

func (s *poolStore) WritePoolRecord(index int64, rec keypool.Record) error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		v, err := serializePoolRecord(rec)
		if err != nil {
			return err
		}
		var k [8]byte
		byteOrder.PutUint64(k[:], uint64(index))
		return tx.ReadWriteBucket(bucketPool).Put(k[:], v)
	})
}

func (s *poolStore) ReadPoolRecord(index int64) (keypool.Record, error) {
	var rec keypool.Record
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		var k [8]byte
		byteOrder.PutUint64(k[:], uint64(index))
		v := tx.ReadBucket(bucketPool).Get(k[:])
		if v == nil {
			return nil
		}
		var err error
		rec, err = deserializePoolRecord(v)
		return err
	})
	return rec, err
}

func (s *poolStore) ErasePoolRecord(index int64) error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		var k [8]byte
		byteOrder.PutUint64(k[:], uint64(index))
		return tx.ReadWriteBucket(bucketPool).Delete(k[:])
	})
}

// loadPoolIndexes returns every resident pool index, for seeding
// keypool.Pool.Load at wallet open.
func loadPoolIndexes(db walletdb.DB) ([]int64, error) {
	var indexes []int64
	err := walletdb.View(db, func(tx walletdb.ReadTx) error {
		return tx.ReadBucket(bucketPool).ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return nil
			}
			indexes = append(indexes, int64(byteOrder.Uint64(k)))
			return nil
		})
	})
	return indexes, err
}

func serializePoolRecord(rec keypool.Record) ([]byte, error) {
	return codec.Bytes(func(w io.Writer) error {
		if err := codec.WriteInt64(w, rec.Time.Unix()); err != nil {
			return err
		}
		return codec.WriteVarBytes(w, rec.Pub)
	})
}

func deserializePoolRecord(v []byte) (keypool.Record, error) {
	r := bytes.NewReader(v)
	unixTime, err := codec.ReadInt64(r)
	if err != nil {
		return keypool.Record{}, err
	}
	pub, err := codec.ReadVarBytes(r, maxPubKeySize)
	if err != nil {
		return keypool.Record{}, err
	}
	return keypool.Record{Time: time.Unix(unixTime, 0), Pub: pub}, nil
}

// maxPubKeySize bounds a serialized public key read back from disk;
// 65 covers an uncompressed secp256k1 point with room to spare.
const maxPubKeySize = 128

// putDefaultKey persists the wallet-wide default payout key.
func putDefaultKey(db walletdb.DB, pub []byte) error {
	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(bucketMeta).Put(metaDefaultKey, pub)
	})
}

// loadDefaultKey reads the default key, or nil if none is set yet.
func loadDefaultKey(db walletdb.DB) ([]byte, error) {
	var pub []byte
	err := walletdb.View(db, func(tx walletdb.ReadTx) error {
		v := tx.ReadBucket(bucketMeta).Get(metaDefaultKey)
		pub = append([]byte{}, v...)
		return nil
	})
	return pub, err
}

// ResetTransactionHistory drops every indexed transaction and rewinds
// the wallet's synced-to position to the given network's genesis
// block, forcing the next sync to rebuild the index from a full
// rescan. It is a maintenance operation; callers must not use db
// concurrently with an open *Wallet while this runs.
func ResetTransactionHistory(db walletdb.DB, params *chaincfg.Params) error {
	if err := txindex.DropAll(db); err != nil {
		return err
	}
	return putBestBlock(db, BlockIdentity{Hash: *params.GenesisHash, Height: 0})
}

// putBestBlock persists the wallet's last-synced chain position.
func putBestBlock(db walletdb.DB, b BlockIdentity) error {
	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		var buf [36]byte
		copy(buf[:32], b.Hash[:])
		byteOrder.PutUint32(buf[32:], uint32(b.Height))
		return tx.ReadWriteBucket(bucketMeta).Put(metaBestBlock, buf[:])
	})
}

func loadBestBlock(db walletdb.DB) (BlockIdentity, error) {
	var b BlockIdentity
	b.Height = -1
	err := walletdb.View(db, func(tx walletdb.ReadTx) error {
		v := tx.ReadBucket(bucketMeta).Get(metaBestBlock)
		if v == nil || len(v) != 36 {
			return nil
		}
		copy(b.Hash[:], v[:32])
		b.Height = int32(byteOrder.Uint32(v[32:]))
		return nil
	})
	return b, err
}

// putName persists a label for an address string.
func putName(db walletdb.DB, address, label string) error {
	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(bucketNames).Put([]byte(address), []byte(label))
	})
}

func loadName(db walletdb.DB, address string) (string, error) {
	var label string
	err := walletdb.View(db, func(tx walletdb.ReadTx) error {
		v := tx.ReadBucket(bucketNames).Get([]byte(address))
		label = string(v)
		return nil
	})
	return label, err
}

// putSetting persists an arbitrary named configuration value.
func putSetting(db walletdb.DB, name string, value []byte) error {
	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(bucketSettings).Put([]byte(name), value)
	})
}

func loadSetting(db walletdb.DB, name string) ([]byte, error) {
	var value []byte
	err := walletdb.View(db, func(tx walletdb.ReadTx) error {
		v := tx.ReadBucket(bucketSettings).Get([]byte(name))
		value = append([]byte{}, v...)
		return nil
	})
	return value, err
}
