// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keystore implements the in-memory key stores described by
// components B and C: a plain map of addresses to key pairs, and a
// passphrase-encrypted variant layered on top of it. Persistence is
// the caller's concern (see walletdb); this package only tracks what
// is currently resident in memory and how it may be read.
package keystore

import (
	"sync"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcutil"

	"github.com/libcoin/wallet/internal/zero"
	"github.com/libcoin/wallet/kdf"
)

// Address is the 20-byte RIPEMD160(SHA256(pubkey)) hash that
// identifies a key, annotated with the one-byte network id it was
// generated for. It is the unique lookup key for HaveKey/GetKey.
type Address struct {
	Hash  [20]byte
	NetID byte
}

// NewAddress computes the Address for a serialized public key on the
// given network id.
func NewAddress(pubKey []byte, netID byte) Address {
	var a Address
	copy(a.Hash[:], btcutil.Hash160(pubKey))
	a.NetID = netID
	return a
}

// ErrorCode identifies a kind of keystore error.
type ErrorCode int

const (
	// ErrLocked indicates an operation requiring the resident
	// master key was attempted while the store is locked.
	ErrLocked ErrorCode = iota

	// ErrUnknownKey indicates the requested address has no
	// matching key in the store.
	ErrUnknownKey

	// ErrAlreadyEncrypted indicates EncryptKeys was called on a
	// store that already holds encrypted keys.
	ErrAlreadyEncrypted

	// ErrBadPassphrase indicates Unlock's decrypted keys failed
	// to reproduce their recorded public keys.
	ErrBadPassphrase

	// ErrDecrypt indicates a stored ciphertext failed to decrypt
	// or unpad even though the passphrase check on another key
	// passed; this should not happen absent data corruption.
	ErrDecrypt
)

var errorCodeStrings = map[ErrorCode]string{
	ErrLocked:           "ErrLocked",
	ErrUnknownKey:       "ErrUnknownKey",
	ErrAlreadyEncrypted: "ErrAlreadyEncrypted",
	ErrBadPassphrase:    "ErrBadPassphrase",
	ErrDecrypt:          "ErrDecrypt",
}

// String returns the error code as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return "Unknown ErrorCode"
}

// KeyStoreError wraps a keystore ErrorCode with a human-readable
// description and an optional underlying error.
type KeyStoreError struct {
	ErrorCode   ErrorCode
	Description string
	Err         error
}

func (e KeyStoreError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

func keyStoreError(c ErrorCode, desc string, err error) KeyStoreError {
	return KeyStoreError{ErrorCode: c, Description: desc, Err: err}
}

// IsError reports whether err is a KeyStoreError with the given code.
func IsError(err error, code ErrorCode) bool {
	e, ok := err.(KeyStoreError)
	return ok && e.ErrorCode == code
}

// entry is one key held by the store, in whichever of its two
// representations is currently populated.
type entry struct {
	pub       []byte
	priv      []byte // populated in plain mode only
	encrypted []byte // populated in encrypted mode only
}

// KeyStore is a plain, unencrypted map of addresses to key pairs
// (component B). Its methods are safe for concurrent use: an internal
// RWMutex guards the map.
type KeyStore struct {
	mu      sync.RWMutex
	netID   byte
	entries map[Address]*entry
}

// New returns an empty KeyStore for the given network id.
func New(netID byte) *KeyStore {
	return &KeyStore{
		netID:   netID,
		entries: make(map[Address]*entry),
	}
}

// AddKey adds a plaintext key pair to the store, keyed by the address
// derived from pub.
func (ks *KeyStore) AddKey(pub, priv []byte) Address {
	addr := NewAddress(pub, ks.netID)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.entries[addr] = &entry{pub: pub, priv: priv}
	return addr
}

// HaveKey reports whether addr has a matching key in the store.
func (ks *KeyStore) HaveKey(addr Address) bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	_, ok := ks.entries[addr]
	return ok
}

// GetPubKey returns the serialized public key for addr.
func (ks *KeyStore) GetPubKey(addr Address) ([]byte, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	e, ok := ks.entries[addr]
	if !ok {
		return nil, keyStoreError(ErrUnknownKey, "no key for address", nil)
	}
	return e.pub, nil
}

// GetPrivKey returns the private scalar for addr. In a plain
// KeyStore this always succeeds if the address is known; a
// CryptoKeyStore overrides this to additionally require Unlock.
func (ks *KeyStore) GetPrivKey(addr Address) ([]byte, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	e, ok := ks.entries[addr]
	if !ok {
		return nil, keyStoreError(ErrUnknownKey, "no key for address", nil)
	}
	return e.priv, nil
}

// GetKeys returns every address currently known to the store, in no
// particular order.
func (ks *KeyStore) GetKeys() []Address {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	addrs := make([]Address, 0, len(ks.entries))
	for a := range ks.entries {
		addrs = append(addrs, a)
	}
	return addrs
}

// GenerateKey creates a new secp256k1 key pair, adds it to the store,
// and returns the resulting address and serialized public key.
func (ks *KeyStore) GenerateKey() (Address, []byte, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return Address{}, nil, err
	}
	pub := priv.PubKey().SerializeCompressed()
	addr := ks.AddKey(pub, priv.Serialize())
	return addr, pub, nil
}

// CryptoKeyStore layers passphrase encryption over a KeyStore
// (component C). Before encryption it behaves exactly like KeyStore;
// EncryptKeys switches it into encrypted mode permanently. While
// locked, GetPrivKey and GenerateKey's private half are unavailable.
type CryptoKeyStore struct {
	KeyStore

	cryptoMu  sync.RWMutex
	encrypted bool
	masterKey *kdf.Key // nil when locked
}

// NewCrypto returns an empty, unencrypted CryptoKeyStore.
func NewCrypto(netID byte) *CryptoKeyStore {
	return &CryptoKeyStore{KeyStore: *New(netID)}
}

// IsCrypted reports whether EncryptKeys has been called.
func (cks *CryptoKeyStore) IsCrypted() bool {
	cks.cryptoMu.RLock()
	defer cks.cryptoMu.RUnlock()
	return cks.encrypted
}

// IsLocked reports whether the store is encrypted and currently has
// no resident master key.
func (cks *CryptoKeyStore) IsLocked() bool {
	cks.cryptoMu.RLock()
	defer cks.cryptoMu.RUnlock()
	return cks.encrypted && cks.masterKey == nil
}

// GenerateKey creates a new secp256k1 key pair. Once the store has
// been encrypted, new keys are never held resident in plaintext: the
// private half is wrapped under the resident master key immediately,
// so the caller must have already Unlock'd the store.
func (cks *CryptoKeyStore) GenerateKey() (Address, []byte, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return Address{}, nil, err
	}
	pub := priv.PubKey().SerializeCompressed()

	cks.cryptoMu.RLock()
	encrypted := cks.encrypted
	masterKey := cks.masterKey
	cks.cryptoMu.RUnlock()

	if !encrypted {
		addr := cks.KeyStore.AddKey(pub, priv.Serialize())
		return addr, pub, nil
	}
	if masterKey == nil {
		return Address{}, nil, keyStoreError(ErrLocked, "keystore is locked", nil)
	}

	keyForPub, err := perKeyEncryptor(masterKey, pub)
	if err != nil {
		return Address{}, nil, err
	}
	ct, err := keyForPub.encrypt(priv.Serialize())
	if err != nil {
		return Address{}, nil, err
	}
	addr := cks.AddCryptedKey(pub, ct)
	return addr, pub, nil
}

// ivFor derives the per-key AES IV as doubleSHA256(pub)[0:16], the
// scheme specified for component C.
func ivFor(pub []byte) [kdf.IVSize]byte {
	first := chainhashDoubleSHA256(pub)
	var iv [kdf.IVSize]byte
	copy(iv[:], first[:kdf.IVSize])
	return iv
}

// EncryptKeys converts every plaintext key currently in the store to
// ciphertext under masterKey, and marks the store as encrypted from
// this point on. It is an error to call this twice. The store keeps
// its own copy of masterKey as the resident key, so the caller still
// owns (and zeroes) the one it passed in.
//
// A failure partway through conversion leaves some keys plaintext and
// some ciphertext with no way to tell which were already converted
// without the in-memory record this function was building — the
// caller must treat any error here as fatal to the process, matching
// EncryptWallet's original contract.
func (cks *CryptoKeyStore) EncryptKeys(masterKey *kdf.Key) error {
	cks.cryptoMu.Lock()
	defer cks.cryptoMu.Unlock()
	if cks.encrypted {
		return keyStoreError(ErrAlreadyEncrypted, "keystore is already encrypted", nil)
	}

	cks.mu.Lock()
	defer cks.mu.Unlock()

	converted := make(map[Address][]byte, len(cks.entries))
	for addr, e := range cks.entries {
		keyForPub, err := perKeyEncryptor(masterKey, e.pub)
		if err != nil {
			return err
		}
		ct, err := keyForPub.encrypt(e.priv)
		if err != nil {
			return err
		}
		converted[addr] = ct
	}

	for addr, ct := range converted {
		e := cks.entries[addr]
		zero.Bytes(e.priv)
		e.priv = nil
		e.encrypted = ct
	}

	cks.encrypted = true
	cks.masterKey = kdf.NewKey(masterKey.KeyBytes(), masterKey.IVBytes())
	return nil
}

// Unlock attempts to make every stored ciphertext's plaintext
// available by decrypting under masterKey and checking the recovered
// key reproduces its recorded public key. The attempt is
// all-or-nothing: if any entry fails to decrypt or fails the check,
// Unlock returns an error and the store remains locked. On success the
// store keeps its own copy of masterKey, as EncryptKeys does.
func (cks *CryptoKeyStore) Unlock(masterKey *kdf.Key) error {
	cks.cryptoMu.Lock()
	defer cks.cryptoMu.Unlock()
	if !cks.encrypted {
		return nil
	}

	cks.mu.RLock()
	defer cks.mu.RUnlock()

	for _, e := range cks.entries {
		keyForPub, err := perKeyEncryptor(masterKey, e.pub)
		if err != nil {
			return keyStoreError(ErrBadPassphrase, "wrong passphrase", err)
		}
		priv, err := keyForPub.decrypt(e.encrypted)
		if err != nil {
			return keyStoreError(ErrBadPassphrase, "wrong passphrase", err)
		}
		_, pub := btcec.PrivKeyFromBytes(btcec.S256(), priv)
		if !pubKeyMatches(pub.SerializeCompressed(), e.pub) {
			zero.Bytes(priv)
			return keyStoreError(ErrBadPassphrase, "wrong passphrase", nil)
		}
		zero.Bytes(priv)
	}

	cks.masterKey = kdf.NewKey(masterKey.KeyBytes(), masterKey.IVBytes())
	return nil
}

// Lock discards the resident master key. After Lock, GetPrivKey
// returns ErrLocked for every address until Unlock succeeds again.
func (cks *CryptoKeyStore) Lock() {
	cks.cryptoMu.Lock()
	defer cks.cryptoMu.Unlock()
	if cks.masterKey != nil {
		cks.masterKey.Zero()
		cks.masterKey = nil
	}
}

// GetPrivKey returns the private scalar for addr, decrypting it on
// demand if the store is encrypted. Returns ErrLocked if the store is
// encrypted and currently locked.
func (cks *CryptoKeyStore) GetPrivKey(addr Address) ([]byte, error) {
	cks.cryptoMu.RLock()
	defer cks.cryptoMu.RUnlock()

	if !cks.encrypted {
		return cks.KeyStore.GetPrivKey(addr)
	}
	if cks.masterKey == nil {
		return nil, keyStoreError(ErrLocked, "keystore is locked", nil)
	}

	cks.mu.RLock()
	e, ok := cks.entries[addr]
	cks.mu.RUnlock()
	if !ok {
		return nil, keyStoreError(ErrUnknownKey, "no key for address", nil)
	}

	keyForPub, err := perKeyEncryptor(cks.masterKey, e.pub)
	if err != nil {
		return nil, err
	}
	return keyForPub.decrypt(e.encrypted)
}

// GetEncryptedKey returns the raw ciphertext stored for addr, for a
// caller persisting key records to disk after EncryptKeys. It is an
// error to call this before the store has been encrypted.
func (cks *CryptoKeyStore) GetEncryptedKey(addr Address) ([]byte, error) {
	cks.cryptoMu.RLock()
	defer cks.cryptoMu.RUnlock()
	if !cks.encrypted {
		return nil, keyStoreError(ErrUnknownKey, "keystore is not encrypted", nil)
	}

	cks.mu.RLock()
	defer cks.mu.RUnlock()
	e, ok := cks.entries[addr]
	if !ok {
		return nil, keyStoreError(ErrUnknownKey, "no key for address", nil)
	}
	return e.encrypted, nil
}

// AddCryptedKey adds a key whose private half is already ciphertext,
// for records loaded back from disk. Adding one marks the store as
// encrypted, so a store rebuilt from ciphertext records starts locked.
func (cks *CryptoKeyStore) AddCryptedKey(pub, encryptedPriv []byte) Address {
	cks.cryptoMu.Lock()
	defer cks.cryptoMu.Unlock()
	cks.encrypted = true

	addr := NewAddress(pub, cks.netID)
	cks.mu.Lock()
	defer cks.mu.Unlock()
	cks.entries[addr] = &entry{pub: pub, encrypted: encryptedPriv}
	return addr
}

func pubKeyMatches(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
