// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"crypto/sha256"

	"github.com/libcoin/wallet/kdf"
)

// chainhashDoubleSHA256 hashes b with SHA-256 twice, matching the
// double-hash used throughout the wallet's address derivation.
func chainhashDoubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// perKeyCrypter pairs a wallet's resident master key with the
// per-pubkey IV specified for component C.
type perKeyCrypter struct {
	key *kdf.Key
}

func perKeyEncryptor(masterKey *kdf.Key, pub []byte) (*perKeyCrypter, error) {
	return &perKeyCrypter{key: kdf.NewKey(masterKey.KeyBytes(), ivFor(pub))}, nil
}

func (c *perKeyCrypter) encrypt(priv []byte) ([]byte, error) {
	return kdf.Encrypt(c.key, priv)
}

func (c *perKeyCrypter) decrypt(ciphertext []byte) ([]byte, error) {
	return kdf.Decrypt(c.key, ciphertext)
}
