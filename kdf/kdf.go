// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package kdf implements the passphrase-based key derivation and
// symmetric encryption used to protect a wallet's private key
// material: iterated double-SHA-256 key stretching with a
// self-calibrating iteration count, and AES-256-CBC with PKCS#7
// padding for encrypting individual keys.
package kdf

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/libcoin/wallet/internal/zero"
)

const (
	// KeySize is the length in bytes of the derived AES-256 key.
	KeySize = 32

	// IVSize is the length in bytes of the AES block-cipher IV.
	IVSize = 16

	// DerivedSize is KeySize+IVSize, the total output of Derive.
	DerivedSize = KeySize + IVSize

	// SaltSize is the length in bytes of a MasterKey's salt.
	SaltSize = 8

	// MethodDoubleSHA256 is the only key derivation method
	// currently defined.
	MethodDoubleSHA256 = 0

	// MinIterations is the floor the calibration loop clamps to,
	// regardless of how fast the host measures.
	MinIterations = 25000
)

// ErrUnknownMethod is returned by Derive when asked to use a key
// derivation method other than MethodDoubleSHA256.
var ErrUnknownMethod = errors.New("kdf: unknown derivation method")

// ErrBadPadding is returned by Decrypt when the final PKCS#7 padding
// block is malformed, which for this scheme always indicates the
// wrong key (wrong passphrase) was used.
var ErrBadPadding = errors.New("kdf: invalid padding")

// Key holds derived key material: a 256-bit AES key and a 128-bit IV.
// Zero wipes the bytes from memory once the key is no longer needed;
// every Key returned by Derive or NewKey and every caller-owned copy
// must eventually be zeroed by the holder.
type Key struct {
	key [KeySize]byte
	iv  [IVSize]byte
}

// Zero overwrites the key and IV with zeros.
func (k *Key) Zero() {
	zero.Bytes(k.key[:])
	zero.Bytes(k.iv[:])
}

// KeyBytes returns the 32-byte AES key half of k. Used by callers
// that need to re-pair the same symmetric key with a different,
// context-derived IV (e.g. component C's per-pubkey IV scheme).
func (k *Key) KeyBytes() [KeySize]byte {
	return k.key
}

// IVBytes returns the 16-byte IV half of k. Used together with
// KeyBytes to serialize a Key's full state, e.g. when wrapping a
// master key for persistence.
func (k *Key) IVBytes() [IVSize]byte {
	return k.iv
}

// NewKey builds a Key directly from a raw key and IV, bypassing
// Derive. Used to re-pair an already-derived master key with a new IV.
func NewKey(key [KeySize]byte, iv [IVSize]byte) *Key {
	return &Key{key: key, iv: iv}
}

// doubleSHA256 hashes b with SHA-256 twice, matching the double-hash
// used throughout the wallet's address and merkle computations.
func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// Derive stretches passphrase with salt over the given number of
// iterations of double-SHA-256, producing DerivedSize bytes split into
// a 32-byte key and 16-byte IV. method must be MethodDoubleSHA256.
func Derive(method uint32, passphrase, salt []byte, iterations uint32) (*Key, error) {
	if method != MethodDoubleSHA256 {
		return nil, ErrUnknownMethod
	}
	if iterations == 0 {
		iterations = 1
	}

	material := append(append([]byte{}, passphrase...), salt...)
	for i := uint32(0); i < iterations; i++ {
		material = doubleSHA256(material)
	}

	// The stretched 32-byte chain determines both halves of the
	// 48-byte output; a one-byte domain-separation suffix keeps
	// the key and IV independent of each other.
	keyHalf := doubleSHA256(append(append([]byte{}, material...), 0x00))
	ivHalf := doubleSHA256(append(append([]byte{}, material...), 0x01))

	out := &Key{}
	copy(out.key[:], keyHalf)
	copy(out.iv[:], ivHalf[:IVSize])
	return out, nil
}

// pkcs7Pad appends PKCS#7 padding so the result is a multiple of
// blockSize bytes long.
func pkcs7Pad(b []byte, blockSize int) []byte {
	padLen := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+padLen)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad strips and validates PKCS#7 padding.
func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrBadPadding
	}
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(b) {
		return nil, ErrBadPadding
	}
	for _, c := range b[len(b)-padLen:] {
		if int(c) != padLen {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-padLen], nil
}

// Encrypt encrypts plaintext under k using AES-256-CBC with PKCS#7
// padding.
func Encrypt(k *Key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(k.key[:])
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, k.iv[:])
	mode.CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// Decrypt decrypts ciphertext produced by Encrypt under k. A non-nil
// error always indicates either corrupt ciphertext or the wrong key.
func Decrypt(k *Key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(k.key[:])
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrBadPadding
	}
	padded := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, k.iv[:])
	mode.CryptBlocks(padded, ciphertext)
	return pkcs7Unpad(padded, aes.BlockSize)
}

// NewSalt returns SaltSize random bytes suitable for use as a new
// MasterKey's salt.
func NewSalt() ([SaltSize]byte, error) {
	var salt [SaltSize]byte
	_, err := rand.Read(salt[:])
	return salt, err
}

// Calibrate measures the host's double-SHA-256 throughput and returns
// an iteration count targeting roughly a tenth of a second per
// derivation, following the three-step procedure: measure a baseline
// of 25,000 iterations, extrapolate a first guess, measure that guess
// directly, then average the extrapolation against the measured rate.
// The result is clamped to MinIterations so a very slow host never
// calibrates to something trivially brute-forceable.
func Calibrate(salt []byte) uint32 {
	passphrase := []byte("benchmark passphrase for kdf iteration calibration")

	const baseline = 25000
	t0 := timeIterations(passphrase, salt, baseline)
	if t0 <= 0 {
		t0 = 1
	}
	iter1 := uint64(2_500_000) / uint64(t0)
	if iter1 == 0 {
		iter1 = 1
	}

	t1 := timeIterations(passphrase, salt, iter1)
	if t1 <= 0 {
		t1 = 1
	}
	iter2 := (iter1 + iter1*100/uint64(t1)) / 2

	iterations := iter2
	if iterations < MinIterations {
		iterations = MinIterations
	}
	if iterations > 0xffffffff {
		iterations = 0xffffffff
	}
	return uint32(iterations)
}

// timeIterations runs n iterations of the derivation and returns the
// elapsed time in milliseconds.
func timeIterations(passphrase, salt []byte, n uint64) int64 {
	before := time.Now()
	_, _ = Derive(MethodDoubleSHA256, passphrase, salt, uint32(n))
	return time.Since(before).Milliseconds()
}
