// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"testing"

	"github.com/libcoin/wallet/kdf"
)

func TestPlainKeyStoreRoundTrip(t *testing.T) {
	ks := New(0x00)
	addr, pub, err := ks.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if !ks.HaveKey(addr) {
		t.Fatal("HaveKey returned false for a just-generated key")
	}
	gotPub, err := ks.GetPubKey(addr)
	if err != nil {
		t.Fatalf("GetPubKey: %v", err)
	}
	if string(gotPub) != string(pub) {
		t.Error("GetPubKey returned a different key than GenerateKey")
	}
	if _, err := ks.GetPrivKey(addr); err != nil {
		t.Errorf("GetPrivKey: %v", err)
	}
}

func TestPlainKeyStoreUnknownKey(t *testing.T) {
	ks := New(0x00)
	var addr Address
	if _, err := ks.GetPrivKey(addr); !IsError(err, ErrUnknownKey) {
		t.Errorf("got %v, want ErrUnknownKey", err)
	}
}

func TestCryptoKeyStoreLockUnlock(t *testing.T) {
	cks := NewCrypto(0x00)
	addr, _, err := cks.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	masterKey, err := kdf.Derive(kdf.MethodDoubleSHA256, []byte("hunter2"), []byte{1, 2, 3, 4, 5, 6, 7, 8}, 1000)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	if err := cks.EncryptKeys(masterKey); err != nil {
		t.Fatalf("EncryptKeys: %v", err)
	}
	if !cks.IsCrypted() {
		t.Fatal("IsCrypted false after EncryptKeys")
	}
	if cks.IsLocked() {
		t.Fatal("store reports locked immediately after EncryptKeys")
	}

	priv, err := cks.GetPrivKey(addr)
	if err != nil {
		t.Fatalf("GetPrivKey while unlocked: %v", err)
	}
	if len(priv) == 0 {
		t.Fatal("GetPrivKey returned empty key")
	}

	cks.Lock()
	if !cks.IsLocked() {
		t.Fatal("IsLocked false after Lock")
	}
	if _, err := cks.GetPrivKey(addr); !IsError(err, ErrLocked) {
		t.Errorf("got %v, want ErrLocked", err)
	}

	if err := cks.Unlock(masterKey); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if cks.IsLocked() {
		t.Fatal("IsLocked true after successful Unlock")
	}
}

func TestCryptoKeyStoreWrongPassphrase(t *testing.T) {
	cks := NewCrypto(0x00)
	if _, _, err := cks.GenerateKey(); err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	salt := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	right, _ := kdf.Derive(kdf.MethodDoubleSHA256, []byte("right"), salt, 1000)
	wrong, _ := kdf.Derive(kdf.MethodDoubleSHA256, []byte("wrong"), salt, 1000)

	if err := cks.EncryptKeys(right); err != nil {
		t.Fatalf("EncryptKeys: %v", err)
	}
	cks.Lock()

	if err := cks.Unlock(wrong); !IsError(err, ErrBadPassphrase) {
		t.Errorf("got %v, want ErrBadPassphrase", err)
	}
	if !cks.IsLocked() {
		t.Fatal("store unlocked after a failed Unlock attempt")
	}
}

func TestCryptoKeyStoreEncryptTwiceFails(t *testing.T) {
	cks := NewCrypto(0x00)
	masterKey, _ := kdf.Derive(kdf.MethodDoubleSHA256, []byte("hunter2"), []byte{1, 2, 3, 4, 5, 6, 7, 8}, 1000)
	if err := cks.EncryptKeys(masterKey); err != nil {
		t.Fatalf("EncryptKeys: %v", err)
	}
	if err := cks.EncryptKeys(masterKey); !IsError(err, ErrAlreadyEncrypted) {
		t.Errorf("got %v, want ErrAlreadyEncrypted", err)
	}
}
