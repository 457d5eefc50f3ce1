// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keypool

import (
	"testing"

	"github.com/libcoin/wallet/keystore"
)

type memStore struct {
	records map[int64]Record
}

func newMemStore() *memStore {
	return &memStore{records: make(map[int64]Record)}
}

func (s *memStore) WritePoolRecord(index int64, rec Record) error {
	s.records[index] = rec
	return nil
}

func (s *memStore) ReadPoolRecord(index int64) (Record, error) {
	return s.records[index], nil
}

func (s *memStore) ErasePoolRecord(index int64) error {
	delete(s.records, index)
	return nil
}

type fakeGenerator struct {
	locked bool
	n      int
}

func (g *fakeGenerator) GenerateKey() (keystore.Address, []byte, error) {
	g.n++
	pub := []byte{byte(g.n)}
	return keystore.Address{}, pub, nil
}

func (g *fakeGenerator) IsLocked() bool { return g.locked }

func TestTopUpFillsToTargetPlusOne(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{}
	p := New(store, gen, 5)

	if err := p.TopUp(); err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if got := p.Size(); got != 6 {
		t.Errorf("got %d indexes, want 6", got)
	}
	if len(store.records) != 6 {
		t.Errorf("got %d disk records, want 6", len(store.records))
	}
}

func TestTopUpNoOpWhenLocked(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{locked: true}
	p := New(store, gen, 5)

	if err := p.TopUp(); err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if got := p.Size(); got != 0 {
		t.Errorf("got %d indexes, want 0 while locked", got)
	}
}

func TestReserveKeepReturn(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{}
	p := New(store, gen, 2)
	if err := p.TopUp(); err != nil {
		t.Fatalf("TopUp: %v", err)
	}

	before := p.Size()
	index, rec, ok, err := p.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !ok {
		t.Fatal("Reserve reported empty pool unexpectedly")
	}
	if index != 1 {
		t.Errorf("got index %d, want 1 (smallest)", index)
	}
	if len(rec.Pub) == 0 {
		t.Error("reserved record has no pubkey")
	}
	if p.Size() != before-1 {
		t.Errorf("pool size did not shrink on Reserve")
	}

	p.Return(index)
	if p.Size() != before {
		t.Errorf("pool size did not restore after Return")
	}

	index2, _, ok, err := p.Reserve()
	if err != nil || !ok {
		t.Fatalf("Reserve after Return: ok=%v err=%v", ok, err)
	}
	if index2 != index {
		t.Errorf("got index %d after return/reserve, want %d", index2, index)
	}
	if err := p.Keep(index2); err != nil {
		t.Fatalf("Keep: %v", err)
	}
	if _, exists := store.records[index2]; exists {
		t.Error("disk record still present after Keep")
	}
}

func TestReserveKeyLifecycle(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{}
	p := New(store, gen, 2)
	if err := p.TopUp(); err != nil {
		t.Fatalf("TopUp: %v", err)
	}

	rk := NewReserveKey(p)
	pub, err := rk.GetReservedKey([]byte("default"))
	if err != nil {
		t.Fatalf("GetReservedKey: %v", err)
	}
	if len(pub) == 0 {
		t.Fatal("GetReservedKey returned no pubkey")
	}

	// Calling again before Keep/Return must return the same key.
	pub2, err := rk.GetReservedKey([]byte("default"))
	if err != nil {
		t.Fatalf("GetReservedKey (second call): %v", err)
	}
	if string(pub) != string(pub2) {
		t.Error("GetReservedKey returned a different key on a repeat call")
	}

	if err := rk.KeepKey(); err != nil {
		t.Fatalf("KeepKey: %v", err)
	}
}

func TestReserveKeyFallsBackToDefault(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{locked: true}
	p := New(store, gen, 2)

	rk := NewReserveKey(p)
	pub, err := rk.GetReservedKey([]byte("default"))
	if err != nil {
		t.Fatalf("GetReservedKey: %v", err)
	}
	if string(pub) != "default" {
		t.Errorf("got %q, want fallback to default key", pub)
	}
	// ReturnKey on an unreserved ReserveKey must be a no-op.
	rk.ReturnKey()
}
