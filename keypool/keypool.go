// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keypool implements the reservable pool of fresh addresses
// described by component E: an in-memory ordered index backed by
// durable per-index records, topped up whenever reservation would
// drop it below a configured target.
package keypool

import (
	"sort"
	"sync"
	"time"

	"github.com/libcoin/wallet/keystore"
)

// Generator produces a fresh key pair and reports whether the store
// generating it is currently able to (i.e. unlocked). TopUp no-ops
// when the underlying key store is locked, matching
// Wallet::TopUpKeyPool's silent no-op when IsLocked().
type Generator interface {
	GenerateKey() (keystore.Address, []byte, error)
	IsLocked() bool
}

// Record is the durable {time, pub} record persisted for one pool
// index. Store implementations own the on-disk encoding; this package
// only reasons about the index and record together.
type Record struct {
	Time time.Time
	Pub  []byte
}

// Store is the durable side of the key pool: write/read/erase one
// pool record by index. A walletdb-backed implementation is supplied
// by the wallet package; tests use an in-memory one.
type Store interface {
	WritePoolRecord(index int64, rec Record) error
	ReadPoolRecord(index int64) (Record, error)
	ErasePoolRecord(index int64) error
}

// Pool is the reservable pool of fresh addresses (component E).
type Pool struct {
	mu        sync.Mutex
	store     Store
	generator Generator
	target    int64
	indexes   []int64 // kept sorted ascending; acts as the ordered set
}

// DefaultTarget is the pool size TopUp refills to absent an explicit
// configuration, matching the original's "-keypool" default.
const DefaultTarget = 100

// New returns a Pool with no resident indexes. Callers that are
// reopening an existing wallet must call Load with the indexes read
// back from disk before any Reserve call.
func New(store Store, generator Generator, target int64) *Pool {
	if target <= 0 {
		target = DefaultTarget
	}
	return &Pool{store: store, generator: generator, target: target}
}

// Load seeds the in-memory index set from a previously persisted list,
// e.g. read back from WalletDB at wallet open.
func (p *Pool) Load(indexes []int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexes = append([]int64{}, indexes...)
	sort.Slice(p.indexes, func(i, j int) bool { return p.indexes[i] < p.indexes[j] })
}

// TopUp generates and persists fresh keys until the pool holds
// target+1 indexes. It is a silent no-op if the backing key store is
// locked.
func (p *Pool) TopUp() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.topUp()
}

func (p *Pool) topUp() error {
	if p.generator.IsLocked() {
		return nil
	}

	for int64(len(p.indexes)) < p.target+1 {
		next := int64(1)
		if len(p.indexes) > 0 {
			next = p.indexes[len(p.indexes)-1] + 1
		}

		_, pub, err := p.generator.GenerateKey()
		if err != nil {
			return err
		}
		rec := Record{Time: time.Now(), Pub: pub}
		if err := p.store.WritePoolRecord(next, rec); err != nil {
			return err
		}
		p.indexes = append(p.indexes, next)
	}
	return nil
}

// Reserve removes the smallest index from the in-memory set and
// returns it with its record, topping up first if the store is
// unlocked. The disk record is left in place — a caller that
// abandons the reservation must call Return; a caller that finalizes
// it must call Keep.
//
// ok is false if the pool is empty (e.g. locked with nothing
// pre-generated); callers fall back to GenerateKey() or the wallet's
// default key in that case, matching GetKeyFromPool.
func (p *Pool) Reserve() (index int64, rec Record, ok bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.generator.IsLocked() {
		if err := p.topUp(); err != nil {
			return 0, Record{}, false, err
		}
	}

	if len(p.indexes) == 0 {
		return 0, Record{}, false, nil
	}

	index = p.indexes[0]
	p.indexes = p.indexes[1:]

	rec, err = p.store.ReadPoolRecord(index)
	if err != nil {
		return 0, Record{}, false, err
	}
	return index, rec, true, nil
}

// Keep permanently consumes a reserved index: its disk record is
// erased and it never returns to the pool.
func (p *Pool) Keep(index int64) error {
	return p.store.ErasePoolRecord(index)
}

// Return re-inserts a reserved index into the in-memory set, for a
// caller that reserved a key but abandoned the operation before
// committing it (e.g. an aborted send).
func (p *Pool) Return(index int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := sort.Search(len(p.indexes), func(i int) bool { return p.indexes[i] >= index })
	p.indexes = append(p.indexes, 0)
	copy(p.indexes[i+1:], p.indexes[i:])
	p.indexes[i] = index
}

// Size returns the number of indexes currently reservable.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.indexes)
}

// OldestTime returns the timestamp of the oldest reservable key, or
// the current time if the pool is empty — matching
// GetOldestKeyPoolTime's fallback used to pick a wallet rescan
// starting point.
func (p *Pool) OldestTime() (time.Time, error) {
	index, rec, ok, err := p.Reserve()
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Now(), nil
	}
	p.Return(index)
	return rec.Time, nil
}

// ReserveKey is a three-state mini-transaction over one pool index,
// corresponding to CReserveKey: GetReservedKey reserves lazily on
// first call, KeepKey and ReturnKey finalize it exactly once.
type ReserveKey struct {
	pool     *Pool
	index    int64
	pub      []byte
	reserved bool
}

// NewReserveKey returns a ReserveKey bound to pool. No reservation is
// made until GetReservedKey is called.
func NewReserveKey(pool *Pool) *ReserveKey {
	return &ReserveKey{pool: pool, index: -1}
}

// GetReservedKey reserves a key from the pool on first call and
// returns its public key on every call. defaultPub is used as a
// fallback if the pool has nothing to reserve (e.g. locked wallet).
func (rk *ReserveKey) GetReservedKey(defaultPub []byte) ([]byte, error) {
	if rk.index == -1 {
		index, rec, ok, err := rk.pool.Reserve()
		if err != nil {
			return nil, err
		}
		if ok {
			rk.index = index
			rk.pub = rec.Pub
			rk.reserved = true
		} else {
			rk.pub = defaultPub
		}
	}
	return rk.pub, nil
}

// KeepKey finalizes the reservation, consuming the pool index
// permanently. A no-op if nothing was ever reserved (the default-key
// fallback was used instead).
func (rk *ReserveKey) KeepKey() error {
	if rk.reserved {
		if err := rk.pool.Keep(rk.index); err != nil {
			return err
		}
	}
	rk.index = -1
	rk.pub = nil
	rk.reserved = false
	return nil
}

// ReturnKey abandons the reservation, returning the index to the
// pool. A no-op if nothing was ever reserved.
func (rk *ReserveKey) ReturnKey() {
	if rk.reserved {
		rk.pool.Return(rk.index)
	}
	rk.index = -1
	rk.pub = nil
	rk.reserved = false
}
