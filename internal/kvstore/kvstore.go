// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kvstore implements C2, a typed, encrypted adapter over an
// ordered key-value engine. A Domain is a key-prefix namespace
// (realized as a chain of nested buckets on the bbolt backend); every
// value stored through Store.Put round-trips through an AEAD Sealer
// before it reaches the engine, except values explicitly marked Raw.
package kvstore

import (
	"bytes"

	"github.com/efs-go/efs/errno"
	"github.com/efs-go/efs/internal/crypto"
)

// Domain names a key-prefix namespace as a chain of nested buckets,
// e.g. Domain{"inodes", "7", "dirents"}.
type Domain []string

// Engine is the ordered key-value contract required by §6.2: ordered
// iteration, atomic multi-key batches, start/stop lifecycle. It is
// satisfied by the bbolt backend in bboltengine.go; any ordered,
// transactional KV that can express nested-bucket domains could
// satisfy it too.
type Engine interface {
	// Batch executes fn atomically: a reader sees either every write
	// fn makes or none of them.
	Batch(fn func(Txn) error) error
	// View executes fn in a read-only transaction.
	View(fn func(Txn) error) error
	Close() error
}

// Txn is the transaction handle passed to Engine.Batch/View.
type Txn interface {
	Get(d Domain, key []byte) ([]byte, bool, error)
	Put(d Domain, key, value []byte) error
	Delete(d Domain, key []byte) error
	// DeleteDomain removes an entire nested-bucket domain and
	// everything under it (used by drop_inode to remove all of an
	// inode's blocks and dirents in one step).
	DeleteDomain(d Domain) error
	// Range iterates [lo, hi) in key order; hi == nil means "to the
	// end". Iteration stops early if fn returns false.
	Range(d Domain, lo, hi []byte, fn func(key, value []byte) bool) error
}

// Store layers C1 encryption over an Engine.
type Store struct {
	engine Engine
	aead   *crypto.AEAD
}

func New(engine Engine, aead *crypto.AEAD) *Store {
	return &Store{engine: engine, aead: aead}
}

func (s *Store) sealerFor(d Domain) crypto.Sealer {
	if len(d) == 0 {
		return s.aead.Sealer(crypto.DomainMeta)
	}
	if len(d) == 1 && d[0] == "meta" {
		return s.aead.Sealer(crypto.DomainCounter)
	}
	switch d[len(d)-1] {
	case "blocks":
		return s.aead.Sealer(crypto.DomainBlock)
	case "dirents":
		return s.aead.Sealer(crypto.DomainDirent)
	default:
		return s.aead.Sealer(crypto.DomainMeta)
	}
}

// Get fetches and decrypts a value. ok is false if the key is absent.
func (s *Store) Get(txn Txn, d Domain, key []byte) (value []byte, ok bool, err error) {
	raw, found, err := txn.Get(d, key)
	if err != nil || !found {
		return nil, found, err
	}
	pt, err := s.sealerFor(d).Open(raw)
	if err != nil {
		return nil, true, err
	}
	return pt, true, nil
}

// GetRaw fetches a value stored without encryption (only the key
// fingerprint record uses this).
func (s *Store) GetRaw(txn Txn, d Domain, key []byte) (value []byte, ok bool, err error) {
	return txn.Get(d, key)
}

// Put encrypts and stores a value.
func (s *Store) Put(txn Txn, d Domain, key, value []byte) error {
	blob, err := s.sealerFor(d).Seal(value)
	if err != nil {
		return err
	}
	return txn.Put(d, key, blob)
}

// PutRaw stores a value without encryption.
func (s *Store) PutRaw(txn Txn, d Domain, key, value []byte) error {
	return txn.Put(d, key, value)
}

func (s *Store) Delete(txn Txn, d Domain, key []byte) error {
	return txn.Delete(d, key)
}

func (s *Store) DeleteDomain(txn Txn, d Domain) error {
	return txn.DeleteDomain(d)
}

// Range iterates a domain in key order, decrypting each value.
// Decryption errors abort the iteration and are returned to the
// caller as errno.Corruption.
func (s *Store) Range(txn Txn, d Domain, lo, hi []byte, fn func(key, value []byte) bool) error {
	sealer := s.sealerFor(d)
	var rangeErr error
	err := txn.Range(d, lo, hi, func(key, raw []byte) bool {
		pt, err := sealer.Open(raw)
		if err != nil {
			rangeErr = err
			return false
		}
		return fn(key, pt)
	})
	if rangeErr != nil {
		return rangeErr
	}
	return err
}

// Batch runs fn against the Store inside one atomic Engine
// transaction.
func (s *Store) Batch(fn func(txn Txn) error) error {
	return s.engine.Batch(fn)
}

// View runs fn against the Store inside one read-only transaction.
func (s *Store) View(fn func(txn Txn) error) error {
	return s.engine.View(fn)
}

func (s *Store) Close() error { return s.engine.Close() }

// NameValid reports whether a directory-entry name is acceptable:
// non-empty, no '/' and no NUL (the reserved key separator, kept
// forbidden even though the bbolt backend uses native bucket nesting
// rather than a flat, separator-joined keyspace).
func NameValid(name []byte) bool {
	if len(name) == 0 {
		return false
	}
	return !bytes.ContainsAny(string(name), "/\x00")
}

// ErrCorruption re-exports errno.Corruption for callers that only
// import kvstore.
var ErrCorruption = errno.Corruption
