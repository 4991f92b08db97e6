// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kvstore

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// BboltEngine adapts go.etcd.io/bbolt to the Engine contract. Domains
// map onto chains of nested buckets, giving each inode its own
// sub-namespace for its meta record, blocks and dirents without any
// key-concatenation scheme.
type BboltEngine struct {
	db *bbolt.DB
}

// OpenBbolt opens (creating if absent) a bbolt file at path.
func OpenBbolt(path string) (*BboltEngine, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("efs/kvstore: opening bbolt store: %w", err)
	}
	return &BboltEngine{db: db}, nil
}

func (e *BboltEngine) Close() error { return e.db.Close() }

func (e *BboltEngine) Batch(fn func(Txn) error) error {
	return e.db.Update(func(tx *bbolt.Tx) error {
		return fn(&bboltTxn{tx: tx, writable: true})
	})
}

func (e *BboltEngine) View(fn func(Txn) error) error {
	return e.db.View(func(tx *bbolt.Tx) error {
		return fn(&bboltTxn{tx: tx, writable: false})
	})
}

type bboltTxn struct {
	tx       *bbolt.Tx
	writable bool
}

// descend walks a Domain through nested buckets, creating them along
// the way when the transaction is writable and create is true.
func (t *bboltTxn) descend(d Domain, create bool) (*bbolt.Bucket, error) {
	if len(d) == 0 {
		return nil, fmt.Errorf("efs/kvstore: empty domain")
	}
	var b *bbolt.Bucket
	for i, seg := range d {
		key := []byte(seg)
		if i == 0 {
			if create {
				nb, err := t.tx.CreateBucketIfNotExists(key)
				if err != nil {
					return nil, err
				}
				b = nb
			} else {
				b = t.tx.Bucket(key)
			}
		} else {
			if create {
				nb, err := b.CreateBucketIfNotExists(key)
				if err != nil {
					return nil, err
				}
				b = nb
			} else {
				b = b.Bucket(key)
			}
		}
		if b == nil {
			return nil, nil
		}
	}
	return b, nil
}

func (t *bboltTxn) Get(d Domain, key []byte) ([]byte, bool, error) {
	b, err := t.descend(d, false)
	if err != nil {
		return nil, false, err
	}
	if b == nil {
		return nil, false, nil
	}
	v := b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	// Copy out: bbolt's Get result is only valid for the life of the
	// transaction.
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t *bboltTxn) Put(d Domain, key, value []byte) error {
	b, err := t.descend(d, true)
	if err != nil {
		return err
	}
	return b.Put(key, value)
}

func (t *bboltTxn) Delete(d Domain, key []byte) error {
	b, err := t.descend(d, false)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}
	return b.Delete(key)
}

func (t *bboltTxn) DeleteDomain(d Domain) error {
	if len(d) == 0 {
		return fmt.Errorf("efs/kvstore: empty domain")
	}
	parent, err := t.descend(d[:len(d)-1], false)
	if err != nil {
		return err
	}
	last := []byte(d[len(d)-1])
	if len(d) == 1 {
		if t.tx.Bucket(last) == nil {
			return nil
		}
		return t.tx.DeleteBucket(last)
	}
	if parent == nil || parent.Bucket(last) == nil {
		return nil
	}
	return parent.DeleteBucket(last)
}

func (t *bboltTxn) Range(d Domain, lo, hi []byte, fn func(key, value []byte) bool) error {
	b, err := t.descend(d, false)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}
	c := b.Cursor()
	var k, v []byte
	if lo == nil {
		k, v = c.First()
	} else {
		k, v = c.Seek(lo)
	}
	for ; k != nil; k, v = c.Next() {
		if hi != nil && string(k) >= string(hi) {
			break
		}
		if !fn(k, v) {
			break
		}
	}
	return nil
}
