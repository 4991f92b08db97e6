// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package inodes

import (
	"strconv"

	"github.com/efs-go/efs/errno"
	"github.com/efs-go/efs/internal/kvstore"
)

var metaKey = []byte("meta")
var counterKey = []byte("counter")
var counterDomain = kvstore.Domain{"meta"}

// Store implements C3: inode records, directory entries, and the
// monotonic id counter, all addressed through a kvstore.Store.
type Store struct {
	kv *kvstore.Store
}

func NewStore(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

func idSeg(id ID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func inodeDomain(id ID) kvstore.Domain {
	return kvstore.Domain{"inodes", idSeg(id)}
}

func blocksDomain(id ID) kvstore.Domain {
	d := inodeDomain(id)
	return append(d, "blocks")
}

func direntsDomain(id ID) kvstore.Domain {
	d := inodeDomain(id)
	return append(d, "dirents")
}

// NextID reads and increments the monotonic inode-id counter
// atomically within txn. The counter must already exist; Format
// seeds it via seedCounter before any other operation runs.
func (s *Store) NextID(txn kvstore.Txn) (ID, error) {
	raw, ok, err := s.kv.Get(txn, counterDomain, counterKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errno.Corruption
	}
	next := decodeID2(raw)
	if err := s.kv.Put(txn, counterDomain, counterKey, encodeID(ID(next+1))); err != nil {
		return 0, err
	}
	return ID(next), nil
}

// seedCounter is used only by Format to initialize the counter after
// the root inode has been created with the fixed id RootID.
func (s *Store) seedCounter(txn kvstore.Txn, next ID) error {
	return s.kv.Put(txn, counterDomain, counterKey, encodeID(next))
}

func decodeID2(buf []byte) uint64 { return uint64(decodeID(buf)) }

// AllocInode creates a new inode record with nlink seeded per
// spec.md §3: 1 for a fresh Directory (accounting for its synthesized
// "." entry), 0 for Regular/Symlink (no name points to it yet; the
// first LinkEntry call brings it to 1).
func (s *Store) AllocInode(txn kvstore.Txn, typ Type, mode, uid, gid uint32, now int64) (ID, error) {
	id, err := s.NextID(txn)
	if err != nil {
		return 0, err
	}
	nlink := uint32(0)
	if typ == Directory {
		nlink = 1
	}
	m := Meta{
		ID: id, Type: typ, Mode: mode, UID: uid, GID: gid,
		Nlink: nlink, Atime: now, Mtime: now, Ctime: now, Birthtime: now,
	}
	if err := s.WriteMeta(txn, m); err != nil {
		return 0, err
	}
	return id, nil
}

// AllocRoot creates the root directory with the fixed id RootID and
// seeds the counter to RootID+1. Called once by Format on an empty
// store.
func (s *Store) AllocRoot(txn kvstore.Txn, mode, uid, gid uint32, now int64) error {
	m := Meta{
		ID: RootID, Type: Directory, Mode: mode, UID: uid, GID: gid,
		// root is its own parent: "." and ".." both point to it, plus
		// there is no external dirent linking it in, so Nlink starts
		// at 2 directly rather than waiting on a LinkEntry call.
		Nlink: 2, Atime: now, Mtime: now, Ctime: now, Birthtime: now,
	}
	if err := s.WriteMeta(txn, m); err != nil {
		return err
	}
	return s.seedCounter(txn, RootID+1)
}

// ReadMeta loads an inode record. A missing record is errno.ENOENT;
// a decode/authentication failure is errno.Corruption.
func (s *Store) ReadMeta(txn kvstore.Txn, id ID) (Meta, error) {
	raw, ok, err := s.kv.Get(txn, inodeDomain(id), metaKey)
	if err != nil {
		return Meta{}, err
	}
	if !ok {
		return Meta{}, errno.ENOENT
	}
	m, err := decodeMeta(raw)
	if err != nil {
		return Meta{}, errno.Corruption
	}
	return m, nil
}

// WriteMeta persists an inode record in full.
func (s *Store) WriteMeta(txn kvstore.Txn, m Meta) error {
	return s.kv.Put(txn, inodeDomain(m.ID), metaKey, encodeMeta(m))
}

// LookupEntry resolves one directory entry by name.
func (s *Store) LookupEntry(txn kvstore.Txn, parent ID, name string) (ID, error) {
	raw, ok, err := s.kv.Get(txn, direntsDomain(parent), []byte(name))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errno.ENOENT
	}
	return decodeID(raw), nil
}

// Entry is one (name, child id) pair returned by IterEntries.
type Entry struct {
	Name  string
	Child ID
}

// IterEntries returns a directory's entries in name order (bbolt's
// native byte-lexicographic cursor order), excluding the synthesized
// "." and "..".
func (s *Store) IterEntries(txn kvstore.Txn, parent ID) ([]Entry, error) {
	var out []Entry
	err := s.kv.Range(txn, direntsDomain(parent), nil, nil, func(key, value []byte) bool {
		out = append(out, Entry{Name: string(key), Child: decodeID(value)})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LinkEntry creates a directory entry and updates the bookkeeping
// spec.md §4.3 requires it to touch atomically: parent size/mtime/
// ctime, child ctime/nlink, and (when the child is itself a
// directory) the parent's nlink for the child's synthesized "..".
func (s *Store) LinkEntry(txn kvstore.Txn, parent ID, name string, child ID, now int64) error {
	if !NameValid(name) {
		return errno.EINVAL
	}
	if _, err := s.LookupEntry(txn, parent, name); err == nil {
		return errno.EEXIST
	} else if err != errno.ENOENT {
		return err
	}

	parentM, err := s.ReadMeta(txn, parent)
	if err != nil {
		return err
	}
	childM, err := s.ReadMeta(txn, child)
	if err != nil {
		return err
	}

	if err := s.kv.Put(txn, direntsDomain(parent), []byte(name), encodeID(child)); err != nil {
		return err
	}

	parentM.Size++
	parentM.Mtime = now
	parentM.Ctime = now
	if childM.Type == Directory {
		parentM.Nlink++
	}
	childM.Nlink++
	childM.Ctime = now

	if err := s.WriteMeta(txn, parentM); err != nil {
		return err
	}
	return s.WriteMeta(txn, childM)
}

// UnlinkEntry removes a directory entry and performs the mirror image
// of LinkEntry's bookkeeping. It does not enforce the "unlink on a
// directory is EISDIR" rule — that belongs to the public ops (C8),
// since rmdir legitimately calls this same primitive to detach a
// directory from its parent.
func (s *Store) UnlinkEntry(txn kvstore.Txn, parent ID, name string, now int64) (child ID, err error) {
	child, err = s.LookupEntry(txn, parent, name)
	if err != nil {
		return 0, err
	}
	parentM, err := s.ReadMeta(txn, parent)
	if err != nil {
		return 0, err
	}
	childM, err := s.ReadMeta(txn, child)
	if err != nil {
		return 0, err
	}

	if err := s.kv.Delete(txn, direntsDomain(parent), []byte(name)); err != nil {
		return 0, err
	}

	parentM.Size--
	parentM.Mtime = now
	parentM.Ctime = now
	if childM.Type == Directory {
		parentM.Nlink--
	}
	childM.Nlink--
	childM.Ctime = now

	if err := s.WriteMeta(txn, parentM); err != nil {
		return 0, err
	}
	if err := s.WriteMeta(txn, childM); err != nil {
		return 0, err
	}
	return child, nil
}

// ReplaceEntry atomically repoints an existing directory entry at a
// new child, used by rename's replace-destination path. It returns
// the id the entry previously pointed at.
func (s *Store) ReplaceEntry(txn kvstore.Txn, parent ID, name string, newChild ID) (oldChild ID, err error) {
	oldChild, err = s.LookupEntry(txn, parent, name)
	if err != nil {
		return 0, err
	}
	if err := s.kv.Put(txn, direntsDomain(parent), []byte(name), encodeID(newChild)); err != nil {
		return 0, err
	}
	return oldChild, nil
}

// DropInode removes an inode's meta record, all its block records and
// all its directory entries. The caller must have already verified
// Nlink == 0 and that no descriptor references the inode.
func (s *Store) DropInode(txn kvstore.Txn, id ID) error {
	if err := s.kv.DeleteDomain(txn, blocksDomain(id)); err != nil {
		return err
	}
	if err := s.kv.DeleteDomain(txn, direntsDomain(id)); err != nil {
		return err
	}
	return s.kv.Delete(txn, inodeDomain(id), metaKey)
}
