// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package efs

import (
	"bytes"
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/efs-go/efs/errno"
	icrypto "github.com/efs-go/efs/internal/crypto"
	"github.com/efs-go/efs/internal/inodes"
	"github.com/efs-go/efs/internal/kvstore"
	"github.com/efs-go/efs/internal/lockmgr"
	"github.com/efs-go/efs/internal/perm"
	"github.com/efs-go/efs/internal/resolve"
)

var metaDomain = kvstore.Domain{"meta"}
var fingerprintKey = []byte("fingerprint")

// shared holds everything a root EFS and all of its chroot sub-views
// hold in common: the store, the per-inode locks, the in-flight-op
// semaphore, and the open-descriptor refcounts that gate when an
// unlinked inode's blocks are actually reclaimed (spec.md §3
// "Lifecycle" — an inode outlives its last link until its last
// descriptor, which may live in a different sub-view, closes).
type shared struct {
	kv       *kvstore.Store
	store    *inodes.Store
	resolver *resolve.Resolver
	locks    *lockmgr.Manager
	sem      *semaphore.Weighted
	refs     *inodeRefs
	logger   zerolog.Logger
	umask    uint32
	maxDescs int
}

// EFS is one view onto an encrypted filesystem: the root view created
// by Format/Open, or a chroot sub-view sharing the same backing store.
type EFS struct {
	sh *shared

	rootOf *EFS // the root EFS instance; nil on the root itself

	mu       sync.Mutex
	rootID   inodes.ID
	cwdStack []inodes.ID
	closed   bool
	caller   perm.Caller

	descs *descriptorTable

	childrenMu sync.Mutex
	children   map[*EFS]struct{}
}

// Format initializes a new, empty filesystem at path, encrypted with
// rootKey, and returns a handle to its root view. path is opened
// through the bbolt engine; a store at path that has already been
// formatted (it holds a key fingerprint) is refused with errno.EEXIST.
func Format(path string, rootKey []byte, opts Options) (*EFS, error) {
	opts = opts.withDefaults()
	aead, err := icrypto.New(rootKey)
	if err != nil {
		return nil, pathErr("format", path, err)
	}
	engine, err := kvstore.OpenBbolt(path)
	if err != nil {
		return nil, pathErr("format", path, err)
	}
	kv := kvstore.New(engine, aead)
	store := inodes.NewStore(kv)

	err = kv.Batch(func(txn kvstore.Txn) error {
		if _, ok, err := kv.GetRaw(txn, metaDomain, fingerprintKey); err != nil {
			return err
		} else if ok {
			return errno.EEXIST
		}
		fp := aead.Fingerprint()
		if err := kv.PutRaw(txn, metaDomain, fingerprintKey, fp[:]); err != nil {
			return err
		}
		return store.AllocRoot(txn, opts.RootMode, opts.UID, opts.GID, nowMs())
	})
	if err != nil {
		engine.Close()
		return nil, pathErr("format", path, err)
	}

	e := newRoot(kv, store, opts)
	e.sh.logger.Info().Str("path", path).Msg("formatted new store")
	return e, nil
}

// Open attaches to an existing filesystem at path, encrypted with
// rootKey. A key that does not match the one Format was called with
// is detected immediately via the stored fingerprint and reported as
// errno.KeyMismatch rather than surfacing as a confusing Corruption on
// the first unrelated read.
func Open(path string, rootKey []byte, opts Options) (*EFS, error) {
	opts = opts.withDefaults()
	aead, err := icrypto.New(rootKey)
	if err != nil {
		return nil, pathErr("open", path, err)
	}
	engine, err := kvstore.OpenBbolt(path)
	if err != nil {
		return nil, pathErr("open", path, err)
	}
	kv := kvstore.New(engine, aead)
	store := inodes.NewStore(kv)

	err = kv.View(func(txn kvstore.Txn) error {
		stored, ok, err := kv.GetRaw(txn, metaDomain, fingerprintKey)
		if err != nil {
			return err
		}
		if !ok {
			return errno.Corruption
		}
		fp := aead.Fingerprint()
		if !bytes.Equal(stored, fp[:]) {
			return errno.KeyMismatch
		}
		_, err = store.ReadMeta(txn, inodes.RootID)
		return err
	})
	if err != nil {
		engine.Close()
		return nil, pathErr("open", path, err)
	}

	e := newRoot(kv, store, opts)
	e.sh.logger.Info().Str("path", path).Msg("opened store")
	return e, nil
}

func newRoot(kv *kvstore.Store, store *inodes.Store, opts Options) *EFS {
	var sem *semaphore.Weighted
	if opts.MaxConcurrentOps > 0 {
		sem = semaphore.NewWeighted(opts.MaxConcurrentOps)
	}
	sh := &shared{
		kv:       kv,
		store:    store,
		resolver: resolve.New(store),
		locks:    lockmgr.New(),
		sem:      sem,
		refs:     newInodeRefs(),
		logger:   zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("component", "efs").Logger(),
		umask:    opts.Umask,
		maxDescs: opts.MaxDescriptors,
	}
	euid, egid := opts.EUID, opts.EGID
	if euid == 0 && opts.UID != 0 {
		euid = opts.UID
	}
	if egid == 0 && opts.GID != 0 {
		egid = opts.GID
	}
	return &EFS{
		sh:       sh,
		rootID:   inodes.RootID,
		cwdStack: []inodes.ID{inodes.RootID},
		caller:   perm.Caller{UID: euid, GID: egid},
		descs:    newDescriptorTable(sh.maxDescs),
		children: make(map[*EFS]struct{}),
	}
}

// Caller returns the effective identity this view's operations run
// as. The default EFS is not a multi-user server: each view
// corresponds to one simulated caller, set at Format/Open time via
// Options.EUID/EGID (a Chroot sub-view starts with its parent's
// identity) and changeable at runtime with Seteuid/Setegid
// (spec.md's scenario S7 changes "the" caller mid-sequence without
// reopening the store).
func (e *EFS) Caller() perm.Caller {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caller
}

// Seteuid changes this view's effective uid for subsequent operations.
func (e *EFS) Seteuid(uid uint32) {
	e.mu.Lock()
	e.caller.UID = uid
	e.mu.Unlock()
}

// Setegid changes this view's effective gid for subsequent operations.
func (e *EFS) Setegid(gid uint32) {
	e.mu.Lock()
	e.caller.GID = gid
	e.mu.Unlock()
}

// root returns the EFS instance that owns the shared lifecycle (the
// one Close stops everything through).
func (e *EFS) root() *EFS {
	if e.rootOf != nil {
		return e.rootOf
	}
	return e
}

// withOpSlot bounds concurrently in-flight operations per instance
// tree via the shared semaphore, when one is configured. Mkdir, Rmdir
// and Rename are the operations that run through it.
func (e *EFS) withOpSlot(ctx context.Context, fn func() error) error {
	if e.sh.sem == nil {
		return fn()
	}
	if err := e.sh.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sh.sem.Release(1)
	return fn()
}

func (e *EFS) cwdSnapshot() []inodes.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	stack := make([]inodes.ID, len(e.cwdStack))
	copy(stack, e.cwdStack)
	return stack
}

func (e *EFS) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close releases this view's descriptors. Closing the root view also
// closes every live chroot sub-view and the underlying store; closing
// a sub-view only releases its own descriptors, per spec.md §4.11.
func (e *EFS) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.descs.closeAll(func(ino inodes.ID) {
		e.dropIfOrphaned(ino)
	})

	if e.rootOf != nil {
		e.rootOf.childrenMu.Lock()
		delete(e.rootOf.children, e)
		e.rootOf.childrenMu.Unlock()
		return nil
	}

	e.childrenMu.Lock()
	kids := make([]*EFS, 0, len(e.children))
	for c := range e.children {
		kids = append(kids, c)
	}
	e.childrenMu.Unlock()
	for _, c := range kids {
		c.Close()
	}
	return e.sh.kv.Close()
}
