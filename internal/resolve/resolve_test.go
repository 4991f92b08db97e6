// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/efs-go/efs/errno"
	icrypto "github.com/efs-go/efs/internal/crypto"
	"github.com/efs-go/efs/internal/inodes"
	"github.com/efs-go/efs/internal/kvstore"
	"github.com/efs-go/efs/internal/perm"
)

type harness struct {
	store *inodes.Store
	kv    *kvstore.Store
	res   *Resolver
	root  []inodes.ID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key := make([]byte, icrypto.KeySize)
	rand.Read(key)
	aead, err := icrypto.New(key)
	if err != nil {
		t.Fatalf("crypto.New: %v", err)
	}
	engine, err := kvstore.OpenBbolt(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("OpenBbolt: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	kv := kvstore.New(engine, aead)
	s := inodes.NewStore(kv)
	if err := kv.Batch(func(txn kvstore.Txn) error {
		return s.AllocRoot(txn, 0o755, 0, 0, 1000)
	}); err != nil {
		t.Fatalf("AllocRoot: %v", err)
	}
	return &harness{store: s, kv: kv, res: New(s), root: []inodes.ID{inodes.RootID}}
}

func (h *harness) mkdir(t *testing.T, parent inodes.ID, name string, mode uint32) inodes.ID {
	t.Helper()
	var id inodes.ID
	err := h.kv.Batch(func(txn kvstore.Txn) error {
		var err error
		id, err = h.store.AllocInode(txn, inodes.Directory, mode, 0, 0, 1000)
		if err != nil {
			return err
		}
		return h.store.LinkEntry(txn, parent, name, id, 1000)
	})
	if err != nil {
		t.Fatalf("mkdir %s: %v", name, err)
	}
	return id
}

func (h *harness) file(t *testing.T, parent inodes.ID, name string, mode uint32) inodes.ID {
	t.Helper()
	var id inodes.ID
	err := h.kv.Batch(func(txn kvstore.Txn) error {
		var err error
		id, err = h.store.AllocInode(txn, inodes.Regular, mode, 0, 0, 1000)
		if err != nil {
			return err
		}
		return h.store.LinkEntry(txn, parent, name, id, 1000)
	})
	if err != nil {
		t.Fatalf("file %s: %v", name, err)
	}
	return id
}

func (h *harness) symlink(t *testing.T, parent inodes.ID, name, target string) inodes.ID {
	t.Helper()
	var id inodes.ID
	err := h.kv.Batch(func(txn kvstore.Txn) error {
		id0, err := h.store.AllocInode(txn, inodes.Symlink, 0o777, 0, 0, 1000)
		if err != nil {
			return err
		}
		m, err := h.store.ReadMeta(txn, id0)
		if err != nil {
			return err
		}
		m.Target = target
		m.Size = uint64(len(target))
		if err := h.store.WriteMeta(txn, m); err != nil {
			return err
		}
		id = id0
		return h.store.LinkEntry(txn, parent, name, id0, 1000)
	})
	if err != nil {
		t.Fatalf("symlink %s: %v", name, err)
	}
	return id
}

var rootCaller = perm.Caller{UID: 0, GID: 0}

func TestResolveSimplePath(t *testing.T) {
	h := newHarness(t)
	a := h.mkdir(t, inodes.RootID, "a", 0o755)
	f := h.file(t, a, "f", 0o644)

	var res Result
	err := h.kv.View(func(txn kvstore.Txn) error {
		var err error
		res, err = h.res.Resolve(txn, h.root, inodes.RootID, "/a/f", Flags{FollowFinalSymlink: true}, rootCaller)
		return err
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Stack[len(res.Stack)-1] != f {
		t.Fatalf("resolved id = %d, want %d", res.Stack[len(res.Stack)-1], f)
	}
}

func TestResolveDotDot(t *testing.T) {
	h := newHarness(t)
	a := h.mkdir(t, inodes.RootID, "a", 0o755)
	b := h.mkdir(t, a, "b", 0o755)
	_ = b

	var res Result
	err := h.kv.View(func(txn kvstore.Txn) error {
		var err error
		res, err = h.res.Resolve(txn, h.root, inodes.RootID, "/a/b/../b/..", Flags{}, rootCaller)
		return err
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Stack[len(res.Stack)-1] != a {
		t.Fatalf("resolved id = %d, want a = %d", res.Stack[len(res.Stack)-1], a)
	}
}

func TestRootDotDotStaysAtRoot(t *testing.T) {
	h := newHarness(t)
	var res Result
	err := h.kv.View(func(txn kvstore.Txn) error {
		var err error
		res, err = h.res.Resolve(txn, h.root, inodes.RootID, "/../../..", Flags{}, rootCaller)
		return err
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Stack[len(res.Stack)-1] != inodes.RootID {
		t.Fatalf("root's .. should stay at root, got %d", res.Stack[len(res.Stack)-1])
	}
}

func TestSymlinkFollowed(t *testing.T) {
	h := newHarness(t)
	a := h.mkdir(t, inodes.RootID, "a", 0o755)
	f := h.file(t, a, "f", 0o644)
	h.symlink(t, inodes.RootID, "link", "/a/f")

	var res Result
	err := h.kv.View(func(txn kvstore.Txn) error {
		var err error
		res, err = h.res.Resolve(txn, h.root, inodes.RootID, "/link", Flags{FollowFinalSymlink: true}, rootCaller)
		return err
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Stack[len(res.Stack)-1] != f {
		t.Fatalf("symlink did not resolve to target file")
	}
}

func TestSymlinkNotFollowedWhenUnset(t *testing.T) {
	h := newHarness(t)
	linkID := h.symlink(t, inodes.RootID, "link", "/a/f")

	var res Result
	err := h.kv.View(func(txn kvstore.Txn) error {
		var err error
		res, err = h.res.Resolve(txn, h.root, inodes.RootID, "/link", Flags{FollowFinalSymlink: false}, rootCaller)
		return err
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Stack[len(res.Stack)-1] != linkID {
		t.Fatalf("lstat-style resolve should return the symlink itself")
	}
}

func TestSymlinkLoopDetected(t *testing.T) {
	h := newHarness(t)
	h.symlink(t, inodes.RootID, "t", "/t")
	err := h.kv.View(func(txn kvstore.Txn) error {
		_, err := h.res.Resolve(txn, h.root, inodes.RootID, "/t", Flags{FollowFinalSymlink: true}, rootCaller)
		return err
	})
	if err != errno.ELOOP {
		t.Fatalf("expected ELOOP, got %v", err)
	}
}

func TestNotADirectoryIntermediate(t *testing.T) {
	h := newHarness(t)
	h.file(t, inodes.RootID, "f", 0o644)
	err := h.kv.View(func(txn kvstore.Txn) error {
		_, err := h.res.Resolve(txn, h.root, inodes.RootID, "/f/g", Flags{FollowFinalSymlink: true}, rootCaller)
		return err
	})
	if err != errno.ENOTDIR {
		t.Fatalf("expected ENOTDIR, got %v", err)
	}
}

func TestNoExecuteOnIntermediateDenied(t *testing.T) {
	h := newHarness(t)
	a := h.mkdir(t, inodes.RootID, "a", 0o600) // no execute bit
	h.file(t, a, "f", 0o644)
	unpriv := perm.Caller{UID: 1000, GID: 1000}
	err := h.kv.View(func(txn kvstore.Txn) error {
		_, err := h.res.Resolve(txn, h.root, inodes.RootID, "/a/f", Flags{FollowFinalSymlink: true}, unpriv)
		return err
	})
	if err != errno.EACCES {
		t.Fatalf("expected EACCES, got %v", err)
	}
}

func TestResolveParentSplitsLeaf(t *testing.T) {
	h := newHarness(t)
	a := h.mkdir(t, inodes.RootID, "a", 0o755)
	var stack []inodes.ID
	var leaf string
	err := h.kv.View(func(txn kvstore.Txn) error {
		var err error
		stack, leaf, err = h.res.ResolveParent(txn, h.root, inodes.RootID, "/a/newfile", rootCaller)
		return err
	})
	if err != nil {
		t.Fatalf("ResolveParent: %v", err)
	}
	if leaf != "newfile" {
		t.Fatalf("leaf = %q, want newfile", leaf)
	}
	if stack[len(stack)-1] != a {
		t.Fatalf("parent stack tail = %d, want a = %d", stack[len(stack)-1], a)
	}
}
