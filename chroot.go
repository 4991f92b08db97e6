// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package efs

import (
	"github.com/efs-go/efs/errno"
	"github.com/efs-go/efs/internal/inodes"
	"github.com/efs-go/efs/internal/kvstore"
	"github.com/efs-go/efs/internal/perm"
	"github.com/efs-go/efs/internal/resolve"
)

// Chroot returns a new view confined to the subtree rooted at path
// (spec.md §4.11). The sub-view shares its parent's store, locks,
// semaphore, and inode-reference counts, but gets its own current
// directory, descriptor table, and caller identity (initially
// inherited from the parent). Its resolver treats path's inode as "/"
// — ".." at that inode resolves to itself, exactly like the real
// root, so nothing above path is ever reachable by name (S6).
func (e *EFS) Chroot(path string) (*EFS, error) {
	if e.isClosed() {
		return nil, pathErr("chroot", path, errno.EBADF)
	}

	var newRootID inodes.ID
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, rerr := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: true, MustBeDirectory: true}, e.Caller())
		if rerr != nil {
			return rerr
		}
		if perr := perm.Check(e.Caller(), res.Meta.UID, res.Meta.GID, res.Meta.Mode, perm.Execute); perr != nil {
			return perr
		}
		newRootID = res.Stack[len(res.Stack)-1]
		return nil
	})
	if err != nil {
		return nil, pathErr("chroot", path, err)
	}

	root := e.root()
	sub := &EFS{
		sh:       e.sh,
		rootOf:   root,
		rootID:   newRootID,
		cwdStack: []inodes.ID{newRootID},
		caller:   e.Caller(),
		descs:    newDescriptorTable(e.sh.maxDescs),
		children: make(map[*EFS]struct{}),
	}

	root.childrenMu.Lock()
	root.children[sub] = struct{}{}
	root.childrenMu.Unlock()

	return sub, nil
}
