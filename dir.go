// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package efs

import (
	"context"

	"github.com/efs-go/efs/errno"
	"github.com/efs-go/efs/internal/inodes"
	"github.com/efs-go/efs/internal/kvstore"
	"github.com/efs-go/efs/internal/perm"
	"github.com/efs-go/efs/internal/resolve"
)

// Mkdir creates a new, empty directory at path.
func (e *EFS) Mkdir(path string, mode uint32) error {
	return e.MkdirContext(context.Background(), path, mode)
}

// MkdirContext is Mkdir with explicit cancellation of the bounded
// in-flight-operations wait (see Options.MaxConcurrentOps).
func (e *EFS) MkdirContext(ctx context.Context, path string, mode uint32) error {
	err := e.withOpSlot(ctx, func() error {
		return e.sh.kv.Batch(func(txn kvstore.Txn) error {
			parentStack, name, rerr := e.sh.resolver.ResolveParent(txn, e.cwdSnapshot(), e.rootID, path, e.Caller())
			if rerr != nil {
				return rerr
			}
			if name == "." || name == ".." {
				return errno.EEXIST
			}
			parentID := parentStack[len(parentStack)-1]
			parentMeta, merr := e.sh.store.ReadMeta(txn, parentID)
			if merr != nil {
				return merr
			}
			if perr := perm.Check(e.Caller(), parentMeta.UID, parentMeta.GID, parentMeta.Mode, perm.Write|perm.Execute); perr != nil {
				return perr
			}

			childID, aerr := e.sh.store.AllocInode(txn, inodes.Directory, perm.ApplyUmask(mode, e.sh.umask)&perm.ModeBits, e.Caller().UID, e.Caller().GID, nowMs())
			if aerr != nil {
				return aerr
			}
			return e.sh.store.LinkEntry(txn, parentID, name, childID, nowMs())
		})
	})
	if err != nil {
		return pathErr("mkdir", path, err)
	}
	return nil
}

// Readdir lists path's entries in name order, excluding "." and "..".
func (e *EFS) Readdir(path string) ([]DirEntry, error) {
	var out []DirEntry
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, rerr := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: true, MustBeDirectory: true}, e.Caller())
		if rerr != nil {
			return rerr
		}
		if perr := perm.Check(e.Caller(), res.Meta.UID, res.Meta.GID, res.Meta.Mode, perm.Read|perm.Execute); perr != nil {
			return perr
		}
		dirID := res.Stack[len(res.Stack)-1]
		entries, ierr := e.sh.store.IterEntries(txn, dirID)
		if ierr != nil {
			return ierr
		}
		out = make([]DirEntry, 0, len(entries))
		for _, ent := range entries {
			m, merr := e.sh.store.ReadMeta(txn, ent.Child)
			if merr != nil {
				return merr
			}
			out = append(out, DirEntry{Name: ent.Name, Ino: ent.Child, Type: fromInodeType(m.Type)})
		}
		return nil
	})
	if err != nil {
		return nil, pathErr("readdir", path, err)
	}
	return out, nil
}

// Rmdir removes the empty directory at path. When recursive is set it
// instead walks the subtree bottom-up, requiring write+search on every
// ancestor and on every non-empty directory it descends into (spec.md
// testable property 9).
func (e *EFS) Rmdir(path string, recursive bool) error {
	return e.RmdirContext(context.Background(), path, recursive)
}

func (e *EFS) RmdirContext(ctx context.Context, path string, recursive bool) error {
	err := e.withOpSlot(ctx, func() error {
		parentStack, name, rerr := func() ([]inodes.ID, string, error) {
			var parentStack []inodes.ID
			var name string
			err := e.sh.kv.View(func(txn kvstore.Txn) error {
				var rerr error
				parentStack, name, rerr = e.sh.resolver.ResolveParent(txn, e.cwdSnapshot(), e.rootID, path, e.Caller())
				return rerr
			})
			return parentStack, name, err
		}()
		if rerr != nil {
			return rerr
		}
		if name == "." || name == ".." {
			return errno.EINVAL
		}
		parentID := parentStack[len(parentStack)-1]

		if recursive {
			var targetID inodes.ID
			err := e.sh.kv.View(func(txn kvstore.Txn) error {
				id, lerr := e.sh.store.LookupEntry(txn, parentID, name)
				if lerr != nil {
					return lerr
				}
				targetID = id
				return nil
			})
			if err != nil {
				return err
			}
			if err := e.rmdirRecursive(targetID); err != nil {
				return err
			}
		}

		return e.rmdirOne(parentID, name)
	})
	if err != nil {
		return pathErr("rmdir", path, err)
	}
	return nil
}

// rmdirOne removes one empty directory entry, enforcing write+search
// on the parent and emptiness of the target.
func (e *EFS) rmdirOne(parentID inodes.ID, name string) error {
	unlock := e.sh.locks.Lock(parentID)
	defer unlock()
	return e.sh.kv.Batch(func(txn kvstore.Txn) error {
		parentMeta, err := e.sh.store.ReadMeta(txn, parentID)
		if err != nil {
			return err
		}
		if perr := perm.Check(e.Caller(), parentMeta.UID, parentMeta.GID, parentMeta.Mode, perm.Write|perm.Execute); perr != nil {
			return perr
		}
		childID, err := e.sh.store.LookupEntry(txn, parentID, name)
		if err != nil {
			return err
		}
		childMeta, err := e.sh.store.ReadMeta(txn, childID)
		if err != nil {
			return err
		}
		if childMeta.Type != inodes.Directory {
			return errno.ENOTDIR
		}
		if childMeta.Size != 0 {
			return errno.ENOTEMPTY
		}
		if _, err := e.sh.store.UnlinkEntry(txn, parentID, name, nowMs()); err != nil {
			return err
		}
		return e.sh.store.DropInode(txn, childID)
	})
}

// rmdirRecursive empties dirID bottom-up, checking write+search
// permission on every directory it descends into.
func (e *EFS) rmdirRecursive(dirID inodes.ID) error {
	var entries []inodes.Entry
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		dirMeta, merr := e.sh.store.ReadMeta(txn, dirID)
		if merr != nil {
			return merr
		}
		if perr := perm.Check(e.Caller(), dirMeta.UID, dirMeta.GID, dirMeta.Mode, perm.Write|perm.Execute); perr != nil {
			return perr
		}
		entries, merr = e.sh.store.IterEntries(txn, dirID)
		return merr
	})
	if err != nil {
		return err
	}
	for _, ent := range entries {
		var childMeta inodes.Meta
		err := e.sh.kv.View(func(txn kvstore.Txn) error {
			var merr error
			childMeta, merr = e.sh.store.ReadMeta(txn, ent.Child)
			return merr
		})
		if err != nil {
			return err
		}
		if childMeta.Type == inodes.Directory {
			if err := e.rmdirRecursive(ent.Child); err != nil {
				return err
			}
			if err := e.rmdirOne(dirID, ent.Name); err != nil {
				return err
			}
			continue
		}
		if err := e.unlinkOne(dirID, ent.Name); err != nil {
			return err
		}
	}
	return nil
}
