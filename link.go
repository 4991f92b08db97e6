// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package efs

import (
	"context"
	"strings"

	"github.com/efs-go/efs/errno"
	"github.com/efs-go/efs/internal/inodes"
	"github.com/efs-go/efs/internal/kvstore"
	"github.com/efs-go/efs/internal/perm"
	"github.com/efs-go/efs/internal/resolve"
)

// Link creates a new name dst for the existing inode at src. src must
// not be a directory (spec.md §4.8).
func (e *EFS) Link(src, dst string) error {
	var srcID inodes.ID
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, rerr := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, src, resolve.Flags{FollowFinalSymlink: false}, e.Caller())
		if rerr != nil {
			return rerr
		}
		if res.Meta.Type == inodes.Directory {
			return errno.EPERM
		}
		srcID = res.Stack[len(res.Stack)-1]
		return nil
	})
	if err != nil {
		return pathErr("link", src, err)
	}

	parentStack, name, err := func() ([]inodes.ID, string, error) {
		var ps []inodes.ID
		var nm string
		verr := e.sh.kv.View(func(txn kvstore.Txn) error {
			var rerr error
			ps, nm, rerr = e.sh.resolver.ResolveParent(txn, e.cwdSnapshot(), e.rootID, dst, e.Caller())
			return rerr
		})
		return ps, nm, verr
	}()
	if err != nil {
		return pathErr("link", dst, err)
	}
	if name == "." || name == ".." {
		return pathErr("link", dst, errno.EEXIST)
	}
	parentID := parentStack[len(parentStack)-1]

	unlock := e.sh.locks.LockTwo(parentID, srcID)
	defer unlock()
	err = e.sh.kv.Batch(func(txn kvstore.Txn) error {
		parentMeta, merr := e.sh.store.ReadMeta(txn, parentID)
		if merr != nil {
			return merr
		}
		if perr := perm.Check(e.Caller(), parentMeta.UID, parentMeta.GID, parentMeta.Mode, perm.Write|perm.Execute); perr != nil {
			return perr
		}
		return e.sh.store.LinkEntry(txn, parentID, name, srcID, nowMs())
	})
	if err != nil {
		return pathErr("link", dst, err)
	}
	return nil
}

// Unlink removes the name path from its parent directory. path must
// not be a directory (spec.md §4.8 — use Rmdir for that).
func (e *EFS) Unlink(path string) error {
	parentStack, name, err := func() ([]inodes.ID, string, error) {
		var ps []inodes.ID
		var nm string
		verr := e.sh.kv.View(func(txn kvstore.Txn) error {
			var rerr error
			ps, nm, rerr = e.sh.resolver.ResolveParent(txn, e.cwdSnapshot(), e.rootID, path, e.Caller())
			return rerr
		})
		return ps, nm, verr
	}()
	if err != nil {
		return pathErr("unlink", path, err)
	}
	if name == "." || name == ".." {
		return pathErr("unlink", path, errno.EINVAL)
	}
	if err := e.unlinkOne(parentStack[len(parentStack)-1], name); err != nil {
		return pathErr("unlink", path, err)
	}
	return nil
}

// unlinkOne removes one directory entry that must not be a directory,
// dropping the inode immediately if its link count reaches zero and it
// has no open descriptor.
func (e *EFS) unlinkOne(parentID inodes.ID, name string) error {
	var childID inodes.ID
	var shouldDrop bool

	unlock := e.sh.locks.Lock(parentID)
	err := e.sh.kv.Batch(func(txn kvstore.Txn) error {
		parentMeta, merr := e.sh.store.ReadMeta(txn, parentID)
		if merr != nil {
			return merr
		}
		if perr := perm.Check(e.Caller(), parentMeta.UID, parentMeta.GID, parentMeta.Mode, perm.Write|perm.Execute); perr != nil {
			return perr
		}
		id, lerr := e.sh.store.LookupEntry(txn, parentID, name)
		if lerr != nil {
			return lerr
		}
		childMeta, merr := e.sh.store.ReadMeta(txn, id)
		if merr != nil {
			return merr
		}
		if childMeta.Type == inodes.Directory {
			return errno.EISDIR
		}
		child, uerr := e.sh.store.UnlinkEntry(txn, parentID, name, nowMs())
		if uerr != nil {
			return uerr
		}
		childID = child
		newMeta, merr := e.sh.store.ReadMeta(txn, childID)
		if merr != nil {
			return merr
		}
		shouldDrop = newMeta.Nlink == 0 && e.sh.refs.count(childID) == 0
		if shouldDrop {
			return e.sh.store.DropInode(txn, childID)
		}
		return nil
	})
	unlock()
	if err != nil {
		return err
	}
	return nil
}

// Symlink creates a new symlink at linkPath whose target is the
// verbatim string target; target is not resolved or validated at
// creation (spec.md §4.8).
func (e *EFS) Symlink(target, linkPath string) error {
	parentStack, name, err := func() ([]inodes.ID, string, error) {
		var ps []inodes.ID
		var nm string
		verr := e.sh.kv.View(func(txn kvstore.Txn) error {
			var rerr error
			ps, nm, rerr = e.sh.resolver.ResolveParent(txn, e.cwdSnapshot(), e.rootID, linkPath, e.Caller())
			return rerr
		})
		return ps, nm, verr
	}()
	if err != nil {
		return pathErr("symlink", linkPath, err)
	}
	if name == "." || name == ".." {
		return pathErr("symlink", linkPath, errno.EEXIST)
	}
	parentID := parentStack[len(parentStack)-1]

	unlock := e.sh.locks.Lock(parentID)
	defer unlock()
	err = e.sh.kv.Batch(func(txn kvstore.Txn) error {
		parentMeta, merr := e.sh.store.ReadMeta(txn, parentID)
		if merr != nil {
			return merr
		}
		if perr := perm.Check(e.Caller(), parentMeta.UID, parentMeta.GID, parentMeta.Mode, perm.Write|perm.Execute); perr != nil {
			return perr
		}
		childID, aerr := e.sh.store.AllocInode(txn, inodes.Symlink, 0o777, e.Caller().UID, e.Caller().GID, nowMs())
		if aerr != nil {
			return aerr
		}
		m, merr := e.sh.store.ReadMeta(txn, childID)
		if merr != nil {
			return merr
		}
		m.Target = target
		m.Size = uint64(len(target))
		if merr := e.sh.store.WriteMeta(txn, m); merr != nil {
			return merr
		}
		return e.sh.store.LinkEntry(txn, parentID, name, childID, nowMs())
	})
	if err != nil {
		return pathErr("symlink", linkPath, err)
	}
	return nil
}

// Readlink returns the verbatim target of the symlink at path.
func (e *EFS) Readlink(path string) (string, error) {
	var target string
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, rerr := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: false}, e.Caller())
		if rerr != nil {
			return rerr
		}
		if res.Meta.Type != inodes.Symlink {
			return errno.EINVAL
		}
		target = res.Meta.Target
		return nil
	})
	if err != nil {
		return "", pathErr("readlink", path, err)
	}
	return target, nil
}

// Realpath fully resolves path, following every symlink, and returns
// a canonical absolute path built from the ancestor stack's names.
func (e *EFS) Realpath(path string) (string, error) {
	var parts []string
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, rerr := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: true}, e.Caller())
		if rerr != nil {
			return rerr
		}
		stack := res.Stack
		for i := len(stack) - 1; i > 0; i-- {
			name, nerr := nameOfChildIn(txn, e, stack[i-1], stack[i])
			if nerr != nil {
				return nerr
			}
			parts = append([]string{name}, parts...)
		}
		return nil
	})
	if err != nil {
		return "", pathErr("realpath", path, err)
	}
	return "/" + strings.Join(parts, "/"), nil
}

func nameOfChildIn(txn kvstore.Txn, e *EFS, parent, child inodes.ID) (string, error) {
	entries, err := e.sh.store.IterEntries(txn, parent)
	if err != nil {
		return "", err
	}
	for _, ent := range entries {
		if ent.Child == child {
			return ent.Name, nil
		}
	}
	return "", errno.ENOENT
}

// Rename atomically moves src to dst, replacing dst if it already
// exists. See spec.md §4.8 for the full edge-case matrix (ENOTEMPTY,
// EINVAL on a prefix rename, EBUSY on "." / "..", ENOTDIR/EISDIR on
// cross-type replacement).
func (e *EFS) Rename(src, dst string) error {
	return e.RenameContext(context.Background(), src, dst)
}

func (e *EFS) RenameContext(ctx context.Context, src, dst string) error {
	err := e.withOpSlot(ctx, func() error {
		if isPrefixPath(src, dst) {
			return errno.EINVAL
		}

		srcParentStack, srcName, srcID, srcMeta, err := e.resolveRenameSide(src)
		if err != nil {
			return err
		}
		if srcName == "." || srcName == ".." {
			return errno.EBUSY
		}
		dstParentStack, dstName, err := func() ([]inodes.ID, string, error) {
			var ps []inodes.ID
			var nm string
			verr := e.sh.kv.View(func(txn kvstore.Txn) error {
				var rerr error
				ps, nm, rerr = e.sh.resolver.ResolveParent(txn, e.cwdSnapshot(), e.rootID, dst, e.Caller())
				return rerr
			})
			return ps, nm, verr
		}()
		if err != nil {
			return err
		}
		if dstName == "." || dstName == ".." {
			return errno.EBUSY
		}

		srcParentID := srcParentStack[len(srcParentStack)-1]
		dstParentID := dstParentStack[len(dstParentStack)-1]

		unlock := e.sh.locks.LockTwo(srcParentID, dstParentID)
		defer unlock()

		return e.sh.kv.Batch(func(txn kvstore.Txn) error {
			srcParentMeta, merr := e.sh.store.ReadMeta(txn, srcParentID)
			if merr != nil {
				return merr
			}
			if perr := perm.Check(e.Caller(), srcParentMeta.UID, srcParentMeta.GID, srcParentMeta.Mode, perm.Write|perm.Execute); perr != nil {
				return perr
			}
			dstParentMeta, merr := e.sh.store.ReadMeta(txn, dstParentID)
			if merr != nil {
				return merr
			}
			if perr := perm.Check(e.Caller(), dstParentMeta.UID, dstParentMeta.GID, dstParentMeta.Mode, perm.Write|perm.Execute); perr != nil {
				return perr
			}

			existingID, lerr := e.sh.store.LookupEntry(txn, dstParentID, dstName)
			haveExisting := lerr == nil
			if lerr != nil && lerr != errno.ENOENT {
				return lerr
			}
			if haveExisting && existingID == srcID {
				return nil
			}

			if haveExisting {
				existingMeta, merr := e.sh.store.ReadMeta(txn, existingID)
				if merr != nil {
					return merr
				}
				if srcMeta.Type == inodes.Directory && existingMeta.Type != inodes.Directory {
					return errno.ENOTDIR
				}
				if srcMeta.Type != inodes.Directory && existingMeta.Type == inodes.Directory {
					return errno.EISDIR
				}
				if existingMeta.Type == inodes.Directory && existingMeta.Size != 0 {
					return errno.ENOTEMPTY
				}

				if _, uerr := e.sh.store.UnlinkEntry(txn, srcParentID, srcName, nowMs()); uerr != nil {
					return uerr
				}
				oldChild, rerr := e.sh.store.ReplaceEntry(txn, dstParentID, dstName, srcID)
				if rerr != nil {
					return rerr
				}

				// UnlinkEntry already decremented srcID's Nlink for the
				// name it lost; ReplaceEntry doesn't touch Nlink at all,
				// so credit srcID the link it just gained at dstName.
				movedMeta, merr := e.sh.store.ReadMeta(txn, srcID)
				if merr != nil {
					return merr
				}
				movedMeta.Nlink++
				movedMeta.Ctime = nowMs()
				if merr := e.sh.store.WriteMeta(txn, movedMeta); merr != nil {
					return merr
				}

				droppedMeta, merr := e.sh.store.ReadMeta(txn, oldChild)
				if merr != nil {
					return merr
				}
				droppedMeta.Nlink--
				if droppedMeta.Nlink == 0 && e.sh.refs.count(oldChild) == 0 {
					e.sh.logger.Debug().Uint64("ino", uint64(oldChild)).Msg("rename replaced and dropped inode")
					return e.sh.store.DropInode(txn, oldChild)
				}
				return e.sh.store.WriteMeta(txn, droppedMeta)
			}

			if _, uerr := e.sh.store.UnlinkEntry(txn, srcParentID, srcName, nowMs()); uerr != nil {
				return uerr
			}
			return e.sh.store.LinkEntry(txn, dstParentID, dstName, srcID, nowMs())
		})
	})
	if err != nil {
		return pathErr("rename", src, err)
	}
	return nil
}

func (e *EFS) resolveRenameSide(path string) (parentStack []inodes.ID, name string, id inodes.ID, meta inodes.Meta, err error) {
	err = e.sh.kv.View(func(txn kvstore.Txn) error {
		ps, nm, rerr := e.sh.resolver.ResolveParent(txn, e.cwdSnapshot(), e.rootID, path, e.Caller())
		if rerr != nil {
			return rerr
		}
		if nm == "." || nm == ".." {
			return errno.EBUSY
		}
		parentID := ps[len(ps)-1]
		childID, lerr := e.sh.store.LookupEntry(txn, parentID, nm)
		if lerr != nil {
			return lerr
		}
		m, merr := e.sh.store.ReadMeta(txn, childID)
		if merr != nil {
			return merr
		}
		parentStack, name, id, meta = ps, nm, childID, m
		return nil
	})
	return
}

// isPrefixPath reports whether dst is a strict descendant of src,
// which would make renaming src into dst create a cycle. src == dst
// is not a strict prefix: renaming a path onto itself is a no-op, not
// an error.
func isPrefixPath(src, dst string) bool {
	src = strings.TrimSuffix(src, "/")
	if src == "" {
		src = "/"
	}
	if src == "/" {
		return dst != "/" && strings.HasPrefix(dst, "/")
	}
	return strings.HasPrefix(dst, src+"/")
}
