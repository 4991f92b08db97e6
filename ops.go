// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package efs

import (
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/efs-go/efs/errno"
	"github.com/efs-go/efs/internal/inodes"
	"github.com/efs-go/efs/internal/kvstore"
	"github.com/efs-go/efs/internal/perm"
	"github.com/efs-go/efs/internal/resolve"
)

// statAt resolves path read-only and returns its Stat, following the
// final symlink iff follow is set (Stat follows, Lstat does not).
func (e *EFS) statAt(path string, follow bool) (Stat, error) {
	var st Stat
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, err := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: follow}, e.Caller())
		if err != nil {
			return err
		}
		st = statFromMeta(res.Meta)
		return nil
	})
	return st, err
}

// Stat resolves path, following a trailing symlink, and returns its
// metadata.
func (e *EFS) Stat(path string) (Stat, error) {
	st, err := e.statAt(path, true)
	if err != nil {
		return Stat{}, pathErr("stat", path, err)
	}
	return st, nil
}

// Lstat resolves path without following a trailing symlink.
func (e *EFS) Lstat(path string) (Stat, error) {
	st, err := e.statAt(path, false)
	if err != nil {
		return Stat{}, pathErr("lstat", path, err)
	}
	return st, nil
}

// Fstat returns the metadata of the inode fd refers to.
func (e *EFS) Fstat(fd int) (Stat, error) {
	ofd, err := e.descs.get(fd)
	if err != nil {
		return Stat{}, pathErr("fstat", "", err)
	}
	var st Stat
	err = e.sh.kv.View(func(txn kvstore.Txn) error {
		m, err := e.sh.store.ReadMeta(txn, ofd.ino)
		if err != nil {
			return err
		}
		st = statFromMeta(m)
		return nil
	})
	if err != nil {
		return Stat{}, pathErr("fstat", "", err)
	}
	return st, nil
}

// Access checks path's accessibility for the requested mode under the
// view's current caller identity.
func (e *EFS) Access(path string, mode AccessBit) error {
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, err := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: true}, e.Caller())
		if err != nil {
			return err
		}
		if mode == FOK {
			return nil
		}
		var mask uint8
		if mode&ROK != 0 {
			mask |= perm.Read
		}
		if mode&WOK != 0 {
			mask |= perm.Write
		}
		if mode&XOK != 0 {
			mask |= perm.Execute
		}
		return perm.Check(e.Caller(), res.Meta.UID, res.Meta.GID, res.Meta.Mode, mask)
	})
	if err != nil {
		return pathErr("access", path, err)
	}
	return nil
}

// Exists reports whether path resolves to anything at all.
func (e *EFS) Exists(path string) bool {
	return e.Access(path, FOK) == nil
}

// OpenFile opens path per flags, optionally creating it (OCREAT), and
// returns a descriptor. mode is applied (after umask) only when OCREAT
// creates a new inode.
func (e *EFS) OpenFile(path string, flags OpenFlag, mode uint32) (int, error) {
	if e.isClosed() {
		return 0, pathErr("open", path, errno.EBADF)
	}

	followFinal := flags&ONOFOLLOW == 0
	var ino inodes.ID
	var meta inodes.Meta

	err := e.sh.kv.Batch(func(txn kvstore.Txn) error {
		res, rerr := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: followFinal}, e.Caller())
		if rerr == nil {
			if flags&OCREAT != 0 && flags&OEXCL != 0 {
				return errno.EEXIST
			}
			if flags&ODIRECTORY != 0 && res.Meta.Type != inodes.Directory {
				return errno.ENOTDIR
			}
			mask := accessMask(flags)
			if perr := perm.Check(e.Caller(), res.Meta.UID, res.Meta.GID, res.Meta.Mode, mask); perr != nil {
				return perr
			}
			ino = res.Stack[len(res.Stack)-1]
			meta = res.Meta
			if flags&OTRUNC != 0 && meta.Type == inodes.Regular && (flags&accessModeMask == OWRONLY || flags&accessModeMask == ORDWR) {
				meta.Mtime = nowMs()
				meta.Ctime = nowMs()
				if err := e.sh.store.Truncate(txn, ino, &meta, 0); err != nil {
					return err
				}
				if err := e.sh.store.WriteMeta(txn, meta); err != nil {
					return err
				}
			}
			return nil
		}
		if rerr != errno.ENOENT || flags&OCREAT == 0 {
			return rerr
		}

		parentStack, name, perr := e.sh.resolver.ResolveParent(txn, e.cwdSnapshot(), e.rootID, path, e.Caller())
		if perr != nil {
			return perr
		}
		if name == "." || name == ".." {
			return errno.EINVAL
		}
		parentID := parentStack[len(parentStack)-1]
		parentMeta, perr := e.sh.store.ReadMeta(txn, parentID)
		if perr != nil {
			return perr
		}
		if perr := perm.Check(e.Caller(), parentMeta.UID, parentMeta.GID, parentMeta.Mode, perm.Write|perm.Execute); perr != nil {
			return perr
		}

		newID, aerr := e.sh.store.AllocInode(txn, inodes.Regular, perm.ApplyUmask(mode, e.sh.umask)&perm.ModeBits, e.Caller().UID, e.Caller().GID, nowMs())
		if aerr != nil {
			return aerr
		}
		if lerr := e.sh.store.LinkEntry(txn, parentID, name, newID, nowMs()); lerr != nil {
			return lerr
		}
		m, merr := e.sh.store.ReadMeta(txn, newID)
		if merr != nil {
			return merr
		}
		ino = newID
		meta = m
		return nil
	})
	if err != nil {
		return 0, pathErr("open", path, err)
	}

	fd, _, err := e.descs.open(ino, flags)
	if err != nil {
		return 0, pathErr("open", path, err)
	}
	e.sh.refs.incr(ino)
	if flags&OAPPEND != 0 {
		ofd, _ := e.descs.get(fd)
		ofd.mu.Lock()
		ofd.pos = int64(meta.Size)
		ofd.mu.Unlock()
	}
	return fd, nil
}

func accessMask(flags OpenFlag) uint8 {
	switch flags & accessModeMask {
	case OWRONLY:
		return perm.Write
	case ORDWR:
		return perm.Read | perm.Write
	default:
		return perm.Read
	}
}

// CloseFile releases fd, reclaiming its inode if it was the last
// reference to an already-unlinked inode.
func (e *EFS) CloseFile(fd int) error {
	ino, err := e.descs.close(fd)
	if err != nil {
		return pathErr("close", "", err)
	}
	e.dropIfOrphaned(ino)
	return nil
}

// Read reads from fd at its current position, advancing it by the
// number of bytes returned.
func (e *EFS) Read(fd int, buf []byte) (int, error) {
	return e.ReadAt(fd, buf, -1)
}

// ReadAt reads from fd. When pos >= 0 it reads at that absolute
// position without moving fd's own position; pos < 0 means "read at
// fd's current position and advance it."
func (e *EFS) ReadAt(fd int, buf []byte, pos int64) (int, error) {
	ofd, err := e.descs.get(fd)
	if err != nil {
		return 0, pathErr("read", "", err)
	}
	if ofd.flags&accessModeMask == OWRONLY {
		return 0, pathErr("read", "", errno.EBADF)
	}

	ofd.mu.Lock()
	defer ofd.mu.Unlock()
	readPos := pos
	if readPos < 0 {
		readPos = ofd.pos
	}

	var n int
	unlock := e.sh.locks.RLock(ofd.ino)
	defer unlock()
	err = e.sh.kv.View(func(txn kvstore.Txn) error {
		m, merr := e.sh.store.ReadMeta(txn, ofd.ino)
		if merr != nil {
			return merr
		}
		n, merr = e.sh.store.ReadRange(txn, ofd.ino, m, readPos, buf)
		return merr
	})
	if err != nil {
		return 0, pathErr("read", "", err)
	}
	if pos < 0 {
		ofd.pos = readPos + int64(n)
	}
	var retErr error
	if n == 0 && len(buf) > 0 {
		retErr = io.EOF
	}
	return n, retErr
}

// Write writes to fd at its current position (or, under OAPPEND, at
// the inode's current size), advancing fd's position by len(data).
func (e *EFS) Write(fd int, data []byte) (int, error) {
	return e.WriteAt(fd, data, -1)
}

// WriteAt mirrors ReadAt's position semantics for writes.
func (e *EFS) WriteAt(fd int, data []byte, pos int64) (int, error) {
	ofd, err := e.descs.get(fd)
	if err != nil {
		return 0, pathErr("write", "", err)
	}
	if ofd.flags&accessModeMask == ORDONLY {
		return 0, pathErr("write", "", errno.EBADF)
	}

	ofd.mu.Lock()
	defer ofd.mu.Unlock()

	unlock := e.sh.locks.Lock(ofd.ino)
	defer unlock()

	err = e.sh.kv.Batch(func(txn kvstore.Txn) error {
		m, merr := e.sh.store.ReadMeta(txn, ofd.ino)
		if merr != nil {
			return merr
		}
		writePos := pos
		if writePos < 0 {
			writePos = ofd.pos
			if ofd.flags&OAPPEND != 0 {
				writePos = int64(m.Size)
			}
		}
		if werr := e.sh.store.WriteRange(txn, ofd.ino, &m, writePos, data); werr != nil {
			return werr
		}
		m.Mtime = nowMs()
		m.Ctime = nowMs()
		if werr := e.sh.store.WriteMeta(txn, m); werr != nil {
			return werr
		}
		if pos < 0 {
			ofd.pos = writePos + int64(len(data))
		}
		return nil
	})
	if err != nil {
		return 0, pathErr("write", "", err)
	}
	return len(data), nil
}

// Lseek repositions fd and returns the new absolute position.
func (e *EFS) Lseek(fd int, offset int64, whence Whence) (int64, error) {
	ofd, err := e.descs.get(fd)
	if err != nil {
		return 0, pathErr("lseek", "", err)
	}
	ofd.mu.Lock()
	defer ofd.mu.Unlock()

	var size int64
	err = e.sh.kv.View(func(txn kvstore.Txn) error {
		m, merr := e.sh.store.ReadMeta(txn, ofd.ino)
		if merr != nil {
			return merr
		}
		size = int64(m.Size)
		return nil
	})
	if err != nil {
		return 0, pathErr("lseek", "", err)
	}

	var newPos int64
	switch whence {
	case SeekSet:
		newPos = offset
	case SeekCur:
		newPos = ofd.pos + offset
	case SeekEnd:
		newPos = size + offset
	default:
		return 0, pathErr("lseek", "", errno.EINVAL)
	}
	if newPos < 0 {
		return 0, pathErr("lseek", "", errno.EINVAL)
	}
	ofd.pos = newPos
	return newPos, nil
}

// Ftruncate resizes the inode fd refers to.
func (e *EFS) Ftruncate(fd int, size uint64) error {
	ofd, err := e.descs.get(fd)
	if err != nil {
		return pathErr("ftruncate", "", err)
	}
	if ofd.flags&accessModeMask == ORDONLY {
		return pathErr("ftruncate", "", errno.EBADF)
	}
	return e.truncateInode(ofd.ino, size)
}

// Truncate resizes path (must be a regular file).
func (e *EFS) Truncate(path string, size uint64) error {
	var ino inodes.ID
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, rerr := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: true}, e.Caller())
		if rerr != nil {
			return rerr
		}
		if res.Meta.Type != inodes.Regular {
			return errno.EINVAL
		}
		if perr := perm.Check(e.Caller(), res.Meta.UID, res.Meta.GID, res.Meta.Mode, perm.Write); perr != nil {
			return perr
		}
		ino = res.Stack[len(res.Stack)-1]
		return nil
	})
	if err != nil {
		return pathErr("truncate", path, err)
	}
	if err := e.truncateInode(ino, size); err != nil {
		return pathErr("truncate", path, err)
	}
	return nil
}

func (e *EFS) truncateInode(ino inodes.ID, size uint64) error {
	unlock := e.sh.locks.Lock(ino)
	defer unlock()
	return e.sh.kv.Batch(func(txn kvstore.Txn) error {
		m, err := e.sh.store.ReadMeta(txn, ino)
		if err != nil {
			return err
		}
		if err := e.sh.store.Truncate(txn, ino, &m, size); err != nil {
			return err
		}
		m.Mtime = nowMs()
		m.Ctime = nowMs()
		return e.sh.store.WriteMeta(txn, m)
	})
}

// Fallocate extends fd's inode to offset+length without materializing
// new block records (spec.md §4.4).
func (e *EFS) Fallocate(fd int, offset, length uint64) error {
	ofd, err := e.descs.get(fd)
	if err != nil {
		return pathErr("fallocate", "", err)
	}
	if ofd.flags&accessModeMask == ORDONLY {
		return pathErr("fallocate", "", errno.EBADF)
	}
	unlock := e.sh.locks.Lock(ofd.ino)
	defer unlock()
	err = e.sh.kv.Batch(func(txn kvstore.Txn) error {
		m, merr := e.sh.store.ReadMeta(txn, ofd.ino)
		if merr != nil {
			return merr
		}
		e.sh.store.Fallocate(&m, offset, length)
		m.Ctime = nowMs()
		return e.sh.store.WriteMeta(txn, m)
	})
	if err != nil {
		return pathErr("fallocate", "", err)
	}
	return nil
}

// Fsync and Fdatasync are no-ops beyond what the underlying batch
// commit already guarantees: every mutating operation in this module
// is durable as soon as its batch returns, since the bbolt engine
// commits synchronously. They exist so callers written against a
// POSIX-shaped API compile unchanged.
func (e *EFS) Fsync(fd int) error {
	if _, err := e.descs.get(fd); err != nil {
		return pathErr("fsync", "", err)
	}
	return nil
}

func (e *EFS) Fdatasync(fd int) error { return e.Fsync(fd) }

// ReadFile opens path read-only, reads it in full, and closes it.
func (e *EFS) ReadFile(path string) ([]byte, error) {
	fd, err := e.OpenFile(path, ORDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer e.CloseFile(fd)

	st, err := e.Fstat(fd)
	if err != nil {
		return nil, pathErr("readFile", path, err)
	}
	buf := make([]byte, st.Size)
	n, err := e.Read(fd, buf)
	if err != nil && err != io.EOF {
		return nil, pathErr("readFile", path, err)
	}
	return buf[:n], nil
}

// WriteFile creates or truncates path and writes data to it in full.
func (e *EFS) WriteFile(path string, data []byte, mode uint32) error {
	fd, err := e.OpenFile(path, OWRONLY|OCREAT|OTRUNC, mode)
	if err != nil {
		return err
	}
	defer e.CloseFile(fd)
	if _, err := e.Write(fd, data); err != nil {
		return pathErr("writeFile", path, err)
	}
	return nil
}

// AppendFile opens path for append (creating it if missing) and
// writes data at its current end.
func (e *EFS) AppendFile(path string, data []byte, mode uint32) error {
	fd, err := e.OpenFile(path, OWRONLY|OCREAT|OAPPEND, mode)
	if err != nil {
		return err
	}
	defer e.CloseFile(fd)
	if _, err := e.Write(fd, data); err != nil {
		return pathErr("appendFile", path, err)
	}
	return nil
}

// Chmod sets path's permission bits. The caller must own the inode or
// be root.
func (e *EFS) Chmod(path string, mode uint32) error {
	var ino inodes.ID
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, rerr := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: true}, e.Caller())
		if rerr != nil {
			return rerr
		}
		if cerr := perm.CanChmod(e.Caller(), res.Meta.UID); cerr != nil {
			return cerr
		}
		ino = res.Stack[len(res.Stack)-1]
		return nil
	})
	if err != nil {
		return pathErr("chmod", path, err)
	}
	return pathErr("chmod", path, e.chmodInode(ino, mode))
}

// Fchmod is Chmod on an open descriptor's inode.
func (e *EFS) Fchmod(fd int, mode uint32) error {
	ofd, err := e.descs.get(fd)
	if err != nil {
		return pathErr("fchmod", "", err)
	}
	var owner uint32
	err = e.sh.kv.View(func(txn kvstore.Txn) error {
		m, merr := e.sh.store.ReadMeta(txn, ofd.ino)
		if merr != nil {
			return merr
		}
		owner = m.UID
		return nil
	})
	if err != nil {
		return pathErr("fchmod", "", err)
	}
	if err := perm.CanChmod(e.Caller(), owner); err != nil {
		return pathErr("fchmod", "", err)
	}
	return pathErr("fchmod", "", e.chmodInode(ofd.ino, mode))
}

// Lchmod is Chmod without following a trailing symlink.
func (e *EFS) Lchmod(path string, mode uint32) error {
	var ino inodes.ID
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, rerr := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: false}, e.Caller())
		if rerr != nil {
			return rerr
		}
		if cerr := perm.CanChmod(e.Caller(), res.Meta.UID); cerr != nil {
			return cerr
		}
		ino = res.Stack[len(res.Stack)-1]
		return nil
	})
	if err != nil {
		return pathErr("lchmod", path, err)
	}
	return pathErr("lchmod", path, e.chmodInode(ino, mode))
}

func (e *EFS) chmodInode(ino inodes.ID, mode uint32) error {
	unlock := e.sh.locks.Lock(ino)
	defer unlock()
	return e.sh.kv.Batch(func(txn kvstore.Txn) error {
		m, err := e.sh.store.ReadMeta(txn, ino)
		if err != nil {
			return err
		}
		m.Mode = mode & perm.ModeBits
		m.Ctime = nowMs()
		return e.sh.store.WriteMeta(txn, m)
	})
}

// chownInode applies uid/gid/ctime under the inode's lock, reading the
// resolved inode's current owner for CanChown's authorization.
func (e *EFS) chownInode(ino inodes.ID, newUID, newGID *uint32) error {
	unlock := e.sh.locks.Lock(ino)
	defer unlock()
	return e.sh.kv.Batch(func(txn kvstore.Txn) error {
		m, err := e.sh.store.ReadMeta(txn, ino)
		if err != nil {
			return err
		}
		if err := perm.CanChown(e.Caller(), m.UID, newUID, newGID); err != nil {
			return err
		}
		if newUID != nil {
			m.UID = *newUID
		}
		if newGID != nil {
			m.GID = *newGID
		}
		m.Ctime = nowMs()
		return e.sh.store.WriteMeta(txn, m)
	})
}

// Chown changes path's owner/group; either may be left nil to leave
// that field unchanged.
func (e *EFS) Chown(path string, uid, gid *uint32) error {
	ino, err := e.resolveIDFollow(path, true)
	if err != nil {
		return pathErr("chown", path, err)
	}
	return pathErr("chown", path, e.chownInode(ino, uid, gid))
}

// Lchown is Chown without following a trailing symlink.
func (e *EFS) Lchown(path string, uid, gid *uint32) error {
	ino, err := e.resolveIDFollow(path, false)
	if err != nil {
		return pathErr("lchown", path, err)
	}
	return pathErr("lchown", path, e.chownInode(ino, uid, gid))
}

// Fchown is Chown on an open descriptor's inode.
func (e *EFS) Fchown(fd int, uid, gid *uint32) error {
	ofd, err := e.descs.get(fd)
	if err != nil {
		return pathErr("fchown", "", err)
	}
	return pathErr("fchown", "", e.chownInode(ofd.ino, uid, gid))
}

// Chownr recursively applies Chown to path and, if it is a directory,
// every entry beneath it.
func (e *EFS) Chownr(path string, uid, gid *uint32) error {
	ino, err := e.resolveIDFollow(path, true)
	if err != nil {
		return pathErr("chownr", path, err)
	}
	if err := e.chownRecursive(ino, uid, gid); err != nil {
		return pathErr("chownr", path, err)
	}
	return nil
}

func (e *EFS) chownRecursive(ino inodes.ID, uid, gid *uint32) error {
	if err := e.chownInode(ino, uid, gid); err != nil {
		return err
	}
	var entries []inodes.Entry
	var isDir bool
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		m, merr := e.sh.store.ReadMeta(txn, ino)
		if merr != nil {
			return merr
		}
		isDir = m.Type == inodes.Directory
		if !isDir {
			return nil
		}
		entries, merr = e.sh.store.IterEntries(txn, ino)
		return merr
	})
	if err != nil || !isDir {
		return err
	}
	for _, ent := range entries {
		if err := e.chownRecursive(ent.Child, uid, gid); err != nil {
			return err
		}
	}
	return nil
}

func (e *EFS) resolveIDFollow(path string, follow bool) (inodes.ID, error) {
	var ino inodes.ID
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, rerr := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: follow}, e.Caller())
		if rerr != nil {
			return rerr
		}
		ino = res.Stack[len(res.Stack)-1]
		return nil
	})
	return ino, err
}

// Utimes sets path's access and modification times (and bumps ctime).
// The caller must own the inode or be root, regardless of write
// permission on the file's data (spec.md §4.8).
func (e *EFS) Utimes(path string, atimeMs, mtimeMs int64) error {
	ino, err := e.resolveIDFollow(path, true)
	if err != nil {
		return pathErr("utimes", path, err)
	}
	return pathErr("utimes", path, e.utimesInode(ino, atimeMs, mtimeMs))
}

// Futimes is Utimes on an open descriptor's inode.
func (e *EFS) Futimes(fd int, atimeMs, mtimeMs int64) error {
	ofd, err := e.descs.get(fd)
	if err != nil {
		return pathErr("futimes", "", err)
	}
	return pathErr("futimes", "", e.utimesInode(ofd.ino, atimeMs, mtimeMs))
}

func (e *EFS) utimesInode(ino inodes.ID, atimeMs, mtimeMs int64) error {
	unlock := e.sh.locks.Lock(ino)
	defer unlock()
	return e.sh.kv.Batch(func(txn kvstore.Txn) error {
		m, err := e.sh.store.ReadMeta(txn, ino)
		if err != nil {
			return err
		}
		if cerr := perm.CanChmod(e.Caller(), m.UID); cerr != nil {
			return cerr
		}
		m.Atime = atimeMs
		m.Mtime = mtimeMs
		m.Ctime = nowMs()
		return e.sh.store.WriteMeta(txn, m)
	})
}

// Chdir changes the view's current directory to path, which must be a
// directory the caller can search.
func (e *EFS) Chdir(path string) error {
	var stack []inodes.ID
	err := e.sh.kv.View(func(txn kvstore.Txn) error {
		res, rerr := e.sh.resolver.Resolve(txn, e.cwdSnapshot(), e.rootID, path, resolve.Flags{FollowFinalSymlink: true, MustBeDirectory: true}, e.Caller())
		if rerr != nil {
			return rerr
		}
		if perr := perm.Check(e.Caller(), res.Meta.UID, res.Meta.GID, res.Meta.Mode, perm.Execute); perr != nil {
			return perr
		}
		stack = res.Stack
		return nil
	})
	if err != nil {
		return pathErr("chdir", path, err)
	}
	e.mu.Lock()
	e.cwdStack = stack
	e.mu.Unlock()
	return nil
}

// Cwd returns the inode id of the view's current directory.
func (e *EFS) Cwd() inodes.ID {
	stack := e.cwdSnapshot()
	return stack[len(stack)-1]
}

// Mknod creates a zero-length regular inode at path — the degenerate
// form spec.md's non-goals sanction in place of real device nodes.
func (e *EFS) Mknod(path string, mode uint32) error {
	fd, err := e.OpenFile(path, OWRONLY|OCREAT|OEXCL, mode)
	if err != nil {
		return pathErr("mknod", path, err)
	}
	return e.CloseFile(fd)
}

// CopyFile copies src's bytes to dst, creating or truncating dst.
func (e *EFS) CopyFile(src, dst string, mode uint32) error {
	data, err := e.ReadFile(src)
	if err != nil {
		return err
	}
	return e.WriteFile(dst, data, mode)
}

// Mkdtemp creates a new directory whose path is prefix followed by "-"
// and a random 8-character suffix, and returns that full path.
func (e *EFS) Mkdtemp(prefix string) (string, error) {
	for attempts := 0; attempts < 8; attempts++ {
		suffix := uuid.NewString()[:8]
		full := strings.TrimSuffix(prefix, "/") + "-" + suffix
		if err := e.Mkdir(full, 0o700); err == nil {
			return full, nil
		} else if !isErrno(err, errno.EEXIST) {
			return "", err
		}
	}
	return "", pathErr("mkdtemp", prefix, errno.EEXIST)
}

func isErrno(err error, target errno.Errno) bool {
	pe, ok := err.(*PathError)
	if !ok {
		return false
	}
	e, ok := pe.Err.(errno.Errno)
	return ok && e == target
}
