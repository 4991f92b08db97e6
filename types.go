// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package efs implements an encrypted virtual filesystem: a
// POSIX-flavored directory hierarchy persisted inside an encrypted,
// ordered, transactional key-value store, exposed through a
// filesystem-call-shaped API plus read/write byte streams and bounded
// chroot sub-views.
package efs

import (
	"fmt"
	"time"

	"github.com/efs-go/efs/internal/inodes"
)

// FileType mirrors internal/inodes.Type for the public surface, kept
// distinct so callers never need to import an internal package to
// read a Stat result.
type FileType uint8

const (
	TypeRegular FileType = iota + 1
	TypeDirectory
	TypeSymlink
)

func fromInodeType(t inodes.Type) FileType {
	switch t {
	case inodes.Directory:
		return TypeDirectory
	case inodes.Symlink:
		return TypeSymlink
	default:
		return TypeRegular
	}
}

// Stat is the public metadata record returned by Stat/Lstat/Fstat,
// analogous to a POSIX struct stat.
type Stat struct {
	Ino       inodes.ID
	Type      FileType
	Mode      uint32
	UID       uint32
	GID       uint32
	Size      uint64
	Blocks    uint64
	Nlink     uint32
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Birthtime time.Time
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func statFromMeta(m inodes.Meta) Stat {
	return Stat{
		Ino:       m.ID,
		Type:      fromInodeType(m.Type),
		Mode:      m.Mode,
		UID:       m.UID,
		GID:       m.GID,
		Size:      m.Size,
		Blocks:    m.Blocks,
		Nlink:     m.Nlink,
		Atime:     msToTime(m.Atime),
		Mtime:     msToTime(m.Mtime),
		Ctime:     msToTime(m.Ctime),
		Birthtime: msToTime(m.Birthtime),
	}
}

// DirEntry is one entry returned by Readdir.
type DirEntry struct {
	Name string
	Ino  inodes.ID
	Type FileType
}

// PathError is the error type returned by every operation that takes
// a path: it names the failing operation, the path involved, and the
// underlying errno.Errno.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("efs: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

func pathErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Err: err}
}

// Options configures Format/Open.
type Options struct {
	// UID/GID own the root directory created by Format. Open changes
	// no ownership with them; they only serve as the EUID/EGID
	// fallback below.
	UID uint32
	GID uint32
	// EUID/EGID set this view's effective caller identity. They
	// default to UID/GID when left zero, so a single Options value
	// can own the root and act as its own caller in the common case.
	EUID uint32
	EGID uint32
	// RootMode is the root directory's permission bits (type bits are
	// set automatically); ignored by Open.
	RootMode uint32
	// Umask is applied to every newly-created inode's requested mode.
	Umask uint32
	// MaxDescriptors bounds the number of simultaneously open file
	// descriptions per view; 0 means unbounded. Exceeding it returns
	// errno.EMFILE.
	MaxDescriptors int
	// MaxConcurrentOps bounds the number of Mkdir, Rmdir and Rename
	// calls that may be in flight at once across the whole EFS
	// instance (shared by every chroot sub-view); other operations do
	// not count against it. 0 means unbounded.
	MaxConcurrentOps int64
}

func (o Options) withDefaults() Options {
	if o.RootMode == 0 {
		o.RootMode = 0o755
	}
	return o
}
