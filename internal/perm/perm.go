// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package perm implements C6, the POSIX owner/group/other permission
// model consumed by every mutating filesystem operation.
package perm

import "github.com/efs-go/efs/errno"

// Access bit masks for Check, one per POSIX R_OK/W_OK/X_OK test. Their
// numeric values are internal and differ from the POSIX constants.
const (
	Read uint8 = 1 << iota
	Write
	Execute
)

// Mode bit layout within the low 12 bits of an inode's Mode field.
const (
	Setuid = 0o4000
	Setgid = 0o2000
	Sticky = 0o1000

	ModeBits = 0o7777
)

// Caller describes the identity an operation runs as.
type Caller struct {
	UID uint32
	GID uint32
}

// IsRoot reports whether the caller is the superuser.
func (c Caller) IsRoot() bool { return c.UID == 0 }

// Check evaluates whether caller may access an inode owned by
// (ownerUID, ownerGID) with permission bits mode, for the given mask
// of Read/Write/Execute. It selects exactly one of the owner/group/
// other triads — in that order, the first match wins even if a later,
// more permissive triad would have allowed the access — per spec.md
// §4.6 and testable property 8.
//
// Root bypasses read and write checks. Check does not distinguish
// directory search from execution: any mask that includes Execute,
// including the resolver's search check on a directory, is denied for
// root when no execute bit is set anywhere in mode.
func Check(caller Caller, ownerUID, ownerGID, mode uint32, mask uint8) error {
	if caller.IsRoot() {
		if mask&Execute != 0 && mode&0o111 == 0 {
			return errno.EACCES
		}
		return nil
	}

	var triad uint32
	switch {
	case caller.UID == ownerUID:
		triad = (mode >> 6) & 0o7
	case caller.GID == ownerGID:
		triad = (mode >> 3) & 0o7
	default:
		triad = mode & 0o7
	}

	var need uint32
	if mask&Read != 0 {
		need |= 0o4
	}
	if mask&Write != 0 {
		need |= 0o2
	}
	if mask&Execute != 0 {
		need |= 0o1
	}

	if triad&need != need {
		return errno.EACCES
	}
	return nil
}

// CanChmod reports whether caller may chmod an inode owned by
// ownerUID: owner or root only.
func CanChmod(caller Caller, ownerUID uint32) error {
	if caller.IsRoot() || caller.UID == ownerUID {
		return nil
	}
	return errno.EPERM
}

// CanChown validates a chown(uid, gid) request, per spec.md §4.6's
// simplified group-membership model ("gid equals current gid"):
// non-root callers may not change uid to anything but their own, and
// may not change gid to a group they are not in. A value of -1 (the
// conventional "leave unchanged" sentinel, represented here as a nil
// pointer)
// means that field is not being changed.
func CanChown(caller Caller, ownerUID uint32, newUID *uint32, newGID *uint32) error {
	if caller.IsRoot() {
		return nil
	}
	if newUID != nil && *newUID != caller.UID {
		return errno.EPERM
	}
	if newGID != nil && *newGID != caller.GID {
		return errno.EPERM
	}
	if caller.UID != ownerUID {
		return errno.EPERM
	}
	return nil
}

// ApplyUmask masks off bits from a newly-created mode.
func ApplyUmask(mode, umask uint32) uint32 {
	return mode &^ umask
}
