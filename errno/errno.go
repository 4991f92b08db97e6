// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errno defines the POSIX-style error taxonomy that every
// operation in the efs module reports through. Values round-trip
// through the standard syscall.Errno where a direct equivalent
// exists, so callers already comfortable with os.IsNotExist-style
// checks can keep using errors.Is against the exported constants.
package errno

import (
	"fmt"
	"syscall"
)

// Errno is a POSIX-style error kind. The zero value is not a valid
// error; successful operations return a nil error, never Errno(0).
type Errno syscall.Errno

// Lookup / structure errors.
const (
	ENOENT    = Errno(syscall.ENOENT)
	ENOTDIR   = Errno(syscall.ENOTDIR)
	EISDIR    = Errno(syscall.EISDIR)
	EEXIST    = Errno(syscall.EEXIST)
	ENOTEMPTY = Errno(syscall.ENOTEMPTY)
	EINVAL    = Errno(syscall.EINVAL)
	ELOOP     = Errno(syscall.ELOOP)
	EBUSY     = Errno(syscall.EBUSY)
)

// Permission / ownership errors.
const (
	EACCES = Errno(syscall.EACCES)
	EPERM  = Errno(syscall.EPERM)
)

// Resource errors.
const (
	EBADF  = Errno(syscall.EBADF)
	EMFILE = Errno(syscall.EMFILE)
	ENOSPC = Errno(syscall.ENOSPC)
	EIO    = Errno(syscall.EIO)
)

// Integrity errors have no direct POSIX equivalent; they are encoded
// on a range of the errno space that syscall.Errno never assigns on
// any of the GOOS values this module targets.
const (
	KeyMismatch = Errno(0x7a00 + iota)
	Corruption
)

var names = map[Errno]string{
	ENOENT: "ENOENT", ENOTDIR: "ENOTDIR", EISDIR: "EISDIR", EEXIST: "EEXIST",
	ENOTEMPTY: "ENOTEMPTY", EINVAL: "EINVAL", ELOOP: "ELOOP", EBUSY: "EBUSY",
	EACCES: "EACCES", EPERM: "EPERM",
	EBADF: "EBADF", EMFILE: "EMFILE", ENOSPC: "ENOSPC", EIO: "EIO",
	KeyMismatch: "KeyMismatch", Corruption: "Corruption",
}

// Error implements the error interface. Integrity errors fall back to
// their symbolic name since they have no underlying syscall.Errno text.
func (e Errno) Error() string {
	if name, ok := names[e]; ok {
		if e < KeyMismatch {
			return syscall.Errno(e).Error()
		}
		return name
	}
	return fmt.Sprintf("errno %d", int(e))
}

// Is lets errors.Is(err, errno.ENOENT) work against a wrapped PathError
// or a bare Errno.
func (e Errno) Is(target error) bool {
	t, ok := target.(Errno)
	return ok && t == e
}
