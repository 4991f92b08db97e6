// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package efs

// OpenFlag selects open() behavior. Values are bit-or-able, mirroring
// the POSIX O_* constants named in spec.md §6.1; the numeric values
// themselves carry no meaning beyond distinctness within this module
// (they are never compared against a host OS's own O_* values).
type OpenFlag uint32

// The access-mode component occupies the low two bits and is not
// itself a bit-flag: exactly one of ORDONLY/OWRONLY/ORDWR applies to
// any given flag set, tested via accessMode, below.
const (
	ORDONLY OpenFlag = 0
	OWRONLY OpenFlag = 1
	ORDWR   OpenFlag = 2
)

const (
	OCREAT OpenFlag = 1 << (iota + 2)
	OEXCL
	OTRUNC
	OAPPEND
	ODIRECTORY
	ONOFOLLOW
	OSYNC
)

const accessModeMask = 0x3

// accessMode extracts the ORDONLY/OWRONLY/ORDWR component of flags.
func accessMode(flags OpenFlag) OpenFlag { return flags & accessModeMask }

// AccessBit selects which of read/write/execute access() tests for.
type AccessBit uint8

const (
	FOK AccessBit = 0
	ROK AccessBit = 1 << iota
	WOK
	XOK
)

// Whence selects the reference point for Lseek.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// ModeBit holds the standard 12-bit POSIX permission/type bits, plus
// the three file-type bits spec.md §6.1 asks for alongside them.
const (
	ModePerm   = 0o7777
	ModeSetuid = 0o4000
	ModeSetgid = 0o2000
	ModeSticky = 0o1000

	SIFREG = 0o100000
	SIFDIR = 0o040000
	SIFLNK = 0o120000
)
