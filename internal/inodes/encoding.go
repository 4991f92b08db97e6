// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package inodes

import (
	"encoding/binary"
	"fmt"
)

// metaFixedLen is the byte length of Meta's fixed fields, ahead of
// the variable-length Target string.
const metaFixedLen = 8 + 1 + 4 + 4 + 4 + 8 + 8 + 4 + 8 + 8 + 8 + 8 + 2

// encodeMeta produces a fixed-layout encoding/binary record: auditable
// and cheap to decode, unlike a reflection-based codec sitting
// between callers and the AEAD boundary.
func encodeMeta(m Meta) []byte {
	buf := make([]byte, metaFixedLen+len(m.Target))
	off := 0
	putU64 := func(v uint64) { binary.BigEndian.PutUint64(buf[off:], v); off += 8 }
	putU32 := func(v uint32) { binary.BigEndian.PutUint32(buf[off:], v); off += 4 }
	putI64 := func(v int64) { binary.BigEndian.PutUint64(buf[off:], uint64(v)); off += 8 }

	putU64(uint64(m.ID))
	buf[off] = byte(m.Type)
	off++
	putU32(m.Mode)
	putU32(m.UID)
	putU32(m.GID)
	putU64(m.Size)
	putU64(m.Blocks)
	putU32(m.Nlink)
	putI64(m.Atime)
	putI64(m.Mtime)
	putI64(m.Ctime)
	putI64(m.Birthtime)
	binary.BigEndian.PutUint16(buf[off:], uint16(len(m.Target)))
	off += 2
	copy(buf[off:], m.Target)
	return buf
}

func decodeMeta(buf []byte) (Meta, error) {
	if len(buf) < metaFixedLen {
		return Meta{}, fmt.Errorf("efs/inodes: truncated meta record (%d bytes)", len(buf))
	}
	var m Meta
	off := 0
	getU64 := func() uint64 { v := binary.BigEndian.Uint64(buf[off:]); off += 8; return v }
	getU32 := func() uint32 { v := binary.BigEndian.Uint32(buf[off:]); off += 4; return v }
	getI64 := func() int64 { v := int64(binary.BigEndian.Uint64(buf[off:])); off += 8; return v }

	m.ID = ID(getU64())
	m.Type = Type(buf[off])
	off++
	m.Mode = getU32()
	m.UID = getU32()
	m.GID = getU32()
	m.Size = getU64()
	m.Blocks = getU64()
	m.Nlink = getU32()
	m.Atime = getI64()
	m.Mtime = getI64()
	m.Ctime = getI64()
	m.Birthtime = getI64()
	nameLen := int(binary.BigEndian.Uint16(buf[off:]))
	off += 2
	if off+nameLen > len(buf) {
		return Meta{}, fmt.Errorf("efs/inodes: truncated meta record target")
	}
	m.Target = string(buf[off : off+nameLen])
	return m, nil
}

func encodeID(id ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func decodeID(buf []byte) ID {
	return ID(binary.BigEndian.Uint64(buf))
}

func encodeBlockIndex(idx uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, idx)
	return buf
}

func decodeBlockIndex(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}
