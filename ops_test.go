// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package efs

import (
	"bytes"
	"io"
	"testing"

	"github.com/efs-go/efs/errno"
)

func TestWriteFileThenReadFileRoundTrips(t *testing.T) {
	e := mustFormat(t, Options{})
	data := []byte("hello, encrypted world")
	if err := e.WriteFile("/a.txt", data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := e.ReadFile("/a.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("ReadFile = %q, want %q", got, data)
	}
}

func TestAppendFileExtendsExistingContent(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.WriteFile("/a.txt", []byte("abc"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := e.AppendFile("/a.txt", []byte("def"), 0o644); err != nil {
		t.Fatalf("AppendFile: %v", err)
	}
	got, err := e.ReadFile("/a.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "abcdef" {
		t.Fatalf("ReadFile = %q, want %q", got, "abcdef")
	}
}

func TestOpenExclOnExistingFileFails(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.WriteFile("/a.txt", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := e.OpenFile("/a.txt", OWRONLY|OCREAT|OEXCL, 0o644)
	if !isErrno(err, errno.EEXIST) {
		t.Fatalf("err = %v, want EEXIST", err)
	}
}

func TestReadAtPastEOFReturnsEOF(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.WriteFile("/a.txt", []byte("abc"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fd, err := e.OpenFile("/a.txt", ORDONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer e.CloseFile(fd)

	buf := make([]byte, 8)
	n, err := e.ReadAt(fd, buf, 10)
	if n != 0 || err != io.EOF {
		t.Fatalf("ReadAt = (%d, %v), want (0, io.EOF)", n, err)
	}
}

func TestLseekAndWriteAtCurrentPosition(t *testing.T) {
	e := mustFormat(t, Options{})
	fd, err := e.OpenFile("/a.txt", OWRONLY|OCREAT, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := e.Write(fd, []byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := e.Lseek(fd, 3, SeekSet); err != nil {
		t.Fatalf("Lseek: %v", err)
	}
	if _, err := e.Write(fd, []byte("XYZ")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	e.CloseFile(fd)

	got, err := e.ReadFile("/a.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "012XYZ6789" {
		t.Fatalf("ReadFile = %q, want %q", got, "012XYZ6789")
	}
}

func TestTruncateShrinksAndZeroFillsOnGrow(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.WriteFile("/a.txt", []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := e.Truncate("/a.txt", 4); err != nil {
		t.Fatalf("Truncate shrink: %v", err)
	}
	got, err := e.ReadFile("/a.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "0123" {
		t.Fatalf("ReadFile = %q, want %q", got, "0123")
	}

	if err := e.Truncate("/a.txt", 8); err != nil {
		t.Fatalf("Truncate grow: %v", err)
	}
	got, err = e.ReadFile("/a.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := []byte("0123\x00\x00\x00\x00")
	if !bytes.Equal(got, want) {
		t.Fatalf("ReadFile = %q, want %q", got, want)
	}
}

func TestChmodRequiresOwnershipOrRoot(t *testing.T) {
	e := mustFormat(t, Options{UID: 0, GID: 0})
	if err := e.WriteFile("/a.txt", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	e.Seteuid(1000)
	e.Setegid(1000)
	if err := e.Chmod("/a.txt", 0o600); !isErrno(err, errno.EPERM) {
		t.Fatalf("Chmod as non-owner = %v, want EPERM", err)
	}
}

func TestAccessReflectsPermissionBits(t *testing.T) {
	e := mustFormat(t, Options{UID: 0, GID: 0})
	if err := e.WriteFile("/a.txt", []byte("x"), 0o400); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	e.Seteuid(0)
	if err := e.Access("/a.txt", ROK); err != nil {
		t.Fatalf("Access ROK as root: %v", err)
	}
	e.Seteuid(1000)
	e.Setegid(1000)
	if err := e.Access("/a.txt", WOK); err == nil {
		t.Fatalf("Access WOK as non-owner on 0400: want error, got nil")
	}
}

func TestExistsDistinguishesPresenceFromAbsence(t *testing.T) {
	e := mustFormat(t, Options{})
	if e.Exists("/nope") {
		t.Fatalf("Exists(/nope) = true, want false")
	}
	if err := e.WriteFile("/a.txt", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !e.Exists("/a.txt") {
		t.Fatalf("Exists(/a.txt) = false, want true")
	}
}

func TestMkdtempCreatesUniqueDirectories(t *testing.T) {
	e := mustFormat(t, Options{})
	p1, err := e.Mkdtemp("/tmp")
	if err != nil {
		t.Fatalf("Mkdtemp: %v", err)
	}
	p2, err := e.Mkdtemp("/tmp")
	if err != nil {
		t.Fatalf("Mkdtemp: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("Mkdtemp returned the same path twice: %q", p1)
	}
	if !e.Exists(p1) || !e.Exists(p2) {
		t.Fatalf("Mkdtemp paths not present: %q %q", p1, p2)
	}
}
