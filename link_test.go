// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package efs

import (
	"testing"

	"github.com/efs-go/efs/errno"
)

func TestLinkCreatesSecondNameForSameInode(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.WriteFile("/a.txt", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := e.Link("/a.txt", "/b.txt"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	sa, err := e.Stat("/a.txt")
	if err != nil {
		t.Fatalf("Stat /a.txt: %v", err)
	}
	sb, err := e.Stat("/b.txt")
	if err != nil {
		t.Fatalf("Stat /b.txt: %v", err)
	}
	if sa.Ino != sb.Ino {
		t.Fatalf("Ino mismatch: %d vs %d", sa.Ino, sb.Ino)
	}
	if sa.Nlink != 2 || sb.Nlink != 2 {
		t.Fatalf("Nlink = %d/%d, want 2/2", sa.Nlink, sb.Nlink)
	}
}

func TestLinkOnDirectoryFailsWithEPERM(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.Mkdir("/a", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := e.Link("/a", "/b"); !isErrno(err, errno.EPERM) {
		t.Fatalf("Link on directory = %v, want EPERM", err)
	}
}

func TestUnlinkRemovesNameInodeSurvivesWhileOpen(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.WriteFile("/a.txt", []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fd, err := e.OpenFile("/a.txt", ORDONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := e.Unlink("/a.txt"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if e.Exists("/a.txt") {
		t.Fatalf("/a.txt still exists after unlink")
	}
	buf := make([]byte, 5)
	n, err := e.ReadAt(fd, buf, 0)
	if err != nil || n != 5 {
		t.Fatalf("read from unlinked-but-open fd = (%d, %v), want (5, nil)", n, err)
	}
	if err := e.CloseFile(fd); err != nil {
		t.Fatalf("CloseFile: %v", err)
	}
}

func TestSymlinkReadlinkRoundTrips(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.WriteFile("/target.txt", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := e.Symlink("/target.txt", "/link.txt"); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	target, err := e.Readlink("/link.txt")
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "/target.txt" {
		t.Fatalf("Readlink = %q, want %q", target, "/target.txt")
	}
	data, err := e.ReadFile("/link.txt")
	if err != nil {
		t.Fatalf("ReadFile through symlink: %v", err)
	}
	if string(data) != "x" {
		t.Fatalf("ReadFile through symlink = %q, want %q", data, "x")
	}
}

func TestRenameIntoOwnSubtreeFailsWithEINVAL(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.Mkdir("/a", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := e.Rename("/a", "/a/b"); !isErrno(err, errno.EINVAL) {
		t.Fatalf("Rename(/a, /a/b) = %v, want EINVAL", err)
	}
}

func TestRenameReplacesExistingDestination(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.WriteFile("/a.txt", []byte("aaa"), 0o644); err != nil {
		t.Fatalf("WriteFile a: %v", err)
	}
	if err := e.WriteFile("/b.txt", []byte("bbb"), 0o644); err != nil {
		t.Fatalf("WriteFile b: %v", err)
	}
	if err := e.Rename("/a.txt", "/b.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if e.Exists("/a.txt") {
		t.Fatalf("/a.txt still exists after rename")
	}
	got, err := e.ReadFile("/b.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "aaa" {
		t.Fatalf("ReadFile /b.txt = %q, want %q", got, "aaa")
	}
}

func TestRenamePreservesLinkCountOfMovedInode(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.WriteFile("/a.txt", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := e.WriteFile("/existing.txt", []byte("y"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := e.Rename("/a.txt", "/existing.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	st, err := e.Stat("/existing.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Nlink != 1 {
		t.Fatalf("Nlink after replace-rename = %d, want 1", st.Nlink)
	}
}

func TestRenameDirectoryOntoFileFailsWithENOTDIR(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.Mkdir("/a", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := e.WriteFile("/b.txt", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := e.Rename("/a", "/b.txt"); !isErrno(err, errno.ENOTDIR) {
		t.Fatalf("Rename(dir onto file) = %v, want ENOTDIR", err)
	}
}

func TestRealpathResolvesSymlinks(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.Mkdir("/a", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := e.WriteFile("/a/f.txt", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := e.Symlink("/a", "/link"); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	rp, err := e.Realpath("/link/f.txt")
	if err != nil {
		t.Fatalf("Realpath: %v", err)
	}
	if rp != "/a/f.txt" {
		t.Fatalf("Realpath = %q, want %q", rp, "/a/f.txt")
	}
}
