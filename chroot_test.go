// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package efs

import (
	"testing"

	"github.com/efs-go/efs/errno"
)

func TestChrootConfinesResolutionToSubtree(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.Mkdir("/d", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := e.WriteFile("/outside.txt", []byte("secret"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := e.WriteFile("/d/inside.txt", []byte("visible"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sub, err := e.Chroot("/d")
	if err != nil {
		t.Fatalf("Chroot: %v", err)
	}
	defer sub.Close()

	if _, err := sub.ReadFile("/../../outside.txt"); !isErrno(err, errno.ENOENT) {
		t.Fatalf("escaping read = %v, want ENOENT", err)
	}
	got, err := sub.ReadFile("/inside.txt")
	if err != nil {
		t.Fatalf("ReadFile inside chroot: %v", err)
	}
	if string(got) != "visible" {
		t.Fatalf("ReadFile = %q, want %q", got, "visible")
	}
}

func TestChrootSubViewHasIndependentCwdAndDescriptors(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.Mkdir("/d", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := e.WriteFile("/d/f.txt", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sub, err := e.Chroot("/d")
	if err != nil {
		t.Fatalf("Chroot: %v", err)
	}
	defer sub.Close()

	fd, err := sub.OpenFile("/f.txt", ORDONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile in sub-view: %v", err)
	}
	if _, err := e.descs.get(fd); err == nil {
		t.Fatalf("parent view's descriptor table unexpectedly has fd %d", fd)
	}
	sub.CloseFile(fd)
}

func TestClosingRootClosesLiveSubViews(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.Mkdir("/d", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	sub, err := e.Chroot("/d")
	if err != nil {
		t.Fatalf("Chroot: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close root: %v", err)
	}
	if !sub.isClosed() {
		t.Fatalf("sub-view not closed after root Close")
	}
}

func TestClosingSubViewDoesNotAffectParent(t *testing.T) {
	e := mustFormat(t, Options{})
	if err := e.Mkdir("/d", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	sub, err := e.Chroot("/d")
	if err != nil {
		t.Fatalf("Chroot: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close sub-view: %v", err)
	}
	if e.isClosed() {
		t.Fatalf("parent closed after sub-view Close")
	}
	if err := e.Mkdir("/e", 0o755); err != nil {
		t.Fatalf("parent still usable after sub-view Close: %v", err)
	}
}
