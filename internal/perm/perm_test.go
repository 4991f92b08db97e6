// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perm

import (
	"testing"

	"github.com/efs-go/efs/errno"
)

func TestTriadOrderOwnerWins(t *testing.T) {
	// Owner denied read, but group/other allow it: owner triad must
	// still be the one consulted and must deny.
	caller := Caller{UID: 1000, GID: 100}
	err := Check(caller, 1000, 100, 0o077, Read)
	if err != errno.EACCES {
		t.Fatalf("owner triad with no read bit should deny even though group/other allow, got %v", err)
	}
}

func TestGroupTriadUsedWhenNotOwner(t *testing.T) {
	caller := Caller{UID: 2000, GID: 100}
	err := Check(caller, 1000, 100, 0o470, Read)
	if err != nil {
		t.Fatalf("group triad should allow read, got %v", err)
	}
}

func TestOtherTriadUsedWhenNeitherOwnerNorGroup(t *testing.T) {
	caller := Caller{UID: 2000, GID: 200}
	err := Check(caller, 1000, 100, 0o004, Read)
	if err != nil {
		t.Fatalf("other triad should allow read, got %v", err)
	}
	err = Check(caller, 1000, 100, 0o770, Read)
	if err != errno.EACCES {
		t.Fatalf("other triad with no bits should deny, got %v", err)
	}
}

func TestRootBypassesReadWrite(t *testing.T) {
	root := Caller{UID: 0}
	if err := Check(root, 1000, 100, 0o000, Read|Write); err != nil {
		t.Fatalf("root should bypass read/write checks, got %v", err)
	}
}

func TestRootStillNeedsSomeExecuteBit(t *testing.T) {
	root := Caller{UID: 0}
	err := Check(root, 1000, 100, 0o000, Execute)
	if err != errno.EACCES {
		t.Fatalf("root executing a file with no x bit anywhere should be EACCES, got %v", err)
	}
	err = Check(root, 1000, 100, 0o100, Execute)
	if err != nil {
		t.Fatalf("root executing a file with owner x bit should succeed, got %v", err)
	}
}

func TestCanChownRules(t *testing.T) {
	owner := Caller{UID: 1000, GID: 100}
	newUID := uint32(1000)
	if err := CanChown(owner, 1000, &newUID, nil); err != nil {
		t.Fatalf("owner chowning uid to self should succeed, got %v", err)
	}
	other := uint32(2000)
	if err := CanChown(owner, 1000, &other, nil); err != errno.EPERM {
		t.Fatalf("non-root chowning uid to someone else should be EPERM, got %v", err)
	}
	newGID := uint32(100)
	if err := CanChown(owner, 1000, nil, &newGID); err != nil {
		t.Fatalf("chowning gid to caller's own gid should succeed, got %v", err)
	}
	otherGID := uint32(200)
	if err := CanChown(owner, 1000, nil, &otherGID); err != errno.EPERM {
		t.Fatalf("chowning gid to a foreign group should be EPERM, got %v", err)
	}
}
