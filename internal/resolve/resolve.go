// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package resolve implements C5, the path resolver: parsing,
// normalizing and walking a path against a starting directory stack,
// chasing symlinks and enforcing per-component execute permission.
package resolve

import (
	"strings"

	"github.com/efs-go/efs/errno"
	"github.com/efs-go/efs/internal/inodes"
	"github.com/efs-go/efs/internal/kvstore"
	"github.com/efs-go/efs/internal/perm"
)

// MaxSymlinkHops is the fixed loop-detection constant from spec.md
// §4.5 ("the spec fixes it at 40 for tests").
const MaxSymlinkHops = 40

// Flags selects resolution behavior for one call, replacing the
// variadic-flag idiom of the original source with an explicit option
// struct (spec.md §9).
type Flags struct {
	FollowFinalSymlink bool
	MustBeDirectory    bool
}

// Result is what a successful Resolve returns.
type Result struct {
	// Stack is the full ancestor chain from the starting root down to
	// the resolved inode, inclusive of both ends. It becomes the new
	// cwd-stack after a successful chdir.
	Stack []inodes.ID
	Meta  inodes.Meta
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Resolver walks paths against an inodes.Store.
type Resolver struct {
	store *inodes.Store
}

func New(store *inodes.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve walks path starting from startStack (a copy of the calling
// view's current cwd-stack) against rootID (that view's root, used
// both for absolute paths and as the floor ".." cannot pop below).
func (r *Resolver) Resolve(txn kvstore.Txn, startStack []inodes.ID, rootID inodes.ID, path string, flags Flags, caller perm.Caller) (Result, error) {
	stack, err := r.walk(txn, startStack, rootID, path, flags, caller)
	if err != nil {
		return Result{}, err
	}
	m, err := r.store.ReadMeta(txn, stack[len(stack)-1])
	if err != nil {
		return Result{}, err
	}
	return Result{Stack: stack, Meta: m}, nil
}

// ResolveParent walks all but the final component of path, returning
// the parent directory's ancestor stack and the raw, unresolved final
// component (which may be "." or ".." — callers that must reject
// those, such as rename and rmdir, check for them explicitly).
func (r *Resolver) ResolveParent(txn kvstore.Txn, startStack []inodes.ID, rootID inodes.ID, path string, caller perm.Caller) (parentStack []inodes.ID, leaf string, err error) {
	comps := splitPath(path)
	if len(comps) == 0 {
		return nil, "", errno.EINVAL
	}
	leaf = comps[len(comps)-1]
	dirPath := strings.Join(comps[:len(comps)-1], "/")
	if strings.HasPrefix(path, "/") {
		dirPath = "/" + dirPath
	}
	flags := Flags{FollowFinalSymlink: true, MustBeDirectory: true}
	stack, err := r.walk(txn, startStack, rootID, dirPath, flags, caller)
	if err != nil {
		return nil, "", err
	}
	return stack, leaf, nil
}

func (r *Resolver) walk(txn kvstore.Txn, startStack []inodes.ID, rootID inodes.ID, path string, flags Flags, caller perm.Caller) ([]inodes.ID, error) {
	if path == "" {
		return nil, errno.EINVAL
	}
	trailingSlash := strings.HasSuffix(path, "/")

	stack := make([]inodes.ID, len(startStack))
	copy(stack, startStack)
	if strings.HasPrefix(path, "/") {
		stack = []inodes.ID{rootID}
	}

	remaining := splitPath(path)
	hops := 0

	for len(remaining) > 0 {
		comp := remaining[0]
		remaining = remaining[1:]
		isLast := len(remaining) == 0

		switch comp {
		case ".":
			continue
		case "..":
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		parentID := stack[len(stack)-1]
		parentMeta, err := r.store.ReadMeta(txn, parentID)
		if err != nil {
			return nil, err
		}
		if parentMeta.Type != inodes.Directory {
			return nil, errno.ENOTDIR
		}
		if err := perm.Check(caller, parentMeta.UID, parentMeta.GID, parentMeta.Mode, perm.Execute); err != nil {
			return nil, errno.EACCES
		}

		childID, err := r.store.LookupEntry(txn, parentID, comp)
		if err != nil {
			return nil, err
		}
		childMeta, err := r.store.ReadMeta(txn, childID)
		if err != nil {
			return nil, err
		}

		if childMeta.Type == inodes.Symlink && (!isLast || flags.FollowFinalSymlink) {
			hops++
			if hops > MaxSymlinkHops {
				return nil, errno.ELOOP
			}
			target := childMeta.Target
			if strings.HasPrefix(target, "/") {
				stack = []inodes.ID{rootID}
			}
			remaining = append(splitPath(target), remaining...)
			continue
		}

		stack = append(stack, childID)

		if isLast && (flags.MustBeDirectory || trailingSlash) && childMeta.Type != inodes.Directory {
			return nil, errno.ENOTDIR
		}
	}

	return stack, nil
}
