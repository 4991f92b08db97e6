// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/efs-go/efs"
	"github.com/efs-go/efs/internal/inodes"
)

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Walk a store and report link-count inconsistencies",
	RunE:  runFsck,
}

func runFsck(cmd *cobra.Command, args []string) error {
	store, err := requireStore()
	if err != nil {
		return err
	}
	key, err := loadRootKey()
	if err != nil {
		return err
	}

	e, err := efs.Open(store, key, efs.Options{})
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer e.Close()

	w := &walker{e: e, observed: make(map[inodes.ID]uint32), declared: make(map[inodes.ID]uint32)}
	if err := w.walk("/"); err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	problems := 0
	for ino, declared := range w.declared {
		if w.observed[ino] != declared {
			fmt.Fprintf(out, "fsck: inode %d: nlink=%d but found under %d name(s)\n", ino, declared, w.observed[ino])
			problems++
		}
	}
	if problems == 0 {
		fmt.Fprintln(out, "fsck: no inconsistencies found")
		return nil
	}
	return fmt.Errorf("fsck found %d inconsistencies", problems)
}

// walker recurses the tree from a starting path, accumulating how
// many directory entries name each regular-file/symlink inode
// (observed) against what each such inode's own Nlink reports
// (declared). Directories are excluded from the comparison: their
// Nlink also counts "." and every child directory's "..", which a
// plain directory-entry walk does not reconstruct.
type walker struct {
	e        *efs.EFS
	observed map[inodes.ID]uint32
	declared map[inodes.ID]uint32
}

func (w *walker) walk(path string) error {
	entries, err := w.e.Readdir(path)
	if err != nil {
		return fmt.Errorf("readdir %s: %w", path, err)
	}
	for _, ent := range entries {
		childPath := path
		if childPath != "/" {
			childPath += "/"
		}
		childPath += ent.Name

		if ent.Type == efs.TypeDirectory {
			if err := w.walk(childPath); err != nil {
				return err
			}
			continue
		}

		st, err := w.e.Lstat(childPath)
		if err != nil {
			return fmt.Errorf("lstat %s: %w", childPath, err)
		}
		w.observed[ent.Ino]++
		w.declared[ent.Ino] = st.Nlink
	}
	return nil
}
