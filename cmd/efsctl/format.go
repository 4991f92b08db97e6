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

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Initialize a new, empty encrypted filesystem store",
	RunE:  runFormat,
}

var (
	formatUID  uint32
	formatGID  uint32
	formatMode uint32
)

func init() {
	formatCmd.Flags().Uint32Var(&formatUID, "uid", 0, "uid that owns the root directory")
	formatCmd.Flags().Uint32Var(&formatGID, "gid", 0, "gid that owns the root directory")
	formatCmd.Flags().Uint32Var(&formatMode, "mode", 0o755, "root directory permission bits")
}

func runFormat(cmd *cobra.Command, args []string) error {
	if cfg.BlockSize != 0 && cfg.BlockSize != inodes.BlockSize {
		return fmt.Errorf("block_size %d does not match this build's fixed block size %d", cfg.BlockSize, inodes.BlockSize)
	}
	store, err := requireStore()
	if err != nil {
		return err
	}
	key, err := loadRootKey()
	if err != nil {
		return err
	}

	e, err := efs.Format(store, key, efs.Options{
		UID: formatUID, GID: formatGID, RootMode: formatMode, Umask: cfg.Umask,
	})
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}
	defer e.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "formatted %s\n", store)
	return nil
}
