// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/efs-go/efs/internal/inodes"
)

// config is the small set of settings efsctl reads from a YAML file
// (via viper), each overridable by a flag (via pflag/cobra).
type config struct {
	Store     string `mapstructure:"store"`
	KeyFile   string `mapstructure:"key_file"`
	Umask     uint32 `mapstructure:"umask"`
	BlockSize int    `mapstructure:"block_size"`
}

var (
	cfgFile string
	cfg     config
	bindErr error
)

var rootCmd = &cobra.Command{
	Use:           "efsctl",
	Short:         "Format, fsck, and browse an encrypted EFS store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("store", "", "path to the store file")
	rootCmd.PersistentFlags().String("key-file", "", "path to the raw 32-byte root key")
	rootCmd.PersistentFlags().Uint32("umask", 0o022, "umask applied to newly created inodes")
	rootCmd.PersistentFlags().Int("block-size", inodes.BlockSize, "expected block size (must match the store's fixed block size)")

	flags := rootCmd.PersistentFlags()
	for key, name := range map[string]string{"store": "store", "key_file": "key-file", "umask": "umask", "block_size": "block-size"} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil && bindErr == nil {
			bindErr = err
		}
	}

	rootCmd.AddCommand(formatCmd, shellCmd, fsckCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "efsctl: reading config file: %v\n", err)
			os.Exit(1)
		}
	}
	if bindErr != nil {
		fmt.Fprintf(os.Stderr, "efsctl: binding flags: %v\n", bindErr)
		os.Exit(1)
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "efsctl: parsing config: %v\n", err)
		os.Exit(1)
	}
}

func loadRootKey() ([]byte, error) {
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("no --key-file/key_file configured")
	}
	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key file must contain exactly 32 raw bytes, got %d", len(key))
	}
	return key, nil
}

func requireStore() (string, error) {
	if cfg.Store == "" {
		return "", fmt.Errorf("no --store/store configured")
	}
	return cfg.Store, nil
}
