// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command efsctl formats, inspects, and browses an encrypted
// filesystem store from the command line. It is not part of the
// library's core API (package efs) — it exists as the one concrete,
// host-facing instantiation spec.md's CLI non-goal permits.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
