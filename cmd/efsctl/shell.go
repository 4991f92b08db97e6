// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/efs-go/efs"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive shell against an existing store",
	RunE:  runShell,
}

var (
	shellUID uint32
	shellGID uint32
)

func init() {
	shellCmd.Flags().Uint32Var(&shellUID, "uid", 0, "effective uid for the session")
	shellCmd.Flags().Uint32Var(&shellGID, "gid", 0, "effective gid for the session")
}

func runShell(cmd *cobra.Command, args []string) error {
	store, err := requireStore()
	if err != nil {
		return err
	}
	key, err := loadRootKey()
	if err != nil {
		return err
	}

	e, err := efs.Open(store, key, efs.Options{EUID: shellUID, EGID: shellGID, Umask: cfg.Umask})
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer e.Close()

	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	fmt.Fprint(out, "efsctl> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			if quit := runShellLine(e, out, line); quit {
				break
			}
		}
		fmt.Fprint(out, "efsctl> ")
	}
	return nil
}

// runShellLine executes one shell command line and reports whether the
// session should end.
func runShellLine(e *efs.EFS, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	name, rest := fields[0], fields[1:]

	switch name {
	case "exit", "quit":
		return true
	case "pwd":
		fmt.Fprintln(out, e.Cwd())
	case "cd":
		if len(rest) != 1 {
			fmt.Fprintln(out, "usage: cd <path>")
			return false
		}
		if err := e.Chdir(rest[0]); err != nil {
			fmt.Fprintln(out, err)
		}
	case "ls":
		path := "."
		if len(rest) == 1 {
			path = rest[0]
		}
		entries, err := e.Readdir(path)
		if err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		for _, ent := range entries {
			fmt.Fprintf(out, "%-6s %6d  %s\n", typeLabel(ent.Type), ent.Ino, ent.Name)
		}
	case "cat":
		if len(rest) != 1 {
			fmt.Fprintln(out, "usage: cat <path>")
			return false
		}
		data, err := e.ReadFile(rest[0])
		if err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		out.Write(data)
		fmt.Fprintln(out)
	case "mkdir":
		if len(rest) != 1 {
			fmt.Fprintln(out, "usage: mkdir <path>")
			return false
		}
		if err := e.Mkdir(rest[0], 0o755); err != nil {
			fmt.Fprintln(out, err)
		}
	case "rm":
		if len(rest) != 1 {
			fmt.Fprintln(out, "usage: rm <path>")
			return false
		}
		if err := e.Unlink(rest[0]); err != nil {
			fmt.Fprintln(out, err)
		}
	case "rmdir":
		if len(rest) != 1 {
			fmt.Fprintln(out, "usage: rmdir <path>")
			return false
		}
		if err := e.Rmdir(rest[0], false); err != nil {
			fmt.Fprintln(out, err)
		}
	case "mv":
		if len(rest) != 2 {
			fmt.Fprintln(out, "usage: mv <src> <dst>")
			return false
		}
		if err := e.Rename(rest[0], rest[1]); err != nil {
			fmt.Fprintln(out, err)
		}
	case "ln":
		if len(rest) != 2 {
			fmt.Fprintln(out, "usage: ln <src> <dst>")
			return false
		}
		if err := e.Link(rest[0], rest[1]); err != nil {
			fmt.Fprintln(out, err)
		}
	case "stat":
		if len(rest) != 1 {
			fmt.Fprintln(out, "usage: stat <path>")
			return false
		}
		st, err := e.Stat(rest[0])
		if err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		fmt.Fprintf(out, "ino=%d type=%s mode=%04o uid=%d gid=%d size=%d nlink=%d\n",
			st.Ino, typeLabel(st.Type), st.Mode, st.UID, st.GID, st.Size, st.Nlink)
	case "chmod":
		if len(rest) != 2 {
			fmt.Fprintln(out, "usage: chmod <octal-mode> <path>")
			return false
		}
		mode, err := strconv.ParseUint(rest[0], 8, 32)
		if err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		if err := e.Chmod(rest[1], uint32(mode)); err != nil {
			fmt.Fprintln(out, err)
		}
	default:
		fmt.Fprintf(out, "unknown command %q\n", name)
	}
	return false
}

func typeLabel(t efs.FileType) string {
	switch t {
	case efs.TypeDirectory:
		return "dir"
	case efs.TypeSymlink:
		return "link"
	default:
		return "file"
	}
}
