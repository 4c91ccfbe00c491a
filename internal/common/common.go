// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package common holds small helpers shared across the engine that
// don't deserve their own package: id generation and filesystem path
// conventions.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UUID7 generates a UUIDv7 (time-ordered), falling back to v4 if the
// v7 generator errors.
func UUID7() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

// ExpandPath expands a leading "~" to the current user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// StateDir returns the directory sanitor persists issuer keys, job
// snapshots, and local config into: the system-wide location when
// running as root, otherwise a per-user directory.
func StateDir() (string, error) {
	if os.Geteuid() == 0 {
		return "/etc/sanitor", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".sanitor"), nil
}

// EnsureDir creates path (after tilde expansion) if it does not exist.
func EnsureDir(path string, perm os.FileMode) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(expanded, perm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", expanded, err)
	}
	return nil
}

// WriteFileAtomic writes data to path by first writing to path+".tmp"
// then renaming over the destination, so a crash mid-write never
// leaves a partially-written file in place. Mirrors the
// write-temp-then-rename pattern used throughout the engine's
// persisted state (config, issuer keys, job snapshots).
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s to %s: %w", tmp, path, err)
	}
	return nil
}
