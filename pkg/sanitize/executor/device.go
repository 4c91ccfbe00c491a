// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package executor implements the Pass Executor (C4): single-pass,
// sector-aligned overwrite of a byte range on one device.
package executor

import (
	"os"

	"github.com/tinkershack/sanitor/pkg/errors"
)

// deviceHandle is an opaque, exclusively-owned reference to a block
// device opened for read+write. It is created by the executor, owned
// by the caller for the duration of one pass, and always closed
// before returning.
type deviceHandle struct {
	f    *os.File
	path string
}

func openDevice(path string) (*deviceHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ExecutorOutOfRange, "device does not exist").WithMetadata("device", path)
		}
		if os.IsPermission(err) {
			return nil, errors.Wrap(err, errors.ExecutorWriteError).WithMetadata("device", path)
		}
		return nil, errors.Wrap(err, errors.ExecutorWriteError).WithMetadata("device", path)
	}
	return &deviceHandle{f: f, path: path}, nil
}

func (d *deviceHandle) flush() error {
	if err := d.f.Sync(); err != nil {
		return errors.Wrap(err, errors.ExecutorFlushFailed).WithMetadata("device", d.path)
	}
	return nil
}

func (d *deviceHandle) close() error {
	return d.f.Close()
}
