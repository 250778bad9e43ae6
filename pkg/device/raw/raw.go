// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package raw abstracts byte-level block device access so the wipe
// executor can run against a real device handle or an in-memory fake
// without reshaping its phase logic.
package raw

import (
	"io"
	"os"
)

// BlockDevice exposes the minimal surface the wipe executor needs:
// random-access reads, a streaming writer for pattern fills, a flush and
// a size. Concrete implementations are a real /dev handle (Device) and an
// in-memory fake (Fake, in fake.go) used by tests.
type BlockDevice interface {
	ReadAt(offset int64, length int) ([]byte, error)
	WriteStream(offset int64, r io.Reader) (int64, error)
	Flush() error
	Size() int64
	Close() error
}

// Device is a BlockDevice backed by a real OS file handle opened on a
// block special file (e.g. /dev/sda).
type Device struct {
	path string
	f    *os.File
	size int64
}

// Open opens path for raw read/write access. size is the device's
// addressable capacity in bytes, as reported by the probe.
func Open(path string, size int64) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &Device{path: path, f: f, size: size}, nil
}

func (d *Device) ReadAt(offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := d.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func (d *Device) WriteStream(offset int64, r io.Reader) (int64, error) {
	return io.Copy(io.NewOffsetWriter(d.f, offset), r)
}

func (d *Device) Flush() error {
	return d.f.Sync()
}

func (d *Device) Size() int64 {
	return d.size
}

func (d *Device) Close() error {
	return d.f.Close()
}
