// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package logchain is the append-only, hash-chained operation log: every
// phase boundary and error the wipe executor hits is recorded here, and
// the certificate builder copies this log verbatim into every
// certificate it emits.
package logchain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stratastor/logger"

	vwerrors "github.com/coldforge/veriwipe/pkg/errors"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// genesisHash is the prev_hash of the first entry: a 32-byte all-zero
// value, hex encoded to the same 64-character length as every other
// entry_hash/prev_hash in the chain (both are SHA-256 digests).
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one node of the hash chain.
type Entry struct {
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	EntryID   string    `json:"entry_id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	PrevHash  string    `json:"prev_hash"`
	EntryHash string    `json:"entry_hash"`
}

// computeHash reproduces spec's entry_hash: SHA-256 over the canonical
// concatenation of timestamp, entry_id, message, level and prev_hash,
// each field length-prefixed so no ambiguity arises from a field value
// containing the separator.
func computeHash(timestamp time.Time, entryID, message string, level Level, prevHash string) string {
	h := sha256.New()
	for _, field := range []string{
		timestamp.UTC().Format(time.RFC3339Nano),
		entryID,
		message,
		string(level),
		prevHash,
	} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Chain is a process-scoped, file-persisted hash-chained log.
// Concurrent appends are serialized by mu; readers see a snapshot of
// the entry slice at the time of the call.
type Chain struct {
	log  logger.Logger
	path string

	mu       sync.Mutex
	entries  []Entry
	loadErr  error
}

// Open loads path if it exists, verifying the chain as it does. A
// verification failure does not erase the file or refuse to open it:
// the corruption itself is evidence, surfaced via VerifyChain, and
// new entries are still appended on top of what's there.
func Open(log logger.Logger, path string) (*Chain, error) {
	c := &Chain{log: log, path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info("log chain file not found, starting empty", "path", path)
		return c, nil
	}
	if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.LogChainPersistFailed).WithMetadata("path", path)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.LogChainCorrupted).WithMetadata("path", path)
	}
	c.entries = entries

	if ok, badIndex := c.verifyLocked(); !ok {
		c.loadErr = vwerrors.New(vwerrors.LogChainVerifyFailed,
			"loaded log chain failed verification").WithMetadata("bad_index", fmt.Sprintf("%d", badIndex))
		log.Error("loaded log chain failed verification, continuing with corrupted history intact",
			"path", path, "bad_index", badIndex)
	}

	return c, nil
}

// Append constructs a new entry chained to the current tail, persists
// it, and returns the entry. Appends are serialized.
func (c *Chain) Append(message string, level Level) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prevHash := genesisHash
	seq := int64(0)
	if n := len(c.entries); n > 0 {
		prevHash = c.entries[n-1].EntryHash
		seq = c.entries[n-1].Sequence + 1
	}

	id, err := newEntryID()
	if err != nil {
		return Entry{}, vwerrors.Wrap(err, vwerrors.LogChainAppendFailed)
	}

	now := time.Now().UTC()
	entry := Entry{
		Sequence:  seq,
		Timestamp: now,
		EntryID:   id,
		Level:     level,
		Message:   message,
		PrevHash:  prevHash,
	}
	entry.EntryHash = computeHash(entry.Timestamp, entry.EntryID, entry.Message, entry.Level, entry.PrevHash)

	c.entries = append(c.entries, entry)
	if err := c.persistLocked(); err != nil {
		return Entry{}, err
	}

	return entry, nil
}

// Entries returns a snapshot of the chain's entries in append order.
func (c *Chain) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// VerifyChain walks the sequence from index 1 and returns true iff
// every link's prev_hash matches the predecessor's entry_hash and every
// entry's own entry_hash is correctly derived.
func (c *Chain) VerifyChain() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, _ := c.verifyLocked()
	return ok
}

// LoadError reports the verification error encountered while loading an
// existing log file, if any. A non-nil LoadError does not prevent the
// chain from being used; it is surfaced so the operator is made aware
// the evidence trail may already be compromised.
func (c *Chain) LoadError() error {
	return c.loadErr
}

func (c *Chain) verifyLocked() (bool, int) {
	prevHash := genesisHash
	for i, e := range c.entries {
		if e.PrevHash != prevHash {
			return false, i
		}
		want := computeHash(e.Timestamp, e.EntryID, e.Message, e.Level, e.PrevHash)
		if want != e.EntryHash {
			return false, i
		}
		prevHash = e.EntryHash
	}
	return true, -1
}

// persistLocked writes the full entry slice to disk via a
// temp-file-then-atomic-rename sequence, backing up any existing file
// first. Caller must hold mu.
func (c *Chain) persistLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return vwerrors.Wrap(err, vwerrors.LogChainPersistFailed)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return vwerrors.Wrap(err, vwerrors.LogChainPersistFailed).WithMetadata("operation", "mkdir")
	}

	tempPath := c.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return vwerrors.Wrap(err, vwerrors.LogChainPersistFailed).WithMetadata("operation", "write_temp")
	}

	if _, err := os.Stat(c.path); err == nil {
		backupPath := c.path + ".backup"
		if err := os.Rename(c.path, backupPath); err != nil {
			c.log.Warn("failed to backup existing log chain file", "err", err)
		}
	}

	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return vwerrors.Wrap(err, vwerrors.LogChainPersistFailed).WithMetadata("operation", "rename")
	}

	return nil
}

func newEntryID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
