// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package logchain

import (
	"crypto/sha256"
	"path/filepath"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChain(t *testing.T) (*Chain, string) {
	t.Helper()
	log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "operations.log.json")
	c, err := Open(log, path)
	require.NoError(t, err)
	return c, path
}

func TestChainAppendAndVerify(t *testing.T) {
	t.Run("GenesisEntryChainsToZeroHash", func(t *testing.T) {
		c, _ := newTestChain(t)

		entry, err := c.Append("operation started", LevelInfo)
		require.NoError(t, err)
		assert.Equal(t, genesisHash, entry.PrevHash)
		assert.Len(t, entry.PrevHash, sha256.Size*2, "prev_hash must be a hex-encoded SHA-256 digest")
		assert.Equal(t, int64(0), entry.Sequence)
	})

	t.Run("SubsequentEntryChainsToPriorHash", func(t *testing.T) {
		c, _ := newTestChain(t)

		first, err := c.Append("phase p1 complete", LevelInfo)
		require.NoError(t, err)

		second, err := c.Append("phase p2 complete", LevelInfo)
		require.NoError(t, err)

		assert.Equal(t, first.EntryHash, second.PrevHash)
		assert.Equal(t, first.Sequence+1, second.Sequence)
	})

	t.Run("VerifyChainSucceedsOnUntamperedLog", func(t *testing.T) {
		c, _ := newTestChain(t)
		for i := 0; i < 5; i++ {
			_, err := c.Append("entry", LevelInfo)
			require.NoError(t, err)
		}
		assert.True(t, c.VerifyChain())
	})

	t.Run("VerifyChainFailsWhenEntryMessageTampered", func(t *testing.T) {
		c, _ := newTestChain(t)
		_, err := c.Append("entry one", LevelInfo)
		require.NoError(t, err)
		_, err = c.Append("entry two", LevelInfo)
		require.NoError(t, err)

		c.entries[0].Message = "tampered message"
		assert.False(t, c.VerifyChain())
	})
}

func TestChainPersistence(t *testing.T) {
	t.Run("ReopenedChainPreservesEntriesAndVerifies", func(t *testing.T) {
		c, path := newTestChain(t)
		_, err := c.Append("first", LevelInfo)
		require.NoError(t, err)
		_, err = c.Append("second", LevelWarn)
		require.NoError(t, err)

		log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
		require.NoError(t, err)

		reopened, err := Open(log, path)
		require.NoError(t, err)
		assert.Len(t, reopened.Entries(), 2)
		assert.True(t, reopened.VerifyChain())
		assert.NoError(t, reopened.LoadError())
	})

	t.Run("MissingFileOpensEmptyWithoutError", func(t *testing.T) {
		log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
		require.NoError(t, err)

		c, err := Open(log, filepath.Join(t.TempDir(), "does-not-exist.json"))
		require.NoError(t, err)
		assert.Empty(t, c.Entries())
	})
}
