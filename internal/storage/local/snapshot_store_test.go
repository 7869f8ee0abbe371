// Package local_test tests the filesystem page-state archive.
package local_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreyra/catalogpulse/internal/storage/local"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time   { return c.at }
func (c fixedClock) Today() time.Time { return c.at.Truncate(24 * time.Hour) }

var clk = fixedClock{at: time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)}

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()}, clk)
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{}, clk)
		assert.Error(t, err)
	})

	t.Run("CreatesMissingBaseDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "snapshots")
		_, err := local.New(local.Config{BaseDir: dir}, clk)
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		tempFile, err := os.CreateTemp(t.TempDir(), "testfile")
		require.NoError(t, err)
		require.NoError(t, tempFile.Close())

		_, err = local.New(local.Config{BaseDir: tempFile.Name()}, clk)
		assert.Error(t, err)
	})

	t.Run("BaseDirNotWritable", func(t *testing.T) {
		tempDir := t.TempDir()
		// #nosec G302 -- directory permissions adjusted intentionally for test coverage.
		require.NoError(t, os.Chmod(tempDir, 0o500))

		_, err := local.New(local.Config{BaseDir: tempDir}, clk)
		assert.Error(t, err)

		// #nosec G302 -- reverting permissions to allow cleanup in the test environment.
		require.NoError(t, os.Chmod(tempDir, 0o700))
	})
}

func TestSavePageState(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir}, clk)
	require.NoError(t, err)

	t.Run("WritesDateKeyedPath", func(t *testing.T) {
		data := []byte(`{"pageState":[]}`)
		require.NoError(t, store.SavePageState("MLA19727273", 3, data))

		fullPath := filepath.Join(tempDir, "2026-08-27", "MLA19727273", "page_3.json")
		// #nosec G304 -- test reads from the controlled temp directory.
		read, err := os.ReadFile(fullPath)
		require.NoError(t, err)
		assert.Equal(t, data, read)
	})

	t.Run("RejectsMalformedCatalogID", func(t *testing.T) {
		assert.Error(t, store.SavePageState("../escape", 1, []byte("{}")))
		assert.Error(t, store.SavePageState("", 1, []byte("{}")))
	})

	t.Run("RejectsNonPositivePage", func(t *testing.T) {
		assert.Error(t, store.SavePageState("MLA19727273", 0, []byte("{}")))
	})
}
