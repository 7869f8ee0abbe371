// Package local implements a local filesystem page-state archive.
package local

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/nmoreyra/catalogpulse/internal/clock"
)

var validCatalogID = regexp.MustCompile(`^MLA\d+$`)

// Config captures the parameters for the local snapshot archive.
type Config struct {
	// BaseDir is the root directory where page-state files are stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// SnapshotStore archives raw embedded-state JSON under
// <base>/<YYYY-MM-DD>/<catalogID>/page_<N>.json so a parser fix can be
// replayed against what the site actually served.
type SnapshotStore struct {
	baseDir string
	clock   clock.Clock
}

// New creates a filesystem-backed snapshot store rooted at cfg.BaseDir.
func New(cfg Config, clk clock.Clock) (*SnapshotStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	// Probe write permissions up front so a misconfigured mount fails at
	// startup rather than mid-crawl.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &SnapshotStore{
		baseDir: cfg.BaseDir,
		clock:   clk,
	}, nil
}

// SavePageState writes one page's raw state JSON into the archive.
func (s *SnapshotStore) SavePageState(catalogID string, page int, data []byte) error {
	if !validCatalogID.MatchString(catalogID) {
		return fmt.Errorf("invalid catalog id %q", catalogID)
	}
	if page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", page)
	}

	dir := filepath.Join(s.baseDir, s.clock.Today().Format(time.DateOnly), catalogID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	fullPath := filepath.Join(dir, fmt.Sprintf("page_%d.json", page))
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
