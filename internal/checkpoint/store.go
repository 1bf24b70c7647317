// Package checkpoint persists per-video pipeline progress so an
// interrupted run can resume without redoing completed stages.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/andrifs/subpipe/pkg/file"
	"github.com/andrifs/subpipe/pkg/log"
)

// Store keeps one JSON record per video identity in a directory. At most
// one checkpoint exists per identity; saves overwrite.
type Store struct {
	dir string
}

// NewStore creates the checkpoint directory if needed.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Identity derives the stable checkpoint key for a video path. It only
// depends on the file's base name, so a checkpoint written in one working
// directory is found in the next run of the same logical video.
func Identity(videoPath string) string {
	return file.Stem(videoPath)
}

func (s *Store) path(identity string) string {
	return filepath.Join(s.dir, identity+".json")
}

// Save overwrites the checkpoint for cp.Identity with a timestamped
// record. The write goes to a temp file first and is renamed into place,
// so a concurrent reader never observes a partial record.
func (s *Store) Save(cp Checkpoint) error {
	if cp.Identity == "" {
		return fmt.Errorf("checkpoint identity is empty")
	}
	cp.Timestamp = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, cp.Identity+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, s.path(cp.Identity)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// Load returns the checkpoint for identity, or ok=false when none exists.
// An unreadable or unparsable record is treated as absent, never fatal.
func (s *Store) Load(identity string) (*Checkpoint, bool) {
	data, err := os.ReadFile(s.path(identity))
	if err != nil {
		return nil, false
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		log.Warn("checkpoint for %s is corrupt, treating as absent: %v", identity, err)
		return nil, false
	}
	return &cp, true
}

// Clear deletes the checkpoint for identity. Safe to call when absent.
func (s *Store) Clear(identity string) error {
	err := os.Remove(s.path(identity))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// List enumerates all pending checkpoints, newest first. Corrupt records
// are skipped.
func (s *Store) List() ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint directory: %w", err)
	}

	var checkpoints []Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		identity := strings.TrimSuffix(entry.Name(), ".json")
		if cp, ok := s.Load(identity); ok {
			checkpoints = append(checkpoints, *cp)
		}
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].Timestamp.After(checkpoints[j].Timestamp)
	})
	return checkpoints, nil
}

// Expire deletes checkpoint files older than maxAge. Run opportunistically
// at startup; errors are logged, not returned.
func (s *Store) Expire(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Warn("checkpoint expiry scan failed: %v", err)
		return 0
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		log.Info("expired %d old checkpoint(s)", removed)
	}
	return removed
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}
