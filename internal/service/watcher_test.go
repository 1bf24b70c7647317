package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrifs/subpipe/internal/checkpoint"
	"github.com/andrifs/subpipe/internal/config"
	"github.com/andrifs/subpipe/internal/jobs"
	"github.com/andrifs/subpipe/internal/pipeline"
)

type fakeRunner struct {
	calls []string
}

func (f *fakeRunner) Run(_ context.Context, videoPath string, _ bool) (*pipeline.RunResult, error) {
	f.calls = append(f.calls, videoPath)
	return &pipeline.RunResult{OutputPath: videoPath + ".out"}, nil
}

func settle(t *testing.T, path string) {
	t.Helper()
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestScanQueuesOnlySettledVideos(t *testing.T) {
	t.Parallel()

	watchDir := t.TempDir()
	write := func(name string) string {
		path := filepath.Join(watchDir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		return path
	}

	settled := write("lecture01.mp4")
	settle(t, settled)

	notes := write("notes.txt")
	settle(t, notes)

	ownOutput := write("lecture01_with_subtitle.mp4")
	settle(t, ownOutput)

	// Still being copied: mtime is now.
	write("fresh.mkv")

	store, err := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoints"))
	require.NoError(t, err)

	runner := &fakeRunner{}
	queue := jobs.NewQueue(runner, nil)
	watcher := NewWatcher(config.WatchConfig{Dir: watchDir, CronExpr: "* * * * *"}, queue, store, 0)

	watcher.Scan(context.Background())

	assert.Equal(t, []string{settled}, runner.calls)
}

func TestScanPicksUpNewFilesOnLaterScans(t *testing.T) {
	t.Parallel()

	watchDir := t.TempDir()
	store, err := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoints"))
	require.NoError(t, err)

	runner := &fakeRunner{}
	queue := jobs.NewQueue(runner, nil)
	watcher := NewWatcher(config.WatchConfig{Dir: watchDir, CronExpr: "* * * * *"}, queue, store, 0)
	watcher.settle = 0

	watcher.Scan(context.Background())
	assert.Empty(t, runner.calls)

	path := filepath.Join(watchDir, "late.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	watcher.Scan(context.Background())
	assert.Equal(t, []string{path}, runner.calls)
}

func TestEligible(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	watcher := NewWatcher(config.WatchConfig{Dir: dir}, nil, nil, 0)

	video := filepath.Join(dir, "a.mp4")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0o644))
	settle(t, video)
	assert.True(t, watcher.eligible(video))

	assert.False(t, watcher.eligible(filepath.Join(dir, "missing.mp4")))
	assert.False(t, watcher.eligible(filepath.Join(dir, "a.srt")))
}
