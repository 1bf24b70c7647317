// Package service runs the long-lived watch mode: scan a directory on a
// cron schedule, queue new videos, and drain the queue through the
// pipeline.
package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/andrifs/subpipe/internal/checkpoint"
	"github.com/andrifs/subpipe/internal/config"
	"github.com/andrifs/subpipe/internal/jobs"
	"github.com/andrifs/subpipe/pkg/file"
	"github.com/andrifs/subpipe/pkg/log"
)

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
}

// defaultSettleTime keeps half-copied files out of the queue; a video is
// picked up only once its mtime stops moving.
const defaultSettleTime = 30 * time.Second

// Watcher scans a directory for new videos and feeds the job queue.
type Watcher struct {
	cfg    config.WatchConfig
	queue  *jobs.Queue
	store  *checkpoint.Store
	maxAge time.Duration
	settle time.Duration

	group singleflight.Group

	mu       sync.Mutex
	lastScan time.Time
}

func NewWatcher(cfg config.WatchConfig, queue *jobs.Queue, store *checkpoint.Store, checkpointMaxAge time.Duration) *Watcher {
	return &Watcher{
		cfg:    cfg,
		queue:  queue,
		store:  store,
		maxAge: checkpointMaxAge,
		settle: defaultSettleTime,
	}
}

// Start blocks until ctx is cancelled. Expired checkpoints are cleaned
// once at startup, then the directory is scanned immediately and on
// every cron tick.
func (w *Watcher) Start(ctx context.Context) error {
	if w.maxAge > 0 {
		w.store.Expire(w.maxAge)
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(w.cfg.CronExpr, func() {
		w.Scan(ctx)
	})
	if err != nil {
		return err
	}

	log.Info("watching %s (schedule %q)", w.cfg.Dir, w.cfg.CronExpr)
	scheduler.Start()
	w.Scan(ctx)

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

// Scan looks for new videos and drains the queue. Overlapping calls
// (a slow drain still running when the next cron tick fires) collapse
// into the in-flight one.
func (w *Watcher) Scan(ctx context.Context) {
	w.group.Do("scan", func() (any, error) {
		w.scan(ctx)
		return nil, nil
	})
}

func (w *Watcher) scan(ctx context.Context) {
	w.mu.Lock()
	since := w.lastScan
	w.mu.Unlock()

	started := time.Now()

	candidates, err := file.FindRecentAfter(w.cfg.Dir, since)
	if err != nil {
		log.Error("scan of %s failed: %v", w.cfg.Dir, err)
		return
	}

	queued := 0
	for _, path := range candidates {
		if !w.eligible(path) {
			continue
		}
		if w.queue.Enqueue(path) {
			queued++
		}
	}
	if queued > 0 {
		log.Info("scan found %d new videos", queued)
	}

	w.queue.Drain(ctx)

	// Settling files keep their place in the next scan window.
	w.mu.Lock()
	w.lastScan = started.Add(-w.settle)
	w.mu.Unlock()
}

func (w *Watcher) eligible(path string) bool {
	if !videoExtensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	// Never re-process our own output.
	if strings.HasSuffix(file.Stem(path), "_with_subtitle") {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) < w.settle {
		return false
	}
	return true
}
