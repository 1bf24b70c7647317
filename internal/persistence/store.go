// Package persistence keeps a durable history of pipeline runs in a
// local SQLite database. The history is diagnostic: the pipeline itself
// never reads it, only the CLI and the watch service do.
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/andrifs/subpipe/pkg/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Run is one row of pipeline history.
type Run struct {
	ID           string
	Identity     string
	VideoPath    string
	Status       RunStatus
	ResumedFrom  string
	FailedStage  string
	OutputPath   string
	SourceLang   string
	TargetLang   string
	LineCount    int
	QualityScore float64
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// One writer at a time keeps SQLITE_BUSY out of the picture.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	entries, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(entries)

	for _, entry := range entries {
		script, err := migrationFiles.ReadFile(entry)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry, err)
		}
		if _, err := s.db.Exec(string(script)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry, err)
		}
	}
	return nil
}

// StartRun records the beginning of a pipeline run and returns the run ID.
func (s *Store) StartRun(ctx context.Context, identity, videoPath string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, identity, video_path, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, identity, videoPath, RunRunning, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// FinishRun marks a run as succeeded and stores its result fields.
func (s *Store) FinishRun(ctx context.Context, id, resumedFrom, outputPath, sourceLang, targetLang string, lineCount int, qualityScore float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, resumed_from = ?, output_path = ?, source_lang = ?,
		        target_lang = ?, line_count = ?, quality_score = ?, finished_at = ?
		 WHERE id = ?`,
		RunSuccess, resumedFrom, outputPath, sourceLang, targetLang,
		lineCount, qualityScore, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("record run success: %w", err)
	}
	return nil
}

// FailRun marks a run as failed with the stage that broke and the error text.
func (s *Store) FailRun(ctx context.Context, id, failedStage, errText string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, failed_stage = ?, error = ?, finished_at = ? WHERE id = ?`,
		RunFailed, failedStage, errText, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("record run failure: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// LastRunFor returns the most recent run for a video identity, or nil.
func (s *Store) LastRunFor(ctx context.Context, identity string) (*Run, error) {
	runs, err := s.runsWhere(ctx, `identity = ?`, identity)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

const runColumns = `id, identity, video_path, status, resumed_from, failed_stage, output_path,
	source_lang, target_lang, line_count, quality_score, error, started_at, finished_at`

func (s *Store) runsWhere(ctx context.Context, where string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE `+where+` ORDER BY started_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		err := rows.Scan(&r.ID, &r.Identity, &r.VideoPath, &r.Status, &r.ResumedFrom,
			&r.FailedStage, &r.OutputPath, &r.SourceLang, &r.TargetLang,
			&r.LineCount, &r.QualityScore, &r.Error, &r.StartedAt, &finished)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PruneOlderThan deletes finished runs older than the cutoff and returns
// the number removed.
func (s *Store) PruneOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE status != ? AND started_at < ?`, RunRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info("pruned %d run history rows older than %s", n, age)
	}
	return int(n), nil
}
