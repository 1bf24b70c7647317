// Package jobs is a small in-process queue of pipeline runs. Videos are
// deduplicated by identity, processed sequentially (whisper and ffmpeg
// saturate the machine on their own), and mirrored into run history.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andrifs/subpipe/internal/checkpoint"
	"github.com/andrifs/subpipe/internal/persistence"
	"github.com/andrifs/subpipe/internal/pipeline"
	"github.com/andrifs/subpipe/pkg/log"
)

// Status is the lifecycle state of a queued job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is one queued video.
type Job struct {
	ID         string
	Identity   string
	VideoPath  string
	Status     Status
	Error      string
	EnqueuedAt time.Time
}

// Runner executes one pipeline run. Satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, videoPath string, resume bool) (*pipeline.RunResult, error)
}

// Queue holds pending jobs and drains them one at a time.
type Queue struct {
	mu      sync.Mutex
	jobs    map[string]*Job // keyed by identity
	order   []string
	runner  Runner
	history *persistence.Store // may be nil
}

func NewQueue(runner Runner, history *persistence.Store) *Queue {
	return &Queue{
		jobs:    make(map[string]*Job),
		runner:  runner,
		history: history,
	}
}

// Enqueue adds a video unless a job for the same identity is already
// pending or running. Returns true when the job was added.
func (q *Queue) Enqueue(videoPath string) bool {
	identity := checkpoint.Identity(videoPath)

	q.mu.Lock()
	defer q.mu.Unlock()

	existing, known := q.jobs[identity]
	if known && (existing.Status == StatusPending || existing.Status == StatusRunning) {
		return false
	}
	if !known {
		q.order = append(q.order, identity)
	}
	q.jobs[identity] = &Job{
		ID:         uuid.NewString(),
		Identity:   identity,
		VideoPath:  videoPath,
		Status:     StatusPending,
		EnqueuedAt: time.Now(),
	}
	log.Info("queued %s", identity)
	return true
}

// Pending returns the number of jobs waiting to run.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, job := range q.jobs {
		if job.Status == StatusPending {
			n++
		}
	}
	return n
}

// Jobs returns a snapshot of all known jobs in enqueue order.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshot := make([]Job, 0, len(q.order))
	for _, identity := range q.order {
		if job, ok := q.jobs[identity]; ok {
			snapshot = append(snapshot, *job)
		}
	}
	return snapshot
}

// Drain processes pending jobs until the queue is empty or ctx is
// cancelled. Each run resumes from its checkpoint when one exists.
func (q *Queue) Drain(ctx context.Context) {
	for {
		job := q.next()
		if job == nil {
			return
		}
		if ctx.Err() != nil {
			q.setStatus(job.Identity, StatusPending, "")
			return
		}
		q.process(ctx, job)
	}
}

func (q *Queue) next() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, identity := range q.order {
		job, ok := q.jobs[identity]
		if !ok || job.Status != StatusPending {
			continue
		}
		job.Status = StatusRunning
		clone := *job
		return &clone
	}
	return nil
}

func (q *Queue) setStatus(identity string, status Status, errText string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job, ok := q.jobs[identity]; ok {
		job.Status = status
		job.Error = errText
	}
}

func (q *Queue) process(ctx context.Context, job *Job) {
	var runID string
	if q.history != nil {
		id, err := q.history.StartRun(ctx, job.Identity, job.VideoPath)
		if err != nil {
			log.Warn("run history unavailable: %v", err)
		} else {
			runID = id
		}
	}

	result, err := q.runner.Run(ctx, job.VideoPath, true)
	if err != nil {
		log.Error("job %s failed: %v", job.Identity, err)
		q.setStatus(job.Identity, StatusFailed, err.Error())
		if runID != "" {
			stage := string(pipeline.FailedStage(err))
			if histErr := q.history.FailRun(ctx, runID, stage, err.Error()); histErr != nil {
				log.Warn("record run failure: %v", histErr)
			}
		}
		return
	}

	q.setStatus(job.Identity, StatusDone, "")
	if runID != "" {
		histErr := q.history.FinishRun(ctx, runID, string(result.ResumedFrom),
			result.OutputPath, result.SourceLang, result.TargetLang,
			result.LineCount, result.QualityScore)
		if histErr != nil {
			log.Warn("record run success: %v", histErr)
		}
	}
}
