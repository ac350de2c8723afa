package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/chunisync/internal/adapters/submit"
	"github.com/okian/chunisync/internal/codec/payload"
	"github.com/okian/chunisync/internal/domain/dedupe"
	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/scoring"
	"github.com/okian/chunisync/pkg/logger"
	"github.com/okian/chunisync/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	poolShutdownTimeout     = 30 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Next(ctx context.Context) (model.SyncJob, bool)
}

// Annotator rates records against the chart catalog.
type Annotator interface {
	Annotate(ctx context.Context, records []model.Record) (scoring.Annotation, error)
}

// BestUpdater records a player's best plays.
type BestUpdater interface {
	UpdateBest(ctx context.Context, player string, rec model.AnnotatedRecord) (bool, error)
}

// Assembler builds the submission payload.
type Assembler interface {
	Assemble(s payload.Submission) (string, error)
}

// Submitter delivers a payload.
type Submitter interface {
	Submit(ctx context.Context, payload string) (submit.Receipt, error)
}

// StatusSink receives job state transitions.
type StatusSink interface {
	SetStatus(ctx context.Context, st model.JobStatus)
}

// Pipeline bundles the collaborators a worker drives for each job.
type Pipeline struct {
	Annotator    Annotator
	Best         BestUpdater
	Assembler    Assembler
	Submitter    Submitter
	Fingerprints dedupe.Deduper
	Status       StatusSink
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	pipeline Pipeline
	name     string
	active   *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, pipeline Pipeline, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		pipeline: pipeline,
		name:     "worker",
		active:   new(atomic.Int64),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run pulls jobs until ctx is canceled, Shutdown is called or the queue is
// closed and drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	pullCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.shutdown:
			cancel()
		case <-pullCtx.Done():
		}
	}()

	for {
		job, ok := w.queue.Next(pullCtx)
		if !ok {
			return
		}
		w.Process(ctx, job)
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Process runs one job through the pipeline and reports its final status.
func (w *InMemoryWorker) Process(ctx context.Context, job model.SyncJob) model.JobStatus { //nolint:gocritic // hugeParam: jobs travel by value
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	w.report(ctx, model.JobStatus{ID: job.ID, State: model.JobProcessing})

	st, err := w.run(ctx, job)
	if err != nil {
		metrics.RecordJobFailed()
		metrics.RecordErrorByComponent("worker", errorType(err))
		w.logger.Error(ctx, "sync job failed",
			logger.String("job_id", job.ID),
			logger.String("player", job.Player.Name),
			logger.Error(err),
		)
		st = model.JobStatus{ID: job.ID, State: model.JobFailed, Checksum: st.Checksum, Error: err.Error()}
	}
	w.report(ctx, st)
	return st
}

func (w *InMemoryWorker) run(ctx context.Context, job model.SyncJob) (model.JobStatus, error) { //nolint:gocritic // hugeParam: jobs travel by value
	p := w.pipeline

	ann, err := p.Annotator.Annotate(ctx, job.Best)
	if err != nil {
		return model.JobStatus{}, fmt.Errorf("annotate: %w", err)
	}
	metrics.RecordRecordsAnnotated("rated", ann.Rated)
	metrics.RecordRecordsAnnotated("estimated", ann.Estimated)
	metrics.RecordRecordsAnnotated("skipped", ann.Skipped)

	if p.Best != nil {
		w.updateBest(ctx, job.Player.Name, ann.Records)
	}

	asmStart := time.Now()
	body, err := p.Assembler.Assemble(payload.Submission{
		Player:  job.Player,
		Best:    ann.Records,
		Courses: job.Courses,
		Recent:  job.Recent,
	})
	if err != nil {
		return model.JobStatus{}, fmt.Errorf("assemble: %w", err)
	}
	metrics.RecordPayloadLatency(float64(time.Since(asmStart).Milliseconds()))
	metrics.RecordPayloadBytes(len(body))

	checksum := body[len(body)-payload.ChecksumWidth:]
	st := model.JobStatus{ID: job.ID, Checksum: checksum}

	fp := dedupe.Fingerprint(job.Player.Name, checksum)
	if p.Fingerprints != nil && p.Fingerprints.SeenAndRecord(ctx, fp) {
		metrics.RecordPayloadDuplicate()
		w.logger.Info(ctx, "payload already submitted",
			logger.String("job_id", job.ID),
			logger.String("checksum", checksum),
		)
		st.State = model.JobDuplicate
		return st, nil
	}

	receipt, err := p.Submitter.Submit(ctx, body)
	if err != nil {
		if p.Fingerprints != nil {
			p.Fingerprints.Unrecord(ctx, fp)
		}
		return st, fmt.Errorf("submit: %w", err)
	}

	metrics.RecordJobProcessed()
	w.logger.Info(ctx, "sync job submitted",
		logger.String("job_id", job.ID),
		logger.String("player", job.Player.Name),
		logger.Int("records", len(ann.Records)),
		logger.String("task_id", receipt.TaskID),
	)
	st.State = model.JobSubmitted
	st.TaskID = receipt.TaskID
	return st, nil
}

func (w *InMemoryWorker) updateBest(ctx context.Context, player string, records []model.AnnotatedRecord) {
	for _, r := range records {
		if r.InternalLevel == nil {
			continue
		}
		if _, err := w.pipeline.Best.UpdateBest(ctx, player, r); err != nil {
			metrics.RecordErrorByComponent("worker", "best_store")
			w.logger.Warn(ctx, "best store update failed",
				logger.String("player", player),
				logger.String("title", r.Title),
				logger.Error(err),
			)
		}
	}
}

func (w *InMemoryWorker) report(ctx context.Context, st model.JobStatus) {
	if w.pipeline.Status != nil {
		w.pipeline.Status.SetStatus(ctx, st)
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, submit.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, submit.ErrRejected):
		return "rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "pipeline"
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. workerCount < 1 picks a size from the
// number of CPUs.
func NewPool(workerCount int, queue Queue, pipeline Pipeline) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	active := new(atomic.Int64)
	for i := 0; i < workerCount; i++ {
		w := NewInMemoryWorker(queue, pipeline, WithName("worker-"+strconv.Itoa(i)))
		w.active = active
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
