// Package service wires the chart catalog, best store, queue, worker pool and
// submitter into the operations the HTTP API exposes.
package service

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"

	jobqueue "github.com/okian/chunisync/internal/adapters/mq/queue"
	workerpool "github.com/okian/chunisync/internal/adapters/mq/worker"
	repository "github.com/okian/chunisync/internal/adapters/repository"
	"github.com/okian/chunisync/internal/adapters/submit"
	"github.com/okian/chunisync/internal/codec/payload"
	"github.com/okian/chunisync/internal/domain/dedupe"
	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/scoring"
	"github.com/okian/chunisync/pkg/logger"
	"github.com/okian/chunisync/pkg/metrics"
)

// ErrNotStarted is returned by operations that need the worker pool. It
// wraps jobqueue.ErrClosed so callers treat it as unavailability.
var ErrNotStarted = fmt.Errorf("service not started: %w", jobqueue.ErrClosed)

// Service implements the API dependencies for the sync system.
type Service struct {
	mu sync.RWMutex

	charts       *repository.ChartStore
	best         *repository.TreapStore
	jobIDs       dedupe.Deduper
	fingerprints dedupe.Deduper
	queue        *jobqueue.InMemoryQueue
	pool         *workerpool.Pool
	annotator    *scoring.Annotator
	assembler    *payload.Assembler
	submitter    workerpool.Submitter
	tracker      *JobTracker

	workerCount int
	queueSize   int
	dedupeSize  int
	region      payload.Region
	policy      scoring.MissingLevelPolicy
	initCharts  []model.Chart

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the job id, fingerprint and status caches.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCharts seeds the chart catalog.
func WithCharts(charts ...model.Chart) Option {
	return func(s *Service) {
		s.initCharts = append(s.initCharts, charts...)
	}
}

// WithSubmitter sets where payloads go. The default is a dry run.
func WithSubmitter(sub workerpool.Submitter) Option {
	return func(s *Service) {
		if sub != nil {
			s.submitter = sub
		}
	}
}

// WithMissingLevelPolicy sets how records on charts without a known constant
// are annotated. The default is scoring.PolicyEstimate.
func WithMissingLevelPolicy(p scoring.MissingLevelPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithPayloadRegion sets the region written into payload headers.
func WithPayloadRegion(r payload.Region) Option {
	return func(s *Service) {
		s.region = r
	}
}

// ParseRegion maps jp, intl and paralost onto payload regions.
func ParseRegion(name string) (payload.Region, error) {
	switch strings.ToLower(name) {
	case "jp", "":
		return payload.RegionJapan, nil
	case "intl":
		return payload.RegionIntl, nil
	case "paralost":
		return payload.RegionParalost, nil
	default:
		return 0, fmt.Errorf("region %q: %w", name, payload.ErrInvalidInput)
	}
}

// New constructs a new Service. Stores are usable immediately; Start launches
// the worker pool.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		dedupeSize:  50_000,
		region:      payload.RegionJapan,
		policy:      scoring.PolicyEstimate,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.submitter == nil {
		s.submitter = submit.NewNopSubmitter()
	}

	s.charts = repository.NewChartStore(s.initCharts...)
	s.initCharts = nil
	s.annotator = scoring.NewAnnotator(s.charts, scoring.WithPolicy(s.policy))
	s.assembler = payload.New(payload.WithRegion(s.region))
	s.jobIDs = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.fingerprints = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.tracker = NewJobTracker(s.dedupeSize)
	return s
}

// Start creates the best store and queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting sync service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.best = repository.NewTreapStore(runCtx)
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.Pipeline{
		Annotator:    s.annotator,
		Best:         s.best,
		Assembler:    s.assembler,
		Submitter:    s.submitter,
		Fingerprints: s.fingerprints,
		Status:       s.tracker,
	})
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "sync service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("charts", s.charts.Len()),
	)
	return nil
}

// Stop drains queued jobs and shuts the service down.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping sync service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	_ = s.best.Close()
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "sync service stopped")
}

// LoadCharts adds charts to the catalog.
func (s *Service) LoadCharts(charts ...model.Chart) {
	s.charts.Put(charts...)
}

// Chart looks up catalog metadata.
func (s *Service) Chart(key model.ChartKey) (model.Chart, bool) {
	return s.charts.Chart(key)
}

// SubmitJob validates and queues a sync job. A missing id is generated.
// duplicate is true when the id was already accepted; the returned status is
// then the one already on record.
func (s *Service) SubmitJob(ctx context.Context, job model.SyncJob) (st model.JobStatus, duplicate bool, err error) { //nolint:gocritic // hugeParam: jobs travel by value
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.JobStatus{}, false, ErrNotStarted
	}

	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if err := job.Validate(); err != nil {
		return model.JobStatus{}, false, err
	}

	if s.jobIDs.SeenAndRecord(ctx, job.ID) {
		metrics.RecordJobDuplicate()
		s.logger.Debug(ctx, "duplicate job", logger.String("job_id", job.ID))
		st, ok := s.tracker.Status(ctx, job.ID)
		if !ok {
			st = model.JobStatus{ID: job.ID, State: model.JobDuplicate}
		}
		return st, true, nil
	}

	queued := model.JobStatus{ID: job.ID, State: model.JobQueued}
	s.tracker.SetStatus(ctx, queued)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.jobIDs.Unrecord(ctx, job.ID)
		s.tracker.Forget(ctx, job.ID)
		return model.JobStatus{}, false, err
	}
	metrics.RecordJobAccepted()
	s.logger.Debug(ctx, "job queued",
		logger.String("job_id", job.ID),
		logger.String("player", job.Player.Name),
		logger.Int("best", len(job.Best)),
	)
	return queued, false, nil
}

// JobStatus returns the latest known status of a job.
func (s *Service) JobStatus(ctx context.Context, id string) (model.JobStatus, bool) {
	return s.tracker.Status(ctx, id)
}

// BestTop returns a player's top-n best plays.
func (s *Service) BestTop(ctx context.Context, player string, n int) ([]repository.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.best.TopN(ctx, player, n)
}

// BestRank returns the entry of one chart in a player's best list.
func (s *Service) BestRank(ctx context.Context, player string, key model.ChartKey) (repository.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return repository.Entry{}, ErrNotStarted
	}
	return s.best.Rank(ctx, player, key)
}

// BestCount returns how many charts are tracked for a player.
func (s *Service) BestCount(ctx context.Context, player string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return 0, ErrNotStarted
	}
	return s.best.Count(ctx, player), nil
}

// BuildPayload annotates the job's best records and assembles its payload
// without queueing or submitting it.
func (s *Service) BuildPayload(ctx context.Context, job model.SyncJob) (string, error) { //nolint:gocritic // hugeParam: jobs travel by value
	ann, err := s.annotator.Annotate(ctx, job.Best)
	if err != nil {
		return "", err
	}
	return s.assembler.Assemble(payload.Submission{
		Player:  job.Player,
		Best:    ann.Records,
		Courses: job.Courses,
		Recent:  job.Recent,
	})
}

// Report annotates the job's bests and recent plays and summarizes the player
// rating without queueing anything.
func (s *Service) Report(ctx context.Context, job model.SyncJob) (scoring.Report, error) { //nolint:gocritic // hugeParam: jobs travel by value
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if err := job.Validate(); err != nil {
		return scoring.Report{}, err
	}
	best, err := s.annotator.Annotate(ctx, job.Best)
	if err != nil {
		return scoring.Report{}, err
	}
	recent, err := s.annotator.Annotate(ctx, job.Recent)
	if err != nil {
		return scoring.Report{}, err
	}
	return scoring.BuildReport(best.Records, recent.Records), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"charts":      s.charts.Len(),
		"seenJobs":    s.jobIDs.Size(),
		"seenPayload": s.fingerprints.Size(),
	}
	jobs := make(map[string]int)
	for state, n := range s.tracker.Counts() {
		jobs[string(state)] = n
	}
	stats["jobs"] = jobs

	if s.started {
		queueLen := s.queue.Len(ctx)
		players := s.best.Players(ctx)
		stats["queueLength"] = queueLen
		stats["players"] = players

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateBestStorePlayers(players)
	}
	return stats
}
