package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/pkg/logger"
)

const (
	pollInterval = 200 * time.Millisecond
	percent      = 100
)

// ErrInconsistent is returned when a best board fails verification.
var ErrInconsistent = errors.New("inconsistent best board")

// Run executes a complete load run: health check, generation, concurrent
// submission, optional polling and best-board verification.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Named("loadgen")
	stats := &Stats{StartTime: time.Now(), States: map[model.JobState]int{}}

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("jobs", cfg.Jobs),
		logger.Int("players", cfg.Players),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", int64(cfg.Seed)),
	)

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	gen := NewGenerator(cfg.Seed, cfg.Players, cfg.Records, cfg.Charts).WithPrefix(cfg.JobPrefix)
	jobs := gen.Generate(cfg.Jobs)
	stats.JobsGenerated = len(jobs)

	accepted, err := submitJobs(ctx, cfg, client, jobs, stats)
	if err != nil {
		return stats, fmt.Errorf("job submission failed: %w", err)
	}

	if cfg.Wait > 0 && len(accepted) > 0 {
		if err := awaitJobs(ctx, cfg, client, accepted, stats); err != nil {
			log.Warn(ctx, "jobs did not settle", logger.Error(err))
		}
	}

	if cfg.TopN > 0 {
		if err := verifyBoards(ctx, cfg, client, gen.Players(), stats); err != nil {
			return stats, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logFinalStats(ctx, log, stats)
	return stats, nil
}

// submitJobs posts every job with at most cfg.Workers in flight and returns
// the ids of accepted jobs.
func submitJobs(ctx context.Context, cfg *Config, client *Client, jobs []model.SyncJob, stats *Stats) ([]string, error) {
	log := logger.Named("loadgen")
	var (
		submitted, acc, dup, rejected, failed atomic.Int64

		mu  sync.Mutex
		ids = make([]string, 0, len(jobs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i := range jobs {
		job := jobs[i]
		g.Go(func() error {
			outcome, err := client.PostJob(gctx, job)
			submitted.Add(1)
			switch outcome {
			case OutcomeAccepted:
				acc.Add(1)
				mu.Lock()
				ids = append(ids, job.ID)
				mu.Unlock()
			case OutcomeDuplicate:
				dup.Add(1)
			case OutcomeRejected:
				rejected.Add(1)
			default:
				failed.Add(1)
				if cfg.Verbose {
					log.Warn(gctx, "job failed", logger.String("id", job.ID), logger.Error(err))
				}
			}
			return gctx.Err()
		})
	}
	err := g.Wait()

	stats.JobsSubmitted = int(submitted.Load())
	stats.JobsAccepted = int(acc.Load())
	stats.JobsDuplicate = int(dup.Load())
	stats.JobsRejected = int(rejected.Load())
	stats.JobsFailed = int(failed.Load())
	return ids, err
}

func terminal(s model.JobState) bool {
	return s == model.JobSubmitted || s == model.JobDuplicate || s == model.JobFailed
}

// awaitJobs polls job statuses until all are terminal or cfg.Wait elapses.
func awaitJobs(ctx context.Context, cfg *Config, client *Client, ids []string, stats *Stats) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Wait)
	defer cancel()

	pending := ids
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var (
			mu   sync.Mutex
			next []string
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(cfg.Workers, 1))
		for _, id := range pending {
			g.Go(func() error {
				st, err := client.JobStatus(gctx, id)
				mu.Lock()
				defer mu.Unlock()
				if err != nil || !terminal(st.State) {
					next = append(next, id)
					return nil
				}
				stats.States[st.State]++
				return nil
			})
		}
		_ = g.Wait()

		pending = next
		if len(pending) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d jobs still pending: %w", len(pending), ctx.Err())
		case <-ticker.C:
		}
	}
}

// verifyBoards checks that each player's best board is ranked 1..n with no
// gaps and no more than TopN entries.
func verifyBoards(ctx context.Context, cfg *Config, client *Client, players []string, stats *Stats) error {
	for _, p := range players {
		entries, err := client.Best(ctx, p, cfg.TopN)
		if err != nil {
			return fmt.Errorf("best board of %s: %w", p, err)
		}
		if err := verifyBoard(entries, cfg.TopN); err != nil {
			return fmt.Errorf("player %s: %w", p, err)
		}
		stats.PlayersChecked++
		stats.BestEntries += len(entries)
	}
	return nil
}

func verifyBoard(entries []BestEntry, limit int) error {
	if len(entries) > limit {
		return fmt.Errorf("%d entries above limit %d: %w", len(entries), limit, ErrInconsistent)
	}
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d: %w", i, e.Rank, ErrInconsistent)
		}
	}
	return nil
}

func logFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate, jobsPerSecond float64
	if stats.JobsSubmitted > 0 {
		acceptRate = float64(stats.JobsAccepted) / float64(stats.JobsSubmitted) * percent
	}
	if stats.Duration > 0 {
		jobsPerSecond = float64(stats.JobsSubmitted) / stats.Duration.Seconds()
	}

	fields := []logger.Field{
		logger.Int("jobsGenerated", stats.JobsGenerated),
		logger.Int("jobsSubmitted", stats.JobsSubmitted),
		logger.Int("jobsAccepted", stats.JobsAccepted),
		logger.Int("jobsDuplicate", stats.JobsDuplicate),
		logger.Int("jobsRejected", stats.JobsRejected),
		logger.Int("jobsFailed", stats.JobsFailed),
		logger.Int("playersChecked", stats.PlayersChecked),
		logger.Int("bestEntries", stats.BestEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("jobsPerSecond", jobsPerSecond),
	}
	for state, n := range stats.States {
		fields = append(fields, logger.Int("state_"+string(state), n))
	}
	log.Info(ctx, "final statistics", fields...)
}
