package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/chunisync/internal/app"
	jobqueue "github.com/okian/chunisync/internal/adapters/mq/queue"
	"github.com/okian/chunisync/internal/adapters/submit"
	"github.com/okian/chunisync/internal/codec/payload"
	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/scoring"
	"github.com/okian/chunisync/internal/domain/types"
	"github.com/okian/chunisync/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type blockingSubmitter struct {
	release chan struct{}
	mu      sync.Mutex
	n       int
}

func (b *blockingSubmitter) Submit(ctx context.Context, body string) (submit.Receipt, error) {
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return submit.Receipt{}, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	return submit.Receipt{TaskID: fmt.Sprintf("t%d", b.n)}, nil
}

func intPtr(v int) *int { return &v }

func syncJob(id string, score uint32) model.SyncJob {
	return model.SyncJob{
		ID:     id,
		Player: model.PlayerSnapshot{Name: "PLAYER", Level: 99, Rating: decimal.RequireFromString("16.5")},
		Best: []model.Record{{
			Kind: model.KindBasic, Title: "song", Difficulty: types.Master,
			Score: score, ClearLamp: types.ClearClear, SongID: intPtr(10),
		}},
	}
}

func chart() model.Chart {
	lv := decimal.RequireFromString("14.5")
	return model.Chart{SongID: 10, Difficulty: types.Master, Level: "14+", InternalLevel: &lv}
}

func waitFor(svc *service.Service, id string, state model.JobState) model.JobStatus {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := svc.JobStatus(context.Background(), id); ok && st.State == state {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	st, _ := svc.JobStatus(context.Background(), id)
	return st
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(8), service.WithDedupeSize(100))

		Convey("Then operations needing workers fail before Start", func() {
			_, _, err := svc.SubmitJob(ctx, syncJob("a", 1_000_000))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.BestTop(ctx, "PLAYER", 10)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.BestRank(ctx, "PLAYER", chart().Key())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.BestCount(ctx, "PLAYER")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("When started and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			svc.Stop(ctx)

			Convey("Then it reports stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_SubmitJob(t *testing.T) {
	Convey("Given a started service with a chart catalog", t, func() {
		ctx := context.Background()
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithCharts(chart()),
			service.WithSubmitter(&blockingSubmitter{}),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When a job is submitted", func() {
			st, dup, err := svc.SubmitJob(ctx, syncJob("job-1", 1_007_500))
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)
			So(st.State, ShouldEqual, model.JobQueued)

			Convey("Then it is processed and the best store is updated", func() {
				final := waitFor(svc, "job-1", model.JobSubmitted)
				So(final.State, ShouldEqual, model.JobSubmitted)
				So(final.TaskID, ShouldEqual, "t1")

				top, err := svc.BestTop(ctx, "PLAYER", 5)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 1)
				So(top[0].Record.PlayRating.String(), ShouldEqual, "16.5")

				e, err := svc.BestRank(ctx, "PLAYER", chart().Key())
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 1)
				n, err := svc.BestCount(ctx, "PLAYER")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})

			Convey("Then resubmitting the id is reported as duplicate", func() {
				waitFor(svc, "job-1", model.JobSubmitted)
				again, dup, err := svc.SubmitJob(ctx, syncJob("job-1", 1_007_500))
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
				So(again.ID, ShouldEqual, "job-1")
			})
		})

		Convey("When a job has no id", func() {
			st, _, err := svc.SubmitJob(ctx, syncJob("", 1_000_000))

			Convey("Then one is generated", func() {
				So(err, ShouldBeNil)
				So(st.ID, ShouldHaveLength, 36)
			})
		})

		Convey("When a job is invalid", func() {
			bad := syncJob("bad", 1_000_000)
			bad.Player.Name = ""
			_, _, err := svc.SubmitJob(ctx, bad)

			Convey("Then ErrInvalidInput is returned and the id stays free", func() {
				So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
				_, ok := svc.JobStatus(ctx, "bad")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the payload is built directly", func() {
			body, err := svc.BuildPayload(ctx, syncJob("x", 1_000_000))

			Convey("Then it verifies", func() {
				So(err, ShouldBeNil)
				So(payload.Verify(body), ShouldBeNil)
			})
		})
	})
}

func TestService_Report(t *testing.T) {
	Convey("Given a service with one rated chart", t, func() {
		ctx := context.Background()
		job := syncJob("", 1_007_500)
		job.Best = append(job.Best, model.Record{
			Kind: model.KindBasic, Title: "unknown", Difficulty: types.Expert,
			Score: 1_000_000, ClearLamp: types.ClearClear, SongID: intPtr(99),
		})
		job.Recent = []model.Record{job.Best[0]}

		Convey("When the default policy estimates unknown charts", func() {
			svc := service.New(service.WithCharts(chart()))
			rep, err := svc.Report(ctx, job)

			Convey("Then both records are ranked and the estimate is flagged", func() {
				So(err, ShouldBeNil)
				So(rep.Best, ShouldHaveLength, 2)
				So(rep.Best[0].PlayRating.String(), ShouldEqual, "16.5")
				So(rep.Recent, ShouldHaveLength, 1)
				So(rep.Summary.Count, ShouldEqual, 2)
				So(rep.Summary.Estimated, ShouldBeTrue)
			})
		})

		Convey("When unknown charts are skipped", func() {
			svc := service.New(service.WithCharts(chart()), service.WithMissingLevelPolicy(scoring.PolicySkip))
			rep, err := svc.Report(ctx, job)

			Convey("Then only the rated chart counts", func() {
				So(err, ShouldBeNil)
				So(rep.Best, ShouldHaveLength, 1)
				So(rep.Summary.Estimated, ShouldBeFalse)
				So(rep.PlayerRating.String(), ShouldEqual, "0.66")
			})
		})

		Convey("When unknown charts fail", func() {
			svc := service.New(service.WithCharts(chart()), service.WithMissingLevelPolicy(scoring.PolicyFail))
			_, err := svc.Report(ctx, job)
			So(errors.Is(err, types.ErrMissingChartData), ShouldBeTrue)
		})

		Convey("When the job is invalid", func() {
			svc := service.New()
			bad := job
			bad.Player.Name = ""
			_, err := svc.Report(ctx, bad)
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestService_Backpressure(t *testing.T) {
	Convey("Given a service whose single worker is blocked", t, func() {
		ctx := context.Background()
		sub := &blockingSubmitter{release: make(chan struct{})}
		svc := service.New(service.WithWorkerCount(1), service.WithQueueSize(1), service.WithSubmitter(sub))
		So(svc.Start(ctx), ShouldBeNil)

		_, _, err := svc.SubmitJob(ctx, syncJob("j1", 1_000_000))
		So(err, ShouldBeNil)
		waitFor(svc, "j1", model.JobProcessing)
		_, _, err = svc.SubmitJob(ctx, syncJob("j2", 1_000_100))
		So(err, ShouldBeNil)

		Convey("When the queue is full", func() {
			_, _, err := svc.SubmitJob(ctx, syncJob("j3", 1_000_200))

			Convey("Then the job is refused and its id can be retried", func() {
				So(errors.Is(err, jobqueue.ErrFull), ShouldBeTrue)
				_, ok := svc.JobStatus(ctx, "j3")
				So(ok, ShouldBeFalse)

				close(sub.release)
				So(waitFor(svc, "j2", model.JobSubmitted).State, ShouldEqual, model.JobSubmitted)
				_, dup, err := svc.SubmitJob(ctx, syncJob("j3", 1_000_200))
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
			})
		})

		Reset(func() {
			select {
			case <-sub.release:
			default:
				close(sub.release)
			}
			svc.Stop(ctx)
		})
	})
}

func TestJobTracker(t *testing.T) {
	Convey("Given a bounded tracker", t, func() {
		ctx := context.Background()
		tr := service.NewJobTracker(2)
		tr.SetStatus(ctx, model.JobStatus{ID: "a", State: model.JobQueued})
		tr.SetStatus(ctx, model.JobStatus{ID: "b", State: model.JobQueued})
		tr.SetStatus(ctx, model.JobStatus{ID: "a", State: model.JobSubmitted})
		tr.SetStatus(ctx, model.JobStatus{ID: "c", State: model.JobFailed})

		Convey("Then updates keep position and the oldest job is evicted", func() {
			_, ok := tr.Status(ctx, "a")
			So(ok, ShouldBeFalse)
			b, ok := tr.Status(ctx, "b")
			So(ok, ShouldBeTrue)
			So(b.State, ShouldEqual, model.JobQueued)
			So(tr.Counts(), ShouldResemble, map[model.JobState]int{model.JobQueued: 1, model.JobFailed: 1})
		})

		Convey("Then forgotten jobs disappear", func() {
			tr.Forget(ctx, "c")
			_, ok := tr.Status(ctx, "c")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestParseRegion(t *testing.T) {
	Convey("Region names map onto payload regions", t, func() {
		r, err := service.ParseRegion("intl")
		So(err, ShouldBeNil)
		So(r, ShouldEqual, payload.RegionIntl)
		r, _ = service.ParseRegion("")
		So(r, ShouldEqual, payload.RegionJapan)
		_, err = service.ParseRegion("eu")
		So(err, ShouldNotBeNil)
	})
}
