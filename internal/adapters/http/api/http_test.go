package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/chunisync/internal/adapters/http/api"
	"github.com/okian/chunisync/internal/adapters/mq/queue"
	"github.com/okian/chunisync/internal/adapters/repository"
	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/scoring"
	"github.com/okian/chunisync/internal/domain/types"
)

type mockDeps struct {
	charts    map[model.ChartKey]model.Chart
	statuses  map[string]model.JobStatus
	submitErr error
	submitted []model.SyncJob
	best      []repository.Entry
	bestLimit int
	payload   string
}

func (m *mockDeps) SubmitJob(_ context.Context, job model.SyncJob) (model.JobStatus, bool, error) {
	if m.submitErr != nil {
		return model.JobStatus{}, false, m.submitErr
	}
	if st, ok := m.statuses[job.ID]; ok {
		return st, true, nil
	}
	m.submitted = append(m.submitted, job)
	st := model.JobStatus{ID: job.ID, State: model.JobQueued}
	m.statuses[job.ID] = st
	return st, false, nil
}

func (m *mockDeps) JobStatus(_ context.Context, id string) (model.JobStatus, bool) {
	st, ok := m.statuses[id]
	return st, ok
}

func (m *mockDeps) BuildPayload(_ context.Context, job model.SyncJob) (string, error) {
	if job.Player.Name == "" {
		return "", types.ErrInvalidInput
	}
	return m.payload, nil
}

func (m *mockDeps) Report(_ context.Context, job model.SyncJob) (scoring.Report, error) {
	if job.Player.Name == "" {
		return scoring.Report{}, types.ErrInvalidInput
	}
	best := []model.AnnotatedRecord{
		{PlayRating: decimal.RequireFromString("16.5")},
		{PlayRating: decimal.RequireFromString("17.1")},
	}
	return scoring.BuildReport(best, nil), nil
}

func (m *mockDeps) BestTop(_ context.Context, _ string, n int) ([]repository.Entry, error) {
	m.bestLimit = n
	if n > len(m.best) {
		return m.best, nil
	}
	return m.best[:n], nil
}

func (m *mockDeps) BestRank(_ context.Context, _ string, key model.ChartKey) (repository.Entry, error) {
	for _, e := range m.best {
		if e.Chart == key {
			return e, nil
		}
	}
	return repository.Entry{}, repository.ErrNotFound
}

func (m *mockDeps) BestCount(context.Context, string) (int, error) {
	return len(m.best), nil
}

func (m *mockDeps) Chart(key model.ChartKey) (model.Chart, bool) {
	c, ok := m.charts[key]
	return c, ok
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}, 50).Register(mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder, v any) {
	So(json.NewDecoder(w.Body).Decode(v), ShouldBeNil)
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	decodeBody(w, &body)
	return body.Code
}

func newDeps() *mockDeps {
	lv := decimal.RequireFromString("14.5")
	mc := uint32(2000)
	key := model.ChartKey{SongID: 1, Difficulty: types.Master}
	unknown := model.ChartKey{SongID: 2, Difficulty: types.Master}
	return &mockDeps{
		charts: map[model.ChartKey]model.Chart{
			key:     {SongID: 1, Difficulty: types.Master, InternalLevel: &lv, MaxCombo: &mc},
			unknown: {SongID: 2, Difficulty: types.Master},
		},
		statuses: map[string]model.JobStatus{},
		payload:  "CHUNISYNC-payload-abcdef",
	}
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(newDeps())

		Convey("Then health serves the metrics registry", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats are served as JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			var stats map[string]any
			decodeBody(w, &stats)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("Then unknown routes are not found", func() {
			w := do(mux, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then wrong methods are rejected", func() {
			w := do(mux, http.MethodPost, "/v1/rating?score=1", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestCalcHandlers(t *testing.T) {
	Convey("Given the calculator routes", t, func() {
		mux := newMux(newDeps())

		Convey("When rating a score with an explicit level", func() {
			w := do(mux, http.MethodGet, "/v1/rating?score=1007500&level=14.5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Rank   string          `json:"rank"`
				Rating decimal.Decimal `json:"rating"`
			}
			decodeBody(w, &body)
			So(body.Rank, ShouldEqual, "SSS")
			So(body.Rating.Equal(decimal.RequireFromString("16.5")), ShouldBeTrue)
		})

		Convey("When rating a score by catalog chart", func() {
			w := do(mux, http.MethodGet, "/v1/rating?score=1009000&song_id=1&difficulty=MAS", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Rating decimal.Decimal `json:"rating"`
			}
			decodeBody(w, &body)
			So(body.Rating.Equal(decimal.RequireFromString("16.65")), ShouldBeTrue)
		})

		Convey("When the score is missing or out of range", func() {
			So(do(mux, http.MethodGet, "/v1/rating?level=14", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/v1/rating?score=1010001&level=14", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/v1/rating?score=abc", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the catalog chart is unknown", func() {
			w := do(mux, http.MethodGet, "/v1/rating?score=1000000&song_id=99&difficulty=MAS", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")
		})

		Convey("When asking the score required for a rating", func() {
			w := do(mux, http.MethodGet, "/v1/rating/required?rating=16.5&level=14.5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Score uint32 `json:"score"`
			}
			decodeBody(w, &body)
			So(body.Score, ShouldEqual, 1_007_500)
		})

		Convey("When the rating cannot be reached on the chart", func() {
			w := do(mux, http.MethodGet, "/v1/rating/required?rating=17&level=14.5", "")
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(errorCode(w), ShouldEqual, "unreachable")
		})

		Convey("When asking requirements across chart constants", func() {
			w := do(mux, http.MethodGet, "/v1/rating/required?rating=15&max_level=14", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Table []struct {
					InternalLevel decimal.Decimal `json:"internal_level"`
					Score         uint32          `json:"score"`
				} `json:"table"`
			}
			decodeBody(w, &body)
			So(body.Table, ShouldNotBeEmpty)
			last := body.Table[len(body.Table)-1]
			So(last.InternalLevel.Equal(decimal.NewFromInt(14)), ShouldBeTrue)
		})

		Convey("When the required rating is not positive", func() {
			So(do(mux, http.MethodGet, "/v1/rating/required?rating=0&level=14", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/v1/rating/required", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When computing overpower for a score", func() {
			w := do(mux, http.MethodGet, "/v1/overpower?score=1005000&level=14.5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Rows []struct {
					Lamp string `json:"lamp"`
				} `json:"rows"`
			}
			decodeBody(w, &body)
			So(len(body.Rows), ShouldEqual, 3)
		})

		Convey("When computing overpower without a score", func() {
			w := do(mux, http.MethodGet, "/v1/overpower?level=14.5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var rows []map[string]any
			decodeBody(w, &rows)
			So(rows, ShouldNotBeEmpty)
		})

		Convey("When the chart constant is unknown", func() {
			w := do(mux, http.MethodGet, "/v1/overpower?score=1000000&song_id=2&difficulty=MAS", "")
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(errorCode(w), ShouldEqual, "missing_chart_data")
		})

		Convey("When listing a rating table", func() {
			w := do(mux, http.MethodGet, "/v1/table?level=13.7", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var rows []struct {
				Score uint32 `json:"score"`
			}
			decodeBody(w, &rows)
			So(rows, ShouldNotBeEmpty)
			So(rows[0].Score, ShouldEqual, 1_009_000)
		})

		Convey("When computing borders from a note count", func() {
			w := do(mux, http.MethodGet, "/v1/borders?max_combo=1000", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				MaxCombo uint32           `json:"max_combo"`
				Borders  []map[string]any `json:"borders"`
			}
			decodeBody(w, &body)
			So(body.MaxCombo, ShouldEqual, 1000)
			So(body.Borders, ShouldNotBeEmpty)
		})

		Convey("When computing a single border by catalog chart", func() {
			w := do(mux, http.MethodGet, "/v1/borders?song_id=1&difficulty=MAS&rank=SSS", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Rank string `json:"rank"`
			}
			decodeBody(w, &body)
			So(body.Rank, ShouldEqual, "SSS")
		})

		Convey("When borders lack a note count", func() {
			So(do(mux, http.MethodGet, "/v1/borders", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/v1/borders?max_combo=0", "").Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(do(mux, http.MethodGet, "/v1/borders?song_id=2&difficulty=MAS", "").Code, ShouldEqual, http.StatusUnprocessableEntity)
		})
	})
}

func TestSyncHandlers(t *testing.T) {
	Convey("Given the sync routes", t, func() {
		deps := newDeps()
		mux := newMux(deps)
		job := `{"id":"job-1","player":{"name":"PLAYER"}}`

		Convey("When a job is posted", func() {
			w := do(mux, http.MethodPost, "/v1/sync", job)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var st model.JobStatus
				decodeBody(w, &st)
				So(st.ID, ShouldEqual, "job-1")
				So(st.State, ShouldEqual, model.JobQueued)
				So(len(deps.submitted), ShouldEqual, 1)
				So(deps.submitted[0].Player.Name, ShouldEqual, "PLAYER")
			})

			Convey("Then posting it again answers with its status", func() {
				again := do(mux, http.MethodPost, "/v1/sync", job)
				So(again.Code, ShouldEqual, http.StatusOK)
				So(len(deps.submitted), ShouldEqual, 1)
			})

			Convey("Then its status can be queried", func() {
				st := do(mux, http.MethodGet, "/v1/sync/job-1", "")
				So(st.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the status of an unknown job is queried", func() {
			w := do(mux, http.MethodGet, "/v1/sync/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/v1/sync", "{")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")
		})

		Convey("When the queue is full", func() {
			deps.submitErr = queue.ErrFull
			w := do(mux, http.MethodPost, "/v1/sync", job)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(errorCode(w), ShouldEqual, "backpressure")
		})

		Convey("When the pipeline is not running", func() {
			deps.submitErr = queue.ErrClosed
			w := do(mux, http.MethodPost, "/v1/sync", job)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the job is invalid", func() {
			deps.submitErr = errors.Join(errors.New("player name is required"), types.ErrInvalidInput)
			w := do(mux, http.MethodPost, "/v1/sync", job)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a payload is built", func() {
			w := do(mux, http.MethodPost, "/v1/payload", job)
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Payload  string `json:"payload"`
				Checksum string `json:"checksum"`
				Length   int    `json:"length"`
			}
			decodeBody(w, &body)
			So(body.Payload, ShouldEqual, deps.payload)
			So(body.Checksum, ShouldEqual, "abcdef")
			So(body.Length, ShouldEqual, len(deps.payload))
			So(deps.submitted, ShouldBeEmpty)
		})

		Convey("When a payload cannot be built", func() {
			w := do(mux, http.MethodPost, "/v1/payload", `{"id":"x"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a report is requested", func() {
			w := do(mux, http.MethodPost, "/v1/report", job)
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Best []struct {
					PlayRating string `json:"play_rating"`
				} `json:"best"`
				Summary struct {
					Count int    `json:"count"`
					Max   string `json:"max"`
				} `json:"summary"`
				PlayerRating string `json:"player_rating"`
			}
			decodeBody(w, &body)
			So(len(body.Best), ShouldEqual, 2)
			So(body.Best[0].PlayRating, ShouldEqual, "17.1")
			So(body.Summary.Count, ShouldEqual, 2)
			So(body.Summary.Max, ShouldEqual, "17.1")
			So(body.PlayerRating, ShouldEqual, "0.67")
			So(deps.submitted, ShouldBeEmpty)
		})

		Convey("When a report is requested for an invalid job", func() {
			w := do(mux, http.MethodPost, "/v1/report", `{"id":"x"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestPlayersHandler(t *testing.T) {
	Convey("Given a player with best entries", t, func() {
		deps := newDeps()
		for i := 1; i <= 40; i++ {
			deps.best = append(deps.best, repository.Entry{Rank: i, Player: "PLAYER"})
		}
		mux := newMux(deps)

		Convey("When the default limit is used", func() {
			w := do(mux, http.MethodGet, "/v1/players/PLAYER/best", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Player  string `json:"player"`
				Total   int    `json:"total"`
				Entries []struct {
					Rank int `json:"rank"`
				} `json:"entries"`
			}
			decodeBody(w, &body)
			So(body.Player, ShouldEqual, "PLAYER")
			So(body.Total, ShouldEqual, 40)
			So(len(body.Entries), ShouldEqual, 30)
			So(body.Entries[0].Rank, ShouldEqual, 1)
		})

		Convey("When an explicit limit is used", func() {
			w := do(mux, http.MethodGet, "/v1/players/PLAYER/best?limit=5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.bestLimit, ShouldEqual, 5)
		})

		Convey("When the limit exceeds the cap", func() {
			So(do(mux, http.MethodGet, "/v1/players/PLAYER/best?limit=51", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/v1/players/PLAYER/best?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the sort key is unknown", func() {
			w := do(mux, http.MethodGet, "/v1/players/PLAYER/best?sort=title", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")
		})

		Convey("When the player has no entries", func() {
			deps.best = nil
			w := do(mux, http.MethodGet, "/v1/players/NOBODY/best", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"entries":[]`)
		})
	})
}

func TestPlayersHandler_Sort(t *testing.T) {
	Convey("Given best entries ordered by rating", t, func() {
		deps := newDeps()
		entry := func(rank, song int, score uint32, rating string) repository.Entry {
			id := song
			return repository.Entry{
				Rank:   rank,
				Player: "PLAYER",
				Chart:  model.ChartKey{SongID: song, Difficulty: types.Master},
				Record: model.AnnotatedRecord{
					Record:     model.Record{SongID: &id, Difficulty: types.Master, Score: score},
					PlayRating: decimal.RequireFromString(rating),
				},
			}
		}
		deps.best = []repository.Entry{
			entry(1, 10, 1000000, "16.00"),
			entry(2, 11, 1009000, "15.50"),
			entry(3, 12, 1005000, "15.00"),
		}
		mux := newMux(deps)

		type body struct {
			Entries []struct {
				Rank int `json:"rank"`
			} `json:"entries"`
			Summary struct {
				Count int    `json:"count"`
				Total string `json:"total"`
			} `json:"summary"`
		}

		Convey("When sorted by score", func() {
			w := do(mux, http.MethodGet, "/v1/players/PLAYER/best?sort=score", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var b body
			decodeBody(w, &b)
			So(len(b.Entries), ShouldEqual, 3)
			So(b.Entries[0].Rank, ShouldEqual, 2)
			So(b.Entries[1].Rank, ShouldEqual, 3)
			So(b.Entries[2].Rank, ShouldEqual, 1)
			So(b.Summary.Count, ShouldEqual, 3)
			So(b.Summary.Total, ShouldEqual, "46.5")
		})

		Convey("When one chart is looked up", func() {
			deps.best[1].Record.ComboLamp = types.ComboFullCombo
			deps.best[1].Record.OverpowerBase = decimal.RequireFromString("74.5")
			deps.best[1].Record.OverpowerMax = decimal.RequireFromString("80")
			w := do(mux, http.MethodGet, "/v1/players/PLAYER/best/11/MAS", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var b struct {
				Rank       int    `json:"rank"`
				Chart      string `json:"chart"`
				Overpower  string `json:"overpower"`
				Percentage string `json:"overpower_percent"`
			}
			decodeBody(w, &b)
			So(b.Rank, ShouldEqual, 2)
			So(b.Chart, ShouldEqual, "MASTER")
			So(b.Overpower, ShouldEqual, "75")
			So(b.Percentage, ShouldEqual, "93.75")
		})

		Convey("When the chart is not on the board", func() {
			w := do(mux, http.MethodGet, "/v1/players/PLAYER/best/99/MAS", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the difficulty is unknown", func() {
			w := do(mux, http.MethodGet, "/v1/players/PLAYER/best/11/HARD", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When no sort is given the store order is kept", func() {
			w := do(mux, http.MethodGet, "/v1/players/PLAYER/best", "")
			var b body
			decodeBody(w, &b)
			So(b.Entries[0].Rank, ShouldEqual, 1)
			So(b.Entries[2].Rank, ShouldEqual, 3)
		})
	})
}
