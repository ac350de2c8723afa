package loadgen_test

import (
	"testing"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/types"
	"github.com/okian/chunisync/internal/loadgen"
)

func testCharts(n int) []model.Chart {
	charts := make([]model.Chart, n)
	for i := range charts {
		lv := decimal.New(int64(120+i%30), -1)
		mc := uint32(1000 + 10*i)
		charts[i] = model.Chart{SongID: i + 1, Difficulty: types.Master, Level: "13", InternalLevel: &lv, MaxCombo: &mc}
	}
	return charts
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		gen := loadgen.NewGenerator(42, 5, 20, nil)

		Convey("Then it creates the requested players", func() {
			names := gen.Players()
			So(len(names), ShouldEqual, 5)
			seen := map[string]bool{}
			for _, n := range names {
				So(n, ShouldNotBeBlank)
				So(len(n), ShouldBeLessThanOrEqualTo, 8)
				seen[n] = true
			}
			So(len(seen), ShouldEqual, 5)
		})

		Convey("Then generated jobs are valid", func() {
			jobs := gen.Generate(25)
			So(len(jobs), ShouldEqual, 25)
			ids := map[string]bool{}
			for _, job := range jobs {
				So(job.Validate(), ShouldBeNil)
				So(len(job.Best), ShouldBeGreaterThan, 0)
				So(len(job.Best), ShouldBeLessThanOrEqualTo, 20)
				So(len(job.Recent), ShouldBeLessThanOrEqualTo, model.MaxRecent)
				for _, r := range job.Best {
					So(r.SongID, ShouldNotBeNil)
					So(r.Score, ShouldBeBetweenOrEqual, 800_000, types.MaxScore)
				}
				ids[job.ID] = true
			}
			So(len(ids), ShouldEqual, 25)
		})

		Convey("Then jobs are spread round-robin over players", func() {
			jobs := gen.Generate(10)
			So(jobs[0].Player.Name, ShouldEqual, jobs[5].Player.Name)
			So(jobs[0].Player.Name, ShouldNotEqual, jobs[1].Player.Name)
		})

		Convey("Then the same seed yields the same jobs", func() {
			again := loadgen.NewGenerator(42, 5, 20, nil)
			So(again.Generate(3), ShouldResemble, gen.Generate(3))
		})

		Convey("Then a prefix replaces the job id stem", func() {
			job := gen.WithPrefix("bench").Job(7)
			So(job.ID, ShouldEqual, "bench-000007")
		})
	})

	Convey("Given a generator over a chart catalog", t, func() {
		charts := testCharts(10)
		gen := loadgen.NewGenerator(7, 2, 30, charts)

		Convey("Then records only reference catalog charts once per job", func() {
			known := map[model.ChartKey]bool{}
			for _, c := range charts {
				known[c.Key()] = true
			}
			job := gen.Job(0)
			seen := map[model.ChartKey]bool{}
			for _, r := range job.Best {
				key, ok := r.ChartKey()
				So(ok, ShouldBeTrue)
				So(known[key], ShouldBeTrue)
				So(seen[key], ShouldBeFalse)
				seen[key] = true
			}
		})
	})
}
