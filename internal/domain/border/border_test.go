package border_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/chunisync/internal/domain/border"
	"github.com/okian/chunisync/internal/domain/types"
)

func u32(v uint32) *uint32 { return &v }

func TestCompute(t *testing.T) {
	Convey("Given a 2000 note chart", t, func() {
		mc := u32(2000)

		Convey("Then the SS border allows seven misses", func() {
			b, err := border.Compute(mc, types.RankSS)
			So(err, ShouldBeNil)
			So(b.Tolerance, ShouldEqual, 2000)
			So(b.Miss, ShouldEqual, 7)
			So(b.Attack, ShouldEqual, 35-14)
			So(b.Justice, ShouldEqual, 2000-51*21-101*7)
		})

		Convey("Then every rank matches the expected table", func() {
			got, err := border.All(mc)
			So(err, ShouldBeNil)
			want := []border.Border{
				{Rank: types.RankSSSPlus, Tolerance: 200, Justice: 47, Attack: 3, Miss: 0},
				{Rank: types.RankSSS, Tolerance: 500, Justice: 92, Attack: 8, Miss: 0},
				{Rank: types.RankSSPlus, Tolerance: 1000, Justice: 136, Attack: 11, Miss: 3},
				{Rank: types.RankSS, Tolerance: 2000, Justice: 222, Attack: 21, Miss: 7},
				{Rank: types.RankSPlus, Tolerance: 4000, Justice: 242, Attack: 42, Miss: 16},
				{Rank: types.RankS, Tolerance: 7000, Justice: 303, Attack: 62, Miss: 35},
			}
			So(cmp.Diff(want, got), ShouldBeEmpty)
		})

		Convey("Then tolerance for S floors the 3.5 factor", func() {
			b, err := border.Compute(u32(1001), types.RankS)
			So(err, ShouldBeNil)
			So(b.Tolerance, ShouldEqual, 3503)
		})

		Convey("Then ranks below S are rejected", func() {
			_, err := border.Compute(mc, types.RankAAA)
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
		})
	})

	Convey("Given a chart without note data", t, func() {
		_, err := border.Compute(nil, types.RankSS)
		So(errors.Is(err, types.ErrMissingChartData), ShouldBeTrue)
		_, err = border.All(u32(0))
		So(errors.Is(err, types.ErrMissingChartData), ShouldBeTrue)
		_, err = border.Deduction(nil)
		So(errors.Is(err, types.ErrMissingChartData), ShouldBeTrue)
	})

	Convey("Borders never go negative", t, func() {
		for mc := uint32(1); mc <= 4000; mc += 7 {
			all, err := border.All(u32(mc))
			So(err, ShouldBeNil)
			for _, b := range all {
				So(b.Justice, ShouldBeGreaterThanOrEqualTo, 0)
				So(b.Attack, ShouldBeGreaterThanOrEqualTo, 0)
			}
		}
	})
}

func TestDeduction(t *testing.T) {
	Convey("Given a 2000 note chart", t, func() {
		d, err := border.Deduction(u32(2000))
		So(err, ShouldBeNil)
		So(d.Justice.String(), ShouldEqual, "5")
		So(d.Attack.String(), ShouldEqual, "255")
		So(d.Miss.String(), ShouldEqual, "505")
	})

	Convey("Given a 1234 note chart", t, func() {
		d, err := border.Deduction(u32(1234))
		So(err, ShouldBeNil)
		So(d.Justice.String(), ShouldEqual, "8.1")
		So(d.Attack.String(), ShouldEqual, "413.29")
		So(d.Miss.String(), ShouldEqual, "818.47")
	})

	Convey("Ranks are listed best first", t, func() {
		So(border.Ranks()[0], ShouldEqual, types.RankSSSPlus)
		So(border.Ranks()[5], ShouldEqual, types.RankS)
	})
}
