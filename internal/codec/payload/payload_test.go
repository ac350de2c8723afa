package payload_test

import (
	"errors"
	"hash/crc32"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/chunisync/internal/codec/base62"
	"github.com/okian/chunisync/internal/codec/payload"
	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/types"
)

func intPtr(v int) *int { return &v }

func classPtr(c types.SkillClass) *types.SkillClass { return &c }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func player() model.PlayerSnapshot {
	return model.PlayerSnapshot{
		Name:      "AB",
		Level:     50,
		Rating:    decimal.RequireFromString("16.25"),
		MaxRating: decPtr("16.30"),
		PlayCount: 1234,
		Medal:     classPtr(types.ClassIII),
		Emblem:    classPtr(types.ClassII),
		Nameplate: model.Nameplate{Content: "Hi", Rarity: "gold"},
	}
}

func bestRecord() model.AnnotatedRecord {
	return model.AnnotatedRecord{Record: model.Record{
		Title:      "song",
		Difficulty: types.Basic,
		Score:      1_000_000,
		ClearLamp:  types.ClearClear,
		ComboLamp:  types.ComboFullCombo,
		SongID:     intPtr(5),
	}}
}

func TestAssemble(t *testing.T) {
	Convey("Given a player with one best record", t, func() {
		a := payload.New()
		out, err := a.Assemble(payload.Submission{Player: player(), Best: []model.AnnotatedRecord{bestRecord()}})
		So(err, ShouldBeNil)

		Convey("Then the body follows the fixed field order", func() {
			body := "06" +
				"00o" + "0QD" + "0QI" + "00Ju" + "H" + "0" + // level, rating, max rating, play count, class, team
				"1" + "4" + "0" + "3" + "0" + "000" + // titles, rarity, unused, region, battle rank, battle plays
				"02AB" + "02Hi" +
				"001S" + "005" + "4C92" + "1" + "1" +
				"000C" + "000R" + "000B" + "000O"
			So(out[:len(out)-payload.ChecksumWidth], ShouldEqual, body)
		})

		Convey("Then the trailer is the CRC-32 of everything before it", func() {
			cut := len(out) - payload.ChecksumWidth
			want, err := base62.EncodeUint(uint64(crc32.ChecksumIEEE([]byte(out[:cut]))), 6)
			So(err, ShouldBeNil)
			So(out[cut:], ShouldEqual, want)
			So(payload.Verify(out), ShouldBeNil)
		})

		Convey("Then mutating any prior byte invalidates the checksum", func() {
			cut := len(out) - payload.ChecksumWidth
			for i := 0; i < cut; i++ {
				b := []byte(out[:cut])
				if b[i] == '0' {
					b[i] = '1'
				} else {
					b[i] = '0'
				}
				sum, err := payload.Checksum(string(b))
				So(err, ShouldBeNil)
				So(sum, ShouldNotEqual, out[cut:])
				if i >= len(payload.Prologue) {
					So(errors.Is(payload.Verify(string(b)+out[cut:]), payload.ErrChecksumMismatch), ShouldBeTrue)
				}
			}
		})

		Convey("Then assembly is repeatable", func() {
			again, err := a.Assemble(payload.Submission{Player: player(), Best: []model.AnnotatedRecord{bestRecord()}})
			So(err, ShouldBeNil)
			So(again, ShouldEqual, out)
		})
	})

	Convey("Given courses and recent plays", t, func() {
		best := bestRecord()
		best.Difficulty = types.Master
		best.SongID = intPtr(20485)
		best.Score = 1_010_000
		best.ComboLamp = types.ComboAllJusticeCritical
		best.ChainLamp = types.ChainFullChainPlus
		best.ClearLamp = types.ClearCatastrophe

		out, err := payload.New(payload.WithRegion(payload.RegionIntl)).Assemble(payload.Submission{
			Player: player(),
			Best:   []model.AnnotatedRecord{best},
			Courses: []model.CourseRecord{
				{ID: 7, Score: 3_030_000, ClearLamp: types.ClearHard, ComboLamp: types.ComboAllJusticeCritical},
			},
			Recent: []model.Record{{Difficulty: types.Expert, Score: 990_000, SongID: intPtr(1)}},
		})
		So(err, ShouldBeNil)
		So(payload.Verify(out), ShouldBeNil)

		Convey("Then the composite index wraps song ids per tier", func() {
			idx, _ := base62.EncodeUint(5+3*20480, 3)
			So(out, ShouldContainSubstring, "001S"+idx)
		})

		Convey("Then lamps are folded into flags", func() {
			score, _ := base62.EncodeUint(1_010_000, 4)
			flags, _ := base62.EncodeUint(payload.FlagAllJusticeCritical|payload.FlagFullChainPlus, 1)
			So(out, ShouldContainSubstring, score+flags+"5")
		})

		Convey("Then course records carry folded all-justice", func() {
			courseScore, _ := base62.EncodeUint(3_030_000, 4)
			So(out, ShouldContainSubstring, "001C007"+courseScore+"5")
		})

		Convey("Then recent plays carry index and score only", func() {
			idx, _ := base62.EncodeUint(1+2*20480, 3)
			score, _ := base62.EncodeUint(990_000, 4)
			So(out, ShouldContainSubstring, "001R"+idx+score+"000B000O")
		})

		Convey("Then the region index is written", func() {
			So(out[20], ShouldEqual, byte('2'))
		})
	})

	Convey("Given a record without a song id", t, func() {
		r := bestRecord()
		r.SongID = nil
		_, err := payload.New().Assemble(payload.Submission{Player: player(), Best: []model.AnnotatedRecord{r}})
		So(errors.Is(err, payload.ErrInvalidInput), ShouldBeTrue)
	})

	Convey("Given header values above their limits", t, func() {
		p := player()
		p.Level = 100_000
		p.Rating = decimal.RequireFromString("120.00")
		p.MaxRating = nil
		out, err := payload.New().Assemble(payload.Submission{Player: p})
		So(err, ShouldBeNil)
		limit, _ := base62.EncodeUint(9999, 3)
		So(out[2:11], ShouldEqual, limit+limit+"000")
	})

	Convey("Given an escaped text start", t, func() {
		out, err := payload.New(payload.WithEscapedTextStart()).Assemble(payload.Submission{Player: player()})
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "03-AB03-Hi")
	})

	Convey("Assembly is safe from many goroutines", t, func() {
		a := payload.New()
		sub := payload.Submission{Player: player(), Best: []model.AnnotatedRecord{bestRecord()}}
		want, err := a.Assemble(sub)
		So(err, ShouldBeNil)

		var wg sync.WaitGroup
		results := make([]string, 16)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = a.Assemble(sub)
			}(i)
		}
		wg.Wait()
		So(strings.Count(strings.Join(results, "|"), want), ShouldEqual, len(results))
	})
}

func TestFlags(t *testing.T) {
	Convey("Combo flags keep chain bits independent", t, func() {
		So(payload.ComboFlags(types.ComboNone, types.ChainNone), ShouldEqual, 0)
		So(payload.ComboFlags(types.ComboFullCombo, types.ChainFullChain), ShouldEqual, 5)
		So(payload.ComboFlags(types.ComboAllJustice, types.ChainFullChainPlus), ShouldEqual, 10)
		So(payload.ComboFlags(types.ComboAllJusticeCritical, types.ChainNone), ShouldEqual, 16)
	})

	Convey("Course flags fold all-justice-critical into all-justice", t, func() {
		So(payload.CourseFlags(types.ClearClear, types.ComboAllJusticeCritical), ShouldEqual, 5)
		So(payload.CourseFlags(types.ClearFailed, types.ComboFullCombo), ShouldEqual, 2)
		So(payload.CourseFlags(types.ClearFailed, types.ComboNone), ShouldEqual, 0)
	})

	Convey("Class byte and rarity index", t, func() {
		So(payload.ClassByte(nil, nil), ShouldEqual, 0)
		So(payload.ClassByte(classPtr(types.ClassInfinite), classPtr(types.ClassInfinite)), ShouldEqual, 48)
		So(payload.RarityIndex("rainbow"), ShouldEqual, 6)
		So(payload.RarityIndex("platinum"), ShouldEqual, 5)
		So(payload.RarityIndex("unknown"), ShouldEqual, 0)
	})
}

func TestVerify(t *testing.T) {
	Convey("Short or foreign payloads are rejected", t, func() {
		So(errors.Is(payload.Verify("06abc"), payload.ErrInvalidInput), ShouldBeTrue)
		So(errors.Is(payload.Verify("07000000000000"), payload.ErrInvalidInput), ShouldBeTrue)
	})
}
