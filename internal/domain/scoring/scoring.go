// Package scoring annotates records with rating and overpower and orders and
// summarizes the results.
package scoring

import (
	"context"
	"fmt"

	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/overpower"
	"github.com/okian/chunisync/internal/domain/rating"
	"github.com/okian/chunisync/internal/domain/types"
)

// ChartLookup resolves chart metadata.
type ChartLookup interface {
	Chart(key model.ChartKey) (model.Chart, bool)
}

// Annotate derives rating and overpower for r on chart c. It fails with
// ErrMissingChartData when the chart constant is unknown.
func Annotate(r model.Record, c model.Chart) (model.AnnotatedRecord, error) {
	if c.InternalLevel == nil {
		return model.AnnotatedRecord{}, fmt.Errorf("%s %s: %w", r.Title, r.Difficulty, types.ErrMissingChartData)
	}
	level := *c.InternalLevel
	if r.Level == "" {
		r.Level = c.Level
	}
	return model.AnnotatedRecord{
		Record:        r,
		InternalLevel: &level,
		PlayRating:    rating.Rating(r.Score, &level),
		OverpowerBase: overpower.Base(r.Score, level),
		OverpowerMax:  overpower.Max(level),
	}, nil
}

// Estimate rates r with an unknown chart constant. Overpower is left at zero.
func Estimate(r model.Record) model.AnnotatedRecord {
	return model.AnnotatedRecord{
		Record:     r,
		PlayRating: rating.Rating(r.Score, nil),
	}
}

// Annotation is the outcome of annotating a batch.
type Annotation struct {
	Records   []model.AnnotatedRecord
	Rated     int
	Estimated int
	Skipped   int
}

// Annotator annotates records against a chart lookup.
type Annotator struct {
	charts ChartLookup
	policy MissingLevelPolicy
}

// NewAnnotator creates an annotator. The default policy is PolicyFail.
func NewAnnotator(charts ChartLookup, opts ...Option) *Annotator {
	a := &Annotator{charts: charts, policy: PolicyFail}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Policy returns the configured missing-level policy.
func (a *Annotator) Policy() MissingLevelPolicy { return a.policy }

// Annotate annotates records in order. Records without a song id or without a
// known chart constant follow the policy.
func (a *Annotator) Annotate(ctx context.Context, records []model.Record) (Annotation, error) {
	out := Annotation{Records: make([]model.AnnotatedRecord, 0, len(records))}
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return Annotation{}, fmt.Errorf("annotate cancelled: %w", err)
		}

		chart, ok := a.lookup(r)
		if ok && chart.InternalLevel != nil {
			ar, err := Annotate(r, chart)
			if err != nil {
				return Annotation{}, err
			}
			out.Records = append(out.Records, ar)
			out.Rated++
			continue
		}

		switch a.policy {
		case PolicySkip:
			out.Skipped++
		case PolicyEstimate:
			if ok && r.Level == "" {
				r.Level = chart.Level
			}
			out.Records = append(out.Records, Estimate(r))
			out.Estimated++
		default:
			return Annotation{}, fmt.Errorf("record %d %q: %w", i, r.Title, types.ErrMissingChartData)
		}
	}
	return out, nil
}

func (a *Annotator) lookup(r model.Record) (model.Chart, bool) {
	key, ok := r.ChartKey()
	if !ok || a.charts == nil {
		return model.Chart{}, false
	}
	return a.charts.Chart(key)
}
