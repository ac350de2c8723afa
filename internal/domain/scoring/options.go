package scoring

// MissingLevelPolicy decides what happens to records whose chart constant is unknown.
type MissingLevelPolicy int

const (
	// PolicyFail aborts annotation with ErrMissingChartData.
	PolicyFail MissingLevelPolicy = iota
	// PolicySkip drops the record.
	PolicySkip
	// PolicyEstimate rates the record as if the level were 0 and gives it no overpower.
	PolicyEstimate
)

func (p MissingLevelPolicy) String() string {
	switch p {
	case PolicyFail:
		return "fail"
	case PolicySkip:
		return "skip"
	case PolicyEstimate:
		return "estimate"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a config string onto a policy. Unknown values fall back to PolicyFail.
func ParsePolicy(s string) MissingLevelPolicy {
	switch s {
	case "skip":
		return PolicySkip
	case "estimate":
		return PolicyEstimate
	default:
		return PolicyFail
	}
}

// Option applies a configuration option to the Annotator.
type Option func(*Annotator)

// WithPolicy sets the missing-level policy.
func WithPolicy(p MissingLevelPolicy) Option {
	return func(a *Annotator) {
		a.policy = p
	}
}
