package domain

import (
	"encoding/json"
	"time"
)

// SignalStrength represents the triage classification assigned to a
// substance-reaction pair. A signal is a statistical indication warranting
// clinical review, not proof of causation.
type SignalStrength string

const (
	NONE          SignalStrength = "NONE"
	SIGNAL        SignalStrength = "SIGNAL"
	STRONG_SIGNAL SignalStrength = "STRONG_SIGNAL"
)

// IsValid validates the signal strength value.
func (s SignalStrength) IsValid() bool {
	switch s {
	case NONE, SIGNAL, STRONG_SIGNAL:
		return true
	default:
		return false
	}
}

// String returns the string representation of the signal strength.
func (s SignalStrength) String() string {
	return string(s)
}

// RequiresReview reports whether the classification warrants escalation to
// human pharmacovigilance review.
func (s SignalStrength) RequiresReview() bool {
	switch s {
	case SIGNAL, STRONG_SIGNAL:
		return true
	default:
		return false
	}
}

// LogFields returns structured logging fields for audit trails.
func (s SignalStrength) LogFields() map[string]any {
	return map[string]any{
		"signal_strength": string(s),
		"requires_review": s.RequiresReview(),
		"is_valid":        s.IsValid(),
	}
}

// Metric is an explicitly optional statistic. A metric whose denominator
// contains a zero cell is undefined, which is distinct from a computed value
// of zero: callers must never mistake "cannot compute" for a real ratio.
type Metric struct {
	Value   float64
	Defined bool
}

// DefinedMetric returns a metric carrying a computed value.
func DefinedMetric(v float64) Metric {
	return Metric{Value: v, Defined: true}
}

// UndefinedMetric returns the undefined metric.
func UndefinedMetric() Metric {
	return Metric{}
}

// MarshalJSON renders undefined metrics as JSON null so downstream consumers
// cannot confuse them with numeric zeros.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts either a number or null.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Metric{Value: v, Defined: true}
	return nil
}

// SignalScore is the computed disproportionality result for one
// substance-reaction pair. Recomputed fresh each analysis run; never mutated.
type SignalScore struct {
	Substance string           `json:"substance"`
	Reaction  string           `json:"reaction"`
	Table     ContingencyTable `json:"table"`

	CaseCount int64  `json:"case_count"`
	PRR       Metric `json:"prr"`
	ROR       Metric `json:"ror"`
	RORLower  Metric `json:"ror_ci_lower"`
	RORUpper  Metric `json:"ror_ci_upper"`
	ChiSquare Metric `json:"chi_square"`

	Strength SignalStrength `json:"classification"`
}

// ExclusionReason explains why a pair was dropped from the ranked result set.
type ExclusionReason string

const (
	BELOW_MINIMUM_CASES ExclusionReason = "BELOW_MINIMUM_CASES"
	STORE_ERROR         ExclusionReason = "STORE_ERROR"
)

// IsValid validates the exclusion reason.
func (r ExclusionReason) IsValid() bool {
	switch r {
	case BELOW_MINIMUM_CASES, STORE_ERROR:
		return true
	default:
		return false
	}
}

// String returns the string representation of the exclusion reason.
func (r ExclusionReason) String() string {
	return string(r)
}

// ExcludedPair records a pair left out of the ranked results together with
// the reason. Runs never silently drop a pair.
type ExcludedPair struct {
	Substance string          `json:"substance"`
	Reaction  string          `json:"reaction"`
	Reason    ExclusionReason `json:"reason"`
	Detail    string          `json:"detail,omitempty"`
}

// RunResult is the complete output of one analysis run: a finite,
// non-restartable batch computed against one store snapshot.
type RunResult struct {
	RunID       string         `json:"run_id"`
	SnapshotID  string         `json:"snapshot_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	TotalReports int64         `json:"total_reports"`
	Scores      []SignalScore  `json:"scores"`
	Excluded    []ExcludedPair `json:"excluded,omitempty"`
	Elapsed     time.Duration  `json:"elapsed_ms"`
}

// SignalCount returns the number of pairs classified at or above SIGNAL.
func (r *RunResult) SignalCount() int {
	n := 0
	for _, s := range r.Scores {
		if s.Strength.RequiresReview() {
			n++
		}
	}
	return n
}
