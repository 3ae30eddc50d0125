package service

import (
	"fmt"
	"math"

	"github.com/faers-signal-server/internal/domain"
)

// DisproportionalityEngine computes the frequentist signal-detection
// statistics for a contingency table: PRR, ROR with confidence interval, and
// Pearson chi-square (one degree of freedom, uncorrected).
//
// Every metric is computed independently; a metric whose denominator contains
// a zero cell comes back undefined without affecting the others. Scoring is
// deterministic: the same table and configuration always produce
// bit-identical results.
type DisproportionalityEngine struct {
	confidenceLevel float64
	z               float64
}

// NewDisproportionalityEngine creates an engine for the given two-sided
// confidence level (0 < level < 1).
func NewDisproportionalityEngine(confidenceLevel float64) (*DisproportionalityEngine, error) {
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return nil, domain.NewValidationError(
			"confidence_level", "must be in the open interval (0,1)", confidenceLevel)
	}

	return &DisproportionalityEngine{
		confidenceLevel: confidenceLevel,
		z:               normalQuantile(confidenceLevel),
	}, nil
}

// normalQuantile returns the two-sided critical value z for the given
// confidence level: the standard normal quantile at (1+level)/2.
// For level 0.95 this is the familiar 1.959964.
func normalQuantile(level float64) float64 {
	return math.Sqrt2 * math.Erfinv(level)
}

// ConfidenceLevel returns the configured confidence level.
func (e *DisproportionalityEngine) ConfidenceLevel() float64 {
	return e.confidenceLevel
}

// Score computes the full set of disproportionality metrics for a table.
// Classification is left to the SignalClassifier.
func (e *DisproportionalityEngine) Score(table *domain.ContingencyTable) domain.SignalScore {
	lower, upper := e.rorInterval(table)

	return domain.SignalScore{
		Substance: table.Substance,
		Reaction:  table.Reaction,
		Table:     *table,
		CaseCount: table.A,
		PRR:       proportionalReportingRatio(table),
		ROR:       reportingOddsRatio(table),
		RORLower:  lower,
		RORUpper:  upper,
		ChiSquare: chiSquare(table),
		Strength:  domain.NONE,
	}
}

// proportionalReportingRatio computes PRR = (a/(a+b)) / (c/(c+d)).
// Undefined when a+b = 0, c+d = 0 or c = 0: a zero denominator means the
// ratio cannot be computed, and callers must never see a sentinel numeric
// value in its place. A zero numerator (a = 0 with c > 0) is a valid PRR of
// zero.
func proportionalReportingRatio(t *domain.ContingencyTable) domain.Metric {
	a, b, c, d := float64(t.A), float64(t.B), float64(t.C), float64(t.D)

	if a+b == 0 || c+d == 0 || c == 0 {
		return domain.UndefinedMetric()
	}

	return domain.DefinedMetric((a / (a + b)) / (c / (c + d)))
}

// reportingOddsRatio computes ROR = ad/bc, the cross-product ratio of the
// table. Undefined when b = 0 or c = 0 (zero in the denominator product);
// a = 0 yields a valid zero.
func reportingOddsRatio(t *domain.ContingencyTable) domain.Metric {
	a, b, c, d := float64(t.A), float64(t.B), float64(t.C), float64(t.D)

	if b == 0 || c == 0 {
		return domain.UndefinedMetric()
	}

	return domain.DefinedMetric((a * d) / (b * c))
}

// rorInterval computes the Woolf (log) confidence interval for the ROR:
// exp(ln(ROR) ± z*sqrt(1/a + 1/b + 1/c + 1/d)). The variance term divides by
// every cell, so the interval is only defined when all four cells are
// positive; this is guarded explicitly rather than left to produce infinite
// or NaN bounds.
func (e *DisproportionalityEngine) rorInterval(t *domain.ContingencyTable) (domain.Metric, domain.Metric) {
	if t.A <= 0 || t.B <= 0 || t.C <= 0 || t.D <= 0 {
		return domain.UndefinedMetric(), domain.UndefinedMetric()
	}

	a, b, c, d := float64(t.A), float64(t.B), float64(t.C), float64(t.D)
	ror := (a * d) / (b * c)

	se := math.Sqrt(1/a + 1/b + 1/c + 1/d)
	lower := math.Exp(math.Log(ror) - e.z*se)
	upper := math.Exp(math.Log(ror) + e.z*se)

	return domain.DefinedMetric(lower), domain.DefinedMetric(upper)
}

// chiSquare computes the uncorrected Pearson chi-square statistic with one
// degree of freedom: (a-E)^2 / E with E = drugTotal*eventTotal/total.
// Undefined when the population is empty or the expectation degenerates to
// zero.
func chiSquare(t *domain.ContingencyTable) domain.Metric {
	total := float64(t.TotalReports())
	if total == 0 {
		return domain.UndefinedMetric()
	}

	expected := float64(t.DrugTotal()) * float64(t.EventTotal()) / total
	if expected == 0 {
		return domain.UndefinedMetric()
	}

	a := float64(t.A)
	return domain.DefinedMetric((a - expected) * (a - expected) / expected)
}

// String describes the engine configuration for logging.
func (e *DisproportionalityEngine) String() string {
	return fmt.Sprintf("disproportionality engine (confidence %.2f, z %.4f)", e.confidenceLevel, e.z)
}
