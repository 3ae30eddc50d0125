package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/faers-signal-server/internal/domain"
)

// SignalClassifier applies the configured threshold table to scored pairs
// and orders results for triage.
//
// Classification requires the case-count floor AND at least one of the
// statistical metrics (PRR, ROR lower confidence bound, chi-square) at its
// bound: one strong statistical measure plus a minimum evidentiary volume is
// enough to surface a candidate for human review. An undefined metric never
// satisfies a bound.
type SignalClassifier struct {
	thresholds domain.ThresholdConfig
	log        *logrus.Logger
}

// NewSignalClassifier creates a classifier with the given threshold table.
func NewSignalClassifier(thresholds domain.ThresholdConfig, logger *logrus.Logger) *SignalClassifier {
	return &SignalClassifier{
		thresholds: thresholds,
		log:        logger,
	}
}

// Classify assigns the signal strength for one scored pair.
func (c *SignalClassifier) Classify(score *domain.SignalScore) domain.SignalStrength {
	t := c.thresholds

	// PRR and chi-square bounds are inclusive; the ROR lower confidence
	// bound is strict, matching the ROR > 1 convention.
	strongStat := metricAtLeast(score.PRR, t.PRRStrong) ||
		metricAbove(score.RORLower, t.RORLowerStrong) ||
		metricAtLeast(score.ChiSquare, t.ChiSquareStrong)

	if score.CaseCount >= t.CaseCountStrong && strongStat {
		return domain.STRONG_SIGNAL
	}

	signalStat := metricAtLeast(score.PRR, t.PRRSignal) ||
		metricAbove(score.RORLower, t.RORLowerSignal) ||
		metricAtLeast(score.ChiSquare, t.ChiSquareSignal)

	if score.CaseCount >= t.CaseCountSignal && signalStat {
		return domain.SIGNAL
	}

	return domain.NONE
}

// ClassifyAll assigns strengths in place and logs the triage summary.
func (c *SignalClassifier) ClassifyAll(scores []domain.SignalScore) {
	signals, strong := 0, 0
	for i := range scores {
		scores[i].Strength = c.Classify(&scores[i])
		switch scores[i].Strength {
		case domain.SIGNAL:
			signals++
		case domain.STRONG_SIGNAL:
			strong++
		}
	}

	c.log.WithFields(logrus.Fields{
		"pairs":          len(scores),
		"signals":        signals,
		"strong_signals": strong,
	}).Info("Signal classification completed")
}

// Rank orders scored pairs for triage: descending PRR first (the headline
// metric), chi-square and case count as tie-breaks, then pair names for a
// deterministic total order. Pairs with an undefined PRR sort after all
// defined ones.
func (c *SignalClassifier) Rank(scores []domain.SignalScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if cmp := compareMetricDesc(scores[i].PRR, scores[j].PRR); cmp != 0 {
			return cmp < 0
		}
		if cmp := compareMetricDesc(scores[i].ChiSquare, scores[j].ChiSquare); cmp != 0 {
			return cmp < 0
		}
		if scores[i].CaseCount != scores[j].CaseCount {
			return scores[i].CaseCount > scores[j].CaseCount
		}
		if scores[i].Substance != scores[j].Substance {
			return scores[i].Substance < scores[j].Substance
		}
		return scores[i].Reaction < scores[j].Reaction
	})
}

// metricAtLeast reports whether a defined metric meets an inclusive bound.
func metricAtLeast(m domain.Metric, bound float64) bool {
	return m.Defined && m.Value >= bound
}

// metricAbove reports whether a defined metric exceeds a strict bound.
func metricAbove(m domain.Metric, bound float64) bool {
	return m.Defined && m.Value > bound
}

// compareMetricDesc orders defined metrics descending, undefined last.
// Returns negative when i sorts before j.
func compareMetricDesc(a, b domain.Metric) int {
	switch {
	case a.Defined && !b.Defined:
		return -1
	case !a.Defined && b.Defined:
		return 1
	case !a.Defined && !b.Defined:
		return 0
	case a.Value > b.Value:
		return -1
	case a.Value < b.Value:
		return 1
	default:
		return 0
	}
}
