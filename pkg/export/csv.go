// Package export writes analysis results to interchange formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/faers-signal-server/internal/domain"
)

// csvHeader lists the output columns in their fixed order.
var csvHeader = []string{
	"substance",
	"reaction",
	"case_count",
	"drug_total",
	"event_total",
	"prr",
	"chi_square",
	"ror",
	"ror_lower",
	"ror_upper",
	"classification",
}

// Options controls what lands in the export.
type Options struct {
	// SignalsOnly drops rows classified NONE.
	SignalsOnly bool
}

// WriteCSV writes the scored pairs of a run as CSV, preserving their ranked
// order. Undefined metrics export as empty fields so downstream tooling
// never mistakes them for numeric zeros.
func WriteCSV(w io.Writer, result *domain.RunResult, opts Options) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for i := range result.Scores {
		score := &result.Scores[i]
		if opts.SignalsOnly && !score.Strength.RequiresReview() {
			continue
		}

		row := []string{
			score.Substance,
			score.Reaction,
			strconv.FormatInt(score.CaseCount, 10),
			strconv.FormatInt(score.Table.DrugTotal(), 10),
			strconv.FormatInt(score.Table.EventTotal(), 10),
			formatMetric(score.PRR),
			formatMetric(score.ChiSquare),
			formatMetric(score.ROR),
			formatMetric(score.RORLower),
			formatMetric(score.RORUpper),
			score.Strength.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row for (%s, %s): %w", score.Substance, score.Reaction, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatMetric renders a metric value, or an empty field when undefined.
func formatMetric(m domain.Metric) string {
	if !m.Defined {
		return ""
	}
	return strconv.FormatFloat(m.Value, 'f', 4, 64)
}
