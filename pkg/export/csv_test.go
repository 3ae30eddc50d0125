package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faers-signal-server/internal/domain"
)

func sampleResult() *domain.RunResult {
	return &domain.RunResult{
		RunID:      "run-1",
		SnapshotID: "snap-1",
		Scores: []domain.SignalScore{
			{
				Substance: "DRUG X",
				Reaction:  "NAUSEA",
				Table:     domain.ContingencyTable{A: 10, B: 90, C: 50, D: 9850},
				CaseCount: 10,
				PRR:       domain.DefinedMetric(19.8),
				ROR:       domain.DefinedMetric(21.888889),
				RORLower:  domain.DefinedMetric(10.76),
				RORUpper:  domain.DefinedMetric(44.52),
				ChiSquare: domain.DefinedMetric(147.2667),
				Strength:  domain.STRONG_SIGNAL,
			},
			{
				Substance: "DRUG Z",
				Reaction:  "RASH",
				Table:     domain.ContingencyTable{A: 5, B: 0, C: 20, D: 975},
				CaseCount: 5,
				PRR:       domain.DefinedMetric(49.75),
				ROR:       domain.UndefinedMetric(),
				RORLower:  domain.UndefinedMetric(),
				RORUpper:  domain.UndefinedMetric(),
				ChiSquare: domain.DefinedMetric(12.5),
				Strength:  domain.NONE,
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult(), Options{}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"substance", "reaction", "case_count", "drug_total", "event_total",
		"prr", "chi_square", "ror", "ror_lower", "ror_upper", "classification",
	}, records[0])

	first := records[1]
	assert.Equal(t, "DRUG X", first[0])
	assert.Equal(t, "NAUSEA", first[1])
	assert.Equal(t, "10", first[2])
	assert.Equal(t, "100", first[3])
	assert.Equal(t, "60", first[4])
	assert.Equal(t, "19.8000", first[5])
	assert.Equal(t, "STRONG_SIGNAL", first[10])

	// Undefined metrics export as empty fields, never zeros.
	second := records[2]
	assert.Equal(t, "DRUG Z", second[0])
	assert.Equal(t, "49.7500", second[5])
	assert.Equal(t, "", second[7])
	assert.Equal(t, "", second[8])
	assert.Equal(t, "", second[9])
}

func TestWriteCSVSignalsOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult(), Options{SignalsOnly: true}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "DRUG X", records[1][0])
}

func TestWriteCSVEmptyRun(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, &domain.RunResult{}, Options{}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
