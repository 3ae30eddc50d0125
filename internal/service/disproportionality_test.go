package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faers-signal-server/internal/domain"
)

func mustTable(t *testing.T, a, b, c, d int64) *domain.ContingencyTable {
	t.Helper()
	table := &domain.ContingencyTable{Substance: "DRUG X", Reaction: "NAUSEA", A: a, B: b, C: c, D: d}
	require.NoError(t, table.Validate(-1))
	return table
}

func TestNewDisproportionalityEngine(t *testing.T) {
	tests := []struct {
		name    string
		level   float64
		wantErr bool
	}{
		{"standard 95 percent", 0.95, false},
		{"90 percent", 0.90, false},
		{"zero", 0, true},
		{"one", 1, true},
		{"negative", -0.5, true},
		{"above one", 1.2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewDisproportionalityEngine(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.level, engine.ConfidenceLevel())
		})
	}
}

func TestNormalQuantile(t *testing.T) {
	// The 95 percent two-sided critical value is the textbook 1.96.
	assert.InDelta(t, 1.959964, normalQuantile(0.95), 1e-4)
	assert.InDelta(t, 1.644854, normalQuantile(0.90), 1e-4)
	assert.InDelta(t, 2.575829, normalQuantile(0.99), 1e-4)
}

func TestScoreTypicalTable(t *testing.T) {
	engine, err := NewDisproportionalityEngine(0.95)
	require.NoError(t, err)

	// a=10, b=90, c=50, d=9850: PRR = (10/100)/(50/9900) = 19.8
	score := engine.Score(mustTable(t, 10, 90, 50, 9850))

	assert.Equal(t, int64(10), score.CaseCount)

	require.True(t, score.PRR.Defined)
	assert.InDelta(t, 19.8, score.PRR.Value, 1e-9)

	require.True(t, score.ROR.Defined)
	assert.InDelta(t, 21.888889, score.ROR.Value, 1e-5)

	require.True(t, score.RORLower.Defined)
	require.True(t, score.RORUpper.Defined)
	assert.InDelta(t, 10.761, score.RORLower.Value, 0.01)
	assert.InDelta(t, 44.52, score.RORUpper.Value, 0.01)
	assert.Less(t, score.RORLower.Value, score.ROR.Value)
	assert.Greater(t, score.RORUpper.Value, score.ROR.Value)

	require.True(t, score.ChiSquare.Defined)
	// E = 100*60/10000 = 0.6; (10-0.6)^2/0.6 = 147.2667
	assert.InDelta(t, 147.2667, score.ChiSquare.Value, 1e-3)

	assert.Equal(t, domain.NONE, score.Strength)
}

func TestScoreChiSquareScenario(t *testing.T) {
	engine, err := NewDisproportionalityEngine(0.95)
	require.NoError(t, err)

	// a=10, drugTotal=100, eventTotal=60, total=10000
	table, err := domain.NewContingencyTable("DRUG X", "NAUSEA", 10, 100, 60, 10000)
	require.NoError(t, err)

	score := engine.Score(table)
	require.True(t, score.ChiSquare.Defined)
	assert.InDelta(t, 147.2667, score.ChiSquare.Value, 1e-3)
}

func TestScoreBoundaryCells(t *testing.T) {
	engine, err := NewDisproportionalityEngine(0.95)
	require.NoError(t, err)

	t.Run("a zero yields defined zeros", func(t *testing.T) {
		score := engine.Score(mustTable(t, 0, 50, 30, 920))

		require.True(t, score.PRR.Defined)
		assert.Zero(t, score.PRR.Value)
		require.True(t, score.ROR.Defined)
		assert.Zero(t, score.ROR.Value)

		// The interval needs every cell positive.
		assert.False(t, score.RORLower.Defined)
		assert.False(t, score.RORUpper.Defined)

		require.True(t, score.ChiSquare.Defined)
	})

	t.Run("c zero makes ratios undefined", func(t *testing.T) {
		score := engine.Score(mustTable(t, 5, 45, 0, 950))

		assert.False(t, score.PRR.Defined)
		assert.False(t, score.ROR.Defined)
		assert.False(t, score.RORLower.Defined)
		assert.True(t, score.ChiSquare.Defined)
	})

	t.Run("b zero makes ROR undefined but not PRR", func(t *testing.T) {
		// a=5, b=0, c=20, d=975: PRR = (5/5)/(20/995) = 49.75
		score := engine.Score(mustTable(t, 5, 0, 20, 975))

		require.True(t, score.PRR.Defined)
		assert.InDelta(t, 49.75, score.PRR.Value, 1e-9)
		assert.False(t, score.ROR.Defined)
		assert.False(t, score.RORLower.Defined)
		assert.False(t, score.RORUpper.Defined)
	})

	t.Run("empty population", func(t *testing.T) {
		score := engine.Score(mustTable(t, 0, 0, 0, 0))

		assert.False(t, score.PRR.Defined)
		assert.False(t, score.ROR.Defined)
		assert.False(t, score.ChiSquare.Defined)
	})
}

func TestScoreScaleInvariance(t *testing.T) {
	engine, err := NewDisproportionalityEngine(0.95)
	require.NoError(t, err)

	base := engine.Score(mustTable(t, 10, 90, 50, 9850))
	scaled := engine.Score(mustTable(t, 70, 630, 350, 68950))

	// Ratio metrics are invariant under proportional growth.
	assert.InDelta(t, base.PRR.Value, scaled.PRR.Value, 1e-9)
	assert.InDelta(t, base.ROR.Value, scaled.ROR.Value, 1e-9)

	// Chi-square scales linearly with the population.
	assert.InDelta(t, base.ChiSquare.Value*7, scaled.ChiSquare.Value, 1e-6)
}

func TestScoreIdempotent(t *testing.T) {
	engine, err := NewDisproportionalityEngine(0.95)
	require.NoError(t, err)

	table := mustTable(t, 12, 88, 68, 9832)
	first := engine.Score(table)
	second := engine.Score(table)

	assert.Equal(t, first, second)
}

func TestScoreMonotonicInA(t *testing.T) {
	engine, err := NewDisproportionalityEngine(0.95)
	require.NoError(t, err)

	prev := engine.Score(mustTable(t, 1, 100, 50, 9000))
	for a := int64(2); a <= 20; a++ {
		cur := engine.Score(mustTable(t, a, 100, 50, 9000))

		require.True(t, cur.PRR.Defined)
		assert.Greater(t, cur.PRR.Value, prev.PRR.Value, "PRR must grow with a")
		assert.Greater(t, cur.ROR.Value, prev.ROR.Value, "ROR must grow with a")
		assert.Greater(t, cur.ChiSquare.Value, prev.ChiSquare.Value, "chi-square must grow with a")

		prev = cur
	}
}

func TestScoreNonNegative(t *testing.T) {
	engine, err := NewDisproportionalityEngine(0.95)
	require.NoError(t, err)

	tables := []*domain.ContingencyTable{
		mustTable(t, 0, 10, 10, 100),
		mustTable(t, 1, 1, 1, 1),
		mustTable(t, 3, 97, 12, 888),
		mustTable(t, 50, 0, 20, 930),
	}

	for _, table := range tables {
		score := engine.Score(table)
		for name, m := range map[string]domain.Metric{
			"prr": score.PRR, "ror": score.ROR, "chi_square": score.ChiSquare,
		} {
			if m.Defined {
				assert.GreaterOrEqual(t, m.Value, 0.0, "metric %s must be non-negative", name)
			}
		}
	}
}
