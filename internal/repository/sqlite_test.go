package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faers-signal-server/internal/domain"
)

func newTestSQLiteStore(t *testing.T) *SQLiteReportStore {
	t.Helper()

	store, err := NewSQLiteReportStore(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestSQLiteStoreLoadAndAggregate(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	reports := []domain.Report{
		report("r1", "c1", 1, ps("DRUG X"), "NAUSEA"),
		report("r2", "c2", 1, ps("DRUG X"), "NAUSEA"),
		report("r3", "c3", 1, ps("DRUG X"), "HEADACHE"),
		report("r4", "c4", 1, ps("DRUG Y"), "NAUSEA"),
	}
	require.NoError(t, store.Load(ctx, reports))

	total, err := store.TotalReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	agg, err := store.Aggregate(ctx, domain.CountFilter{})
	require.NoError(t, err)

	assert.Equal(t, int64(4), agg.TotalReports)
	assert.Equal(t, int64(3), agg.DrugTotals["DRUG X"])
	assert.Equal(t, int64(1), agg.DrugTotals["DRUG Y"])
	assert.Equal(t, int64(3), agg.EventTotals["NAUSEA"])
	assert.Equal(t, int64(2), agg.PairCounts[domain.PairKey{Substance: "DRUG X", Reaction: "NAUSEA"}])
}

func TestSQLiteStoreLatestCaseVersionWins(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Load(ctx, []domain.Report{
		report("r1", "case-1", 1, ps("DRUG X"), "NAUSEA"),
		report("r2", "case-1", 2, ps("DRUG X"), "RASH"),
	}))

	total, err := store.TotalReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	agg, err := store.Aggregate(ctx, domain.CountFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.EventTotals["RASH"])
	assert.Zero(t, agg.EventTotals["NAUSEA"])
}

func TestSQLiteStoreLoadRejectsInvalidReport(t *testing.T) {
	store := newTestSQLiteStore(t)

	err := store.Load(context.Background(), []domain.Report{
		{ReportID: "", CaseID: "c1", CaseVersion: 1},
	})
	assert.Error(t, err)
}

func TestSQLiteStoreLoadAdvancesSnapshot(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	before := store.SnapshotID()
	require.NoError(t, store.Load(ctx, []domain.Report{
		report("r1", "c1", 1, ps("DRUG X"), "NAUSEA"),
	}))

	assert.NotEqual(t, before, store.SnapshotID())
}

func TestSQLiteStoreCountsForPair(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Load(ctx, []domain.Report{
		report("r1", "c1", 1, ps("DRUG X"), "NAUSEA"),
		report("r2", "c2", 1, ps("DRUG X"), "RASH"),
		report("r3", "c3", 1, ps("DRUG Y"), "NAUSEA"),
	}))

	t.Run("existing pair with case-insensitive lookup", func(t *testing.T) {
		counts, err := store.CountsForPair(ctx, "drug x", "nausea", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts.PairCount)
		assert.Equal(t, int64(2), counts.DrugTotal)
		assert.Equal(t, int64(2), counts.EventTotal)
		assert.Equal(t, int64(3), counts.TotalReports)
	})

	t.Run("unknown substance", func(t *testing.T) {
		_, err := store.CountsForPair(ctx, "DRUG Q", "NAUSEA", nil)
		assert.ErrorIs(t, err, domain.ErrInsufficientData)
	})
}

func TestSQLiteStoreHealth(t *testing.T) {
	store := newTestSQLiteStore(t)
	assert.NoError(t, store.Health(context.Background()))
}
