// Package service implements the disproportionality analysis pipeline:
// contingency table construction, PRR/ROR/chi-square scoring, threshold
// classification and run orchestration.
package service

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/faers-signal-server/internal/domain"
)

// TableBuilder derives 2x2 contingency tables from pre-aggregated report
// counts. Targeted single-pair lookups go through a small LRU cache keyed by
// snapshot, pair and role filter; all-pairs derivation is a pure O(1)
// computation per pair over one aggregation pass.
type TableBuilder struct {
	store domain.ReportStore
	log   *logrus.Logger
	cache *lru.Cache[string, domain.ContingencyTable]
}

// NewTableBuilder creates a table builder over the given store.
func NewTableBuilder(store domain.ReportStore, cacheSize int, logger *logrus.Logger) (*TableBuilder, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}

	cache, err := lru.New[string, domain.ContingencyTable](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating pair cache: %w", err)
	}

	return &TableBuilder{
		store: store,
		log:   logger,
		cache: cache,
	}, nil
}

// cacheKey includes the snapshot so a refreshed store never serves stale
// tables.
func (b *TableBuilder) cacheKey(substance, reaction string, roles []domain.DrugRole) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	return b.store.SnapshotID() + "|" +
		strings.ToUpper(substance) + "|" +
		strings.ToUpper(reaction) + "|" +
		strings.Join(parts, ",")
}

// BuildTable constructs the contingency table for one substance-reaction
// pair. Returns domain.ErrInsufficientData (wrapped) when the substance or
// reaction is entirely absent from the store.
func (b *TableBuilder) BuildTable(ctx context.Context, substance, reaction string, roles []domain.DrugRole) (*domain.ContingencyTable, error) {
	key := b.cacheKey(substance, reaction, roles)
	if table, ok := b.cache.Get(key); ok {
		return &table, nil
	}

	counts, err := b.store.CountsForPair(ctx, substance, reaction, roles)
	if err != nil {
		return nil, err
	}

	table, err := domain.NewContingencyTable(
		substance, reaction,
		counts.PairCount, counts.DrugTotal, counts.EventTotal, counts.TotalReports,
	)
	if err != nil {
		return nil, fmt.Errorf("deriving contingency table for (%s, %s): %w", substance, reaction, err)
	}

	b.cache.Add(key, *table)

	b.log.WithFields(logrus.Fields{
		"substance":     substance,
		"reaction":      reaction,
		"a":             table.A,
		"drug_total":    table.DrugTotal(),
		"event_total":   table.EventTotal(),
		"total_reports": table.TotalReports(),
	}).Debug("Contingency table built")

	return table, nil
}

// TableFromAggregates derives one pair's table from an aggregation pass.
func (b *TableBuilder) TableFromAggregates(agg *domain.AggregateCounts, key domain.PairKey) (*domain.ContingencyTable, error) {
	pairCount := agg.PairCounts[key]
	return domain.NewContingencyTable(
		key.Substance, key.Reaction,
		pairCount,
		agg.DrugTotals[key.Substance],
		agg.EventTotals[key.Reaction],
		agg.TotalReports,
	)
}

// BuildAll derives contingency tables for every pair in an aggregation pass.
func (b *TableBuilder) BuildAll(agg *domain.AggregateCounts) ([]domain.ContingencyTable, error) {
	tables := make([]domain.ContingencyTable, 0, len(agg.PairCounts))
	for key := range agg.PairCounts {
		table, err := b.TableFromAggregates(agg, key)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *table)
	}
	return tables, nil
}
