// Package repository provides report store implementations backing the
// disproportionality analysis: Postgres for the full deployment, SQLite for
// the embedded lite mode, and an in-memory snapshot store for tests.
package repository

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/faers-signal-server/internal/domain"
)

// PostgresReportStore reads the normalized report tables through a single
// grouped-aggregation pass per run. All queries go through the latest_reports
// view, which keeps only the newest case version per case.
type PostgresReportStore struct {
	db       *pgxpool.Pool
	log      *logrus.Logger
	snapshot string
}

// NewPostgresReportStore creates a report store over an established pool and
// pins a snapshot identity derived from the current report population.
// Results of a run are only valid for that snapshot; refresh the store after
// a data load to obtain a new one.
func NewPostgresReportStore(ctx context.Context, db *pgxpool.Pool, logger *logrus.Logger) (*PostgresReportStore, error) {
	s := &PostgresReportStore{
		db:  db,
		log: logger,
	}

	snapshot, err := s.computeSnapshotID(ctx)
	if err != nil {
		return nil, fmt.Errorf("pinning report snapshot: %w", err)
	}
	s.snapshot = snapshot

	logger.WithField("snapshot_id", snapshot).Info("Report store snapshot pinned")
	return s, nil
}

// computeSnapshotID derives a stable identity from the report population.
func (s *PostgresReportStore) computeSnapshotID(ctx context.Context) (string, error) {
	var count int64
	var latest *string

	query := `SELECT COUNT(*), MAX(created_at)::TEXT FROM reports`
	if err := s.db.QueryRow(ctx, query).Scan(&count, &latest); err != nil {
		return "", fmt.Errorf("querying snapshot marker: %w", err)
	}

	marker := fmt.Sprintf("%d:", count)
	if latest != nil {
		marker += *latest
	}
	hash := sha256.Sum256([]byte(marker))
	return fmt.Sprintf("pg-%x", hash[:8]), nil
}

// SnapshotID returns the pinned snapshot identity.
func (s *PostgresReportStore) SnapshotID() string {
	return s.snapshot
}

// TotalReports returns the distinct qualifying report count.
func (s *PostgresReportStore) TotalReports(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM latest_reports`).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting qualifying reports: %w", err)
	}
	return total, nil
}

// Aggregate performs the grouped-aggregation pass producing all counts needed
// for all-pairs analysis. Counting is COUNT(DISTINCT report_id) throughout,
// so a report naming a drug or reaction twice contributes once.
func (s *PostgresReportStore) Aggregate(ctx context.Context, filter domain.CountFilter) (*domain.AggregateCounts, error) {
	roles := roleCodes(filter.Roles)

	counts := &domain.AggregateCounts{
		DrugTotals:  make(map[string]int64),
		EventTotals: make(map[string]int64),
		PairCounts:  make(map[domain.PairKey]int64),
	}

	total, err := s.TotalReports(ctx)
	if err != nil {
		return nil, err
	}
	counts.TotalReports = total

	substancePattern := "%" + filter.Substance + "%"

	drugQuery := `
		SELECT d.drug_name, COUNT(DISTINCT d.report_id)
		FROM report_drugs d
		JOIN latest_reports lr ON lr.report_id = d.report_id
		WHERE d.role_cod = ANY($1)
		  AND d.drug_name ILIKE $2
		GROUP BY d.drug_name`

	if err := s.scanTotals(ctx, drugQuery, counts.DrugTotals, roles, substancePattern); err != nil {
		return nil, fmt.Errorf("aggregating drug totals: %w", err)
	}

	eventQuery := `
		SELECT r.pt, COUNT(DISTINCT r.report_id)
		FROM report_reactions r
		JOIN latest_reports lr ON lr.report_id = r.report_id
		GROUP BY r.pt`

	if err := s.scanTotals(ctx, eventQuery, counts.EventTotals); err != nil {
		return nil, fmt.Errorf("aggregating event totals: %w", err)
	}

	pairQuery := `
		SELECT d.drug_name, r.pt, COUNT(DISTINCT d.report_id)
		FROM report_drugs d
		JOIN report_reactions r ON r.report_id = d.report_id
		JOIN latest_reports lr ON lr.report_id = d.report_id
		WHERE d.role_cod = ANY($1)
		  AND d.drug_name ILIKE $2
		GROUP BY d.drug_name, r.pt
		HAVING COUNT(DISTINCT d.report_id) >= $3`

	minCases := filter.MinimumCases
	if minCases < 1 {
		minCases = 1
	}

	rows, err := s.db.Query(ctx, pairQuery, roles, substancePattern, minCases)
	if err != nil {
		return nil, fmt.Errorf("aggregating pair counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var substance, reaction string
		var n int64
		if err := rows.Scan(&substance, &reaction, &n); err != nil {
			return nil, fmt.Errorf("scanning pair count row: %w", err)
		}
		counts.PairCounts[domain.PairKey{Substance: substance, Reaction: reaction}] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pair count rows: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"snapshot_id":   s.snapshot,
		"total_reports": counts.TotalReports,
		"substances":    len(counts.DrugTotals),
		"reactions":     len(counts.EventTotals),
		"pairs":         len(counts.PairCounts),
	}).Info("Report aggregation pass completed")

	return counts, nil
}

// scanTotals runs a (name, count) query into the given map.
func (s *PostgresReportStore) scanTotals(ctx context.Context, query string, into map[string]int64, args ...interface{}) error {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return fmt.Errorf("scanning totals row: %w", err)
		}
		into[name] = n
	}
	return rows.Err()
}

// CountsForPair returns pre-aggregated counts for one substance-reaction
// pair. A substance or reaction entirely absent from the store yields
// domain.ErrInsufficientData; a present pair that never co-occurs is a valid
// zero.
func (s *PostgresReportStore) CountsForPair(ctx context.Context, substance, reaction string, roles []domain.DrugRole) (*domain.PairCounts, error) {
	roleCods := roleCodes(roles)

	query := `
		SELECT
			(SELECT COUNT(*) FROM latest_reports) AS total_reports,
			(SELECT COUNT(DISTINCT d.report_id)
			   FROM report_drugs d
			   JOIN latest_reports lr ON lr.report_id = d.report_id
			  WHERE UPPER(d.drug_name) = UPPER($1) AND d.role_cod = ANY($3)) AS drug_total,
			(SELECT COUNT(DISTINCT r.report_id)
			   FROM report_reactions r
			   JOIN latest_reports lr ON lr.report_id = r.report_id
			  WHERE UPPER(r.pt) = UPPER($2)) AS event_total,
			(SELECT COUNT(DISTINCT d.report_id)
			   FROM report_drugs d
			   JOIN report_reactions r ON r.report_id = d.report_id
			   JOIN latest_reports lr ON lr.report_id = d.report_id
			  WHERE UPPER(d.drug_name) = UPPER($1)
			    AND UPPER(r.pt) = UPPER($2)
			    AND d.role_cod = ANY($3)) AS pair_count,
			EXISTS (SELECT 1 FROM report_drugs d WHERE UPPER(d.drug_name) = UPPER($1)) AS substance_known,
			EXISTS (SELECT 1 FROM report_reactions r WHERE UPPER(r.pt) = UPPER($2)) AS reaction_known`

	var counts domain.PairCounts
	var substanceKnown, reactionKnown bool

	err := s.db.QueryRow(ctx, query, substance, reaction, roleCods).Scan(
		&counts.TotalReports,
		&counts.DrugTotal,
		&counts.EventTotal,
		&counts.PairCount,
		&substanceKnown,
		&reactionKnown,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pair counts: %w", domain.ErrNotFound)
		}
		s.log.WithFields(logrus.Fields{
			"substance": substance,
			"reaction":  reaction,
			"error":     err,
		}).Error("Failed to query pair counts")
		return nil, fmt.Errorf("querying pair counts: %w", err)
	}

	if !substanceKnown || !reactionKnown {
		return nil, fmt.Errorf("pair (%s, %s): %w", substance, reaction, domain.ErrInsufficientData)
	}

	return &counts, nil
}

// roleCodes lowers typed roles into role_cod values, defaulting to primary
// suspect only.
func roleCodes(roles []domain.DrugRole) []string {
	if len(roles) == 0 {
		return []string{string(domain.PRIMARY_SUSPECT)}
	}
	cods := make([]string, len(roles))
	for i, r := range roles {
		cods[i] = string(r)
	}
	return cods
}
