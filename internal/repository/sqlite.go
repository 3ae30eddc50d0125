package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/faers-signal-server/internal/domain"
)

// SQLiteReportStore is the embedded report store for standalone operation.
// It holds the same normalized schema as the Postgres store and answers the
// same grouped-aggregation queries.
type SQLiteReportStore struct {
	db       *sql.DB
	dbPath   string
	snapshot string
}

// NewSQLiteReportStore opens (or creates) the embedded report store.
func NewSQLiteReportStore(dbPath string) (*SQLiteReportStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createReportSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteReportStore{
		db:       db,
		dbPath:   dbPath,
		snapshot: "sqlite-" + uuid.New().String(),
	}, nil
}

// createReportSchema creates the normalized report tables.
func createReportSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		report_id    TEXT PRIMARY KEY,
		case_id      TEXT NOT NULL,
		case_version INTEGER NOT NULL DEFAULT 1,
		received_at  TEXT
	);

	CREATE TABLE IF NOT EXISTS report_drugs (
		report_id TEXT NOT NULL REFERENCES reports(report_id) ON DELETE CASCADE,
		drug_name TEXT NOT NULL,
		role_cod  TEXT NOT NULL CHECK (role_cod IN ('PS', 'SS', 'C', 'I'))
	);

	CREATE TABLE IF NOT EXISTS report_reactions (
		report_id TEXT NOT NULL REFERENCES reports(report_id) ON DELETE CASCADE,
		pt        TEXT NOT NULL,
		pt_code   TEXT
	);

	CREATE TABLE IF NOT EXISTS report_outcomes (
		report_id TEXT NOT NULL REFERENCES reports(report_id) ON DELETE CASCADE,
		outc_cod  TEXT NOT NULL CHECK (outc_cod IN ('DE', 'LT', 'HO', 'DS', 'CA', 'RI', 'OT'))
	);

	CREATE INDEX IF NOT EXISTS idx_reports_case ON reports (case_id, case_version DESC);
	CREATE INDEX IF NOT EXISTS idx_report_drugs_name_role ON report_drugs (drug_name, role_cod);
	CREATE INDEX IF NOT EXISTS idx_report_reactions_pt ON report_reactions (pt);

	CREATE VIEW IF NOT EXISTS latest_reports AS
	SELECT report_id, case_id, case_version, received_at
	FROM reports r
	WHERE NOT EXISTS (
		SELECT 1 FROM reports newer
		WHERE newer.case_id = r.case_id
		  AND (newer.case_version > r.case_version
		       OR (newer.case_version = r.case_version AND newer.report_id > r.report_id))
	);`

	if _, err := db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Load bulk-inserts validated reports and advances the snapshot identity.
// Existing report versions with the same report ID are replaced.
func (s *SQLiteReportStore) Load(ctx context.Context, reports []domain.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range reports {
		r := &reports[i]
		if err := r.Validate(); err != nil {
			return fmt.Errorf("report %s: %w", r.ReportID, err)
		}

		var receivedAt interface{}
		if !r.ReceivedAt.IsZero() {
			receivedAt = r.ReceivedAt.UTC().Format("2006-01-02T15:04:05Z")
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO reports (report_id, case_id, case_version, received_at) VALUES (?, ?, ?, ?)`,
			r.ReportID, r.CaseID, r.CaseVersion, receivedAt); err != nil {
			return fmt.Errorf("inserting report %s: %w", r.ReportID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM report_drugs WHERE report_id = ?`, r.ReportID); err != nil {
			return fmt.Errorf("clearing drugs for report %s: %w", r.ReportID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM report_reactions WHERE report_id = ?`, r.ReportID); err != nil {
			return fmt.Errorf("clearing reactions for report %s: %w", r.ReportID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM report_outcomes WHERE report_id = ?`, r.ReportID); err != nil {
			return fmt.Errorf("clearing outcomes for report %s: %w", r.ReportID, err)
		}

		for _, d := range r.Drugs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO report_drugs (report_id, drug_name, role_cod) VALUES (?, ?, ?)`,
				r.ReportID, d.Name, string(d.Role)); err != nil {
				return fmt.Errorf("inserting drug for report %s: %w", r.ReportID, err)
			}
		}
		for _, rx := range r.Reactions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO report_reactions (report_id, pt, pt_code) VALUES (?, ?, ?)`,
				r.ReportID, rx.Term, rx.Code); err != nil {
				return fmt.Errorf("inserting reaction for report %s: %w", r.ReportID, err)
			}
		}
		for _, o := range r.Outcomes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO report_outcomes (report_id, outc_cod) VALUES (?, ?)`,
				r.ReportID, string(o)); err != nil {
				return fmt.Errorf("inserting outcome for report %s: %w", r.ReportID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}

	// A load produces a new consistent snapshot.
	s.snapshot = "sqlite-" + uuid.New().String()
	return nil
}

// SnapshotID returns the pinned snapshot identity.
func (s *SQLiteReportStore) SnapshotID() string {
	return s.snapshot
}

// TotalReports returns the distinct qualifying report count.
func (s *SQLiteReportStore) TotalReports(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM latest_reports`).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting qualifying reports: %w", err)
	}
	return total, nil
}

// rolePlaceholders builds an IN (...) clause for the role filter.
func rolePlaceholders(roles []string) (string, []interface{}) {
	marks := make([]string, len(roles))
	args := make([]interface{}, len(roles))
	for i, r := range roles {
		marks[i] = "?"
		args[i] = r
	}
	return strings.Join(marks, ", "), args
}

// Aggregate performs the grouped-aggregation pass over the embedded store.
func (s *SQLiteReportStore) Aggregate(ctx context.Context, filter domain.CountFilter) (*domain.AggregateCounts, error) {
	roles := roleCodes(filter.Roles)
	marks, roleArgs := rolePlaceholders(roles)

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

	substancePattern := "%" + strings.ToUpper(filter.Substance) + "%"

	drugQuery := fmt.Sprintf(`
		SELECT d.drug_name, COUNT(DISTINCT d.report_id)
		FROM report_drugs d
		JOIN latest_reports lr ON lr.report_id = d.report_id
		WHERE d.role_cod IN (%s)
		  AND UPPER(d.drug_name) LIKE ?
		GROUP BY d.drug_name`, marks)

	drugArgs := append(append([]interface{}{}, roleArgs...), substancePattern)
	if err := s.scanTotals(ctx, drugQuery, counts.DrugTotals, drugArgs...); err != nil {
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

	minCases := filter.MinimumCases
	if minCases < 1 {
		minCases = 1
	}

	pairQuery := fmt.Sprintf(`
		SELECT d.drug_name, r.pt, COUNT(DISTINCT d.report_id)
		FROM report_drugs d
		JOIN report_reactions r ON r.report_id = d.report_id
		JOIN latest_reports lr ON lr.report_id = d.report_id
		WHERE d.role_cod IN (%s)
		  AND UPPER(d.drug_name) LIKE ?
		GROUP BY d.drug_name, r.pt
		HAVING COUNT(DISTINCT d.report_id) >= ?`, marks)

	pairArgs := append(append([]interface{}{}, roleArgs...), substancePattern, minCases)

	rows, err := s.db.QueryContext(ctx, pairQuery, pairArgs...)
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

	return counts, nil
}

// scanTotals runs a (name, count) query into the given map.
func (s *SQLiteReportStore) scanTotals(ctx context.Context, query string, into map[string]int64, args ...interface{}) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

// CountsForPair returns pre-aggregated counts for one substance-reaction pair.
func (s *SQLiteReportStore) CountsForPair(ctx context.Context, substance, reaction string, roles []domain.DrugRole) (*domain.PairCounts, error) {
	roleCods := roleCodes(roles)
	marks, roleArgs := rolePlaceholders(roleCods)

	query := fmt.Sprintf(`
		SELECT
			(SELECT COUNT(*) FROM latest_reports),
			(SELECT COUNT(DISTINCT d.report_id)
			   FROM report_drugs d
			   JOIN latest_reports lr ON lr.report_id = d.report_id
			  WHERE UPPER(d.drug_name) = UPPER(?) AND d.role_cod IN (%s)),
			(SELECT COUNT(DISTINCT r.report_id)
			   FROM report_reactions r
			   JOIN latest_reports lr ON lr.report_id = r.report_id
			  WHERE UPPER(r.pt) = UPPER(?)),
			(SELECT COUNT(DISTINCT d.report_id)
			   FROM report_drugs d
			   JOIN report_reactions r ON r.report_id = d.report_id
			   JOIN latest_reports lr ON lr.report_id = d.report_id
			  WHERE UPPER(d.drug_name) = UPPER(?)
			    AND UPPER(r.pt) = UPPER(?)
			    AND d.role_cod IN (%s)),
			EXISTS (SELECT 1 FROM report_drugs d WHERE UPPER(d.drug_name) = UPPER(?)),
			EXISTS (SELECT 1 FROM report_reactions r WHERE UPPER(r.pt) = UPPER(?))`,
		marks, marks)

	args := []interface{}{substance}
	args = append(args, roleArgs...)
	args = append(args, reaction, substance, reaction)
	args = append(args, roleArgs...)
	args = append(args, substance, reaction)

	var counts domain.PairCounts
	var substanceKnown, reactionKnown bool

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&counts.TotalReports,
		&counts.DrugTotal,
		&counts.EventTotal,
		&counts.PairCount,
		&substanceKnown,
		&reactionKnown,
	)
	if err != nil {
		return nil, fmt.Errorf("querying pair counts: %w", err)
	}

	if !substanceKnown || !reactionKnown {
		return nil, fmt.Errorf("pair (%s, %s): %w", substance, reaction, domain.ErrInsufficientData)
	}

	return &counts, nil
}

// Health checks the embedded store is reachable.
func (s *SQLiteReportStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the embedded store.
func (s *SQLiteReportStore) Close() error {
	return s.db.Close()
}
