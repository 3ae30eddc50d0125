package domain

import "context"

// CountFilter narrows the aggregation pass of a report store.
type CountFilter struct {
	// Roles lists the drug roles counted toward the substance side.
	// Empty means primary suspect only.
	Roles []DrugRole

	// Substance restricts the pass to drugs whose name contains this
	// substring (case-insensitive). Empty means all substances.
	Substance string

	// MinimumCases drops pair counts below this value inside the store pass,
	// keeping the candidate set small before scoring.
	MinimumCases int64
}

// PairKey identifies one substance-reaction pair in an aggregate pass.
type PairKey struct {
	Substance string
	Reaction  string
}

// AggregateCounts is the output of a single grouped-aggregation pass over the
// report store: every count needed to derive contingency tables for all
// candidate pairs without rescanning reports per pair.
type AggregateCounts struct {
	// TotalReports is the distinct qualifying report count for the full
	// population (independent of the substance filter).
	TotalReports int64

	// DrugTotals maps substance -> distinct reports naming it under the role
	// filter.
	DrugTotals map[string]int64

	// EventTotals maps reaction term -> distinct reports listing it.
	EventTotals map[string]int64

	// PairCounts maps pair -> distinct reports naming both.
	PairCounts map[PairKey]int64
}

// PairCounts carries the pre-aggregated counts for one targeted pair lookup.
type PairCounts struct {
	PairCount    int64
	DrugTotal    int64
	EventTotal   int64
	TotalReports int64
}

// ReportStore is the read-only view of the normalized adverse-event report
// collection that the analysis core consumes. A store represents one
// consistent snapshot: results of a run are only valid for that snapshot.
type ReportStore interface {
	// SnapshotID identifies the pinned data snapshot backing this store.
	SnapshotID() string

	// TotalReports returns the distinct qualifying report count.
	TotalReports(ctx context.Context) (int64, error)

	// Aggregate performs one grouped pass producing all counts needed for
	// all-pairs analysis.
	Aggregate(ctx context.Context, filter CountFilter) (*AggregateCounts, error)

	// CountsForPair returns the counts for one substance-reaction pair.
	// Returns ErrInsufficientData when the substance (under any role) or the
	// reaction does not appear in the store at all; a present pair that never
	// co-occurs yields PairCount 0 and no error.
	CountsForPair(ctx context.Context, substance, reaction string, roles []DrugRole) (*PairCounts, error)
}
