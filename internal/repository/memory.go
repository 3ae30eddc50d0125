package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/faers-signal-server/internal/domain"
)

// MemoryReportStore holds an immutable in-memory snapshot of reports.
// It backs tests and small standalone analyses; the snapshot is fixed at
// construction and never mutated afterwards, so reads need no locking.
type MemoryReportStore struct {
	reports  []domain.Report
	snapshot string

	// canonical display names keyed by upper-cased lookup key
	drugNames     map[string]string
	reactionNames map[string]string
}

// NewMemoryReportStore builds a snapshot store from the given reports.
// When multiple versions of a case are supplied, only the highest
// CaseVersion is kept (ties broken by report ID, mirroring the SQL view).
func NewMemoryReportStore(reports []domain.Report) *MemoryReportStore {
	latest := make(map[string]domain.Report, len(reports))
	for _, r := range reports {
		cur, ok := latest[r.CaseID]
		if !ok || r.CaseVersion > cur.CaseVersion ||
			(r.CaseVersion == cur.CaseVersion && r.ReportID > cur.ReportID) {
			latest[r.CaseID] = r
		}
	}

	deduped := make([]domain.Report, 0, len(latest))
	drugNames := make(map[string]string)
	reactionNames := make(map[string]string)
	for _, r := range latest {
		deduped = append(deduped, r)
		for _, d := range r.Drugs {
			key := strings.ToUpper(d.Name)
			if _, ok := drugNames[key]; !ok {
				drugNames[key] = d.Name
			}
		}
		for _, rx := range r.Reactions {
			key := strings.ToUpper(rx.Term)
			if _, ok := reactionNames[key]; !ok {
				reactionNames[key] = rx.Term
			}
		}
	}

	return &MemoryReportStore{
		reports:       deduped,
		snapshot:      "mem-" + uuid.New().String(),
		drugNames:     drugNames,
		reactionNames: reactionNames,
	}
}

// SnapshotID returns the pinned snapshot identity.
func (s *MemoryReportStore) SnapshotID() string {
	return s.snapshot
}

// TotalReports returns the distinct qualifying report count.
func (s *MemoryReportStore) TotalReports(ctx context.Context) (int64, error) {
	return int64(len(s.reports)), nil
}

// reportSubstances returns the distinct substances a report names under the
// role filter, keyed by canonical display name.
func (s *MemoryReportStore) reportSubstances(r *domain.Report, roles []domain.DrugRole, substanceFilter string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, d := range r.Drugs {
		if !roleMatches(d.Role, roles) {
			continue
		}
		if substanceFilter != "" &&
			!strings.Contains(strings.ToUpper(d.Name), strings.ToUpper(substanceFilter)) {
			continue
		}
		out[s.drugNames[strings.ToUpper(d.Name)]] = struct{}{}
	}
	return out
}

// reportReactions returns the distinct reaction terms on a report, keyed by
// canonical display name.
func (s *MemoryReportStore) reportReactions(r *domain.Report) map[string]struct{} {
	out := make(map[string]struct{})
	for _, rx := range r.Reactions {
		out[s.reactionNames[strings.ToUpper(rx.Term)]] = struct{}{}
	}
	return out
}

func roleMatches(role domain.DrugRole, roles []domain.DrugRole) bool {
	if len(roles) == 0 {
		return role == domain.PRIMARY_SUSPECT
	}
	for _, want := range roles {
		if role == want {
			return true
		}
	}
	return false
}

// Aggregate counts drug totals, event totals and pair counts in a single
// traversal of the snapshot. Each report contributes at most one to every
// relevant count regardless of duplicate rows.
func (s *MemoryReportStore) Aggregate(ctx context.Context, filter domain.CountFilter) (*domain.AggregateCounts, error) {
	counts := &domain.AggregateCounts{
		TotalReports: int64(len(s.reports)),
		DrugTotals:   make(map[string]int64),
		EventTotals:  make(map[string]int64),
		PairCounts:   make(map[domain.PairKey]int64),
	}

	for i := range s.reports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := &s.reports[i]

		substances := s.reportSubstances(r, filter.Roles, filter.Substance)
		reactions := s.reportReactions(r)

		for substance := range substances {
			counts.DrugTotals[substance]++
			for reaction := range reactions {
				counts.PairCounts[domain.PairKey{Substance: substance, Reaction: reaction}]++
			}
		}
		for reaction := range reactions {
			counts.EventTotals[reaction]++
		}
	}

	if filter.MinimumCases > 1 {
		for key, n := range counts.PairCounts {
			if n < filter.MinimumCases {
				delete(counts.PairCounts, key)
			}
		}
	}

	return counts, nil
}

// CountsForPair answers a targeted lookup from the snapshot.
func (s *MemoryReportStore) CountsForPair(ctx context.Context, substance, reaction string, roles []domain.DrugRole) (*domain.PairCounts, error) {
	substanceKey := strings.ToUpper(substance)
	reactionKey := strings.ToUpper(reaction)

	if _, ok := s.drugNames[substanceKey]; !ok {
		return nil, fmt.Errorf("pair (%s, %s): %w", substance, reaction, domain.ErrInsufficientData)
	}
	if _, ok := s.reactionNames[reactionKey]; !ok {
		return nil, fmt.Errorf("pair (%s, %s): %w", substance, reaction, domain.ErrInsufficientData)
	}

	counts := &domain.PairCounts{TotalReports: int64(len(s.reports))}

	for i := range s.reports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := &s.reports[i]

		hasDrug := r.HasDrugWithRole(substance, effectiveRoles(roles))
		hasReaction := r.HasReaction(reaction)

		if hasDrug {
			counts.DrugTotal++
		}
		if hasReaction {
			counts.EventTotal++
		}
		if hasDrug && hasReaction {
			counts.PairCount++
		}
	}

	return counts, nil
}

func effectiveRoles(roles []domain.DrugRole) []domain.DrugRole {
	if len(roles) == 0 {
		return []domain.DrugRole{domain.PRIMARY_SUSPECT}
	}
	return roles
}
