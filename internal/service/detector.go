package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/faers-signal-server/internal/domain"
)

// ErrBelowMinimumCases marks a targeted pair whose co-occurrence count is
// below the reporting threshold.
var ErrBelowMinimumCases = errors.New("pair below minimum case threshold")

// DetectionService orchestrates a disproportionality run: one aggregation
// pass over the report store, parallel per-pair scoring, threshold
// classification and ranking. Runs are pure functions of the store snapshot
// and the analysis configuration.
type DetectionService struct {
	store      domain.ReportStore
	builder    *TableBuilder
	engine     *DisproportionalityEngine
	classifier *SignalClassifier
	cfg        domain.AnalysisConfig
	log        *logrus.Logger
	breaker    *gobreaker.CircuitBreaker
}

// NewDetectionService validates the analysis configuration and wires the
// pipeline. Configuration errors fail here, before any computation starts.
func NewDetectionService(store domain.ReportStore, cfg domain.AnalysisConfig, logger *logrus.Logger) (*DetectionService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine, err := NewDisproportionalityEngine(cfg.ConfidenceLevel)
	if err != nil {
		return nil, err
	}

	builder, err := NewTableBuilder(store, 1024, logger)
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "report-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Report store circuit breaker state changed")
		},
	})

	return &DetectionService{
		store:      store,
		builder:    builder,
		engine:     engine,
		classifier: NewSignalClassifier(cfg.Thresholds, logger),
		cfg:        cfg,
		log:        logger,
		breaker:    breaker,
	}, nil
}

// RunParams narrows one analysis run.
type RunParams struct {
	// Substance restricts the run to drugs whose name contains this
	// substring (case-insensitive).
	Substance string `json:"substance,omitempty"`

	// SignalsOnly drops NONE-classified pairs from the ranked output.
	SignalsOnly bool `json:"signals_only,omitempty"`

	// OmitExcluded pushes the minimum-case filter into the store pass and
	// skips per-pair exclusion bookkeeping. Use for very large runs where
	// the excluded list itself would dominate the output.
	OmitExcluded bool `json:"omit_excluded,omitempty"`
}

// Run executes a full all-pairs analysis against the pinned snapshot.
// The result is a finite batch: a fresh run must be invoked to observe new
// data.
func (s *DetectionService) Run(ctx context.Context, params RunParams) (*domain.RunResult, error) {
	started := time.Now()
	runID := uuid.New().String()

	roles, err := s.cfg.Roles()
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"run_id":        runID,
		"snapshot_id":   s.store.SnapshotID(),
		"substance":     params.Substance,
		"minimum_cases": s.cfg.MinimumCases,
		"roles":         s.cfg.RoleFilter,
	}).Info("Starting disproportionality run")

	filter := domain.CountFilter{
		Roles:     roles,
		Substance: params.Substance,
	}
	if params.OmitExcluded {
		filter.MinimumCases = s.cfg.MinimumCases
	}

	agg, err := s.aggregate(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("aggregation pass failed: %w", err)
	}

	candidates := make([]domain.PairKey, 0, len(agg.PairCounts))
	excluded := make([]domain.ExcludedPair, 0)
	for key, n := range agg.PairCounts {
		if n < s.cfg.MinimumCases {
			if !params.OmitExcluded {
				excluded = append(excluded, domain.ExcludedPair{
					Substance: key.Substance,
					Reaction:  key.Reaction,
					Reason:    domain.BELOW_MINIMUM_CASES,
					Detail:    fmt.Sprintf("%d cases, minimum is %d", n, s.cfg.MinimumCases),
				})
			}
			continue
		}
		candidates = append(candidates, key)
	}

	scores, scoreExcluded, err := s.scorePairs(ctx, agg, candidates)
	if err != nil {
		return nil, err
	}
	excluded = append(excluded, scoreExcluded...)

	s.classifier.ClassifyAll(scores)
	s.classifier.Rank(scores)

	if params.SignalsOnly {
		kept := scores[:0]
		for _, score := range scores {
			if score.Strength.RequiresReview() {
				kept = append(kept, score)
			}
		}
		scores = kept
	}

	sortExcluded(excluded)

	result := &domain.RunResult{
		RunID:        runID,
		SnapshotID:   s.store.SnapshotID(),
		GeneratedAt:  time.Now().UTC(),
		TotalReports: agg.TotalReports,
		Scores:       scores,
		Excluded:     excluded,
		Elapsed:      time.Since(started),
	}

	s.log.WithFields(logrus.Fields{
		"run_id":      runID,
		"pairs":       len(scores),
		"excluded":    len(excluded),
		"signals":     result.SignalCount(),
		"elapsed_ms":  result.Elapsed.Milliseconds(),
		"snapshot_id": result.SnapshotID,
	}).Info("Disproportionality run completed")

	return result, nil
}

// aggregate performs the store pass behind the circuit breaker.
func (s *DetectionService) aggregate(ctx context.Context, filter domain.CountFilter) (*domain.AggregateCounts, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.store.Aggregate(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.AggregateCounts), nil
}

// scorePairs derives tables and scores candidates concurrently. Each pair is
// independent: workers share only the read-only aggregates and write disjoint
// slice slots, so no locking is needed on the hot path.
func (s *DetectionService) scorePairs(ctx context.Context, agg *domain.AggregateCounts, candidates []domain.PairKey) ([]domain.SignalScore, []domain.ExcludedPair, error) {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	scores := make([]domain.SignalScore, len(candidates))
	valid := make([]bool, len(candidates))

	var mu sync.Mutex
	var excluded []domain.ExcludedPair

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, key := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			table, err := s.builder.TableFromAggregates(agg, key)
			if err != nil {
				if s.cfg.OnStoreError == domain.SKIP_PAIR {
					mu.Lock()
					excluded = append(excluded, domain.ExcludedPair{
						Substance: key.Substance,
						Reaction:  key.Reaction,
						Reason:    domain.STORE_ERROR,
						Detail:    err.Error(),
					})
					mu.Unlock()
					return nil
				}
				return &domain.StoreError{Substance: key.Substance, Reaction: key.Reaction, Err: err}
			}

			scores[i] = s.engine.Score(table)
			valid[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	kept := make([]domain.SignalScore, 0, len(candidates))
	for i := range scores {
		if valid[i] {
			kept = append(kept, scores[i])
		}
	}

	return kept, excluded, nil
}

// ScorePair runs a targeted analysis for one substance-reaction pair.
// Returns ErrBelowMinimumCases (wrapped) when the pair exists but has fewer
// co-occurrence cases than the reporting threshold, and
// domain.ErrInsufficientData when the substance or reaction is absent from
// the store entirely.
func (s *DetectionService) ScorePair(ctx context.Context, substance, reaction string) (*domain.SignalScore, error) {
	roles, err := s.cfg.Roles()
	if err != nil {
		return nil, err
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.builder.BuildTable(ctx, substance, reaction, roles)
	})
	if err != nil {
		return nil, err
	}
	table := result.(*domain.ContingencyTable)

	if table.A < s.cfg.MinimumCases {
		return nil, fmt.Errorf("pair (%s, %s) has %d cases, minimum is %d: %w",
			substance, reaction, table.A, s.cfg.MinimumCases, ErrBelowMinimumCases)
	}

	score := s.engine.Score(table)
	score.Strength = s.classifier.Classify(&score)

	s.log.WithFields(logrus.Fields{
		"substance":   substance,
		"reaction":    reaction,
		"case_count":  score.CaseCount,
		"snapshot_id": s.store.SnapshotID(),
	}).Info("Targeted pair scored")

	return &score, nil
}

// Config returns the analysis configuration the service was built with.
func (s *DetectionService) Config() domain.AnalysisConfig {
	return s.cfg
}

// sortExcluded keeps exclusion bookkeeping deterministic across runs.
func sortExcluded(excluded []domain.ExcludedPair) {
	sort.Slice(excluded, func(i, j int) bool {
		if excluded[i].Substance != excluded[j].Substance {
			return excluded[i].Substance < excluded[j].Substance
		}
		return excluded[i].Reaction < excluded[j].Reaction
	})
}
