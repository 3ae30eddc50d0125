package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/faers-signal-server/internal/cache"
	"github.com/faers-signal-server/internal/domain"
	"github.com/faers-signal-server/internal/service"
	"github.com/faers-signal-server/pkg/export"
)

// RunRequest is the body of POST /api/v1/analysis/runs.
type RunRequest struct {
	Substance    string `json:"substance"`
	SignalsOnly  bool   `json:"signals_only"`
	OmitExcluded bool   `json:"omit_excluded"`
}

// handleRun executes (or serves from cache) a full analysis run.
// Append ?format=csv for a CSV export of the ranked pairs.
func (s *Server) handleRun(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":          "invalid request body: " + err.Error(),
				"correlation_id": c.GetString("correlation_id"),
			})
			return
		}
	}

	params := service.RunParams{
		Substance:    req.Substance,
		SignalsOnly:  req.SignalsOnly,
		OmitExcluded: req.OmitExcluded,
	}

	result, cached, err := s.runAnalysis(c, params)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"correlation_id": c.GetString("correlation_id"),
			"error":          err.Error(),
		}).Error("Analysis run failed")

		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidConfiguration) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error":          err.Error(),
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="signals_`+result.RunID+`.csv"`)
		c.Status(http.StatusOK)
		if err := export.WriteCSV(c.Writer, result, export.Options{SignalsOnly: req.SignalsOnly}); err != nil {
			s.log.WithField("error", err.Error()).Error("CSV export failed mid-stream")
		}
		return
	}

	c.Header("X-Cache", cacheHeader(cached))
	c.JSON(http.StatusOK, result)
}

// runAnalysis consults the run cache before paying for a full store pass.
func (s *Server) runAnalysis(c *gin.Context, params service.RunParams) (*domain.RunResult, bool, error) {
	ctx := c.Request.Context()

	if s.runs == nil {
		result, err := s.detector.Run(ctx, params)
		return result, false, err
	}

	key := cache.RunKey(s.store.SnapshotID(), s.detector.Config(), params)

	if result, ok, err := s.runs.Get(ctx, key); err != nil {
		// A cache failure degrades to a fresh run, never a request failure.
		s.log.WithField("error", err.Error()).Warn("Run cache lookup failed")
	} else if ok {
		return result, true, nil
	}

	result, err := s.detector.Run(ctx, params)
	if err != nil {
		return nil, false, err
	}

	if err := s.runs.Set(ctx, key, result, 0); err != nil {
		s.log.WithField("error", err.Error()).Warn("Run cache store failed")
	}

	return result, false, nil
}

// handlePair serves a targeted single-pair analysis:
// GET /api/v1/analysis/pairs?substance=...&reaction=...
func (s *Server) handlePair(c *gin.Context) {
	substance := c.Query("substance")
	reaction := c.Query("reaction")
	if substance == "" || reaction == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "substance and reaction query parameters are required",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	score, err := s.detector.ScorePair(c.Request.Context(), substance, reaction)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientData):
			c.JSON(http.StatusNotFound, gin.H{
				"error":          err.Error(),
				"correlation_id": c.GetString("correlation_id"),
			})
		case errors.Is(err, service.ErrBelowMinimumCases):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":          err.Error(),
				"correlation_id": c.GetString("correlation_id"),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":          err.Error(),
				"correlation_id": c.GetString("correlation_id"),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"score":       score,
		"snapshot_id": s.store.SnapshotID(),
		"timestamp":   time.Now().UTC(),
	})
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
