package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/ingest"
	"github.com/Pocket/content-monorepo-sub003/pkg/telemetry/logging"
)

// sweepRequest is the body of POST /v1/sweeps.
type sweepRequest struct {
	SurfaceGUID   string `json:"surface_guid" binding:"required"`
	CandidateType string `json:"candidate_type" binding:"required"`
	MaxAgeMinutes *int   `json:"max_age_minutes" binding:"omitempty,gte=0"`
}

// handleIngest processes one candidate batch message.
func (s *Server) handleIngest(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "message too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	msg, err := ingest.DecodeMessage(bytes.NewReader(body))
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx := logging.WithMessageID(c.Request.Context(), msg.ID)
	summary, err := s.deps.Processor.Process(ctx, msg)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, summary)
}

// handleSweep runs one retention pass over a single partition.
func (s *Server) handleSweep(c *gin.Context) {
	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidateType := prospect.CandidateType(req.CandidateType)
	if !candidateType.Valid() {
		s.writeError(c, prospect.NewValidationError("candidate_type", "unknown candidate type "+req.CandidateType))
		return
	}

	maxAge := s.deps.MaxAgeMinutes()
	if req.MaxAgeMinutes != nil {
		maxAge = *req.MaxAgeMinutes
	}

	result, err := s.deps.Sweeper.Sweep(c.Request.Context(), req.SurfaceGUID, candidateType, s.clock(), maxAge)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleGetCandidate returns one stored record.
func (s *Server) handleGetCandidate(c *gin.Context) {
	id := c.Param("id")

	record, found, err := s.deps.Records.GetByID(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "candidate not found", "id": id})
		return
	}

	c.JSON(http.StatusOK, record)
}

// writeError maps domain errors to status codes. Validation failures are the
// caller's fault; everything else is reported as an internal error without
// its details.
func (s *Server) writeError(c *gin.Context, err error) {
	var validationErr *prospect.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Message,
			"field": validationErr.Field,
		})
		return
	}

	_ = c.Error(err)
	s.logger.ErrorContext(c.Request.Context(), "request failed",
		"method", c.Request.Method,
		"route", c.FullPath(),
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
