package api

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"woningwaarde/server/internal/database"
	"woningwaarde/server/internal/engine"
	"woningwaarde/server/internal/extract"
	"woningwaarde/server/internal/models"
	"woningwaarde/server/internal/queue"
	"woningwaarde/server/internal/storage"
	"woningwaarde/server/internal/streetinfo"
	"woningwaarde/server/internal/valuation"
)

type Handler struct {
	db        *database.Database
	engine    *engine.Engine
	streets   *streetinfo.Client // nil when Overpass enrichment is off
	queue     *queue.RowQueue
	logger    *logrus.Logger
	batchSize int
}

func NewHandler(db *database.Database, eng *engine.Engine, streets *streetinfo.Client, q *queue.RowQueue, batchSize int, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	return &Handler{
		db:        db,
		engine:    eng,
		streets:   streets,
		queue:     q,
		logger:    logger,
		batchSize: batchSize,
	}
}

type ValuationRequest struct {
	Subject models.SubjectProperty `json:"subject" binding:"required"`
	// Source selects a stored candidate set; Rows supplies one inline.
	Source string              `json:"source"`
	Rows   []map[string]string `json:"rows"`
}

// CreateValuation runs the full pipeline for a subject against either the
// stored candidate rows of a source or rows supplied inline.
func (h *Handler) CreateValuation(c *gin.Context) {
	var req ValuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid valuation request: " + err.Error()})
		return
	}

	rows := req.Rows
	if len(rows) == 0 && req.Source != "" {
		stored, err := h.db.GetCandidateRows(req.Source)
		if err != nil {
			h.logger.WithError(err).Error("Failed to load candidate rows")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load candidate rows"})
			return
		}
		rows = stored
	}
	if len(rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No candidate rows: supply rows or an imported source"})
		return
	}

	if h.streets != nil {
		// Warm the profile cache for the subject street; candidate streets
		// are refreshed in the background by the scheduler.
		h.streets.Prefetch(c.Request.Context(), []string{req.Subject.Street})
	}

	result, err := h.engine.Run(c.Request.Context(), req.Subject, rows)
	if err != nil {
		if errors.Is(err, valuation.ErrInsufficientData) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Valuation run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Valuation run failed"})
		return
	}

	if err := h.db.SaveRun(result); err != nil {
		h.logger.WithError(err).WithField("run_id", result.RunID).Error("Failed to persist valuation run")
	}

	c.JSON(http.StatusOK, result)
}

// GetValuation returns a previously stored run.
func (h *Handler) GetValuation(c *gin.Context) {
	id := c.Param("id")

	result, err := h.db.GetRun(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown valuation run"})
			return
		}
		h.logger.WithError(err).Error("Failed to load valuation run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load valuation run"})
		return
	}

	c.JSON(http.StatusOK, result)
}

type ImportRequest struct {
	Source  string              `json:"source" binding:"required"`
	Rows    []map[string]string `json:"rows"`
	Replace bool                `json:"replace"`
}

// ImportCandidates accepts a candidate table as JSON rows or as a CSV body
// and enqueues it for persistence. The response reports what was accepted,
// not yet what will survive extraction.
func (h *Handler) ImportCandidates(c *gin.Context) {
	req, ok := h.bindImport(c)
	if !ok {
		return
	}
	if len(req.Rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No rows to import"})
		return
	}

	if req.Replace {
		deleted, err := h.db.DeleteCandidateRows(req.Source)
		if err != nil {
			h.logger.WithError(err).Error("Failed to clear candidate source")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear candidate source"})
			return
		}
		h.logger.WithFields(logrus.Fields{"source": req.Source, "deleted": deleted}).Info("Cleared candidate source")
	}

	enqueued := 0
	for start := 0; start < len(req.Rows); start += h.batchSize {
		end := start + h.batchSize
		if end > len(req.Rows) {
			end = len(req.Rows)
		}
		err := h.queue.Push(queue.RowBatch{Source: req.Source, Rows: req.Rows[start:end]})
		if err != nil {
			h.logger.WithError(err).Error("Failed to enqueue import batch")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":    "Import queue unavailable",
				"enqueued": enqueued,
			})
			return
		}
		enqueued += end - start
	}

	c.JSON(http.StatusAccepted, gin.H{"source": req.Source, "enqueued": enqueued})
}

// bindImport reads either a JSON import request or a raw CSV body with the
// source passed as a query parameter.
func (h *Handler) bindImport(c *gin.Context) (ImportRequest, bool) {
	if strings.HasPrefix(c.ContentType(), "text/csv") {
		source := c.Query("source")
		if source == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "CSV imports need a source query parameter"})
			return ImportRequest{}, false
		}
		rows, err := storage.ReadCandidateCSV(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid CSV: " + err.Error()})
			return ImportRequest{}, false
		}
		return ImportRequest{
			Source:  source,
			Rows:    rows,
			Replace: c.Query("replace") == "true",
		}, true
	}

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid import request: " + err.Error()})
		return ImportRequest{}, false
	}
	return req, true
}

// ListSources reports the stored candidate sources and their row counts.
func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.db.Sources()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sources")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	out := make([]gin.H, 0, len(sources))
	for _, source := range sources {
		count, err := h.db.CountCandidateRows(source)
		if err != nil {
			h.logger.WithError(err).Error("Failed to count source rows")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count source rows"})
			return
		}
		out = append(out, gin.H{"source": source, "rows": count})
	}

	c.JSON(http.StatusOK, out)
}

type TopStreetsRequest struct {
	Subject models.SubjectProperty `json:"subject" binding:"required"`
	Source  string                 `json:"source"`
	Rows    []map[string]string    `json:"rows"`
	Limit   int                    `json:"limit"`
}

// TopStreets returns the shortlist of streets whose sales match the subject
// best.
func (h *Handler) TopStreets(c *gin.Context) {
	var req TopStreetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid street request: " + err.Error()})
		return
	}

	rows := req.Rows
	if len(rows) == 0 && req.Source != "" {
		stored, err := h.db.GetCandidateRows(req.Source)
		if err != nil {
			h.logger.WithError(err).Error("Failed to load candidate rows")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load candidate rows"})
			return
		}
		rows = stored
	}

	extracted := extract.Extract(rows)
	streets, err := h.engine.TopStreets(c.Request.Context(), req.Subject, extracted.Accepted, req.Limit)
	if err != nil {
		if errors.Is(err, valuation.ErrInsufficientData) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Street ranking failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Street ranking failed"})
		return
	}

	c.JSON(http.StatusOK, streets)
}
