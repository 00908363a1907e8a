package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/henrymedina447/sbs-suptech-etl-v2/middleware"
	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
	"github.com/henrymedina447/sbs-suptech-etl-v2/service"
)

// BatchRunner processes grouped documents, one batch per document type.
type BatchRunner interface {
	RunBatches(ctx context.Context, batches []model.Batch) []model.RunBatch
}

// MetadataReader reads stored extraction results.
type MetadataReader interface {
	Metadata(ctx context.Context, docType model.DocumentType, recordID string) ([]model.MetadataEntry, error)
}

type ETLHandler struct {
	runner   BatchRunner
	metadata MetadataReader
	store    *service.RunStore
	// background starts a run; tests replace it to run inline.
	background func(func())
}

func NewETLHandler(runner BatchRunner, metadata MetadataReader, store *service.RunStore) *ETLHandler {
	return &ETLHandler{
		runner:     runner,
		metadata:   metadata,
		store:      store,
		background: func(f func()) { go f() },
	}
}

type StartRequest struct {
	Documents []model.DocumentContract `json:"documents" binding:"required"`
}

// Start validates the documents and processes them in the background
func (h *ETLHandler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if len(req.Documents) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No documents provided"})
		return
	}
	for i := range req.Documents {
		if err := req.Documents[i].Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	now := time.Now()
	run := &model.Run{
		ID:        uuid.NewString(),
		ClientID:  middleware.GetClientID(c),
		Status:    model.StatusPending,
		Documents: len(req.Documents),
		CreatedAt: now,
		UpdatedAt: now,
	}
	h.store.Save(run)

	// The run outlives the request but keeps its log fields.
	ctx := logger.With(context.WithoutCancel(c.Request.Context()), logger.RunIDKey, run.ID)
	batches := model.GroupByType(req.Documents)
	h.background(func() { h.process(ctx, run.ID, batches) })

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":    run.ID,
		"status":    run.Status,
		"documents": run.Documents,
	})
}

func (h *ETLHandler) process(ctx context.Context, runID string, batches []model.Batch) {
	h.store.UpdateStatus(runID, model.StatusProcessing, "")
	logger.Info(ctx, "run started", "batches", len(batches))

	results := h.runner.RunBatches(ctx, batches)
	h.store.Complete(runID, results)

	succeeded := 0
	for _, b := range results {
		succeeded += len(b.Succeeded)
	}
	logger.Info(ctx, "run finished", "succeeded", succeeded)
}

// ListRuns returns the runs started by the current client
func (h *ETLHandler) ListRuns(c *gin.Context) {
	runs := h.store.ListByClient(middleware.GetClientID(c))

	result := make([]gin.H, len(runs))
	for i, r := range runs {
		result[i] = gin.H{
			"id":         r.ID,
			"status":     r.Status,
			"documents":  r.Documents,
			"created_at": r.CreatedAt.Format(time.RFC3339),
			"updated_at": r.UpdatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"runs": result})
}

// GetRun returns a run with its batch results
func (h *ETLHandler) GetRun(c *gin.Context) {
	run := h.store.Get(c.Param("id"))
	if run == nil || run.ClientID != middleware.GetClientID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// GetMetadata returns the fields stored for a record
func (h *ETLHandler) GetMetadata(c *gin.Context) {
	docType, err := model.ParseDocumentType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.metadata.Metadata(c.Request.Context(), docType, c.Param("id"))
	if err != nil {
		logger.Error(c.Request.Context(), "metadata lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read metadata"})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Metadata not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document_type": docType,
		"entries":       entries,
	})
}
