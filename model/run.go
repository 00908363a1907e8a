package model

import (
	"time"
)

// Run tracks one ETL request submitted through the API
type Run struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"client_id"`
	Status    string     `json:"status"` // pending, processing, completed, failed
	Documents int        `json:"documents"`
	Batches   []RunBatch `json:"batches,omitempty"`
	ErrorMsg  string     `json:"error_msg,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunBatch is the outcome of one orchestrator batch within a run
type RunBatch struct {
	DocumentType DocumentType  `json:"document_type"`
	Documents    int           `json:"documents"`
	Succeeded    []BatchResult `json:"succeeded"`
	Error        string        `json:"error,omitempty"`
}

// Run status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
