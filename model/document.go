package model

import (
	"errors"
	"fmt"
	"strings"
)

// DocumentType selects the workflow variant used for a document.
type DocumentType string

const (
	DocumentPolicy       DocumentType = "POLICY"
	DocumentRegistration DocumentType = "REGISTRATION"
	DocumentAppraisal    DocumentType = "APPRAISAL"
)

// DocumentTypes lists every supported type.
var DocumentTypes = []DocumentType{DocumentPolicy, DocumentRegistration, DocumentAppraisal}

// ErrUnknownDocumentType is returned for a type no workflow handles.
var ErrUnknownDocumentType = errors.New("unknown document type")

// ParseDocumentType accepts a type name in any case.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range DocumentTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, s)
}

// SourcePrefix is the storage prefix scanned documents of this type are uploaded under.
func (t DocumentType) SourcePrefix() string {
	switch t {
	case DocumentPolicy:
		return "Polizas/"
	case DocumentRegistration:
		return "Inscripciones/"
	case DocumentAppraisal:
		return "Tasaciones/"
	}
	return ""
}

// DocumentContract identifies one source document to process.
type DocumentContract struct {
	RecordID     string       `json:"recordId"`
	ParentID     string       `json:"parentId"`
	SessionID    string       `json:"sessionId"`
	DocumentType DocumentType `json:"documentType"`
	PeriodMonth  string       `json:"periodMonth"`
	PeriodYear   string       `json:"periodYear"`
	SourceKey    string       `json:"key"`
}

// Validate checks the fields every workflow relies on and normalizes the type.
func (d *DocumentContract) Validate() error {
	if d.RecordID == "" {
		return errors.New("recordId is required")
	}
	if d.SourceKey == "" {
		return fmt.Errorf("document %s: key is required", d.RecordID)
	}
	t, err := ParseDocumentType(string(d.DocumentType))
	if err != nil {
		return fmt.Errorf("document %s: %w", d.RecordID, err)
	}
	d.DocumentType = t
	return nil
}

// Batch is a set of documents of one type processed together.
type Batch struct {
	DocumentType DocumentType
	Documents    []DocumentContract
}

// GroupByType splits docs into one batch per document type, in the order
// each type first appears.
func GroupByType(docs []DocumentContract) []Batch {
	var batches []Batch
	pos := make(map[DocumentType]int)
	for _, d := range docs {
		i, ok := pos[d.DocumentType]
		if !ok {
			i = len(batches)
			pos[d.DocumentType] = i
			batches = append(batches, Batch{DocumentType: d.DocumentType})
		}
		batches[i].Documents = append(batches[i].Documents, d)
	}
	return batches
}

// BatchResult identifies a document that completed extract, transform and load.
type BatchResult struct {
	RecordID  string `json:"recordId"`
	ParentID  string `json:"parentId"`
	SessionID string `json:"sessionId"`
}

// ResultFor builds the BatchResult of a successfully processed document.
func ResultFor(d DocumentContract) BatchResult {
	return BatchResult{RecordID: d.RecordID, ParentID: d.ParentID, SessionID: d.SessionID}
}

// NotificationEvent is sent downstream for each successful document.
type NotificationEvent struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Type      string            `json:"type"`
	Data      map[string]string `json:"data"`
}
