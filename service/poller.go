package service

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
	"github.com/henrymedina447/sbs-suptech-etl-v2/workflow"
)

// ObjectLister lists stored objects under a prefix.
type ObjectLister interface {
	ListDocuments(ctx context.Context, prefix string) ([]SourceObject, error)
}

// ScanOptions identify the documents produced by a scan.
type ScanOptions struct {
	SessionID string
	ParentID  string
}

// DocumentPoller turns the scanned documents uploaded for a document type
// into processing requests. Sources are stored as
// <type prefix><Month> <Year>/<file>.<ext>.
type DocumentPoller struct {
	lister    ObjectLister
	extension string
	newID     func() string
}

func NewDocumentPoller(lister ObjectLister, extension string) *DocumentPoller {
	if extension == "" {
		extension = "pdf"
	}
	return &DocumentPoller{
		lister:    lister,
		extension: "." + strings.ToLower(strings.TrimPrefix(extension, ".")),
		newID:     uuid.NewString,
	}
}

// Scan lists the sources of docType and returns one document per file with
// a fresh record id. The period comes from the folder name; it is left empty
// when the folder does not read as "<Month> <Year>".
func (p *DocumentPoller) Scan(ctx context.Context, docType model.DocumentType, opts ScanOptions) ([]model.DocumentContract, error) {
	prefix := docType.SourcePrefix()
	if prefix == "" {
		return nil, model.ErrUnknownDocumentType
	}

	objects, err := p.lister.ListDocuments(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var docs []model.DocumentContract
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") || !strings.HasSuffix(strings.ToLower(obj.Key), p.extension) {
			continue
		}
		month, year := periodOf(path.Dir(strings.TrimPrefix(obj.Key, prefix)))
		if month == "" || year == "" {
			logger.Warn(ctx, "source folder has no period", "key", obj.Key)
		}
		docs = append(docs, model.DocumentContract{
			RecordID:     p.newID(),
			ParentID:     opts.ParentID,
			SessionID:    opts.SessionID,
			DocumentType: docType,
			PeriodMonth:  month,
			PeriodYear:   year,
			SourceKey:    obj.Key,
		})
	}
	logger.Info(ctx, "sources scanned", "prefix", prefix, "objects", len(objects), "documents", len(docs))
	return docs, nil
}

// periodOf reads "<Month> <Year>" folder names such as "Mayo 2023".
func periodOf(folder string) (month, year string) {
	parts := strings.Fields(folder)
	if len(parts) != 2 {
		return "", ""
	}
	return workflow.RefineMonth(parts[0]), workflow.RefineYear(parts[1])
}
