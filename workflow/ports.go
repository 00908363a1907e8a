// Package workflow runs scanned documents through the extract, transform and
// load stages and reports successful documents downstream.
package workflow

import (
	"context"
	"errors"

	"github.com/henrymedina447/sbs-suptech-etl-v2/blockgraph"
	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
)

var (
	// ErrEmptyResult means the OCR result had no pages.
	ErrEmptyResult = errors.New("ocr result has no pages")
	// ErrNoFields means the field-extraction model returned nothing usable.
	ErrNoFields = errors.New("no fields extracted")
)

// Extractor turns a source document into per-page text.
type Extractor interface {
	ExtractPages(ctx context.Context, doc model.DocumentContract) ([]blockgraph.PageText, error)
}

// FieldExtractor asks the field-extraction model for the fields of one text.
// A nil result with a nil error means nothing could be extracted.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, docType model.DocumentType, text string) (model.Fields, error)
}

// DocumentStore persists raw text.
type DocumentStore interface {
	Save(ctx context.Context, key string, data []byte) error
}

// MetadataStore persists extracted fields. It is called once per single-record
// document and once per registration document with all of its children.
type MetadataStore interface {
	SaveMetadata(ctx context.Context, docType model.DocumentType, entries []model.MetadataEntry) error
}

// Notifier delivers notification events downstream.
type Notifier interface {
	Notify(ctx context.Context, events []model.NotificationEvent) error
}

// Workflow processes one document and reports whether extract, transform and
// load all succeeded.
type Workflow interface {
	Execute(ctx context.Context, doc model.DocumentContract) bool
}
