package workflow

import (
	"strconv"

	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/retry"
)

const (
	DefaultFirstPages = 20
	DefaultTextPrefix = "txt/"
)

// Deps are the collaborators shared by every workflow variant.
type Deps struct {
	Extractor Extractor
	Fields    FieldExtractor
	Documents DocumentStore
	Metadata  MetadataStore
}

// Options tune a workflow. Zero values fall back to defaults.
type Options struct {
	// FirstPages is how many pages make up DocumentContentTotal.
	FirstPages int
	// TextPrefix is prepended to every raw text key.
	TextPrefix string
	// Retry wraps field extraction and persistence calls.
	Retry retry.Policy
}

func (o Options) withDefaults() Options {
	if o.FirstPages <= 0 {
		o.FirstPages = DefaultFirstPages
	}
	if o.TextPrefix == "" {
		o.TextPrefix = DefaultTextPrefix
	}
	return o
}

func (o Options) textKey(recordID string) string {
	return o.TextPrefix + recordID + ".txt"
}

func (o Options) childTextKey(recordID string, index int) string {
	return o.TextPrefix + recordID + "/" + strconv.Itoa(index) + ".txt"
}

// docState is the value a pipeline threads through its stages: the document
// being processed and the record built from it.
type docState[R any] struct {
	doc model.DocumentContract
	rec R
}
