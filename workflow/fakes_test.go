package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/henrymedina447/sbs-suptech-etl-v2/blockgraph"
	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/retry"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls map[string]int
	pages map[string][]blockgraph.PageText
	errs  map[string]error
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		calls: make(map[string]int),
		pages: make(map[string][]blockgraph.PageText),
		errs:  make(map[string]error),
	}
}

func (f *fakeExtractor) ExtractPages(_ context.Context, doc model.DocumentContract) ([]blockgraph.PageText, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[doc.RecordID]++
	if err := f.errs[doc.RecordID]; err != nil {
		return nil, err
	}
	return f.pages[doc.RecordID], nil
}

func (f *fakeExtractor) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// fakeFields answers by text. Texts without an entry get nil fields.
type fakeFields struct {
	mu       sync.Mutex
	calls    map[string]int
	byText   map[string]model.Fields
	errs     map[string][]error
	types    []model.DocumentType
	onCall   func(text string)
	fallback model.Fields
}

func newFakeFields() *fakeFields {
	return &fakeFields{
		calls:  make(map[string]int),
		byText: make(map[string]model.Fields),
		errs:   make(map[string][]error),
	}
}

func (f *fakeFields) ExtractFields(_ context.Context, docType model.DocumentType, text string) (model.Fields, error) {
	f.mu.Lock()
	f.calls[text]++
	f.types = append(f.types, docType)
	var err error
	if q := f.errs[text]; len(q) > 0 {
		err = q[0]
		f.errs[text] = q[1:]
	}
	fields, ok := f.byText[text]
	if !ok {
		fields = f.fallback
	}
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(text)
	}
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (f *fakeFields) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeDocuments struct {
	mu    sync.Mutex
	saved map[string]string
	err   error
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{saved: make(map[string]string)}
}

func (f *fakeDocuments) Save(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved[key] = string(data)
	return nil
}

type metadataCall struct {
	docType model.DocumentType
	entries []model.MetadataEntry
}

type fakeMetadata struct {
	mu    sync.Mutex
	calls []metadataCall
	err   error
}

func (f *fakeMetadata) SaveMetadata(_ context.Context, docType model.DocumentType, entries []model.MetadataEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, metadataCall{docType: docType, entries: entries})
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls [][]model.NotificationEvent
	errs  []error
}

func (f *fakeNotifier) Notify(_ context.Context, events []model.NotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, events)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

var errBoom = errors.New("boom")

// instantRetry retries like the default policy without sleeping.
func instantRetry() retry.Policy {
	p := retry.DefaultPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

type harness struct {
	extractor *fakeExtractor
	fields    *fakeFields
	documents *fakeDocuments
	metadata  *fakeMetadata
}

func newHarness() *harness {
	return &harness{
		extractor: newFakeExtractor(),
		fields:    newFakeFields(),
		documents: newFakeDocuments(),
		metadata:  &fakeMetadata{},
	}
}

func (h *harness) deps() Deps {
	return Deps{Extractor: h.extractor, Fields: h.fields, Documents: h.documents, Metadata: h.metadata}
}

func (h *harness) opts() Options {
	return Options{Retry: instantRetry()}
}

func pages(texts ...string) []blockgraph.PageText {
	out := make([]blockgraph.PageText, len(texts))
	for i, t := range texts {
		out[i] = blockgraph.PageText{Text: t}
	}
	return out
}

func doc(id string, t model.DocumentType) model.DocumentContract {
	return model.DocumentContract{
		RecordID:     id,
		ParentID:     "parent-" + id,
		SessionID:    "session-1",
		DocumentType: t,
		PeriodMonth:  "5",
		PeriodYear:   "2023",
		SourceKey:    "src/" + id + ".pdf",
	}
}
