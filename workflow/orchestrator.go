package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
	"github.com/henrymedina447/sbs-suptech-etl-v2/retry"
)

// DefaultEventType is the notification type sent for processed documents.
const DefaultEventType = "regulatory-compliance-prompts.insert-metadata"

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	EventType string
	// DocumentConcurrency is how many documents of a batch run at once.
	// Values below 2 process documents one at a time.
	DocumentConcurrency int
	Retry               retry.Policy
}

// Orchestrator dispatches batches of documents to the workflow registered for
// their type and notifies downstream once per batch.
type Orchestrator struct {
	workflows   map[model.DocumentType]Workflow
	notifier    Notifier
	eventType   string
	concurrency int
	retry       retry.Policy
	newID       func() string
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(workflows map[model.DocumentType]Workflow, notifier Notifier, cfg OrchestratorConfig) *Orchestrator {
	eventType := cfg.EventType
	if eventType == "" {
		eventType = DefaultEventType
	}
	return &Orchestrator{
		workflows:   workflows,
		notifier:    notifier,
		eventType:   eventType,
		concurrency: cfg.DocumentConcurrency,
		retry:       cfg.Retry,
		newID:       uuid.NewString,
	}
}

// Run processes docs with the workflow for docType, each exactly once, and
// sends one notification with an event per successful document. Document
// failures are only visible as missing results; the returned error is set for
// an unknown type or a failed notification.
func (o *Orchestrator) Run(ctx context.Context, docType model.DocumentType, docs []model.DocumentContract) ([]model.BatchResult, error) {
	wf, ok := o.workflows[docType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownDocumentType, docType)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	ctx = logger.With(ctx, logger.DocumentTypeKey, string(docType))
	start := time.Now()
	logger.Info(ctx, "batch started", "documents", len(docs), "concurrency", max(o.concurrency, 1))

	succeeded := o.execute(ctx, wf, docs)

	var results []model.BatchResult
	for i, doc := range docs {
		if succeeded[i] {
			results = append(results, model.ResultFor(doc))
		}
	}

	logger.Info(ctx, "batch finished",
		"documents", len(docs),
		"succeeded", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if len(results) == 0 {
		return nil, nil
	}
	if err := o.notify(ctx, results); err != nil {
		return results, err
	}
	return results, nil
}

func (o *Orchestrator) execute(ctx context.Context, wf Workflow, docs []model.DocumentContract) []bool {
	succeeded := make([]bool, len(docs))
	runOne := func(i int) {
		doc := docs[i]
		dctx := logger.With(ctx, logger.SessionIDKey, doc.SessionID)
		succeeded[i] = wf.Execute(dctx, doc)
	}

	if o.concurrency <= 1 {
		for i := range docs {
			runOne(i)
		}
		return succeeded
	}

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i := range docs {
		g.Go(func() error {
			runOne(i)
			return nil
		})
	}
	_ = g.Wait()
	return succeeded
}

func (o *Orchestrator) notify(ctx context.Context, results []model.BatchResult) error {
	events := make([]model.NotificationEvent, len(results))
	for i, r := range results {
		events[i] = model.NotificationEvent{
			ID:        o.newID(),
			SessionID: r.SessionID,
			Type:      o.eventType,
			Data: map[string]string{
				"recordId": r.RecordID,
				"parentId": r.ParentID,
			},
		}
	}

	err := retry.Run(ctx, o.retry, "notify", func(ctx context.Context) error {
		return o.notifier.Notify(ctx, events)
	})
	if err != nil {
		return fmt.Errorf("notify %d events: %w", len(events), err)
	}
	logger.Info(ctx, "batch notified", "events", len(events))
	return nil
}

// RunBatches runs every batch in order and reports each one's outcome.
// A failing batch does not stop the ones after it.
func (o *Orchestrator) RunBatches(ctx context.Context, batches []model.Batch) []model.RunBatch {
	out := make([]model.RunBatch, 0, len(batches))
	for _, b := range batches {
		rb := model.RunBatch{DocumentType: b.DocumentType, Documents: len(b.Documents)}
		results, err := o.Run(ctx, b.DocumentType, b.Documents)
		rb.Succeeded = results
		if err != nil {
			rb.Error = err.Error()
			logger.Error(ctx, "batch failed", "document_type", b.DocumentType, "error", err)
		}
		out = append(out, rb)
	}
	return out
}
