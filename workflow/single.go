package workflow

import (
	"context"
	"fmt"

	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
	"github.com/henrymedina447/sbs-suptech-etl-v2/retry"
)

// SingleRecordWorkflow handles document types where one source document
// yields exactly one record.
type SingleRecordWorkflow[R any] struct {
	docType  model.DocumentType
	deps     Deps
	opts     Options
	base     func(*R) *model.ProcessingRecord
	fill     func(*R, model.Fields)
	metadata func(R) model.MetadataEntry
	newRec   func(model.ProcessingRecord) R
	pipeline *Pipeline[docState[R]]
}

func newSingleRecord[R any](w *SingleRecordWorkflow[R]) *SingleRecordWorkflow[R] {
	w.opts = w.opts.withDefaults()
	w.pipeline = NewPipeline(string(w.docType),
		func(s *docState[R]) *model.Outcome { return &w.base(&s.rec).Outcome },
		Stage[docState[R]]{Name: model.StageExtract, Run: w.extract},
		Stage[docState[R]]{Name: model.StageTransform, Requires: model.StageExtract, Run: w.transform},
		Stage[docState[R]]{Name: model.StageLoad, Requires: model.StageTransform, Run: w.load},
		Stage[docState[R]]{Name: model.StageFinal, Run: w.final},
	)
	return w
}

// NewPolicyWorkflow builds the workflow for insurance policies.
func NewPolicyWorkflow(deps Deps, opts Options) *SingleRecordWorkflow[model.PolicyRecord] {
	return newSingleRecord(&SingleRecordWorkflow[model.PolicyRecord]{
		docType: model.DocumentPolicy,
		deps:    deps,
		opts:    opts,
		base:    func(r *model.PolicyRecord) *model.ProcessingRecord { return &r.ProcessingRecord },
		fill: func(r *model.PolicyRecord, f model.Fields) {
			r.PolicyNumber = f[model.FieldPolicyNumber]
			r.PolicyName = f[model.FieldPolicyName]
			r.PolicyStartDate = RefineDate(f[model.FieldPolicyStartDate])
			r.PolicyEndDate = RefineDate(f[model.FieldPolicyEndDate])
		},
		metadata: model.PolicyRecord.Metadata,
		newRec:   func(p model.ProcessingRecord) model.PolicyRecord { return model.PolicyRecord{ProcessingRecord: p} },
	})
}

// NewAppraisalWorkflow builds the workflow for property appraisals.
func NewAppraisalWorkflow(deps Deps, opts Options) *SingleRecordWorkflow[model.AppraisalRecord] {
	return newSingleRecord(&SingleRecordWorkflow[model.AppraisalRecord]{
		docType: model.DocumentAppraisal,
		deps:    deps,
		opts:    opts,
		base:    func(r *model.AppraisalRecord) *model.ProcessingRecord { return &r.ProcessingRecord },
		fill: func(r *model.AppraisalRecord, f model.Fields) {
			r.ExpertName = f[model.FieldExpertName]
			r.AppraisalDate = RefineDate(f[model.FieldAppraisalDate])
			r.CommercialValue = f[model.FieldCommercialValue]
			r.RealizationValue = f[model.FieldRealizationValue]
			r.Owner = f[model.FieldAppraisalOwner]
		},
		metadata: model.AppraisalRecord.Metadata,
		newRec:   func(p model.ProcessingRecord) model.AppraisalRecord { return model.AppraisalRecord{ProcessingRecord: p} },
	})
}

// Run processes doc and returns the final record.
func (w *SingleRecordWorkflow[R]) Run(ctx context.Context, doc model.DocumentContract) R {
	ctx = logger.With(ctx, logger.RecordIDKey, doc.RecordID)
	s := docState[R]{doc: doc, rec: w.newRec(model.NewProcessingRecord(doc))}
	return w.pipeline.Execute(ctx, s).rec
}

// Execute implements Workflow.
func (w *SingleRecordWorkflow[R]) Execute(ctx context.Context, doc model.DocumentContract) bool {
	rec := w.Run(ctx, doc)
	return w.base(&rec).Outcome.Succeeded()
}

func (w *SingleRecordWorkflow[R]) extract(ctx context.Context, s docState[R]) (Delta[docState[R]], error) {
	pages, err := w.deps.Extractor.ExtractPages(ctx, s.doc)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", s.doc.SourceKey, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("extract %s: %w", s.doc.SourceKey, ErrEmptyResult)
	}

	total, llm := ComposeText(pages, w.opts.FirstPages)
	logger.Info(ctx, "document extracted", "pages", len(pages), "chars", len(llm))
	return func(s *docState[R]) {
		b := w.base(&s.rec)
		b.DocumentContentTotal = total
		b.DocumentContentLLM = llm
	}, nil
}

func (w *SingleRecordWorkflow[R]) transform(ctx context.Context, s docState[R]) (Delta[docState[R]], error) {
	text := w.base(&s.rec).DocumentContentLLM
	fields, err := retry.Do(ctx, w.opts.Retry, "extract fields", func(ctx context.Context) (model.Fields, error) {
		return w.deps.Fields.ExtractFields(ctx, w.docType, text)
	})
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	return func(s *docState[R]) { w.fill(&s.rec, fields) }, nil
}

func (w *SingleRecordWorkflow[R]) load(ctx context.Context, s docState[R]) (Delta[docState[R]], error) {
	rec := s.rec
	b := w.base(&rec)
	key := w.opts.textKey(b.RecordID)
	err := retry.Run(ctx, w.opts.Retry, "save text", func(ctx context.Context) error {
		return w.deps.Documents.Save(ctx, key, []byte(b.DocumentContentTotal))
	})
	if err != nil {
		return nil, fmt.Errorf("save text %s: %w", key, err)
	}
	b.ClearText()

	entries := []model.MetadataEntry{w.metadata(rec)}
	err = retry.Run(ctx, w.opts.Retry, "save metadata", func(ctx context.Context) error {
		return w.deps.Metadata.SaveMetadata(ctx, w.docType, entries)
	})
	if err != nil {
		return nil, fmt.Errorf("save metadata: %w", err)
	}
	return func(s *docState[R]) { w.base(&s.rec).ClearText() }, nil
}

func (w *SingleRecordWorkflow[R]) final(ctx context.Context, s docState[R]) (Delta[docState[R]], error) {
	o := w.base(&s.rec).Outcome
	logger.Info(ctx, "document finished",
		"extract", o.Extract.Status.String(),
		"transform", o.Transform.Status.String(),
		"load", o.Load.Status.String(),
	)
	return nil, nil
}
