package workflow

import (
	"context"
	"fmt"
	"slices"

	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
	"github.com/henrymedina447/sbs-suptech-etl-v2/retry"
)

type registrationState = docState[model.RegistrationRecord]

// RegistrationWorkflow handles registration documents, where every page is a
// separate registration entry.
type RegistrationWorkflow struct {
	deps     Deps
	opts     Options
	pipeline *Pipeline[registrationState]
}

// NewRegistrationWorkflow builds the workflow for registration documents.
func NewRegistrationWorkflow(deps Deps, opts Options) *RegistrationWorkflow {
	w := &RegistrationWorkflow{deps: deps, opts: opts.withDefaults()}
	w.pipeline = NewPipeline(string(model.DocumentRegistration),
		func(s *registrationState) *model.Outcome { return &s.rec.Outcome },
		Stage[registrationState]{Name: model.StageExtract, Run: w.extract},
		Stage[registrationState]{Name: model.StageTransform, Requires: model.StageExtract, Run: w.transform},
		Stage[registrationState]{Name: model.StageLoad, Requires: model.StageTransform, Run: w.load},
		Stage[registrationState]{Name: model.StageFinal, Run: w.final},
	)
	return w
}

// Run processes doc and returns the final record with its children.
func (w *RegistrationWorkflow) Run(ctx context.Context, doc model.DocumentContract) model.RegistrationRecord {
	ctx = logger.With(ctx, logger.RecordIDKey, doc.RecordID)
	s := registrationState{
		doc: doc,
		rec: model.RegistrationRecord{ProcessingRecord: model.NewProcessingRecord(doc)},
	}
	return w.pipeline.Execute(ctx, s).rec
}

// Execute implements Workflow.
func (w *RegistrationWorkflow) Execute(ctx context.Context, doc model.DocumentContract) bool {
	return w.Run(ctx, doc).Outcome.Succeeded()
}

func (w *RegistrationWorkflow) extract(ctx context.Context, s registrationState) (Delta[registrationState], error) {
	pages, err := w.deps.Extractor.ExtractPages(ctx, s.doc)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", s.doc.SourceKey, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("extract %s: %w", s.doc.SourceKey, ErrEmptyResult)
	}

	children := make([]model.RegistrationChild, len(pages))
	for i, p := range pages {
		child := model.RegistrationChild{ProcessingRecord: model.NewProcessingRecord(s.doc), Index: i}
		child.DocumentContentTotal = p.Text
		child.DocumentContentLLM = p.Text
		child.Outcome.Extract = model.Success()
		children[i] = child
	}
	logger.Info(ctx, "registration extracted", "children", len(children))
	return func(s *registrationState) { s.rec.Children = children }, nil
}

// transform asks for the fields of every child. A child that fails keeps its
// fields empty and does not fail the stage.
func (w *RegistrationWorkflow) transform(ctx context.Context, s registrationState) (Delta[registrationState], error) {
	children := slices.Clone(s.rec.Children)
	failed := 0
	for i := range children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.transformChild(ctx, &children[i]); err != nil {
			failed++
			logger.Warn(ctx, "registration child not transformed", "child", children[i].Index, "error", err)
			children[i].Outcome.Transform = model.Failure(err)
			continue
		}
		children[i].Outcome.Transform = model.Success()
	}
	logger.Info(ctx, "registration transformed", "children", len(children), "failed", failed)
	return func(s *registrationState) { s.rec.Children = children }, nil
}

func (w *RegistrationWorkflow) transformChild(ctx context.Context, child *model.RegistrationChild) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	fields, err := retry.Do(ctx, w.opts.Retry, "extract fields", func(ctx context.Context) (model.Fields, error) {
		return w.deps.Fields.ExtractFields(ctx, model.DocumentRegistration, child.DocumentContentLLM)
	})
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return ErrNoFields
	}
	child.InscriptionNumber = fields[model.FieldInscriptionNumber]
	child.LegalName = fields[model.FieldLegalName]
	child.InscriptionDate = fields[model.FieldInscriptionDate]
	return nil
}

func (w *RegistrationWorkflow) load(ctx context.Context, s registrationState) (Delta[registrationState], error) {
	children := slices.Clone(s.rec.Children)
	for i := range children {
		c := &children[i]
		key := w.opts.childTextKey(c.RecordID, c.Index)
		err := retry.Run(ctx, w.opts.Retry, "save text", func(ctx context.Context) error {
			return w.deps.Documents.Save(ctx, key, []byte(c.DocumentContentTotal))
		})
		if err != nil {
			return nil, fmt.Errorf("save text %s: %w", key, err)
		}
		c.ClearText()
	}

	entries := make([]model.MetadataEntry, len(children))
	for i, c := range children {
		entries[i] = c.Metadata()
	}
	err := retry.Run(ctx, w.opts.Retry, "save metadata", func(ctx context.Context) error {
		return w.deps.Metadata.SaveMetadata(ctx, model.DocumentRegistration, entries)
	})
	if err != nil {
		return nil, fmt.Errorf("save metadata: %w", err)
	}

	for i := range children {
		children[i].Outcome.Load = model.Success()
	}
	return func(s *registrationState) { s.rec.Children = children }, nil
}

func (w *RegistrationWorkflow) final(ctx context.Context, s registrationState) (Delta[registrationState], error) {
	transformed := 0
	for _, c := range s.rec.Children {
		if c.Outcome.Transform.Ok() {
			transformed++
		}
	}
	o := s.rec.Outcome
	logger.Info(ctx, "document finished",
		"extract", o.Extract.Status.String(),
		"transform", o.Transform.Status.String(),
		"load", o.Load.Status.String(),
		"children", len(s.rec.Children),
		"children_transformed", transformed,
	)
	return nil, nil
}
