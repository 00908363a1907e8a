package main

import (
	"context"
	"fmt"

	"github.com/henrymedina447/sbs-suptech-etl-v2/config"
	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/service"
	"github.com/henrymedina447/sbs-suptech-etl-v2/workflow"
)

// app holds the services every command shares.
type app struct {
	minio        *service.MinioService
	metadata     *service.MetadataStore
	orchestrator *workflow.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		return nil, err
	}
	if err := minioSvc.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	metadata, err := service.OpenMetadataStore(cfg.Metadata.Path)
	if err != nil {
		return nil, err
	}

	policy := cfg.Pipeline.Retry.Policy()
	extractor := service.NewOCRExtractor(service.NewOCRService(&cfg.OCR, cfg.Minio.SourceBucket), service.ExtractorOptions{
		PollInterval:    cfg.OCR.PollInterval,
		MaxPolls:        cfg.OCR.MaxPolls,
		PageBatchSize:   cfg.Pipeline.PageBatchSize,
		PageConcurrency: cfg.Pipeline.PageConcurrency,
		Retry:           policy,
	})

	deps := workflow.Deps{
		Extractor: extractor,
		Fields:    service.NewFieldService(&cfg.Extraction),
		Documents: minioSvc,
		Metadata:  metadata,
	}
	opts := workflow.Options{
		FirstPages: cfg.Pipeline.FirstPages,
		TextPrefix: cfg.Pipeline.TextPrefix,
		Retry:      policy,
	}

	workflows := map[model.DocumentType]workflow.Workflow{
		model.DocumentPolicy:       workflow.NewPolicyWorkflow(deps, opts),
		model.DocumentRegistration: workflow.NewRegistrationWorkflow(deps, opts),
		model.DocumentAppraisal:    workflow.NewAppraisalWorkflow(deps, opts),
	}

	orchestrator := workflow.NewOrchestrator(workflows, service.NewWebhookNotifier(&cfg.Notification), workflow.OrchestratorConfig{
		EventType:           cfg.Notification.EventType,
		DocumentConcurrency: cfg.Pipeline.DocumentConcurrency,
		Retry:               policy,
	})

	return &app{
		minio:        minioSvc,
		metadata:     metadata,
		orchestrator: orchestrator,
	}, nil
}

func (a *app) Close() error {
	return a.metadata.Close()
}
