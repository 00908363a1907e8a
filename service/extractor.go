package service

import (
	"context"
	"fmt"
	"time"

	"github.com/henrymedina447/sbs-suptech-etl-v2/blockgraph"
	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
	"github.com/henrymedina447/sbs-suptech-etl-v2/retry"
)

// OCRAPI is the OCR job protocol the extractor drives.
type OCRAPI interface {
	StartJob(ctx context.Context, key string) (string, error)
	GetJob(ctx context.Context, jobID, nextToken string) (*OCRJobResult, error)
}

// ExtractorOptions tune OCRExtractor.
type ExtractorOptions struct {
	PollInterval    time.Duration
	MaxPolls        int
	PageBatchSize   int
	PageConcurrency int
	Retry           retry.Policy
}

// OCRExtractor runs an OCR job for a document and rebuilds the text of every
// page from the resulting block graph.
type OCRExtractor struct {
	api   OCRAPI
	opts  ExtractorOptions
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOCRExtractor(api OCRAPI, opts ExtractorOptions) *OCRExtractor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &OCRExtractor{api: api, opts: opts, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ExtractPages returns one PageText per page, in page order. A page whose
// text cannot be rebuilt is returned empty.
func (e *OCRExtractor) ExtractPages(ctx context.Context, doc model.DocumentContract) ([]blockgraph.PageText, error) {
	jobID, err := retry.Do(ctx, e.opts.Retry, "ocr.start", func(ctx context.Context) (string, error) {
		return e.api.StartJob(ctx, doc.SourceKey)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "ocr job started", "job_id", jobID, "key", doc.SourceKey)

	blocks, err := e.collect(ctx, jobID)
	if err != nil {
		return nil, err
	}

	blockgraph.Sequence(blocks)
	pages := blockgraph.Pages(blocks)
	results := blockgraph.Assemble(ctx, pages, blocks, e.opts.PageBatchSize, e.opts.PageConcurrency)

	texts := make([]blockgraph.PageText, len(results))
	for i, r := range results {
		if r.Err != nil {
			logger.Warn(ctx, "page text not rebuilt", "job_id", jobID, "page", r.Page.Page, "error", r.Err)
			continue
		}
		texts[i] = r.Text
	}
	logger.Info(ctx, "ocr result assembled", "job_id", jobID, "blocks", len(blocks), "pages", len(texts))
	return texts, nil
}

// collect polls until the job leaves IN_PROGRESS and then follows NextToken
// until every result page has been read.
func (e *OCRExtractor) collect(ctx context.Context, jobID string) ([]blockgraph.Block, error) {
	get := func(token string) (*OCRJobResult, error) {
		return retry.Do(ctx, e.opts.Retry, "ocr.get", func(ctx context.Context) (*OCRJobResult, error) {
			return e.api.GetJob(ctx, jobID, token)
		})
	}

	res, err := get("")
	if err != nil {
		return nil, err
	}
	for polls := 1; res.JobStatus == JobInProgress; polls++ {
		if e.opts.MaxPolls > 0 && polls >= e.opts.MaxPolls {
			return nil, retry.Permanent("ocr.poll", fmt.Errorf("job %s still in progress after %d polls", jobID, polls))
		}
		if err := e.sleep(ctx, e.opts.PollInterval); err != nil {
			return nil, err
		}
		if res, err = get(""); err != nil {
			return nil, err
		}
		logger.Debug(ctx, "ocr job status", "job_id", jobID, "status", res.JobStatus)
	}
	if res.JobStatus != JobSucceeded {
		return nil, retry.Permanent("ocr.poll", fmt.Errorf("job %s %s: %s", jobID, res.JobStatus, res.StatusMessage))
	}

	blocks := res.Blocks
	for res.NextToken != "" {
		if res, err = get(res.NextToken); err != nil {
			return nil, err
		}
		blocks = append(blocks, res.Blocks...)
	}
	return blocks, nil
}
