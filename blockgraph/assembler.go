package blockgraph

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultBatchSize      = 4
	DefaultMaxConcurrency = 4
)

// ErrNotPage is reported for an input that is not a page root.
var ErrNotPage = errors.New("block is not a page")

// PageResult is the outcome for one page. Err is set when only that page
// failed; Text is then empty.
type PageResult struct {
	Page Block
	Text PageText
	Err  error
}

type assembler struct {
	batchSize      int
	maxConcurrency int
	process        func(page Block, idx *Index) (PageText, error)
}

// Assemble reconstructs the text of every page. Pages are processed in
// sequential batches of batchSize; inside a batch pages run concurrently,
// with at most maxConcurrency in flight overall. The result has one entry per
// page, in input order.
func Assemble(ctx context.Context, pages, blocks []Block, batchSize, maxConcurrency int) []PageResult {
	a := assembler{
		batchSize:      batchSize,
		maxConcurrency: maxConcurrency,
		process:        pageText,
	}
	return a.run(ctx, pages, BuildIndex(blocks))
}

func pageText(page Block, idx *Index) (PageText, error) {
	if !page.IsPage() {
		return PageText{}, fmt.Errorf("%w: %s is %s", ErrNotPage, page.ID, page.Type)
	}
	return ExtractText(Closure(page, idx), idx), nil
}

func (a assembler) run(ctx context.Context, pages []Block, idx *Index) []PageResult {
	if a.batchSize < 1 {
		a.batchSize = DefaultBatchSize
	}
	if a.maxConcurrency < 1 {
		a.maxConcurrency = DefaultMaxConcurrency
	}

	out := make([]PageResult, len(pages))
	sem := semaphore.NewWeighted(int64(a.maxConcurrency))

	for start := 0; start < len(pages); start += a.batchSize {
		end := min(start+a.batchSize, len(pages))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				out[i] = a.one(ctx, sem, pages[i], idx)
				return nil
			})
		}
		_ = g.Wait() // failures are carried per page
	}
	return out
}

func (a assembler) one(ctx context.Context, sem *semaphore.Weighted, page Block, idx *Index) (res PageResult) {
	res.Page = page
	if err := sem.Acquire(ctx, 1); err != nil {
		res.Err = fmt.Errorf("page %s: %w", page.ID, err)
		return res
	}
	defer sem.Release(1)
	defer func() {
		if r := recover(); r != nil {
			res.Text = PageText{}
			res.Err = fmt.Errorf("page %s: panic: %v", page.ID, r)
		}
	}()

	res.Text, res.Err = a.process(page, idx)
	return res
}
