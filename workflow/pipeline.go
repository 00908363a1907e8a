package workflow

import (
	"context"
	"fmt"

	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
)

// Delta is the change a stage makes to the pipeline state.
// A nil Delta leaves the state as it is.
type Delta[S any] func(*S)

// Stage is one step of a Pipeline. Run receives a copy of the current state.
type Stage[S any] struct {
	Name model.Stage
	// Requires names the stage that must have succeeded for this one to run.
	// Empty means no prerequisite.
	Requires model.Stage
	Run      func(ctx context.Context, s S) (Delta[S], error)
}

// Pipeline runs a fixed list of stages over a state value. Stage errors and
// panics are recorded in the state's Outcome and never returned.
type Pipeline[S any] struct {
	name      string
	stages    []Stage[S]
	outcomeOf func(*S) *model.Outcome
}

// NewPipeline composes stages in the order given.
func NewPipeline[S any](name string, outcomeOf func(*S) *model.Outcome, stages ...Stage[S]) *Pipeline[S] {
	return &Pipeline[S]{name: name, stages: stages, outcomeOf: outcomeOf}
}

// Execute runs every stage and returns the final state.
func (p *Pipeline[S]) Execute(ctx context.Context, s S) S {
	for _, st := range p.stages {
		outcome := p.outcomeOf(&s)
		if st.Requires != "" && !outcome.Result(st.Requires).Ok() {
			logger.Debug(ctx, "stage skipped",
				"pipeline", p.name,
				"stage", st.Name,
				"requires", st.Requires,
			)
			continue
		}

		delta, err := p.run(ctx, st, s)
		if err != nil {
			logger.Error(ctx, "stage failed",
				"pipeline", p.name,
				"stage", st.Name,
				"error", err,
			)
			p.outcomeOf(&s).Set(st.Name, model.Failure(err))
			continue
		}
		if delta != nil {
			delta(&s)
		}
		p.outcomeOf(&s).Set(st.Name, model.Success())
	}
	return s
}

func (p *Pipeline[S]) run(ctx context.Context, st Stage[S], s S) (delta Delta[S], err error) {
	defer func() {
		if r := recover(); r != nil {
			delta = nil
			err = fmt.Errorf("panic in %s: %v", st.Name, r)
		}
	}()
	return st.Run(ctx, s)
}
