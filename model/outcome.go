package model

// Stage names a step of the document workflow.
type Stage string

const (
	StageExtract   Stage = "EXTRACT"
	StageTransform Stage = "TRANSFORM"
	StageLoad      Stage = "LOAD"
	StageFinal     Stage = "FINAL"
)

// StageStatus is the state of one stage. The zero value means the stage was
// never attempted.
type StageStatus int

const (
	NotAttempted StageStatus = iota
	Succeeded
	Failed
)

func (s StageStatus) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "not_attempted"
	}
}

// StageResult records what happened in a stage and, on failure, why.
type StageResult struct {
	Status StageStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// Ok reports whether the stage succeeded.
func (r StageResult) Ok() bool { return r.Status == Succeeded }

// Success returns a succeeded result.
func Success() StageResult { return StageResult{Status: Succeeded} }

// Failure returns a failed result carrying err's message.
func Failure(err error) StageResult {
	r := StageResult{Status: Failed}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

// Outcome holds the result of the three data stages of a workflow run.
type Outcome struct {
	Extract   StageResult `json:"extract"`
	Transform StageResult `json:"transform"`
	Load      StageResult `json:"load"`
}

// Result returns the result recorded for stage.
func (o Outcome) Result(stage Stage) StageResult {
	switch stage {
	case StageExtract:
		return o.Extract
	case StageTransform:
		return o.Transform
	case StageLoad:
		return o.Load
	}
	return StageResult{}
}

// Set records r for stage. FINAL has no result and is ignored.
func (o *Outcome) Set(stage Stage, r StageResult) {
	switch stage {
	case StageExtract:
		o.Extract = r
	case StageTransform:
		o.Transform = r
	case StageLoad:
		o.Load = r
	}
}

// Succeeded reports whether extract, transform and load all succeeded.
func (o Outcome) Succeeded() bool {
	return o.Extract.Ok() && o.Transform.Ok() && o.Load.Ok()
}
