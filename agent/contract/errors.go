package contract

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrRetrievalUnavailable = errors.New("retrieval index unavailable")
	ErrLLMTimeout           = errors.New("model call timed out")
	ErrLLMUnavailable       = errors.New("all model providers exhausted")
	ErrSchemaViolation      = errors.New("model response violates schema")
	ErrSessionLockTimeout   = errors.New("session is busy")
	ErrSessionNotFound      = errors.New("session not found")
)

// PipelineFailure is the single typed failure surfaced when the pipeline
// cannot produce a fully valid result. It carries the last fully valid
// artifact (if any) and the trace; the raw model output is never included.
type PipelineFailure struct {
	Reason error
	State  string
	Plan   *ActionPlan
	Trace  []StageRecord
}

func (f *PipelineFailure) Error() string {
	return "pipeline failed in state " + f.State + ": " + f.Reason.Error()
}

func (f *PipelineFailure) Unwrap() error {
	return f.Reason
}
