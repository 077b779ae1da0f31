package wavescore

import "fmt"

// Pipeline stage names used in StageError.
const (
	StageIngest     = "ingest"
	StageDecode     = "decode"
	StagePitch      = "pitch"
	StageSegment    = "segment"
	StageQuantize   = "quantize"
	StageBuild      = "build"
	StageSerialize  = "serialize"
	StageSynthesize = "synthesize"
)

// StageError reports which pipeline stage a transcription failed in, wrapping
// the underlying cause so callers can still match sentinel errors with
// errors.Is.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("transcription failed at %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
