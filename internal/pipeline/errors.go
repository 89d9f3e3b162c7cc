package pipeline

import "fmt"

// PipelineNotFoundError means the store has no configured pipeline. This is
// a configuration error: fatal to the operation, never retried.
type PipelineNotFoundError struct {
	StoreID string
}

func (e *PipelineNotFoundError) Error() string {
	return fmt.Sprintf("no pipeline configured for store: %s", e.StoreID)
}

// NoActiveJobError means no stage queue holds an active job for the
// document. Seen on double-advance and stale document ids.
type NoActiveJobError struct {
	DocumentID string
}

func (e *NoActiveJobError) Error() string {
	return fmt.Sprintf("could not find an active job for document: %s", e.DocumentID)
}

// UnknownStageError means the active job's stage is missing from the store's
// pipeline, which can only happen if the pipeline was edited mid-flight.
type UnknownStageError struct {
	Stage   string
	StoreID string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("stage %q is not part of the pipeline for store: %s", e.Stage, e.StoreID)
}
