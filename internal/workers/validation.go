// Package workers implements the stage handlers the pipeline worker set
// dispatches to. Handlers that end in a user decision return a suspended
// outcome; the agent's tools complete them later.
package workers

import (
	"fmt"

	"github.com/shelfsync/shelfsync-backend/internal/pipeline"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
)

// ValidationHandler checks that the scanned document arrived intact before
// any expensive work starts. It completes synchronously.
type ValidationHandler struct {
	scans repos.ScanRepo
}

func NewValidationHandler(scans repos.ScanRepo) *ValidationHandler {
	return &ValidationHandler{scans: scans}
}

func (h *ValidationHandler) Stage() string { return pipeline.ScanValidation }

func (h *ValidationHandler) Run(jc *pipeline.JobContext) (pipeline.Outcome, map[string]interface{}, error) {
	scan, err := h.scans.GetByID(jc.Ctx, nil, jc.Job.DocumentID)
	if err != nil {
		return pipeline.OutcomeCompleted, nil, err
	}
	if scan == nil {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("scan not found: %s", jc.Job.DocumentID)
	}
	if scan.FileID == "" && scan.URL == "" {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("scan %s has no retrievable file", jc.Job.DocumentID)
	}

	jc.Log.Info("Scan validated", "filename", scan.Filename)
	return pipeline.OutcomeCompleted, map[string]interface{}{
		"filename": scan.Filename,
		"channel":  scan.Channel,
	}, nil
}
