package pipeline

import (
	"context"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// ProgressListener mirrors job activations into the per-stage progress
// records. Completed and failed transitions are recorded by the
// orchestrator itself, where the result payload is at hand.
func ProgressListener(baseLog *logger.Logger, scans repos.ScanRepo) EventListener {
	log := baseLog.With("component", "ProgressRecorder")
	return func(ctx context.Context, event string, job *types.StageJob) {
		if event != EventActive {
			return
		}
		if err := scans.RecordProgress(ctx, nil, job.DocumentID, job.Stage, types.JobActive, nil); err != nil {
			log.Warn("Failed to record active stage progress",
				"document_id", job.DocumentID, "stage", job.Stage, "error", err)
		}
	}
}
