package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// EventListener observes job lifecycle transitions. Listeners must not
// block; the progress recorder is the primary consumer.
type EventListener func(ctx context.Context, event string, job *types.StageJob)

// Orchestrator drives a document through its store's ordered stage list.
// Advance is the single externally-triggered path out of a suspended stage.
type Orchestrator struct {
	log       *logger.Logger
	jobs      repos.StageJobRepo
	stores    repos.StoreRepo
	scans     repos.ScanRepo
	listeners []EventListener
}

func NewOrchestrator(baseLog *logger.Logger, jobs repos.StageJobRepo, stores repos.StoreRepo, scans repos.ScanRepo) *Orchestrator {
	return &Orchestrator{
		log:    baseLog.With("component", "Orchestrator"),
		jobs:   jobs,
		stores: stores,
		scans:  scans,
	}
}

// Subscribe adds a lifecycle listener. Not safe to call once workers run.
func (o *Orchestrator) Subscribe(l EventListener) {
	if l != nil {
		o.listeners = append(o.listeners, l)
	}
}

func (o *Orchestrator) Emit(ctx context.Context, event string, job *types.StageJob) {
	for _, l := range o.listeners {
		l(ctx, event, job)
	}
}

// Start resolves the document's store pipeline and enqueues a job in the
// first stage's queue keyed by the document id.
func (o *Orchestrator) Start(ctx context.Context, documentID string) error {
	store, err := o.stores.GetByDocumentID(ctx, nil, documentID)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("store not found for document: %s", documentID)
	}
	stages, err := pipelineStages(store)
	if err != nil {
		return err
	}
	if len(stages) == 0 {
		return &PipelineNotFoundError{StoreID: store.StoreID}
	}
	return o.enqueue(ctx, documentID, stages[0], "queued to")
}

// Advance locates the document's single active job, merges the result into
// its stage record with status completed, force-completes the job past the
// worker's ownership, and enqueues the next stage. Returns the next stage
// name, or "" when the pipeline is complete.
func (o *Orchestrator) Advance(ctx context.Context, documentID string, result map[string]interface{}) (string, error) {
	job, err := o.jobs.ActiveByDocument(ctx, nil, documentID)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", &NoActiveJobError{DocumentID: documentID}
	}

	var resultJSON datatypes.JSON
	if result != nil {
		raw, mErr := json.Marshal(result)
		if mErr != nil {
			return "", fmt.Errorf("marshal advance result: %w", mErr)
		}
		resultJSON = datatypes.JSON(raw)
	}

	// The worker owning this job is parked in a suspension; completion has
	// to go around it. That override lives here and nowhere else.
	if err := o.jobs.ForceComplete(ctx, nil, job.ID, resultJSON); err != nil {
		if errors.Is(err, repos.ErrJobNotActive) {
			return "", &NoActiveJobError{DocumentID: documentID}
		}
		return "", err
	}

	if err := o.scans.RecordProgress(ctx, nil, documentID, job.Stage, types.JobCompleted, result); err != nil {
		o.log.Warn("Failed to record completed stage progress", "document_id", documentID, "stage", job.Stage, "error", err)
	}
	job.Status = types.JobCompleted
	o.Emit(ctx, EventCompleted, job)

	store, err := o.stores.GetByDocumentID(ctx, nil, documentID)
	if err != nil {
		return "", err
	}
	stages, err := pipelineStages(store)
	if err != nil {
		return "", err
	}

	currentIndex := -1
	for i, s := range stages {
		if s == job.Stage {
			currentIndex = i
			break
		}
	}
	if currentIndex < 0 {
		return "", &UnknownStageError{Stage: job.Stage, StoreID: store.StoreID}
	}

	if currentIndex+1 < len(stages) {
		next := stages[currentIndex+1]
		if err := o.enqueue(ctx, documentID, next, "advanced to"); err != nil {
			return "", err
		}
		return next, nil
	}

	o.log.Info("Document has completed the final stage of its pipeline", "document_id", documentID)
	return "", nil
}

// Fail moves the document's active job to failed with a reason. Failure is
// explicit only; nothing times out on its own.
func (o *Orchestrator) Fail(ctx context.Context, documentID, reason string) error {
	job, err := o.jobs.ActiveByDocument(ctx, nil, documentID)
	if err != nil {
		return err
	}
	if job == nil {
		return &NoActiveJobError{DocumentID: documentID}
	}
	if err := o.jobs.ForceFail(ctx, nil, job.ID, reason); err != nil {
		if errors.Is(err, repos.ErrJobNotActive) {
			return &NoActiveJobError{DocumentID: documentID}
		}
		return err
	}
	if err := o.scans.RecordProgress(ctx, nil, documentID, job.Stage, types.JobFailed, map[string]interface{}{
		"error": reason,
	}); err != nil {
		o.log.Warn("Failed to record failed stage progress", "document_id", documentID, "stage", job.Stage, "error", err)
	}
	job.Status = types.JobFailed
	job.Error = reason
	o.Emit(ctx, EventFailed, job)
	return nil
}

// CurrentStage reports which stage holds the document's active job, used by
// the agent to pick the tool vocabulary that is currently valid.
func (o *Orchestrator) CurrentStage(ctx context.Context, documentID string) (string, error) {
	job, err := o.jobs.ActiveByDocument(ctx, nil, documentID)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", &NoActiveJobError{DocumentID: documentID}
	}
	return job.Stage, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, documentID, stage, action string) error {
	_, err := o.jobs.Enqueue(ctx, nil, &types.StageJob{
		DocumentID: documentID,
		Stage:      stage,
		Status:     types.JobQueued,
	})
	if err != nil {
		return err
	}
	o.log.Info(fmt.Sprintf("Document %s %s %s", documentID, action, stage))
	return nil
}

func pipelineStages(store *types.Store) ([]string, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if len(store.Pipeline) == 0 {
		return nil, nil
	}
	var stages []string
	if err := json.Unmarshal(store.Pipeline, &stages); err != nil {
		return nil, fmt.Errorf("malformed pipeline for storeId %s: %w", store.StoreID, err)
	}
	return stages, nil
}
