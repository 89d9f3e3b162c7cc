package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// WorkerSet runs one claim loop per registered stage. Each claimed job is
// dispatched on its own goroutine: most jobs spend their life suspended
// waiting on an external decision, so per-stage concurrency is effectively
// unbounded.
type WorkerSet struct {
	log       *logger.Logger
	jobs      repos.StageJobRepo
	artefacts repos.ArtefactRepo
	registry  *Registry
	orch      *Orchestrator
	interval  time.Duration
}

func NewWorkerSet(baseLog *logger.Logger, jobs repos.StageJobRepo, artefacts repos.ArtefactRepo, registry *Registry, orch *Orchestrator) *WorkerSet {
	return &WorkerSet{
		log:       baseLog.With("component", "StageWorkerSet"),
		jobs:      jobs,
		artefacts: artefacts,
		registry:  registry,
		orch:      orch,
		interval:  time.Second,
	}
}

func (w *WorkerSet) Start(ctx context.Context) {
	for _, stage := range w.registry.Stages() {
		go w.runStage(ctx, stage)
	}
}

func (w *WorkerSet) runStage(ctx context.Context, stage string) {
	log := w.log.With("stage", stage)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				job, err := w.jobs.ClaimNextQueued(ctx, nil, stage)
				if err != nil {
					log.Warn("ClaimNextQueued failed", "error", err)
					break
				}
				if job == nil {
					break
				}
				go w.dispatch(ctx, job)
			}
		}
	}
}

func (w *WorkerSet) dispatch(ctx context.Context, job *types.StageJob) {
	w.orch.Emit(ctx, EventActive, job)

	h, ok := w.registry.Get(job.Stage)
	if !ok {
		w.log.Warn("No handler registered for stage", "stage", job.Stage, "job_id", job.ID)
		w.failJob(ctx, job, fmt.Sprintf("no handler registered for stage=%s", job.Stage))
		return
	}

	jc := NewJobContext(ctx, job, w.log, w.jobs, w.artefacts)

	var (
		outcome Outcome
		result  map[string]interface{}
		runErr  error
	)
	// A handler panic must fail the job, not take the worker loop down.
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Stage handler panic", "job_id", job.ID, "stage", job.Stage, "panic", r)
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		outcome, result, runErr = h.Run(jc)
	}()

	if runErr != nil {
		w.failJob(ctx, job, runErr.Error())
		return
	}

	switch outcome {
	case OutcomeSuspended:
		// The row stays active; the worker slot is released. Only an
		// explicit advance or fail moves the job from here.
		jc.Log.Info("Stage suspended awaiting external decision", "job_id", job.ID)
	case OutcomeCompleted:
		next, err := w.orch.Advance(ctx, job.DocumentID, result)
		if err != nil {
			jc.Log.Error("Failed to advance after synchronous completion", "job_id", job.ID, "error", err)
			return
		}
		if next == "" {
			jc.Log.Info("Pipeline complete", "job_id", job.ID)
		}
	}
}

func (w *WorkerSet) failJob(ctx context.Context, job *types.StageJob, reason string) {
	if err := w.orch.Fail(ctx, job.DocumentID, reason); err != nil {
		w.log.Error("Failed to mark job failed", "job_id", job.ID, "error", err)
	}
}
