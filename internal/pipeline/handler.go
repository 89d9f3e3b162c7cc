package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gorm.io/datatypes"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// Outcome is what a stage handler reports when it returns.
//
// Suspended encodes "wait for an external decision": the job row stays
// active with no timer and the worker goroutine exits. The only legal way
// out of that state is the orchestrator's force-complete or force-fail.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeSuspended
)

// Handler performs one stage's work for one document.
type Handler interface {
	Stage() string
	Run(jc *JobContext) (Outcome, map[string]interface{}, error)
}

// JobContext is handed to a handler for the duration of one job.
type JobContext struct {
	Ctx context.Context
	Job *types.StageJob
	Log *logger.Logger

	jobs      repos.StageJobRepo
	artefacts repos.ArtefactRepo
}

func NewJobContext(ctx context.Context, job *types.StageJob, log *logger.Logger, jobs repos.StageJobRepo, artefacts repos.ArtefactRepo) *JobContext {
	return &JobContext{
		Ctx:       ctx,
		Job:       job,
		Log:       log.With("document_id", job.DocumentID, "stage", job.Stage),
		jobs:      jobs,
		artefacts: artefacts,
	}
}

// SetPayload attaches the working payload to the job row, where tools can
// read and mutate it while the job is suspended.
func (jc *JobContext) SetPayload(payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}
	if err := jc.jobs.UpdatePayload(jc.Ctx, nil, jc.Job.ID, datatypes.JSON(raw)); err != nil {
		return err
	}
	jc.Job.Payload = datatypes.JSON(raw)
	return nil
}

// SaveArtefact records an audit blob for this job's stage.
func (jc *JobContext) SaveArtefact(storeID, key string, data interface{}) error {
	return jc.artefacts.Save(jc.Ctx, nil, jc.Job.DocumentID, storeID, jc.Job.Stage, key, data)
}

// Registry maps stage names to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	stage := h.Stage()
	if stage == "" {
		return fmt.Errorf("handler Stage() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[stage]; exists {
		return fmt.Errorf("handler already registered for stage=%s", stage)
	}
	r.handlers[stage] = h
	return nil
}

func (r *Registry) Get(stage string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[stage]
	return h, ok
}

func (r *Registry) Stages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for stage := range r.handlers {
		out = append(out, stage)
	}
	return out
}
