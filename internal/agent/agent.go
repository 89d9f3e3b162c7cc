// Package agent turns inbound user messages into tool calls against the
// document the conversation is currently about.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shelfsync/shelfsync-backend/internal/conversation"
	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/pipeline"
	"github.com/shelfsync/shelfsync-backend/internal/platform/openai"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/tools"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// Agent handles one inbound message end to end: routing, tool execution,
// and the outbound reply.
type Agent interface {
	Process(ctx context.Context, phone, text string) error
}

const (
	actionReply      = "reply"
	actionAdvance    = "advance_pipeline"
	actionCorrectRow = "apply_row_correction"
	actionConfirm    = "request_confirmation"
	actionFinalize   = "finalize_inventory_update"
	actionShiftTopic = "shift_context"
)

type llmAgent struct {
	log      *logger.Logger
	ai       openai.Client
	stores   repos.StoreRepo
	messages repos.MessageRepo
	conv     *conversation.Manager
	orch     *pipeline.Orchestrator
	tools    *tools.Toolset
}

func New(baseLog *logger.Logger, ai openai.Client, stores repos.StoreRepo, messages repos.MessageRepo, conv *conversation.Manager, orch *pipeline.Orchestrator, toolset *tools.Toolset) Agent {
	return &llmAgent{
		log:      baseLog.With("component", "Agent"),
		ai:       ai,
		stores:   stores,
		messages: messages,
		conv:     conv,
		orch:     orch,
		tools:    toolset,
	}
}

func (a *llmAgent) Process(ctx context.Context, phone, text string) error {
	store, err := a.stores.GetByPhone(ctx, nil, phone)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("no store registered for phone")
	}

	a.recordMessage(ctx, store, "user", text)

	documentID, err := a.conv.GetCurrentContext(ctx, phone)
	if err != nil {
		return err
	}

	stage := ""
	if documentID != "" {
		stage, err = a.orch.CurrentStage(ctx, documentID)
		if err != nil {
			var noActive *pipeline.NoActiveJobError
			if !errors.As(err, &noActive) {
				return err
			}
			// Between stages; the user can still chat.
		}
	}

	decision, err := a.decide(ctx, stage, documentID, text)
	if err != nil {
		return err
	}

	reply := decision.Reply
	if decision.Action != actionReply {
		result := a.execute(ctx, phone, documentID, decision)
		if reply == "" || !result.Success {
			reply = result.Message
		}
	}
	if reply == "" {
		reply = "Okay."
	}

	a.recordMessage(ctx, store, "assistant", reply)
	return a.conv.Send(ctx, phone, documentID, reply)
}

type decision struct {
	Action             string
	Reply              string
	RowNumber          string
	ProductID          string
	QuantityExpression string
}

func (a *llmAgent) decide(ctx context.Context, stage, documentID, text string) (decision, error) {
	actions := allowedActions(stage)
	system := fmt.Sprintf(agentSystemPrompt, strings.Join(actions, ", "))
	user := text
	if documentID != "" {
		user = fmt.Sprintf("Current document: %s (stage %s)\nUser message: %s", documentID, stage, text)
	}

	out, err := a.ai.GenerateJSON(ctx, system, user, "agent_decision", decisionSchema)
	if err != nil {
		return decision{}, err
	}
	return parseDecision(out, actions), nil
}

func (a *llmAgent) execute(ctx context.Context, phone, documentID string, d decision) tools.Result {
	switch d.Action {
	case actionAdvance:
		return a.tools.AdvancePipeline(ctx, documentID)
	case actionCorrectRow:
		return a.tools.ApplyRowCorrection(ctx, documentID, d.RowNumber, d.ProductID, d.QuantityExpression)
	case actionConfirm:
		return a.tools.RequestConfirmation(ctx, phone, documentID)
	case actionFinalize:
		return a.tools.FinalizeInventoryUpdate(ctx, documentID)
	case actionShiftTopic:
		return a.tools.ShiftConversationContext(ctx, phone, documentID)
	default:
		return tools.Result{Success: false, Message: fmt.Sprintf("unknown action %q", d.Action)}
	}
}

func (a *llmAgent) recordMessage(ctx context.Context, store *types.Store, role, text string) {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return
	}
	if err := a.messages.Create(ctx, nil, &types.Message{
		StoreID: store.StoreID,
		Phone:   store.Phone,
		Role:    role,
		Content: content,
	}); err != nil {
		a.log.Warn("Failed to record message", "role", role, "error", err)
	}
}

// allowedActions scopes the tool vocabulary to what the document's current
// stage can legally do. Outside a suspended stage only plain replies remain.
func allowedActions(stage string) []string {
	switch stage {
	case pipeline.OCRExtraction:
		return []string{actionReply, actionAdvance, actionShiftTopic}
	case pipeline.UpdatePreparation:
		return []string{actionReply, actionCorrectRow, actionConfirm, actionFinalize, actionShiftTopic}
	default:
		return []string{actionReply, actionShiftTopic}
	}
}

// parseDecision defends against out-of-vocabulary actions from the model by
// degrading them to a plain reply.
func parseDecision(out map[string]any, allowed []string) decision {
	d := decision{Action: actionReply}
	if v, ok := out["action"].(string); ok {
		v = strings.TrimSpace(v)
		for _, a := range allowed {
			if v == a {
				d.Action = v
				break
			}
		}
	}
	if v, ok := out["reply"].(string); ok {
		d.Reply = strings.TrimSpace(v)
	}
	if args, ok := out["arguments"].(map[string]any); ok {
		if v, ok := args["row_number"].(string); ok {
			d.RowNumber = strings.TrimSpace(v)
		}
		if v, ok := args["product_id"].(string); ok {
			d.ProductID = strings.TrimSpace(v)
		}
		if v, ok := args["quantity_expression"].(string); ok {
			d.QuantityExpression = strings.TrimSpace(v)
		}
	}
	return d
}

const agentSystemPrompt = `You are the assistant of a grocery store owner managing inventory over chat.
Decide how to react to the user's message. Allowed actions: %s.
Use "reply" for questions and small talk. Use a tool action only when the user clearly asked for it.
Row corrections need the row number and either a product id from a proposed candidate or "skip".
Answer in the user's language, briefly.`

var decisionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"action": map[string]any{"type": "string"},
		"reply":  map[string]any{"type": "string"},
		"arguments": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"row_number":          map[string]any{"type": "string"},
				"product_id":          map[string]any{"type": "string"},
				"quantity_expression": map[string]any{"type": "string"},
			},
			"additionalProperties": false,
		},
	},
	"required":             []string{"action", "reply"},
	"additionalProperties": false,
}
