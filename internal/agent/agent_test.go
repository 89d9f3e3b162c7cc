package agent

import (
	"testing"

	"github.com/shelfsync/shelfsync-backend/internal/pipeline"
)

func TestAllowedActionsFollowStage(t *testing.T) {
	prep := allowedActions(pipeline.UpdatePreparation)
	if !contains(prep, actionFinalize) || !contains(prep, actionCorrectRow) {
		t.Fatalf("preparation vocabulary: %#v", prep)
	}

	ocr := allowedActions(pipeline.OCRExtraction)
	if contains(ocr, actionFinalize) {
		t.Fatalf("finalize must not be available during extraction: %#v", ocr)
	}
	if !contains(ocr, actionAdvance) {
		t.Fatalf("extraction review needs advance: %#v", ocr)
	}

	idle := allowedActions("")
	if contains(idle, actionAdvance) || contains(idle, actionCorrectRow) {
		t.Fatalf("no stage means no stage tools: %#v", idle)
	}
}

func TestParseDecisionDegradesUnknownAction(t *testing.T) {
	out := map[string]any{
		"action": "drop_table",
		"reply":  "sure thing",
	}
	d := parseDecision(out, allowedActions(""))
	if d.Action != actionReply {
		t.Fatalf("out-of-vocabulary action must degrade to reply: %#v", d)
	}
	if d.Reply != "sure thing" {
		t.Fatalf("reply lost: %#v", d)
	}
}

func TestParseDecisionReadsArguments(t *testing.T) {
	out := map[string]any{
		"action": actionCorrectRow,
		"reply":  "",
		"arguments": map[string]any{
			"row_number":          " 3 ",
			"product_id":          "prod7",
			"quantity_expression": "6 * 0.75",
		},
	}
	d := parseDecision(out, allowedActions(pipeline.UpdatePreparation))
	if d.Action != actionCorrectRow || d.RowNumber != "3" || d.ProductID != "prod7" || d.QuantityExpression != "6 * 0.75" {
		t.Fatalf("arguments: %#v", d)
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
