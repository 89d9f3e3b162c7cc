package matching

import (
	"fmt"
	"strings"

	"github.com/shelfsync/shelfsync-backend/internal/platform/openai"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// aiPass arbitrates among accumulated candidates with the model. Candidate
// ids never enter the prompt; each candidate is addressed by a positional
// alias p_{item}_{candidate} so the model cannot hallucinate product ids.
type aiPass struct {
	name string
	ai   openai.Client
}

// NewCollisionPass arbitrates barcode collisions right after the barcode
// pass, while candidate sets are still small.
func NewCollisionPass(ai openai.Client) Pass {
	return &aiPass{name: "barcode_collision", ai: ai}
}

// NewArbitrationPass is the final pass over everything the similarity
// passes proposed.
func NewArbitrationPass(ai openai.Client) Pass {
	return &aiPass{name: "ai_arbitration", ai: ai}
}

func (p *aiPass) Name() string { return p.name }

type aiItem struct {
	index int
	item  *types.InventoryItem
	// alias -> candidate
	byAlias map[string]types.ProductCandidate
}

func (p *aiPass) Apply(run *Run) error {
	var items []aiItem
	var prompt strings.Builder

	for _, it := range run.Doc.Unresolved() {
		it.Candidates = dedupeCandidates(it.Candidates)
		if len(it.Candidates) == 0 {
			continue
		}
		entry := aiItem{index: len(items), item: it, byAlias: map[string]types.ProductCandidate{}}
		fmt.Fprintf(&prompt, "Item %d: %s", entry.index, describeItem(it))
		prompt.WriteString("\nCandidates:\n")
		for j, cand := range it.Candidates {
			alias := fmt.Sprintf("p_%d_%d", entry.index, j)
			entry.byAlias[alias] = cand
			fmt.Fprintf(&prompt, "  %s: %s\n", alias, describeCandidate(cand))
		}
		items = append(items, entry)
	}
	if len(items) == 0 {
		return nil
	}

	run.SaveArtefact(p.name+"_input", map[string]interface{}{"prompt": prompt.String()})

	out, err := p.ai.GenerateJSON(run.Ctx, arbitrationSystemPrompt, prompt.String(), "candidate_selection", selectionSchema)
	if err != nil {
		return err
	}

	run.SaveArtefact(p.name+"_output", out)

	selections, ok := out["selections"].([]interface{})
	if !ok {
		run.Log.Warn("Arbitration response missing selections", "pass", p.name)
		return nil
	}

	for _, raw := range selections {
		sel, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		itemIdx, ok := intField(sel, "item")
		if !ok || itemIdx < 0 || itemIdx >= len(items) {
			run.Log.Warn("Arbitration selection references unknown item", "pass", p.name, "selection", sel)
			continue
		}
		choice, _ := sel["choice"].(string)
		choice = strings.TrimSpace(choice)
		if choice == "" || choice == "none" {
			continue
		}
		entry := items[itemIdx]
		cand, ok := entry.byAlias[choice]
		if !ok {
			run.Log.Warn("Arbitration selection references unknown alias", "pass", p.name, "choice", choice)
			continue
		}
		entry.item.Resolve(cand.ProductID, cand.Name, cand.Unit, types.MatchName)
	}
	return nil
}

func describeItem(it *types.InventoryItem) string {
	s := it.SupplierItemName
	if it.SupplierItemUnit != "" {
		s += " (" + it.SupplierItemUnit + ")"
	}
	if it.Barcode != "" {
		s += " [barcode " + it.Barcode + "]"
	}
	return s
}

func describeCandidate(cand types.ProductCandidate) string {
	s := cand.Name
	if cand.Unit != "" {
		s += " (" + cand.Unit + ")"
	}
	return s
}

const arbitrationSystemPrompt = `You match supplier invoice line items to products from a store's inventory catalog.
For each item, pick the candidate that denotes the same physical product, paying attention to units and pack sizes.
Answer with the candidate's alias exactly as given. If no candidate is the same product, answer "none".
Never guess: a wrong match corrupts the store's stock counts.`

var selectionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"selections": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"item":   map[string]any{"type": "integer"},
					"choice": map[string]any{"type": "string"},
				},
				"required":             []string{"item", "choice"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"selections"},
	"additionalProperties": false,
}

func intField(m map[string]interface{}, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
