package matching

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// historyPass replays the store's latest finalized decision for each
// supplier item name, matching exactly first and then within a small
// edit-distance tolerance. A remembered skip stays a skip.
type historyPass struct {
	resolved repos.ResolvedItemRepo
	limit    int
}

func NewHistoryPass(resolved repos.ResolvedItemRepo) Pass {
	return &historyPass{resolved: resolved}
}

func (p *historyPass) Name() string { return "history" }

func (p *historyPass) Apply(run *Run) error {
	recent, err := p.resolved.RecentByStore(run.Ctx, nil, run.StoreID, p.limit)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		return nil
	}

	// Newest first, so the first entry per name is the latest decision.
	latest := make(map[string]*types.ResolvedItem, len(recent))
	for _, ri := range recent {
		key := normalizeName(ri.SupplierItemName)
		if key == "" {
			continue
		}
		if _, ok := latest[key]; !ok {
			latest[key] = ri
		}
	}

	for _, it := range run.Doc.Unresolved() {
		key := normalizeName(it.SupplierItemName)
		if key == "" {
			continue
		}
		decision := latest[key]
		if decision == nil {
			decision = fuzzyLookup(latest, key)
		}
		if decision == nil {
			continue
		}
		replayDecision(it, decision)
	}
	return nil
}

func replayDecision(it *types.InventoryItem, decision *types.ResolvedItem) {
	if types.MatchType(decision.MatchType) == types.MatchSkip {
		it.MatchType = types.MatchSkip
		it.Candidates = nil
		return
	}
	it.Resolve(decision.InventoryItemID, decision.InventoryItemName, decision.InventoryItemUnit, types.MatchHistory)
	if decision.QuantityExpression != "" {
		it.QuantityExpression = decision.QuantityExpression
	}
}

// fuzzyLookup tolerates small spelling drift between invoices: one edit
// for short names, two otherwise.
func fuzzyLookup(latest map[string]*types.ResolvedItem, key string) *types.ResolvedItem {
	tolerance := fuzzyTolerance(key)
	var best *types.ResolvedItem
	bestDist := tolerance + 1
	for name, decision := range latest {
		dist := levenshtein.ComputeDistance(key, name)
		if dist < bestDist {
			best = decision
			bestDist = dist
		}
	}
	if bestDist > tolerance {
		return nil
	}
	return best
}

func fuzzyTolerance(name string) int {
	if utf8.RuneCountInString(name) < 6 {
		return 1
	}
	return 2
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
