package workers

import (
	"testing"

	"github.com/shelfsync/shelfsync-backend/internal/types"
)

func TestBuildStockUpdates(t *testing.T) {
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1", InventoryItemID: "prod1", InventoryItemName: "Cola", MatchType: types.MatchBarcode, Quantity: "24"},
		{RowNumber: "2", InventoryItemID: "prod2", InventoryItemName: "Oat Milk", MatchType: types.MatchManual, Quantity: "2", QuantityExpression: "12 * 0.5"},
		{RowNumber: "3", InventoryItemID: "prod3", InventoryItemName: "Flour", MatchType: types.MatchHistory, Quantity: "10 / 4"},
		{RowNumber: "4", SupplierItemName: "Pfand", MatchType: types.MatchSkip},
	}}

	updates, err := buildStockUpdates(doc)
	if err != nil {
		t.Fatalf("buildStockUpdates: %v", err)
	}
	if len(updates) != 3 {
		t.Fatalf("updates: %#v", updates)
	}
	if updates[0].Quantity != 24 {
		t.Fatalf("plain quantity: %#v", updates[0])
	}
	// The learned expression replaces the supplier quantity entirely.
	if updates[1].Quantity != 6 {
		t.Fatalf("expression quantity: %#v", updates[1])
	}
	if updates[2].Quantity != 2.5 {
		t.Fatalf("inline expression quantity: %#v", updates[2])
	}
}

func TestBuildStockUpdatesRejectsBadRows(t *testing.T) {
	missingID := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1", MatchType: types.MatchManual, Quantity: "1"},
	}}
	if _, err := buildStockUpdates(missingID); err == nil {
		t.Fatal("confirmed row without a product id must fail")
	}

	badQty := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1", InventoryItemID: "prod1", MatchType: types.MatchManual, Quantity: "a dozen"},
	}}
	if _, err := buildStockUpdates(badQty); err == nil {
		t.Fatal("unparseable quantity must fail")
	}
}
