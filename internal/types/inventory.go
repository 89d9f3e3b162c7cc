package types

// MatchType records how a supplier line item was resolved against the
// catalog. Skip is terminal: the user told us to ignore this row.
type MatchType string

const (
	MatchBarcode MatchType = "barcode"
	MatchName    MatchType = "name"
	MatchManual  MatchType = "manual"
	MatchHistory MatchType = "history"
	MatchSkip    MatchType = "skip"
)

// Terminal reports whether the match type ends matching for an item.
func (m MatchType) Terminal() bool {
	switch m {
	case MatchBarcode, MatchName, MatchManual, MatchHistory, MatchSkip:
		return true
	}
	return false
}

// ProductCandidate is a catalog entry proposed for an unresolved item,
// pending arbitration. Score is set by similarity passes only.
type ProductCandidate struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

// InventoryItem is one row of a supplier document: the raw extracted fields
// plus the evolving resolution. Once InventoryItemID is set the match type
// must be non-empty and Candidates must be cleared.
type InventoryItem struct {
	RowNumber        string    `json:"row_number,omitempty"`
	PageNumber       string    `json:"page_number,omitempty"`
	SupplierItemName string    `json:"supplier_item_name,omitempty"`
	SupplierItemUnit string    `json:"supplier_item_unit,omitempty"`
	Quantity         string    `json:"quantity,omitempty"`
	Barcode          string    `json:"barcode,omitempty"`

	InventoryItemID   string    `json:"inventory_item_id,omitempty"`
	InventoryItemName string    `json:"inventory_item_name,omitempty"`
	InventoryItemUnit string    `json:"inventory_item_unit,omitempty"`
	MatchType         MatchType `json:"match_type,omitempty"`

	// QuantityExpression converts the supplier quantity into stock units,
	// e.g. "12 * 0.5". Replayed from history or set during review.
	QuantityExpression string `json:"quantity_expression,omitempty"`

	Candidates []ProductCandidate `json:"candidates,omitempty"`
}

// Ready reports whether the item needs no further matching work.
func (it *InventoryItem) Ready() bool {
	return it.MatchType.Terminal()
}

// Resolve settles the item on a catalog product and clears stale candidates.
func (it *InventoryItem) Resolve(productID, name, unit string, matchType MatchType) {
	it.InventoryItemID = productID
	it.InventoryItemName = name
	it.InventoryItemUnit = unit
	it.MatchType = matchType
	it.Candidates = nil
}

// InvoiceMeta is the document-level metadata extracted during validation.
type InvoiceMeta struct {
	InvoiceID string `json:"invoice_id,omitempty"`
	Supplier  string `json:"supplier,omitempty"`
	Date      string `json:"date,omitempty"`
	Pages     int    `json:"pages,omitempty"`
}

// InventoryDocument is the working payload a document carries through the
// matching stage. It lives on the active stage job, not on the scan record,
// until the stage finalizes.
type InventoryDocument struct {
	Meta  InvoiceMeta      `json:"meta"`
	Items []*InventoryItem `json:"items"`
}

// Ready reports whether every item has a terminal match type.
func (d *InventoryDocument) Ready() bool {
	for _, it := range d.Items {
		if !it.Ready() {
			return false
		}
	}
	return true
}

// Unresolved returns the items still lacking a terminal resolution.
func (d *InventoryDocument) Unresolved() []*InventoryItem {
	var out []*InventoryItem
	for _, it := range d.Items {
		if !it.Ready() {
			out = append(out, it)
		}
	}
	return out
}
