package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Product is one catalog entry for a store, kept in sync against the store's
// source system. Fingerprint is a hash over the matchable fields; a changed
// fingerprint is what marks a product for re-embedding on sync.
type Product struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StoreID     string         `gorm:"column:store_id;not null;uniqueIndex:idx_product_store_product" json:"store_id"`
	ProductID   string         `gorm:"column:product_id;not null;uniqueIndex:idx_product_store_product" json:"product_id"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Unit        string         `gorm:"column:unit" json:"unit"`
	Barcodes    datatypes.JSON `gorm:"column:barcodes;type:jsonb" json:"barcodes"`
	NameLemmas  datatypes.JSON `gorm:"column:name_lemmas;type:jsonb" json:"name_lemmas"`
	Fingerprint string         `gorm:"column:fingerprint;not null" json:"fingerprint"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Product) TableName() string { return "product" }

// ResolvedItem is one finalized matching decision, recorded when a document's
// update is finalized. The history pass replays the latest decision per
// supplier name, including any learned quantity conversion expression.
type ResolvedItem struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StoreID            string    `gorm:"column:store_id;not null;index:idx_resolved_store_name" json:"store_id"`
	DocumentID         string    `gorm:"column:document_id;not null;index" json:"document_id"`
	SupplierItemName   string    `gorm:"column:supplier_item_name;not null;index:idx_resolved_store_name" json:"supplier_item_name"`
	InventoryItemID    string    `gorm:"column:inventory_item_id" json:"inventory_item_id"`
	InventoryItemName  string    `gorm:"column:inventory_item_name" json:"inventory_item_name"`
	InventoryItemUnit  string    `gorm:"column:inventory_item_unit" json:"inventory_item_unit"`
	MatchType          string    `gorm:"column:match_type;not null" json:"match_type"`
	QuantityExpression string    `gorm:"column:quantity_expression" json:"quantity_expression,omitempty"`
	CreatedAt          time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (ResolvedItem) TableName() string { return "resolved_item" }
