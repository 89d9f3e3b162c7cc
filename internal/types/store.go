package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Store is one onboarded shop. Pipeline holds the ordered stage names a
// document travels through for this store; stores may omit stages.
type Store struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StoreID             string         `gorm:"column:store_id;not null;uniqueIndex" json:"store_id"`
	Phone               string         `gorm:"column:phone;index" json:"phone"`
	System              string         `gorm:"column:system" json:"system"`
	Pipeline            datatypes.JSON `gorm:"column:pipeline;type:jsonb" json:"pipeline"`
	CatalogLastSyncAt   *time.Time     `gorm:"column:catalog_last_sync_at" json:"catalog_last_sync_at,omitempty"`
	CatalogSyncCooldown int            `gorm:"column:catalog_sync_cooldown_minutes;not null;default:0" json:"catalog_sync_cooldown_minutes"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Store) TableName() string { return "store" }
