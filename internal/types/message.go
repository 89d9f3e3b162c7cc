package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Message is one turn of a store's conversation transcript. System-injected
// trigger messages use Name to mark their origin (e.g. "app", "scanner").
type Message struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StoreID   string         `gorm:"column:store_id;not null;index" json:"store_id"`
	Phone     string         `gorm:"column:phone;index" json:"phone"`
	Role      string         `gorm:"column:role;not null" json:"role"`
	Name      string         `gorm:"column:name" json:"name,omitempty"`
	Content   datatypes.JSON `gorm:"column:content;type:jsonb" json:"content"`
	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (Message) TableName() string { return "message" }
