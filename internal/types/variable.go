package types

import (
	"time"

	"github.com/google/uuid"
)

// Variable binds one placeholder field to a value for a product at a given
// stage. At most one row may exist per (product, stage, field_name); writes
// against an existing key are merges, never duplicates.
type Variable struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;index:idx_variable_key,unique,priority:1" json:"product_id"`
	Product    *Product  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProductID;references:ID" json:"product,omitempty"`
	Stage      string    `gorm:"column:stage;not null;index:idx_variable_key,unique,priority:2" json:"stage"`
	FieldName  string    `gorm:"column:field_name;not null;index:idx_variable_key,unique,priority:3" json:"field_name"`
	FieldValue *string   `gorm:"column:field_value" json:"field_value"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (Variable) TableName() string { return "variable" }
