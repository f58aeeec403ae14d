package types

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;uniqueIndex;not null" json:"product_name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Product) TableName() string { return "product" }
