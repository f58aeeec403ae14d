package types

import (
	"time"

	"github.com/google/uuid"
)

// LabelFile is one stored artifact for a product+stage: either an uploaded
// template or a generated filled variant. The (product, stage, filename)
// triple is unique; collisions are resolved by renaming, never by overwrite.
// PreviewPath is advisory: it may be nil (renderer failed) or point at a file
// that no longer exists, and neither invalidates the record.
type LabelFile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;index:idx_label_file_key,unique,priority:1;index:idx_label_file_product_stage,priority:1" json:"product_id"`
	Product     *Product  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProductID;references:ID" json:"product,omitempty"`
	Stage       string    `gorm:"column:stage;not null;index:idx_label_file_key,unique,priority:2;index:idx_label_file_product_stage,priority:2" json:"stage"`
	Filename    string    `gorm:"column:filename;not null;index:idx_label_file_key,unique,priority:3" json:"filename"`
	Path        string    `gorm:"column:path;not null" json:"path"`
	PreviewPath *string   `gorm:"column:preview_path" json:"preview_path,omitempty"`
	UploadedAt  time.Time `gorm:"column:uploaded_at;not null" json:"uploaded_at"`
}

func (LabelFile) TableName() string { return "label_file" }
