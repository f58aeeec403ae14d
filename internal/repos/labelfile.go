package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/stage"
	"github.com/printops/prnvault/internal/types"
)

type LabelFileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, file *types.LabelFile) error
	GetByFilename(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, filename string) (*types.LabelFile, error)
	Exists(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, filename string) (bool, error)
	ListByProductStage(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage) ([]*types.LabelFile, error)
	CountByStage(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage) (int64, error)
	SetPreviewPath(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, filename, previewPath string) error
	Delete(ctx context.Context, tx *gorm.DB, fileID uuid.UUID) (int64, error)
}

type labelFileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLabelFileRepo(db *gorm.DB, baseLog *logger.Logger) LabelFileRepo {
	repoLog := baseLog.With("repo", "LabelFileRepo")
	return &labelFileRepo{db: db, log: repoLog}
}

// Create inserts the row as-is. A (product, stage, filename) collision is a
// uniqueness violation surfaced as gorm.ErrDuplicatedKey; the caller owns the
// rename-and-retry policy.
func (r *labelFileRepo) Create(ctx context.Context, tx *gorm.DB, file *types.LabelFile) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(file).Error
}

func (r *labelFileRepo) GetByFilename(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, filename string) (*types.LabelFile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var file types.LabelFile
	if err := transaction.WithContext(ctx).
		Where("product_id = ? AND stage = ? AND filename = ?", productID, string(st), filename).
		First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *labelFileRepo) Exists(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, filename string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.LabelFile{}).
		Where("product_id = ? AND stage = ? AND filename = ?", productID, string(st), filename).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *labelFileRepo) ListByProductStage(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage) ([]*types.LabelFile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LabelFile
	if err := transaction.WithContext(ctx).
		Where("product_id = ? AND stage = ?", productID, string(st)).
		Order("uploaded_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *labelFileRepo) CountByStage(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.LabelFile{}).
		Where("product_id = ? AND stage = ?", productID, string(st)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SetPreviewPath binds a freshly rendered preview to its artifact. When the
// artifact was deleted in the meantime the update touches zero rows, which is
// deliberately not an error.
func (r *labelFileRepo) SetPreviewPath(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, filename, previewPath string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.LabelFile{}).
		Where("product_id = ? AND stage = ? AND filename = ?", productID, string(st), filename).
		Update("preview_path", previewPath).Error
}

func (r *labelFileRepo) Delete(ctx context.Context, tx *gorm.DB, fileID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	result := transaction.WithContext(ctx).
		Where("id = ?", fileID).
		Delete(&types.LabelFile{})
	return result.RowsAffected, result.Error
}
