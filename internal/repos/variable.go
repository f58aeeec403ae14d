package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/stage"
	"github.com/printops/prnvault/internal/types"
)

type VariableRepo interface {
	UpsertMany(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, fields map[string]*string) error
	Insert(ctx context.Context, tx *gorm.DB, variable *types.Variable) error
	GetByProductStage(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage) ([]*types.Variable, error)
	GetByName(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, fieldName string) (*types.Variable, error)
	UpdateName(ctx context.Context, tx *gorm.DB, variableID uuid.UUID, newName string) error
	UpdateValue(ctx context.Context, tx *gorm.DB, variableID uuid.UUID, value *string) error
	DeleteByName(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, fieldName string) (int64, error)
}

type variableRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVariableRepo(db *gorm.DB, baseLog *logger.Logger) VariableRepo {
	repoLog := baseLog.With("repo", "VariableRepo")
	return &variableRepo{db: db, log: repoLog}
}

// UpsertMany merges the given fields in one batch: new keys are inserted,
// existing (product, stage, field_name) keys have their value overwritten.
func (r *variableRepo) UpsertMany(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, fields map[string]*string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*types.Variable, 0, len(fields))
	for name, value := range fields {
		rows = append(rows, &types.Variable{
			ID:         uuid.New(),
			ProductID:  productID,
			Stage:      string(st),
			FieldName:  name,
			FieldValue: value,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "stage"}, {Name: "field_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"field_value", "updated_at"}),
		}).
		Create(&rows).Error
}

// Insert is the strict write mode: an existing key is a uniqueness violation,
// surfaced as gorm.ErrDuplicatedKey, never silently merged.
func (r *variableRepo) Insert(ctx context.Context, tx *gorm.DB, variable *types.Variable) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(variable).Error
}

func (r *variableRepo) GetByProductStage(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage) ([]*types.Variable, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Variable
	if err := transaction.WithContext(ctx).
		Where("product_id = ? AND stage = ?", productID, string(st)).
		Order("field_name").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *variableRepo) GetByName(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, fieldName string) (*types.Variable, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var variable types.Variable
	if err := transaction.WithContext(ctx).
		Where("product_id = ? AND stage = ? AND field_name = ?", productID, string(st), fieldName).
		First(&variable).Error; err != nil {
		return nil, err
	}
	return &variable, nil
}

func (r *variableRepo) UpdateName(ctx context.Context, tx *gorm.DB, variableID uuid.UUID, newName string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Variable{}).
		Where("id = ?", variableID).
		Updates(map[string]interface{}{"field_name": newName, "updated_at": time.Now()}).Error
}

func (r *variableRepo) UpdateValue(ctx context.Context, tx *gorm.DB, variableID uuid.UUID, value *string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Variable{}).
		Where("id = ?", variableID).
		Updates(map[string]interface{}{"field_value": value, "updated_at": time.Now()}).Error
}

func (r *variableRepo) DeleteByName(ctx context.Context, tx *gorm.DB, productID uuid.UUID, st stage.Stage, fieldName string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	result := transaction.WithContext(ctx).
		Where("product_id = ? AND stage = ? AND field_name = ?", productID, string(st), fieldName).
		Delete(&types.Variable{})
	return result.RowsAffected, result.Error
}
