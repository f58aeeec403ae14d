package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/types"
)

type ProductRepo interface {
	Ensure(ctx context.Context, tx *gorm.DB, name string) (*types.Product, error)
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Product, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Product, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	repoLog := baseLog.With("repo", "ProductRepo")
	return &productRepo{db: db, log: repoLog}
}

// Ensure inserts the product if it does not exist yet and returns the row
// either way. Idempotent; concurrent callers converge on the same row.
func (r *productRepo) Ensure(ctx context.Context, tx *gorm.DB, name string) (*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	product := &types.Product{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(product).Error; err != nil {
		return nil, err
	}

	var existing types.Product
	if err := transaction.WithContext(ctx).
		Where("name = ?", name).
		First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *productRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var product types.Product
	if err := transaction.WithContext(ctx).
		Where("name = ?", name).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var products []*types.Product
	if err := transaction.WithContext(ctx).
		Order("name COLLATE NOCASE").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
