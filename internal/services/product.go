package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/printops/prnvault/internal/apierr"
	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/repos"
	"github.com/printops/prnvault/internal/stage"
	"github.com/printops/prnvault/internal/types"
)

type ProductDetail struct {
	Product   *types.Product        `json:"product"`
	Stage     stage.Stage           `json:"stage"`
	Variables []*types.Variable     `json:"variables"`
	Counts    map[stage.Stage]int64 `json:"label_counts"`
	Labels    []*types.LabelFile    `json:"labels_for_stage"`
}

type ProductService interface {
	EnsureProduct(ctx context.Context, name string) (*types.Product, error)
	ListProducts(ctx context.Context) ([]*types.Product, error)
	GetProductDetail(ctx context.Context, name string, st stage.Stage) (*ProductDetail, error)
}

type productService struct {
	db           *gorm.DB
	log          *logger.Logger
	productRepo  repos.ProductRepo
	variableRepo repos.VariableRepo
	labelService LabelService
}

func NewProductService(db *gorm.DB, baseLog *logger.Logger, productRepo repos.ProductRepo, variableRepo repos.VariableRepo, labelService LabelService) ProductService {
	serviceLog := baseLog.With("service", "ProductService")
	return &productService{
		db:           db,
		log:          serviceLog,
		productRepo:  productRepo,
		variableRepo: variableRepo,
		labelService: labelService,
	}
}

// EnsureProduct creates the product if it does not exist and returns it
// either way. This is the one place identity creation happens explicitly;
// other operations call it at the boundary instead of creating products as a
// side effect of unrelated writes.
func (s *productService) EnsureProduct(ctx context.Context, name string) (*types.Product, error) {
	product, err := s.productRepo.Ensure(ctx, nil, name)
	if err != nil {
		s.log.Error("EnsureProduct failed", "product", name, "error", err)
		return nil, apierr.Storage("ensure_product", fmt.Errorf("ensure product: %w", err))
	}
	return product, nil
}

func (s *productService) ListProducts(ctx context.Context) ([]*types.Product, error) {
	products, err := s.productRepo.List(ctx, nil)
	if err != nil {
		return nil, apierr.Storage("list_products", fmt.Errorf("list products: %w", err))
	}
	return products, nil
}

// GetProductDetail returns the stage view the UI works from: the stage's
// variables and artifacts plus per-stage artifact counts. The product is
// ensured so browsing a new name yields an empty detail, not a 404.
func (s *productService) GetProductDetail(ctx context.Context, name string, st stage.Stage) (*ProductDetail, error) {
	product, err := s.EnsureProduct(ctx, name)
	if err != nil {
		return nil, err
	}

	variables, err := s.variableRepo.GetByProductStage(ctx, nil, product.ID, st)
	if err != nil {
		return nil, apierr.Storage("get_variables", fmt.Errorf("get variables: %w", err))
	}

	counts, err := s.labelService.CountsByStage(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	labels, err := s.labelService.List(ctx, name, st)
	if err != nil {
		return nil, err
	}

	return &ProductDetail{
		Product:   product,
		Stage:     st,
		Variables: variables,
		Counts:    counts,
		Labels:    labels,
	}, nil
}
