package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printops/prnvault/internal/apierr"
	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/placeholder"
	"github.com/printops/prnvault/internal/repos"
	"github.com/printops/prnvault/internal/stage"
	"github.com/printops/prnvault/internal/types"
)

type VariableService interface {
	SaveFields(ctx context.Context, productName string, st stage.Stage, fields map[string]*string) (*types.Product, error)
	AddVariable(ctx context.Context, productName string, st stage.Stage, fieldName string, fieldValue *string) error
	UpdateVariable(ctx context.Context, productName string, st stage.Stage, oldName, newName string, newValue *string) (string, error)
	DeleteVariable(ctx context.Context, productName string, st stage.Stage, fieldName string) error
	GetForStage(ctx context.Context, productName string, st stage.Stage) ([]*types.Variable, error)
	FieldsForStage(ctx context.Context, productID uuid.UUID, st stage.Stage) (map[string]*string, error)
	MatchContent(ctx context.Context, productName string, st stage.Stage, content string) (map[string]bool, error)
}

type variableService struct {
	db           *gorm.DB
	log          *logger.Logger
	productRepo  repos.ProductRepo
	variableRepo repos.VariableRepo
}

func NewVariableService(db *gorm.DB, baseLog *logger.Logger, productRepo repos.ProductRepo, variableRepo repos.VariableRepo) VariableService {
	serviceLog := baseLog.With("service", "VariableService")
	return &variableService{
		db:           db,
		log:          serviceLog,
		productRepo:  productRepo,
		variableRepo: variableRepo,
	}
}

// SaveFields merges the given field map for the product+stage. The whole
// batch is applied in one transaction: either every key lands or none does.
// The product is ensured first so a fresh product can receive values.
func (s *variableService) SaveFields(ctx context.Context, productName string, st stage.Stage, fields map[string]*string) (*types.Product, error) {
	product, err := s.productRepo.Ensure(ctx, nil, productName)
	if err != nil {
		return nil, apierr.Storage("ensure_product", fmt.Errorf("ensure product %q: %w", productName, err))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.variableRepo.UpsertMany(ctx, tx, product.ID, st, fields)
	})
	if err != nil {
		s.log.Error("SaveFields failed", "product", productName, "stage", st, "error", err)
		return nil, apierr.Storage("save_fields", fmt.Errorf("save fields: %w", err))
	}
	return product, nil
}

// AddVariable is the strict insert mode: an existing field for the same
// product+stage is a conflict, never a merge.
func (s *variableService) AddVariable(ctx context.Context, productName string, st stage.Stage, fieldName string, fieldValue *string) error {
	product, err := s.requireProduct(ctx, productName)
	if err != nil {
		return err
	}

	variable := &types.Variable{
		ID:         uuid.New(),
		ProductID:  product.ID,
		Stage:      string(st),
		FieldName:  fieldName,
		FieldValue: fieldValue,
	}
	if err := s.variableRepo.Insert(ctx, nil, variable); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apierr.Conflictf("variable_exists", "variable %q already exists for this product+stage", fieldName)
		}
		s.log.Error("AddVariable failed", "product", productName, "stage", st, "field", fieldName, "error", err)
		return apierr.Storage("add_variable", fmt.Errorf("add variable: %w", err))
	}
	return nil
}

// UpdateVariable renames a variable and/or replaces its value atomically.
// The target-name collision check runs before any mutation so a rejected
// rename leaves both records untouched. Renaming a variable to its own name
// is a value write-back, not a conflict. A nil newValue keeps the old value.
// Returns the field name the variable ends up with.
func (s *variableService) UpdateVariable(ctx context.Context, productName string, st stage.Stage, oldName, newName string, newValue *string) (string, error) {
	product, err := s.requireProduct(ctx, productName)
	if err != nil {
		return "", err
	}
	if newName == "" {
		newName = oldName
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		variable, err := s.variableRepo.GetByName(ctx, tx, product.ID, st, oldName)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFoundf("variable_not_found", "variable %q not found for this product+stage", oldName)
			}
			return apierr.Storage("update_variable", err)
		}

		if newName != oldName {
			if _, err := s.variableRepo.GetByName(ctx, tx, product.ID, st, newName); err == nil {
				return apierr.Conflictf("variable_exists", "target variable name %q already exists for this product+stage", newName)
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.Storage("update_variable", err)
			}
			if err := s.variableRepo.UpdateName(ctx, tx, variable.ID, newName); err != nil {
				return apierr.Storage("update_variable", err)
			}
		}

		if newValue != nil {
			if err := s.variableRepo.UpdateValue(ctx, tx, variable.ID, newValue); err != nil {
				return apierr.Storage("update_variable", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return newName, nil
}

func (s *variableService) DeleteVariable(ctx context.Context, productName string, st stage.Stage, fieldName string) error {
	product, err := s.requireProduct(ctx, productName)
	if err != nil {
		return err
	}

	affected, err := s.variableRepo.DeleteByName(ctx, nil, product.ID, st, fieldName)
	if err != nil {
		s.log.Error("DeleteVariable failed", "product", productName, "stage", st, "field", fieldName, "error", err)
		return apierr.Storage("delete_variable", fmt.Errorf("delete variable: %w", err))
	}
	if affected == 0 {
		return apierr.NotFoundf("variable_not_found", "variable %q not found for this product+stage", fieldName)
	}
	return nil
}

func (s *variableService) GetForStage(ctx context.Context, productName string, st stage.Stage) ([]*types.Variable, error) {
	product, err := s.requireProduct(ctx, productName)
	if err != nil {
		return nil, err
	}
	variables, err := s.variableRepo.GetByProductStage(ctx, nil, product.ID, st)
	if err != nil {
		return nil, apierr.Storage("get_variables", fmt.Errorf("get variables: %w", err))
	}
	return variables, nil
}

// FieldsForStage returns the current bindings as a substitution-ready map.
func (s *variableService) FieldsForStage(ctx context.Context, productID uuid.UUID, st stage.Stage) (map[string]*string, error) {
	variables, err := s.variableRepo.GetByProductStage(ctx, nil, productID, st)
	if err != nil {
		return nil, apierr.Storage("get_variables", fmt.Errorf("get variables: %w", err))
	}
	fields := make(map[string]*string, len(variables))
	for _, v := range variables {
		fields[v.FieldName] = v.FieldValue
	}
	return fields, nil
}

// MatchContent reports which of the product+stage's stored field names occur
// as placeholder tokens in the given template content.
func (s *variableService) MatchContent(ctx context.Context, productName string, st stage.Stage, content string) (map[string]bool, error) {
	product, err := s.requireProduct(ctx, productName)
	if err != nil {
		return nil, err
	}
	variables, err := s.variableRepo.GetByProductStage(ctx, nil, product.ID, st)
	if err != nil {
		return nil, apierr.Storage("get_variables", fmt.Errorf("get variables: %w", err))
	}
	names := make([]string, 0, len(variables))
	for _, v := range variables {
		names = append(names, v.FieldName)
	}
	return placeholder.Match(content, names), nil
}

func (s *variableService) requireProduct(ctx context.Context, productName string) (*types.Product, error) {
	product, err := s.productRepo.GetByName(ctx, nil, productName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFoundf("product_not_found", "product %q not found", productName)
		}
		return nil, apierr.Storage("get_product", fmt.Errorf("get product: %w", err))
	}
	return product, nil
}
