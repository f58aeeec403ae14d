package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printops/prnvault/internal/apierr"
	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/placeholder"
	"github.com/printops/prnvault/internal/repos"
	"github.com/printops/prnvault/internal/stage"
	"github.com/printops/prnvault/internal/types"
)

// LabelService is the artifact registry: every uploaded template and every
// generated filled variant per product+stage, with collision-safe naming and
// best-effort preview binding.
type LabelService interface {
	RegisterTemplate(ctx context.Context, productName string, st stage.Stage, filename string, content []byte) (*types.LabelFile, []string, error)
	RenderFilled(ctx context.Context, productName string, st stage.Stage, sourceFilename string, overrides map[string]*string) (*types.LabelFile, error)
	List(ctx context.Context, productName string, st stage.Stage) ([]*types.LabelFile, error)
	Get(ctx context.Context, productName string, st stage.Stage, filename string) (*types.LabelFile, error)
	Delete(ctx context.Context, productName string, st stage.Stage, filename string) error
	CountsByStage(ctx context.Context, productID uuid.UUID) (map[stage.Stage]int64, error)
	LatestFilename(ctx context.Context, productName string, st stage.Stage) (string, bool, error)
}

type labelService struct {
	db            *gorm.DB
	log           *logger.Logger
	productRepo   repos.ProductRepo
	variableRepo  repos.VariableRepo
	labelFileRepo repos.LabelFileRepo
	storage       StorageService
	preview       PreviewService
}

func NewLabelService(
	db *gorm.DB,
	baseLog *logger.Logger,
	productRepo repos.ProductRepo,
	variableRepo repos.VariableRepo,
	labelFileRepo repos.LabelFileRepo,
	storage StorageService,
	preview PreviewService,
) LabelService {
	serviceLog := baseLog.With("service", "LabelService")
	return &labelService{
		db:            db,
		log:           serviceLog,
		productRepo:   productRepo,
		variableRepo:  variableRepo,
		labelFileRepo: labelFileRepo,
		storage:       storage,
		preview:       preview,
	}
}

// RegisterTemplate stores an uploaded template under a collision-safe name,
// records it in the registry and reports the placeholder fields it contains.
// The preview render runs after the row is committed and cannot fail the
// registration.
func (s *labelService) RegisterTemplate(ctx context.Context, productName string, st stage.Stage, filename string, content []byte) (*types.LabelFile, []string, error) {
	product, err := s.productRepo.Ensure(ctx, nil, productName)
	if err != nil {
		return nil, nil, apierr.Storage("ensure_product", fmt.Errorf("ensure product %q: %w", productName, err))
	}

	filename = SanitizeFilename(filename)
	if filename == "" {
		return nil, nil, apierr.Validationf("invalid_filename", "filename is empty after sanitization")
	}

	record, err := s.persistWithRetry(ctx, product, st, filename, content, templateCandidates(filename))
	if err != nil {
		return nil, nil, err
	}

	fields := placeholder.Extract(string(content))

	if s.preview.GenerateAndBind(ctx, product.ID, productName, st, record.Filename, record.Path) {
		record = s.refresh(ctx, product.ID, st, record)
	}
	return record, fields, nil
}

// RenderFilled loads a stored template, substitutes the product+stage's
// current bindings (request overrides win) and registers the result as a new
// artifact named after the source plus a "filled" marker.
func (s *labelService) RenderFilled(ctx context.Context, productName string, st stage.Stage, sourceFilename string, overrides map[string]*string) (*types.LabelFile, error) {
	product, err := s.requireProduct(ctx, productName)
	if err != nil {
		return nil, err
	}

	sourceFilename = SanitizeFilename(sourceFilename)
	source, err := s.labelFileRepo.GetByFilename(ctx, nil, product.ID, st, sourceFilename)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFoundf("label_not_found", "label %q not found for this product+stage", sourceFilename)
		}
		return nil, apierr.Storage("get_label", fmt.Errorf("get label: %w", err))
	}

	raw, err := s.storage.Read(source.Path)
	if err != nil {
		return nil, apierr.NotFoundf("file_missing", "label file for %q is missing on disk", sourceFilename)
	}

	fields, err := s.currentFields(ctx, product.ID, st, overrides)
	if err != nil {
		return nil, err
	}
	filled := placeholder.Fill(string(raw), fields)

	record, err := s.persistWithRetry(ctx, product, st, sourceFilename, []byte(filled), filledCandidates(sourceFilename))
	if err != nil {
		return nil, err
	}

	if s.preview.GenerateAndBind(ctx, product.ID, productName, st, record.Filename, record.Path) {
		record = s.refresh(ctx, product.ID, st, record)
	}
	return record, nil
}

// refresh re-reads a record after a preview bind so callers see the bound
// preview path. Falls back to the in-memory record on any read failure.
func (s *labelService) refresh(ctx context.Context, productID uuid.UUID, st stage.Stage, record *types.LabelFile) *types.LabelFile {
	fresh, err := s.labelFileRepo.GetByFilename(ctx, nil, productID, st, record.Filename)
	if err != nil {
		return record
	}
	return fresh
}

func (s *labelService) List(ctx context.Context, productName string, st stage.Stage) ([]*types.LabelFile, error) {
	product, err := s.productRepo.GetByName(ctx, nil, productName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []*types.LabelFile{}, nil
		}
		return nil, apierr.Storage("get_product", fmt.Errorf("get product: %w", err))
	}
	files, err := s.labelFileRepo.ListByProductStage(ctx, nil, product.ID, st)
	if err != nil {
		return nil, apierr.Storage("list_labels", fmt.Errorf("list labels: %w", err))
	}
	return files, nil
}

func (s *labelService) Get(ctx context.Context, productName string, st stage.Stage, filename string) (*types.LabelFile, error) {
	product, err := s.requireProduct(ctx, productName)
	if err != nil {
		return nil, err
	}
	file, err := s.labelFileRepo.GetByFilename(ctx, nil, product.ID, st, SanitizeFilename(filename))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFoundf("label_not_found", "label %q not found for this product+stage", filename)
		}
		return nil, apierr.Storage("get_label", fmt.Errorf("get label: %w", err))
	}
	return file, nil
}

// Delete removes the registry record first and only then tries to remove the
// underlying files. File removal failures are logged and swallowed; the
// record is already gone and orphaned files are a recoverable cost.
func (s *labelService) Delete(ctx context.Context, productName string, st stage.Stage, filename string) error {
	file, err := s.Get(ctx, productName, st, filename)
	if err != nil {
		return err
	}

	affected, err := s.labelFileRepo.Delete(ctx, nil, file.ID)
	if err != nil {
		return apierr.Storage("delete_label", fmt.Errorf("delete label: %w", err))
	}
	if affected == 0 {
		return apierr.NotFoundf("label_not_found", "label %q not found for this product+stage", filename)
	}

	if err := s.storage.Remove(file.Path); err != nil {
		s.log.Warn("Failed to remove label file from disk", "path", file.Path, "error", err)
	}
	if file.PreviewPath != nil {
		if err := s.storage.Remove(*file.PreviewPath); err != nil {
			s.log.Warn("Failed to remove preview file from disk", "path", *file.PreviewPath, "error", err)
		}
	}
	return nil
}

func (s *labelService) CountsByStage(ctx context.Context, productID uuid.UUID) (map[stage.Stage]int64, error) {
	counts := make(map[stage.Stage]int64, 3)
	for _, st := range stage.All() {
		count, err := s.labelFileRepo.CountByStage(ctx, nil, productID, st)
		if err != nil {
			return nil, apierr.Storage("count_labels", fmt.Errorf("count labels: %w", err))
		}
		counts[st] = count
	}
	return counts, nil
}

// LatestFilename returns the most recently uploaded artifact for the
// product+stage, used as the default source when a caller asks for a filled
// label without naming a template.
func (s *labelService) LatestFilename(ctx context.Context, productName string, st stage.Stage) (string, bool, error) {
	product, err := s.requireProduct(ctx, productName)
	if err != nil {
		return "", false, err
	}
	files, err := s.labelFileRepo.ListByProductStage(ctx, nil, product.ID, st)
	if err != nil {
		return "", false, apierr.Storage("list_labels", fmt.Errorf("list labels: %w", err))
	}
	if len(files) == 0 {
		return "", false, nil
	}
	return files[0].Filename, true, nil
}

// persistWithRetry claims the first free candidate name by inserting the
// registry row, then writes the content to disk. The row insert is the
// arbiter: losing a candidate to a concurrent writer is a duplicate-key
// error with nothing on disk to clean up, so a committed artifact's file can
// never be overwritten or removed by the loser. When every candidate is
// taken the operation fails with a conflict rather than ever overwriting an
// existing artifact.
func (s *labelService) persistWithRetry(ctx context.Context, product *types.Product, st stage.Stage, original string, content []byte, candidates []string) (*types.LabelFile, error) {
	for _, candidate := range candidates {
		taken, err := s.labelFileRepo.Exists(ctx, nil, product.ID, st, candidate)
		if err != nil {
			return nil, apierr.Storage("register_label", fmt.Errorf("check filename: %w", err))
		}
		if taken {
			continue
		}

		path, err := s.storage.PathFor(product.Name, st, candidate)
		if err != nil {
			return nil, apierr.Storage("save_file", fmt.Errorf("resolve path: %w", err))
		}

		record := &types.LabelFile{
			ID:         uuid.New(),
			ProductID:  product.ID,
			Stage:      string(st),
			Filename:   candidate,
			Path:       path,
			UploadedAt: time.Now(),
		}
		if err := s.labelFileRepo.Create(ctx, nil, record); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost the name to a concurrent writer; the name now belongs
				// to its record, try the next candidate.
				continue
			}
			return nil, apierr.Storage("register_label", fmt.Errorf("register label: %w", err))
		}

		if _, err := s.storage.Save(product.Name, st, candidate, content); err != nil {
			// The row must not outlive a failed file write.
			if _, delErr := s.labelFileRepo.Delete(ctx, nil, record.ID); delErr != nil {
				s.log.Error("Failed to remove registry row after file write failure", "filename", candidate, "error", delErr)
			}
			return nil, apierr.Storage("save_file", fmt.Errorf("save file: %w", err))
		}
		return record, nil
	}
	return nil, apierr.Conflictf("filename_exhausted", "could not find a free filename for %q", original)
}

// templateCandidates disambiguates an uploaded filename: the name as given,
// then a unix-seconds suffix, then a nanosecond one.
func templateCandidates(filename string) []string {
	base, ext := SplitExt(filename)
	return []string{
		filename,
		fmt.Sprintf("%s_%d%s", base, time.Now().Unix(), ext),
		fmt.Sprintf("%s_%d%s", base, time.Now().UnixNano(), ext),
	}
}

// filledCandidates derives names for a filled variant of the source file.
func filledCandidates(sourceFilename string) []string {
	base, ext := SplitExt(sourceFilename)
	now := time.Now()
	return []string{
		fmt.Sprintf("%s_filled_%d%s", base, now.Unix(), ext),
		fmt.Sprintf("%s_filled_%d_%d%s", base, now.Unix(), now.UnixNano(), ext),
	}
}

func (s *labelService) currentFields(ctx context.Context, productID uuid.UUID, st stage.Stage, overrides map[string]*string) (map[string]*string, error) {
	variables, err := s.variableRepo.GetByProductStage(ctx, nil, productID, st)
	if err != nil {
		return nil, apierr.Storage("get_variables", fmt.Errorf("get variables: %w", err))
	}
	fields := make(map[string]*string, len(variables)+len(overrides))
	for _, v := range variables {
		fields[v.FieldName] = v.FieldValue
	}
	for name, value := range overrides {
		fields[name] = value
	}
	return fields, nil
}

func (s *labelService) requireProduct(ctx context.Context, productName string) (*types.Product, error) {
	product, err := s.productRepo.GetByName(ctx, nil, productName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFoundf("product_not_found", "product %q not found", productName)
		}
		return nil, apierr.Storage("get_product", fmt.Errorf("get product: %w", err))
	}
	return product, nil
}
