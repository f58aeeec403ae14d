package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/printops/prnvault/internal/apierr"
	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/repos"
	"github.com/printops/prnvault/internal/stage"
	"github.com/printops/prnvault/internal/utils"
)

// PreviewService talks to the Labelary rendering API. Every call is
// best-effort: the registry row is already committed before a preview is
// requested, and a renderer failure only ever costs the preview itself.
type PreviewService interface {
	Render(ctx context.Context, labelContent []byte) ([]byte, error)
	GenerateAndBind(ctx context.Context, productID uuid.UUID, productName string, st stage.Stage, filename, labelPath string) bool
}

type previewService struct {
	log           *logger.Logger
	url           string
	httpClient    *http.Client
	storage       StorageService
	labelFileRepo repos.LabelFileRepo
}

func NewPreviewService(baseLog *logger.Logger, storage StorageService, labelFileRepo repos.LabelFileRepo) PreviewService {
	serviceLog := baseLog.With("service", "PreviewService")

	printer := utils.GetEnv("LABELARY_PRINTER", "8dpmm", baseLog)
	label := utils.GetEnv("LABELARY_LABEL", "4x6", baseLog)
	rotation := utils.GetEnv("LABELARY_ROTATION", "0", baseLog)
	baseURL := utils.GetEnv("LABELARY_BASE_URL", "http://api.labelary.com", baseLog)
	timeoutSec := utils.GetEnvAsInt("LABELARY_TIMEOUT_SECONDS", 30, baseLog)

	return &previewService{
		log:           serviceLog,
		url:           fmt.Sprintf("%s/v1/printers/%s/labels/%s/%s/", baseURL, printer, label, rotation),
		httpClient:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		storage:       storage,
		labelFileRepo: labelFileRepo,
	}
}

// Render posts the label content and returns the PNG bytes. Transport errors,
// timeouts and non-200 responses come back as external-service errors.
func (p *previewService) Render(ctx context.Context, labelContent []byte) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "label.prn")
	if err != nil {
		return nil, apierr.External("preview_request", err)
	}
	if _, err := part.Write(labelContent); err != nil {
		return nil, apierr.External("preview_request", err)
	}
	if err := writer.Close(); err != nil {
		return nil, apierr.External("preview_request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, &body)
	if err != nil {
		return nil, apierr.External("preview_request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "image/png")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apierr.External("preview_unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, apierr.External("preview_unavailable",
			fmt.Errorf("labelary returned %d: %s", resp.StatusCode, string(snippet)))
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.External("preview_unavailable", err)
	}
	return image, nil
}

// GenerateAndBind renders a preview for the stored label file, writes the PNG
// next to it and binds it to the registry row. It never fails the caller; it
// reports whether a preview ended up bound. Runs outside any transaction, and
// a row deleted mid-flight turns the bind into a no-op.
func (p *previewService) GenerateAndBind(ctx context.Context, productID uuid.UUID, productName string, st stage.Stage, filename, labelPath string) bool {
	content, err := p.storage.Read(labelPath)
	if err != nil {
		p.log.Warn("Preview skipped, could not read label file", "path", labelPath, "error", err)
		return false
	}

	image, err := p.Render(ctx, content)
	if err != nil {
		p.log.Warn("Labelary preview failed", "filename", filename, "error", err)
		return false
	}

	base, _ := SplitExt(filename)
	previewPath, err := p.storage.Save(productName, st, base+".png", image)
	if err != nil {
		p.log.Warn("Failed to write preview file", "filename", filename, "error", err)
		return false
	}

	if err := p.labelFileRepo.SetPreviewPath(ctx, nil, productID, st, filename, previewPath); err != nil {
		p.log.Warn("Failed to bind preview to label file", "filename", filename, "error", err)
		return false
	}
	return true
}
