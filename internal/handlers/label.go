package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/placeholder"
	"github.com/printops/prnvault/internal/services"
	"github.com/printops/prnvault/internal/stage"
	"github.com/printops/prnvault/internal/types"
)

// Uploads are plain-text label templates; anything over this is not one.
const maxUploadBytes = 5 * 1024 * 1024

type LabelHandler struct {
	log          *logger.Logger
	labelService services.LabelService
	storage      services.StorageService
}

func NewLabelHandler(log *logger.Logger, lsvc services.LabelService, storage services.StorageService) *LabelHandler {
	return &LabelHandler{
		log:          log.With("handler", "LabelHandler"),
		labelService: lsvc,
		storage:      storage,
	}
}

// POST /upload
// multipart/form-data: file (.prn), product_name, stage.
func (h *LabelHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, 400, "invalid_body", errors.New("no file part"))
		return
	}

	productName := strings.TrimSpace(firstNonEmpty(
		c.PostForm("product_name"), c.Query("product_name"),
		c.PostForm("product"), c.Query("product"),
	))
	if productName == "" {
		RespondError(c, 400, "invalid_body", errProductRequired)
		return
	}
	st, ok := requireStage(c, "")
	if !ok {
		return
	}

	if fileHeader.Filename == "" {
		RespondError(c, 400, "invalid_body", errors.New("no selected file"))
		return
	}
	if _, fileExt := services.SplitExt(fileHeader.Filename); !strings.EqualFold(fileExt, ".prn") {
		RespondError(c, 400, "invalid_file_type", errors.New("only .prn files allowed"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		RespondError(c, 400, "file_too_large", fmt.Errorf("file exceeds %d bytes", maxUploadBytes))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		RespondError(c, 500, "read_upload", err)
		return
	}
	defer src.Close()
	content, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		RespondError(c, 500, "read_upload", err)
		return
	}
	if len(content) > maxUploadBytes {
		RespondError(c, 400, "file_too_large", fmt.Errorf("file exceeds %d bytes", maxUploadBytes))
		return
	}

	record, fields, err := h.labelService.RegisterTemplate(c.Request.Context(), productName, st, fileHeader.Filename, content)
	if err != nil {
		RespondAPIError(c, err)
		return
	}

	RespondOK(c, gin.H{
		"message":     "uploaded",
		"filename":    record.Filename,
		"stage":       st,
		"saved_path":  record.Path,
		"fields":      fields,
		"preview_url": previewURLIfPresent(h.storage, productName, st, record),
	})
}

// GET /list-prns/:product/:stage
func (h *LabelHandler) ListLabels(c *gin.Context) {
	st, ok := requireStageParam(c, c.Param("stage"))
	if !ok {
		return
	}
	files, err := h.labelService.List(c.Request.Context(), c.Param("product"), st)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, files)
}

// GET /get-prn/:product/:stage/:filename
// Returns the stored label file as an attachment.
func (h *LabelHandler) GetLabel(c *gin.Context) {
	st, ok := requireStageParam(c, c.Param("stage"))
	if !ok {
		return
	}
	file, err := h.labelService.Get(c.Request.Context(), c.Param("product"), st, c.Param("filename"))
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	if !h.storage.ExistsOnDisk(file.Path) {
		RespondError(c, 404, "file_missing", errors.New("file missing on disk"))
		return
	}
	c.FileAttachment(file.Path, file.Filename)
}

// GET /preview/:product/:stage/:filename?download=1
func (h *LabelHandler) Preview(c *gin.Context) {
	st, ok := requireStageParam(c, c.Param("stage"))
	if !ok {
		return
	}
	file, err := h.labelService.Get(c.Request.Context(), c.Param("product"), st, c.Param("filename"))
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	if file.PreviewPath == nil {
		RespondError(c, 404, "preview_unavailable", errors.New("preview not available"))
		return
	}
	if !h.storage.ExistsOnDisk(*file.PreviewPath) {
		RespondError(c, 404, "preview_unavailable", errors.New("preview file missing"))
		return
	}

	download := strings.ToLower(c.Query("download"))
	if download == "1" || download == "true" || download == "yes" {
		base, _ := services.SplitExt(file.Filename)
		c.FileAttachment(*file.PreviewPath, base+".png")
		return
	}
	c.Header("Content-Type", "image/png")
	c.File(*file.PreviewPath)
}

type extractFieldsRequest struct {
	TemplateText string `json:"template_text"`
}

// POST /extract-fields
// Stateless placeholder discovery over raw template text, for clients that
// want the field list before (or without) uploading.
func (h *LabelHandler) ExtractFields(c *gin.Context) {
	var req extractFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "invalid_body", errors.New("template_text required"))
		return
	}
	RespondOK(c, gin.H{"fields": placeholder.Extract(req.TemplateText)})
}

type deleteLabelRequest struct {
	ProductName string `json:"product_name"`
	Stage       string `json:"stage"`
	PrnFilename string `json:"prn_filename"`
}

// DELETE /delete-prn
func (h *LabelHandler) DeleteLabel(c *gin.Context) {
	var req deleteLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "invalid_body", errors.New("product_name, stage and prn_filename required"))
		return
	}
	name := strings.TrimSpace(req.ProductName)
	if name == "" || req.PrnFilename == "" {
		RespondError(c, 400, "invalid_body", errors.New("product_name, stage and prn_filename required"))
		return
	}
	st, ok := requireStage(c, req.Stage)
	if !ok {
		return
	}

	if err := h.labelService.Delete(c.Request.Context(), name, st, req.PrnFilename); err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "deleted", "prn_filename": req.PrnFilename})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func previewURL(productName string, st stage.Stage, filename string) string {
	return fmt.Sprintf("/preview/%s/%s/%s",
		url.PathEscape(productName), st, url.PathEscape(filename))
}

func previewURLIfPresent(storage services.StorageService, productName string, st stage.Stage, record *types.LabelFile) interface{} {
	if record.PreviewPath == nil || !storage.ExistsOnDisk(*record.PreviewPath) {
		return nil
	}
	return previewURL(productName, st, record.Filename)
}
