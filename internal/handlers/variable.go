package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/services"
	"github.com/printops/prnvault/internal/stage"
)

type VariableHandler struct {
	log             *logger.Logger
	variableService services.VariableService
	labelService    services.LabelService
}

func NewVariableHandler(log *logger.Logger, vsvc services.VariableService, lsvc services.LabelService) *VariableHandler {
	return &VariableHandler{
		log:             log.With("handler", "VariableHandler"),
		variableService: vsvc,
		labelService:    lsvc,
	}
}

type saveFieldsRequest struct {
	ProductName       string             `json:"product_name"`
	Stage             string             `json:"stage"`
	Variables         map[string]*string `json:"variables"`
	GenerateFilled    bool               `json:"generate_filled"`
	SourcePrnFilename string             `json:"source_prn_filename"`
}

// POST /save-fields
// Merge a batch of variables for a product+stage. Optionally generates a
// filled label from a named source template in the same request; generation
// failures are logged and the save still succeeds.
func (h *VariableHandler) SaveFields(c *gin.Context) {
	var req saveFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "invalid_body", errors.New("provide product_name and variables"))
		return
	}
	name := strings.TrimSpace(req.ProductName)
	if name == "" {
		RespondError(c, 400, "invalid_body", errProductRequired)
		return
	}
	if req.Variables == nil {
		RespondError(c, 400, "invalid_body", errors.New("variables must be a JSON object mapping field_name -> value"))
		return
	}
	st, ok := requireStage(c, req.Stage)
	if !ok {
		return
	}

	if _, err := h.variableService.SaveFields(c.Request.Context(), name, st, req.Variables); err != nil {
		RespondAPIError(c, err)
		return
	}

	resp := gin.H{"message": "saved/merged", "product_name": name, "stage": st}
	if req.GenerateFilled && req.SourcePrnFilename != "" {
		h.attachFilled(c, resp, name, st, req.SourcePrnFilename, req.Variables)
	}
	RespondOK(c, resp)
}

type addVariableRequest struct {
	ProductName string  `json:"product_name"`
	Stage       string  `json:"stage"`
	FieldName   string  `json:"field_name"`
	FieldValue  *string `json:"field_value"`
}

// POST /add-variable
// Strict insert: a variable that already exists for the product+stage is a
// 409, never a silent merge.
func (h *VariableHandler) AddVariable(c *gin.Context) {
	var req addVariableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "invalid_body", errors.New("product_name and field_name required"))
		return
	}
	name := strings.TrimSpace(req.ProductName)
	fieldName := strings.TrimSpace(req.FieldName)
	if name == "" || fieldName == "" {
		RespondError(c, 400, "invalid_body", errors.New("product_name and field_name cannot be empty"))
		return
	}
	st, ok := requireStage(c, req.Stage)
	if !ok {
		return
	}

	if err := h.variableService.AddVariable(c.Request.Context(), name, st, fieldName, req.FieldValue); err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "variable added", "field_name": fieldName, "product_name": name, "stage": st})
}

type matchVariablesRequest struct {
	ProductName string `json:"product_name"`
	Stage       string `json:"stage"`
	PrnContent  string `json:"prn_content"`
}

// POST /match-variables
// Report which of the product+stage's stored variables occur as placeholder
// tokens in the posted template content.
func (h *VariableHandler) MatchVariables(c *gin.Context) {
	var req matchVariablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "invalid_body", errors.New("product_name and prn_content required"))
		return
	}
	name := strings.TrimSpace(req.ProductName)
	if name == "" || req.PrnContent == "" {
		RespondError(c, 400, "invalid_body", errors.New("product_name and prn_content cannot be empty"))
		return
	}
	st, ok := requireStage(c, req.Stage)
	if !ok {
		return
	}

	matched, err := h.variableService.MatchContent(c.Request.Context(), name, st, req.PrnContent)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"matched_variables": matched, "product_name": name, "stage": st})
}

type updateVariableRequest struct {
	ProductName       string  `json:"product_name"`
	Stage             string  `json:"stage"`
	OldFieldName      string  `json:"old_field_name"`
	NewFieldName      *string `json:"new_field_name"`
	NewFieldValue     *string `json:"new_field_value"`
	GenerateFilled    bool    `json:"generate_filled"`
	SourcePrnFilename string  `json:"source_prn_filename"`
}

// PUT /update-variable
// Rename a variable and/or replace its value. Optionally generates a filled
// label afterwards, defaulting to the most recent template for the
// product+stage when no source is named.
func (h *VariableHandler) UpdateVariable(c *gin.Context) {
	var req updateVariableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "invalid_body", errors.New("product_name, old_field_name and (new_field_name or new_field_value) required"))
		return
	}
	name := strings.TrimSpace(req.ProductName)
	oldName := strings.TrimSpace(req.OldFieldName)
	if name == "" || oldName == "" || (req.NewFieldName == nil && req.NewFieldValue == nil) {
		RespondError(c, 400, "invalid_body", errors.New("product_name, old_field_name and (new_field_name or new_field_value) required"))
		return
	}
	st, ok := requireStage(c, req.Stage)
	if !ok {
		return
	}

	newName := oldName
	if req.NewFieldName != nil {
		newName = strings.TrimSpace(*req.NewFieldName)
	}

	finalName, err := h.variableService.UpdateVariable(c.Request.Context(), name, st, oldName, newName, req.NewFieldValue)
	if err != nil {
		RespondAPIError(c, err)
		return
	}

	resp := gin.H{"message": "variable updated", "field_name": finalName, "product_name": name, "stage": st}
	if req.GenerateFilled {
		h.attachFilled(c, resp, name, st, req.SourcePrnFilename, nil)
	}
	RespondOK(c, resp)
}

type deleteVariableRequest struct {
	ProductName string `json:"product_name"`
	Stage       string `json:"stage"`
	FieldName   string `json:"field_name"`
}

// DELETE /delete-variable
func (h *VariableHandler) DeleteVariable(c *gin.Context) {
	var req deleteVariableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "invalid_body", errors.New("product_name and field_name required"))
		return
	}
	name := strings.TrimSpace(req.ProductName)
	fieldName := strings.TrimSpace(req.FieldName)
	if name == "" || fieldName == "" {
		RespondError(c, 400, "invalid_body", errors.New("product_name and field_name required"))
		return
	}
	st, ok := requireStage(c, req.Stage)
	if !ok {
		return
	}

	if err := h.variableService.DeleteVariable(c.Request.Context(), name, st, fieldName); err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "variable deleted", "field_name": fieldName, "product_name": name, "stage": st})
}

// attachFilled renders a filled label and folds its coordinates into the
// response. Best-effort: a failed generation is logged and the response goes
// out without filled info, because the variable write already committed.
func (h *VariableHandler) attachFilled(c *gin.Context, resp gin.H, productName string, st stage.Stage, sourceFilename string, overrides map[string]*string) {
	ctx := c.Request.Context()

	if sourceFilename == "" {
		latest, found, err := h.labelService.LatestFilename(ctx, productName, st)
		if err != nil || !found {
			h.log.Info("No source label found to generate filled label", "product", productName, "stage", st)
			return
		}
		sourceFilename = latest
	}

	record, err := h.labelService.RenderFilled(ctx, productName, st, sourceFilename, overrides)
	if err != nil {
		h.log.Warn("Failed to generate filled label", "product", productName, "stage", st, "source", sourceFilename, "error", err)
		return
	}

	resp["filled_prn_filename"] = record.Filename
	resp["preview_url"] = nil
	if record.PreviewPath != nil {
		resp["preview_url"] = previewURL(productName, st, record.Filename)
	}
}
