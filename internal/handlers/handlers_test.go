package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/printops/prnvault/internal/db"
	"github.com/printops/prnvault/internal/handlers"
	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/repos"
	"github.com/printops/prnvault/internal/server"
	"github.com/printops/prnvault/internal/services"
)

var testDBSeq atomic.Int64

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	// Renderer is unreachable in tests; previews degrade to absent.
	t.Setenv("LABELARY_BASE_URL", "http://127.0.0.1:1")
	t.Setenv("LABELARY_TIMEOUT_SECONDS", "1")

	log := &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
	dsn := fmt.Sprintf("file:handlers%d?mode=memory&cache=shared", testDBSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Open(gdb, log).AutoMigrateAll(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	productRepo := repos.NewProductRepo(gdb, log)
	variableRepo := repos.NewVariableRepo(gdb, log)
	labelFileRepo := repos.NewLabelFileRepo(gdb, log)
	storage := services.NewStorageService(t.TempDir(), log)
	preview := services.NewPreviewService(log, storage, labelFileRepo)
	labelService := services.NewLabelService(gdb, log, productRepo, variableRepo, labelFileRepo, storage, preview)
	variableService := services.NewVariableService(gdb, log, productRepo, variableRepo)
	productService := services.NewProductService(gdb, log, productRepo, variableRepo, labelService)

	return server.NewRouter(server.RouterConfig{
		ProductHandler:  handlers.NewProductHandler(log, productService),
		VariableHandler: handlers.NewVariableHandler(log, variableService, labelService),
		LabelHandler:    handlers.NewLabelHandler(log, labelService, storage),
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func uploadPRN(t *testing.T, router *gin.Engine, product, stageName, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	_ = mw.WriteField("product_name", product)
	_ = mw.WriteField("stage", stageName)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthcheck(t *testing.T) {
	router := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthcheck status=%d", w.Code)
	}
}

func TestCreateProductValidation(t *testing.T) {
	router := newTestRouter(t)

	if w := doJSON(t, router, http.MethodPost, "/create-product", map[string]string{"product_name": "  "}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank product_name: status=%d", w.Code)
	}
	if w := doJSON(t, router, http.MethodPost, "/create-product", map[string]string{"product_name": "Widget"}); w.Code != http.StatusOK {
		t.Fatalf("create: status=%d body=%s", w.Code, w.Body.String())
	}
	// Idempotent re-create.
	if w := doJSON(t, router, http.MethodPost, "/create-product", map[string]string{"product_name": "Widget"}); w.Code != http.StatusOK {
		t.Fatalf("re-create: status=%d", w.Code)
	}
}

func TestInvalidStageIsClientError(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/save-fields", map[string]any{
		"product_name": "Widget",
		"stage":        "warehouse",
		"variables":    map[string]any{"A": "1"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid stage: status=%d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "invalid_stage") {
		t.Fatalf("expected invalid_stage code, body=%s", w.Body.String())
	}
}

func TestSaveFieldsAndGetProduct(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/save-fields", map[string]any{
		"product_name": "Widget",
		"stage":        "raw material",
		"variables":    map[string]any{"QTY": "5", "LOT": nil},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save-fields: status=%d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/get-product/Widget?stage=Raw", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get-product: status=%d body=%s", w.Code, w.Body.String())
	}
	var detail struct {
		Variables []struct {
			FieldName  string  `json:"field_name"`
			FieldValue *string `json:"field_value"`
		} `json:"variables"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if len(detail.Variables) != 2 {
		t.Fatalf("expected 2 variables, got %+v", detail.Variables)
	}
}

func TestAddVariableDuplicateIs409(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/create-product", map[string]string{"product_name": "Widget"})

	body := map[string]any{"product_name": "Widget", "stage": "Raw", "field_name": "QTY", "field_value": "1"}
	if w := doJSON(t, router, http.MethodPost, "/add-variable", body); w.Code != http.StatusOK {
		t.Fatalf("add-variable: status=%d body=%s", w.Code, w.Body.String())
	}
	if w := doJSON(t, router, http.MethodPost, "/add-variable", body); w.Code != http.StatusConflict {
		t.Fatalf("duplicate add-variable: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestUpdateVariableRenameConflictIs409(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/save-fields", map[string]any{
		"product_name": "Widget", "stage": "Raw",
		"variables": map[string]any{"A": "1", "B": "2"},
	})

	newName := "B"
	w := doJSON(t, router, http.MethodPut, "/update-variable", map[string]any{
		"product_name": "Widget", "stage": "Raw",
		"old_field_name": "A", "new_field_name": newName,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("rename conflict: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestDeleteVariableNotFoundIs404(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/create-product", map[string]string{"product_name": "Widget"})

	w := doJSON(t, router, http.MethodDelete, "/delete-variable", map[string]any{
		"product_name": "Widget", "stage": "Raw", "field_name": "GHOST",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete missing variable: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestUploadFlow(t *testing.T) {
	router := newTestRouter(t)

	w := uploadPRN(t, router, "Widget", "fg", "box.prn", "^FD{SKU}^FS ^FD{QTY}^FS")
	if w.Code != http.StatusOK {
		t.Fatalf("upload: status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Filename string   `json:"filename"`
		Fields   []string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if resp.Filename != "box.prn" {
		t.Fatalf("filename=%q", resp.Filename)
	}
	if len(resp.Fields) != 2 || resp.Fields[0] != "QTY" || resp.Fields[1] != "SKU" {
		t.Fatalf("fields=%v", resp.Fields)
	}

	// Listing shows the upload; fetching downloads it.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/list-prns/Widget/FG", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "box.prn") {
		t.Fatalf("list-prns: status=%d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/get-prn/Widget/FG/box.prn", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "{SKU}") {
		t.Fatalf("get-prn: status=%d", w.Code)
	}

	// No preview could be rendered, so the preview route reports 404.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/preview/Widget/FG/box.prn", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("preview: status=%d body=%s", w.Code, w.Body.String())
	}

	// Delete and verify it is gone.
	w = doJSON(t, router, http.MethodDelete, "/delete-prn", map[string]any{
		"product_name": "Widget", "stage": "FG", "prn_filename": "box.prn",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("delete-prn: status=%d body=%s", w.Code, w.Body.String())
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/get-prn/Widget/FG/box.prn", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("get-prn after delete: status=%d", w.Code)
	}
}

func TestUploadRejectsWrongExtension(t *testing.T) {
	router := newTestRouter(t)
	w := uploadPRN(t, router, "Widget", "Raw", "notes.txt", "hello")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("non-.prn upload: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestExtractFieldsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/extract-fields", map[string]string{
		"template_text": "A {X} B {Y} {X}",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("extract-fields: status=%d", w.Code)
	}
	var resp struct {
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Fields) != 2 || resp.Fields[0] != "X" || resp.Fields[1] != "Y" {
		t.Fatalf("fields=%v", resp.Fields)
	}
}

func TestSaveFieldsGenerateFilled(t *testing.T) {
	router := newTestRouter(t)

	if w := uploadPRN(t, router, "Widget", "Raw", "box.prn", "qty={QTY}"); w.Code != http.StatusOK {
		t.Fatalf("upload: status=%d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/save-fields", map[string]any{
		"product_name":        "Widget",
		"stage":               "Raw",
		"variables":           map[string]any{"QTY": "5"},
		"generate_filled":     true,
		"source_prn_filename": "box.prn",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save-fields: status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		FilledPrnFilename string `json:"filled_prn_filename"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.FilledPrnFilename, "_filled_") {
		t.Fatalf("expected a filled artifact, body=%s", w.Body.String())
	}

	// The filled artifact downloads with the substituted value.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/get-prn/Widget/Raw/"+resp.FilledPrnFilename, nil))
	if w.Code != http.StatusOK || w.Body.String() != "qty=5" {
		t.Fatalf("filled download: status=%d body=%q", w.Code, w.Body.String())
	}
}
