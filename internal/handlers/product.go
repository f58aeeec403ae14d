package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/services"
)

var (
	errInvalidStage    = errors.New("stage required and must be one of: Raw, SFG, FG")
	errProductRequired = errors.New("product_name required and cannot be empty")
)

type ProductHandler struct {
	log            *logger.Logger
	productService services.ProductService
}

func NewProductHandler(log *logger.Logger, psvc services.ProductService) *ProductHandler {
	return &ProductHandler{
		log:            log.With("handler", "ProductHandler"),
		productService: psvc,
	}
}

type createProductRequest struct {
	ProductName string `json:"product_name"`
}

// POST /create-product
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "invalid_body", errProductRequired)
		return
	}
	name := strings.TrimSpace(req.ProductName)
	if name == "" {
		RespondError(c, 400, "invalid_body", errProductRequired)
		return
	}

	product, err := h.productService.EnsureProduct(c.Request.Context(), name)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"message":      "product created or exists",
		"product_name": product.Name,
		"product_id":   product.ID,
	})
}

// GET /list-products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.productService.ListProducts(c.Request.Context())
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, products)
}

// GET /get-product/:product?stage=...
func (h *ProductHandler) GetProduct(c *gin.Context) {
	st, ok := requireStage(c, "")
	if !ok {
		return
	}
	name := c.Param("product")

	detail, err := h.productService.GetProductDetail(c.Request.Context(), name, st)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, detail)
}
