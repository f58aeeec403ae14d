package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/printops/prnvault/internal/handlers"
)

type RouterConfig struct {
	ProductHandler  *handlers.ProductHandler
	VariableHandler *handlers.VariableHandler
	LabelHandler    *handlers.LabelHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	// Products
	router.POST("/create-product", cfg.ProductHandler.CreateProduct)
	router.GET("/list-products", cfg.ProductHandler.ListProducts)
	router.GET("/get-product/:product", cfg.ProductHandler.GetProduct)

	// Variables
	router.POST("/save-fields", cfg.VariableHandler.SaveFields)
	router.POST("/add-variable", cfg.VariableHandler.AddVariable)
	router.POST("/match-variables", cfg.VariableHandler.MatchVariables)
	router.PUT("/update-variable", cfg.VariableHandler.UpdateVariable)
	router.DELETE("/delete-variable", cfg.VariableHandler.DeleteVariable)

	// Labels
	router.POST("/upload", cfg.LabelHandler.Upload)
	router.POST("/extract-fields", cfg.LabelHandler.ExtractFields)
	router.GET("/list-prns/:product/:stage", cfg.LabelHandler.ListLabels)
	router.GET("/get-prn/:product/:stage/:filename", cfg.LabelHandler.GetLabel)
	router.GET("/preview/:product/:stage/:filename", cfg.LabelHandler.Preview)
	router.DELETE("/delete-prn", cfg.LabelHandler.DeleteLabel)

	return router
}
