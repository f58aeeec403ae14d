package main

import (
	"fmt"
	"os"

	"github.com/printops/prnvault/internal/db"
	"github.com/printops/prnvault/internal/handlers"
	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/repos"
	"github.com/printops/prnvault/internal/server"
	"github.com/printops/prnvault/internal/services"
	"github.com/printops/prnvault/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Sqlite
	sqliteService, err := db.NewSqliteService(log)
	if err != nil {
		log.Fatal("Sqlite init failed", "error", err)
	}
	if err = sqliteService.AutoMigrateAll(); err != nil {
		log.Fatal("Sqlite auto migration failed", "error", err)
	}
	theDB := sqliteService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	productRepo := repos.NewProductRepo(theDB, log)
	variableRepo := repos.NewVariableRepo(theDB, log)
	labelFileRepo := repos.NewLabelFileRepo(theDB, log)

	// Services
	log.Info("Setting up services from main...")
	uploadRoot := utils.GetEnv("UPLOAD_ROOT", "uploads", log)
	storageService := services.NewStorageService(uploadRoot, log)
	previewService := services.NewPreviewService(log, storageService, labelFileRepo)
	labelService := services.NewLabelService(theDB, log, productRepo, variableRepo, labelFileRepo, storageService, previewService)
	variableService := services.NewVariableService(theDB, log, productRepo, variableRepo)
	productService := services.NewProductService(theDB, log, productRepo, variableRepo, labelService)

	// Handlers
	log.Info("Setting up handlers from main...")
	productHandler := handlers.NewProductHandler(log, productService)
	variableHandler := handlers.NewVariableHandler(log, variableService, labelService)
	labelHandler := handlers.NewLabelHandler(log, labelService, storageService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ProductHandler:  productHandler,
		VariableHandler: variableHandler,
		LabelHandler:    labelHandler,
	})

	port := utils.GetEnv("PORT", "5001", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server stopped", "error", err)
	}
}
