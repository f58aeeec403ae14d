package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/types"
	"github.com/printops/prnvault/internal/utils"
)

type SqliteService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSqliteService(log *logger.Logger) (*SqliteService, error) {
	serviceLog := log.With("service", "SqliteService")

	path := utils.GetEnv("SQLITE_PATH", "data.db", log)
	dsn := fmt.Sprintf("%s?_foreign_keys=on", path)

	log.Info("Opening sqlite database...", "path", path)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Error("Failed to open sqlite database", "error", err)
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	return &SqliteService{db: gdb, log: serviceLog}, nil
}

// Open builds a service around an existing gorm handle. Used by tests that
// run against an in-memory database.
func Open(gdb *gorm.DB, log *logger.Logger) *SqliteService {
	return &SqliteService{db: gdb, log: log.With("service", "SqliteService")}
}

func (s *SqliteService) AutoMigrateAll() error {
	s.log.Info("Auto migrating sqlite tables...")
	err := s.db.AutoMigrate(
		&types.Product{},
		&types.Variable{},
		&types.LabelFile{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for sqlite tables", "error", err)
		return err
	}
	return nil
}

func (s *SqliteService) DB() *gorm.DB {
	return s.db
}
