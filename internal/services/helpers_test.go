package services

import (
	"fmt"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/repos"
	"github.com/printops/prnvault/internal/types"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

var testDBSeq atomic.Int64

// testDB opens a private shared-cache memory database. The shared cache keeps
// gorm's pooled connections on the same database; the unique name keeps tests
// isolated from each other.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&types.Product{}, &types.Variable{}, &types.LabelFile{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

type fixture struct {
	db            *gorm.DB
	productRepo   repos.ProductRepo
	variableRepo  repos.VariableRepo
	labelFileRepo repos.LabelFileRepo
	storage       StorageService
	variables     VariableService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := testLogger()
	gdb := testDB(t)
	productRepo := repos.NewProductRepo(gdb, log)
	variableRepo := repos.NewVariableRepo(gdb, log)
	labelFileRepo := repos.NewLabelFileRepo(gdb, log)
	return &fixture{
		db:            gdb,
		productRepo:   productRepo,
		variableRepo:  variableRepo,
		labelFileRepo: labelFileRepo,
		storage:       NewStorageService(t.TempDir(), log),
		variables:     NewVariableService(gdb, log, productRepo, variableRepo),
	}
}

// labelFixture wires a LabelService around the base fixture with the given
// preview collaborator.
func (f *fixture) labels(t *testing.T, preview PreviewService) LabelService {
	t.Helper()
	return NewLabelService(f.db, testLogger(), f.productRepo, f.variableRepo, f.labelFileRepo, f.storage, preview)
}

func strptr(s string) *string { return &s }
