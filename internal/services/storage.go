package services

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/printops/prnvault/internal/logger"
	"github.com/printops/prnvault/internal/stage"
)

// StorageService owns the on-disk layout of templates, filled variants and
// previews: <root>/<product>/<stage>/<filename>.
type StorageService interface {
	PathFor(productName string, st stage.Stage, filename string) (string, error)
	Save(productName string, st stage.Stage, filename string, content []byte) (string, error)
	Read(path string) ([]byte, error)
	Remove(path string) error
	ExistsOnDisk(path string) bool
}

type storageService struct {
	log  *logger.Logger
	root string
}

func NewStorageService(root string, baseLog *logger.Logger) StorageService {
	serviceLog := baseLog.With("service", "StorageService")
	return &storageService{log: serviceLog, root: root}
}

var unsafeRunes = regexp.MustCompile(`[^A-Za-z0-9_.\- ]`)

// SanitizeFilename reduces a client-supplied filename to a single safe path
// component. Path separators and traversal sequences cannot survive it.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "/" || name == "." || name == ".." {
		return ""
	}
	name = unsafeRunes.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}

// SplitExt splits a filename into base and extension (extension includes the
// dot, possibly empty).
func SplitExt(filename string) (string, string) {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext), ext
}

func (s *storageService) productDir(productName string, st stage.Stage) (string, error) {
	safeProduct := SanitizeFilename(productName)
	if safeProduct == "" {
		return "", fmt.Errorf("product name %q reduces to an empty folder name", productName)
	}
	return filepath.Join(s.root, safeProduct, string(st)), nil
}

func (s *storageService) PathFor(productName string, st stage.Stage, filename string) (string, error) {
	dir, err := s.productDir(productName, st)
	if err != nil {
		return "", err
	}
	safe := SanitizeFilename(filename)
	if safe == "" {
		return "", fmt.Errorf("filename %q reduces to an empty name", filename)
	}
	return filepath.Join(dir, safe), nil
}

func (s *storageService) Save(productName string, st stage.Stage, filename string, content []byte) (string, error) {
	path, err := s.PathFor(productName, st, filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create upload folder: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func (s *storageService) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (s *storageService) Remove(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *storageService) ExistsOnDisk(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
