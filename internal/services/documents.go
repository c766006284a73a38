package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"study-buddy/internal/models"
)

// ErrUnsupportedDocument is returned for uploads that are not PDF files.
var ErrUnsupportedDocument = errors.New("only .pdf documents are supported")

// DocumentService stages uploaded documents on disk for the lifetime of one
// summarization request.
type DocumentService struct {
	uploadDir string
	create    func(path string) (io.WriteCloser, error)
}

func NewDocumentService(uploadDir string) *DocumentService {
	return &DocumentService{
		uploadDir: uploadDir,
		create: func(path string) (io.WriteCloser, error) {
			return os.Create(path)
		},
	}
}

// Stage copies src into the upload directory under a random name.
func (s *DocumentService) Stage(original string, src io.Reader) (*models.Upload, error) {
	if !strings.EqualFold(filepath.Ext(original), ".pdf") {
		return nil, ErrUnsupportedDocument
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure upload dir: %w", err)
	}

	id := uuid.NewString()
	storedPath := filepath.Join(s.uploadDir, id+".pdf")
	out, err := s.create(storedPath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	size, err := io.Copy(out, src)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(storedPath)
		return nil, fmt.Errorf("write file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(storedPath)
		return nil, fmt.Errorf("close file: %w", err)
	}

	return &models.Upload{
		ID:           id,
		OriginalName: filepath.Base(original),
		StoredPath:   storedPath,
		Size:         size,
		UploadedAt:   time.Now().UTC(),
	}, nil
}

// Discard removes a staged upload. Missing files are not an error.
func (s *DocumentService) Discard(upload *models.Upload) error {
	if upload == nil {
		return nil
	}
	if err := os.Remove(upload.StoredPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload %s: %w", upload.ID, err)
	}
	return nil
}
