package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/docscan/internal/ocr"
	"github.com/zombor/docscan/internal/pipeline"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// Processor turns a completed OCR result into a record
type Processor interface {
	Process(ctx context.Context, result *ocr.Result) *pipeline.Result
}

// IDGenerator generates document IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Service runs uploads through the OCR engine and the extraction pipeline and
// keeps the results
type Service struct {
	db        DB
	storage   Storage
	analyzer  ocr.Analyzer
	processor Processor
	ids       IDGenerator
	clock     TimeSource
	logger    *slog.Logger
}

// NewService creates a new Service with UUID IDs and the system clock
func NewService(db DB, storage Storage, analyzer ocr.Analyzer, processor Processor, logger *slog.Logger) *Service {
	return NewServiceWithDeps(db, storage, analyzer, processor, uuidGenerator{}, systemClock{}, logger)
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, analyzer ocr.Analyzer, processor Processor, ids IDGenerator, clock TimeSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:        db,
		storage:   storage,
		analyzer:  analyzer,
		processor: processor,
		ids:       ids,
		clock:     clock,
		logger:    logger,
	}
}

// sanitizeFilename strips special characters and shortens long phone-generated
// names
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	base := strings.TrimSuffix(filepath.Base(filename), ext)

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "document"
	}
	return base + ext
}

// ProcessDocument stores an upload, analyzes it and extracts its record.
// Engine and extraction failures are recorded in the document's result; the
// returned error is only set when the document could not be stored.
func (s *Service) ProcessDocument(ctx context.Context, filename string, data []byte, contentType string) (*Document, error) {
	id := s.ids.Generate()
	now := s.clock.Now()

	key, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	start := time.Now()
	var result *pipeline.Result
	analysis, err := s.analyzer.Analyze(ctx, data, contentType)
	if err != nil {
		s.logger.Error("Failed to analyze document",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		result = engineFailure(err)
	} else {
		result = s.processor.Process(ctx, analysis)
	}

	doc := &Document{
		ID:          id,
		Filename:    key,
		ContentType: contentType,
		Type:        result.Type(),
		Result:      result,
		CreatedAt:   now,
	}
	if err := s.db.SaveDocument(doc); err != nil {
		if delErr := s.storage.Delete(key); delErr != nil {
			s.logger.Warn("Failed to delete upload", "filename", key, "error", delErr)
		}
		return nil, fmt.Errorf("saving document: %w", err)
	}

	s.logger.Info("Document processed",
		"id", id,
		"type", doc.Type,
		"failed", result.Failed(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

// engineFailure turns an analyzer error into the error record shown to clients
func engineFailure(err error) *pipeline.Result {
	var (
		statusErr *ocr.StatusError
		failedErr *ocr.FailedError
	)
	switch {
	case errors.As(err, &statusErr):
		return pipeline.Failure(statusErr.Error(), statusErr.Body)
	case errors.As(err, &failedErr):
		return pipeline.Failure("Document processing failed", failedErr.Payload)
	case errors.Is(err, ocr.ErrNoOperationLocation):
		return pipeline.Failure("No operation location in response", nil)
	case errors.Is(err, ocr.ErrTimeout):
		return pipeline.Failure("Processing timeout", nil)
	default:
		return pipeline.Failure(fmt.Sprintf("extraction failed: %v", err), nil)
	}
}

// GetDocument returns a document by ID
func (s *Service) GetDocument(id string) (*Document, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first
func (s *Service) ListDocuments() ([]*Document, error) {
	docs, err := s.db.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document and its upload
func (s *Service) DeleteDocument(id string) error {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return fmt.Errorf("getting document for deletion: %w", err)
	}

	if err := s.storage.Delete(doc.Filename); err != nil {
		s.logger.Warn("Failed to delete upload", "filename", doc.Filename, "error", err)
	}

	if err := s.db.DeleteDocument(id); err != nil {
		return fmt.Errorf("deleting document from database: %w", err)
	}
	return nil
}

// GetDocumentFile returns the original upload of a document and its content
// type
func (s *Service) GetDocumentFile(id string) ([]byte, string, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting document: %w", err)
	}

	data, err := s.storage.Get(doc.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting document file: %w", err)
	}
	return data, doc.ContentType, nil
}
