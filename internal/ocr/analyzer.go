package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Analyzer submits a document to an OCR engine and returns the completed
// analysis.
type Analyzer interface {
	// Analyze runs the engine over a PDF or image and blocks until the
	// analysis reaches a terminal state
	Analyze(ctx context.Context, data []byte, contentType string) (*Result, error)
	// Close releases engine resources
	Close() error
}

var (
	// ErrTimeout is returned when the engine does not finish within the
	// configured number of polls.
	ErrTimeout = errors.New("processing timeout")

	// ErrNoOperationLocation is returned when the engine accepts a document
	// but does not say where to poll for the result.
	ErrNoOperationLocation = errors.New("no operation location in response")

	// ErrAnalysisFailed is returned when the engine reports a failed analysis.
	ErrAnalysisFailed = errors.New("document processing failed")

	// ErrUnsupportedFormat is returned when an engine cannot read the upload.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// StatusError is returned when the engine rejects a submission.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Azure API error: %d", e.StatusCode)
}

// FailedError carries the engine payload of a failed analysis.
type FailedError struct {
	Payload json.RawMessage
}

func (e *FailedError) Error() string {
	return ErrAnalysisFailed.Error()
}

func (e *FailedError) Unwrap() error {
	return ErrAnalysisFailed
}
