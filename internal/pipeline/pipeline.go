// Package pipeline turns one OCR result into exactly one record: a check, an
// invoice, or an error.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/zombor/docscan/internal/classify"
	"github.com/zombor/docscan/internal/extract"
	"github.com/zombor/docscan/internal/ocr"
)

// Classifier decides the document type of an OCR result
type Classifier interface {
	Classify(ctx context.Context, result *ocr.Result) (classify.DocumentType, classify.Scores, error)
}

// ErrorRecord is the outcome when a record could not be produced
type ErrorRecord struct {
	Error     string `json:"error"`
	Details   any    `json:"details,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

// Result holds exactly one of Check, Invoice or Error
type Result struct {
	Check   *extract.CheckRecord
	Invoice *extract.InvoiceRecord
	Error   *ErrorRecord
}

// Failed reports whether the result is an error record
func (r *Result) Failed() bool {
	return r.Error != nil
}

// Type returns the document type of a successful result, or "" for errors
func (r *Result) Type() classify.DocumentType {
	switch {
	case r.Check != nil:
		return classify.Check
	case r.Invoice != nil:
		return classify.Invoice
	default:
		return ""
	}
}

// MarshalJSON encodes the populated record as a flat object
func (r *Result) MarshalJSON() ([]byte, error) {
	switch {
	case r.Check != nil:
		return json.Marshal(r.Check)
	case r.Invoice != nil:
		return json.Marshal(r.Invoice)
	case r.Error != nil:
		return json.Marshal(r.Error)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON restores a stored result using its "DocumentType" or "error"
// key.
func (r *Result) UnmarshalJSON(data []byte) error {
	var probe struct {
		DocumentType string  `json:"DocumentType"`
		Error        *string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	*r = Result{}
	switch {
	case probe.Error != nil:
		r.Error = &ErrorRecord{}
		return json.Unmarshal(data, r.Error)
	case probe.DocumentType == string(classify.Check):
		r.Check = &extract.CheckRecord{}
		return json.Unmarshal(data, r.Check)
	case probe.DocumentType == string(classify.Invoice):
		r.Invoice = &extract.InvoiceRecord{}
		return json.Unmarshal(data, r.Invoice)
	default:
		return fmt.Errorf("unknown record type %q", probe.DocumentType)
	}
}

// Failure builds an error result
func Failure(message string, details any) *Result {
	return &Result{Error: &ErrorRecord{Error: message, Details: details}}
}

// Pipeline classifies and extracts OCR results. It holds no per-document
// state and is safe for concurrent use.
type Pipeline struct {
	classifier Classifier
	logger     *slog.Logger
}

// New creates a new pipeline
func New(classifier Classifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{classifier: classifier, logger: logger}
}

// Process classifies the result and extracts the matching record. It never
// returns an error and never panics: every failure becomes an ErrorRecord.
func (p *Pipeline) Process(ctx context.Context, result *ocr.Result) (out *Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("extraction panicked", "panic", r)
			out = &Result{Error: &ErrorRecord{
				Error:     fmt.Sprintf("extraction failed: %v", r),
				Traceback: string(debug.Stack()),
			}}
		}
	}()

	docType, scores, err := p.classifier.Classify(ctx, result)
	if err != nil {
		p.logger.Error("classification failed", "error", err)
		return failure(err)
	}

	switch docType {
	case classify.Check:
		rec, err := extract.Check(result)
		if err != nil {
			p.log(docType, scores, err)
			return failure(err)
		}
		out = &Result{Check: rec}
	default:
		rec, err := extract.Invoice(result)
		if err != nil {
			p.log(docType, scores, err)
			return failure(err)
		}
		out = &Result{Invoice: rec}
	}

	p.log(docType, scores, nil)
	return out
}

func (p *Pipeline) log(docType classify.DocumentType, scores classify.Scores, err error) {
	attrs := []any{
		"type", docType,
		"check_score", scores.Check,
		"invoice_score", scores.Invoice,
	}
	if err != nil {
		p.logger.Warn("extraction failed", append(attrs, "error", err)...)
		return
	}
	p.logger.Info("document extracted", attrs...)
}

func failure(err error) *Result {
	switch {
	case errors.Is(err, extract.ErrNoInvoiceData), errors.Is(err, ocr.ErrMalformed):
		return Failure(err.Error(), nil)
	default:
		return Failure(fmt.Sprintf("extraction failed: %v", err), nil)
	}
}
