// Package document stores uploaded checks and invoices together with the
// record extracted from them, and serves them over HTTP.
package document

import (
	"time"

	"github.com/zombor/docscan/internal/classify"
	"github.com/zombor/docscan/internal/pipeline"
)

// Document is one processed upload
type Document struct {
	ID          string                `json:"id"`
	Filename    string                `json:"filename"`
	ContentType string                `json:"content_type"`
	Type        classify.DocumentType `json:"type,omitempty"` // empty when extraction failed
	Result      *pipeline.Result      `json:"result"`
	CreatedAt   time.Time             `json:"created_at"`
}
