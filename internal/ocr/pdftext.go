package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText implements the Analyzer interface by reading the embedded text layer
// of digital PDFs. No OCR is performed, so scanned PDFs and images are
// rejected.
type PDFText struct{}

// NewPDFText creates a new text-layer analyzer
func NewPDFText() *PDFText {
	return &PDFText{}
}

// Analyze returns one page per PDF page with its non-blank text lines
func (p *PDFText) Analyze(ctx context.Context, data []byte, contentType string) (*Result, error) {
	if normalizeMimeType(contentType) != "application/pdf" {
		return nil, fmt.Errorf("%w: text layer analysis needs a PDF, got %q", ErrUnsupportedFormat, contentType)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}

	analysis := &AnalyzeResult{ModelID: "pdf-text"}
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", i, err)
		}
		analysis.Pages = append(analysis.Pages, Page{PageNumber: i, Lines: splitLines(text)})
	}

	return &Result{Status: "succeeded", AnalyzeResult: analysis}, nil
}

func splitLines(text string) []Line {
	var lines []Line
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lines = append(lines, Line{Content: l})
	}
	return lines
}

// Close is a no-op
func (p *PDFText) Close() error {
	return nil
}
