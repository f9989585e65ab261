// Package classify decides whether an OCR result is a check or an invoice by
// comparing its text against two sets of reference phrases in embedding space.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/zombor/docscan/internal/embedding"
	"github.com/zombor/docscan/internal/ocr"
)

// maxLines bounds how much of a document is embedded
const maxLines = 100

// DocumentType is the outcome of classification
type DocumentType string

const (
	Check   DocumentType = "check"
	Invoice DocumentType = "invoice"
)

// Scores are the mean cosine similarities of a text against each reference set
type Scores struct {
	Check   float64
	Invoice float64
}

// Type returns Check only when the check score is strictly higher.
func (s Scores) Type() DocumentType {
	if s.Check > s.Invoice {
		return Check
	}
	return Invoice
}

// Classifier is immutable after New and safe for concurrent use
type Classifier struct {
	embedder embedding.Embedder
	check    [][]float32
	invoice  [][]float32
}

// New embeds both reference sets once and returns a ready Classifier
func New(ctx context.Context, embedder embedding.Embedder, refs ReferenceSet) (*Classifier, error) {
	if err := refs.Validate(); err != nil {
		return nil, err
	}

	phrases := make([]string, 0, len(refs.Check)+len(refs.Invoice))
	phrases = append(phrases, refs.Check...)
	phrases = append(phrases, refs.Invoice...)

	vectors, err := embedder.EmbedDocuments(ctx, phrases)
	if err != nil {
		return nil, fmt.Errorf("embedding reference phrases: %w", err)
	}
	if len(vectors) != len(phrases) {
		return nil, fmt.Errorf("embedding reference phrases: got %d vectors for %d phrases", len(vectors), len(phrases))
	}

	return &Classifier{
		embedder: embedder,
		check:    vectors[:len(refs.Check):len(refs.Check)],
		invoice:  vectors[len(refs.Check):],
	}, nil
}

// Classify returns the document type of an OCR result
func (c *Classifier) Classify(ctx context.Context, result *ocr.Result) (DocumentType, Scores, error) {
	scores, err := c.Score(ctx, Text(result))
	if err != nil {
		return "", Scores{}, err
	}
	return scores.Type(), scores, nil
}

// Score compares text against both reference sets. Empty text is not
// embedded and scores a tie.
func (c *Classifier) Score(ctx context.Context, text string) (Scores, error) {
	if text == "" {
		return Scores{}, nil
	}

	vectors, err := c.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return Scores{}, fmt.Errorf("embedding document: %w", err)
	}
	if len(vectors) != 1 {
		return Scores{}, fmt.Errorf("embedding document: got %d vectors", len(vectors))
	}

	return Scores{
		Check:   embedding.MeanCosine(vectors[0], c.check),
		Invoice: embedding.MeanCosine(vectors[0], c.invoice),
	}, nil
}

// Text joins the first 100 lines of a result with single spaces
func Text(result *ocr.Result) string {
	lines := result.Lines()
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return strings.Join(lines, " ")
}
