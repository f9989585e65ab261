package ocr

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when an analysis payload is missing the containers
// extraction depends on.
var ErrMalformed = errors.New("malformed OCR result")

// Result is a completed document analysis as reported by the engine
type Result struct {
	Status        string         `json:"status,omitempty"`
	AnalyzeResult *AnalyzeResult `json:"analyzeResult"`
}

// AnalyzeResult holds the recognized content of every page
type AnalyzeResult struct {
	ModelID       string         `json:"modelId,omitempty"`
	Pages         []Page         `json:"pages,omitempty"`
	KeyValuePairs []KeyValuePair `json:"keyValuePairs,omitempty"`
	Documents     []Document     `json:"documents,omitempty"`
}

// Page is a single page of recognized lines in reading order
type Page struct {
	PageNumber int    `json:"pageNumber,omitempty"`
	Lines      []Line `json:"lines,omitempty"`
}

// Line is one recognized line of text
type Line struct {
	Content string `json:"content"`
}

// KeyValuePair is a label/value association inferred from the page layout
type KeyValuePair struct {
	Key   *Element `json:"key,omitempty"`
	Value *Element `json:"value,omitempty"`
}

// Element is a span of recognized text
type Element struct {
	Content string `json:"content"`
}

// Document is the engine's typed extraction for a recognized layout
type Document struct {
	DocType    string           `json:"docType,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	Fields     map[string]Field `json:"fields,omitempty"`
}

// Field is a value cell of a structured field set. Repeated rows are carried
// in ValueArray, each holding a nested field set in ValueObject.
type Field struct {
	Type        string           `json:"type,omitempty"`
	Content     *string          `json:"content,omitempty"`
	Confidence  float64          `json:"confidence,omitempty"`
	ValueArray  []Field          `json:"valueArray,omitempty"`
	ValueObject map[string]Field `json:"valueObject,omitempty"`
}

// Lines returns the content of every line across all pages, in page order.
func (r *Result) Lines() []string {
	if r == nil || r.AnalyzeResult == nil {
		return nil
	}
	var lines []string
	for _, page := range r.AnalyzeResult.Pages {
		for _, line := range page.Lines {
			lines = append(lines, line.Content)
		}
	}
	return lines
}

// Analysis returns the analyze result or ErrMalformed when it is missing.
func (r *Result) Analysis() (*AnalyzeResult, error) {
	if r == nil || r.AnalyzeResult == nil {
		return nil, fmt.Errorf("%w: missing analyzeResult", ErrMalformed)
	}
	return r.AnalyzeResult, nil
}

// Content returns the content of a field in a field set, or nil when the
// field or its content is absent.
func Content(fields map[string]Field, name string) *string {
	f, ok := fields[name]
	if !ok || f.Content == nil {
		return nil
	}
	v := *f.Content
	return &v
}

// Decode parses a raw analysis payload after checking its top-level shape.
func Decode(data []byte) (*Result, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validateShape(doc); err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &result, nil
}
