package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// ComputerVision implements the Analyzer interface with the Azure Computer
// Vision printed-text OCR. It only reports lines, so documents it analyzes
// carry no key-value pairs and no structured field sets.
type ComputerVision struct {
	client  computervision.BaseClient
	enhance bool
	logger  *slog.Logger
}

// NewComputerVision creates a new Computer Vision analyzer
func NewComputerVision(endpoint, key string, enhance bool, logger *slog.Logger) (*ComputerVision, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("computer vision endpoint is required")
	}
	if key == "" {
		return nil, fmt.Errorf("computer vision key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(key)

	return &ComputerVision{client: client, enhance: enhance, logger: logger}, nil
}

// Analyze recognizes printed text and returns it as a single page of lines
func (c *ComputerVision) Analyze(ctx context.Context, data []byte, contentType string) (*Result, error) {
	imageData, _, err := Prepare(data, contentType, PrepareOptions{RasterizePDF: true, Enhance: c.enhance})
	if err != nil {
		return nil, err
	}

	ocrResult, err := c.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(imageData)),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		if ocrResult.Response.Response != nil {
			return nil, &StatusError{StatusCode: ocrResult.StatusCode, Body: err.Error()}
		}
		return nil, fmt.Errorf("recognizing printed text: %w", err)
	}

	lines := linesFromOCR(ocrResult)
	c.logger.Debug("printed text recognized", "lines", len(lines))

	return &Result{
		Status: "succeeded",
		AnalyzeResult: &AnalyzeResult{
			ModelID: "computervision-ocr",
			Pages:   []Page{{PageNumber: 1, Lines: lines}},
		},
	}, nil
}

// linesFromOCR joins the words of every region line in reading order
func linesFromOCR(result computervision.OcrResult) []Line {
	var lines []Line
	if result.Regions == nil {
		return lines
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			lines = append(lines, Line{Content: strings.Join(words, " ")})
		}
	}
	return lines
}

// Close is a no-op for the HTTP analyzer
func (c *ComputerVision) Close() error {
	return nil
}
