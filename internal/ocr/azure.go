package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/go-autorest/autorest"
)

const (
	defaultAzureModel      = "prebuilt-invoice"
	defaultAzureAPIVersion = "2023-07-31"
	defaultPollAttempts    = 30
	defaultPollInterval    = time.Second
)

// AzureConfig configures the Azure Document Intelligence analyzer
type AzureConfig struct {
	Endpoint     string
	Key          string
	Model        string // default "prebuilt-invoice"
	APIVersion   string // default "2023-07-31"
	PollAttempts int
	PollInterval time.Duration
	Enhance      bool // run image uploads through Enhance before submission
	HTTPClient   *http.Client
}

// Azure implements the Analyzer interface using the Azure Document
// Intelligence (Form Recognizer) analyze operation. Submission returns 202
// with an operation-location that is polled until the analysis succeeds or
// fails.
type Azure struct {
	cfg        AzureConfig
	authorizer *autorest.CognitiveServicesAuthorizer
	sender     autorest.Sender
	logger     *slog.Logger
}

// NewAzure creates a new Azure analyzer
func NewAzure(cfg AzureConfig, logger *slog.Logger) (*Azure, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("azure key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultAzureModel
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAzureAPIVersion
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Azure{
		cfg:        cfg,
		authorizer: autorest.NewCognitiveServicesAuthorizer(cfg.Key),
		sender:     cfg.HTTPClient,
		logger:     logger,
	}, nil
}

// Analyze submits the document and polls for the completed result
func (a *Azure) Analyze(ctx context.Context, data []byte, contentType string) (*Result, error) {
	body, mimeType, err := Prepare(data, contentType, PrepareOptions{Enhance: a.cfg.Enhance})
	if err != nil {
		return nil, err
	}

	location, err := a.submit(ctx, body, mimeType)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("analysis submitted", "model", a.cfg.Model, "operation_location", location)

	return a.poll(ctx, location)
}

func (a *Azure) submit(ctx context.Context, body []byte, mimeType string) (string, error) {
	preparer := autorest.CreatePreparer(
		autorest.AsPost(),
		autorest.WithBaseURL(a.cfg.Endpoint),
		autorest.WithPathParameters("/formrecognizer/documentModels/{modelId}:analyze", map[string]interface{}{
			"modelId": a.cfg.Model,
		}),
		autorest.WithQueryParameters(map[string]interface{}{
			"api-version": a.cfg.APIVersion,
		}),
		autorest.AsContentType(mimeType),
		autorest.WithBytes(&body),
		a.authorizer.WithAuthorization(),
	)
	req, err := preparer.Prepare((&http.Request{}).WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("preparing analyze request: %w", err)
	}

	resp, err := autorest.SendWithSender(a.sender, req)
	if err != nil {
		return "", fmt.Errorf("calling analyze API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	location := resp.Header.Get("Operation-Location")
	if location == "" {
		return "", ErrNoOperationLocation
	}
	return location, nil
}

func (a *Azure) poll(ctx context.Context, location string) (*Result, error) {
	var (
		raw    json.RawMessage
		status string
	)
	for attempt := 0; attempt < a.cfg.PollAttempts; attempt++ {
		var err error
		raw, status, err = a.fetch(ctx, location)
		if err != nil {
			return nil, err
		}
		if status == "succeeded" || status == "failed" {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.cfg.PollInterval):
		}
	}

	switch status {
	case "succeeded":
		result, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding analysis: %w", err)
		}
		return result, nil
	case "failed":
		return nil, &FailedError{Payload: raw}
	default:
		a.logger.Warn("analysis did not finish", "operation_location", location, "status", status, "attempts", a.cfg.PollAttempts)
		return nil, ErrTimeout
	}
}

func (a *Azure) fetch(ctx context.Context, location string) (json.RawMessage, string, error) {
	// operation-location already carries the api-version query
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating poll request: %w", err)
	}
	req, err = autorest.Prepare(req, a.authorizer.WithAuthorization())
	if err != nil {
		return nil, "", fmt.Errorf("preparing poll request: %w", err)
	}

	resp, err := autorest.SendWithSender(a.sender, req)
	if err != nil {
		return nil, "", fmt.Errorf("polling analysis: %w", err)
	}

	var raw json.RawMessage
	err = autorest.Respond(resp,
		autorest.WithErrorUnlessStatusCode(http.StatusOK),
		autorest.ByUnmarshallingJSON(&raw),
		autorest.ByClosing(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("reading analysis status: %w", err)
	}

	var envelope struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, "", fmt.Errorf("decoding analysis status: %w", err)
	}
	return raw, strings.ToLower(envelope.Status), nil
}

// Close is a no-op for the HTTP analyzer
func (a *Azure) Close() error {
	return nil
}
