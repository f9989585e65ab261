package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/docscan/internal/classify"
	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/embedding"
	"github.com/zombor/docscan/internal/ocr"
	"github.com/zombor/docscan/internal/pipeline"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	port         *int
	dbPath       *string
	storagePath  *string
	logLevel     *string
	engine       *string
	azureURL     *string
	azureKey     *string
	azureModel   *string
	azureVersion *string
	pollAttempts *int
	pollInterval *time.Duration
	enhance      *bool
	embedder     *string
	geminiKey    *string
	geminiModel  *string
	ollamaURL    *string
	ollamaModel  *string
	references   *string
	cachePath    *string
	authUser     *string
	authPass     *string
	gops         *bool
	showVersion  *bool
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// a missing .env is fine
	_ = godotenv.Load()

	fs := ff.NewFlagSet("docscan")
	cfg := config{
		port:         fs.IntLong("port", 8000, "HTTP server port"),
		dbPath:       fs.StringLong("db", "docscan.db", "Database file path"),
		storagePath:  fs.StringLong("storage", "./uploads", "Upload storage directory"),
		logLevel:     fs.StringLong("log-level", "info", "Log level: debug, info, warn or error"),
		engine:       fs.StringLong("engine", "azure", "OCR engine: 'azure', 'computervision' or 'pdftext'"),
		azureURL:     fs.StringLong("azure-endpoint", "", "Azure endpoint (or set AZURE_ENDPOINT env var)"),
		azureKey:     fs.StringLong("azure-key", "", "Azure key (or set AZURE_KEY env var)"),
		azureModel:   fs.StringLong("azure-model", "prebuilt-invoice", "Document Intelligence model ID"),
		azureVersion: fs.StringLong("azure-api-version", "2023-07-31", "Document Intelligence API version"),
		pollAttempts: fs.IntLong("poll-attempts", 30, "Maximum status polls per document"),
		pollInterval: fs.DurationLong("poll-interval", time.Second, "Delay between status polls"),
		enhance:      fs.BoolLong("enhance", "Enhance images (grayscale, contrast, sharpen) before OCR"),
		embedder:     fs.StringLong("embedder", "ollama", "Embedder: 'gemini', 'ollama' or 'hashing'"),
		geminiKey:    fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:  fs.StringLong("gemini-model", "text-embedding-004", "Gemini embedding model"),
		ollamaURL:    fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:  fs.StringLong("ollama-model", "all-minilm", "Ollama embedding model"),
		references:   fs.StringLong("references", "", "YAML file of reference phrases (defaults to the built-in set)"),
		cachePath:    fs.StringLong("embedding-cache", "", "BoltDB file caching embeddings (optional)"),
		authUser:     fs.StringLong("auth-user", "", "Basic auth username (optional)"),
		authPass:     fs.StringLong("auth-pass", "", "Basic auth password (optional)"),
		gops:         fs.BoolLong("gops", "Start the gops diagnostics agent"),
		showVersion:  fs.BoolLong("version", "Show version information"),
	}

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("DOCSCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *cfg.showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*cfg.logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *cfg.logLevel)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *cfg.gops {
		if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
			slog.Warn("Failed to start gops agent", "error", err)
		}
	}

	ctx := context.Background()

	slog.Info("Initializing database...", "path", *cfg.dbPath)
	db, err := document.NewBoltDB(*cfg.dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Initializing storage...", "path", *cfg.storagePath)
	store, err := document.NewLocalStorage(*cfg.storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	analyzer, err := newAnalyzer(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize OCR engine", "engine", *cfg.engine, "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	embedder, closeEmbedder, err := newEmbedder(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize embedder", "embedder", *cfg.embedder, "error", err)
		os.Exit(1)
	}
	defer closeEmbedder()

	refs := classify.DefaultReferences()
	if *cfg.references != "" {
		refs, err = classify.LoadReferences(*cfg.references)
		if err != nil {
			slog.Error("Failed to load reference phrases", "path", *cfg.references, "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Embedding reference phrases...", "check", len(refs.Check), "invoice", len(refs.Invoice))
	classifier, err := classify.New(ctx, embedder, refs)
	if err != nil {
		slog.Error("Failed to initialize classifier", "error", err)
		os.Exit(1)
	}

	service := document.NewService(db, store, analyzer, pipeline.New(classifier, logger), logger)
	server := document.NewServer(service, document.BasicAuth{
		Username: *cfg.authUser,
		Password: *cfg.authPass,
	}, logger)

	addr := fmt.Sprintf(":%d", *cfg.port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "engine", *cfg.engine, "embedder", *cfg.embedder)
	if *cfg.authUser != "" || *cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", *cfg.authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

func newAnalyzer(cfg config, logger *slog.Logger) (ocr.Analyzer, error) {
	endpoint := envFallback(*cfg.azureURL, "AZURE_ENDPOINT")
	key := envFallback(*cfg.azureKey, "AZURE_KEY")

	switch *cfg.engine {
	case "azure":
		slog.Info("Initializing Azure Document Intelligence...", "model", *cfg.azureModel)
		return ocr.NewAzure(ocr.AzureConfig{
			Endpoint:     endpoint,
			Key:          key,
			Model:        *cfg.azureModel,
			APIVersion:   *cfg.azureVersion,
			PollAttempts: *cfg.pollAttempts,
			PollInterval: *cfg.pollInterval,
			Enhance:      *cfg.enhance,
		}, logger)
	case "computervision":
		slog.Info("Initializing Azure Computer Vision...")
		return ocr.NewComputerVision(endpoint, key, *cfg.enhance, logger)
	case "pdftext":
		slog.Info("Initializing PDF text reader...")
		return ocr.NewPDFText(), nil
	default:
		return nil, fmt.Errorf("invalid engine %q, valid: azure, computervision or pdftext", *cfg.engine)
	}
}

// newEmbedder returns the configured embedder, wrapped in the embedding cache
// when one is set, and a func releasing both
func newEmbedder(ctx context.Context, cfg config, logger *slog.Logger) (embedding.Embedder, func(), error) {
	var (
		embedder embedding.Embedder
		model    string
		closers  []func() error
	)

	switch *cfg.embedder {
	case "gemini":
		apiKey := envFallback(*cfg.geminiKey, "GEMINI_API_KEY")
		if apiKey == "" {
			return nil, nil, fmt.Errorf("gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini embedder...", "model", *cfg.geminiModel)
		g, err := embedding.NewGemini(ctx, apiKey, *cfg.geminiModel)
		if err != nil {
			return nil, nil, err
		}
		embedder, model = g, "gemini/"+*cfg.geminiModel
		closers = append(closers, g.Close)
	case "ollama":
		slog.Info("Initializing Ollama embedder...", "url", *cfg.ollamaURL, "model", *cfg.ollamaModel)
		o, err := embedding.NewOllama(*cfg.ollamaURL, *cfg.ollamaModel)
		if err != nil {
			return nil, nil, err
		}
		embedder, model = o, "ollama/"+*cfg.ollamaModel
		closers = append(closers, o.Close)
	case "hashing":
		slog.Info("Initializing hashing embedder...")
		embedder, model = embedding.NewHashing(0), "hashing"
	default:
		return nil, nil, fmt.Errorf("invalid embedder %q, valid: gemini, ollama or hashing", *cfg.embedder)
	}

	if *cfg.cachePath != "" {
		cache, err := embedding.OpenCache(*cfg.cachePath, model, embedder, logger)
		if err != nil {
			return nil, nil, err
		}
		embedder = cache
		closers = append(closers, cache.Close)
	}

	return embedder, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Warn("Failed to close embedder", "error", err)
			}
		}
	}, nil
}

func envFallback(value, envVar string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envVar)
}
