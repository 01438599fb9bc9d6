package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/receipt-tracker/internal/receipt"
	"github.com/zombor/receipt-tracker/internal/scanning"
)

// config holds the flags shared by every subcommand.
type config struct {
	dbPath        *string
	storagePath   *string
	storageBucket *string
	s3Bucket      *string
	s3Region      *string
	s3Endpoint    *string
	s3AccessKey   *string
	s3SecretKey   *string
	s3PathStyle   *bool
	ocr           *string
	structurer    *string
	geminiKey     *string
	geminiModel   *string
	ollamaURL     *string
	ollamaModel   *string
	logLevel      *string
	logFormat     *string
}

func (c *config) register(fs *ff.FlagSet) {
	c.dbPath = fs.StringLong("db", "receipt-tracker.db", "Database file path")
	c.storagePath = fs.StringLong("storage", "./receipts", "Storage directory path")
	c.storageBucket = fs.StringLong("storage-bucket", "", "Google Cloud Storage bucket for receipt files (instead of --storage)")
	c.s3Bucket = fs.StringLong("s3-bucket", "", "S3 bucket for receipt files (instead of --storage)")
	c.s3Region = fs.StringLong("s3-region", "us-east-1", "S3 region")
	c.s3Endpoint = fs.StringLong("s3-endpoint", "", "S3-compatible endpoint URL, e.g. a MinIO server")
	c.s3AccessKey = fs.StringLong("s3-access-key", "", "S3 access key (default credential chain when empty)")
	c.s3SecretKey = fs.StringLong("s3-secret-key", "", "S3 secret key")
	c.s3PathStyle = fs.BoolLong("s3-path-style", "Use path-style S3 addressing")
	c.ocr = fs.StringLong("ocr", "gemini", "Text extractor: 'gemini' or 'ollama'")
	c.structurer = fs.StringLong("structurer", "gemini", "Receipt structurer: 'gemini', 'ollama' or 'heuristic'")
	c.geminiKey = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	c.geminiModel = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
	c.ollamaURL = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
	c.ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
	c.logLevel = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
	c.logFormat = fs.StringLong("log-format", "text", "Log format: text or json")
}

// app is the set of opened resources a subcommand works with.
type app struct {
	service *receipt.Service
	closers []io.Closer
}

// Close releases resources in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			slog.Warn("Failed to close resource", "error", err)
		}
	}
}

func (c *config) setupLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(*c.logLevel)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(*c.logFormat) {
	case "text":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	default:
		return fmt.Errorf("invalid log format %q (valid: text or json)", *c.logFormat)
	}
	return nil
}

// open initializes the database and storage, plus the receipt readers when
// withReaders is set.
func (c *config) open(ctx context.Context, withReaders bool) (*app, error) {
	if err := c.setupLogging(); err != nil {
		return nil, err
	}

	a := &app{}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	slog.Info("Initializing database...", "path", *c.dbPath)
	db, err := receipt.NewBoltDB(*c.dbPath)
	if err != nil {
		return fail(fmt.Errorf("initializing database: %w", err))
	}
	a.closers = append(a.closers, db)

	var store receipt.Storage
	switch {
	case *c.storageBucket != "" && *c.s3Bucket != "":
		return fail(fmt.Errorf("--storage-bucket and --s3-bucket are mutually exclusive"))
	case *c.s3Bucket != "":
		slog.Info("Initializing S3 storage...", "bucket", *c.s3Bucket, "endpoint", *c.s3Endpoint)
		s3, err := receipt.NewS3Storage(ctx, receipt.S3Config{
			Bucket:    *c.s3Bucket,
			Region:    *c.s3Region,
			Endpoint:  *c.s3Endpoint,
			AccessKey: *c.s3AccessKey,
			SecretKey: *c.s3SecretKey,
			PathStyle: *c.s3PathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("initializing S3 storage: %w", err))
		}
		store = s3
	case *c.storageBucket != "":
		slog.Info("Initializing cloud storage...", "bucket", *c.storageBucket)
		gcs, err := receipt.NewGCSStorage(ctx, *c.storageBucket)
		if err != nil {
			return fail(fmt.Errorf("initializing cloud storage: %w", err))
		}
		a.closers = append(a.closers, gcs)
		store = gcs
	default:
		slog.Info("Initializing storage...", "path", *c.storagePath)
		local, err := receipt.NewLocalStorage(*c.storagePath)
		if err != nil {
			return fail(fmt.Errorf("initializing storage: %w", err))
		}
		store = local
	}

	var (
		extractor  scanning.TextExtractor
		structurer scanning.Structurer
	)
	if withReaders {
		readers := &readerSet{cfg: c, app: a}
		if extractor, err = readers.extractor(*c.ocr); err != nil {
			return fail(err)
		}
		if structurer, err = readers.structurerFor(*c.structurer); err != nil {
			return fail(err)
		}
		extractor = scanning.PlainText{Next: extractor}
	}

	a.service = receipt.NewService(db, extractor, structurer, store)
	return a, nil
}

// readerSet builds providers, sharing one client when OCR and structuring
// use the same backend. Each client is handed to app for closing as soon
// as it exists.
type readerSet struct {
	cfg    *config
	app    *app
	gemini *scanning.Gemini
	ollama *scanning.Ollama
}

func (r *readerSet) geminiClient() (*scanning.Gemini, error) {
	if r.gemini != nil {
		return r.gemini, nil
	}
	apiKey := *r.cfg.geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
	}
	slog.Info("Initializing Gemini...", "model", *r.cfg.geminiModel)
	g, err := scanning.NewGemini(apiKey, *r.cfg.geminiModel)
	if err != nil {
		return nil, fmt.Errorf("initializing gemini: %w", err)
	}
	r.gemini = g
	r.app.closers = append(r.app.closers, g)
	return g, nil
}

func (r *readerSet) ollamaClient() (*scanning.Ollama, error) {
	if r.ollama != nil {
		return r.ollama, nil
	}
	slog.Info("Initializing Ollama...", "url", *r.cfg.ollamaURL, "model", *r.cfg.ollamaModel)
	o, err := scanning.NewOllama(*r.cfg.ollamaURL, *r.cfg.ollamaModel)
	if err != nil {
		return nil, fmt.Errorf("initializing ollama: %w", err)
	}
	r.ollama = o
	r.app.closers = append(r.app.closers, o)
	return o, nil
}

func (r *readerSet) extractor(kind string) (scanning.TextExtractor, error) {
	switch kind {
	case "gemini":
		return r.geminiClient()
	case "ollama":
		return r.ollamaClient()
	}
	return nil, fmt.Errorf("invalid ocr type %q (valid: gemini or ollama)", kind)
}

func (r *readerSet) structurerFor(kind string) (scanning.Structurer, error) {
	switch kind {
	case "gemini":
		return r.geminiClient()
	case "ollama":
		return r.ollamaClient()
	case "heuristic":
		return scanning.Heuristic{}, nil
	}
	return nil, fmt.Errorf("invalid structurer type %q (valid: gemini, ollama or heuristic)", kind)
}
