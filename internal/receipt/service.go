package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-tracker/internal/analysis"
	"github.com/zombor/receipt-tracker/internal/scanning"
)

// ErrDuplicate is returned when a file was already ingested or is waiting
// for review.
var ErrDuplicate = errors.New("receipt already ingested")

var (
	reFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	reSpaces        = regexp.MustCompile(`\s+`)
)

// IDGenerator generates unique IDs for pending analyses
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Analysis is a scanned receipt waiting for review.
type Analysis struct {
	ID          string          `json:"id"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"content_type"`
	StoragePath string          `json:"storage_path"`
	ContentHash string          `json:"content_hash"`
	RawText     string          `json:"raw_text"`
	Result      analysis.Result `json:"result"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (a *Analysis) meta() Meta {
	return Meta{
		Filename:    a.Filename,
		StoragePath: a.StoragePath,
		ContentType: a.ContentType,
		ContentHash: a.ContentHash,
		Confidence:  a.Result.Confidence,
	}
}

// Service handles receipt operations
type Service struct {
	db          DB
	extractor   scanning.TextExtractor
	structurer  scanning.Structurer
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource

	mu      sync.Mutex
	pending map[string]*Analysis
	// busy holds content hashes being scanned or saved.
	busy map[string]struct{}
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor scanning.TextExtractor, structurer scanning.Structurer, storage Storage) *Service {
	return NewServiceWithDeps(db, extractor, structurer, storage, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor scanning.TextExtractor, structurer scanning.Structurer, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		structurer:  structurer,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
		pending:     make(map[string]*Analysis),
		busy:        make(map[string]struct{}),
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filepath.ToSlash(filename))
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = reFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(reSpaces.ReplaceAllString(base, " "))

	// 50 chars for base, plus extension
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// ContentHash returns the hex SHA-256 of a file, the key used to skip files
// that were already ingested.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Ingested reports whether data was already saved as a receipt or is
// waiting for review.
func (s *Service) Ingested(data []byte) (bool, error) {
	hash := ContentHash(data)
	if s.pendingHash(hash) {
		return true, nil
	}
	found, err := s.db.HasFile(hash)
	if err != nil {
		return false, fmt.Errorf("checking file hash: %w", err)
	}
	return found, nil
}

func (s *Service) pendingHash(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heldLocked(hash)
}

func (s *Service) heldLocked(hash string) bool {
	if _, ok := s.busy[hash]; ok {
		return true
	}
	for _, a := range s.pending {
		if a.ContentHash == hash {
			return true
		}
	}
	return false
}

// Scan stores a receipt file, reads it and queues the analysis for review.
// When the structured response cannot be analyzed the failed analysis is
// returned together with the error and nothing is queued.
func (s *Service) Scan(ctx context.Context, filename string, data []byte, contentType string) (*Analysis, error) {
	hash := ContentHash(data)
	if !s.reserve(hash) {
		return nil, fmt.Errorf("%s: %w", filename, ErrDuplicate)
	}
	defer s.release(hash)

	saved, err := s.db.HasFile(hash)
	if err != nil {
		return nil, fmt.Errorf("checking file hash: %w", err)
	}
	if saved {
		return nil, fmt.Errorf("%s: %w", filename, ErrDuplicate)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()
	if contentType == "" {
		contentType = scanning.ContentType(filename)
	}

	key := fmt.Sprintf("receipts/%s_%s_%s", now.Format("20060102_150405"), id, sanitizeFilename(filename))
	savedPath, err := s.storage.Save(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	text, err := s.extractor.ExtractText(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to read receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.discardFile(ctx, savedPath)
		return nil, fmt.Errorf("extracting text: %w", err)
	}

	response, err := s.structurer.Structure(ctx, text)
	if err != nil {
		slog.Error("Failed to structure receipt", "filename", filename, "error", err)
		s.discardFile(ctx, savedPath)
		return nil, fmt.Errorf("structuring receipt: %w", err)
	}

	result := analysis.Analyze(response)
	a := &Analysis{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		StoragePath: savedPath,
		ContentHash: hash,
		RawText:     text,
		Result:      result,
		Error:       result.ErrorMessage(),
		CreatedAt:   now,
	}

	if result.Status == analysis.StatusError {
		slog.Error("Failed to analyze receipt", "filename", filename, "error", result.Err)
		s.discardFile(ctx, savedPath)
		return a, fmt.Errorf("analyzing receipt: %w", result.Err)
	}

	s.mu.Lock()
	s.pending[id] = a
	s.mu.Unlock()

	slog.Info("Receipt analyzed",
		"id", id,
		"filename", filename,
		"confidence", result.Confidence,
		"items", len(result.Receipt.Items),
	)
	return a, nil
}

// reserve claims hash for one scan. It fails when the same content is
// pending, being scanned or being saved.
func (s *Service) reserve(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.heldLocked(hash) {
		return false
	}
	s.busy[hash] = struct{}{}
	return true
}

func (s *Service) release(hash string) {
	s.mu.Lock()
	delete(s.busy, hash)
	s.mu.Unlock()
}

func (s *Service) discardFile(ctx context.Context, path string) {
	if err := s.storage.Delete(ctx, path); err != nil {
		slog.Warn("Failed to delete file", "path", path, "error", err)
	}
}

// Pending returns the analyses waiting for review, oldest first.
func (s *Service) Pending() []*Analysis {
	s.mu.Lock()
	out := make([]*Analysis, 0, len(s.pending))
	for _, a := range s.pending {
		out = append(out, a)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetAnalysis returns one pending analysis.
func (s *Service) GetAnalysis(id string) (*Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.pending[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	return a, nil
}

// take removes a pending analysis so only one caller can act on it. Its
// content hash stays reserved until the caller releases it.
func (s *Service) take(id string) (*Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.pending[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	delete(s.pending, id)
	s.busy[a.ContentHash] = struct{}{}
	return a, nil
}

// Approve persists a pending analysis in one transaction. On failure
// nothing is written and the analysis stays pending.
func (s *Service) Approve(id string) (*Detail, error) {
	a, err := s.take(id)
	if err != nil {
		return nil, err
	}
	defer s.release(a.ContentHash)

	var receiptID uint64
	err = s.db.Update(func(tx Tx) error {
		var err error
		receiptID, err = Persist(tx, a.Result.Receipt, a.meta())
		return err
	})
	if err != nil {
		s.mu.Lock()
		s.pending[id] = a
		s.mu.Unlock()
		slog.Error("Failed to save receipt", "id", id, "filename", a.Filename, "error", err)
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	slog.Info("Receipt saved", "id", id, "receipt_id", receiptID, "filename", a.Filename)
	return s.GetReceipt(receiptID)
}

// Reject drops a pending analysis and its stored file.
func (s *Service) Reject(ctx context.Context, id string) error {
	a, err := s.take(id)
	if err != nil {
		return err
	}
	defer s.release(a.ContentHash)
	s.discardFile(ctx, a.StoragePath)
	slog.Info("Receipt rejected", "id", id, "filename", a.Filename)
	return nil
}

// GetReceipt retrieves a stored receipt by ID
func (s *Service) GetReceipt(id uint64) (*Detail, error) {
	detail, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return detail, nil
}

// ListReceipts returns all receipts
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// ListMerchants returns all merchants
func (s *Service) ListMerchants() ([]*Merchant, error) {
	merchants, err := s.db.ListMerchants()
	if err != nil {
		return nil, fmt.Errorf("listing merchants: %w", err)
	}
	return merchants, nil
}

// ListCategories returns all categories
func (s *Service) ListCategories() ([]*Category, error) {
	categories, err := s.db.ListCategories()
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// GetReceiptFile retrieves the file data for a receipt
func (s *Service) GetReceiptFile(ctx context.Context, id uint64) ([]byte, string, error) {
	detail, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(ctx, detail.Receipt.StoragePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, detail.Receipt.ContentType, nil
}

// Snapshot loads every stored table.
func (s *Service) Snapshot() (*Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.Receipts, err = s.db.ListReceipts(); err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	if snap.Items, err = s.db.ListItems(); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	if snap.Merchants, err = s.db.ListMerchants(); err != nil {
		return nil, fmt.Errorf("listing merchants: %w", err)
	}
	if snap.Categories, err = s.db.ListCategories(); err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return &snap, nil
}

// Summary returns database statistics.
func (s *Service) Summary() (*Summary, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	summary := BuildSummary(snap)
	return &summary, nil
}

// Export writes every table to w as an XLSX workbook.
func (s *Service) Export(w io.Writer) error {
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	return ExportXLSX(w, snap)
}
