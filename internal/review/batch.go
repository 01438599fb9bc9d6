package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zombor/receipt-tracker/internal/receipt"
	"github.com/zombor/receipt-tracker/internal/scanning"
)

// Status is where a batch file ended up.
type Status string

const (
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// Extensions accepted from the inbox.
var Extensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp", ".heic", ".pdf"}

// Service is the part of receipt.Service a batch needs.
type Service interface {
	Ingested(data []byte) (bool, error)
	Scan(ctx context.Context, filename string, data []byte, contentType string) (*receipt.Analysis, error)
	Approve(id string) (*receipt.Detail, error)
	Reject(ctx context.Context, id string) error
}

// Outcome is the result for one inbox file.
type Outcome struct {
	File      string `json:"file"`
	Status    Status `json:"status"`
	ReceiptID uint64 `json:"receipt_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RunReport summarises a batch run.
type RunReport struct {
	Saved    int       `json:"saved"`
	Rejected int       `json:"rejected"`
	Failed   int       `json:"failed"`
	Skipped  int       `json:"skipped"`
	Outcomes []Outcome `json:"outcomes"`
}

func (r *RunReport) add(o Outcome) {
	switch o.Status {
	case StatusApproved:
		r.Saved++
	case StatusRejected:
		r.Rejected++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Batch processes every receipt image in Inbox. Each file is read,
// reviewed and saved or discarded, then moved into Processed/approved,
// Processed/rejected or Processed/failed with a timestamp prefix. Files
// already ingested are skipped and filed under approved. One failing file
// never stops the run.
type Batch struct {
	Inbox     string
	Processed string
	Service   Service
	Reviewer  Reviewer
	Now       func() time.Time
}

// Run processes the inbox once.
func (b *Batch) Run(ctx context.Context) (*RunReport, error) {
	files, err := FindReceipts(b.Inbox)
	if err != nil {
		return nil, err
	}
	for _, status := range []Status{StatusApproved, StatusRejected, StatusFailed} {
		if err := os.MkdirAll(filepath.Join(b.Processed, string(status)), 0755); err != nil {
			return nil, fmt.Errorf("creating processed folder: %w", err)
		}
	}

	slog.Info("Processing inbox", "inbox", b.Inbox, "files", len(files))

	report := &RunReport{Outcomes: make([]Outcome, 0, len(files))}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		o := b.process(ctx, path)
		b.move(path, o.Status)
		report.add(o)
	}
	return report, nil
}

func (b *Batch) process(ctx context.Context, path string) Outcome {
	name := filepath.Base(path)
	fail := func(err error) Outcome {
		slog.Error("Failed to process receipt", "filename", name, "error", err)
		return Outcome{File: name, Status: StatusFailed, Error: err.Error()}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(fmt.Errorf("reading file: %w", err))
	}

	ingested, err := b.Service.Ingested(data)
	if err != nil {
		return fail(err)
	}
	if ingested {
		slog.Info("Skipping receipt already ingested", "filename", name)
		return Outcome{File: name, Status: StatusSkipped}
	}

	a, err := b.Service.Scan(ctx, name, data, scanning.ContentType(name))
	if errors.Is(err, receipt.ErrDuplicate) {
		return Outcome{File: name, Status: StatusSkipped}
	}
	if err != nil {
		return fail(err)
	}

	decision, err := b.Reviewer.Review(ctx, a)
	if err != nil {
		// Leave nothing pending for a file we are about to move.
		b.discard(ctx, a)
		return fail(fmt.Errorf("reviewing receipt: %w", err))
	}

	if decision == Reject {
		if err := b.Service.Reject(ctx, a.ID); err != nil {
			return fail(err)
		}
		return Outcome{File: name, Status: StatusRejected}
	}

	detail, err := b.Service.Approve(a.ID)
	if err != nil {
		b.discard(ctx, a)
		return fail(err)
	}
	return Outcome{File: name, Status: StatusApproved, ReceiptID: detail.Receipt.ID}
}

func (b *Batch) discard(ctx context.Context, a *receipt.Analysis) {
	if err := b.Service.Reject(ctx, a.ID); err != nil {
		slog.Warn("Failed to discard analysis", "filename", a.Filename, "id", a.ID, "error", err)
	}
}

// move files path under its status folder. Skipped files count as approved.
func (b *Batch) move(path string, status Status) {
	if status == StatusSkipped {
		status = StatusApproved
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	dest := filepath.Join(b.Processed, string(status), now().Format("20060102_150405")+"_"+filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		slog.Warn("Failed to move receipt", "filename", filepath.Base(path), "destination", dest, "error", err)
	}
}

// FindReceipts lists the receipt files directly inside dir, sorted by name.
func FindReceipts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading inbox: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !accepted(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func accepted(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
