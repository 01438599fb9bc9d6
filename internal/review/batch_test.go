package review

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-tracker/internal/analysis"
	"github.com/zombor/receipt-tracker/internal/receipt"
	"github.com/zombor/receipt-tracker/internal/scanning"
)

// fileText treats the file bytes as the OCR text.
type fileText struct{}

func (fileText) ExtractText(_ context.Context, data []byte, _ string) (string, error) {
	if string(data) == "unreadable" {
		return "", errors.New("blurry image")
	}
	return string(data), nil
}

func (fileText) Close() error { return nil }

// byName rejects any receipt whose file name is listed.
type byName map[string]bool

func (r byName) Review(_ context.Context, a *receipt.Analysis) (Decision, error) {
	if r[a.Filename] {
		return Reject, nil
	}
	return Approve, nil
}

// stuckService cannot save or discard anything it scans.
type stuckService struct {
	*receipt.Service
}

func (stuckService) Approve(string) (*receipt.Detail, error) {
	return nil, errors.New("disk full")
}

func (stuckService) Reject(context.Context, string) error {
	return errors.New("analysis locked")
}

var _ = Describe("Batch", func() {
	var (
		dir      string
		inbox    string
		db       *receipt.BoltDB
		service  *receipt.Service
		reviewer Reviewer
		report   *RunReport

		batchService Service
		err      error
	)

	write := func(name, content string) {
		Expect(os.WriteFile(filepath.Join(inbox, name), []byte(content), 0644)).To(Succeed())
	}

	processed := func(status string) []string {
		entries, err := os.ReadDir(filepath.Join(dir, "processed", status))
		Expect(err).NotTo(HaveOccurred())
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return names
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		inbox = filepath.Join(dir, "inbox")
		Expect(os.MkdirAll(inbox, 0755)).To(Succeed())

		db, err = receipt.NewBoltDB(filepath.Join(dir, "receipts.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		storage, err := receipt.NewLocalStorage(filepath.Join(dir, "files"))
		Expect(err).NotTo(HaveOccurred())
		service = receipt.NewService(db, fileText{}, scanning.Heuristic{}, storage)
		reviewer = Auto{}
		batchService = service

		write("a_target.jpg", "TARGET\nSan Francisco, CA 94102\n08/19/2021\nDave Shampoo 12.98\nTOTAL 12.98")
		write("b_cvs.png", "CVS\nAustin, TX 78701\n03/14/2024\nToothpaste 3.49\nTOTAL 3.49")
		write("c_blurry.heic", "unreadable")
		write("notes.txt", "not a receipt")
	})

	JustBeforeEach(func() {
		b := &Batch{
			Inbox:     inbox,
			Processed: filepath.Join(dir, "processed"),
			Service:   batchService,
			Reviewer:  reviewer,
			Now:       func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
		}
		report, err = b.Run(context.Background())
	})

	It("should save approved receipts and report the failures", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Saved).To(Equal(2))
		Expect(report.Failed).To(Equal(1))
		Expect(report.Outcomes).To(HaveLen(3))
		Expect(report.Outcomes[0].ReceiptID).NotTo(BeZero())
		Expect(report.Outcomes[2].Error).To(ContainSubstring("blurry image"))

		receipts, _ := db.ListReceipts()
		Expect(receipts).To(HaveLen(2))
	})

	It("should move files with a timestamp prefix", func() {
		Expect(processed("approved")).To(ConsistOf("20240501_120000_a_target.jpg", "20240501_120000_b_cvs.png"))
		Expect(processed("failed")).To(ConsistOf("20240501_120000_c_blurry.heic"))
		Expect(filepath.Join(inbox, "notes.txt")).To(BeAnExistingFile())
		Expect(filepath.Join(inbox, "a_target.jpg")).NotTo(BeAnExistingFile())
	})

	When("the reviewer rejects a receipt", func() {
		BeforeEach(func() {
			reviewer = byName{"b_cvs.png": true}
		})

		It("should not save it", func() {
			Expect(report.Saved).To(Equal(1))
			Expect(report.Rejected).To(Equal(1))
			Expect(processed("rejected")).To(ConsistOf("20240501_120000_b_cvs.png"))
			Expect(service.Pending()).To(BeEmpty())
		})
	})

	When("a file was already ingested", func() {
		BeforeEach(func() {
			a, err := service.Scan(context.Background(), "earlier.jpg", []byte("CVS\nAustin, TX 78701\n03/14/2024\nToothpaste 3.49\nTOTAL 3.49"), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Approve(a.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should skip it and file it as approved", func() {
			Expect(report.Skipped).To(Equal(1))
			Expect(report.Saved).To(Equal(1))
			Expect(processed("approved")).To(ContainElement("20240501_120000_b_cvs.png"))

			receipts, _ := db.ListReceipts()
			Expect(receipts).To(HaveLen(2))
		})
	})

	When("a receipt can be neither saved nor discarded", func() {
		var logs *bytes.Buffer

		BeforeEach(func() {
			logs = &bytes.Buffer{}
			slog.SetDefault(slog.New(slog.NewTextHandler(logs, nil)))
			DeferCleanup(func() {
				slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
			})

			Expect(os.Remove(filepath.Join(inbox, "b_cvs.png"))).To(Succeed())
			Expect(os.Remove(filepath.Join(inbox, "c_blurry.heic"))).To(Succeed())
			batchService = stuckService{Service: service}
		})

		It("should fail the file and log the discard error", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Failed).To(Equal(1))
			Expect(report.Outcomes[0].Error).To(ContainSubstring("disk full"))
			Expect(logs.String()).To(ContainSubstring("Failed to discard analysis"))
			Expect(logs.String()).To(ContainSubstring("analysis locked"))
			Expect(processed("failed")).To(ConsistOf("20240501_120000_a_target.jpg"))
		})
	})

	It("should keep the analysis confidence on the stored receipt", func() {
		receipts, _ := db.ListReceipts()
		Expect(receipts[0].Confidence).NotTo(Equal(analysis.ConfidenceFailed))
	})
})

var _ = Describe("FindReceipts", func() {
	It("should list accepted extensions only, case-insensitively", func() {
		dir := GinkgoT().TempDir()
		for _, name := range []string{"b.JPG", "a.pdf", "c.webp", "d.bmp", "e.txt", "f.docx"} {
			Expect(os.WriteFile(filepath.Join(dir, name), nil, 0644)).To(Succeed())
		}
		Expect(os.Mkdir(filepath.Join(dir, "g.png"), 0755)).To(Succeed())

		files, err := FindReceipts(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(files).To(Equal([]string{
			filepath.Join(dir, "a.pdf"),
			filepath.Join(dir, "b.JPG"),
			filepath.Join(dir, "c.webp"),
			filepath.Join(dir, "d.bmp"),
		}))
	})

	It("should fail for a missing inbox", func() {
		_, err := FindReceipts(filepath.Join(GinkgoT().TempDir(), "missing"))
		Expect(err).To(MatchError(ContainSubstring("reading inbox")))
	})
})
