package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/receipt-tracker/internal/receipt"
	"github.com/zombor/receipt-tracker/internal/review"
)

func newRootCommand() *ff.Command {
	cfg := &config{}
	rootFlags := ff.NewFlagSet("receipt-tracker")
	cfg.register(rootFlags)
	rootFlags.BoolLong("version", "Show version information")

	root := &ff.Command{
		Name:      "receipt-tracker",
		Usage:     "receipt-tracker [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "scan, review and store receipts",
		Flags:     rootFlags,
	}
	root.Subcommands = []*ff.Command{
		serveCommand(cfg, rootFlags),
		batchCommand(cfg, rootFlags),
		exportCommand(cfg, rootFlags),
		summaryCommand(cfg, rootFlags),
	}
	return root
}

func serveCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(parent)
	var (
		port     = fs.IntLong("port", 8080, "HTTP server port")
		authUser = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
	)

	return &ff.Command{
		Name:      "serve",
		Usage:     "receipt-tracker serve [FLAGS]",
		ShortHelp: "run the HTTP API",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			a, err := cfg.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			server := receipt.NewServer(a.service, receipt.BasicAuth{
				Username: *authUser,
				Password: *authPass,
			})

			addr := fmt.Sprintf(":%d", *port)
			errc := make(chan error, 1)
			go func() {
				errc <- server.Start(addr)
			}()

			slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
			if *authUser != "" || *authPass != "" {
				slog.Info("Basic auth enabled", "user", *authUser)
			}

			select {
			case err := <-errc:
				return fmt.Errorf("serving: %w", err)
			case <-ctx.Done():
				slog.Info("Shutting down...")
				return nil
			}
		},
	}
}

func batchCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("batch").SetParent(parent)
	var (
		inbox       = fs.StringLong("inbox", "./inbox", "Folder of receipt images to process")
		processed   = fs.StringLong("processed", "./processed", "Folder receiving approved/, rejected/ and failed/ files")
		autoApprove = fs.BoolLong("auto-approve", "Save every readable receipt without asking")
	)

	return &ff.Command{
		Name:      "batch",
		Usage:     "receipt-tracker batch [FLAGS]",
		ShortHelp: "process an inbox folder with review",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			a, err := cfg.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var reviewer review.Reviewer = review.NewPrompt(os.Stdin, os.Stdout)
			if *autoApprove {
				reviewer = review.Auto{}
			}

			b := &review.Batch{
				Inbox:     *inbox,
				Processed: *processed,
				Service:   a.service,
				Reviewer:  reviewer,
			}
			report, err := b.Run(ctx)
			if report != nil {
				review.RenderReport(os.Stdout, report)
			}
			if err != nil {
				return fmt.Errorf("processing inbox: %w", err)
			}
			return nil
		},
	}
}

func exportCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("export").SetParent(parent)
	out := fs.StringLong("out", "receipts.xlsx", "Workbook to write")

	return &ff.Command{
		Name:      "export",
		Usage:     "receipt-tracker export [FLAGS]",
		ShortHelp: "write every table to an XLSX workbook",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			a, err := cfg.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Create(*out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", *out, err)
			}
			if err := a.service.Export(f); err != nil {
				f.Close()
				return fmt.Errorf("exporting: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("closing %s: %w", *out, err)
			}
			slog.Info("Export written", "path", *out)
			return nil
		},
	}
}

func summaryCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("summary").SetParent(parent)

	return &ff.Command{
		Name:      "summary",
		Usage:     "receipt-tracker summary [FLAGS]",
		ShortHelp: "print database statistics",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			a, err := cfg.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.service.Summary()
			if err != nil {
				return err
			}
			review.RenderSummary(os.Stdout, summary)
			return nil
		},
	}
}
