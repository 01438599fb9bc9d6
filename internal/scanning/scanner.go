// Package scanning talks to the providers that read receipts: OCR turns an
// image into text, and a structurer turns that text into receipt JSON.
package scanning

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// TextExtractor reads the text printed on a receipt image or PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error)
	Close() error
}

// Structurer turns receipt text into a JSON document with merchant,
// transaction and items objects. The output is not trusted.
type Structurer interface {
	Structure(ctx context.Context, receiptText string) (string, error)
	Close() error
}

// ErrNoExtractor is returned when a file needs OCR but none is configured.
var ErrNoExtractor = errors.New("no OCR provider configured")

// PlainText passes text files through and hands everything else to Next.
type PlainText struct {
	Next TextExtractor
}

// ExtractText implements TextExtractor.
func (p PlainText) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if strings.HasPrefix(strings.ToLower(contentType), "text/") {
		return string(data), nil
	}
	if p.Next == nil {
		return "", fmt.Errorf("reading %s: %w", contentType, ErrNoExtractor)
	}
	return p.Next.ExtractText(ctx, data, contentType)
}

// Close implements TextExtractor.
func (p PlainText) Close() error {
	if p.Next == nil {
		return nil
	}
	return p.Next.Close()
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

// ContentType guesses the MIME type of a receipt file from its name. It
// returns "" for files that are not receipts.
func ContentType(filename string) string {
	return contentTypes[strings.ToLower(filepath.Ext(filename))]
}
