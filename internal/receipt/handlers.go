package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/zombor/receipt-tracker/internal/scanning"
)

// maxUploadSize fits high-resolution phone photos.
const maxUploadSize = int64(50 << 20)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes an error response with CORS headers set
func writeError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{
		"error": message,
	})
}

// receiptID parses the {id} path value
func receiptID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, "Invalid receipt ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// handleScanReceipt reads an uploaded receipt and queues it for review
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		if guessed := scanning.ContentType(header.Filename); guessed != "" {
			contentType = guessed
		}
	}

	a, err := s.service.Scan(r.Context(), header.Filename, data, contentType)
	switch {
	case errors.Is(err, ErrDuplicate):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case err != nil && a != nil:
		setCORSHeaders(w)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    err.Error(),
			"analysis": a,
		})
		return
	case err != nil:
		slog.Error("Error scanning receipt", "filename", header.Filename, "error", err)
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// handleListAnalyses returns the analyses waiting for review
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Pending())
}

// handleGetAnalysis returns one pending analysis
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.service.GetAnalysis(r.PathValue("id"))
	if err != nil {
		writeError(w, "Analysis not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleApproveAnalysis saves a pending analysis as a receipt
func (s *Server) handleApproveAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.service.GetAnalysis(id); err != nil {
		writeError(w, "Analysis not found", http.StatusNotFound)
		return
	}
	detail, err := s.service.Approve(id)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// handleRejectAnalysis discards a pending analysis
func (s *Server) handleRejectAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reject(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, "Analysis not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListReceipts returns a list of all receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single receipt with its merchant and items
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := receiptID(w, r)
	if !ok {
		return
	}
	detail, err := s.service.GetReceipt(id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, "Receipt not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting receipt", "id", id, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleGetReceiptFile returns the file for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	id, ok := receiptID(w, r)
	if !ok {
		return
	}
	data, contentType, err := s.service.GetReceiptFile(r.Context(), id)
	if err != nil {
		writeError(w, "File not found", http.StatusNotFound)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleListMerchants returns all merchants
func (s *Server) handleListMerchants(w http.ResponseWriter, r *http.Request) {
	merchants, err := s.service.ListMerchants()
	if err != nil {
		slog.Error("Error listing merchants", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, merchants)
}

// handleListCategories returns all categories
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.service.ListCategories()
	if err != nil {
		slog.Error("Error listing categories", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// handleSummary returns database statistics
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary()
	if err != nil {
		slog.Error("Error building summary", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleExport returns every table as an XLSX workbook
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.Export(&buf); err != nil {
		slog.Error("Error exporting receipts", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="receipts.xlsx"`)
	w.Write(buf.Bytes())
}
