package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/bill-lines/internal/extraction"
)

// maxUploadSize allows high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeResult writes an extraction result in the core output shape
func writeResult(w http.ResponseWriter, code int, result extraction.Result) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeJSON writes any value as JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// contentTypeFor guesses the MIME type from the filename when the part has none
func contentTypeFor(header string, filename string) string {
	if ct := strings.ToLower(strings.TrimSpace(header)); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleExtract runs extraction on an uploaded file and returns the core result
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeResult(w, http.StatusBadRequest, extraction.Failure(msg))
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		msg := "No file uploaded"
		// A file input submitted without a selection arrives as an empty value
		if _, ok := r.MultipartForm.Value["file"]; ok {
			msg = "No file selected"
		}
		writeResult(w, http.StatusBadRequest, extraction.Failure(msg))
		return
	}
	defer f.Close()

	if header.Filename == "" {
		writeResult(w, http.StatusBadRequest, extraction.Failure("No file selected"))
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeResult(w, http.StatusInternalServerError, extraction.Failure("Error reading file. Please try again."))
		return
	}

	contentType := contentTypeFor(header.Header.Get("Content-Type"), header.Filename)

	e, err := s.service.ProcessReceipt(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		writeResult(w, http.StatusInternalServerError, extraction.Failure(err.Error()))
		return
	}

	if e.Result.Success {
		w.Header().Set("X-Extraction-Id", e.ID)
	}
	writeResult(w, http.StatusOK, e.Result)
}

// handleListExtractions returns all stored extractions
func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	extractions, err := s.service.ListExtractions()
	if err != nil {
		slog.Error("Error listing extractions", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if extractions == nil {
		extractions = []*Extraction{}
	}
	writeJSON(w, extractions)
}

// handleGetExtraction returns a single extraction
func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	e, err := s.service.GetExtraction(r.PathValue("id"))
	if err != nil {
		corsError(w, "Extraction not found", http.StatusNotFound)
		return
	}
	writeJSON(w, e)
}

// handleGetExtractionFile returns the uploaded file for an extraction
func (s *Server) handleGetExtractionFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetExtractionFile(r.PathValue("id"))
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteExtraction deletes an extraction and its file
func (s *Server) handleDeleteExtraction(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteExtraction(r.PathValue("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Extraction not found", http.StatusNotFound)
			return
		}
		corsError(w, "Error deleting extraction", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
