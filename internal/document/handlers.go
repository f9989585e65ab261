package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

var errUploadTooLarge = errors.New("file is too large. Maximum size is 50MB")

// writeJSON encodes v with status code
func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

// readUpload reads the "file" form field and works out its content type
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, "", errUploadTooLarge
		}
		return "", nil, "", fmt.Errorf("error parsing form: %w", err)
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, "", errors.New("no file was selected")
		}
		return "", nil, "", fmt.Errorf("no file provided: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, "", fmt.Errorf("error reading file: %w", err)
	}

	return header.Filename, data, contentTypeFor(header.Header.Get("Content-Type"), header.Filename), nil
}

// contentTypeFor falls back to the file extension when the client sent no
// usable content type
func contentTypeFor(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
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

// handleUploadRecord processes an upload and returns only its record
func (s *Server) handleUploadRecord(w http.ResponseWriter, r *http.Request) {
	filename, data, contentType, err := s.readUpload(w, r)
	if err != nil {
		s.logger.Error("Error reading upload", "error", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := s.service.ProcessDocument(r.Context(), filename, data, contentType)
	if err != nil {
		s.logger.Error("Error processing document", "filename", filename, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, doc.Result)
}

// handleUploadDocument processes an upload and returns the stored document
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	filename, data, contentType, err := s.readUpload(w, r)
	if err != nil {
		s.logger.Error("Error reading upload", "error", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := s.service.ProcessDocument(r.Context(), filename, data, contentType)
	if err != nil {
		s.logger.Error("Error processing document", "filename", filename, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.ListDocuments()
	if err != nil {
		s.logger.Error("Error listing documents", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if docs == nil {
		docs = []*Document{}
	}
	s.writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetDocument(r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), "Document not found")
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetDocumentFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetDocumentFile(r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), "File not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDocument(r.PathValue("id")); err != nil {
		s.logger.Error("Error deleting document", "id", r.PathValue("id"), "error", err)
		s.writeError(w, statusFor(err), "Error deleting document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.ExportXLSX(&buf); err != nil {
		s.logger.Error("Error exporting documents", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Error exporting documents")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="documents-%s.xlsx"`, time.Now().Format("2006-01-02")))
	w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
