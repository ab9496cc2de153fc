package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/apperrors"
	"github.com/docquery-ai/docquery-engine/pkg/logging"
	"github.com/docquery-ai/docquery-engine/pkg/models"
	"github.com/docquery-ai/docquery-engine/pkg/repositories"
	"github.com/docquery-ai/docquery-engine/pkg/services"
)

// CreateDocumentRequest for POST body. Text is the decoded document
// text; OriginalText may carry the lossless source when the client has
// it (CSV uploads should).
type CreateDocumentRequest struct {
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type,omitempty"`
	Text         string `json:"text"`
	OriginalText string `json:"original_text,omitempty"`
}

// CreateDocumentResponse echoes the stored document id and chunk count.
type CreateDocumentResponse struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
}

// ListDocumentsResponse wraps the array for frontend compatibility.
type ListDocumentsResponse struct {
	Documents []*models.Document `json:"documents"`
}

// DocumentsHandler handles document ingestion and listing.
type DocumentsHandler struct {
	docs     repositories.DocumentRepository
	chunking services.ChunkingService
	logger   *zap.Logger
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(docs repositories.DocumentRepository, chunking services.ChunkingService, logger *zap.Logger) *DocumentsHandler {
	return &DocumentsHandler{docs: docs, chunking: chunking, logger: logger}
}

// RegisterRoutes registers the document routes on the given mux.
func (h *DocumentsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.Create)
	mux.HandleFunc("GET /api/documents", h.List)
	mux.HandleFunc("GET /api/documents/{id}", h.Get)
	mux.HandleFunc("DELETE /api/documents/{id}", h.Delete)
}

// Create handles POST /api/documents: stores the document and its
// chunker output in one transaction.
func (h *DocumentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Filename == "" || req.Text == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "filename and text are required")
		return
	}

	doc := &models.Document{
		ID:          uuid.New(),
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Text:        req.Text,
	}
	if req.OriginalText != "" {
		doc.OriginalText = &req.OriginalText
	}

	chunks := h.chunking.ChunkDocument(doc)
	if err := h.docs.Create(r.Context(), doc, chunks); err != nil {
		h.logger.Error("Failed to store document", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "storage_error", "failed to store document")
		return
	}

	h.logger.Info("Document ingested",
		zap.String("document_id", doc.ID.String()),
		zap.String("filename", doc.Filename),
		zap.Int("chunks", len(chunks)),
		zap.Bool("has_original_text", doc.HasOriginalText()),
		zap.String("preview", logging.SanitizeText(doc.Text)))

	_ = WriteJSON(w, http.StatusCreated, CreateDocumentResponse{
		ID:         doc.ID.String(),
		Filename:   doc.Filename,
		ChunkCount: len(chunks),
	})
}

// List handles GET /api/documents.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list documents", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "storage_error", "failed to list documents")
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	_ = WriteJSON(w, http.StatusOK, ListDocumentsResponse{Documents: docs})
}

// Get handles GET /api/documents/{id}.
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid document id")
		return
	}
	doc, err := h.docs.GetByID(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "document not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get document", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "storage_error", "failed to get document")
		return
	}
	_ = WriteJSON(w, http.StatusOK, doc)
}

// Delete handles DELETE /api/documents/{id}.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid document id")
		return
	}
	err = h.docs.Delete(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "document not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete document", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "storage_error", "failed to delete document")
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
