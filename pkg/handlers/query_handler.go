package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/jsonutil"
	"github.com/docquery-ai/docquery-engine/pkg/logging"
	"github.com/docquery-ai/docquery-engine/pkg/models"
	"github.com/docquery-ai/docquery-engine/pkg/services"
)

// defaultTopChunks caps ranked-retrieval fallback output.
const defaultTopChunks = 5

// QueryRequest for POST body. TopChunks tolerates both numeric and
// quoted-numeric forms.
type QueryRequest struct {
	Question    string          `json:"question"`
	DocumentIDs []string        `json:"document_ids"`
	TopChunks   json.RawMessage `json:"top_chunks,omitempty"`
}

// QueryHandler answers questions over stored documents. It invokes the
// router's structured chain and, when the router defers, runs the
// relevance scorer as the final fallback.
type QueryHandler struct {
	router   services.QueryRouterService
	scorer   services.RelevanceScorerService
	provider services.ChunkProvider
	logger   *zap.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(
	router services.QueryRouterService,
	scorer services.RelevanceScorerService,
	provider services.ChunkProvider,
	logger *zap.Logger,
) *QueryHandler {
	return &QueryHandler{router: router, scorer: scorer, provider: provider, logger: logger}
}

// RegisterRoutes registers the query route on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Query)
}

// Query handles POST /api/query.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Question == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	docIDs := make([]uuid.UUID, 0, len(req.DocumentIDs))
	for _, raw := range req.DocumentIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid document id: "+raw)
			return
		}
		docIDs = append(docIDs, id)
	}

	answer, err := h.router.Answer(r.Context(), req.Question, docIDs)
	if err != nil {
		h.logger.Error("Query routing failed",
			zap.String("question", logging.SanitizeQuestion(req.Question)),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "query_error", "failed to answer query")
		return
	}

	// Both structured attempts failed: rank chunks as the last resort.
	if answer.Kind == models.AnswerNoData {
		topChunks := jsonutil.FlexibleIntValue(req.TopChunks)
		if topChunks <= 0 {
			topChunks = defaultTopChunks
		}
		if ranked := h.rankFallback(r.Context(), req.Question, docIDs, topChunks); len(ranked) > 0 {
			answer = &models.Answer{
				Kind:   models.AnswerRanked,
				Chunks: ranked,
				Reason: answer.Reason,
			}
		}
	}

	_ = WriteJSON(w, http.StatusOK, answer)
}

func (h *QueryHandler) rankFallback(ctx context.Context, question string, docIDs []uuid.UUID, limit int) []models.ScoredChunk {
	var all []*models.Chunk
	for _, id := range docIDs {
		chunks, err := h.provider.GetChunks(ctx, id)
		if err != nil {
			h.logger.Warn("Failed to fetch chunks for ranking",
				zap.String("document_id", id.String()),
				zap.Error(err))
			continue
		}
		all = append(all, chunks...)
	}
	if len(all) == 0 {
		return nil
	}
	ranked := h.scorer.Rank(question, all)
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}
