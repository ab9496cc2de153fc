package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docquery-ai/docquery-engine/pkg/apperrors"
	"github.com/docquery-ai/docquery-engine/pkg/database"
	"github.com/docquery-ai/docquery-engine/pkg/models"
)

// ChunkRepository provides chunk retrieval for the query router. It
// satisfies the services.ChunkProvider contract.
type ChunkRepository interface {
	GetChunks(ctx context.Context, documentID uuid.UUID) ([]*models.Chunk, error)
	GetOriginalText(ctx context.Context, documentID uuid.UUID) (string, error)
}

type chunkRepository struct {
	db *database.DB
}

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(db *database.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

var _ ChunkRepository = (*chunkRepository)(nil)

// GetChunks returns a document's chunks in index order.
func (r *chunkRepository) GetChunks(ctx context.Context, documentID uuid.UUID) ([]*models.Chunk, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, chunk_index, text, chunk_type, metadata, created_at
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		c := &models.Chunk{}
		var metadataJSON []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &c.Type, &metadataJSON, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetOriginalText returns the losslessly stored source text, or
// apperrors.ErrNotFound when it was not kept at ingestion.
func (r *chunkRepository) GetOriginalText(ctx context.Context, documentID uuid.UUID) (string, error) {
	var original *string
	err := r.db.QueryRow(ctx,
		`SELECT original_text FROM documents WHERE id = $1`, documentID).
		Scan(&original)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get original text: %w", err)
	}
	if original == nil || *original == "" {
		return "", apperrors.ErrNotFound
	}
	return *original, nil
}
