package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docquery-ai/docquery-engine/pkg/apperrors"
	"github.com/docquery-ai/docquery-engine/pkg/database"
	"github.com/docquery-ai/docquery-engine/pkg/models"
)

// DocumentRepository provides data access for documents.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document, chunks []models.Chunk) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context) ([]*models.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *database.DB) DocumentRepository {
	return &documentRepository{db: db}
}

var _ DocumentRepository = (*documentRepository)(nil)

// Create stores the document and its chunks in one transaction, so a
// document is never visible without its chunk set.
func (r *documentRepository) Create(ctx context.Context, doc *models.Document, chunks []models.Chunk) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (id, filename, content_type, text, original_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.Filename, doc.ContentType, doc.Text, doc.OriginalText, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	for i := range chunks {
		c := &chunks[i]
		c.DocumentID = doc.ID
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO chunks (id, document_id, chunk_index, text, chunk_type, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, c.DocumentID, c.Index, c.Text, c.Type, metadataJSON, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc := &models.Document{}
	err := r.db.QueryRow(ctx, `
		SELECT id, filename, content_type, text, original_text, created_at
		FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.Filename, &doc.ContentType, &doc.Text, &doc.OriginalText, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (r *documentRepository) List(ctx context.Context) ([]*models.Document, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, filename, content_type, created_at
		FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.ContentType, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
