package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docquery-ai/docquery-engine/pkg/apperrors"
	"github.com/docquery-ai/docquery-engine/pkg/models"
	"github.com/docquery-ai/docquery-engine/pkg/testhelpers"
)

func testDocument(text string) (*models.Document, []models.Chunk) {
	doc := &models.Document{
		ID:          uuid.New(),
		Filename:    "staff.csv",
		ContentType: "text/csv",
		Text:        text,
	}
	original := text
	doc.OriginalText = &original

	chunks := []models.Chunk{
		{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Index:      0,
			Text:       "Table summary for staff.csv\nTotal rows: 2\nColumns: name, level",
			Type:       models.ChunkTypeTabularSummary,
			Metadata:   models.ChunkMetadata{Columns: []string{"name", "level"}, TotalRows: 2},
		},
		{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Index:      1,
			Text:       text,
			Type:       models.ChunkTypeTabularRows,
			Metadata:   models.ChunkMetadata{RowStart: 1, RowEnd: 2, Columns: []string{"name", "level"}, TotalRows: 2},
		},
	}
	return doc, chunks
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	doc, chunks := testDocument("name,level\nAlice,J4\nBob,L5\n")
	require.NoError(t, repo.Create(ctx, doc, chunks))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Filename, got.Filename)
	assert.Equal(t, doc.Text, got.Text)
	require.NotNil(t, got.OriginalText)
	assert.Equal(t, *doc.OriginalText, *got.OriginalText)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestDocumentRepository_GetMissing(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewDocumentRepository(db.DB)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDocumentRepository_List(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	doc, chunks := testDocument("name,level\nCara,J4\n")
	require.NoError(t, repo.Create(ctx, doc, chunks))

	docs, err := repo.List(ctx)
	require.NoError(t, err)

	var found bool
	for _, d := range docs {
		if d.ID == doc.ID {
			found = true
			assert.Equal(t, doc.Filename, d.Filename)
		}
	}
	assert.True(t, found, "created document must appear in the listing")
}

func TestDocumentRepository_DeleteCascadesToChunks(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	docs := NewDocumentRepository(db.DB)
	chunksRepo := NewChunkRepository(db.DB)
	ctx := context.Background()

	doc, chunks := testDocument("name,level\nDan,L6\n")
	require.NoError(t, docs.Create(ctx, doc, chunks))

	stored, err := chunksRepo.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	require.NoError(t, docs.Delete(ctx, doc.ID))

	stored, err = chunksRepo.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)

	assert.ErrorIs(t, docs.Delete(ctx, doc.ID), apperrors.ErrNotFound)
}

func TestChunkRepository_RoundTrip(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	docs := NewDocumentRepository(db.DB)
	chunksRepo := NewChunkRepository(db.DB)
	ctx := context.Background()

	doc, chunks := testDocument("name,level\nEve,J3\n")
	require.NoError(t, docs.Create(ctx, doc, chunks))

	stored, err := chunksRepo.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.Equal(t, models.ChunkTypeTabularSummary, stored[0].Type)
	assert.Equal(t, models.ChunkTypeTabularRows, stored[1].Type)
	assert.Equal(t, 0, stored[0].Index)
	assert.Equal(t, 1, stored[1].Index)
	assert.Equal(t, []string{"name", "level"}, stored[1].Metadata.Columns)
	assert.Equal(t, 1, stored[1].Metadata.RowStart)

	original, err := chunksRepo.GetOriginalText(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, *doc.OriginalText, original)
}

func TestChunkRepository_OriginalTextMissing(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	docs := NewDocumentRepository(db.DB)
	chunksRepo := NewChunkRepository(db.DB)
	ctx := context.Background()

	doc, chunks := testDocument("name,level\nFay,L4\n")
	doc.OriginalText = nil
	require.NoError(t, docs.Create(ctx, doc, chunks))

	_, err := chunksRepo.GetOriginalText(ctx, doc.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
