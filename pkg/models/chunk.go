package models

import (
	"time"

	"github.com/google/uuid"
)

// ChunkType classifies the structure of a chunk. Set once at chunking
// time and never mutated.
type ChunkType string

const (
	// ChunkTypeTabularRows is a fixed window of delimited data rows,
	// carrying the original header line so each window parses standalone.
	ChunkTypeTabularRows ChunkType = "tabular_rows"
	// ChunkTypeTabularSummary is the single leading chunk describing a
	// tabular document: total rows, columns, sample values.
	ChunkTypeTabularSummary ChunkType = "tabular_summary"
	ChunkTypeCode           ChunkType = "code"
	ChunkTypeMarkdown       ChunkType = "markdown"
	ChunkTypeProse          ChunkType = "prose"
)

// ChunkMetadata carries the structural context a chunk was cut from.
type ChunkMetadata struct {
	Heading      string   `json:"heading,omitempty"`
	HeadingLevel int      `json:"heading_level,omitempty"`
	RowStart     int      `json:"row_start,omitempty"`
	RowEnd       int      `json:"row_end,omitempty"`
	Columns      []string `json:"columns,omitempty"`
	TotalRows    int      `json:"total_rows,omitempty"`
	CharCount    int      `json:"char_count"`
	WordCount    int      `json:"word_count"`
}

// Chunk is a bounded, typed segment of document text. Chunks are
// immutable after creation; re-chunking a document replaces them.
type Chunk struct {
	ID         uuid.UUID     `json:"id"`
	DocumentID uuid.UUID     `json:"document_id"`
	Index      int           `json:"index"`
	Text       string        `json:"text"`
	Type       ChunkType     `json:"type"`
	Metadata   ChunkMetadata `json:"metadata"`
	CreatedAt  time.Time     `json:"created_at"`
}

// IsTabular reports whether the chunk belongs to a tabular document.
func (c *Chunk) IsTabular() bool {
	return c.Type == ChunkTypeTabularRows || c.Type == ChunkTypeTabularSummary
}
