package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is an uploaded document after decoding. Text is the decoded,
// queryable form; OriginalText preserves the source bytes losslessly when
// the ingestion path kept them (CSV uploads do, scraped pages may not).
type Document struct {
	ID           uuid.UUID `json:"id"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	Text         string    `json:"text"`
	OriginalText *string   `json:"original_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasOriginalText reports whether the lossless source text survived ingestion.
func (d *Document) HasOriginalText() bool {
	return d.OriginalText != nil && *d.OriginalText != ""
}
