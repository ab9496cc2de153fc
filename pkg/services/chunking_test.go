package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/config"
	"github.com/docquery-ai/docquery-engine/pkg/models"
)

func testChunkingConfig() config.ChunkingConfig {
	return config.ChunkingConfig{
		TabularWindowRows:  10,
		TabularOverlapRows: 2,
		TabularSampleRows:  3,
		CodeMaxChars:       1500,
		MarkdownMaxChars:   2000,
		ProseMaxChars:      1000,
		ProseOverlapChars:  200,
	}
}

func newChunking(t *testing.T, cfg config.ChunkingConfig) ChunkingService {
	t.Helper()
	return NewChunkingService(cfg, zap.NewNop())
}

func csvDocument(rows int) *models.Document {
	var b strings.Builder
	b.WriteString("name,level,salary\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "Person%d,J%d,%d\n", i, i%3, 50000+i*100)
	}
	return &models.Document{
		ID:          uuid.New(),
		Filename:    "staff.csv",
		ContentType: "text/csv",
		Text:        b.String(),
	}
}

func TestChunkDocument_TabularWindows(t *testing.T) {
	svc := newChunking(t, testChunkingConfig())

	chunks := svc.ChunkDocument(csvDocument(25))

	// One summary plus windows at rows 1-10, 9-18, 17-25.
	require.Len(t, chunks, 4)
	assert.Equal(t, models.ChunkTypeTabularSummary, chunks[0].Type)

	windows := chunks[1:]
	wantRanges := [][2]int{{1, 10}, {9, 18}, {17, 25}}
	for i, c := range windows {
		assert.Equal(t, models.ChunkTypeTabularRows, c.Type)
		assert.Equal(t, wantRanges[i][0], c.Metadata.RowStart)
		assert.Equal(t, wantRanges[i][1], c.Metadata.RowEnd)
		assert.Equal(t, 25, c.Metadata.TotalRows)
		assert.Equal(t, []string{"name", "level", "salary"}, c.Metadata.Columns)
		// Every window carries the header so it parses standalone.
		assert.True(t, strings.HasPrefix(c.Text, "name,level,salary\n"))
	}
}

func TestChunkDocument_TabularSummary(t *testing.T) {
	svc := newChunking(t, testChunkingConfig())

	chunks := svc.ChunkDocument(csvDocument(25))
	summary := chunks[0]

	assert.Contains(t, summary.Text, "Table summary for staff.csv")
	assert.Contains(t, summary.Text, "Total rows: 25")
	assert.Contains(t, summary.Text, "Columns: name, level, salary")
	assert.Contains(t, summary.Text, "Sample values:")
	assert.Contains(t, summary.Text, "Person0,J0,50000")
	assert.Contains(t, summary.Text, "Person2,J2,50200")
	assert.NotContains(t, summary.Text, "Person3")
}

// Reassembling the row windows and re-extracting must reproduce the
// table parsed from the original text.
func TestChunkDocument_TabularRoundTrip(t *testing.T) {
	chunking := newChunking(t, testChunkingConfig())
	extraction := newTabularExtraction(t)
	doc := csvDocument(25)

	original, err := extraction.ExtractTable(doc.Text)
	require.NoError(t, err)

	chunks := chunking.ChunkDocument(doc)
	refs := make([]*models.Chunk, len(chunks))
	for i := range chunks {
		refs[i] = &chunks[i]
	}

	reassembled, err := extraction.ExtractTable(reassembleTabularText(refs))
	require.NoError(t, err)

	assert.Equal(t, original.Columns, reassembled.Columns)
	assert.Equal(t, original.Rows, reassembled.Rows)
	assert.Equal(t, original.Types, reassembled.Types)
}

// A table can legitimately contain identical rows. Rebuilding it from
// overlapping row windows must cut only the window overlap, so counts
// and sums over the rebuilt table stay exact.
func TestChunkDocument_TabularRoundTripKeepsGenuineDuplicateRows(t *testing.T) {
	chunking := newChunking(t, testChunkingConfig())
	extraction := newTabularExtraction(t)

	var b strings.Builder
	b.WriteString("name,amount\n")
	for i := 0; i < 12; i++ {
		if i == 2 || i == 3 {
			b.WriteString("Widget,100\n")
			continue
		}
		fmt.Fprintf(&b, "Item%d,%d\n", i, 100+i)
	}
	doc := &models.Document{
		ID:          uuid.New(),
		Filename:    "orders.csv",
		ContentType: "text/csv",
		Text:        b.String(),
	}

	original, err := extraction.ExtractTable(doc.Text)
	require.NoError(t, err)
	require.Len(t, original.Rows, 12)

	chunks := chunking.ChunkDocument(doc)
	refs := make([]*models.Chunk, len(chunks))
	for i := range chunks {
		refs[i] = &chunks[i]
	}

	reassembled, err := extraction.ExtractTable(reassembleTabularText(refs))
	require.NoError(t, err)

	require.Len(t, reassembled.Rows, 12)
	assert.Equal(t, original.Rows, reassembled.Rows)

	widgets := 0
	for _, row := range reassembled.Rows {
		if row["name"] == "Widget" {
			widgets++
		}
	}
	assert.Equal(t, 2, widgets)
}

// Concatenating code chunk texts in order reproduces the source exactly.
func TestChunkDocument_CodeRoundTrip(t *testing.T) {
	cfg := testChunkingConfig()
	cfg.CodeMaxChars = 80
	svc := newChunking(t, cfg)

	text := strings.Join([]string{
		"package main",
		"",
		"func first() {",
		"\treturn",
		"}",
		"",
		"func second() {",
		"\t// does quite a lot of work in here across several lines",
		"\tdoWork()",
		"\tdoMoreWork()",
		"}",
	}, "\n")

	chunks := svc.ChunkDocument(&models.Document{ID: uuid.New(), Filename: "main.go", Text: text})
	require.GreaterOrEqual(t, len(chunks), 2)

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	assert.Equal(t, text, strings.Join(parts, "\n"))
}

// Concatenating markdown section chunks in order reproduces the source
// exactly.
func TestChunkDocument_MarkdownRoundTrip(t *testing.T) {
	svc := newChunking(t, testChunkingConfig())

	text := strings.Join([]string{
		"# Policy Guide",
		"Introductory text.",
		"",
		"## Coverage",
		"Coverage body text.",
		"",
		"## Exclusions",
		"Exclusions body text.",
	}, "\n")

	chunks := svc.ChunkDocument(&models.Document{ID: uuid.New(), Filename: "guide.md", Text: text})
	require.Len(t, chunks, 3)

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	assert.Equal(t, text, strings.Join(parts, "\n"))
}

// Prose chunks reproduce the source once each chunk's carried overlap
// prefix is stripped.
func TestChunkDocument_ProseRoundTrip(t *testing.T) {
	cfg := testChunkingConfig()
	cfg.ProseMaxChars = 80
	cfg.ProseOverlapChars = 20
	svc := newChunking(t, cfg)

	paras := []string{
		"The first paragraph talks about the claim history in detail.",
		"The second paragraph covers the repair estimates thoroughly.",
		"The third paragraph closes with the settlement offer terms.",
	}
	text := strings.Join(paras, "\n\n")

	chunks := svc.ChunkDocument(&models.Document{ID: uuid.New(), Filename: "letter.txt", Text: text})
	require.GreaterOrEqual(t, len(chunks), 2)

	parts := []string{chunks[0].Text}
	for i := 1; i < len(chunks); i++ {
		carry := tailWords(chunks[i-1].Text, cfg.ProseOverlapChars)
		part := chunks[i].Text
		if carry != "" {
			require.True(t, strings.HasPrefix(part, carry+"\n\n"))
			part = strings.TrimPrefix(part, carry+"\n\n")
		}
		parts = append(parts, part)
	}
	assert.Equal(t, text, strings.Join(parts, "\n\n"))
}

func TestChunkDocument_AssignsIdentityAndCounts(t *testing.T) {
	svc := newChunking(t, testChunkingConfig())
	doc := csvDocument(5)

	chunks := svc.ChunkDocument(doc)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.NotEqual(t, uuid.Nil, c.ID)
		assert.Equal(t, doc.ID, c.DocumentID)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, len(c.Text), c.Metadata.CharCount)
		assert.Equal(t, len(strings.Fields(c.Text)), c.Metadata.WordCount)
		assert.False(t, c.CreatedAt.IsZero())
	}
}

func TestChunkDocument_EmptyText(t *testing.T) {
	svc := newChunking(t, testChunkingConfig())
	assert.Nil(t, svc.ChunkDocument(&models.Document{ID: uuid.New(), Filename: "empty.txt", Text: "   \n  "}))
}

func TestClassify(t *testing.T) {
	svc := newChunking(t, testChunkingConfig()).(*chunkingService)

	tests := []struct {
		name string
		doc  models.Document
		want models.ChunkType
	}{
		{"csv extension", models.Document{Filename: "data.csv", Text: "plain"}, models.ChunkTypeTabularRows},
		{"tsv extension", models.Document{Filename: "data.tsv", Text: "plain"}, models.ChunkTypeTabularRows},
		{"csv content type", models.Document{Filename: "export", ContentType: "text/csv", Text: "plain"}, models.ChunkTypeTabularRows},
		{"go file", models.Document{Filename: "main.go", Text: "package main"}, models.ChunkTypeCode},
		{"python file", models.Document{Filename: "run.py", Text: "print(1)"}, models.ChunkTypeCode},
		{"markdown file", models.Document{Filename: "README.md", Text: "# hi"}, models.ChunkTypeMarkdown},
		{"plain prose", models.Document{Filename: "letter.txt", Text: "Dear sir\n\nRegards"}, models.ChunkTypeProse},
		{"delimited sniff", models.Document{Filename: "export.txt", Text: "a,b,c\n1,2,3\n4,5,6\n"}, models.ChunkTypeTabularRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.classify(&tt.doc))
		})
	}
}

func TestChunkDocument_CodeBoundaries(t *testing.T) {
	cfg := testChunkingConfig()
	cfg.CodeMaxChars = 80
	svc := newChunking(t, cfg)

	text := strings.Join([]string{
		"package main",
		"",
		"func first() {",
		"\treturn",
		"}",
		"",
		"func second() {",
		"\t// does quite a lot of work in here across several lines",
		"\tdoWork()",
		"\tdoMoreWork()",
		"}",
	}, "\n")

	chunks := svc.ChunkDocument(&models.Document{ID: uuid.New(), Filename: "main.go", Text: text})
	require.GreaterOrEqual(t, len(chunks), 2)

	for _, c := range chunks {
		assert.Equal(t, models.ChunkTypeCode, c.Type)
	}
	// Definitions are never split mid-body: each func line starts a chunk
	// or follows its own boundary.
	var headings []string
	for _, c := range chunks {
		if c.Metadata.Heading != "" {
			headings = append(headings, c.Metadata.Heading)
		}
	}
	assert.Contains(t, headings, "func first() {")
	assert.Contains(t, headings, "func second() {")
}

func TestChunkDocument_MarkdownSections(t *testing.T) {
	svc := newChunking(t, testChunkingConfig())

	text := strings.Join([]string{
		"# Policy Guide",
		"Introductory text.",
		"",
		"## Coverage",
		"Coverage body text.",
		"",
		"## Exclusions",
		"Exclusions body text.",
	}, "\n")

	chunks := svc.ChunkDocument(&models.Document{ID: uuid.New(), Filename: "guide.md", Text: text})
	require.Len(t, chunks, 3)

	assert.Equal(t, "Policy Guide", chunks[0].Metadata.Heading)
	assert.Equal(t, 1, chunks[0].Metadata.HeadingLevel)
	assert.Equal(t, "Coverage", chunks[1].Metadata.Heading)
	assert.Equal(t, 2, chunks[1].Metadata.HeadingLevel)
	assert.Contains(t, chunks[1].Text, "Coverage body text.")
	assert.Equal(t, "Exclusions", chunks[2].Metadata.Heading)
}

func TestChunkDocument_MarkdownLongSectionSubSplit(t *testing.T) {
	cfg := testChunkingConfig()
	cfg.MarkdownMaxChars = 60
	svc := newChunking(t, cfg)

	text := "# Heading\n\nfirst paragraph with enough words to matter\n\nsecond paragraph with enough words to matter"
	chunks := svc.ChunkDocument(&models.Document{ID: uuid.New(), Filename: "long.md", Text: text})

	require.GreaterOrEqual(t, len(chunks), 2)
	for _, c := range chunks {
		assert.Equal(t, "Heading", c.Metadata.Heading)
	}
}

func TestChunkDocument_ProsePacksParagraphs(t *testing.T) {
	cfg := testChunkingConfig()
	cfg.ProseMaxChars = 80
	cfg.ProseOverlapChars = 20
	svc := newChunking(t, cfg)

	paras := []string{
		"The first paragraph talks about the claim history in detail.",
		"The second paragraph covers the repair estimates thoroughly.",
		"The third paragraph closes with the settlement offer terms.",
	}
	text := strings.Join(paras, "\n\n")

	chunks := svc.ChunkDocument(&models.Document{ID: uuid.New(), Filename: "letter.txt", Text: text})
	require.GreaterOrEqual(t, len(chunks), 2)

	for _, c := range chunks {
		assert.Equal(t, models.ChunkTypeProse, c.Type)
	}
	// Every paragraph survives in some chunk.
	all := ""
	for _, c := range chunks {
		all += c.Text + "\n"
	}
	for _, p := range paras {
		assert.Contains(t, all, p)
	}
	// The second chunk begins with overlap carried from the first.
	carry := tailWords(chunks[0].Text, 20)
	require.NotEmpty(t, carry)
	assert.True(t, strings.HasPrefix(chunks[1].Text, carry))
}

func TestSplitAtParagraphs_OversizedParagraphStaysIntact(t *testing.T) {
	long := strings.Repeat("word ", 100)
	pieces := splitAtParagraphs(long, 50, 0)
	require.Len(t, pieces, 1)
	assert.Equal(t, long, pieces[0])
}

func TestTailWords(t *testing.T) {
	assert.Equal(t, "", tailWords("anything", 0))
	assert.Equal(t, "short", tailWords("short", 10))
	// Cut lands mid-word; the partial word is dropped.
	assert.Equal(t, "grey dog", tailWords("the quick grey dog", 10))
}
