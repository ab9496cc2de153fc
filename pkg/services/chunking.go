package services

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/config"
	"github.com/docquery-ai/docquery-engine/pkg/models"
)

// ChunkingService splits decoded document text into typed, metadata-tagged
// chunks. Chunking is a pure function of the document: the same input
// always yields the same chunk texts.
type ChunkingService interface {
	ChunkDocument(doc *models.Document) []models.Chunk
}

type chunkingService struct {
	cfg    config.ChunkingConfig
	logger *zap.Logger
}

// NewChunkingService creates a new ChunkingService.
func NewChunkingService(cfg config.ChunkingConfig, logger *zap.Logger) ChunkingService {
	return &chunkingService{cfg: cfg, logger: logger}
}

var _ ChunkingService = (*chunkingService)(nil)

// codeExtensions maps file extensions to the code chunking path.
var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".java": true,
	".rb": true, ".rs": true, ".c": true, ".cpp": true, ".cs": true,
	".php": true, ".kt": true, ".swift": true,
}

// codeBoundaryPattern matches lines that open a new top-level definition.
var codeBoundaryPattern = regexp.MustCompile(
	`^\s*(func\s|class\s|def\s|function\s|type\s+\w+\s+(struct|interface)\b|(public|private|protected)\s+(static\s+)?\w)`)

var markdownHeadingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

func (s *chunkingService) ChunkDocument(doc *models.Document) []models.Chunk {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []models.Chunk
	switch s.classify(doc) {
	case models.ChunkTypeTabularRows:
		chunks = s.chunkTabular(doc, text)
	case models.ChunkTypeCode:
		chunks = s.chunkCode(text)
	case models.ChunkTypeMarkdown:
		chunks = s.chunkMarkdown(text)
	default:
		chunks = s.chunkProse(text)
	}

	now := time.Now()
	for i := range chunks {
		chunks[i].ID = uuid.New()
		chunks[i].DocumentID = doc.ID
		chunks[i].Index = i
		chunks[i].Metadata.CharCount = len(chunks[i].Text)
		chunks[i].Metadata.WordCount = len(strings.Fields(chunks[i].Text))
		chunks[i].CreatedAt = now
	}

	s.logger.Debug("Chunked document",
		zap.String("document_id", doc.ID.String()),
		zap.String("filename", doc.Filename),
		zap.Int("chunks", len(chunks)))
	return chunks
}

// classify picks the chunking path from the declared type, the filename
// extension, and finally a content sniff for delimiter-dense text.
func (s *chunkingService) classify(doc *models.Document) models.ChunkType {
	declared := strings.ToLower(doc.ContentType)
	ext := strings.ToLower(filepath.Ext(doc.Filename))

	switch {
	case strings.Contains(declared, "csv"), strings.Contains(declared, "tab-separated"),
		ext == ".csv", ext == ".tsv":
		return models.ChunkTypeTabularRows
	case codeExtensions[ext], strings.Contains(declared, "code"):
		return models.ChunkTypeCode
	case ext == ".md", ext == ".markdown", strings.Contains(declared, "markdown"):
		return models.ChunkTypeMarkdown
	}

	if looksDelimited(doc.Text) {
		return models.ChunkTypeTabularRows
	}
	return models.ChunkTypeProse
}

// looksDelimited reports whether the leading lines share a consistent
// delimiter count, the signature of an exported table.
func looksDelimited(text string) bool {
	lines := nonEmptyLines(text, 5)
	if len(lines) < 2 {
		return false
	}
	for _, delim := range []string{",", "\t", ";", "|"} {
		count := strings.Count(lines[0], delim)
		if count == 0 {
			continue
		}
		matching := 0
		for _, line := range lines[1:] {
			if strings.Count(line, delim) == count {
				matching++
			}
		}
		if matching >= len(lines)-1 {
			return true
		}
	}
	return false
}

// nonEmptyLines splits on newlines, dropping blank lines and the
// trailing carriage return of CRLF input.
func nonEmptyLines(text string, limit int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if limit > 0 && len(lines) == limit {
			break
		}
	}
	return lines
}

// chunkTabular emits one summary chunk followed by fixed row windows.
// Each window repeats the header line so it parses standalone.
func (s *chunkingService) chunkTabular(doc *models.Document, text string) []models.Chunk {
	lines := nonEmptyLines(text, 0)
	if len(lines) < 2 {
		return s.chunkProse(text)
	}

	header := lines[0]
	dataRows := lines[1:]
	delim := detectDelimiter(header)
	columns := parseDelimitedLine(header, delim)
	for i := range columns {
		columns[i] = strings.TrimSpace(columns[i])
	}

	chunks := []models.Chunk{s.tabularSummaryChunk(doc, header, columns, dataRows)}

	window := s.cfg.TabularWindowRows
	step := window - s.cfg.TabularOverlapRows
	for start := 0; start < len(dataRows); start += step {
		end := start + window
		if end > len(dataRows) {
			end = len(dataRows)
		}
		var b strings.Builder
		b.WriteString(header)
		b.WriteString("\n")
		b.WriteString(strings.Join(dataRows[start:end], "\n"))
		chunks = append(chunks, models.Chunk{
			Text: b.String(),
			Type: models.ChunkTypeTabularRows,
			Metadata: models.ChunkMetadata{
				RowStart:  start + 1,
				RowEnd:    end,
				Columns:   columns,
				TotalRows: len(dataRows),
			},
		})
		if end == len(dataRows) {
			break
		}
	}
	return chunks
}

func (s *chunkingService) tabularSummaryChunk(doc *models.Document, header string, columns []string, dataRows []string) models.Chunk {
	sample := s.cfg.TabularSampleRows
	if sample > len(dataRows) {
		sample = len(dataRows)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Table summary for %s\n", doc.Filename)
	fmt.Fprintf(&b, "Total rows: %d\n", len(dataRows))
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(columns, ", "))
	if sample > 0 {
		b.WriteString("Sample values:\n")
		b.WriteString(header)
		b.WriteString("\n")
		b.WriteString(strings.Join(dataRows[:sample], "\n"))
	}
	return models.Chunk{
		Text: b.String(),
		Type: models.ChunkTypeTabularSummary,
		Metadata: models.ChunkMetadata{
			Columns:   columns,
			TotalRows: len(dataRows),
		},
	}
}

// chunkCode splits at definition boundaries, packing whole definitions
// into chunks up to the size cap. A single definition longer than the
// cap stays intact as one oversized chunk.
func (s *chunkingService) chunkCode(text string) []models.Chunk {
	lines := strings.Split(text, "\n")

	// Group lines into blocks, one per top-level definition.
	var blocks [][]string
	current := []string{}
	for _, line := range lines {
		if codeBoundaryPattern.MatchString(line) && len(current) > 0 {
			blocks = append(blocks, current)
			current = nil
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}

	var chunks []models.Chunk
	var buf []string
	bufLen := 0
	flush := func() {
		if bufLen == 0 {
			return
		}
		chunkText := strings.Join(buf, "\n")
		chunks = append(chunks, models.Chunk{
			Text: chunkText,
			Type: models.ChunkTypeCode,
			Metadata: models.ChunkMetadata{
				Heading: firstDefinitionLine(chunkText),
			},
		})
		buf = nil
		bufLen = 0
	}
	for _, block := range blocks {
		blockLen := len(strings.Join(block, "\n"))
		if bufLen > 0 && bufLen+blockLen > s.cfg.CodeMaxChars {
			flush()
		}
		buf = append(buf, block...)
		bufLen += blockLen + 1
	}
	flush()
	return chunks
}

func firstDefinitionLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if codeBoundaryPattern.MatchString(line) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// chunkMarkdown splits at heading boundaries, sub-splitting sections
// longer than the configured cap at paragraph boundaries.
func (s *chunkingService) chunkMarkdown(text string) []models.Chunk {
	type section struct {
		heading string
		level   int
		lines   []string
	}

	var sections []section
	current := section{}
	for _, line := range strings.Split(text, "\n") {
		if m := markdownHeadingPattern.FindStringSubmatch(line); m != nil {
			if len(current.lines) > 0 || current.heading != "" {
				sections = append(sections, current)
			}
			current = section{heading: strings.TrimSpace(m[2]), level: len(m[1])}
		}
		current.lines = append(current.lines, line)
	}
	if len(current.lines) > 0 || current.heading != "" {
		sections = append(sections, current)
	}

	var chunks []models.Chunk
	for _, sec := range sections {
		body := strings.Join(sec.lines, "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}
		meta := models.ChunkMetadata{Heading: sec.heading, HeadingLevel: sec.level}
		if len(body) <= s.cfg.MarkdownMaxChars {
			chunks = append(chunks, models.Chunk{Text: body, Type: models.ChunkTypeMarkdown, Metadata: meta})
			continue
		}
		for _, part := range splitAtParagraphs(body, s.cfg.MarkdownMaxChars, 0) {
			chunks = append(chunks, models.Chunk{Text: part, Type: models.ChunkTypeMarkdown, Metadata: meta})
		}
	}
	return chunks
}

// chunkProse packs paragraphs up to the size target, carrying a short
// trailing overlap into the next chunk so sentence context survives the
// cut.
func (s *chunkingService) chunkProse(text string) []models.Chunk {
	parts := splitAtParagraphs(text, s.cfg.ProseMaxChars, s.cfg.ProseOverlapChars)
	chunks := make([]models.Chunk, 0, len(parts))
	for _, part := range parts {
		chunks = append(chunks, models.Chunk{Text: part, Type: models.ChunkTypeProse})
	}
	return chunks
}

// splitAtParagraphs splits text into pieces of at most maxChars,
// cutting only at blank-line paragraph boundaries. A paragraph longer
// than maxChars stays intact. When overlap > 0, the tail of each piece
// is prepended to the next, cut at a word boundary.
func splitAtParagraphs(text string, maxChars, overlap int) []string {
	paragraphs := strings.Split(text, "\n\n")

	var pieces []string
	var buf strings.Builder
	carry := ""
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		piece := buf.String()
		pieces = append(pieces, piece)
		carry = tailWords(piece, overlap)
		buf.Reset()
	}
	for _, para := range paragraphs {
		if strings.TrimSpace(para) == "" {
			continue
		}
		addition := len(para) + 2
		if buf.Len() > 0 && buf.Len()+addition > maxChars {
			flush()
		}
		if buf.Len() == 0 && carry != "" {
			buf.WriteString(carry)
			carry = ""
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	flush()
	return pieces
}

// tailWords returns up to n trailing characters of s, extended left to
// the nearest word boundary. Returns empty when n is zero.
func tailWords(s string, n int) string {
	if n <= 0 || len(s) <= n {
		if n <= 0 {
			return ""
		}
		return s
	}
	tail := s[len(s)-n:]
	if idx := strings.IndexAny(tail, " \n\t"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
