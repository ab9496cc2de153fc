package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/apperrors"
	"github.com/docquery-ai/docquery-engine/pkg/logging"
	"github.com/docquery-ai/docquery-engine/pkg/models"
)

// ChunkProvider is the external document provider the router reads
// from. Chunk retrieval is the router's only blocking call.
type ChunkProvider interface {
	GetChunks(ctx context.Context, documentID uuid.UUID) ([]*models.Chunk, error)
	// GetOriginalText returns the losslessly stored source text, or
	// apperrors.ErrNotFound when ingestion did not keep it.
	GetOriginalText(ctx context.Context, documentID uuid.UUID) (string, error)
}

// QueryRouterService orchestrates the priority chain:
// tabular query, then key/value lookup, then deferral to the caller's
// ranked-retrieval fallback. The router never guesses: when structure
// cannot be recovered it reports no_data rather than approximating.
type QueryRouterService interface {
	Answer(ctx context.Context, question string, documentIDs []uuid.UUID) (*models.Answer, error)
}

type queryRouterService struct {
	provider ChunkProvider
	tabular  TabularExtractionService
	intents  QueryIntentService
	executor QueryExecutorService
	keyvalue KeyValueExtractionService
	logger   *zap.Logger
}

// NewQueryRouterService creates a new QueryRouterService.
func NewQueryRouterService(
	provider ChunkProvider,
	tabular TabularExtractionService,
	intents QueryIntentService,
	executor QueryExecutorService,
	keyvalue KeyValueExtractionService,
	logger *zap.Logger,
) QueryRouterService {
	return &queryRouterService{
		provider: provider,
		tabular:  tabular,
		intents:  intents,
		executor: executor,
		keyvalue: keyvalue,
		logger:   logger,
	}
}

var _ QueryRouterService = (*queryRouterService)(nil)

// greetingPhrases short-circuit retrieval entirely.
var greetingPhrases = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true,
	"good morning": true, "good afternoon": true, "good evening": true,
	"thanks": true, "thank you": true, "how are you": true, "ok": true,
	"okay": true, "bye": true, "goodbye": true,
}

// interrogativeWords mark a short question as a real query rather than
// small talk.
var interrogativeWords = map[string]bool{
	"what": true, "which": true, "who": true, "whose": true, "where": true,
	"when": true, "why": true, "how": true, "is": true, "are": true,
	"do": true, "does": true, "can": true, "list": true, "show": true,
	"count": true, "sum": true, "average": true,
}

// docMaterial is what one document contributes to a request: its
// chunks, optional original text, and a per-request memoized table.
type docMaterial struct {
	id       uuid.UUID
	chunks   []*models.Chunk
	original string
	table    *models.Table
	tableErr error
}

func (r *queryRouterService) Answer(ctx context.Context, question string, documentIDs []uuid.UUID) (*models.Answer, error) {
	if isSmallTalk(question) {
		r.logger.Debug("Question classified as small talk",
			zap.String("question", logging.SanitizeQuestion(question)))
		return &models.Answer{Kind: models.AnswerSmallTalk}, nil
	}

	materials, err := r.gather(ctx, documentIDs)
	if err != nil {
		return nil, err
	}

	// Attempt 1: deterministic tabular query.
	answer := r.attemptTabular(question, materials)
	if answer != nil {
		return answer, nil
	}

	// Attempt 2: key/value field lookup, merged across documents.
	if matches := r.attemptKeyValue(question, materials); len(matches) > 0 {
		return &models.Answer{Kind: models.AnswerFields, Fields: matches}, nil
	}

	// Both structured attempts failed; the caller is expected to run
	// ranked retrieval over the chunk set.
	return &models.Answer{Kind: models.AnswerNoData}, nil
}

// gather fetches every document's chunks and original text in
// parallel. Extraction for one document never depends on another's
// result, so the only merge point is the ordered slice itself.
func (r *queryRouterService) gather(ctx context.Context, documentIDs []uuid.UUID) ([]*docMaterial, error) {
	materials := make([]*docMaterial, len(documentIDs))
	errs := make([]error, len(documentIDs))

	var wg sync.WaitGroup
	for i, id := range documentIDs {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			m := &docMaterial{id: id}
			chunks, err := r.provider.GetChunks(ctx, id)
			if err != nil {
				errs[i] = err
				return
			}
			m.chunks = chunks
			original, err := r.provider.GetOriginalText(ctx, id)
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				errs[i] = err
				return
			}
			m.original = original
			materials[i] = m
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return materials, nil
}

// attemptTabular tries each document in request order and answers from
// the first one that yields a table. Returns nil when no document has
// tabular structure; returns an explicit no_data answer when a table
// exists but the target column cannot be determined; that outcome
// must not fall through to field lookup.
func (r *queryRouterService) attemptTabular(question string, materials []*docMaterial) *models.Answer {
	for _, m := range materials {
		table := r.tableFor(m)
		if table == nil {
			continue
		}

		intent := r.intents.ParseIntent(question, table)
		result, err := r.executor.Execute(table, intent)
		if err != nil {
			if errors.Is(err, apperrors.ErrAmbiguousColumn) {
				r.logger.Debug("Aggregate with unresolvable column",
					zap.String("document_id", m.id.String()),
					zap.String("operation", string(intent.Operation)))
				return &models.Answer{
					Kind:   models.AnswerNoData,
					Reason: err.Error(),
				}
			}
			continue
		}
		return &models.Answer{Kind: models.AnswerTabular, Tabular: result}
	}
	return nil
}

// tableFor reconstructs (and memoizes, per request) a document's
// table: from the lossless original text when available, otherwise
// from its row-window chunks reassembled in index order.
func (r *queryRouterService) tableFor(m *docMaterial) *models.Table {
	if m.table != nil || m.tableErr != nil {
		return m.table
	}

	text := m.original
	if text == "" {
		text = reassembleTabularText(m.chunks)
	}
	if strings.TrimSpace(text) == "" {
		m.tableErr = apperrors.ErrNoTable
		return nil
	}

	table, err := r.tabular.ExtractTable(text)
	if err != nil {
		m.tableErr = err
		return nil
	}
	m.table = table
	return table
}

// reassembleTabularText rebuilds delimited text from row-window chunks
// in index order; summary chunks are skipped since their lines are
// artifacts, not rows. When every window carries row-range metadata the
// overlap is cut positionally, which keeps genuine duplicate rows and
// makes aggregates over the rebuilt table exact. Without the metadata
// the windows are concatenated as-is and the extractor's header-recurrence
// dedupe takes over.
func reassembleTabularText(chunks []*models.Chunk) string {
	var tabular []*models.Chunk
	for _, c := range chunks {
		if c.Type == models.ChunkTypeTabularRows {
			tabular = append(tabular, c)
		}
	}
	if len(tabular) == 0 {
		return ""
	}
	sort.SliceStable(tabular, func(i, j int) bool {
		return tabular[i].Index < tabular[j].Index
	})

	if hasRowRanges(tabular) {
		return reassembleByRowRange(tabular)
	}

	var b strings.Builder
	for _, c := range tabular {
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func hasRowRanges(chunks []*models.Chunk) bool {
	for _, c := range chunks {
		if c.Metadata.RowStart < 1 || c.Metadata.RowEnd < c.Metadata.RowStart {
			return false
		}
	}
	return true
}

// reassembleByRowRange emits the header once, then for each window only
// the data rows past the previous window's RowEnd.
func reassembleByRowRange(chunks []*models.Chunk) string {
	var b strings.Builder
	lastRow := 0
	for i, c := range chunks {
		lines := nonEmptyLines(c.Text, 0)
		if len(lines) < 2 {
			continue
		}
		if i == 0 {
			b.WriteString(lines[0])
			b.WriteString("\n")
		}
		rows := lines[1:]
		skip := lastRow - c.Metadata.RowStart + 1
		if skip < 0 {
			skip = 0
		}
		if skip > len(rows) {
			skip = len(rows)
		}
		for _, row := range rows[skip:] {
			b.WriteString(row)
			b.WriteString("\n")
		}
		if c.Metadata.RowEnd > lastRow {
			lastRow = c.Metadata.RowEnd
		}
	}
	return b.String()
}

// attemptKeyValue extracts fields from every document's text and
// merges the matches in document order. Tabular chunks are excluded:
// delimited rows are never key/value prose, and their cells would
// pollute the generic label matcher.
func (r *queryRouterService) attemptKeyValue(question string, materials []*docMaterial) []models.FieldMatch {
	var matches []models.FieldMatch
	for _, m := range materials {
		text := m.original
		if text == "" {
			var b strings.Builder
			for _, c := range m.chunks {
				if c.IsTabular() {
					continue
				}
				b.WriteString(c.Text)
				b.WriteString("\n")
			}
			text = b.String()
		}
		fields, err := r.keyvalue.ExtractFields(text)
		if err != nil {
			continue
		}
		matches = append(matches, r.keyvalue.Lookup(question, fields)...)
	}
	return matches
}

// isSmallTalk matches the fixed greeting list, or any question of
// fewer than three words with no interrogative.
func isSmallTalk(question string) bool {
	normalized := strings.ToLower(strings.TrimSpace(question))
	normalized = strings.TrimRight(normalized, "!.? ")
	if greetingPhrases[normalized] {
		return true
	}
	words := strings.Fields(normalized)
	if len(words) >= 3 {
		return false
	}
	for _, w := range words {
		if interrogativeWords[w] {
			return false
		}
	}
	return len(words) > 0
}
