package services

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/config"
	"github.com/docquery-ai/docquery-engine/pkg/models"
)

// RelevanceScorerService ranks chunks against a question using weighted
// keyword, date, number, proximity, and metadata signals. It is the
// last resort when no structure exists. It never fails; absent signals
// simply score zero.
type RelevanceScorerService interface {
	Rank(question string, chunks []*models.Chunk) []models.ScoredChunk
}

type relevanceScorerService struct {
	weights config.ScorerConfig
	logger  *zap.Logger
}

// NewRelevanceScorerService creates a new RelevanceScorerService.
func NewRelevanceScorerService(weights config.ScorerConfig, logger *zap.Logger) RelevanceScorerService {
	return &relevanceScorerService{weights: weights, logger: logger}
}

var _ RelevanceScorerService = (*relevanceScorerService)(nil)

// stopWords filtered from question keywords.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "can": true, "did": true, "do": true,
	"does": true, "for": true, "from": true, "had": true, "has": true,
	"have": true, "how": true, "i": true, "in": true, "is": true, "it": true,
	"its": true, "many": true, "me": true, "much": true, "my": true,
	"of": true, "on": true, "or": true, "our": true, "s": true, "she": true,
	"tell": true, "than": true, "that": true, "the": true,
	"their": true, "them": true, "there": true, "these": true, "they": true,
	"this": true, "to": true, "was": true, "we": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"whose": true, "why": true, "will": true, "with": true, "you": true,
	"your": true,
}

var (
	wordTokenPattern = regexp.MustCompile(`[a-z0-9]+(?:'[a-z]+)?`)

	numberTokenPattern = regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?\b`)

	numericDatePattern   = regexp.MustCompile(`\b(\d{1,2})[/\-](\d{1,2})[/\-](\d{2,4})\b|\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthNameDatePattern = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)

	aggregatePhrasePattern = regexp.MustCompile(`(?i)\b(all|total|how many|sum|average|overall|every)\b`)
	factualPhrasePattern   = regexp.MustCompile(`(?i)\b(what|which|who|whose|where)\b`)
	temporalPhrasePattern  = regexp.MustCompile(`(?i)\b(when|date|day|month|year)\b`)
)

// dateRenderLayouts are the equivalent textual representations each
// literal date is expanded into before matching against chunk text.
var dateRenderLayouts = []string{
	"1/2/2006", "01/02/2006", "2006-01-02", "January 2, 2006", "Jan 2, 2006", "2 January 2006",
}

// questionProfile is everything extracted from the question once,
// before scoring any chunk.
type questionProfile struct {
	phrase    string
	words     []string
	keywords  []string
	dates     []string
	numbers   []string
	entities  []string
	aggregate bool
	factual   bool
	temporal  bool
}

func (s *relevanceScorerService) Rank(question string, chunks []*models.Chunk) []models.ScoredChunk {
	profile := profileQuestion(question)

	scored := make([]models.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		sc := s.scoreChunk(profile, chunk)
		scored = append(scored, sc)
	}

	// Stable: equal totals keep corpus order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Total > scored[j].Total
	})

	s.logger.Debug("Ranked chunks",
		zap.Int("chunks", len(chunks)),
		zap.Int("keywords", len(profile.keywords)),
		zap.Int("dates", len(profile.dates)))
	return scored
}

func profileQuestion(question string) questionProfile {
	lower := strings.ToLower(strings.TrimSpace(question))
	p := questionProfile{
		phrase:    lower,
		words:     wordTokenPattern.FindAllString(lower, -1),
		keywords:  keywordTokens(question),
		aggregate: aggregatePhrasePattern.MatchString(question),
		factual:   factualPhrasePattern.MatchString(question),
		temporal:  temporalPhrasePattern.MatchString(question),
	}

	p.dates = expandDates(question)

	for _, num := range numberTokenPattern.FindAllString(question, -1) {
		p.numbers = append(p.numbers, num)
		if stripped := strings.ReplaceAll(num, ",", ""); stripped != num {
			p.numbers = append(p.numbers, stripped)
		}
	}

	p.entities = capitalizedTokenPattern.FindAllString(question, -1)
	return p
}

// keywordTokens returns lowercase, stop-word-filtered tokens of at
// least three characters. Shared with key/value lookup.
func keywordTokens(text string) []string {
	var out []string
	for _, tok := range wordTokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < 3 || stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// expandDates finds literal dates in the question and emits each in
// multiple equivalent textual representations, lowercased.
func expandDates(question string) []string {
	var out []string
	add := func(t time.Time) {
		for _, layout := range dateRenderLayouts {
			out = append(out, strings.ToLower(t.Format(layout)))
		}
	}

	for _, m := range numericDatePattern.FindAllString(question, -1) {
		if t, ok := parseNumericDate(m); ok {
			add(t)
		} else {
			out = append(out, strings.ToLower(m))
		}
	}
	for _, m := range monthNameDatePattern.FindAllString(question, -1) {
		if t, ok := parseMonthNameDate(m); ok {
			add(t)
		} else {
			out = append(out, strings.ToLower(m))
		}
	}
	return dedupeStrings(out)
}

func parseNumericDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "1/2/2006", "01/02/2006", "1-2-2006", "1/2/06"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var ordinalSuffixPattern = regexp.MustCompile(`(\d)(?:st|nd|rd|th)\b`)

func parseMonthNameDate(s string) (time.Time, bool) {
	cleaned := strings.NewReplacer(",", "", ".", "").Replace(strings.ToLower(s))
	cleaned = ordinalSuffixPattern.ReplaceAllString(cleaned, "$1")
	for _, layout := range []string{"January 2 2006", "Jan 2 2006"} {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (s *relevanceScorerService) scoreChunk(p questionProfile, chunk *models.Chunk) models.ScoredChunk {
	chunkLower := strings.ToLower(chunk.Text)

	breakdown := models.ScoreBreakdown{
		Keyword:   keywordScore(p.keywords, chunkLower),
		Date:      signalScore(p.dates, chunkLower, 0.5),
		Number:    signalScore(p.numbers, chunkLower, 0.5),
		Proximity: proximityScore(p, chunkLower),
		Metadata:  metadataScore(p, chunk),
	}

	total := s.weights.KeywordWeight*breakdown.Keyword +
		s.weights.DateWeight*breakdown.Date +
		s.weights.NumberWeight*breakdown.Number +
		s.weights.ProximityWeight*breakdown.Proximity +
		s.weights.MetadataWeight*breakdown.Metadata

	return models.ScoredChunk{Chunk: chunk, Scores: breakdown, Total: total}
}

// keywordScore weights exact word-boundary hits double over bare
// substring hits, normalized to [0,1].
func keywordScore(keywords []string, chunkLower string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	var points float64
	for _, kw := range keywords {
		switch {
		case containsWord(chunkLower, kw):
			points += 2
		case strings.Contains(chunkLower, kw):
			points += 1
		}
	}
	return points / float64(2*len(keywords))
}

// signalScore grants a fixed bonus per literal found, capped at 1.
func signalScore(literals []string, chunkLower string, bonus float64) float64 {
	var score float64
	for _, lit := range literals {
		if strings.Contains(chunkLower, lit) {
			score += bonus
		}
	}
	if score > 1 {
		return 1
	}
	return score
}

// proximityScore measures the longest run of consecutive question words
// all individually present in the chunk, with a full score for an exact
// phrase match.
func proximityScore(p questionProfile, chunkLower string) float64 {
	if p.phrase != "" && strings.Contains(chunkLower, p.phrase) {
		return 1
	}
	if len(p.words) == 0 {
		return 0
	}
	longest, run := 0, 0
	for _, w := range p.words {
		if strings.Contains(chunkLower, w) {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return float64(longest) / float64(len(p.words))
}

// metadataScore grants type-specific bonuses: row chunks for factual
// questions, summary chunks for aggregate questions, heading overlap
// with question keywords.
func metadataScore(p questionProfile, chunk *models.Chunk) float64 {
	var score float64
	if p.factual && chunk.Type == models.ChunkTypeTabularRows {
		score += 0.3
	}
	if p.aggregate && chunk.Type == models.ChunkTypeTabularSummary {
		score += 0.5
	}
	if p.temporal && chunk.Type == models.ChunkTypeProse {
		score += 0.1
	}
	if chunk.Metadata.Heading != "" {
		headingLower := strings.ToLower(chunk.Metadata.Heading)
		for _, kw := range p.keywords {
			if strings.Contains(headingLower, kw) {
				score += 0.2
				break
			}
		}
	}
	if score > 1 {
		return 1
	}
	return score
}
