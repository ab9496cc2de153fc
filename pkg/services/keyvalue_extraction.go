package services

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/apperrors"
	"github.com/docquery-ai/docquery-engine/pkg/models"
)

// KeyValueExtractionService pulls field/value pairs, sections, lists,
// dates, and currency amounts out of unstructured prose, and answers
// questions by matching question tokens against field names.
type KeyValueExtractionService interface {
	// ExtractFields returns apperrors.ErrNoFields when nothing parsable
	// was found. That advances the router, it is not a failure.
	ExtractFields(text string) (*models.FieldSet, error)

	// Lookup matches question tokens against field names (substring in
	// either direction) and returns matching pairs with their source
	// section. Empty when nothing matches.
	Lookup(question string, fields *models.FieldSet) []models.FieldMatch
}

type keyValueExtractionService struct {
	logger *zap.Logger
}

// NewKeyValueExtractionService creates a new KeyValueExtractionService.
func NewKeyValueExtractionService(logger *zap.Logger) KeyValueExtractionService {
	return &keyValueExtractionService{logger: logger}
}

var _ KeyValueExtractionService = (*keyValueExtractionService)(nil)

// knownFieldPatterns is the curated label list. Each entry carries the
// normalized field name and the pattern whose first capture group is
// the value. Matched before the generic Key: Value pattern so label
// variants ("Policy No", "Policy #") normalize to one name.
var knownFieldPatterns = []struct {
	Name    string
	Pattern *regexp.Regexp
}{
	{"Policy Number", regexp.MustCompile(`(?i)\bpolicy\s*(?:no\.?|number|#)\s*[:\-]?\s*([A-Za-z0-9][A-Za-z0-9\-/]*)`)},
	{"Account Number", regexp.MustCompile(`(?i)\baccount\s*(?:no\.?|number|#)\s*[:\-]?\s*([A-Za-z0-9][A-Za-z0-9\-/]*)`)},
	{"Invoice Number", regexp.MustCompile(`(?i)\binvoice\s*(?:no\.?|number|#)\s*[:\-]?\s*([A-Za-z0-9][A-Za-z0-9\-/]*)`)},
	{"Claim Number", regexp.MustCompile(`(?i)\bclaim\s*(?:no\.?|number|#)\s*[:\-]?\s*([A-Za-z0-9][A-Za-z0-9\-/]*)`)},
	{"Premium", regexp.MustCompile(`(?i)\bpremium(?:\s+amount)?\s*[:\-]?\s*([$€£]?\s?[\d,]+(?:\.\d+)?)`)},
	{"Total Amount", regexp.MustCompile(`(?i)\btotal(?:\s+amount)?(?:\s+due)?\s*[:\-]?\s*([$€£]?\s?[\d,]+(?:\.\d+)?)`)},
	{"Effective Date", regexp.MustCompile(`(?i)\beffective\s+(?:date|from)\s*[:\-]?\s*([A-Za-z0-9,/\- ]+\d)`)},
	{"Expiry Date", regexp.MustCompile(`(?i)\b(?:expiry|expiration)\s+date\s*[:\-]?\s*([A-Za-z0-9,/\- ]+\d)`)},
	{"Date Of Birth", regexp.MustCompile(`(?i)\b(?:date\s+of\s+birth|dob)\s*[:\-]?\s*([A-Za-z0-9,/\- ]+\d)`)},
	{"Insured Name", regexp.MustCompile(`(?i)\b(?:insured|policyholder)(?:\s+name)?\s*[:\-]\s*([A-Za-z][A-Za-z .'\-]+)`)},
	{"Email", regexp.MustCompile(`(?i)\be-?mail\s*[:\-]?\s*([\w.+\-]+@[\w\-]+\.[\w.]+)`)},
	{"Phone", regexp.MustCompile(`(?i)\b(?:phone|telephone|tel|mobile)\s*(?:no\.?|number)?\s*[:\-]?\s*(\+?[\d][\d\s().\-]{6,})`)},
}

var (
	// Generic "Key: Value" lines. Key is short, starts with a letter,
	// and does not look like a URL scheme or clock time.
	genericKVPattern = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9 ./#&'\-]{1,40}?)\s*[:：]\s+(\S.*)$`)

	decoratedHeadingPattern = regexp.MustCompile(`^\s*(?:={3,}|-{3,})\s*(.+?)\s*(?:={3,}|-{3,})\s*$`)
	capitalizedLinePattern  = regexp.MustCompile(`^[A-Z][A-Za-z0-9 &\-]{2,59}$`)

	listItemPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d{1,2}[.)]|[a-z][.)])\s+(\S.*)$`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+\d{4}\b`),
	}

	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d{1,2})?`),
		regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d{1,2})?\s?(?:usd|eur|gbp|dollars|euros|pounds)\b`),
	}
)

func (s *keyValueExtractionService) ExtractFields(text string) (*models.FieldSet, error) {
	fs := &models.FieldSet{
		Sections: make(map[string]string),
	}

	lines := strings.Split(text, "\n")
	section := ""
	var sectionBody []string
	flushSection := func() {
		if section != "" {
			fs.Sections[section] = strings.TrimSpace(strings.Join(sectionBody, "\n"))
		}
		sectionBody = nil
	}

	seenField := make(map[string]bool)
	addField := func(name, value string) {
		name = normalizeFieldName(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" || seenField[name] {
			return
		}
		seenField[name] = true
		fs.Fields = append(fs.Fields, models.Field{Name: name, Value: value, Section: section})
	}

	var currentList []string
	flushList := func() {
		if len(currentList) >= 2 {
			fs.Lists = append(fs.Lists, models.List{Items: currentList})
		}
		currentList = nil
	}

	for i, line := range lines {
		if heading, ok := detectHeading(line, lines, i); ok {
			flushList()
			flushSection()
			section = heading
			continue
		}
		sectionBody = append(sectionBody, line)

		if m := listItemPattern.FindStringSubmatch(line); m != nil {
			currentList = append(currentList, strings.TrimSpace(m[1]))
			continue
		}
		flushList()

		matched := false
		for _, kf := range knownFieldPatterns {
			if m := kf.Pattern.FindStringSubmatch(line); m != nil {
				addField(kf.Name, m[1])
				matched = true
				break
			}
		}
		if !matched {
			if m := genericKVPattern.FindStringSubmatch(line); m != nil {
				addField(m[1], m[2])
			}
		}
	}
	flushList()
	flushSection()

	for _, p := range datePatterns {
		fs.Dates = appendUnique(fs.Dates, p.FindAllString(text, -1))
	}
	for _, p := range amountPatterns {
		fs.Amounts = appendUnique(fs.Amounts, p.FindAllString(text, -1))
	}

	if len(fs.Fields) == 0 && len(fs.Dates) == 0 && len(fs.Amounts) == 0 {
		return nil, apperrors.ErrNoFields
	}

	s.logger.Debug("Extracted fields",
		zap.Int("fields", len(fs.Fields)),
		zap.Int("sections", len(fs.Sections)),
		zap.Int("dates", len(fs.Dates)),
		zap.Int("amounts", len(fs.Amounts)))
	return fs, nil
}

func (s *keyValueExtractionService) Lookup(question string, fields *models.FieldSet) []models.FieldMatch {
	if fields == nil {
		return nil
	}
	tokens := keywordTokens(question)
	if len(tokens) == 0 {
		return nil
	}

	var matches []models.FieldMatch
	for _, f := range fields.Fields {
		nameLower := strings.ToLower(f.Name)
		if fieldNameMatches(nameLower, tokens) {
			matches = append(matches, models.FieldMatch{
				Field:  f.Name,
				Value:  f.Value,
				Source: f.Section,
			})
		}
	}
	return matches
}

// fieldNameMatches applies substring matching in either direction: a
// question token containing a name word, or a name word containing a
// question token. Tokens shorter than 3 runes are too noisy to match.
func fieldNameMatches(nameLower string, tokens []string) bool {
	nameWords := strings.Fields(nameLower)
	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		for _, w := range nameWords {
			if strings.Contains(w, tok) || strings.Contains(tok, w) {
				return true
			}
		}
	}
	return false
}

// detectHeading recognizes `=== Heading ===`, `--- Heading ---`, and
// bare capitalized lines followed by body text.
func detectHeading(line string, lines []string, idx int) (string, bool) {
	if m := decoratedHeadingPattern.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	trimmed := strings.TrimSpace(line)
	if !capitalizedLinePattern.MatchString(trimmed) {
		return "", false
	}
	// Either ALL CAPS, or a short run of capitalized words. Ordinary
	// sentences without terminal punctuation stay body text.
	words := strings.Fields(trimmed)
	if trimmed != strings.ToUpper(trimmed) {
		if len(words) > 6 {
			return "", false
		}
		for _, w := range words {
			if w[0] >= 'a' && w[0] <= 'z' {
				return "", false
			}
		}
	}
	// A capitalized line only counts as a heading when something
	// follows it; a trailing capitalized line is just text.
	for _, next := range lines[idx+1:] {
		if strings.TrimSpace(next) != "" {
			return trimmed, true
		}
	}
	return "", false
}

// normalizeFieldName title-cases and collapses whitespace: "policy no"
// and "Policy  Number " both normalize consistently.
func normalizeFieldName(name string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func appendUnique(dst []string, src []string) []string {
	for _, s := range src {
		dup := false
		for _, existing := range dst {
			if strings.EqualFold(existing, s) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}
