package services

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/apperrors"
	"github.com/docquery-ai/docquery-engine/pkg/models"
)

// TabularExtractionService reconstructs a row/column table from
// delimited text, either a document's original text or text
// reassembled from row-window chunks. Extraction is stateless and
// idempotent; the same text always yields the same table.
type TabularExtractionService interface {
	// ExtractTable returns apperrors.ErrNoTable when the text holds
	// fewer than 2 non-empty lines or no header can be located. That is
	// a normal outcome, not a failure.
	ExtractTable(text string) (*models.Table, error)
}

type tabularExtractionService struct {
	logger *zap.Logger
}

// NewTabularExtractionService creates a new TabularExtractionService.
func NewTabularExtractionService(logger *zap.Logger) TabularExtractionService {
	return &tabularExtractionService{logger: logger}
}

var _ TabularExtractionService = (*tabularExtractionService)(nil)

// delimiterCandidates in priority order for ties.
var delimiterCandidates = []rune{',', '\t', ';', '|'}

// artifactLinePattern matches summary-chunk and separator lines that
// must not be mistaken for a header or a data row.
var artifactLinePattern = regexp.MustCompile(
	`(?i)^\s*(table summary\b|total rows:|columns:|sample values:|={3,}\s*$|-{3,}\s*$)`)

func (s *tabularExtractionService) ExtractTable(text string) (*models.Table, error) {
	lines := nonEmptyLines(text, 0)
	if len(lines) < 2 {
		return nil, apperrors.ErrNoTable
	}

	headerIdx, delim := locateHeader(lines)
	if headerIdx < 0 {
		return nil, apperrors.ErrNoTable
	}

	header := lines[headerIdx]
	columns := parseDelimitedLine(header, delim)
	for i := range columns {
		columns[i] = strings.TrimSpace(columns[i])
	}

	// Row-window chunks each repeat the header line. A recurring header
	// means the text was concatenated from windows without row-range
	// metadata, so overlapping rows are duplicated; dedupe exact repeats
	// then, and only then. Metadata-carrying windows are reassembled
	// positionally upstream and never reach this path, which is what
	// lets genuine duplicate rows in a real table survive.
	reassembled := false
	for _, line := range lines[headerIdx+1:] {
		if line == header {
			reassembled = true
			break
		}
	}

	var rows []models.Row
	var skipped int
	seen := make(map[string]bool)
	for _, line := range lines[headerIdx+1:] {
		if line == header || artifactLinePattern.MatchString(line) {
			continue
		}
		if reassembled {
			if seen[line] {
				continue
			}
			seen[line] = true
		}
		fields := parseDelimitedLine(line, delim)
		if len(fields) != len(columns) {
			skipped++
			continue
		}
		row := make(models.Row, len(columns))
		for i, col := range columns {
			row[col] = coerceValue(fields[i])
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, apperrors.ErrNoTable
	}
	if skipped > 0 {
		s.logger.Debug("Skipped malformed rows",
			zap.Int("skipped", skipped),
			zap.Int("parsed", len(rows)))
	}
	return models.NewTable(columns, rows), nil
}

// locateHeader finds the first line containing a delimiter that is not
// a metadata/summary artifact, and the delimiter it uses.
func locateHeader(lines []string) (int, rune) {
	for i, line := range lines {
		if artifactLinePattern.MatchString(line) {
			continue
		}
		delim := detectDelimiter(line)
		if delim == 0 {
			continue
		}
		return i, delim
	}
	return -1, 0
}

// detectDelimiter picks the candidate occurring most often outside
// quotes. Returns 0 when no candidate appears.
func detectDelimiter(line string) rune {
	best := rune(0)
	bestCount := 0
	for _, delim := range delimiterCandidates {
		count := len(parseDelimitedLine(line, delim)) - 1
		if count > bestCount {
			best = delim
			bestCount = count
		}
	}
	return best
}

// parseDelimitedLine splits one line on delim, honoring double-quoted
// fields: delimiters inside quotes are literal, and a doubled quote
// unescapes to one quote character.
func parseDelimitedLine(line string, delim rune) []string {
	var fields []string
	var field strings.Builder
	inQuotes := false
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == delim && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(ch)
		}
	}
	fields = append(fields, field.String())
	return fields
}

var (
	currencySymbols = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", ",", "", " ", "")
	magnitudeSuffix = map[byte]float64{'K': 1e3, 'M': 1e6, 'B': 1e9}
	booleanLiterals = map[string]bool{"true": true, "yes": true, "false": false, "no": false}
)

// coerceValue converts a raw cell to float64, bool, string, or nil.
// Numeric parsing strips currency symbols and thousands separators,
// divides percentages by 100, and expands K/M/B magnitude suffixes.
func coerceValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if n, ok := parseNumeric(trimmed); ok {
		return n
	}
	if b, ok := booleanLiterals[strings.ToLower(trimmed)]; ok {
		return b
	}
	return trimmed
}

func parseNumeric(s string) (float64, bool) {
	percent := false
	if strings.HasSuffix(s, "%") {
		percent = true
		s = strings.TrimSuffix(s, "%")
	}

	multiplier := 1.0
	if len(s) > 1 {
		last := s[len(s)-1]
		if last >= 'a' && last <= 'z' {
			last -= 'a' - 'A'
		}
		if m, ok := magnitudeSuffix[last]; ok {
			multiplier = m
			s = s[:len(s)-1]
		}
	}

	s = currencySymbols.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	n *= multiplier
	if percent {
		n /= 100
	}
	return n, true
}
