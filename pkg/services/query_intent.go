package services

import (
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/logging"
	"github.com/docquery-ai/docquery-engine/pkg/models"
)

// QueryIntentService classifies a free-text question into an operation,
// target columns, filter predicates, grouping, ordering, and limit,
// all resolved against a concrete table's columns and known values.
type QueryIntentService interface {
	ParseIntent(question string, table *models.Table) *models.QueryIntent
}

type queryIntentService struct {
	logger *zap.Logger
}

// NewQueryIntentService creates a new QueryIntentService.
func NewQueryIntentService(logger *zap.Logger) QueryIntentService {
	return &queryIntentService{logger: logger}
}

var _ QueryIntentService = (*queryIntentService)(nil)

// operationKeywords maps keyword classes to operations. Order matters:
// the first class with a hit wins, so count phrases beat the bare
// "total" of sum, and group beats the "by" that also appears in
// ordering phrases.
var operationKeywords = []struct {
	Op      models.Operation
	Phrases []string
}{
	{models.OpCount, []string{"how many", "count", "number of"}},
	{models.OpGroup, []string{"group by", "grouped by", "categorize", "breakdown by", "break down by"}},
	{models.OpSum, []string{"sum", "total"}},
	{models.OpAvg, []string{"average", "mean", "avg"}},
	{models.OpMax, []string{"max", "maximum", "highest", "largest", "greatest", "top"}},
	{models.OpMin, []string{"min", "minimum", "lowest", "smallest", "bottom"}},
	{models.OpSelect, []string{"list", "show", "display", "which", "what are"}},
}

var (
	distinctPattern   = regexp.MustCompile(`(?i)\b(unique|distinct|different)\b`)
	limitPattern      = regexp.MustCompile(`(?i)\b(?:top|first|bottom|last)\s+(\d+)\b`)
	descendingPattern = regexp.MustCompile(`(?i)\b(highest|greatest|largest|descending|most)\b`)
	ascendingPattern  = regexp.MustCompile(`(?i)\b(lowest|smallest|ascending|least)\b`)
	groupByPattern    = regexp.MustCompile(`(?i)\bby\s+([a-z_][a-z0-9_ ]*)`)

	capitalizedTokenPattern = regexp.MustCompile(`\b[A-Z][A-Za-z0-9]*\b`)

	// regexSafeValuePattern classifies candidate filter values. Values
	// containing regex metacharacters (parentheses, brackets, etc.) are
	// matched by literal substring instead of compiled patterns.
	regexSafeValuePattern = regexp.MustCompile(`^[A-Za-z0-9 ._/\-]+$`)

	numericComparisonOps = `>=|<=|!=|=|>|<`

	dateRangePattern = regexp.MustCompile(
		`(?i)\b(on|after|before|since|until)\s+(` +
			`\d{4}-\d{2}-\d{2}|\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}|` +
			`(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4})`)
)

func (s *queryIntentService) ParseIntent(question string, table *models.Table) *models.QueryIntent {
	questionLower := strings.ToLower(question)

	intent := &models.QueryIntent{
		Operation: detectOperation(questionLower),
		Distinct:  distinctPattern.MatchString(question),
	}

	intent.TargetColumns = resolveTargetColumns(questionLower, table)
	if len(intent.TargetColumns) == 0 && isAggregate(intent.Operation) {
		// No column named in the question: fall back to the first
		// numeric column. If there is none the executor refuses to
		// guess and reports an ambiguous column.
		if numeric := table.NumericColumns(); len(numeric) > 0 {
			intent.TargetColumns = []string{numeric[0]}
		}
	}

	intent.Filters = s.extractFilters(question, questionLower, table)

	if m := groupByPattern.FindStringSubmatch(questionLower); m != nil {
		if col, ok := matchColumnName(strings.TrimSpace(m[1]), table); ok {
			intent.GroupBy = col
		}
	}

	switch {
	case descendingPattern.MatchString(question):
		intent.Order = models.OrderDescending
	case ascendingPattern.MatchString(question):
		intent.Order = models.OrderAscending
	}

	if m := limitPattern.FindStringSubmatch(question); m != nil {
		intent.Limit = atoiSafe(m[1])
	}

	s.logger.Debug("Parsed query intent",
		zap.String("question", logging.SanitizeQuestion(question)),
		zap.String("operation", string(intent.Operation)),
		zap.Strings("targets", intent.TargetColumns),
		zap.Int("filters", len(intent.Filters)))
	return intent
}

func detectOperation(questionLower string) models.Operation {
	for _, class := range operationKeywords {
		for _, phrase := range class.Phrases {
			if containsWord(questionLower, phrase) {
				return class.Op
			}
		}
	}
	return models.OpSelect
}

func isAggregate(op models.Operation) bool {
	switch op {
	case models.OpSum, models.OpAvg, models.OpMax, models.OpMin:
		return true
	}
	return false
}

// resolveTargetColumns finds columns named directly in the question,
// tolerating singular/plural mismatch ("employees" matches a column
// named "employee").
func resolveTargetColumns(questionLower string, table *models.Table) []string {
	var targets []string
	for _, col := range table.Columns {
		if columnMentioned(questionLower, col) {
			targets = append(targets, col)
		}
	}
	return targets
}

// matchColumnName resolves a single extracted token to a column name.
func matchColumnName(token string, table *models.Table) (string, bool) {
	for _, col := range table.Columns {
		if columnMentioned(strings.ToLower(token), col) {
			return col, true
		}
	}
	return "", false
}

func columnMentioned(questionLower, column string) bool {
	colLower := strings.ToLower(strings.TrimSpace(column))
	colLower = strings.ReplaceAll(colLower, "_", " ")
	if colLower == "" {
		return false
	}
	variants := []string{colLower, inflection.Plural(colLower), inflection.Singular(colLower)}
	for _, v := range variants {
		if containsWord(questionLower, v) {
			return true
		}
	}
	return false
}

// containsWord reports whether phrase occurs in text at word
// boundaries.
func containsWord(text, phrase string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], phrase)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// extractFilters accumulates filters from three strategies in order:
// exact column-value matching, capitalized-token fallback, and
// numeric/date comparison extraction.
func (s *queryIntentService) extractFilters(question, questionLower string, table *models.Table) []models.Filter {
	filters := extractValueFilters(questionLower, table)

	if len(filters) == 0 {
		filters = extractCapitalizedTokenFilters(question, table)
	}

	filters = append(filters, extractNumericFilters(questionLower, table)...)
	filters = append(filters, extractDateRangeFilters(questionLower, table)...)
	return filters
}

// valueMatcher compares one candidate column value against question
// text. The regex-safe flag is classified once per distinct value;
// unsafe values (parentheses, brackets, etc.) fall back to literal
// substring comparison.
type valueMatcher struct {
	column    string
	value     string
	regexSafe bool
	patterns  []*regexp.Regexp
}

func newValueMatcher(column, value string) valueMatcher {
	m := valueMatcher{
		column:    column,
		value:     value,
		regexSafe: regexSafeValuePattern.MatchString(value),
	}
	if !m.regexSafe {
		return m
	}
	col := regexp.QuoteMeta(strings.ToLower(strings.ReplaceAll(column, "_", " ")))
	val := regexp.QuoteMeta(strings.ToLower(value))
	for _, tmpl := range []string{
		`\b` + col + `\s+` + val + `\b`,
		`\b(?:have|has|with|at)\s+` + col + `\s+` + val + `\b`,
		`\b` + val + `\s+` + col + `\b`,
	} {
		m.patterns = append(m.patterns, regexp.MustCompile(tmpl))
	}
	return m
}

func (m valueMatcher) matches(questionLower string) bool {
	if !m.regexSafe {
		return strings.Contains(questionLower, strings.ToLower(m.value))
	}
	for _, p := range m.patterns {
		if p.MatchString(questionLower) {
			return true
		}
	}
	return false
}

// extractValueFilters is strategy 1: pattern-anchored comparison of
// each column's known values against the question. One filter per
// column; the first matching value wins.
func extractValueFilters(questionLower string, table *models.Table) []models.Filter {
	var filters []models.Filter
	for _, col := range table.Columns {
		if table.Types[col] != models.ColumnTypeString {
			continue
		}
		for _, value := range table.DistinctStrings(col) {
			if newValueMatcher(col, value).matches(questionLower) {
				filters = append(filters, models.Filter{
					Column:   col,
					Operator: models.FilterEq,
					Value:    value,
				})
				break
			}
		}
	}
	return filters
}

// extractCapitalizedTokenFilters is strategy 2: when strategy 1 found
// nothing, match capitalized question tokens against any column's
// known values.
func extractCapitalizedTokenFilters(question string, table *models.Table) []models.Filter {
	tokens := capitalizedTokenPattern.FindAllString(question, -1)
	if len(tokens) == 0 {
		return nil
	}
	var filters []models.Filter
	matched := make(map[string]bool)
	for _, col := range table.Columns {
		if table.Types[col] != models.ColumnTypeString || matched[col] {
			continue
		}
		for _, value := range table.DistinctStrings(col) {
			for _, tok := range tokens {
				if strings.EqualFold(tok, value) {
					filters = append(filters, models.Filter{
						Column:   col,
						Operator: models.FilterEq,
						Value:    value,
					})
					matched[col] = true
					break
				}
			}
			if matched[col] {
				break
			}
		}
	}
	return filters
}

// extractNumericFilters is strategy 3a: `column operator number`.
func extractNumericFilters(questionLower string, table *models.Table) []models.Filter {
	var filters []models.Filter
	for _, col := range table.Columns {
		if table.Types[col] != models.ColumnTypeNumber {
			continue
		}
		colPattern := regexp.QuoteMeta(strings.ToLower(strings.ReplaceAll(col, "_", " ")))
		re := regexp.MustCompile(`\b` + colPattern + `\s*(` + numericComparisonOps + `)\s*\$?([\d,]+(?:\.\d+)?)`)
		if m := re.FindStringSubmatch(questionLower); m != nil {
			filters = append(filters, models.Filter{
				Column:   col,
				Operator: models.FilterOperator(m[1]),
				Value:    strings.ReplaceAll(m[2], ",", ""),
			})
		}
	}
	return filters
}

// dateRangeOperators maps range words to comparison operators.
var dateRangeOperators = map[string]models.FilterOperator{
	"on":     models.FilterEq,
	"after":  models.FilterGt,
	"before": models.FilterLt,
	"since":  models.FilterGte,
	"until":  models.FilterLte,
}

// extractDateRangeFilters is strategy 3b: `on/after/before/since/until
// DATE` against the first column whose name contains "date".
func extractDateRangeFilters(questionLower string, table *models.Table) []models.Filter {
	var dateCol string
	for _, col := range table.Columns {
		if strings.Contains(strings.ToLower(col), "date") {
			dateCol = col
			break
		}
	}
	if dateCol == "" {
		return nil
	}
	var filters []models.Filter
	for _, m := range dateRangePattern.FindAllStringSubmatch(questionLower, -1) {
		filters = append(filters, models.Filter{
			Column:   dateCol,
			Operator: dateRangeOperators[strings.ToLower(m[1])],
			Value:    m[2],
		})
	}
	return filters
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
