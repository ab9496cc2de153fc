package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/apperrors"
	"github.com/docquery-ai/docquery-engine/pkg/config"
	"github.com/docquery-ai/docquery-engine/pkg/models"
)

// QueryExecutorService runs a parsed intent deterministically over an
// extracted table. Aggregates are exact; when the target column cannot
// be resolved the executor returns apperrors.ErrAmbiguousColumn instead
// of guessing.
type QueryExecutorService interface {
	Execute(table *models.Table, intent *models.QueryIntent) (models.TabularResult, error)
}

type queryExecutorService struct {
	outlierTrim config.OutlierTrimConfig
	logger      *zap.Logger
}

// NewQueryExecutorService creates a new QueryExecutorService.
func NewQueryExecutorService(outlierTrim config.OutlierTrimConfig, logger *zap.Logger) QueryExecutorService {
	return &queryExecutorService{outlierTrim: outlierTrim, logger: logger}
}

var _ QueryExecutorService = (*queryExecutorService)(nil)

func (s *queryExecutorService) Execute(table *models.Table, intent *models.QueryIntent) (models.TabularResult, error) {
	rows := applyFilters(table, intent.Filters)
	processed := len(rows)

	// A valid table with zero rows after filtering is an explicit
	// empty result, never an error.
	switch intent.Operation {
	case models.OpCount:
		return s.executeCount(table, intent, rows), nil
	case models.OpSum:
		return s.executeSum(table, intent, rows)
	case models.OpAvg:
		return s.executeAvg(table, intent, rows)
	case models.OpMax:
		return s.executeExtreme(table, intent, rows, true)
	case models.OpMin:
		return s.executeExtreme(table, intent, rows, false)
	case models.OpGroup:
		return s.executeGroup(table, intent, rows)
	default:
		return s.executeSelect(table, intent, rows, processed), nil
	}
}

// applyFilters keeps rows satisfying every filter. String comparisons
// are trimmed and case-insensitive; numeric comparisons are numeric; a
// type mismatch fails the row for that filter.
func applyFilters(table *models.Table, filters []models.Filter) []models.Row {
	if len(filters) == 0 {
		return table.Rows
	}
	var out []models.Row
	for _, row := range table.Rows {
		pass := true
		for _, f := range filters {
			if !filterMatches(row[f.Column], f) {
				pass = false
				break
			}
		}
		if pass {
			out = append(out, row)
		}
	}
	return out
}

func filterMatches(cell any, f models.Filter) bool {
	if cell == nil {
		return false
	}

	if num, ok := cell.(float64); ok {
		want, err := strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
		if err != nil {
			return false
		}
		switch f.Operator {
		case models.FilterEq:
			return num == want
		case models.FilterNeq:
			return num != want
		case models.FilterGt:
			return num > want
		case models.FilterLt:
			return num < want
		case models.FilterGte:
			return num >= want
		case models.FilterLte:
			return num <= want
		case models.FilterContains:
			return strings.Contains(formatCell(num), f.Value)
		}
		return false
	}

	cellStr := strings.TrimSpace(formatCell(cell))
	want := strings.TrimSpace(f.Value)
	switch f.Operator {
	case models.FilterEq:
		return strings.EqualFold(cellStr, want)
	case models.FilterNeq:
		return !strings.EqualFold(cellStr, want)
	case models.FilterContains:
		return strings.Contains(strings.ToLower(cellStr), strings.ToLower(want))
	case models.FilterGt, models.FilterLt, models.FilterGte, models.FilterLte:
		// Lexicographic comparison covers ISO dates and similar
		// sortable strings.
		cmp := strings.Compare(strings.ToLower(cellStr), strings.ToLower(want))
		switch f.Operator {
		case models.FilterGt:
			return cmp > 0
		case models.FilterLt:
			return cmp < 0
		case models.FilterGte:
			return cmp >= 0
		default:
			return cmp <= 0
		}
	}
	return false
}

func (s *queryExecutorService) executeCount(table *models.Table, intent *models.QueryIntent, rows []models.Row) *models.CountResult {
	result := &models.CountResult{
		Operation:     models.OpCount,
		RowsProcessed: len(rows),
	}

	if intent.GroupBy != "" {
		result.GroupBy = intent.GroupBy
		result.Groups = make(map[string]int)
		for _, row := range rows {
			result.Groups[formatCell(row[intent.GroupBy])]++
		}
		result.Count = len(rows)
		return result
	}

	if intent.Distinct && intent.TargetColumn() != "" {
		result.Distinct = true
		seen := make(map[string]bool)
		for _, row := range rows {
			v := formatCell(row[intent.TargetColumn()])
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			result.Values = append(result.Values, v)
		}
		result.Count = len(result.Values)
		return result
	}

	result.Count = len(rows)
	return result
}

func (s *queryExecutorService) executeSum(table *models.Table, intent *models.QueryIntent, rows []models.Row) (*models.SumResult, error) {
	col, err := resolveNumericTarget(table, intent)
	if err != nil {
		return nil, err
	}
	values := numericValues(rows, col)
	values = s.trimOutliers(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return &models.SumResult{
		Operation:     models.OpSum,
		TargetColumn:  col,
		Sum:           sum,
		ValuesCounted: len(values),
		RowsProcessed: len(rows),
	}, nil
}

func (s *queryExecutorService) executeAvg(table *models.Table, intent *models.QueryIntent, rows []models.Row) (*models.AvgResult, error) {
	col, err := resolveNumericTarget(table, intent)
	if err != nil {
		return nil, err
	}
	values := numericValues(rows, col)
	values = s.trimOutliers(values)
	result := &models.AvgResult{
		Operation:     models.OpAvg,
		TargetColumn:  col,
		ValuesCounted: len(values),
		RowsProcessed: len(rows),
	}
	if len(values) == 0 {
		return result, nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	result.Average = sum / float64(len(values))
	return result, nil
}

// executeExtreme stable-sorts the filtered rows by the target column
// (numerically when the column is numeric, lexicographically otherwise)
// and returns the top/bottom limit rows plus the extreme value.
func (s *queryExecutorService) executeExtreme(table *models.Table, intent *models.QueryIntent, rows []models.Row, max bool) (models.TabularResult, error) {
	col := intent.TargetColumn()
	if col == "" || !table.HasColumn(col) {
		return nil, fmt.Errorf("%w for %s", apperrors.ErrAmbiguousColumn, intent.Operation)
	}

	sorted := make([]models.Row, len(rows))
	copy(sorted, rows)
	numeric := table.Types[col] == models.ColumnTypeNumber
	sort.SliceStable(sorted, func(i, j int) bool {
		if numeric {
			a, aok := sorted[i][col].(float64)
			b, bok := sorted[j][col].(float64)
			if !aok || !bok {
				return aok && !bok
			}
			if max {
				return a > b
			}
			return a < b
		}
		a, b := formatCell(sorted[i][col]), formatCell(sorted[j][col])
		if max {
			return a > b
		}
		return a < b
	})

	limit := intent.Limit
	if limit <= 0 {
		limit = 1
	}
	if limit > len(sorted) {
		limit = len(sorted)
	}
	picked := sorted[:limit]

	var extreme any
	if len(picked) > 0 {
		extreme = picked[0][col]
	}

	if max {
		return &models.MaxResult{
			Operation:     models.OpMax,
			TargetColumn:  col,
			Maximum:       extreme,
			TopRecords:    picked,
			RowsProcessed: len(rows),
		}, nil
	}
	return &models.MinResult{
		Operation:     models.OpMin,
		TargetColumn:  col,
		Minimum:       extreme,
		BottomRecords: picked,
		RowsProcessed: len(rows),
	}, nil
}

func (s *queryExecutorService) executeSelect(table *models.Table, intent *models.QueryIntent, rows []models.Row, processed int) *models.SelectResult {
	out := rows

	if intent.Distinct && len(intent.TargetColumns) > 0 {
		seen := make(map[string]bool)
		var deduped []models.Row
		for _, row := range out {
			var keyParts []string
			for _, col := range intent.TargetColumns {
				keyParts = append(keyParts, formatCell(row[col]))
			}
			key := strings.Join(keyParts, "\x1f")
			if seen[key] {
				continue
			}
			seen[key] = true
			deduped = append(deduped, row)
		}
		out = deduped
	}

	if intent.Order != models.OrderNone && intent.TargetColumn() != "" {
		col := intent.TargetColumn()
		numeric := table.Types[col] == models.ColumnTypeNumber
		desc := intent.Order == models.OrderDescending
		sorted := make([]models.Row, len(out))
		copy(sorted, out)
		sort.SliceStable(sorted, func(i, j int) bool {
			if numeric {
				a, aok := sorted[i][col].(float64)
				b, bok := sorted[j][col].(float64)
				if !aok || !bok {
					return aok && !bok
				}
				if desc {
					return a > b
				}
				return a < b
			}
			a, b := formatCell(sorted[i][col]), formatCell(sorted[j][col])
			if desc {
				return a > b
			}
			return a < b
		})
		out = sorted
	}

	if intent.Limit > 0 && intent.Limit < len(out) {
		out = out[:intent.Limit]
	}

	columns := intent.TargetColumns
	if len(columns) == 0 {
		columns = table.Columns
	}
	if out == nil {
		out = []models.Row{}
	}
	return &models.SelectResult{
		Operation:     models.OpSelect,
		Columns:       columns,
		Rows:          out,
		RowsProcessed: processed,
	}
}

func (s *queryExecutorService) executeGroup(table *models.Table, intent *models.QueryIntent, rows []models.Row) (*models.GroupResult, error) {
	col := intent.GroupBy
	if col == "" {
		col = intent.TargetColumn()
	}
	if col == "" || !table.HasColumn(col) {
		return nil, fmt.Errorf("%w for group", apperrors.ErrAmbiguousColumn)
	}

	buckets := make(map[string]*models.GroupBucket)
	var order []string
	for _, row := range rows {
		key := formatCell(row[col])
		b, ok := buckets[key]
		if !ok {
			b = &models.GroupBucket{Key: key}
			buckets[key] = b
			order = append(order, key)
		}
		b.Count++
		b.Rows = append(b.Rows, row)
	}

	result := &models.GroupResult{
		Operation:     models.OpGroup,
		GroupBy:       col,
		Groups:        make([]models.GroupBucket, 0, len(order)),
		RowsProcessed: len(rows),
	}
	for _, key := range order {
		result.Groups = append(result.Groups, *buckets[key])
	}
	return result, nil
}

// resolveNumericTarget picks the column a sum/avg runs over, refusing
// to guess when nothing resolves.
func resolveNumericTarget(table *models.Table, intent *models.QueryIntent) (string, error) {
	for _, col := range intent.TargetColumns {
		if table.Types[col] == models.ColumnTypeNumber {
			return col, nil
		}
	}
	if col := intent.TargetColumn(); col != "" && table.HasColumn(col) {
		// Named column exists but is not numeric; still honor it, the
		// aggregate skips non-numeric cells.
		return col, nil
	}
	return "", fmt.Errorf("%w: no numeric column matches the question", apperrors.ErrAmbiguousColumn)
}

// numericValues collects the float64 cells of a column; non-numeric
// values are excluded, not errors.
func numericValues(rows []models.Row, col string) []float64 {
	var out []float64
	for _, row := range rows {
		if v, ok := row[col].(float64); ok {
			out = append(out, v)
		}
	}
	return out
}

// trimOutliers drops values outside median ± multiplier*IQR when
// outlier trimming is enabled. A narrow heuristic for price-like data;
// disabled by default.
func (s *queryExecutorService) trimOutliers(values []float64) []float64 {
	if !s.outlierTrim.Enabled || len(values) < 4 {
		return values
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lo := q1 - s.outlierTrim.IQRMultiplier*iqr
	hi := q3 + s.outlierTrim.IQRMultiplier*iqr

	var trimmed []float64
	for _, v := range values {
		if v >= lo && v <= hi {
			trimmed = append(trimmed, v)
		}
	}
	if len(trimmed) != len(values) {
		s.logger.Debug("Trimmed outlier values",
			zap.Int("dropped", len(values)-len(trimmed)),
			zap.Float64("low", lo),
			zap.Float64("high", hi))
	}
	return trimmed
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// formatCell renders a cell value for keys, comparisons, and display.
func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
