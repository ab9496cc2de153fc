package models

// ColumnType is the inferred type family of a table column, fixed once
// per table by majority vote over non-null values.
type ColumnType string

const (
	ColumnTypeNumber  ColumnType = "number"
	ColumnTypeBoolean ColumnType = "boolean"
	ColumnTypeString  ColumnType = "string"
)

// Row is a single table record keyed by column name. Values are
// float64, bool, string, or nil, nothing else.
type Row map[string]any

// Table is a reconstructed row/column table. Rows are homogeneous in
// column set; Types holds the per-column majority-vote type. Tables are
// derived on demand from document text and never persisted, so
// reconstruction must be idempotent.
type Table struct {
	Columns []string              `json:"columns"`
	Rows    []Row                 `json:"rows"`
	Types   map[string]ColumnType `json:"types"`
}

// NewTable builds a Table and fixes column types by majority vote.
func NewTable(columns []string, rows []Row) *Table {
	t := &Table{
		Columns: columns,
		Rows:    rows,
		Types:   make(map[string]ColumnType, len(columns)),
	}
	for _, col := range columns {
		t.Types[col] = inferColumnType(rows, col)
	}
	return t
}

// inferColumnType votes across non-null values. Ties and empty columns
// resolve to string, the safest family.
func inferColumnType(rows []Row, col string) ColumnType {
	var numbers, booleans, strings int
	for _, row := range rows {
		switch row[col].(type) {
		case float64:
			numbers++
		case bool:
			booleans++
		case string:
			strings++
		}
	}
	if numbers > booleans && numbers > strings {
		return ColumnTypeNumber
	}
	if booleans > numbers && booleans > strings {
		return ColumnTypeBoolean
	}
	return ColumnTypeString
}

// NumericColumns returns the columns typed as numbers, in header order.
func (t *Table) NumericColumns() []string {
	var cols []string
	for _, col := range t.Columns {
		if t.Types[col] == ColumnTypeNumber {
			cols = append(cols, col)
		}
	}
	return cols
}

// HasColumn reports whether the header contains the exact column name.
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// DistinctStrings returns the distinct non-null values of a column
// rendered as strings, in first-seen order. Used by the intent parser
// to match question tokens against known cell values.
func (t *Table) DistinctStrings(col string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, row := range t.Rows {
		s, ok := row[col].(string)
		if !ok || s == "" {
			continue
		}
		if !seen[s] {
			seen[s] = true
			values = append(values, s)
		}
	}
	return values
}
