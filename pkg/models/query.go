package models

// Operation is the computation a parsed question asks for.
type Operation string

const (
	OpCount  Operation = "count"
	OpSum    Operation = "sum"
	OpAvg    Operation = "avg"
	OpMax    Operation = "max"
	OpMin    Operation = "min"
	OpSelect Operation = "select"
	OpGroup  Operation = "group"
)

// FilterOperator compares a row value against the filter value.
type FilterOperator string

const (
	FilterEq       FilterOperator = "="
	FilterNeq      FilterOperator = "!="
	FilterGt       FilterOperator = ">"
	FilterLt       FilterOperator = "<"
	FilterGte      FilterOperator = ">="
	FilterLte      FilterOperator = "<="
	FilterContains FilterOperator = "contains"
)

// Filter narrows rows before aggregation. Value is kept as extracted
// text; the executor coerces it to the target column's type family at
// comparison time.
type Filter struct {
	Column   string         `json:"column"`
	Operator FilterOperator `json:"operator"`
	Value    string         `json:"value"`
}

// OrderDirection orders select/extreme results.
type OrderDirection string

const (
	OrderNone       OrderDirection = ""
	OrderAscending  OrderDirection = "asc"
	OrderDescending OrderDirection = "desc"
)

// QueryIntent is the structured reading of a free-text question against
// a concrete table.
type QueryIntent struct {
	Operation     Operation      `json:"operation"`
	TargetColumns []string       `json:"target_columns,omitempty"`
	Filters       []Filter       `json:"filters,omitempty"`
	GroupBy       string         `json:"group_by,omitempty"`
	Order         OrderDirection `json:"order,omitempty"`
	Limit         int            `json:"limit,omitempty"`
	Distinct      bool           `json:"distinct,omitempty"`
}

// TargetColumn returns the first target column, or empty.
func (q *QueryIntent) TargetColumn() string {
	if len(q.TargetColumns) == 0 {
		return ""
	}
	return q.TargetColumns[0]
}
