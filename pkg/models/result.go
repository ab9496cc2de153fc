package models

// TabularResult is the tagged union of deterministic query outcomes.
// Each operation has exactly one variant with a fixed field set; the
// JSON field names (count, sum, average, maximum, minimum, topRecords,
// bottomRecords, rows, groups, rowsProcessed) are part of the API
// contract with existing consumers.
type TabularResult interface {
	// Op returns the operation that produced this result.
	Op() Operation
	// Processed returns the number of rows surviving the filters.
	Processed() int
}

// CountResult answers count questions. When GroupBy is set, Groups
// holds per-group counts and Count the grand total. When Distinct is
// set, Values holds the unique value set of the target column.
type CountResult struct {
	Operation     Operation      `json:"operation"`
	Count         int            `json:"count"`
	GroupBy       string         `json:"groupBy,omitempty"`
	Groups        map[string]int `json:"groups,omitempty"`
	Distinct      bool           `json:"distinct,omitempty"`
	Values        []string       `json:"values,omitempty"`
	RowsProcessed int            `json:"rowsProcessed"`
}

func (r *CountResult) Op() Operation { return OpCount }
func (r *CountResult) Processed() int { return r.RowsProcessed }

// SumResult carries the exact sum over the numeric values of the target
// column. ValuesCounted is how many cells were numeric and included.
type SumResult struct {
	Operation     Operation `json:"operation"`
	TargetColumn  string    `json:"targetColumn"`
	Sum           float64   `json:"sum"`
	ValuesCounted int       `json:"valuesCounted"`
	RowsProcessed int       `json:"rowsProcessed"`
}

func (r *SumResult) Op() Operation { return OpSum }
func (r *SumResult) Processed() int { return r.RowsProcessed }

// AvgResult carries the exact mean over the numeric values of the
// target column.
type AvgResult struct {
	Operation     Operation `json:"operation"`
	TargetColumn  string    `json:"targetColumn"`
	Average       float64   `json:"average"`
	ValuesCounted int       `json:"valuesCounted"`
	RowsProcessed int       `json:"rowsProcessed"`
}

func (r *AvgResult) Op() Operation { return OpAvg }
func (r *AvgResult) Processed() int { return r.RowsProcessed }

// MaxResult holds the extreme value and the top Limit rows, in stable
// descending order of the target column.
type MaxResult struct {
	Operation     Operation `json:"operation"`
	TargetColumn  string    `json:"targetColumn"`
	Maximum       any       `json:"maximum"`
	TopRecords    []Row     `json:"topRecords"`
	RowsProcessed int       `json:"rowsProcessed"`
}

func (r *MaxResult) Op() Operation { return OpMax }
func (r *MaxResult) Processed() int { return r.RowsProcessed }

// MinResult holds the extreme value and the bottom Limit rows, in
// stable ascending order of the target column.
type MinResult struct {
	Operation     Operation `json:"operation"`
	TargetColumn  string    `json:"targetColumn"`
	Minimum       any       `json:"minimum"`
	BottomRecords []Row     `json:"bottomRecords"`
	RowsProcessed int       `json:"rowsProcessed"`
}

func (r *MinResult) Op() Operation { return OpMin }
func (r *MinResult) Processed() int { return r.RowsProcessed }

// SelectResult lists matching rows after optional distinct
// de-duplication, ordering, and limit.
type SelectResult struct {
	Operation     Operation `json:"operation"`
	Columns       []string  `json:"columns,omitempty"`
	Rows          []Row     `json:"rows"`
	RowsProcessed int       `json:"rowsProcessed"`
}

func (r *SelectResult) Op() Operation { return OpSelect }
func (r *SelectResult) Processed() int { return r.RowsProcessed }

// GroupBucket is one bucket of a group result, holding the member rows.
type GroupBucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	Rows  []Row  `json:"rows,omitempty"`
}

// GroupResult buckets rows by the group-by column in first-seen order.
type GroupResult struct {
	Operation     Operation     `json:"operation"`
	GroupBy       string        `json:"groupBy"`
	Groups        []GroupBucket `json:"groups"`
	RowsProcessed int           `json:"rowsProcessed"`
}

func (r *GroupResult) Op() Operation { return OpGroup }
func (r *GroupResult) Processed() int { return r.RowsProcessed }

// FieldMatch is one field/value pair answering a question from
// unstructured text, with the section it was found under.
type FieldMatch struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Source string `json:"source,omitempty"`
}

// AnswerKind tags the outcome of a routed query.
type AnswerKind string

const (
	// AnswerTabular means the deterministic tabular path produced an
	// exact result.
	AnswerTabular AnswerKind = "tabular"
	// AnswerFields means key/value extraction matched the question.
	AnswerFields AnswerKind = "fields"
	// AnswerRanked means both structured paths failed and chunks were
	// ranked by relevance instead.
	AnswerRanked AnswerKind = "ranked"
	// AnswerSmallTalk means the question was a greeting; no retrieval
	// was performed.
	AnswerSmallTalk AnswerKind = "small_talk"
	// AnswerNoData means no structure and no chunks were available.
	AnswerNoData AnswerKind = "no_data"
)

// Answer is the router's terminal result: exactly one payload is
// populated according to Kind. Reason explains a no_data outcome
// (e.g. an aggregate whose target column could not be determined).
type Answer struct {
	Kind    AnswerKind    `json:"kind"`
	Tabular TabularResult `json:"tabular,omitempty"`
	Fields  []FieldMatch  `json:"fields,omitempty"`
	Chunks  []ScoredChunk `json:"chunks,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}
