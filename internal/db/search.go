package db

// Condition is one pre-filter clause. A condition carries either tag values
// (matched as any-of) or an inclusive numeric range with optional bounds.
type Condition struct {
	Field string
	Tags  []string
	Min   *float64
	Max   *float64
}

// IsRange reports whether the condition is numeric.
func (c Condition) IsRange() bool { return c.Min != nil || c.Max != nil }

// TagCondition matches any of values on a TAG field.
func TagCondition(field string, values ...string) Condition {
	return Condition{Field: field, Tags: values}
}

// RangeCondition matches an inclusive NUMERIC range; nil bounds are open.
func RangeCondition(field string, minVal, maxVal *float64) Condition {
	return Condition{Field: field, Min: minVal, Max: maxVal}
}

// Filter is a pre-filter: every Must clause and at least one Should clause (if any).
type Filter struct {
	Must    []Condition
	Should  []Condition
	MustNot []Condition
}

// IsEmpty reports whether the filter has no clauses.
func (f Filter) IsEmpty() bool {
	return len(f.Must) == 0 && len(f.Should) == 0 && len(f.MustNot) == 0
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Filter       Filter
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for FT.SEARCH over text fields.
// Query is a pre-escaped FT query expression; an empty Query matches every document.
type TextQuery struct {
	IndexName    string
	Query        string
	Filter       Filter
	Limit        int
	ReturnFields []string
	// WithScores requests the scorer's per-document score (BM25 by default).
	WithScores bool
	SortBy     string
	SortDesc   bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// Reducer is one REDUCE clause of an aggregation.
type Reducer struct {
	// Func is COUNT, SUM, AVG, MIN or MAX.
	Func  string
	Field string
	As    string
}

// AggregateQuery is the input for FT.AGGREGATE with a single GROUPBY stage.
type AggregateQuery struct {
	IndexName string
	Query     string
	Filter    Filter
	GroupBy   []string
	Reducers  []Reducer
	SortBy    string
	SortDesc  bool
	Limit     int
}

// AggregateResult holds one map per group row.
type AggregateResult struct {
	Rows []map[string]string
}
