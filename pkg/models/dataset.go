package models

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// SourceKind tags a dataset handle as query-capable or in-memory. The
// execution planner branches on this tag plus the check's own capability
// declaration to pick pushdown or materialized execution.
type SourceKind string

const (
	SourceQueryable SourceKind = "queryable"
	SourceInMemory  SourceKind = "in_memory"
)

// SampleMethod selects how rows are sampled when materializing.
type SampleMethod string

const (
	SampleRandom SampleMethod = "random"
	SampleFirst  SampleMethod = "first"
)

// TimeFilter restricts evaluation to rows whose timestamp column falls within
// the lookback window ending now.
type TimeFilter struct {
	Column   string        `json:"column" yaml:"column"`
	Lookback time.Duration `json:"lookback" yaml:"lookback"`
}

// DatasetHandle references the tabular data under test. It is constructed
// once per asset evaluation pass and is read-only for the duration of the
// run; checks never mutate it.
type DatasetHandle struct {
	SourceKind   SourceKind   `json:"source_kind"`
	TableName    string       `json:"table_name,omitempty"`
	ResourceKey  string       `json:"resource_key,omitempty"`
	WhereClause  string       `json:"where_clause,omitempty"`
	TimeFilter   *TimeFilter  `json:"time_filter,omitempty"`
	SampleSize   int          `json:"sample_size,omitempty"`
	SampleMethod SampleMethod `json:"sample_method,omitempty"`
}

// ColumnInfo describes one column of the dataset.
type ColumnInfo struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// Filter is a simple column predicate applied by accessors. Only equality is
// needed by the engine itself (group slicing); accessors may support more.
type Filter struct {
	Column string      `json:"column"`
	Op     string      `json:"op"` // "=", "!=", "<", "<=", ">", ">="
	Value  interface{} `json:"value"`
}

// GroupValue is one row of an aggregate query: the group key and the
// aggregated value. Ungrouped aggregates use GroupKeyAll.
type GroupValue struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Table is an in-memory snapshot of tabular data: column names plus rows of
// loosely typed cells. Nil cells are nulls.
type Table struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// ColumnIndex returns the index of a named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all cells of a named column.
func (t *Table) Column(name string) ([]interface{}, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q does not exist", name)
	}
	out := make([]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// AppendRow appends one row; the caller is responsible for arity.
func (t *Table) AppendRow(cells ...interface{}) {
	t.Rows = append(t.Rows, cells)
}

// Partition splits the table by the values of a group-by column. Keys are
// returned in ascending order, numerically when every key parses as a number.
func (t *Table) Partition(groupBy string) ([]string, map[string]*Table, error) {
	idx := t.ColumnIndex(groupBy)
	if idx < 0 {
		return nil, nil, fmt.Errorf("group_by column %q does not exist", groupBy)
	}
	groups := make(map[string]*Table)
	for _, row := range t.Rows {
		key := CellString(row[idx])
		g, ok := groups[key]
		if !ok {
			g = NewTable(t.Columns...)
			groups[key] = g
		}
		g.Rows = append(g.Rows, row)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	SortGroupKeys(keys)
	return keys, groups, nil
}

// Head returns a copy limited to the first n rows.
func (t *Table) Head(n int) *Table {
	if n >= len(t.Rows) {
		return t
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// CellString renders a cell for use as a group key or set member. Floats that
// hold integral values render without a fractional part so SQL and in-memory
// paths agree on keys.
func CellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return CellString(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// CellFloat converts a cell to float64, reporting whether the conversion was
// possible. Nil cells are not numeric.
func CellFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// SortGroupKeys orders group keys ascending: numerically when every key
// parses as a number, lexicographically otherwise. Reports are reproducible
// because of this ordering.
func SortGroupKeys(keys []string) {
	numeric := true
	parsed := make([]float64, len(keys))
	for i, k := range keys {
		f, err := strconv.ParseFloat(k, 64)
		if err != nil {
			numeric = false
			break
		}
		parsed[i] = f
	}
	if numeric {
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.ParseFloat(keys[i], 64)
			b, _ := strconv.ParseFloat(keys[j], 64)
			return a < b
		})
		return
	}
	sort.Strings(keys)
}
