package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/models"
)

// DataFrameAccessor exposes an in-memory table snapshot through the Accessor
// contract. Every check against it runs on the materialized path; aggregates
// are computed by scanning the table.
type DataFrameAccessor struct {
	handle *models.DatasetHandle
	table  *models.Table
	logger *logrus.Logger
}

// NewDataFrameAccessor wraps a table. A configured time filter is applied
// eagerly so the snapshot is fixed for the whole evaluation pass.
func NewDataFrameAccessor(handle *models.DatasetHandle, table *models.Table, logger *logrus.Logger) (*DataFrameAccessor, error) {
	if table == nil {
		return nil, errors.NewAccessorError(errors.CodeSourceUnreachable, "in-memory table is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if handle == nil {
		handle = &models.DatasetHandle{SourceKind: models.SourceInMemory}
	}

	if handle.TimeFilter != nil {
		filtered, err := applyTimeFilter(table, handle.TimeFilter)
		if err != nil {
			return nil, err
		}
		table = filtered
	}

	return &DataFrameAccessor{handle: handle, table: table, logger: logger}, nil
}

// SourceKind reports the in-memory tag.
func (a *DataFrameAccessor) SourceKind() models.SourceKind {
	return models.SourceInMemory
}

// ColumnSchema infers column types from the first non-null cell of each
// column.
func (a *DataFrameAccessor) ColumnSchema(ctx context.Context) ([]models.ColumnInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos := make([]models.ColumnInfo, len(a.table.Columns))
	for i, name := range a.table.Columns {
		info := models.ColumnInfo{Name: name, DataType: "unknown", Nullable: false}
		for _, row := range a.table.Rows {
			if row[i] == nil {
				info.Nullable = true
				continue
			}
			if info.DataType == "unknown" {
				info.DataType = inferType(row[i])
			}
		}
		infos[i] = info
	}
	return infos, nil
}

// Sample returns up to n rows using the given method.
func (a *DataFrameAccessor) Sample(ctx context.Context, n int, method models.SampleMethod) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 || n >= a.table.NumRows() {
		return a.table, nil
	}
	switch method {
	case models.SampleRandom:
		idx := rand.Perm(a.table.NumRows())[:n]
		out := models.NewTable(a.table.Columns...)
		for _, i := range idx {
			out.Rows = append(out.Rows, a.table.Rows[i])
		}
		return out, nil
	case models.SampleFirst, "":
		return a.table.Head(n), nil
	default:
		return nil, errors.NewAccessorError(errors.CodeMaterializeFailed,
			fmt.Sprintf("unsupported sample method %q", method))
	}
}

// Aggregate computes one metric over the table, optionally grouped and
// filtered.
func (a *DataFrameAccessor) Aggregate(ctx context.Context, metric models.Metric, groupBy string, filters []models.Filter) ([]models.GroupValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, err := filterTable(a.table, filters)
	if err != nil {
		return nil, err
	}

	if groupBy == "" {
		v, err := TableAggregate(table, metric)
		if err != nil {
			return nil, err
		}
		return []models.GroupValue{{Key: models.GroupKeyAll, Value: v}}, nil
	}

	keys, groups, err := table.Partition(groupBy)
	if err != nil {
		return nil, errors.NewAccessorError(errors.CodeColumnNotFound, err.Error())
	}
	out := make([]models.GroupValue, 0, len(keys))
	for _, key := range keys {
		v, err := TableAggregate(groups[key], metric)
		if err != nil {
			return nil, err
		}
		out = append(out, models.GroupValue{Key: key, Value: v})
	}
	return out, nil
}

// Materialize returns the snapshot itself.
func (a *DataFrameAccessor) Materialize(ctx context.Context) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.table, nil
}

// TableAggregate computes one aggregate metric over an in-memory table. It is
// shared by the dataframe accessor and the engine's in-memory targets so the
// two execution paths agree on semantics.
func TableAggregate(table *models.Table, metric models.Metric) (float64, error) {
	if metric.Aggregate == models.AggNumRows {
		return float64(table.NumRows()), nil
	}

	cells, err := table.Column(metric.Column)
	if err != nil {
		return 0, errors.NewAccessorError(errors.CodeColumnNotFound, err.Error())
	}

	switch metric.Aggregate {
	case models.AggCountNull:
		n := 0
		for _, c := range cells {
			if c == nil {
				n++
			}
		}
		return float64(n), nil

	case models.AggCountDistinct:
		seen := make(map[string]bool)
		for _, c := range cells {
			if c == nil {
				continue
			}
			seen[models.CellString(c)] = true
		}
		return float64(len(seen)), nil

	case models.AggMean, models.AggSum, models.AggMin, models.AggMax:
		var sum float64
		var count int
		var min, max float64
		for _, c := range cells {
			f, ok := models.CellFloat(c)
			if !ok {
				continue
			}
			if count == 0 {
				min, max = f, f
			} else {
				if f < min {
					min = f
				}
				if f > max {
					max = f
				}
			}
			sum += f
			count++
		}
		if count == 0 {
			return 0, nil
		}
		switch metric.Aggregate {
		case models.AggMean:
			return sum / float64(count), nil
		case models.AggSum:
			return sum, nil
		case models.AggMin:
			return min, nil
		default:
			return max, nil
		}

	default:
		return 0, errors.NewAccessorError(errors.CodeAggregateFailed,
			fmt.Sprintf("unsupported aggregate %q", metric.Aggregate))
	}
}

func filterTable(table *models.Table, filters []models.Filter) (*models.Table, error) {
	if len(filters) == 0 {
		return table, nil
	}
	idx := make([]int, len(filters))
	for i, f := range filters {
		j := table.ColumnIndex(f.Column)
		if j < 0 {
			return nil, errors.NewAccessorError(errors.CodeColumnNotFound,
				fmt.Sprintf("filter column %q does not exist", f.Column))
		}
		idx[i] = j
	}
	out := models.NewTable(table.Columns...)
	for _, row := range table.Rows {
		keep := true
		for i, f := range filters {
			if !matchFilter(row[idx[i]], f) {
				keep = false
				break
			}
		}
		if keep {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func matchFilter(cell interface{}, f models.Filter) bool {
	switch f.Op {
	case "=", "":
		return models.CellString(cell) == models.CellString(f.Value)
	case "!=":
		return models.CellString(cell) != models.CellString(f.Value)
	case "<", "<=", ">", ">=":
		a, okA := models.CellFloat(cell)
		b, okB := models.CellFloat(f.Value)
		if !okA || !okB {
			return false
		}
		switch f.Op {
		case "<":
			return a < b
		case "<=":
			return a <= b
		case ">":
			return a > b
		default:
			return a >= b
		}
	default:
		return false
	}
}

func applyTimeFilter(table *models.Table, tf *models.TimeFilter) (*models.Table, error) {
	idx := table.ColumnIndex(tf.Column)
	if idx < 0 {
		return nil, errors.NewAccessorError(errors.CodeColumnNotFound,
			fmt.Sprintf("time filter column %q does not exist", tf.Column))
	}
	cutoff := time.Now().Add(-tf.Lookback)
	out := models.NewTable(table.Columns...)
	for _, row := range table.Rows {
		ts, ok := cellTime(row[idx])
		if !ok {
			continue
		}
		if !ts.Before(cutoff) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func cellTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, x); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

func inferType(v interface{}) string {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return "numeric"
	case bool:
		return "boolean"
	case time.Time:
		return "timestamp"
	case string:
		return "text"
	default:
		return "unknown"
	}
}
