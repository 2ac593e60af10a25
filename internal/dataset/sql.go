package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/models"
)

// SQLAccessor exposes a table reachable through a SQL backend. Aggregate
// checks push down as queries, which is what lets cheap checks scale to
// arbitrarily large tables without materializing rows.
type SQLAccessor struct {
	handle *models.DatasetHandle
	db     *sql.DB
	logger *logrus.Logger
}

// NewSQLAccessor wraps an open connection pool and a dataset handle.
func NewSQLAccessor(handle *models.DatasetHandle, db *sql.DB, logger *logrus.Logger) (*SQLAccessor, error) {
	if db == nil {
		return nil, errors.NewAccessorError(errors.CodeSourceUnreachable, "database connection is nil")
	}
	if handle == nil || handle.TableName == "" {
		return nil, errors.NewAccessorError(errors.CodeSourceUnreachable, "dataset handle has no table name")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &SQLAccessor{handle: handle, db: db, logger: logger}, nil
}

// SourceKind reports the queryable tag.
func (a *SQLAccessor) SourceKind() models.SourceKind {
	return models.SourceQueryable
}

// ColumnSchema reads column names and database types from an empty result.
func (a *SQLAccessor) ColumnSchema(ctx context.Context) ([]models.ColumnInfo, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT 0", pq.QuoteIdentifier(a.handle.TableName))
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.WrapAccessorError(err, errors.CodeSourceUnreachable, "cannot read table schema")
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.WrapAccessorError(err, errors.CodeSourceUnreachable, "cannot read column types")
	}
	infos := make([]models.ColumnInfo, len(types))
	for i, ct := range types {
		nullable, _ := ct.Nullable()
		infos[i] = models.ColumnInfo{
			Name:     ct.Name(),
			DataType: strings.ToLower(ct.DatabaseTypeName()),
			Nullable: nullable,
		}
	}
	return infos, nil
}

// Sample fetches up to n rows. Random sampling orders by random(), which is
// acceptable because n is bounded by the handle's sample configuration.
func (a *SQLAccessor) Sample(ctx context.Context, n int, method models.SampleMethod) (*models.Table, error) {
	where, args := a.baseWhere(nil)
	query := fmt.Sprintf("SELECT * FROM %s%s", pq.QuoteIdentifier(a.handle.TableName), where)
	if method == models.SampleRandom {
		query += " ORDER BY random()"
	}
	if n > 0 {
		query += fmt.Sprintf(" LIMIT %d", n)
	}
	return a.queryTable(ctx, query, args...)
}

// Aggregate pushes one aggregate metric down as SQL.
func (a *SQLAccessor) Aggregate(ctx context.Context, metric models.Metric, groupBy string, filters []models.Filter) ([]models.GroupValue, error) {
	expr, err := aggregateSQL(metric)
	if err != nil {
		return nil, err
	}
	where, args := a.baseWhere(filters)
	table := pq.QuoteIdentifier(a.handle.TableName)

	if groupBy == "" {
		query := fmt.Sprintf("SELECT %s FROM %s%s", expr, table, where)
		var value sql.NullFloat64
		if err := a.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
			return nil, a.wrapQueryError(err, metric)
		}
		return []models.GroupValue{{Key: models.GroupKeyAll, Value: value.Float64}}, nil
	}

	group := pq.QuoteIdentifier(groupBy)
	query := fmt.Sprintf("SELECT %s, %s FROM %s%s GROUP BY %s ORDER BY %s",
		group, expr, table, where, group, group)
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, a.wrapQueryError(err, metric)
	}
	defer rows.Close()

	var out []models.GroupValue
	for rows.Next() {
		var key interface{}
		var value sql.NullFloat64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.WrapAccessorError(err, errors.CodeAggregateFailed, "cannot scan aggregate row")
		}
		out = append(out, models.GroupValue{Key: models.CellString(normalizeCell(key)), Value: value.Float64})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapAccessorError(err, errors.CodeAggregateFailed, "aggregate query failed")
	}
	// SQL collation may disagree with the engine's numeric-aware ordering,
	// so re-sort the keys here.
	keys := make([]string, len(out))
	byKey := make(map[string]models.GroupValue, len(out))
	for i, gv := range out {
		keys[i] = gv.Key
		byKey[gv.Key] = gv
	}
	models.SortGroupKeys(keys)
	sorted := make([]models.GroupValue, len(keys))
	for i, k := range keys {
		sorted[i] = byKey[k]
	}
	return sorted, nil
}

// Materialize fetches the dataset as an in-memory table, honoring the
// handle's sample configuration so an unbounded table is never pulled in
// whole when a sample size is configured.
func (a *SQLAccessor) Materialize(ctx context.Context) (*models.Table, error) {
	if a.handle.SampleSize > 0 {
		return a.Sample(ctx, a.handle.SampleSize, a.handle.SampleMethod)
	}
	where, args := a.baseWhere(nil)
	query := fmt.Sprintf("SELECT * FROM %s%s", pq.QuoteIdentifier(a.handle.TableName), where)
	return a.queryTable(ctx, query, args...)
}

// Query executes a raw query; custom-query checks use this capability.
func (a *SQLAccessor) Query(ctx context.Context, query string) (*models.Table, error) {
	return a.queryTable(ctx, query)
}

func (a *SQLAccessor) queryTable(ctx context.Context, query string, args ...interface{}) (*models.Table, error) {
	start := time.Now()
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapAccessorError(err, errors.CodeQueryFailed, "query failed").
			WithContext("query", query)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.WrapAccessorError(err, errors.CodeQueryFailed, "cannot read result columns")
	}
	table := models.NewTable(columns...)
	for rows.Next() {
		cells := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.WrapAccessorError(err, errors.CodeQueryFailed, "cannot scan result row")
		}
		for i := range cells {
			cells[i] = normalizeCell(cells[i])
		}
		table.Rows = append(table.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapAccessorError(err, errors.CodeQueryFailed, "query failed")
	}

	a.logger.WithFields(logrus.Fields{
		"table":    a.handle.TableName,
		"rows":     table.NumRows(),
		"duration": time.Since(start),
	}).Debug("Materialized query result")

	return table, nil
}

// baseWhere builds the WHERE clause from the handle's where clause, time
// filter and any engine filters, returning the clause and its arguments.
func (a *SQLAccessor) baseWhere(filters []models.Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if a.handle.WhereClause != "" {
		conds = append(conds, "("+a.handle.WhereClause+")")
	}
	if tf := a.handle.TimeFilter; tf != nil {
		args = append(args, time.Now().Add(-tf.Lookback))
		conds = append(conds, fmt.Sprintf("%s >= $%d", pq.QuoteIdentifier(tf.Column), len(args)))
	}
	for _, f := range filters {
		op := f.Op
		if op == "" {
			op = "="
		}
		args = append(args, f.Value)
		conds = append(conds, fmt.Sprintf("%s %s $%d", pq.QuoteIdentifier(f.Column), op, len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (a *SQLAccessor) wrapQueryError(err error, metric models.Metric) error {
	wrapped := errors.WrapAccessorError(err, errors.CodeAggregateFailed,
		fmt.Sprintf("aggregate %s failed", metric.String()))
	if strings.Contains(err.Error(), "does not exist") {
		wrapped.Code = errors.CodeColumnNotFound
	}
	return wrapped
}

func aggregateSQL(metric models.Metric) (string, error) {
	if metric.Aggregate == models.AggNumRows {
		return "COUNT(*)::float8", nil
	}
	col := pq.QuoteIdentifier(metric.Column)
	switch metric.Aggregate {
	case models.AggMean:
		return fmt.Sprintf("AVG(%s)::float8", col), nil
	case models.AggSum:
		return fmt.Sprintf("SUM(%s)::float8", col), nil
	case models.AggMin:
		return fmt.Sprintf("MIN(%s)::float8", col), nil
	case models.AggMax:
		return fmt.Sprintf("MAX(%s)::float8", col), nil
	case models.AggCountNull:
		return fmt.Sprintf("(COUNT(*) - COUNT(%s))::float8", col), nil
	case models.AggCountDistinct:
		return fmt.Sprintf("COUNT(DISTINCT %s)::float8", col), nil
	default:
		return "", errors.NewAccessorError(errors.CodeAggregateFailed,
			fmt.Sprintf("unsupported aggregate %q", metric.Aggregate))
	}
}

func normalizeCell(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		s := string(x)
		if f, ok := models.CellFloat(s); ok {
			return f
		}
		return s
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	default:
		return v
	}
}
