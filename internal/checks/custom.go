package checks

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// Comparators accepted by custom and cross-table checks.
const (
	cmpEquals             = "equals"
	cmpNotEquals          = "not_equals"
	cmpLessThan           = "less_than"
	cmpLessThanOrEqual    = "less_than_or_equal"
	cmpGreaterThan        = "greater_than"
	cmpGreaterThanOrEqual = "greater_than_or_equal"
)

func comparatorParam(params map[string]interface{}) (string, error) {
	return enumParam(params, "comparator", cmpEquals,
		cmpEquals, cmpNotEquals, cmpLessThan, cmpLessThanOrEqual,
		cmpGreaterThan, cmpGreaterThanOrEqual)
}

// compare applies a comparator to an observed and an expected value.
// Ordering comparators require both sides to be numeric; equality falls
// back to string comparison for non-numeric values.
func compare(observed, expected interface{}, comparator string) (bool, error) {
	obsF, obsErr := cast.ToFloat64E(observed)
	expF, expErr := cast.ToFloat64E(expected)
	numeric := obsErr == nil && expErr == nil

	switch comparator {
	case cmpEquals:
		if numeric {
			return obsF == expF, nil
		}
		return models.CellString(observed) == models.CellString(expected), nil
	case cmpNotEquals:
		if numeric {
			return obsF != expF, nil
		}
		return models.CellString(observed) != models.CellString(expected), nil
	}

	if !numeric {
		return false, errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("comparator %q requires numeric values", comparator))
	}
	switch comparator {
	case cmpLessThan:
		return obsF < expF, nil
	case cmpLessThanOrEqual:
		return obsF <= expF, nil
	case cmpGreaterThan:
		return obsF > expF, nil
	case cmpGreaterThanOrEqual:
		return obsF >= expF, nil
	default:
		return false, errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("unknown comparator %q", comparator))
	}
}

// customQueryCheck executes a user-supplied query against the asset's
// backing store and compares the first cell of the result to an expected
// value. It requires a queryable accessor; there is no in-memory fallback.
type customQueryCheck struct {
	query      string
	expected   interface{}
	comparator string
}

func newCustomQueryCheck(params map[string]interface{}) (interfaces.Check, error) {
	query, err := requiredString(params, "query")
	if err != nil {
		return nil, err
	}
	expected, ok := params["expected"]
	if !ok {
		return nil, errors.NewConfigurationError(errors.CodeMissingParameter,
			"required parameter \"expected\" is missing")
	}
	comparator, err := comparatorParam(params)
	if err != nil {
		return nil, err
	}
	return &customQueryCheck{query: query, expected: expected, comparator: comparator}, nil
}

func (c *customQueryCheck) Kind() models.CheckKind     { return models.KindCustomQuery }
func (c *customQueryCheck) AggregateExpressible() bool { return true }

func (c *customQueryCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	queryable, ok := env.Accessor.(interfaces.Queryable)
	if !ok {
		return nil, errors.NewUnsupportedCheckError(
			"custom_query requires a query-capable data source")
	}
	result, err := queryable.Query(ctx, c.query)
	if err != nil {
		return nil, err
	}
	if result.NumRows() == 0 || len(result.Columns) == 0 {
		return nil, errors.NewAccessorError(errors.CodeQueryFailed,
			"custom query returned no result")
	}
	observed := result.Rows[0][0]
	passed, err := compare(observed, c.expected, c.comparator)
	if err != nil {
		return nil, err
	}
	return outcome(passed, observed,
		fmt.Sprintf("query result %v %s expected %v", observed, c.comparator, c.expected)), nil
}

// customExpressionCheck evaluates a scalar over the materialized slice and
// compares it to an expected value. The expression is either a metric
// expression or the name of an expression function the host registered.
type customExpressionCheck struct {
	expression string
	metric     *models.Metric
	fn         ExpressionFunc
	expected   interface{}
	comparator string
}

func newCustomExpressionCheck(params map[string]interface{}, registry *Registry) (interfaces.Check, error) {
	expression, err := requiredString(params, "expression")
	if err != nil {
		return nil, err
	}
	expected, ok := params["expected"]
	if !ok {
		return nil, errors.NewConfigurationError(errors.CodeMissingParameter,
			"required parameter \"expected\" is missing")
	}
	comparator, err := comparatorParam(params)
	if err != nil {
		return nil, err
	}

	check := &customExpressionCheck{expression: expression, expected: expected, comparator: comparator}
	if metric, err := models.ParseMetric(expression); err == nil {
		check.metric = &metric
		return check, nil
	}
	if fn, ok := registry.expression(expression); ok {
		check.fn = fn
		return check, nil
	}
	return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
		fmt.Sprintf("expression %q is neither a metric expression nor a registered expression function", expression))
}

func (c *customExpressionCheck) Kind() models.CheckKind     { return models.KindCustomExpression }
func (c *customExpressionCheck) AggregateExpressible() bool { return false }

func (c *customExpressionCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	var observed float64
	var err error
	if c.metric != nil {
		observed, err = env.Target.Aggregate(ctx, *c.metric)
	} else {
		table := env.Target.Table()
		if table == nil {
			return nil, errors.NewUnsupportedCheckError(
				"custom_expression requires a materialized table")
		}
		observed, err = c.fn(ctx, table)
	}
	if err != nil {
		return nil, err
	}
	passed, cmpErr := compare(observed, c.expected, c.comparator)
	if cmpErr != nil {
		return nil, cmpErr
	}
	return outcome(passed, observed,
		fmt.Sprintf("expression %q = %s, %s expected %v", c.expression, formatFloat(observed), c.comparator, c.expected)), nil
}

// Cross-table comparison modes.
const (
	crossCompareRowCount     = "row_count"
	crossCompareColumnValues = "column_values"
	crossCompareAggregate    = "aggregate"
)

// crossTableCheck validates the primary dataset against a second dataset
// resolved through the accessor resolver: matching row counts, matching
// aggregates, or key-column values present in the reference table.
type crossTableCheck struct {
	ref        *models.DatasetHandle
	comparison string
	keyColumns []string
	metric     models.Metric
	tolerance  float64
}

func newCrossTableCheck(params map[string]interface{}) (interfaces.Check, error) {
	refTable, err := requiredString(params, "ref_table_name")
	if err != nil {
		return nil, err
	}
	sourceType, err := enumParam(params, "ref_data_source_type", constants.DataSourceDatabase,
		constants.DataSourceDatabase, constants.DataSourceDataFrame)
	if err != nil {
		return nil, err
	}
	resourceKey, err := optionalString(params, "ref_resource_key", "")
	if err != nil {
		return nil, err
	}
	comparison, err := enumParam(params, "comparison", crossCompareRowCount,
		crossCompareRowCount, crossCompareColumnValues, crossCompareAggregate)
	if err != nil {
		return nil, err
	}
	tolerance, err := floatOrDefault(params, "tolerance", 0)
	if err != nil {
		return nil, err
	}
	if tolerance < 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			"tolerance must not be negative")
	}

	check := &crossTableCheck{
		ref: &models.DatasetHandle{
			TableName:   refTable,
			ResourceKey: resourceKey,
		},
		comparison: comparison,
		tolerance:  tolerance,
	}
	if sourceType == constants.DataSourceDatabase {
		check.ref.SourceKind = models.SourceQueryable
	} else {
		check.ref.SourceKind = models.SourceInMemory
	}

	switch comparison {
	case crossCompareColumnValues:
		check.keyColumns, err = requiredStringSlice(params, "key_columns")
		if err != nil {
			return nil, err
		}
	case crossCompareAggregate:
		check.metric, err = metricParam(params, "metric")
		if err != nil {
			return nil, err
		}
	}
	return check, nil
}

func (c *crossTableCheck) Kind() models.CheckKind     { return models.KindCrossTable }
func (c *crossTableCheck) AggregateExpressible() bool { return c.comparison != crossCompareColumnValues }

func (c *crossTableCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	if env.Resolver == nil {
		return nil, errors.NewUnsupportedCheckError(
			"cross_table requires an accessor resolver")
	}
	ref, err := env.Resolver.Resolve(ctx, c.ref)
	if err != nil {
		return nil, err
	}

	switch c.comparison {
	case crossCompareRowCount:
		return c.compareAggregate(ctx, env, ref, models.Metric{Aggregate: models.AggNumRows})
	case crossCompareAggregate:
		return c.compareAggregate(ctx, env, ref, c.metric)
	default:
		return c.compareColumnValues(ctx, env, ref)
	}
}

func (c *crossTableCheck) compareAggregate(ctx context.Context, env *interfaces.CheckEnv, ref interfaces.Accessor, metric models.Metric) (*models.CheckOutcome, error) {
	primary, err := env.Target.Aggregate(ctx, metric)
	if err != nil {
		return nil, err
	}
	refValues, err := ref.Aggregate(ctx, metric, "", nil)
	if err != nil {
		return nil, err
	}
	if len(refValues) == 0 {
		return nil, errors.NewAccessorError(errors.CodeAggregateFailed,
			"reference aggregate returned no result")
	}
	secondary := refValues[0].Value
	diff := primary - secondary
	if diff < 0 {
		diff = -diff
	}
	out := outcome(diff <= c.tolerance, primary,
		fmt.Sprintf("%s: primary %s vs reference %s (tolerance %s)",
			metric.String(), formatFloat(primary), formatFloat(secondary), formatFloat(c.tolerance)))
	out.Metadata = map[string]interface{}{
		"reference_value": secondary,
		"difference":      diff,
		"reference_table": c.ref.TableName,
	}
	return out, nil
}

func (c *crossTableCheck) compareColumnValues(ctx context.Context, env *interfaces.CheckEnv, ref interfaces.Accessor) (*models.CheckOutcome, error) {
	table := env.Target.Table()
	if table == nil {
		return nil, errors.NewUnsupportedCheckError(
			"cross_table column_values comparison requires a materialized table")
	}
	refTable, err := ref.Materialize(ctx)
	if err != nil {
		return nil, err
	}

	refKeys := make(map[string]bool)
	keys, err := compositeKeys(refTable, c.keyColumns)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		refKeys[k] = true
	}

	primaryKeys, err := compositeKeys(table, c.keyColumns)
	if err != nil {
		return nil, err
	}
	missing := 0.0
	for _, k := range primaryKeys {
		if !refKeys[k] {
			missing++
		}
	}
	out := outcome(missing <= c.tolerance, missing,
		fmt.Sprintf("%s keys missing from reference table %q (tolerance %s)",
			formatFloat(missing), c.ref.TableName, formatFloat(c.tolerance)))
	out.Metadata = map[string]interface{}{
		"primary_keys":    len(primaryKeys),
		"reference_keys":  len(refKeys),
		"missing_keys":    missing,
		"reference_table": c.ref.TableName,
	}
	return out, nil
}

func compositeKeys(table *models.Table, columns []string) ([]string, error) {
	indices := make([]int, len(columns))
	for i, col := range columns {
		idx := table.ColumnIndex(col)
		if idx < 0 {
			return nil, errors.NewAccessorError(errors.CodeColumnNotFound,
				fmt.Sprintf("key column %q does not exist", col))
		}
		indices[i] = idx
	}
	keys := make([]string, 0, table.NumRows())
	for _, row := range table.Rows {
		key := ""
		for i, idx := range indices {
			if i > 0 {
				key += "\x1f"
			}
			key += models.CellString(row[idx])
		}
		keys = append(keys, key)
	}
	return keys, nil
}
