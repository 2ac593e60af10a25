package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// Bounds and shape checks: deterministic pass/fail against configured
// min/max bounds or allowed sets. The percentage parameters express "at
// least X% of non-null values must satisfy the predicate" rather than a
// strict 100%, so noisy real-world data can still pass.

// rowCountCheck verifies the slice's row count against min/max bounds.
type rowCountCheck struct {
	minRows *float64
	maxRows *float64
}

func newRowCountCheck(params map[string]interface{}) (interfaces.Check, error) {
	min, err := optionalFloat(params, "min_rows")
	if err != nil {
		return nil, err
	}
	max, err := optionalFloat(params, "max_rows")
	if err != nil {
		return nil, err
	}
	if min == nil && max == nil {
		return nil, errors.NewConfigurationError(errors.CodeMissingParameter,
			"row_count check requires min_rows or max_rows")
	}
	return &rowCountCheck{minRows: min, maxRows: max}, nil
}

func (c *rowCountCheck) Kind() models.CheckKind     { return models.KindRowCount }
func (c *rowCountCheck) AggregateExpressible() bool { return true }

func (c *rowCountCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	count, err := env.Target.Aggregate(ctx, models.Metric{Aggregate: models.AggNumRows})
	if err != nil {
		return nil, err
	}
	passed := true
	if c.minRows != nil && count < *c.minRows {
		passed = false
	}
	if c.maxRows != nil && count > *c.maxRows {
		passed = false
	}
	return outcome(passed, count, fmt.Sprintf("row count %s %s", formatFloat(count), boundsText(c.minRows, c.maxRows))), nil
}

// nullCheck verifies that columns contain no nulls, or that the non-null
// share meets match_percentage when configured.
type nullCheck struct {
	columns  []string
	matchPct *float64
}

func newNullCheck(params map[string]interface{}) (interfaces.Check, error) {
	columns, err := requiredStringSlice(params, "columns")
	if err != nil {
		return nil, err
	}
	pct, err := optionalFloat(params, "match_percentage")
	if err != nil {
		return nil, err
	}
	if pct != nil && (*pct < 0 || *pct > 100) {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			"match_percentage must be between 0 and 100")
	}
	return &nullCheck{columns: columns, matchPct: pct}, nil
}

func (c *nullCheck) Kind() models.CheckKind     { return models.KindNullCheck }
func (c *nullCheck) AggregateExpressible() bool { return true }

func (c *nullCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	total, err := env.Target.Aggregate(ctx, models.Metric{Aggregate: models.AggNumRows})
	if err != nil {
		return nil, err
	}

	passed := true
	totalNulls := 0.0
	perColumn := make(map[string]interface{}, len(c.columns))
	for _, col := range c.columns {
		nulls, err := env.Target.Aggregate(ctx, models.Metric{Aggregate: models.AggCountNull, Column: col})
		if err != nil {
			return nil, err
		}
		perColumn[col] = nulls
		totalNulls += nulls
		if c.matchPct == nil {
			if nulls > 0 {
				passed = false
			}
			continue
		}
		nonNullPct := 100.0
		if total > 0 {
			nonNullPct = (total - nulls) / total * 100
		}
		if nonNullPct < *c.matchPct {
			passed = false
		}
	}

	out := outcome(passed, totalNulls, fmt.Sprintf("%s null values across columns %v", formatFloat(totalNulls), c.columns))
	out.Metadata = map[string]interface{}{"null_counts": perColumn, "total_rows": total}
	return out, nil
}

// typeCheck verifies that at least min_pct of non-null values in a column
// parse as the expected type. Row-level: type inspection needs the raw
// cells.
type typeCheck struct {
	column       string
	expectedType string
	minPct       float64
}

func newTypeCheck(params map[string]interface{}) (interfaces.Check, error) {
	column, err := requiredString(params, "column")
	if err != nil {
		return nil, err
	}
	expected, err := enumParam(params, "expected_type", "", "numeric", "string", "boolean", "timestamp")
	if err != nil {
		return nil, err
	}
	minPct, err := floatOrDefault(params, "min_pct", constants.DefaultMatchPercentage)
	if err != nil {
		return nil, err
	}
	return &typeCheck{column: column, expectedType: expected, minPct: minPct}, nil
}

func (c *typeCheck) Kind() models.CheckKind     { return models.KindTypeCheck }
func (c *typeCheck) AggregateExpressible() bool { return false }

func (c *typeCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	cells, err := env.Target.Column(ctx, c.column)
	if err != nil {
		return nil, err
	}
	nonNull, matching := 0, 0
	for _, cell := range cells {
		if cell == nil {
			continue
		}
		nonNull++
		if cellMatchesType(cell, c.expectedType) {
			matching++
		}
	}
	if nonNull == 0 {
		return skipped("no non-null values to type-check", 0.0), nil
	}
	pct := float64(matching) / float64(nonNull) * 100
	out := outcome(pct >= c.minPct, pct,
		fmt.Sprintf("%.2f%% of %q values are %s (minimum %.2f%%)", pct, c.column, c.expectedType, c.minPct))
	out.Metadata = map[string]interface{}{"non_null_values": nonNull, "matching_values": matching}
	return out, nil
}

func cellMatchesType(cell interface{}, expected string) bool {
	switch expected {
	case "numeric":
		_, ok := models.CellFloat(cell)
		return ok
	case "boolean":
		switch v := cell.(type) {
		case bool:
			return true
		case string:
			s := strings.ToLower(v)
			return s == "true" || s == "false"
		}
		return false
	case "timestamp":
		switch v := cell.(type) {
		case time.Time:
			return true
		case string:
			for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if _, err := time.Parse(layout, v); err == nil {
					return true
				}
			}
		}
		return false
	case "string":
		_, ok := cell.(string)
		return ok
	default:
		return false
	}
}

// rangeCheck verifies the observed min/max of a numeric column against
// configured bounds via aggregates.
type rangeCheck struct {
	column string
	min    *float64
	max    *float64
}

func newRangeCheck(params map[string]interface{}) (interfaces.Check, error) {
	column, err := requiredString(params, "column")
	if err != nil {
		return nil, err
	}
	min, err := optionalFloat(params, "min_value")
	if err != nil {
		return nil, err
	}
	max, err := optionalFloat(params, "max_value")
	if err != nil {
		return nil, err
	}
	if min == nil && max == nil {
		return nil, errors.NewConfigurationError(errors.CodeMissingParameter,
			"range check requires min_value or max_value")
	}
	return &rangeCheck{column: column, min: min, max: max}, nil
}

func (c *rangeCheck) Kind() models.CheckKind     { return models.KindRangeCheck }
func (c *rangeCheck) AggregateExpressible() bool { return true }

func (c *rangeCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	observedMin, err := env.Target.Aggregate(ctx, models.Metric{Aggregate: models.AggMin, Column: c.column})
	if err != nil {
		return nil, err
	}
	observedMax, err := env.Target.Aggregate(ctx, models.Metric{Aggregate: models.AggMax, Column: c.column})
	if err != nil {
		return nil, err
	}
	passed := true
	if c.min != nil && observedMin < *c.min {
		passed = false
	}
	if c.max != nil && observedMax > *c.max {
		passed = false
	}
	out := outcome(passed, map[string]interface{}{"min": observedMin, "max": observedMax},
		fmt.Sprintf("observed range [%s, %s] %s", formatFloat(observedMin), formatFloat(observedMax), boundsText(c.min, c.max)))
	return out, nil
}

// patternMatchCheck verifies that at least match_percentage of non-null
// values match a regular expression. Row-level: the engine owns the regex
// semantics rather than delegating to backend-specific dialects.
type patternMatchCheck struct {
	column   string
	pattern  *regexp.Regexp
	matchPct float64
}

func newPatternMatchCheck(params map[string]interface{}) (interfaces.Check, error) {
	column, err := requiredString(params, "column")
	if err != nil {
		return nil, err
	}
	patternStr, err := requiredString(params, "pattern")
	if err != nil {
		return nil, err
	}
	pattern, compileErr := regexp.Compile(patternStr)
	if compileErr != nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("invalid pattern: %v", compileErr))
	}
	matchPct, err := floatOrDefault(params, "match_percentage", constants.DefaultMatchPercentage)
	if err != nil {
		return nil, err
	}
	return &patternMatchCheck{column: column, pattern: pattern, matchPct: matchPct}, nil
}

func (c *patternMatchCheck) Kind() models.CheckKind     { return models.KindPatternMatch }
func (c *patternMatchCheck) AggregateExpressible() bool { return false }

func (c *patternMatchCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	cells, err := env.Target.Column(ctx, c.column)
	if err != nil {
		return nil, err
	}
	nonNull, matching := 0, 0
	for _, cell := range cells {
		if cell == nil {
			continue
		}
		nonNull++
		if c.pattern.MatchString(models.CellString(cell)) {
			matching++
		}
	}
	if nonNull == 0 {
		return skipped("no non-null values to match", 0.0), nil
	}
	pct := float64(matching) / float64(nonNull) * 100
	out := outcome(pct >= c.matchPct, pct,
		fmt.Sprintf("%.2f%% of %q values match %s (minimum %.2f%%)", pct, c.column, c.pattern.String(), c.matchPct))
	out.Metadata = map[string]interface{}{"non_null_values": nonNull, "matching_values": matching}
	return out, nil
}

// acceptedValuesCheck verifies that at least min_pct of non-null values fall
// within an allowed set.
type acceptedValuesCheck struct {
	column  string
	allowed map[string]bool
	minPct  float64
}

func newAcceptedValuesCheck(params map[string]interface{}) (interfaces.Check, error) {
	column, err := requiredString(params, "column")
	if err != nil {
		return nil, err
	}
	values, err := requiredSlice(params, "values")
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(values))
	for _, v := range values {
		allowed[models.CellString(v)] = true
	}
	minPct, err := floatOrDefault(params, "min_pct", constants.DefaultMatchPercentage)
	if err != nil {
		return nil, err
	}
	return &acceptedValuesCheck{column: column, allowed: allowed, minPct: minPct}, nil
}

func (c *acceptedValuesCheck) Kind() models.CheckKind     { return models.KindAcceptedValues }
func (c *acceptedValuesCheck) AggregateExpressible() bool { return false }

func (c *acceptedValuesCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	cells, err := env.Target.Column(ctx, c.column)
	if err != nil {
		return nil, err
	}
	nonNull, accepted := 0, 0
	unexpected := make(map[string]int)
	for _, cell := range cells {
		if cell == nil {
			continue
		}
		nonNull++
		key := models.CellString(cell)
		if c.allowed[key] {
			accepted++
		} else {
			unexpected[key]++
		}
	}
	if nonNull == 0 {
		return skipped("no non-null values to check", 0.0), nil
	}
	pct := float64(accepted) / float64(nonNull) * 100
	out := outcome(pct >= c.minPct, pct,
		fmt.Sprintf("%.2f%% of %q values are in the accepted set (minimum %.2f%%)", pct, c.column, c.minPct))
	out.Metadata = map[string]interface{}{"unexpected_values": unexpected, "non_null_values": nonNull}
	return out, nil
}

// uniquenessCheck verifies a composite key has no duplicates. A single
// column is aggregate-expressible via count_distinct; composite keys need
// the raw rows.
type uniquenessCheck struct {
	columns []string
}

func newUniquenessCheck(params map[string]interface{}) (interfaces.Check, error) {
	columns, err := requiredStringSlice(params, "columns")
	if err != nil {
		return nil, err
	}
	return &uniquenessCheck{columns: columns}, nil
}

func (c *uniquenessCheck) Kind() models.CheckKind     { return models.KindUniqueness }
func (c *uniquenessCheck) AggregateExpressible() bool { return len(c.columns) == 1 }

func (c *uniquenessCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	if env.Target.Table() == nil {
		return c.evaluatePushdown(ctx, env)
	}
	return c.evaluateRows(ctx, env)
}

func (c *uniquenessCheck) evaluatePushdown(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	col := c.columns[0]
	total, err := env.Target.Aggregate(ctx, models.Metric{Aggregate: models.AggNumRows})
	if err != nil {
		return nil, err
	}
	nulls, err := env.Target.Aggregate(ctx, models.Metric{Aggregate: models.AggCountNull, Column: col})
	if err != nil {
		return nil, err
	}
	distinct, err := env.Target.Aggregate(ctx, models.Metric{Aggregate: models.AggCountDistinct, Column: col})
	if err != nil {
		return nil, err
	}
	duplicates := (total - nulls) - distinct
	if duplicates < 0 {
		duplicates = 0
	}
	out := outcome(duplicates == 0, duplicates,
		fmt.Sprintf("%s duplicate values in %q", formatFloat(duplicates), col))
	out.Metadata = map[string]interface{}{"duplicate_count": duplicates, "distinct_values": distinct}
	return out, nil
}

func (c *uniquenessCheck) evaluateRows(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	table := env.Target.Table()
	indices := make([]int, len(c.columns))
	for i, col := range c.columns {
		idx := table.ColumnIndex(col)
		if idx < 0 {
			return nil, errors.NewAccessorError(errors.CodeColumnNotFound,
				fmt.Sprintf("column %q does not exist", col))
		}
		indices[i] = idx
	}

	seen := make(map[string]int, table.NumRows())
	duplicates := 0.0
	for _, row := range table.Rows {
		parts := make([]string, len(indices))
		for i, idx := range indices {
			parts[i] = models.CellString(row[idx])
		}
		key := strings.Join(parts, "\x1f")
		seen[key]++
		if seen[key] > 1 {
			duplicates++
		}
	}
	out := outcome(duplicates == 0, duplicates,
		fmt.Sprintf("%s duplicate keys over columns %v", formatFloat(duplicates), c.columns))
	out.Metadata = map[string]interface{}{"duplicate_count": duplicates, "distinct_keys": len(seen)}
	return out, nil
}

func boundsText(min, max *float64) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("expected within [%s, %s]", formatFloat(*min), formatFloat(*max))
	case min != nil:
		return fmt.Sprintf("expected >= %s", formatFloat(*min))
	case max != nil:
		return fmt.Sprintf("expected <= %s", formatFloat(*max))
	default:
		return "no bounds configured"
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.4f", f)
}
