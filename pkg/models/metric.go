package models

import (
	"fmt"
	"strings"
)

// Aggregate names supported by the metric grammar and the accessor contract.
const (
	AggNumRows       = "num_rows"
	AggMean          = "mean"
	AggSum           = "sum"
	AggMin           = "min"
	AggMax           = "max"
	AggCountNull     = "count_null"
	AggCountDistinct = "count_distinct"
)

// Metric is a parsed metric expression: either the bare `num_rows` or
// `{aggregate}:{column}`.
type Metric struct {
	Aggregate string `json:"aggregate"`
	Column    string `json:"column,omitempty"`
}

var columnAggregates = map[string]bool{
	AggMean:          true,
	AggSum:           true,
	AggMin:           true,
	AggMax:           true,
	AggCountNull:     true,
	AggCountDistinct: true,
}

// ParseMetric parses a metric expression of the form `num_rows` or
// `{aggregate}:{column}`.
func ParseMetric(expr string) (Metric, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Metric{}, fmt.Errorf("empty metric expression")
	}
	if expr == AggNumRows {
		return Metric{Aggregate: AggNumRows}, nil
	}
	parts := strings.SplitN(expr, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Metric{}, fmt.Errorf("invalid metric expression %q: expected num_rows or {aggregate}:{column}", expr)
	}
	agg := strings.TrimSpace(parts[0])
	if !columnAggregates[agg] {
		return Metric{}, fmt.Errorf("invalid metric expression %q: unknown aggregate %q", expr, agg)
	}
	return Metric{Aggregate: agg, Column: strings.TrimSpace(parts[1])}, nil
}

// String renders the metric back to its expression form.
func (m Metric) String() string {
	if m.Aggregate == AggNumRows {
		return AggNumRows
	}
	return m.Aggregate + ":" + m.Column
}

// MetricValue is a scalar produced by evaluating a metric expression against
// a dataset slice, tagged with the group it belongs to.
type MetricValue struct {
	Metric   Metric  `json:"metric"`
	GroupKey string  `json:"group_key"`
	Value    float64 `json:"value"`
}
