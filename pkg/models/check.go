package models

import (
	"time"
)

// CheckKind identifies one of the supported check types. The set is closed:
// configuration loaders map external string identifiers onto these values at
// the boundary and the engine dispatches on them directly.
type CheckKind string

const (
	KindRowCount           CheckKind = "row_count"
	KindNullCheck          CheckKind = "null_check"
	KindTypeCheck          CheckKind = "type_check"
	KindRangeCheck         CheckKind = "range_check"
	KindPatternMatch       CheckKind = "pattern_match"
	KindAcceptedValues     CheckKind = "accepted_values"
	KindUniqueness         CheckKind = "uniqueness"
	KindStaticThreshold    CheckKind = "static_threshold"
	KindPercentDelta       CheckKind = "percent_delta"
	KindAnomalyDetection   CheckKind = "anomaly_detection"
	KindPredictedRange     CheckKind = "predicted_range"
	KindDistributionChange CheckKind = "distribution_change"
	KindEntropy            CheckKind = "entropy"
	KindBenfordLaw         CheckKind = "benford_law"
	KindCorrelation        CheckKind = "correlation"
	KindCustomQuery        CheckKind = "custom_query"
	KindCustomExpression   CheckKind = "custom_expression"
	KindCrossTable         CheckKind = "cross_table"
)

// AllCheckKinds lists every supported check kind.
func AllCheckKinds() []CheckKind {
	return []CheckKind{
		KindRowCount, KindNullCheck, KindTypeCheck, KindRangeCheck,
		KindPatternMatch, KindAcceptedValues, KindUniqueness,
		KindStaticThreshold, KindPercentDelta,
		KindAnomalyDetection, KindPredictedRange, KindDistributionChange,
		KindEntropy, KindBenfordLaw, KindCorrelation,
		KindCustomQuery, KindCustomExpression, KindCrossTable,
	}
}

// Severity classifies the impact of a failing check.
type Severity string

const (
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// CheckStatus tracks a check evaluation through its lifecycle. SKIPPED is
// terminal success and only occurs for explicitly defined insufficient-data
// conditions; ERRORED means the check could not run and is excluded from
// blocking-failure computation.
type CheckStatus string

const (
	StatusPending   CheckStatus = "PENDING"
	StatusPlanned   CheckStatus = "PLANNED"
	StatusEvaluated CheckStatus = "EVALUATED"
	StatusSkipped   CheckStatus = "SKIPPED"
	StatusErrored   CheckStatus = "ERRORED"
)

// GroupKeyAll is the sentinel group key used for ungrouped evaluations.
const GroupKeyAll = "ALL"

// CheckDefinition is the immutable description of one configured check
// instance. Parameters are kind-specific and validated at load time, before
// any evaluation starts.
type CheckDefinition struct {
	Name            string                 `json:"name" yaml:"name"`
	Kind            CheckKind              `json:"check_type" yaml:"check_type"`
	Parameters      map[string]interface{} `json:"parameters" yaml:"parameters"`
	GroupBy         string                 `json:"group_by,omitempty" yaml:"group_by,omitempty"`
	AllowedFailures int                    `json:"allowed_failures" yaml:"allowed_failures"`
	Blocking        bool                   `json:"blocking" yaml:"blocking"`
	Severity        Severity               `json:"severity" yaml:"severity"`
}

// CheckOutcome is what a check implementation produces for a single dataset
// slice (the whole dataset, or one group). The engine wraps it into a
// CheckResult together with identity, severity and status.
type CheckOutcome struct {
	Passed     bool                   `json:"passed"`
	Skipped    bool                   `json:"skipped,omitempty"`
	SkipReason string                 `json:"skip_reason,omitempty"`
	Observed   interface{}            `json:"observed_value"`
	Message    string                 `json:"message,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// CheckResult is the output unit: one per (check, group) pair. For ungrouped
// checks GroupKey is GroupKeyAll.
type CheckResult struct {
	CheckName string                 `json:"check_name"`
	GroupKey  string                 `json:"group_key"`
	Kind      CheckKind              `json:"check_type"`
	Status    CheckStatus            `json:"status"`
	Passed    bool                   `json:"passed"`
	Severity  Severity               `json:"severity"`
	Blocking  bool                   `json:"blocking"`
	Observed  interface{}            `json:"observed_value,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Duration  time.Duration          `json:"duration"`
}

// Failed reports whether this result is a genuine check failure. Errored and
// skipped entries are never failures.
func (r *CheckResult) Failed() bool {
	return r.Status == StatusEvaluated && !r.Passed
}

// CheckSummary aggregates the per-group results of one configured check and
// applies the allowed-failures tolerance.
type CheckSummary struct {
	CheckName       string    `json:"check_name"`
	Kind            CheckKind `json:"check_type"`
	TotalGroups     int       `json:"total_groups"`
	FailedGroups    int       `json:"failed_groups"`
	ErroredGroups   int       `json:"errored_groups"`
	SkippedGroups   int       `json:"skipped_groups"`
	AllowedFailures int       `json:"allowed_failures"`
	Passed          bool      `json:"passed"`
	Blocking        bool      `json:"blocking"`
	Severity        Severity  `json:"severity"`
}

// AssetCheckReport collects the results of one asset-evaluation pass in the
// order checks were declared, with grouped checks' results ordered by group
// key ascending. The report is built commit-as-you-go, so a cancelled run
// still carries every completed result.
type AssetCheckReport struct {
	ReportID           string         `json:"report_id"`
	AssetID            string         `json:"asset_id"`
	StartedAt          time.Time      `json:"started_at"`
	CompletedAt        time.Time      `json:"completed_at"`
	Results            []*CheckResult `json:"results"`
	Summaries          []*CheckSummary `json:"summaries"`
	HasBlockingFailure bool           `json:"has_blocking_failure"`
	Cancelled          bool           `json:"cancelled,omitempty"`
}

// ResultsFor returns the results belonging to one named check, in group-key
// order as reported.
func (r *AssetCheckReport) ResultsFor(checkName string) []*CheckResult {
	var out []*CheckResult
	for _, res := range r.Results {
		if res.CheckName == checkName {
			out = append(out, res)
		}
	}
	return out
}

// SummaryFor returns the summary for one named check, or nil.
func (r *AssetCheckReport) SummaryFor(checkName string) *CheckSummary {
	for _, s := range r.Summaries {
		if s.CheckName == checkName {
			return s
		}
	}
	return nil
}
