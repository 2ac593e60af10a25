package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/inferloop/dqcore/pkg/models"
)

// reporter assembles the asset report commit-as-you-go: every completed
// result is appended immediately, so a cancelled run still returns the
// results produced up to that point.
type reporter struct {
	report *models.AssetCheckReport
}

func newReporter(assetID string) *reporter {
	return &reporter{
		report: &models.AssetCheckReport{
			ReportID:  uuid.NewString(),
			AssetID:   assetID,
			StartedAt: time.Now().UTC(),
		},
	}
}

// add commits one result.
func (r *reporter) add(result *models.CheckResult) {
	r.report.Results = append(r.report.Results, result)
}

// summarize applies the allowed-failures tolerance across the group results
// of one check and folds the blocking signal into the report. Errored and
// skipped groups never count as failures.
func (r *reporter) summarize(def *models.CheckDefinition, groupResults []*models.CheckResult) *models.CheckSummary {
	summary := &models.CheckSummary{
		CheckName:       def.Name,
		Kind:            def.Kind,
		TotalGroups:     len(groupResults),
		AllowedFailures: def.AllowedFailures,
		Blocking:        def.Blocking,
		Severity:        def.Severity,
	}
	for _, res := range groupResults {
		switch {
		case res.Status == models.StatusErrored:
			summary.ErroredGroups++
		case res.Status == models.StatusSkipped:
			summary.SkippedGroups++
		case res.Failed():
			summary.FailedGroups++
		}
	}
	summary.Passed = summary.FailedGroups <= summary.AllowedFailures

	if !summary.Passed && def.Blocking {
		r.report.HasBlockingFailure = true
	}
	r.report.Summaries = append(r.report.Summaries, summary)
	return summary
}

// finish stamps the report complete.
func (r *reporter) finish(cancelled bool) *models.AssetCheckReport {
	r.report.CompletedAt = time.Now().UTC()
	r.report.Cancelled = cancelled
	return r.report
}
