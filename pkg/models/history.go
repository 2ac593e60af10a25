package models

import "time"

// HistoryRecord is one persisted metric observation. History is append-only:
// the engine never deletes records, retention is an external concern.
//
// Sample optionally carries a bounded numeric value sample alongside the
// scalar, used by distribution-change checks as the historical reference
// distribution for continuous columns. Frequencies carries the category
// frequency table for categorical columns.
type HistoryRecord struct {
	CheckName   string             `json:"check_name"`
	GroupKey    string             `json:"group_key"`
	Timestamp   time.Time          `json:"run_timestamp"`
	Value       float64            `json:"metric_value"`
	Sample      []float64          `json:"sample,omitempty"`
	Frequencies map[string]float64 `json:"frequencies,omitempty"`
}

// HistoryValues extracts the scalar values of a record list, preserving
// order (most recent first, as returned by the store).
func HistoryValues(records []HistoryRecord) []float64 {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Value
	}
	return values
}
