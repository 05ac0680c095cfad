package models

import (
	"encoding/json"
	"time"
)

// OpportunityReport is the immutable ranked output of one engine run.
// Opportunities are sorted descending by |score|, ties broken
// alphabetically by symbol; neutral entries, when kept, come last.
// Accessors return copies so callers cannot mutate the report.
type OpportunityReport struct {
	sessionDate    time.Time
	opportunities  []CombinedOpportunity
	warnings       []Warning
	neutralDropped int
}

// NewOpportunityReport builds a report over an already-ordered slice.
// Ordering is the combiner's responsibility; the report only guards
// against later mutation by copying its inputs.
func NewOpportunityReport(sessionDate time.Time, opps []CombinedOpportunity, warnings []Warning, neutralDropped int) *OpportunityReport {
	r := &OpportunityReport{
		sessionDate:    sessionDate,
		opportunities:  make([]CombinedOpportunity, len(opps)),
		warnings:       make([]Warning, len(warnings)),
		neutralDropped: neutralDropped,
	}
	copy(r.opportunities, opps)
	copy(r.warnings, warnings)
	return r
}

// SessionDate returns the trading session the report was computed from.
func (r *OpportunityReport) SessionDate() time.Time { return r.sessionDate }

// Len returns the number of ranked opportunities.
func (r *OpportunityReport) Len() int { return len(r.opportunities) }

// NeutralDropped returns how many symbols the dead-zone policy excluded.
func (r *OpportunityReport) NeutralDropped() int { return r.neutralDropped }

// All returns a copy of the ranked opportunities.
func (r *OpportunityReport) All() []CombinedOpportunity {
	out := make([]CombinedOpportunity, len(r.opportunities))
	copy(out, r.opportunities)
	return out
}

// TopN returns the first n opportunities by rank.
func (r *OpportunityReport) TopN(n int) []CombinedOpportunity {
	if n < 0 {
		n = 0
	}
	if n > len(r.opportunities) {
		n = len(r.opportunities)
	}
	out := make([]CombinedOpportunity, n)
	copy(out, r.opportunities[:n])
	return out
}

// FilterByDirection returns the opportunities with the given direction,
// preserving rank order.
func (r *OpportunityReport) FilterByDirection(d Direction) []CombinedOpportunity {
	var out []CombinedOpportunity
	for _, o := range r.opportunities {
		if o.Direction == d {
			out = append(out, o)
		}
	}
	return out
}

// Warnings returns a copy of the run's warnings.
func (r *OpportunityReport) Warnings() []Warning {
	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// WarningCounts aggregates warnings by kind.
func (r *OpportunityReport) WarningCounts() map[WarningKind]int {
	counts := map[WarningKind]int{}
	for _, w := range r.warnings {
		counts[w.Kind]++
	}
	return counts
}

// ReportRow is one typed table row for presentation collaborators.
// The report never formats values; rendering is the caller's job.
type ReportRow struct {
	Rank           int       `json:"rank"`
	Symbol         string    `json:"symbol"`
	Score          float64   `json:"score"`
	Direction      Direction `json:"direction"`
	OptionStrength float64   `json:"option_strength"`
	HasOption      bool      `json:"has_option"`
	FutureStrength float64   `json:"future_strength"`
	HasFuture      bool      `json:"has_future"`
	PCR            float64   `json:"pcr"`
	Basis          float64   `json:"basis"`
	Buildup        Buildup   `json:"buildup"`
	UnusualVolume  bool      `json:"unusual_volume"`
}

// Table returns the full ranking as typed rows.
func (r *OpportunityReport) Table() []ReportRow {
	rows := make([]ReportRow, 0, len(r.opportunities))
	for i, o := range r.opportunities {
		row := ReportRow{
			Rank:      i + 1,
			Symbol:    o.Symbol,
			Score:     o.Score,
			Direction: o.Direction,
		}
		if o.Option != nil {
			row.HasOption = true
			row.OptionStrength = o.Option.Strength
			row.PCR = o.Option.PCR
			row.Buildup = o.Option.Buildup
			row.UnusualVolume = o.Option.UnusualVolume
		}
		if o.Future != nil {
			row.HasFuture = true
			row.FutureStrength = o.Future.Strength
			row.Basis = o.Future.Basis
			if row.Buildup == "" {
				row.Buildup = o.Future.Buildup
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// reportJSON is the wire form of an OpportunityReport.
type reportJSON struct {
	SessionDate    string                `json:"session_date"`
	Opportunities  []CombinedOpportunity `json:"opportunities"`
	Warnings       []Warning             `json:"warnings"`
	WarningCounts  map[WarningKind]int   `json:"warning_counts"`
	NeutralDropped int                   `json:"neutral_dropped"`
}

// MarshalJSON serializes the report for the dashboard API.
func (r *OpportunityReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		SessionDate:    r.sessionDate.Format("2006-01-02"),
		Opportunities:  r.All(),
		Warnings:       r.Warnings(),
		WarningCounts:  r.WarningCounts(),
		NeutralDropped: r.neutralDropped,
	})
}
