// Package entities contains the value types produced by the dose extraction
// pipeline: raw observations, intensity bands and the final result document.
package entities

import (
	"bytes"
	"encoding/json"
	"time"
)

// DoseObservation is one (amount, unit, route, substance) tuple extracted
// from a single experience report. Amounts are always positive; range
// mentions ("50-70mg") are reduced to their mean and flagged with FromRange.
type DoseObservation struct {
	SubstanceID string
	Route       string
	Amount      float64
	Unit        string
	SourceURL   string
	FromRange   bool
}

// GroupKey identifies one (substance, route) observation group.
type GroupKey struct {
	SubstanceID string
	Route       string
}

// ReportPage is a fetched experience report. Err is non-nil when the fetch
// failed; Text is empty in that case.
type ReportPage struct {
	URL  string
	Text string
	Err  error
}

// IntensityBand is one named dose range in the group's unit. Bands form a
// contiguous half-open partition [Lower, Upper) of [0, +inf); the last band
// has no upper bound and serializes without one.
type IntensityBand struct {
	Label string   `json:"label"`
	Lower float64  `json:"lower"`
	Upper *float64 `json:"upper,omitempty"`
}

// Contains reports whether amount falls inside the band.
func (b IntensityBand) Contains(amount float64) bool {
	if amount < b.Lower {
		return false
	}
	return b.Upper == nil || amount < *b.Upper
}

// RouteStats summarizes the raw observations of one (substance, route)
// group, outliers included.
type RouteStats struct {
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Median   float64 `json:"median"`
	Outliers int     `json:"outliers,omitempty"`
}

// RouteDoses holds the banding result for one route of one substance.
// Bands is empty when the group had fewer samples than the banding minimum.
type RouteDoses struct {
	Unit  string          `json:"unit"`
	Bands []IntensityBand `json:"bands,omitempty"`
	Stats RouteStats      `json:"stats"`
}

// SubstanceDoses groups the per-route results of one substance.
type SubstanceDoses struct {
	ID     string                `json:"id"`
	Name   string                `json:"-"`
	Routes map[string]RouteDoses `json:"routes"`
}

// RunStats carries the crawl counters reported by the coordinator.
type RunStats struct {
	URLsDiscovered int64     `json:"urls_discovered"`
	ReportsFetched int64     `json:"reports_fetched"`
	FetchFailures  int64     `json:"fetch_failures"`
	Observations   int64     `json:"observations"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Partial        bool      `json:"partial,omitempty"`
}

// ExtractionResult is the final document. Substances keeps registry order,
// which MarshalJSON preserves so runs stay diffable.
type ExtractionResult struct {
	Substances []SubstanceDoses
	Run        RunStats
}

// FindSubstance looks a substance up by id or display name.
func (r *ExtractionResult) FindSubstance(key string) *SubstanceDoses {
	for i := range r.Substances {
		if r.Substances[i].ID == key || r.Substances[i].Name == key {
			return &r.Substances[i]
		}
	}
	return nil
}

// MarshalJSON emits the substances as an object keyed by display name, in
// slice order. encoding/json would sort a map's keys alphabetically, which
// would lose the registry ordering.
func (r *ExtractionResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"substances":{`)
	for i := range r.Substances {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.Substances[i].Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Substances[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`},"run":`)
	run, err := json.Marshal(r.Run)
	if err != nil {
		return nil, err
	}
	buf.Write(run)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
