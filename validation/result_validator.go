// Package validation checks extraction results before they are published:
// band partitions must be contiguous and ordered, stats internally
// consistent, and the document non-empty.
package validation

import (
	"fmt"

	"github.com/tripsit/erowid-doses/doseparser/entities"
	"github.com/tripsit/erowid-doses/interfaces"
)

// Compile-time check to ensure ResultValidator implements the contract
var _ interfaces.ResultValidator = (*ResultValidator)(nil)

// ResultValidator validates extraction results.
type ResultValidator struct{}

// NewResultValidator creates a new validator.
func NewResultValidator() *ResultValidator {
	return &ResultValidator{}
}

// ValidateResult returns an error describing the first structural problem
// found, or nil when the result is publishable. An empty result is an
// error: publishing it would wipe the previous good data.
func (v *ResultValidator) ValidateResult(result *entities.ExtractionResult) error {
	if result == nil {
		return fmt.Errorf("result is nil")
	}
	if len(result.Substances) == 0 {
		return fmt.Errorf("result contains no substances")
	}

	for _, substance := range result.Substances {
		if substance.ID == "" {
			return fmt.Errorf("substance with empty id")
		}
		if len(substance.Routes) == 0 {
			return fmt.Errorf("substance %q has no routes", substance.ID)
		}
		for route, doses := range substance.Routes {
			if err := validateRoute(doses); err != nil {
				return fmt.Errorf("substance %q route %q: %w", substance.ID, route, err)
			}
		}
	}
	return nil
}

// validateRoute checks one route's stats and band partition.
func validateRoute(doses entities.RouteDoses) error {
	stats := doses.Stats
	if stats.Count <= 0 {
		return fmt.Errorf("non-positive observation count %d", stats.Count)
	}
	if stats.Min > stats.Median || stats.Median > stats.Max {
		return fmt.Errorf("stats out of order: min=%v median=%v max=%v", stats.Min, stats.Median, stats.Max)
	}
	if doses.Unit == "" {
		return fmt.Errorf("empty unit")
	}

	if len(doses.Bands) == 0 {
		return nil
	}

	if doses.Bands[0].Lower != 0 {
		return fmt.Errorf("first band starts at %v, want 0", doses.Bands[0].Lower)
	}
	last := doses.Bands[len(doses.Bands)-1]
	if last.Upper != nil {
		return fmt.Errorf("last band has an upper bound")
	}

	for i := 0; i < len(doses.Bands)-1; i++ {
		band := doses.Bands[i]
		if band.Upper == nil {
			return fmt.Errorf("band %q has no upper bound but is not last", band.Label)
		}
		if *band.Upper < band.Lower {
			return fmt.Errorf("band %q has upper %v below lower %v", band.Label, *band.Upper, band.Lower)
		}
		if doses.Bands[i+1].Lower != *band.Upper {
			return fmt.Errorf("gap between band %q and %q", band.Label, doses.Bands[i+1].Label)
		}
	}
	return nil
}

// ReportQuality summarizes soft issues worth logging but not worth
// rejecting the result over.
func (v *ResultValidator) ReportQuality(result *entities.ExtractionResult) *interfaces.QualityReport {
	report := &interfaces.QualityReport{}
	if result == nil {
		return report
	}

	for _, substance := range result.Substances {
		if len(substance.Routes) == 0 {
			report.EmptyRouteMaps++
			continue
		}

		banded := false
		for _, doses := range substance.Routes {
			if len(doses.Bands) > 0 {
				banded = true
			} else {
				report.RoutesBelowBandMinimum++
			}
			if doses.Stats.Outliers > 0 {
				report.GroupsWithOutliers++
			}
		}
		if banded {
			report.SubstancesWithBands++
		} else {
			report.SubstancesStatsOnly++
		}
	}
	return report
}
