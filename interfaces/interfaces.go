// Package interfaces defines the contracts between the crawl pipeline, the
// data container and the scheduler, so each can be swapped in tests.
package interfaces

import (
	"context"
	"time"

	"github.com/tripsit/erowid-doses/doseparser/entities"
)

// DataStore defines the contract for result storage. It provides
// thread-safe access to the latest extraction result with atomic swaps for
// zero-downtime updates.
type DataStore interface {
	GetResult() *entities.ExtractionResult
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	UpdateResult(result *entities.ExtractionResult)
	BeginUpdate() bool
	EndUpdate()
}

// Crawler defines the contract for running one full extraction pass.
type Crawler interface {
	// Run crawls every configured category and returns the extraction
	// result. The result is never nil; cancellation yields a partial one.
	Run(ctx context.Context) *entities.ExtractionResult
}

// Scheduler defines the contract for the periodic re-crawl job.
type Scheduler interface {
	Start() error
	Stop()
}

// ResultValidator defines the contract for checking a finished extraction
// result before it is published.
type ResultValidator interface {
	ValidateResult(result *entities.ExtractionResult) error
	ReportQuality(result *entities.ExtractionResult) *QualityReport
}

// QualityReport summarizes issues found in an extraction result.
type QualityReport struct {
	SubstancesWithBands    int
	SubstancesStatsOnly    int
	RoutesBelowBandMinimum int
	GroupsWithOutliers     int
	EmptyRouteMaps         int
}
