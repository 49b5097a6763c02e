// Package data provides thread-safe storage for the latest extraction
// result. The container uses atomic swaps so readers never block and never
// observe a half-published document.
package data

import (
	"sync/atomic"
	"time"

	"github.com/tripsit/erowid-doses/doseparser/entities"
	"github.com/tripsit/erowid-doses/interfaces"
	"github.com/tripsit/erowid-doses/logging"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds the published result behind atomic pointers.
type DataContainer struct {
	result          atomic.Value // *entities.ExtractionResult
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a container holding an empty result.
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.result.Store(&entities.ExtractionResult{})
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetResult returns the latest published extraction result. Never nil.
func (dc *DataContainer) GetResult() *entities.ExtractionResult {
	if v := dc.result.Load(); v != nil {
		if result, ok := v.(*entities.ExtractionResult); ok {
			return result
		}
	}

	logging.Warn("Extraction result is empty or invalid")
	return &entities.ExtractionResult{}
}

// GetLastUpdated returns the timestamp of the last published result.
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true while a crawl is publishing new data.
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time.
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time.
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateResult atomically publishes a new result.
func (dc *DataContainer) UpdateResult(result *entities.ExtractionResult) {
	if result == nil {
		logging.Warn("Refusing to publish a nil result")
		return
	}
	dc.result.Store(result)
	dc.lastUpdated.Store(time.Now())
}

// BeginUpdate marks the start of a crawl. Returns false if one is already
// in progress.
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a crawl.
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
