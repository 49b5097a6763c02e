// Package scheduler runs the crawl on a schedule: one pass at startup, a
// daily re-crawl, and a staleness monitor that warns when the published
// data gets old.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/tripsit/erowid-doses/interfaces"
	"github.com/tripsit/erowid-doses/logging"
	"github.com/tripsit/erowid-doses/validation"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler coordinates crawl runs with the data container.
type Scheduler struct {
	dataStore interfaces.DataStore
	crawler   interfaces.Crawler
	scheduler *gocron.Scheduler

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler instance with injected dependencies.
func NewScheduler(dataStore interfaces.DataStore, crawler interfaces.Crawler) *Scheduler {
	return &Scheduler{
		dataStore: dataStore,
		crawler:   crawler,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start runs the initial crawl, then schedules the daily re-crawl and the
// staleness monitor. The initial crawl runs in the background so the HTTP
// server can come up and report "starting" while it works.
func (s *Scheduler) Start() error {
	go func() {
		if err := s.runCrawl(); err != nil {
			logging.Error("Initial crawl failed", "error", err)
		}
	}()

	_, err := s.scheduler.Every(1).Days().At("04:00").Do(func() {
		if err := s.runCrawl(); err != nil {
			logging.Error("Scheduled crawl failed", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule crawls", "error", err)
		return fmt.Errorf("failed to schedule crawls: %w", err)
	}

	s.scheduler.StartAsync()

	s.startStalenessMonitoring()

	return nil
}

// Stop stops the scheduler and cancels any crawl in flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.scheduler.Stop()
}

// runCrawl performs one complete crawl and publishes the result.
func (s *Scheduler) runCrawl() error {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Crawl already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	logging.Info(fmt.Sprintf("Starting crawl at: %s", time.Now().Format(time.RFC3339)))
	start := time.Now()

	result := s.crawler.Run(ctx)

	validator := validation.NewResultValidator()
	if err := validator.ValidateResult(result); err != nil {
		logging.Error("Crawl result rejected, keeping previous data", "error", err)
		return fmt.Errorf("crawl result rejected: %w", err)
	}

	report := validator.ReportQuality(result)
	if report.RoutesBelowBandMinimum > 0 {
		logging.Warn("Routes with too few observations for bands",
			"count", report.RoutesBelowBandMinimum)
	}
	if report.GroupsWithOutliers > 0 {
		logging.Warn("Groups containing outlier doses",
			"count", report.GroupsWithOutliers)
	}

	s.dataStore.UpdateResult(result)

	elapsed := time.Since(start)
	logging.Info("Crawl completed",
		"duration", elapsed.String(),
		"substance_count", len(result.Substances),
		"partial", result.Run.Partial,
	)

	return nil
}

// startStalenessMonitoring warns when the published data gets old. The
// re-crawl is daily, so anything over 25 hours means a run failed.
func (s *Scheduler) startStalenessMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			lastUpdate := s.dataStore.GetLastUpdated()
			if !lastUpdate.IsZero() && time.Since(lastUpdate) > 25*time.Hour {
				logging.Warn("Dose data hasn't been updated in over 25 hours")
			}
		}
	}()
}
