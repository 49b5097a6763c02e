package doseparser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tripsit/erowid-doses/doseparser/entities"
	"github.com/tripsit/erowid-doses/logging"
	"github.com/tripsit/erowid-doses/metrics"
	"github.com/tripsit/erowid-doses/registry"
)

// reportTask is one report page to fetch, attributed to the substance whose
// category page surfaced it.
type reportTask struct {
	url         string
	substanceID string
}

// Coordinator runs a complete crawl: category discovery, report fetching
// through a worker pool, extraction and aggregation into the final document.
// One Coordinator is built per process; Run may be called repeatedly but
// never concurrently with itself.
type Coordinator struct {
	registry       *registry.Registry
	links          []registry.CategoryLink
	fetcher        *Fetcher
	extractor      *Extractor
	workers        int
	maxPerCategory int

	urlsDiscovered atomic.Int64
	reportsFetched atomic.Int64
	fetchFailures  atomic.Int64
	observations   atomic.Int64
	blocked        atomic.Bool
}

// NewCoordinator wires a crawl pipeline together.
func NewCoordinator(reg *registry.Registry, links []registry.CategoryLink, fetcher *Fetcher, workers, maxPerCategory int) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	return &Coordinator{
		registry:       reg,
		links:          links,
		fetcher:        fetcher,
		extractor:      NewExtractor(reg),
		workers:        workers,
		maxPerCategory: maxPerCategory,
	}
}

// Run performs a full crawl and returns the extraction result. Cancelling
// the context stops new work but lets in-flight fetches finish; the result
// then covers whatever was processed and is marked partial. Run never
// returns nil.
func (c *Coordinator) Run(ctx context.Context) *entities.ExtractionResult {
	started := time.Now()
	c.urlsDiscovered.Store(0)
	c.reportsFetched.Store(0)
	c.fetchFailures.Store(0)
	c.observations.Store(0)
	c.blocked.Store(false)

	logging.Info("Starting crawl", "categories", len(c.links), "workers", c.workers)

	tasks := c.discoverReports(ctx)
	logging.Info("Discovery finished", "report_urls", len(tasks))

	groups := c.processReports(ctx, tasks)

	finished := time.Now()
	run := entities.RunStats{
		URLsDiscovered: c.urlsDiscovered.Load(),
		ReportsFetched: c.reportsFetched.Load(),
		FetchFailures:  c.fetchFailures.Load(),
		Observations:   c.observations.Load(),
		StartedAt:      started,
		FinishedAt:     finished,
		Partial:        c.blocked.Load() || ctx.Err() != nil || c.fetchFailures.Load() > 0,
	}

	metrics.CrawlDuration.Observe(finished.Sub(started).Seconds())
	status := "complete"
	if run.Partial {
		status = "partial"
	}
	metrics.CrawlsTotal.WithLabelValues(status).Inc()

	logging.Info("Crawl finished",
		"status", status,
		"reports_fetched", run.ReportsFetched,
		"fetch_failures", run.FetchFailures,
		"observations", run.Observations,
		"duration", finished.Sub(started).Round(time.Second).String(),
	)

	return Assemble(c.registry, groups, run)
}

// discoverReports fetches every category index page concurrently, then
// merges the per-category URL lists sequentially in link order. The merge
// order makes first-seen deduplication deterministic: a report linked from
// two categories is always attributed to the earlier link.
func (c *Coordinator) discoverReports(ctx context.Context) []reportTask {
	results := make([][]string, len(c.links))

	var wg sync.WaitGroup
	sem := make(chan struct{}, c.workers)
	for i, link := range c.links {
		if ctx.Err() != nil || c.blocked.Load() {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, link registry.CategoryLink) {
			defer wg.Done()
			defer func() { <-sem }()

			urls, err := CollectReportURLs(ctx, c.fetcher, link)
			if err != nil {
				c.noteFetchFailure(err)
				logging.Warn("Category page fetch failed",
					"substance", link.SubstanceID, "category", link.Category, "error", err)
				return
			}
			if c.maxPerCategory > 0 && len(urls) > c.maxPerCategory {
				urls = urls[:c.maxPerCategory]
			}
			results[i] = urls
		}(i, link)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var tasks []reportTask
	for i, link := range c.links {
		for _, u := range results[i] {
			if seen[u] {
				continue
			}
			seen[u] = true
			tasks = append(tasks, reportTask{url: u, substanceID: link.SubstanceID})
		}
	}

	c.urlsDiscovered.Store(int64(len(tasks)))
	metrics.URLsDiscovered.Add(float64(len(tasks)))
	return tasks
}

// processReports drives the worker pool over the report tasks. Workers fetch
// and extract; a single aggregator goroutine owns the group map, so no lock
// guards it. Once any worker sees a block response, the producer stops
// handing out tasks.
func (c *Coordinator) processReports(ctx context.Context, tasks []reportTask) map[entities.GroupKey][]entities.DoseObservation {
	taskChan := make(chan reportTask, c.workers*2)
	obsChan := make(chan []entities.DoseObservation, c.workers)

	var workers sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for task := range taskChan {
				c.processOne(ctx, task, obsChan)
			}
		}()
	}

	go func() {
		defer close(taskChan)
		for _, task := range tasks {
			if ctx.Err() != nil || c.blocked.Load() {
				return
			}
			select {
			case taskChan <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		workers.Wait()
		close(obsChan)
	}()

	groups := make(map[entities.GroupKey][]entities.DoseObservation)
	for batch := range obsChan {
		for _, obs := range batch {
			key := entities.GroupKey{SubstanceID: obs.SubstanceID, Route: obs.Route}
			groups[key] = append(groups[key], obs)
		}
		c.observations.Add(int64(len(batch)))
		metrics.ObservationsExtracted.Add(float64(len(batch)))
	}
	return groups
}

// processOne fetches a single report and sends its observations to the
// aggregator. Failures are counted and logged, never fatal.
func (c *Coordinator) processOne(ctx context.Context, task reportTask, obsChan chan<- []entities.DoseObservation) {
	page := c.fetcher.FetchPage(ctx, task.url)
	if page.Err != nil {
		c.noteFetchFailure(page.Err)
		logging.Warn("Report fetch failed", "url", task.url, "error", page.Err)
		return
	}

	c.reportsFetched.Add(1)
	metrics.ReportsFetched.Inc()

	text := ReportText(page.Text)
	observations := c.extractor.Extract(text, task.url, task.substanceID)
	if len(observations) > 0 {
		obsChan <- observations
	}
}

// noteFetchFailure updates the failure counters and flips the blocked flag
// when the site has shut us out. Cancellation is the user stopping the run,
// not the network failing: tasks abandoned on shutdown do not count as
// fetch failures. Per-request timeouts surface as DeadlineExceeded and
// still count.
func (c *Coordinator) noteFetchFailure(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	c.fetchFailures.Add(1)
	metrics.FetchFailures.WithLabelValues(failureKind(err)).Inc()

	if errors.Is(err, ErrBlocked) && !c.blocked.Swap(true) {
		logging.Error("Source site blocked the crawler, stopping new requests")
	}
}

// failureKind labels a fetch failure for the metrics counter.
func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrPermanent):
		return "permanent"
	default:
		return "transient"
	}
}
