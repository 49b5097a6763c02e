package scheduler

import (
	"context"
	"testing"

	"github.com/tripsit/erowid-doses/data"
	"github.com/tripsit/erowid-doses/doseparser/entities"
)

// fakeCrawler returns a canned result and remembers whether it ran.
type fakeCrawler struct {
	result *entities.ExtractionResult
	runs   int
}

func (f *fakeCrawler) Run(ctx context.Context) *entities.ExtractionResult {
	f.runs++
	return f.result
}

func validResult() *entities.ExtractionResult {
	return &entities.ExtractionResult{
		Substances: []entities.SubstanceDoses{
			{
				ID:   "mdma",
				Name: "MDMA",
				Routes: map[string]entities.RouteDoses{
					"oral": {Unit: "mg", Stats: entities.RouteStats{Count: 3, Min: 80, Max: 120, Median: 100}},
				},
			},
		},
	}
}

func TestRunCrawlPublishesValidResult(t *testing.T) {
	store := data.NewDataContainer()
	crawler := &fakeCrawler{result: validResult()}
	s := NewScheduler(store, crawler)

	if err := s.runCrawl(); err != nil {
		t.Fatalf("runCrawl failed: %v", err)
	}
	if crawler.runs != 1 {
		t.Errorf("crawler ran %d times, want 1", crawler.runs)
	}
	if len(store.GetResult().Substances) != 1 {
		t.Error("result not published")
	}
	if store.GetLastUpdated().IsZero() {
		t.Error("last-updated not set")
	}
}

func TestRunCrawlRejectsEmptyResult(t *testing.T) {
	store := data.NewDataContainer()
	store.UpdateResult(validResult())
	before := store.GetLastUpdated()

	crawler := &fakeCrawler{result: &entities.ExtractionResult{}}
	s := NewScheduler(store, crawler)

	if err := s.runCrawl(); err == nil {
		t.Fatal("runCrawl accepted an empty result")
	}
	// The previous good data survives a bad crawl.
	if len(store.GetResult().Substances) != 1 {
		t.Error("previous result was wiped")
	}
	if !store.GetLastUpdated().Equal(before) {
		t.Error("last-updated moved despite the rejection")
	}
}

func TestRunCrawlSkipsWhenUpdateInProgress(t *testing.T) {
	store := data.NewDataContainer()
	crawler := &fakeCrawler{result: validResult()}
	s := NewScheduler(store, crawler)

	if !store.BeginUpdate() {
		t.Fatal("BeginUpdate failed")
	}
	defer store.EndUpdate()

	if err := s.runCrawl(); err != nil {
		t.Fatalf("runCrawl returned error on skip: %v", err)
	}
	if crawler.runs != 0 {
		t.Errorf("crawler ran %d times during a concurrent update, want 0", crawler.runs)
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := NewScheduler(data.NewDataContainer(), &fakeCrawler{result: validResult()})
	// Must not panic with no crawl in flight.
	s.Stop()
}
