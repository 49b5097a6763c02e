package doseparser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tripsit/erowid-doses/registry"
)

func TestExtractReportURLs(t *testing.T) {
	page := `<html><body>
		<a href="exp.php?ID=1">Report one</a>
		<a href="/experiences/exp.php?ID=2">Report two</a>
		<a href="https://www.erowid.org/experiences/exp.php?ID=3">Report three</a>
		<a href="exp.php?ID=1">Report one again</a>
		<a href="subs/subs.php">Not a report</a>
	</body></html>`

	urls := extractReportURLs(page)
	want := []string{
		"https://www.erowid.org/experiences/exp.php?ID=1",
		"https://www.erowid.org/experiences/exp.php?ID=2",
		"https://www.erowid.org/experiences/exp.php?ID=3",
	}
	if len(urls) != len(want) {
		t.Fatalf("got %d urls, want %d: %v", len(urls), len(want), urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestCollectReportURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="exp.php?ID=10">A</a>
			<a href="exp.php?ID=11">B</a>
		</body></html>`)
	}))
	defer srv.Close()

	fetcher := NewFetcher(5*time.Second, 1, 100, "test-agent")
	link := registry.CategoryLink{SubstanceID: "mdma", Category: "General", URL: srv.URL}

	urls, err := CollectReportURLs(context.Background(), fetcher, link)
	if err != nil {
		t.Fatalf("CollectReportURLs failed: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("got %d urls, want 2: %v", len(urls), urls)
	}
}

func TestCollectReportURLsPropagatesFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	fetcher := NewFetcher(5*time.Second, 1, 100, "test-agent")
	link := registry.CategoryLink{SubstanceID: "mdma", Category: "General", URL: srv.URL}

	if _, err := CollectReportURLs(context.Background(), fetcher, link); err == nil {
		t.Error("expected an error for a 404 category page, got nil")
	}
}
