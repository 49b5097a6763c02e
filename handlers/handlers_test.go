package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tripsit/erowid-doses/data"
	"github.com/tripsit/erowid-doses/doseparser/entities"
)

func populatedContainer() *data.DataContainer {
	dc := data.NewDataContainer()
	dc.SetServerStartTime(time.Now())
	dc.UpdateResult(&entities.ExtractionResult{
		Substances: []entities.SubstanceDoses{
			{
				ID:   "mdma",
				Name: "MDMA",
				Routes: map[string]entities.RouteDoses{
					"oral": {Unit: "mg", Stats: entities.RouteStats{Count: 3, Min: 80, Max: 120, Median: 100}},
				},
			},
		},
	})
	return dc
}

// testRouter mounts the handlers the way the server does, so URL params
// resolve.
func testRouter(dc *data.DataContainer) http.Handler {
	r := chi.NewRouter()
	r.Get("/doses", ServeDoses(dc))
	r.Get("/doses/{substance}", FindSubstanceDoses(dc))
	r.Get("/health", HealthCheck(dc))
	return r
}

func TestServeDoses(t *testing.T) {
	router := testRouter(populatedContainer())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doses", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if _, ok := doc["substances"]; !ok {
		t.Errorf("body missing substances: %s", rec.Body.String())
	}
}

func TestServeDosesBeforeFirstCrawl(t *testing.T) {
	router := testRouter(data.NewDataContainer())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doses", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestFindSubstanceDoses(t *testing.T) {
	router := testRouter(populatedContainer())

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/doses/mdma", http.StatusOK},
		{"/doses/MDMA", http.StatusOK},
		{"/doses/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.wantCode {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.wantCode)
		}
	}
}

func TestFindSubstanceDosesPayload(t *testing.T) {
	router := testRouter(populatedContainer())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doses/mdma", nil))

	var substance entities.SubstanceDoses
	if err := json.Unmarshal(rec.Body.Bytes(), &substance); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if substance.ID != "mdma" {
		t.Errorf("id = %q, want mdma", substance.ID)
	}
	if substance.Routes["oral"].Stats.Median != 100 {
		t.Errorf("routes = %+v", substance.Routes)
	}
}

func TestHealthCheck(t *testing.T) {
	t.Run("with data", func(t *testing.T) {
		router := testRouter(populatedContainer())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var health HealthData
		if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
			t.Fatalf("body is not valid JSON: %v", err)
		}
		if health.Status != "healthy" || health.SubstanceCount != 1 {
			t.Errorf("health = %+v", health)
		}
	})

	t.Run("before first crawl", func(t *testing.T) {
		router := testRouter(data.NewDataContainer())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		var health HealthData
		if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
			t.Fatalf("body is not valid JSON: %v", err)
		}
		if health.Status != "starting" {
			t.Errorf("status = %q, want starting", health.Status)
		}
	})
}
