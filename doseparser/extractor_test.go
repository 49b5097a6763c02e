package doseparser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tripsit/erowid-doses/registry"
)

// testRegistry builds a small registry shared by the extraction tests.
func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	content := `{
		"mdma": {"pretty_name": "MDMA", "aliases": ["ecstasy", "molly"], "routes": ["oral"]},
		"ketamine": {"pretty_name": "Ketamine", "aliases": ["ket", "special k"], "routes": ["insufflated"]},
		"2c-b": {"pretty_name": "2C-B", "aliases": ["nexus"], "routes": ["oral"]}
	}`
	path := filepath.Join(t.TempDir(), "drugs.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write registry fixture: %v", err)
	}
	reg, err := registry.Load(path)
	if err != nil {
		t.Fatalf("failed to load registry fixture: %v", err)
	}
	return reg
}

func TestExtractBasicObservation(t *testing.T) {
	e := NewExtractor(testRegistry(t))

	obs := e.Extract("I took 100mg of MDMA orally and waited.", "http://x/1", "")
	if len(obs) != 1 {
		t.Fatalf("got %d observations, want 1: %+v", len(obs), obs)
	}
	got := obs[0]
	if got.SubstanceID != "mdma" || got.Route != "oral" || got.Amount != 100 || got.Unit != "mg" {
		t.Errorf("observation = %+v", got)
	}
	if got.SourceURL != "http://x/1" {
		t.Errorf("sourceURL = %q", got.SourceURL)
	}
}

func TestExtractRouteKeywords(t *testing.T) {
	e := NewExtractor(testRegistry(t))

	tests := []struct {
		text string
		want string
	}{
		{"Snorted 50mg of ketamine.", "insufflated"},
		{"I swallowed 100mg of MDMA.", "oral"},
		{"Smoked around 20mg of 2C-B.", "smoked"},
		{"Plugged 30mg of ketamine.", "rectal"},
		{"Took 100mg of MDMA.", RouteUnspecified},
	}

	for _, tt := range tests {
		obs := e.Extract(tt.text, "http://x/1", "")
		if len(obs) != 1 {
			t.Fatalf("%q: got %d observations, want 1", tt.text, len(obs))
		}
		if obs[0].Route != tt.want {
			t.Errorf("%q: route = %q, want %q", tt.text, obs[0].Route, tt.want)
		}
	}
}

func TestExtractRangeMention(t *testing.T) {
	e := NewExtractor(testRegistry(t))

	obs := e.Extract("Snorted about 50-70mg of ketamine over an hour.", "http://x/1", "")
	if len(obs) != 1 {
		t.Fatalf("got %d observations, want 1", len(obs))
	}
	if obs[0].Amount != 60 || !obs[0].FromRange {
		t.Errorf("observation = %+v, want amount 60 from range", obs[0])
	}
}

func TestExtractFallbackSubstance(t *testing.T) {
	e := NewExtractor(testRegistry(t))

	// No substance mentioned near the dose: attribution falls back to the
	// category's substance.
	obs := e.Extract("I measured out 125mg and swallowed it.", "http://x/1", "mdma")
	if len(obs) != 1 {
		t.Fatalf("got %d observations, want 1", len(obs))
	}
	if obs[0].SubstanceID != "mdma" {
		t.Errorf("substance = %q, want mdma", obs[0].SubstanceID)
	}

	// Without a fallback the mention is dropped.
	obs = e.Extract("I measured out 125mg and swallowed it.", "http://x/1", "")
	if len(obs) != 0 {
		t.Errorf("got %d observations, want 0", len(obs))
	}
}

func TestExtractMultipleSubstancesInWindow(t *testing.T) {
	e := NewExtractor(testRegistry(t))

	obs := e.Extract("We combined 80mg MDMA with ketamine that night.", "http://x/1", "")
	if len(obs) != 2 {
		t.Fatalf("got %d observations, want 2: %+v", len(obs), obs)
	}
	// First mention order.
	if obs[0].SubstanceID != "mdma" || obs[1].SubstanceID != "ketamine" {
		t.Errorf("substances = %q, %q", obs[0].SubstanceID, obs[1].SubstanceID)
	}
}

func TestExtractMultiWordAlias(t *testing.T) {
	e := NewExtractor(testRegistry(t))

	obs := e.Extract("A bump of special k, maybe 40mg, snorted.", "http://x/1", "")
	if len(obs) != 1 {
		t.Fatalf("got %d observations, want 1: %+v", len(obs), obs)
	}
	if obs[0].SubstanceID != "ketamine" {
		t.Errorf("substance = %q, want ketamine", obs[0].SubstanceID)
	}
}

func TestExtractSentenceBoundary(t *testing.T) {
	e := NewExtractor(testRegistry(t))

	// The route keyword lives in the next sentence and must not bleed in.
	obs := e.Extract("I took 100mg of MDMA. Later my friend snorted something else.", "http://x/1", "")
	if len(obs) != 1 {
		t.Fatalf("got %d observations, want 1", len(obs))
	}
	if obs[0].Route != RouteUnspecified {
		t.Errorf("route = %q, want %q", obs[0].Route, RouteUnspecified)
	}
}

func TestExtractMultipleDoses(t *testing.T) {
	e := NewExtractor(testRegistry(t))

	text := "Started with 100mg of MDMA orally. Two hours in I snorted 30mg of ketamine."
	obs := e.Extract(text, "http://x/1", "")
	if len(obs) != 2 {
		t.Fatalf("got %d observations, want 2: %+v", len(obs), obs)
	}
	if obs[0].SubstanceID != "mdma" || obs[0].Route != "oral" || obs[0].Amount != 100 {
		t.Errorf("first = %+v", obs[0])
	}
	if obs[1].SubstanceID != "ketamine" || obs[1].Route != "insufflated" || obs[1].Amount != 30 {
		t.Errorf("second = %+v", obs[1])
	}
}

func TestExtractIgnoresNonDoseNumbers(t *testing.T) {
	e := NewExtractor(testRegistry(t))

	obs := e.Extract("It was 1998 and I was 23 years old, visiting MDMA-loving friends.", "http://x/1", "mdma")
	if len(obs) != 0 {
		t.Errorf("got %d observations, want 0: %+v", len(obs), obs)
	}
}
