package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

const registryFixture = `{
	"mdma": {"pretty_name": "MDMA", "aliases": ["ecstasy", "molly", "x-t-c"], "routes": ["oral"]},
	"lsd": {"pretty_name": "LSD", "aliases": ["acid", "lucy"], "routes": ["sublingual"]},
	"2c-b": {"pretty_name": "2C-B", "aliases": ["nexus"], "routes": ["oral", "insufflated"]},
	"melange": {"pretty_name": "Mélange", "aliases": [], "routes": ["oral"]}
}`

func TestLoadPreservesFileOrder(t *testing.T) {
	reg, err := Load(writeFile(t, "drugs.json", registryFixture))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []string{"mdma", "lsd", "2c-b", "melange"}
	got := reg.Order()
	if len(got) != len(want) {
		t.Fatalf("got %d substances, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty object", `{}`},
		{"top-level array", `[]`},
		{"not json", `hello`},
		{"duplicate id", `{"a": {"pretty_name": "A"}, "a": {"pretty_name": "A again"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "drugs.json", tt.content)); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2C-B", "2cb"},
		{"2c b", "2cb"},
		{"X-T-C", "xtc"},
		{"Mélange", "melange"},
		{"O'Neil, Jr.", "oneiljr"},
		{"", ""},
		{"- ,.'", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatch(t *testing.T) {
	reg, err := Load(writeFile(t, "drugs.json", registryFixture))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name   string
		wantID string
		wantOK bool
	}{
		{"MDMA", "mdma", true},
		{"molly", "mdma", true},
		{"XTC", "mdma", true},
		{"Acid", "lsd", true},
		{"2C-B", "2c-b", true},
		{"2cb", "2c-b", true},
		{"nexus", "2c-b", true},
		{"Melange", "melange", true},
		{"aspirin", "", false},
	}

	for _, tt := range tests {
		id, ok := reg.Match(tt.name)
		if ok != tt.wantOK || id != tt.wantID {
			t.Errorf("Match(%q) = (%q, %v), want (%q, %v)", tt.name, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestMatchFirstRegistrationWins(t *testing.T) {
	// "shared" is an alias of both entries; the earlier one keeps it.
	content := `{
		"first": {"pretty_name": "First", "aliases": ["shared"]},
		"second": {"pretty_name": "Second", "aliases": ["shared"]}
	}`
	reg, err := Load(writeFile(t, "drugs.json", content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	id, ok := reg.Match("shared")
	if !ok || id != "first" {
		t.Errorf("Match(shared) = (%q, %v), want (first, true)", id, ok)
	}
}

func TestLoadLinks(t *testing.T) {
	reg, err := Load(writeFile(t, "drugs.json", registryFixture))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	content := `{
		"lsd": {
			"General": "https://example.org/lsd/general",
			"First Times": "https://example.org/lsd/first",
			"Cellar": "https://example.org/lsd/cellar"
		},
		"mdma": {
			"General": "https://example.org/mdma/general"
		},
		"unknown-substance": {
			"General": "https://example.org/unknown/general"
		}
	}`

	links, err := LoadLinks(writeFile(t, "links.json", content), reg)
	if err != nil {
		t.Fatalf("LoadLinks failed: %v", err)
	}

	// Registry order puts mdma first; invalid category and unknown
	// substance are dropped.
	want := []CategoryLink{
		{SubstanceID: "mdma", Category: "General", URL: "https://example.org/mdma/general"},
		{SubstanceID: "lsd", Category: "First Times", URL: "https://example.org/lsd/first"},
		{SubstanceID: "lsd", Category: "General", URL: "https://example.org/lsd/general"},
	}
	if len(links) != len(want) {
		t.Fatalf("got %d links, want %d: %+v", len(links), len(want), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %+v, want %+v", i, links[i], want[i])
		}
	}
}

func TestLoadLinksRejectsInvalidURL(t *testing.T) {
	reg, err := Load(writeFile(t, "drugs.json", registryFixture))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	content := `{"lsd": {"General": "/relative/path"}}`
	if _, err := LoadLinks(writeFile(t, "links.json", content), reg); err == nil {
		t.Error("expected an error for a relative URL, got nil")
	}
}

func TestLoadLinksRejectsEmptyResult(t *testing.T) {
	reg, err := Load(writeFile(t, "drugs.json", registryFixture))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := LoadLinks(writeFile(t, "links.json", `{}`), reg); err == nil {
		t.Error("expected an error for an empty link map, got nil")
	}
}
