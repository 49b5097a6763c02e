// Package registry loads the read-only substance registry and category-link
// map that drive a crawl. Both files are parsed once at startup and never
// mutated afterwards, so every component can share them without locking.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Substance is one registry entry: canonical id, display name and the
// case-insensitive alias set used for in-text matching.
type Substance struct {
	ID         string   `json:"-"`
	PrettyName string   `json:"pretty_name"`
	Aliases    []string `json:"aliases"`
	Routes     []string `json:"routes"`
}

// Registry holds all substances in file order plus a normalized alias index.
type Registry struct {
	order   []string
	byID    map[string]*Substance
	aliases map[string]string // normalized alias or name -> substance id
}

// foldTransformer strips combining marks so accented alias spellings match
// their plain forms.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize reduces a substance name to its matching key: accent-stripped,
// lower-cased, with separators removed ("2C-B" and "2c b" collapse together).
func Normalize(name string) string {
	folded, _, err := transform.String(foldTransformer, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', ',', '.', '\'':
			return -1
		}
		return r
	}, folded)
}

// Load reads the registry file. The file is a JSON object keyed by substance
// id; key order is preserved because the output document must follow it.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry file %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("registry file %s: expected top-level object", path)
	}

	reg := &Registry{
		byID:    make(map[string]*Substance),
		aliases: make(map[string]string),
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse registry file %s: %w", path, err)
		}
		id, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("registry file %s: non-string key", path)
		}

		var entry Substance
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("registry entry %q is malformed: %w", id, err)
		}
		entry.ID = id
		if entry.PrettyName == "" {
			entry.PrettyName = id
		}

		if _, exists := reg.byID[id]; exists {
			return nil, fmt.Errorf("registry file %s: duplicate substance id %q", path, id)
		}
		reg.order = append(reg.order, id)
		reg.byID[id] = &entry

		reg.indexName(id, id)
		reg.indexName(entry.PrettyName, id)
		for _, alias := range entry.Aliases {
			reg.indexName(alias, id)
		}
	}

	if len(reg.order) == 0 {
		return nil, fmt.Errorf("registry file %s contains no substances", path)
	}
	return reg, nil
}

// indexName records a normalized name -> id mapping. First registration
// wins so an ambiguous alias stays with the earlier registry entry.
func (r *Registry) indexName(name, id string) {
	key := Normalize(name)
	if key == "" {
		return
	}
	if _, taken := r.aliases[key]; !taken {
		r.aliases[key] = id
	}
}

// Order returns the substance ids in registry file order.
func (r *Registry) Order() []string {
	return r.order
}

// Get returns the substance for an id.
func (r *Registry) Get(id string) (*Substance, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// Match resolves a free-text name or alias to a substance id.
func (r *Registry) Match(name string) (string, bool) {
	id, ok := r.aliases[Normalize(name)]
	return id, ok
}

// Len returns the number of substances.
func (r *Registry) Len() int {
	return len(r.order)
}
