package registry

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
)

// CategoryLink points at one category index page of one substance.
type CategoryLink struct {
	SubstanceID string
	Category    string
	URL         string
}

// validCategories is the fixed set of Erowid report categories worth
// crawling. Everything else (cellar, unpublished, media indexes) is skipped.
var validCategories = map[string]bool{
	"General":                       true,
	"First Times":                   true,
	"Combinations":                  true,
	"Retrospective / Summary":       true,
	"Preparation / Recipes":         true,
	"Difficult Experiences":         true,
	"Bad Trips":                     true,
	"Health Problems":               true,
	"Train Wrecks & Trip Disasters": true,
	"Addiction & Habituation":       true,
	"Glowing Experiences":           true,
	"Mystical Experiences":          true,
	"Health Benefits":               true,
	"Families":                      true,
	"What Was in That?":             true,
}

// LoadLinks reads the category-link file and returns the links for
// substances present in the registry, in registry order with category names
// sorted inside each substance. Links whose substance id is unknown or whose
// category is not in the valid set are dropped with no error; a link that is
// not a parseable absolute URL makes the whole file invalid.
func LoadLinks(path string, reg *Registry) ([]CategoryLink, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open links file %s: %w", path, err)
	}

	var perSubstance map[string]map[string]string
	if err := json.Unmarshal(raw, &perSubstance); err != nil {
		return nil, fmt.Errorf("links file %s is malformed: %w", path, err)
	}

	var links []CategoryLink
	for _, id := range reg.Order() {
		categories, ok := perSubstance[id]
		if !ok {
			continue
		}

		names := make([]string, 0, len(categories))
		for name := range categories {
			if validCategories[name] {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		for _, name := range names {
			link := categories[name]
			parsed, err := url.Parse(link)
			if err != nil || !parsed.IsAbs() || parsed.Host == "" {
				return nil, fmt.Errorf("links file %s: invalid URL %q for %s/%s", path, link, id, name)
			}
			links = append(links, CategoryLink{SubstanceID: id, Category: name, URL: link})
		}
	}

	if len(links) == 0 {
		return nil, fmt.Errorf("links file %s contains no usable category links", path)
	}
	return links, nil
}
