package doseparser

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tripsit/erowid-doses/doseparser/entities"
	"github.com/tripsit/erowid-doses/registry"
)

// RouteUnspecified is the sentinel route for dose mentions with no nearby
// route keyword. The observation is still worth keeping; the analyzer bands
// it as its own group.
const RouteUnspecified = "unspecified"

// routeAliases maps route-of-administration spellings to canonical routes.
var routeAliases = map[string]string{
	"oral":          "oral",
	"orally":        "oral",
	"swallowed":     "oral",
	"ingested":      "oral",
	"insufflated":   "insufflated",
	"snorted":       "insufflated",
	"sniffed":       "insufflated",
	"intranasal":    "insufflated",
	"intranasally":  "insufflated",
	"smoked":        "smoked",
	"vaporized":     "smoked",
	"vaporised":     "smoked",
	"vaped":         "smoked",
	"iv":            "intravenous",
	"intravenous":   "intravenous",
	"intravenously": "intravenous",
	"injected":      "intravenous",
	"im":            "intramuscular",
	"intramuscular": "intramuscular",
	"sc":            "subcutaneous",
	"subcutaneous":  "subcutaneous",
	"sublingual":    "sublingual",
	"sublingually":  "sublingual",
	"buccal":        "buccal",
	"rectal":        "rectal",
	"rectally":      "rectal",
	"boofed":        "rectal",
	"plugged":       "rectal",
}

// windowRadius bounds how far around a dose match the extractor looks for a
// route keyword or substance mention, before trimming to sentence bounds.
const windowRadius = 250

// Extractor finds dose observations in free report text. It performs no I/O
// and holds only immutable state, so one instance is shared by all workers.
type Extractor struct {
	registry     *registry.Registry
	dosePattern  *regexp.Regexp
	routePattern *regexp.Regexp
	wordPattern  *regexp.Regexp
}

// NewExtractor compiles the pattern tables against the given registry.
func NewExtractor(reg *registry.Registry) *Extractor {
	return &Extractor{
		registry:     reg,
		dosePattern:  regexp.MustCompile(`(?i)\b(` + numberPattern + `)\s*` + unitPatternGroup() + `\b`),
		routePattern: regexp.MustCompile(`(?i)\b` + routePatternGroup() + `\b`),
		wordPattern:  regexp.MustCompile(`[0-9A-Za-zµ][0-9A-Za-zµ'-]*`),
	}
}

// routePatternGroup builds the route keyword alternation, longest first.
func routePatternGroup() string {
	tokens := make([]string, 0, len(routeAliases))
	for token := range routeAliases {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	return "(" + strings.Join(tokens, "|") + ")"
}

// Extract returns every dose observation found in text. fallbackSubstanceID
// attributes mentions with no recognizable substance nearby; it is the
// substance whose category page surfaced the report. Matches the extractor
// cannot attribute at all are dropped. Repeated mentions of the same
// quantity are deliberately kept: the analyzer tolerates over-counting.
func (e *Extractor) Extract(text, sourceURL, fallbackSubstanceID string) []entities.DoseObservation {
	var observations []entities.DoseObservation

	for _, match := range e.dosePattern.FindAllStringSubmatchIndex(text, -1) {
		number := text[match[2]:match[3]]
		unit := text[match[4]:match[5]]

		amount, err := ParseAmount(number, unit)
		if err != nil {
			continue
		}

		window := sentenceWindow(text, match[0], match[1])

		route := RouteUnspecified
		if m := e.routePattern.FindString(window); m != "" {
			route = routeAliases[strings.ToLower(m)]
		}

		substanceIDs := e.substancesIn(window)
		if len(substanceIDs) == 0 && fallbackSubstanceID != "" {
			substanceIDs = []string{fallbackSubstanceID}
		}

		// One observation per mentioned substance, never a merged
		// ambiguous one.
		for _, id := range substanceIDs {
			observations = append(observations, entities.DoseObservation{
				SubstanceID: id,
				Route:       route,
				Amount:      amount.Value,
				Unit:        amount.Unit,
				SourceURL:   sourceURL,
				FromRange:   amount.FromRange,
			})
		}
	}

	return observations
}

// substancesIn returns the distinct substance ids mentioned in the window,
// in order of first mention. Single words and adjacent word pairs are tried
// against the registry alias index so multi-word names still match.
func (e *Extractor) substancesIn(window string) []string {
	words := e.wordPattern.FindAllString(window, -1)

	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for i, word := range words {
		if i+1 < len(words) {
			if id, ok := e.registry.Match(word + " " + words[i+1]); ok {
				add(id)
				continue
			}
		}
		if id, ok := e.registry.Match(word); ok {
			add(id)
		}
	}
	return ids
}

// sentenceWindow returns the text surrounding [start, end), clipped to the
// enclosing sentence when a terminator is found inside the radius.
func sentenceWindow(text string, start, end int) string {
	lo := start - windowRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + windowRadius
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}

	if idx := strings.LastIndexAny(text[lo:start], ".!?\n"); idx >= 0 {
		lo += idx + 1
	}
	if idx := strings.IndexAny(text[end:hi], ".!?\n"); idx >= 0 {
		hi = end + idx + 1
	}
	return text[lo:hi]
}
