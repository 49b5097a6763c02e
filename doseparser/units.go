package doseparser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// unitAliases maps every accepted unit spelling to its canonical token.
// Adding a misspelling here is all it takes to start matching it; the dose
// pattern is generated from this table.
var unitAliases = map[string]string{
	"mg":          "mg",
	"mgs":         "mg",
	"milligram":   "mg",
	"milligrams":  "mg",
	"g":           "g",
	"gr":          "g",
	"gram":        "g",
	"grams":       "g",
	"grammes":     "g",
	"ug":          "µg",
	"µg":          "µg",
	"mcg":         "µg",
	"microgram":   "µg",
	"micrograms":  "µg",
	"mics":        "µg",
	"ml":          "ml",
	"mls":         "ml",
	"milliliter":  "ml",
	"milliliters": "ml",
	"millilitre":  "ml",
	"millilitres": "ml",
	"oz":          "oz",
	"ounce":       "oz",
	"ounces":      "oz",
}

// numberPattern accepts integers, decimals, thousands separators and ranges
// ("50-70", "5 - 10").
const numberPattern = `\d+(?:,\d{3})*(?:\.\d+)?(?:\s*-\s*\d+(?:,\d{3})*(?:\.\d+)?)?`

// unitPatternGroup builds the unit alternation, longest spelling first so
// "milligrams" is not half-consumed as "mg" lookalikes.
func unitPatternGroup() string {
	tokens := make([]string, 0, len(unitAliases))
	for token := range unitAliases {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	for i, token := range tokens {
		tokens[i] = regexp.QuoteMeta(token)
	}
	return "(" + strings.Join(tokens, "|") + ")"
}

// CanonicalUnit maps a matched unit token to its canonical form.
func CanonicalUnit(token string) (string, bool) {
	unit, ok := unitAliases[strings.ToLower(token)]
	return unit, ok
}

// Amount is a normalized dose quantity. FromRange marks values that came
// from a range mention and were reduced to the range mean.
type Amount struct {
	Value     float64
	Unit      string
	FromRange bool
}

// ParseAmount normalizes a matched number token and unit token into a
// canonical Amount. Ranges reduce to their arithmetic mean. Amounts that do
// not end up strictly positive are rejected.
func ParseAmount(number, unit string) (Amount, error) {
	canonical, ok := CanonicalUnit(unit)
	if !ok {
		return Amount{}, fmt.Errorf("unknown unit token %q", unit)
	}

	number = strings.ReplaceAll(number, ",", "")
	parts := strings.Split(number, "-")
	if len(parts) > 2 {
		return Amount{}, fmt.Errorf("malformed number token %q", number)
	}

	values := make([]float64, 0, 2)
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Amount{}, fmt.Errorf("malformed number token %q: %w", number, err)
		}
		values = append(values, v)
	}

	amount := Amount{Unit: canonical, FromRange: len(values) == 2}
	if amount.FromRange {
		amount.Value = (values[0] + values[1]) / 2
	} else {
		amount.Value = values[0]
	}

	if amount.Value <= 0 {
		return Amount{}, fmt.Errorf("non-positive dose amount %v", amount.Value)
	}
	return amount, nil
}
