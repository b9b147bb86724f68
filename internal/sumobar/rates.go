package sumobar

import (
	"encoding/json"
	"fmt"
	"math"
)

const placementSlots = 8

// placementKeyPatterns are the column spellings seen in the wild for one
// finish position, in probe order. Rates are preferred over raw counts.
var placementKeyPatterns = []string{
	"place_%d_rate",
	"place%d_rate",
	"position_%d_rate",
	"position%d_rate",
	"pos_%d_rate",
	"pos%d_rate",
	"p%d_rate",
	"place_%d_count",
	"place%d_count",
	"position_%d_count",
	"position%d_count",
	"pos_%d_count",
	"pos%d_count",
	"p%d_count",
	"place_%d",
	"place%d",
	"position_%d",
	"position%d",
	"pos_%d",
	"pos%d",
	"p%d",
}

// extractPlacementRates recovers the 8-position placement vector from a raw
// row, whatever the deployment chose to call and scale the columns. Returns
// nil when no usable vector exists.
func extractPlacementRates(row map[string]json.RawMessage, matchesPlayed int) []float64 {
	values := make([]float64, placementSlots)
	for place := 1; place <= placementSlots; place++ {
		for _, pattern := range placementKeyPatterns {
			if v := floatField(row, fmt.Sprintf(pattern, place)); v != nil {
				values[place-1] = *v
				break
			}
		}
	}
	return toPercentages(values, matchesPlayed)
}

// toPercentages classifies an 8-vector by its sum and rescales it to
// percentages: fractions in [0,1], percentages that already sum to ~100, or
// raw counts whose total matches the games played. Anything else is
// normalized by its own sum. An all-nonpositive vector yields nil.
func toPercentages(values []float64, matchesPlayed int) []float64 {
	if len(values) != placementSlots {
		return nil
	}

	sum := 0.0
	positive := false
	for _, v := range values {
		sum += v
		if v > 0 {
			positive = true
		}
	}
	if !positive || sum <= 0 {
		return nil
	}

	scale := func(f func(float64) float64) []float64 {
		out := make([]float64, len(values))
		for i, v := range values {
			out[i] = math.Max(0, f(v))
		}
		return out
	}

	switch {
	case sum <= 1.001:
		return scale(func(v float64) float64 { return v * 100 })
	case sum <= 100.5:
		return scale(func(v float64) float64 { return v })
	case matchesPlayed > 0 && sum <= float64(matchesPlayed)+1:
		return scale(func(v float64) float64 { return v / float64(matchesPlayed) * 100 })
	default:
		return scale(func(v float64) float64 { return v / sum * 100 })
	}
}
