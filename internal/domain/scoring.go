package domain

import "math"

// Lead score normalization anchors. Lot size is weighted equally with price
// when known because an undeveloped lot is the product we are selling into;
// the fallback branch redistributes its weight onto price.
const (
	scorePriceCap  = 2_000_000
	scoreAreaCap   = 4_000
	scoreLotFloor  = 3_000
	scoreLotSpread = 12_000
)

// Score computes the heuristic lead score in [0,1] from price, living area
// and lot size (all square feet / USD, nil when the listing lacked them).
// Pure and deterministic; result is rounded to 4 decimal places.
func Score(price, livingArea, lotSize *float64) float64 {
	var np, na, nl float64
	if price != nil {
		np = clamp01(*price / scorePriceCap)
	}
	if livingArea != nil {
		na = clamp01(*livingArea / scoreAreaCap)
	}
	if lotSize != nil {
		nl = clamp01((*lotSize - scoreLotFloor) / scoreLotSpread)
	}

	var s float64
	if lotSize != nil {
		s = 0.4*np + 0.4*nl + 0.2*na
	} else {
		s = 0.6*np + 0.4*na
	}
	return math.Round(s*10_000) / 10_000
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
