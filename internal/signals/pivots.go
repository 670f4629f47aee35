package signals

import "github.com/ducminhle1904/strategy-lab/pkg/types"

// Pivot is a confirmed fractal swing point.
type Pivot struct {
	Index int
	Price float64
}

// DetectPivots finds fractal swing highs and lows: bar i is a swing high when its high
// is the maximum over [i-left, i+right], a swing low when its low is the minimum.
// A bar can be both.
func DetectPivots(bars []types.OHLCV, left, right int) (highs, lows []Pivot) {
	if len(bars) < left+right+1 {
		return nil, nil
	}
	for i := left; i < len(bars)-right; i++ {
		hi, lo := true, true
		for j := i - left; j <= i+right; j++ {
			if bars[j].High > bars[i].High {
				hi = false
			}
			if bars[j].Low < bars[i].Low {
				lo = false
			}
			if !hi && !lo {
				break
			}
		}
		if hi {
			highs = append(highs, Pivot{Index: i, Price: bars[i].High})
		}
		if lo {
			lows = append(lows, Pivot{Index: i, Price: bars[i].Low})
		}
	}
	return highs, lows
}

// Structure is the prevailing swing structure.
type Structure int

const (
	StructureNeutral Structure = iota
	StructureBullish
	StructureBearish
)

func (s Structure) String() string {
	switch s {
	case StructureBullish:
		return "bullish"
	case StructureBearish:
		return "bearish"
	}
	return "neutral"
}

// ClassifyStructure compares the last two swing highs and lows:
// higher highs with higher lows is bullish, lower highs with lower lows bearish.
func ClassifyStructure(highs, lows []Pivot) Structure {
	if len(highs) < 2 || len(lows) < 2 {
		return StructureNeutral
	}
	h1, h2 := highs[len(highs)-2].Price, highs[len(highs)-1].Price
	l1, l2 := lows[len(lows)-2].Price, lows[len(lows)-1].Price
	switch {
	case h2 > h1 && l2 > l1:
		return StructureBullish
	case h2 < h1 && l2 < l1:
		return StructureBearish
	}
	return StructureNeutral
}

func lastPivot(p []Pivot) (Pivot, bool) {
	if len(p) == 0 {
		return Pivot{}, false
	}
	return p[len(p)-1], true
}

// structureBreak reports a close through the latest swing against the prevailing structure.
// The previous bar must not have closed through the same level already.
func structureBreak(bars []types.OHLCV, strength int) (types.Direction, Pivot, Pivot, Structure) {
	n := len(bars)
	if n < 2*strength+3 {
		return types.Flat, Pivot{}, Pivot{}, StructureNeutral
	}
	highs, lows := DetectPivots(bars[:n-1], strength, strength)
	structure := ClassifyStructure(highs, lows)
	last, prev := bars[n-1], bars[n-2]

	swingHigh, okH := lastPivot(highs)
	swingLow, okL := lastPivot(lows)

	if okH && structure != StructureBullish && last.Close > swingHigh.Price && prev.Close <= swingHigh.Price {
		return types.Long, swingHigh, swingLow, structure
	}
	if okL && structure != StructureBearish && last.Close < swingLow.Price && prev.Close >= swingLow.Price {
		return types.Short, swingHigh, swingLow, structure
	}
	return types.Flat, swingHigh, swingLow, structure
}
