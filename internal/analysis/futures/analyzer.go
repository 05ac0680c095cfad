// Package futures derives per-underlying signals from a session's
// futures rows: basis against a spot proxy, the cross-sectional
// OI-change percentile, and price-OI confirmation.
package futures

import (
	"math"
	"sort"

	"github.com/seenimoa/fnopulse/internal/bhavcopy"
	"github.com/seenimoa/fnopulse/internal/config"
	"github.com/seenimoa/fnopulse/pkg/models"
)

// Spot supplies externally sourced spot prices by symbol. It may be
// nil; the analyzer then falls back to the option chain's synthetic
// at-the-money price.
type Spot map[string]float64

// Analyze computes one FutureSignal per underlying that has a futures
// row, using the nearest expiry. The percentile metric needs the whole
// session's distribution, so the computation is two-pass: collect every
// symbol's OI change first, then rank.
func Analyze(store *bhavcopy.Store, spot Spot, cfg config.SignalsConfig) ([]models.FutureSignal, []models.Warning, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	// Pass 1: nearest-expiry futures row per symbol.
	type entry struct {
		symbol string
		rec    bhavcopy.DailyRecord
	}
	var entries []entry
	var changes []float64

	for _, symbol := range store.Symbols() {
		recs := store.FutureRecords(symbol)
		if len(recs) == 0 {
			continue // no futures row, no signal
		}
		rec := recs[0] // store order puts the nearest expiry first
		entries = append(entries, entry{symbol: symbol, rec: rec})
		changes = append(changes, float64(rec.OIChange))
	}

	sort.Float64s(changes)

	// Pass 2: score each symbol against the session distribution.
	var signals []models.FutureSignal
	var warnings []models.Warning

	for _, e := range entries {
		sig := models.FutureSignal{
			Symbol:  e.symbol,
			Expiry:  e.rec.Key.Expiry,
			Settle:  e.rec.Settle,
			Buildup: models.ClassifyBuildup(e.rec.PriceChange(), e.rec.OIChange),
		}

		basisScore := 0.0
		sig.SpotProxy = spotProxy(store, e.symbol, spot)
		if sig.SpotProxy > 0 {
			sig.Basis = e.rec.Settle - sig.SpotProxy
			sig.BasisPct = sig.Basis / sig.SpotProxy * 100
			basisScore = clamp(sig.BasisPct/cfg.BasisNormPct, -1, 1)
		} else {
			sig.LowConfidence = true
			warnings = append(warnings, models.Warning{
				Kind:   models.WarnLowConfidence,
				Symbol: e.symbol,
				Detail: "no spot proxy available, basis contributes 0",
			})
		}

		sig.OIChangePercentile = percentileRank(changes, float64(e.rec.OIChange))
		pctScore := sig.OIChangePercentile/50 - 1 // 0..100 -> -1..+1

		sig.ConfirmScore = confirmScore(sig.Buildup)

		sig.Strength = clamp(
			cfg.BasisWeight*basisScore+
				cfg.OIPercentileWeight*pctScore+
				cfg.ConfirmationWeight*sig.ConfirmScore,
			-1, 1)

		signals = append(signals, sig)
	}

	return signals, warnings, nil
}

// spotProxy resolves the symbol's spot price: an externally provided
// feed wins, otherwise the synthetic at-the-money price from the
// symbol's nearest-expiry option chain (strike + CE - PE settle, by
// put-call parity). Returns 0 when neither is available.
func spotProxy(store *bhavcopy.Store, symbol string, spot Spot) float64 {
	if v, ok := spot[symbol]; ok && v > 0 {
		return v
	}

	recs := store.OptionRecords(symbol)
	if len(recs) == 0 {
		return 0
	}

	nearest := recs[0].Key.Expiry
	for _, r := range recs[1:] {
		if r.Key.Expiry.Before(nearest) {
			nearest = r.Key.Expiry
		}
	}

	ce := map[float64]float64{}
	pe := map[float64]float64{}
	for _, r := range recs {
		if !r.Key.Expiry.Equal(nearest) || r.Settle <= 0 {
			continue
		}
		if r.Key.OptionType == bhavcopy.CallOption {
			ce[r.Key.Strike] = r.Settle
		} else {
			pe[r.Key.Strike] = r.Settle
		}
	}

	best := 0.0
	minDiff := math.MaxFloat64
	for strike, c := range ce {
		p, ok := pe[strike]
		if !ok {
			continue
		}
		diff := math.Abs(c - p)
		synthetic := strike + c - p
		if diff < minDiff || (diff == minDiff && synthetic < best) {
			minDiff = diff
			best = synthetic
		}
	}
	if best <= 0 {
		return 0
	}
	return best
}

// percentileRank returns the percentage of session changes at or below
// v. sorted must be ascending.
func percentileRank(sorted []float64, v float64) float64 {
	if len(sorted) == 0 {
		return 50
	}
	// Index of the first element greater than v.
	idx := sort.SearchFloat64s(sorted, v)
	for idx < len(sorted) && sorted[idx] == v {
		idx++
	}
	return float64(idx) / float64(len(sorted)) * 100
}

// confirmScore maps the price-OI relationship to a directional score.
// Fresh OI confirms the move at full weight; unwinding positions are a
// weaker echo of the opposite flow.
func confirmScore(b models.Buildup) float64 {
	switch b {
	case models.BuildupLong:
		return 1
	case models.BuildupShort:
		return -1
	case models.BuildupShortCover:
		return 0.25
	case models.BuildupLongUnwind:
		return -0.25
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
