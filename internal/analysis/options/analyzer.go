// Package options derives per-underlying signals from a session's
// option rows: OI buildup direction, put-call skew, unusual volume and
// a weighted strength in [-1, 1].
package options

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/seenimoa/fnopulse/internal/bhavcopy"
	"github.com/seenimoa/fnopulse/internal/config"
	"github.com/seenimoa/fnopulse/pkg/models"
)

// Analyze computes one OptionSignal per underlying that has option
// rows. Symbols whose chains carry no usable prices are excluded with
// an insufficient_data warning. The store is only read; Analyze is
// safe to run concurrently with other readers.
func Analyze(store *bhavcopy.Store, cfg config.SignalsConfig) ([]models.OptionSignal, []models.Warning, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var signals []models.OptionSignal
	var warnings []models.Warning

	for _, symbol := range store.Symbols() {
		recs := store.OptionRecords(symbol)
		if len(recs) == 0 {
			continue // no option presence, no signal
		}

		chain := nearestExpiryChain(recs)
		if !hasValidPrices(chain) {
			warnings = append(warnings, models.Warning{
				Kind:   models.WarnInsufficientData,
				Symbol: symbol,
				Detail: "option chain has no priced strikes",
			})
			continue
		}

		sig := analyzeChain(symbol, chain, cfg)
		signals = append(signals, sig)
	}

	return signals, warnings, nil
}

// nearestExpiryChain keeps only the rows of the earliest expiry, the
// contract month the positioning signals read best from.
func nearestExpiryChain(recs []bhavcopy.DailyRecord) []bhavcopy.DailyRecord {
	nearest := recs[0].Key.Expiry
	for _, r := range recs[1:] {
		if r.Key.Expiry.Before(nearest) {
			nearest = r.Key.Expiry
		}
	}
	var chain []bhavcopy.DailyRecord
	for _, r := range recs {
		if r.Key.Expiry.Equal(nearest) {
			chain = append(chain, r)
		}
	}
	return chain
}

func hasValidPrices(chain []bhavcopy.DailyRecord) bool {
	for _, r := range chain {
		if r.Settle > 0 {
			return true
		}
	}
	return false
}

func analyzeChain(symbol string, chain []bhavcopy.DailyRecord, cfg config.SignalsConfig) models.OptionSignal {
	var callOI, putOI, callChg, putChg, totalChg int64
	var trend float64 // volume-weighted premium move, calls minus puts
	volumes := make([]float64, 0, len(chain))

	for _, r := range chain {
		volumes = append(volumes, float64(r.Volume))
		move := r.PriceChange() * float64(r.Volume)
		switch r.Key.OptionType {
		case bhavcopy.CallOption:
			callOI += r.OpenInterest
			callChg += r.OIChange
			trend += move
		case bhavcopy.PutOption:
			putOI += r.OpenInterest
			putChg += r.OIChange
			trend -= move // put premiums rise when the underlying falls
		}
		totalChg += r.OIChange
	}

	sig := models.OptionSignal{
		Symbol:  symbol,
		Expiry:  chain[0].Key.Expiry,
		Buildup: models.ClassifyBuildup(trend, totalChg),
	}

	sig.BuildupScore = buildupScore(trend, callChg, putChg)

	if callOI > 0 {
		sig.PCR = float64(putOI) / float64(callOI)
		sig.SkewScore = skewScore(sig.PCR, cfg.SkewBaselinePCR)
	}

	sig.UnusualVolume = unusualVolume(volumes, cfg.UnusualVolumeMultiple)
	volScore := 0.0
	if sig.UnusualVolume {
		// Volume confirms whichever way the premiums moved.
		volScore = sign(trend)
	}

	sig.MaxPain = maxPain(chain)
	sig.ATMStrike, sig.PremiumSkew = atmPremiumSkew(chain)

	sig.Strength = clamp(
		cfg.OIWeight*sig.BuildupScore+
			cfg.SkewWeight*sig.SkewScore+
			cfg.VolumeWeight*volScore,
		-1, 1)

	return sig
}

// buildupScore maps the call/put change-in-OI balance against the
// premium trend: fresh call OI into a rising market is bullish, fresh
// put OI into a falling market is bearish, anything mixed stays near 0.
func buildupScore(trend float64, callChg, putChg int64) float64 {
	total := math.Abs(float64(callChg)) + math.Abs(float64(putChg))
	if total == 0 {
		return 0
	}
	balance := float64(callChg-putChg) / total // -1..+1

	switch {
	case trend > 0 && callChg > 0 && balance > 0:
		return balance
	case trend < 0 && putChg > 0 && balance < 0:
		return balance
	default:
		// Mixed signals: keep a quarter of the balance so a strong
		// one-sided buildup still registers faintly.
		return balance * 0.25
	}
}

// skewScore ramps the put-call OI ratio around the baseline. PCR above
// baseline means heavier put writing, read as support (bullish); below
// baseline the call side dominates (bearish). No baseline, no score.
func skewScore(pcr, baseline float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return clamp(pcr-baseline, -1, 1)
}

// unusualVolume flags any strike trading above multiple x the symbol's
// own mean row volume for the day. Comparing a symbol against itself
// keeps illiquid and index names on the same footing.
func unusualVolume(volumes []float64, multiple float64) bool {
	if len(volumes) < 2 {
		return false
	}
	mean, err := stats.Mean(volumes)
	if err != nil || mean <= 0 {
		return false
	}
	for _, v := range volumes {
		if v > multiple*mean {
			return true
		}
	}
	return false
}

// maxPain returns the expiry level that minimizes the aggregate value
// of in-the-money options, the strike option writers defend.
func maxPain(chain []bhavcopy.DailyRecord) float64 {
	ceOI := map[float64]int64{}
	peOI := map[float64]int64{}
	strikeSet := map[float64]bool{}

	for _, r := range chain {
		strikeSet[r.Key.Strike] = true
		if r.Key.OptionType == bhavcopy.CallOption {
			ceOI[r.Key.Strike] += r.OpenInterest
		} else {
			peOI[r.Key.Strike] += r.OpenInterest
		}
	}

	var strikes []float64
	for s := range strikeSet {
		strikes = append(strikes, s)
	}

	minPain := math.MaxFloat64
	best := 0.0
	for _, level := range strikes {
		pain := 0.0
		for _, s := range strikes {
			if s < level {
				pain += (level - s) * float64(ceOI[s])
			} else if s > level {
				pain += (s - level) * float64(peOI[s])
			}
		}
		if pain < minPain || (pain == minPain && level < best) {
			minPain = pain
			best = level
		}
	}
	return best
}

// atmPremiumSkew finds the synthetic at-the-money strike (where call
// and put settlement premiums sit closest, by put-call parity) and
// returns the PE-CE premium difference there. The bhavcopy carries no
// implied volatility, so settlement-premium skew stands in for IV skew.
func atmPremiumSkew(chain []bhavcopy.DailyRecord) (atm, skew float64) {
	ce := map[float64]float64{}
	pe := map[float64]float64{}
	for _, r := range chain {
		if r.Settle <= 0 {
			continue
		}
		if r.Key.OptionType == bhavcopy.CallOption {
			ce[r.Key.Strike] = r.Settle
		} else {
			pe[r.Key.Strike] = r.Settle
		}
	}

	minDiff := math.MaxFloat64
	for strike, c := range ce {
		p, ok := pe[strike]
		if !ok {
			continue
		}
		diff := math.Abs(c - p)
		if diff < minDiff || (diff == minDiff && strike < atm) {
			minDiff = diff
			atm = strike
			skew = p - c
		}
	}
	return atm, skew
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
