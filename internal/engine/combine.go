// Package engine merges the options and futures analyzer outputs into
// a ranked opportunity report and drives the two analyzers as parallel
// tasks over a shared immutable record store.
package engine

import (
	"math"
	"sort"
	"time"

	"github.com/seenimoa/fnopulse/internal/config"
	"github.com/seenimoa/fnopulse/pkg/models"
)

// Combine merges the per-symbol signals into a sorted report. It is a
// pure function of its inputs and configuration: same signals, same
// weights, same report. Symbols present in either input appear exactly
// once; neutral entries are placed last or dropped (and counted) per
// the keep_neutral policy.
//
// A symbol carrying only one signal is scored at that signal's
// strength times the single-source discount: one side of the market is
// deliberately treated as reduced conviction, never full confidence.
func Combine(sessionDate time.Time, opts []models.OptionSignal, futs []models.FutureSignal, warnings []models.Warning, cfg config.SignalsConfig) (*models.OpportunityReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	optBySym := make(map[string]models.OptionSignal, len(opts))
	for _, s := range opts {
		optBySym[s.Symbol] = s
	}
	futBySym := make(map[string]models.FutureSignal, len(futs))
	for _, s := range futs {
		futBySym[s.Symbol] = s
	}

	symbols := make([]string, 0, len(optBySym)+len(futBySym))
	seen := map[string]bool{}
	for _, s := range opts {
		if !seen[s.Symbol] {
			seen[s.Symbol] = true
			symbols = append(symbols, s.Symbol)
		}
	}
	for _, s := range futs {
		if !seen[s.Symbol] {
			seen[s.Symbol] = true
			symbols = append(symbols, s.Symbol)
		}
	}
	sort.Strings(symbols)

	var ranked, neutral []models.CombinedOpportunity
	neutralDropped := 0

	for _, sym := range symbols {
		opp := models.CombinedOpportunity{Symbol: sym}

		opt, hasOpt := optBySym[sym]
		fut, hasFut := futBySym[sym]
		switch {
		case hasOpt && hasFut:
			opp.Option = &opt
			opp.Future = &fut
			opp.Score = cfg.CombinerOptionWeight*opt.Strength + cfg.CombinerFutureWeight*fut.Strength
		case hasOpt:
			opp.Option = &opt
			opp.Score = opt.Strength * cfg.SingleSourceDiscount
		default:
			opp.Future = &fut
			opp.Score = fut.Strength * cfg.SingleSourceDiscount
		}

		opp.Direction = direction(opp.Score, cfg.NeutralDeadZone)
		if opp.Direction == models.DirectionNeutral {
			if !cfg.KeepNeutral {
				neutralDropped++
				continue
			}
			neutral = append(neutral, opp)
			continue
		}
		ranked = append(ranked, opp)
	}

	sortByConviction(ranked)
	sortByConviction(neutral)
	ranked = append(ranked, neutral...)

	return models.NewOpportunityReport(sessionDate, ranked, warnings, neutralDropped), nil
}

// direction labels the score's sign, with a dead-zone around zero.
func direction(score, deadZone float64) models.Direction {
	switch {
	case math.Abs(score) < deadZone:
		return models.DirectionNeutral
	case score > 0:
		return models.DirectionBullish
	default:
		return models.DirectionBearish
	}
}

// sortByConviction orders descending by |score|, ties alphabetical by
// symbol so rankings are reproducible for tests and stable in the UI.
func sortByConviction(opps []models.CombinedOpportunity) {
	sort.Slice(opps, func(i, j int) bool {
		ai, aj := math.Abs(opps[i].Score), math.Abs(opps[j].Score)
		if ai != aj {
			return ai > aj
		}
		return opps[i].Symbol < opps[j].Symbol
	})
}
