package models

import "time"

// Direction labels the conviction side of a combined opportunity.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// Buildup classifies the price/OI relationship for a contract.
type Buildup string

const (
	BuildupLong       Buildup = "long_buildup"    // price up, OI up
	BuildupShort      Buildup = "short_buildup"   // price down, OI up
	BuildupLongUnwind Buildup = "long_unwinding"  // price down, OI down
	BuildupShortCover Buildup = "short_covering"  // price up, OI down
	BuildupFlat       Buildup = "flat"            // no OI change
)

// ClassifyBuildup classifies a price move against an OI change.
func ClassifyBuildup(priceChange float64, oiChange int64) Buildup {
	switch {
	case oiChange == 0:
		return BuildupFlat
	case priceChange >= 0 && oiChange > 0:
		return BuildupLong
	case priceChange < 0 && oiChange > 0:
		return BuildupShort
	case priceChange < 0 && oiChange < 0:
		return BuildupLongUnwind
	default:
		return BuildupShortCover
	}
}

// WarningKind classifies non-fatal exclusions collected during a run.
type WarningKind string

const (
	WarnMalformedRecord  WarningKind = "malformed_record"
	WarnDuplicateRecord  WarningKind = "duplicate_record"
	WarnInsufficientData WarningKind = "insufficient_data"
	WarnLowConfidence    WarningKind = "low_confidence"
)

// Warning records a row or symbol that reduced coverage without
// aborting the run.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Symbol string      `json:"symbol,omitempty"`
	Detail string      `json:"detail"`
}

// OptionSignal is the per-underlying signal derived from the symbol's
// option rows, aggregated across strikes and expiries for one session.
type OptionSignal struct {
	Symbol        string    `json:"symbol"`
	Expiry        time.Time `json:"expiry"`         // nearest expiry in the chain
	Buildup       Buildup   `json:"buildup"`
	BuildupScore  float64   `json:"buildup_score"`  // -1 to +1
	PCR           float64   `json:"pcr"`            // put OI / call OI
	SkewScore     float64   `json:"skew_score"`     // -1 to +1, vs baseline PCR
	UnusualVolume bool      `json:"unusual_volume"`
	MaxPain       float64   `json:"max_pain"`
	ATMStrike     float64   `json:"atm_strike"`
	PremiumSkew   float64   `json:"premium_skew"`   // ATM PE settle - CE settle
	Strength      float64   `json:"strength"`       // -1 (bearish) to +1 (bullish)
}

// FutureSignal is the per-underlying signal derived from the symbol's
// nearest-expiry futures row.
type FutureSignal struct {
	Symbol             string    `json:"symbol"`
	Expiry             time.Time `json:"expiry"`
	Settle             float64   `json:"settle"`
	Basis              float64   `json:"basis"`     // futures settle - spot proxy
	BasisPct           float64   `json:"basis_pct"`
	SpotProxy          float64   `json:"spot_proxy"`
	LowConfidence      bool      `json:"low_confidence"` // no spot proxy available
	OIChangePercentile float64   `json:"oi_change_percentile"` // cross-sectional, 0-100
	Buildup            Buildup   `json:"buildup"`
	ConfirmScore       float64   `json:"confirm_score"` // -1 to +1
	Strength           float64   `json:"strength"`      // -1 to +1
}

// CombinedOpportunity merges a symbol's option and futures signals into
// a single conviction score. At least one of Option/Future is set.
type CombinedOpportunity struct {
	Symbol    string        `json:"symbol"`
	Score     float64       `json:"score"`
	Direction Direction     `json:"direction"`
	Option    *OptionSignal `json:"option,omitempty"`
	Future    *FutureSignal `json:"future,omitempty"`
}

// SingleSource reports whether only one analyzer contributed, in which
// case the score carries the single-source discount.
func (c CombinedOpportunity) SingleSource() bool {
	return (c.Option == nil) != (c.Future == nil)
}
