package futures

import (
	"math"
	"testing"

	"github.com/seenimoa/fnopulse/internal/bhavcopy"
	"github.com/seenimoa/fnopulse/internal/config"
	"github.com/seenimoa/fnopulse/pkg/models"
)

func futRow(symbol, expiry, open, close string, contracts, oi, chg string) bhavcopy.RawRow {
	return bhavcopy.RawRow{
		Instrument: "FUTSTK",
		Symbol:     symbol,
		ExpiryDate: expiry,
		OptionType: "XX",
		Open:       open,
		High:       close,
		Low:        open,
		Close:      close,
		Settle:     close,
		Contracts:  contracts,
		OpenInt:    oi,
		ChgInOI:    chg,
		Timestamp:  "28-Aug-2025",
	}
}

func optRow(symbol, expiry, strike, optType, settle string) bhavcopy.RawRow {
	return bhavcopy.RawRow{
		Instrument: "OPTSTK",
		Symbol:     symbol,
		ExpiryDate: expiry,
		Strike:     strike,
		OptionType: optType,
		Open:       settle,
		High:       settle,
		Low:        settle,
		Close:      settle,
		Settle:     settle,
		Contracts:  "10",
		OpenInt:    "100",
		ChgInOI:    "0",
		Timestamp:  "28-Aug-2025",
	}
}

func mustLoad(t *testing.T, rows []bhavcopy.RawRow) *bhavcopy.Store {
	t.Helper()
	store, err := bhavcopy.Load(rows)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return store
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnalyzeWithSpotFeed(t *testing.T) {
	store := mustLoad(t, []bhavcopy.RawRow{
		futRow("ABC", "25-Sep-2025", "100", "102", "500", "10000", "1000"),
	})
	spot := Spot{"ABC": 100}

	signals, warnings, err := Analyze(store, spot, config.DefaultSignals())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}

	sig := signals[0]
	if sig.LowConfidence {
		t.Error("low confidence with a spot feed present")
	}
	if !almostEqual(sig.Basis, 2) {
		t.Errorf("basis = %v, want 2", sig.Basis)
	}
	if !almostEqual(sig.BasisPct, 2) {
		t.Errorf("basis pct = %v, want 2", sig.BasisPct)
	}
	if sig.Buildup != models.BuildupLong {
		t.Errorf("buildup = %s, want %s (price up, OI up)", sig.Buildup, models.BuildupLong)
	}
	// Only entry in the session: percentile 100, pctScore +1.
	if !almostEqual(sig.OIChangePercentile, 100) {
		t.Errorf("percentile = %v, want 100", sig.OIChangePercentile)
	}
	// basisScore=1, pctScore=1, confirm=1 -> strength 1 at equal thirds.
	if !almostEqual(sig.Strength, 1) {
		t.Errorf("strength = %v, want 1", sig.Strength)
	}
}

func TestAnalyzeSyntheticSpotFromChain(t *testing.T) {
	// CE 14 and PE 9 nearest in premium at strike 100: synthetic spot
	// 100 + 14 - 9 = 105.
	store := mustLoad(t, []bhavcopy.RawRow{
		futRow("ABC", "25-Sep-2025", "104", "105", "500", "10000", "0"),
		optRow("ABC", "25-Sep-2025", "100", "CE", "14"),
		optRow("ABC", "25-Sep-2025", "100", "PE", "9"),
	})

	signals, warnings, err := Analyze(store, nil, config.DefaultSignals())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	sig := signals[0]
	if !almostEqual(sig.SpotProxy, 105) {
		t.Errorf("spot proxy = %v, want 105", sig.SpotProxy)
	}
	if !almostEqual(sig.Basis, 0) {
		t.Errorf("basis = %v, want 0", sig.Basis)
	}
}

func TestAnalyzeNoSpotProxy(t *testing.T) {
	store := mustLoad(t, []bhavcopy.RawRow{
		futRow("LONELY", "25-Sep-2025", "100", "99", "500", "10000", "-200"),
	})

	signals, warnings, err := Analyze(store, nil, config.DefaultSignals())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	sig := signals[0]
	if !sig.LowConfidence {
		t.Error("expected low confidence without any spot proxy")
	}
	if sig.Basis != 0 || sig.BasisPct != 0 {
		t.Errorf("basis = %v/%v, want 0 contribution", sig.Basis, sig.BasisPct)
	}
	if len(warnings) != 1 || warnings[0].Kind != models.WarnLowConfidence {
		t.Fatalf("warnings = %v, want one low_confidence", warnings)
	}
	if sig.Buildup != models.BuildupLongUnwind {
		t.Errorf("buildup = %s, want %s", sig.Buildup, models.BuildupLongUnwind)
	}
}

func TestAnalyzeCrossSectionalPercentile(t *testing.T) {
	store := mustLoad(t, []bhavcopy.RawRow{
		futRow("AAA", "25-Sep-2025", "100", "101", "10", "1000", "-100"),
		futRow("BBB", "25-Sep-2025", "100", "101", "10", "1000", "0"),
		futRow("CCC", "25-Sep-2025", "100", "101", "10", "1000", "50"),
		futRow("DDD", "25-Sep-2025", "100", "101", "10", "1000", "200"),
	})

	signals, _, err := Analyze(store, nil, config.DefaultSignals())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	pct := map[string]float64{}
	for _, s := range signals {
		pct[s.Symbol] = s.OIChangePercentile
	}
	if !almostEqual(pct["AAA"], 25) {
		t.Errorf("AAA percentile = %v, want 25", pct["AAA"])
	}
	if !almostEqual(pct["CCC"], 75) {
		t.Errorf("CCC percentile = %v, want 75", pct["CCC"])
	}
	if !almostEqual(pct["DDD"], 100) {
		t.Errorf("DDD percentile = %v, want 100", pct["DDD"])
	}
}

func TestAnalyzeUsesNearestExpiry(t *testing.T) {
	store := mustLoad(t, []bhavcopy.RawRow{
		futRow("ABC", "30-Oct-2025", "100", "90", "10", "1000", "-500"),
		futRow("ABC", "25-Sep-2025", "100", "102", "10", "1000", "500"),
	})

	signals, _, err := Analyze(store, nil, config.DefaultSignals())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}
	if signals[0].Expiry.Month() != 9 {
		t.Errorf("expiry = %v, want September (nearest)", signals[0].Expiry)
	}
	if signals[0].Buildup != models.BuildupLong {
		t.Errorf("buildup = %s, want long from the near-month row", signals[0].Buildup)
	}
}

func TestAnalyzeRejectsBadConfig(t *testing.T) {
	store := mustLoad(t, []bhavcopy.RawRow{
		futRow("ABC", "25-Sep-2025", "100", "101", "10", "1000", "0"),
	})

	cfg := config.DefaultSignals()
	cfg.BasisNormPct = 0

	if _, _, err := Analyze(store, nil, cfg); err == nil {
		t.Fatal("Analyze accepted basis_norm_pct = 0")
	}
}

func TestPercentileRank(t *testing.T) {
	sorted := []float64{-100, 0, 50, 200}
	tests := []struct {
		v    float64
		want float64
	}{
		{-100, 25},
		{0, 50},
		{50, 75},
		{200, 100},
		{-500, 0},
	}
	for _, tt := range tests {
		if got := percentileRank(sorted, tt.v); !almostEqual(got, tt.want) {
			t.Errorf("percentileRank(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}

	if got := percentileRank(nil, 5); got != 50 {
		t.Errorf("percentileRank(empty) = %v, want 50", got)
	}
}

func TestConfirmScore(t *testing.T) {
	tests := []struct {
		buildup models.Buildup
		want    float64
	}{
		{models.BuildupLong, 1},
		{models.BuildupShort, -1},
		{models.BuildupShortCover, 0.25},
		{models.BuildupLongUnwind, -0.25},
		{models.BuildupFlat, 0},
	}
	for _, tt := range tests {
		if got := confirmScore(tt.buildup); got != tt.want {
			t.Errorf("confirmScore(%s) = %v, want %v", tt.buildup, got, tt.want)
		}
	}
}
