package engine

import (
	"context"
	"reflect"
	"testing"

	"github.com/seenimoa/fnopulse/internal/analysis/futures"
	"github.com/seenimoa/fnopulse/internal/bhavcopy"
	"github.com/seenimoa/fnopulse/internal/config"
	"github.com/seenimoa/fnopulse/pkg/models"
)

func sessionRows() []bhavcopy.RawRow {
	row := func(instr, symbol, expiry, strike, optType, open, close, contracts, oi, chg string) bhavcopy.RawRow {
		return bhavcopy.RawRow{
			Instrument: instr,
			Symbol:     symbol,
			ExpiryDate: expiry,
			Strike:     strike,
			OptionType: optType,
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
	return []bhavcopy.RawRow{
		row("FUTSTK", "RELIANCE", "25-Sep-2025", "0", "XX", "3000", "3050", "1200", "50000", "2500"),
		row("OPTSTK", "RELIANCE", "25-Sep-2025", "3000", "CE", "60", "85", "400", "20000", "1500"),
		row("OPTSTK", "RELIANCE", "25-Sep-2025", "3000", "PE", "55", "42", "350", "18000", "-500"),
		row("FUTSTK", "TCS", "25-Sep-2025", "0", "XX", "4100", "4050", "800", "30000", "1800"),
		row("OPTSTK", "TCS", "25-Sep-2025", "4100", "CE", "70", "55", "300", "15000", "-300"),
		row("OPTSTK", "TCS", "25-Sep-2025", "4100", "PE", "48", "66", "500", "21000", "2000"),
		// Futures row with no options anywhere: single-source path.
		row("FUTSTK", "WIPRO", "25-Sep-2025", "0", "XX", "500", "505", "100", "9000", "400"),
	}
}

func TestRunEndToEnd(t *testing.T) {
	store, err := bhavcopy.Load(sessionRows())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	report, err := Run(context.Background(), store, nil, config.DefaultSignals())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := report.SessionDate(); got.Format("2006-01-02") != "2025-08-28" {
		t.Errorf("session date = %v, want 2025-08-28", got)
	}

	seen := map[string]models.CombinedOpportunity{}
	for _, o := range report.All() {
		if _, dup := seen[o.Symbol]; dup {
			t.Errorf("symbol %s ranked twice", o.Symbol)
		}
		seen[o.Symbol] = o
	}
	for _, sym := range []string{"RELIANCE", "TCS", "WIPRO"} {
		if _, ok := seen[sym]; !ok {
			t.Errorf("symbol %s missing from report", sym)
		}
	}

	if wipro, ok := seen["WIPRO"]; ok && !wipro.SingleSource() {
		t.Error("WIPRO has no options but was not marked single-source")
	}
	// No spot feed and no option chain for WIPRO: its futures signal is
	// low confidence and a warning must surface in the report.
	if counts := report.WarningCounts(); counts[models.WarnLowConfidence] == 0 {
		t.Errorf("warning counts = %v, want a low_confidence entry", counts)
	}
}

func TestRunDeterministic(t *testing.T) {
	store, err := bhavcopy.Load(sessionRows())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	first, err := Run(context.Background(), store, nil, config.DefaultSignals())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	second, err := Run(context.Background(), store, nil, config.DefaultSignals())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !reflect.DeepEqual(first.All(), second.All()) {
		t.Error("parallel analyzer runs produced different rankings for the same store")
	}
}

func TestRunMergesLoadWarnings(t *testing.T) {
	rows := sessionRows()
	bad := rows[0]
	bad.Symbol = "BROKEN"
	bad.Close = "oops"
	rows = append(rows, bad)

	store, err := bhavcopy.Load(rows)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	report, err := Run(context.Background(), store, nil, config.DefaultSignals())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if counts := report.WarningCounts(); counts[models.WarnMalformedRecord] != 1 {
		t.Errorf("warning counts = %v, want one malformed_record carried through", counts)
	}
}

func TestRunSpotFeedOverridesSynthetic(t *testing.T) {
	store, err := bhavcopy.Load(sessionRows())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	spot := futures.Spot{"WIPRO": 500}
	report, err := Run(context.Background(), store, spot, config.DefaultSignals())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if counts := report.WarningCounts(); counts[models.WarnLowConfidence] != 0 {
		t.Errorf("warning counts = %v, want no low_confidence with a spot feed", counts)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	store, err := bhavcopy.Load(sessionRows())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := config.DefaultSignals()
	cfg.NeutralDeadZone = 1.5

	if _, err := Run(context.Background(), store, nil, cfg); err == nil {
		t.Fatal("Run accepted an out-of-range dead zone")
	}
}
