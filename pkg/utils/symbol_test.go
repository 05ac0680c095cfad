package utils

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"reliance", "RELIANCE"},
		{"RIL", "RELIANCE"},
		{"  tcs  ", "TCS"},
		{"$INFY", "INFY"},
		{"sbi", "SBIN"},
		{"nifty", "NIFTY"},
		{"NIFTY 50", "NIFTY"},
		{"niftybank", "BANKNIFTY"},
		{"BANKNIFTY", "BANKNIFTY"},
		{"UNKNOWNCO", "UNKNOWNCO"},
	}

	for _, tt := range tests {
		if got := NormalizeSymbol(tt.input); got != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsIndexSymbol(t *testing.T) {
	for _, sym := range []string{"NIFTY", "banknifty", "FINNIFTY", "NIFTY 50"} {
		if !IsIndexSymbol(sym) {
			t.Errorf("IsIndexSymbol(%q) = false, want true", sym)
		}
	}
	for _, sym := range []string{"RELIANCE", "ril", "TCS"} {
		if IsIndexSymbol(sym) {
			t.Errorf("IsIndexSymbol(%q) = true, want false", sym)
		}
	}
}
