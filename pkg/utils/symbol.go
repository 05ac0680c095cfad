package utils

import (
	"strings"
)

// Common aliases for F&O underlyings, mapped to the SYMBOL values the
// bhavcopy uses.
var symbolAliases = map[string]string{
	"RIL":           "RELIANCE",
	"INFOSYS":       "INFY",
	"HDFC BANK":     "HDFCBANK",
	"ICICI BANK":    "ICICIBANK",
	"SBI":           "SBIN",
	"AIRTEL":        "BHARTIARTL",
	"BAJAJ FIN":     "BAJFINANCE",
	"L&T":           "LT",
	"TATA MOTORS":   "TATAMOTORS",
	"TATA STEEL":    "TATASTEEL",
	"HCL TECH":      "HCLTECH",
	"KOTAK":         "KOTAKBANK",
	"AXIS BANK":     "AXISBANK",
	"SUN PHARMA":    "SUNPHARMA",
	"ASIAN PAINTS":  "ASIANPAINT",
	"NESTLE":        "NESTLEIND",
	"ULTRATECH":     "ULTRACEMCO",
	"TECH MAHINDRA": "TECHM",
	"MAHINDRA":      "M&M",
	"ADANI":         "ADANIENT",
	"HUL":           "HINDUNILVR",
	"COAL INDIA":    "COALINDIA",
}

// Index underlyings as the bhavcopy spells them.
var indexSymbols = map[string]string{
	"NIFTY":        "NIFTY",
	"NIFTY50":      "NIFTY",
	"NIFTY 50":     "NIFTY",
	"BANKNIFTY":    "BANKNIFTY",
	"NIFTYBANK":    "BANKNIFTY",
	"NIFTY BANK":   "BANKNIFTY",
	"FINNIFTY":     "FINNIFTY",
	"MIDCPNIFTY":   "MIDCPNIFTY",
	"NIFTY MIDCAP": "MIDCPNIFTY",
	"NIFTYNXT50":   "NIFTYNXT50",
}

// NormalizeSymbol normalizes a user-input underlying to the bhavcopy
// SYMBOL spelling. It handles aliases, uppercasing, and whitespace.
func NormalizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))
	symbol = strings.TrimPrefix(symbol, "$")

	if idx, ok := indexSymbols[symbol]; ok {
		return idx
	}
	if canonical, ok := symbolAliases[symbol]; ok {
		return canonical
	}
	return symbol
}

// IsIndexSymbol reports whether the underlying is an index rather than
// a stock.
func IsIndexSymbol(symbol string) bool {
	symbol = NormalizeSymbol(symbol)
	for _, v := range indexSymbols {
		if v == symbol {
			return true
		}
	}
	return false
}
