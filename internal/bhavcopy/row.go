// Package bhavcopy holds the normalized in-memory representation of one
// trading session's F&O settlement data and the parsing that builds it
// from raw bhavcopy rows.
package bhavcopy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OptionType distinguishes calls, puts and futures rows.
type OptionType string

const (
	CallOption OptionType = "CE"
	PutOption  OptionType = "PE"
	NoOption   OptionType = "" // futures
)

// Instrument codes as published in the NSE F&O bhavcopy.
const (
	InstrFutIdx = "FUTIDX"
	InstrFutStk = "FUTSTK"
	InstrOptIdx = "OPTIDX"
	InstrOptStk = "OPTSTK"
)

// Bhavcopy dates come as "28-Aug-2025"; older archives use ISO dates.
var expiryLayouts = []string{"02-Jan-2006", "2006-01-02", "02-01-2006"}

// RawRow is one line of the bhavcopy CSV. All fields stay strings so a
// corrupt value surfaces as a per-row parse warning instead of failing
// the whole file.
type RawRow struct {
	Instrument string `csv:"INSTRUMENT"`
	Symbol     string `csv:"SYMBOL"`
	ExpiryDate string `csv:"EXPIRY_DT"`
	Strike     string `csv:"STRIKE_PR"`
	OptionType string `csv:"OPTION_TYP"`
	Open       string `csv:"OPEN"`
	High       string `csv:"HIGH"`
	Low        string `csv:"LOW"`
	Close      string `csv:"CLOSE"`
	Settle     string `csv:"SETTLE_PR"`
	Contracts  string `csv:"CONTRACTS"`
	OpenInt    string `csv:"OPEN_INT"`
	ChgInOI    string `csv:"CHG_IN_OI"`
	Timestamp  string `csv:"TIMESTAMP"`
}

// InstrumentKey uniquely identifies a row within a trading session.
type InstrumentKey struct {
	Symbol     string     `json:"symbol"`
	Expiry     time.Time  `json:"expiry"`
	Strike     float64    `json:"strike,omitempty"`
	OptionType OptionType `json:"option_type,omitempty"`
}

// IsOption reports whether the key refers to an option contract.
func (k InstrumentKey) IsOption() bool { return k.OptionType != NoOption }

// String renders the key in bhavcopy notation, e.g.
// "NIFTY 28-Aug-2025 25000 CE" or "RELIANCE 28-Aug-2025 FUT".
func (k InstrumentKey) String() string {
	if !k.IsOption() {
		return fmt.Sprintf("%s %s FUT", k.Symbol, k.Expiry.Format("02-Jan-2006"))
	}
	return fmt.Sprintf("%s %s %g %s", k.Symbol, k.Expiry.Format("02-Jan-2006"), k.Strike, k.OptionType)
}

// DailyRecord is one instrument's settlement data for one session.
// Created at load time and never mutated.
type DailyRecord struct {
	Key          InstrumentKey `json:"key"`
	Open         float64       `json:"open"`
	High         float64       `json:"high"`
	Low          float64       `json:"low"`
	Close        float64       `json:"close"`
	Settle       float64       `json:"settle"`
	Volume       int64         `json:"volume"`
	OpenInterest int64         `json:"open_interest"`
	OIChange     int64         `json:"oi_change"`
	SessionDate  time.Time     `json:"session_date"`
}

// PriceChange returns the session price move (close minus open). The
// bhavcopy carries no previous close, so intraday direction stands in
// for the day's trend.
func (r DailyRecord) PriceChange() float64 { return r.Close - r.Open }

// parseRow validates one raw row and builds its DailyRecord.
func parseRow(raw RawRow) (DailyRecord, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
	if symbol == "" {
		return DailyRecord{}, fmt.Errorf("empty symbol")
	}

	instr := strings.ToUpper(strings.TrimSpace(raw.Instrument))
	var isOption bool
	switch instr {
	case InstrOptIdx, InstrOptStk:
		isOption = true
	case InstrFutIdx, InstrFutStk:
	default:
		return DailyRecord{}, fmt.Errorf("%s: unknown instrument %q", symbol, raw.Instrument)
	}

	expiry, err := parseDate(raw.ExpiryDate)
	if err != nil {
		return DailyRecord{}, fmt.Errorf("%s: bad expiry %q", symbol, raw.ExpiryDate)
	}

	key := InstrumentKey{Symbol: symbol, Expiry: expiry}
	if isOption {
		optType := OptionType(strings.ToUpper(strings.TrimSpace(raw.OptionType)))
		if optType != CallOption && optType != PutOption {
			return DailyRecord{}, fmt.Errorf("%s: bad option type %q", symbol, raw.OptionType)
		}
		strike, err := parseFloat(raw.Strike)
		if err != nil || strike <= 0 {
			return DailyRecord{}, fmt.Errorf("%s: bad strike %q", symbol, raw.Strike)
		}
		key.Strike = strike
		key.OptionType = optType
	}

	rec := DailyRecord{Key: key}
	for _, f := range []struct {
		name string
		src  string
		dst  *float64
	}{
		{"OPEN", raw.Open, &rec.Open},
		{"HIGH", raw.High, &rec.High},
		{"LOW", raw.Low, &rec.Low},
		{"CLOSE", raw.Close, &rec.Close},
		{"SETTLE_PR", raw.Settle, &rec.Settle},
	} {
		v, err := parseFloat(f.src)
		if err != nil {
			return DailyRecord{}, fmt.Errorf("%s: bad %s %q", key, f.name, f.src)
		}
		*f.dst = v
	}
	if rec.Settle < 0 || rec.Close < 0 {
		return DailyRecord{}, fmt.Errorf("%s: negative price", key)
	}

	if rec.Volume, err = parseInt(raw.Contracts); err != nil {
		return DailyRecord{}, fmt.Errorf("%s: bad CONTRACTS %q", key, raw.Contracts)
	}
	if rec.OpenInterest, err = parseInt(raw.OpenInt); err != nil {
		return DailyRecord{}, fmt.Errorf("%s: bad OPEN_INT %q", key, raw.OpenInt)
	}
	if rec.OIChange, err = parseInt(raw.ChgInOI); err != nil {
		return DailyRecord{}, fmt.Errorf("%s: bad CHG_IN_OI %q", key, raw.ChgInOI)
	}

	if raw.Timestamp != "" {
		rec.SessionDate, err = parseDate(raw.Timestamp)
		if err != nil {
			return DailyRecord{}, fmt.Errorf("%s: bad TIMESTAMP %q", key, raw.Timestamp)
		}
	}

	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}
	// Some archives publish integer columns as "12345.00".
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
