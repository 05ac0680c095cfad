package bhavcopy

import (
	"errors"
	"sort"
	"time"

	"github.com/seenimoa/fnopulse/pkg/models"
)

// ErrNoRecords means no row in the input survived validation.
var ErrNoRecords = errors.New("bhavcopy: no valid records")

// Store holds one session's DailyRecords. It is immutable after Load:
// analyzers read it concurrently without synchronization.
type Store struct {
	sessionDate time.Time
	records     []DailyRecord
	bySymbol    map[string][]DailyRecord
	warnings    []models.Warning
}

// Load validates raw rows into a Store. Malformed rows and duplicate
// keys are skipped and collected as warnings; a single corrupt line
// never invalidates the session. ErrNoRecords is returned only when
// nothing parsed at all.
func Load(rows []RawRow) (*Store, error) {
	s := &Store{bySymbol: map[string][]DailyRecord{}}
	seen := map[InstrumentKey]bool{}

	for _, raw := range rows {
		rec, err := parseRow(raw)
		if err != nil {
			s.warnings = append(s.warnings, models.Warning{
				Kind:   models.WarnMalformedRecord,
				Symbol: raw.Symbol,
				Detail: err.Error(),
			})
			continue
		}
		if seen[rec.Key] {
			s.warnings = append(s.warnings, models.Warning{
				Kind:   models.WarnDuplicateRecord,
				Symbol: rec.Key.Symbol,
				Detail: "duplicate instrument " + rec.Key.String(),
			})
			continue
		}
		seen[rec.Key] = true
		s.records = append(s.records, rec)
		if s.sessionDate.IsZero() && !rec.SessionDate.IsZero() {
			s.sessionDate = rec.SessionDate
		}
	}

	if len(s.records) == 0 {
		return nil, ErrNoRecords
	}

	// Deterministic iteration order: symbol, expiry, strike, option type.
	sort.Slice(s.records, func(i, j int) bool {
		a, b := s.records[i].Key, s.records[j].Key
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if !a.Expiry.Equal(b.Expiry) {
			return a.Expiry.Before(b.Expiry)
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.OptionType < b.OptionType
	})

	for _, rec := range s.records {
		s.bySymbol[rec.Key.Symbol] = append(s.bySymbol[rec.Key.Symbol], rec)
	}

	return s, nil
}

// SessionDate returns the trading date of the loaded bhavcopy.
func (s *Store) SessionDate() time.Time { return s.sessionDate }

// Len returns the number of loaded records.
func (s *Store) Len() int { return len(s.records) }

// All returns every record in deterministic order.
func (s *Store) All() []DailyRecord {
	out := make([]DailyRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Symbols returns the distinct underlying symbols, sorted.
func (s *Store) Symbols() []string {
	syms := make([]string, 0, len(s.bySymbol))
	for sym := range s.bySymbol {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// ByUnderlying returns all records for a symbol in deterministic order.
func (s *Store) ByUnderlying(symbol string) []DailyRecord {
	recs := s.bySymbol[symbol]
	out := make([]DailyRecord, len(recs))
	copy(out, recs)
	return out
}

// OptionRecords returns the symbol's option rows.
func (s *Store) OptionRecords(symbol string) []DailyRecord {
	var out []DailyRecord
	for _, rec := range s.bySymbol[symbol] {
		if rec.Key.IsOption() {
			out = append(out, rec)
		}
	}
	return out
}

// FutureRecords returns the symbol's futures rows, nearest expiry first.
func (s *Store) FutureRecords(symbol string) []DailyRecord {
	var out []DailyRecord
	for _, rec := range s.bySymbol[symbol] {
		if !rec.Key.IsOption() {
			out = append(out, rec)
		}
	}
	return out
}

// Warnings returns the rows skipped during Load.
func (s *Store) Warnings() []models.Warning {
	out := make([]models.Warning, len(s.warnings))
	copy(out, s.warnings)
	return out
}
