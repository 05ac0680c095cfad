package utils

import (
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST *time.Location

func init() {
	var err error
	IST, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		IST = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// NowIST returns the current time in IST.
func NowIST() time.Time {
	return time.Now().In(IST)
}

// MarketOpenTime returns the NSE market opening time (9:15 AM IST) for a given date.
func MarketOpenTime(date time.Time) time.Time {
	d := date.In(IST)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 15, 0, 0, IST)
}

// MarketCloseTime returns the NSE market closing time (3:30 PM IST) for a given date.
func MarketCloseTime(date time.Time) time.Time {
	d := date.In(IST)
	return time.Date(d.Year(), d.Month(), d.Day(), 15, 30, 0, 0, IST)
}

// bhavcopyReadyTime is when the day's F&O bhavcopy is reliably on the
// archive. NSE publishes it in the evening after settlement.
func bhavcopyReadyTime(date time.Time) time.Time {
	d := date.In(IST)
	return time.Date(d.Year(), d.Month(), d.Day(), 18, 0, 0, 0, IST)
}

// LatestSessionDate returns the most recent trading day whose bhavcopy
// should already be published at time t.
func LatestSessionDate(t time.Time) time.Time {
	t = t.In(IST)
	if IsTradingDay(t) && !t.Before(bhavcopyReadyTime(t)) {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, IST)
	}
	return PrevTradingDay(t)
}

// PrevTradingDay returns the previous trading day from the given date.
func PrevTradingDay(from time.Time) time.Time {
	prev := from.In(IST).AddDate(0, 0, -1)
	for !IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return time.Date(prev.Year(), prev.Month(), prev.Day(), 0, 0, 0, 0, IST)
}

// IsTradingDay checks if the given date is a trading day (not weekend, not holiday).
func IsTradingDay(t time.Time) bool {
	t = t.In(IST)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !IsTradingHoliday(t)
}

// IsTradingHoliday checks if the given date is an NSE trading holiday.
// This list should be updated annually.
func IsTradingHoliday(t time.Time) bool {
	t = t.In(IST)
	dateStr := t.Format("2006-01-02")

	_, isHoliday := nseHolidays2026[dateStr]
	return isHoliday
}

// NSE Trading Holidays for 2026 (update annually).
// Source: NSE India circular.
var nseHolidays2026 = map[string]string{
	"2026-01-26": "Republic Day",
	"2026-02-17": "Mahashivratri",
	"2026-03-10": "Holi",
	"2026-03-30": "Id-ul-Fitr (Ramadan)",
	"2026-04-02": "Ram Navami",
	"2026-04-03": "Good Friday",
	"2026-04-14": "Dr. Ambedkar Jayanti",
	"2026-05-01": "Maharashtra Day",
	"2026-05-25": "Buddha Purnima",
	"2026-06-05": "Id-ul-Zuha (Bakri Id)",
	"2026-07-06": "Muharram",
	"2026-08-15": "Independence Day",
	"2026-08-18": "Parsi New Year",
	"2026-09-04": "Milad-un-Nabi",
	"2026-10-02": "Mahatma Gandhi Jayanti",
	"2026-10-20": "Dussehra",
	"2026-11-09": "Diwali (Laxmi Pujan)",
	"2026-11-10": "Diwali (Balipratipada)",
	"2026-11-30": "Guru Nanak Jayanti",
	"2026-12-25": "Christmas",
}

// ParseDateIST parses a date string in "2006-01-02" format and returns it in IST.
func ParseDateIST(dateStr string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", dateStr, IST)
}

// FormatDateTimeIST formats a time.Time to "2006-01-02 15:04:05 IST".
func FormatDateTimeIST(t time.Time) string {
	return t.In(IST).Format("2006-01-02 15:04:05 IST")
}

// MarketStatus returns the current market status string.
func MarketStatus() string {
	now := NowIST()

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}

	if IsTradingHoliday(now) {
		holiday := nseHolidays2026[now.Format("2006-01-02")]
		return "CLOSED (" + holiday + ")"
	}

	open := MarketOpenTime(now)
	close := MarketCloseTime(now)

	switch {
	case now.Before(open):
		return "PRE-MARKET"
	case !now.After(close):
		return "OPEN"
	default:
		return "CLOSED"
	}
}
