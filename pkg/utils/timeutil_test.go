package utils

import (
	"testing"
	"time"
)

func TestNowIST(t *testing.T) {
	now := NowIST()
	if now.Location().String() != "Asia/Kolkata" && now.Location().String() != "IST" {
		t.Errorf("NowIST() location = %s, want Asia/Kolkata or IST", now.Location().String())
	}
}

func TestMarketOpenClose(t *testing.T) {
	date := time.Date(2026, 2, 19, 12, 0, 0, 0, IST)

	open := MarketOpenTime(date)
	if open.Hour() != 9 || open.Minute() != 15 {
		t.Errorf("MarketOpenTime = %v, want 09:15", open)
	}

	close := MarketCloseTime(date)
	if close.Hour() != 15 || close.Minute() != 30 {
		t.Errorf("MarketCloseTime = %v, want 15:30", close)
	}
}

func TestIsTradingHoliday(t *testing.T) {
	// Republic Day 2026
	republicDay := time.Date(2026, 1, 26, 10, 0, 0, 0, IST)
	if !IsTradingHoliday(republicDay) {
		t.Error("Expected Republic Day to be a trading holiday")
	}

	// Regular trading day
	normalDay := time.Date(2026, 2, 18, 10, 0, 0, 0, IST)
	if IsTradingHoliday(normalDay) {
		t.Error("Expected Feb 18 to NOT be a trading holiday")
	}
}

func TestIsTradingDay(t *testing.T) {
	// Wednesday — trading day
	if !IsTradingDay(time.Date(2026, 2, 18, 0, 0, 0, 0, IST)) {
		t.Error("Expected Wednesday to be a trading day")
	}

	// Saturday — not a trading day
	if IsTradingDay(time.Date(2026, 2, 21, 0, 0, 0, 0, IST)) {
		t.Error("Expected Saturday to not be a trading day")
	}

	// Trading holiday — not a trading day
	if IsTradingDay(time.Date(2026, 1, 26, 0, 0, 0, 0, IST)) {
		t.Error("Expected Republic Day to not be a trading day")
	}
}

func TestPrevTradingDay(t *testing.T) {
	// Monday → prev trading day should be Friday
	monday := time.Date(2026, 2, 23, 0, 0, 0, 0, IST)
	prev := PrevTradingDay(monday)
	if prev.Weekday() != time.Friday || prev.Day() != 20 {
		t.Errorf("PrevTradingDay(Monday Feb 23) = %v, want Friday Feb 20", prev)
	}

	// Day after Republic Day → prev trading day skips the holiday
	jan27 := time.Date(2026, 1, 27, 0, 0, 0, 0, IST)
	prev = PrevTradingDay(jan27)
	if prev.Day() != 23 || prev.Month() != time.January {
		t.Errorf("PrevTradingDay(Jan 27) = %v, want Friday Jan 23", prev)
	}
}

func TestLatestSessionDate(t *testing.T) {
	// Wednesday evening after publication → same day
	wedEvening := time.Date(2026, 2, 18, 19, 0, 0, 0, IST)
	got := LatestSessionDate(wedEvening)
	if got.Day() != 18 {
		t.Errorf("LatestSessionDate(Wed 19:00) = %v, want Feb 18", got)
	}

	// Wednesday morning, bhavcopy not out yet → Tuesday
	wedMorning := time.Date(2026, 2, 18, 10, 0, 0, 0, IST)
	got = LatestSessionDate(wedMorning)
	if got.Day() != 17 {
		t.Errorf("LatestSessionDate(Wed 10:00) = %v, want Feb 17", got)
	}

	// Sunday → Friday
	sunday := time.Date(2026, 2, 22, 12, 0, 0, 0, IST)
	got = LatestSessionDate(sunday)
	if got.Weekday() != time.Friday || got.Day() != 20 {
		t.Errorf("LatestSessionDate(Sunday) = %v, want Friday Feb 20", got)
	}
}

func TestParseDateIST(t *testing.T) {
	d, err := ParseDateIST("2026-02-19")
	if err != nil {
		t.Fatalf("ParseDateIST failed: %v", err)
	}
	if d.Year() != 2026 || d.Month() != 2 || d.Day() != 19 {
		t.Errorf("ParseDateIST = %v, want 2026-02-19", d)
	}
}

func TestMarketStatus(t *testing.T) {
	// Just verify it doesn't panic and returns a non-empty string
	status := MarketStatus()
	if status == "" {
		t.Error("MarketStatus() returned empty string")
	}
}
