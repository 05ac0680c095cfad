package ingest

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/fnopulse/internal/config"
)

const sampleCSV = `INSTRUMENT,SYMBOL,EXPIRY_DT,STRIKE_PR,OPTION_TYP,OPEN,HIGH,LOW,CLOSE,SETTLE_PR,CONTRACTS,OPEN_INT,CHG_IN_OI,TIMESTAMP
FUTSTK,RELIANCE,25-Sep-2025,0,XX,3000,3060,2990,3050,3052.50,1200,50000,2500,28-Aug-2025
OPTSTK,RELIANCE,25-Sep-2025,3000,CE,60,90,55,85,85.50,400,20000,1500,28-Aug-2025
OPTIDX,NIFTY,25-Sep-2025,25000,PE,120,140,110,130,131.25,9000,500000,-2000,28-Aug-2025
`

func TestParseCSV(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	fut := rows[0]
	if fut.Instrument != "FUTSTK" || fut.Symbol != "RELIANCE" {
		t.Errorf("first row = %+v", fut)
	}
	if fut.Settle != "3052.50" {
		t.Errorf("settle kept raw = %q, want \"3052.50\"", fut.Settle)
	}

	opt := rows[2]
	if opt.OptionType != "PE" || opt.Strike != "25000" {
		t.Errorf("index option row = %+v", opt)
	}
	if opt.ChgInOI != "-2000" {
		t.Errorf("chg in OI = %q", opt.ChgInOI)
	}
}

func TestParseCSVStructurallyBroken(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("")); err == nil {
		t.Error("ParseCSV accepted empty input")
	}
}

func makeZip(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtractCSV(t *testing.T) {
	data := makeZip(t, "fo28AUG2025bhav.csv", sampleCSV)

	out, err := extractCSV(data)
	if err != nil {
		t.Fatalf("extractCSV failed: %v", err)
	}
	if string(out) != sampleCSV {
		t.Error("extracted content differs from archived content")
	}
}

func TestExtractCSVNoEntry(t *testing.T) {
	data := makeZip(t, "readme.txt", "nothing here")
	if _, err := extractCSV(data); err == nil {
		t.Error("extractCSV accepted an archive without a csv entry")
	}
}

func TestExtractCSVNotAZip(t *testing.T) {
	if _, err := extractCSV([]byte("plain text")); err == nil {
		t.Error("extractCSV accepted non-zip bytes")
	}
}

func TestLoadFileCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bhav.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
}

func TestLoadFileZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fo_bhavcopy_20250828.csv.zip")
	if err := os.WriteFile(path, makeZip(t, "bhav.csv", sampleCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile("/nonexistent/bhav.csv"); err == nil {
		t.Error("LoadFile accepted a missing path")
	}
}

func TestArchiveURL(t *testing.T) {
	f := NewFetcher(config.IngestConfig{BaseURL: "https://nsearchives.nseindia.com/"})
	date := time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)

	got := f.archiveURL(date)
	want := "https://nsearchives.nseindia.com/content/historical/DERIVATIVES/2025/AUG/fo28AUG2025bhav.csv.zip"
	if got != want {
		t.Errorf("archiveURL = %s, want %s", got, want)
	}

	// Single-digit day keeps its leading zero.
	got = f.archiveURL(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	if !strings.Contains(got, "fo02JAN2025bhav.csv.zip") {
		t.Errorf("archiveURL = %s, want fo02JAN2025 path", got)
	}
}

func TestErrNotPublished(t *testing.T) {
	err := &ErrNotPublished{
		Date: time.Date(2025, 8, 30, 0, 0, 0, 0, time.UTC),
		URL:  "https://example.com/x.zip",
	}
	if !strings.Contains(err.Error(), "2025-08-30") {
		t.Errorf("error message lacks the date: %s", err.Error())
	}
}
