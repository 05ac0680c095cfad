// Package ingest downloads and parses the NSE F&O bhavcopy, the daily
// settlement file the signal engine runs on. It is a collaborator of
// the engine, never invoked from the analyzer/combiner path.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/fnopulse/internal/bhavcopy"
	"github.com/seenimoa/fnopulse/internal/config"
)

const (
	nseHomeURL = "https://www.nseindia.com"
	reportsURL = "https://www.nseindia.com/all-reports-derivatives"

	// NSE requires browser-looking requests and session cookies.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	cookieTTL   = 5 * time.Minute
	maxZipBytes = 64 << 20
)

// ErrNotPublished means the bhavcopy for the requested date is not on
// the archive yet (or the date is a holiday).
type ErrNotPublished struct {
	Date time.Time
	URL  string
}

func (e *ErrNotPublished) Error() string {
	return fmt.Sprintf("bhavcopy for %s not published (%s)", e.Date.Format("2006-01-02"), e.URL)
}

// Fetcher downloads F&O bhavcopy archives with a warmed-up, politely
// rate-limited HTTP client.
type Fetcher struct {
	cfg    config.IngestConfig
	client *http.Client

	mu           sync.Mutex
	cookieExpiry time.Time
	lastRequest  time.Time
}

// NewFetcher creates a bhavcopy fetcher from ingest configuration.
func NewFetcher(cfg config.IngestConfig) *Fetcher {
	jar, _ := cookiejar.New(nil)
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}
}

// archiveURL builds the dated bhavcopy path, e.g.
// /content/historical/DERIVATIVES/2025/AUG/fo28AUG2025bhav.csv.zip
func (f *Fetcher) archiveURL(date time.Time) string {
	base := strings.TrimRight(f.cfg.BaseURL, "/")
	mon := strings.ToUpper(date.Format("Jan"))
	return fmt.Sprintf("%s/content/historical/DERIVATIVES/%d/%s/fo%02d%s%dbhav.csv.zip",
		base, date.Year(), mon, date.Day(), mon, date.Year())
}

// FetchDay downloads and parses the bhavcopy for one session date.
// When the dated URL 404s and discovery is enabled, the daily-reports
// page is scraped for the current archive link before giving up.
func (f *Fetcher) FetchDay(ctx context.Context, date time.Time) ([]bhavcopy.RawRow, error) {
	data, err := f.fetchZip(ctx, date)
	if err != nil {
		return nil, err
	}
	csvData, err := extractCSV(data)
	if err != nil {
		return nil, fmt.Errorf("extract bhavcopy for %s: %w", date.Format("2006-01-02"), err)
	}
	return ParseCSV(bytes.NewReader(csvData))
}

// Download fetches the bhavcopy zip and stores it under the data
// directory, returning the file path. Used by the CLI fetch mode so
// analyze runs can work offline.
func (f *Fetcher) Download(ctx context.Context, date time.Time) (string, error) {
	data, err := f.fetchZip(ctx, date)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(f.cfg.DataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(f.cfg.DataDir, fmt.Sprintf("fo_bhavcopy_%s.csv.zip", date.Format("20060102")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write bhavcopy: %w", err)
	}
	logrus.WithFields(logrus.Fields{"path": path, "bytes": len(data)}).Info("bhavcopy saved")
	return path, nil
}

func (f *Fetcher) fetchZip(ctx context.Context, date time.Time) ([]byte, error) {
	if err := f.ensureCookies(ctx); err != nil {
		return nil, err
	}

	url := f.archiveURL(date)
	data, status, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		return data, nil
	}

	if status == http.StatusNotFound && f.cfg.RetryDiscovery {
		logrus.WithField("url", url).Debug("dated bhavcopy URL missing, scraping reports page")
		discovered, derr := f.discoverLink(ctx, date)
		if derr == nil && discovered != "" {
			data, status, err = f.get(ctx, discovered)
			if err != nil {
				return nil, err
			}
			if status == http.StatusOK {
				return data, nil
			}
		}
	}

	return nil, &ErrNotPublished{Date: date, URL: url}
}

// discoverLink scrapes the derivatives daily-reports page for the F&O
// bhavcopy archive link. NSE reshuffles the dated paths from time to
// time; the reports page is the stable entry point.
func (f *Fetcher) discoverLink(ctx context.Context, date time.Time) (string, error) {
	body, status, err := f.get(ctx, reportsURL)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("reports page returned %d", status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse reports page: %w", err)
	}

	datePart := strings.ToUpper(date.Format("02Jan2006"))
	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !strings.HasSuffix(href, ".csv.zip") {
			return true
		}
		upper := strings.ToUpper(href)
		if strings.Contains(upper, "FO") && strings.Contains(upper, datePart) {
			link = href
			return false
		}
		return true
	})
	if link == "" {
		return "", fmt.Errorf("no bhavcopy link for %s on reports page", date.Format("2006-01-02"))
	}
	if strings.HasPrefix(link, "/") {
		link = strings.TrimRight(f.cfg.BaseURL, "/") + link
	}
	return link, nil
}

// ensureCookies visits the NSE homepage for session cookies. The
// archive rejects cookie-less requests.
func (f *Fetcher) ensureCookies(ctx context.Context) error {
	f.mu.Lock()
	fresh := time.Now().Before(f.cookieExpiry)
	f.mu.Unlock()
	if fresh {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, nseHomeURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("warm up NSE session: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	f.mu.Lock()
	f.cookieExpiry = time.Now().Add(cookieTTL)
	f.mu.Unlock()
	return nil
}

// get performs one polite GET: requests are spaced by the configured
// rate so the archive host is never hammered.
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, int, error) {
	if err := f.throttle(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Referer", nseHomeURL)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxZipBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s: %w", url, err)
	}
	return body, resp.StatusCode, nil
}

func (f *Fetcher) throttle(ctx context.Context) error {
	rate := f.cfg.RatePerSec
	if rate <= 0 {
		rate = 1
	}
	interval := time.Second / time.Duration(rate)

	f.mu.Lock()
	wait := interval - time.Since(f.lastRequest)
	f.lastRequest = time.Now().Add(wait)
	f.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// LoadFile reads a saved bhavcopy (.csv or .csv.zip) from disk.
func LoadFile(path string) ([]bhavcopy.RawRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bhavcopy file: %w", err)
	}
	if strings.HasSuffix(strings.ToLower(path), ".zip") {
		data, err = extractCSV(data)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", path, err)
		}
	}
	return ParseCSV(bytes.NewReader(data))
}

// ParseCSV unmarshals bhavcopy CSV content into raw rows. Field-level
// validation happens later in bhavcopy.Load; this only fails on
// structurally broken CSV.
func ParseCSV(r io.Reader) ([]bhavcopy.RawRow, error) {
	var rows []bhavcopy.RawRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse bhavcopy csv: %w", err)
	}
	return rows, nil
}

// extractCSV pulls the first CSV entry out of a bhavcopy zip.
func extractCSV(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	for _, file := range zr.File {
		if !strings.HasSuffix(strings.ToLower(file.Name), ".csv") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", file.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxZipBytes))
	}
	return nil, fmt.Errorf("no csv entry in archive")
}
