// fnopulse — end-of-day F&O opportunity signals from the NSE bhavcopy.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seenimoa/fnopulse/api"
	"github.com/seenimoa/fnopulse/internal/bhavcopy"
	"github.com/seenimoa/fnopulse/internal/config"
	"github.com/seenimoa/fnopulse/internal/engine"
	"github.com/seenimoa/fnopulse/internal/ingest"
	"github.com/seenimoa/fnopulse/pkg/models"
	"github.com/seenimoa/fnopulse/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fnopulse",
	Short: "fnopulse — NSE F&O bhavcopy signal engine",
	Long: `fnopulse reads the NSE futures & options bhavcopy (the daily
settlement file), runs options and futures analyzers over it, and
combines their signals into a ranked opportunity report.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		setupLogging(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

func setupLogging(lc config.LoggingConfig) {
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if lc.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// sessionDateFlag resolves the --date flag, defaulting to the most
// recent completed trading day.
func sessionDateFlag(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("date")
	if raw == "" {
		return utils.LatestSessionDate(utils.NowIST()), nil
	}
	d, err := utils.ParseDateIST(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: use YYYY-MM-DD", raw)
	}
	return d, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fnopulse %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the F&O bhavcopy for a session",
	Long:  "Download the F&O bhavcopy archive into the data directory for offline analyze runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := sessionDateFlag(cmd)
		if err != nil {
			return err
		}

		fetcher := ingest.NewFetcher(cfg.Ingest)
		path, err := fetcher.Download(cmd.Context(), day)
		if err != nil {
			return err
		}
		fmt.Printf("📥 Bhavcopy for %s saved to %s\n", day.Format("2006-01-02"), path)
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("date", "", "session date (YYYY-MM-DD, default: last trading day)")
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a bhavcopy and print the opportunity report",
	Long: `Run the options and futures analyzers over one session's bhavcopy
and print the ranked opportunity report.

Examples:
  fnopulse analyze
  fnopulse analyze --date 2026-08-28
  fnopulse analyze --file data/fo_bhavcopy_20260828.csv.zip --top 15
  fnopulse analyze --direction bearish --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := buildReport(cmd)
		if err != nil {
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		top, _ := cmd.Flags().GetInt("top")
		dir, _ := cmd.Flags().GetString("direction")
		sym, _ := cmd.Flags().GetString("symbol")
		renderReport(report, top, dir, sym)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("date", "", "session date (YYYY-MM-DD, default: last trading day)")
	analyzeCmd.Flags().String("file", "", "local bhavcopy file (.csv or .csv.zip) instead of downloading")
	analyzeCmd.Flags().Int("top", 0, "show only the top N opportunities")
	analyzeCmd.Flags().String("direction", "", "filter by direction (bullish, bearish, neutral)")
	analyzeCmd.Flags().String("symbol", "", "show only one underlying (aliases accepted, e.g. ril)")
	analyzeCmd.Flags().Bool("json", false, "emit the full report as JSON")
}

// buildReport loads bhavcopy rows from --file or the network and runs
// the engine over them.
func buildReport(cmd *cobra.Command) (*models.OpportunityReport, error) {
	var (
		rows []bhavcopy.RawRow
		err  error
	)

	if file, _ := cmd.Flags().GetString("file"); file != "" {
		rows, err = ingest.LoadFile(file)
	} else {
		var day time.Time
		day, err = sessionDateFlag(cmd)
		if err != nil {
			return nil, err
		}
		fetcher := ingest.NewFetcher(cfg.Ingest)
		rows, err = fetcher.FetchDay(cmd.Context(), day)
	}
	if err != nil {
		return nil, err
	}

	store, err := bhavcopy.Load(rows)
	if err != nil {
		return nil, err
	}

	return engine.Run(cmd.Context(), store, nil, cfg.Signals)
}

// renderReport prints the ranked table plus a warning summary.
func renderReport(report *models.OpportunityReport, top int, dirFilter, symFilter string) {
	fmt.Printf("🎯 F&O Opportunities — session %s\n\n", report.SessionDate().Format("2006-01-02"))

	rows := report.Table()
	if dirFilter != "" {
		want := models.Direction(strings.ToLower(dirFilter))
		filtered := rows[:0]
		for _, row := range rows {
			if row.Direction == want {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	if symFilter != "" {
		want := utils.NormalizeSymbol(symFilter)
		filtered := rows[:0]
		for _, row := range rows {
			if row.Symbol == want {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	if top > 0 && top < len(rows) {
		rows = rows[:top]
	}

	if len(rows) == 0 {
		fmt.Println("No opportunities for this session.")
	} else {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "Symbol", "Score", "Direction", "Buildup", "PCR", "Basis", "Opt", "Fut", "Vol⚡"})
		table.SetAlignment(tablewriter.ALIGN_RIGHT)
		table.SetBorder(false)

		for _, row := range rows {
			sym := row.Symbol
			if utils.IsIndexSymbol(sym) {
				sym += " (idx)"
			}
			table.Append([]string{
				fmt.Sprintf("%d", row.Rank),
				sym,
				fmt.Sprintf("%+.3f", row.Score),
				string(row.Direction),
				string(row.Buildup),
				formatOpt(row.HasOption, row.PCR),
				formatFut(row.HasFuture, row.Basis),
				formatStrength(row.HasOption, row.OptionStrength),
				formatStrength(row.HasFuture, row.FutureStrength),
				boolMark(row.UnusualVolume),
			})
		}
		table.Render()
	}

	fmt.Println()
	if dropped := report.NeutralDropped(); dropped > 0 {
		fmt.Printf("  %d neutral symbols dropped\n", dropped)
	}
	counts := report.WarningCounts()
	if len(counts) == 0 {
		fmt.Println("  No data warnings.")
		return
	}
	fmt.Println("  Data warnings:")
	for _, kind := range []models.WarningKind{
		models.WarnMalformedRecord,
		models.WarnDuplicateRecord,
		models.WarnInsufficientData,
		models.WarnLowConfidence,
	} {
		if n := counts[kind]; n > 0 {
			fmt.Printf("    %-20s %d\n", string(kind), n)
		}
	}
}

func formatOpt(has bool, pcr float64) string {
	if !has {
		return "-"
	}
	return fmt.Sprintf("%.2f", pcr)
}

func formatFut(has bool, basis float64) string {
	if !has {
		return "-"
	}
	return fmt.Sprintf("%+.2f", basis)
}

func formatStrength(has bool, strength float64) string {
	if !has {
		return "-"
	}
	return fmt.Sprintf("%+.2f", strength)
}

func boolMark(b bool) string {
	if b {
		return "⚡"
	}
	return ""
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Analyze a session and serve the report over HTTP",
	Long: `Build the opportunity report for one session and serve it to
dashboard clients over REST and WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := buildReport(cmd)
		if err != nil {
			return err
		}

		srv := api.NewServer(cfg)
		srv.SetReport(report)

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Serving report for %s on %s\n", report.SessionDate().Format("2006-01-02"), addr)
		return srv.ListenAndServe(addr)
	},
}

func init() {
	serveCmd.Flags().String("date", "", "session date (YYYY-MM-DD, default: last trading day)")
	serveCmd.Flags().String("file", "", "local bhavcopy file instead of downloading")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and market status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  fnopulse — Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatus())
		fmt.Printf("  Time (IST):    %s\n", utils.FormatDateTimeIST(utils.NowIST()))
		fmt.Printf("  Last Session:  %s\n", utils.LatestSessionDate(utils.NowIST()).Format("2006-01-02"))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Archive URL:   %s\n", cfg.Ingest.BaseURL)
		fmt.Printf("    Data Dir:      %s\n", cfg.Ingest.DataDir)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Printf("    Weights (opt): oi=%.2f skew=%.2f vol=%.2f\n",
			cfg.Signals.OIWeight, cfg.Signals.SkewWeight, cfg.Signals.VolumeWeight)
		fmt.Printf("    Weights (fut): basis=%.2f oi_pct=%.2f confirm=%.2f\n",
			cfg.Signals.BasisWeight, cfg.Signals.OIPercentileWeight, cfg.Signals.ConfirmationWeight)
		fmt.Printf("    Combiner:      opt=%.2f fut=%.2f discount=%.2f dead_zone=%.2f\n",
			cfg.Signals.CombinerOptionWeight, cfg.Signals.CombinerFutureWeight,
			cfg.Signals.SingleSourceDiscount, cfg.Signals.NeutralDeadZone)
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
