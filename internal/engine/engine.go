package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/fnopulse/internal/analysis/futures"
	"github.com/seenimoa/fnopulse/internal/analysis/options"
	"github.com/seenimoa/fnopulse/internal/bhavcopy"
	"github.com/seenimoa/fnopulse/internal/config"
	"github.com/seenimoa/fnopulse/pkg/models"
)

// Run executes one full signal derivation over the store: the two
// analyzers fork as independent tasks reading disjoint row subsets of
// the immutable store, join, and feed the combiner. Configuration is
// validated once up front so a misconfigured run fails before any
// analyzer starts. The run is stateless and idempotent for the same
// store and config.
func Run(ctx context.Context, store *bhavcopy.Store, spot futures.Spot, cfg config.SignalsConfig) (*models.OpportunityReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	var (
		optSignals  []models.OptionSignal
		futSignals  []models.FutureSignal
		optWarnings []models.Warning
		futWarnings []models.Warning
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		optSignals, optWarnings, err = options.Analyze(store, cfg)
		return err
	})
	g.Go(func() error {
		var err error
		futSignals, futWarnings, err = futures.Analyze(store, spot, cfg)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	warnings := make([]models.Warning, 0, len(store.Warnings())+len(optWarnings)+len(futWarnings))
	warnings = append(warnings, store.Warnings()...)
	warnings = append(warnings, optWarnings...)
	warnings = append(warnings, futWarnings...)

	report, err := Combine(store.SessionDate(), optSignals, futSignals, warnings, cfg)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"session":         report.SessionDate().Format("2006-01-02"),
		"records":         store.Len(),
		"option_signals":  len(optSignals),
		"futures_signals": len(futSignals),
		"opportunities":   report.Len(),
		"warnings":        len(warnings),
		"took":            time.Since(start).Round(time.Millisecond),
	}).Info("signal run complete")

	return report, nil
}
