package historical

import (
	"context"
	"fmt"
	"time"

	"github.com/sabarim/txbars/internal/adjust"
	"github.com/sabarim/txbars/internal/bars"
	"github.com/sabarim/txbars/internal/indicators"
	"github.com/sabarim/txbars/internal/session"
	"github.com/sabarim/txbars/internal/store"
	"github.com/sirupsen/logrus"
)

// ViewRequest selects a stored bar series for charting.
type ViewRequest struct {
	Symbol    string
	Timeframe bars.Timeframe
	From      time.Time
	To        time.Time
	Combine   bool
	Adjust    bool
}

// Rebuilder re-derives a stored bar partition from raw ticks. Pipeline
// implements it.
type Rebuilder interface {
	Rebuild(ctx context.Context, symbol string, tf bars.Timeframe, partition, from, to time.Time) error
}

// Viewer loads stored bars and turns them into indicator tables.
type Viewer struct {
	store      *store.Store
	aggregator *bars.Aggregator
	classifier session.Classifier
	colors     indicators.Colorizer
	adjuster   *adjust.Adjuster
	rebuilder  Rebuilder
	logger     logrus.FieldLogger
}

// NewViewer creates a viewer. adjuster may be nil when no correction table is
// configured; requests asking for adjustment then fail. rebuilder may be nil,
// in which case corrupt bar tables are skipped instead of re-derived.
func NewViewer(st *store.Store, c session.Classifier, colors indicators.Colorizer, adjuster *adjust.Adjuster, rebuilder Rebuilder, logger logrus.FieldLogger) *Viewer {
	return &Viewer{
		store:      st,
		aggregator: bars.NewAggregator(c),
		classifier: c,
		colors:     colors,
		adjuster:   adjuster,
		rebuilder:  rebuilder,
		logger:     logger.WithField("component", "viewer"),
	}
}

// View loads the requested series and prepares it for charting. Stored
// tables that fail to parse are re-derived from raw ticks before loading.
func (v *Viewer) View(ctx context.Context, req ViewRequest) (indicators.Table, error) {
	if req.Adjust && v.adjuster == nil {
		return indicators.Table{}, fmt.Errorf("continuity adjustment requested but no correction table is configured")
	}
	to := req.To
	if to.IsZero() {
		to = req.From
	}

	rows, err := v.load(ctx, req.Symbol, req.Timeframe, req.From, to)
	if err != nil {
		return indicators.Table{}, err
	}
	if req.Timeframe.IsDaily() {
		// A night session spans two calendar files and is stored as two
		// fragments; fold them back into one bar per date and session.
		if rows, err = v.aggregator.Rollup(rows, bars.Daily); err != nil {
			return indicators.Table{}, err
		}
	}
	v.logger.WithFields(logrus.Fields{
		"symbol":    req.Symbol,
		"timeframe": req.Timeframe.String(),
		"bars":      len(rows),
	}).Info("loaded bars")

	var adj *adjust.Adjuster
	if req.Adjust {
		adj = v.adjuster
	}
	return v.Process(rows, req.Timeframe, req.Combine, adj), nil
}

func (v *Viewer) load(ctx context.Context, symbol string, tf bars.Timeframe, from, to time.Time) ([]bars.Bar, error) {
	rows, corrupt, err := v.store.ScanBars(symbol, tf, from, to)
	if err != nil || len(corrupt) == 0 {
		return rows, err
	}
	if v.rebuilder == nil {
		return v.store.LoadBars(symbol, tf, from, to)
	}

	for _, p := range corrupt {
		v.logger.WithFields(logrus.Fields{
			"symbol":    symbol,
			"timeframe": tf.String(),
			"path":      v.store.BarPath(symbol, tf, p),
		}).Warn("stored bar table is corrupt, rebuilding from raw ticks")
		if err := v.rebuilder.Rebuild(ctx, symbol, tf, p, from, to); err != nil {
			return nil, fmt.Errorf("failed to rebuild %s %s: %w", symbol, tf, err)
		}
	}
	return v.store.LoadBars(symbol, tf, from, to)
}

// Process is the chart preparation path. Bars are shifted onto the
// continuous series first when adj is non-nil, then daily sessions are
// optionally combined and indicators computed.
func (v *Viewer) Process(rows []bars.Bar, tf bars.Timeframe, combine bool, adj *adjust.Adjuster) indicators.Table {
	if adj != nil {
		rows = adj.Apply(rows, tf)
	}
	return indicators.Process(rows, indicators.Options{
		Timeframe:  tf,
		Colors:     v.colors,
		Classifier: v.classifier,
	}, combine)
}
