// Package historical runs the tick-to-bar ETL and prepares stored bars for
// charting.
package historical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sabarim/txbars/internal/bars"
	"github.com/sabarim/txbars/internal/session"
	"github.com/sabarim/txbars/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// Pipeline turns one calendar date of raw ticks per symbol into stored bars
// for every configured timeframe.
type Pipeline struct {
	source     TickSource
	store      *store.Store
	aggregator *bars.Aggregator
	symbols    []string
	timeframes []bars.Timeframe
	workers    int
	logger     logrus.FieldLogger
}

// NewPipeline creates a pipeline. workers bounds RunRange parallelism.
func NewPipeline(source TickSource, st *store.Store, c session.Classifier, symbols []string, timeframes []bars.Timeframe, workers int, logger logrus.FieldLogger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		source:     source,
		store:      st,
		aggregator: bars.NewAggregator(c),
		symbols:    symbols,
		timeframes: timeframes,
		workers:    workers,
		logger:     logger.WithField("component", "pipeline"),
	}
}

// RunDate processes every symbol for one calendar date. A failing symbol does
// not stop the others; all failures are returned together.
func (p *Pipeline) RunDate(ctx context.Context, date time.Time) error {
	date = session.CalendarDate(date)
	log := p.logger.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"date":   date.Format("2006-01-02"),
	})
	log.Info("starting ETL run")

	var errs error
	for _, symbol := range p.symbols {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if err := p.runSymbol(ctx, log.WithField("symbol", symbol), symbol, date); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", symbol, date.Format("2006-01-02"), err))
		}
	}

	if errs != nil {
		log.WithField("failures", len(multierr.Errors(errs))).Error("ETL run finished with errors")
	} else {
		log.Info("ETL run completed")
	}
	return errs
}

// RunRange runs RunDate for every calendar day in [from, to], weekends
// included, on a bounded worker pool. Dates not yet started when ctx is
// cancelled are skipped.
func (p *Pipeline) RunRange(ctx context.Context, from, to time.Time) error {
	from, to = session.CalendarDate(from), session.CalendarDate(to)
	if to.Before(from) {
		return fmt.Errorf("invalid range: %s is after %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	p.logger.WithFields(logrus.Fields{
		"from":    from.Format("2006-01-02"),
		"to":      to.Format("2006-01-02"),
		"workers": p.workers,
	}).Info("starting batch")

	wp := pool.New().WithContext(ctx).WithMaxGoroutines(p.workers)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := d
		wp.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return p.RunDate(ctx, date)
		})
	}
	return wp.Wait()
}

func (p *Pipeline) runSymbol(ctx context.Context, log logrus.FieldLogger, symbol string, date time.Time) error {
	ticks, err := p.loadTicks(ctx, log, symbol, date)
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		log.Warn("no ticks for date, skipping")
		return nil
	}
	ticks = bars.DedupTicks(ticks)

	for _, tf := range p.timeframes {
		rows, err := p.aggregator.Resample(ticks, tf)
		if err != nil {
			return fmt.Errorf("resample %s: %w", tf, err)
		}
		if len(rows) == 0 {
			continue
		}
		if err := p.store.SaveBars(symbol, tf, date, rows); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"timeframe": tf.String(), "bars": len(rows)}).Info("saved bars")
	}
	return nil
}

// loadTicks prefers the raw tick cache; a missing or corrupt cache is
// refilled from the source.
func (p *Pipeline) loadTicks(ctx context.Context, log logrus.FieldLogger, symbol string, date time.Time) ([]bars.Tick, error) {
	ticks, err := p.store.LoadTicks(symbol, date)
	switch {
	case err == nil:
		log.WithField("ticks", len(ticks)).Debug("using cached raw ticks")
		return ticks, nil
	case errors.Is(err, store.ErrCorruptTable):
		log.WithError(err).Warn("cached raw ticks are corrupt, fetching again")
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, err
	}

	ticks, err = p.source.FetchTicks(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	if len(ticks) == 0 {
		return nil, nil
	}
	if err := p.store.SaveTicks(symbol, date, ticks); err != nil {
		return nil, err
	}
	return ticks, nil
}

// Rebuild re-derives the stored bar partition of tf that holds partition and
// rewrites it. An intraday partition is one calendar date. A daily partition
// is a whole year: dates inside [from, to] go through the cache and then the
// source like RunDate, other dates of the year are rebuilt from cached raw
// ticks only.
func (p *Pipeline) Rebuild(ctx context.Context, symbol string, tf bars.Timeframe, partition, from, to time.Time) error {
	partition = session.CalendarDate(partition)
	from, to = session.CalendarDate(from), session.CalendarDate(to)
	log := p.logger.WithFields(logrus.Fields{
		"symbol":    symbol,
		"timeframe": tf.String(),
		"partition": partition.Format("2006-01-02"),
	})

	if err := p.store.DropBars(symbol, tf, partition); err != nil {
		return err
	}

	dates := []time.Time{partition}
	if tf.IsDaily() {
		dates = dates[:0]
		for d := time.Date(partition.Year(), 1, 1, 0, 0, 0, 0, time.UTC); d.Year() == partition.Year(); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
	}

	rebuilt := 0
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return err
		}

		requested := !date.Before(from) && !date.After(to)
		var ticks []bars.Tick
		var err error
		if requested || !tf.IsDaily() {
			ticks, err = p.loadTicks(ctx, log, symbol, date)
			if err != nil {
				return err
			}
		} else {
			ticks, err = p.store.LoadTicks(symbol, date)
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrCorruptTable) {
				continue
			}
			if err != nil {
				return err
			}
		}
		if len(ticks) == 0 {
			continue
		}

		rows, err := p.aggregator.Resample(bars.DedupTicks(ticks), tf)
		if err != nil {
			return fmt.Errorf("resample %s: %w", tf, err)
		}
		if len(rows) == 0 {
			continue
		}
		if err := p.store.SaveBars(symbol, tf, date, rows); err != nil {
			return err
		}
		rebuilt++
	}

	log.WithField("dates", rebuilt).Info("rebuilt bar table from raw ticks")
	return nil
}
