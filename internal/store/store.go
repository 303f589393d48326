// Package store persists raw ticks and resampled bars as parquet tables
// partitioned by symbol, timeframe and date.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sabarim/txbars/internal/bars"
	"github.com/sabarim/txbars/internal/session"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound means no table is stored under the requested key.
	ErrNotFound = errors.New("stored table not found")
	// ErrCorruptTable means a stored table exists but cannot be parsed.
	ErrCorruptTable = errors.New("stored table is corrupt")
)

// Store is a parquet-backed tick and bar repository rooted at a directory.
type Store struct {
	root   string
	loc    *time.Location
	logger logrus.FieldLogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a store rooted at root. Timestamps read back are expressed in
// loc.
func New(root string, loc *time.Location, logger logrus.FieldLogger) *Store {
	if loc == nil {
		loc = session.DefaultLocation
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		root:   root,
		loc:    loc,
		logger: logger.WithField("component", "store"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// TickPath returns the raw tick file for one symbol and calendar date.
func (s *Store) TickPath(symbol string, date time.Time) string {
	day := date.Format(dateLayout)
	return filepath.Join(s.root, "raw_ticks", symbol,
		date.Format("2006"), date.Format("01"),
		fmt.Sprintf("%s_%s_ticks.parquet", day, symbol))
}

// BarPath returns the bar file holding date. Intraday timeframes get one file
// per date, daily bars one file per year.
func (s *Store) BarPath(symbol string, tf bars.Timeframe, date time.Time) string {
	name := tf.String()
	if tf.IsDaily() {
		return filepath.Join(s.root, "kbars", name, symbol,
			fmt.Sprintf("%s_%s_%s.parquet", symbol, name, date.Format("2006")))
	}
	return filepath.Join(s.root, "kbars", name, symbol, date.Format("2006"),
		fmt.Sprintf("%s_%s_%s.parquet", date.Format(dateLayout), symbol, name))
}

// LoadTicks reads the raw ticks stored for symbol on date.
func (s *Store) LoadTicks(symbol string, date time.Time) ([]bars.Tick, error) {
	recs, err := readRecords[TickRecord](s.TickPath(symbol, date))
	if err != nil {
		return nil, err
	}
	ticks := make([]bars.Tick, len(recs))
	for i, r := range recs {
		ticks[i] = recordToTick(r, s.loc)
	}
	return ticks, nil
}

// SaveTicks overwrites the raw tick file for symbol on date.
func (s *Store) SaveTicks(symbol string, date time.Time, ticks []bars.Tick) error {
	recs := make([]TickRecord, len(ticks))
	for i, t := range ticks {
		recs[i] = tickToRecord(t)
	}
	path := s.TickPath(symbol, date)
	if err := writeRecords(path, recs); err != nil {
		return fmt.Errorf("failed to save ticks for %s on %s: %w", symbol, date.Format(dateLayout), err)
	}
	s.logger.WithFields(logrus.Fields{"symbol": symbol, "rows": len(recs), "path": path}).Debug("saved raw ticks")
	return nil
}

// SaveBars persists bars produced for symbol on date. Intraday files are
// overwritten. Daily bars are merged into their year file, keeping the newest
// row per timestamp; a corrupt year file is replaced by the new rows.
func (s *Store) SaveBars(symbol string, tf bars.Timeframe, date time.Time, rows []bars.Bar) error {
	if !tf.IsDaily() {
		return s.writeBars(s.BarPath(symbol, tf, date), rows)
	}

	byYear := make(map[int][]bars.Bar)
	for _, b := range rows {
		byYear[b.Date.Year()] = append(byYear[b.Date.Year()], b)
	}
	for _, group := range byYear {
		if err := s.mergeDaily(symbol, group); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) mergeDaily(symbol string, rows []bars.Bar) error {
	path := s.BarPath(symbol, bars.Daily, rows[0].Date)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.readBars(path)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
	case errors.Is(err, ErrCorruptTable):
		s.logger.WithError(err).WithField("symbol", symbol).Warn("overwriting corrupt daily table")
		existing = nil
	default:
		return err
	}
	return s.writeBars(path, bars.MergeBars(existing, rows))
}

// LoadBars reads bars for symbol between the calendar dates start and end
// inclusive, deduplicated on timestamp and sorted. Missing files are skipped;
// corrupt files are skipped with a warning.
func (s *Store) LoadBars(symbol string, tf bars.Timeframe, start, end time.Time) ([]bars.Bar, error) {
	rows, corrupt, err := s.ScanBars(symbol, tf, start, end)
	for _, p := range corrupt {
		s.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"path":   s.BarPath(symbol, tf, p),
		}).Warn("skipping corrupt bar table")
	}
	return rows, err
}

// ScanBars is LoadBars that also reports which partitions failed to parse.
// A partition is named by the date BarPath files it under: the calendar date
// for intraday timeframes, January 1 of the year for daily bars.
func (s *Store) ScanBars(symbol string, tf bars.Timeframe, start, end time.Time) ([]bars.Bar, []time.Time, error) {
	start, end = session.CalendarDate(start), session.CalendarDate(end)
	var partitions []time.Time
	if tf.IsDaily() {
		for y := start.Year(); y <= end.Year(); y++ {
			partitions = append(partitions, time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC))
		}
	} else {
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			partitions = append(partitions, d)
		}
	}

	var batches [][]bars.Bar
	var corrupt []time.Time
	for _, p := range partitions {
		rows, err := s.readBars(s.BarPath(symbol, tf, p))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if errors.Is(err, ErrCorruptTable) {
			corrupt = append(corrupt, p)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if tf.IsDaily() {
			rows = filterDates(rows, start, end)
		}
		batches = append(batches, rows)
	}
	return bars.MergeBars(batches...), corrupt, nil
}

// DropBars deletes the bar file holding date. A missing file is not an error.
func (s *Store) DropBars(symbol string, tf bars.Timeframe, date time.Time) error {
	path := s.BarPath(symbol, tf, date)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func (s *Store) readBars(path string) ([]bars.Bar, error) {
	recs, err := readRecords[BarRecord](path)
	if err != nil {
		return nil, err
	}
	out := make([]bars.Bar, len(recs))
	for i, r := range recs {
		b, err := recordToBar(r, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptTable, path, err)
		}
		out[i] = b
	}
	return out, nil
}

func (s *Store) writeBars(path string, rows []bars.Bar) error {
	recs := make([]BarRecord, len(rows))
	for i, b := range rows {
		recs[i] = barToRecord(b)
	}
	if err := writeRecords(path, recs); err != nil {
		return fmt.Errorf("failed to save bars to %s: %w", path, err)
	}
	s.logger.WithFields(logrus.Fields{"rows": len(recs), "path": path}).Debug("saved bars")
	return nil
}

func (s *Store) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

func filterDates(rows []bars.Bar, start, end time.Time) []bars.Bar {
	out := rows[:0]
	for _, b := range rows {
		if !b.Date.Before(start) && !b.Date.After(end) {
			out = append(out, b)
		}
	}
	return out
}
