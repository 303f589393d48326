package bars

import (
	"fmt"
	"slices"
	"time"

	"github.com/sabarim/txbars/internal/session"
)

// Aggregator turns tick and bar tables into coarser bar tables.
type Aggregator struct {
	classifier session.Classifier
}

// NewAggregator creates an aggregator that classifies bars with c.
func NewAggregator(c session.Classifier) *Aggregator {
	return &Aggregator{classifier: c}
}

// Resample groups a time-sorted tick table into bars of the given timeframe
// using the default exchange timezone.
func Resample(ticks []Tick, tf Timeframe) ([]Bar, error) {
	return NewAggregator(session.Default).Resample(ticks, tf)
}

// Resample groups a time-sorted tick table into bars. Intraday bars are
// half-open, left-labelled intervals aligned to local wall-clock time; daily
// bars are one row per (trading date, session). Zero-volume bars are dropped.
// An empty input yields an empty table.
func (a *Aggregator) Resample(ticks []Tick, tf Timeframe) ([]Bar, error) {
	if len(ticks) == 0 {
		return []Bar{}, nil
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Timestamp.Before(ticks[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: tick %d at %s precedes %s", ErrUnsortedTicks,
				i, ticks[i].Timestamp.Format(time.RFC3339Nano), ticks[i-1].Timestamp.Format(time.RFC3339Nano))
		}
	}

	var out []Bar
	if tf.IsDaily() {
		out = a.dailyFromTicks(ticks)
	} else {
		out = a.intradayFromTicks(ticks, tf.Interval)
	}

	symbol := ticks[0].Symbol
	for i := range out {
		out[i].Symbol = symbol
	}
	return nonEmpty(out), nil
}

func (a *Aggregator) intradayFromTicks(ticks []Tick, interval time.Duration) []Bar {
	var out []Bar
	var cur *Bar
	var first time.Time
	for _, t := range ticks {
		start := a.floor(t.Timestamp, interval)
		if cur == nil || !start.Equal(cur.Timestamp) {
			if cur != nil {
				out = append(out, a.tag(*cur, first))
			}
			b := barFromTick(t)
			b.Timestamp = start
			cur, first = &b, t.Timestamp
			continue
		}
		cur.absorbTick(t)
	}
	if cur != nil {
		out = append(out, a.tag(*cur, first))
	}
	return out
}

type dailyKey struct {
	date    time.Time
	session session.Session
}

func (a *Aggregator) dailyFromTicks(ticks []Tick) []Bar {
	index := make(map[dailyKey]int)
	var out []Bar
	for _, t := range ticks {
		s, d := a.classifier.Classify(t.Timestamp)
		k := dailyKey{date: d, session: s}
		if i, ok := index[k]; ok {
			out[i].absorbTick(t)
			continue
		}
		b := barFromTick(t)
		b.Date, b.Session = d, s
		index[k] = len(out)
		out = append(out, b)
	}
	sortByTimestamp(out)
	return out
}

// Rollup re-aggregates a time-sorted intraday bar table into a coarser
// timeframe. Re-aggregating 1m bars into 1h yields the same bars, session
// and trading date included, as resampling the original ticks to 1h directly.
func (a *Aggregator) Rollup(in []Bar, tf Timeframe) ([]Bar, error) {
	if len(in) == 0 {
		return []Bar{}, nil
	}
	for i := 1; i < len(in); i++ {
		if in[i].Timestamp.Before(in[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: bar %d", ErrUnsortedTicks, i)
		}
	}

	var out []Bar
	if tf.IsDaily() {
		index := make(map[dailyKey]int)
		for _, b := range in {
			k := dailyKey{date: b.Date, session: b.Session}
			if i, ok := index[k]; ok {
				out[i].absorbBar(b)
				continue
			}
			index[k] = len(out)
			out = append(out, b)
		}
		sortByTimestamp(out)
		return nonEmpty(out), nil
	}

	var cur *Bar
	for _, b := range in {
		start := a.floor(b.Timestamp, tf.Interval)
		if cur == nil || !start.Equal(cur.Timestamp) {
			if cur != nil {
				out = append(out, *cur)
			}
			// The first constituent was tagged from its first trade; its
			// timestamp is only an interval start and may sit in the other
			// session.
			nb := b
			if nb.Session == "" {
				nb.Session, nb.Date = a.classifier.Classify(b.Timestamp)
			}
			nb.Timestamp = start
			cur = &nb
			continue
		}
		cur.absorbBar(b)
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return nonEmpty(out), nil
}

// tag recomputes session and trading date for an intraday bar from the
// timestamp of its earliest constituent.
func (a *Aggregator) tag(b Bar, first time.Time) Bar {
	b.Session, b.Date = a.classifier.Classify(first)
	return b
}

// floor truncates t to a multiple of d on the local wall clock.
func (a *Aggregator) floor(t time.Time, d time.Duration) time.Time {
	l := a.classifier.Local(t)
	wall := time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
	f := wall.Truncate(d)
	return time.Date(f.Year(), f.Month(), f.Day(), f.Hour(), f.Minute(), f.Second(), f.Nanosecond(), l.Location())
}

func sortByTimestamp(rows []Bar) {
	slices.SortStableFunc(rows, func(x, y Bar) int {
		return x.Timestamp.Compare(y.Timestamp)
	})
}
