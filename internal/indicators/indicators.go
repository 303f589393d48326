// Package indicators derives chart-ready rows from bar tables: rolling
// moving averages, a session-scoped cumulative VWAP and display state.
package indicators

import (
	"fmt"

	"github.com/sabarim/txbars/internal/bars"
	"github.com/sabarim/txbars/internal/session"
)

// DefaultWindows are the moving average look-backs in bars.
var DefaultWindows = []int{5, 10, 20, 60, 120, 240}

// Colorizer maps bar direction and session to display colors.
type Colorizer interface {
	Color(isUp bool, s session.Session) string
	VolumeColor(isUp bool, s session.Session) string
}

// Options controls Compute.
type Options struct {
	Timeframe bars.Timeframe
	// Combined marks daily bars already merged by bars.Combine.
	Combined bool
	// Windows defaults to DefaultWindows.
	Windows []int
	// Colors is optional; color fields stay empty without it.
	Colors     Colorizer
	Classifier session.Classifier
}

// Row is a bar extended with derived fields.
type Row struct {
	bars.Bar

	// Time is the display label: a date for combined daily bars, a local
	// timestamp otherwise.
	Time string
	IsUp bool

	Color       string
	BorderColor string
	WickColor   string
	VolColor    string

	// MA holds one value per window, nil while history is insufficient.
	MA []*float64
	// VWAP is nil for daily series.
	VWAP *float64
}

// Table is the finalized indicator output.
type Table struct {
	// Windows names the MA columns (ma5, ma10, ...) in Row.MA order.
	Windows []int
	Rows    []Row
}

// MAColumn returns the column name of the i-th moving average.
func (t Table) MAColumn(i int) string {
	return fmt.Sprintf("ma%d", t.Windows[i])
}

// MultiplierFor returns the look-back multiplier. Uncombined daily series hold
// two rows per calendar day, so every window is doubled.
func MultiplierFor(tf bars.Timeframe, combined bool) int {
	if tf.IsDaily() && !combined {
		return 2
	}
	return 1
}

// Process is the chart preparation path: optionally merges daily sessions and
// computes indicators.
func Process(in []bars.Bar, opts Options, combine bool) Table {
	if opts.Timeframe.IsDaily() && combine {
		in = bars.Combine(in)
		opts.Combined = true
	} else {
		opts.Combined = false
	}
	return Compute(in, opts)
}

// Compute derives indicator rows from a time-ascending bar table.
func Compute(in []bars.Bar, opts Options) Table {
	windows := opts.Windows
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	table := Table{Windows: windows, Rows: make([]Row, len(in))}
	if len(in) == 0 {
		return table
	}

	closes := make([]float64, len(in))
	for i, b := range in {
		closes[i] = b.Close
	}
	mult := MultiplierFor(opts.Timeframe, opts.Combined)
	means := make([][]*float64, len(windows))
	for w, n := range windows {
		means[w] = RollingMean(closes, n*mult)
	}

	var vwaps []*float64
	if !opts.Timeframe.IsDaily() {
		vwaps = CumulativeVWAP(in, opts.Classifier)
	}

	for i, b := range in {
		b.Session = session.OrDay(b.Session)
		r := Row{Bar: b, IsUp: b.Close >= b.Open, MA: make([]*float64, len(windows))}
		if opts.Timeframe.IsDaily() && opts.Combined {
			r.Time = b.Date.Format("2006-01-02")
		} else {
			r.Time = opts.Classifier.Local(b.Timestamp).Format("2006-01-02 15:04:05")
		}
		if opts.Colors != nil {
			c := opts.Colors.Color(r.IsUp, b.Session)
			r.Color, r.BorderColor, r.WickColor = c, c, c
			r.VolColor = opts.Colors.VolumeColor(r.IsUp, b.Session)
		}
		for w := range windows {
			r.MA[w] = means[w][i]
		}
		if vwaps != nil {
			r.VWAP = vwaps[i]
		}
		table.Rows[i] = r
	}
	return table
}

// RollingMean is the simple mean of the last n values, nil for the first n-1
// positions.
func RollingMean(values []float64, n int) []*float64 {
	out := make([]*float64, len(values))
	if n <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= n {
			sum -= values[i-n]
		}
		if i >= n-1 {
			mean := sum / float64(n)
			out[i] = &mean
		}
	}
	return out
}

type vwapKey struct {
	date    string
	session session.Session
}

type vwapAcc struct {
	pv  float64
	vol float64
}

// CumulativeVWAP accumulates typical price times volume within each
// (VWAP date, session) group, starting a fresh accumulator per group.
func CumulativeVWAP(in []bars.Bar, c session.Classifier) []*float64 {
	out := make([]*float64, len(in))
	groups := make(map[vwapKey]*vwapAcc)
	for i, b := range in {
		s := session.OrDay(b.Session)
		k := vwapKey{date: c.VWAPDate(b.Timestamp).Format("2006-01-02"), session: s}
		acc, ok := groups[k]
		if !ok {
			acc = &vwapAcc{}
			groups[k] = acc
		}
		typical := (b.High + b.Low + b.Close) / 3
		acc.pv += typical * float64(b.Volume)
		acc.vol += float64(b.Volume)
		if acc.vol > 0 {
			v := acc.pv / acc.vol
			out[i] = &v
		}
	}
	return out
}
