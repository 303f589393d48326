package adjust

import (
	"time"

	"github.com/sabarim/txbars/internal/bars"
	"github.com/sabarim/txbars/internal/session"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Adjuster applies a correction table to bar tables.
type Adjuster struct {
	table      *Table
	classifier session.Classifier
	logger     logrus.FieldLogger
}

// NewAdjuster creates an adjuster. A nil table adjusts nothing.
func NewAdjuster(table *Table, c session.Classifier, logger logrus.FieldLogger) *Adjuster {
	if table == nil {
		table = &Table{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Adjuster{table: table, classifier: c, logger: logger.WithField("component", "adjust")}
}

// DeltaFor resolves the delta for one bar. Daily bars compare by date,
// intraday bars by their full timestamp. The second result is false when no
// correction lies ahead, in which case the delta is zero.
func (a *Adjuster) DeltaFor(b bars.Bar, tf bars.Timeframe) (decimal.Decimal, bool) {
	var cmp time.Time
	if tf.IsDaily() {
		cmp = a.classifier.At(b.Date, 0)
	} else {
		cmp = b.Timestamp
	}
	c, ok := a.table.Lookup(cmp)
	if !ok {
		return decimal.Zero, false
	}
	return c.Delta, true
}

// Apply returns a copy of in with the resolved delta added to open, high,
// low and close. Volume is untouched; a zero delta leaves a bar unchanged.
func (a *Adjuster) Apply(in []bars.Bar, tf bars.Timeframe) []bars.Bar {
	out := make([]bars.Bar, len(in))
	missing := 0
	for i, b := range in {
		delta, ok := a.DeltaFor(b, tf)
		if !ok {
			missing++
		}
		if !delta.IsZero() {
			b.Open = shift(b.Open, delta)
			b.High = shift(b.High, delta)
			b.Low = shift(b.Low, delta)
			b.Close = shift(b.Close, delta)
		}
		out[i] = b
	}
	if missing > 0 {
		a.logger.WithFields(logrus.Fields{
			"bars":      missing,
			"timeframe": tf.String(),
		}).Warn("no correction entry ahead of bars, left unadjusted")
	}
	return out
}

func shift(price float64, delta decimal.Decimal) float64 {
	f, _ := decimal.NewFromFloat(price).Add(delta).Float64()
	return f
}
