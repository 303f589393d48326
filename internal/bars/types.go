package bars

import (
	"errors"
	"time"

	"github.com/sabarim/txbars/internal/session"
)

var (
	// ErrUnknownTimeframe is returned for a timeframe token that cannot be parsed.
	ErrUnknownTimeframe = errors.New("unknown timeframe")
	// ErrUnsortedTicks is returned when tick timestamps decrease.
	ErrUnsortedTicks = errors.New("ticks are not sorted by timestamp")
)

// Tick is a single trade print
type Tick struct {
	Timestamp time.Time
	Symbol    string
	Price     float64
	Volume    int64

	BidPrice  *float64
	BidVolume *int64
	AskPrice  *float64
	AskVolume *int64
	// TickType is the trade direction: 1 buyer initiated, 2 seller initiated, 0 unknown.
	TickType *int8
	// UnderlyingPrice is set for derivatives that report their underlying index.
	UnderlyingPrice *float64
}

// Bar is one OHLCV row. Every bar produced by this package carries its
// session and trading date, recomputed after each grouping step.
type Bar struct {
	Symbol string
	// Date is the trading date (UTC midnight). For combined daily bars it is
	// the combined date.
	Date time.Time
	// Timestamp is the interval start for intraday bars and the first
	// trade's timestamp for daily bars.
	Timestamp time.Time
	Session   session.Session

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64

	UnderlyingClose *float64
}

// Consistent reports whether low <= open, close <= high.
func (b Bar) Consistent() bool {
	return b.Low <= b.Open && b.Low <= b.Close && b.Open <= b.High && b.Close <= b.High
}

func barFromTick(t Tick) Bar {
	return Bar{
		Symbol:          t.Symbol,
		Timestamp:       t.Timestamp,
		Open:            t.Price,
		High:            t.Price,
		Low:             t.Price,
		Close:           t.Price,
		Volume:          t.Volume,
		UnderlyingClose: t.UnderlyingPrice,
	}
}

func (b *Bar) absorbTick(t Tick) {
	if t.Price > b.High {
		b.High = t.Price
	}
	if t.Price < b.Low {
		b.Low = t.Price
	}
	b.Close = t.Price
	b.Volume += t.Volume
	b.UnderlyingClose = t.UnderlyingPrice
}

// absorbBar folds a later bar into b.
func (b *Bar) absorbBar(o Bar) {
	if o.High > b.High {
		b.High = o.High
	}
	if o.Low < b.Low {
		b.Low = o.Low
	}
	b.Close = o.Close
	b.Volume += o.Volume
	b.UnderlyingClose = o.UnderlyingClose
}

func nonEmpty(in []Bar) []Bar {
	out := in[:0]
	for _, b := range in {
		if b.Volume > 0 {
			out = append(out, b)
		}
	}
	return out
}
