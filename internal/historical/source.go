package historical

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sabarim/txbars/internal/bars"
	"github.com/sabarim/txbars/internal/instruments"
	"github.com/sabarim/txbars/internal/session"
	"github.com/sirupsen/logrus"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// TickSource fetches the raw trades of one symbol for one calendar date.
// An empty result with a nil error means the date had no trading.
type TickSource interface {
	FetchTicks(ctx context.Context, symbol string, date time.Time) ([]bars.Tick, error)
}

// HistoricalClient is the part of the Kite client KiteSource needs.
type HistoricalClient interface {
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// Resolver maps a symbol code to a vendor instrument.
type Resolver interface {
	Resolve(code string) (instruments.Instrument, error)
}

// KiteSource replays vendor minute candles as trades. Each candle becomes four
// ticks one second apart, open then the extreme nearer the open then the other
// extreme then close, so bars of a minute or longer keep the candle's OHLC.
// The whole candle volume rides on the close tick.
type KiteSource struct {
	client       HistoricalClient
	resolver     Resolver
	loc          *time.Location
	requestDelay time.Duration
	maxRetries   int
	logger       logrus.FieldLogger
}

// NewKiteSource creates a tick source backed by the Kite historical API.
func NewKiteSource(client HistoricalClient, resolver Resolver, loc *time.Location, requestDelay time.Duration, maxRetries int, logger logrus.FieldLogger) *KiteSource {
	if loc == nil {
		loc = session.DefaultLocation
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &KiteSource{
		client:       client,
		resolver:     resolver,
		loc:          loc,
		requestDelay: requestDelay,
		maxRetries:   maxRetries,
		logger:       logger.WithField("component", "kite_source"),
	}
}

// FetchTicks implements TickSource.
func (ks *KiteSource) FetchTicks(ctx context.Context, symbol string, date time.Time) ([]bars.Tick, error) {
	inst, err := ks.resolver.Resolve(symbol)
	if err != nil {
		return nil, err
	}

	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, ks.loc)
	to := from.AddDate(0, 0, 1).Add(-time.Second)
	ks.logger.WithFields(logrus.Fields{
		"symbol":        symbol,
		"date":          from.Format("2006-01-02"),
		"token":         inst.InstrumentToken,
		"tradingsymbol": inst.TradingSymbol,
		"exchange":      inst.Exchange,
		"expiry":        inst.Expiry,
	}).Info("fetching minute history")

	candles, err := ks.fetchWithRetry(ctx, int(inst.InstrumentToken), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s for %s: %w", symbol, from.Format("2006-01-02"), err)
	}

	code := strings.ToUpper(symbol)
	ticks := make([]bars.Tick, 0, 4*len(candles))
	for _, c := range candles {
		ticks = append(ticks, candleTicks(c, code, ks.loc)...)
	}
	return ticks, nil
}

func candleTicks(c kiteconnect.HistoricalData, symbol string, loc *time.Location) []bars.Tick {
	first, second := c.High, c.Low
	if c.Open-c.Low < c.High-c.Open {
		first, second = c.Low, c.High
	}
	ts := c.Date.Time.In(loc)
	prices := []float64{c.Open, first, second, c.Close}
	out := make([]bars.Tick, len(prices))
	for i, p := range prices {
		out[i] = bars.Tick{Timestamp: ts.Add(time.Duration(i) * time.Second), Symbol: symbol, Price: p}
	}
	out[len(out)-1].Volume = int64(c.Volume)
	return out
}

// fetchWithRetry requests one range of minute candles, backing off between
// failed attempts.
func (ks *KiteSource) fetchWithRetry(ctx context.Context, token int, from, to time.Time) ([]kiteconnect.HistoricalData, error) {
	var lastErr error
	for i := 0; i < ks.maxRetries; i++ {
		data, err := ks.client.GetHistoricalData(token, "minute", from, to, false, false)
		if err == nil {
			return data, nil
		}
		lastErr = err
		ks.logger.WithError(err).WithField("attempt", i+1).Warn("historical request failed")

		if i < ks.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(ks.requestDelay * 2):
			}
		}
	}
	return nil, fmt.Errorf("failed after %d retries: %w", ks.maxRetries, lastErr)
}
