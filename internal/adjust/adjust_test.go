package adjust

import (
	"strings"
	"testing"
	"time"

	"github.com/sabarim/txbars/internal/bars"
	"github.com/sabarim/txbars/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const table = `date,cumulative_delta
2025/11/19,-35.5
2025/10/15,-120
2025/12/17,0
`

func at(m time.Month, d, hh, mm int) time.Time {
	return time.Date(2025, m, d, hh, mm, 0, 0, session.DefaultLocation)
}

func intraday(ts time.Time, price float64) bars.Bar {
	return bars.Bar{Timestamp: ts, Date: session.Default.TradingDate(ts), Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 7}
}

func newAdjuster(t *testing.T) (*Adjuster, *test.Hook) {
	tbl, err := LoadTable(strings.NewReader(table), session.Default)
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())
	logger, hook := test.NewNullLogger()
	return NewAdjuster(tbl, session.Default, logger), hook
}

func TestLoadTableRejectsBadRows(t *testing.T) {
	_, err := LoadTable(strings.NewReader("date,cumulative_delta\n2025-11-19,1\n"), session.Default)
	assert.ErrorIs(t, err, ErrMalformedTable)

	_, err = LoadTable(strings.NewReader("date,cumulative_delta\n2025/11/19,abc\n"), session.Default)
	assert.ErrorIs(t, err, ErrMalformedTable)
}

func TestLookupIsForwardOnly(t *testing.T) {
	a, _ := newAdjuster(t)

	c, ok := a.table.Lookup(at(10, 1, 9, 0))
	require.True(t, ok)
	assert.Equal(t, "-120", c.Delta.String())

	c, ok = a.table.Lookup(at(10, 16, 9, 0))
	require.True(t, ok)
	assert.Equal(t, "-35.5", c.Delta.String())

	_, ok = a.table.Lookup(at(12, 18, 9, 0))
	assert.False(t, ok)
}

func TestSettlementBuffer(t *testing.T) {
	a, _ := newAdjuster(t)
	tf := bars.Timeframe{Interval: time.Minute}

	before, _ := a.DeltaFor(intraday(at(11, 19, 13, 44), 1), tf)
	inBuffer, _ := a.DeltaFor(intraday(at(11, 19, 13, 47), 1), tf)
	edge, _ := a.DeltaFor(intraday(at(11, 19, 13, 50), 1), tf)
	after, _ := a.DeltaFor(intraday(at(11, 19, 13, 51), 1), tf)

	assert.Equal(t, "-35.5", before.String())
	assert.Equal(t, "-35.5", inBuffer.String())
	assert.Equal(t, "-35.5", edge.String())
	assert.Equal(t, "0", after.String())
}

func TestApplyDailyUsesDate(t *testing.T) {
	a, _ := newAdjuster(t)
	night := bars.Bar{
		Date:      time.Date(2025, 11, 19, 0, 0, 0, 0, time.UTC),
		Timestamp: at(11, 19, 15, 0),
		Session:   session.Night,
		Open:      23000.1, High: 23100.2, Low: 22900.3, Close: 23050.4, Volume: 9,
	}

	out := a.Apply([]bars.Bar{night}, bars.Daily)
	require.Len(t, out, 1)
	assert.Equal(t, 22964.6, out[0].Open)
	assert.Equal(t, 23064.7, out[0].High)
	assert.Equal(t, 22864.8, out[0].Low)
	assert.Equal(t, 23014.9, out[0].Close)
	assert.EqualValues(t, 9, out[0].Volume)
	assert.Equal(t, 23000.1, night.Open, "input must not be modified")

	// The same bar compared by timestamp is past the rollover.
	out = a.Apply([]bars.Bar{night}, bars.Timeframe{Interval: time.Hour})
	assert.Equal(t, 23000.1, out[0].Open)
}

func TestApplyMissingEntryLeavesBarsAndWarns(t *testing.T) {
	a, hook := newAdjuster(t)
	in := []bars.Bar{intraday(at(12, 20, 9, 0), 100)}

	out := a.Apply(in, bars.Timeframe{Interval: time.Minute})
	assert.Equal(t, in, out)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, 1, hook.LastEntry().Data["bars"])
}

func TestApplyZeroTableIsIdempotent(t *testing.T) {
	zero, err := LoadTable(strings.NewReader("date,cumulative_delta\n2030/01/02,0\n"), session.Default)
	require.NoError(t, err)
	a := NewAdjuster(zero, session.Default, logrus.New())

	in := []bars.Bar{intraday(at(11, 3, 9, 0), 101.15), intraday(at(11, 3, 9, 1), 99.95)}
	once := a.Apply(in, bars.Timeframe{Interval: time.Minute})
	twice := a.Apply(once, bars.Timeframe{Interval: time.Minute})
	assert.Equal(t, in, once)
	assert.Equal(t, once, twice)
}

func TestNilTable(t *testing.T) {
	a := NewAdjuster(nil, session.Default, nil)
	in := []bars.Bar{intraday(at(11, 3, 9, 0), 50)}
	assert.Equal(t, in, a.Apply(in, bars.Daily))
}
