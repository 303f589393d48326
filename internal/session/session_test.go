package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func local(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, DefaultLocation)
}

func TestSessionBoundaries(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want Session
	}{
		{"day open", local(2025, 12, 5, 8, 30, 0), Day},
		{"just before open", local(2025, 12, 5, 8, 29, 59), Night},
		{"last day second", local(2025, 12, 5, 13, 45, 4), Day},
		{"day end exclusive", local(2025, 12, 5, 13, 45, 5), Night},
		{"evening", local(2025, 12, 5, 15, 0, 0), Night},
		{"after midnight", local(2025, 12, 6, 3, 0, 0), Night},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Of(tt.at))
		})
	}
}

func TestSessionIgnoresDate(t *testing.T) {
	base := local(2024, 1, 1, 10, 15, 0)
	for i := 0; i < 400; i += 37 {
		assert.Equal(t, Day, Of(base.AddDate(0, 0, i)))
		assert.Equal(t, Night, Of(base.AddDate(0, 0, i).Add(6*time.Hour)))
	}
}

func TestSessionUsesExchangeTime(t *testing.T) {
	// 00:30 UTC is 08:30 in Taipei.
	at := time.Date(2025, 12, 5, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, Day, Of(at))
	assert.Equal(t, CalendarDate(local(2025, 12, 5, 0, 0, 0)), TradingDate(at))
}

func TestTradingDate(t *testing.T) {
	day := time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, day.AddDate(0, 0, -1), TradingDate(local(2025, 12, 5, 3, 0, 0)))
	assert.Equal(t, day.AddDate(0, 0, -1), TradingDate(local(2025, 12, 5, 8, 29, 59)))
	assert.Equal(t, day, TradingDate(local(2025, 12, 5, 8, 30, 0)))
	assert.Equal(t, day, TradingDate(local(2025, 12, 5, 15, 0, 0)))
	assert.Equal(t, day, TradingDate(local(2025, 12, 5, 23, 59, 59)))
}

func TestVWAPDate(t *testing.T) {
	c := Classifier{}
	day := time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, day.AddDate(0, 0, -1), c.VWAPDate(local(2025, 12, 5, 4, 59, 0)))
	// Between the rollover cutoff and the day open the bar starts a new group
	// even though its trading date is still the previous day.
	assert.Equal(t, day, c.VWAPDate(local(2025, 12, 5, 8, 15, 0)))
	assert.Equal(t, day.AddDate(0, 0, -1), c.TradingDate(local(2025, 12, 5, 8, 15, 0)))
	assert.Equal(t, day, c.VWAPDate(local(2025, 12, 5, 9, 0, 0)))
	assert.Equal(t, day, c.VWAPDate(local(2025, 12, 5, 20, 0, 0)))
}

func TestClassifierLocation(t *testing.T) {
	c := NewClassifier(time.UTC)
	at := time.Date(2025, 12, 5, 8, 30, 0, 0, time.UTC)
	s, d := c.Classify(at)
	assert.Equal(t, Day, s)
	assert.Equal(t, time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, at, c.At(d, DayStart))
}

func TestOrDay(t *testing.T) {
	assert.Equal(t, Day, OrDay(""))
	assert.Equal(t, Night, OrDay(Night))
}
