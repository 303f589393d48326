// Package session maps exchange timestamps to a trading session and to the
// trading date the timestamp is attributed to.
package session

import (
	"time"
)

// Session identifies one of the two disjoint trading windows of a day.
type Session string

const (
	Day   Session = "Day"
	Night Session = "Night"
)

// Wall-clock boundaries in local exchange time, expressed as offsets from
// local midnight.
const (
	// DayStart is the first instant of the Day session (inclusive).
	DayStart = 8*time.Hour + 30*time.Minute
	// DayEnd is the first instant after the Day session (exclusive).
	DayEnd = 13*time.Hour + 45*time.Minute + 5*time.Second
	// VWAPRollover is the cutoff before which post-midnight Night bars keep
	// accumulating into the previous evening's VWAP group. It is distinct
	// from DayStart on purpose; see DESIGN.md.
	VWAPRollover = 8 * time.Hour
)

// DefaultLocation is the exchange timezone (Asia/Taipei, no DST).
var DefaultLocation = time.FixedZone("CST", 8*60*60)

// Classifier tags timestamps with session and trading date in a given
// exchange timezone. The zero value uses DefaultLocation.
type Classifier struct {
	Location *time.Location
}

// NewClassifier creates a classifier for the given exchange timezone.
func NewClassifier(loc *time.Location) Classifier {
	return Classifier{Location: loc}
}

// Default is the classifier used by the package level helpers.
var Default = Classifier{}

func (c Classifier) loc() *time.Location {
	if c.Location == nil {
		return DefaultLocation
	}
	return c.Location
}

// Local converts t into exchange time.
func (c Classifier) Local(t time.Time) time.Time {
	return t.In(c.loc())
}

// TimeOfDay returns the offset of t from local midnight.
func (c Classifier) TimeOfDay(t time.Time) time.Duration {
	h, m, s := c.Local(t).Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(c.Local(t).Nanosecond())
}

// Session depends on the time of day only.
func (c Classifier) Session(t time.Time) Session {
	tod := c.TimeOfDay(t)
	if tod >= DayStart && tod < DayEnd {
		return Day
	}
	return Night
}

// TradingDate returns the date t is aggregated under. Instants before the
// Day session opens belong to the previous evening's Night session.
func (c Classifier) TradingDate(t time.Time) time.Time {
	d := CalendarDate(c.Local(t))
	if c.TimeOfDay(t) < DayStart {
		return d.AddDate(0, 0, -1)
	}
	return d
}

// VWAPDate returns the date part of the VWAP group key. Night instants after
// midnight but before VWAPRollover stay with the previous calendar date so an
// overnight session accumulates one unbroken VWAP.
func (c Classifier) VWAPDate(t time.Time) time.Time {
	d := CalendarDate(c.Local(t))
	if c.Session(t) == Night && c.TimeOfDay(t) < VWAPRollover {
		return d.AddDate(0, 0, -1)
	}
	return d
}

// Classify returns both the session and the trading date of t.
func (c Classifier) Classify(t time.Time) (Session, time.Time) {
	return c.Session(t), c.TradingDate(t)
}

// CalendarDate strips the clock from t, keeping its wall-clock date. Dates
// are represented as UTC midnights so they compare and print uniformly.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// At returns the instant of the given wall-clock offset on date in the
// classifier's timezone.
func (c Classifier) At(date time.Time, offset time.Duration) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc()).Add(offset)
}

// Of reports the session of t using the default classifier.
func Of(t time.Time) Session { return Default.Session(t) }

// TradingDate reports the trading date of t using the default classifier.
func TradingDate(t time.Time) time.Time { return Default.TradingDate(t) }

// OrDay returns s, or Day when s is empty. Combined bars carry no session
// distinction and read as Day downstream.
func OrDay(s Session) Session {
	if s == "" {
		return Day
	}
	return s
}
