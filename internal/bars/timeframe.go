package bars

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timeframe is either a fixed wall-clock interval or the daily sentinel.
type Timeframe struct {
	// Interval is zero for the daily timeframe.
	Interval time.Duration
}

// Daily groups by (trading date, session).
var Daily = Timeframe{}

// IsDaily reports whether tf is the daily sentinel.
func (tf Timeframe) IsDaily() bool { return tf.Interval == 0 }

// String returns the canonical token ("5s", "1m", "1h", "1d").
func (tf Timeframe) String() string {
	d := tf.Interval
	switch {
	case d == 0:
		return "1d"
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}

// ParseTimeframe parses tokens such as "5s", "1m", "60m", "1h" and "1d".
// Only "1d" denotes the daily timeframe.
func ParseTimeframe(token string) (Timeframe, error) {
	s := strings.ToLower(strings.TrimSpace(token))
	if len(s) < 2 {
		return Timeframe{}, fmt.Errorf("%w: %q", ErrUnknownTimeframe, token)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return Timeframe{}, fmt.Errorf("%w: %q", ErrUnknownTimeframe, token)
	}

	var unit time.Duration
	switch s[len(s)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		if n != 1 {
			return Timeframe{}, fmt.Errorf("%w: %q", ErrUnknownTimeframe, token)
		}
		return Daily, nil
	default:
		return Timeframe{}, fmt.Errorf("%w: %q", ErrUnknownTimeframe, token)
	}

	d := time.Duration(n) * unit
	if d > 24*time.Hour || (24*time.Hour)%d != 0 {
		return Timeframe{}, fmt.Errorf("%w: %q does not divide a day", ErrUnknownTimeframe, token)
	}
	return Timeframe{Interval: d}, nil
}

// ParseTimeframes parses a list of tokens, failing on the first bad one.
func ParseTimeframes(tokens []string) ([]Timeframe, error) {
	out := make([]Timeframe, 0, len(tokens))
	for _, tok := range tokens {
		tf, err := ParseTimeframe(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, nil
}
