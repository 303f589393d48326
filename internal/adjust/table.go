// Package adjust splices roll-adjusted continuous-contract history by adding
// a cumulative price delta, looked up as-of the next settlement rollover.
package adjust

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/sabarim/txbars/internal/session"
	"github.com/shopspring/decimal"
)

// ErrMalformedTable is returned when the correction table cannot be parsed.
var ErrMalformedTable = errors.New("malformed correction table")

const (
	// SettlementCutoff is the nominal settlement time on a rollover date.
	SettlementCutoff = 13*time.Hour + 45*time.Minute
	// SettlementBuffer delays the switch to the next delta after the cutoff.
	SettlementBuffer = 5 * time.Minute

	dateLayout = "2006/01/02"
)

// Correction is one row of the correction table.
type Correction struct {
	Date  time.Time
	Delta decimal.Decimal
	// Effective is the rollover instant: settlement cutoff plus buffer.
	Effective time.Time
}

type correctionRecord struct {
	Date  string `csv:"date"`
	Delta string `csv:"cumulative_delta"`
}

// Table is a correction table sorted by rollover instant.
type Table struct {
	entries []Correction
}

// NewTable builds a table from rows keyed by rollover date.
func NewTable(c session.Classifier, dates []time.Time, deltas []decimal.Decimal) (*Table, error) {
	if len(dates) != len(deltas) {
		return nil, fmt.Errorf("%w: %d dates for %d deltas", ErrMalformedTable, len(dates), len(deltas))
	}
	entries := make([]Correction, len(dates))
	for i := range dates {
		d := session.CalendarDate(dates[i])
		entries[i] = Correction{
			Date:      d,
			Delta:     deltas[i],
			Effective: c.At(d, SettlementCutoff+SettlementBuffer),
		}
	}
	slices.SortStableFunc(entries, func(a, b Correction) int {
		return a.Effective.Compare(b.Effective)
	})
	return &Table{entries: entries}, nil
}

// LoadTable parses a CSV with the header "date,cumulative_delta" where dates
// are formatted YYYY/MM/DD.
func LoadTable(r io.Reader, c session.Classifier) (*Table, error) {
	var records []*correctionRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}

	dates := make([]time.Time, 0, len(records))
	deltas := make([]decimal.Decimal, 0, len(records))
	for i, rec := range records {
		d, err := time.Parse(dateLayout, strings.TrimSpace(rec.Date))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d date %q: %v", ErrMalformedTable, i+1, rec.Date, err)
		}
		delta, err := decimal.NewFromString(strings.TrimSpace(rec.Delta))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d delta %q: %v", ErrMalformedTable, i+1, rec.Delta, err)
		}
		dates = append(dates, d)
		deltas = append(deltas, delta)
	}
	return NewTable(c, dates, deltas)
}

// LoadTableFile reads a correction table from disk.
func LoadTableFile(path string, c session.Classifier) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open correction table: %w", err)
	}
	defer f.Close()
	return LoadTable(f, c)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.entries) }

// Lookup finds the first correction whose rollover instant is at or after
// at. It never returns an entry from the past.
func (t *Table) Lookup(at time.Time) (Correction, bool) {
	i, _ := slices.BinarySearchFunc(t.entries, at, func(e Correction, target time.Time) int {
		return e.Effective.Compare(target)
	})
	if i >= len(t.entries) {
		return Correction{}, false
	}
	return t.entries[i], true
}
