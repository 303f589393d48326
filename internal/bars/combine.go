package bars

import (
	"slices"
	"time"

	"github.com/sabarim/txbars/internal/session"
)

// CombinedDate returns the date a daily bar is merged under. Night bars move
// forward to the next trading day: a Friday night lands on Monday, every
// other night on the following calendar day. Day bars keep their date.
func CombinedDate(b Bar) time.Time {
	if b.Session != session.Night {
		return b.Date
	}
	if b.Date.Weekday() == time.Friday {
		return b.Date.AddDate(0, 0, 3)
	}
	return b.Date.AddDate(0, 0, 1)
}

// Combine merges daily Day and Night bars into one bar per combined date.
// Open and Timestamp come from the earliest bar by time, Close from the
// latest, so a previous-evening Night bar opens the combined day. Output
// rows are labelled with the combined date and the Day session, ascending
// by date.
func Combine(daily []Bar) []Bar {
	if len(daily) == 0 {
		return []Bar{}
	}
	sorted := slices.Clone(daily)
	sortByTimestamp(sorted)

	index := make(map[time.Time]int)
	var out []Bar
	for _, b := range sorted {
		d := CombinedDate(b)
		if i, ok := index[d]; ok {
			out[i].absorbBar(b)
			continue
		}
		nb := b
		nb.Date = d
		nb.Session = session.Day
		index[d] = len(out)
		out = append(out, nb)
	}

	slices.SortStableFunc(out, func(x, y Bar) int {
		return x.Date.Compare(y.Date)
	})
	return nonEmpty(out)
}
