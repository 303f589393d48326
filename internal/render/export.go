package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/sabarim/txbars/internal/indicators"
)

// Columns returns the export header for a table.
func Columns(t indicators.Table) []string {
	cols := []string{
		"time", "symbol", "session", "open", "high", "low", "close", "volume",
		"is_up", "color", "borderColor", "wickColor", "vol_color",
	}
	for i := range t.Windows {
		cols = append(cols, t.MAColumn(i))
	}
	return append(cols, "vwap")
}

// WriteCSV writes one line per row; missing indicator values are empty cells.
func WriteCSV(w io.Writer, t indicators.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(t)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range t.Rows {
		rec := []string{
			r.Time,
			r.Symbol,
			string(r.Session),
			floatStr(r.Open),
			floatStr(r.High),
			floatStr(r.Low),
			floatStr(r.Close),
			strconv.FormatInt(r.Volume, 10),
			strconv.FormatBool(r.IsUp),
			r.Color,
			r.BorderColor,
			r.WickColor,
			r.VolColor,
		}
		for _, ma := range r.MA {
			rec = append(rec, optStr(ma))
		}
		rec = append(rec, optStr(r.VWAP))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.Time, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Chart is the JSON document consumed by the chart front end.
type Chart struct {
	Symbol    string            `json:"symbol"`
	Timeframe string            `json:"timeframe"`
	Title     string            `json:"title"`
	Theme     Theme             `json:"theme"`
	Lines     map[string]string `json:"lines"`
	Bars      []map[string]any  `json:"bars"`
}

// NewChart converts a table into the chart document.
func NewChart(symbol, timeframe, title string, t indicators.Table) Chart {
	c := Chart{
		Symbol:    symbol,
		Timeframe: timeframe,
		Title:     title,
		Theme:     DefaultTheme,
		Lines:     make(map[string]string),
		Bars:      make([]map[string]any, 0, len(t.Rows)),
	}
	for i := range t.Windows {
		name := t.MAColumn(i)
		if color, ok := LineColors[name]; ok {
			c.Lines[name] = color
		}
	}
	c.Lines["vwap"] = LineColors["vwap"]

	for _, r := range t.Rows {
		row := map[string]any{
			"time":        r.Time,
			"session":     string(r.Session),
			"open":        r.Open,
			"high":        r.High,
			"low":         r.Low,
			"close":       r.Close,
			"volume":      r.Volume,
			"is_up":       r.IsUp,
			"color":       r.Color,
			"borderColor": r.BorderColor,
			"wickColor":   r.WickColor,
			"vol_color":   r.VolColor,
			"vwap":        r.VWAP,
		}
		for i, ma := range r.MA {
			row[t.MAColumn(i)] = ma
		}
		c.Bars = append(c.Bars, row)
	}
	return c
}

// WriteJSON encodes the chart document with indentation.
func WriteJSON(w io.Writer, c Chart) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func optStr(f *float64) string {
	if f == nil {
		return ""
	}
	return floatStr(*f)
}
