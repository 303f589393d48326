package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/sabarim/txbars/internal/bars"
	"github.com/sabarim/txbars/internal/indicators"
	"github.com/sabarim/txbars/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lightness(t *testing.T, hex string) float64 {
	c, err := colorful.Hex(hex)
	require.NoError(t, err)
	_, _, l := c.Hsl()
	return l
}

func TestPaletteStyles(t *testing.T) {
	tw := DefaultPalette()
	assert.Equal(t, red, tw.Color(true, session.Day))
	assert.Equal(t, green, tw.Color(false, session.Day))
	assert.Equal(t, red, tw.Color(true, ""), "missing session reads as Day")

	intl := NewPalette(false, 0.6, -0.1)
	assert.Equal(t, green, intl.Color(true, session.Day))
	assert.Equal(t, red, intl.Color(false, session.Day))
}

func TestNightIsDimmed(t *testing.T) {
	p := DefaultPalette()
	night := p.Color(true, session.Night)
	assert.NotEqual(t, red, night)
	assert.Less(t, lightness(t, night), lightness(t, red))
	assert.Equal(t, Darken(red, 0.6), night)
}

func TestDimmedColorsTruncateChannels(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{green, "#16635c"},
		{red, "#8f3130"},
		{"#505050", "#303030"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Darken(tt.in, 0.6))
		})
	}

	p := DefaultPalette()
	assert.Equal(t, "#8f3130", p.Color(true, session.Night))
	assert.Equal(t, "#16635c", p.Color(false, session.Night))
	assert.Equal(t, "#ffffff", Lighten("#ffffff", 0.5))
}

func TestVolumeColor(t *testing.T) {
	p := DefaultPalette()
	vol := p.VolumeColor(false, session.Day)
	assert.Less(t, lightness(t, vol), lightness(t, green))

	bright := NewPalette(true, 0.6, 0.5)
	assert.Greater(t, lightness(t, bright.VolumeColor(false, session.Day)), lightness(t, green))
}

func TestColorHelpersKeepBadInput(t *testing.T) {
	assert.Equal(t, "nope", Darken("nope", 0.5))
	assert.Equal(t, "nope", Lighten("nope", 0.5))
	assert.Equal(t, "#000000", Darken("#ffffff", 0))
}

func sampleTable() indicators.Table {
	ts := time.Date(2025, 12, 3, 9, 0, 0, 0, session.DefaultLocation)
	in := []bars.Bar{
		{Symbol: "TXF", Timestamp: ts, Date: session.CalendarDate(ts), Session: session.Day, Open: 100, High: 102, Low: 99, Close: 101, Volume: 3},
		{Symbol: "TXF", Timestamp: ts.Add(time.Minute), Date: session.CalendarDate(ts), Session: session.Day, Open: 101, High: 101, Low: 98, Close: 99, Volume: 1},
	}
	return indicators.Compute(in, indicators.Options{
		Timeframe: bars.Timeframe{Interval: time.Minute},
		Windows:   []int{2},
		Colors:    DefaultPalette(),
	})
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	assert.Equal(t, "time", header[0])
	assert.Equal(t, "ma2", header[len(header)-2])
	assert.Equal(t, "vwap", header[len(header)-1])

	first := records[1]
	assert.Equal(t, "2025-12-03 09:00:00", first[0])
	assert.Equal(t, "", first[len(first)-2], "insufficient history is empty")
	vwap, err := strconv.ParseFloat(first[len(first)-1], 64)
	require.NoError(t, err)
	assert.InDelta(t, 302.0/3, vwap, 1e-9)

	second := records[2]
	assert.Equal(t, "100", second[len(second)-2])
	assert.Equal(t, "false", second[8])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	chart := NewChart("TXF", "1m", "TXF 1m (2025-12-03)", sampleTable())
	require.NoError(t, WriteJSON(&buf, chart))

	var decoded struct {
		Symbol string            `json:"symbol"`
		Lines  map[string]string `json:"lines"`
		Bars   []map[string]any  `json:"bars"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "TXF", decoded.Symbol)
	assert.Equal(t, LineColors["vwap"], decoded.Lines["vwap"])
	require.Len(t, decoded.Bars, 2)
	assert.Nil(t, decoded.Bars[0]["ma2"])
	assert.Equal(t, red, decoded.Bars[0]["color"])
	assert.InDelta(t, 100.0, decoded.Bars[1]["ma2"], 1e-9)
}
