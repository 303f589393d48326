// Package render prepares indicator tables for the chart front end: the
// color palette and the CSV/JSON export formats.
package render

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/sabarim/txbars/internal/session"
)

const (
	red   = "#ef5350"
	green = "#26a69a"
)

// LineColors are the indicator line colors keyed by column name.
var LineColors = map[string]string{
	"ma5":   "#FFFFFF",
	"ma10":  "#FFFF00",
	"ma20":  "#00BFFF",
	"ma60":  "#FFD700",
	"ma120": "#FF4500",
	"ma240": "#A9A9A9",
	"vwap":  "#DA70D6",
}

// Theme holds chart chrome settings passed through to the renderer.
type Theme struct {
	Background string `json:"background"`
	Text       string `json:"text"`
	Grid       string `json:"grid"`
	Legend     string `json:"legend"`
	LegendSize int    `json:"legend_size"`
	Crosshair  string `json:"crosshair"`
}

// DefaultTheme is the dark chart theme.
var DefaultTheme = Theme{
	Background: "#131722",
	Text:       "#d1d4dc",
	Grid:       "rgba(42, 46, 57, 0.6)",
	Legend:     "#FFFFFF",
	LegendSize: 14,
	Crosshair:  "#CCCCCC",
}

// Palette derives bar and volume colors. Night bars are dimmed by DimFactor;
// volume bars shift the bar color's lightness by VolLighten.
type Palette struct {
	// TaiwanStyle paints rising bars red and falling bars green.
	TaiwanStyle bool
	DimFactor   float64
	VolLighten  float64

	up, down       string
	upDim, downDim string
}

// NewPalette builds a palette and precomputes the dimmed night colors.
func NewPalette(taiwanStyle bool, dimFactor, volLighten float64) *Palette {
	p := &Palette{TaiwanStyle: taiwanStyle, DimFactor: dimFactor, VolLighten: volLighten}
	p.up, p.down = green, red
	if taiwanStyle {
		p.up, p.down = red, green
	}
	p.upDim = Darken(p.up, dimFactor)
	p.downDim = Darken(p.down, dimFactor)
	return p
}

// DefaultPalette is the Taiwan-style palette with dimmed night bars.
func DefaultPalette() *Palette {
	return NewPalette(true, 0.6, -0.1)
}

// Color returns the candle body color.
func (p *Palette) Color(isUp bool, s session.Session) string {
	day := session.OrDay(s) == session.Day
	switch {
	case isUp && day:
		return p.up
	case isUp:
		return p.upDim
	case day:
		return p.down
	default:
		return p.downDim
	}
}

// VolumeColor returns the volume histogram color.
func (p *Palette) VolumeColor(isUp bool, s session.Session) string {
	return Lighten(p.Color(isUp, s), p.VolLighten)
}

// Darken scales each RGB channel by factor, truncating to whole channel
// values. Unparseable input is returned unchanged.
func Darken(hex string, factor float64) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		return hex
	}
	scale := func(v float64) float64 {
		return math.Round(v*255) * factor / 255
	}
	return truncatedHex(colorful.Color{R: scale(c.R), G: scale(c.G), B: scale(c.B)})
}

// Lighten moves the HSL lightness toward white by amount; a negative amount
// darkens. Unparseable input is returned unchanged.
func Lighten(hex string, amount float64) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		return hex
	}
	h, s, l := c.Hsl()
	l = math.Min(1, l+(1-l)*amount)
	return truncatedHex(colorful.Hsl(h, s, math.Max(0, l)))
}

// truncatedHex formats c dropping the fractional part of each 8-bit channel.
// colorful's Hex rounds instead.
func truncatedHex(c colorful.Color) string {
	c = c.Clamped()
	channel := func(v float64) uint8 {
		// Nudge values like 47.99999999 from float error back up to 48.
		return uint8(math.Floor(v*255 + 1e-9))
	}
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}
