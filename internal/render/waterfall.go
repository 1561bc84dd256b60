// Package render draws spectrum history as waterfall bitmaps.
package render

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"

	"github.com/rfsentry/cellmon/internal/scanlog"
)

const (
	hueStart = 236.0
	hueEnd   = 0.0

	// colorMapSize is the number of pre-computed gradient steps.
	colorMapSize = 256
)

var noDataColor = color.Black

// ErrNoData is returned when there are no snapshots to render.
var ErrNoData = errors.New("no spectrum data to render")

// Options controls the output bitmap.
type Options struct {
	Width  int // output width in pixels; 0 keeps the bin count
	Height int // output height in pixels; 0 keeps one row per snapshot

	// Power bounds in dB; rows are clamped into this range. Zero values
	// derive the bounds from the data.
	MinPower float64
	MaxPower float64
}

// colorMap maps normalized power to a hue ramp from deep blue (weak) to red
// (strong).
type colorMap struct {
	colors   []color.Color
	min      float64
	perIndex float64
}

func newColorMap(minPower, maxPower float64) *colorMap {
	cm := &colorMap{
		colors:   make([]color.Color, colorMapSize),
		min:      minPower,
		perIndex: (maxPower - minPower) / float64(colorMapSize-1),
	}

	span := maxPower - minPower
	hPerDB := (hueStart - hueEnd) / span
	for i := range cm.colors {
		power := minPower + float64(i)*cm.perIndex
		hue := hueStart - (power-minPower)*hPerDB
		hue = math.Min(math.Max(hue, hueEnd), hueStart)
		cm.colors[i] = colorful.Hsv(hue, 1, 0.90)
	}
	return cm
}

func (cm *colorMap) at(power float64) color.Color {
	if cm.perIndex == 0 {
		return cm.colors[0]
	}
	idx := int((power - cm.min) / cm.perIndex)
	if idx < 0 {
		return cm.colors[0]
	}
	if idx >= len(cm.colors) {
		return cm.colors[len(cm.colors)-1]
	}
	return cm.colors[idx]
}

// Waterfall renders stored snapshots as a time-by-frequency bitmap: one row
// per snapshot, oldest at the top. Rows with differing bin counts are
// stretched to the widest row before scaling to the requested size.
func Waterfall(rows []scanlog.SpectrumRow, opts Options) (image.Image, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	width := 0
	for _, row := range rows {
		if len(row.PowerDB) > width {
			width = len(row.PowerDB)
		}
	}
	if width == 0 {
		return nil, ErrNoData
	}

	minPower, maxPower := opts.MinPower, opts.MaxPower
	if minPower == 0 && maxPower == 0 {
		minPower, maxPower = powerBounds(rows)
	}

	cm := newColorMap(minPower, maxPower)
	img := image.NewRGBA(image.Rect(0, 0, width, len(rows)))
	for y, row := range rows {
		if len(row.PowerDB) == 0 {
			for x := 0; x < width; x++ {
				img.Set(x, y, noDataColor)
			}
			continue
		}
		for x := 0; x < width; x++ {
			// Nearest bin when the row is narrower than the widest one.
			bin := x * len(row.PowerDB) / width
			img.Set(x, y, cm.at(row.PowerDB[bin]))
		}
	}

	if (opts.Width == 0 || opts.Width == width) && (opts.Height == 0 || opts.Height == len(rows)) {
		return img, nil
	}

	outW, outH := opts.Width, opts.Height
	if outW == 0 {
		outW = width
	}
	if outH == 0 {
		outH = len(rows)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
	return scaled, nil
}

// powerBounds derives the display range from the data, ignoring the
// sentinel floor used for zero-magnitude bins.
func powerBounds(rows []scanlog.SpectrumRow) (minPower, maxPower float64) {
	minPower, maxPower = math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		for _, p := range row.PowerDB {
			if p <= -150 {
				continue
			}
			if p < minPower {
				minPower = p
			}
			if p > maxPower {
				maxPower = p
			}
		}
	}
	if math.IsInf(minPower, 1) {
		minPower, maxPower = -100, 0
	}
	if minPower == maxPower {
		minPower = maxPower - 1
	}
	return minPower, maxPower
}
