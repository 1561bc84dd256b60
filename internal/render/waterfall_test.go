package render

import (
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/rfsentry/cellmon/internal/scanlog"
)

func row(ts time.Time, power ...float64) scanlog.SpectrumRow {
	return scanlog.SpectrumRow{
		Timestamp:  ts,
		CenterFreq: 870_000_000,
		SampleRate: 1_000_000,
		PowerDB:    power,
	}
}

func TestWaterfall_NoData(t *testing.T) {
	if _, err := Waterfall(nil, Options{}); !errors.Is(err, ErrNoData) {
		t.Errorf("Waterfall(nil) error = %v, want ErrNoData", err)
	}

	// Rows without bins carry no renderable data either.
	empty := []scanlog.SpectrumRow{row(time.Now())}
	if _, err := Waterfall(empty, Options{}); !errors.Is(err, ErrNoData) {
		t.Errorf("Waterfall(empty rows) error = %v, want ErrNoData", err)
	}
}

func TestWaterfall_Dimensions(t *testing.T) {
	now := time.Now()
	rows := []scanlog.SpectrumRow{
		row(now, -80, -60, -40, -20),
		row(now.Add(time.Second), -70, -50, -30, -10),
		row(now.Add(2*time.Second), -90, -85, -80, -75),
	}

	img, err := Waterfall(rows, Options{})
	if err != nil {
		t.Fatalf("Waterfall failed: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("bitmap = %dx%d, want 4x3 (bins x snapshots)", b.Dx(), b.Dy())
	}

	// Explicit output size scales the bitmap.
	img, err = Waterfall(rows, Options{Width: 64, Height: 32})
	if err != nil {
		t.Fatalf("Waterfall with scaling failed: %v", err)
	}
	b = img.Bounds()
	if b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("scaled bitmap = %dx%d, want 64x32", b.Dx(), b.Dy())
	}
}

func TestWaterfall_StrongerIsWarmer(t *testing.T) {
	rows := []scanlog.SpectrumRow{row(time.Now(), -100, 0)}

	img, err := Waterfall(rows, Options{MinPower: -100, MaxPower: 0})
	if err != nil {
		t.Fatalf("Waterfall failed: %v", err)
	}

	weak := color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA)
	strong := color.RGBAModel.Convert(img.At(1, 0)).(color.RGBA)

	// Weak power maps to the blue end of the ramp, strong to red.
	if weak.B <= weak.R {
		t.Errorf("weak bin %+v, want blue-dominant", weak)
	}
	if strong.R <= strong.B {
		t.Errorf("strong bin %+v, want red-dominant", strong)
	}
}

func TestWaterfall_MixedRowWidths(t *testing.T) {
	now := time.Now()
	rows := []scanlog.SpectrumRow{
		row(now, -80, -60, -40, -20),
		row(now.Add(time.Second), -50, -50), // narrower capture
	}

	img, err := Waterfall(rows, Options{})
	if err != nil {
		t.Fatalf("Waterfall failed: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("width = %d, want widest row", img.Bounds().Dx())
	}
}

func TestPowerBounds(t *testing.T) {
	rows := []scanlog.SpectrumRow{
		row(time.Now(), -200, -90, -30), // -200 is the zero-magnitude sentinel
	}
	minPower, maxPower := powerBounds(rows)
	if minPower != -90 || maxPower != -30 {
		t.Errorf("powerBounds = [%v, %v], want [-90, -30] with sentinel ignored", minPower, maxPower)
	}

	// All-sentinel data degrades to a fixed display range.
	sentinel := []scanlog.SpectrumRow{row(time.Now(), -200, -200)}
	minPower, maxPower = powerBounds(sentinel)
	if minPower >= maxPower {
		t.Errorf("degenerate powerBounds = [%v, %v], want a usable range", minPower, maxPower)
	}
}
