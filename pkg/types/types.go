package types

import (
	"math"
)

// MmPerInch converts physical print sizes to inches.
const MmPerInch = 25.4

// Print size and resolution limits. Values outside are clamped, so the
// largest canvas is about 4724x4724 pixels.
const (
	MinSizeMm  = 1.0
	MaxSizeMm  = 200.0
	MinDPI     = 1
	MaxDPI     = 600
	DefaultDPI = 300
)

// MaxCanvasPixels bounds the pixel count of any rendered print.
const MaxCanvasPixels = 25_000_000

// MaxSourcePixels bounds the pixel count of a decoded source image.
const MaxSourcePixels = 50_000_000

// View limits mirror the ranges of the interactive sliders.
const (
	MinZoom       = 0.5
	MaxZoom       = 2.0
	MinOffsetX    = -0.3
	MaxOffsetX    = 0.3
	MinOffsetY    = -0.5
	MaxOffsetY    = 0.5
	MinBrightness = 80
	MaxBrightness = 150
)

// PrintSpec is the physical size of the printed photo.
type PrintSpec struct {
	WidthMm  float64 `json:"width_mm"`
	HeightMm float64 `json:"height_mm"`
	DPI      int     `json:"dpi"`
}

// Clamp returns a copy with every field inside its valid range.
// NaN sizes fall back to the 1-inch preset.
func (s PrintSpec) Clamp() PrintSpec {
	return PrintSpec{
		WidthMm:  clampFinite(s.WidthMm, MinSizeMm, MaxSizeMm, 25),
		HeightMm: clampFinite(s.HeightMm, MinSizeMm, MaxSizeMm, 35),
		DPI:      clampInt(s.DPI, MinDPI, MaxDPI),
	}
}

// TargetWidthPx returns the output width in pixels, rounded to the nearest integer.
func (s PrintSpec) TargetWidthPx() int {
	c := s.Clamp()
	return MmToPx(c.WidthMm, c.DPI)
}

// TargetHeightPx returns the output height in pixels, rounded to the nearest integer.
func (s PrintSpec) TargetHeightPx() int {
	c := s.Clamp()
	return MmToPx(c.HeightMm, c.DPI)
}

// TargetSize returns both output dimensions.
func (s PrintSpec) TargetSize() (int, int) {
	return s.TargetWidthPx(), s.TargetHeightPx()
}

// MmToPx converts millimetres to pixels at the given resolution.
func MmToPx(mm float64, dpi int) int {
	px := int(math.Round(mm / MmPerInch * float64(dpi)))
	if px < 1 {
		return 1
	}
	return px
}

// ViewTransform holds the user adjustments applied at render time.
// Offsets are fractions of the drawn (scaled) image size.
type ViewTransform struct {
	Zoom       float64 `json:"zoom"`
	OffsetX    float64 `json:"offset_x"`
	OffsetY    float64 `json:"offset_y"`
	Brightness int     `json:"brightness"`
}

// DefaultView returns the reset state: slightly zoomed in and shifted up
// so the face sits higher in the frame.
func DefaultView() ViewTransform {
	return ViewTransform{
		Zoom:       1.1,
		OffsetX:    0,
		OffsetY:    -0.1,
		Brightness: 100,
	}
}

// Clamp returns a copy with every field inside its slider range.
// NaN fields take their default value.
func (v ViewTransform) Clamp() ViewTransform {
	d := DefaultView()
	return ViewTransform{
		Zoom:       clampFinite(v.Zoom, MinZoom, MaxZoom, d.Zoom),
		OffsetX:    clampFinite(v.OffsetX, MinOffsetX, MaxOffsetX, d.OffsetX),
		OffsetY:    clampFinite(v.OffsetY, MinOffsetY, MaxOffsetY, d.OffsetY),
		Brightness: clampInt(v.Brightness, MinBrightness, MaxBrightness),
	}
}

// BrightnessFactor returns the per-channel intensity multiplier.
func (v ViewTransform) BrightnessFactor() float64 {
	return float64(v.Clamp().Brightness) / 100
}

func clampFinite(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
