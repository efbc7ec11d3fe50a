// Package layout places a source photo on a fixed-size print canvas and
// rasterizes it.
//
// The placement is a cover-fit: the source is scaled by the smallest factor
// that fills the canvas in both directions, multiplied by the user's zoom,
// centred, and then shifted by offsets expressed as fractions of the drawn
// image size. Everything is a pure function of the source dimensions, the
// print spec and the view transform.
package layout

import (
	"image"
	"math"

	"golang.org/x/image/math/f64"

	"github.com/menta2k/id-photo/pkg/types"
)

// coverEpsilon absorbs float rounding when checking canvas coverage.
const coverEpsilon = 1e-6

// Layout is the computed placement of a source image on the canvas.
type Layout struct {
	TargetWidth  int     `json:"target_width"`
	TargetHeight int     `json:"target_height"`
	BaseScale    float64 `json:"base_scale"`
	FinalScale   float64 `json:"final_scale"`
	DrawWidth    float64 `json:"draw_width"`
	DrawHeight   float64 `json:"draw_height"`
	CenterX      float64 `json:"center_x"`
	CenterY      float64 `json:"center_y"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
}

// Compute derives the placement for a srcW x srcH source. Spec and view are
// clamped first. A non-positive source size yields a layout with only the
// target size set.
func Compute(srcW, srcH int, spec types.PrintSpec, view types.ViewTransform) Layout {
	spec = spec.Clamp()
	view = view.Clamp()

	tw, th := spec.TargetSize()
	l := Layout{TargetWidth: tw, TargetHeight: th}
	if srcW <= 0 || srcH <= 0 {
		return l
	}

	l.BaseScale = math.Max(float64(tw)/float64(srcW), float64(th)/float64(srcH))
	l.FinalScale = l.BaseScale * view.Zoom

	l.DrawWidth = float64(srcW) * l.FinalScale
	l.DrawHeight = float64(srcH) * l.FinalScale

	l.CenterX = (float64(tw) - l.DrawWidth) / 2
	l.CenterY = (float64(th) - l.DrawHeight) / 2

	l.X = l.CenterX + view.OffsetX*l.DrawWidth
	l.Y = l.CenterY + view.OffsetY*l.DrawHeight

	return l
}

// Covers reports whether the drawn image contains the whole canvas.
func (l Layout) Covers() bool {
	return l.X <= coverEpsilon &&
		l.Y <= coverEpsilon &&
		l.X+l.DrawWidth >= float64(l.TargetWidth)-coverEpsilon &&
		l.Y+l.DrawHeight >= float64(l.TargetHeight)-coverEpsilon
}

// MaxCoverOffset returns the largest |offsetX| and |offsetY| that still keep
// the canvas covered at this zoom. Zero on an axis means any offset along it
// exposes the canvas.
func (l Layout) MaxCoverOffset() (float64, float64) {
	if l.DrawWidth <= 0 || l.DrawHeight <= 0 {
		return 0, 0
	}
	ox := math.Max(0, (1-float64(l.TargetWidth)/l.DrawWidth)/2)
	oy := math.Max(0, (1-float64(l.TargetHeight)/l.DrawHeight)/2)
	return ox, oy
}

// Bounds returns the canvas rectangle.
func (l Layout) Bounds() image.Rectangle {
	return image.Rect(0, 0, l.TargetWidth, l.TargetHeight)
}

// SourceToCanvas returns the affine map from source pixel space (with the
// given bounds origin) to canvas pixel space.
func (l Layout) SourceToCanvas(origin image.Point) f64.Aff3 {
	s := l.FinalScale
	return f64.Aff3{
		s, 0, l.X - s*float64(origin.X),
		0, s, l.Y - s*float64(origin.Y),
	}
}
