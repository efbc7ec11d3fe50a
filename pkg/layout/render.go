package layout

import (
	"errors"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/menta2k/id-photo/pkg/codec"
	"github.com/menta2k/id-photo/pkg/types"
)

var errNilImage = errors.New("no source image")

// Renderer rasterizes a source image onto a print canvas.
// A Renderer holds only immutable configuration and is safe for concurrent use.
type Renderer struct {
	config Config
}

// Config holds configuration for rendering
type Config struct {
	// Background fills canvas pixels the source does not reach and shows
	// through transparent source pixels. It is always treated as opaque.
	Background color.Color
	// Interpolator resamples the source. BiLinear when nil.
	Interpolator draw.Interpolator
}

// DefaultConfig returns a white background with bilinear resampling.
func DefaultConfig() Config {
	return Config{
		Background:   types.White.Color,
		Interpolator: draw.BiLinear,
	}
}

// New creates a new Renderer with default configuration
func New() *Renderer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new Renderer with custom configuration
func NewWithConfig(config Config) *Renderer {
	if config.Background == nil {
		config.Background = types.White.Color
	}
	if config.Interpolator == nil {
		config.Interpolator = draw.BiLinear
	}
	return &Renderer{config: config}
}

// WithBackground returns a renderer with the same settings and a different
// fill colour.
func (r *Renderer) WithBackground(c color.Color) *Renderer {
	config := r.config
	config.Background = c
	return NewWithConfig(config)
}

var defaultRenderer = New()

// Render rasterizes src with the default renderer.
func Render(src image.Image, spec types.PrintSpec, view types.ViewTransform) (*image.NRGBA, error) {
	return defaultRenderer.Render(src, spec, view)
}

// RenderBytes decodes an encoded photo and renders it with the default
// renderer. Undecodable bytes yield a *types.DecodeError.
func RenderBytes(data []byte, spec types.PrintSpec, view types.ViewTransform) (*image.NRGBA, error) {
	return defaultRenderer.RenderBytes(data, spec, view)
}

// RenderBytes decodes data and renders it.
func (r *Renderer) RenderBytes(data []byte, spec types.PrintSpec, view types.ViewTransform) (*image.NRGBA, error) {
	src, err := codec.DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return r.Render(src, spec, view)
}

// Render places src on a freshly allocated opaque canvas of the spec's pixel
// size and returns it. The only failure is a *types.DecodeError for a missing
// or empty source; spec and view are clamped, never rejected.
func (r *Renderer) Render(src image.Image, spec types.PrintSpec, view types.ViewTransform) (*image.NRGBA, error) {
	if src == nil {
		return nil, types.NewDecodeError("", errNilImage)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, types.NewDecodeError("", types.ErrEmptyImage)
	}

	view = view.Clamp()
	l := Compute(b.Dx(), b.Dy(), spec, view)

	canvas := image.NewRGBA(l.Bounds())
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(opaque(r.config.Background)), image.Point{}, draw.Src)

	if f := view.BrightnessFactor(); f != 1 {
		src = AdjustBrightness(src, f)
	}

	r.config.Interpolator.Transform(canvas, l.SourceToCanvas(src.Bounds().Min), src, src.Bounds(), draw.Over, nil)

	// The canvas starts opaque and Over keeps it opaque, so the premultiplied
	// and non-premultiplied bytes are the same.
	return &image.NRGBA{Pix: canvas.Pix, Stride: canvas.Stride, Rect: canvas.Rect}, nil
}

// AdjustBrightness multiplies every colour channel by factor and clamps the
// result to 255. Alpha is left alone. No gamma correction is applied.
func AdjustBrightness(img image.Image, factor float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		c.R = scaleChannel(c.R, factor)
		c.G = scaleChannel(c.G, factor)
		c.B = scaleChannel(c.B, factor)
		return c
	})
}

func scaleChannel(v uint8, factor float64) uint8 {
	f := float64(v) * factor
	if f >= 255 {
		return 255
	}
	if f <= 0 {
		return 0
	}
	return uint8(f + 0.5)
}

func opaque(c color.Color) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 255
	return n
}

// InterpolatorByName maps a resampling name to an interpolator.
// Unknown names fall back to bilinear.
func InterpolatorByName(name string) draw.Interpolator {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "catmullrom", "bicubic":
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}
