// Package idphoto turns a captured portrait into a print-ready ID photo.
//
// A photo is optionally sent to a multimodal AI service that replaces the
// background and retouches the face. The result is placed on a canvas of
// the physical print size with a cover-fit crop, the user's zoom, offset
// and brightness are applied, and the canvas is exported losslessly.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//
//		"github.com/menta2k/id-photo"
//		"github.com/menta2k/id-photo/pkg/types"
//	)
//
//	func main() {
//		p := idphoto.New()
//
//		img, err := p.LoadImage("selfie.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		spec := types.TwoInch.Spec(0, 0, 300)
//		out, err := p.Render(img, spec, types.DefaultView())
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		if err := p.SaveImage(out, "id_photo.png"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
//  1. Types (pkg/types): print specs, view transforms, presets and backgrounds
//  2. Layout (pkg/layout): cover-fit geometry and rasterization
//  3. Codec (pkg/codec): decoding, lossless PNG/WebP export, data URLs
//  4. Provider (pkg/provider): AI background replacement through SiliconFlow,
//     OpenRouter, Tongyi (DashScope) or a local Ollama
//  5. Session (pkg/session) and Server (pkg/server): the interactive editor
//     state and its HTTP API
package idphoto

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/menta2k/id-photo/internal/utils"
	"github.com/menta2k/id-photo/pkg/codec"
	"github.com/menta2k/id-photo/pkg/layout"
	"github.com/menta2k/id-photo/pkg/provider"
	"github.com/menta2k/id-photo/pkg/types"
)

// Version of the id-photo library
const Version = "1.0.0"

// IDPhoto provides a high-level interface for producing ID photos
type IDPhoto struct {
	renderer  *layout.Renderer
	processor *provider.Processor
}

// New creates an IDPhoto with a white fill and no AI step
func New() *IDPhoto {
	return &IDPhoto{renderer: layout.New()}
}

// NewWithConfig creates an IDPhoto with a custom renderer configuration and
// an optional processor for the AI step
func NewWithConfig(renderConfig layout.Config, processor *provider.Processor) *IDPhoto {
	return &IDPhoto{
		renderer:  layout.NewWithConfig(renderConfig),
		processor: processor,
	}
}

// Options describe one ID photo job
type Options struct {
	Preset     string
	Spec       types.PrintSpec
	View       types.ViewTransform
	Background types.Background
	Beautify   bool
	// UseAI sends the photo to the processor before rendering.
	UseAI bool
	// Format is png or webp.
	Format string
}

// LoadImage loads an image from a file path
func (p *IDPhoto) LoadImage(path string) (image.Image, error) {
	return codec.Load(path)
}

// LoadImageFromReader loads an image from an io.Reader
func (p *IDPhoto) LoadImageFromReader(r io.Reader) (image.Image, error) {
	return codec.Decode(r)
}

// SaveImage saves an image, choosing the format by extension
func (p *IDPhoto) SaveImage(img image.Image, path string) error {
	return codec.Save(img, path)
}

// GetImageInfo returns basic information about an image
func (p *IDPhoto) GetImageInfo(img image.Image) codec.ImageInfo {
	return codec.GetImageInfo(img)
}

// Layout returns the placement a render would use
func (p *IDPhoto) Layout(img image.Image, spec types.PrintSpec, view types.ViewTransform) layout.Layout {
	b := img.Bounds()
	return layout.Compute(b.Dx(), b.Dy(), spec, view)
}

// Render rasterizes img onto the print canvas
func (p *IDPhoto) Render(img image.Image, spec types.PrintSpec, view types.ViewTransform) (*image.NRGBA, error) {
	return p.renderer.Render(img, spec, view)
}

// RenderBytes decodes an encoded photo and renders it
func (p *IDPhoto) RenderBytes(data []byte, spec types.PrintSpec, view types.ViewTransform) (*image.NRGBA, error) {
	return p.renderer.RenderBytes(data, spec, view)
}

// Export renders img and writes it to w in the given lossless format
func (p *IDPhoto) Export(w io.Writer, img image.Image, spec types.PrintSpec, view types.ViewTransform, format string) error {
	out, err := p.renderer.Render(img, spec, view)
	if err != nil {
		return err
	}
	return codec.Encode(w, out, format, 0)
}

// Process runs the AI step, when enabled, and renders the result
func (p *IDPhoto) Process(ctx context.Context, img image.Image, opts Options) (*image.NRGBA, error) {
	if opts.UseAI {
		if p.processor == nil {
			return nil, fmt.Errorf("AI processing requested but no provider is configured")
		}
		processed, err := p.processor.Process(ctx, img, opts.Background, opts.Beautify)
		if err != nil {
			return nil, fmt.Errorf("background replacement failed: %w", err)
		}
		img = processed
	}

	r := p.renderer
	if opts.Background.Name != "" {
		r = r.WithBackground(opts.Background.Color)
	}
	return r.Render(img, opts.Spec, opts.View)
}

// ProcessImageFile is a convenience function that loads, processes and saves
// an ID photo, returning the written path
func (p *IDPhoto) ProcessImageFile(ctx context.Context, inputPath, outputDir string, opts Options) (string, error) {
	img, err := p.LoadImage(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}

	out, err := p.Process(ctx, img, opts)
	if err != nil {
		return "", err
	}

	if err := utils.EnsureDir(outputDir); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	format := codec.NormalizeFormat(opts.Format)
	if format == codec.FormatJPEG {
		format = codec.FormatPNG
	}
	outputPath := utils.GenerateOutputFilename(outputDir, opts.Preset, format, time.Now())
	if err := p.SaveImage(out, outputPath); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", outputPath, err)
	}
	return outputPath, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
