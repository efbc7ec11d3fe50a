package provider

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/id-photo/pkg/client"
	"github.com/menta2k/id-photo/pkg/codec"
	"github.com/menta2k/id-photo/pkg/types"
)

// Upload settings for the captured photo.
const (
	UploadFormat  = codec.FormatJPEG
	UploadMaxSide = 1536
	UploadQuality = 85
)

// Processor runs the background replacement step through an
// ImageTransformer.
type Processor struct {
	client   client.ImageTransformer
	provider string
	model    string
}

// NewProcessor creates a processor. providerName selects the prompt wording.
func NewProcessor(c client.ImageTransformer, providerName, model string) *Processor {
	return &Processor{client: c, provider: providerName, model: model}
}

// Process replaces the background of img with bg and optionally retouches
// the face. The returned image is the decoded provider result.
func (p *Processor) Process(ctx context.Context, img image.Image, bg types.Background, beautify bool) (image.Image, error) {
	if img == nil {
		return nil, types.NewDecodeError("", types.ErrEmptyImage)
	}

	dataURL, err := codec.PrepareForModel(img, UploadFormat, UploadMaxSide, UploadQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	result, err := p.client.TransformImage(ctx, client.Request{
		ImageDataURL: dataURL,
		Prompt:       BuildPrompt(p.provider, bg, beautify),
		Model:        p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.provider, err)
	}

	out, err := codec.DecodeDataURL(result)
	if err != nil {
		return nil, fmt.Errorf("%s returned an unreadable image: %w", p.provider, err)
	}
	return out, nil
}

// NewFromConfig resolves cfg and returns a ready processor.
func NewFromConfig(cfg Config) (*Processor, error) {
	resolved, _, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	c, err := New(resolved)
	if err != nil {
		return nil, err
	}
	return NewProcessor(c, resolved.Provider, resolved.Model), nil
}
