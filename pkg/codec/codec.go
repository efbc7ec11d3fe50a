// Package codec decodes captured photos and encodes rendered prints.
package codec

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/id-photo/pkg/types"
)

// Supported output formats
const (
	FormatPNG  = "png"
	FormatWebP = "webp"
	FormatJPEG = "jpeg"
)

// MaxDownloadSize bounds images fetched over HTTP.
const MaxDownloadSize = 32 << 20

const userAgent = "id-photo/1.0"

var errUnknownFormat = errors.New("image: unknown or unsupported format")

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// GetImageInfo returns basic information about an image
func GetImageInfo(img image.Image) ImageInfo {
	b := img.Bounds()
	info := ImageInfo{Width: b.Dx(), Height: b.Dy()}
	if info.Height > 0 {
		info.AspectRatio = float64(info.Width) / float64(info.Height)
	}
	return info
}

// NormalizeFormat maps a user supplied format or extension to a supported
// lossless output format. Anything unknown becomes PNG.
func NormalizeFormat(format string) string {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".") {
	case "webp":
		return FormatWebP
	case "jpg", "jpeg":
		return FormatJPEG
	default:
		return FormatPNG
	}
}

// ContentType returns the MIME type of a normalized format.
func ContentType(format string) string {
	switch NormalizeFormat(format) {
	case FormatWebP:
		return "image/webp"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// Decode reads an image from r. Failures are *types.DecodeError.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, types.NewDecodeError("", fmt.Errorf("read image: %w", err))
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes an encoded image with WebP support.
func DecodeBytes(data []byte) (image.Image, error) {
	img, _, err := decode(data)
	return img, err
}

func decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", types.NewDecodeError("", errors.New("empty input"))
	}
	if err := checkDimensions(data); err != nil {
		return nil, "", err
	}

	// Try standard image.Decode first
	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return validate(img, format)
	}

	// Try WebP decode
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return validate(img, FormatWebP)
	}

	return nil, "", types.NewDecodeError("", errUnknownFormat)
}

// checkDimensions reads only the image header so oversized sources are
// rejected before any pixel buffer is allocated.
func checkDimensions(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if cfg, err = webp.DecodeConfig(bytes.NewReader(data)); err != nil {
			return types.NewDecodeError("", errUnknownFormat)
		}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return types.NewDecodeError("", types.ErrEmptyImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > types.MaxSourcePixels {
		return types.NewDecodeError("", fmt.Errorf("%w: %dx%d", types.ErrImageTooLarge, cfg.Width, cfg.Height))
	}
	return nil
}

func validate(img image.Image, format string) (image.Image, string, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, format, types.NewDecodeError("", types.ErrEmptyImage)
	}
	return img, format, nil
}

// DecodeDataURL decodes a data:image/...;base64, URL or a bare base64 string.
func DecodeDataURL(s string) (image.Image, error) {
	data, err := DataURLBytes(s)
	if err != nil {
		return nil, types.NewDecodeError("data url", err)
	}
	return DecodeBytes(data)
}

// DataURLBytes extracts the payload of a base64 data URL.
func DataURLBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, errors.New("malformed data url")
		}
		if !strings.HasSuffix(s[:i], ";base64") {
			return nil, errors.New("data url is not base64 encoded")
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}

// Load loads an image from a file path with WebP support
func Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewDecodeError(path, err)
	}
	img, _, err := decode(data)
	if err != nil {
		var de *types.DecodeError
		if errors.As(err, &de) {
			return nil, &types.DecodeError{Source: path, Err: de.Err}
		}
		return nil, err
	}
	return img, nil
}

// LoadURL downloads and decodes an image over http(s).
func LoadURL(ctx context.Context, client *http.Client, imageURL string) (image.Image, error) {
	data, err := Fetch(ctx, client, imageURL)
	if err != nil {
		return nil, types.NewDecodeError(imageURL, err)
	}
	img, _, err := decode(data)
	if err != nil {
		var de *types.DecodeError
		if errors.As(err, &de) {
			return nil, &types.DecodeError{Source: imageURL, Err: de.Err}
		}
		return nil, err
	}
	return img, nil
}

// LoadSmart loads an image from either a file path or URL
func LoadSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return LoadURL(ctx, nil, source)
	}
	return Load(source)
}

// Fetch downloads an image body, checking scheme, status and content type.
func Fetch(ctx context.Context, client *http.Client, imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "application/octet-stream") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxDownloadSize {
		return nil, fmt.Errorf("image larger than %d bytes", MaxDownloadSize)
	}
	return data, nil
}

// EncodePNG writes a lossless PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}

// EncodeWebP writes a lossless WebP.
func EncodeWebP(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, &webp.Options{Lossless: true})
}

// Encode writes img in the given format. JPEG is only used for images sent
// to AI providers; prints are exported as PNG or WebP.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch NormalizeFormat(format) {
	case FormatWebP:
		return EncodeWebP(w, img)
	case FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = 90
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return EncodePNG(w, img)
	}
}

// EncodeBytes encodes img into a new byte slice.
func EncodeBytes(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return nil, fmt.Errorf("encode %s: %w", NormalizeFormat(format), err)
	}
	return buf.Bytes(), nil
}

// DataURL encodes img as a base64 data URL.
func DataURL(img image.Image, format string, quality int) (string, error) {
	data, err := EncodeBytes(img, format, quality)
	if err != nil {
		return "", err
	}
	return "data:" + ContentType(format) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Save writes img to path, picking the format from the extension.
func Save(img image.Image, path string) error {
	switch NormalizeFormat(filepath.Ext(path)) {
	case FormatWebP:
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if err := EncodeWebP(f, img); err != nil {
			f.Close()
			return fmt.Errorf("encode webp: %w", err)
		}
		return f.Close()
	case FormatJPEG:
		return imaging.Save(img, path, imaging.JPEGQuality(95))
	default:
		return imaging.Save(img, path, imaging.PNGCompressionLevel(png.BestCompression))
	}
}

// PrepareForModel shrinks img so its long side is at most maxDim and returns
// it as a data URL in the given format. maxDim <= 0 keeps the original size.
func PrepareForModel(img image.Image, format string, maxDim, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}
	return DataURL(img, format, quality)
}
