package codec

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menta2k/id-photo/pkg/types"
)

// createTestImage creates a gradient test image
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8((x * 255) / width), uint8((y * 255) / height), 128, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeFormat(t *testing.T) {
	tests := map[string]string{
		"png":   FormatPNG,
		".PNG":  FormatPNG,
		"webp":  FormatWebP,
		".webp": FormatWebP,
		"jpg":   FormatJPEG,
		"JPEG":  FormatJPEG,
		"tiff":  FormatPNG,
		"":      FormatPNG,
	}
	for input, expected := range tests {
		if got := NormalizeFormat(input); got != expected {
			t.Errorf("NormalizeFormat(%q) = %s, expected %s", input, got, expected)
		}
	}
}

func TestContentType(t *testing.T) {
	if ContentType("webp") != "image/webp" || ContentType("bmp") != "image/png" || ContentType("jpg") != "image/jpeg" {
		t.Error("unexpected content types")
	}
}

func TestDecodeBytesPNG(t *testing.T) {
	src := createTestImage(40, 30)
	img, err := DecodeBytes(encodePNG(t, src))
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	info := GetImageInfo(img)
	if info.Width != 40 || info.Height != 30 {
		t.Errorf("Expected 40x30, got %dx%d", info.Width, info.Height)
	}
}

func TestDecodeBytesInvalid(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("definitely not an image")} {
		_, err := DecodeBytes(data)
		if !types.IsDecodeError(err) {
			t.Errorf("Expected DecodeError for %q, got %v", data, err)
		}
	}
}

// pngWithHeaderSize encodes a tiny PNG and rewrites its IHDR chunk so the
// header claims width x height pixels.
func pngWithHeaderSize(t *testing.T, width, height uint32) []byte {
	t.Helper()
	data := encodePNG(t, createTestImage(2, 2))
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeBytesRejectsOversizedHeader(t *testing.T) {
	data := pngWithHeaderSize(t, 10000, 10000)

	_, err := DecodeBytes(data)
	if !types.IsDecodeError(err) {
		t.Fatalf("Expected DecodeError, got %v", err)
	}
	if !errors.Is(err, types.ErrImageTooLarge) {
		t.Errorf("Expected ErrImageTooLarge, got %v", err)
	}

	if _, err := Decode(bytes.NewReader(data)); !errors.Is(err, types.ErrImageTooLarge) {
		t.Errorf("Decode: expected ErrImageTooLarge, got %v", err)
	}
}

func TestPNGRoundTripIsLossless(t *testing.T) {
	src := createTestImage(64, 48)
	var buf bytes.Buffer
	if err := EncodePNG(&buf, src); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	img, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			r1, g1, b1, a1 := src.At(x, y).RGBA()
			r2, g2, b2, a2 := img.At(x, y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				t.Fatalf("pixel (%d,%d) changed after round trip", x, y)
			}
		}
	}
}

func TestWebPRoundTripIsLossless(t *testing.T) {
	src := createTestImage(32, 32)
	data, err := EncodeBytes(src, "webp", 0)
	if err != nil {
		t.Fatalf("EncodeBytes failed: %v", err)
	}
	img, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			r1, g1, b1, _ := src.At(x, y).RGBA()
			r2, g2, b2, _ := img.At(x, y).RGBA()
			if r1>>8 != r2>>8 || g1>>8 != g2>>8 || b1>>8 != b2>>8 {
				t.Fatalf("pixel (%d,%d) changed after lossless webp round trip", x, y)
			}
		}
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	src := createTestImage(20, 10)
	u, err := DataURL(src, "png", 0)
	if err != nil {
		t.Fatalf("DataURL failed: %v", err)
	}
	if !strings.HasPrefix(u, "data:image/png;base64,") {
		t.Errorf("unexpected data url prefix: %.30s", u)
	}

	img, err := DecodeDataURL(u)
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("Expected 20x10, got %v", b)
	}

	// Bare base64 is accepted as well.
	bare := base64.StdEncoding.EncodeToString(encodePNG(t, src))
	if _, err := DecodeDataURL(bare); err != nil {
		t.Errorf("DecodeDataURL(bare) failed: %v", err)
	}
}

func TestDataURLBytesErrors(t *testing.T) {
	for _, input := range []string{"data:image/png;base64", "data:image/png,abc", "%%%"} {
		if _, err := DataURLBytes(input); err == nil {
			t.Errorf("DataURLBytes(%q): expected error", input)
		}
	}
	if _, err := DecodeDataURL("%%%"); !types.IsDecodeError(err) {
		t.Errorf("Expected DecodeError, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	src := createTestImage(30, 40)

	for _, name := range []string{"out.png", "out.webp", "out.jpg"} {
		path := filepath.Join(dir, name)
		if err := Save(src, path); err != nil {
			t.Fatalf("Save(%s) failed: %v", name, err)
		}
		img, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", name, err)
		}
		if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 40 {
			t.Errorf("%s: expected 30x40, got %v", name, b)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.png"))
	if !types.IsDecodeError(err) {
		t.Errorf("Expected DecodeError for missing file, got %v", err)
	}

	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = Load(bad)
	if !types.IsDecodeError(err) || !strings.Contains(err.Error(), "bad.png") {
		t.Errorf("Expected DecodeError naming the file, got %v", err)
	}
}

func TestLoadURL(t *testing.T) {
	data := encodePNG(t, createTestImage(16, 12))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(data)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	img, err := LoadURL(context.Background(), srv.Client(), srv.URL+"/photo.png")
	if err != nil {
		t.Fatalf("LoadURL failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 12 {
		t.Errorf("Expected 16x12, got %v", b)
	}

	for _, path := range []string{"/page", "/missing"} {
		if _, err := LoadURL(context.Background(), srv.Client(), srv.URL+path); !types.IsDecodeError(err) {
			t.Errorf("%s: expected DecodeError, got %v", path, err)
		}
	}

	if _, err := Fetch(context.Background(), nil, "ftp://example.com/a.png"); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}

func TestPrepareForModel(t *testing.T) {
	src := createTestImage(400, 200)
	u, err := PrepareForModel(src, "jpg", 100, 85)
	if err != nil {
		t.Fatalf("PrepareForModel failed: %v", err)
	}
	if !strings.HasPrefix(u, "data:image/jpeg;base64,") {
		t.Errorf("unexpected prefix %.30s", u)
	}
	img, err := DecodeDataURL(u)
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("Expected 100x50, got %v", b)
	}
}
