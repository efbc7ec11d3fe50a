package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/id-photo/internal/config"
	"github.com/menta2k/id-photo/internal/logutil"
	"github.com/menta2k/id-photo/internal/utils"
	"github.com/menta2k/id-photo/pkg/codec"
	"github.com/menta2k/id-photo/pkg/layout"
	"github.com/menta2k/id-photo/pkg/provider"
	"github.com/menta2k/id-photo/pkg/types"
)

func main() {
	var in, out, preset, bg, ext, configPath, logFile string
	var providerName, model, url, apiKey, interp string
	var width, height, zoom, offsetX, offsetY float64
	var dpi, brightness int
	var beautify, useAI, verbose bool

	d := types.DefaultView()

	flag.StringVar(&in, "in", "", "input photo path or URL (jpg/png/webp)")
	flag.StringVar(&out, "out", "", "output file or directory (default: output dir from config)")
	flag.StringVar(&preset, "preset", "", "print size: 1inch|2inch|passport|custom")
	flag.Float64Var(&width, "width", 0, "custom width in mm")
	flag.Float64Var(&height, "height", 0, "custom height in mm")
	flag.IntVar(&dpi, "dpi", 0, "print resolution (default from config)")

	flag.Float64Var(&zoom, "zoom", d.Zoom, "zoom factor (0.5..2.0)")
	flag.Float64Var(&offsetX, "offsetx", d.OffsetX, "horizontal offset as a fraction of the drawn width (-0.3..0.3)")
	flag.Float64Var(&offsetY, "offsety", d.OffsetY, "vertical offset as a fraction of the drawn height (-0.5..0.5)")
	flag.IntVar(&brightness, "brightness", d.Brightness, "brightness percent (80..150)")
	flag.StringVar(&interp, "interp", "", "resampling: bilinear|catmullrom")

	flag.StringVar(&bg, "bg", "", "background: white|blue|red|#rrggbb")
	flag.BoolVar(&beautify, "beautify", false, "ask the provider to retouch the face")
	flag.BoolVar(&useAI, "ai", false, "replace the background with an AI provider before rendering")
	flag.StringVar(&providerName, "provider", "", "AI provider: tongyi|siliconflow|openrouter|ollama")
	flag.StringVar(&model, "model", "", "provider model (default: provider default)")
	flag.StringVar(&url, "url", "", "provider base URL (default: provider default)")
	flag.StringVar(&apiKey, "apikey", "", "provider API key (default: $"+config.EnvAPIKey+")")

	flag.StringVar(&ext, "ext", "", "output format: png|webp")
	flag.StringVar(&configPath, "config", config.GetConfigPath(), "config file")
	flag.StringVar(&logFile, "log", "", "write logs to this file instead of stderr")
	flag.BoolVar(&verbose, "v", false, "verbose logging")

	flag.Parse()
	if in == "" {
		log.Fatalf("usage: %s -in photo.jpg|URL [-preset 1inch|2inch|passport|custom] [-dpi 300] [-zoom 1.1] [-offsety -0.1] [-ai -provider tongyi -bg blue] [-ext png|webp] [-out dir]", filepath.Base(os.Args[0]))
	}

	if !utils.IsURL(in) && !utils.FileExists(in) {
		log.Fatalf("input %s does not exist", in)
	}

	closer, err := logutil.Setup(verbose, logFile)
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	applyFlags(cfg, preset, bg, ext, providerName, model, url, apiKey, interp, dpi)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	p, ok := types.PresetByID(cfg.Render.Preset)
	if !ok {
		log.Fatalf("unknown preset %q", cfg.Render.Preset)
	}
	if p.ID == types.CustomPresetID && (width <= 0 || height <= 0) {
		log.Fatal("-preset custom requires -width and -height")
	}
	spec := p.Spec(width, height, cfg.Render.DPI)
	view := types.ViewTransform{Zoom: zoom, OffsetX: offsetX, OffsetY: offsetY, Brightness: brightness}
	background, _ := types.ParseBackground(cfg.Render.Background)

	ctx := context.Background()
	img, err := codec.LoadSmart(ctx, in)
	if err != nil {
		log.Fatal(err)
	}
	info := codec.GetImageInfo(img)
	log.Printf("loaded %s: %dx%d (ratio %.2f)", in, info.Width, info.Height, info.AspectRatio)

	if useAI {
		pc := cfg.ProviderSettings()
		log.Printf("provider=%s model=%s key=%s", pc.Provider, pc.Model, logutil.RedactKey(pc.APIKey))
		processor, err := provider.NewFromConfig(pc)
		if err != nil {
			log.Fatalf("failed to create provider: %v", err)
		}
		start := time.Now()
		img, err = processor.Process(ctx, img, background, beautify)
		if err != nil {
			log.Fatalf("background replacement failed: %v", err)
		}
		log.Printf("background replaced in %s", time.Since(start).Round(time.Millisecond))
	}

	renderer := layout.NewWithConfig(cfg.RendererConfig())
	b := img.Bounds()
	l := layout.Compute(b.Dx(), b.Dy(), spec, view)
	if verbose {
		log.Printf("layout: target=%dx%d base=%.4f final=%.4f draw=%.1fx%.1f at %.1f,%.1f covers=%t",
			l.TargetWidth, l.TargetHeight, l.BaseScale, l.FinalScale, l.DrawWidth, l.DrawHeight, l.X, l.Y, l.Covers())
	}

	result, err := renderer.Render(img, spec, view)
	if err != nil {
		log.Fatal(err)
	}

	path := outputPath(out, cfg.Output.OutputDir, p.ID, cfg.Output.Format)
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		log.Fatal(err)
	}
	if err := codec.Save(result, path); err != nil {
		log.Fatal(err)
	}

	size := ""
	if st, err := os.Stat(path); err == nil {
		size = utils.FormatFileSize(st.Size())
	}
	log.Printf("wrote %s (%dx%d @ %d dpi, %s)", path, l.TargetWidth, l.TargetHeight, spec.Clamp().DPI, size)
}

// applyFlags overrides config values with flags that were set.
func applyFlags(cfg *config.Config, preset, bg, ext, providerName, model, url, apiKey, interp string, dpi int) {
	if preset != "" {
		cfg.Render.Preset = strings.ToLower(preset)
	}
	if bg != "" {
		cfg.Render.Background = bg
	}
	if ext != "" {
		cfg.Output.Format = strings.ToLower(ext)
	}
	if interp != "" {
		cfg.Render.Interpolator = interp
	}
	if dpi > 0 {
		cfg.Render.DPI = dpi
	}
	if providerName != "" && !strings.EqualFold(providerName, cfg.Provider.Name) {
		cfg.Provider.Name = strings.ToLower(providerName)
		cfg.Provider.Model = ""
		cfg.Provider.BaseURL = ""
	}
	if model != "" {
		cfg.Provider.Model = model
	}
	if url != "" {
		cfg.Provider.BaseURL = url
	}
	if apiKey != "" {
		cfg.Provider.APIKey = apiKey
	}
}

// outputPath treats out as a file when it has an image extension and as a
// directory otherwise.
func outputPath(out, defaultDir, preset, format string) string {
	if out != "" && utils.IsImageFile(out) {
		return out
	}
	dir := out
	if dir == "" {
		dir = defaultDir
	}
	return utils.GenerateOutputFilename(dir, preset, codec.NormalizeFormat(format), time.Now())
}
