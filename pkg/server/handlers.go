package server

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/menta2k/id-photo/internal/utils"
	"github.com/menta2k/id-photo/pkg/codec"
	"github.com/menta2k/id-photo/pkg/provider"
	"github.com/menta2k/id-photo/pkg/types"
)

type backgroundJSON struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

type presetsResponse struct {
	Presets     []types.Preset      `json:"presets"`
	Backgrounds []backgroundJSON    `json:"backgrounds"`
	DPI         int                 `json:"dpi"`
	View        types.ViewTransform `json:"default_view"`
}

// renderParams is everything a render request may carry.
type renderParams struct {
	preset string
	spec   types.PrintSpec
	view   types.ViewTransform
	bg     types.Background
	format string
}

func (s *Server) handlePresets(c echo.Context) error {
	resp := presetsResponse{
		Presets: types.Presets(),
		DPI:     s.opts.DPI,
		View:    types.DefaultView(),
	}
	for _, b := range types.Backgrounds() {
		resp.Backgrounds = append(resp.Backgrounds, backgroundJSON{Name: b.Name, Hex: b.Hex()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, provider.Providers())
}

func (s *Server) handleRender(c echo.Context) error {
	p, err := s.parseRenderParams(c)
	if err != nil {
		return err
	}
	src, err := formImage(c)
	if err != nil {
		return err
	}
	return s.writeRender(c, src, p)
}

func (s *Server) handleProcess(c echo.Context) error {
	p, err := s.parseRenderParams(c)
	if err != nil {
		return err
	}
	beautify, err := formBool(c, "beautify")
	if err != nil {
		return err
	}
	src, err := formImage(c)
	if err != nil {
		return err
	}

	cfg, _, err := s.requestProvider(c).Resolve()
	if err != nil {
		return badRequest("%v", err)
	}
	transformer, err := s.opts.NewTransformer(cfg)
	if err != nil {
		return toHTTPError(err)
	}

	processed, err := provider.NewProcessor(transformer, cfg.Provider, cfg.Model).
		Process(c.Request().Context(), src, p.bg, beautify)
	if err != nil {
		return toHTTPError(err)
	}

	if err := s.session.Load(processed, p.spec, p.bg); err != nil {
		return toHTTPError(err)
	}
	return s.writeRender(c, processed, renderParams{
		preset: p.preset,
		spec:   p.spec,
		view:   types.DefaultView(),
		bg:     p.bg,
		format: p.format,
	})
}

// requestProvider overlays form fields and auth headers on the default
// provider settings.
func (s *Server) requestProvider(c echo.Context) provider.Config {
	cfg := s.opts.Provider
	if v := strings.TrimSpace(c.FormValue("provider")); v != "" && !strings.EqualFold(v, cfg.Provider) {
		cfg = provider.Config{Provider: v, Timeout: cfg.Timeout}
	}
	if v := strings.TrimSpace(c.FormValue("model")); v != "" {
		cfg.Model = v
	}
	if v := c.Request().Header.Get("X-API-Key"); v != "" {
		cfg.APIKey = v
	} else if v := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(v, "Bearer ") {
		cfg.APIKey = strings.TrimPrefix(v, "Bearer ")
	}
	return cfg
}

func (s *Server) handleSessionGet(c echo.Context) error {
	return c.JSON(http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSessionSource(c echo.Context) error {
	bg, err := types.ParseBackground(c.FormValue("background"))
	if err != nil {
		return badRequest("%v", err)
	}
	src, err := formImage(c)
	if err != nil {
		return err
	}
	if err := s.session.SetSource(src, bg); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSessionClear(c echo.Context) error {
	s.session.Clear()
	return c.JSON(http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSessionView(c echo.Context) error {
	view := s.session.View()
	if err := c.Bind(&view); err != nil {
		return err
	}
	s.session.SetView(view)
	return c.JSON(http.StatusOK, s.session.Snapshot())
}

type specRequest struct {
	Preset   string   `json:"preset"`
	WidthMm  *float64 `json:"width_mm"`
	HeightMm *float64 `json:"height_mm"`
	DPI      *int     `json:"dpi"`
}

func (s *Server) handleSessionSpec(c echo.Context) error {
	var req specRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	spec := s.session.Spec()
	if req.Preset != "" {
		preset, ok := types.PresetByID(req.Preset)
		if !ok {
			return badRequest("unknown preset %q", req.Preset)
		}
		if preset.ID != types.CustomPresetID {
			spec.WidthMm, spec.HeightMm = preset.WidthMm, preset.HeightMm
		}
	}
	if req.WidthMm != nil {
		spec.WidthMm = *req.WidthMm
	}
	if req.HeightMm != nil {
		spec.HeightMm = *req.HeightMm
	}
	if req.DPI != nil {
		spec.DPI = *req.DPI
	}
	s.session.SetSpec(spec)
	return c.JSON(http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSessionReset(c echo.Context) error {
	s.session.Reset()
	return c.JSON(http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSessionRender(c echo.Context) error {
	out, err := s.session.Render()
	if err != nil {
		return toHTTPError(err)
	}
	format := codec.NormalizeFormat(c.QueryParam("format"))
	if format == codec.FormatJPEG {
		format = codec.FormatPNG
	}
	preset := c.QueryParam("preset")
	if preset == "" {
		preset = types.CustomPresetID
	}
	return writeImage(c, out, preset, format)
}

func (s *Server) writeRender(c echo.Context, src image.Image, p renderParams) error {
	out, err := s.renderer.WithBackground(p.bg.Color).Render(src, p.spec, p.view)
	if err != nil {
		return toHTTPError(err)
	}
	return writeImage(c, out, p.preset, p.format)
}

func writeImage(c echo.Context, img image.Image, preset, format string) error {
	var buf bytes.Buffer
	if err := codec.Encode(&buf, img, format, 0); err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	name := utils.GenerateOutputFilename("", preset, format, time.Now())
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, codec.ContentType(format), buf.Bytes())
}

func (s *Server) parseRenderParams(c echo.Context) (renderParams, error) {
	var p renderParams

	p.preset = strings.ToLower(strings.TrimSpace(c.FormValue("preset")))
	if p.preset == "" {
		p.preset = s.opts.Preset
	}
	preset, ok := types.PresetByID(p.preset)
	if !ok {
		return p, badRequest("unknown preset %q", p.preset)
	}

	w, err := formFloat(c, "width_mm", 0)
	if err != nil {
		return p, err
	}
	h, err := formFloat(c, "height_mm", 0)
	if err != nil {
		return p, err
	}
	if preset.ID == types.CustomPresetID && (w <= 0 || h <= 0) {
		return p, badRequest("custom preset requires width_mm and height_mm")
	}
	dpi, err := formInt(c, "dpi", s.opts.DPI)
	if err != nil {
		return p, err
	}
	p.spec = preset.Spec(w, h, dpi)

	d := types.DefaultView()
	if p.view.Zoom, err = formFloat(c, "zoom", d.Zoom); err != nil {
		return p, err
	}
	if p.view.OffsetX, err = formFloat(c, "offset_x", d.OffsetX); err != nil {
		return p, err
	}
	if p.view.OffsetY, err = formFloat(c, "offset_y", d.OffsetY); err != nil {
		return p, err
	}
	if p.view.Brightness, err = formInt(c, "brightness", d.Brightness); err != nil {
		return p, err
	}

	if p.bg, err = types.ParseBackground(c.FormValue("background")); err != nil {
		return p, badRequest("%v", err)
	}

	switch f := strings.ToLower(strings.TrimSpace(c.FormValue("format"))); f {
	case "", codec.FormatPNG:
		p.format = codec.FormatPNG
	case codec.FormatWebP:
		p.format = codec.FormatWebP
	default:
		return p, badRequest("unsupported format %q", f)
	}
	return p, nil
}

func formImage(c echo.Context) (image.Image, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, badRequest("missing image upload")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	img, err := codec.Decode(f)
	if err != nil {
		return nil, toHTTPError(types.NewDecodeError(fh.Filename, err))
	}
	return img, nil
}

func formFloat(c echo.Context, name string, def float64) (float64, error) {
	v := strings.TrimSpace(c.FormValue(name))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, v)
	}
	return f, nil
}

func formInt(c echo.Context, name string, def int) (int, error) {
	v := strings.TrimSpace(c.FormValue(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, v)
	}
	return n, nil
}

func formBool(c echo.Context, name string) (bool, error) {
	v := strings.TrimSpace(c.FormValue(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest("invalid %s %q", name, v)
	}
	return b, nil
}
