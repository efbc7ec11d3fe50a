// Package server exposes the layout engine, the AI providers and the
// editing session over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/menta2k/id-photo/pkg/client"
	"github.com/menta2k/id-photo/pkg/layout"
	"github.com/menta2k/id-photo/pkg/provider"
	"github.com/menta2k/id-photo/pkg/session"
	"github.com/menta2k/id-photo/pkg/types"
)

// TongyiPrefix is the path under which DashScope requests are forwarded.
const TongyiPrefix = "/api/tongyi"

// TransformerFactory builds the provider client for one request.
type TransformerFactory func(cfg provider.Config) (client.ImageTransformer, error)

// Options configures a Server. Zero values take the defaults noted per field.
type Options struct {
	// Provider is used when a request does not name one.
	Provider provider.Config
	// ProxyTarget receives /api/tongyi/* requests. dashscope.aliyuncs.com when empty.
	ProxyTarget string
	// AllowOrigins for CORS. "*" when empty.
	AllowOrigins []string
	// BodyLimit caps request bodies, e.g. "20M".
	BodyLimit string
	// Preset and DPI are the print defaults for requests that omit them.
	Preset string
	DPI    int
	// Interpolator name passed to layout.InterpolatorByName.
	Interpolator string
	// NewTransformer defaults to provider.New.
	NewTransformer TransformerFactory
}

// Server is the HTTP front end.
type Server struct {
	echo     *echo.Echo
	opts     Options
	renderer *layout.Renderer
	session  *session.Session
}

// New wires routes and middleware.
func New(opts Options) (*Server, error) {
	if opts.ProxyTarget == "" {
		opts.ProxyTarget = "https://dashscope.aliyuncs.com"
	}
	if len(opts.AllowOrigins) == 0 {
		opts.AllowOrigins = []string{"*"}
	}
	if opts.BodyLimit == "" {
		opts.BodyLimit = "20M"
	}
	if opts.Preset == "" {
		opts.Preset = types.OneInch.ID
	}
	if opts.DPI <= 0 {
		opts.DPI = types.DefaultDPI
	}
	if opts.NewTransformer == nil {
		opts.NewTransformer = provider.New
	}

	target, err := url.Parse(opts.ProxyTarget)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid proxy target %q", opts.ProxyTarget)
	}

	preset, _ := types.PresetByID(opts.Preset)
	if preset.ID == "" || preset.ID == types.CustomPresetID {
		preset = types.OneInch
	}

	renderer := layout.NewWithConfig(layout.Config{Interpolator: layout.InterpolatorByName(opts.Interpolator)})
	s := &Server{
		echo:     echo.New(),
		opts:     opts,
		renderer: renderer,
		session:  session.New(renderer, preset.Spec(0, 0, opts.DPI)),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.AllowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-API-Key", "X-DashScope-Async"},
	}))
	s.echo.Use(middleware.BodyLimit(opts.BodyLimit))

	api := s.echo.Group("/api")
	api.GET("/presets", s.handlePresets)
	api.GET("/providers", s.handleProviders)
	api.POST("/render", s.handleRender)
	api.POST("/process", s.handleProcess)

	sess := api.Group("/session")
	sess.GET("", s.handleSessionGet)
	sess.DELETE("", s.handleSessionClear)
	sess.POST("/source", s.handleSessionSource)
	sess.PUT("/view", s.handleSessionView)
	sess.PUT("/spec", s.handleSessionSpec)
	sess.POST("/reset", s.handleSessionReset)
	sess.GET("/render", s.handleSessionRender)

	s.echo.Group(TongyiPrefix, proxyHeaders(target), middleware.ProxyWithConfig(middleware.ProxyConfig{
		Balancer: middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{{URL: target}}),
		Rewrite: map[string]string{
			TongyiPrefix + "/*": "/$1",
		},
	}))

	return s, nil
}

// proxyHeaders makes forwarded requests look like they were sent to the
// upstream directly.
func proxyHeaders(target *url.URL) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			req.Host = target.Host
			req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
			return next(c)
		}
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Session returns the server's editing session.
func (s *Server) Session() *session.Session {
	return s.session
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		he = toHTTPError(err)
	}
	if he.Code >= 500 {
		log.Printf("server error: %v", err)
	}
	s.echo.DefaultHTTPErrorHandler(he, c)
}

// toHTTPError maps domain errors to status codes.
func toHTTPError(err error) *echo.HTTPError {
	code := http.StatusInternalServerError
	switch {
	case types.IsDecodeError(err):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNoSource):
		code = http.StatusConflict
	case errors.Is(err, client.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, client.ErrRateLimited):
		code = http.StatusTooManyRequests
	case errors.Is(err, client.ErrUpstream), errors.Is(err, client.ErrNoImage):
		code = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}

func badRequest(format string, args ...any) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, strings.TrimSpace(fmt.Sprintf(format, args...)))
}
