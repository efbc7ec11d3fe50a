// Package session holds the single in-memory editing session: the current
// source photo with its background colour, the print spec and the view
// transform.
package session

import (
	"errors"
	"image"
	"sync"

	"github.com/menta2k/id-photo/pkg/layout"
	"github.com/menta2k/id-photo/pkg/types"
)

// ErrNoSource is returned by Render before a source has been set.
var ErrNoSource = errors.New("session has no source image")

// Snapshot is a copy of the session state.
type Snapshot struct {
	HasSource  bool                `json:"has_source"`
	Width      int                 `json:"width,omitempty"`
	Height     int                 `json:"height,omitempty"`
	Background string              `json:"background"`
	Spec       types.PrintSpec     `json:"spec"`
	View       types.ViewTransform `json:"view"`
	Layout     *layout.Layout      `json:"layout,omitempty"`
}

// Session is safe for concurrent use.
type Session struct {
	mu         sync.Mutex
	renderer   *layout.Renderer
	source     image.Image
	background types.Background
	spec       types.PrintSpec
	view       types.ViewTransform
}

// New creates an empty session using renderer. A nil renderer uses the
// default settings. The fill colour always comes from the session's
// background, which starts out white.
func New(renderer *layout.Renderer, spec types.PrintSpec) *Session {
	if renderer == nil {
		renderer = layout.New()
	}
	return &Session{
		renderer:   renderer,
		background: types.White,
		spec:       spec.Clamp(),
		view:       types.DefaultView(),
	}
}

func checkSource(img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return types.NewDecodeError("", types.ErrEmptyImage)
	}
	return nil
}

// SetSource replaces the source photo and the background painted behind
// it, and resets the view. The spec is kept.
func (s *Session) SetSource(img image.Image, bg types.Background) error {
	if err := checkSource(img); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = img
	s.background = bg
	s.view = types.DefaultView()
	return nil
}

// Load replaces source, background and spec in one step and resets the
// view, so no reader observes the new photo with the old spec.
func (s *Session) Load(img image.Image, spec types.PrintSpec, bg types.Background) error {
	if err := checkSource(img); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = img
	s.background = bg
	s.spec = spec.Clamp()
	s.view = types.DefaultView()
	return nil
}

// SetSpec changes the print spec. The view is kept.
func (s *Session) SetSpec(spec types.PrintSpec) {
	s.mu.Lock()
	s.spec = spec.Clamp()
	s.mu.Unlock()
}

// SetView stores view after clamping and returns the stored value.
func (s *Session) SetView(view types.ViewTransform) types.ViewTransform {
	view = view.Clamp()
	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
	return view
}

// Reset restores the default view.
func (s *Session) Reset() types.ViewTransform {
	s.mu.Lock()
	s.view = types.DefaultView()
	s.mu.Unlock()
	return types.DefaultView()
}

// Clear drops the source, restores the white background and resets the view.
func (s *Session) Clear() {
	s.mu.Lock()
	s.source = nil
	s.background = types.White
	s.view = types.DefaultView()
	s.mu.Unlock()
}

// Background returns the colour painted behind the source.
func (s *Session) Background() types.Background {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.background
}

// View returns the current view transform.
func (s *Session) View() types.ViewTransform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Spec returns the current print spec.
func (s *Session) Spec() types.PrintSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Snapshot returns the current state together with its layout.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Background: s.background.Hex(), Spec: s.spec, View: s.view}
	if s.source != nil {
		b := s.source.Bounds()
		l := layout.Compute(b.Dx(), b.Dy(), s.spec, s.view)
		snap.HasSource = true
		snap.Width, snap.Height = b.Dx(), b.Dy()
		snap.Layout = &l
	}
	return snap
}

// Render renders the current state from scratch.
func (s *Session) Render() (*image.NRGBA, error) {
	s.mu.Lock()
	src, bg, spec, view := s.source, s.background, s.spec, s.view
	s.mu.Unlock()

	if src == nil {
		return nil, ErrNoSource
	}
	return s.renderer.WithBackground(bg.Color).Render(src, spec, view)
}
