package types

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// CustomPresetID selects a user supplied print size.
const CustomPresetID = "custom"

// Preset is a named print size.
type Preset struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	WidthMm     float64 `json:"width_mm"`
	HeightMm    float64 `json:"height_mm"`
	Description string  `json:"description"`
}

// Common ID photo sizes
var (
	OneInch  = Preset{"1inch", "1 inch", 25, 35, "25x35mm"}
	TwoInch  = Preset{"2inch", "2 inch", 35, 49, "35x49mm"}
	Passport = Preset{"passport", "Passport", 33, 48, "33x48mm"}
	Custom   = Preset{CustomPresetID, "Custom", 0, 0, "custom width and height"}
)

// Presets returns all known presets, custom last.
func Presets() []Preset {
	return []Preset{OneInch, TwoInch, Passport, Custom}
}

// PresetByID looks up a preset by its identifier.
func PresetByID(id string) (Preset, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range Presets() {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// Spec builds the print spec for the preset. The custom preset takes its
// size from customW/customH; the others ignore them.
func (p Preset) Spec(customW, customH float64, dpi int) PrintSpec {
	if p.ID == CustomPresetID {
		return PrintSpec{WidthMm: customW, HeightMm: customH, DPI: dpi}
	}
	return PrintSpec{WidthMm: p.WidthMm, HeightMm: p.HeightMm, DPI: dpi}
}

// Background is the solid colour the AI provider paints behind the subject.
type Background struct {
	Name  string
	Color color.NRGBA
}

// Named backgrounds
var (
	White = Background{"white", color.NRGBA{255, 255, 255, 255}}
	Blue  = Background{"blue", color.NRGBA{0, 0, 255, 255}}
	Red   = Background{"red", color.NRGBA{255, 0, 0, 255}}
)

// Backgrounds returns the named background colours.
func Backgrounds() []Background {
	return []Background{White, Blue, Red}
}

// PromptName is the colour as it is described to the model: the colour
// name for named backgrounds, the hex value for custom ones.
func (b Background) PromptName() string {
	if b.Name != "" && b.Name != CustomPresetID {
		return b.Name
	}
	return b.Hex()
}

// Hex formats the colour as #rrggbb.
func (b Background) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", b.Color.R, b.Color.G, b.Color.B)
}

// ParseBackground accepts a named colour or a #rrggbb / #rgb hex value.
func ParseBackground(s string) (Background, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return White, nil
	}
	for _, b := range Backgrounds() {
		if b.Name == s {
			return b, nil
		}
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Background{}, fmt.Errorf("invalid background colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Background{}, fmt.Errorf("invalid background colour %q: %w", s, err)
	}
	return Background{
		Name:  CustomPresetID,
		Color: color.NRGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255},
	}, nil
}
