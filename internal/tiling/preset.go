package tiling

import (
	"fmt"
	"strings"
)

// Preset names a tiling quality profile.
type Preset int

const (
	Automatic Preset = iota
	Portrait
	FourK
	EightK
	SixtyFiveInch
	Prototype
	GoPortrait
	Kiosk
	SixteenPortrait
	SixteenLandscape
	ThirtyTwoPortrait
	ThirtyTwoLandscape
	EightPointNineLegacy
	Custom
)

var presetNames = [...]string{
	Automatic:            "automatic",
	Portrait:             "portrait",
	FourK:                "16in-4k",
	EightK:               "32in-8k",
	SixtyFiveInch:        "65in",
	Prototype:            "prototype",
	GoPortrait:           "go-portrait",
	Kiosk:                "kiosk",
	SixteenPortrait:      "16in-portrait",
	SixteenLandscape:     "16in-landscape",
	ThirtyTwoPortrait:    "32in-portrait",
	ThirtyTwoLandscape:   "32in-landscape",
	EightPointNineLegacy: "8.9in-legacy",
	Custom:               "custom",
}

// Presets lists every preset in declaration order.
func Presets() []Preset {
	out := make([]Preset, 0, len(presetNames))
	for i := range presetNames {
		out = append(out, Preset(i))
	}
	return out
}

func (p Preset) Valid() bool { return p >= Automatic && p <= Custom }

func (p Preset) String() string {
	if !p.Valid() {
		return fmt.Sprintf("preset(%d)", int(p))
	}
	return presetNames[p]
}

// ParsePreset accepts the kebab names produced by String, case-insensitively.
func ParsePreset(s string) (Preset, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	for i, n := range presetNames {
		if n == k {
			return Preset(i), nil
		}
	}
	return Automatic, fmt.Errorf("tiling: unknown preset %q", s)
}

func (p Preset) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("tiling: invalid preset %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Preset) UnmarshalText(b []byte) error {
	v, err := ParsePreset(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
