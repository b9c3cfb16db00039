package tiling

import (
	"fmt"
	"strings"
)

// Table maps concrete presets to their literal tile geometry.
type Table map[Preset]Quality

// DefaultTable returns a fresh copy of the built-in preset values.
// Custom holds the default for user-editable values.
func DefaultTable() Table {
	return Table{
		Portrait:             New("Portrait", 8, 6, 3360, 3360, 0.75),
		FourK:                New("4K Res", 5, 9, 4096, 4096, 1.77777),
		EightK:               New("8K Res", 5, 9, 8192, 8192, 1.77777),
		SixtyFiveInch:        New("65 Inch", 8, 9, 8192, 8192, 1.77777),
		Prototype:            New("Prototype", 5, 9, 4096, 4096, 1.77777),
		GoPortrait:           New("Go Portrait", 11, 6, 4092, 4092, 0.5625),
		Kiosk:                New("Kiosk", 11, 6, 4096, 4096, 0.5625),
		SixteenPortrait:      New("16 Inch Portrait", 11, 6, 5995, 6000, 0.5625),
		SixteenLandscape:     New("16 Inch Landscape", 7, 7, 5999, 5999, 1.77777),
		ThirtyTwoPortrait:    New("32 Inch Portrait", 11, 6, 8184, 8184, 0.5625),
		ThirtyTwoLandscape:   New("32 Inch Landscape", 7, 7, 8190, 8190, 1.77777),
		EightPointNineLegacy: New("Extra Low", 5, 9, 4096, 4096, 1.6),
		Custom:               New("Custom", 11, 6, 4092, 4092, 0.5625),
	}
}

// For returns a copy of the preset's values with derived fields set up.
func (t Table) For(p Preset) (Quality, error) {
	q, ok := t[p]
	if !ok {
		return Quality{}, fmt.Errorf("tiling: no table entry for preset %s", p)
	}
	q.Setup()
	return q, nil
}

// DeviceRule maps a serial substring to a preset.
type DeviceRule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Preset  Preset `yaml:"preset" json:"preset"`
}

// DefaultDeviceRules is the ordered serial table used by Automatic.
func DefaultDeviceRules() []DeviceRule {
	return []DeviceRule{
		{`Looking Glass - Portrait`, Portrait},
		{`PORT`, Portrait},
		{`Portrait`, Portrait},
		{`Looking Glass - 16"`, FourK},
		{`LKG-A`, FourK},
		{`LKG-4K`, FourK},
		{`Looking Glass - 32"`, EightK},
		{`LKG-B`, EightK},
		{`LKG-8K`, EightK},
		{`Looking Glass - 65"`, SixtyFiveInch},
		{`LKG-D`, SixtyFiveInch},
		{`LKG-Q`, Prototype},
		{`LKG-E`, GoPortrait},
		{`LKG-F`, Kiosk},
		{`LKG-H`, SixteenPortrait},
		{`LKG-J`, SixteenLandscape},
		{`LKG-K`, ThirtyTwoPortrait},
		{`LKG-L`, ThirtyTwoLandscape},
		{`Looking Glass - 8.9"`, EightPointNineLegacy},
		{`LKG-2K`, EightPointNineLegacy},
	}
}

// MatchDevice returns the preset of the first rule whose pattern occurs in
// serial, or Portrait when none does.
func MatchDevice(rules []DeviceRule, serial string) Preset {
	for _, r := range rules {
		if r.Pattern == "" || r.Preset == Automatic || r.Preset == Custom {
			continue
		}
		if strings.Contains(serial, r.Pattern) {
			return r.Preset
		}
	}
	return Portrait
}
