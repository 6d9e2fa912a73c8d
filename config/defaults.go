package config

import (
	"fmt"

	"github.com/ruteri/dexcom-browser-source/interfaces"
)

// mmol/L thresholds matching the mg/dL defaults
const (
	defaultMmolHypo  = 3.9
	defaultMmolHyper = 10.0
	defaultMmolUpper = 16.7
)

// ApplyDefaults fills every unset field. Thresholds follow the configured
// unit, so a file that only says "unit: mmol" still gets a sensible chart.
func ApplyDefaults(cfg *File) {
	if cfg.Dexcom.Region == "" {
		cfg.Dexcom.Region = "us"
	}

	def := interfaces.DefaultRenderConfig()
	if cfg.Chart.Unit == "" {
		cfg.Chart.Unit = "mgdl"
	}
	hypo, hyper, upper := def.HypoThreshold, def.HyperThreshold, def.UpperBound
	if unit, err := interfaces.ParseUnit(cfg.Chart.Unit); err == nil && unit == interfaces.UnitMmolL {
		hypo, hyper, upper = defaultMmolHypo, defaultMmolHyper, defaultMmolUpper
	}
	if cfg.Chart.HypoThreshold == 0 {
		cfg.Chart.HypoThreshold = hypo
	}
	if cfg.Chart.HyperThreshold == 0 {
		cfg.Chart.HyperThreshold = hyper
	}
	if cfg.Chart.UpperBound == 0 {
		cfg.Chart.UpperBound = upper
	}
	if cfg.Chart.WindowHours == 0 {
		cfg.Chart.WindowHours = def.WindowHours
	}
	if cfg.Chart.Width == 0 {
		cfg.Chart.Width = def.Width
	}
	if cfg.Chart.Height == 0 {
		cfg.Chart.Height = def.Height
	}

	colors := &cfg.Chart.Colors
	if colors.Hypo == "" {
		colors.Hypo = hexColor(def.Colors.Hypo.R, def.Colors.Hypo.G, def.Colors.Hypo.B)
	}
	if colors.Normal == "" {
		colors.Normal = hexColor(def.Colors.Normal.R, def.Colors.Normal.G, def.Colors.Normal.B)
	}
	if colors.Hyper == "" {
		colors.Hyper = hexColor(def.Colors.Hyper.R, def.Colors.Hyper.G, def.Colors.Hyper.B)
	}
	if colors.Points == "" {
		colors.Points = hexColor(def.Colors.Points.R, def.Colors.Points.G, def.Colors.Points.B)
	}
}

func hexColor(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
