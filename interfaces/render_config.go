package interfaces

import (
	"errors"
	"fmt"
	"image/color"
	"strings"
	"time"
)

const (
	MaxWindowHours = 24

	minImageSide = 64
	maxImageSide = 4096
)

// BandColors holds the fill colors of the chart bands and the point color.
type BandColors struct {
	Hypo   color.RGBA
	Normal color.RGBA
	Hyper  color.RGBA
	Points color.RGBA
}

// RenderConfig is the immutable chart and display configuration snapshot.
type RenderConfig struct {
	Unit Unit

	// Thresholds and bound are expressed in Unit.
	HypoThreshold  float64
	HyperThreshold float64
	UpperBound     float64

	WindowHours int
	Colors      BandColors

	Width  int
	Height int
}

// DefaultRenderConfig returns the mg/dL defaults used when the configuration
// file leaves chart settings out.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Unit:           UnitMgDL,
		HypoThreshold:  70,
		HyperThreshold: 180,
		UpperBound:     300,
		WindowHours:    3,
		Colors: BandColors{
			Hypo:   color.RGBA{R: 0xe7, G: 0x4c, B: 0x3c, A: 0xff},
			Normal: color.RGBA{R: 0x2e, G: 0xcc, B: 0x71, A: 0xff},
			Hyper:  color.RGBA{R: 0xf1, G: 0xc4, B: 0x0f, A: 0xff},
			Points: color.RGBA{R: 0x34, G: 0x49, B: 0x5e, A: 0xff},
		},
		Width:  800,
		Height: 400,
	}
}

// Window is the default time window as a duration.
func (c RenderConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// Validate checks that the snapshot describes a drawable chart.
func (c RenderConfig) Validate() error {
	var errs []error
	if c.Unit != UnitMgDL && c.Unit != UnitMmolL {
		errs = append(errs, fmt.Errorf("unknown unit %d", c.Unit))
	}
	if c.WindowHours < 1 || c.WindowHours > MaxWindowHours {
		errs = append(errs, fmt.Errorf("window hours must be between 1 and %d, got %d", MaxWindowHours, c.WindowHours))
	}
	floor := c.Unit.Floor()
	if !(floor < c.HypoThreshold && c.HypoThreshold < c.HyperThreshold && c.HyperThreshold < c.UpperBound) {
		errs = append(errs, fmt.Errorf("thresholds must satisfy %g < hypo (%g) < hyper (%g) < upper bound (%g)",
			floor, c.HypoThreshold, c.HyperThreshold, c.UpperBound))
	}
	if margin := c.Unit.BandMargin(); c.HyperThreshold-c.HypoThreshold <= 2*margin {
		errs = append(errs, fmt.Errorf("hyper (%g) must exceed hypo (%g) by more than twice the band margin %g",
			c.HyperThreshold, c.HypoThreshold, margin))
	}
	if c.Width < minImageSide || c.Width > maxImageSide || c.Height < minImageSide || c.Height > maxImageSide {
		errs = append(errs, fmt.Errorf("image size %dx%d out of range", c.Width, c.Height))
	}
	return errors.Join(errs...)
}

// ParseHexColor parses "#rrggbb" or "rrggbb".
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: expected #rrggbb", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}
