package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"github.com/ruteri/dexcom-browser-source/dexcom"
	"github.com/ruteri/dexcom-browser-source/interfaces"
	"gopkg.in/yaml.v3"
)

const (
	EnvUsername = "DEXCOM_USERNAME"
	EnvPassword = "DEXCOM_PASSWORD"
	EnvRegion   = "DEXCOM_REGION"
)

// File is the on-disk configuration.
type File struct {
	Dexcom DexcomConfig `yaml:"dexcom"`
	Chart  ChartConfig  `yaml:"chart"`
}

type DexcomConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Region   string `yaml:"region"`
}

type ChartConfig struct {
	Unit           string       `yaml:"unit"`
	HypoThreshold  float64      `yaml:"hypo_threshold"`
	HyperThreshold float64      `yaml:"hyper_threshold"`
	UpperBound     float64      `yaml:"upper_bound"`
	WindowHours    int          `yaml:"window_hours"`
	Width          int          `yaml:"width"`
	Height         int          `yaml:"height"`
	Colors         ColorsConfig `yaml:"colors"`
}

type ColorsConfig struct {
	Hypo   string `yaml:"hypo"`
	Normal string `yaml:"normal"`
	Hyper  string `yaml:"hyper"`
	Points string `yaml:"points"`
}

// Load reads, defaults, overrides from the environment and validates the
// configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*File, error) {
	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	applyEnvOverrides(&cfg)
	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *File) {
	if val := os.Getenv(EnvUsername); val != "" {
		cfg.Dexcom.Username = val
	}
	if val := os.Getenv(EnvPassword); val != "" {
		cfg.Dexcom.Password = val
	}
	if val := os.Getenv(EnvRegion); val != "" {
		cfg.Dexcom.Region = val
	}
}

// Validate reports every problem at once.
func (f *File) Validate() error {
	var errs []error
	if f.Dexcom.Username == "" {
		errs = append(errs, fmt.Errorf("dexcom.username is required (or set %s)", EnvUsername))
	}
	if f.Dexcom.Password == "" {
		errs = append(errs, fmt.Errorf("dexcom.password is required (or set %s)", EnvPassword))
	}
	if _, err := dexcom.ParseRegion(f.Dexcom.Region); err != nil {
		errs = append(errs, err)
	}
	if _, err := f.RenderConfig(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RenderConfig converts the chart section into a validated snapshot.
func (f *File) RenderConfig() (interfaces.RenderConfig, error) {
	unit, err := interfaces.ParseUnit(f.Chart.Unit)
	if err != nil {
		return interfaces.RenderConfig{}, fmt.Errorf("chart.unit: %w", err)
	}

	rc := interfaces.RenderConfig{
		Unit:           unit,
		HypoThreshold:  f.Chart.HypoThreshold,
		HyperThreshold: f.Chart.HyperThreshold,
		UpperBound:     f.Chart.UpperBound,
		WindowHours:    f.Chart.WindowHours,
		Width:          f.Chart.Width,
		Height:         f.Chart.Height,
	}

	var errs []error
	for _, c := range []struct {
		name string
		hex  string
		dst  *color.RGBA
	}{
		{"hypo", f.Chart.Colors.Hypo, &rc.Colors.Hypo},
		{"normal", f.Chart.Colors.Normal, &rc.Colors.Normal},
		{"hyper", f.Chart.Colors.Hyper, &rc.Colors.Hyper},
		{"points", f.Chart.Colors.Points, &rc.Colors.Points},
	} {
		v, err := interfaces.ParseHexColor(c.hex)
		if err != nil {
			errs = append(errs, fmt.Errorf("chart.colors.%s: %w", c.name, err))
			continue
		}
		*c.dst = v
	}
	if err := errors.Join(errs...); err != nil {
		return interfaces.RenderConfig{}, err
	}

	if err := rc.Validate(); err != nil {
		return interfaces.RenderConfig{}, fmt.Errorf("chart: %w", err)
	}
	return rc, nil
}

// Credentials returns the provider credentials.
func (f *File) Credentials() (dexcom.Credentials, error) {
	region, err := dexcom.ParseRegion(f.Dexcom.Region)
	if err != nil {
		return dexcom.Credentials{}, err
	}
	return dexcom.Credentials{
		Username: f.Dexcom.Username,
		Password: f.Dexcom.Password,
		Region:   region,
	}, nil
}
