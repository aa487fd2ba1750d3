package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// RadarConfig is the YAML catalog describing the full radar grid and the
// storm images extracted from it.
type RadarConfig struct {
	Grid   GridConfig    `yaml:"grid"`
	Image  ImageConfig   `yaml:"image"`
	Fields []FieldConfig `yaml:"fields"`
}

// GridConfig describes the full radar grid. The northwest corner and the
// per-cell spacing register grid rows and columns to latitude/longitude.
type GridConfig struct {
	NWLatitudeDeg  float64 `yaml:"nw_latitude_deg"`
	NWLongitudeDeg float64 `yaml:"nw_longitude_deg"`
	LatSpacingDeg  float64 `yaml:"lat_spacing_deg"`
	LonSpacingDeg  float64 `yaml:"lon_spacing_deg"`
	NumRows        int     `yaml:"num_rows"`
	NumColumns     int     `yaml:"num_columns"`
}

// ImageConfig describes the storm-centered images cut from the full grid.
type ImageConfig struct {
	NumRows    int     `yaml:"num_rows"`
	NumColumns int     `yaml:"num_columns"`
	FillValue  float64 `yaml:"fill_value"`
}

// FieldConfig names one radar field and the heights it is extracted at.
type FieldConfig struct {
	Name        string `yaml:"name"`
	HeightsMASL []int  `yaml:"heights_m_asl"`
}

// LoadRadarConfig reads and validates the radar catalog at path.
func LoadRadarConfig(path string) (*RadarConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read radar config: %w", err)
	}

	var cfg RadarConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse radar config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("radar config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the catalog for values the extractor cannot work with.
func (c *RadarConfig) Validate() error {
	if c.Grid.NumRows < 2 || c.Grid.NumColumns < 2 {
		return fmt.Errorf("grid must be at least 2x2, got %dx%d", c.Grid.NumRows, c.Grid.NumColumns)
	}
	if c.Grid.LatSpacingDeg <= 0 || c.Grid.LonSpacingDeg <= 0 {
		return fmt.Errorf("grid spacing must be positive, got lat %g lon %g",
			c.Grid.LatSpacingDeg, c.Grid.LonSpacingDeg)
	}
	if c.Image.NumRows <= 0 || c.Image.NumColumns <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", c.Image.NumRows, c.Image.NumColumns)
	}
	if c.Image.NumRows%2 != 0 || c.Image.NumColumns%2 != 0 {
		return fmt.Errorf("image dimensions must be even, got %dx%d", c.Image.NumRows, c.Image.NumColumns)
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("at least one radar field is required")
	}
	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("radar field with empty name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate radar field %q", f.Name)
		}
		seen[f.Name] = true
		if len(f.HeightsMASL) == 0 {
			return fmt.Errorf("radar field %q has no heights", f.Name)
		}
		for _, h := range f.HeightsMASL {
			if h < 0 {
				return fmt.Errorf("radar field %q has negative height %d", f.Name, h)
			}
		}
	}
	return nil
}
