// Package wind applies quality control to raw surface-wind observations
// before they are matched to storm objects.
//
// Observations arrive with per-field quality flags from the upstream
// provider. QC is deliberately lenient about direction: a bad direction is
// replaced with due north rather than dropping the row, since downstream
// linkage only cares about speed. A row survives QC as long as at least one
// of its two speeds (sustained or gust) is usable.
package wind

import (
	"math"

	"github.com/couchcryptid/storm-nowcast/internal/radargrid"
)

// Physical bounds for observation fields. Values outside these ranges are
// treated as sensor or encoding errors.
const (
	MinLatitudeDeg = -90.0
	MaxLatitudeDeg = 90.0

	// Longitudes may arrive in either sign convention, so anything in
	// [-180, 360) is accepted and normalized to positive-in-west.
	MinLongitudeDeg = -180.0
	MaxLongitudeDeg = 360.0

	MinElevationMASL = -500.0
	MaxElevationMASL = 9000.0

	MinWindSpeedMS = 0.0
	MaxWindSpeedMS = 100.0

	MinWindDirectionDeg = 0.0
	MaxWindDirectionDeg = 360.0

	// DefaultWindDirectionDeg replaces directions that are out of range or
	// flagged low-quality.
	DefaultWindDirectionDeg = 0.0
)

// Quality flags assigned by the provider. Any flag in lowQualityFlags marks
// the associated value as unusable; every other flag is accepted.
var lowQualityFlags = map[string]bool{
	"X": true,
	"Q": true,
	"k": true,
	"B": true,
}

// Observation is one raw surface-wind report. Speed and direction fields
// carry the provider's quality flags alongside the values.
type Observation struct {
	StationID   string
	StationName string

	LatitudeDeg   float64
	LongitudeDeg  float64
	ElevationMASL float64

	ValidTimeUnixSec int64

	SpeedMS      float64
	DirectionDeg float64

	GustSpeedMS      float64
	GustDirectionDeg float64

	SpeedFlag         string
	DirectionFlag     string
	GustSpeedFlag     string
	GustDirectionFlag string
}

// LowQualityFlag reports whether a provider quality flag marks a value as
// unusable.
func LowQualityFlag(flag string) bool {
	return lowQualityFlags[flag]
}

func validLatitude(latDeg float64) bool {
	return latDeg >= MinLatitudeDeg && latDeg <= MaxLatitudeDeg
}

func validLongitude(lonDeg float64) bool {
	return lonDeg >= MinLongitudeDeg && lonDeg <= MaxLongitudeDeg
}

func validElevation(elevMASL float64) bool {
	return elevMASL >= MinElevationMASL && elevMASL <= MaxElevationMASL
}

func validSpeed(speedMS float64) bool {
	return speedMS >= MinWindSpeedMS && speedMS <= MaxWindSpeedMS
}

func validDirection(dirDeg float64) bool {
	return dirDeg >= MinWindDirectionDeg && dirDeg < MaxWindDirectionDeg
}

// RemoveInvalid drops observations whose position or elevation is out of
// range, and observations with neither a valid sustained speed nor a valid
// gust speed. Out-of-range speeds are set to NaN rather than dropping the
// row, out-of-range directions are replaced with due north, and surviving
// longitudes are normalized to the positive-in-west convention.
//
// The input slice is not modified.
func RemoveInvalid(obs []Observation) []Observation {
	kept := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if !validLatitude(o.LatitudeDeg) || !validLongitude(o.LongitudeDeg) ||
			!validElevation(o.ElevationMASL) {
			continue
		}

		if !validSpeed(o.SpeedMS) {
			o.SpeedMS = math.NaN()
		}
		if !validSpeed(o.GustSpeedMS) {
			o.GustSpeedMS = math.NaN()
		}
		if math.IsNaN(o.SpeedMS) && math.IsNaN(o.GustSpeedMS) {
			continue
		}

		if !validDirection(o.DirectionDeg) {
			o.DirectionDeg = DefaultWindDirectionDeg
		}
		if !validDirection(o.GustDirectionDeg) {
			o.GustDirectionDeg = DefaultWindDirectionDeg
		}

		o.LongitudeDeg = radargrid.NormalizeLonPositiveInWest(o.LongitudeDeg)
		kept = append(kept, o)
	}
	return kept
}

// RemoveLowQuality applies the provider's quality flags: low-quality speeds
// become NaN, low-quality directions become due north, and rows left with
// no usable speed are dropped. Flags on surviving observations are cleared
// since they carry no further information.
//
// The input slice is not modified.
func RemoveLowQuality(obs []Observation) []Observation {
	kept := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if LowQualityFlag(o.SpeedFlag) {
			o.SpeedMS = math.NaN()
		}
		if LowQualityFlag(o.GustSpeedFlag) {
			o.GustSpeedMS = math.NaN()
		}
		if math.IsNaN(o.SpeedMS) && math.IsNaN(o.GustSpeedMS) {
			continue
		}

		if LowQualityFlag(o.DirectionFlag) {
			o.DirectionDeg = DefaultWindDirectionDeg
		}
		if LowQualityFlag(o.GustDirectionFlag) {
			o.GustDirectionDeg = DefaultWindDirectionDeg
		}

		o.SpeedFlag = ""
		o.DirectionFlag = ""
		o.GustSpeedFlag = ""
		o.GustDirectionFlag = ""
		kept = append(kept, o)
	}
	return kept
}

// QualityControl runs the full QC chain: physical-range checks followed by
// quality-flag filtering.
func QualityControl(obs []Observation) []Observation {
	return RemoveLowQuality(RemoveInvalid(obs))
}
