// Package radargrid registers storm-object centroids on a fixed
// latitude/longitude raster grid and extracts fixed-size storm-centered
// sub-images from full-grid radar fields.
//
// Grid convention: row 0 / column 0 is the northwest grid point, rows
// increase southward, columns increase eastward. "Grid point" means the
// center of a grid cell, not its edge, which is why integer row/column
// coordinates carry a -0.5 offset relative to the cell-edge frame.
package radargrid

import (
	"errors"
	"fmt"
	"math"
)

// Geometry describes a regular lat/lon grid by its northwest corner and
// angular spacing. Longitudes are stored in the positive-in-west (0-360)
// convention so that subtraction is well defined across the antimeridian.
type Geometry struct {
	NWLatDeg      float64
	NWLonDeg      float64
	LatSpacingDeg float64
	LonSpacingDeg float64
}

// NewGeometry validates and returns a grid geometry. Spacings must be
// strictly positive and the corner latitude must be a real latitude.
// Validation happens here, once, so the per-centroid arithmetic never has to.
func NewGeometry(nwLatDeg, nwLonDeg, latSpacingDeg, lonSpacingDeg float64) (Geometry, error) {
	if nwLatDeg < -90 || nwLatDeg > 90 || math.IsNaN(nwLatDeg) {
		return Geometry{}, fmt.Errorf("northwest latitude %v is not in [-90, 90]", nwLatDeg)
	}
	if !(latSpacingDeg > 0) {
		return Geometry{}, fmt.Errorf("latitude spacing must be positive, got %v", latSpacingDeg)
	}
	if !(lonSpacingDeg > 0) {
		return Geometry{}, fmt.Errorf("longitude spacing must be positive, got %v", lonSpacingDeg)
	}
	if math.IsNaN(nwLonDeg) || math.IsInf(nwLonDeg, 0) {
		return Geometry{}, errors.New("northwest longitude must be finite")
	}

	return Geometry{
		NWLatDeg:      nwLatDeg,
		NWLonDeg:      NormalizeLonPositiveInWest(nwLonDeg),
		LatSpacingDeg: latSpacingDeg,
		LonSpacingDeg: lonSpacingDeg,
	}, nil
}

// NormalizeLonPositiveInWest maps a degree longitude into [0, 360).
// Radar grids over North America are defined on a 0-360 longitude axis,
// so conventional negative (deg W) longitudes must be wrapped before any
// column arithmetic.
func NormalizeLonPositiveInWest(lonDeg float64) float64 {
	lonDeg = math.Mod(lonDeg, 360)
	if lonDeg < 0 {
		lonDeg += 360
	}
	return lonDeg
}

// CentroidToRowCol converts one centroid to fractional grid coordinates.
// The northwest grid point maps to (-0.5, -0.5): row/column 0 is the
// center of the first cell, not its northwest edge.
func (g Geometry) CentroidToRowCol(latDeg, lonDeg float64) (row, col float64) {
	row = (g.NWLatDeg-latDeg)/g.LatSpacingDeg - 0.5
	col = (NormalizeLonPositiveInWest(lonDeg)-g.NWLonDeg)/g.LonSpacingDeg - 0.5
	return row, col
}

// CentroidsToRowCol converts many centroids at once. The two input slices
// must have the same length; a mismatch is a caller bug and is reported
// once here rather than producing silently truncated output.
func (g Geometry) CentroidsToRowCol(latsDeg, lonsDeg []float64) (rows, cols []float64, err error) {
	if len(latsDeg) != len(lonsDeg) {
		return nil, nil, fmt.Errorf("got %d latitudes but %d longitudes", len(latsDeg), len(lonsDeg))
	}

	rows = make([]float64, len(latsDeg))
	cols = make([]float64, len(lonsDeg))
	for i := range latsDeg {
		rows[i], cols[i] = g.CentroidToRowCol(latsDeg[i], lonsDeg[i])
	}
	return rows, cols, nil
}
