package netcdf

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	nc "github.com/fhs/go-netcdf/netcdf"

	"github.com/couchcryptid/storm-nowcast/internal/radargrid"
)

// Coordinate variable names tried in order when opening a grid file.
var (
	latVarNames = []string{"latitude", "lat", "y"}
	lonVarNames = []string{"longitude", "lon", "x"}
)

// FullGrid is one radar field on the full grid, with the georegistration
// needed to map storm centroids onto it.
type FullGrid struct {
	Geometry radargrid.Geometry
	Field    *radargrid.Field
}

// GridSource loads a full radar grid for one field from a file. Implemented
// by FileGridStore and by CachedGridStore, which decorates it.
type GridSource interface {
	LoadGrid(path, dataVarName string) (*FullGrid, error)
}

// FileGridStore reads full radar grids directly from NetCDF files.
type FileGridStore struct{}

// NewFileGridStore creates a store that reads grids from disk on every call.
func NewFileGridStore() *FileGridStore {
	return &FileGridStore{}
}

// LoadGrid reads the named 2-D variable and its coordinate axes from a
// NetCDF file. Rows are reordered north-to-south if the file stores
// latitude ascending, and cells equal to the variable's fill value are
// mapped to NaN.
func (s *FileGridStore) LoadGrid(path, dataVarName string) (*FullGrid, error) {
	ds, err := nc.OpenFile(path, nc.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open grid file %s: %w", path, err)
	}
	defer func() { _ = ds.Close() }()

	lats, err := readAxis(ds, latVarNames)
	if err != nil {
		return nil, fmt.Errorf("read latitude axis from %s: %w", path, err)
	}
	lons, err := readAxis(ds, lonVarNames)
	if err != nil {
		return nil, fmt.Errorf("read longitude axis from %s: %w", path, err)
	}
	if len(lats) < 2 || len(lons) < 2 {
		return nil, fmt.Errorf("grid in %s is degenerate: %d x %d axis points", path, len(lats), len(lons))
	}

	dataVar, err := ds.Var(dataVarName)
	if err != nil {
		return nil, fmt.Errorf("variable %q not found in %s: %w", dataVarName, path, err)
	}

	numRows := len(lats)
	numCols := len(lons)
	values, err := readMatrix(dataVar, numRows, numCols)
	if err != nil {
		return nil, fmt.Errorf("read %q from %s: %w", dataVarName, path, err)
	}

	if fill, ok := fillValue(dataVar); ok {
		for i, v := range values {
			if v == fill {
				values[i] = math.NaN()
			}
		}
	}

	// Grid registration assumes row 0 is the northernmost row. Files that
	// store latitude ascending get their rows flipped on load.
	if lats[0] < lats[len(lats)-1] {
		flipRows(values, numRows, numCols)
		for i, j := 0, len(lats)-1; i < j; i, j = i+1, j-1 {
			lats[i], lats[j] = lats[j], lats[i]
		}
	}

	latSpacing := (lats[0] - lats[len(lats)-1]) / float64(len(lats)-1)
	lonSpacing := (lons[len(lons)-1] - lons[0]) / float64(len(lons)-1)

	geom, err := radargrid.NewGeometry(lats[0], lons[0], latSpacing, lonSpacing)
	if err != nil {
		return nil, fmt.Errorf("grid geometry in %s: %w", path, err)
	}

	field, err := radargrid.NewFieldFromValues(numRows, numCols, values)
	if err != nil {
		return nil, err
	}

	return &FullGrid{Geometry: geom, Field: field}, nil
}

// gridFillValue marks missing cells in grid files written by WriteGrid.
const gridFillValue = -9999.0

// WriteGrid writes a full radar grid to path, creating intermediate
// directories. Latitude is stored descending so row 0 is the northernmost
// row, and NaN cells are stored as the fill value.
func WriteGrid(path, dataVarName string, grid *FullGrid) error {
	if grid.Field == nil {
		return fmt.Errorf("grid has no field")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create grid directory: %w", err)
	}

	ds, err := nc.CreateFile(path, nc.CLOBBER|nc.NETCDF4)
	if err != nil {
		return fmt.Errorf("create grid file %s: %w", path, err)
	}
	defer func() { _ = ds.Close() }()

	numRows := grid.Field.NumRows
	numCols := grid.Field.NumCols

	latDim, err := ds.AddDim(latVarNames[0], uint64(numRows))
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim(lonVarNames[0], uint64(numCols))
	if err != nil {
		return err
	}

	latVar, err := ds.AddVar(latVarNames[0], nc.DOUBLE, []nc.Dim{latDim})
	if err != nil {
		return err
	}
	lats := make([]float64, numRows)
	for i := range lats {
		lats[i] = grid.Geometry.NWLatDeg - float64(i)*grid.Geometry.LatSpacingDeg
	}
	if err := latVar.WriteFloat64s(lats); err != nil {
		return fmt.Errorf("write latitude axis: %w", err)
	}

	lonVar, err := ds.AddVar(lonVarNames[0], nc.DOUBLE, []nc.Dim{lonDim})
	if err != nil {
		return err
	}
	lons := make([]float64, numCols)
	for i := range lons {
		lons[i] = grid.Geometry.NWLonDeg + float64(i)*grid.Geometry.LonSpacingDeg
	}
	if err := lonVar.WriteFloat64s(lons); err != nil {
		return fmt.Errorf("write longitude axis: %w", err)
	}

	dataVar, err := ds.AddVar(dataVarName, nc.DOUBLE, []nc.Dim{latDim, lonDim})
	if err != nil {
		return err
	}
	values := make([]float64, len(grid.Field.Values))
	for i, v := range grid.Field.Values {
		if math.IsNaN(v) {
			values[i] = gridFillValue
		} else {
			values[i] = v
		}
	}
	if err := dataVar.WriteFloat64s(values); err != nil {
		return fmt.Errorf("write %q: %w", dataVarName, err)
	}
	if err := dataVar.Attr("_FillValue").WriteFloat64s([]float64{gridFillValue}); err != nil {
		return err
	}

	return nil
}

// readAxis reads the first matching 1-D coordinate variable.
func readAxis(ds nc.Dataset, names []string) ([]float64, error) {
	for _, name := range names {
		v, err := ds.Var(name)
		if err != nil {
			continue
		}
		data, err := readVector(v)
		if err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("no coordinate variable found (tried %v)", names)
}

// readVector reads a 1-D variable as float64, converting from float or int
// storage where needed.
func readVector(v nc.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, err
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1-D variable, got %d-D", len(dims))
	}
	n, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	return readFloats(v, int(n))
}

// readMatrix reads a 2-D variable as a row-major float64 slice, checking
// that its shape matches the coordinate axes.
func readMatrix(v nc.Var, numRows, numCols int) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, err
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("expected 2-D variable, got %d-D", len(dims))
	}
	d0, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	d1, err := dims[1].Len()
	if err != nil {
		return nil, err
	}
	if d0 != uint64(numRows) || d1 != uint64(numCols) {
		return nil, fmt.Errorf("shape [%d, %d] does not match axes [%d, %d]", d0, d1, numRows, numCols)
	}
	return readFloats(v, numRows*numCols)
}

func readFloats(v nc.Var, n int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, err
	}
	switch t {
	case nc.DOUBLE:
		out := make([]float64, n)
		if err := v.ReadFloat64s(out); err != nil {
			return nil, err
		}
		return out, nil
	case nc.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case nc.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case nc.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported variable type %v", t)
	}
}

// fillValue returns the variable's _FillValue or missing_value attribute.
func fillValue(v nc.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		a := v.Attr(name)
		if n, err := a.Len(); err != nil || n == 0 {
			continue
		}
		buf64 := make([]float64, 1)
		if err := a.ReadFloat64s(buf64); err == nil {
			return buf64[0], true
		}
		buf32 := make([]float32, 1)
		if err := a.ReadFloat32s(buf32); err == nil {
			return float64(buf32[0]), true
		}
	}
	return 0, false
}

func flipRows(values []float64, numRows, numCols int) {
	for i, j := 0, numRows-1; i < j; i, j = i+1, j-1 {
		top := values[i*numCols : (i+1)*numCols]
		bottom := values[j*numCols : (j+1)*numCols]
		for k := range top {
			top[k], bottom[k] = bottom[k], top[k]
		}
	}
}
