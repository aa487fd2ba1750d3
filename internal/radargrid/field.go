package radargrid

import "fmt"

// Field is a 2-D raster of scalar values (radar reflectivity, echo top,
// azimuthal shear, ...) stored row-major: Values[row*NumCols+col].
// NaN encodes missing data and flows through extraction untouched.
type Field struct {
	NumRows int
	NumCols int
	Values  []float64
}

// NewField allocates a zero-filled field.
func NewField(numRows, numCols int) (*Field, error) {
	if numRows <= 0 || numCols <= 0 {
		return nil, fmt.Errorf("field dimensions must be positive, got %dx%d", numRows, numCols)
	}
	return &Field{
		NumRows: numRows,
		NumCols: numCols,
		Values:  make([]float64, numRows*numCols),
	}, nil
}

// NewFieldFromValues wraps an existing row-major value slice.
func NewFieldFromValues(numRows, numCols int, values []float64) (*Field, error) {
	if numRows <= 0 || numCols <= 0 {
		return nil, fmt.Errorf("field dimensions must be positive, got %dx%d", numRows, numCols)
	}
	if len(values) != numRows*numCols {
		return nil, fmt.Errorf("field %dx%d needs %d values, got %d",
			numRows, numCols, numRows*numCols, len(values))
	}
	return &Field{NumRows: numRows, NumCols: numCols, Values: values}, nil
}

// At returns the value at (row, col). No bounds check: indices come from
// Window arithmetic that is already clamped to the field extent.
func (f *Field) At(row, col int) float64 {
	return f.Values[row*f.NumCols+col]
}

// Set writes the value at (row, col).
func (f *Field) Set(row, col int, v float64) {
	f.Values[row*f.NumCols+col] = v
}

// Row returns the sub-slice for columns [firstCol, lastCol] of one row.
// The slice aliases the field's backing array.
func (f *Field) Row(row, firstCol, lastCol int) []float64 {
	base := row * f.NumCols
	return f.Values[base+firstCol : base+lastCol+1]
}
