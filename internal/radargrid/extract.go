package radargrid

// ExtractImage copies a numImageRows x numImageCols storm-centered
// sub-image out of the full grid. Cells the window would take from
// beyond the full grid's edge receive fillValue; in-bounds missing data
// (NaN) is copied through unchanged. The output always has exactly the
// requested shape, no matter how far the center lies outside the grid.
func ExtractImage(full *Field, centerRow, centerCol float64, numImageRows, numImageCols int, fillValue float64) *Field {
	win := ComputeWindow(full.NumRows, full.NumCols, numImageRows, numImageCols, centerRow, centerCol)

	out := &Field{
		NumRows: numImageRows,
		NumCols: numImageCols,
		Values:  make([]float64, numImageRows*numImageCols),
	}
	if fillValue != 0 {
		for i := range out.Values {
			out.Values[i] = fillValue
		}
	}

	// Empty copy range: the ideal window lies wholly outside the grid
	// and the image is pure fill.
	if win.FirstRow > win.LastRow || win.FirstCol > win.LastCol {
		return out
	}

	for srcRow := win.FirstRow; srcRow <= win.LastRow; srcRow++ {
		dstRow := win.TopPaddingRows + (srcRow - win.FirstRow)
		copy(out.Row(dstRow, win.LeftPaddingCols, win.LeftPaddingCols+(win.LastCol-win.FirstCol)),
			full.Row(srcRow, win.FirstCol, win.LastCol))
	}
	return out
}
