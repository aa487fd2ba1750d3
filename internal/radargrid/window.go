package radargrid

import "math"

// Window describes the sub-rectangle of a full grid to copy into a
// fixed-size storm image, plus the synthetic padding required on each
// side where the ideal window ran off the full grid.
//
// Invariant (held for any finite center, including centers entirely
// outside the grid):
//
//	(LastRow - FirstRow + 1) + TopPaddingRows + BottomPaddingRows == numImageRows
//
// and the analogous equality for columns. FirstRow may exceed LastRow
// when the ideal window lies wholly outside the grid; the copy range is
// then empty and padding accounts for the full image extent.
type Window struct {
	FirstRow int
	LastRow  int
	FirstCol int
	LastCol  int

	TopPaddingRows    int
	BottomPaddingRows int
	LeftPaddingCols   int
	RightPaddingCols  int
}

// roundHalfUp rounds to the nearest integer with half-integer ties going
// toward +inf: 1.5 -> 2, 2.5 -> 3, -0.5 -> 0. Centroids routinely land
// exactly on a .5 boundary (grid-point-centered tracking), so the
// tie-break is load-bearing and must not drift to half-to-even.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// ComputeWindow finds the clipped copy range and padding counts for a
// numImageRows x numImageCols window centered on the fractional
// (centerRow, centerCol). It is a total function: callers validate
// dimensions up front and no input combination fails here.
func ComputeWindow(numFullRows, numFullCols, numImageRows, numImageCols int, centerRow, centerCol float64) Window {
	firstRow, lastRow, topPad, bottomPad := clipSpan(numFullRows, numImageRows, centerRow)
	firstCol, lastCol, leftPad, rightPad := clipSpan(numFullCols, numImageCols, centerCol)

	return Window{
		FirstRow:          firstRow,
		LastRow:           lastRow,
		FirstCol:          firstCol,
		LastCol:           lastCol,
		TopPaddingRows:    topPad,
		BottomPaddingRows: bottomPad,
		LeftPaddingCols:   leftPad,
		RightPaddingCols:  rightPad,
	}
}

// clipSpan handles one dimension: the ideal span holds exactly size cells
// centered on center, then is clamped to [0, fullSize-1] with the clipped
// cells converted to padding.
func clipSpan(fullSize, size int, center float64) (first, last, lowPad, highPad int) {
	idealFirst := roundHalfUp(center) - size/2
	idealLast := idealFirst + size - 1

	first = max(idealFirst, 0)
	last = min(idealLast, fullSize-1)

	return first, last, first - idealFirst, idealLast - last
}
