package netcdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	nc "github.com/fhs/go-netcdf/netcdf"

	"github.com/couchcryptid/storm-nowcast/internal/radargrid"
)

// Variable and dimension names inside a storm-image file.
const (
	imageMatrixVar = "storm_image_matrix"
	stormIDVar     = "storm_ids"

	dimStormObject = "storm_object"
	dimImageRow    = "grid_row"
	dimImageColumn = "grid_column"
	dimStormIDChar = "storm_id_character"

	attrFieldName = "radar_field_name"
	attrHeight    = "radar_height_m_asl"
	attrValidTime = "valid_time_unix_sec"
)

// ImageSet is the contents of one storm-image file: every image extracted
// for one (valid time, radar field, height).
type ImageSet struct {
	FieldName        string
	HeightMetresASL  int
	ValidTimeUnixSec int64
	StormIDs         []string
	Images           []*radargrid.Field
}

func (s *ImageSet) validate() error {
	if s.FieldName == "" {
		return fmt.Errorf("image set has no field name")
	}
	if len(s.StormIDs) != len(s.Images) {
		return fmt.Errorf("image set has %d storm IDs but %d images", len(s.StormIDs), len(s.Images))
	}
	if len(s.Images) == 0 {
		return fmt.Errorf("image set is empty")
	}
	numRows := s.Images[0].NumRows
	numCols := s.Images[0].NumCols
	for i, img := range s.Images {
		if img.NumRows != numRows || img.NumCols != numCols {
			return fmt.Errorf("image %d is %dx%d, expected %dx%d", i, img.NumRows, img.NumCols, numRows, numCols)
		}
	}
	return nil
}

// WriteImageSet writes an image set to its canonical path under topDir,
// creating intermediate directories, and returns the path written.
func WriteImageSet(topDir, spcDate string, set *ImageSet) (string, error) {
	if err := set.validate(); err != nil {
		return "", err
	}

	validTime := time.Unix(set.ValidTimeUnixSec, 0)
	path := ImagePath(topDir, validTime, spcDate, set.FieldName, set.HeightMetresASL)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create image directory: %w", err)
	}

	ds, err := nc.CreateFile(path, nc.CLOBBER|nc.NETCDF4)
	if err != nil {
		return "", fmt.Errorf("create image file %s: %w", path, err)
	}
	defer func() { _ = ds.Close() }()

	numObjects := len(set.Images)
	numRows := set.Images[0].NumRows
	numCols := set.Images[0].NumCols
	idLen := maxIDLength(set.StormIDs)

	objDim, err := ds.AddDim(dimStormObject, uint64(numObjects))
	if err != nil {
		return "", err
	}
	rowDim, err := ds.AddDim(dimImageRow, uint64(numRows))
	if err != nil {
		return "", err
	}
	colDim, err := ds.AddDim(dimImageColumn, uint64(numCols))
	if err != nil {
		return "", err
	}
	charDim, err := ds.AddDim(dimStormIDChar, uint64(idLen))
	if err != nil {
		return "", err
	}

	matrixVar, err := ds.AddVar(imageMatrixVar, nc.DOUBLE, []nc.Dim{objDim, rowDim, colDim})
	if err != nil {
		return "", err
	}
	flat := make([]float64, 0, numObjects*numRows*numCols)
	for _, img := range set.Images {
		flat = append(flat, img.Values...)
	}
	if err := matrixVar.WriteFloat64s(flat); err != nil {
		return "", fmt.Errorf("write image matrix: %w", err)
	}

	if err := matrixVar.Attr(attrFieldName).WriteBytes([]byte(set.FieldName)); err != nil {
		return "", err
	}
	if err := matrixVar.Attr(attrHeight).WriteInt32s([]int32{int32(set.HeightMetresASL)}); err != nil {
		return "", err
	}
	if err := matrixVar.Attr(attrValidTime).WriteInt64s([]int64{set.ValidTimeUnixSec}); err != nil {
		return "", err
	}

	idVar, err := ds.AddVar(stormIDVar, nc.CHAR, []nc.Dim{objDim, charDim})
	if err != nil {
		return "", err
	}
	idBytes := make([]byte, numObjects*idLen)
	for i, id := range set.StormIDs {
		copy(idBytes[i*idLen:(i+1)*idLen], id)
	}
	if err := idVar.WriteBytes(idBytes); err != nil {
		return "", fmt.Errorf("write storm IDs: %w", err)
	}

	return path, nil
}

// ReadImageSet reads a storm-image file written by WriteImageSet.
func ReadImageSet(path string) (*ImageSet, error) {
	ds, err := nc.OpenFile(path, nc.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open image file %s: %w", path, err)
	}
	defer func() { _ = ds.Close() }()

	matrixVar, err := ds.Var(imageMatrixVar)
	if err != nil {
		return nil, fmt.Errorf("variable %q not found in %s: %w", imageMatrixVar, path, err)
	}
	dims, err := matrixVar.Dims()
	if err != nil {
		return nil, err
	}
	if len(dims) != 3 {
		return nil, fmt.Errorf("image matrix in %s is %d-D, expected 3-D", path, len(dims))
	}
	numObjects, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	numRows, err := dims[1].Len()
	if err != nil {
		return nil, err
	}
	numCols, err := dims[2].Len()
	if err != nil {
		return nil, err
	}

	flat := make([]float64, numObjects*numRows*numCols)
	if err := matrixVar.ReadFloat64s(flat); err != nil {
		return nil, fmt.Errorf("read image matrix: %w", err)
	}

	set := &ImageSet{
		Images: make([]*radargrid.Field, 0, numObjects),
	}

	perImage := int(numRows * numCols)
	for i := 0; i < int(numObjects); i++ {
		img, err := radargrid.NewFieldFromValues(int(numRows), int(numCols), flat[i*perImage:(i+1)*perImage])
		if err != nil {
			return nil, err
		}
		set.Images = append(set.Images, img)
	}

	nameBuf := make([]byte, attrByteLen(matrixVar, attrFieldName))
	if err := matrixVar.Attr(attrFieldName).ReadBytes(nameBuf); err != nil {
		return nil, fmt.Errorf("read %s attribute: %w", attrFieldName, err)
	}
	set.FieldName = string(nameBuf)

	height := make([]int32, 1)
	if err := matrixVar.Attr(attrHeight).ReadInt32s(height); err != nil {
		return nil, fmt.Errorf("read %s attribute: %w", attrHeight, err)
	}
	set.HeightMetresASL = int(height[0])

	validTime := make([]int64, 1)
	if err := matrixVar.Attr(attrValidTime).ReadInt64s(validTime); err != nil {
		return nil, fmt.Errorf("read %s attribute: %w", attrValidTime, err)
	}
	set.ValidTimeUnixSec = validTime[0]

	idVar, err := ds.Var(stormIDVar)
	if err != nil {
		return nil, fmt.Errorf("variable %q not found in %s: %w", stormIDVar, path, err)
	}
	idDims, err := idVar.Dims()
	if err != nil {
		return nil, err
	}
	if len(idDims) != 2 {
		return nil, fmt.Errorf("storm IDs in %s are %d-D, expected 2-D", path, len(idDims))
	}
	idLen, err := idDims[1].Len()
	if err != nil {
		return nil, err
	}
	idBytes := make([]byte, numObjects*idLen)
	if err := idVar.ReadBytes(idBytes); err != nil {
		return nil, fmt.Errorf("read storm IDs: %w", err)
	}
	set.StormIDs = make([]string, 0, numObjects)
	for i := 0; i < int(numObjects); i++ {
		raw := idBytes[i*int(idLen) : (i+1)*int(idLen)]
		set.StormIDs = append(set.StormIDs, string(bytes.TrimRight(raw, "\x00")))
	}

	return set, nil
}

func maxIDLength(ids []string) int {
	maxLen := 1
	for _, id := range ids {
		if len(id) > maxLen {
			maxLen = len(id)
		}
	}
	return maxLen
}

func attrByteLen(v nc.Var, name string) uint64 {
	n, err := v.Attr(name).Len()
	if err != nil {
		return 0
	}
	return n
}
