// Package netcdf reads full radar grids from NetCDF files and persists
// extracted storm images back to NetCDF, one file per valid time, radar
// field, and height.
package netcdf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	imageFilePrefix = "storm_images"
	gridFilePrefix  = "full_grid"
	fileTimeFormat  = "2006-01-02-150405"
)

// ImagePath returns the canonical location of a storm-image file:
//
//	<top>/<yyyy>/<spcdate>/<field>/<height>_metres_asl/storm_images_<time>.nc
//
// The height directory is zero-padded to five digits and the file time is
// the valid time formatted as yyyy-mm-dd-HHMMSS in UTC.
func ImagePath(topDir string, validTime time.Time, spcDate, fieldName string, heightMetresASL int) string {
	utc := validTime.UTC()
	return filepath.Join(
		topDir,
		utc.Format("2006"),
		spcDate,
		fieldName,
		fmt.Sprintf("%05d_metres_asl", heightMetresASL),
		fmt.Sprintf("%s_%s.nc", imageFilePrefix, utc.Format(fileTimeFormat)),
	)
}

// GridPath returns the location of a full radar grid, which follows the
// same directory layout as storm-image files.
func GridPath(topDir string, validTime time.Time, spcDate, fieldName string, heightMetresASL int) string {
	utc := validTime.UTC()
	return filepath.Join(
		topDir,
		utc.Format("2006"),
		spcDate,
		fieldName,
		fmt.Sprintf("%05d_metres_asl", heightMetresASL),
		fmt.Sprintf("%s_%s.nc", gridFilePrefix, utc.Format(fileTimeFormat)),
	)
}

// FindImageFile returns the canonical path of a storm-image file and fails
// if no file exists there.
func FindImageFile(topDir string, validTime time.Time, spcDate, fieldName string, heightMetresASL int) (string, error) {
	path := ImagePath(topDir, validTime, spcDate, fieldName, heightMetresASL)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("storm-image file not found at %s: %w", path, err)
	}
	return path, nil
}
