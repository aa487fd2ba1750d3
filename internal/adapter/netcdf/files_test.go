package netcdf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImagePath(t *testing.T) {
	validTime := time.Unix(1516749825, 0).UTC() // 2018-01-23 23:23:45 UTC

	got := ImagePath("storm_images", validTime, "20180123", "echo_top_40dbz_km", 250)

	want := filepath.Join(
		"storm_images", "2018", "20180123", "echo_top_40dbz_km",
		"00250_metres_asl", "storm_images_2018-01-23-232345.nc",
	)
	assert.Equal(t, want, got)
}

func TestImagePath_HeightPadding(t *testing.T) {
	validTime := time.Unix(1516749825, 0).UTC()

	got := ImagePath("top", validTime, "20180123", "reflectivity_dbz", 10000)
	assert.Contains(t, got, "10000_metres_asl")

	got = ImagePath("top", validTime, "20180123", "reflectivity_dbz", 0)
	assert.Contains(t, got, "00000_metres_asl")
}

func TestFindImageFile(t *testing.T) {
	topDir := t.TempDir()
	validTime := time.Unix(1516749825, 0).UTC()

	t.Run("missing file returns error", func(t *testing.T) {
		_, err := FindImageFile(topDir, validTime, "20180123", "echo_top_40dbz_km", 250)
		assert.Error(t, err)
	})

	t.Run("existing file is found", func(t *testing.T) {
		path := ImagePath(topDir, validTime, "20180123", "echo_top_40dbz_km", 250)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		found, err := FindImageFile(topDir, validTime, "20180123", "echo_top_40dbz_km", 250)
		require.NoError(t, err)
		assert.Equal(t, path, found)
	})
}
