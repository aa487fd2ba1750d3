// Command genmock generates synthetic radar fixtures for local development:
// full-grid NetCDF files for every field and height in the radar catalog,
// plus a JSON file of tracking records whose centroids fall inside the grid.
// The grids are laid out exactly where the extractor expects to find them,
// so a generated fixture set can be fed straight through the pipeline.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -radar-config config/radar.yaml \
//	  -grid-dir data/radar_grids \
//	  -records-out data/mock/tracking_records.json \
//	  -valid-time 2018-01-23T23:23:45Z \
//	  -storms 25
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-nowcast/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-nowcast/internal/config"
	"github.com/couchcryptid/storm-nowcast/internal/domain"
	"github.com/couchcryptid/storm-nowcast/internal/radargrid"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	radarPath := flag.String("radar-config", "", "path to the radar catalog YAML")
	gridDir := flag.String("grid-dir", "", "top-level directory for generated full-grid files")
	recordsOut := flag.String("records-out", "", "output path for the tracking-record JSON fixture")
	validTimeStr := flag.String("valid-time", "2018-01-23T23:23:45Z", "valid time for the generated grids (RFC 3339)")
	numStorms := flag.Int("storms", 25, "number of tracking records to generate")
	seed := flag.Int64("seed", 1, "random seed, fixed by default for reproducible fixtures")
	flag.Parse()

	if *radarPath == "" || *gridDir == "" || *recordsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -radar-config, -grid-dir, -records-out")
	}

	radar, err := config.LoadRadarConfig(*radarPath)
	if err != nil {
		return fmt.Errorf("loading radar catalog: %w", err)
	}

	validTime, err := time.Parse(time.RFC3339, *validTimeStr)
	if err != nil {
		return fmt.Errorf("parsing -valid-time: %w", err)
	}
	validTime = validTime.UTC()
	spcDate := domain.TimeToSPCDate(validTime)

	// Freeze time so regenerated fixtures are byte-identical.
	domain.SetClock(clockwork.NewFakeClockAt(validTime.Add(time.Minute)))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed))

	geometry, err := radargrid.NewGeometry(
		radar.Grid.NWLatitudeDeg,
		radar.Grid.NWLongitudeDeg,
		radar.Grid.LatSpacingDeg,
		radar.Grid.LonSpacingDeg,
	)
	if err != nil {
		return fmt.Errorf("radar catalog geometry: %w", err)
	}

	numGrids := 0
	for _, fieldCfg := range radar.Fields {
		for _, height := range fieldCfg.HeightsMASL {
			path := netcdf.GridPath(*gridDir, validTime, spcDate, fieldCfg.Name, height)
			grid := syntheticGrid(rng, geometry, radar.Grid.NumRows, radar.Grid.NumColumns)
			if err := netcdf.WriteGrid(path, fieldCfg.Name, grid); err != nil {
				return fmt.Errorf("writing grid for %s at %d m: %w", fieldCfg.Name, height, err)
			}
			numGrids++
		}
	}
	log.Printf("wrote %d full-grid files under %s", numGrids, *gridDir)

	records := syntheticRecords(rng, geometry, radar.Grid, validTime, *numStorms)
	if err := writeJSON(*recordsOut, records); err != nil {
		return fmt.Errorf("writing tracking records: %w", err)
	}
	log.Printf("wrote %d tracking records: %s", len(records), *recordsOut)

	printSample(records, radar)
	return nil
}

// syntheticGrid fills a full grid with a smooth bounded field plus a
// sprinkling of missing cells, so extracted images exercise both real
// values and NaN passthrough.
func syntheticGrid(rng *rand.Rand, geometry radargrid.Geometry, numRows, numCols int) *netcdf.FullGrid {
	field, _ := radargrid.NewField(numRows, numCols)
	for row := 0; row < numRows; row++ {
		for col := 0; col < numCols; col++ {
			v := 30 + 20*math.Sin(float64(row)/40)*math.Cos(float64(col)/40) + rng.Float64()*5
			if rng.Float64() < 0.02 {
				v = math.NaN()
			}
			field.Set(row, col, v)
		}
	}
	return &netcdf.FullGrid{Geometry: geometry, Field: field}
}

// syntheticRecords generates tracking records whose centroids sit well
// inside the grid, away from the edges where extraction windows clip.
func syntheticRecords(rng *rand.Rand, geometry radargrid.Geometry, grid config.GridConfig, validTime time.Time, n int) []domain.RawTrackingRecord {
	latExtent := float64(grid.NumRows-1) * grid.LatSpacingDeg
	lonExtent := float64(grid.NumColumns-1) * grid.LonSpacingDeg

	records := make([]domain.RawTrackingRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, domain.RawTrackingRecord{
			StormID:      fmt.Sprintf("storm-%04d", i),
			CentroidLat:  geometry.NWLatDeg - latExtent*(0.1+0.8*rng.Float64()),
			CentroidLon:  geometry.NWLonDeg + lonExtent*(0.1+0.8*rng.Float64()),
			ValidTimeSec: validTime.Unix(),
			TrackingKM2:  50 + rng.Float64()*250,
			Age:          int64(rng.Intn(3600)),
		})
	}
	return records
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printSample(records []domain.RawTrackingRecord, radar *config.RadarConfig) {
	if len(records) == 0 {
		return
	}
	r := records[0]
	fmt.Println("\n=== Fixture summary ===")
	fmt.Printf("Fields: %d, image size: %dx%d\n",
		len(radar.Fields), radar.Image.NumRows, radar.Image.NumColumns)
	fmt.Printf("First record:\n")
	fmt.Printf("  ID: %s\n", r.StormID)
	fmt.Printf("  Centroid: %.4f, %.4f\n", r.CentroidLat, r.CentroidLon)
	fmt.Printf("  ValidTime: %s\n", time.Unix(r.ValidTimeSec, 0).UTC().Format(time.RFC3339))
	fmt.Printf("  TrackingScale: %.1f km2\n", r.TrackingKM2)
}
