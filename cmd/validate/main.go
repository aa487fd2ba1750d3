// Command validate performs integrity checks over a set of extracted
// storm-image files: it verifies that every field and height in the radar
// catalog was extracted for a valid time, that each file's contents match
// the catalog, that the same storms appear across all files, and that the
// image values themselves are sane. Pointing it at a tracking-record
// fixture (as written by genmock) additionally cross-checks storm IDs
// against the records that produced them.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -radar-config config/radar.yaml \
//	  -image-dir /data/storm_images \
//	  -valid-time 2018-01-23T23:23:45Z \
//	  -records data/mock/tracking_records.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/storm-nowcast/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-nowcast/internal/config"
	"github.com/couchcryptid/storm-nowcast/internal/domain"
)

// maxNaNFraction is the largest share of missing cells tolerated in one
// image before it is flagged as suspect.
const maxNaNFraction = 0.5

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	radarPath := flag.String("radar-config", "", "path to the radar catalog YAML")
	imageDir := flag.String("image-dir", "", "top-level directory holding extracted storm images")
	validTimeStr := flag.String("valid-time", "", "valid time to validate (RFC 3339)")
	recordsPath := flag.String("records", "", "optional tracking-record JSON fixture to cross-check storm IDs")
	flag.Parse()

	if *radarPath == "" || *imageDir == "" || *validTimeStr == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*radarPath, *imageDir, *validTimeStr, *recordsPath); code != 0 {
		os.Exit(code)
	}
}

func run(radarPath, imageDir, validTimeStr, recordsPath string) int {
	fmt.Println("=== Storm Image Integrity Validation ===")
	fmt.Println()

	radar, err := config.LoadRadarConfig(radarPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load radar catalog: %v\n", err)
		return 1
	}

	validTime, err := time.Parse(time.RFC3339, validTimeStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse -valid-time: %v\n", err)
		return 1
	}
	validTime = validTime.UTC()
	spcDate := domain.TimeToSPCDate(validTime)

	var records []domain.RawTrackingRecord
	if recordsPath != "" {
		records, err = loadRecords(recordsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load tracking records: %v\n", err)
			return 1
		}
	}

	sets, coverage := loadImageSets(radar, imageDir, validTime, spcDate)

	phases := []*phase{
		coverage,
		validateImageIntegrity(sets, radar, validTime),
		validateStormConsistency(sets, records),
		validateValueSanity(sets),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Image files: %d, storms per file: %s\n", len(sets), stormCountSummary(sets))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// --- Data loading ---

func loadRecords(path string) ([]domain.RawTrackingRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []domain.RawTrackingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// loadedSet pairs an image set with the catalog entry it was found under.
type loadedSet struct {
	fieldName string
	heightM   int
	path      string
	set       *netcdf.ImageSet
}

// loadImageSets reads every expected image file for the valid time. Missing
// or unreadable files become errors in the coverage phase; readable files
// flow into the later phases.
func loadImageSets(radar *config.RadarConfig, imageDir string, validTime time.Time, spcDate string) ([]loadedSet, *phase) {
	p := &phase{name: "Phase 1: Catalog Coverage (files present)"}

	var sets []loadedSet
	for _, fieldCfg := range radar.Fields {
		for _, height := range fieldCfg.HeightsMASL {
			path, err := netcdf.FindImageFile(imageDir, validTime, spcDate, fieldCfg.Name, height)
			if err != nil {
				p.errorf("%s at %d m: %v", fieldCfg.Name, height, err)
				continue
			}
			set, err := netcdf.ReadImageSet(path)
			if err != nil {
				p.errorf("%s at %d m: %v", fieldCfg.Name, height, err)
				continue
			}
			sets = append(sets, loadedSet{
				fieldName: fieldCfg.Name,
				heightM:   height,
				path:      path,
				set:       set,
			})
		}
	}
	return sets, p
}

// --- Phase 2: Image Integrity ---
// Validates each file's metadata and shapes against the radar catalog.

func validateImageIntegrity(sets []loadedSet, radar *config.RadarConfig, validTime time.Time) *phase {
	p := &phase{name: "Phase 2: Image Integrity (vs catalog)"}

	for _, ls := range sets {
		if ls.set.FieldName != ls.fieldName {
			p.errorf("%s: field attribute %q does not match path field %q", ls.path, ls.set.FieldName, ls.fieldName)
		}
		if ls.set.HeightMetresASL != ls.heightM {
			p.errorf("%s: height attribute %d does not match path height %d", ls.path, ls.set.HeightMetresASL, ls.heightM)
		}
		if ls.set.ValidTimeUnixSec != validTime.Unix() {
			p.errorf("%s: valid time attribute %d, expected %d", ls.path, ls.set.ValidTimeUnixSec, validTime.Unix())
		}

		for i, img := range ls.set.Images {
			if img.NumRows != radar.Image.NumRows || img.NumCols != radar.Image.NumColumns {
				p.errorf("%s: image %d is %dx%d, catalog says %dx%d",
					ls.path, i, img.NumRows, img.NumCols, radar.Image.NumRows, radar.Image.NumColumns)
			}
		}
	}
	return p
}

// --- Phase 3: Storm Consistency ---
// Validates that every file holds the same storms, and that they match the
// tracking-record fixture when one was given.

func validateStormConsistency(sets []loadedSet, records []domain.RawTrackingRecord) *phase {
	p := &phase{name: "Phase 3: Storm Consistency (IDs)"}
	if len(sets) == 0 {
		return p
	}

	reference := sets[0]
	refIDs := make(map[string]bool, len(reference.set.StormIDs))
	for _, id := range reference.set.StormIDs {
		if id == "" {
			p.errorf("%s: empty storm ID", reference.path)
			continue
		}
		if refIDs[id] {
			p.errorf("%s: duplicate storm ID %q", reference.path, id)
		}
		refIDs[id] = true
	}

	// Every (field, height) file at one valid time comes from the same
	// batch of storm objects, so ID sets must agree exactly.
	for _, ls := range sets[1:] {
		if len(ls.set.StormIDs) != len(reference.set.StormIDs) {
			p.errorf("%s: %d storms, %s has %d", ls.path, len(ls.set.StormIDs), reference.path, len(reference.set.StormIDs))
			continue
		}
		for _, id := range ls.set.StormIDs {
			if !refIDs[id] {
				p.errorf("%s: storm %q not present in %s", ls.path, id, reference.path)
			}
		}
	}

	for _, rec := range records {
		if !refIDs[rec.StormID] {
			p.errorf("tracking record %q has no extracted images", rec.StormID)
		}
	}
	return p
}

// --- Phase 4: Value Sanity ---
// Validates the image values themselves: finite or NaN, and not mostly missing.

func validateValueSanity(sets []loadedSet) *phase {
	p := &phase{name: "Phase 4: Value Sanity (cell values)"}

	for _, ls := range sets {
		for i, img := range ls.set.Images {
			var nanCount int
			for _, v := range img.Values {
				switch {
				case math.IsInf(v, 0):
					p.errorf("%s: image %d (%s) contains an infinite value", ls.path, i, ls.set.StormIDs[i])
				case math.IsNaN(v):
					nanCount++
				}
			}
			if frac := float64(nanCount) / float64(len(img.Values)); frac > maxNaNFraction {
				p.errorf("%s: image %d (%s) is %.0f%% missing cells", ls.path, i, ls.set.StormIDs[i], frac*100)
			}
		}
	}
	return p
}

// --- Helpers ---

func stormCountSummary(sets []loadedSet) string {
	if len(sets) == 0 {
		return "n/a"
	}
	counts := make(map[int]bool)
	for _, ls := range sets {
		counts[len(ls.set.StormIDs)] = true
	}
	if len(counts) == 1 {
		return fmt.Sprintf("%d", len(sets[0].set.StormIDs))
	}
	return "inconsistent"
}
