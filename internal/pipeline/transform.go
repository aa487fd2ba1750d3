package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-nowcast/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-nowcast/internal/config"
	"github.com/couchcryptid/storm-nowcast/internal/domain"
	"github.com/couchcryptid/storm-nowcast/internal/observability"
	"github.com/couchcryptid/storm-nowcast/internal/radargrid"
)

// ImageExtractor implements Transformer. For every valid time in a batch it
// loads the configured full radar grids, registers each storm centroid on
// the grid, cuts a storm-centered window per (field, height), persists the
// images as NetCDF files, and assembles one manifest per valid time.
type ImageExtractor struct {
	grids    netcdf.GridSource
	radar    *config.RadarConfig
	geometry radargrid.Geometry
	gridDir  string
	imageDir string
	workers  int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewImageExtractor creates an ImageExtractor backed by the given grid
// source and radar catalog.
func NewImageExtractor(grids netcdf.GridSource, radar *config.RadarConfig, gridDir, imageDir string, workers int, logger *slog.Logger, metrics *observability.Metrics) (*ImageExtractor, error) {
	geometry, err := radargrid.NewGeometry(
		radar.Grid.NWLatitudeDeg,
		radar.Grid.NWLongitudeDeg,
		radar.Grid.LatSpacingDeg,
		radar.Grid.LonSpacingDeg,
	)
	if err != nil {
		return nil, fmt.Errorf("radar catalog geometry: %w", err)
	}
	if workers < 1 {
		workers = 1
	}
	return &ImageExtractor{
		grids:    grids,
		radar:    radar,
		geometry: geometry,
		gridDir:  gridDir,
		imageDir: imageDir,
		workers:  workers,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// TransformBatch groups storm objects by valid time and extracts images for
// each group. Valid times are processed in chronological order so manifests
// come out deterministic for a given batch.
func (e *ImageExtractor) TransformBatch(ctx context.Context, storms []domain.StormObject) ([]domain.ImageManifest, error) {
	groups := make(map[int64][]domain.StormObject)
	for _, s := range storms {
		key := s.ValidTime.Unix()
		groups[key] = append(groups[key], s)
	}

	validTimes := make([]int64, 0, len(groups))
	for t := range groups {
		validTimes = append(validTimes, t)
	}
	sort.Slice(validTimes, func(i, j int) bool { return validTimes[i] < validTimes[j] })

	manifests := make([]domain.ImageManifest, 0, len(validTimes))
	for _, t := range validTimes {
		manifest, err := e.extractValidTime(ctx, time.Unix(t, 0).UTC(), groups[t])
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, manifest)
	}
	return manifests, nil
}

// extractValidTime extracts one image file per configured (field, height)
// for every storm object at a single valid time. Field/height pairs run on
// a bounded worker pool since each one loads its own full grid.
func (e *ImageExtractor) extractValidTime(ctx context.Context, validTime time.Time, storms []domain.StormObject) (domain.ImageManifest, error) {
	spcDate := domain.TimeToSPCDate(validTime)

	type task struct {
		field  config.FieldConfig
		height int
	}
	var tasks []task
	for _, field := range e.radar.Fields {
		for _, height := range field.HeightsMASL {
			tasks = append(tasks, task{field: field, height: height})
		}
	}

	refsByTask := make([][]domain.ImageRef, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, tk := range tasks {
		g.Go(func() error {
			refs, err := e.extractFieldHeight(gctx, validTime, spcDate, tk.field.Name, tk.height, storms)
			if err != nil {
				return fmt.Errorf("extract %s at %dm for %s: %w",
					tk.field.Name, tk.height, validTime.Format(time.RFC3339), err)
			}
			refsByTask[i] = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ImageManifest{}, err
	}

	var refs []domain.ImageRef
	for _, r := range refsByTask {
		refs = append(refs, r...)
	}

	e.logger.Info("extracted storm images",
		"valid_time", validTime.Format(time.RFC3339),
		"spc_date", spcDate,
		"storm_objects", len(storms),
		"images", len(refs),
	)

	return domain.NewImageManifest(validTime, refs), nil
}

// extractFieldHeight loads the full grid for one (field, height), cuts a
// storm-centered image per storm object, and writes them as one image file.
func (e *ImageExtractor) extractFieldHeight(ctx context.Context, validTime time.Time, spcDate, fieldName string, heightMASL int, storms []domain.StormObject) ([]domain.ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gridPath := netcdf.GridPath(e.gridDir, validTime, spcDate, fieldName, heightMASL)

	loadStart := time.Now()
	grid, err := e.grids.LoadGrid(gridPath, fieldName)
	if err != nil {
		return nil, err
	}
	e.metrics.GridLoadDuration.WithLabelValues(fieldName).Observe(time.Since(loadStart).Seconds())

	// The catalog geometry is authoritative for registration. A grid file
	// that disagrees with it is suspect but still usable.
	if grid.Field.NumRows != e.radar.Grid.NumRows || grid.Field.NumCols != e.radar.Grid.NumColumns {
		e.logger.Warn("grid size differs from radar catalog",
			"path", gridPath,
			"rows", grid.Field.NumRows,
			"cols", grid.Field.NumCols,
		)
	}

	set := &netcdf.ImageSet{
		FieldName:        fieldName,
		HeightMetresASL:  heightMASL,
		ValidTimeUnixSec: validTime.Unix(),
		StormIDs:         make([]string, 0, len(storms)),
		Images:           make([]*radargrid.Field, 0, len(storms)),
	}

	for _, storm := range storms {
		row, col := e.geometry.CentroidToRowCol(storm.CentroidLatDeg, storm.CentroidLonDeg)
		image := radargrid.ExtractImage(grid.Field, row, col,
			e.radar.Image.NumRows, e.radar.Image.NumColumns, e.radar.Image.FillValue)
		set.StormIDs = append(set.StormIDs, storm.StormID)
		set.Images = append(set.Images, image)
	}

	path, err := netcdf.WriteImageSet(e.imageDir, spcDate, set)
	if err != nil {
		return nil, err
	}
	e.metrics.ImagesExtracted.WithLabelValues(fieldName).Add(float64(len(storms)))

	refs := make([]domain.ImageRef, 0, len(storms))
	for _, storm := range storms {
		refs = append(refs, domain.ImageRef{
			StormID:      storm.StormID,
			FieldName:    fieldName,
			HeightMetres: heightMASL,
			FilePath:     path,
			NumImageRows: e.radar.Image.NumRows,
			NumImageCols: e.radar.Image.NumColumns,
		})
	}
	return refs, nil
}
