package loader

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findmycure/findmycure-italia/internal/fetcher"
	"github.com/findmycure/findmycure-italia/internal/model"
	"github.com/findmycure/findmycure-italia/internal/normalize"
	"github.com/findmycure/findmycure-italia/internal/specialty"
	"github.com/findmycure/findmycure-italia/internal/store"
	"github.com/findmycure/findmycure-italia/pkg/geocode"
)

// Loader drives the batch ETL against the store.
type Loader struct {
	store    store.Store
	geocoder geocode.Client
	fetch    fetcher.Fetcher
	dataDir  string
}

// New creates a Loader. The fetcher may be nil when all datasets are local
// files under dataDir.
func New(st store.Store, gc geocode.Client, f fetcher.Fetcher, dataDir string) *Loader {
	return &Loader{store: st, geocoder: gc, fetch: f, dataDir: dataDir}
}

// LoadRegion streams one regional CSV into the store. Malformed rows (no
// facility name) are skipped and counted; per-row store failures count as
// errors without aborting the file.
func (l *Loader) LoadRegion(ctx context.Context, src RegionSource, r io.Reader) (model.LoadStats, error) {
	var stats model.LoadStats

	regionID, err := l.store.GetOrCreateRegion(ctx, src.Region)
	if err != nil {
		return stats, err
	}

	rowCh, errCh := fetcher.StreamCSV(ctx, r, src.CSV)
	for row := range rowCh {
		f, ok := facilityFromRow(row, src, regionID)
		if !ok {
			stats.Skipped++
			continue
		}

		created, err := l.store.UpsertFacility(ctx, f)
		if err != nil {
			zap.L().Warn("facility upsert failed",
				zap.String("region", src.Region),
				zap.String("name", f.Name),
				zap.Error(err),
			)
			stats.Errors++
			continue
		}
		if created {
			stats.Added++
		} else {
			stats.Updated++
		}

		// Register the offered specialties so they appear as search options.
		// Rating links come only from the corrections CSV.
		for _, label := range normalize.SplitSpecialties(row[src.Columns.Specialties]) {
			if _, err := l.store.GetOrCreateSpecialty(ctx, specialty.Canonicalize(label)); err != nil {
				stats.Errors++
			}
		}
	}
	if err := <-errCh; err != nil {
		return stats, eris.Wrapf(err, "loader: region %s", src.Region)
	}

	zap.L().Info("region loaded",
		zap.String("region", src.Region),
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}

// facilityFromRow builds a facility from one normalized CSV row. Rows without
// a facility name are unusable.
func facilityFromRow(row fetcher.Row, src RegionSource, regionID int64) (*model.Facility, bool) {
	cols := src.Columns
	name := normalize.Clean(row[cols.Name])
	if name == "" {
		return nil, false
	}
	return &model.Facility{
		Name:         name,
		Address:      normalize.Clean(row[cols.Address]),
		City:         normalize.TitleCase(normalize.Clean(row[cols.City])),
		PostalCode:   normalize.Clean(row[cols.PostalCode]),
		RegionID:     regionID,
		FacilityType: normalize.TitleCase(normalize.Clean(row[cols.Type])),
		Telephone:    normalize.Clean(row[cols.Telephone]),
		Email:        normalize.Clean(row[cols.Email]),
		Website:      normalize.Clean(row[cols.Website]),
		DataSource:   src.File,
		Attribution:  src.Attribution,
	}, true
}

// LoadBatch loads one region group, records a load run, and advances the
// persisted progress marker. A region whose dataset cannot be opened counts
// its absence as an error and the batch continues.
func (l *Loader) LoadBatch(ctx context.Context, batchIndex int) (model.LoadStats, error) {
	var stats model.LoadStats

	batch, ok := Batch(batchIndex)
	if !ok {
		return stats, eris.Errorf("loader: batch index %d out of range [0,%d)", batchIndex, NumBatches)
	}

	run, err := l.store.StartLoadRun(ctx, batchIndex, "")
	if err != nil {
		return stats, err
	}

	for _, src := range batch {
		r, err := l.openSource(ctx, src)
		if err != nil {
			zap.L().Warn("dataset unavailable", zap.String("region", src.Region), zap.Error(err))
			stats.Errors++
			continue
		}
		regionStats, err := l.LoadRegion(ctx, src, r)
		r.Close()
		stats.Add(regionStats)
		if err != nil {
			_ = l.store.CompleteLoadRun(ctx, run.ID, model.RunStatusFailed, stats)
			return stats, err
		}
	}

	if err := l.store.SetLoadProgress(ctx, batchIndex); err != nil {
		return stats, err
	}
	return stats, l.store.CompleteLoadRun(ctx, run.ID, model.RunStatusComplete, stats)
}

// NextBatch returns the index LoadBatch should run next, NumBatches when all
// batches have completed.
func (l *Loader) NextBatch(ctx context.Context) (int, error) {
	last, err := l.store.GetLoadProgress(ctx)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// openSource opens a region's dataset: the local file when present, else the
// upstream URL.
func (l *Loader) openSource(ctx context.Context, src RegionSource) (io.ReadCloser, error) {
	path := filepath.Join(l.dataDir, src.File)
	if f, err := os.Open(path); err == nil {
		return f, nil
	}
	if src.URL == "" || l.fetch == nil {
		return nil, eris.Errorf("loader: no dataset for %s at %s", src.Region, path)
	}
	return l.fetch.Download(ctx, src.URL)
}

// GeocodeBatch geocodes up to n facilities that still lack coordinates.
// Failures are marked so the next invocation picks different facilities,
// keeping progress monotonic.
func (l *Loader) GeocodeBatch(ctx context.Context, n int) (model.GeocodeStats, error) {
	var stats model.GeocodeStats

	pending, err := l.store.FacilitiesNeedingGeocode(ctx, n)
	if err != nil {
		return stats, err
	}
	if len(pending) == 0 {
		return stats, nil
	}

	queries := make([]geocode.Query, len(pending))
	for i, f := range pending {
		queries[i] = geocode.Query{
			Name:    f.Name,
			Address: f.Address,
			City:    f.City,
			Region:  f.RegionName,
		}
	}

	results, err := l.geocoder.BatchGeocode(ctx, queries)
	if err != nil {
		return stats, eris.Wrap(err, "loader: geocode batch")
	}

	for i, res := range results {
		f := pending[i]
		if !res.Matched {
			if err := l.store.MarkGeocodeFailed(ctx, f.ID); err != nil {
				return stats, err
			}
			stats.Failed++
			continue
		}
		if err := l.store.SetFacilityCoordinates(ctx, f.ID, res.Latitude, res.Longitude); err != nil {
			return stats, err
		}
		stats.Geocoded++
	}

	zap.L().Info("geocode batch complete",
		zap.Int("geocoded", stats.Geocoded),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}
