// Package store provides durable, queryable storage for regions, facilities,
// specialties, and the facility-specialty rating association, with Postgres
// and SQLite backends.
package store

import (
	"context"

	"github.com/findmycure/findmycure-italia/internal/model"
)

// Sort orders for facility queries.
const (
	SortQualityDesc = "quality_desc"
	SortQualityAsc  = "quality_asc"
	SortNameAsc     = "name_asc"
	SortNameDesc    = "name_desc"
	SortCityAsc     = "city_asc"
	SortCityDesc    = "city_desc"
)

// FacilityFilter specifies criteria for listing facilities. Zero values mean
// "no constraint". All set fields combine with AND semantics.
type FacilityFilter struct {
	NameQuery   string   // case-insensitive substring match on facility name
	Region      string   // exact region name
	Specialties []string // canonical names; facility matches with a rating in ANY of them
	MinQuality  float64  // aggregate quality score >= threshold
	SortBy      string   // one of the Sort* constants; default SortNameAsc
	Limit       int      // 0 = unlimited
}

// RatingExport is one (facility, specialty, rating) row for CSV export and
// reconciliation.
type RatingExport struct {
	FacilityName  string
	City          string
	SpecialtyName string
	Rating        float64
}

// Store defines the persistence interface for the facility catalog.
type Store interface {
	// Dictionaries
	GetOrCreateRegion(ctx context.Context, name string) (int64, error)
	ListRegions(ctx context.Context) ([]model.Region, error)
	GetOrCreateSpecialty(ctx context.Context, name string) (int64, error)
	ListSpecialties(ctx context.Context) ([]model.Specialty, error)

	// Facilities
	UpsertFacility(ctx context.Context, f *model.Facility) (created bool, err error)
	GetFacilityByKey(ctx context.Context, name, city string) (*model.Facility, error)
	FindFacilitiesByName(ctx context.Context, name string) ([]model.Facility, error)
	SearchFacilities(ctx context.Context, filter FacilityFilter) ([]model.Facility, error)
	FacilitiesForHeatmap(ctx context.Context) ([]model.Facility, error)

	// Ratings
	UpsertRating(ctx context.Context, facilityID, specialtyID int64, rating float64) error
	UpsertRatings(ctx context.Context, rows []model.FacilitySpecialty) error
	FacilityRatings(ctx context.Context, facilityID int64) ([]model.FacilitySpecialty, error)
	RecomputeQualityScore(ctx context.Context, facilityID int64) error
	ExportRatings(ctx context.Context) ([]RatingExport, error)

	// Geocoding progress
	FacilitiesNeedingGeocode(ctx context.Context, limit int) ([]model.Facility, error)
	SetFacilityCoordinates(ctx context.Context, facilityID int64, lat, lon float64) error
	MarkGeocodeFailed(ctx context.Context, facilityID int64) error

	// Load orchestration state
	GetLoadProgress(ctx context.Context) (int, error) // last completed batch index, -1 when none
	SetLoadProgress(ctx context.Context, batchIndex int) error
	StartLoadRun(ctx context.Context, batchIndex int, region string) (*model.LoadRun, error)
	CompleteLoadRun(ctx context.Context, runID string, status model.RunStatus, stats model.LoadStats) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// dedupeRatings collapses duplicate (facility, specialty) pairs within one
// batch, keeping the last occurrence so batch semantics are last-write-wins.
func dedupeRatings(rows []model.FacilitySpecialty) []model.FacilitySpecialty {
	type key struct{ f, s int64 }
	idx := make(map[key]int, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		k := key{r.FacilityID, r.SpecialtyID}
		if i, ok := idx[k]; ok {
			out[i] = r
			continue
		}
		idx[k] = len(out)
		out = append(out, r)
	}
	return out
}

// affectedFacilities returns the distinct facility IDs in a rating batch.
func affectedFacilities(rows []model.FacilitySpecialty) []int64 {
	seen := make(map[int64]bool, len(rows))
	var ids []int64
	for _, r := range rows {
		if !seen[r.FacilityID] {
			seen[r.FacilityID] = true
			ids = append(ids, r.FacilityID)
		}
	}
	return ids
}
