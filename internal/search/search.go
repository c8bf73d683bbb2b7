// Package search implements the facility search service: parameter
// validation, location resolution, relational filtering through the store,
// and the geographic radius post-filter.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/findmycure/findmycure-italia/internal/geo"
	"github.com/findmycure/findmycure-italia/internal/model"
	"github.com/findmycure/findmycure-italia/internal/specialty"
	"github.com/findmycure/findmycure-italia/internal/store"
	"github.com/findmycure/findmycure-italia/pkg/geocode"
)

// Limits bounds the radius and result count of a search.
type Limits struct {
	DefaultRadiusKm float64
	MinRadiusKm     float64
	MaxRadiusKm     float64
	MaxResults      int
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return Limits{DefaultRadiusKm: 30, MinRadiusKm: 5, MaxRadiusKm: 300, MaxResults: 200}
}

// Service executes facility searches.
type Service struct {
	store    store.Store
	geocoder geocode.Client
	limits   Limits
}

// New creates a search Service. The geocoder may be nil, in which case
// free-text locations resolve only through the city map.
func New(st store.Store, gc geocode.Client, limits Limits) *Service {
	if limits.MaxResults <= 0 {
		limits = DefaultLimits()
	}
	return &Service{store: st, geocoder: gc, limits: limits}
}

// Params are the user-supplied search inputs, all optional.
type Params struct {
	Query      string   // free-text location (city or address)
	Specialty  string   // specialty search term, expanded via synonyms
	Region     string   // explicit region filter
	MinQuality float64  // minimum aggregate quality score
	Latitude   *float64 // explicit coordinates override Query
	Longitude  *float64
	RadiusKm   float64 // 0 = default
	SortBy     string  // store.Sort* constant
	Limit      int     // 0 = page cap
}

// Hit is one search result, with distance attached when the geo filter ran.
type Hit struct {
	model.Facility
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Result is the outcome of a search. The indicator flags distinguish "no
// facilities matched" from "the inputs could not be interpreted".
type Result struct {
	Hits               []Hit    `json:"facilities"`
	RadiusKm           float64  `json:"radius_km,omitempty"`
	CenterLatitude     *float64 `json:"center_latitude,omitempty"`
	CenterLongitude    *float64 `json:"center_longitude,omitempty"`
	MatchedRegion      string   `json:"matched_region,omitempty"`
	LocationUnresolved bool     `json:"location_unresolved,omitempty"`
	NoSpecialtyMatch   bool     `json:"no_specialty_match,omitempty"`
}

// GeoActive reports whether the radius filter ran.
func (r *Result) GeoActive() bool {
	return r.CenterLatitude != nil && r.CenterLongitude != nil
}

// Search runs a facility search. User input that cannot be interpreted
// (unknown location, unknown specialty term) degrades to indicator flags,
// never to an error; errors are reserved for store and transport failures.
func (s *Service) Search(ctx context.Context, p Params) (*Result, error) {
	result := &Result{RadiusKm: s.clampRadius(p.RadiusKm)}
	limit := p.Limit
	if limit <= 0 || limit > s.limits.MaxResults {
		limit = s.limits.MaxResults
	}

	var specialties []string
	if strings.TrimSpace(p.Specialty) != "" {
		specialties = specialty.Expand(p.Specialty)
		if len(specialties) == 0 {
			result.NoSpecialtyMatch = true
			return result, nil
		}
	}

	query := strings.TrimSpace(p.Query)
	region := p.Region
	resolved := s.resolveLocation(ctx, p, result)
	if result.MatchedRegion != "" && region == "" {
		region = result.MatchedRegion
	}

	filter := store.FacilityFilter{
		Region:      region,
		Specialties: specialties,
		MinQuality:  p.MinQuality,
		SortBy:      validSort(p.SortBy),
	}
	if !result.GeoActive() {
		// Without a geo post-filter the store can apply the page cap itself.
		filter.Limit = limit
	}

	if !resolved && query != "" {
		// Query text that is not a location may be a facility name.
		nameFilter := filter
		nameFilter.NameQuery = query
		nameFilter.Limit = limit
		matches, err := s.store.SearchFacilities(ctx, nameFilter)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			result.Hits = make([]Hit, len(matches))
			for i, f := range matches {
				result.Hits[i] = Hit{Facility: f}
			}
			sortHits(result.Hits, filter.SortBy, false)
			return result, nil
		}
		result.LocationUnresolved = true
	}

	facilities, err := s.store.SearchFacilities(ctx, filter)
	if err != nil {
		return nil, err
	}

	if result.GeoActive() {
		result.Hits = s.radiusFilter(facilities, *result.CenterLatitude, *result.CenterLongitude, result.RadiusKm)
		sortHits(result.Hits, filter.SortBy, true)
		if len(result.Hits) > limit {
			result.Hits = result.Hits[:limit]
		}
	} else {
		result.Hits = make([]Hit, len(facilities))
		for i, f := range facilities {
			result.Hits[i] = Hit{Facility: f}
		}
		sortHits(result.Hits, filter.SortBy, false)
	}
	return result, nil
}

// resolveLocation fills the result's geographic center or matched region and
// reports whether the location resolved. Explicit coordinates win; free text
// goes to the geocoder so the radius filter applies, with the city map as a
// region-level fallback when the geocoder is unavailable or finds nothing.
func (s *Service) resolveLocation(ctx context.Context, p Params, result *Result) bool {
	if p.Latitude != nil && p.Longitude != nil {
		result.CenterLatitude = p.Latitude
		result.CenterLongitude = p.Longitude
		return true
	}

	query := strings.TrimSpace(p.Query)
	if query == "" {
		return false
	}

	if s.geocoder != nil {
		res, err := s.geocoder.Geocode(ctx, geocode.Query{City: query})
		if err != nil {
			zap.L().Warn("location geocode failed", zap.String("query", query), zap.Error(err))
		} else if res.Matched {
			result.CenterLatitude = &res.Latitude
			result.CenterLongitude = &res.Longitude
			return true
		}
	}

	if region, ok := geo.RegionForCity(query); ok {
		result.MatchedRegion = region
		return true
	}
	return false
}

// radiusFilter keeps facilities with coordinates within the radius, boundary
// inclusive, and attaches their distance from the center.
func (s *Service) radiusFilter(facilities []model.Facility, lat, lon, radiusKm float64) []Hit {
	hits := make([]Hit, 0, len(facilities))
	for _, f := range facilities {
		if !f.HasCoordinates() {
			continue
		}
		d := geo.Distance(lat, lon, *f.Latitude, *f.Longitude)
		if d > radiusKm {
			continue
		}
		dist := d
		hits = append(hits, Hit{Facility: f, DistanceKm: &dist})
	}
	return hits
}

func (s *Service) clampRadius(radiusKm float64) float64 {
	if radiusKm == 0 {
		return s.limits.DefaultRadiusKm
	}
	if radiusKm < s.limits.MinRadiusKm {
		return s.limits.MinRadiusKm
	}
	if radiusKm > s.limits.MaxRadiusKm {
		return s.limits.MaxRadiusKm
	}
	return radiusKm
}

// validSort maps unknown sort keys to the default.
func validSort(sortBy string) string {
	switch sortBy {
	case store.SortQualityDesc, store.SortQualityAsc,
		store.SortNameAsc, store.SortNameDesc,
		store.SortCityAsc, store.SortCityDesc:
		return sortBy
	default:
		return store.SortNameAsc
	}
}
