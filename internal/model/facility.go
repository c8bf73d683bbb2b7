// Package model defines the core domain types shared across the store,
// loader, search service, and web layer.
package model

import "time"

// Rating bounds for a specialty quality rating.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

// Region is an Italian administrative region used as a filter dimension.
type Region struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Specialty is a canonical medical discipline (e.g. "Cardiologia").
type Specialty struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Facility is a medical care site. Identity for deduplication is (Name, City).
type Facility struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	RegionID     int64  `json:"region_id,omitempty"`
	RegionName   string `json:"region,omitempty"`
	FacilityType string `json:"facility_type,omitempty"`
	Telephone    string `json:"telephone,omitempty"`
	Email        string `json:"email,omitempty"`
	Website      string `json:"website,omitempty"`

	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Geocoded      bool     `json:"geocoded"`
	GeocodeFailed bool     `json:"geocode_failed"`

	// QualityScore is the cached mean of the facility's specialty ratings,
	// nil when the facility has no ratings ("insufficient data").
	QualityScore *float64 `json:"quality_score,omitempty"`

	DataSource  string `json:"data_source,omitempty"`
	Attribution string `json:"attribution,omitempty"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// HasCoordinates reports whether the facility can participate in radius search.
func (f *Facility) HasCoordinates() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// FacilitySpecialty is the rating association between a facility and a
// specialty. The (FacilityID, SpecialtyID) pair is unique.
type FacilitySpecialty struct {
	FacilityID    int64   `json:"facility_id"`
	SpecialtyID   int64   `json:"specialty_id"`
	SpecialtyName string  `json:"specialty,omitempty"`
	QualityRating float64 `json:"quality_rating"`
}
