package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/findmycure/findmycure-italia/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS specialties (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS facilities (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	postal_code    TEXT NOT NULL DEFAULT '',
	region_id      INTEGER REFERENCES regions(id),
	facility_type  TEXT NOT NULL DEFAULT '',
	telephone      TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	latitude       REAL,
	longitude      REAL,
	geocoded       INTEGER NOT NULL DEFAULT 0,
	geocode_failed INTEGER NOT NULL DEFAULT 0,
	quality_score  REAL,
	data_source    TEXT NOT NULL DEFAULT '',
	attribution    TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(name, city)
);

CREATE TABLE IF NOT EXISTS facility_specialties (
	facility_id    INTEGER NOT NULL REFERENCES facilities(id) ON DELETE CASCADE,
	specialty_id   INTEGER NOT NULL REFERENCES specialties(id),
	quality_rating REAL NOT NULL,
	PRIMARY KEY (facility_id, specialty_id)
);

CREATE TABLE IF NOT EXISTS load_progress (
	batch_index  INTEGER PRIMARY KEY,
	completed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS load_runs (
	id           TEXT PRIMARY KEY,
	batch_index  INTEGER NOT NULL,
	region       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'running',
	added        INTEGER NOT NULL DEFAULT 0,
	updated      INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	errors       INTEGER NOT NULL DEFAULT 0,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_facilities_city ON facilities(city);
CREATE INDEX IF NOT EXISTS idx_facilities_region ON facilities(region_id);
CREATE INDEX IF NOT EXISTS idx_facilities_quality ON facilities(quality_score);
CREATE INDEX IF NOT EXISTS idx_facility_specialties_specialty ON facility_specialties(specialty_id);
`

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetOrCreateRegion returns the ID of the named region, creating it on miss.
func (s *SQLiteStore) GetOrCreateRegion(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM regions WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, eris.Wrapf(err, "sqlite: get region %s", name)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO regions (name) VALUES (?)`, name)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: create region %s", name)
	}
	return res.LastInsertId()
}

// ListRegions returns all regions ordered by name.
func (s *SQLiteStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM regions ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list regions")
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

// GetOrCreateSpecialty returns the ID of the canonical specialty name,
// creating the row on miss. Callers pass names already canonicalized by the
// specialty package.
func (s *SQLiteStore) GetOrCreateSpecialty(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM specialties WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, eris.Wrapf(err, "sqlite: get specialty %s", name)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO specialties (name) VALUES (?)`, name)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: create specialty %s", name)
	}
	return res.LastInsertId()
}

// ListSpecialties returns all specialties ordered by name.
func (s *SQLiteStore) ListSpecialties(ctx context.Context) ([]model.Specialty, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM specialties ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list specialties")
	}
	defer rows.Close()

	var specialties []model.Specialty
	for rows.Next() {
		var sp model.Specialty
		if err := rows.Scan(&sp.ID, &sp.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan specialty")
		}
		specialties = append(specialties, sp)
	}
	return specialties, rows.Err()
}

// UpsertFacility inserts a facility or updates the mutable fields of the
// existing row with the same (name, city) key. Stored coordinates survive a
// re-load that carries none.
func (s *SQLiteStore) UpsertFacility(ctx context.Context, f *model.Facility) (bool, error) {
	existing, err := s.GetFacilityByKey(ctx, f.Name, f.City)
	if err != nil {
		return false, err
	}

	if existing == nil {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO facilities (
				name, address, city, postal_code, region_id, facility_type,
				telephone, email, website, latitude, longitude, geocoded,
				data_source, attribution
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.Name, f.Address, f.City, f.PostalCode, nilIfZeroInt(f.RegionID), f.FacilityType,
			f.Telephone, f.Email, f.Website, f.Latitude, f.Longitude, f.HasCoordinates(),
			f.DataSource, f.Attribution,
		)
		if err != nil {
			return false, eris.Wrapf(err, "sqlite: insert facility %s (%s)", f.Name, f.City)
		}
		f.ID, err = res.LastInsertId()
		return true, eris.Wrap(err, "sqlite: facility insert id")
	}

	f.ID = existing.ID
	lat, lon := existing.Latitude, existing.Longitude
	geocoded := existing.Geocoded
	if f.HasCoordinates() {
		lat, lon = f.Latitude, f.Longitude
		geocoded = true
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE facilities SET
			address = ?, postal_code = ?, region_id = ?, facility_type = ?,
			telephone = ?, email = ?, website = ?, latitude = ?, longitude = ?,
			geocoded = ?, data_source = ?, attribution = ?, updated_at = datetime('now')
		WHERE id = ?`,
		f.Address, f.PostalCode, nilIfZeroInt(f.RegionID), f.FacilityType,
		f.Telephone, f.Email, f.Website, lat, lon,
		geocoded, f.DataSource, f.Attribution, f.ID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update facility %d", f.ID)
	}
	f.Latitude, f.Longitude = lat, lon
	f.Geocoded = geocoded
	return false, nil
}

const facilityColumns = `
	f.id, f.name, f.address, f.city, f.postal_code, f.region_id,
	COALESCE(r.name, ''), f.facility_type, f.telephone, f.email, f.website,
	f.latitude, f.longitude, f.geocoded, f.geocode_failed, f.quality_score,
	f.data_source, f.attribution, f.created_at, f.updated_at`

const facilityFrom = ` FROM facilities f LEFT JOIN regions r ON r.id = f.region_id `

func scanFacility(row interface{ Scan(...any) error }) (*model.Facility, error) {
	var f model.Facility
	var regionID sql.NullInt64
	err := row.Scan(
		&f.ID, &f.Name, &f.Address, &f.City, &f.PostalCode, &regionID,
		&f.RegionName, &f.FacilityType, &f.Telephone, &f.Email, &f.Website,
		&f.Latitude, &f.Longitude, &f.Geocoded, &f.GeocodeFailed, &f.QualityScore,
		&f.DataSource, &f.Attribution, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if regionID.Valid {
		f.RegionID = regionID.Int64
	}
	return &f, nil
}

// GetFacilityByKey fetches a facility by its (name, city) identity, nil on miss.
func (s *SQLiteStore) GetFacilityByKey(ctx context.Context, name, city string) (*model.Facility, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+facilityColumns+facilityFrom+`WHERE f.name = ? AND f.city = ?`, name, city)
	f, err := scanFacility(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get facility %s (%s)", name, city)
	}
	return f, nil
}

// FindFacilitiesByName finds facilities by exact, case-insensitive name.
func (s *SQLiteStore) FindFacilitiesByName(ctx context.Context, name string) ([]model.Facility, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+facilityColumns+facilityFrom+`WHERE lower(f.name) = lower(?) ORDER BY f.city`, name)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find facilities by name %s", name)
	}
	defer rows.Close()
	return collectFacilities(rows)
}

func collectFacilities(rows *sql.Rows) ([]model.Facility, error) {
	var out []model.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan facility")
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// SearchFacilities is the search service's read path: relational predicates,
// sort, and limit. Geo filtering happens in the search layer.
func (s *SQLiteStore) SearchFacilities(ctx context.Context, filter FacilityFilter) ([]model.Facility, error) {
	var (
		where []string
		args  []any
	)

	if filter.NameQuery != "" {
		where = append(where, `lower(f.name) LIKE '%' || lower(?) || '%'`)
		args = append(args, filter.NameQuery)
	}
	if filter.Region != "" {
		where = append(where, `r.name = ?`)
		args = append(args, filter.Region)
	}
	if len(filter.Specialties) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Specialties)), ", ")
		where = append(where, `EXISTS (
			SELECT 1 FROM facility_specialties fs
			JOIN specialties sp ON sp.id = fs.specialty_id
			WHERE fs.facility_id = f.id AND sp.name IN (`+placeholders+`))`)
		for _, name := range filter.Specialties {
			args = append(args, name)
		}
	}
	if filter.MinQuality > 0 {
		where = append(where, `f.quality_score >= ?`)
		args = append(args, filter.MinQuality)
	}

	query := `SELECT ` + facilityColumns + facilityFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + orderClause(filter.SortBy)
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search facilities")
	}
	defer rows.Close()
	return collectFacilities(rows)
}

// orderClause maps a sort key to SQL. Facilities without an aggregate score
// sort after all scored facilities in both quality directions; name ascending
// is the universal final tie-break.
func orderClause(sortBy string) string {
	switch sortBy {
	case SortQualityDesc:
		return `f.quality_score DESC NULLS LAST, f.name ASC`
	case SortQualityAsc:
		return `f.quality_score ASC NULLS LAST, f.name ASC`
	case SortNameDesc:
		return `f.name DESC, f.city ASC`
	case SortCityAsc:
		return `f.city ASC, f.name ASC`
	case SortCityDesc:
		return `f.city DESC, f.name ASC`
	default:
		return `f.name ASC, f.city ASC`
	}
}

// FacilitiesForHeatmap returns all facilities with stored coordinates.
func (s *SQLiteStore) FacilitiesForHeatmap(ctx context.Context) ([]model.Facility, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+facilityColumns+facilityFrom+`WHERE f.latitude IS NOT NULL AND f.longitude IS NOT NULL`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: heatmap facilities")
	}
	defer rows.Close()
	return collectFacilities(rows)
}

// UpsertRating inserts or updates a single (facility, specialty) rating and
// refreshes the facility's aggregate score.
func (s *SQLiteStore) UpsertRating(ctx context.Context, facilityID, specialtyID int64, rating float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facility_specialties (facility_id, specialty_id, quality_rating)
		VALUES (?, ?, ?)
		ON CONFLICT (facility_id, specialty_id) DO UPDATE SET quality_rating = excluded.quality_rating`,
		facilityID, specialtyID, rating,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert rating (%d, %d)", facilityID, specialtyID)
	}
	return s.RecomputeQualityScore(ctx, facilityID)
}

// UpsertRatings applies a rating batch. Duplicate pairs within the batch
// resolve last-occurrence-wins, and conflicts with stored rows update in
// place, so a batch never aborts on the uniqueness constraint.
func (s *SQLiteStore) UpsertRatings(ctx context.Context, rows []model.FacilitySpecialty) error {
	if len(rows) == 0 {
		return nil
	}
	rows = dedupeRatings(rows)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin rating batch")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO facility_specialties (facility_id, specialty_id, quality_rating)
		VALUES (?, ?, ?)
		ON CONFLICT (facility_id, specialty_id) DO UPDATE SET quality_rating = excluded.quality_rating`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare rating upsert")
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.FacilityID, r.SpecialtyID, r.QualityRating); err != nil {
			return eris.Wrapf(err, "sqlite: upsert rating (%d, %d)", r.FacilityID, r.SpecialtyID)
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit rating batch")
	}

	for _, id := range affectedFacilities(rows) {
		if err := s.RecomputeQualityScore(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// FacilityRatings returns a facility's specialty ratings with names.
func (s *SQLiteStore) FacilityRatings(ctx context.Context, facilityID int64) ([]model.FacilitySpecialty, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fs.facility_id, fs.specialty_id, sp.name, fs.quality_rating
		FROM facility_specialties fs
		JOIN specialties sp ON sp.id = fs.specialty_id
		WHERE fs.facility_id = ?
		ORDER BY sp.name`, facilityID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: ratings for facility %d", facilityID)
	}
	defer rows.Close()

	var out []model.FacilitySpecialty
	for rows.Next() {
		var fsRow model.FacilitySpecialty
		if err := rows.Scan(&fsRow.FacilityID, &fsRow.SpecialtyID, &fsRow.SpecialtyName, &fsRow.QualityRating); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rating")
		}
		out = append(out, fsRow)
	}
	return out, rows.Err()
}

// RecomputeQualityScore refreshes the cached aggregate (mean of specialty
// ratings, NULL with no ratings) for one facility.
func (s *SQLiteStore) RecomputeQualityScore(ctx context.Context, facilityID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE facilities SET
			quality_score = (SELECT AVG(quality_rating) FROM facility_specialties WHERE facility_id = ?),
			updated_at = datetime('now')
		WHERE id = ?`, facilityID, facilityID)
	return eris.Wrapf(err, "sqlite: recompute quality score %d", facilityID)
}

// ExportRatings returns every rating row joined with facility and specialty
// names, ordered for stable CSV output.
func (s *SQLiteStore) ExportRatings(ctx context.Context) ([]RatingExport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.name, f.city, sp.name, fs.quality_rating
		FROM facility_specialties fs
		JOIN facilities f ON f.id = fs.facility_id
		JOIN specialties sp ON sp.id = fs.specialty_id
		ORDER BY f.name, f.city, sp.name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: export ratings")
	}
	defer rows.Close()

	var out []RatingExport
	for rows.Next() {
		var r RatingExport
		if err := rows.Scan(&r.FacilityName, &r.City, &r.SpecialtyName, &r.Rating); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan export row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FacilitiesNeedingGeocode returns facilities without coordinates that have
// not already failed geocoding, so repeated batches make monotonic progress.
func (s *SQLiteStore) FacilitiesNeedingGeocode(ctx context.Context, limit int) ([]model.Facility, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+facilityColumns+facilityFrom+`
		WHERE f.latitude IS NULL AND f.geocode_failed = 0
		ORDER BY f.id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: facilities needing geocode")
	}
	defer rows.Close()
	return collectFacilities(rows)
}

// SetFacilityCoordinates stores geocoded coordinates for a facility.
func (s *SQLiteStore) SetFacilityCoordinates(ctx context.Context, facilityID int64, lat, lon float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE facilities SET latitude = ?, longitude = ?, geocoded = 1, geocode_failed = 0,
			updated_at = datetime('now')
		WHERE id = ?`, lat, lon, facilityID)
	return eris.Wrapf(err, "sqlite: set coordinates %d", facilityID)
}

// MarkGeocodeFailed records a geocoding failure so the facility is skipped by
// subsequent batches.
func (s *SQLiteStore) MarkGeocodeFailed(ctx context.Context, facilityID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE facilities SET geocode_failed = 1, updated_at = datetime('now') WHERE id = ?`, facilityID)
	return eris.Wrapf(err, "sqlite: mark geocode failed %d", facilityID)
}

// GetLoadProgress returns the highest completed batch index, -1 when no batch
// has completed.
func (s *SQLiteStore) GetLoadProgress(ctx context.Context) (int, error) {
	var batch sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(batch_index) FROM load_progress`).Scan(&batch)
	if err != nil {
		return -1, eris.Wrap(err, "sqlite: get load progress")
	}
	if !batch.Valid {
		return -1, nil
	}
	return int(batch.Int64), nil
}

// SetLoadProgress records a completed batch index.
func (s *SQLiteStore) SetLoadProgress(ctx context.Context, batchIndex int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO load_progress (batch_index) VALUES (?)
		ON CONFLICT (batch_index) DO UPDATE SET completed_at = datetime('now')`, batchIndex)
	return eris.Wrapf(err, "sqlite: set load progress %d", batchIndex)
}

// StartLoadRun records the beginning of a loader invocation.
func (s *SQLiteStore) StartLoadRun(ctx context.Context, batchIndex int, region string) (*model.LoadRun, error) {
	run := &model.LoadRun{
		ID:         uuid.NewString(),
		BatchIndex: batchIndex,
		Region:     region,
		Status:     model.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO load_runs (id, batch_index, region, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.BatchIndex, run.Region, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start load run")
	}
	return run, nil
}

// CompleteLoadRun finalizes a loader invocation with its counts.
func (s *SQLiteStore) CompleteLoadRun(ctx context.Context, runID string, status model.RunStatus, stats model.LoadStats) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE load_runs SET status = ?, added = ?, updated = ?, skipped = ?, errors = ?,
			completed_at = datetime('now')
		WHERE id = ?`,
		status, stats.Added, stats.Updated, stats.Skipped, stats.Errors, runID,
	)
	return eris.Wrapf(err, "sqlite: complete load run %s", runID)
}

// nilIfZeroInt lets optional foreign keys store NULL instead of 0.
func nilIfZeroInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
