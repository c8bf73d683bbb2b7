package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/findmycure/findmycure-italia/internal/db"
	"github.com/findmycure/findmycure-italia/internal/model"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to the given database URL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string, maxConns, minConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS specialties (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS facilities (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	postal_code    TEXT NOT NULL DEFAULT '',
	region_id      BIGINT REFERENCES regions(id),
	facility_type  TEXT NOT NULL DEFAULT '',
	telephone      TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	latitude       DOUBLE PRECISION,
	longitude      DOUBLE PRECISION,
	geocoded       BOOLEAN NOT NULL DEFAULT FALSE,
	geocode_failed BOOLEAN NOT NULL DEFAULT FALSE,
	quality_score  DOUBLE PRECISION,
	data_source    TEXT NOT NULL DEFAULT '',
	attribution    TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (name, city)
);

CREATE TABLE IF NOT EXISTS facility_specialties (
	facility_id    BIGINT NOT NULL REFERENCES facilities(id) ON DELETE CASCADE,
	specialty_id   BIGINT NOT NULL REFERENCES specialties(id),
	quality_rating DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (facility_id, specialty_id)
);

CREATE TABLE IF NOT EXISTS load_progress (
	batch_index  INT PRIMARY KEY,
	completed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS load_runs (
	id           UUID PRIMARY KEY,
	batch_index  INT NOT NULL,
	region       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'running',
	added        INT NOT NULL DEFAULT 0,
	updated      INT NOT NULL DEFAULT 0,
	skipped      INT NOT NULL DEFAULT 0,
	errors       INT NOT NULL DEFAULT 0,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_facilities_city ON facilities(city);
CREATE INDEX IF NOT EXISTS idx_facilities_region ON facilities(region_id);
CREATE INDEX IF NOT EXISTS idx_facilities_quality ON facilities(quality_score);
CREATE INDEX IF NOT EXISTS idx_facility_specialties_specialty ON facility_specialties(specialty_id);
`

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// GetOrCreateRegion returns the ID of the named region, creating it on miss.
func (s *PostgresStore) GetOrCreateRegion(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO regions (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: get or create region %s", name)
	}
	return id, nil
}

// ListRegions returns all regions ordered by name.
func (s *PostgresStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM regions ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list regions")
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region")
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

// GetOrCreateSpecialty returns the ID of the canonical specialty name.
func (s *PostgresStore) GetOrCreateSpecialty(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO specialties (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: get or create specialty %s", name)
	}
	return id, nil
}

// ListSpecialties returns all specialties ordered by name.
func (s *PostgresStore) ListSpecialties(ctx context.Context) ([]model.Specialty, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM specialties ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list specialties")
	}
	defer rows.Close()

	var specialties []model.Specialty
	for rows.Next() {
		var sp model.Specialty
		if err := rows.Scan(&sp.ID, &sp.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan specialty")
		}
		specialties = append(specialties, sp)
	}
	return specialties, rows.Err()
}

// UpsertFacility inserts or updates on the (name, city) key in one statement.
// Coordinates only move forward: an incoming row without them keeps the
// stored values, and geocoded never flips back to false here.
func (s *PostgresStore) UpsertFacility(ctx context.Context, f *model.Facility) (bool, error) {
	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO facilities (
			name, address, city, postal_code, region_id, facility_type,
			telephone, email, website, latitude, longitude, geocoded,
			data_source, attribution
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (name, city) DO UPDATE SET
			address = EXCLUDED.address,
			postal_code = EXCLUDED.postal_code,
			region_id = EXCLUDED.region_id,
			facility_type = EXCLUDED.facility_type,
			telephone = EXCLUDED.telephone,
			email = EXCLUDED.email,
			website = EXCLUDED.website,
			latitude = COALESCE(EXCLUDED.latitude, facilities.latitude),
			longitude = COALESCE(EXCLUDED.longitude, facilities.longitude),
			geocoded = facilities.geocoded OR EXCLUDED.geocoded,
			data_source = EXCLUDED.data_source,
			attribution = EXCLUDED.attribution,
			updated_at = now()
		RETURNING id, (xmax = 0) AS inserted`,
		f.Name, f.Address, f.City, f.PostalCode, nilIfZeroInt(f.RegionID), f.FacilityType,
		f.Telephone, f.Email, f.Website, f.Latitude, f.Longitude, f.HasCoordinates(),
		f.DataSource, f.Attribution,
	).Scan(&f.ID, &inserted)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert facility %s (%s)", f.Name, f.City)
	}
	return inserted, nil
}

const pgFacilityColumns = `
	f.id, f.name, f.address, f.city, f.postal_code, COALESCE(f.region_id, 0),
	COALESCE(r.name, ''), f.facility_type, f.telephone, f.email, f.website,
	f.latitude, f.longitude, f.geocoded, f.geocode_failed, f.quality_score,
	f.data_source, f.attribution, f.created_at, f.updated_at`

const pgFacilityFrom = ` FROM facilities f LEFT JOIN regions r ON r.id = f.region_id `

func scanPgFacility(row pgx.Row) (*model.Facility, error) {
	var f model.Facility
	err := row.Scan(
		&f.ID, &f.Name, &f.Address, &f.City, &f.PostalCode, &f.RegionID,
		&f.RegionName, &f.FacilityType, &f.Telephone, &f.Email, &f.Website,
		&f.Latitude, &f.Longitude, &f.Geocoded, &f.GeocodeFailed, &f.QualityScore,
		&f.DataSource, &f.Attribution, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func collectPgFacilities(rows pgx.Rows) ([]model.Facility, error) {
	defer rows.Close()
	var out []model.Facility
	for rows.Next() {
		f, err := scanPgFacility(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan facility")
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// GetFacilityByKey fetches a facility by its (name, city) identity, nil on miss.
func (s *PostgresStore) GetFacilityByKey(ctx context.Context, name, city string) (*model.Facility, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgFacilityColumns+pgFacilityFrom+`WHERE f.name = $1 AND f.city = $2`, name, city)
	f, err := scanPgFacility(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get facility %s (%s)", name, city)
	}
	return f, nil
}

// FindFacilitiesByName finds facilities by exact, case-insensitive name.
func (s *PostgresStore) FindFacilitiesByName(ctx context.Context, name string) ([]model.Facility, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgFacilityColumns+pgFacilityFrom+`WHERE lower(f.name) = lower($1) ORDER BY f.city`, name)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find facilities by name %s", name)
	}
	return collectPgFacilities(rows)
}

// SearchFacilities applies the relational predicates, sort, and limit.
func (s *PostgresStore) SearchFacilities(ctx context.Context, filter FacilityFilter) ([]model.Facility, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.NameQuery != "" {
		where = append(where, `f.name ILIKE '%' || `+arg(filter.NameQuery)+` || '%'`)
	}
	if filter.Region != "" {
		where = append(where, `r.name = `+arg(filter.Region))
	}
	if len(filter.Specialties) > 0 {
		where = append(where, `EXISTS (
			SELECT 1 FROM facility_specialties fs
			JOIN specialties sp ON sp.id = fs.specialty_id
			WHERE fs.facility_id = f.id AND sp.name = ANY(`+arg(filter.Specialties)+`))`)
	}
	if filter.MinQuality > 0 {
		where = append(where, `f.quality_score >= `+arg(filter.MinQuality))
	}

	query := `SELECT ` + pgFacilityColumns + pgFacilityFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + orderClause(filter.SortBy)
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search facilities")
	}
	return collectPgFacilities(rows)
}

// FacilitiesForHeatmap returns all facilities with stored coordinates.
func (s *PostgresStore) FacilitiesForHeatmap(ctx context.Context) ([]model.Facility, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgFacilityColumns+pgFacilityFrom+`WHERE f.latitude IS NOT NULL AND f.longitude IS NOT NULL`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: heatmap facilities")
	}
	return collectPgFacilities(rows)
}

// UpsertRating inserts or updates one rating and refreshes the aggregate.
func (s *PostgresStore) UpsertRating(ctx context.Context, facilityID, specialtyID int64, rating float64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO facility_specialties (facility_id, specialty_id, quality_rating)
		VALUES ($1, $2, $3)
		ON CONFLICT (facility_id, specialty_id) DO UPDATE SET quality_rating = EXCLUDED.quality_rating`,
		facilityID, specialtyID, rating,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert rating (%d, %d)", facilityID, specialtyID)
	}
	return s.RecomputeQualityScore(ctx, facilityID)
}

// UpsertRatings applies a rating batch through the temp-table bulk upsert.
// Duplicate pairs within the batch resolve last-occurrence-wins before the
// COPY so the merge never sees a conflicting pair twice.
func (s *PostgresStore) UpsertRatings(ctx context.Context, ratings []model.FacilitySpecialty) error {
	if len(ratings) == 0 {
		return nil
	}
	ratings = dedupeRatings(ratings)

	rows := make([][]any, 0, len(ratings))
	for _, r := range ratings {
		rows = append(rows, []any{r.FacilityID, r.SpecialtyID, r.QualityRating})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "facility_specialties",
		Columns:      []string{"facility_id", "specialty_id", "quality_rating"},
		ConflictKeys: []string{"facility_id", "specialty_id"},
		UpdateCols:   []string{"quality_rating"},
	}, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: bulk upsert ratings")
	}

	for _, id := range affectedFacilities(ratings) {
		if err := s.RecomputeQualityScore(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// FacilityRatings returns a facility's specialty ratings with names.
func (s *PostgresStore) FacilityRatings(ctx context.Context, facilityID int64) ([]model.FacilitySpecialty, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT fs.facility_id, fs.specialty_id, sp.name, fs.quality_rating
		FROM facility_specialties fs
		JOIN specialties sp ON sp.id = fs.specialty_id
		WHERE fs.facility_id = $1
		ORDER BY sp.name`, facilityID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: ratings for facility %d", facilityID)
	}
	defer rows.Close()

	var out []model.FacilitySpecialty
	for rows.Next() {
		var fsRow model.FacilitySpecialty
		if err := rows.Scan(&fsRow.FacilityID, &fsRow.SpecialtyID, &fsRow.SpecialtyName, &fsRow.QualityRating); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rating")
		}
		out = append(out, fsRow)
	}
	return out, rows.Err()
}

// RecomputeQualityScore refreshes the cached aggregate for one facility.
func (s *PostgresStore) RecomputeQualityScore(ctx context.Context, facilityID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE facilities SET
			quality_score = (SELECT AVG(quality_rating) FROM facility_specialties WHERE facility_id = $1),
			updated_at = now()
		WHERE id = $1`, facilityID)
	return eris.Wrapf(err, "postgres: recompute quality score %d", facilityID)
}

// ExportRatings returns every rating row joined with names, in stable order.
func (s *PostgresStore) ExportRatings(ctx context.Context) ([]RatingExport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.name, f.city, sp.name, fs.quality_rating
		FROM facility_specialties fs
		JOIN facilities f ON f.id = fs.facility_id
		JOIN specialties sp ON sp.id = fs.specialty_id
		ORDER BY f.name, f.city, sp.name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: export ratings")
	}
	defer rows.Close()

	var out []RatingExport
	for rows.Next() {
		var r RatingExport
		if err := rows.Scan(&r.FacilityName, &r.City, &r.SpecialtyName, &r.Rating); err != nil {
			return nil, eris.Wrap(err, "postgres: scan export row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FacilitiesNeedingGeocode returns facilities without coordinates that have
// not already failed geocoding.
func (s *PostgresStore) FacilitiesNeedingGeocode(ctx context.Context, limit int) ([]model.Facility, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgFacilityColumns+pgFacilityFrom+`
		WHERE f.latitude IS NULL AND NOT f.geocode_failed
		ORDER BY f.id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: facilities needing geocode")
	}
	return collectPgFacilities(rows)
}

// SetFacilityCoordinates stores geocoded coordinates for a facility.
func (s *PostgresStore) SetFacilityCoordinates(ctx context.Context, facilityID int64, lat, lon float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE facilities SET latitude = $2, longitude = $3, geocoded = TRUE,
			geocode_failed = FALSE, updated_at = now()
		WHERE id = $1`, facilityID, lat, lon)
	return eris.Wrapf(err, "postgres: set coordinates %d", facilityID)
}

// MarkGeocodeFailed records a geocoding failure.
func (s *PostgresStore) MarkGeocodeFailed(ctx context.Context, facilityID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE facilities SET geocode_failed = TRUE, updated_at = now() WHERE id = $1`, facilityID)
	return eris.Wrapf(err, "postgres: mark geocode failed %d", facilityID)
}

// GetLoadProgress returns the highest completed batch index, -1 when no batch
// has completed.
func (s *PostgresStore) GetLoadProgress(ctx context.Context) (int, error) {
	var batch *int
	err := s.pool.QueryRow(ctx, `SELECT MAX(batch_index) FROM load_progress`).Scan(&batch)
	if err != nil {
		return -1, eris.Wrap(err, "postgres: get load progress")
	}
	if batch == nil {
		return -1, nil
	}
	return *batch, nil
}

// SetLoadProgress records a completed batch index.
func (s *PostgresStore) SetLoadProgress(ctx context.Context, batchIndex int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO load_progress (batch_index) VALUES ($1)
		ON CONFLICT (batch_index) DO UPDATE SET completed_at = now()`, batchIndex)
	return eris.Wrapf(err, "postgres: set load progress %d", batchIndex)
}

// StartLoadRun records the beginning of a loader invocation.
func (s *PostgresStore) StartLoadRun(ctx context.Context, batchIndex int, region string) (*model.LoadRun, error) {
	run := &model.LoadRun{
		ID:         uuid.NewString(),
		BatchIndex: batchIndex,
		Region:     region,
		Status:     model.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO load_runs (id, batch_index, region, status, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.BatchIndex, run.Region, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start load run")
	}
	return run, nil
}

// CompleteLoadRun finalizes a loader invocation with its counts.
func (s *PostgresStore) CompleteLoadRun(ctx context.Context, runID string, status model.RunStatus, stats model.LoadStats) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE load_runs SET status = $2, added = $3, updated = $4, skipped = $5, errors = $6,
			completed_at = now()
		WHERE id = $1`,
		runID, status, stats.Added, stats.Updated, stats.Skipped, stats.Errors,
	)
	return eris.Wrapf(err, "postgres: complete load run %s", runID)
}
