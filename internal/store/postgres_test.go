package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findmycure/findmycure-italia/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgresGetOrCreateRegion(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO regions`).
		WithArgs("Puglia").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := s.GetOrCreateRegion(context.Background(), "Puglia")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertFacilityInsertedFlag(t *testing.T) {
	s, mock := newMockStore(t)

	// pgxmock requires the argument count to match; UpsertFacility binds 14.
	anyArgs := make([]interface{}, 14)
	for i := range anyArgs {
		anyArgs[i] = pgxmock.AnyArg()
	}

	mock.ExpectQuery(`INSERT INTO facilities`).
		WithArgs(anyArgs...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow(int64(3), true))

	f := &model.Facility{Name: "Ospedale di Bari", City: "Bari"}
	created, err := s.UpsertFacility(context.Background(), f)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(3), f.ID)

	mock.ExpectQuery(`INSERT INTO facilities`).
		WithArgs(anyArgs...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow(int64(3), false))

	created, err = s.UpsertFacility(context.Background(), f)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetFacilityByKeyMiss(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM facilities`).
		WithArgs("Nessuno", "Ovunque").
		WillReturnRows(pgxmock.NewRows(nil))

	got, err := s.GetFacilityByKey(context.Background(), "Nessuno", "Ovunque")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertRatingRecomputes(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO facility_specialties`).
		WithArgs(int64(1), int64(2), 4.5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE facilities SET`).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpsertRating(context.Background(), 1, 2, 4.5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertRatingsBulk(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_facility_specialties"},
		[]string{"facility_id", "specialty_id", "quality_rating"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "facility_specialties"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	// One recompute per distinct facility in the batch.
	mock.ExpectExec(`UPDATE facilities SET`).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE facilities SET`).
		WithArgs(int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpsertRatings(context.Background(), []model.FacilitySpecialty{
		{FacilityID: 1, SpecialtyID: 10, QualityRating: 4.0},
		{FacilityID: 2, SpecialtyID: 10, QualityRating: 3.0},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetLoadProgressEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT MAX\(batch_index\) FROM load_progress`).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(nil))

	batch, err := s.GetLoadProgress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, batch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkGeocodeFailed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE facilities SET geocode_failed = TRUE`).
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkGeocodeFailed(context.Background(), 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupeRatingsLastWins(t *testing.T) {
	in := []model.FacilitySpecialty{
		{FacilityID: 1, SpecialtyID: 1, QualityRating: 2.0},
		{FacilityID: 1, SpecialtyID: 2, QualityRating: 3.0},
		{FacilityID: 1, SpecialtyID: 1, QualityRating: 4.5},
	}
	out := dedupeRatings(in)
	require.Len(t, out, 2)
	assert.InDelta(t, 4.5, out[0].QualityRating, 1e-9)
	assert.Equal(t, int64(2), out[1].SpecialtyID)
}
