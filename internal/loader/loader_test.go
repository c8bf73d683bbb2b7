package loader

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findmycure/findmycure-italia/internal/model"
	"github.com/findmycure/findmycure-italia/internal/store"
	"github.com/findmycure/findmycure-italia/pkg/geocode"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func pugliaSource() RegionSource {
	src := RegionSource{
		Region:      "Puglia",
		File:        "puglia.csv",
		Attribution: "Regione Puglia - dati.puglia.it",
		CSV:         semicolonCSV,
		Columns:     pugliaColumns,
	}
	return src
}

const pugliaCSV = `DENOMSTRUTTURA;TIPOLOGIASTRUTTURA;INDIRIZZO;COMUNE;TELEFONO;BRANCHEAUTORIZZATE
Ospedale San Paolo;Ospedale;Via Caposcardicchio 1;BARI;080 1234;Cardiologia, Ortopedia
Clinica Santa Maria;Casa di Cura;Via Dei Mille 10;LECCE;0832 9876;Oncologia
Centro Diagnostico Murgia;Ambulatorio;Via Roma 5;ALTAMURA;;Radiologia
Ospedale San Paolo;Ospedale;Via Caposcardicchio 1/B;BARI;080 5678;Cardiologia
Presidio Jonico;Ospedale;Viale Magna Grecia 2;TARANTO;099 4444;Neurologia
`

func TestLoadRegionPugliaScenario(t *testing.T) {
	s := newTestStore(t)
	l := New(s, nil, nil, t.TempDir())
	ctx := context.Background()

	stats, err := l.LoadRegion(ctx, pugliaSource(), strings.NewReader(pugliaCSV))
	require.NoError(t, err)

	// Five rows, one of them a duplicate (name, city) key.
	assert.Equal(t, 4, stats.Added)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 0, stats.Errors)

	// The duplicate row updated the original in place.
	got, err := s.GetFacilityByKey(ctx, "Ospedale San Paolo", "Bari")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Via Caposcardicchio 1/B", got.Address)
	assert.Equal(t, "Puglia", got.RegionName)
	assert.Equal(t, "Regione Puglia - dati.puglia.it", got.Attribution)

	// Cities are title-cased from the uppercase export.
	got, err = s.GetFacilityByKey(ctx, "Presidio Jonico", "Taranto")
	require.NoError(t, err)
	require.NotNil(t, got)

	// Offered specialties are registered as search options.
	specialties, err := s.ListSpecialties(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(specialties))
	for _, sp := range specialties {
		names = append(names, sp.Name)
	}
	assert.Contains(t, names, "Cardiologia")
	assert.Contains(t, names, "Oncologia")
}

func TestLoadRegionSkipsMalformedRows(t *testing.T) {
	s := newTestStore(t)
	l := New(s, nil, nil, t.TempDir())

	input := "DENOMSTRUTTURA;COMUNE\n;BARI\nOspedale Vero;BARI\n;\n"
	src := pugliaSource()
	stats, err := l.LoadRegion(context.Background(), src, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 2, stats.Skipped)
}

func TestLoadRegionIdempotent(t *testing.T) {
	s := newTestStore(t)
	l := New(s, nil, nil, t.TempDir())
	ctx := context.Background()

	_, err := l.LoadRegion(ctx, pugliaSource(), strings.NewReader(pugliaCSV))
	require.NoError(t, err)
	stats, err := l.LoadRegion(ctx, pugliaSource(), strings.NewReader(pugliaCSV))
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Added)
	assert.Equal(t, 5, stats.Updated)

	all, err := s.SearchFacilities(ctx, store.FacilityFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestBatchBounds(t *testing.T) {
	for i := range NumBatches {
		batch, ok := Batch(i)
		require.True(t, ok)
		assert.Len(t, batch, BatchSize)
	}
	_, ok := Batch(-1)
	assert.False(t, ok)
	_, ok = Batch(NumBatches)
	assert.False(t, ok)

	// Every region appears exactly once across all batches.
	seen := make(map[string]bool)
	for _, src := range AllSources() {
		assert.False(t, seen[src.Region], src.Region)
		seen[src.Region] = true
	}
	assert.Len(t, seen, NumBatches*BatchSize)
}

func TestLoadBatchOutOfRange(t *testing.T) {
	l := New(newTestStore(t), nil, nil, t.TempDir())
	_, err := l.LoadBatch(context.Background(), 7)
	require.Error(t, err)
}

func TestNextBatch(t *testing.T) {
	s := newTestStore(t)
	l := New(s, nil, nil, t.TempDir())
	ctx := context.Background()

	next, err := l.NextBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, next)

	require.NoError(t, s.SetLoadProgress(ctx, 0))
	next, err = l.NextBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func seedFacility(t *testing.T, s *store.SQLiteStore, name, city string) *model.Facility {
	t.Helper()
	f := &model.Facility{Name: name, City: city}
	_, err := s.UpsertFacility(context.Background(), f)
	require.NoError(t, err)
	return f
}

func TestImportRatingsCSV(t *testing.T) {
	s := newTestStore(t)
	l := New(s, nil, nil, t.TempDir())
	ctx := context.Background()

	f := seedFacility(t, s, "Ospedale San Paolo", "Bari")

	// Comma decimal, out-of-range value, non-numeric cell, unknown facility,
	// and a duplicate row whose last occurrence must win.
	input := `Name of the facility,Cardiologia,Ortopedia
Ospedale San Paolo,"4,5",9
Clinica Fantasma,3,3
Ospedale San Paolo,2,n/a
`
	stats, err := l.ImportRatingsCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added) // one per (facility, specialty) pair, duplicates collapsed
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 1, stats.Skipped)

	ratings, err := s.FacilityRatings(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, ratings, 2)

	byName := make(map[string]float64)
	for _, fs := range ratings {
		byName[fs.SpecialtyName] = fs.QualityRating
	}
	assert.InDelta(t, 2.0, byName["Cardiologia"], 1e-9) // last occurrence
	assert.InDelta(t, 5.0, byName["Ortopedia"], 1e-9)   // clamped from 9

	// A second pass overwrites stored ratings instead of adding.
	stats, err = l.ImportRatingsCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Added)
	assert.Equal(t, 2, stats.Updated)
}

func TestImportRatingsCountsPerFacility(t *testing.T) {
	s := newTestStore(t)
	l := New(s, nil, nil, t.TempDir())
	ctx := context.Background()

	roma := seedFacility(t, s, "Ospedale San Giovanni", "Roma")
	torino := seedFacility(t, s, "Ospedale San Giovanni", "Torino")

	// One row fans out to every facility sharing the name.
	input := "Name of the facility,Cardiologia\nOspedale San Giovanni,4\n"
	stats, err := l.ImportRatingsCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 0, stats.Updated)

	for _, f := range []*model.Facility{roma, torino} {
		ratings, err := s.FacilityRatings(ctx, f.ID)
		require.NoError(t, err)
		require.Len(t, ratings, 1)
		assert.InDelta(t, 4.0, ratings[0].QualityRating, 1e-9)
	}
}

func TestRatingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	l := New(s, nil, nil, t.TempDir())
	ctx := context.Background()

	seedFacility(t, s, "Ospedale San Paolo", "Bari")
	seedFacility(t, s, "Clinica Santa Maria", "Lecce")

	input := `Name of the facility,Cardiologia,Oncologia
Ospedale San Paolo,4.5,
Clinica Santa Maria,,3
`
	_, err := l.ImportRatingsCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, l.ExportRatingsCSV(ctx, &out))

	diff, err := l.Compare(ctx, bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.True(t, diff.Empty(), "round trip should produce no discrepancies")
}

func TestCompareReportsDiscrepancies(t *testing.T) {
	s := newTestStore(t)
	l := New(s, nil, nil, t.TempDir())
	ctx := context.Background()

	f := seedFacility(t, s, "Ospedale San Paolo", "Bari")
	_, err := l.ImportRatingsCSV(ctx, strings.NewReader(
		"Name of the facility,Cardiologia\nOspedale San Paolo,4\n"))
	require.NoError(t, err)

	diff, err := l.Compare(ctx, strings.NewReader(
		"Name of the facility,Cardiologia,Oncologia\nOspedale San Paolo,3,2\nClinica Fantasma,1,\n"))
	require.NoError(t, err)

	require.Len(t, diff.MissingFacilities, 1)
	assert.Equal(t, "Clinica Fantasma", diff.MissingFacilities[0])
	require.Len(t, diff.RatingChanges, 1)
	assert.InDelta(t, 4.0, diff.RatingChanges[0].Stored, 1e-9)
	assert.InDelta(t, 3.0, diff.RatingChanges[0].Incoming, 1e-9)
	require.Len(t, diff.MissingRatings, 1)
	assert.Equal(t, "Oncologia", diff.MissingRatings[0].Specialty)
	assert.False(t, diff.Empty())

	// Compare never writes.
	ratings, err := s.FacilityRatings(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.InDelta(t, 4.0, ratings[0].QualityRating, 1e-9)
}

// stubGeocoder resolves cities it knows and fails the rest.
type stubGeocoder struct {
	known map[string][2]float64
	calls int
}

func (g *stubGeocoder) Geocode(ctx context.Context, q geocode.Query) (*geocode.Result, error) {
	g.calls++
	if coords, ok := g.known[q.City]; ok {
		return &geocode.Result{Latitude: coords[0], Longitude: coords[1], Matched: true}, nil
	}
	return &geocode.Result{Matched: false}, nil
}

func (g *stubGeocoder) BatchGeocode(ctx context.Context, queries []geocode.Query) ([]geocode.Result, error) {
	out := make([]geocode.Result, len(queries))
	for i, q := range queries {
		r, err := g.Geocode(ctx, q)
		if err != nil {
			return nil, err
		}
		out[i] = *r
	}
	return out, nil
}

func TestGeocodeBatchMonotonicProgress(t *testing.T) {
	s := newTestStore(t)
	gc := &stubGeocoder{known: map[string][2]float64{"Bari": {41.1171, 16.8719}}}
	l := New(s, gc, nil, t.TempDir())
	ctx := context.Background()

	seedFacility(t, s, "Ospedale di Bari", "Bari")
	seedFacility(t, s, "Clinica Atlantide", "Atlantide")

	stats, err := l.GeocodeBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Geocoded)
	assert.Equal(t, 1, stats.Failed)

	// Second invocation finds nothing left to do: failures are not retried.
	stats, err = l.GeocodeBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Geocoded)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 2, gc.calls)
}
