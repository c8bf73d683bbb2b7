package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bariPlace = `[{"lat":"41.1171","lon":"16.8719","display_name":"Ospedale San Paolo, Bari, Puglia, Italia"}]`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithRateLimit(1000)}, opts...)
	return NewClient(opts...)
}

func TestGeocodeMatch(t *testing.T) {
	var gotUA, gotCountry string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCountry = r.URL.Query().Get("countrycodes")
		fmt.Fprint(w, bariPlace)
	}, WithUserAgent("test-agent/1.0"))

	r, err := c.Geocode(context.Background(), Query{Name: "Ospedale San Paolo", City: "Bari"})
	require.NoError(t, err)
	require.True(t, r.Matched)
	assert.InDelta(t, 41.1171, r.Latitude, 1e-6)
	assert.InDelta(t, 16.8719, r.Longitude, 1e-6)
	assert.Equal(t, "test-agent/1.0", gotUA)
	assert.Equal(t, "it", gotCountry)
}

func TestGeocodeFallbackLadder(t *testing.T) {
	var queries []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		queries = append(queries, q)
		// Only the bare city search finds anything.
		if strings.HasPrefix(q, "Bari,") {
			fmt.Fprint(w, bariPlace)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	r, err := c.Geocode(context.Background(), Query{
		Name:    "Clinica Inesistente",
		Address: "Via Ignota 1",
		City:    "Bari",
		Region:  "Puglia",
	})
	require.NoError(t, err)
	assert.True(t, r.Matched)
	require.Len(t, queries, 4)
	assert.Equal(t, "Clinica Inesistente, Via Ignota 1, Bari, Italia", queries[0])
	assert.Equal(t, "Clinica Inesistente, Bari, Italia", queries[1])
	assert.Equal(t, "Via Ignota 1, Bari, Italia", queries[2])
	assert.Equal(t, "Bari, Puglia, Italia", queries[3])
}

func TestGeocodeUnmatched(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	r, err := c.Geocode(context.Background(), Query{City: "Atlantide"})
	require.NoError(t, err)
	assert.False(t, r.Matched)
}

func TestGeocodeServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Geocode(context.Background(), Query{City: "Bari"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestGeocodeCachesResults(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, bariPlace)
	})

	q := Query{Name: "Ospedale San Paolo", City: "Bari"}
	_, err := c.Geocode(context.Background(), q)
	require.NoError(t, err)
	_, err = c.Geocode(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGeocodeCachesNonMatches(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[]`)
	})

	q := Query{City: "Atlantide"}
	_, err := c.Geocode(context.Background(), q)
	require.NoError(t, err)
	_, err = c.Geocode(context.Background(), q)
	require.NoError(t, err)
	// One upstream request per distinct search string, none on the re-run.
	assert.Equal(t, int64(1), calls.Load())
}

func TestBatchGeocodePreservesOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if strings.HasPrefix(q, "Bari") {
			fmt.Fprint(w, bariPlace)
			return
		}
		if strings.HasPrefix(q, "Roma") {
			fmt.Fprint(w, `[{"lat":"41.9028","lon":"12.4964","display_name":"Roma, Lazio, Italia"}]`)
			return
		}
		fmt.Fprint(w, `[]`)
	}, WithConcurrency(4))

	results, err := c.BatchGeocode(context.Background(), []Query{
		{City: "Bari"},
		{City: "Atlantide"},
		{City: "Roma"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].Matched)
	assert.InDelta(t, 41.1171, results[0].Latitude, 1e-6)
	assert.False(t, results[1].Matched)
	assert.True(t, results[2].Matched)
	assert.InDelta(t, 12.4964, results[2].Longitude, 1e-6)
}

func TestBatchGeocodeToleratesServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if strings.HasPrefix(q, "Taranto") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, bariPlace)
	}, WithConcurrency(2))

	// One query hitting a server error must not discard the others.
	results, err := c.BatchGeocode(context.Background(), []Query{
		{City: "Bari"},
		{City: "Taranto"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Matched)
	assert.False(t, results[1].Matched)
}

func TestBatchGeocodeEmpty(t *testing.T) {
	c := NewClient()
	results, err := c.BatchGeocode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestSearchStringsSkipsEmptyAndDuplicates(t *testing.T) {
	got := searchStrings(Query{City: "Bari"})
	assert.Equal(t, []string{"Bari, Italia"}, got)

	got = searchStrings(Query{Name: "Clinica", City: "Bari"})
	assert.Equal(t, []string{"Clinica, Bari, Italia", "Bari, Italia"}, got)
}
