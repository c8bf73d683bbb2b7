package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// nominatimPlace is one entry of the Nominatim search JSON response.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves a query, trying progressively looser free-text searches:
// name + address + city, then name + city, then address + city, then city
// alone. The first search returning a place wins. A query no search can
// resolve yields Matched=false without an error.
func (g *geocoder) Geocode(ctx context.Context, q Query) (*Result, error) {
	if cached, ok := g.cache.get(cacheKey(q)); ok {
		return cached, nil
	}

	for _, search := range searchStrings(q) {
		result, err := g.search(ctx, search)
		if err != nil {
			return nil, err
		}
		if result.Matched {
			g.cache.put(cacheKey(q), result)
			return result, nil
		}
	}

	unmatched := &Result{Matched: false}
	g.cache.put(cacheKey(q), unmatched)
	return unmatched, nil
}

// searchStrings builds the fallback ladder of free-text searches for a query.
func searchStrings(q Query) []string {
	var out []string
	add := func(parts ...string) {
		var nonEmpty []string
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				nonEmpty = append(nonEmpty, p)
			}
		}
		if len(nonEmpty) == 0 {
			return
		}
		s := strings.Join(append(nonEmpty, "Italia"), ", ")
		for _, seen := range out {
			if seen == s {
				return
			}
		}
		out = append(out, s)
	}
	add(q.Name, q.Address, q.City)
	add(q.Name, q.City)
	add(q.Address, q.City)
	add(q.City, q.Region)
	return out
}

// search runs one Nominatim free-text search under the rate limit.
func (g *geocoder) search(ctx context.Context, freeText string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"q":            {freeText},
		"format":       {"json"},
		"limit":        {"1"},
		"countrycodes": {"it"},
	}
	reqURL := g.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	if len(places) == 0 {
		return &Result{Matched: false}, nil
	}

	place := places[0]
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lat %q", place.Lat)
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lon %q", place.Lon)
	}

	zap.L().Debug("geocode match",
		zap.String("query", freeText),
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
	)
	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: place.DisplayName,
		Matched:     true,
	}, nil
}
