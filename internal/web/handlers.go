package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/findmycure/findmycure-italia/internal/search"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// indexData feeds the search form.
type indexData struct {
	Regions     []string
	Specialties []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	regions, err := s.store.ListRegions(r.Context())
	if err != nil {
		s.renderError(w, err)
		return
	}
	specialties, err := s.store.ListSpecialties(r.Context())
	if err != nil {
		s.renderError(w, err)
		return
	}

	data := indexData{}
	for _, region := range regions {
		data.Regions = append(data.Regions, region.Name)
	}
	for _, sp := range specialties {
		data.Specialties = append(data.Specialties, sp.Name)
	}
	s.render(w, "index", data)
}

// searchParams extracts search inputs from the query string. Unparseable
// numbers are treated as absent; the search layer clamps ranges.
func searchParams(r *http.Request) search.Params {
	q := r.URL.Query()
	p := search.Params{
		Query:     q.Get("location"),
		Specialty: q.Get("specialty"),
		Region:    q.Get("region"),
		SortBy:    q.Get("sort"),
	}
	if v, err := strconv.ParseFloat(q.Get("min_quality"), 64); err == nil {
		p.MinQuality = v
	}
	if v, err := strconv.ParseFloat(q.Get("radius_km"), 64); err == nil {
		p.RadiusKm = v
	}
	if lat, err := strconv.ParseFloat(q.Get("lat"), 64); err == nil {
		if lon, err := strconv.ParseFloat(q.Get("lon"), 64); err == nil {
			p.Latitude, p.Longitude = &lat, &lon
		}
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.Limit = v
	}
	return p
}

// resultsData feeds the results page.
type resultsData struct {
	Params search.Params
	Result *search.Result
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	p := searchParams(r)
	result, err := s.search.Search(r.Context(), p)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.render(w, "results", resultsData{Params: p, Result: result})
}

func (s *Server) handleMethodology(w http.ResponseWriter, r *http.Request) {
	s.render(w, "methodology", nil)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	s.render(w, "heatmap", nil)
}

func (s *Server) handleAPIFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := s.store.FacilitiesForHeatmap(r.Context())
	if err != nil {
		zap.L().Error("heatmap feed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "failed to load facilities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"facilities": facilities})
}

func (s *Server) handleLoadData(w http.ResponseWriter, r *http.Request) {
	batch, err := strconv.Atoi(chi.URLParam(r, "batch"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "batch must be an integer")
		return
	}

	stats, err := s.loader.LoadBatch(r.Context(), batch)
	if err != nil {
		zap.L().Error("load batch", zap.Int("batch", batch), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batch":   batch,
		"added":   stats.Added,
		"updated": stats.Updated,
		"skipped": stats.Skipped,
		"errors":  stats.Errors,
	})
}

func (s *Server) handleGeocodeBatch(w http.ResponseWriter, r *http.Request) {
	n := 25
	if v, err := strconv.Atoi(r.URL.Query().Get("n")); err == nil && v > 0 {
		n = v
	}

	stats, err := s.loader.GeocodeBatch(r.Context(), n)
	if err != nil {
		zap.L().Error("geocode batch", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"geocoded": stats.Geocoded,
		"failed":   stats.Failed,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
