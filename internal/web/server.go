// Package web serves the HTML pages and JSON API.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/findmycure/findmycure-italia/internal/loader"
	"github.com/findmycure/findmycure-italia/internal/search"
	"github.com/findmycure/findmycure-italia/internal/store"
)

// Server holds the handler dependencies.
type Server struct {
	store  store.Store
	search *search.Service
	loader *loader.Loader
}

// NewServer creates the web server.
func NewServer(st store.Store, svc *search.Service, ld *loader.Loader) *Server {
	return &Server{store: st, search: svc, loader: ld}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Get("/", s.handleIndex)
	r.Get("/search", s.handleSearch)
	r.Get("/methodology", s.handleMethodology)
	r.Get("/heatmap", s.handleHeatmap)

	r.Get("/api/facilities", s.handleAPIFacilities)
	r.Post("/admin/load-data/{batch}", s.handleLoadData)
	r.Post("/admin/geocode", s.handleGeocodeBatch)
	r.Get("/health", s.handleHealth)

	return r
}
