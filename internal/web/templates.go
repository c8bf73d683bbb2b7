package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages maps a page name to its parsed template set. Each page shares the
// base layout.
var pages = func() map[string]*template.Template {
	out := make(map[string]*template.Template)
	for _, name := range []string{"index", "results", "methodology", "heatmap"} {
		out[name] = template.Must(template.New("base.html").Funcs(template.FuncMap{
			"score": formatScore,
			"km":    formatDistance,
		}).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html"))
	}
	return out
}()

// formatScore renders an aggregate quality score, or a dash for facilities
// without ratings.
func formatScore(score *float64) string {
	if score == nil {
		return "–"
	}
	return fmt.Sprintf("%.1f", *score)
}

// formatDistance renders a hit's distance from the search center.
func formatDistance(km *float64) string {
	if km == nil {
		return ""
	}
	return fmt.Sprintf("%.1f km", *km)
}

func (s *Server) render(w http.ResponseWriter, page string, data any) {
	tmpl, ok := pages[page]
	if !ok {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		zap.L().Error("render template", zap.String("page", page), zap.Error(err))
	}
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	zap.L().Error("page handler failed", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}
