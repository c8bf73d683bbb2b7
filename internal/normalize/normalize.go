// Package normalize standardizes facility and specialty fields coming from
// heterogeneous regional open-data sources before they reach the store.
package normalize

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/findmycure/findmycure-italia/internal/model"
)

var (
	diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	titleCaser      = cases.Title(language.Italian)
	multiSpace      = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")
)

// Fold lowercases, trims, and strips diacritics so near-duplicate specialty
// names ("Pediatría", "pediatria ") resolve to the same lookup key.
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(diacriticFolder, s)
	if err != nil {
		return s
	}
	return collapseSpaces(folded)
}

// TitleCase trims and title-cases a display name using Italian casing rules.
func TitleCase(s string) string {
	s = collapseSpaces(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	return titleCaser.String(s)
}

// Clean trims a free-form source field without changing its casing.
func Clean(s string) string {
	return collapseSpaces(strings.TrimSpace(s))
}

// ParseRating parses a quality rating cell. Both "." and "," are accepted as
// decimal separators. Non-numeric values report ok=false; numeric values are
// clamped into [MinRating, MaxRating] so an out-of-range rating is never
// stored verbatim.
func ParseRating(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return ClampRating(v), true
}

// ClampRating forces a numeric rating into the valid [MinRating, MaxRating] range.
func ClampRating(v float64) float64 {
	if v < model.MinRating {
		return model.MinRating
	}
	if v > model.MaxRating {
		return model.MaxRating
	}
	return v
}

// SplitSpecialties splits a source specialty field on the separators the
// regional datasets use (",", ";", "/", "|"), trimming and deduplicating
// while preserving first-seen order.
func SplitSpecialties(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	parts := []string{text}
	for _, sep := range []string{",", ";", "/", "|"} {
		var next []string
		for _, p := range parts {
			for piece := range strings.SplitSeq(p, sep) {
				if piece = strings.TrimSpace(piece); piece != "" {
					next = append(next, piece)
				}
			}
		}
		parts = next
	}

	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		key := Fold(p)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func collapseSpaces(s string) string {
	s = multiSpace.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
