package search

import (
	"sort"
	"strings"

	"github.com/findmycure/findmycure-italia/internal/store"
)

// sortHits orders hits in memory. With the geo filter active distance is the
// primary key and the requested sort breaks ties; otherwise the requested
// sort leads. A facility without an aggregate score sorts after all scored
// ones in both quality directions, and facility name ascending is the final
// tie-break everywhere.
func sortHits(hits []Hit, sortBy string, geoActive bool) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := &hits[i], &hits[j]

		if geoActive {
			if c := compareFloat(*a.DistanceKm, *b.DistanceKm); c != 0 {
				return c < 0
			}
		}
		if c := compareBySort(a, b, sortBy); c != 0 {
			return c < 0
		}
		return strings.Compare(a.Name, b.Name) < 0
	})
}

func compareBySort(a, b *Hit, sortBy string) int {
	switch sortBy {
	case store.SortQualityDesc:
		return compareQuality(a, b, true)
	case store.SortQualityAsc:
		return compareQuality(a, b, false)
	case store.SortNameDesc:
		return -strings.Compare(a.Name, b.Name)
	case store.SortCityAsc:
		return strings.Compare(a.City, b.City)
	case store.SortCityDesc:
		return -strings.Compare(a.City, b.City)
	default:
		return strings.Compare(a.Name, b.Name)
	}
}

// compareQuality puts nil scores last regardless of direction.
func compareQuality(a, b *Hit, desc bool) int {
	switch {
	case a.QualityScore == nil && b.QualityScore == nil:
		return 0
	case a.QualityScore == nil:
		return 1
	case b.QualityScore == nil:
		return -1
	}
	c := compareFloat(*a.QualityScore, *b.QualityScore)
	if desc {
		return -c
	}
	return c
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
