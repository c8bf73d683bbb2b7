package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance_KnownPairs(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolKm                  float64
	}{
		{"same point", 45.4642, 9.1900, 45.4642, 9.1900, 0, 0.001},
		{"milano to roma", 45.4642, 9.1900, 41.9028, 12.4964, 477, 5},
		{"bari to taranto", 41.1171, 16.8719, 40.4644, 17.2470, 79, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.wantKm, got, tt.tolKm)
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	d1 := Distance(45.4642, 9.1900, 41.9028, 12.4964)
	d2 := Distance(41.9028, 12.4964, 45.4642, 9.1900)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestRegionForCity(t *testing.T) {
	region, ok := RegionForCity("Milano")
	assert.True(t, ok)
	assert.Equal(t, "Lombardia", region)

	region, ok = RegionForCity("  TARANTO ")
	assert.True(t, ok)
	assert.Equal(t, "Puglia", region)

	_, ok = RegionForCity("Springfield")
	assert.False(t, ok)
}
