package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "facility_specialties",
		Columns:      []string{"facility_id", "specialty_id", "quality_rating"},
		ConflictKeys: []string{"facility_id", "specialty_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "facility_specialties",
		ConflictKeys: []string{"facility_id", "specialty_id"},
	}, [][]any{{1, 2, 4.5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:   "facility_specialties",
		Columns: []string{"facility_id", "specialty_id", "quality_rating"},
	}, [][]any{{1, 2, 4.5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"facilities", `"facilities"`},
		{"public.facilities", `"public"."facilities"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"facility_id", "specialty_id", "quality_rating"})
	assert.Equal(t, `"facility_id", "specialty_id", "quality_rating"`, result)
}
