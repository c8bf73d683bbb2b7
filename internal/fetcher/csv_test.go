package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan Row, errCh <-chan error) []Row {
	t.Helper()
	var rows []Row
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	return rows
}

func TestStreamCSVHeaderKeys(t *testing.T) {
	input := "DENOMINAZIONE,COMUNE,TELEFONO\nOspedale San Paolo,Bari,080 1234\nClinica Santa Maria,Lecce,\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows := collectRows(t, rowCh, errCh)

	require.Len(t, rows, 2)
	assert.Equal(t, "Ospedale San Paolo", rows[0]["DENOMINAZIONE"])
	assert.Equal(t, "Bari", rows[0]["COMUNE"])
	assert.Equal(t, "", rows[1]["TELEFONO"])
}

func TestStreamCSVSemicolonDelimiter(t *testing.T) {
	input := "DENOMSTRUTTURA;COMUNE\nOspedale di Bari;Bari\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{Delimiter: ';'})
	rows := collectRows(t, rowCh, errCh)

	require.Len(t, rows, 1)
	assert.Equal(t, "Ospedale di Bari", rows[0]["DENOMSTRUTTURA"])
}

func TestStreamCSVTrimSpace(t *testing.T) {
	input := "Nome,Città\n  Policlinico  , Roma \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{TrimSpace: true})
	rows := collectRows(t, rowCh, errCh)

	require.Len(t, rows, 1)
	assert.Equal(t, "Policlinico", rows[0]["Nome"])
	assert.Equal(t, "Roma", rows[0]["Città"])
}

func TestStreamCSVRaggedRow(t *testing.T) {
	// A row shorter than the header keeps the missing columns absent.
	input := "a,b,c\n1,2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows := collectRows(t, rowCh, errCh)

	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0]["b"])
	_, ok := rows[0]["c"]
	assert.False(t, ok)
}

func TestStreamCSVCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a\n1\n2\n"), CSVOptions{})
	for range rowCh {
	}
	assert.Error(t, <-errCh)
}
