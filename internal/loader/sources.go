// Package loader runs the per-region batch ETL: it streams regional
// open-data CSV files, normalizes rows into facilities, and applies
// ratings corrections.
package loader

import "github.com/findmycure/findmycure-italia/internal/fetcher"

// ColumnMap names the CSV columns of one regional export. Regions publish
// under different portals and none of them agree on headers.
type ColumnMap struct {
	Name        string
	Type        string
	Address     string
	City        string
	PostalCode  string
	Telephone   string
	Email       string
	Website     string
	Specialties string
}

// RegionSource describes one region's dataset: where it lives, how to parse
// it, and what attribution the portal requires.
type RegionSource struct {
	Region      string
	File        string // filename under the configured data directory
	URL         string // upstream dataset URL, used when the file is absent
	Attribution string
	CSV         fetcher.CSVOptions
	Columns     ColumnMap
}

// Column presets. Most portals follow one of a few header conventions.
var (
	// Puglia-style uppercase headers, semicolon-delimited.
	pugliaColumns = ColumnMap{
		Name:        "DENOMSTRUTTURA",
		Type:        "TIPOLOGIASTRUTTURA",
		Address:     "INDIRIZZO",
		City:        "COMUNE",
		Telephone:   "TELEFONO",
		Specialties: "BRANCHEAUTORIZZATE",
	}
	// Trento-style uppercase headers with contact columns.
	trentoColumns = ColumnMap{
		Name:        "DENOMINAZIONE",
		Type:        "TIPO",
		Address:     "INDIRIZZO",
		City:        "COMUNE",
		Email:       "EMAIL",
		Website:     "SITO WEB",
		Specialties: "PRESTAZIONI",
	}
	// Toscana-style capitalized Italian headers.
	toscanaColumns = ColumnMap{
		Name:       "Denominazione",
		Type:       "Tipologia",
		Address:    "Indirizzo",
		City:       "Comune",
		PostalCode: "CAP",
		Telephone:  "Telefono",
	}
	// Generic headers used by the smaller portals.
	defaultColumns = ColumnMap{
		Name:        "Nome",
		Type:        "Tipo",
		Address:     "Indirizzo",
		City:        "Città",
		Specialties: "Specialità",
	}
)

// BatchSize is the number of regions loaded per batch; NumBatches covers all
// twenty Italian regions.
const (
	BatchSize  = 5
	NumBatches = 4
)

var semicolonCSV = fetcher.CSVOptions{Delimiter: ';', TrimSpace: true, LazyQuotes: true}
var commaCSV = fetcher.CSVOptions{TrimSpace: true, LazyQuotes: true}

// sources lists every regional dataset, grouped geographically into batches
// of five so one load invocation stays bounded.
var sources = []RegionSource{
	// Batch 0: north-west and Emilia-Romagna.
	{Region: "Piemonte", File: "piemonte.csv", Attribution: "Regione Piemonte - dati.piemonte.it", CSV: semicolonCSV, Columns: toscanaColumns},
	{Region: "Valle d'Aosta", File: "valle_daosta.csv", Attribution: "Regione Autonoma Valle d'Aosta", CSV: commaCSV, Columns: defaultColumns},
	{Region: "Liguria", File: "liguria.csv", Attribution: "Regione Liguria - Liguria Digitale", CSV: commaCSV, Columns: defaultColumns},
	{Region: "Lombardia", File: "lombardia.csv", Attribution: "Regione Lombardia - dati.lombardia.it", CSV: commaCSV, Columns: toscanaColumns},
	{Region: "Emilia-Romagna", File: "emilia_romagna.csv", Attribution: "Regione Emilia-Romagna - dati.emilia-romagna.it", CSV: semicolonCSV, Columns: trentoColumns},

	// Batch 1: north-east and upper centre.
	{Region: "Veneto", File: "veneto.csv", Attribution: "Regione del Veneto - dati.veneto.it", CSV: semicolonCSV, Columns: trentoColumns},
	{Region: "Friuli-Venezia Giulia", File: "friuli_venezia_giulia.csv", Attribution: "Regione Autonoma Friuli Venezia Giulia", CSV: commaCSV, Columns: defaultColumns},
	{Region: "Trentino-Alto Adige", File: "trentino_alto_adige.csv", Attribution: "Provincia Autonoma di Trento - dati.trentino.it", CSV: commaCSV, Columns: trentoColumns},
	{Region: "Toscana", File: "toscana.csv", Attribution: "Regione Toscana - dati.toscana.it", CSV: commaCSV, Columns: toscanaColumns},
	{Region: "Marche", File: "marche.csv", Attribution: "Regione Marche - GoodPA", CSV: semicolonCSV, Columns: defaultColumns},

	// Batch 2: centre and upper south.
	{Region: "Umbria", File: "umbria.csv", Attribution: "Regione Umbria - dati.umbria.it", CSV: semicolonCSV, Columns: defaultColumns},
	{Region: "Lazio", File: "lazio.csv", Attribution: "Regione Lazio - dati.lazio.it", CSV: commaCSV, Columns: defaultColumns},
	{Region: "Abruzzo", File: "abruzzo.csv", Attribution: "Regione Abruzzo - Open Data", CSV: commaCSV, Columns: defaultColumns},
	{Region: "Molise", File: "molise.csv", Attribution: "Regione Molise - Open Data", CSV: commaCSV, Columns: defaultColumns},
	{Region: "Campania", File: "campania.csv", Attribution: "Regione Campania - dati.regione.campania.it", CSV: semicolonCSV, Columns: trentoColumns},

	// Batch 3: south and islands.
	{Region: "Puglia", File: "puglia.csv", Attribution: "Regione Puglia - dati.puglia.it", CSV: semicolonCSV, Columns: pugliaColumns},
	{Region: "Basilicata", File: "basilicata.csv", Attribution: "Regione Basilicata - dati.regione.basilicata.it", CSV: commaCSV, Columns: defaultColumns},
	{Region: "Calabria", File: "calabria.csv", Attribution: "Regione Calabria - Open Data", CSV: commaCSV, Columns: defaultColumns},
	{Region: "Sicilia", File: "sicilia.csv", Attribution: "Regione Siciliana - dati.regione.sicilia.it", CSV: semicolonCSV, Columns: defaultColumns},
	{Region: "Sardegna", File: "sardegna.csv", Attribution: "Regione Autonoma della Sardegna - dati.regione.sardegna.it", CSV: commaCSV, Columns: toscanaColumns},
}

// Batch returns the region sources of one batch. The second return is false
// when the index is out of range.
func Batch(index int) ([]RegionSource, bool) {
	if index < 0 || index >= NumBatches {
		return nil, false
	}
	return sources[index*BatchSize : (index+1)*BatchSize], true
}

// AllSources returns the full registry in batch order.
func AllSources() []RegionSource {
	out := make([]RegionSource, len(sources))
	copy(out, sources)
	return out
}
