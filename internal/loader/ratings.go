package loader

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findmycure/findmycure-italia/internal/model"
	"github.com/findmycure/findmycure-italia/internal/normalize"
	"github.com/findmycure/findmycure-italia/internal/specialty"
)

// ratingsNameColumn is the first header cell of the corrections format.
const ratingsNameColumn = "Name of the facility"

// readRatingsHeader reads the header row of a corrections CSV: the first
// column is the facility name, every other column a specialty.
func readRatingsHeader(reader *csv.Reader) ([]string, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "loader: ratings header")
	}
	if len(header) < 2 {
		return nil, eris.New("loader: ratings file has no specialty columns")
	}
	return header, nil
}

// ImportRatingsCSV applies a ratings corrections file. Cells that do not
// parse as numbers are ignored, out-of-range values are clamped into [1, 5],
// unknown facilities are counted as skipped, and among duplicate (facility,
// specialty) pairs the last occurrence wins. Added counts new (facility,
// specialty) ratings, Updated counts overwrites of stored ones, one per
// facility a row applies to.
func (l *Loader) ImportRatingsCSV(ctx context.Context, r io.Reader) (model.LoadStats, error) {
	var stats model.LoadStats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := readRatingsHeader(reader)
	if err != nil {
		return stats, err
	}

	specialtyIDs := make(map[string]int64)
	var batch []model.FacilitySpecialty

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, eris.Wrap(err, "loader: ratings row")
		}

		name := normalize.Clean(record[0])
		if name == "" {
			stats.Skipped++
			continue
		}
		facilities, err := l.store.FindFacilitiesByName(ctx, name)
		if err != nil {
			return stats, err
		}
		if len(facilities) == 0 {
			zap.L().Debug("ratings row for unknown facility", zap.String("name", name))
			stats.Skipped++
			continue
		}

		for col := 1; col < len(record) && col < len(header); col++ {
			rating, ok := normalize.ParseRating(record[col])
			if !ok {
				continue
			}
			canonical := specialty.Canonicalize(header[col])
			specID, ok := specialtyIDs[canonical]
			if !ok {
				specID, err = l.store.GetOrCreateSpecialty(ctx, canonical)
				if err != nil {
					return stats, err
				}
				specialtyIDs[canonical] = specID
			}
			for _, f := range facilities {
				batch = append(batch, model.FacilitySpecialty{
					FacilityID:    f.ID,
					SpecialtyID:   specID,
					QualityRating: rating,
				})
			}
		}
	}

	type pair struct{ facility, specialty int64 }
	last := make(map[pair]float64, len(batch))
	var order []pair
	for _, fs := range batch {
		p := pair{fs.FacilityID, fs.SpecialtyID}
		if _, seen := last[p]; !seen {
			order = append(order, p)
		}
		last[p] = fs.QualityRating
	}

	existing := make(map[int64]map[int64]bool)
	final := make([]model.FacilitySpecialty, 0, len(order))
	for _, p := range order {
		have, ok := existing[p.facility]
		if !ok {
			ratings, err := l.store.FacilityRatings(ctx, p.facility)
			if err != nil {
				return stats, err
			}
			have = make(map[int64]bool, len(ratings))
			for _, fs := range ratings {
				have[fs.SpecialtyID] = true
			}
			existing[p.facility] = have
		}
		if have[p.specialty] {
			stats.Updated++
		} else {
			stats.Added++
		}
		final = append(final, model.FacilitySpecialty{
			FacilityID:    p.facility,
			SpecialtyID:   p.specialty,
			QualityRating: last[p],
		})
	}

	if err := l.store.UpsertRatings(ctx, final); err != nil {
		return stats, err
	}
	return stats, nil
}

// ExportRatingsCSV writes every stored rating in the corrections format, so
// an exported file re-imports and compares clean.
func (l *Loader) ExportRatingsCSV(ctx context.Context, w io.Writer) error {
	rows, err := l.store.ExportRatings(ctx)
	if err != nil {
		return err
	}

	specialtySet := make(map[string]bool)
	for _, r := range rows {
		specialtySet[r.SpecialtyName] = true
	}
	specialties := make([]string, 0, len(specialtySet))
	for name := range specialtySet {
		specialties = append(specialties, name)
	}
	sort.Strings(specialties)

	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{ratingsNameColumn}, specialties...)); err != nil {
		return eris.Wrap(err, "loader: write ratings header")
	}

	colIdx := make(map[string]int, len(specialties))
	for i, name := range specialties {
		colIdx[name] = i + 1
	}

	// Rows arrive ordered by (facility, city, specialty); flush one output
	// row per facility on the group boundary.
	var current []string
	var curName, curCity string
	flush := func() error {
		if current == nil {
			return nil
		}
		if err := writer.Write(current); err != nil {
			return eris.Wrap(err, "loader: write ratings row")
		}
		current = nil
		return nil
	}
	for _, r := range rows {
		if current == nil || r.FacilityName != curName || r.City != curCity {
			if err := flush(); err != nil {
				return err
			}
			curName, curCity = r.FacilityName, r.City
			current = make([]string, len(specialties)+1)
			current[0] = r.FacilityName
		}
		current[colIdx[r.SpecialtyName]] = strconv.FormatFloat(r.Rating, 'f', -1, 64)
	}
	if err := flush(); err != nil {
		return err
	}

	writer.Flush()
	return eris.Wrap(writer.Error(), "loader: flush ratings export")
}

// Diff is the result of a read-only reconciliation between a corrections
// file and the store.
type Diff struct {
	MissingFacilities []string       `json:"missing_facilities,omitempty"`
	RatingChanges     []RatingChange `json:"rating_changes,omitempty"`
	MissingRatings    []RatingKey    `json:"missing_ratings,omitempty"`
}

// Empty reports whether the store already agrees with the file.
func (d *Diff) Empty() bool {
	return len(d.MissingFacilities) == 0 && len(d.RatingChanges) == 0 && len(d.MissingRatings) == 0
}

// RatingChange is a rating present on both sides with different values.
type RatingChange struct {
	Facility  string  `json:"facility"`
	City      string  `json:"city,omitempty"`
	Specialty string  `json:"specialty"`
	Stored    float64 `json:"stored"`
	Incoming  float64 `json:"incoming"`
}

// RatingKey identifies a rating present in the file but absent in the store.
type RatingKey struct {
	Facility  string `json:"facility"`
	City      string `json:"city,omitempty"`
	Specialty string `json:"specialty"`
}

// Compare reconciles a corrections file against the store without writing
// anything.
func (l *Loader) Compare(ctx context.Context, r io.Reader) (*Diff, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := readRatingsHeader(reader)
	if err != nil {
		return nil, err
	}

	diff := &Diff{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "loader: compare row")
		}

		name := normalize.Clean(record[0])
		if name == "" {
			continue
		}
		facilities, err := l.store.FindFacilitiesByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(facilities) == 0 {
			diff.MissingFacilities = append(diff.MissingFacilities, name)
			continue
		}

		for _, f := range facilities {
			stored := make(map[string]float64)
			ratings, err := l.store.FacilityRatings(ctx, f.ID)
			if err != nil {
				return nil, err
			}
			for _, fs := range ratings {
				stored[fs.SpecialtyName] = fs.QualityRating
			}

			for col := 1; col < len(record) && col < len(header); col++ {
				incoming, ok := normalize.ParseRating(record[col])
				if !ok {
					continue
				}
				canonical := specialty.Canonicalize(header[col])
				have, ok := stored[canonical]
				if !ok {
					diff.MissingRatings = append(diff.MissingRatings, RatingKey{
						Facility: f.Name, City: f.City, Specialty: canonical,
					})
					continue
				}
				if math.Abs(have-incoming) > 1e-9 {
					diff.RatingChanges = append(diff.RatingChanges, RatingChange{
						Facility: f.Name, City: f.City, Specialty: canonical,
						Stored: have, Incoming: incoming,
					})
				}
			}
		}
	}
	return diff, nil
}
