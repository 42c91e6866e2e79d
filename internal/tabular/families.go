package tabular

import (
	"errors"
	"fmt"
	"strings"

	"zone-mapper/internal/models"
)

// Column names of the consular registry export.
const (
	ColFamily     = "Famille"
	ColAddress    = "Adresse postale"
	ColPostcode   = "Code postal de résidence"
	ColCity       = "Ville de residence"
	ColMainPerson = "Personne lien (O/N)"
	ColFirstNames = "Prénoms"
	ColLastName   = "Nom de famille"
	ColMobile     = "Mobile perso"
	ColPhone      = "Téléphone perso"
	ColEmail      = "Adresse électronique 2 (Usage communication consulaire et vote électronique)"
)

var ErrMissingIDColumn = errors.New("tabular: id column not found")

// LoaderOptions tunes how rows become families.
type LoaderOptions struct {
	// IDColumn defaults to ColFamily.
	IDColumn string
	// SkipIDs are family ids dropped while reading.
	SkipIDs []string
	// LatColumn and LngColumn, when both present, carry coordinates that are
	// already known. Such families skip geocoding.
	LatColumn string
	LngColumn string
}

// Families groups rows by family id. The first row of a family creates it,
// a later row flagged as the main contact replaces it. Order follows the
// first appearance of each id.
func Families(t *Table, opts LoaderOptions) ([]models.Family, error) {
	idColumn := opts.IDColumn
	if idColumn == "" {
		idColumn = ColFamily
	}
	idIdx := t.Column(idColumn)
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingIDColumn, idColumn)
	}

	skip := make(map[string]struct{}, len(opts.SkipIDs))
	for _, id := range opts.SkipIDs {
		skip[strings.TrimSpace(id)] = struct{}{}
	}

	latIdx, lngIdx := -1, -1
	if opts.LatColumn != "" && opts.LngColumn != "" {
		latIdx, lngIdx = t.Column(opts.LatColumn), t.Column(opts.LngColumn)
	}

	var order []string
	byID := make(map[string]models.Family)

	for _, row := range t.Rows {
		cell := func(name string) string {
			idx := t.Column(name)
			if idx < 0 {
				return ""
			}
			return clean(row[idx])
		}

		id := clean(row[idIdx])
		if id == "" {
			continue
		}
		if _, ok := skip[id]; ok {
			continue
		}

		_, seen := byID[id]
		if seen && cell(ColMainPerson) != "O" {
			continue
		}
		if !seen {
			order = append(order, id)
		}

		f := models.Family{
			ID:          id,
			Address:     joinNonEmpty(cell(ColAddress), cell(ColPostcode), cell(ColCity)),
			ContactName: strings.TrimSpace(cell(ColFirstNames) + " " + cell(ColLastName)),
			Mobile:      cell(ColMobile),
			Phone:       cell(ColPhone),
			Email:       cell(ColEmail),
		}
		if latIdx >= 0 && lngIdx >= 0 {
			lat, err1 := parseCoord(row[latIdx])
			lng, err2 := parseCoord(row[lngIdx])
			if err1 == nil && err2 == nil {
				f.Loc = &models.Coordinate{Lat: lat, Lng: lng}
			}
		}
		byID[id] = f
	}

	families := make([]models.Family, 0, len(order))
	for _, id := range order {
		families = append(families, byID[id])
	}
	return families, nil
}

// clean trims a cell and maps the literal "None" left by spreadsheet
// exports to an empty value.
func clean(val string) string {
	val = strings.TrimSpace(val)
	if val == "None" {
		return ""
	}
	return val
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
