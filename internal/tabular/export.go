package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"zone-mapper/internal/models"
)

// Columns appended to the original table by WriteAugmented.
var AssignmentHeaders = []string{"Ilotier", "Zone", "Distance (km)", "Lien Google Maps"}

// AssignmentColumns renders the four derived values of a family: owner, zone,
// distance in km with two decimals and a map link. Unassigned families give
// four empty strings.
func AssignmentColumns(f *models.Family) []string {
	if f == nil || !f.Assigned() || f.Loc == nil {
		return []string{"", "", "", ""}
	}
	return []string{
		f.Owner,
		strconv.Itoa(f.Zone),
		fmt.Sprintf("%.2f", f.Distance),
		f.Loc.MapsURL(),
	}
}

// WriteAugmented writes the original table with the assignment columns
// appended, matching rows to families through idColumn. The output format
// follows the extension of path.
func WriteAugmented(path string, t *Table, families []models.Family, idColumn string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if idColumn == "" {
		idColumn = ColFamily
	}
	idIdx := t.Column(idColumn)
	if idIdx < 0 {
		return fmt.Errorf("%w: %q", ErrMissingIDColumn, idColumn)
	}

	byID := make(map[string]*models.Family, len(families))
	for i := range families {
		byID[families[i].ID] = &families[i]
	}

	headers := append(append([]string{}, t.Headers...), AssignmentHeaders...)
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		extra := AssignmentColumns(byID[clean(row[idIdx])])
		rows = append(rows, append(append([]string{}, row...), extra...))
	}

	if format == FormatXLSX {
		sheet := t.Sheet
		if sheet == "" {
			sheet = "Familles"
		}
		return writeXLSX(path, sheet, headers, rows)
	}
	return writeCSV(path, headers, rows)
}

func writeCSV(path string, headers []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tabular: failed to create file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("tabular: failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("tabular: failed to write rows: %w", err)
	}
	return file.Close()
}

func writeXLSX(path, sheetName string, headers []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	// reuse the default sheet so it stays the active one
	if sheetName != "Sheet1" {
		f.SetSheetName("Sheet1", sheetName)
	}

	// Use Stream Writer for performance
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}

	if err := sw.SetRow("A1", toCells(headers)); err != nil {
		return err
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, toCells(r)); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
