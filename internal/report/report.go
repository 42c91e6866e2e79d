package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"zone-mapper/internal/calculator"
	"zone-mapper/internal/models"
)

// File names written into the output directory.
const (
	JSONFile = "zones.json"
	KMLFile  = "zones.kml"
)

// Document is the structured dump of one run.
type Document struct {
	Owners   [2]models.ReferencePoint `json:"owners"`
	Families []models.Family          `json:"families"`
	Summary  calculator.Summary       `json:"summary"`
	Warnings []string                 `json:"warnings,omitempty"`
}

func NewDocument(res calculator.Result) Document {
	doc := Document{
		Owners:   res.Owners,
		Families: res.Families,
		Summary:  res.Summary,
	}
	if doc.Families == nil {
		doc.Families = []models.Family{}
	}
	for _, w := range res.Warnings {
		doc.Warnings = append(doc.Warnings, w.Error())
	}
	return doc
}

// WriteJSON writes the run as indented JSON.
func WriteJSON(path string, res calculator.Result) error {
	data, err := json.MarshalIndent(NewDocument(res), "", "  ")
	if err != nil {
		return fmt.Errorf("report: failed to encode json: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadJSON loads a document written by WriteJSON.
func ReadJSON(path string) (Document, error) {
	var doc Document
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("report: failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("report: failed to decode json: %w", err)
	}
	return doc, nil
}
