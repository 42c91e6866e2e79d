package report

import (
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/twpayne/go-kml/v3"

	"zone-mapper/internal/calculator"
	"zone-mapper/internal/models"
)

// Folder names of the marker file.
const (
	FolderOwners = "Ilotiers"
	FolderZone1  = "Zone 1"
	FolderZone2  = "Zone 2"
)

const iconBase = "http://maps.google.com/mapfiles/kml/paddle/"

func markerStyle(id string, c color.Color, scale float64, icon string) kml.Element {
	return kml.SharedStyle(id,
		kml.IconStyle(
			kml.Color(c),
			kml.Scale(scale),
			kml.Icon(kml.Href(iconBase+icon)),
		),
	)
}

func point(c models.Coordinate) kml.Element {
	return kml.Point(kml.Coordinates(kml.Coordinate{Lon: c.Lng, Lat: c.Lat}))
}

// EncodeKML renders owners and assigned families as a marker file for
// Google My Maps. Families without a zone are left out.
func EncodeKML(w io.Writer, res calculator.Result) error {
	owners := []kml.Element{kml.Name(FolderOwners)}
	for _, o := range res.Owners {
		owners = append(owners, kml.Placemark(
			kml.Name(o.Name),
			kml.Description(fmt.Sprintf("Ilotier Zone %d", o.Zone)),
			kml.StyleURL("#owner"),
			point(o.Loc),
		))
	}

	zones := [2][]kml.Element{{kml.Name(FolderZone1)}, {kml.Name(FolderZone2)}}
	for i := range res.Families {
		f := &res.Families[i]
		if !f.Assigned() || !f.Geocoded() {
			continue
		}
		zones[f.Zone-1] = append(zones[f.Zone-1], kml.Placemark(
			kml.Name(f.ID),
			kml.Description(fmt.Sprintf("%s\nDistance : %.2f km", f.Address, f.Distance)),
			kml.StyleURL(fmt.Sprintf("#zone%d", f.Zone)),
			point(*f.Loc),
		))
	}

	doc := kml.KML(kml.Document(
		kml.Name("Zones d'urgence"),
		kml.Description("Répartition des familles entre ilotiers"),
		markerStyle("zone1", color.RGBA{B: 255, A: 255}, 0.8, "blu-circle.png"),
		markerStyle("zone2", color.RGBA{R: 255, A: 255}, 0.8, "red-circle.png"),
		markerStyle("owner", color.RGBA{G: 255, A: 255}, 1.2, "grn-stars.png"),
		kml.Folder(owners...),
		kml.Folder(zones[0]...),
		kml.Folder(zones[1]...),
	))

	if err := doc.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("report: failed to encode kml: %w", err)
	}
	return nil
}

// WriteKML writes the marker file to path.
func WriteKML(path string, res calculator.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: failed to create kml: %w", err)
	}
	defer file.Close()

	if err := EncodeKML(file, res); err != nil {
		return err
	}
	return file.Close()
}
