package geocode

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"zone-mapper/internal/models"
)

// Google resolves addresses through the Google Geocoding API.
type Google struct {
	client *maps.Client
	region string
}

// NewGoogle creates a Google geocoder. Region is an optional ccTLD bias such
// as "fr".
func NewGoogle(apiKey, region string, opts ...maps.ClientOption) (*Google, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("geocode: failed to create maps client: %w", err)
	}
	return &Google{client: client, region: region}, nil
}

// Geocode returns the location of the first result.
func (g *Google) Geocode(ctx context.Context, address string) (models.Coordinate, error) {
	if strings.TrimSpace(address) == "" {
		return models.Coordinate{}, ErrNotFound
	}

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  g.region,
	})
	if err != nil {
		if rejected(err) {
			return models.Coordinate{}, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return models.Coordinate{}, fmt.Errorf("geocode: google request failed: %w", err)
	}
	if len(results) == 0 {
		return models.Coordinate{}, ErrNotFound
	}

	loc := results[0].Geometry.Location
	return models.Coordinate{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// rejected spots the API statuses that will not change on retry. The maps
// client reports them only as text.
func rejected(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "REQUEST_DENIED") || strings.Contains(msg, "INVALID_REQUEST")
}
