package geocode

import (
	"context"
	"errors"

	"zone-mapper/internal/models"
)

var (
	// ErrNotFound means the provider answered but knows no such address.
	ErrNotFound = errors.New("geocode: address not found")
	// ErrRejected means the provider refused the request (bad key, bad input).
	// Retrying does not help.
	ErrRejected = errors.New("geocode: request rejected")
	// ErrMissingAPIKey is returned when a provider needs a key and none is set.
	ErrMissingAPIKey = errors.New("geocode: missing API key")
)

// Geocoder maps a free-text address to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coordinate, error)
}
