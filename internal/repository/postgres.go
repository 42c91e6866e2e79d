package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zone-mapper/internal/models"
)

// GeocodeCache keeps resolved addresses in PostgreSQL so that a second run
// over the same registry does not pay for the same lookups again.
type GeocodeCache struct {
	db *pgxpool.Pool
}

// NewGeocodeCache creates a new PostgreSQL geocode cache
func NewGeocodeCache(db *pgxpool.Pool) *GeocodeCache {
	return &GeocodeCache{db: db}
}

// EnsureSchema creates the cache table when missing.
func (r *GeocodeCache) EnsureSchema(ctx context.Context) error {
	sql := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address    TEXT PRIMARY KEY,
		latitude   DOUBLE PRECISION NOT NULL,
		longitude  DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`
	if _, err := r.db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("repository: failed to create geocode_cache: %w", err)
	}
	return nil
}

// Lookup returns the cached coordinate of an address, if any.
func (r *GeocodeCache) Lookup(ctx context.Context, address string) (models.Coordinate, bool, error) {
	sql := `SELECT latitude, longitude FROM geocode_cache WHERE address = $1`

	var loc models.Coordinate
	err := r.db.QueryRow(ctx, sql, normalize(address)).Scan(&loc.Lat, &loc.Lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Coordinate{}, false, nil
	}
	if err != nil {
		return models.Coordinate{}, false, fmt.Errorf("repository: failed to query geocode cache: %w", err)
	}
	return loc, true, nil
}

// Store upserts the coordinate of an address.
func (r *GeocodeCache) Store(ctx context.Context, address string, loc models.Coordinate) error {
	sql := `
		INSERT INTO geocode_cache (address, latitude, longitude)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE
		SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, created_at = now()
	`
	if _, err := r.db.Exec(ctx, sql, normalize(address), loc.Lat, loc.Lng); err != nil {
		return fmt.Errorf("repository: failed to store geocode: %w", err)
	}
	return nil
}

// normalize folds case and whitespace so that trivially different spellings
// share one entry.
func normalize(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
