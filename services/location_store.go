package services

import (
	"context"
	"time"

	"accessmap-server/models"
)

// LocationStore is the persistence contract for locations. Lookups by an id
// the backend cannot parse report ErrNotFound, the same as a missing id.
// Backend failures come back as 503 APIErrors, never as ErrNotFound.
type LocationStore interface {
	Create(ctx context.Context, loc *models.Location) (*models.Location, error)
	Get(ctx context.Context, id string) (*models.Location, error)
	Update(ctx context.Context, id string, patch models.LocationPatch) (*models.Location, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter ListFilter, page Pagination) (*models.LocationList, error)
	Nearby(ctx context.Context, q ProximityQuery) ([]models.NearbyLocation, error)
	EnsureIndexes(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// stamp truncates to the millisecond precision Mongo keeps.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// nextUpdatedAt keeps updated_at strictly increasing even when the clock
// has not moved past the previous value.
func nextUpdatedAt(prev, now time.Time) time.Time {
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}
