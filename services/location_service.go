package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"accessmap-server/metrics"
	"accessmap-server/models"
	"accessmap-server/utils/errors"
)

// GeoBackend selects what answers proximity searches.
type GeoBackend string

const (
	GeoBackendStore GeoBackend = "store"
	GeoBackendRedis GeoBackend = "redis"
)

func ParseGeoBackend(s string) (GeoBackend, error) {
	switch GeoBackend(s) {
	case "", GeoBackendStore, "mongo":
		return GeoBackendStore, nil
	case GeoBackendRedis:
		return GeoBackendRedis, nil
	}
	return "", fmt.Errorf("unknown geo backend %q", s)
}

// LocationService validates input and drives the store. When a GeoCache is
// attached it is kept in sync with every coordinate change.
type LocationService struct {
	store      LocationStore
	cache      *GeoCache
	geoBackend GeoBackend
}

func NewLocationService(store LocationStore, cache *GeoCache, backend GeoBackend) *LocationService {
	if backend == GeoBackendRedis && cache == nil {
		logrus.Warn("Redis geo backend requested without a Redis client, using the store")
		backend = GeoBackendStore
	}
	return &LocationService{store: store, cache: cache, geoBackend: backend}
}

func (s *LocationService) Create(ctx context.Context, in *models.LocationCreate) (loc *models.Location, err error) {
	defer observe("create", time.Now(), &err)

	valid, err := in.Validate()
	if err != nil {
		return nil, err
	}
	loc, err = s.store.Create(ctx, valid)
	if err != nil {
		return nil, err
	}
	s.cacheAdd(ctx, loc)
	return loc, nil
}

func (s *LocationService) Get(ctx context.Context, id string) (loc *models.Location, err error) {
	defer observe("get", time.Now(), &err)
	return s.store.Get(ctx, id)
}

// Update validates the partial payload against the stored location's type
// and merges it. An empty payload still refreshes updated_at.
func (s *LocationService) Update(ctx context.Context, id string, in *models.LocationUpdate) (loc *models.Location, err error) {
	defer observe("update", time.Now(), &err)

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, err := in.Validate(existing.LocationType)
	if err != nil {
		return nil, err
	}
	loc, err = s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if patch.Coordinates != nil {
		s.cacheAdd(ctx, loc)
	}
	return loc, nil
}

// Delete reports whether a location was removed. Deleting twice is not an
// error; the second call reports false.
func (s *LocationService) Delete(ctx context.Context, id string) (found bool, err error) {
	defer observe("delete", time.Now(), &err)

	found, err = s.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if found && s.cache != nil {
		if err := s.cache.Remove(ctx, id); err != nil {
			metrics.GeoCacheErrors.WithLabelValues("remove").Inc()
			logrus.WithError(err).WithField("id", id).Warn("Failed to remove location from geo cache")
		}
	}
	return found, nil
}

func (s *LocationService) List(ctx context.Context, filter ListFilter, page Pagination) (list *models.LocationList, err error) {
	defer observe("list", time.Now(), &err)

	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return s.store.List(ctx, filter, page)
}

func (s *LocationService) ListByType(ctx context.Context, t models.LocationType, page Pagination) (*models.LocationList, error) {
	return s.List(ctx, ListFilter{LocationType: t}, page)
}

// SearchNearby returns locations within q.MaxDistanceKm of the center,
// nearest first, distances in kilometers.
func (s *LocationService) SearchNearby(ctx context.Context, q ProximityQuery) (hits []models.NearbyLocation, err error) {
	defer observe("nearby", time.Now(), &err)

	if err := q.Validate(); err != nil {
		return nil, err
	}
	if s.geoBackend == GeoBackendRedis {
		return s.searchGeoCache(ctx, q)
	}
	return s.store.Nearby(ctx, q)
}

// searchGeoCache finds candidate ids in Redis and loads them from the store.
// Distances are recomputed with HaversineKm and ties are broken by id, the
// same cutoff and order the in-memory store uses.
func (s *LocationService) searchGeoCache(ctx context.Context, q ProximityQuery) ([]models.NearbyLocation, error) {
	candidates, err := s.cache.Search(ctx, q, 0)
	if err != nil {
		return nil, errors.Backend("geo cache search", err)
	}
	if q.LocationType == "" {
		candidates = nearestCandidates(candidates, q.Limit)
	}
	center := q.Center()
	out := make([]models.NearbyLocation, 0, len(candidates))
	for _, c := range candidates {
		loc, err := s.store.Get(ctx, c.Name)
		if stderrors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if q.LocationType != "" && loc.LocationType != q.LocationType {
			continue
		}
		d := HaversineKm(center, loc.Coordinates)
		if d > q.MaxDistanceKm {
			continue
		}
		out = append(out, models.NearbyLocation{Location: *loc, Distance: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// nearestCandidates keeps the first limit candidates plus any that tie with
// the last of them within geohashSlackKm, so the id tie-break sees them all.
func nearestCandidates(candidates []redis.GeoLocation, limit int64) []redis.GeoLocation {
	if limit <= 0 || int64(len(candidates)) <= limit {
		return candidates
	}
	bound := candidates[limit-1].Dist + geohashSlackKm
	n := int(limit)
	for n < len(candidates) && candidates[n].Dist <= bound {
		n++
	}
	return candidates[:n]
}

func (s *LocationService) EnsureIndexes(ctx context.Context) error {
	return s.store.EnsureIndexes(ctx)
}

// KeepEnsuringIndexes retries EnsureIndexes every interval until it succeeds
// or ctx ends. Proximity search needs the 2dsphere index, so a store that
// was down at startup gets it once it comes back.
func (s *LocationService) KeepEnsuringIndexes(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		err := s.store.EnsureIndexes(ctx)
		if err == nil {
			return nil
		}
		logrus.WithError(err).Warn("Failed to ensure indexes, will retry")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RebuildGeoCache reloads the Redis geo set from the store. It is a no-op
// without a cache.
func (s *LocationService) RebuildGeoCache(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.Rebuild(ctx, s.store)
}

func (s *LocationService) cacheAdd(ctx context.Context, loc *models.Location) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Add(ctx, loc); err != nil {
		metrics.GeoCacheErrors.WithLabelValues("add").Inc()
		logrus.WithError(err).WithField("id", loc.ID).Warn("Failed to index location in geo cache")
	}
}

func observe(op string, start time.Time, errp *error) {
	outcome := "ok"
	if err := *errp; err != nil {
		switch {
		case stderrors.Is(err, errors.ErrNotFound):
			outcome = "not_found"
		case errors.IsValidation(err):
			outcome = "invalid"
		default:
			outcome = "error"
		}
	}
	metrics.StoreOperations.WithLabelValues(op, outcome).Inc()
	metrics.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
