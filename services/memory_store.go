package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"accessmap-server/models"
	"accessmap-server/utils/errors"
)

// MemoryStore is an in-process LocationStore, used when no MONGODB_URI is
// configured and in tests. Ids use the ObjectID format so malformed ids
// behave as they do against Mongo.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*memEntry
	seq   int64
	now   func() time.Time
}

type memEntry struct {
	seq int64
	loc models.Location
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{items: map[string]*memEntry{}, now: now}
}

func (m *MemoryStore) Create(ctx context.Context, loc *models.Location) (*models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := loc.Clone()
	now := stamp(m.now())
	out.ID = primitive.NewObjectID().Hex()
	out.CreatedAt, out.UpdatedAt = now, now
	out.Tags = nonNil(out.Tags)
	out.Images = nonNil(out.Images)

	m.seq++
	m.items[out.ID] = &memEntry{seq: m.seq, loc: out}
	res := out.Clone()
	return &res, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.lookup(id)
	if !ok {
		return nil, errors.ErrNotFound
	}
	res := e.loc.Clone()
	return &res, nil
}

// lookup accepts any hex case, as ObjectIDFromHex does.
func (m *MemoryStore) lookup(id string) (*memEntry, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	e, ok := m.items[oid.Hex()]
	return e, ok
}

func (m *MemoryStore) Update(ctx context.Context, id string, patch models.LocationPatch) (*models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(id)
	if !ok {
		return nil, errors.ErrNotFound
	}
	patch.Apply(&e.loc)
	e.loc.UpdatedAt = nextUpdatedAt(e.loc.UpdatedAt, stamp(m.now()))
	res := e.loc.Clone()
	return &res, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(id)
	if !ok {
		return false, nil
	}
	delete(m.items, e.loc.ID)
	return true, nil
}

func (m *MemoryStore) List(ctx context.Context, filter ListFilter, page Pagination) (*models.LocationList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*memEntry, 0, len(m.items))
	for _, e := range m.items {
		if matchesFilter(&e.loc, filter) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.loc.CreatedAt.Equal(b.loc.CreatedAt) {
			return a.loc.CreatedAt.After(b.loc.CreatedAt)
		}
		return a.seq > b.seq
	})

	items := []models.Location{}
	for i := page.Skip; i < int64(len(matched)) && int64(len(items)) < page.Limit; i++ {
		items = append(items, matched[i].loc.Clone())
	}
	return &models.LocationList{Total: int64(len(matched)), Items: items}, nil
}

func matchesFilter(loc *models.Location, f ListFilter) bool {
	if f.LocationType != "" && loc.LocationType != f.LocationType {
		return false
	}
	if len(f.Tags) > 0 {
		have := make(map[string]struct{}, len(loc.Tags))
		for _, t := range loc.Tags {
			have[t] = struct{}{}
		}
		for _, want := range f.Tags {
			if _, ok := have[want]; !ok {
				return false
			}
		}
	}
	if f.OperationalStatus != "" {
		status, ok := models.OperationalStatusOf(loc.Details)
		if !ok || status != f.OperationalStatus {
			return false
		}
	}
	return true
}

// Nearby scans every location. Equal distances are ordered by id, as the
// Mongo pipeline sorts on {distance, _id}.
func (m *MemoryStore) Nearby(ctx context.Context, q ProximityQuery) ([]models.NearbyLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type hit struct {
		dist float64
		loc  *models.Location
	}
	center := q.Center()
	hits := []hit{}
	for _, e := range m.items {
		if q.LocationType != "" && e.loc.LocationType != q.LocationType {
			continue
		}
		d := HaversineKm(center, e.loc.Coordinates)
		if d > q.MaxDistanceKm {
			continue
		}
		hits = append(hits, hit{dist: d, loc: &e.loc})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].loc.ID < hits[j].loc.ID
	})
	if int64(len(hits)) > q.Limit {
		hits = hits[:q.Limit]
	}
	out := make([]models.NearbyLocation, 0, len(hits))
	for _, h := range hits {
		out = append(out, models.NearbyLocation{Location: h.loc.Clone(), Distance: h.dist})
	}
	return out, nil
}

func (m *MemoryStore) EnsureIndexes(ctx context.Context) error { return nil }

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close(ctx context.Context) error { return nil }
