package services

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"accessmap-server/models"
)

func newTestGeoCache(t *testing.T) *GeoCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewGeoCache(client)
}

func TestSearchRadiusCoversRedisSphere(t *testing.T) {
	for _, km := range []float64{0.001, 1, 10, 500} {
		if got, floor := searchRadiusKm(km), km*redisEarthRadiusKm/EarthRadiusKm; got < floor {
			t.Errorf("searchRadiusKm(%v) = %v, below %v", km, got, floor)
		}
	}
}

func TestNearestCandidatesKeepsTiesAtTheCap(t *testing.T) {
	in := []redis.GeoLocation{
		{Name: "a", Dist: 1},
		{Name: "c", Dist: 2},
		{Name: "b", Dist: 2.0005},
		{Name: "d", Dist: 3},
	}
	got := nearestCandidates(in, 2)
	if len(got) != 3 || got[2].Name != "b" {
		t.Errorf("nearestCandidates = %v", got)
	}
	if got := nearestCandidates(in, 10); len(got) != 4 {
		t.Errorf("under the cap = %d candidates", len(got))
	}
	if got := nearestCandidates(in, 0); len(got) != 4 {
		t.Errorf("no cap = %d candidates", len(got))
	}
}

// Both backends must agree on points just inside the cutoff.
func TestRedisBackendMatchesStoreAtCutoff(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	writer := NewLocationService(store, newTestGeoCache(t), GeoBackendRedis)
	inside := mustCreate(t, writer, input("Inside", models.LocationTypeStairs, 0.08993, 0))
	mustCreate(t, writer, input("Outside", models.LocationTypeStairs, 0.08994, 0))

	q := ProximityQuery{Latitude: 0, Longitude: 0, MaxDistanceKm: 10, Limit: 10}
	fromStore, err := NewLocationService(store, nil, GeoBackendStore).SearchNearby(ctx, q)
	if err != nil {
		t.Fatalf("store SearchNearby: %v", err)
	}
	fromRedis, err := writer.SearchNearby(ctx, q)
	if err != nil {
		t.Fatalf("redis SearchNearby: %v", err)
	}
	if len(fromStore) != 1 || fromStore[0].ID != inside.ID {
		t.Fatalf("store hits = %v", nearbyIDs(fromStore))
	}
	if len(fromRedis) != 1 || fromRedis[0].ID != inside.ID {
		t.Fatalf("redis hits = %v, want [%s]", nearbyIDs(fromRedis), inside.ID)
	}
	if fromRedis[0].Distance != fromStore[0].Distance {
		t.Errorf("distance redis=%v store=%v", fromRedis[0].Distance, fromStore[0].Distance)
	}
}

func TestRedisBackendTiesOrderByID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewLocationService(store, newTestGeoCache(t), GeoBackendRedis)
	for _, name := range []string{"A", "B", "C"} {
		mustCreate(t, s, input(name, models.LocationTypeStairs, 2, 2))
	}
	mustCreate(t, s, input("Farther", models.LocationTypeStairs, 2.01, 2))

	q := ProximityQuery{Latitude: 2, Longitude: 2, MaxDistanceKm: 5, Limit: 2}
	want, err := NewLocationService(store, nil, GeoBackendStore).SearchNearby(ctx, q)
	if err != nil {
		t.Fatalf("store SearchNearby: %v", err)
	}
	got, err := s.SearchNearby(ctx, q)
	if err != nil {
		t.Fatalf("redis SearchNearby: %v", err)
	}
	g, w := nearbyIDs(got), nearbyIDs(want)
	if len(g) != 2 || g[0] != w[0] || g[1] != w[1] {
		t.Errorf("redis = %v, store = %v", g, w)
	}
}
