//go:build mongo_integration

package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"accessmap-server/models"
)

func newIntegrationService(t *testing.T) *LocationService {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}
	ctx := context.Background()
	client, err := NewMongoClient(ctx, uri, 5*time.Second)
	if err != nil {
		t.Fatalf("NewMongoClient: %v", err)
	}
	coll := fmt.Sprintf("locations_test_%d", time.Now().UnixNano())
	store := NewMongoStore(client, "accessmap_test", coll, 5*time.Second)
	t.Cleanup(func() {
		_ = store.collection.Drop(context.Background())
		_ = store.Close(context.Background())
	})
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	// A second run must tolerate existing indexes.
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes again: %v", err)
	}
	return NewLocationService(store, nil, GeoBackendStore)
}

func TestMongoStoreCRUD(t *testing.T) {
	s := newIntegrationService(t)
	ctx := context.Background()

	in := input("Ramp", models.LocationTypeWheelchairRamp, 40.7128, -74.0060, "public")
	in.Details = []byte(`{"ramp_type":"permanent"}`)
	in.Metadata = models.Metadata{"survey": map[string]any{"year": 2024.0}}
	created := mustCreate(t, s, in)

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := got.Details.(*models.WheelchairRampDetails); !ok {
		t.Fatalf("details = %T", got.Details)
	}
	if _, ok := got.Metadata["survey"].(map[string]any); !ok {
		t.Errorf("nested metadata = %T", got.Metadata["survey"])
	}

	name := "Renamed"
	updated, err := s.Update(ctx, created.ID, &models.LocationUpdate{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != name || !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updated = %+v", updated)
	}

	if found, err := s.Delete(ctx, created.ID); err != nil || !found {
		t.Fatalf("Delete = %v, %v", found, err)
	}
	if found, err := s.Delete(ctx, created.ID); err != nil || found {
		t.Fatalf("second Delete = %v, %v", found, err)
	}
	if _, err := s.Get(ctx, "not-an-id"); err == nil {
		t.Fatal("malformed id should be not found")
	}
}

func TestMongoStoreNearby(t *testing.T) {
	s := newIntegrationService(t)
	ctx := context.Background()
	near := mustCreate(t, s, input("Near", models.LocationTypeStairs, 1.001, 0))
	far := mustCreate(t, s, input("Far", models.LocationTypeStairs, 1.05, 0))
	mustCreate(t, s, input("Outside", models.LocationTypeStairs, 2, 0))

	hits, err := s.SearchNearby(ctx, ProximityQuery{Latitude: 1, Longitude: 0, MaxDistanceKm: 10, Limit: 10})
	if err != nil {
		t.Fatalf("SearchNearby: %v", err)
	}
	if got := nearbyIDs(hits); len(got) != 2 || got[0] != near.ID || got[1] != far.ID {
		t.Fatalf("hits = %v", got)
	}
	if hits[0].Distance <= 0 || hits[0].Distance > 0.2 {
		t.Errorf("distance = %v km", hits[0].Distance)
	}
}
