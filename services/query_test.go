package services

import (
	"math"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"accessmap-server/models"
)

func TestBuildListFilter(t *testing.T) {
	if got := buildListFilter(ListFilter{}); len(got) != 0 {
		t.Errorf("empty filter = %v", got)
	}
	got := buildListFilter(ListFilter{
		LocationType:      models.LocationTypeChargingStation,
		Tags:              []string{"ev", "24h"},
		OperationalStatus: models.StatusLimited,
	})
	want := bson.M{
		"location_type":              models.LocationTypeChargingStation,
		"tags":                       bson.M{"$all": []string{"ev", "24h"}},
		"details.operational_status": models.StatusLimited,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filter = %v, want %v", got, want)
	}
}

func TestListFindOptions(t *testing.T) {
	opts := listFindOptions(Pagination{Skip: 20, Limit: 10})
	if *opts.Skip != 20 || *opts.Limit != 10 {
		t.Errorf("skip/limit = %d/%d", *opts.Skip, *opts.Limit)
	}
	sort, ok := opts.Sort.(bson.D)
	if !ok || len(sort) != 2 || sort[0].Key != "created_at" || sort[0].Value != -1 || sort[1].Key != "_id" {
		t.Errorf("sort = %v", opts.Sort)
	}
}

func TestBuildProximityPipeline(t *testing.T) {
	q := ProximityQuery{Latitude: 40.7128, Longitude: -74.0060, MaxDistanceKm: 2.5, LocationType: models.LocationTypeStairs, Limit: 20}
	p := buildProximityPipeline(q)
	if len(p) != 4 {
		t.Fatalf("stages = %d, want 4", len(p))
	}
	if p[0][0].Key != "$geoNear" || p[1][0].Key != "$match" || p[2][0].Key != "$sort" || p[3][0].Key != "$limit" {
		t.Fatalf("stage order = %v", p)
	}
	geoNear := p[0][0].Value.(bson.D).Map()
	// 2.5 km on the 6371 km sphere is ~2502.7 m on MongoDB's 6378.1 km one.
	if m := geoNear["maxDistance"].(float64); m < 2500*6378.1/6371 || m > 2503 {
		t.Errorf("maxDistance = %v, want meters on the MongoDB sphere", m)
	}
	mult := geoNear["distanceMultiplier"].(float64)
	if got := mult * geoNear["maxDistance"].(float64); math.Abs(got-2.5) > 1e-6 {
		t.Errorf("cutoff reported as %v km, want 2.5", got)
	}
	match := p[1][0].Value.(bson.D).Map()["distance"].(bson.D).Map()
	if match["$lte"] != 2.5 {
		t.Errorf("match = %v", match)
	}
	if geoNear["spherical"] != true {
		t.Error("spherical must be set")
	}
	near := geoNear["near"].(bson.D).Map()
	coords := near["coordinates"].(bson.A)
	if coords[0] != -74.0060 || coords[1] != 40.7128 {
		t.Errorf("near coordinates = %v, want [lon, lat]", coords)
	}
	query := geoNear["query"].(bson.D).Map()
	if query["location_type"] != models.LocationTypeStairs {
		t.Errorf("query = %v", query)
	}
	if p[3][0].Value != int64(20) {
		t.Errorf("limit = %v", p[3][0].Value)
	}

	q.LocationType = ""
	if _, ok := buildProximityPipeline(q)[0][0].Value.(bson.D).Map()["query"]; ok {
		t.Error("query must be omitted without a type filter")
	}
}

func TestHaversineKm(t *testing.T) {
	nyc := models.Coordinates{Latitude: 40.7128, Longitude: -74.0060}
	if d := HaversineKm(nyc, nyc); d != 0 {
		t.Errorf("same point = %v", d)
	}
	// One degree of latitude on the 6371 km sphere.
	a := models.Coordinates{Latitude: 0, Longitude: 0}
	b := models.Coordinates{Latitude: 1, Longitude: 0}
	if d := HaversineKm(a, b); math.Abs(d-111.195) > 0.01 {
		t.Errorf("1 degree = %v km", d)
	}
	london := models.Coordinates{Latitude: 51.5074, Longitude: -0.1278}
	if d := HaversineKm(nyc, london); d < 5550 || d > 5590 {
		t.Errorf("NYC-London = %v km", d)
	}
	if HaversineKm(nyc, london) != HaversineKm(london, nyc) {
		t.Error("distance is not symmetric")
	}
}

func TestNextUpdatedAt(t *testing.T) {
	base := stamp(time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC))
	if got := nextUpdatedAt(base, base); !got.After(base) {
		t.Errorf("same instant did not advance: %v", got)
	}
	later := base.Add(time.Second)
	if got := nextUpdatedAt(base, later); !got.Equal(later) {
		t.Errorf("got %v, want %v", got, later)
	}
}

func TestPlainMetadata(t *testing.T) {
	in := models.Metadata{
		"survey": bson.M{"year": int32(2024), "tags": bson.A{"a", bson.D{{Key: "k", Value: "v"}}}},
		"count":  int64(3),
	}
	out := plainMetadata(in)
	survey, ok := out["survey"].(map[string]any)
	if !ok {
		t.Fatalf("survey = %T", out["survey"])
	}
	tags, ok := survey["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Fatalf("tags = %#v", survey["tags"])
	}
	if inner, ok := tags[1].(map[string]any); !ok || inner["k"] != "v" {
		t.Errorf("nested document = %#v", tags[1])
	}
	if out["count"] != int64(3) {
		t.Errorf("scalars must pass through, got %#v", out["count"])
	}
	if plainMetadata(nil) != nil {
		t.Error("nil stays nil")
	}
}
