package services

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"accessmap-server/models"
	"accessmap-server/utils/errors"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 100

	DefaultProximityLimit      = 20
	MaxProximityLimit          = 50
	DefaultProximityDistanceKm = 10.0

	metersPerKm = 1000.0
)

// ListFilter narrows a listing. Zero values mean "no filter".
type ListFilter struct {
	LocationType      models.LocationType
	Tags              []string
	OperationalStatus models.OperationalStatus
}

func (f ListFilter) Validate() error {
	if f.LocationType != "" && !f.LocationType.Valid() {
		return errors.InvalidParam("location_type", fmt.Sprintf("unknown location type %q", f.LocationType))
	}
	if f.OperationalStatus != "" && !f.OperationalStatus.Valid() {
		return errors.InvalidParam("operational_status", fmt.Sprintf("unknown status %q", f.OperationalStatus))
	}
	for _, tag := range f.Tags {
		if strings.TrimSpace(tag) == "" {
			return errors.InvalidParam("tags", "tags must not be empty")
		}
	}
	return nil
}

type Pagination struct {
	Skip  int64
	Limit int64
}

func DefaultPagination() Pagination {
	return Pagination{Skip: 0, Limit: DefaultListLimit}
}

func (p Pagination) Validate() error {
	if p.Skip < 0 {
		return errors.InvalidParam("skip", "must be >= 0")
	}
	if p.Limit < 1 || p.Limit > MaxListLimit {
		return errors.InvalidParam("limit", fmt.Sprintf("must be between 1 and %d", MaxListLimit))
	}
	return nil
}

// ProximityQuery asks for locations around a point, nearest first.
type ProximityQuery struct {
	Latitude      float64
	Longitude     float64
	MaxDistanceKm float64
	LocationType  models.LocationType
	Limit         int64
}

func (q ProximityQuery) Validate() error {
	center := models.Coordinates{Latitude: q.Latitude, Longitude: q.Longitude}
	if err := center.Validate(); err != nil {
		field := "latitude"
		if strings.HasPrefix(err.Error(), "longitude") {
			field = "longitude"
		}
		return errors.InvalidParam(field, err.Error())
	}
	if !(q.MaxDistanceKm > 0) {
		return errors.InvalidParam("distance", "must be > 0")
	}
	if q.LocationType != "" && !q.LocationType.Valid() {
		return errors.InvalidParam("location_type", fmt.Sprintf("unknown location type %q", q.LocationType))
	}
	if q.Limit < 1 || q.Limit > MaxProximityLimit {
		return errors.InvalidParam("limit", fmt.Sprintf("must be between 1 and %d", MaxProximityLimit))
	}
	return nil
}

func (q ProximityQuery) Center() models.Coordinates {
	return models.Coordinates{Latitude: q.Latitude, Longitude: q.Longitude}
}

// buildListFilter translates a ListFilter into a Mongo predicate. Tags are
// conjunctive; the status filter targets the nested details field, which
// variants without a status never carry.
func buildListFilter(f ListFilter) bson.M {
	filter := bson.M{}
	if f.LocationType != "" {
		filter["location_type"] = f.LocationType
	}
	if len(f.Tags) > 0 {
		filter["tags"] = bson.M{"$all": f.Tags}
	}
	if f.OperationalStatus != "" {
		filter["details.operational_status"] = f.OperationalStatus
	}
	return filter
}

// listFindOptions pages newest first; _id breaks created_at ties.
func listFindOptions(p Pagination) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(p.Skip).
		SetLimit(p.Limit)
}

// MongoDB measures $geoNear distances on a 6378.1 km sphere. The pipeline
// rescales to EarthRadiusKm so both stores apply the same cutoff and report
// the same distances.
const (
	mongoEarthRadiusKm = 6378.1
	mongoRadiusScale   = mongoEarthRadiusKm / EarthRadiusKm
)

// buildProximityPipeline builds a $geoNear aggregation. Distances come back
// in kilometers; equal distances fall back to _id order.
func buildProximityPipeline(q ProximityQuery) mongo.Pipeline {
	geoNear := bson.D{
		{Key: "near", Value: bson.D{
			{Key: "type", Value: "Point"},
			{Key: "coordinates", Value: bson.A{q.Longitude, q.Latitude}},
		}},
		{Key: "distanceField", Value: "distance"},
		{Key: "maxDistance", Value: q.MaxDistanceKm * metersPerKm * mongoRadiusScale * (1 + 1e-9)},
		{Key: "spherical", Value: true},
		{Key: "distanceMultiplier", Value: 1 / (metersPerKm * mongoRadiusScale)},
	}
	if q.LocationType != "" {
		geoNear = append(geoNear, bson.E{Key: "query", Value: bson.D{{Key: "location_type", Value: q.LocationType}}})
	}
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: geoNear}},
		{{Key: "$match", Value: bson.D{{Key: "distance", Value: bson.D{{Key: "$lte", Value: q.MaxDistanceKm}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "distance", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: q.Limit}},
	}
}
