package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"accessmap-server/models"
)

const geoCacheKey = "locations:geo"

// Redis GEO only accepts latitudes inside the Web Mercator band.
const redisMaxLatitude = 85.05112878

// Redis measures GEO distances on a 6372.797560856 km sphere. Searches are
// widened by the ratio to EarthRadiusKm, and callers filter the candidates
// again with HaversineKm.
const (
	redisEarthRadiusKm = 6372.797560856
	redisRadiusScale   = redisEarthRadiusKm / EarthRadiusKm
)

// geohashSlackKm covers the precision Redis loses when it stores a point
// as a 52 bit geohash.
const geohashSlackKm = 0.002

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient creates a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return client, nil
}

// GeoCache mirrors location coordinates into a Redis geo set so proximity
// searches can be answered by GEOSEARCH.
type GeoCache struct {
	client *redis.Client
	key    string
}

func NewGeoCache(client *redis.Client) *GeoCache {
	return &GeoCache{client: client, key: geoCacheKey}
}

func (c *GeoCache) Add(ctx context.Context, loc *models.Location) error {
	if math.Abs(loc.Coordinates.Latitude) > redisMaxLatitude {
		return fmt.Errorf("latitude %v cannot be indexed by redis", loc.Coordinates.Latitude)
	}
	return c.client.GeoAdd(ctx, c.key, &redis.GeoLocation{
		Name:      loc.ID,
		Longitude: loc.Coordinates.Longitude,
		Latitude:  loc.Coordinates.Latitude,
	}).Err()
}

func (c *GeoCache) Remove(ctx context.Context, id string) error {
	return c.client.ZRem(ctx, c.key, id).Err()
}

// searchRadiusKm converts a radius on the EarthRadiusKm sphere into one that
// Redis will not undershoot.
func searchRadiusKm(maxDistanceKm float64) float64 {
	return maxDistanceKm*redisRadiusScale + geohashSlackKm
}

// Search returns candidate ids that may lie within q.MaxDistanceKm, nearest
// first. count <= 0 means no cap.
func (c *GeoCache) Search(ctx context.Context, q ProximityQuery, count int) ([]redis.GeoLocation, error) {
	query := &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  q.Longitude,
			Latitude:   q.Latitude,
			Radius:     searchRadiusKm(q.MaxDistanceKm),
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithDist: true,
	}
	if count > 0 {
		query.Count = count
	}
	return c.client.GeoSearchLocation(ctx, c.key, query).Result()
}

// Rebuild replaces the geo set with the coordinates currently in store.
func (c *GeoCache) Rebuild(ctx context.Context, store LocationStore) (int, error) {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return 0, fmt.Errorf("clear geo set: %w", err)
	}
	added := 0
	page := Pagination{Skip: 0, Limit: MaxListLimit}
	for {
		list, err := store.List(ctx, ListFilter{}, page)
		if err != nil {
			return added, err
		}
		for i := range list.Items {
			if err := c.Add(ctx, &list.Items[i]); err != nil {
				logrus.WithError(err).WithField("id", list.Items[i].ID).Warn("Skipping location in geo cache")
				continue
			}
			added++
		}
		page.Skip += int64(len(list.Items))
		if len(list.Items) == 0 || page.Skip >= list.Total {
			break
		}
	}
	return added, nil
}

func (c *GeoCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
