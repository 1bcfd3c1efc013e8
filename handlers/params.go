package handlers

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"accessmap-server/models"
	"accessmap-server/services"
	"accessmap-server/utils/errors"
)

// floatParam parses a finite float. ok is false when the parameter is absent.
func floatParam(q url.Values, name string) (v float64, ok bool, err error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, errors.InvalidParam(name, "must be a number")
	}
	return v, true, nil
}

func requiredFloatParam(q url.Values, name string) (float64, error) {
	v, ok, err := floatParam(q, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.InvalidParam(name, "is required")
	}
	return v, nil
}

func intParam(q url.Values, name string, def int64) (int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.InvalidParam(name, "must be an integer")
	}
	return v, nil
}

func paginationParams(q url.Values) (services.Pagination, error) {
	page := services.DefaultPagination()
	var err error
	if page.Skip, err = intParam(q, "skip", page.Skip); err != nil {
		return page, err
	}
	if page.Limit, err = intParam(q, "limit", page.Limit); err != nil {
		return page, err
	}
	return page, nil
}

// tagsParam accepts ?tags=a&tags=b as well as ?tags=a,b.
func tagsParam(q url.Values) []string {
	var tags []string
	for _, v := range q["tags"] {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func listFilterParams(q url.Values) services.ListFilter {
	return services.ListFilter{
		LocationType:      models.LocationType(strings.TrimSpace(q.Get("location_type"))),
		Tags:              tagsParam(q),
		OperationalStatus: models.OperationalStatus(strings.TrimSpace(q.Get("operational_status"))),
	}
}

func proximityParams(q url.Values) (services.ProximityQuery, error) {
	query := services.ProximityQuery{
		MaxDistanceKm: services.DefaultProximityDistanceKm,
		LocationType:  models.LocationType(strings.TrimSpace(q.Get("location_type"))),
	}
	var err error
	if query.Latitude, err = requiredFloatParam(q, "latitude"); err != nil {
		return query, err
	}
	if query.Longitude, err = requiredFloatParam(q, "longitude"); err != nil {
		return query, err
	}
	if d, ok, err := floatParam(q, "distance"); err != nil {
		return query, err
	} else if ok {
		query.MaxDistanceKm = d
	}
	if query.Limit, err = intParam(q, "limit", services.DefaultProximityLimit); err != nil {
		return query, err
	}
	return query, nil
}
