package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"accessmap-server/utils/errors"
)

type LocationType string

const (
	LocationTypeStairs          LocationType = "stairs"
	LocationTypeSidewalk        LocationType = "sidewalk"
	LocationTypeChargingStation LocationType = "charging_station"
	LocationTypeSubwayToilet    LocationType = "subway_toilet"
	LocationTypeWheelchairRamp  LocationType = "wheelchair_ramp"
)

// LocationTypes lists every location type in declaration order.
var LocationTypes = []LocationType{
	LocationTypeStairs,
	LocationTypeSidewalk,
	LocationTypeChargingStation,
	LocationTypeSubwayToilet,
	LocationTypeWheelchairRamp,
}

func (t LocationType) Valid() bool {
	for _, known := range LocationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseLocationType accepts the enum value as sent over the wire.
func ParseLocationType(s string) (LocationType, error) {
	t := LocationType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown location type %q", s)
	}
	return t, nil
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that both values are finite and inside the WGS-84 ranges.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) {
		return fmt.Errorf("latitude must be finite")
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return fmt.Errorf("longitude must be finite")
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Longitude)
	}
	return nil
}

type Address struct {
	Street     *string `json:"street" bson:"street,omitempty"`
	City       string  `json:"city" bson:"city" validate:"required"`
	State      *string `json:"state" bson:"state,omitempty"`
	PostalCode *string `json:"postal_code" bson:"postal_code,omitempty"`
	Country    string  `json:"country" bson:"country" validate:"required"`
}

// GeoPoint is the GeoJSON shape coordinates are persisted in, so a 2dsphere
// index can be built on it. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

func NewGeoPoint(c Coordinates) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{c.Longitude, c.Latitude}}
}

func (g GeoPoint) ToCoordinates() Coordinates {
	if len(g.Coordinates) < 2 {
		return Coordinates{}
	}
	return Coordinates{Latitude: g.Coordinates[1], Longitude: g.Coordinates[0]}
}

// Location is an accessibility point of interest. Details holds the variant
// selected by LocationType.
type Location struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	LocationType LocationType `json:"location_type"`
	Coordinates  Coordinates  `json:"coordinates"`
	Address      Address      `json:"address"`
	Description  *string      `json:"description"`
	Tags         []string     `json:"tags"`
	Images       []string     `json:"images"`
	Details      Details      `json:"details"`
	Metadata     Metadata     `json:"metadata"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	DataSource   *string      `json:"data_source"`
}

// Clone returns a copy that shares no slices or maps with l.
func (l Location) Clone() Location {
	out := l
	out.Tags = append([]string{}, l.Tags...)
	out.Images = append([]string{}, l.Images...)
	out.Metadata = l.Metadata.Clone()
	if l.Details != nil {
		out.Details = l.Details.clone()
	}
	return out
}

type LocationList struct {
	Total int64      `json:"total"`
	Items []Location `json:"items"`
}

// NearbyLocation is a proximity search hit. Distance is in kilometers.
type NearbyLocation struct {
	Location
	Distance float64 `json:"distance"`
}

// Metadata is an open key-value bag restricted to JSON values.
type Metadata map[string]any

// UnmarshalJSON keeps integers exact: whole numbers decode to int64 and
// everything else to float64.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	for k, v := range raw {
		exact, err := exactNumbers(v)
		if err != nil {
			return errors.Validation("metadata."+k, err.Error())
		}
		raw[k] = exact
	}
	*m = raw
	return nil
}

func exactNumbers(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		return val.Float64()
	case []any:
		for i, item := range val {
			exact, err := exactNumbers(item)
			if err != nil {
				return nil, err
			}
			val[i] = exact
		}
		return val, nil
	case map[string]any:
		for k, item := range val {
			exact, err := exactNumbers(item)
			if err != nil {
				return nil, err
			}
			val[k] = exact
		}
		return val, nil
	default:
		return v, nil
	}
}

func (m Metadata) Validate() error {
	for k, v := range m {
		if k == "" || k[0] == '$' {
			return fmt.Errorf("metadata key %q is not allowed", k)
		}
		if err := checkJSONValue(v); err != nil {
			return fmt.Errorf("metadata.%s: %w", k, err)
		}
	}
	return nil
}

func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneJSONValue(v)
	}
	return out
}

func checkJSONValue(v any) error {
	switch val := v.(type) {
	case nil, bool, string, json.Number,
		float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return nil
	case []any:
		for _, item := range val {
			if err := checkJSONValue(item); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		return Metadata(val).Validate()
	default:
		return fmt.Errorf("unsupported value of type %T", v)
	}
}

func cloneJSONValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneJSONValue(item)
		}
		return out
	case map[string]any:
		return map[string]any(Metadata(val).Clone())
	default:
		return v
	}
}
