package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"accessmap-server/utils/errors"
)

type OperationalStatus string

const (
	StatusOperational    OperationalStatus = "operational"
	StatusLimited        OperationalStatus = "limited"
	StatusNonOperational OperationalStatus = "non-operational"
)

func (s OperationalStatus) Valid() bool {
	switch s {
	case StatusOperational, StatusLimited, StatusNonOperational:
		return true
	}
	return false
}

// Details is the type-specific part of a Location. The set of implementations
// is closed: only the five variants in this file satisfy it.
type Details interface {
	Type() LocationType
	setDefaults()
	clone() Details
}

type StairsDetails struct {
	StepsCount         *int     `json:"steps_count" bson:"steps_count,omitempty" validate:"omitempty,gte=0"`
	HasHandrail        *bool    `json:"has_handrail" bson:"has_handrail,omitempty"`
	HasRampAlternative *bool    `json:"has_ramp_alternative" bson:"has_ramp_alternative,omitempty"`
	WidthMeters        *float64 `json:"width_meters" bson:"width_meters,omitempty" validate:"omitempty,gte=0"`
	IsCovered          *bool    `json:"is_covered" bson:"is_covered,omitempty"`
}

type SidewalkDetails struct {
	WidthMeters      *float64 `json:"width_meters" bson:"width_meters,omitempty" validate:"omitempty,gte=0"`
	SurfaceType      *string  `json:"surface_type" bson:"surface_type,omitempty"`
	HasTactilePaving *bool    `json:"has_tactile_paving" bson:"has_tactile_paving,omitempty"`
	IsCovered        *bool    `json:"is_covered" bson:"is_covered,omitempty"`
	Condition        *string  `json:"condition" bson:"condition,omitempty" validate:"omitempty,oneof=good fair poor"`
}

type ChargingDetails struct {
	StationName       string            `json:"station_name" bson:"station_name" validate:"required"`
	Operator          *string           `json:"operator" bson:"operator,omitempty"`
	ConnectorTypes    []string          `json:"connector_types" bson:"connector_types"`
	TotalPorts        *int              `json:"total_ports" bson:"total_ports" validate:"required,gte=0"`
	AvailablePorts    *int              `json:"available_ports" bson:"available_ports,omitempty" validate:"omitempty,gte=0"`
	MaxPowerKW        *float64          `json:"max_power_kw" bson:"max_power_kw,omitempty" validate:"omitempty,gte=0"`
	PaymentMethods    []string          `json:"payment_methods" bson:"payment_methods"`
	Open24h           *bool             `json:"open_24h" bson:"open_24h,omitempty"`
	OperationalStatus OperationalStatus `json:"operational_status" bson:"operational_status" validate:"omitempty,oneof=operational limited non-operational"`
	LastStatusUpdate  *time.Time        `json:"last_status_update" bson:"last_status_update,omitempty"`
}

type SubwayToiletDetails struct {
	StationName       string            `json:"station_name" bson:"station_name" validate:"required"`
	IsAccessible      *bool             `json:"is_accessible" bson:"is_accessible" validate:"required"`
	IsGenderNeutral   *bool             `json:"is_gender_neutral" bson:"is_gender_neutral,omitempty"`
	HasChangingTable  *bool             `json:"has_changing_table" bson:"has_changing_table,omitempty"`
	OperationalStatus OperationalStatus `json:"operational_status" bson:"operational_status" validate:"omitempty,oneof=operational limited non-operational"`
	FloorLevel        *string           `json:"floor_level" bson:"floor_level,omitempty"`
	RequiresKey       *bool             `json:"requires_key" bson:"requires_key,omitempty"`
}

type WheelchairRampDetails struct {
	RampType          string            `json:"ramp_type" bson:"ramp_type" validate:"required,oneof=permanent temporary portable"`
	InclineDegrees    *float64          `json:"incline_degrees" bson:"incline_degrees,omitempty" validate:"omitempty,gte=0,lte=90"`
	WidthMeters       *float64          `json:"width_meters" bson:"width_meters,omitempty" validate:"omitempty,gte=0"`
	SurfaceType       *string           `json:"surface_type" bson:"surface_type,omitempty"`
	HasEdgeProtection *bool             `json:"has_edge_protection" bson:"has_edge_protection,omitempty"`
	OperationalStatus OperationalStatus `json:"operational_status" bson:"operational_status" validate:"omitempty,oneof=operational limited non-operational"`
}

func (*StairsDetails) Type() LocationType         { return LocationTypeStairs }
func (*SidewalkDetails) Type() LocationType       { return LocationTypeSidewalk }
func (*ChargingDetails) Type() LocationType       { return LocationTypeChargingStation }
func (*SubwayToiletDetails) Type() LocationType   { return LocationTypeSubwayToilet }
func (*WheelchairRampDetails) Type() LocationType { return LocationTypeWheelchairRamp }

func (*StairsDetails) setDefaults()   {}
func (*SidewalkDetails) setDefaults() {}

func (d *ChargingDetails) setDefaults() {
	if d.ConnectorTypes == nil {
		d.ConnectorTypes = []string{}
	}
	if d.PaymentMethods == nil {
		d.PaymentMethods = []string{}
	}
	if d.OperationalStatus == "" {
		d.OperationalStatus = StatusOperational
	}
}

func (d *SubwayToiletDetails) setDefaults() {
	if d.OperationalStatus == "" {
		d.OperationalStatus = StatusOperational
	}
}

func (d *WheelchairRampDetails) setDefaults() {
	if d.OperationalStatus == "" {
		d.OperationalStatus = StatusOperational
	}
}

func (d *StairsDetails) clone() Details   { c := *d; return &c }
func (d *SidewalkDetails) clone() Details { c := *d; return &c }

func (d *ChargingDetails) clone() Details {
	c := *d
	c.ConnectorTypes = append([]string{}, d.ConnectorTypes...)
	c.PaymentMethods = append([]string{}, d.PaymentMethods...)
	return &c
}

func (d *SubwayToiletDetails) clone() Details   { c := *d; return &c }
func (d *WheelchairRampDetails) clone() Details { c := *d; return &c }

// NewDetails returns an empty variant for t. It is the only place that maps a
// location type to its details shape.
func NewDetails(t LocationType) (Details, error) {
	switch t {
	case LocationTypeStairs:
		return &StairsDetails{}, nil
	case LocationTypeSidewalk:
		return &SidewalkDetails{}, nil
	case LocationTypeChargingStation:
		return &ChargingDetails{}, nil
	case LocationTypeSubwayToilet:
		return &SubwayToiletDetails{}, nil
	case LocationTypeWheelchairRamp:
		return &WheelchairRampDetails{}, nil
	}
	return nil, fmt.Errorf("no details shape for location type %q", t)
}

// OperationalStatusOf returns the status carried by d, if its variant has one.
func OperationalStatusOf(d Details) (OperationalStatus, bool) {
	switch v := d.(type) {
	case *ChargingDetails:
		return v.OperationalStatus, true
	case *SubwayToiletDetails:
		return v.OperationalStatus, true
	case *WheelchairRampDetails:
		return v.OperationalStatus, true
	}
	return "", false
}

// DecodeDetails strictly decodes raw into the variant for t. An absent or
// null payload yields nil details.
func DecodeDetails(t LocationType, raw json.RawMessage) (Details, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	d, err := NewDetails(t)
	if err != nil {
		return nil, errors.Validation("location_type", err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(d); err != nil {
		return nil, errors.Validation("details", fmt.Sprintf("does not match the %s shape: %v", t, err))
	}
	d.setDefaults()
	if err := validateStruct(d, "details"); err != nil {
		return nil, err
	}
	return d, nil
}
