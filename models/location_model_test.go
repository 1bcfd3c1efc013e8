package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestCoordinatesValidate(t *testing.T) {
	valid := []Coordinates{{0, 0}, {90, 180}, {-90, -180}, {40.7128, -74.0060}}
	for _, c := range valid {
		if err := c.Validate(); err != nil {
			t.Errorf("%+v: unexpected error %v", c, err)
		}
	}
	invalid := []Coordinates{{90.0001, 0}, {0, 180.0001}, {math.NaN(), 0}, {0, math.Inf(1)}}
	for _, c := range invalid {
		if err := c.Validate(); err == nil {
			t.Errorf("%+v: expected error", c)
		}
	}
}

func TestGeoPointOrder(t *testing.T) {
	p := NewGeoPoint(Coordinates{Latitude: 1.5, Longitude: 103.8})
	if p.Type != "Point" || p.Coordinates[0] != 103.8 || p.Coordinates[1] != 1.5 {
		t.Fatalf("GeoPoint = %+v, want [lon, lat]", p)
	}
	if back := p.ToCoordinates(); back.Latitude != 1.5 || back.Longitude != 103.8 {
		t.Fatalf("ToCoordinates = %+v", back)
	}
}

func TestParseLocationType(t *testing.T) {
	for _, lt := range LocationTypes {
		if _, err := ParseLocationType(string(lt)); err != nil {
			t.Errorf("%s: %v", lt, err)
		}
	}
	if _, err := ParseLocationType("Stairs"); err == nil {
		t.Error("location types are case sensitive")
	}
}

func TestLocationJSONRoundTripKeepsDetailsVariant(t *testing.T) {
	ports := 2
	loc := Location{
		ID:           "65f000000000000000000001",
		Name:         "Garage",
		LocationType: LocationTypeChargingStation,
		Details:      &ChargingDetails{StationName: "Garage", TotalPorts: &ports, ConnectorTypes: []string{"CCS"}, PaymentMethods: []string{}},
		Metadata:     Metadata{"source": "survey"},
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(loc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back struct {
		LocationType LocationType    `json:"location_type"`
		Details      json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	details, err := DecodeDetails(back.LocationType, back.Details)
	if err != nil {
		t.Fatalf("DecodeDetails: %v", err)
	}
	c, ok := details.(*ChargingDetails)
	if !ok || *c.TotalPorts != 2 || c.ConnectorTypes[0] != "CCS" {
		t.Fatalf("details = %#v", details)
	}
}

func TestMetadataCloneIsDeep(t *testing.T) {
	m := Metadata{"nested": map[string]any{"k": []any{"v"}}}
	c := m.Clone()
	c["nested"].(map[string]any)["k"].([]any)[0] = "changed"
	if m["nested"].(map[string]any)["k"].([]any)[0] != "v" {
		t.Fatal("clone shares nested values")
	}
}

func TestOperationalStatusOf(t *testing.T) {
	if _, ok := OperationalStatusOf(&StairsDetails{}); ok {
		t.Error("stairs carry no status")
	}
	s, ok := OperationalStatusOf(&SubwayToiletDetails{OperationalStatus: StatusLimited})
	if !ok || s != StatusLimited {
		t.Errorf("status = %q, %v", s, ok)
	}
}

func TestMetadataKeepsIntegersExact(t *testing.T) {
	var in LocationCreate
	body := `{"metadata":{"big":9007199254740993,"ratio":0.5,"nested":{"counts":[1,2.5]}}}`
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, ok := in.Metadata["big"].(int64); !ok || got != 9007199254740993 {
		t.Errorf("big = %#v", in.Metadata["big"])
	}
	if got, ok := in.Metadata["ratio"].(float64); !ok || got != 0.5 {
		t.Errorf("ratio = %#v", in.Metadata["ratio"])
	}
	counts := in.Metadata["nested"].(map[string]any)["counts"].([]any)
	if _, ok := counts[0].(int64); !ok {
		t.Errorf("counts[0] = %T", counts[0])
	}
	if _, ok := counts[1].(float64); !ok {
		t.Errorf("counts[1] = %T", counts[1])
	}

	out, err := json.Marshal(in.Metadata)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"big":9007199254740993`) {
		t.Errorf("round trip = %s", out)
	}
}

func TestMetadataRejectsOutOfRangeNumbers(t *testing.T) {
	var m Metadata
	if err := json.Unmarshal([]byte(`{"huge":1e400}`), &m); err == nil {
		t.Fatal("expected an error for 1e400")
	}
	if err := json.Unmarshal([]byte(`null`), &m); err != nil || m != nil {
		t.Errorf("null = %v, %v", m, err)
	}
}
