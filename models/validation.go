package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"accessmap-server/utils/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags on s and turns the first failure into a
// validation error whose field path starts at prefix.
func validateStruct(s any, prefix string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return errors.Validation(prefix, err.Error())
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	if prefix != "" {
		field = prefix + "." + field
	}
	return errors.Validation(field, describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

// CoordinatesInput uses pointers so a missing latitude or longitude is told
// apart from 0.
type CoordinatesInput struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}

func (c *CoordinatesInput) toCoordinates(field string) (Coordinates, error) {
	out := Coordinates{Latitude: *c.Latitude, Longitude: *c.Longitude}
	if err := out.Validate(); err != nil {
		sub := "latitude"
		if strings.HasPrefix(err.Error(), "longitude") {
			sub = "longitude"
		}
		return Coordinates{}, errors.Validation(field+"."+sub, err.Error())
	}
	return out, nil
}

// LocationCreate is the payload accepted when creating a location.
type LocationCreate struct {
	Name         string            `json:"name" validate:"required"`
	LocationType LocationType      `json:"location_type" validate:"required,oneof=stairs sidewalk charging_station subway_toilet wheelchair_ramp"`
	Coordinates  *CoordinatesInput `json:"coordinates" validate:"required"`
	Address      *Address          `json:"address" validate:"required"`
	Description  *string           `json:"description"`
	Tags         []string          `json:"tags"`
	Images       []string          `json:"images"`
	Details      json.RawMessage   `json:"details"`
	Metadata     Metadata          `json:"metadata"`
	DataSource   *string           `json:"data_source"`
}

// Validate checks the payload and builds the Location it describes. ID and
// timestamps are left for the store to assign.
func (in *LocationCreate) Validate() (*Location, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in, ""); err != nil {
		return nil, err
	}
	coords, err := in.Coordinates.toCoordinates("coordinates")
	if err != nil {
		return nil, err
	}
	tags, err := cleanTags(in.Tags)
	if err != nil {
		return nil, err
	}
	images, err := cleanImages(in.Images)
	if err != nil {
		return nil, err
	}
	details, err := DecodeDetails(in.LocationType, in.Details)
	if err != nil {
		return nil, err
	}
	metadata := in.Metadata
	if metadata == nil {
		metadata = Metadata{}
	}
	if err := metadata.Validate(); err != nil {
		return nil, errors.Validation("metadata", err.Error())
	}
	return &Location{
		Name:         in.Name,
		LocationType: in.LocationType,
		Coordinates:  coords,
		Address:      *in.Address,
		Description:  in.Description,
		Tags:         tags,
		Images:       images,
		Details:      details,
		Metadata:     metadata,
		DataSource:   in.DataSource,
	}, nil
}

// LocationUpdate is a partial update. Absent and null fields are left alone.
// id, created_at, updated_at and location_type have no field here, so they are
// dropped when decoding.
type LocationUpdate struct {
	Name        *string           `json:"name"`
	Coordinates *CoordinatesInput `json:"coordinates"`
	Address     *Address          `json:"address"`
	Description *string           `json:"description"`
	Tags        *[]string         `json:"tags"`
	Images      *[]string         `json:"images"`
	Details     json.RawMessage   `json:"details"`
	Metadata    *Metadata         `json:"metadata"`
	DataSource  *string           `json:"data_source"`
}

// LocationPatch is a validated LocationUpdate. Nil fields are not changed.
type LocationPatch struct {
	Name        *string
	Coordinates *Coordinates
	Address     *Address
	Description *string
	Tags        *[]string
	Images      *[]string
	Details     Details
	Metadata    *Metadata
	DataSource  *string
}

// Validate checks the update against the type of the stored location.
func (in *LocationUpdate) Validate(t LocationType) (LocationPatch, error) {
	var p LocationPatch
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return p, errors.Validation("name", "must not be empty")
		}
		p.Name = &name
	}
	if in.Coordinates != nil {
		if err := validateStruct(in.Coordinates, "coordinates"); err != nil {
			return p, err
		}
		c, err := in.Coordinates.toCoordinates("coordinates")
		if err != nil {
			return p, err
		}
		p.Coordinates = &c
	}
	if in.Address != nil {
		if err := validateStruct(in.Address, "address"); err != nil {
			return p, err
		}
		addr := *in.Address
		p.Address = &addr
	}
	p.Description = in.Description
	if in.Tags != nil {
		tags, err := cleanTags(*in.Tags)
		if err != nil {
			return p, err
		}
		p.Tags = &tags
	}
	if in.Images != nil {
		images, err := cleanImages(*in.Images)
		if err != nil {
			return p, err
		}
		p.Images = &images
	}
	details, err := DecodeDetails(t, in.Details)
	if err != nil {
		return p, err
	}
	p.Details = details
	if in.Metadata != nil {
		md := *in.Metadata
		if md == nil {
			md = Metadata{}
		}
		if err := md.Validate(); err != nil {
			return p, errors.Validation("metadata", err.Error())
		}
		p.Metadata = &md
	}
	p.DataSource = in.DataSource
	return p, nil
}

// Apply merges the patch into loc. Timestamps are not touched.
func (p LocationPatch) Apply(loc *Location) {
	if p.Name != nil {
		loc.Name = *p.Name
	}
	if p.Coordinates != nil {
		loc.Coordinates = *p.Coordinates
	}
	if p.Address != nil {
		loc.Address = *p.Address
	}
	if p.Description != nil {
		d := *p.Description
		loc.Description = &d
	}
	if p.Tags != nil {
		loc.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Images != nil {
		loc.Images = append([]string{}, (*p.Images)...)
	}
	if p.Details != nil {
		loc.Details = p.Details.clone()
	}
	if p.Metadata != nil {
		loc.Metadata = p.Metadata.Clone()
	}
	if p.DataSource != nil {
		ds := *p.DataSource
		loc.DataSource = &ds
	}
}

// cleanTags trims tags and drops duplicates; tags behave as a set.
func cleanTags(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, errors.Validation(fmt.Sprintf("tags[%d]", i), "must not be empty")
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out, nil
}

func cleanImages(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for i, img := range in {
		img = strings.TrimSpace(img)
		if img == "" {
			return nil, errors.Validation(fmt.Sprintf("images[%d]", i), "must not be empty")
		}
		out = append(out, img)
	}
	return out, nil
}
