package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"accessmap-server/models"
)

const seedDataSource = "seed_file"

// ParseSeed reads a YAML (or JSON) list of location payloads.
func ParseSeed(data []byte) ([]models.LocationCreate, error) {
	var raw []any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	out := make([]models.LocationCreate, 0, len(raw))
	for i, item := range raw {
		// Round-trip through JSON so seeds are decoded exactly like API bodies.
		b, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		var in models.LocationCreate
		if err := json.Unmarshal(b, &in); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}

// SeedFromFile inserts the locations in path when the store is empty.
func (s *LocationService) SeedFromFile(ctx context.Context, path string) (int, error) {
	existing, err := s.store.List(ctx, ListFilter{}, Pagination{Skip: 0, Limit: 1})
	if err != nil {
		return 0, err
	}
	if existing.Total > 0 {
		logrus.WithField("count", existing.Total).Info("Locations already present, skipping seed")
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	inputs, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}

	logrus.WithField("count", len(inputs)).Info("Seeding locations")
	created := 0
	for i := range inputs {
		in := &inputs[i]
		if in.DataSource == nil {
			src := seedDataSource
			in.DataSource = &src
		}
		if _, err := s.Create(ctx, in); err != nil {
			return created, fmt.Errorf("seed entry %d (%s): %w", i, in.Name, err)
		}
		created++
	}
	return created, nil
}
