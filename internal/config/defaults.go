package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"truckplanner/internal/models"
)

// PlanningDefaults seeds a new ConfigurationStore.
type PlanningDefaults struct {
	Planning PlanningSection     `toml:"planning"`
	Weights  models.WeightConfig `toml:"weights"`
}

type PlanningSection struct {
	PlanningWhse string `toml:"planning_whse"`
	SheetName    string `toml:"sheet_name"`
	KeyPrefix    string `toml:"key_prefix"`
}

func DefaultPlanningDefaults() PlanningDefaults {
	return PlanningDefaults{
		Planning: PlanningSection{
			PlanningWhse: models.DefaultPlanningWhse,
			KeyPrefix:    models.DefaultUploadPrefix,
		},
		Weights: models.DefaultWeightConfig(),
	}
}

// LoadPlanningDefaults reads path over the built-in defaults. A missing file
// is not an error.
func LoadPlanningDefaults(path string) (PlanningDefaults, error) {
	d := DefaultPlanningDefaults()
	if path == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return d, nil
		}
		return d, fmt.Errorf("read planning defaults: %w", err)
	}
	if err := toml.Unmarshal(data, &d); err != nil {
		return DefaultPlanningDefaults(), fmt.Errorf("parse planning defaults %s: %w", path, err)
	}
	if d.Planning.PlanningWhse == "" {
		d.Planning.PlanningWhse = models.DefaultPlanningWhse
	}
	if d.Planning.KeyPrefix == "" {
		d.Planning.KeyPrefix = models.DefaultUploadPrefix
	}
	if err := d.Weights.Validate(); err != nil {
		return DefaultPlanningDefaults(), fmt.Errorf("planning defaults %s: %w", path, err)
	}
	return d, nil
}
