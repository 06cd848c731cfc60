package controller

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"truckplanner/internal/config"
	"truckplanner/internal/models"
	"truckplanner/internal/util"
)

const (
	FieldPlanningWhse   = "planning_whse"
	FieldAllowMultiStop = "allow_multi_stop"
	FieldSheetName      = "sheet_name"
	FieldTexasMax       = "texas_max"
	FieldTexasMin       = "texas_min"
	FieldOtherMax       = "other_max"
	FieldOtherMin       = "other_min"
	FieldLoadTargetPct  = "load_target_pct"
)

// MultiStopEnabled gates the multi-stop control. The optimizer contract for
// multi-stop routing is unconfirmed, so requests always carry false.
const MultiStopEnabled = false

// ConfigurationStore holds the editable planning parameters. Values are not
// range-checked on assignment; WeightConfig.Validate runs before submission.
type ConfigurationStore struct {
	mu       sync.RWMutex
	planning models.PlanningParams
	weights  models.WeightConfig
}

func NewConfigurationStore(d config.PlanningDefaults) *ConfigurationStore {
	return &ConfigurationStore{
		planning: models.PlanningParams{
			PlanningWhse: d.Planning.PlanningWhse,
			SheetName:    d.Planning.SheetName,
		},
		weights: d.Weights,
	}
}

// SetField assigns one parameter from its text form. Numeric fields are
// parsed to float64.
func (s *ConfigurationStore) SetField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch name {
	case FieldPlanningWhse:
		s.planning.PlanningWhse = strings.TrimSpace(value)
		return nil
	case FieldSheetName:
		s.planning.SheetName = strings.TrimSpace(value)
		return nil
	case FieldAllowMultiStop:
		on, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if on && !MultiStopEnabled {
			return fmt.Errorf("%s: %w", name, util.ErrFieldDisabled)
		}
		s.planning.AllowMultiStop = on
		return nil
	}

	target := s.weightField(name)
	if target == nil {
		return fmt.Errorf("%q: %w", name, util.ErrUnknownField)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number", name, value)
	}
	*target = n
	return nil
}

func (s *ConfigurationStore) weightField(name string) *float64 {
	switch name {
	case FieldTexasMax:
		return &s.weights.TexasMax
	case FieldTexasMin:
		return &s.weights.TexasMin
	case FieldOtherMax:
		return &s.weights.OtherMax
	case FieldOtherMin:
		return &s.weights.OtherMin
	case FieldLoadTargetPct:
		return &s.weights.LoadTargetPct
	}
	return nil
}

// Snapshot returns a copy; later edits do not reach a request already built from it.
func (s *ConfigurationStore) Snapshot() models.WeightConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weights
}

// Planning returns the non-weight parameters with multi-stop forced off
// while the control is disabled.
func (s *ConfigurationStore) Planning() models.PlanningParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.planning
	if !MultiStopEnabled {
		p.AllowMultiStop = false
	}
	return p
}

// Fields lists every parameter in its text form.
func (s *ConfigurationStore) Fields() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return map[string]string{
		FieldPlanningWhse:   s.planning.PlanningWhse,
		FieldSheetName:      s.planning.SheetName,
		FieldAllowMultiStop: strconv.FormatBool(s.planning.AllowMultiStop),
		FieldTexasMax:       f(s.weights.TexasMax),
		FieldTexasMin:       f(s.weights.TexasMin),
		FieldOtherMax:       f(s.weights.OtherMax),
		FieldOtherMin:       f(s.weights.OtherMin),
		FieldLoadTargetPct:  f(s.weights.LoadTargetPct),
	}
}
