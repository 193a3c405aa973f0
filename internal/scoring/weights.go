package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// The nine scoring components. These names are the contract with weight
// configuration files and with the subscore map on ScoredCandidate.
const (
	ComponentStreetName     = "street_name"
	ComponentStreetGeometry = "street_geometry"
	ComponentArea           = "area"
	ComponentLocation       = "location"
	ComponentGarden         = "garden"
	ComponentRooms          = "rooms"
	ComponentBedrooms       = "bedrooms"
	ComponentBalconyTerrace = "balcony_terrace"
	ComponentEnergyLabel    = "energy_label"
)

// Components lists the recognized component names in canonical order.
var Components = []string{
	ComponentStreetName,
	ComponentStreetGeometry,
	ComponentArea,
	ComponentLocation,
	ComponentGarden,
	ComponentRooms,
	ComponentBedrooms,
	ComponentBalconyTerrace,
	ComponentEnergyLabel,
}

const weightSumTolerance = 1e-6

// ErrInvalidWeights is returned when a weight configuration cannot be used.
// Runs never proceed on a bad configuration; nothing is renormalized silently.
var ErrInvalidWeights = errors.New("invalid weight configuration")

// WeightConfiguration maps each of the nine components to a non-negative
// weight. A valid configuration carries exactly the recognized keys and sums
// to 1.0 within tolerance.
type WeightConfiguration map[string]float64

// DefaultWeights returns the baseline weighting. Weights are a business
// tuning knob; deployments override them via a JSON file.
func DefaultWeights() WeightConfiguration {
	return WeightConfiguration{
		ComponentStreetName:     0.10,
		ComponentStreetGeometry: 0.10,
		ComponentArea:           0.35,
		ComponentLocation:       0.10,
		ComponentGarden:         0.15,
		ComponentRooms:          0.08,
		ComponentBedrooms:       0.07,
		ComponentBalconyTerrace: 0.03,
		ComponentEnergyLabel:    0.02,
	}
}

// Validate checks the configuration invariants: exactly the nine recognized
// keys, all non-negative, summing to 1.0 within 1e-6.
func (w WeightConfiguration) Validate() error {
	if len(w) != len(Components) {
		return fmt.Errorf("%w: expected %d components, got %d", ErrInvalidWeights, len(Components), len(w))
	}

	var sum float64
	for _, name := range Components {
		weight, ok := w[name]
		if !ok {
			return fmt.Errorf("%w: missing component %q", ErrInvalidWeights, name)
		}
		if weight < 0 {
			return fmt.Errorf("%w: component %q has negative weight %v", ErrInvalidWeights, name, weight)
		}
		sum += weight
	}
	for name := range w {
		if !isRecognized(name) {
			return fmt.Errorf("%w: unrecognized component %q", ErrInvalidWeights, name)
		}
	}

	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1.0", ErrInvalidWeights, sum)
	}
	return nil
}

// LoadWeights reads and validates a weight configuration from a JSON file.
func LoadWeights(path string) (WeightConfiguration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights file: %w", err)
	}

	var w WeightConfiguration
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWeights, err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func isRecognized(name string) bool {
	for _, c := range Components {
		if c == name {
			return true
		}
	}
	return false
}
