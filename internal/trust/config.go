// Package trust computes the 0-100 composite trust score and its
// auditable per-component breakdown.
package trust

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Scheme selects how the 100 points are allocated.
type Scheme string

const (
	// SchemeSignal combines registry, quality, and news sentiment
	// signals (40/35/25). Primary scheme.
	SchemeSignal Scheme = "signal"
	// SchemeCompleteness awards flat points for registry verification
	// and data/technical completeness (40/30/20/10). For datasets
	// without news coverage.
	SchemeCompleteness Scheme = "completeness"
)

// Weights is the fixed point table for the signal-weighted scheme's
// registry component. The ceiling stays at 40; registry-verified-and-
// active sits at the top of the range and "no registry data" at 0.
type Weights struct {
	RegistryBase     int `yaml:"registry_base"`      // having any registry snapshot
	RegistryActive   int `yaml:"registry_active"`    // company status active
	RegistryVAT      int `yaml:"registry_vat"`       // VAT registered and active
	RegistryIndustry int `yaml:"registry_industry"`  // non-empty industry codes
	RegistryEmployee int `yaml:"registry_employees"` // employee count reported
}

// DefaultWeights sums to the 40-point registry ceiling.
func DefaultWeights() Weights {
	return Weights{
		RegistryBase:     10,
		RegistryActive:   15,
		RegistryVAT:      8,
		RegistryIndustry: 4,
		RegistryEmployee: 3,
	}
}

// Total returns the sum of all registry weights.
func (w Weights) Total() int {
	return w.RegistryBase + w.RegistryActive + w.RegistryVAT + w.RegistryIndustry + w.RegistryEmployee
}

// Validate checks that a weight table keeps the registry component
// inside its 0-40 band.
func (w Weights) Validate() error {
	if w.RegistryBase < 0 || w.RegistryActive < 0 || w.RegistryVAT < 0 ||
		w.RegistryIndustry < 0 || w.RegistryEmployee < 0 {
		return eris.New("trust: negative registry weight")
	}
	if w.Total() > registryMax {
		return eris.Errorf("trust: registry weights sum to %d, ceiling is %d", w.Total(), registryMax)
	}
	return nil
}

// LoadWeights reads a weight table override from a YAML file. An empty
// path returns the defaults.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	if path == "" {
		return w, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return w, eris.Wrapf(err, "trust: read weights file %s", path)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return w, eris.Wrapf(err, "trust: parse weights file %s", path)
	}
	if err := w.Validate(); err != nil {
		return w, err
	}
	return w, nil
}
