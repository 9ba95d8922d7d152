// Package layers holds every concrete scoring factor and the table that
// registers them.
package layers

import (
	"fmt"

	"pdufa-lab/internal/factor"
)

// Version is stamped on every factor registered by this package.
const Version = "1.0.0"

// Metadata keys shared with the analyzer.
const (
	MetaDateMissing  = "date_missing"  // a time-sensitive factor fired without its date
	MetaDaysSince    = "days_since"    // age of the triggering event in days
	MetaBindingCap   = "binding_cap"   // tightest active cap, cap layer only
	MetaCaps         = "caps"          // triggered caps, cap layer only
	MetaFloors       = "floors"        // applied floors, cap layer only
	MetaEffectiveMin = "effective_min" // cap layer only
	MetaEffectiveMax = "effective_max" // cap layer only
)

// confidenceUndatedEvent is the confidence of a time-sensitive factor that
// fired without its date.
const confidenceUndatedEvent = 0.6

// Config holds the tunable engine parameters.
type Config struct {
	BaseRate      float64 `yaml:"base_rate" validate:"gt=0,lt=1"`
	GlobalFloor   float64 `yaml:"global_floor" validate:"gte=0,lt=1"`
	GlobalCeiling float64 `yaml:"global_ceiling" validate:"gt=0,lte=1,gtfield=GlobalFloor"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		BaseRate:      0.70,
		GlobalFloor:   0.10,
		GlobalCeiling: 0.90,
	}
}

type definition struct {
	info factor.Info
	fn   factor.Func
}

// definitions returns the full factor table.
func definitions(cfg Config) []definition {
	var defs []definition
	defs = append(defs, baseFactors(cfg)...)
	defs = append(defs, designationFactors()...)
	defs = append(defs, clinicalFactors()...)
	defs = append(defs, manufacturingFactors()...)
	defs = append(defs, disputeFactors()...)
	defs = append(defs, earningsFactors()...)
	defs = append(defs, petitionFactors()...)
	defs = append(defs, adcomFactors()...)
	defs = append(defs, capFactors(cfg)...)
	return defs
}

// Register adds every factor to reg.
func Register(reg *factor.Registry, cfg Config) error {
	for _, d := range definitions(cfg) {
		d.info.Version = Version
		if err := reg.Register(d.info, d.fn); err != nil {
			return fmt.Errorf("register %s: %w", d.info.Name, err)
		}
	}
	return nil
}

// NewDefaultRegistry returns a registry populated with every factor.
func NewDefaultRegistry(cfg Config) (*factor.Registry, error) {
	reg := factor.NewRegistry()
	if err := Register(reg, cfg); err != nil {
		return nil, err
	}
	return reg, nil
}
