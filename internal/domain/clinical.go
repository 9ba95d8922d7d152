package domain

import "time"

// TrialPhase is the development phase of the pivotal trial.
type TrialPhase int

const (
	PhaseUnknown TrialPhase = 0
	Phase1       TrialPhase = 1
	Phase2       TrialPhase = 2
	Phase3       TrialPhase = 3
	Phase4       TrialPhase = 4
)

// IsKnown reports whether the phase was resolved.
func (p TrialPhase) IsKnown() bool {
	return p >= Phase1 && p <= Phase4
}

// TrialRegion describes where the pivotal trial enrolled.
type TrialRegion string

const (
	RegionUnknown   TrialRegion = ""
	RegionUS        TrialRegion = "us"
	RegionGlobal    TrialRegion = "global"
	RegionExUS      TrialRegion = "ex_us"
	RegionChinaOnly TrialRegion = "china_only"
)

// IsValid checks if the region is a known value.
func (r TrialRegion) IsValid() bool {
	switch r {
	case RegionUS, RegionGlobal, RegionExUS, RegionChinaOnly:
		return true
	}
	return false
}

// ClinicalInfo describes the pivotal trial design and its regulatory history.
type ClinicalInfo struct {
	Phase                  TrialPhase
	PrimaryEndpointMet     *bool // nil = unknown
	SingleArm              bool
	Region                 TrialRegion
	MentalHealthIndication bool
	SPAAgreed              bool
	SPARescinded           bool
	HasClinicalHold        bool
	ClinicalHoldDate       *time.Time
	ClinicalHoldLiftedDate *time.Time
}

// EndpointMet returns the endpoint outcome and whether it is known.
func (c ClinicalInfo) EndpointMet() (met bool, known bool) {
	if c.PrimaryEndpointMet == nil {
		return false, false
	}
	return *c.PrimaryEndpointMet, true
}

// EndpointFailed reports a known primary endpoint miss.
func (c ClinicalInfo) EndpointFailed() bool {
	met, known := c.EndpointMet()
	return known && !met
}

// SPAActive reports an SPA that was agreed and not rescinded.
func (c ClinicalInfo) SPAActive() bool {
	return c.SPAAgreed && !c.SPARescinded
}

// ClinicalHoldActive reports a hold without a lift date.
func (c ClinicalInfo) ClinicalHoldActive() bool {
	return c.HasClinicalHold && c.ClinicalHoldLiftedDate == nil
}
