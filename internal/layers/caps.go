package layers

import (
	"fmt"
	"strings"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
)

// Cap names, most severe first.
const (
	CapCatastrophic = "catastrophic"
	CapCritical     = "critical"
	CapSevere       = "severe"
	CapModerate     = "moderate"
)

// Cap ceilings.
const (
	CapCatastrophicMax = 0.05
	CapCriticalMax     = 0.15
	CapSevereMax       = 0.25
	CapModerateMax     = 0.40
)

// Floor names and minimums.
const (
	FloorGlobal      = "global"
	FloorDesignation = "designation"
	FloorSPA         = "spa"

	FloorDesignationMin = 0.15
	FloorSPAMin         = 0.20
)

const FactorHardCaps = "hard_caps"

// Cap is a triggered ceiling.
type Cap struct {
	Name    string
	Max     float64
	Trigger string
}

// Floor is a candidate minimum.
type Floor struct {
	Name    string
	Min     float64
	Trigger string
}

// Bounds is the final admissible probability range for a context.
type Bounds struct {
	Min        float64
	Max        float64
	Caps       []Cap   // triggered, most severe first
	Floors     []Floor // applied
	Suppressed []Floor // floors disabled by a tighter cap
	Binding    string  // tightest triggered cap, empty if none
}

// Clamp bounds p into [Min, Max].
func (b Bounds) Clamp(p float64) float64 {
	if p > b.Max {
		return b.Max
	}
	if p < b.Min {
		return b.Min
	}
	return p
}

// ComputeBounds derives the caps and floors that apply to ctx.
// The tightest cap always binds. A floor applies only when every active cap
// sits strictly above it; the catastrophic cap removes every floor, the
// global one included.
func ComputeBounds(ctx *domain.AnalysisContext, cfg Config) Bounds {
	var caps []Cap
	if ctx.Clinical.EndpointFailed() {
		caps = append(caps, Cap{CapCatastrophic, CapCatastrophicMax, "primary endpoint not met"})
	}
	if ctx.Clinical.Region == domain.RegionChinaOnly {
		caps = append(caps, Cap{CapCritical, CapCriticalMax, "China-only pivotal data"})
	}
	if ctx.Manufacturing.HasWarningLetter {
		caps = append(caps, Cap{CapSevere, CapSevereMax, "warning letter on record"})
	}
	if ctx.AdCom.IsNegative() {
		caps = append(caps, Cap{CapModerate, CapModerateMax, "negative advisory committee vote"})
	}

	b := Bounds{Min: cfg.GlobalFloor, Max: cfg.GlobalCeiling, Caps: caps}
	catastrophic := false
	for _, c := range caps {
		if c.Max < b.Max {
			b.Max = c.Max
		}
		if b.Binding == "" {
			b.Binding = c.Name
		}
		if c.Name == CapCatastrophic {
			catastrophic = true
		}
	}

	floors := []Floor{{FloorGlobal, cfg.GlobalFloor, "global floor"}}
	if ctx.Designations.HasAny() {
		floors = append(floors, Floor{FloorDesignation, FloorDesignationMin, "FDA designation held"})
	}
	if ctx.Clinical.SPAActive() {
		floors = append(floors, Floor{FloorSPA, FloorSPAMin, "SPA agreed"})
	}

	b.Min = 0
	for _, f := range floors {
		if catastrophic || !floorAllowed(f, caps) {
			b.Suppressed = append(b.Suppressed, f)
			continue
		}
		b.Floors = append(b.Floors, f)
		if f.Min > b.Min {
			b.Min = f.Min
		}
	}
	if b.Min > b.Max {
		b.Min = b.Max
	}
	return b
}

func floorAllowed(f Floor, caps []Cap) bool {
	for _, c := range caps {
		if c.Max <= f.Min {
			return false
		}
	}
	return true
}

func capFactors(cfg Config) []definition {
	return []definition{{
		info: factor.Info{
			Name:        FactorHardCaps,
			Layer:       factor.LayerCap,
			Order:       1,
			Description: "Hard caps, floors and global bounds",
			Required:    true,
		},
		fn: func(ctx *domain.AnalysisContext, current float64) (factor.Result, error) {
			return hardCaps(ctx, cfg, current), nil
		},
	}}
}

func hardCaps(ctx *domain.AnalysisContext, cfg Config, current float64) factor.Result {
	b := ComputeBounds(ctx, cfg)
	rounded := domain.RoundProbability(current)
	bounded := b.Clamp(rounded)

	capNames := make([]string, 0, len(b.Caps))
	for _, c := range b.Caps {
		capNames = append(capNames, c.Name)
	}
	floorNames := make([]string, 0, len(b.Floors))
	for _, f := range b.Floors {
		floorNames = append(floorNames, f.Name)
	}

	var res factor.Result
	switch {
	case bounded < rounded:
		reason := fmt.Sprintf("capped at %.0f%% by global ceiling", b.Max*100)
		if b.Binding != "" {
			reason = fmt.Sprintf("capped at %.0f%% by %s cap (%s)", b.Max*100, b.Binding, capTrigger(b))
		}
		res = factor.Apply(FactorHardCaps, bounded-current, reason)
	case bounded > rounded:
		res = factor.Apply(FactorHardCaps, bounded-current,
			fmt.Sprintf("raised to %.0f%% floor (%s)", b.Min*100, strings.Join(floorNames, ", ")))
	default:
		res = factor.Neutral(FactorHardCaps, "within bounds")
	}

	res.Metadata = map[string]any{
		MetaCaps:         capNames,
		MetaFloors:       floorNames,
		MetaEffectiveMin: b.Min,
		MetaEffectiveMax: b.Max,
		MetaBindingCap:   b.Binding,
	}
	return res
}

func capTrigger(b Bounds) string {
	for _, c := range b.Caps {
		if c.Name == b.Binding {
			return c.Trigger
		}
	}
	return ""
}
