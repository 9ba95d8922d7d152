package layers

import (
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
)

// Designation bonuses. Only the largest one held applies.
const (
	BonusBreakthrough        = 0.08
	BonusPriorityReview      = 0.05
	BonusOrphanDrug          = 0.04
	BonusFastTrack           = 0.03
	BonusAcceleratedApproval = 0.03
	BonusFirstInClass        = 0.02
)

func designationFactors() []definition {
	type designation struct {
		name  string
		desc  string
		bonus float64
		held  func(domain.FDADesignations) bool
	}
	table := []designation{
		{"breakthrough_therapy", "Breakthrough Therapy designation", BonusBreakthrough,
			func(d domain.FDADesignations) bool { return d.BreakthroughTherapy }},
		{"priority_review", "Priority Review designation", BonusPriorityReview,
			func(d domain.FDADesignations) bool { return d.PriorityReview }},
		{"orphan_drug", "Orphan Drug designation", BonusOrphanDrug,
			func(d domain.FDADesignations) bool { return d.OrphanDrug }},
		{"fast_track", "Fast Track designation", BonusFastTrack,
			func(d domain.FDADesignations) bool { return d.FastTrack }},
		{"accelerated_approval", "Accelerated Approval pathway", BonusAcceleratedApproval,
			func(d domain.FDADesignations) bool { return d.AcceleratedApproval }},
		{"first_in_class", "First-in-class mechanism", BonusFirstInClass,
			func(d domain.FDADesignations) bool { return d.FirstInClass }},
	}

	defs := make([]definition, 0, len(table))
	for i, d := range table {
		d := d
		defs = append(defs, definition{
			info: factor.Info{
				Name:        d.name,
				Layer:       factor.LayerDesignation,
				Order:       (i + 1) * 10,
				Description: d.desc,
				Policy:      factor.MaxOnly,
			},
			fn: func(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
				if !d.held(ctx.Designations) {
					return factor.Neutral(d.name, "not designated"), nil
				}
				return factor.Apply(d.name, d.bonus, d.desc), nil
			},
		})
	}
	return defs
}
