package layers

import (
	"fmt"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
)

// Manufacturing and regulatory history adjustments.
const (
	AdjPAIPassed = 0.03
	AdjPAIFailed = -0.15

	AdjWarningLetterRecent  = -0.15 // issued within WarningLetterRecentDays
	AdjWarningLetterAging   = -0.10
	AdjWarningLetterStale   = -0.05 // older than WarningLetterStaleDays
	AdjWarningLetterUndated = -0.15

	AdjForm483Minor    = -0.02 // 1-3 observations
	AdjForm483Moderate = -0.05 // 4-9 observations
	AdjForm483Major    = -0.08 // 10 or more

	AdjCDMOIssues = -0.05

	AdjPriorCRLCMCClass1 = 0.05
	AdjPriorCRLCMCClass2 = 0.03
	AdjPriorCRLCMCOpen   = -0.02
	AdjPriorCRLOther     = -0.10
	AdjRepeatCRL         = -0.05
)

// Warning letter age boundaries in days.
const (
	WarningLetterRecentDays = 180
	WarningLetterStaleDays  = 365
)

const (
	FactorPAIStatus     = "pai_status"
	FactorWarningLetter = "warning_letter"
	FactorForm483       = "form_483"
	FactorCDMOIssues    = "cdmo_issues"
	FactorPriorCRL      = "prior_crl"
	FactorRepeatCRL     = "repeat_crl"
)

func manufacturingFactors() []definition {
	info := func(name string, order int, desc string) factor.Info {
		return factor.Info{Name: name, Layer: factor.LayerManufacturing, Order: order, Description: desc}
	}
	return []definition{
		{info(FactorPAIStatus, 10, "Pre-approval inspection outcome"), paiStatus},
		{info(FactorWarningLetter, 20, "FDA warning letter at a manufacturing site"), warningLetter},
		{info(FactorForm483, 30, "Form 483 inspection observations"), form483},
		{info(FactorCDMOIssues, 40, "Open compliance issues at the contract manufacturer"), cdmoIssues},
		{info(FactorPriorCRL, 50, "Nature of the most recent complete response letter"), priorCRL},
		{info(FactorRepeatCRL, 60, "Multiple complete response letters on record"), repeatCRL},
	}
}

func paiStatus(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	switch ctx.Manufacturing.PAIStatus {
	case domain.PAIPassed:
		return factor.Apply(FactorPAIStatus, AdjPAIPassed, "pre-approval inspection passed"), nil
	case domain.PAIFailed:
		return factor.Apply(FactorPAIStatus, AdjPAIFailed, "pre-approval inspection failed"), nil
	default:
		return factor.Neutral(FactorPAIStatus, "inspection pending or unknown"), nil
	}
}

func warningLetter(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	if !ctx.Manufacturing.HasWarningLetter {
		return factor.Neutral(FactorWarningLetter, "no warning letter"), nil
	}

	days, dated := ctx.DaysSinceWarningLetter()
	if !dated {
		res := factor.Apply(FactorWarningLetter, AdjWarningLetterUndated, "warning letter on record, date unknown")
		res.Confidence = confidenceUndatedEvent
		return res.With(MetaDateMissing, true), nil
	}

	var (
		adj   float64
		label string
	)
	switch {
	case days <= WarningLetterRecentDays:
		adj, label = AdjWarningLetterRecent, "recent"
	case days > WarningLetterStaleDays:
		adj, label = AdjWarningLetterStale, "stale"
	default:
		adj, label = AdjWarningLetterAging, "aging"
	}
	return factor.Apply(FactorWarningLetter, adj,
		fmt.Sprintf("%s warning letter (%d days old)", label, days)).
		With(MetaDaysSince, days), nil
}

func form483(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	n := ctx.Manufacturing.Form483Observations
	var adj float64
	switch {
	case n <= 0:
		return factor.Neutral(FactorForm483, "no Form 483 observations"), nil
	case n <= 3:
		adj = AdjForm483Minor
	case n <= 9:
		adj = AdjForm483Moderate
	default:
		adj = AdjForm483Major
	}
	return factor.Apply(FactorForm483, adj, fmt.Sprintf("%d Form 483 observations", n)).
		With("observations", n), nil
}

func cdmoIssues(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	m := ctx.Manufacturing
	if !m.CDMOHasOpenIssues {
		return factor.Neutral(FactorCDMOIssues, "no open CDMO issues"), nil
	}
	name := m.CDMOName
	if name == "" {
		name = "contract manufacturer"
	}
	return factor.Apply(FactorCDMOIssues, AdjCDMOIssues, fmt.Sprintf("open compliance issues at %s", name)), nil
}

func priorCRL(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	latest, ok := ctx.LatestCRL()
	if !ok {
		return factor.Neutral(FactorPriorCRL, "no prior CRL"), nil
	}
	if !latest.IsCMCOnly() {
		return factor.Apply(FactorPriorCRL, AdjPriorCRLOther,
			fmt.Sprintf("prior CRL for %s deficiencies", crlLabel(latest))), nil
	}
	switch latest.ResubmissionClass {
	case domain.ResubmissionClass1:
		return factor.Apply(FactorPriorCRL, AdjPriorCRLCMCClass1, "CMC-only CRL, class 1 resubmission"), nil
	case domain.ResubmissionClass2:
		return factor.Apply(FactorPriorCRL, AdjPriorCRLCMCClass2, "CMC-only CRL, class 2 resubmission"), nil
	default:
		return factor.Apply(FactorPriorCRL, AdjPriorCRLCMCOpen, "CMC-only CRL, resubmission class unknown"), nil
	}
}

func repeatCRL(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	n := len(ctx.CRLHistory)
	if n < 2 {
		return factor.Neutral(FactorRepeatCRL, "fewer than two CRLs"), nil
	}
	return factor.Apply(FactorRepeatCRL, AdjRepeatCRL, fmt.Sprintf("%d CRLs on record", n)).
		With("crl_count", n), nil
}

func crlLabel(c domain.CRLInfo) string {
	if c.ReasonType != "" {
		return c.ReasonType
	}
	if c.Type != domain.CRLTypeUnknown {
		return string(c.Type)
	}
	return "unspecified"
}
