package loader

import (
	"strings"

	"pdufa-lab/internal/domain"
)

func key(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s
}

func phase(n int) domain.TrialPhase {
	p := domain.TrialPhase(n)
	if !p.IsKnown() {
		return domain.PhaseUnknown
	}
	return p
}

func applicationType(s string) domain.ApplicationType {
	switch key(s) {
	case "nda":
		return domain.ApplicationNDA
	case "bla":
		return domain.ApplicationBLA
	case "snda":
		return domain.ApplicationSNDA
	case "sbla":
		return domain.ApplicationSBLA
	default:
		return domain.ApplicationUnknown
	}
}

func region(s string) domain.TrialRegion {
	switch key(s) {
	case "us", "usa", "united_states", "us_only":
		return domain.RegionUS
	case "global", "multinational", "multi_regional", "worldwide":
		return domain.RegionGlobal
	case "ex_us", "non_us", "exus", "outside_us":
		return domain.RegionExUS
	case "china_only", "china":
		return domain.RegionChinaOnly
	default:
		return domain.RegionUnknown
	}
}

func paiStatus(s string) domain.PAIStatus {
	switch key(s) {
	case "passed", "pass", "nai", "vai", "clean":
		return domain.PAIPassed
	case "failed", "fail", "oai":
		return domain.PAIFailed
	case "pending", "scheduled", "in_progress":
		return domain.PAIPending
	default:
		return domain.PAIUnknown
	}
}

func crlType(s string) domain.CRLType {
	switch key(s) {
	case "cmc", "manufacturing", "cmc_only":
		return domain.CRLTypeCMC
	case "clinical":
		return domain.CRLTypeClinical
	case "safety":
		return domain.CRLTypeSafety
	case "efficacy":
		return domain.CRLTypeEfficacy
	case "labeling", "label":
		return domain.CRLTypeLabeling
	case "mixed", "multiple":
		return domain.CRLTypeMixed
	default:
		return domain.CRLTypeUnknown
	}
}

func resubmissionClass(s string) domain.ResubmissionClass {
	switch key(s) {
	case "class_1", "class1", "1":
		return domain.ResubmissionClass1
	case "class_2", "class2", "2":
		return domain.ResubmissionClass2
	default:
		return domain.ResubmissionNone
	}
}

func disputeOutcome(s string) domain.DisputeOutcome {
	switch key(s) {
	case "won", "granted", "favorable":
		return domain.DisputeWon
	case "partially_won", "partial":
		return domain.DisputePartiallyWon
	case "lost", "denied", "unfavorable":
		return domain.DisputeLost
	case "pending":
		return domain.DisputePending
	default:
		return domain.DisputeUnknown
	}
}

func petitionStatus(s string) domain.PetitionStatus {
	switch key(s) {
	case "pending", "filed", "open":
		return domain.PetitionPending
	case "denied", "rejected":
		return domain.PetitionDenied
	case "granted", "approved":
		return domain.PetitionGranted
	default:
		return domain.PetitionUnknown
	}
}
