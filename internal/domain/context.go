package domain

import "time"

// ApplicationType is the kind of marketing application under review.
type ApplicationType string

const (
	ApplicationNDA     ApplicationType = "NDA"
	ApplicationBLA     ApplicationType = "BLA"
	ApplicationSNDA    ApplicationType = "sNDA"
	ApplicationSBLA    ApplicationType = "sBLA"
	ApplicationUnknown ApplicationType = ""
)

// String returns the string representation of ApplicationType.
func (a ApplicationType) String() string {
	return string(a)
}

// IsValid checks if the application type is a known value.
func (a ApplicationType) IsValid() bool {
	switch a {
	case ApplicationNDA, ApplicationBLA, ApplicationSNDA, ApplicationSBLA:
		return true
	}
	return false
}

// AnalysisContext is the snapshot of everything known about one PDUFA decision.
// The engine treats it as read-only; derived values are computed on every call.
type AnalysisContext struct {
	Ticker          string
	DrugName        string
	PDUFADate       *time.Time // nil when the action date is not known
	ApplicationType ApplicationType

	Designations    FDADesignations
	AdCom           AdComInfo
	CRLHistory      []CRLInfo // oldest first
	Clinical        ClinicalInfo
	Manufacturing   ManufacturingInfo
	Dispute         DisputeInfo
	EarningsCall    EarningsCallInfo
	CitizenPetition CitizenPetitionInfo

	AnalysisDate time.Time // "as of" date for every derived day count
}

// AsOf returns the analysis date, falling back to the current UTC day when unset.
func (c *AnalysisContext) AsOf() time.Time {
	if c.AnalysisDate.IsZero() {
		return time.Now().UTC()
	}
	return c.AnalysisDate
}

// DaysToPDUFA returns whole days from the analysis date to the PDUFA date.
// Negative when the date has passed. ok is false when the PDUFA date is unknown.
func (c *AnalysisContext) DaysToPDUFA() (days int, ok bool) {
	if c.PDUFADate == nil {
		return 0, false
	}
	return DaysBetween(c.AsOf(), *c.PDUFADate), true
}

// PDUFAPassed reports whether the PDUFA date lies strictly before the analysis date.
func (c *AnalysisContext) PDUFAPassed() bool {
	days, ok := c.DaysToPDUFA()
	return ok && days < 0
}

// DaysSinceAdCom returns whole days since the AdCom vote.
func (c *AnalysisContext) DaysSinceAdCom() (days int, ok bool) {
	if !c.AdCom.WasHeld || c.AdCom.VoteDate == nil {
		return 0, false
	}
	return DaysBetween(*c.AdCom.VoteDate, c.AsOf()), true
}

// DaysSinceWarningLetter returns whole days since the most recent warning letter.
func (c *AnalysisContext) DaysSinceWarningLetter() (days int, ok bool) {
	if !c.Manufacturing.HasWarningLetter || c.Manufacturing.WarningLetterDate == nil {
		return 0, false
	}
	return DaysBetween(*c.Manufacturing.WarningLetterDate, c.AsOf()), true
}

// HasPriorCRL reports whether the application has any CRL on record.
func (c *AnalysisContext) HasPriorCRL() bool {
	return len(c.CRLHistory) > 0
}

// LatestCRL returns the most recent CRL. Entries without a date rank below
// dated ones; among equals the later slice position wins.
func (c *AnalysisContext) LatestCRL() (CRLInfo, bool) {
	if len(c.CRLHistory) == 0 {
		return CRLInfo{}, false
	}
	best := 0
	for i := 1; i < len(c.CRLHistory); i++ {
		cur, prev := c.CRLHistory[i].Date, c.CRLHistory[best].Date
		switch {
		case cur == nil && prev != nil:
			continue
		case cur != nil && prev != nil && cur.Before(*prev):
			continue
		}
		best = i
	}
	return c.CRLHistory[best], true
}

// DaysBetween returns the number of calendar days from a to b, comparing UTC dates.
func DaysBetween(a, b time.Time) int {
	da := truncateDay(a)
	db := truncateDay(b)
	return int(db.Sub(da).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
