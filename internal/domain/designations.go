package domain

import "time"

// FDADesignations holds the expedited-pathway flags granted to an application.
type FDADesignations struct {
	BreakthroughTherapy bool
	PriorityReview      bool
	FastTrack           bool
	OrphanDrug          bool
	AcceleratedApproval bool
	FirstInClass        bool
}

// Count returns the number of designations held.
func (d FDADesignations) Count() int {
	n := 0
	for _, v := range []bool{
		d.BreakthroughTherapy,
		d.PriorityReview,
		d.FastTrack,
		d.OrphanDrug,
		d.AcceleratedApproval,
		d.FirstInClass,
	} {
		if v {
			n++
		}
	}
	return n
}

// HasAny reports whether at least one designation is held.
func (d FDADesignations) HasAny() bool {
	return d.Count() > 0
}

// AdComInfo is the advisory committee outcome.
type AdComInfo struct {
	WasHeld    bool
	VotesFor   int
	VotesTotal int
	VoteDate   *time.Time
}

// VoteRatio returns the favorable share of votes in [0,1].
// ok is false when no committee was held or no votes were recorded.
func (a AdComInfo) VoteRatio() (ratio float64, ok bool) {
	if !a.WasHeld || a.VotesTotal <= 0 {
		return 0, false
	}
	r := float64(a.VotesFor) / float64(a.VotesTotal)
	if r < 0 {
		r = 0
	}
	if r > 1 {
		r = 1
	}
	return r, true
}

// IsPositive reports a held committee with more than half the votes in favor.
func (a AdComInfo) IsPositive() bool {
	r, ok := a.VoteRatio()
	return ok && r > 0.5
}

// IsNegative reports a held committee with half or fewer votes in favor.
func (a AdComInfo) IsNegative() bool {
	r, ok := a.VoteRatio()
	return ok && r <= 0.5
}
