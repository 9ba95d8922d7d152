package domain

import "time"

// DisputeOutcome is the result of a formal dispute resolution request.
type DisputeOutcome string

const (
	DisputeUnknown      DisputeOutcome = ""
	DisputeWon          DisputeOutcome = "won"
	DisputePartiallyWon DisputeOutcome = "partially_won"
	DisputeLost         DisputeOutcome = "lost"
	DisputePending      DisputeOutcome = "pending"
)

// DisputeInfo describes a formal dispute with the review division.
type DisputeInfo struct {
	HasDispute bool
	Outcome    DisputeOutcome
}

// EarningsCallInfo holds management signals from the latest earnings call.
type EarningsCallInfo struct {
	LabelNegotiationMentioned  bool
	TimelineDelayConfirmed     bool
	LaunchPreparationMentioned bool
	CallDate                   *time.Time
}

// PetitionStatus is the FDA disposition of a citizen petition.
type PetitionStatus string

const (
	PetitionUnknown PetitionStatus = ""
	PetitionPending PetitionStatus = "pending"
	PetitionDenied  PetitionStatus = "denied"
	PetitionGranted PetitionStatus = "granted"
)

// CitizenPetitionInfo describes a citizen petition filed against the application.
type CitizenPetitionInfo struct {
	Filed     bool
	Status    PetitionStatus
	FiledDate *time.Time
}
