package domain

import "time"

// Outcome is the known FDA action for a PDUFA event.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeCRL      Outcome = "crl"
	OutcomePending  Outcome = "pending"
)

// IsValid checks if the outcome is a valid value.
func (o Outcome) IsValid() bool {
	return o == OutcomeApproved || o == OutcomeCRL || o == OutcomePending
}

// IsResolved reports whether the FDA has acted.
func (o Outcome) IsResolved() bool {
	return o == OutcomeApproved || o == OutcomeCRL
}

// CRLRecord is a prior CRL as collected.
type CRLRecord struct {
	Type              string   `json:"type,omitempty"`
	Date              Date     `json:"date,omitempty"`
	ResubmissionClass string   `json:"resubmission_class,omitempty"`
	ReasonType        string   `json:"reason_type,omitempty"`
	Issues            []string `json:"issues,omitempty"`
}

// EventRecord is a persisted PDUFA event. Every researched attribute carries
// its status so "not searched" is never confused with "not applicable".
// Corresponds to pdufa_events table in PostgreSQL (record column).
type EventRecord struct {
	EventID  string `json:"event_id"` // deterministic hash of ticker, drug and PDUFA date
	Ticker   string `json:"ticker" validate:"required"`
	DrugName string `json:"drug_name"`
	Company  string `json:"company,omitempty"`

	PDUFADate       Field[Date]   `json:"pdufa_date"`
	ApplicationType Field[string] `json:"application_type"`
	Outcome         Outcome       `json:"outcome" validate:"omitempty,oneof=approved crl pending"`
	OutcomeDate     Field[Date]   `json:"outcome_date"`

	// Designations
	BreakthroughTherapy Field[bool] `json:"breakthrough_therapy"`
	PriorityReview      Field[bool] `json:"priority_review"`
	FastTrack           Field[bool] `json:"fast_track"`
	OrphanDrug          Field[bool] `json:"orphan_drug"`
	AcceleratedApproval Field[bool] `json:"accelerated_approval"`
	FirstInClass        Field[bool] `json:"first_in_class"`

	// Advisory committee
	AdComHeld       Field[bool] `json:"adcom_held"`
	AdComVotesFor   Field[int]  `json:"adcom_votes_for"`
	AdComVotesTotal Field[int]  `json:"adcom_votes_total"`
	AdComDate       Field[Date] `json:"adcom_date"`

	// Clinical
	Phase                  Field[int]    `json:"phase"`
	PrimaryEndpointMet     Field[bool]   `json:"primary_endpoint_met"`
	SingleArm              Field[bool]   `json:"single_arm"`
	TrialRegion            Field[string] `json:"trial_region"`
	MentalHealthIndication Field[bool]   `json:"mental_health_indication"`
	SPAAgreed              Field[bool]   `json:"spa_agreed"`
	SPARescinded           Field[bool]   `json:"spa_rescinded"`
	ClinicalHold           Field[bool]   `json:"clinical_hold"`
	ClinicalHoldDate       Field[Date]   `json:"clinical_hold_date"`
	ClinicalHoldLiftedDate Field[Date]   `json:"clinical_hold_lifted_date"`

	// Manufacturing
	PAIStatus           Field[string] `json:"pai_status"`
	WarningLetter       Field[bool]   `json:"warning_letter"`
	WarningLetterDate   Field[Date]   `json:"warning_letter_date"`
	Form483Observations Field[int]    `json:"form_483_observations"`
	CDMOName            Field[string] `json:"cdmo_name"`
	CDMOIssues          Field[bool]   `json:"cdmo_issues"`

	// Regulatory history
	CRLHistory Field[[]CRLRecord] `json:"crl_history"`

	// Dispute, earnings call, citizen petition
	DisputeFiled             Field[bool]   `json:"dispute_filed"`
	DisputeOutcome           Field[string] `json:"dispute_outcome"`
	EarningsLabelNegotiation Field[bool]   `json:"earnings_label_negotiation"`
	EarningsTimelineDelay    Field[bool]   `json:"earnings_timeline_delay"`
	EarningsLaunchPrep       Field[bool]   `json:"earnings_launch_prep"`
	EarningsCallDate         Field[Date]   `json:"earnings_call_date"`
	PetitionFiled            Field[bool]   `json:"petition_filed"`
	PetitionStatus           Field[string] `json:"petition_status"`
	PetitionDate             Field[Date]   `json:"petition_date"`

	CollectedAt time.Time `json:"collected_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AnalysisRecord is one stored analysis of an event.
// Corresponds to analysis_results table in ClickHouse.
type AnalysisRecord struct {
	AnalysisID      string     `json:"analysis_id"` // deterministic hash of event, run and analysis time
	EventID         string     `json:"event_id"`
	RunID           string     `json:"run_id,omitempty"` // empty for ad-hoc analyses
	Ticker          string     `json:"ticker"`
	DrugName        string     `json:"drug_name"`
	PDUFADate       *time.Time `json:"pdufa_date,omitempty"`
	Probability     float64    `json:"probability"`
	BaseProbability float64    `json:"base_probability"`
	CRLProbability  float64    `json:"crl_probability"` // 1 - Probability
	RiskTier        RiskTier   `json:"risk_tier"`
	Confidence      float64    `json:"confidence"`
	BindingCap      string     `json:"binding_cap,omitempty"` // empty when no cap bound
	FactorsApplied  []string   `json:"factors_applied"`
	Warnings        []string   `json:"warnings,omitempty"`
	ActualOutcome   Outcome    `json:"actual_outcome"`
	PredictedCRL    bool       `json:"predicted_crl"`
	AnalyzedAt      time.Time  `json:"analyzed_at"`
}

// TierStats summarizes the events that fell in one risk tier.
type TierStats struct {
	Tier               RiskTier `json:"tier"`
	Count              int      `json:"count"`
	CRLs               int      `json:"crls"`              // events in tier whose outcome was CRL
	ObservedCRLRate    float64  `json:"observed_crl_rate"` // CRLs / Count
	MeanCRLProbability float64  `json:"mean_crl_probability"`
}

// BacktestRun is the stored summary of one backtest execution.
// Corresponds to backtest_runs table in PostgreSQL.
type BacktestRun struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Counts
	TotalEvents int `json:"total_events"`
	Evaluated   int `json:"evaluated"` // events with a resolved outcome
	Skipped     int `json:"skipped"`   // pending or unresolved events
	Failed      int `json:"failed"`    // events the loader rejected

	// Confusion matrix, positive = CRL
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`

	Precision  float64 `json:"precision"`
	Recall     float64 `json:"recall"`
	F1         float64 `json:"f1"`
	Accuracy   float64 `json:"accuracy"`
	BrierScore float64 `json:"brier_score"`

	Tiers []TierStats `json:"tiers"`

	Notes string `json:"notes,omitempty"`
}
