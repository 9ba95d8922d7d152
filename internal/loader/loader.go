// Package loader turns persisted event records into analysis contexts.
// Unknown fields resolve to safe defaults here so the engine never sees
// research status.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/idhash"
)

// Sentinel errors.
var (
	ErrMissingTicker = errors.New("record has no ticker")
	ErrInvalidRecord = errors.New("invalid event record")
)

var validate = validator.New()

// ToContext collapses rec into an AnalysisContext as of analysisDate.
// A zero analysisDate means today (UTC).
func ToContext(rec domain.EventRecord, analysisDate time.Time) (*domain.AnalysisContext, error) {
	if strings.TrimSpace(rec.Ticker) == "" {
		return nil, ErrMissingTicker
	}
	if analysisDate.IsZero() {
		analysisDate = time.Now().UTC()
	}

	ctx := &domain.AnalysisContext{
		Ticker:          strings.ToUpper(strings.TrimSpace(rec.Ticker)),
		DrugName:        strings.TrimSpace(rec.DrugName),
		PDUFADate:       datePtr(rec.PDUFADate),
		ApplicationType: applicationType(rec.ApplicationType.Or("")),
		AnalysisDate:    analysisDate,
	}

	ctx.Designations = domain.FDADesignations{
		BreakthroughTherapy: rec.BreakthroughTherapy.Or(false),
		PriorityReview:      rec.PriorityReview.Or(false),
		FastTrack:           rec.FastTrack.Or(false),
		OrphanDrug:          rec.OrphanDrug.Or(false),
		AcceleratedApproval: rec.AcceleratedApproval.Or(false),
		FirstInClass:        rec.FirstInClass.Or(false),
	}

	votesFor, forOK := rec.AdComVotesFor.Get()
	votesTotal, totalOK := rec.AdComVotesTotal.Get()
	ctx.AdCom = domain.AdComInfo{
		WasHeld:  rec.AdComHeld.Or(forOK && totalOK),
		VoteDate: datePtr(rec.AdComDate),
	}
	if forOK && totalOK && votesTotal > 0 {
		ctx.AdCom.VotesFor = votesFor
		ctx.AdCom.VotesTotal = votesTotal
	}

	ctx.Clinical = domain.ClinicalInfo{
		Phase:                  phase(rec.Phase.Or(0)),
		PrimaryEndpointMet:     rec.PrimaryEndpointMet.Ptr(),
		SingleArm:              rec.SingleArm.Or(false),
		Region:                 region(rec.TrialRegion.Or("")),
		MentalHealthIndication: rec.MentalHealthIndication.Or(false),
		SPAAgreed:              rec.SPAAgreed.Or(false),
		SPARescinded:           rec.SPARescinded.Or(false),
		HasClinicalHold:        rec.ClinicalHold.Or(false),
		ClinicalHoldDate:       datePtr(rec.ClinicalHoldDate),
		ClinicalHoldLiftedDate: datePtr(rec.ClinicalHoldLiftedDate),
	}

	ctx.Manufacturing = domain.ManufacturingInfo{
		PAIStatus:           paiStatus(rec.PAIStatus.Or("")),
		HasWarningLetter:    rec.WarningLetter.Or(false),
		WarningLetterDate:   datePtr(rec.WarningLetterDate),
		Form483Observations: max(rec.Form483Observations.Or(0), 0),
		CDMOName:            strings.TrimSpace(rec.CDMOName.Or("")),
		CDMOHasOpenIssues:   rec.CDMOIssues.Or(false),
	}

	for _, c := range rec.CRLHistory.Or(nil) {
		ctx.CRLHistory = append(ctx.CRLHistory, domain.CRLInfo{
			Type:              crlType(c.Type),
			Date:              c.Date.TimePtr(),
			ResubmissionClass: resubmissionClass(c.ResubmissionClass),
			ReasonType:        strings.TrimSpace(c.ReasonType),
			Issues:            append([]string(nil), c.Issues...),
		})
	}
	sort.SliceStable(ctx.CRLHistory, func(i, j int) bool {
		a, b := ctx.CRLHistory[i].Date, ctx.CRLHistory[j].Date
		return a != nil && (b == nil || a.Before(*b))
	})

	outcome := disputeOutcome(rec.DisputeOutcome.Or(""))
	ctx.Dispute = domain.DisputeInfo{
		HasDispute: rec.DisputeFiled.Or(outcome != domain.DisputeUnknown),
		Outcome:    outcome,
	}

	ctx.EarningsCall = domain.EarningsCallInfo{
		LabelNegotiationMentioned:  rec.EarningsLabelNegotiation.Or(false),
		TimelineDelayConfirmed:     rec.EarningsTimelineDelay.Or(false),
		LaunchPreparationMentioned: rec.EarningsLaunchPrep.Or(false),
		CallDate:                   datePtr(rec.EarningsCallDate),
	}

	status := petitionStatus(rec.PetitionStatus.Or(""))
	ctx.CitizenPetition = domain.CitizenPetitionInfo{
		Filed:     rec.PetitionFiled.Or(status != domain.PetitionUnknown),
		Status:    status,
		FiledDate: datePtr(rec.PetitionDate),
	}

	return ctx, nil
}

// ParseRecord decodes and validates one JSON record, filling in its event ID.
func ParseRecord(data []byte) (domain.EventRecord, error) {
	var rec domain.EventRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.EventRecord{}, fmt.Errorf("decode record: %w", err)
	}
	if err := Normalize(&rec); err != nil {
		return domain.EventRecord{}, err
	}
	return rec, nil
}

// Normalize validates rec and assigns its deterministic event ID when missing.
func Normalize(rec *domain.EventRecord) error {
	if strings.TrimSpace(rec.Ticker) == "" {
		return ErrMissingTicker
	}
	if err := validate.Struct(rec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if rec.Outcome == "" {
		rec.Outcome = domain.OutcomePending
	}
	if rec.EventID == "" {
		pdufa := ""
		if d, ok := rec.PDUFADate.Get(); ok && !d.IsZero() {
			pdufa = d.String()
		}
		rec.EventID = idhash.ComputeEventID(rec.Ticker, rec.DrugName, pdufa)
	}
	return nil
}

// LoadFile reads a JSON file holding one record or an array of records.
func LoadFile(path string) ([]domain.EventRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		out := make([]domain.EventRecord, 0, len(raw))
		for i, r := range raw {
			rec, err := ParseRecord(r)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", path, i, err)
			}
			out = append(out, rec)
		}
		return out, nil
	}

	rec, err := ParseRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return []domain.EventRecord{rec}, nil
}

// LoadDir reads every *.json file in dir, in lexical order.
func LoadDir(dir string) ([]domain.EventRecord, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(paths)

	var out []domain.EventRecord
	for _, p := range paths {
		recs, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func datePtr(f domain.Field[domain.Date]) *time.Time {
	d, ok := f.Get()
	if !ok {
		return nil
	}
	return d.TimePtr()
}
