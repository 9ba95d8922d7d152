package pipeline

import (
	"context"
	"fmt"
	"time"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/loader"
	"pdufa-lab/internal/storage"
)

const fixtureSource = "fixture"

// Fixtures returns a small set of resolved and pending events for demos and
// tests. Event IDs are assigned.
func Fixtures() []domain.EventRecord {
	date := func(y int, m time.Month, d int) domain.Field[domain.Date] {
		return domain.Confirmed(domain.NewDate(y, m, d), fixtureSource)
	}
	text := func(s string) domain.Field[string] { return domain.Confirmed(s, fixtureSource) }
	count := func(n int) domain.Field[int] { return domain.Confirmed(n, fixtureSource) }

	yes := domain.Confirmed(true, fixtureSource)
	no := domain.Confirmed(false, fixtureSource)
	priorCMC := domain.Confirmed([]domain.CRLRecord{
		{Type: "cmc", Date: domain.NewDate(2023, time.December, 1), ResubmissionClass: "class 2"},
	}, fixtureSource)

	recs := []domain.EventRecord{
		{
			Ticker:              "NVLX",
			DrugName:            "Novalimab",
			Company:             "Novalix Therapeutics",
			PDUFADate:           date(2024, time.March, 14),
			ApplicationType:     text("BLA"),
			Outcome:             domain.OutcomeApproved,
			BreakthroughTherapy: yes,
			PriorityReview:      yes,
			AdComVotesFor:       count(12),
			AdComVotesTotal:     count(14),
			Phase:               count(3),
			PrimaryEndpointMet:  yes,
			TrialRegion:         text("global"),
			PAIStatus:           text("NAI"),
		},
		{
			Ticker:              "CRDX",
			DrugName:            "Cardexin",
			Company:             "Cardex Pharma",
			PDUFADate:           date(2024, time.May, 2),
			ApplicationType:     text("NDA"),
			Outcome:             domain.OutcomeCRL,
			Phase:               count(3),
			PrimaryEndpointMet:  yes,
			WarningLetter:       yes,
			WarningLetterDate:   date(2023, time.November, 20),
			Form483Observations: count(7),
		},
		{
			Ticker:             "ORPH",
			DrugName:           "Orphanostat",
			Company:            "Rarewell Bio",
			PDUFADate:          date(2024, time.June, 21),
			ApplicationType:    text("NDA"),
			Outcome:            domain.OutcomeApproved,
			OrphanDrug:         yes,
			FastTrack:          yes,
			Phase:              count(3),
			PrimaryEndpointMet: yes,
			SingleArm:          yes,
			PAIStatus:          text("passed"),
		},
		{
			Ticker:                 "PSYK",
			DrugName:               "Psykolam",
			Company:                "Mindpath Inc",
			PDUFADate:              date(2024, time.July, 9),
			ApplicationType:        text("NDA"),
			Outcome:                domain.OutcomeCRL,
			AdComVotesFor:          count(3),
			AdComVotesTotal:        count(11),
			Phase:                  count(3),
			PrimaryEndpointMet:     yes,
			MentalHealthIndication: yes,
		},
		{
			Ticker:                 "HLDV",
			DrugName:               "Holdavir",
			Company:                "Holdfast Biosciences",
			PDUFADate:              date(2024, time.August, 30),
			ApplicationType:        text("NDA"),
			Outcome:                domain.OutcomeApproved,
			Phase:                  count(3),
			PrimaryEndpointMet:     yes,
			ClinicalHold:           yes,
			ClinicalHoldDate:       date(2022, time.February, 1),
			ClinicalHoldLiftedDate: date(2022, time.June, 15),
			PAIStatus:              text("VAI"),
		},
		{
			Ticker:             "SINO",
			DrugName:           "Sinotinib",
			Company:            "Sino Oncology",
			PDUFADate:          date(2024, time.September, 18),
			ApplicationType:    text("NDA"),
			Outcome:            domain.OutcomeCRL,
			Phase:              count(3),
			PrimaryEndpointMet: yes,
			TrialRegion:        text("China only"),
		},
		{
			Ticker:             "FLMB",
			DrugName:           "Failomab",
			Company:            "Failsafe Bio",
			PDUFADate:          date(2024, time.October, 4),
			ApplicationType:    text("BLA"),
			Outcome:            domain.OutcomeCRL,
			FastTrack:          yes,
			Phase:              count(3),
			PrimaryEndpointMet: no,
		},
		{
			Ticker:             "RSBM",
			DrugName:           "Resubmab",
			Company:            "Second Wind Therapeutics",
			PDUFADate:          date(2024, time.November, 12),
			ApplicationType:    text("BLA"),
			Outcome:            domain.OutcomeApproved,
			Phase:              count(3),
			PrimaryEndpointMet: yes,
			PAIStatus:          text("passed"),
			CRLHistory:         priorCMC,
		},
		{
			Ticker:             "SPAX",
			DrugName:           "Spaxitol",
			Company:            "Protocol Pharma",
			PDUFADate:          date(2025, time.January, 17),
			ApplicationType:    text("NDA"),
			Outcome:            domain.OutcomeApproved,
			PriorityReview:     yes,
			Phase:              count(3),
			PrimaryEndpointMet: yes,
			SPAAgreed:          yes,
		},
		{
			Ticker:              "PNDG",
			DrugName:            "Pendamab",
			Company:             "Waiting Room Bio",
			PDUFADate:           date(2026, time.December, 1),
			ApplicationType:     text("BLA"),
			Outcome:             domain.OutcomePending,
			BreakthroughTherapy: yes,
			Phase:               count(3),
			PrimaryEndpointMet:  domain.Unknown[bool]("topline not yet reported"),
		},
	}

	for i := range recs {
		if err := loader.Normalize(&recs[i]); err != nil {
			panic(fmt.Sprintf("invalid fixture %s: %v", recs[i].Ticker, err))
		}
	}
	return recs
}

// LoadFixtures upserts the fixture events into store.
func LoadFixtures(ctx context.Context, store storage.EventStore) error {
	for _, rec := range Fixtures() {
		if err := store.Upsert(ctx, &rec); err != nil {
			return fmt.Errorf("load fixture %s: %w", rec.Ticker, err)
		}
	}
	return nil
}
