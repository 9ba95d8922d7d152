package domain

import (
	"strings"
	"time"
)

// PAIStatus is the pre-approval inspection state.
type PAIStatus string

const (
	PAIUnknown PAIStatus = ""
	PAIPassed  PAIStatus = "passed"
	PAIFailed  PAIStatus = "failed"
	PAIPending PAIStatus = "pending"
)

// IsKnown reports whether the inspection status was resolved.
func (s PAIStatus) IsKnown() bool {
	return s == PAIPassed || s == PAIFailed || s == PAIPending
}

// ManufacturingInfo holds facility and inspection state.
// A nil date never means the event did not happen.
type ManufacturingInfo struct {
	PAIStatus           PAIStatus
	HasWarningLetter    bool
	WarningLetterDate   *time.Time
	Form483Observations int
	CDMOName            string
	CDMOHasOpenIssues   bool
}

// CRLType classifies the reason behind a complete response letter.
type CRLType string

const (
	CRLTypeUnknown  CRLType = ""
	CRLTypeCMC      CRLType = "cmc"
	CRLTypeClinical CRLType = "clinical"
	CRLTypeSafety   CRLType = "safety"
	CRLTypeEfficacy CRLType = "efficacy"
	CRLTypeLabeling CRLType = "labeling"
	CRLTypeMixed    CRLType = "mixed"
)

// ResubmissionClass is the FDA review class of a resubmission.
type ResubmissionClass string

const (
	ResubmissionNone   ResubmissionClass = ""
	ResubmissionClass1 ResubmissionClass = "class_1"
	ResubmissionClass2 ResubmissionClass = "class_2"
)

// CRLInfo is one prior complete response letter.
type CRLInfo struct {
	Type              CRLType
	Date              *time.Time
	ResubmissionClass ResubmissionClass
	ReasonType        string // explicit reason category when the source states one
	Issues            []string
}

// IsCMCOnly reports whether the letter cited manufacturing issues only.
// An explicit ReasonType wins over Type; with neither it is false.
func (c CRLInfo) IsCMCOnly() bool {
	if rt := strings.ToLower(strings.TrimSpace(c.ReasonType)); rt != "" {
		return rt == "cmc" || rt == "cmc_only" || rt == "manufacturing"
	}
	return c.Type == CRLTypeCMC
}
