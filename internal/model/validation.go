package model

import "time"

// ContactGrade is a vendor-assigned letter grade for reachability.
type ContactGrade string

const (
	GradeA ContactGrade = "A"
	GradeB ContactGrade = "B"
	GradeC ContactGrade = "C"
	GradeD ContactGrade = "D"
	GradeF ContactGrade = "F"
)

// ParseGrade normalizes a grade string, defaulting to F.
func ParseGrade(s string) ContactGrade {
	switch ContactGrade(s) {
	case GradeA, GradeB, GradeC, GradeD, GradeF:
		return ContactGrade(s)
	}
	if len(s) > 0 {
		switch s[0] {
		case 'a':
			return GradeA
		case 'b':
			return GradeB
		case 'c':
			return GradeC
		case 'd':
			return GradeD
		}
	}
	return GradeF
}

// ContactabilityValidation is the real-contact vendor's verdict on one
// phone/email pair. A lead carries at most one; re-validation replaces it.
type ContactabilityValidation struct {
	PhoneNumber        string       `json:"phone_number"`
	PhoneActivityScore int          `json:"phone_activity_score"`
	PhoneContactGrade  ContactGrade `json:"phone_contact_grade"`
	PhoneLineType      string       `json:"phone_line_type"`
	PhoneNameMatch     bool         `json:"phone_name_match"`
	PhoneIsValid       bool         `json:"phone_is_valid"`

	EmailIsValid       bool         `json:"email_is_valid"`
	EmailContactGrade  ContactGrade `json:"email_contact_grade,omitempty"`
	EmailIsDeliverable *bool        `json:"email_is_deliverable,omitempty"`

	IsLitigatorRisk bool      `json:"is_litigator_risk"`
	ResponseID      string    `json:"response_id,omitempty"`
	ValidatedAt     time.Time `json:"validated_at"`
}

// RiskTier is the coarse outreach-safety classification.
type RiskTier string

const (
	RiskSafe     RiskTier = "SAFE"
	RiskElevated RiskTier = "ELEVATED"
	RiskHigh     RiskTier = "HIGH"
	RiskBlock    RiskTier = "BLOCK"
)

// AllRiskTiers lists every tier, in order of increasing risk.
var AllRiskTiers = []RiskTier{RiskSafe, RiskElevated, RiskHigh, RiskBlock}

// ContactabilityProfile is derived from a validation.
type ContactabilityProfile struct {
	OverallContactabilityScore int      `json:"overall_contactability_score"`
	RiskTier                   RiskTier `json:"risk_tier"`
}

// Route is a recommended outreach channel.
type Route string

const (
	RouteFullOutreach Route = "full_outreach"
	RouteEmailOnly    Route = "email_only"
	RouteManualReview Route = "manual_review"
	RouteDoNotContact Route = "do_not_contact"
)

// RouteDecision is the routing outcome for a profile. Priority 1 is the most
// urgent; 0 means never contact.
type RouteDecision struct {
	Route       Route  `json:"route"`
	Priority    int    `json:"priority"`
	Description string `json:"description"`
}
