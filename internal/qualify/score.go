// Package qualify turns a contact validation into a contactability score,
// a risk tier and an outreach route. Everything here is pure.
package qualify

import (
	"math"
	"slices"

	"github.com/sells-group/lead-qualify/internal/model"
)

// Thresholds configures contactability and tier cut-offs.
type Thresholds struct {
	MinActivityScore int                  `yaml:"min_activity_score" mapstructure:"min_activity_score"`
	PassingGrades    []model.ContactGrade `yaml:"passing_grades" mapstructure:"passing_grades"`
	SafeMinScore     int                  `yaml:"safe_min_score" mapstructure:"safe_min_score"`
	ElevatedMinScore int                  `yaml:"elevated_min_score" mapstructure:"elevated_min_score"`
}

// DefaultThresholds returns the production cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinActivityScore: 70,
		PassingGrades:    []model.ContactGrade{model.GradeA, model.GradeB, model.GradeC},
		SafeMinScore:     50,
		ElevatedMinScore: 30,
	}
}

var phoneGradePoints = map[model.ContactGrade]float64{
	model.GradeA: 20,
	model.GradeB: 15,
	model.GradeC: 10,
	model.GradeD: 5,
	model.GradeF: 0,
}

var emailGradePoints = map[model.ContactGrade]float64{
	model.GradeA: 10,
	model.GradeB: 7,
	model.GradeC: 5,
	model.GradeD: 2,
	model.GradeF: 0,
}

const litigatorPenalty = 20

// Score combines a validation into a 0-100 contactability score. An invalid
// or missing phone always scores 0.
func Score(v *model.ContactabilityValidation) int {
	if v == nil || !v.PhoneIsValid {
		return 0
	}

	activity := min(max(v.PhoneActivityScore, 0), 100)

	score := 20.0
	score += float64(activity) * 0.3
	score += phoneGradePoints[v.PhoneContactGrade]
	if v.PhoneNameMatch {
		score += 10
	}
	if v.EmailIsValid {
		score += 10
	}
	if v.EmailContactGrade != "" {
		score += emailGradePoints[v.EmailContactGrade]
	}
	if v.IsLitigatorRisk {
		score -= litigatorPenalty
	}

	return int(math.Max(0, math.Min(100, math.Round(score))))
}

// IsContactable reports whether the validated phone is safe to reach: valid,
// active enough, passing grade, and not a litigator. All must hold.
func IsContactable(v *model.ContactabilityValidation, th Thresholds) bool {
	if v == nil || !v.PhoneIsValid {
		return false
	}
	if v.IsLitigatorRisk {
		return false
	}
	if v.PhoneActivityScore < th.MinActivityScore {
		return false
	}
	return slices.Contains(th.PassingGrades, v.PhoneContactGrade)
}

// Tier classifies a validation. Litigator risk is checked first and wins
// over any score.
func Tier(v *model.ContactabilityValidation, score int, th Thresholds) model.RiskTier {
	if v != nil && v.IsLitigatorRisk {
		return model.RiskBlock
	}
	if v == nil || !v.PhoneIsValid {
		return model.RiskHigh
	}
	if IsContactable(v, th) && score >= th.SafeMinScore {
		return model.RiskSafe
	}
	if score >= th.ElevatedMinScore {
		return model.RiskElevated
	}
	return model.RiskHigh
}

// Profile derives the contactability profile for a validation.
func Profile(v *model.ContactabilityValidation, th Thresholds) model.ContactabilityProfile {
	score := Score(v)
	return model.ContactabilityProfile{
		OverallContactabilityScore: score,
		RiskTier:                   Tier(v, score, th),
	}
}

// ActivityDescription explains an activity score in plain words.
func ActivityDescription(score *int) string {
	switch {
	case score == nil:
		return "Unknown"
	case *score >= 70:
		return "High activity - connected and active"
	case *score >= 50:
		return "Moderate activity - uncertain status"
	case *score >= 30:
		return "Low activity - may be inactive"
	default:
		return "Very low activity - likely disconnected"
	}
}
