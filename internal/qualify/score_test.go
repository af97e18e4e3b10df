package qualify

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-qualify/internal/model"
)

func validation(activity int, grade model.ContactGrade) *model.ContactabilityValidation {
	return &model.ContactabilityValidation{
		PhoneIsValid:       true,
		PhoneActivityScore: activity,
		PhoneContactGrade:  grade,
		PhoneLineType:      "Mobile",
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    *model.ContactabilityValidation
		want int
	}{
		{name: "nil", v: nil, want: 0},
		{name: "invalid phone", v: &model.ContactabilityValidation{PhoneIsValid: false, PhoneActivityScore: 100, PhoneContactGrade: model.GradeA}, want: 0},
		{name: "activity 85 grade B", v: validation(85, model.GradeB), want: 61},
		{name: "activity 100 grade A", v: validation(100, model.GradeA), want: 70},
		{
			name: "everything maxed",
			v: &model.ContactabilityValidation{
				PhoneIsValid: true, PhoneActivityScore: 100, PhoneContactGrade: model.GradeA,
				PhoneNameMatch: true, EmailIsValid: true, EmailContactGrade: model.GradeA,
			},
			want: 100,
		},
		{
			name: "litigator penalty",
			v: &model.ContactabilityValidation{
				PhoneIsValid: true, PhoneActivityScore: 85, PhoneContactGrade: model.GradeB, IsLitigatorRisk: true,
			},
			want: 41,
		},
		{
			name: "clamped at zero",
			v: &model.ContactabilityValidation{
				PhoneIsValid: true, PhoneActivityScore: 0, PhoneContactGrade: model.GradeF, IsLitigatorRisk: true,
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Score(tt.v))
		})
	}
}

func TestScoreMonotonicInActivity(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2))
	grades := []model.ContactGrade{model.GradeA, model.GradeB, model.GradeC, model.GradeD, model.GradeF}

	for range 500 {
		v := &model.ContactabilityValidation{
			PhoneIsValid:      true,
			PhoneContactGrade: grades[r.IntN(len(grades))],
			PhoneNameMatch:    r.IntN(2) == 0,
			EmailIsValid:      r.IntN(2) == 0,
			IsLitigatorRisk:   r.IntN(2) == 0,
		}
		prev := -1
		for a := 0; a <= 100; a++ {
			v.PhoneActivityScore = a
			s := Score(v)
			assert.GreaterOrEqual(t, s, prev, "activity %d", a)
			prev = s
		}
	}
}

func TestLitigatorAlwaysBlocks(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(7, 11))
	th := DefaultThresholds()
	grades := []model.ContactGrade{model.GradeA, model.GradeB, model.GradeC, model.GradeD, model.GradeF}

	for range 1000 {
		v := &model.ContactabilityValidation{
			PhoneIsValid:       r.IntN(2) == 0,
			PhoneActivityScore: r.IntN(101),
			PhoneContactGrade:  grades[r.IntN(len(grades))],
			PhoneNameMatch:     r.IntN(2) == 0,
			EmailIsValid:       r.IntN(2) == 0,
			IsLitigatorRisk:    true,
		}
		// Any score, including ones inconsistent with v, must still block.
		assert.Equal(t, model.RiskBlock, Tier(v, r.IntN(101), th))
		assert.Equal(t, model.RiskBlock, Profile(v, th).RiskTier)
	}
}

func TestIsContactableBoundaries(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	base := validation(70, model.GradeC)
	assert.True(t, IsContactable(base, th), "exact threshold passes")

	lowActivity := *base
	lowActivity.PhoneActivityScore = 69
	assert.False(t, IsContactable(&lowActivity, th))

	badGrade := *base
	badGrade.PhoneContactGrade = model.GradeD
	assert.False(t, IsContactable(&badGrade, th))

	litigator := *base
	litigator.IsLitigatorRisk = true
	assert.False(t, IsContactable(&litigator, th))

	invalid := *base
	invalid.PhoneIsValid = false
	assert.False(t, IsContactable(&invalid, th))
}

func TestIsContactableWithoutValidation(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		assert.False(t, IsContactable(nil, DefaultThresholds()))
	})
}

func TestTier(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	tests := []struct {
		name string
		v    *model.ContactabilityValidation
		want model.RiskTier
	}{
		{name: "no validation", v: nil, want: model.RiskHigh},
		{name: "invalid phone", v: &model.ContactabilityValidation{PhoneActivityScore: 90, PhoneContactGrade: model.GradeA}, want: model.RiskHigh},
		{name: "safe", v: validation(85, model.GradeB), want: model.RiskSafe},
		{name: "elevated low activity", v: validation(40, model.GradeB), want: model.RiskElevated},
		{name: "elevated grade D", v: validation(90, model.GradeD), want: model.RiskElevated},
		{name: "high", v: validation(5, model.GradeF), want: model.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Tier(tt.v, Score(tt.v), th))
		})
	}
}

func TestActivityDescription(t *testing.T) {
	t.Parallel()

	n := func(i int) *int { return &i }
	assert.Equal(t, "Unknown", ActivityDescription(nil))
	assert.Contains(t, ActivityDescription(n(70)), "High")
	assert.Contains(t, ActivityDescription(n(55)), "Moderate")
	assert.Contains(t, ActivityDescription(n(30)), "Low")
	assert.Contains(t, ActivityDescription(n(10)), "Very low")
}
