package template

import "github.com/sells-group/lead-qualify/internal/model"

// BlueprintSpec describes the cadence of a blueprint.
type BlueprintSpec struct {
	Blueprint   model.Blueprint `json:"blueprint"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Stages      []Stage         `json:"stages"`
	LoopDays    []int           `json:"loop_days"`
	EscalateTo  model.Blueprint `json:"escalate_to,omitempty"`
}

var blueprints = map[model.Blueprint]BlueprintSpec{
	model.BlueprintCold: {
		Blueprint:   model.BlueprintCold,
		Name:        "Cold Outreach",
		Description: "Initial outreach to new leads, days 1-7",
		Stages:      []Stage{StageOpener, StageNudge},
		LoopDays:    []int{1, 3, 5, 7},
		EscalateTo:  model.BlueprintWarm,
	},
	model.BlueprintWarm: {
		Blueprint:   model.BlueprintWarm,
		Name:        "Warm Engagement",
		Description: "Engaged leads showing interest, days 7-21",
		Stages:      []Stage{StageValue, StageClose},
		LoopDays:    []int{7, 10, 14, 21},
		EscalateTo:  model.BlueprintRetention,
	},
	model.BlueprintRetention: {
		Blueprint:   model.BlueprintRetention,
		Name:        "Retention & Nurture",
		Description: "Booked or converted leads, ongoing nurture",
		Stages:      []Stage{StageValue},
		LoopDays:    []int{30, 60, 90},
	},
}

// Blueprint returns the cadence for b.
func Blueprint(b model.Blueprint) (BlueprintSpec, bool) {
	s, ok := blueprints[b]
	return s, ok
}

// BlueprintFor picks the blueprint that fits a lead's campaign stage.
func BlueprintFor(stage model.LeadStage) model.Blueprint {
	switch stage {
	case model.LeadStageNew, model.LeadStageContacted:
		return model.BlueprintCold
	case model.LeadStageEngaged, model.LeadStageQualified:
		return model.BlueprintWarm
	default:
		return model.BlueprintRetention
	}
}
