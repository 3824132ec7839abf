package workflow

import "smflab/internal/models"

// Tone is the display class of a step cell.
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	TonePending  Tone = "pending"
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
)

// ToneOf classifies a step value for display.
func ToneOf(step models.StepKey, value string, setupComplete bool) Tone {
	if step == models.StepScheduling && !setupComplete {
		return TonePending
	}
	if IsComplete(step, value) {
		return TonePositive
	}
	switch {
	case step == models.StepContractReview && value == models.ValueRejected:
		return ToneNegative
	case value == models.ValueUnderReview, value == models.ValueStarted:
		return TonePending
	default:
		return ToneNeutral
	}
}

// Hint keys for the SCHEDULING cell.
const (
	HintOnHoldUntilSetup = "on_hold_until_setup_completed"
	HintSetDates         = "set_dates_to_plan"
	HintPlanned          = "planned"
)

// Hint returns the helper text key shown under the SCHEDULING cell.
func Hint(t *models.Test) string {
	switch {
	case !SetupComplete(t):
		return HintOnHoldUntilSetup
	case EffectiveScheduling(t) == models.ValuePlanned:
		return HintPlanned
	default:
		return HintSetDates
	}
}

// StepView is the read model of a single step.
type StepView struct {
	Key     models.StepKey `json:"key"`
	Value   string         `json:"value"`
	Tone    Tone           `json:"tone"`
	Allowed []string       `json:"allowed,omitempty"`
}

// Describe renders every step of a test in display order.
// SCHEDULING carries no allowed values since it is never user-editable.
func Describe(t *models.Test) []StepView {
	setup := SetupComplete(t)
	out := make([]StepView, 0, len(models.StepKeys))
	for _, key := range models.StepKeys {
		v := EffectiveValue(t, key)
		sv := StepView{Key: key, Value: v, Tone: ToneOf(key, v, setup)}
		if key != models.StepScheduling {
			sv.Allowed, _ = Allowed(key)
		}
		out = append(out, sv)
	}
	return out
}
