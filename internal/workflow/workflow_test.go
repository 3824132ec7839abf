package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smflab/internal/models"
)

func newTest(setup string, dates models.DateRange) *models.Test {
	steps := models.DefaultSteps()
	steps[models.StepTestSetup] = setup
	return &models.Test{Code: "T-001", Steps: steps, Dates: dates}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		step    models.StepKey
		value   string
		wantErr error
	}{
		{"request validation done", models.StepRequestValidation, models.ValueDone, nil},
		{"contract rejected", models.StepContractReview, models.ValueRejected, nil},
		{"pre na", models.StepPRE, models.ValueNA, nil},
		{"setup completed", models.StepTestSetup, models.ValueCompleted, nil},
		{"report under review", models.StepTestReport, models.ValueUnderReview, nil},
		{"report rejected not allowed", models.StepTestReport, models.ValueRejected, ErrInvalidValue},
		{"setup done not allowed", models.StepTestSetup, models.ValueDone, ErrInvalidValue},
		{"scheduling is derived", models.StepScheduling, models.ValuePlanned, ErrDerivedStep},
		{"unknown step", models.StepKey("SHIPPING"), "X", ErrUnknownStep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.step, tt.value)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateSteps(t *testing.T) {
	steps := models.DefaultSteps()
	assert.NoError(t, ValidateSteps(steps))

	steps[models.StepScheduling] = models.ValuePlanned
	assert.NoError(t, ValidateSteps(steps))

	steps[models.StepScheduling] = "MAYBE"
	assert.ErrorIs(t, ValidateSteps(steps), ErrInvalidValue)
}

func TestEffectiveScheduling(t *testing.T) {
	dates := models.MustRange("2025-07-01", "2025-07-02")

	assert.Equal(t, models.ValuePlanned, EffectiveScheduling(newTest(models.ValueCompleted, dates)))
	assert.Equal(t, models.ValueOnHold, EffectiveScheduling(newTest(models.ValueNotStarted, dates)))
	assert.Equal(t, models.ValueOnHold, EffectiveScheduling(newTest(models.ValueCompleted, models.DateRange{})))

	stale := newTest(models.ValueStarted, dates)
	stale.Steps[models.StepScheduling] = models.ValuePlanned
	assert.Equal(t, models.ValueOnHold, EffectiveScheduling(stale), "derived value overrides stored value")
}

func TestNormalize(t *testing.T) {
	tt := newTest(models.ValueCompleted, models.MustRange("2025-07-01", "2025-07-02"))
	assert.True(t, Normalize(tt))
	assert.Equal(t, models.ValuePlanned, tt.Steps[models.StepScheduling])
	assert.False(t, Normalize(tt))

	tt.Steps[models.StepTestSetup] = models.ValueStarted
	assert.True(t, Normalize(tt))
	assert.Equal(t, models.ValueOnHold, tt.Steps[models.StepScheduling])

	empty := &models.Test{}
	Normalize(empty)
	require.NotNil(t, empty.Steps)
	assert.Equal(t, models.ValueOnHold, empty.Steps[models.StepScheduling])
}

func TestProgress(t *testing.T) {
	tt := newTest(models.ValueNotStarted, models.DateRange{})
	assert.Equal(t, 0, Progress(tt))

	tt.Steps[models.StepRequestValidation] = models.ValueDone
	assert.Equal(t, 17, Progress(tt)) // 16.67

	tt.Steps[models.StepContractReview] = models.ValueApproved
	assert.Equal(t, 33, Progress(tt))

	tt.Steps[models.StepPRE] = models.ValueNA
	assert.Equal(t, 50, Progress(tt))

	tt.Steps[models.StepTestSetup] = models.ValueCompleted
	assert.Equal(t, 67, Progress(tt))

	tt.Dates = models.MustRange("2025-07-01", "2025-07-02")
	assert.Equal(t, 83, Progress(tt), "SCHEDULING counts from the derived value")

	tt.Steps[models.StepTestReport] = models.ValueApproved
	assert.Equal(t, 100, Progress(tt))
}

func TestProgressMonotonic(t *testing.T) {
	completeValue := map[models.StepKey]string{
		models.StepRequestValidation: models.ValueDone,
		models.StepContractReview:    models.ValueApproved,
		models.StepPRE:               models.ValueNo,
		models.StepTestSetup:         models.ValueCompleted,
		models.StepTestReport:        models.ValueApproved,
	}

	for key, value := range completeValue {
		t.Run(string(key), func(t *testing.T) {
			tt := newTest(models.ValueNotStarted, models.MustRange("2025-07-01", "2025-07-01"))
			before := Progress(tt)
			tt.Steps[key] = value
			assert.Greater(t, Progress(tt), before)
		})
	}
}

func TestToneOf(t *testing.T) {
	assert.Equal(t, TonePositive, ToneOf(models.StepPRE, models.ValueNo, false))
	assert.Equal(t, ToneNegative, ToneOf(models.StepContractReview, models.ValueRejected, false))
	assert.Equal(t, TonePending, ToneOf(models.StepTestSetup, models.ValueStarted, false))
	assert.Equal(t, TonePending, ToneOf(models.StepTestReport, models.ValueUnderReview, false))
	assert.Equal(t, ToneNeutral, ToneOf(models.StepPRE, models.ValueYes, false))
	assert.Equal(t, TonePending, ToneOf(models.StepScheduling, models.ValuePlanned, false))
	assert.Equal(t, TonePositive, ToneOf(models.StepScheduling, models.ValuePlanned, true))
	assert.Equal(t, ToneNeutral, ToneOf(models.StepScheduling, models.ValueOnHold, true))
}

func TestHint(t *testing.T) {
	assert.Equal(t, HintOnHoldUntilSetup, Hint(newTest(models.ValueStarted, models.DateRange{})))
	assert.Equal(t, HintSetDates, Hint(newTest(models.ValueCompleted, models.DateRange{})))
	assert.Equal(t, HintPlanned, Hint(newTest(models.ValueCompleted, models.MustRange("2025-07-01", "2025-07-01"))))
}

func TestDescribe(t *testing.T) {
	views := Describe(newTest(models.ValueCompleted, models.DateRange{}))
	require.Len(t, views, len(models.StepKeys))
	for i, v := range views {
		assert.Equal(t, models.StepKeys[i], v.Key)
	}
	assert.Empty(t, views[4].Allowed)
	assert.Equal(t, models.ValueOnHold, views[4].Value)
	assert.Len(t, views[2].Allowed, 6)
}
