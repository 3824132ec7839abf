// Package workflow holds the per-test step state machine: allowed values per step,
// the derived SCHEDULING value and the progress facts computed from them.
package workflow

import (
	"errors"
	"fmt"
	"math"

	"smflab/internal/models"
)

var (
	ErrUnknownStep  = errors.New("unknown step")
	ErrInvalidValue = errors.New("value not allowed for step")
	ErrDerivedStep  = errors.New("SCHEDULING is derived and cannot be set directly")
)

type stepDef struct {
	allowed  []string
	complete map[string]bool
}

var defs = map[models.StepKey]stepDef{
	models.StepRequestValidation: {
		allowed:  []string{models.ValueDone, models.ValueNotDone},
		complete: set(models.ValueDone),
	},
	models.StepContractReview: {
		allowed:  []string{models.ValueNotSubmitted, models.ValueUnderReview, models.ValueRejected, models.ValueApproved},
		complete: set(models.ValueApproved),
	},
	models.StepPRE: {
		allowed: []string{
			models.ValueNotSubmitted, models.ValueYes, models.ValueNo,
			models.ValueNA, models.ValueUnderReview, models.ValueApproved,
		},
		complete: set(models.ValueNo, models.ValueNA, models.ValueApproved),
	},
	models.StepTestSetup: {
		allowed:  []string{models.ValueNotStarted, models.ValueStarted, models.ValueCompleted},
		complete: set(models.ValueCompleted),
	},
	models.StepScheduling: {
		allowed:  []string{models.ValueOnHold, models.ValuePlanned},
		complete: set(models.ValuePlanned),
	},
	models.StepTestReport: {
		allowed:  []string{models.ValueNotSubmitted, models.ValueUnderReview, models.ValueApproved},
		complete: set(models.ValueApproved),
	},
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// Allowed returns the value set of a step in display order.
func Allowed(step models.StepKey) ([]string, error) {
	d, ok := defs[step]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	return append([]string(nil), d.allowed...), nil
}

// IsComplete reports whether value is a positive value of the step.
func IsComplete(step models.StepKey, value string) bool {
	d, ok := defs[step]
	return ok && d.complete[value]
}

// Validate checks that a user may write value into step.
func Validate(step models.StepKey, value string) error {
	if step == models.StepScheduling {
		return ErrDerivedStep
	}
	d, ok := defs[step]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	for _, v := range d.allowed {
		if v == value {
			return nil
		}
	}
	return fmt.Errorf("%w: %s=%q", ErrInvalidValue, step, value)
}

// ValidateSteps checks a full step map, as read from a seed or storage.
// The stored SCHEDULING value is accepted as long as it is one of its two values.
func ValidateSteps(steps models.Steps) error {
	for key, value := range steps {
		if key == models.StepScheduling {
			if !contains(defs[key].allowed, value) {
				return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
			}
			continue
		}
		if err := Validate(key, value); err != nil {
			return err
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// SetupComplete reports whether TEST_SETUP reached its terminal value.
func SetupComplete(t *models.Test) bool {
	return t.Steps[models.StepTestSetup] == models.ValueCompleted
}

// EffectiveScheduling derives SCHEDULING from the rest of the record,
// ignoring whatever was stored last.
func EffectiveScheduling(t *models.Test) string {
	if SetupComplete(t) && t.Dates.IsSet() {
		return models.ValuePlanned
	}
	return models.ValueOnHold
}

// Normalize rewrites the stored SCHEDULING value to the derived one.
// It returns true when the stored value changed.
func Normalize(t *models.Test) bool {
	if t.Steps == nil {
		t.Steps = models.DefaultSteps()
	}
	want := EffectiveScheduling(t)
	if t.Steps[models.StepScheduling] == want {
		return false
	}
	t.Steps[models.StepScheduling] = want
	return true
}

// IsPlanned is the "committed booking" predicate used by conflict detection and KPIs.
func IsPlanned(t *models.Test) bool {
	return t.Steps[models.StepScheduling] == models.ValuePlanned && SetupComplete(t)
}

// EffectiveValue returns the value shown for a step, with SCHEDULING derived on the fly.
func EffectiveValue(t *models.Test, step models.StepKey) string {
	if step == models.StepScheduling {
		return EffectiveScheduling(t)
	}
	return t.Steps[step]
}

// Progress returns the share of complete steps as a whole percentage, rounded half up.
func Progress(t *models.Test) int {
	done := 0
	for _, key := range models.StepKeys {
		if IsComplete(key, EffectiveValue(t, key)) {
			done++
		}
	}
	return int(math.Floor(float64(done)/float64(len(models.StepKeys))*100 + 0.5))
}
