package models

import "time"

// StepKey identifies one stage of the test workflow.
type StepKey string

const (
	StepRequestValidation StepKey = "REQUEST_VALIDATION"
	StepContractReview    StepKey = "CONTRACT_REVIEW"
	StepPRE               StepKey = "PRE"
	StepTestSetup         StepKey = "TEST_SETUP"
	StepScheduling        StepKey = "SCHEDULING"
	StepTestReport        StepKey = "TEST_REPORT"
)

// StepKeys lists the workflow stages in display order.
var StepKeys = []StepKey{
	StepRequestValidation,
	StepContractReview,
	StepPRE,
	StepTestSetup,
	StepScheduling,
	StepTestReport,
}

// Step values.
const (
	ValueDone         = "DONE"
	ValueNotDone      = "NOT_DONE"
	ValueNotSubmitted = "NOT_SUBMITTED"
	ValueUnderReview  = "UNDER_REVIEW"
	ValueRejected     = "REJECTED"
	ValueApproved     = "APPROVED"
	ValueYes          = "YES"
	ValueNo           = "NO"
	ValueNA           = "NA"
	ValueNotStarted   = "NOT_STARTED"
	ValueStarted      = "STARTED"
	ValueCompleted    = "COMPLETED"
	ValueOnHold       = "ON_HOLD"
	ValuePlanned      = "PLANNED"
)

// Test status labels.
const (
	StatusOngoing = "Ongoing"
	StatusClosed  = "Closed"
)

// Steps maps each workflow stage to its current value.
type Steps map[StepKey]string

// DefaultSteps returns the initial values of a freshly requested test.
func DefaultSteps() Steps {
	return Steps{
		StepRequestValidation: ValueNotDone,
		StepContractReview:    ValueNotSubmitted,
		StepPRE:               ValueNotSubmitted,
		StepTestSetup:         ValueNotStarted,
		StepScheduling:        ValueOnHold,
		StepTestReport:        ValueNotSubmitted,
	}
}

// Clone copies the step map.
func (s Steps) Clone() Steps {
	out := make(Steps, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Test is a laboratory test booking request.
type Test struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Requester     string    `json:"requester"`
	RequesterRole string    `json:"requester_role"`
	Division      string    `json:"division"`
	PBS           string    `json:"pbs"`
	Status        string    `json:"status"`
	Archived      bool      `json:"archived"`
	Steps         Steps     `json:"steps"`
	Dates         DateRange `json:"dates"`
	Operators     []string  `json:"operators"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand out of the repository.
func (t *Test) Clone() *Test {
	if t == nil {
		return nil
	}
	c := *t
	c.Steps = t.Steps.Clone()
	c.Operators = append([]string(nil), t.Operators...)
	if t.Dates.Start != nil {
		s := *t.Dates.Start
		c.Dates.Start = &s
	}
	if t.Dates.End != nil {
		e := *t.Dates.End
		c.Dates.End = &e
	}
	return &c
}

// Step returns the stored value of a workflow stage.
func (t *Test) Step(key StepKey) string {
	return t.Steps[key]
}

// HasOperator reports whether name is already assigned.
func (t *Test) HasOperator(name string) bool {
	for _, op := range t.Operators {
		if op == name {
			return true
		}
	}
	return false
}
