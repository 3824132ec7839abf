// Package access provides the role policy that gates every mutating action.
package access

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Role is the actor role supplied by the auth layer.
type Role string

const (
	RoleSuperAdmin Role = "SuperAdmin"
	RoleAdmin      Role = "Admin"
	RoleOperator   Role = "Operator"
	RoleClient     Role = "Client"
	RoleViewer     Role = "Viewer"
)

// Roles lists every role, highest authority first.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleOperator, RoleClient, RoleViewer}

// ErrUnknownRole is returned by ParseRole.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole accepts the canonical names case-insensitively, with or without separators.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.TrimSpace(s)))
	for _, r := range Roles {
		if strings.ToLower(string(r)) == key {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Action is a gated operation.
type Action string

const (
	ActionSchedule        Action = "schedule"
	ActionResetDates      Action = "reset_dates"
	ActionArchive         Action = "archive"
	ActionReopen          Action = "reopen"
	ActionCreateBlock     Action = "create_block"
	ActionEditSteps       Action = "edit_steps"
	ActionAssignOperators Action = "assign_operators"
	ActionManageAdmins    Action = "manage_admins"
)

// Actions lists every gated action.
var Actions = []Action{
	ActionSchedule,
	ActionResetDates,
	ActionArchive,
	ActionReopen,
	ActionCreateBlock,
	ActionEditSteps,
	ActionAssignOperators,
	ActionManageAdmins,
}

var (
	superAdminOnly = []Role{RoleSuperAdmin}
	adminOrAbove   = []Role{RoleSuperAdmin, RoleAdmin}
)

// policy is not a hierarchy: some actions need exactly SuperAdmin.
var policy = map[Action][]Role{
	ActionSchedule:        adminOrAbove,
	ActionResetDates:      adminOrAbove,
	ActionArchive:         adminOrAbove,
	ActionReopen:          superAdminOnly,
	ActionCreateBlock:     adminOrAbove,
	ActionEditSteps:       adminOrAbove,
	ActionAssignOperators: adminOrAbove,
	ActionManageAdmins:    superAdminOnly,
}

// ErrForbidden marks an authorization denial.
var ErrForbidden = errors.New("forbidden")

// DeniedError is returned when a role may not perform an action.
type DeniedError struct {
	Role   Role
	Action Action
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("role %q may not %s", e.Role, e.Action)
}

// Unwrap lets errors.Is(err, ErrForbidden) match.
func (e *DeniedError) Unwrap() error {
	return ErrForbidden
}

// IsDenied checks if error is an authorization denial.
func IsDenied(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied)
}

// Can reports whether role may perform action.
func Can(role Role, action Action) bool {
	for _, r := range policy[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Capabilities lists the actions a role may perform, for disabling controls up front.
func Capabilities(role Role) []Action {
	out := []Action{}
	for _, a := range Actions {
		if Can(role, a) {
			out = append(out, a)
		}
	}
	return out
}

// Service checks actions and logs denials.
type Service struct {
	logger zerolog.Logger
}

// NewService creates a new access control service.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		logger: logger.With().Str("component", "access").Logger(),
	}
}

// Authorize returns a *DeniedError when role may not perform action.
func (s *Service) Authorize(role Role, action Action) error {
	if Can(role, action) {
		return nil
	}

	s.logger.Warn().
		Str("role", string(role)).
		Str("action", string(action)).
		Msg("action denied")

	return &DeniedError{Role: role, Action: action}
}
