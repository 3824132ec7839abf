package access

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"SuperAdmin", RoleSuperAdmin},
		{"super admin", RoleSuperAdmin},
		{"super_admin", RoleSuperAdmin},
		{"admin", RoleAdmin},
		{"OPERATOR", RoleOperator},
		{" Client ", RoleClient},
		{"viewer", RoleViewer},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseRole("root")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestCan(t *testing.T) {
	adminActions := []Action{
		ActionSchedule, ActionResetDates, ActionArchive,
		ActionCreateBlock, ActionEditSteps, ActionAssignOperators,
	}
	for _, a := range adminActions {
		assert.True(t, Can(RoleSuperAdmin, a), a)
		assert.True(t, Can(RoleAdmin, a), a)
		for _, r := range []Role{RoleOperator, RoleClient, RoleViewer} {
			assert.False(t, Can(r, a), "%s %s", r, a)
		}
	}

	for _, a := range []Action{ActionReopen, ActionManageAdmins} {
		assert.True(t, Can(RoleSuperAdmin, a))
		assert.False(t, Can(RoleAdmin, a), "reopen and admin management need exactly SuperAdmin")
	}

	assert.False(t, Can(Role("Intern"), ActionSchedule))
}

func TestCapabilities(t *testing.T) {
	assert.Len(t, Capabilities(RoleSuperAdmin), len(Actions))
	assert.NotContains(t, Capabilities(RoleAdmin), ActionReopen)
	assert.Empty(t, Capabilities(RoleViewer))
}

func TestService_Authorize(t *testing.T) {
	s := NewService(zerolog.New(io.Discard))

	assert.NoError(t, s.Authorize(RoleAdmin, ActionArchive))

	err := s.Authorize(RoleClient, ActionArchive)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.True(t, IsDenied(err))

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, RoleClient, denied.Role)
	assert.Equal(t, ActionArchive, denied.Action)
	assert.False(t, IsDenied(errors.New("other")))
}
