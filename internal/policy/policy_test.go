package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllows(t *testing.T) {
	tests := []struct {
		role       Role
		capability Capability
		want       bool
	}{
		{RoleMilitar, ViewOrgChart, true},
		{RoleMilitar, ViewRoster, true},
		{RoleMilitar, EditOwnProfile, true},
		{RoleMilitar, ManagePersonnel, false},
		{RoleComandante, ManagePersonnel, true},
		{RoleComandante, ManageSectors, false},
		{RoleComandante, ManageOrganizations, false},
		{RoleComandante, ManageUsers, false},
		{RoleAdmin, ManageSectors, true},
		{RoleAdmin, ManageOrganizations, true},
		{RoleAdmin, ManageUsers, true},
		{Role("visitante"), ViewOrgChart, false},
		{Role(""), ViewOrgChart, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.capability), func(t *testing.T) {
			assert.Equal(t, tt.want, Allows(tt.role, tt.capability))
		})
	}
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Comandante ")
	assert.True(t, ok)
	assert.Equal(t, RoleComandante, r)

	_, ok = ParseRole("general")
	assert.False(t, ok)
}

func TestCanManagePerson(t *testing.T) {
	t.Run("admin manages any organization", func(t *testing.T) {
		assert.True(t, CanManagePerson(Actor{Role: RoleAdmin, OrganizationID: "om-1"}, "om-2"))
	})
	t.Run("comandante scoped to own organization", func(t *testing.T) {
		actor := Actor{Role: RoleComandante, OrganizationID: "om-1"}
		assert.True(t, CanManagePerson(actor, "om-1"))
		assert.False(t, CanManagePerson(actor, "om-2"))
		assert.False(t, CanManagePerson(actor, ""))
	})
	t.Run("unbound comandante is not scoped", func(t *testing.T) {
		assert.True(t, CanManagePerson(Actor{Role: RoleComandante}, "om-2"))
	})
	t.Run("militar never manages", func(t *testing.T) {
		assert.False(t, CanManagePerson(Actor{Role: RoleMilitar}, ""))
	})
}

func TestComandanteCapabilities(t *testing.T) {
	assert.Equal(t, []Capability{
		ViewOrgChart, ViewRoster, ViewDirectory, EditOwnProfile, ManagePersonnel,
	}, Capabilities(RoleComandante))
}

func TestCapabilitiesReturnsCopy(t *testing.T) {
	caps := Capabilities(RoleMilitar)
	caps[0] = ManageUsers
	assert.False(t, Allows(RoleMilitar, ManageUsers))
}
