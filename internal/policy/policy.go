// Package policy is the single place role checks happen. Handlers and
// services ask for a Capability instead of comparing role strings.
package policy

import "strings"

// Role is the profile role a user holds.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleComandante Role = "comandante"
	RoleMilitar    Role = "militar"
)

// ParseRole normalizes a role claim. Unknown roles are invalid.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.IsValid()
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleComandante, RoleMilitar:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Capability names a gated action.
type Capability string

const (
	ViewOrgChart        Capability = "view_orgchart"
	ViewRoster          Capability = "view_roster"
	ViewDirectory       Capability = "view_directory"
	EditOwnProfile      Capability = "edit_own_profile"
	ManagePersonnel     Capability = "manage_personnel"
	ManageSectors       Capability = "manage_sectors"
	ManageOrganizations Capability = "manage_organizations"
	ManageUsers         Capability = "manage_users"
)

var grants = map[Role][]Capability{
	RoleAdmin: {
		ViewOrgChart, ViewRoster, ViewDirectory, EditOwnProfile,
		ManagePersonnel,
		ManageSectors, ManageOrganizations, ManageUsers,
	},
	RoleComandante: {
		ViewOrgChart, ViewRoster, ViewDirectory, EditOwnProfile,
		ManagePersonnel,
	},
	RoleMilitar: {
		ViewOrgChart, ViewRoster, ViewDirectory, EditOwnProfile,
	},
}

// Allows reports whether role may perform capability.
func Allows(role Role, capability Capability) bool {
	for _, c := range grants[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// Capabilities lists what role may do, in a stable order.
func Capabilities(role Role) []Capability {
	out := make([]Capability, len(grants[role]))
	copy(out, grants[role])
	return out
}

// Actor is the authenticated caller as the policy sees it.
type Actor struct {
	UserID         string
	Role           Role
	OrganizationID string
}

// CanManagePerson applies the organization scope on top of ManagePersonnel:
// a comandante bound to an organization only manages personnel of that
// organization. An unbound comandante is not scoped.
func CanManagePerson(actor Actor, personOrganizationID string) bool {
	if !Allows(actor.Role, ManagePersonnel) {
		return false
	}
	if actor.Role != RoleComandante || actor.OrganizationID == "" {
		return true
	}
	return personOrganizationID == actor.OrganizationID
}
