package models

import (
	"strings"
	"time"

	"organograma/internal/policy"
	dErrors "organograma/pkg/domain-errors"
)

// User is an account that can sign in.
//
// Invariants:
//   - Email is non-empty and stored lower-cased
//   - PasswordHash is a bcrypt hash, never the plain password
//   - Role is one of the policy roles
type User struct {
	ID             string      `json:"id"`
	Email          string      `json:"email"`
	PasswordHash   string      `json:"-"`
	Role           policy.Role `json:"role"`
	DisplayName    string      `json:"display_name"`
	Rank           string      `json:"rank,omitempty"`
	PersonID       string      `json:"person_id,omitempty"`
	OrganizationID string      `json:"organization_id,omitempty"`
	SectorID       string      `json:"sector_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Profile is the user-editable part of a User.
type Profile struct {
	DisplayName    string
	Rank           string
	PersonID       string
	OrganizationID string
	SectorID       string
}

func NewUser(id, email, passwordHash string, role policy.Role, p Profile, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email cannot be empty")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash cannot be empty")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid role")
	}
	u := &User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
	}
	u.ApplyProfile(p, now)
	return u, nil
}

func (u *User) ApplyProfile(p Profile, now time.Time) {
	u.DisplayName = p.DisplayName
	u.Rank = p.Rank
	u.PersonID = p.PersonID
	u.OrganizationID = p.OrganizationID
	u.SectorID = p.SectorID
	u.UpdatedAt = now
}

func (u *User) Profile() Profile {
	return Profile{
		DisplayName:    u.DisplayName,
		Rank:           u.Rank,
		PersonID:       u.PersonID,
		OrganizationID: u.OrganizationID,
		SectorID:       u.SectorID,
	}
}

func (u *User) Actor() policy.Actor {
	return policy.Actor{UserID: u.ID, Role: u.Role, OrganizationID: u.OrganizationID}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
