package handler

import (
	"strings"

	"organograma/internal/auth/models"
	"organograma/internal/auth/service"
	dirservice "organograma/internal/directory/service"
	"organograma/internal/policy"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	Role        string `json:"role" validate:"omitempty,oneof=admin comandante militar"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Rank        string `json:"rank" validate:"max=50"`
	PersonID    string `json:"person_id" validate:"omitempty,uuid"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = models.NormalizeEmail(r.Email)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Rank = strings.TrimSpace(r.Rank)
	r.PersonID = strings.TrimSpace(r.PersonID)
}

func (r *RegisterRequest) ToCommand() service.RegisterCommand {
	return service.RegisterCommand{
		Email:    r.Email,
		Password: r.Password,
		Role:     policy.Role(r.Role),
		Profile: models.Profile{
			DisplayName: r.DisplayName,
			Rank:        r.Rank,
			PersonID:    r.PersonID,
		},
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

func (r *LoginRequest) Normalize() {
	r.Email = models.NormalizeEmail(r.Email)
}

// ContactRequest carries the contact data of the linked person.
type ContactRequest struct {
	Phone   string `json:"phone" validate:"max=30"`
	Address string `json:"address" validate:"max=300"`
	Email   string `json:"email" validate:"omitempty,email,max=254"`
}

// UpdateProfileRequest is the body of PUT /api/me.
type UpdateProfileRequest struct {
	DisplayName string          `json:"display_name" validate:"required,max=100"`
	Rank        string          `json:"rank" validate:"max=50"`
	Contact     *ContactRequest `json:"contact"`
}

func (r *UpdateProfileRequest) Normalize() {
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Rank = strings.TrimSpace(r.Rank)
	if r.Contact != nil {
		r.Contact.Phone = strings.TrimSpace(r.Contact.Phone)
		r.Contact.Address = strings.TrimSpace(r.Contact.Address)
		r.Contact.Email = strings.ToLower(strings.TrimSpace(r.Contact.Email))
	}
}

func (r *UpdateProfileRequest) ToCommand() service.UpdateProfileCommand {
	cmd := service.UpdateProfileCommand{DisplayName: r.DisplayName, Rank: r.Rank}
	if r.Contact != nil {
		cmd.Contact = &dirservice.ContactFields{
			Phone:   r.Contact.Phone,
			Address: r.Contact.Address,
			Email:   r.Contact.Email,
		}
	}
	return cmd
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin comandante militar"`
}

func (r *SetRoleRequest) Normalize() {
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
}
