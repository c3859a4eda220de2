package handler

import (
	"strings"

	"organograma/internal/directory/models"
	"organograma/internal/directory/service"
)

// PersonRequest is the body of POST/PUT /api/persons.
type PersonRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	FullName       string `json:"full_name" validate:"max=300"`
	WarName        string `json:"war_name" validate:"required,max=100"`
	Rank           string `json:"rank" validate:"required,max=50"`
	Function       string `json:"function" validate:"max=200"`
	SectorID       string `json:"sector_id" validate:"omitempty,uuid"`
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid"`
	SuperiorID     string `json:"superior_id" validate:"omitempty,uuid"`
	Phone          string `json:"phone" validate:"max=30"`
	Address        string `json:"address" validate:"max=300"`
	Email          string `json:"email" validate:"omitempty,email,max=254"`
	PhotoURL       string `json:"photo_url" validate:"omitempty,url,max=500"`
}

func (r *PersonRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.FullName = strings.TrimSpace(r.FullName)
	r.WarName = strings.TrimSpace(r.WarName)
	r.Rank = strings.TrimSpace(r.Rank)
	r.Function = strings.TrimSpace(r.Function)
	r.SectorID = strings.TrimSpace(r.SectorID)
	r.OrganizationID = strings.TrimSpace(r.OrganizationID)
	r.SuperiorID = strings.TrimSpace(r.SuperiorID)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.PhotoURL = strings.TrimSpace(r.PhotoURL)
}

func (r *PersonRequest) ToFields() models.PersonFields {
	return models.PersonFields{
		Name:           r.Name,
		FullName:       r.FullName,
		WarName:        r.WarName,
		Rank:           r.Rank,
		Function:       r.Function,
		SectorID:       r.SectorID,
		OrganizationID: r.OrganizationID,
		SuperiorID:     r.SuperiorID,
		Phone:          r.Phone,
		Address:        r.Address,
		Email:          r.Email,
		PhotoURL:       r.PhotoURL,
	}
}

// SectorRequest is the body of POST/PUT /api/sectors.
type SectorRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	ParentID  string `json:"parent_id" validate:"omitempty,uuid"`
	EmblemURL string `json:"emblem_url" validate:"omitempty,url,max=500"`
}

func (r *SectorRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.ParentID = strings.TrimSpace(r.ParentID)
	r.EmblemURL = strings.TrimSpace(r.EmblemURL)
}

func (r *SectorRequest) ToFields() service.SectorFields {
	return service.SectorFields{Name: r.Name, ParentID: r.ParentID, EmblemURL: r.EmblemURL}
}

// OrganizationRequest is the body of POST/PUT /api/organizations.
type OrganizationRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	Type      string `json:"type" validate:"max=50"`
	EmblemURL string `json:"emblem_url" validate:"omitempty,url,max=500"`
}

func (r *OrganizationRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Type = strings.TrimSpace(r.Type)
	r.EmblemURL = strings.TrimSpace(r.EmblemURL)
}

func (r *OrganizationRequest) ToFields() service.OrganizationFields {
	return service.OrganizationFields{Name: r.Name, Type: r.Type, EmblemURL: r.EmblemURL}
}
