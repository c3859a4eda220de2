package models

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"time"

	dErrors "organograma/pkg/domain-errors"
)

// NoSectorName is shown for persons without a sector, or whose sector is
// missing from the snapshot.
const NoSectorName = "Sem setor"

// Person is one member of the unit's personnel.
//
// Invariants:
//   - Name, WarName and Rank are non-empty
//   - SuperiorID never equals ID
//   - SuperiorID, when set, references an existing person and the superior
//     chain never loops back (checked by the service on every write)
type Person struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	FullName       string    `json:"full_name,omitempty"`
	WarName        string    `json:"war_name"`
	Rank           string    `json:"rank"`
	Function       string    `json:"function,omitempty"`
	SectorID       string    `json:"sector_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	SuperiorID     string    `json:"superior_id,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	Email          string    `json:"email,omitempty"`
	PhotoURL       string    `json:"photo_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PersonFields is the mutable part of a Person.
type PersonFields struct {
	Name           string
	FullName       string
	WarName        string
	Rank           string
	Function       string
	SectorID       string
	OrganizationID string
	SuperiorID     string
	Phone          string
	Address        string
	Email          string
	PhotoURL       string
}

func NewPerson(id string, f PersonFields, now time.Time) (*Person, error) {
	p := &Person{ID: id, CreatedAt: now}
	if err := p.Apply(f, now); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply replaces the mutable fields after checking the record invariants.
func (p *Person) Apply(f PersonFields, now time.Time) error {
	if strings.TrimSpace(f.Name) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "person name cannot be empty")
	}
	if strings.TrimSpace(f.WarName) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "war name cannot be empty")
	}
	if strings.TrimSpace(f.Rank) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "rank cannot be empty")
	}
	if f.SuperiorID != "" && f.SuperiorID == p.ID {
		return dErrors.New(dErrors.CodeInvariantViolation, "a person cannot be their own superior")
	}
	p.Name = f.Name
	p.FullName = f.FullName
	p.WarName = f.WarName
	p.Rank = f.Rank
	p.Function = f.Function
	p.SectorID = f.SectorID
	p.OrganizationID = f.OrganizationID
	p.SuperiorID = f.SuperiorID
	p.Phone = f.Phone
	p.Address = f.Address
	p.Email = f.Email
	p.PhotoURL = f.PhotoURL
	p.UpdatedAt = now
	return nil
}

// Fields returns the mutable part of p.
func (p *Person) Fields() PersonFields {
	return PersonFields{
		Name:           p.Name,
		FullName:       p.FullName,
		WarName:        p.WarName,
		Rank:           p.Rank,
		Function:       p.Function,
		SectorID:       p.SectorID,
		OrganizationID: p.OrganizationID,
		SuperiorID:     p.SuperiorID,
		Phone:          p.Phone,
		Address:        p.Address,
		Email:          p.Email,
		PhotoURL:       p.PhotoURL,
	}
}

// DisplayName is the full name, falling back to the registered name.
func (p *Person) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Name
}

// Sector groups persons. Sectors nest through ParentID with the same
// acyclicity rule as persons.
type Sector struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	EmblemURL string    `json:"emblem_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSector(id, name, parentID, emblemURL string, now time.Time) (*Sector, error) {
	s := &Sector{ID: id, CreatedAt: now}
	if err := s.Apply(name, parentID, emblemURL, now); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sector) Apply(name, parentID, emblemURL string, now time.Time) error {
	if strings.TrimSpace(name) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "sector name cannot be empty")
	}
	if parentID != "" && parentID == s.ID {
		return dErrors.New(dErrors.CodeInvariantViolation, "a sector cannot be its own parent")
	}
	s.Name = name
	s.ParentID = parentID
	s.EmblemURL = emblemURL
	s.UpdatedAt = now
	return nil
}

// Organization is a military organization (OM).
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type,omitempty"`
	EmblemURL string    `json:"emblem_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewOrganization(id, name, orgType, emblemURL string, now time.Time) (*Organization, error) {
	o := &Organization{ID: id, CreatedAt: now}
	if err := o.Apply(name, orgType, emblemURL, now); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Organization) Apply(name, orgType, emblemURL string, now time.Time) error {
	if strings.TrimSpace(name) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization name cannot be empty")
	}
	o.Name = name
	o.Type = orgType
	o.EmblemURL = emblemURL
	o.UpdatedAt = now
	return nil
}

// Snapshot is every person and sector read at one point in time.
type Snapshot struct {
	Persons []*Person
	Sectors []*Sector
	TakenAt time.Time
}

// SectorNames maps sector id to name.
func (s *Snapshot) SectorNames() map[string]string {
	names := make(map[string]string, len(s.Sectors))
	for _, sec := range s.Sectors {
		names[sec.ID] = sec.Name
	}
	return names
}

// SectorName resolves id against names, falling back to NoSectorName.
func SectorName(names map[string]string, id string) string {
	if name, ok := names[id]; ok && id != "" {
		return name
	}
	return NoSectorName
}

// Fingerprint hashes the fields that affect the org chart. Two snapshots
// with the same fingerprint produce the same layout.
func (s *Snapshot) Fingerprint() string {
	h := sha256.New()
	for _, p := range s.Persons {
		writeFields(h, "p", p.ID, p.SuperiorID, p.Name, p.FullName, p.WarName, p.Rank, p.Function, p.SectorID)
	}
	for _, sec := range s.Sectors {
		writeFields(h, "s", sec.ID, sec.Name)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeFields(w io.Writer, fields ...string) {
	for _, f := range fields {
		_, _ = io.WriteString(w, f)
		_, _ = w.Write([]byte{0})
	}
	_, _ = w.Write([]byte{'\n'})
}

// RosterQuery filters the call roster.
type RosterQuery struct {
	SectorID string
	Search   string
}

// RosterEntry is one line of the call roster.
type RosterEntry struct {
	Person     *Person      `json:"person"`
	SectorName string       `json:"sector_name"`
	Category   RankCategory `json:"category"`
}
