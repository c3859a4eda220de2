// Package store persists the directory: persons, sectors and organizations.
package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"organograma/internal/directory/models"
	"organograma/pkg/platform/sentinel"
)

// InMemory keeps the directory in maps. Lists come back in insertion order
// (sectors and organizations by name), matching the Postgres store.
type InMemory struct {
	mu            sync.RWMutex
	persons       map[string]*models.Person
	personOrder   []string
	sectors       map[string]*models.Sector
	organizations map[string]*models.Organization
}

func NewInMemory() *InMemory {
	return &InMemory{
		persons:       make(map[string]*models.Person),
		sectors:       make(map[string]*models.Sector),
		organizations: make(map[string]*models.Organization),
	}
}

func (s *InMemory) CreatePerson(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[p.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	cp := *p
	s.persons[p.ID] = &cp
	s.personOrder = append(s.personOrder, p.ID)
	return nil
}

func (s *InMemory) UpdatePerson(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *p
	s.persons[p.ID] = &cp
	return nil
}

func (s *InMemory) FindPerson(_ context.Context, id string) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) ListPersons(_ context.Context) ([]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Person, 0, len(s.personOrder))
	for _, id := range s.personOrder {
		cp := *s.persons[id]
		out = append(out, &cp)
	}
	return out, nil
}

// DeletePerson removes id and clears the superior of its direct
// subordinates, returning their ids.
func (s *InMemory) DeletePerson(_ context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[id]; !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.persons, id)
	s.personOrder = slices.DeleteFunc(s.personOrder, func(v string) bool { return v == id })

	var detached []string
	for _, pid := range s.personOrder {
		p := s.persons[pid]
		if p.SuperiorID == id {
			p.SuperiorID = ""
			detached = append(detached, pid)
		}
	}
	return detached, nil
}

func (s *InMemory) CreateSector(_ context.Context, sec *models.Sector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sectors[sec.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if s.sectorNameTaken(sec.Name, sec.ID) {
		return sentinel.ErrAlreadyUsed
	}
	cp := *sec
	s.sectors[sec.ID] = &cp
	return nil
}

func (s *InMemory) UpdateSector(_ context.Context, sec *models.Sector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sectors[sec.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.sectorNameTaken(sec.Name, sec.ID) {
		return sentinel.ErrAlreadyUsed
	}
	cp := *sec
	s.sectors[sec.ID] = &cp
	return nil
}

func (s *InMemory) sectorNameTaken(name, exceptID string) bool {
	for _, other := range s.sectors {
		if other.ID != exceptID && strings.EqualFold(other.Name, name) {
			return true
		}
	}
	return false
}

func (s *InMemory) FindSector(_ context.Context, id string) (*models.Sector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.sectors[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sec
	return &cp, nil
}

func (s *InMemory) ListSectors(_ context.Context) ([]*models.Sector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Sector, 0, len(s.sectors))
	for _, sec := range s.sectors {
		cp := *sec
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Sector) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// DeleteSector removes id, unassigns its persons and detaches child sectors.
func (s *InMemory) DeleteSector(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sectors[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.sectors, id)
	for _, sec := range s.sectors {
		if sec.ParentID == id {
			sec.ParentID = ""
		}
	}
	for _, p := range s.persons {
		if p.SectorID == id {
			p.SectorID = ""
		}
	}
	return nil
}

func (s *InMemory) CreateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.organizations[org.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if s.organizationNameTaken(org.Name, org.ID) {
		return sentinel.ErrAlreadyUsed
	}
	cp := *org
	s.organizations[org.ID] = &cp
	return nil
}

func (s *InMemory) UpdateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.organizations[org.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.organizationNameTaken(org.Name, org.ID) {
		return sentinel.ErrAlreadyUsed
	}
	cp := *org
	s.organizations[org.ID] = &cp
	return nil
}

func (s *InMemory) organizationNameTaken(name, exceptID string) bool {
	for _, other := range s.organizations {
		if other.ID != exceptID && strings.EqualFold(other.Name, name) {
			return true
		}
	}
	return false
}

func (s *InMemory) FindOrganization(_ context.Context, id string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.organizations[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *InMemory) ListOrganizations(_ context.Context) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Organization, 0, len(s.organizations))
	for _, org := range s.organizations {
		cp := *org
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Organization) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *InMemory) DeleteOrganization(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.organizations[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.organizations, id)
	for _, p := range s.persons {
		if p.OrganizationID == id {
			p.OrganizationID = ""
		}
	}
	return nil
}
