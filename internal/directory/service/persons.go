package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"organograma/internal/audit"
	"organograma/internal/directory/models"
	"organograma/internal/directory/notify"
	"organograma/internal/policy"
	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/platform/sentinel"
	"organograma/pkg/requestcontext"
)

// CreatePerson adds a person. Comandantes bound to an organization may only
// add personnel to it.
func (s *Service) CreatePerson(ctx context.Context, f models.PersonFields) (*models.Person, error) {
	if err := authorizePerson(ctx, f.OrganizationID); err != nil {
		return nil, err
	}

	var created *models.Person
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := models.NewPerson(uuid.NewString(), f, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.checkReferences(ctx, p); err != nil {
			return err
		}
		if err := s.checkSuperior(ctx, p.ID, p.SuperiorID); err != nil {
			return err
		}
		if err := s.persons.CreatePerson(ctx, p); err != nil {
			return translate(err, "person", "create")
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.TablePersons, notify.OpInsert, created.ID)
	s.emit(ctx, audit.ActionPersonCreated, created.ID)
	return created, nil
}

func (s *Service) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	p, err := s.persons.FindPerson(ctx, id)
	if err != nil {
		return nil, translate(err, "person", "get")
	}
	return p, nil
}

func (s *Service) ListPersons(ctx context.Context) ([]*models.Person, error) {
	persons, err := s.persons.ListPersons(ctx)
	if err != nil {
		return nil, translate(err, "persons", "list")
	}
	return persons, nil
}

// UpdatePerson replaces every mutable field of id.
func (s *Service) UpdatePerson(ctx context.Context, id string, f models.PersonFields) (*models.Person, error) {
	var updated *models.Person
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.persons.FindPerson(ctx, id)
		if err != nil {
			return translate(err, "person", "update")
		}
		if err := authorizePerson(ctx, p.OrganizationID); err != nil {
			return err
		}
		if f.OrganizationID != p.OrganizationID {
			if err := authorizePerson(ctx, f.OrganizationID); err != nil {
				return err
			}
		}
		if err := p.Apply(f, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.checkReferences(ctx, p); err != nil {
			return err
		}
		if err := s.checkSuperior(ctx, p.ID, p.SuperiorID); err != nil {
			return err
		}
		if err := s.persons.UpdatePerson(ctx, p); err != nil {
			return translate(err, "person", "update")
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.TablePersons, notify.OpUpdate, updated.ID)
	s.emit(ctx, audit.ActionPersonUpdated, updated.ID)
	return updated, nil
}

// ContactFields are the person fields a user may edit on their own linked
// record.
type ContactFields struct {
	Phone    string
	Address  string
	Email    string
	PhotoURL *string
}

// UpdateContact changes contact data of id without the ManagePersonnel
// capability. Callers authorize ownership.
func (s *Service) UpdateContact(ctx context.Context, id string, c ContactFields) (*models.Person, error) {
	var updated *models.Person
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.persons.FindPerson(ctx, id)
		if err != nil {
			return translate(err, "person", "update")
		}
		f := p.Fields()
		f.Phone = c.Phone
		f.Address = c.Address
		f.Email = c.Email
		if c.PhotoURL != nil {
			f.PhotoURL = *c.PhotoURL
		}
		if err := p.Apply(f, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.persons.UpdatePerson(ctx, p); err != nil {
			return translate(err, "person", "update")
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.TablePersons, notify.OpUpdate, updated.ID)
	s.emit(ctx, audit.ActionPersonUpdated, updated.ID)
	return updated, nil
}

// SetPhoto points id at a stored photo.
func (s *Service) SetPhoto(ctx context.Context, id, photoURL string) (*models.Person, error) {
	p, err := s.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.UpdateContact(ctx, id, ContactFields{
		Phone:    p.Phone,
		Address:  p.Address,
		Email:    p.Email,
		PhotoURL: &photoURL,
	})
}

// DeletePerson removes id. Its direct subordinates lose their superior and
// become roots of the org chart.
func (s *Service) DeletePerson(ctx context.Context, id string) error {
	var detached []string
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.persons.FindPerson(ctx, id)
		if err != nil {
			return translate(err, "person", "delete")
		}
		if err := authorizePerson(ctx, p.OrganizationID); err != nil {
			return err
		}
		detached, err = s.persons.DeletePerson(ctx, id)
		if err != nil {
			return translate(err, "person", "delete")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(detached) > 0 {
		s.logger.InfoContext(ctx, "detached subordinates of deleted person",
			"person_id", id,
			"subordinates", detached,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	s.publish(ctx, notify.TablePersons, notify.OpDelete, id)
	s.emit(ctx, audit.ActionPersonDeleted, id)
	return nil
}

func authorizePerson(ctx context.Context, organizationID string) error {
	if !policy.CanManagePerson(requestcontext.Actor(ctx), organizationID) {
		return dErrors.New(dErrors.CodeForbidden, "not allowed to manage personnel of this organization")
	}
	return nil
}

// checkReferences verifies the sector and organization a person points at.
func (s *Service) checkReferences(ctx context.Context, p *models.Person) error {
	if p.SectorID != "" {
		if _, err := s.sectors.FindSector(ctx, p.SectorID); err != nil {
			return referenceErr(err, "sector")
		}
	}
	if p.OrganizationID != "" {
		if _, err := s.organizations.FindOrganization(ctx, p.OrganizationID); err != nil {
			return referenceErr(err, "organization")
		}
	}
	return nil
}

func referenceErr(err error, entity string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeValidation, entity+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check "+entity)
}
