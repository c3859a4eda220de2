package service

import (
	"context"

	"github.com/google/uuid"

	"organograma/internal/audit"
	"organograma/internal/directory/models"
	"organograma/internal/directory/notify"
	"organograma/pkg/requestcontext"
)

type OrganizationFields struct {
	Name      string
	Type      string
	EmblemURL string
}

func (s *Service) CreateOrganization(ctx context.Context, f OrganizationFields) (*models.Organization, error) {
	org, err := models.NewOrganization(uuid.NewString(), f.Name, f.Type, f.EmblemURL, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.organizations.CreateOrganization(ctx, org); err != nil {
		return nil, translate(err, "organization", "create")
	}

	s.publish(ctx, notify.TableOrganizations, notify.OpInsert, org.ID)
	s.emit(ctx, audit.ActionOrganizationCreated, org.ID)
	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	org, err := s.organizations.FindOrganization(ctx, id)
	if err != nil {
		return nil, translate(err, "organization", "get")
	}
	return org, nil
}

func (s *Service) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	orgs, err := s.organizations.ListOrganizations(ctx)
	if err != nil {
		return nil, translate(err, "organizations", "list")
	}
	return orgs, nil
}

func (s *Service) UpdateOrganization(ctx context.Context, id string, f OrganizationFields) (*models.Organization, error) {
	var updated *models.Organization
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		org, err := s.organizations.FindOrganization(ctx, id)
		if err != nil {
			return translate(err, "organization", "update")
		}
		if err := org.Apply(f.Name, f.Type, f.EmblemURL, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.organizations.UpdateOrganization(ctx, org); err != nil {
			return translate(err, "organization", "update")
		}
		updated = org
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.TableOrganizations, notify.OpUpdate, updated.ID)
	s.emit(ctx, audit.ActionOrganizationUpdated, updated.ID)
	return updated, nil
}

func (s *Service) DeleteOrganization(ctx context.Context, id string) error {
	if err := s.organizations.DeleteOrganization(ctx, id); err != nil {
		return translate(err, "organization", "delete")
	}

	s.publish(ctx, notify.TableOrganizations, notify.OpDelete, id)
	s.emit(ctx, audit.ActionOrganizationDeleted, id)
	return nil
}
