package service

import (
	"context"

	"github.com/google/uuid"

	"organograma/internal/audit"
	"organograma/internal/directory/models"
	"organograma/internal/directory/notify"
	"organograma/pkg/requestcontext"
)

// SectorFields is the mutable part of a Sector.
type SectorFields struct {
	Name      string
	ParentID  string
	EmblemURL string
}

func (s *Service) CreateSector(ctx context.Context, f SectorFields) (*models.Sector, error) {
	var created *models.Sector
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		sec, err := models.NewSector(uuid.NewString(), f.Name, f.ParentID, f.EmblemURL, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.checkParentSector(ctx, sec.ID, sec.ParentID); err != nil {
			return err
		}
		if err := s.sectors.CreateSector(ctx, sec); err != nil {
			return translate(err, "sector", "create")
		}
		created = sec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.TableSectors, notify.OpInsert, created.ID)
	s.emit(ctx, audit.ActionSectorCreated, created.ID)
	return created, nil
}

func (s *Service) GetSector(ctx context.Context, id string) (*models.Sector, error) {
	sec, err := s.sectors.FindSector(ctx, id)
	if err != nil {
		return nil, translate(err, "sector", "get")
	}
	return sec, nil
}

// ListSectors returns sectors ordered by name.
func (s *Service) ListSectors(ctx context.Context) ([]*models.Sector, error) {
	sectors, err := s.sectors.ListSectors(ctx)
	if err != nil {
		return nil, translate(err, "sectors", "list")
	}
	return sectors, nil
}

func (s *Service) UpdateSector(ctx context.Context, id string, f SectorFields) (*models.Sector, error) {
	var updated *models.Sector
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		sec, err := s.sectors.FindSector(ctx, id)
		if err != nil {
			return translate(err, "sector", "update")
		}
		if err := sec.Apply(f.Name, f.ParentID, f.EmblemURL, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.checkParentSector(ctx, sec.ID, sec.ParentID); err != nil {
			return err
		}
		if err := s.sectors.UpdateSector(ctx, sec); err != nil {
			return translate(err, "sector", "update")
		}
		updated = sec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.TableSectors, notify.OpUpdate, updated.ID)
	s.emit(ctx, audit.ActionSectorUpdated, updated.ID)
	return updated, nil
}

// DeleteSector removes id; its persons become "Sem setor" and child sectors
// become top level.
func (s *Service) DeleteSector(ctx context.Context, id string) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.sectors.DeleteSector(ctx, id); err != nil {
			return translate(err, "sector", "delete")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, notify.TableSectors, notify.OpDelete, id)
	s.emit(ctx, audit.ActionSectorDeleted, id)
	return nil
}
