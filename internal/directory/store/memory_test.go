package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"organograma/internal/directory/models"
	"organograma/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) newPerson(warName, superiorID string) *models.Person {
	p, err := models.NewPerson(uuid.NewString(), models.PersonFields{
		Name: warName, WarName: warName, Rank: "Sd", SuperiorID: superiorID,
	}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreatePerson(s.ctx, p))
	return p
}

func (s *InMemorySuite) TestPersons() {
	s.Run("lists in insertion order", func() {
		a := s.newPerson("Alfa", "")
		b := s.newPerson("Bravo", a.ID)
		c := s.newPerson("Charlie", a.ID)

		list, err := s.store.ListPersons(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(list, 3)
		s.Equal([]string{a.ID, b.ID, c.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
	})

	s.Run("returned records are copies", func() {
		p := s.newPerson("Delta", "")
		found, err := s.store.FindPerson(s.ctx, p.ID)
		s.Require().NoError(err)
		found.WarName = "changed"

		again, err := s.store.FindPerson(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal("Delta", again.WarName)
	})

	s.Run("unknown person", func() {
		_, err := s.store.FindPerson(s.ctx, uuid.NewString())
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.ErrorIs(s.store.UpdatePerson(s.ctx, &models.Person{ID: uuid.NewString()}), sentinel.ErrNotFound)
		_, err = s.store.DeletePerson(s.ctx, uuid.NewString())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemorySuite) TestDeletePersonDetachesSubordinates() {
	boss := s.newPerson("Boss", "")
	sub1 := s.newPerson("Sub1", boss.ID)
	sub2 := s.newPerson("Sub2", boss.ID)
	grand := s.newPerson("Grand", sub1.ID)

	detached, err := s.store.DeletePerson(s.ctx, boss.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]string{sub1.ID, sub2.ID}, detached)

	for _, id := range []string{sub1.ID, sub2.ID} {
		p, err := s.store.FindPerson(s.ctx, id)
		s.Require().NoError(err)
		s.Empty(p.SuperiorID)
	}
	g, err := s.store.FindPerson(s.ctx, grand.ID)
	s.Require().NoError(err)
	s.Equal(sub1.ID, g.SuperiorID)

	list, err := s.store.ListPersons(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 3)
}

func (s *InMemorySuite) TestSectors() {
	now := time.Now()
	parent, err := models.NewSector(uuid.NewString(), "Seção de Pessoal", "", "", now)
	s.Require().NoError(err)
	child, err := models.NewSector(uuid.NewString(), "almoxarifado", parent.ID, "", now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateSector(s.ctx, parent))
	s.Require().NoError(s.store.CreateSector(s.ctx, child))

	s.Run("name is unique ignoring case", func() {
		dup, err := models.NewSector(uuid.NewString(), "SEÇÃO DE PESSOAL", "", "", now)
		s.Require().NoError(err)
		s.ErrorIs(s.store.CreateSector(s.ctx, dup), sentinel.ErrAlreadyUsed)
	})

	s.Run("lists by name", func() {
		list, err := s.store.ListSectors(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal("almoxarifado", list[0].Name)
	})

	s.Run("delete unassigns persons and children", func() {
		p, err := models.NewPerson(uuid.NewString(), models.PersonFields{
			Name: "Eco", WarName: "Eco", Rank: "Cb", SectorID: parent.ID,
		}, now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.CreatePerson(s.ctx, p))

		s.Require().NoError(s.store.DeleteSector(s.ctx, parent.ID))

		found, err := s.store.FindPerson(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Empty(found.SectorID)

		c, err := s.store.FindSector(s.ctx, child.ID)
		s.Require().NoError(err)
		s.Empty(c.ParentID)

		s.ErrorIs(s.store.DeleteSector(s.ctx, parent.ID), sentinel.ErrNotFound)
	})
}

func (s *InMemorySuite) TestOrganizations() {
	now := time.Now()
	om, err := models.NewOrganization(uuid.NewString(), "2º BIS", "Batalhão", "", now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateOrganization(s.ctx, om))

	p, err := models.NewPerson(uuid.NewString(), models.PersonFields{
		Name: "Fox", WarName: "Fox", Rank: "Sd", OrganizationID: om.ID,
	}, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreatePerson(s.ctx, p))

	om.Type = "Batalhão de Infantaria de Selva"
	s.Require().NoError(s.store.UpdateOrganization(s.ctx, om))
	found, err := s.store.FindOrganization(s.ctx, om.ID)
	s.Require().NoError(err)
	s.Equal("Batalhão de Infantaria de Selva", found.Type)

	s.Require().NoError(s.store.DeleteOrganization(s.ctx, om.ID))
	person, err := s.store.FindPerson(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(person.OrganizationID)

	list, err := s.store.ListOrganizations(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)
}
