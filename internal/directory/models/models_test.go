package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "organograma/pkg/domain-errors"
)

func TestNewPerson(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	valid := PersonFields{Name: "João Silva", WarName: "Silva", Rank: "Cap"}

	t.Run("valid", func(t *testing.T) {
		p, err := NewPerson("p-1", valid, now)
		require.NoError(t, err)
		assert.Equal(t, "Silva", p.WarName)
		assert.Equal(t, now, p.CreatedAt)
		assert.Equal(t, now, p.UpdatedAt)
		assert.Equal(t, valid, p.Fields())
	})

	tests := []struct {
		name   string
		mutate func(f *PersonFields)
		msg    string
	}{
		{"missing name", func(f *PersonFields) { f.Name = " " }, "person name cannot be empty"},
		{"missing war name", func(f *PersonFields) { f.WarName = "" }, "war name cannot be empty"},
		{"missing rank", func(f *PersonFields) { f.Rank = "" }, "rank cannot be empty"},
		{"own superior", func(f *PersonFields) { f.SuperiorID = "p-1" }, "a person cannot be their own superior"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			_, err := NewPerson("p-1", f, now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
			assert.Equal(t, tt.msg, dErrors.MessageOf(err))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "João da Silva", (&Person{Name: "João", FullName: "João da Silva"}).DisplayName())
	assert.Equal(t, "João", (&Person{Name: "João"}).DisplayName())
}

func TestSectorInvariants(t *testing.T) {
	_, err := NewSector("s-1", "", "", "", time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewSector("s-1", "S1", "s-1", "", time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestSectorName(t *testing.T) {
	names := map[string]string{"s-1": "Seção de Pessoal"}
	assert.Equal(t, "Seção de Pessoal", SectorName(names, "s-1"))
	assert.Equal(t, NoSectorName, SectorName(names, "s-2"))
	assert.Equal(t, NoSectorName, SectorName(names, ""))
}

func TestFingerprint(t *testing.T) {
	base := func() *Snapshot {
		return &Snapshot{
			Persons: []*Person{{ID: "1", Name: "A", WarName: "A", Rank: "Cel"}, {ID: "2", SuperiorID: "1", Name: "B", WarName: "B", Rank: "Maj"}},
			Sectors: []*Sector{{ID: "s", Name: "S1"}},
			TakenAt: time.Now(),
		}
	}

	a, b := base(), base()
	b.TakenAt = a.TakenAt.Add(time.Hour)
	b.Persons[0].Phone = "555"
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "fields outside the chart do not change the fingerprint")

	b.Persons[1].SuperiorID = ""
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := base()
	c.Sectors[0].Name = "S2"
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
