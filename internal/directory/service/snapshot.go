package service

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"organograma/internal/directory/models"
)

// Snapshot reads persons and sectors concurrently. TakenAt is stamped before
// either read starts, so a later snapshot never carries older data.
func (s *Service) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "directory.Snapshot")
	defer span.End()

	snap := &models.Snapshot{TakenAt: time.Now()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		persons, err := s.persons.ListPersons(gctx)
		if err != nil {
			return translate(err, "persons", "list")
		}
		snap.Persons = persons
		return nil
	})
	g.Go(func() error {
		sectors, err := s.sectors.ListSectors(gctx)
		if err != nil {
			return translate(err, "sectors", "list")
		}
		snap.Sectors = sectors
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("directory.persons", len(snap.Persons)),
		attribute.Int("directory.sectors", len(snap.Sectors)),
	)
	return snap, nil
}

// Roster builds the call roster: persons with their sector name, most
// senior rank first, then by war name.
func (s *Service) Roster(ctx context.Context, q models.RosterQuery) ([]models.RosterEntry, error) {
	ctx, span := tracer.Start(ctx, "directory.Roster")
	defer span.End()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	names := snap.SectorNames()
	needle := foldSearch(q.Search)
	// phone numbers match ignoring punctuation when the search has no letters
	var digits string
	if !strings.ContainsFunc(q.Search, unicode.IsLetter) {
		digits = onlyDigits(q.Search)
	}

	entries := make([]models.RosterEntry, 0, len(snap.Persons))
	for _, p := range snap.Persons {
		if q.SectorID != "" && p.SectorID != q.SectorID {
			continue
		}
		if needle != "" && !matchesRoster(p, needle, digits) {
			continue
		}
		entries = append(entries, models.RosterEntry{
			Person:     p,
			SectorName: models.SectorName(names, p.SectorID),
			Category:   models.CategoryOf(p.Rank),
		})
	}

	slices.SortStableFunc(entries, func(a, b models.RosterEntry) int {
		return cmp.Or(
			cmp.Compare(models.RankSeniority(a.Person.Rank), models.RankSeniority(b.Person.Rank)),
			strings.Compare(foldSearch(a.Person.WarName), foldSearch(b.Person.WarName)),
			strings.Compare(a.Person.ID, b.Person.ID),
		)
	})
	span.SetAttributes(attribute.Int("roster.entries", len(entries)))
	return entries, nil
}

func matchesRoster(p *models.Person, needle, digits string) bool {
	for _, field := range []string{p.WarName, p.FullName, p.Name, p.Rank, p.Function} {
		if strings.Contains(foldSearch(field), needle) {
			return true
		}
	}
	if strings.Contains(p.Phone, needle) {
		return true
	}
	return digits != "" && strings.Contains(onlyDigits(p.Phone), digits)
}

func foldSearch(s string) string {
	return strings.ToLower(models.Fold(strings.TrimSpace(s)))
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
