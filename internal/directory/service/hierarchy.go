package service

import (
	"context"
	"errors"

	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/platform/sentinel"
)

// checkSuperior verifies that superiorID exists and that making it the
// superior of personID does not close a loop. It walks up from superiorID;
// reaching personID means the new edge would create a cycle.
func (s *Service) checkSuperior(ctx context.Context, personID, superiorID string) error {
	if superiorID == "" {
		return nil
	}
	if superiorID == personID {
		return dErrors.New(dErrors.CodeInvariantViolation, "a person cannot be their own superior")
	}
	return walkChain(superiorID, personID, "superior", func(id string) (string, error) {
		p, err := s.persons.FindPerson(ctx, id)
		if err != nil {
			return "", err
		}
		return p.SuperiorID, nil
	})
}

// checkParentSector applies the same rule to sector nesting.
func (s *Service) checkParentSector(ctx context.Context, sectorID, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == sectorID {
		return dErrors.New(dErrors.CodeInvariantViolation, "a sector cannot be its own parent")
	}
	return walkChain(parentID, sectorID, "parent sector", func(id string) (string, error) {
		sec, err := s.sectors.FindSector(ctx, id)
		if err != nil {
			return "", err
		}
		return sec.ParentID, nil
	})
}

// walkChain follows next() from start. The start must exist; a dangling link
// further up ends the walk, as does an existing loop that target is not on.
func walkChain(start, target, label string, next func(id string) (string, error)) error {
	seen := map[string]struct{}{}
	cur := start
	for cur != "" {
		if cur == target {
			return dErrors.New(dErrors.CodeInvariantViolation, label+" chain would form a cycle")
		}
		if _, ok := seen[cur]; ok {
			return nil
		}
		seen[cur] = struct{}{}

		up, err := next(cur)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				if cur == start {
					return dErrors.New(dErrors.CodeValidation, label+" not found")
				}
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check "+label)
		}
		cur = up
	}
	return nil
}
