package service

import (
	"context"
	"io"

	"organograma/internal/audit"
	"organograma/internal/auth/models"
	dirmodels "organograma/internal/directory/models"
	dirservice "organograma/internal/directory/service"
	"organograma/internal/photos"
	"organograma/internal/policy"
	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/requestcontext"
)

// Account is a user together with their linked personnel record.
type Account struct {
	User       *models.User      `json:"user"`
	Person     *dirmodels.Person `json:"person,omitempty"`
	SectorName string            `json:"sector_name,omitempty"`
}

// Dashboard is the landing page of a signed-in user.
type Dashboard struct {
	Account
	Capabilities []policy.Capability `json:"capabilities"`
}

// Profile returns userID's account. A linked person that no longer exists is
// left out rather than failing the call.
func (s *Service) Profile(ctx context.Context, userID string) (*Account, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	acct := &Account{User: u}
	if u.PersonID == "" || s.directory == nil {
		return acct, nil
	}

	person, err := s.directory.GetPerson(ctx, u.PersonID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.WarnContext(ctx, "linked person not found",
				"user_id", u.ID,
				"person_id", u.PersonID,
				"request_id", requestcontext.RequestID(ctx),
			)
			return acct, nil
		}
		return nil, err
	}
	acct.Person = person
	acct.SectorName = dirmodels.NoSectorName
	if person.SectorID != "" {
		if sector, err := s.directory.GetSector(ctx, person.SectorID); err == nil {
			acct.SectorName = sector.Name
		}
	}
	return acct, nil
}

func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	acct, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Account:      *acct,
		Capabilities: policy.Capabilities(acct.User.Role),
	}, nil
}

// UpdateProfileCommand edits the caller's own account. Contact, when set,
// is written to the linked person.
type UpdateProfileCommand struct {
	DisplayName string
	Rank        string
	Contact     *dirservice.ContactFields
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, cmd UpdateProfileCommand) (*Account, error) {
	if !policy.Allows(requestcontext.Role(ctx), policy.EditOwnProfile) {
		return nil, dErrors.New(dErrors.CodeForbidden, "profile editing not allowed")
	}
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cmd.Contact != nil {
		if u.PersonID == "" || s.directory == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "account is not linked to a person")
		}
		if _, err := s.directory.UpdateContact(ctx, u.PersonID, *cmd.Contact); err != nil {
			return nil, err
		}
	}

	p := u.Profile()
	p.DisplayName = cmd.DisplayName
	p.Rank = cmd.Rank
	u.ApplyProfile(p, requestcontext.Now(ctx))
	if err := s.users.Update(ctx, u); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
	}

	s.emit(ctx, audit.Event{Action: audit.ActionProfileUpdated, Subject: u.ID})
	return s.Profile(ctx, u.ID)
}

// UploadPhoto stores an image as the picture of userID's linked person.
func (s *Service) UploadPhoto(ctx context.Context, userID string, r io.Reader) (*dirmodels.Person, error) {
	if s.photos == nil || s.directory == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "photo storage not configured")
	}
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.PersonID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "account is not linked to a person")
	}

	upload, err := photos.Prepare(r, s.maxPhotoBytes)
	if err != nil {
		return nil, err
	}
	key := photos.Key(u.PersonID, upload.Extension)
	url, err := s.photos.Put(ctx, key, upload.Reader(), int64(len(upload.Data)), upload.ContentType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store photo")
	}

	person, err := s.directory.SetPhoto(ctx, u.PersonID, url)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "photo uploaded",
		"user_id", u.ID,
		"person_id", u.PersonID,
		"bytes", len(upload.Data),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{Action: audit.ActionPhotoUploaded, Subject: u.PersonID})
	return person, nil
}
