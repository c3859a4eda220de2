package service

import (
	"context"
	"errors"

	"organograma/internal/audit"
	"organograma/internal/auth/models"
	"organograma/internal/policy"
	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/platform/sentinel"
	"organograma/pkg/requestcontext"
)

// SetRole changes userID's role. Administrators cannot demote themselves.
func (s *Service) SetRole(ctx context.Context, userID string, role policy.Role) (*models.User, error) {
	actor := requestcontext.Actor(ctx)
	if !policy.Allows(actor.Role, policy.ManageUsers) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only administrators may assign roles")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be one of: admin, comandante, militar")
	}
	if actor.UserID == userID && role != policy.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeConflict, "administrators cannot change their own role")
	}

	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := u.Role
	if previous == role {
		return u, nil
	}
	u.Role = role
	u.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, u); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update role")
	}

	s.logger.InfoContext(ctx, "user role changed",
		"user_id", u.ID,
		"from", previous,
		"to", role,
		"actor_id", actor.UserID,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{
		Action:  audit.ActionRoleChanged,
		Subject: u.ID,
		Reason:  string(previous) + "->" + string(role),
	})
	return u, nil
}

// EnsureAdmin creates the bootstrap administrator if no account uses email.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	u, err := s.createUser(ctx, email, password, policy.RoleAdmin, models.Profile{DisplayName: "Administrador"})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "bootstrap administrator created", "user_id", u.ID)
	s.emit(ctx, audit.Event{Action: audit.ActionUserRegistered, Subject: u.ID, Reason: "bootstrap"})
	return u, nil
}
