package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"organograma/internal/audit"
	"organograma/internal/auth/device"
	"organograma/internal/auth/models"
	jwttoken "organograma/internal/jwt_token"
	"organograma/internal/policy"
	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/platform/sentinel"
	"organograma/pkg/requestcontext"
)

const defaultBcryptCost = bcrypt.DefaultCost

var errInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")

// RegisterCommand creates an account. An empty Role means militar.
type RegisterCommand struct {
	Email    string
	Password string
	Role     policy.Role
	Profile  models.Profile
}

// Register creates an account. Only callers allowed to manage users may pick
// a role other than militar.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*models.User, error) {
	role := cmd.Role
	if role == "" {
		role = policy.RoleMilitar
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be one of: admin, comandante, militar")
	}
	if role != policy.RoleMilitar && !policy.Allows(requestcontext.Role(ctx), policy.ManageUsers) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only administrators may assign roles")
	}
	if cmd.Password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "password is required")
	}

	profile, err := s.linkPerson(ctx, cmd.Profile)
	if err != nil {
		return nil, err
	}

	u, err := s.createUser(ctx, cmd.Email, cmd.Password, role, profile)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", u.ID,
		"role", u.Role,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{Action: audit.ActionUserRegistered, Subject: u.ID})
	return u, nil
}

func (s *Service) createUser(ctx context.Context, email, password string, role policy.Role, profile models.Profile) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "password cannot be used")
	}
	u, err := models.NewUser(uuid.NewString(), email, string(hash), role, profile, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	return u, nil
}

// linkPerson checks the referenced person and inherits its organization and
// sector when the profile leaves them empty.
func (s *Service) linkPerson(ctx context.Context, p models.Profile) (models.Profile, error) {
	if p.PersonID == "" || s.directory == nil {
		return p, nil
	}
	person, err := s.directory.GetPerson(ctx, p.PersonID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return p, dErrors.New(dErrors.CodeValidation, "person not found")
		}
		return p, err
	}
	if p.OrganizationID == "" {
		p.OrganizationID = person.OrganizationID
	}
	if p.SectorID == "" {
		p.SectorID = person.SectorID
	}
	if p.Rank == "" {
		p.Rank = person.Rank
	}
	return p, nil
}

// LoginResult is an issued access token.
type LoginResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

var (
	timingHashOnce sync.Once
	timingHash     []byte
)

// burnCompare spends a bcrypt comparison so unknown emails take as long as
// wrong passwords.
func (s *Service) burnCompare(password string) {
	timingHashOnce.Do(func() {
		timingHash, _ = bcrypt.GenerateFromPassword([]byte("organograma"), s.bcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(timingHash, []byte(password))
}

// Login checks the password and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	requestID := requestcontext.RequestID(ctx)
	client := device.ParseUserAgent(requestcontext.UserAgent(ctx))
	ip := requestcontext.ClientIP(ctx)

	if s.lockout != nil {
		if err := s.lockout.Check(ctx, email, ip); err != nil {
			if dErrors.HasCode(err, dErrors.CodeTooManyRequests) {
				s.loginFailed(ctx, "", "locked out", client)
			}
			return nil, err
		}
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
		}
		s.burnCompare(password)
		s.loginFailed(ctx, "", "unknown email", client)
		s.countFailure(ctx, email, "")
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.loginFailed(ctx, u.ID, "wrong password", client)
		s.countFailure(ctx, email, u.ID)
		return nil, errInvalidCredentials
	}

	issued, err := s.tokens.GenerateAccessToken(jwttoken.Subject{
		UserID:         u.ID,
		Role:           string(u.Role),
		OrganizationID: u.OrganizationID,
	}, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	if s.lockout != nil {
		if err := s.lockout.Clear(ctx, email, ip); err != nil {
			s.logger.WarnContext(ctx, "failed to clear login failures", "user_id", u.ID, "request_id", requestID, "error", err)
		}
	}

	loginAttempts.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "user logged in",
		"user_id", u.ID,
		"role", u.Role,
		"client", client,
		"client_ip", ip,
		"request_id", requestID,
	)
	s.emit(ctx, audit.Event{Action: audit.ActionLoginSucceeded, ActorID: u.ID, Subject: u.ID, Reason: client})

	return &LoginResult{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresAt:   issued.ExpiresAt,
		User:        u,
	}, nil
}

func (s *Service) loginFailed(ctx context.Context, userID, reason, client string) {
	loginAttempts.WithLabelValues("failure").Inc()
	s.logger.WarnContext(ctx, "login failed",
		"user_id", userID,
		"reason", reason,
		"client", client,
		"client_ip", requestcontext.ClientIP(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{Action: audit.ActionLoginFailed, Subject: userID, Reason: reason})
}

// countFailure feeds the lockout. Its errors never change the login outcome.
func (s *Service) countFailure(ctx context.Context, email, userID string) {
	if s.lockout == nil {
		return
	}
	locked, err := s.lockout.RecordFailure(ctx, email, requestcontext.ClientIP(ctx))
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	if locked {
		s.emit(ctx, audit.Event{Action: audit.ActionLoginLocked, Subject: userID, Reason: "too many failed logins"})
	}
}

// Logout revokes the token jti until it would have expired.
func (s *Service) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return dErrors.New(dErrors.CodeBadRequest, "token id is required")
	}
	ttl := expiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.RevokeToken(ctx, jti, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	s.emit(ctx, audit.Event{Action: audit.ActionLogout, Subject: requestcontext.UserID(ctx)})
	return nil
}
