package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore,RevocationList,TokenIssuer,Directory,PhotoStore,AuditPublisher

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"organograma/internal/audit"
	"organograma/internal/auth/lockout"
	"organograma/internal/auth/models"
	"organograma/internal/auth/service/mocks"
	lockoutstore "organograma/internal/auth/store/lockout"
	"organograma/internal/auth/store/revocation"
	"organograma/internal/auth/store/user"
	dirmodels "organograma/internal/directory/models"
	dirservice "organograma/internal/directory/service"
	dirstore "organograma/internal/directory/store"
	jwttoken "organograma/internal/jwt_token"
	"organograma/internal/photos"
	"organograma/internal/policy"
	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/requestcontext"
)

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type AuthServiceSuite struct {
	suite.Suite
	users     *user.InMemoryUserStore
	trl       *revocation.InMemoryTRL
	jwt       *jwttoken.JWTService
	audit     *audit.MemoryStore
	directory *dirservice.Service
	photos    *photos.InMemory
	service   *Service
	ctx       context.Context
	adminCtx  context.Context
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.users = user.New()
	s.trl = revocation.NewInMemoryTRL(revocation.WithClock(func() time.Time { return fixedNow }))
	s.jwt = jwttoken.NewJWTService("test-key", "organograma", "organograma-web")
	s.audit = audit.NewMemoryStore()
	publisher := audit.NewPublisher(s.audit)
	dir := dirstore.NewInMemory()
	s.directory = dirservice.New(dir, dir, dir)
	s.photos = photos.NewInMemory("")
	s.service = New(s.users, s.trl, s.jwt,
		WithAuditPublisher(publisher),
		WithDirectory(s.directory),
		WithPhotoStore(s.photos, photos.DefaultMaxBytes),
		WithBcryptCost(bcrypt.MinCost),
	)

	s.ctx = requestcontext.WithTime(context.Background(), fixedNow)
	s.adminCtx = requestcontext.WithActor(s.ctx, policy.Actor{UserID: "admin-0", Role: policy.RoleAdmin})
}

func (s *AuthServiceSuite) register(email string, profile models.Profile) *models.User {
	u, err := s.service.Register(s.ctx, RegisterCommand{Email: email, Password: "s3cret-pass", Profile: profile})
	s.Require().NoError(err)
	return u
}

func (s *AuthServiceSuite) linkedPerson() (*dirmodels.Person, *dirmodels.Sector) {
	sector, err := s.directory.CreateSector(s.adminCtx, dirservice.SectorFields{Name: "Comunicações"})
	s.Require().NoError(err)
	p, err := s.directory.CreatePerson(s.adminCtx, dirmodels.PersonFields{
		Name: "Joao Silva", WarName: "Silva", Rank: "3º Sgt", SectorID: sector.ID,
	})
	s.Require().NoError(err)
	return p, sector
}

func (s *AuthServiceSuite) actions() []audit.Action {
	events, err := s.audit.List(s.ctx)
	s.Require().NoError(err)
	out := make([]audit.Action, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

func (s *AuthServiceSuite) TestRegister() {
	s.Run("defaults to militar and hashes the password", func() {
		u := s.register("  Soldado@EB.mil.br ", models.Profile{DisplayName: "Sd Souza"})

		s.Equal("soldado@eb.mil.br", u.Email)
		s.Equal(policy.RoleMilitar, u.Role)
		s.NotEqual("s3cret-pass", u.PasswordHash)
		s.NoError(bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")))
		s.Equal(fixedNow, u.CreatedAt)
		s.Contains(s.actions(), audit.ActionUserRegistered)
	})

	s.Run("duplicate email is a conflict", func() {
		_, err := s.service.Register(s.ctx, RegisterCommand{Email: "soldado@eb.mil.br", Password: "another-pass"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("anonymous callers cannot pick a role", func() {
		_, err := s.service.Register(s.ctx, RegisterCommand{Email: "cmt@eb.mil.br", Password: "s3cret-pass", Role: policy.RoleComandante})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("administrators can pick a role", func() {
		u, err := s.service.Register(s.adminCtx, RegisterCommand{Email: "cmt@eb.mil.br", Password: "s3cret-pass", Role: policy.RoleComandante})
		s.Require().NoError(err)
		s.Equal(policy.RoleComandante, u.Role)
	})

	s.Run("unknown role", func() {
		_, err := s.service.Register(s.adminCtx, RegisterCommand{Email: "x@eb.mil.br", Password: "s3cret-pass", Role: "general"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *AuthServiceSuite) TestRegisterLinksPerson() {
	person, sector := s.linkedPerson()

	u := s.register("silva@eb.mil.br", models.Profile{PersonID: person.ID})
	s.Equal(sector.ID, u.SectorID)
	s.Equal("3º Sgt", u.Rank)

	_, err := s.service.Register(s.ctx, RegisterCommand{
		Email: "ghost@eb.mil.br", Password: "s3cret-pass",
		Profile: models.Profile{PersonID: "00000000-0000-0000-0000-000000000000"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AuthServiceSuite) TestLogin() {
	registered := s.register("silva@eb.mil.br", models.Profile{})

	s.Run("issues a token carrying the role", func() {
		res, err := s.service.Login(s.ctx, "SILVA@eb.mil.br", "s3cret-pass")
		s.Require().NoError(err)
		s.Equal("Bearer", res.TokenType)

		claims, err := s.jwt.ValidateToken(res.AccessToken)
		s.Require().NoError(err)
		s.Equal(registered.ID, claims.UserID)
		s.Equal("militar", claims.Role)
		s.NotEmpty(claims.ID)
	})

	s.Run("wrong password", func() {
		_, err := s.service.Login(s.ctx, "silva@eb.mil.br", "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown email reads the same as a wrong password", func() {
		_, err := s.service.Login(s.ctx, "ghost@eb.mil.br", "s3cret-pass")
		s.Equal("invalid email or password", dErrors.MessageOf(err))
	})

	s.Contains(s.actions(), audit.ActionLoginSucceeded)
	s.Contains(s.actions(), audit.ActionLoginFailed)
}

func (s *AuthServiceSuite) TestLoginLockout() {
	locks, err := lockout.New(lockoutstore.NewInMemory(), lockout.WithConfig(lockout.Config{
		MaxAttempts:  3,
		Window:       15 * time.Minute,
		LockDuration: 10 * time.Minute,
	}))
	s.Require().NoError(err)
	s.service = New(s.users, s.trl, s.jwt,
		WithAuditPublisher(audit.NewPublisher(s.audit)),
		WithLockout(locks),
		WithBcryptCost(bcrypt.MinCost),
	)
	s.register("silva@eb.mil.br", models.Profile{})
	ctx := requestcontext.WithClientMetadata(s.ctx, "10.0.0.7", "")

	s.Run("a success clears earlier failures", func() {
		for range 2 {
			_, err := s.service.Login(ctx, "silva@eb.mil.br", "nope")
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		}
		_, err := s.service.Login(ctx, "silva@eb.mil.br", "s3cret-pass")
		s.Require().NoError(err)
		_, err = s.service.Login(ctx, "silva@eb.mil.br", "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("reaching the limit blocks even the right password", func() {
		for range 2 {
			_, _ = s.service.Login(ctx, "silva@eb.mil.br", "nope")
		}
		_, err := s.service.Login(ctx, "silva@eb.mil.br", "s3cret-pass")
		s.True(dErrors.HasCode(err, dErrors.CodeTooManyRequests))
		s.Contains(s.actions(), audit.ActionLoginLocked)
	})

	s.Run("another address is not locked", func() {
		other := requestcontext.WithClientMetadata(s.ctx, "10.0.0.8", "")
		_, err := s.service.Login(other, "silva@eb.mil.br", "s3cret-pass")
		s.NoError(err)
	})

	s.Run("the lock lifts after its duration", func() {
		later := requestcontext.WithTime(ctx, fixedNow.Add(11*time.Minute))
		_, err := s.service.Login(later, "silva@eb.mil.br", "s3cret-pass")
		s.NoError(err)
	})
}

func (s *AuthServiceSuite) TestLogout() {
	s.Run("revokes the token until it expires", func() {
		s.Require().NoError(s.service.Logout(s.ctx, "jti-1", fixedNow.Add(time.Hour)))

		revoked, err := s.trl.IsRevoked(s.ctx, "jti-1")
		s.Require().NoError(err)
		s.True(revoked)
	})

	s.Run("already expired token is a no-op", func() {
		s.Require().NoError(s.service.Logout(s.ctx, "jti-2", fixedNow.Add(-time.Minute)))

		revoked, err := s.trl.IsRevoked(s.ctx, "jti-2")
		s.Require().NoError(err)
		s.False(revoked)
	})

	s.Run("missing token id", func() {
		err := s.service.Logout(s.ctx, "", fixedNow.Add(time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *AuthServiceSuite) TestDashboard() {
	person, _ := s.linkedPerson()
	u := s.register("silva@eb.mil.br", models.Profile{PersonID: person.ID})

	d, err := s.service.Dashboard(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.ID, d.User.ID)
	s.Equal("Silva", d.Person.WarName)
	s.Equal("Comunicações", d.SectorName)
	s.ElementsMatch(policy.Capabilities(policy.RoleMilitar), d.Capabilities)
	s.NotContains(d.Capabilities, policy.ManagePersonnel)

	_, err = s.service.Dashboard(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AuthServiceSuite) TestUpdateProfile() {
	person, _ := s.linkedPerson()
	linked := s.register("silva@eb.mil.br", models.Profile{PersonID: person.ID})
	unlinked := s.register("souza@eb.mil.br", models.Profile{})
	militarCtx := requestcontext.WithActor(s.ctx, policy.Actor{UserID: linked.ID, Role: policy.RoleMilitar})

	s.Run("updates account and linked person contact", func() {
		acct, err := s.service.UpdateProfile(militarCtx, linked.ID, UpdateProfileCommand{
			DisplayName: "Sgt Silva",
			Rank:        "2º Sgt",
			Contact:     &dirservice.ContactFields{Phone: "(92) 98888-7777", Email: "silva@eb.mil.br"},
		})
		s.Require().NoError(err)
		s.Equal("Sgt Silva", acct.User.DisplayName)
		s.Equal("2º Sgt", acct.User.Rank)
		s.Equal("(92) 98888-7777", acct.Person.Phone)
		s.Equal("3º Sgt", acct.Person.Rank, "rank of the personnel record is not user editable")
	})

	s.Run("contact requires a linked person", func() {
		_, err := s.service.UpdateProfile(militarCtx, unlinked.ID, UpdateProfileCommand{
			DisplayName: "Sd Souza",
			Contact:     &dirservice.ContactFields{Phone: "1"},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("anonymous context is rejected", func() {
		_, err := s.service.UpdateProfile(s.ctx, linked.ID, UpdateProfileCommand{DisplayName: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *AuthServiceSuite) TestUploadPhoto() {
	person, _ := s.linkedPerson()
	u := s.register("silva@eb.mil.br", models.Profile{PersonID: person.ID})

	updated, err := s.service.UploadPhoto(s.ctx, u.ID, bytes.NewReader(pngHeader))
	s.Require().NoError(err)
	s.Equal("/photos/fotos_perfil/"+person.ID+".png", updated.PhotoURL)

	obj, err := s.photos.Get(s.ctx, photos.Key(person.ID, "png"))
	s.Require().NoError(err)
	s.Equal("image/png", obj.ContentType)

	_, err = s.service.UploadPhoto(s.ctx, u.ID, bytes.NewReader([]byte("not an image")))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AuthServiceSuite) TestSetRole() {
	target := s.register("silva@eb.mil.br", models.Profile{})
	admin, err := s.service.EnsureAdmin(s.ctx, "admin@eb.mil.br", "admin-pass")
	s.Require().NoError(err)
	ctx := requestcontext.WithActor(s.ctx, admin.Actor())

	s.Run("admin promotes a user", func() {
		u, err := s.service.SetRole(ctx, target.ID, policy.RoleComandante)
		s.Require().NoError(err)
		s.Equal(policy.RoleComandante, u.Role)

		stored, err := s.users.FindByID(s.ctx, target.ID)
		s.Require().NoError(err)
		s.Equal(policy.RoleComandante, stored.Role)
		s.Contains(s.actions(), audit.ActionRoleChanged)
	})

	s.Run("admin cannot demote themselves", func() {
		_, err := s.service.SetRole(ctx, admin.ID, policy.RoleMilitar)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("comandante cannot assign roles", func() {
		cmtCtx := requestcontext.WithActor(s.ctx, policy.Actor{UserID: target.ID, Role: policy.RoleComandante})
		_, err := s.service.SetRole(cmtCtx, target.ID, policy.RoleAdmin)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *AuthServiceSuite) TestEnsureAdminIsIdempotent() {
	first, err := s.service.EnsureAdmin(s.ctx, "admin@eb.mil.br", "admin-pass")
	s.Require().NoError(err)
	s.Equal(policy.RoleAdmin, first.Role)

	second, err := s.service.EnsureAdmin(s.ctx, "ADMIN@eb.mil.br", "other")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)

	_, err = s.service.Login(s.ctx, "admin@eb.mil.br", "admin-pass")
	s.NoError(err)
}

func TestServiceWithMocks(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), fixedNow)

	t.Run("store failure during login is internal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		users := mocks.NewMockUserStore(ctrl)
		users.EXPECT().FindByEmail(gomock.Any(), "a@b.c").Return(nil, errors.New("connection reset"))

		svc := New(users, mocks.NewMockRevocationList(ctrl), mocks.NewMockTokenIssuer(ctrl))
		_, err := svc.Login(ctx, "a@b.c", "pw")
		if !dErrors.HasCode(err, dErrors.CodeInternal) {
			t.Fatalf("expected internal error, got %v", err)
		}
	})

	t.Run("token issuance failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
		if err != nil {
			t.Fatal(err)
		}
		users := mocks.NewMockUserStore(ctrl)
		users.EXPECT().FindByEmail(gomock.Any(), "a@b.c").
			Return(&models.User{ID: "u-1", Email: "a@b.c", PasswordHash: string(hash), Role: policy.RoleMilitar}, nil)
		tokens := mocks.NewMockTokenIssuer(ctrl)
		tokens.EXPECT().GenerateAccessToken(jwttoken.Subject{UserID: "u-1", Role: "militar"}, 2*time.Hour).
			Return(nil, errors.New("signing failed"))

		svc := New(users, mocks.NewMockRevocationList(ctrl), tokens, WithTokenTTL(2*time.Hour))
		_, err = svc.Login(ctx, "a@b.c", "pw")
		if !dErrors.HasCode(err, dErrors.CodeInternal) {
			t.Fatalf("expected internal error, got %v", err)
		}
	})

	t.Run("audit failure does not fail logout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		trl := mocks.NewMockRevocationList(ctrl)
		trl.EXPECT().RevokeToken(gomock.Any(), "jti-1", time.Hour).Return(nil)
		publisher := mocks.NewMockAuditPublisher(ctrl)
		publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("kafka down"))

		svc := New(mocks.NewMockUserStore(ctrl), trl, mocks.NewMockTokenIssuer(ctrl), WithAuditPublisher(publisher))
		if err := svc.Logout(ctx, "jti-1", fixedNow.Add(time.Hour)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
