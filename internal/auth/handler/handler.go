package handler

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"organograma/internal/auth/models"
	"organograma/internal/auth/service"
	dirmodels "organograma/internal/directory/models"
	"organograma/internal/photos"
	"organograma/internal/policy"
	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/platform/httputil"
	authmw "organograma/pkg/platform/middleware/auth"
	"organograma/pkg/requestcontext"
)

type Service interface {
	Register(ctx context.Context, cmd service.RegisterCommand) (*models.User, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	Profile(ctx context.Context, userID string) (*service.Account, error)
	Dashboard(ctx context.Context, userID string) (*service.Dashboard, error)
	UpdateProfile(ctx context.Context, userID string, cmd service.UpdateProfileCommand) (*service.Account, error)
	UploadPhoto(ctx context.Context, userID string, r io.Reader) (*dirmodels.Person, error)
	SetRole(ctx context.Context, userID string, role policy.Role) (*models.User, error)
}

// Handler serves sign-up, sign-in and the signed-in user's own account.
type Handler struct {
	service       Service
	logger        *slog.Logger
	maxPhotoBytes int64
}

type Option func(*Handler)

// WithMaxPhotoBytes bounds the body of a photo upload.
func WithMaxPhotoBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxPhotoBytes = n
		}
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger, maxPhotoBytes: photos.DefaultMaxBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterPublic mounts the unauthenticated endpoints. optionalAuth lets an
// administrator's token through on sign-up so they can assign roles.
func (h *Handler) RegisterPublic(r chi.Router, optionalAuth func(http.Handler) http.Handler) {
	r.With(optionalAuth).Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
}

// Register mounts the endpoints that need RequireAuth upstream.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/api/me", h.HandleProfile)
	r.Get("/api/dashboard", h.HandleDashboard)

	editOwn := authmw.RequireCapability(policy.EditOwnProfile, h.logger)
	r.With(editOwn).Put("/api/me", h.HandleUpdateProfile)
	r.With(editOwn).Put("/api/me/photo", h.HandleUploadPhoto)

	r.With(authmw.RequireCapability(policy.ManageUsers, h.logger)).Put("/api/users/{id}/role", h.HandleSetRole)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, args ...any) {
	attrs := append([]any{
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx),
		"error", err,
	}, args...)
	h.logger.WarnContext(ctx, msg, attrs...)
	httputil.WriteError(w, err)
}

// HandleRegister handles POST /auth/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	u, err := h.service.Register(ctx, req.ToCommand())
	if err != nil {
		h.fail(ctx, w, "failed to register user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, u)
}

// HandleLogin handles POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.fail(ctx, w, "login rejected", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleLogout handles POST /auth/logout. The presented token is revoked.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Logout(ctx, requestcontext.TokenID(ctx), requestcontext.TokenExpiry(ctx)); err != nil {
		h.fail(ctx, w, "failed to log out", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleProfile handles GET /api/me.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, err := h.service.Profile(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to load profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

// HandleDashboard handles GET /api/dashboard.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.service.Dashboard(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to load dashboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

// HandleUpdateProfile handles PUT /api/me.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpdateProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	acct, err := h.service.UpdateProfile(ctx, requestcontext.UserID(ctx), req.ToCommand())
	if err != nil {
		h.fail(ctx, w, "failed to update profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

// HandleUploadPhoto handles PUT /api/me/photo. The image is either the raw
// body or the "file" part of a multipart form.
func (h *Handler) HandleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// multipart framing needs some headroom over the image itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxPhotoBytes+64<<10)

	body := io.Reader(r.Body)
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			h.fail(ctx, w, "invalid photo upload", dErrors.Wrap(err, dErrors.CodeBadRequest, "multipart field \"file\" is required"))
			return
		}
		defer file.Close()
		body = file
	}

	p, err := h.service.UploadPhoto(ctx, requestcontext.UserID(ctx), body)
	if err != nil {
		h.fail(ctx, w, "failed to upload photo", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleSetRole handles PUT /api/users/{id}/role.
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id := chi.URLParam(r, "id")

	req, ok := httputil.DecodeAndPrepare[SetRoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	u, err := h.service.SetRole(ctx, id, policy.Role(req.Role))
	if err != nil {
		h.fail(ctx, w, "failed to set role", err, "target_user_id", id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}
