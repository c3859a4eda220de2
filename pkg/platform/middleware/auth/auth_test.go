package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"organograma/internal/policy"
	"organograma/pkg/requestcontext"
)

type stubValidator map[string]*JWTClaims

func (s stubValidator) ValidateToken(token string) (*JWTClaims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

type stubRevocations map[string]bool

func (s stubRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return s[jti], nil
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := stubValidator{
		"good":    {UserID: "u-1", Role: "comandante", OrganizationID: "om-1", JTI: "j-1"},
		"revoked": {UserID: "u-2", Role: "militar", JTI: "j-2"},
		"badrole": {UserID: "u-3", Role: "general", JTI: "j-3"},
	}
	var actor policy.Actor
	h := RequireAuth(validator, stubRevocations{"j-2": true}, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = requestcontext.Actor(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"revoked token", "Bearer revoked", http.StatusUnauthorized},
		{"unknown role", "Bearer badrole", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, policy.Actor{UserID: "u-1", Role: policy.RoleComandante, OrganizationID: "om-1"}, actor)
}

func TestRequireCapability(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RequireCapability(policy.ManageSectors, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for role, want := range map[policy.Role]int{
		policy.RoleAdmin:      http.StatusOK,
		policy.RoleComandante: http.StatusForbidden,
		policy.RoleMilitar:    http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(requestcontext.WithActor(req.Context(), policy.Actor{UserID: "u", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestOptionalAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := stubValidator{"good": {UserID: "u-1", Role: "admin", JTI: "j-1"}}

	var actor policy.Actor
	h := OptionalAuth(validator, nil, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = requestcontext.Actor(r.Context())
	}))

	t.Run("anonymous passes through", func(t *testing.T) {
		actor = policy.Actor{UserID: "stale"}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, policy.Actor{}, actor)
	})

	t.Run("bad token is still rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token sets the actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, policy.RoleAdmin, actor.Role)
	})
}
