// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them; services read them.
//
//	actor := requestcontext.Actor(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"

	"organograma/internal/policy"
)

type (
	userIDKey      struct{}
	roleKey        struct{}
	orgKey         struct{}
	tokenIDKey     struct{}
	tokenExpiryKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// -----------------------------------------------------------------------------
// Auth context
// -----------------------------------------------------------------------------

// WithActor injects the authenticated caller.
func WithActor(ctx context.Context, actor policy.Actor) context.Context {
	ctx = context.WithValue(ctx, userIDKey{}, actor.UserID)
	ctx = context.WithValue(ctx, roleKey{}, actor.Role)
	ctx = context.WithValue(ctx, orgKey{}, actor.OrganizationID)
	return ctx
}

// Actor returns the authenticated caller; the zero Actor when unauthenticated.
func Actor(ctx context.Context) policy.Actor {
	return policy.Actor{
		UserID:         UserID(ctx),
		Role:           Role(ctx),
		OrganizationID: stringValue(ctx, orgKey{}),
	}
}

func UserID(ctx context.Context) string {
	return stringValue(ctx, userIDKey{})
}

func Role(ctx context.Context) policy.Role {
	if r, ok := ctx.Value(roleKey{}).(policy.Role); ok {
		return r
	}
	return ""
}

// WithToken records the access token id and expiry so logout can revoke it.
func WithToken(ctx context.Context, jti string, expiresAt time.Time) context.Context {
	ctx = context.WithValue(ctx, tokenIDKey{}, jti)
	return context.WithValue(ctx, tokenExpiryKey{}, expiresAt)
}

func TokenID(ctx context.Context) string {
	return stringValue(ctx, tokenIDKey{})
}

func TokenExpiry(ctx context.Context) time.Time {
	if t, ok := ctx.Value(tokenExpiryKey{}).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	return stringValue(ctx, clientIPKey{})
}

func UserAgent(ctx context.Context) string {
	return stringValue(ctx, userAgentKey{})
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey{})
}

// Now retrieves the request-scoped time, falling back to time.Now() outside
// HTTP requests (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time; tests use it to freeze the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

func stringValue(ctx context.Context, key any) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
