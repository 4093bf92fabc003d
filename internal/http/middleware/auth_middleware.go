package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/http/response"
	"github.com/mvanbree/palette/internal/observability"
	"github.com/mvanbree/palette/internal/security"
	"github.com/mvanbree/palette/internal/service"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Gate runs a named verification strategy and attaches the resulting
// identity to the request context. Per-strategy failure handling:
// access-token soft-fails so public routes keep working, refresh-token
// fails hard with cleared cookies, local-credentials maps to 400/401.
type Gate struct {
	registry     *service.StrategyRegistry
	cookieSecure bool
	loginPath    string
}

func NewGate(registry *service.StrategyRegistry, cookieSecure bool, loginPath string) *Gate {
	return &Gate{registry: registry, cookieSecure: cookieSecure, loginPath: loginPath}
}

// Authenticate resolves the strategy once, at router construction. An
// unknown name is a configuration error and panics before the server
// accepts traffic.
func (g *Gate) Authenticate(name service.StrategyName) func(http.Handler) http.Handler {
	strategy, err := g.registry.Get(name)
	if err != nil {
		panic(fmt.Sprintf("authentication gate: %v", err))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := strategy.Authenticate(r)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
				return
			}
			switch name {
			case service.StrategyAccessToken:
				if !isAuthFailure(err) {
					response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
					return
				}
				observability.RecordAccessTokenValidation(r.Context(), "invalid", "request")
				next.ServeHTTP(w, r)
			case service.StrategyRefreshToken:
				if !isAuthFailure(err) {
					response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
					return
				}
				if errors.Is(err, service.ErrReplayDetected) {
					observability.Audit(r, "auth.refresh.replay_detected")
				}
				security.ClearAuthCookies(w, g.cookieSecure)
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			case service.StrategyLocalCredentials:
				switch {
				case errors.Is(err, service.ErrMissingCredentials):
					response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "username and password are required", nil)
				case errors.Is(err, service.ErrInvalidCredentials):
					observability.RecordAuthLogin("invalid_credentials")
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials", nil)
				case errors.Is(err, service.ErrTooManyAttempts):
					observability.RecordAuthLogin("throttled")
					response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many failed attempts", nil)
				default:
					response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
				}
			default:
				response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
			}
		})
	}
}

// RequireAuth blocks requests with no attached identity: 401 with cleared
// cookies for API routes.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			security.ClearAuthCookies(w, g.cookieSecure)
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthWeb is the browser variant: unauthenticated requests are
// redirected to the login page with a return URL instead of a bare 401.
// Paths listed in public stay reachable without an identity.
func (g *Gate) RequireAuthWeb(public ...string) func(http.Handler) http.Handler {
	publicSet := make(map[string]struct{}, len(public))
	for _, p := range public {
		publicSet[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicSet[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := IdentityFromContext(r.Context()); !ok {
				security.ClearAuthCookies(w, g.cookieSecure)
				http.Redirect(w, r, g.loginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withIdentity(ctx context.Context, identity *service.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFromContext(ctx context.Context) (*service.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*service.Identity)
	return id, ok
}

// CurrentUser must only be called behind RequireAuth. Calling it on an
// unauthenticated request is a programming error, not a user condition;
// the panic surfaces as a 500 through chi's Recoverer instead of silently
// returning an empty identity.
func CurrentUser(ctx context.Context) *domain.User {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.User == nil {
		panic("CurrentUser called without authenticated identity")
	}
	return identity.User
}

func isAuthFailure(err error) bool {
	return errors.Is(err, service.ErrUnauthenticated) ||
		errors.Is(err, service.ErrReplayDetected) ||
		errors.Is(err, service.ErrInvalidCredentials) ||
		errors.Is(err, service.ErrMissingCredentials)
}
