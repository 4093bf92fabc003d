package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/repository"
	"github.com/mvanbree/palette/internal/security"
)

type StrategyName string

const (
	StrategyLocalCredentials StrategyName = "local-credentials"
	StrategyAccessToken      StrategyName = "access-token"
	StrategyRefreshToken     StrategyName = "refresh-token"
)

var (
	// ErrUnauthenticated is the collapsed outcome for every token
	// verification failure. The distinct reasons exist only in server logs.
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrTooManyAttempts    = errors.New("too many failed attempts")
	ErrUnknownStrategy    = errors.New("unknown authentication strategy")
)

// Identity is the verified principal a strategy attaches to the request.
type Identity struct {
	User   *domain.User
	Claims *security.Claims
}

type Strategy interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// StrategyRegistry maps the closed set of strategy names to their
// implementations. Resolution happens once at startup; an unknown name is a
// configuration error, never a runtime condition.
type StrategyRegistry struct {
	strategies map[StrategyName]Strategy
}

func NewStrategyRegistry(verifier *CredentialVerifier, guard AuthAbuseGuard, jwtMgr *security.JWTManager, users repository.UserRepository, families repository.FamilyRepository, tokens *TokenService) *StrategyRegistry {
	if guard == nil {
		guard = NewNoopAuthAbuseGuard()
	}
	return &StrategyRegistry{
		strategies: map[StrategyName]Strategy{
			StrategyLocalCredentials: &localCredentialsStrategy{verifier: verifier, guard: guard},
			StrategyAccessToken:      &accessTokenStrategy{jwtMgr: jwtMgr, users: users},
			StrategyRefreshToken:     &refreshTokenStrategy{jwtMgr: jwtMgr, users: users, families: families, tokens: tokens},
		},
	}
}

func (reg *StrategyRegistry) Get(name StrategyName) (Strategy, error) {
	s, ok := reg.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s, nil
}

type localCredentialsStrategy struct {
	verifier *CredentialVerifier
	guard    AuthAbuseGuard
}

type localCredentialsInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *localCredentialsStrategy) Authenticate(r *http.Request) (*Identity, error) {
	var in localCredentialsInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return nil, ErrMissingCredentials
	}
	if in.Username == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}
	ip := clientIP(r)
	cooldown, err := s.guard.Check(r.Context(), AuthAbuseScopeLogin, in.Username, ip)
	if err != nil {
		slog.WarnContext(r.Context(), "auth abuse guard unavailable", "error", err)
	} else if cooldown > 0 {
		return nil, ErrTooManyAttempts
	}
	user, err := s.verifier.Verify(in.Username, in.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			if _, gerr := s.guard.RegisterFailure(r.Context(), AuthAbuseScopeLogin, in.Username, ip); gerr != nil {
				slog.WarnContext(r.Context(), "auth abuse guard unavailable", "error", gerr)
			}
		}
		return nil, err
	}
	if err := s.guard.Reset(r.Context(), AuthAbuseScopeLogin, in.Username, ip); err != nil {
		slog.WarnContext(r.Context(), "auth abuse guard unavailable", "error", err)
	}
	return &Identity{User: user}, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type accessTokenStrategy struct {
	jwtMgr *security.JWTManager
	users  repository.UserRepository
}

func (s *accessTokenStrategy) Authenticate(r *http.Request) (*Identity, error) {
	raw := security.TokenFromRequest(r, security.AccessTokenCookie)
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.jwtMgr.ParseAccessToken(raw)
	if err != nil {
		slog.DebugContext(r.Context(), "access token rejected", "reason", err)
		return nil, ErrUnauthenticated
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	// A version mismatch means the token predates a global revocation.
	// Soft-fail only; revocation is triggered by logout or refresh replay.
	if claims.TokenVersion != user.TokenVersion {
		slog.DebugContext(r.Context(), "access token rejected", "reason", "token version mismatch")
		return nil, ErrUnauthenticated
	}
	return &Identity{User: user, Claims: claims}, nil
}

type refreshTokenStrategy struct {
	jwtMgr   *security.JWTManager
	users    repository.UserRepository
	families repository.FamilyRepository
	tokens   *TokenService
}

func (s *refreshTokenStrategy) Authenticate(r *http.Request) (*Identity, error) {
	raw := security.TokenFromRequest(r, security.RefreshTokenCookie)
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.jwtMgr.ParseRefreshToken(raw)
	if err != nil {
		slog.DebugContext(r.Context(), "refresh token rejected", "reason", err)
		return nil, ErrUnauthenticated
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrUnauthenticated
	}
	exists, err := s.families.Exists(userID, claims.FamilyID)
	if err != nil {
		return nil, err
	}
	if !exists {
		// Signature-valid token for a dead family: replay. Revoke the
		// user's whole session set, not just this request.
		slog.WarnContext(r.Context(), "refresh token replay detected at gate", "user_id", userID)
		if err := s.tokens.RevokeAll(userID); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		return nil, ErrReplayDetected
	}
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return &Identity{User: user, Claims: claims}, nil
}
