package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/http/middleware"
	"github.com/mvanbree/palette/internal/http/response"
	"github.com/mvanbree/palette/internal/observability"
	"github.com/mvanbree/palette/internal/repository"
	"github.com/mvanbree/palette/internal/security"
	"github.com/mvanbree/palette/internal/service"
)

type AuthHandler struct {
	tokens     *service.TokenService
	sessions   *service.SessionService
	users      repository.UserRepository
	accessTTL  time.Duration
	refreshTTL time.Duration
	secure     bool
}

func NewAuthHandler(tokens *service.TokenService, sessions *service.SessionService, users repository.UserRepository, accessTTL, refreshTTL time.Duration, secure bool) *AuthHandler {
	return &AuthHandler{
		tokens:     tokens,
		sessions:   sessions,
		users:      users,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		secure:     secure,
	}
}

// LoginLocal runs behind the local-credentials gate; by the time it is
// reached the identity is verified and attached.
func (h *AuthHandler) LoginLocal(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	pair, err := h.tokens.Issue(user, r.UserAgent(), clientIP(r))
	if err != nil {
		observability.RecordAuthLogin("error")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not start session", nil)
		return
	}
	observability.RecordAuthLogin("success")
	observability.Audit(r, "auth.login", "user_id", user.ID)
	security.SetAuthCookies(w, pair.Access, pair.Refresh, pair.CSRF, h.accessTTL, h.refreshTTL, h.secure)
	response.JSON(w, r, http.StatusOK, map[string]any{"user_id": user.ID})
}

// Refresh runs behind the refresh-token gate, which has already checked the
// family exists. Rotate re-checks atomically; a race losing the conditional
// delete surfaces here as replay.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := security.TokenFromRequest(r, security.RefreshTokenCookie)
	pair, userID, err := h.tokens.Rotate(raw, r.UserAgent(), clientIP(r))
	if err != nil {
		security.ClearAuthCookies(w, h.secure)
		if errors.Is(err, service.ErrReplayDetected) {
			observability.RecordAuthRefresh("replay_detected")
			observability.Audit(r, "auth.refresh.replay_detected")
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			observability.RecordAuthRefresh("invalid")
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		observability.RecordAuthRefresh("error")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not rotate session", nil)
		return
	}
	observability.RecordAuthRefresh("success")
	security.SetAuthCookies(w, pair.Access, pair.Refresh, pair.CSRF, h.accessTTL, h.refreshTTL, h.secure)
	response.JSON(w, r, http.StatusOK, map[string]any{"user_id": userID})
}

// Logout revokes every session of the user: all family records deleted,
// token version regenerated.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if err := h.tokens.RevokeAll(user.ID); err != nil {
		observability.RecordAuthLogout("error")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not revoke sessions", nil)
		return
	}
	observability.RecordAuthLogout("success")
	observability.Audit(r, "auth.logout", "user_id", user.ID)
	security.ClearAuthCookies(w, h.secure)
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	response.JSON(w, r, http.StatusOK, user)
}

func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	current := h.sessions.ResolveCurrentFamilyID(r, user.ID)
	views, err := h.sessions.ListActiveSessions(user.ID, current)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not list sessions", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, views)
}

type registerInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) RegisterLocal(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Username == "" || len(in.Password) < 8 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "username and a password of at least 8 characters are required", nil)
		return
	}
	hash, err := security.HashPassword(in.Password)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not register", nil)
		return
	}
	user := &domain.User{
		Credential: &domain.LocalCredential{Username: in.Username, PasswordHash: hash},
	}
	if err := h.users.Create(user); err != nil {
		// Unique-violation detail is not surfaced; a conflict reads the
		// same as any other rejection to avoid username probing.
		response.Error(w, r, http.StatusConflict, "CONFLICT", "registration failed", nil)
		return
	}
	observability.Audit(r, "auth.register", "user_id", user.ID)
	response.JSON(w, r, http.StatusCreated, map[string]any{"user_id": user.ID})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
