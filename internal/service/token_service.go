package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/observability"
	"github.com/mvanbree/palette/internal/repository"
	"github.com/mvanbree/palette/internal/security"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrReplayDetected means a refresh token whose family no longer exists
	// was presented. By the time a caller sees it, every session of the
	// affected user has already been revoked.
	ErrReplayDetected = errors.New("refresh token replay detected")
)

type TokenPair struct {
	Access  string
	Refresh string
	CSRF    string
}

// TokenService owns the session lifecycle: family creation on login, family
// rotation on refresh, en-masse revocation on logout or replay.
type TokenService struct {
	jwtMgr     *security.JWTManager
	families   repository.FamilyRepository
	users      repository.UserRepository
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(jwtMgr *security.JWTManager, families repository.FamilyRepository, users repository.UserRepository, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		jwtMgr:     jwtMgr,
		families:   families,
		users:      users,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Issue starts a fresh session: one new family record, one token pair bound
// to it.
func (s *TokenService) Issue(user *domain.User, ua, ip string) (*TokenPair, error) {
	familyID := uuid.NewString()
	pair, err := s.mintTokenPair(user.ID, user.TokenVersion, familyID)
	if err != nil {
		return nil, err
	}
	if err := s.families.Create(&domain.TokenFamily{
		UserID:    user.ID,
		FamilyID:  familyID,
		UserAgent: ua,
		IP:        ip,
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Rotate consumes the presented refresh token's family and issues a pair
// bound to a new family. The conditional delete is the linearization point:
// of two concurrent calls with the same token, exactly one deletes the
// family row; the other observes it gone, which is the replay signal, and
// every session of the user is revoked in response.
func (s *TokenService) Rotate(refreshToken, ua, ip string) (*TokenPair, uint, error) {
	claims, err := s.jwtMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		slog.Debug("refresh token parse failed", "reason", err)
		return nil, 0, ErrInvalidRefreshToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, 0, ErrInvalidRefreshToken
	}

	deleted, err := s.families.DeleteIfExists(userID, claims.FamilyID)
	if err != nil {
		return nil, 0, err
	}
	if !deleted {
		observability.RecordReplayDetected()
		slog.Warn("refresh token replay detected, revoking all sessions", "user_id", userID)
		if err := s.RevokeAll(userID); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, 0, err
		}
		return nil, 0, ErrReplayDetected
	}

	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, 0, ErrInvalidRefreshToken
		}
		return nil, 0, err
	}

	newFamilyID := uuid.NewString()
	pair, err := s.mintTokenPair(user.ID, user.TokenVersion, newFamilyID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.families.Create(&domain.TokenFamily{
		UserID:    user.ID,
		FamilyID:  newFamilyID,
		UserAgent: ua,
		IP:        ip,
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}); err != nil {
		return nil, 0, err
	}
	return pair, user.ID, nil
}

// RevokeAll deletes every family record for the user and regenerates the
// token version, killing all outstanding refresh and access tokens without
// enumerating them.
func (s *TokenService) RevokeAll(userID uint) error {
	if _, err := s.families.DeleteAllForUser(userID); err != nil {
		return err
	}
	_, err := s.users.RegenerateTokenVersion(userID)
	return err
}

func (s *TokenService) mintTokenPair(userID uint, tokenVersion, familyID string) (*TokenPair, error) {
	access, err := s.jwtMgr.SignAccessToken(userID, tokenVersion, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtMgr.SignRefreshToken(userID, familyID, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	csrf, err := security.NewCSRFToken()
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh, CSRF: csrf}, nil
}
