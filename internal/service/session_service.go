package service

import (
	"net/http"
	"time"

	"github.com/mvanbree/palette/internal/repository"
	"github.com/mvanbree/palette/internal/security"
)

type SessionView struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
	IsCurrent bool      `json:"is_current"`
}

// SessionService exposes the user's active token families as sessions.
type SessionService struct {
	jwtMgr   *security.JWTManager
	families repository.FamilyRepository
}

func NewSessionService(jwtMgr *security.JWTManager, families repository.FamilyRepository) *SessionService {
	return &SessionService{jwtMgr: jwtMgr, families: families}
}

func (s *SessionService) ListActiveSessions(userID uint, currentFamilyID string) ([]SessionView, error) {
	families, err := s.families.ListActiveByUserID(userID)
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(families))
	for _, f := range families {
		views = append(views, SessionView{
			ID:        f.ID,
			CreatedAt: f.CreatedAt,
			ExpiresAt: f.ExpiresAt,
			UserAgent: f.UserAgent,
			IP:        f.IP,
			IsCurrent: currentFamilyID != "" && f.FamilyID == currentFamilyID,
		})
	}
	return views, nil
}

// ResolveCurrentFamilyID identifies the caller's own session from the
// refresh cookie. Access tokens carry no family marker, so the cookie is
// the only link between a request and its lineage.
func (s *SessionService) ResolveCurrentFamilyID(r *http.Request, userID uint) string {
	raw := security.GetCookie(r, security.RefreshTokenCookie)
	if raw == "" {
		return ""
	}
	claims, err := s.jwtMgr.ParseRefreshToken(raw)
	if err != nil {
		return ""
	}
	if id, err := claims.UserID(); err != nil || id != userID {
		return ""
	}
	return claims.FamilyID
}
