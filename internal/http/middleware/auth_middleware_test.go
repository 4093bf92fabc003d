package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/repository"
	"github.com/mvanbree/palette/internal/security"
	"github.com/mvanbree/palette/internal/service"
)

type stubUserRepo struct {
	mu    sync.Mutex
	users map[uint]*domain.User
}

func (r *stubUserRepo) FindByID(id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubUserRepo) FindByUsername(username string) (*domain.LocalCredential, *domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Credential != nil && u.Credential.Username == username {
			cred := *u.Credential
			cp := *u
			return &cred, &cp, nil
		}
	}
	return nil, nil, repository.ErrUserNotFound
}

func (r *stubUserRepo) Create(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = uint(len(r.users) + 1)
	if user.TokenVersion == "" {
		user.TokenVersion = uuid.NewString()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *stubUserRepo) RegenerateTokenVersion(userID uint) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return "", repository.ErrUserNotFound
	}
	u.TokenVersion = uuid.NewString()
	return u.TokenVersion, nil
}

type stubFamilyRepo struct {
	mu       sync.Mutex
	families map[string]domain.TokenFamily
}

func (r *stubFamilyRepo) Create(f *domain.TokenFamily) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[f.FamilyID] = *f
	return nil
}

func (r *stubFamilyRepo) Exists(userID uint, familyID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[familyID]
	return ok && f.UserID == userID && f.ExpiresAt.After(time.Now()), nil
}

func (r *stubFamilyRepo) DeleteIfExists(userID uint, familyID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[familyID]
	if !ok || f.UserID != userID {
		return false, nil
	}
	delete(r.families, familyID)
	return true, nil
}

func (r *stubFamilyRepo) ListActiveByUserID(userID uint) ([]domain.TokenFamily, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TokenFamily
	for _, f := range r.families {
		if f.UserID == userID && f.ExpiresAt.After(time.Now()) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *stubFamilyRepo) DeleteAllForUser(userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, f := range r.families {
		if f.UserID == userID {
			delete(r.families, id)
			n++
		}
	}
	return n, nil
}

func (r *stubFamilyRepo) CleanupExpired() (int64, error) { return 0, nil }

type gateFixture struct {
	gate   *Gate
	tokens *service.TokenService
	user   *domain.User
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	users := &stubUserRepo{users: make(map[uint]*domain.User)}
	families := &stubFamilyRepo{families: make(map[string]domain.TokenFamily)}

	hash, err := security.HashPassword("sunflowers-1888")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &domain.User{
		Credential: &domain.LocalCredential{Username: "vincent", PasswordHash: hash},
	}
	if err := users.Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	jwtMgr := security.NewJWTManager("palette-test", "palette-api",
		"test-access-secret-0123456789abcdef",
		"test-refresh-secret-0123456789abcd")
	tokens := service.NewTokenService(jwtMgr, families, users, 15*time.Minute, time.Hour)
	registry := service.NewStrategyRegistry(service.NewCredentialVerifier(users), nil, jwtMgr, users, families, tokens)
	return &gateFixture{
		gate:   NewGate(registry, false, "/login"),
		tokens: tokens,
		user:   user,
	}
}

func identityRecorder(sawIdentity *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, *sawIdentity = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func clearedCookies(rec *httptest.ResponseRecorder) map[string]bool {
	cleared := make(map[string]bool)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	return cleared
}

func TestGateAccessTokenAttachesIdentity(t *testing.T) {
	fx := newGateFixture(t)
	pair, err := fx.tokens.Issue(fx.user, "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var sawIdentity bool
	h := fx.gate.Authenticate(service.StrategyAccessToken)(identityRecorder(&sawIdentity))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/painters", nil)
	r.AddCookie(&http.Cookie{Name: security.AccessTokenCookie, Value: pair.Access})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !sawIdentity {
		t.Fatal("expected identity in context")
	}
}

func TestGateAccessTokenSoftFails(t *testing.T) {
	fx := newGateFixture(t)

	var sawIdentity bool
	h := fx.gate.Authenticate(service.StrategyAccessToken)(identityRecorder(&sawIdentity))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/painters", nil)
	r.AddCookie(&http.Cookie{Name: security.AccessTokenCookie, Value: "garbage"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite bad token", rec.Code)
	}
	if sawIdentity {
		t.Fatal("bad token must not attach an identity")
	}
}

func TestGateRefreshFailureClearsCookies(t *testing.T) {
	fx := newGateFixture(t)

	var sawIdentity bool
	h := fx.gate.Authenticate(service.StrategyRefreshToken)(identityRecorder(&sawIdentity))

	r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	r.AddCookie(&http.Cookie{Name: security.RefreshTokenCookie, Value: "garbage"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	cleared := clearedCookies(rec)
	for _, name := range []string{security.AccessTokenCookie, security.RefreshTokenCookie, security.CSRFTokenCookie} {
		if !cleared[name] {
			t.Fatalf("expected cookie %q cleared, got %v", name, cleared)
		}
	}
}

func TestGateLocalCredentialsFailureCodes(t *testing.T) {
	fx := newGateFixture(t)

	var sawIdentity bool
	h := fx.gate.Authenticate(service.StrategyLocalCredentials)(identityRecorder(&sawIdentity))

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"username":"vincent","password":"sunflowers-1888"}`, http.StatusOK},
		{"wrong password", `{"username":"vincent","password":"nope"}`, http.StatusUnauthorized},
		{"missing fields", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/auth/login/local", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestGateUnknownStrategyPanics(t *testing.T) {
	fx := newGateFixture(t)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown strategy name")
		}
	}()
	fx.gate.Authenticate("saml")
}

func TestRequireAuth(t *testing.T) {
	fx := newGateFixture(t)
	pair, err := fx.tokens.Issue(fx.user, "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var sawIdentity bool
	h := fx.gate.Authenticate(service.StrategyAccessToken)(fx.gate.RequireAuth(identityRecorder(&sawIdentity)))

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}
	if !clearedCookies(rec)[security.AccessTokenCookie] {
		t.Fatal("expected auth cookies cleared on 401")
	}

	r = httptest.NewRequest(http.MethodGet, "/me", nil)
	r.AddCookie(&http.Cookie{Name: security.AccessTokenCookie, Value: pair.Access})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", rec.Code)
	}
}

func TestRequireAuthWebRedirects(t *testing.T) {
	fx := newGateFixture(t)

	var sawIdentity bool
	h := fx.gate.RequireAuthWeb("/login")(identityRecorder(&sawIdentity))

	r := httptest.NewRequest(http.MethodGet, "/folders?page=2", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if loc != "/login?next=%2Ffolders%3Fpage%3D2" {
		t.Fatalf("unexpected redirect target %q", loc)
	}

	r = httptest.NewRequest(http.MethodGet, "/login", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("public path status = %d, want 200", rec.Code)
	}
}

func TestCurrentUserPanicsWithoutIdentity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic without identity")
		}
	}()
	CurrentUser(httptest.NewRequest(http.MethodGet, "/", nil).Context())
}
