package service

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/repository"
	"github.com/mvanbree/palette/internal/security"
)

type memFamilyRepo struct {
	mu       sync.Mutex
	families map[string]domain.TokenFamily
}

func newMemFamilyRepo() *memFamilyRepo {
	return &memFamilyRepo{families: make(map[string]domain.TokenFamily)}
}

func (r *memFamilyRepo) Create(f *domain.TokenFamily) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[f.FamilyID] = *f
	return nil
}

func (r *memFamilyRepo) Exists(userID uint, familyID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[familyID]
	return ok && f.UserID == userID && f.ExpiresAt.After(time.Now()), nil
}

func (r *memFamilyRepo) DeleteIfExists(userID uint, familyID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[familyID]
	if !ok || f.UserID != userID || !f.ExpiresAt.After(time.Now()) {
		return false, nil
	}
	delete(r.families, familyID)
	return true, nil
}

func (r *memFamilyRepo) ListActiveByUserID(userID uint) ([]domain.TokenFamily, error) {
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

func (r *memFamilyRepo) DeleteAllForUser(userID uint) (int64, error) {
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

func (r *memFamilyRepo) CleanupExpired() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, f := range r.families {
		if !f.ExpiresAt.After(time.Now()) {
			delete(r.families, id)
			n++
		}
	}
	return n, nil
}

func (r *memFamilyRepo) count(userID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.families {
		if f.UserID == userID {
			n++
		}
	}
	return n
}

type memUserRepo struct {
	mu     sync.Mutex
	users  map[uint]*domain.User
	creds  map[string]*domain.LocalCredential
	nextID uint
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uint]*domain.User), creds: make(map[string]*domain.LocalCredential)}
}

func (r *memUserRepo) FindByID(id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByUsername(username string) (*domain.LocalCredential, *domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[username]
	if !ok {
		return nil, nil, repository.ErrUserNotFound
	}
	u := *r.users[cred.UserID]
	c := *cred
	return &c, &u, nil
}

func (r *memUserRepo) Create(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	if user.TokenVersion == "" {
		user.TokenVersion = uuid.NewString()
	}
	cp := *user
	r.users[user.ID] = &cp
	if user.Credential != nil {
		cred := *user.Credential
		cred.UserID = user.ID
		r.creds[cred.Username] = &cred
	}
	return nil
}

func (r *memUserRepo) RegenerateTokenVersion(userID uint) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return "", repository.ErrUserNotFound
	}
	u.TokenVersion = uuid.NewString()
	return u.TokenVersion, nil
}

func newJWTManagerForTest() *security.JWTManager {
	return security.NewJWTManager("palette-test", "palette-api",
		"test-access-secret-0123456789abcdef",
		"test-refresh-secret-0123456789abcd")
}

func newTokenServiceForTest(t *testing.T) (*TokenService, *memUserRepo, *memFamilyRepo, *domain.User) {
	t.Helper()
	users := newMemUserRepo()
	families := newMemFamilyRepo()
	user := &domain.User{}
	if err := users.Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc := NewTokenService(newJWTManagerForTest(), families, users, 15*time.Minute, time.Hour)
	return svc, users, families, user
}

func TestIssueCreatesOneFamily(t *testing.T) {
	svc, _, families, user := newTokenServiceForTest(t)

	pair, err := svc.Issue(user, "test-agent", "10.0.0.1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" || pair.CSRF == "" {
		t.Fatalf("incomplete token pair: %+v", pair)
	}
	if n := families.count(user.ID); n != 1 {
		t.Fatalf("expected 1 family, got %d", n)
	}
}

func TestRotateConsumesOldFamily(t *testing.T) {
	svc, _, families, user := newTokenServiceForTest(t)

	pair, err := svc.Issue(user, "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rotated, userID, err := svc.Rotate(pair.Refresh, "ua", "ip")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if userID != user.ID {
		t.Fatalf("rotated user = %d, want %d", userID, user.ID)
	}
	if rotated.Refresh == pair.Refresh {
		t.Fatal("rotation must mint a new refresh token")
	}
	if n := families.count(user.ID); n != 1 {
		t.Fatalf("expected exactly 1 family after rotation, got %d", n)
	}
}

func TestRotateReplayRevokesAllSessions(t *testing.T) {
	svc, users, families, user := newTokenServiceForTest(t)
	originalVersion := user.TokenVersion

	first, err := svc.Issue(user, "ua", "ip")
	if err != nil {
		t.Fatalf("issue first: %v", err)
	}
	if _, err := svc.Issue(user, "ua2", "ip2"); err != nil {
		t.Fatalf("issue second: %v", err)
	}

	if _, _, err := svc.Rotate(first.Refresh, "ua", "ip"); err != nil {
		t.Fatalf("legitimate rotate: %v", err)
	}

	// The already-consumed token comes back. Every session must die, not
	// just the replayed one.
	_, _, err = svc.Rotate(first.Refresh, "ua", "ip")
	if !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("expected ErrReplayDetected, got %v", err)
	}
	if n := families.count(user.ID); n != 0 {
		t.Fatalf("expected all families revoked, got %d", n)
	}
	reloaded, err := users.FindByID(user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if reloaded.TokenVersion == originalVersion {
		t.Fatal("replay must regenerate the token version")
	}
}

func TestConcurrentRotationsHaveOneWinner(t *testing.T) {
	svc, _, families, user := newTokenServiceForTest(t)

	pair, err := svc.Issue(user, "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// All goroutines race on the same family. The conditional delete admits
	// exactly one; everyone else must observe the family gone and report
	// replay.
	const racers = 8
	var wins, replays atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Rotate(pair.Refresh, "ua", "ip")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrReplayDetected):
				replays.Add(1)
			default:
				t.Errorf("unexpected rotate error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins.Load())
	}
	if replays.Load() != racers-1 {
		t.Fatalf("replays = %d, want %d", replays.Load(), racers-1)
	}
	// Losing racers trigger full revocation, which may also sweep away the
	// winner's new family; what can never remain is more than one.
	if n := families.count(user.ID); n > 1 {
		t.Fatalf("families after race = %d, want at most 1", n)
	}
}

func TestRotateRejectsGarbage(t *testing.T) {
	svc, _, _, _ := newTokenServiceForTest(t)

	if _, _, err := svc.Rotate("not-a-token", "ua", "ip"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRotateRejectsAccessTokenAsRefresh(t *testing.T) {
	svc, _, _, user := newTokenServiceForTest(t)

	pair, err := svc.Issue(user, "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, err := svc.Rotate(pair.Access, "ua", "ip"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for access token, got %v", err)
	}
}

func TestRevokeAllKillsEverySession(t *testing.T) {
	svc, users, families, user := newTokenServiceForTest(t)
	originalVersion := user.TokenVersion

	for i := 0; i < 3; i++ {
		if _, err := svc.Issue(user, "ua", "ip"); err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
	}

	if err := svc.RevokeAll(user.ID); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if n := families.count(user.ID); n != 0 {
		t.Fatalf("expected 0 families, got %d", n)
	}
	reloaded, err := users.FindByID(user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if reloaded.TokenVersion == originalVersion {
		t.Fatal("revocation must regenerate the token version")
	}
}
