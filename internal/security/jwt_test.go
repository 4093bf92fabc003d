package security

import (
	"errors"
	"testing"
	"time"
)

func newJWTManagerForTest() *JWTManager {
	return NewJWTManager(
		"iss",
		"aud",
		"abcdefghijklmnopqrstuvwxyz123456",
		"abcdefghijklmnopqrstuvwxyz654321",
	)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newJWTManagerForTest()
	token, err := m.SignAccessToken(42, "version-1", 15*time.Minute)
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	claims, err := m.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	userID, err := claims.UserID()
	if err != nil {
		t.Fatalf("parse subject: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected user id 42, got %d", userID)
	}
	if claims.TokenVersion != "version-1" {
		t.Fatalf("expected token version to round-trip, got %q", claims.TokenVersion)
	}
	if claims.FamilyID != "" {
		t.Fatalf("access token must not carry a family id, got %q", claims.FamilyID)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m := newJWTManagerForTest()
	token, err := m.SignRefreshToken(7, "fam-1", time.Hour)
	if err != nil {
		t.Fatalf("sign refresh token: %v", err)
	}
	claims, err := m.ParseRefreshToken(token)
	if err != nil {
		t.Fatalf("parse refresh token: %v", err)
	}
	if claims.FamilyID != "fam-1" {
		t.Fatalf("expected family id to round-trip, got %q", claims.FamilyID)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := newJWTManagerForTest()
	token, err := m.SignAccessToken(1, "v", -time.Second)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = m.ParseAccessToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestCrossTokenTypeRejected(t *testing.T) {
	m := newJWTManagerForTest()
	access, err := m.SignAccessToken(1, "v", time.Minute)
	if err != nil {
		t.Fatalf("sign access: %v", err)
	}
	refresh, err := m.SignRefreshToken(1, "fam", time.Minute)
	if err != nil {
		t.Fatalf("sign refresh: %v", err)
	}
	if _, err := m.ParseRefreshToken(access); err == nil {
		t.Fatal("expected access token to be rejected by refresh parser")
	}
	if _, err := m.ParseAccessToken(refresh); err == nil {
		t.Fatal("expected refresh token to be rejected by access parser")
	}
}

func TestTamperedSignatureRejected(t *testing.T) {
	m := newJWTManagerForTest()
	other := NewJWTManager("iss", "aud",
		"00000000000000000000000000000000",
		"11111111111111111111111111111111")
	token, err := other.SignAccessToken(1, "v", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = m.ParseAccessToken(token)
	if !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("expected ErrTokenSignatureInvalid, got %v", err)
	}
}

func TestMalformedTokenRejected(t *testing.T) {
	m := newJWTManagerForTest()
	for _, raw := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.ParseAccessToken(raw); err == nil {
			t.Fatalf("expected malformed token %q to be rejected", raw)
		}
	}
}

func TestRefreshTokenWithoutFamilyRejected(t *testing.T) {
	m := newJWTManagerForTest()
	token, err := m.SignRefreshToken(1, "", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = m.ParseRefreshToken(token)
	if !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for empty family, got %v", err)
	}
}
