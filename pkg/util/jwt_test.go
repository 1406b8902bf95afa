package util

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		Secret:   "test-secret",
		Issuer:   "trackit",
		Audience: "trackit-client",
		TTL:      time.Hour,
	}
}

func TestGenerateAndParseJWT(t *testing.T) {
	cfg := testTokenConfig()

	token, err := GenerateJWT(cfg, 42, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	id, err := ParseJWT(token, cfg)
	if err != nil {
		t.Fatalf("ParseJWT() error = %v", err)
	}
	if id.UserID != 42 {
		t.Errorf("UserID = %d, want 42", id.UserID)
	}
	if id.Username != "alice" {
		t.Errorf("Username = %q, want alice", id.Username)
	}
}

func TestParseJWTRejects(t *testing.T) {
	cfg := testTokenConfig()
	valid, err := GenerateJWT(cfg, 1, "bob", "")
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	expiredCfg := cfg
	expiredCfg.TTL = -time.Minute
	expired, err := GenerateJWT(expiredCfg, 1, "bob", "")
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	otherAudience := cfg
	otherAudience.Audience = "someone-else"

	otherSecret := cfg
	otherSecret.Secret = "nope"

	tests := []struct {
		name  string
		token string
		cfg   TokenConfig
	}{
		{"garbage", "not-a-token", cfg},
		{"wrong secret", valid, otherSecret},
		{"wrong audience", valid, otherAudience},
		{"expired", expired, cfg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJWT(tt.token, tt.cfg)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ParseJWT() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}

	for _, tt := range tests {
		r, _ := http.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := ExtractToken(r); got != tt.want {
			t.Errorf("ExtractToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !CheckPassword("s3cret", hash) {
		t.Error("CheckPassword() rejected the right password")
	}
	if CheckPassword("wrong", hash) {
		t.Error("CheckPassword() accepted the wrong password")
	}
}

func TestEmptySecretRefused(t *testing.T) {
	cfg := testTokenConfig()
	cfg.Secret = ""

	if _, err := GenerateJWT(cfg, 1, "alice", ""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("GenerateJWT() error = %v, want ErrEmptySecret", err)
	}

	// a token signed with an empty HMAC key must not verify either
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(""))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := ParseJWT(forged, cfg)
	if !errors.Is(err, ErrInvalidToken) || !errors.Is(err, ErrEmptySecret) {
		t.Errorf("ParseJWT() = %+v, %v; want ErrInvalidToken", id, err)
	}
}
