package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"trackit/internal/apperr"
	"trackit/internal/store/memstore"
	"trackit/pkg/util"
)

var tokens = util.TokenConfig{Secret: "s3cret", Issuer: "trackit", Audience: "trackit-client", TTL: time.Hour}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memstore.New(), tokens, zap.NewNop())

	u, err := svc.Register(ctx, " alice ", "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Username != "alice" || u.PasswordHash == "pw" {
		t.Errorf("user = %+v", u)
	}

	token, err := svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.UserID != u.ID || id.Username != "alice" {
		t.Errorf("identity = %+v", id)
	}
}

func TestRegisterErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memstore.New(), tokens, zap.NewNop())
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "pw"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name                      string
		username, email, password string
		want                      error
	}{
		{"empty username", "", "x@example.com", "pw", apperr.ErrInvalidArgument},
		{"empty password", "bob", "bob@example.com", "", apperr.ErrInvalidArgument},
		{"taken username", "alice", "other@example.com", "pw", apperr.ErrConflict},
		{"taken email", "bob", "alice@example.com", "pw", apperr.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.email, tt.password)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memstore.New(), tokens, zap.NewNop())
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "pw"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "pw"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("unknown user err = %v", err)
	}
	if _, err := svc.Authenticate("garbage"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("garbage token err = %v", err)
	}
}
