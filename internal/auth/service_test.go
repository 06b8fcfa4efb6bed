package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"savequest/internal/clock"
	"savequest/internal/store"
)

func newTestService(clk clock.Clock) *Service {
	return NewService(store.NewMemoryStore(), clk, "test-secret", time.Hour, nil)
}

func TestSignupLoginVerify(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(clk)

	u, token, err := svc.Signup(ctx, "Ada@Example.com", "Ada", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if u.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if u.PasswordHash == "hunter2hunter2" || u.PasswordHash == "" {
		t.Fatal("password stored unhashed")
	}

	id, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != u.ID || id.DisplayName != "Ada" {
		t.Fatalf("identity = %+v", id)
	}

	u2, token2, err := svc.Login(ctx, "ada@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u2.ID != u.ID {
		t.Fatalf("login returned a different user: %s vs %s", u2.ID, u.ID)
	}
	if _, err := svc.Verify(token2); err != nil {
		t.Fatalf("Verify login token: %v", err)
	}
}

func TestSignup_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(clock.RealClock{})

	if _, _, err := svc.Signup(ctx, "not-an-email", "X", "hunter2hunter2"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, _, err := svc.Signup(ctx, "ada@example.com", "Ada", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(clock.RealClock{})

	if _, _, err := svc.Signup(ctx, "ada@example.com", "Ada", "hunter2hunter2"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, _, err := svc.Signup(ctx, "ADA@example.com", "Imposter", "hunter2hunter2"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignup_DefaultsDisplayName(t *testing.T) {
	svc := newTestService(clock.RealClock{})
	u, _, err := svc.Signup(context.Background(), "bola@example.com", "", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if u.DisplayName != "bola" {
		t.Fatalf("displayName = %q", u.DisplayName)
	}
}

func TestLogin_WrongCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(clock.RealClock{})
	if _, _, err := svc.Signup(ctx, "ada@example.com", "Ada", "hunter2hunter2"); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	if _, _, err := svc.Login(ctx, "ada@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "hunter2hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(clk)

	_, token, err := svc.Signup(ctx, "ada@example.com", "Ada", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	clk.Advance(2 * time.Hour)
	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestVerify_Tampered(t *testing.T) {
	svc := newTestService(clock.RealClock{})
	other := NewService(store.NewMemoryStore(), clock.RealClock{}, "other-secret", time.Hour, nil)

	_, token, err := other.Signup(context.Background(), "ada@example.com", "Ada", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with another secret verified: %v", err)
	}
	if _, err := svc.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token verified: %v", err)
	}
}
