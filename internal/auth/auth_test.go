package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"casetrack/internal/core"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("password stored in plaintext")
	}
	if err := CheckPassword(hash, "s3cret"); err != nil {
		t.Errorf("CheckPassword correct = %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("CheckPassword wrong = %v, want ErrInvalidCredentials", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	u := core.User{ID: 7, Email: "asha@example.com", Role: core.RoleManager}

	signed, err := tokens.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	id, err := tokens.Parse(signed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id.UserID != 7 || id.Email != "asha@example.com" || id.Role != core.RoleManager {
		t.Errorf("identity = %+v", id)
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	if _, err := tokens.Parse("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token = %v, want ErrInvalidToken", err)
	}

	other := NewTokens("other-secret", time.Hour)
	signed, err := other.Issue(core.User{ID: 1, Role: core.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := tokens.Parse(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong-secret token = %v, want ErrInvalidToken", err)
	}

	expired := NewTokens("test-secret", -time.Minute)
	signed, err = expired.Issue(core.User{ID: 1, Role: core.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := tokens.Parse(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token = %v, want ErrInvalidToken", err)
	}
}

func TestFromHeader(t *testing.T) {
	if tok, err := FromHeader("Bearer abc.def.ghi"); err != nil || tok != "abc.def.ghi" {
		t.Errorf("FromHeader = (%q, %v)", tok, err)
	}
	for _, header := range []string{"", "abc", "Basic abc", "Bearerabc"} {
		if _, err := FromHeader(header); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("FromHeader(%q) = %v, want ErrInvalidToken", header, err)
		}
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := IdentityFrom(ctx); ok {
		t.Error("empty context should carry no identity")
	}
	want := Identity{UserID: 3, Email: "x@example.com", Role: core.RoleAgent}
	got, ok := IdentityFrom(WithIdentity(ctx, want))
	if !ok || got != want {
		t.Errorf("IdentityFrom = (%+v, %v), want %+v", got, ok, want)
	}
}
