package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"ventasvoz/internal/domain"
	"ventasvoz/internal/store/memory"
)

func TestLoginAndParseToken(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager("unit-test-secret-0123456789abcdef", time.Hour, repo)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: "owner", Password: "owner123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	if resp.TenantID != "demo-tenant" || resp.Role != "owner" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if actor.Username != "owner" || actor.TenantID != "demo-tenant" || actor.Role != "owner" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager("unit-test-secret-0123456789abcdef", time.Hour, repo)
	ctx := context.Background()

	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "owner", Password: "wrong"}); err == nil {
		t.Fatalf("wrong password must fail")
	}
	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "nobody", Password: "owner123"}); err == nil {
		t.Fatalf("unknown user must fail")
	}
	// Unknown user and wrong password read the same to the caller.
	_, errUser := auth.Login(ctx, domain.LoginRequest{Username: "nobody", Password: "x"})
	_, errPwd := auth.Login(ctx, domain.LoginRequest{Username: "owner", Password: "x"})
	if errUser.Error() != errPwd.Error() {
		t.Fatalf("credential errors must be indistinguishable: %v vs %v", errUser, errPwd)
	}
}

func TestParseTokenRejectsForgedToken(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager("unit-test-secret-0123456789abcdef", time.Hour, repo)
	other := NewAuthManager("another-secret-entirely-0123456789", time.Hour, repo)

	resp, err := other.Login(context.Background(), domain.LoginRequest{Username: "owner", Password: "owner123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("token signed with a different secret must be rejected")
	}
	if _, err := auth.ParseToken("not-a-token"); err == nil {
		t.Fatalf("garbage token must be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager("unit-test-secret-0123456789abcdef", time.Hour, repo)

	token, err := auth.sign("owner", "demo-tenant", "owner", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil || !strings.Contains(err.Error(), "invalid or expired") {
		t.Fatalf("expired token must be rejected, got %v", err)
	}
}
