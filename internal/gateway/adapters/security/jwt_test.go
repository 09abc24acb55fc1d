package security

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()
	v, err := NewJWTVerifier("secret", "shopstack")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	raw, err := v.Issue(Identity{UserID: "user_1", Email: "a@b.c", Role: RoleAdmin}, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "user_1" || !id.IsAdmin() {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyRejectsForeignSecretAndIssuer(t *testing.T) {
	t.Parallel()
	v, _ := NewJWTVerifier("secret", "shopstack")
	other, _ := NewJWTVerifier("other", "shopstack")
	foreign, _ := NewJWTVerifier("secret", "elsewhere")

	for name, signer := range map[string]*JWTVerifier{"secret": other, "issuer": foreign} {
		raw, err := signer.Issue(Identity{UserID: "user_1"}, time.Minute)
		if err != nil {
			t.Fatalf("%s: issue: %v", name, err)
		}
		if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()
	v, _ := NewJWTVerifier("secret", "")

	raw, _ := v.Issue(Identity{UserID: "user_1"}, -time.Hour)
	if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestDefaultRoleIsUser(t *testing.T) {
	t.Parallel()
	v, _ := NewJWTVerifier("secret", "")

	raw, _ := v.Issue(Identity{UserID: "user_1"}, time.Minute)
	id, err := v.Verify(raw)
	if err != nil || id.Role != RoleUser || id.IsAdmin() {
		t.Fatalf("unexpected identity %+v err=%v", id, err)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	if _, err := BearerToken("Basic abc"); err == nil {
		t.Fatalf("expected non-bearer header to fail")
	}
	if _, err := BearerToken("Bearer   "); err == nil {
		t.Fatalf("expected empty token to fail")
	}
	if tok, err := BearerToken("Bearer abc"); err != nil || tok != "abc" {
		t.Fatalf("unexpected token %q err=%v", tok, err)
	}
}
