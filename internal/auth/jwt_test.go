package auth

import (
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	priv, _, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	s := NewJWTSigner(priv, "veil", 15*time.Minute)

	tok, exp, err := s.IssueToken("viewer-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("token already expired")
	}

	claims, err := s.ParseAndValidate(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Sub != "viewer-1" {
		t.Fatalf("sub = %q", claims.Sub)
	}
	if claims.TokenID == "" {
		t.Fatal("missing jti")
	}
}

func TestValidateRejectsForeignToken(t *testing.T) {
	privA, _, _ := GenerateEd25519()
	privB, _, _ := GenerateEd25519()
	a := NewJWTSigner(privA, "veil", time.Minute)
	b := NewJWTSigner(privB, "veil", time.Minute)

	tok, _, err := a.IssueToken("viewer-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.ParseAndValidate(tok); err == nil {
		t.Fatal("token signed by another key accepted")
	}
	if _, err := a.ParseAndValidate(tok + "x"); err == nil {
		t.Fatal("tampered token accepted")
	}
}
