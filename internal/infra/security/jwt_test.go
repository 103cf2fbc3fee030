package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/config"
)

func TestTokenVerifierHS256(t *testing.T) {
	issued := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	verifier, err := NewTokenVerifier(config.JWTSettings{Algorithm: "HS256", Secret: "s3cret", Issuer: "unitree-accounts"})
	if err != nil {
		t.Fatalf("NewTokenVerifier returned error: %v", err)
	}
	verifier.WithClock(func() time.Time { return issued.Add(time.Minute) })

	claims, err := NewAccessTokenClaims(AccessTokenOptions{
		UserID:   "user-1",
		Roles:    []string{"admin", " admin ", ""},
		Issuer:   "unitree-accounts",
		IssuedAt: issued,
	})
	if err != nil {
		t.Fatalf("NewAccessTokenClaims returned error: %v", err)
	}
	token, err := SignHS256("s3cret", claims)
	if err != nil {
		t.Fatalf("SignHS256 returned error: %v", err)
	}

	principal, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if principal.UserID != "user-1" || len(principal.Roles) != 1 || !principal.HasRole(domain.RoleAdmin) {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestTokenVerifierRejectsBadTokens(t *testing.T) {
	issued := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	verifier, err := NewTokenVerifier(config.JWTSettings{Secret: "s3cret", Issuer: "unitree-accounts"})
	if err != nil {
		t.Fatalf("NewTokenVerifier returned error: %v", err)
	}
	verifier.WithClock(func() time.Time { return issued.Add(time.Hour) })

	claims, _ := NewAccessTokenClaims(AccessTokenOptions{UserID: "user-1", Issuer: "unitree-accounts", IssuedAt: issued})
	expired, _ := SignHS256("s3cret", claims)

	fresh, _ := NewAccessTokenClaims(AccessTokenOptions{UserID: "user-1", Issuer: "unitree-accounts", IssuedAt: issued.Add(59 * time.Minute)})
	wrongKey, _ := SignHS256("other", fresh)

	foreign, _ := NewAccessTokenClaims(AccessTokenOptions{UserID: "user-1", Issuer: "someone-else", IssuedAt: issued.Add(59 * time.Minute)})
	wrongIssuer, _ := SignHS256("s3cret", foreign)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
	} {
		if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestTokenVerifierRS256FromPEM(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "jwt.pub")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	verifier, err := NewTokenVerifier(config.JWTSettings{Algorithm: "rs256", PublicKeyPath: path})
	if err != nil {
		t.Fatalf("NewTokenVerifier returned error: %v", err)
	}

	claims, _ := NewAccessTokenClaims(AccessTokenOptions{UserID: "user-2"})
	token, err := SignRS256(key, "k1", claims)
	if err != nil {
		t.Fatalf("SignRS256 returned error: %v", err)
	}
	principal, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if principal.UserID != "user-2" || principal.HasRole(domain.RoleAdmin) {
		t.Fatalf("unexpected principal %+v", principal)
	}

	hsClaims, _ := NewAccessTokenClaims(AccessTokenOptions{UserID: "user-2"})
	hsToken, _ := SignHS256("whatever", hsClaims)
	if _, err := verifier.Verify(hsToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected algorithm mismatch to be rejected, got %v", err)
	}
}

func TestNewTokenVerifierConfigErrors(t *testing.T) {
	if _, err := NewTokenVerifier(config.JWTSettings{Algorithm: "HS256"}); err == nil {
		t.Fatal("expected missing secret error")
	}
	if _, err := NewTokenVerifier(config.JWTSettings{Algorithm: "ES256"}); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
	if _, err := NewTokenVerifier(config.JWTSettings{Algorithm: "RS256", PublicKeyPath: filepath.Join(t.TempDir(), "missing.pem")}); err == nil {
		t.Fatal("expected missing key file error")
	}
}
