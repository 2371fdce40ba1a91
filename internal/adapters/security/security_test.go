package security

import (
	"strings"
	"testing"
	"time"

	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

func TestHMACVaultSecrets(t *testing.T) {
	vault, err := NewHMACVault("pepper-a")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	first, err := vault.NewSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	second, err := vault.NewSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	if !strings.HasPrefix(first, domain.SecretPrefix) {
		t.Fatalf("secret missing prefix: %q", first)
	}
	if len(first) != len(domain.SecretPrefix)+64 {
		t.Fatalf("unexpected secret length: %d", len(first))
	}
	if first == second {
		t.Fatalf("secrets must not repeat")
	}

	// Digest must be deterministic so lookups by hash work, and it must
	// depend on the pepper.
	if vault.Digest(first) != vault.Digest(first) {
		t.Fatalf("digest is not deterministic")
	}
	other, _ := NewHMACVault("pepper-b")
	if vault.Digest(first) == other.Digest(first) {
		t.Fatalf("digest must depend on the pepper")
	}
	if vault.Digest(first) == first {
		t.Fatalf("digest must not echo the secret")
	}
}

func TestJWTSignerRoundTrip(t *testing.T) {
	signer, err := NewJWTSigner("signing-key", "vision-box")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	now := time.Now().UTC()
	raw, err := signer.Sign(ports.OwnerClaims{
		OwnerID:   "owner-42",
		Role:      "admin",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := signer.ParseAndValidate(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.OwnerID != "owner-42" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTSignerRejectsForgeries(t *testing.T) {
	signer, _ := NewJWTSigner("signing-key", "vision-box")
	otherKey, _ := NewJWTSigner("different-key", "vision-box")
	otherIssuer, _ := NewJWTSigner("signing-key", "someone-else")
	now := time.Now().UTC()

	claims := ports.OwnerClaims{OwnerID: "owner-42", Role: "user", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}

	forged, _ := otherKey.Sign(claims)
	if _, err := signer.ParseAndValidate(forged); err == nil {
		t.Fatalf("token signed with another key must be rejected")
	}

	wrongIssuer, _ := otherIssuer.Sign(claims)
	if _, err := signer.ParseAndValidate(wrongIssuer); err == nil {
		t.Fatalf("token from another issuer must be rejected")
	}

	expired, _ := signer.Sign(ports.OwnerClaims{OwnerID: "owner-42", IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)})
	if _, err := signer.ParseAndValidate(expired); err == nil {
		t.Fatalf("expired token must be rejected")
	}

	if _, err := signer.ParseAndValidate("not.a.jwt"); err == nil {
		t.Fatalf("garbage must be rejected")
	}
}
