package ports

import "time"

// SecretVault issues and digests service-token secrets. Digesting is
// deterministic (keyed HMAC) so validation is one indexed lookup with
// uniform latency across all rejection causes.
type SecretVault interface {
	NewSecret() (string, error)
	Digest(rawSecret string) string
}

// OwnerClaims identifies the authenticated caller of the management API.
type OwnerClaims struct {
	OwnerID   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type OwnerTokenSigner interface {
	Sign(claims OwnerClaims) (string, error)
	ParseAndValidate(raw string) (OwnerClaims, error)
}
