package domain

import (
	"strings"
	"time"
)

// SecretPrefix marks raw service-token secrets. The raw secret is returned
// exactly once at issuance; only its digest is stored.
const SecretPrefix = "vb_"

type ServiceToken struct {
	TokenID     string     `json:"token_id"`
	ServiceID   string     `json:"service_id"`
	DisplayName string     `json:"display_name"`
	SecretHash  string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"`
	IsActive    bool       `json:"is_active"`
	IsRevoked   bool       `json:"is_revoked"`
	UsageCount  int64      `json:"usage_count"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP  string     `json:"last_used_ip,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t ServiceToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// Usable reports whether the token may authenticate a call right now.
// Revocation is terminal and supersedes the activation flag.
func (t ServiceToken) Usable(now time.Time) bool {
	return t.IsActive && !t.IsRevoked && !t.IsExpired(now)
}

// DisplayPrefix renders the truncated secret shown in listings.
func DisplayPrefix(rawSecret string) string {
	if len(rawSecret) <= 12 {
		return rawSecret
	}
	return rawSecret[:12] + "..."
}

func ValidateTokenName(displayName string) error {
	if strings.TrimSpace(displayName) == "" {
		return ErrInvalidParameters
	}
	return nil
}
