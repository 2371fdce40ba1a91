package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/justinzzc/vision-box/internal/domain"
)

// HMACVault issues service-token secrets and digests them with a keyed
// HMAC-SHA256. A keyed digest keeps a leaked database dump useless without
// the server-side pepper, while staying deterministic so validation is one
// indexed lookup.
type HMACVault struct {
	pepper []byte
}

func NewHMACVault(pepper string) (*HMACVault, error) {
	if pepper == "" {
		return nil, errors.New("secret vault pepper is required")
	}
	return &HMACVault{pepper: []byte(pepper)}, nil
}

func (v *HMACVault) NewSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return domain.SecretPrefix + hex.EncodeToString(buf), nil
}

func (v *HMACVault) Digest(rawSecret string) string {
	mac := hmac.New(sha256.New, v.pepper)
	mac.Write([]byte(rawSecret))
	return hex.EncodeToString(mac.Sum(nil))
}
