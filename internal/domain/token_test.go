package domain

import (
	"testing"
	"time"
)

func TestTokenUsable(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name  string
		token ServiceToken
		want  bool
	}{
		{"active", ServiceToken{IsActive: true}, true},
		{"inactive", ServiceToken{IsActive: false}, false},
		{"revoked", ServiceToken{IsActive: true, IsRevoked: true}, false},
		{"revoked and inactive", ServiceToken{IsRevoked: true}, false},
		{"expired", ServiceToken{IsActive: true, ExpiresAt: &past}, false},
		{"not yet expired", ServiceToken{IsActive: true, ExpiresAt: &future}, true},
	}
	for _, tc := range cases {
		if got := tc.token.Usable(now); got != tc.want {
			t.Errorf("%s: Usable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDisplayPrefix(t *testing.T) {
	if got := DisplayPrefix("vb_0123456789abcdef"); got != "vb_012345678..." {
		t.Fatalf("unexpected prefix: %q", got)
	}
	if got := DisplayPrefix("vb_short"); got != "vb_short" {
		t.Fatalf("short secrets should pass through, got %q", got)
	}
}

func TestFormatAllowed(t *testing.T) {
	svc := PublishedService{AllowedFormats: []string{"jpg", "PNG", ".mp4"}}
	for _, ext := range []string{".jpg", "jpg", "PNG", ".png", "mp4"} {
		if !svc.FormatAllowed(ext) {
			t.Errorf("expected %q to be allowed", ext)
		}
	}
	for _, ext := range []string{"gif", "", ".exe"} {
		if svc.FormatAllowed(ext) {
			t.Errorf("expected %q to be rejected", ext)
		}
	}
}
