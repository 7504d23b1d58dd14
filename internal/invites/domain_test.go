package invites

import (
	"testing"
	"time"
)

func TestStatusDerivation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	identity := "user-1"
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name   string
		invite InviteCode
		want   string
	}{
		{"active", InviteCode{ExpiresAt: future}, StatusActive},
		{"expired", InviteCode{ExpiresAt: past}, StatusExpired},
		{"used", InviteCode{ExpiresAt: future, UsedBy: &identity, UsedAt: &past}, StatusUsed},
		{"used wins over expiry", InviteCode{ExpiresAt: past, UsedBy: &identity, UsedAt: &past}, StatusUsed},
		{"revoked", InviteCode{ExpiresAt: future, RevokedBy: &identity, RevokedAt: &past}, StatusRevoked},
		{"revoked wins over used", InviteCode{ExpiresAt: future, UsedBy: &identity, RevokedBy: &identity, RevokedAt: &past}, StatusRevoked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.invite.Status(now); got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestGenerateCodeShape(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("expected %d chars, got %q", codeLength, code)
		}
		for _, ch := range code {
			if !((ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')) {
				t.Fatalf("character %q outside the A-Z0-9 alphabet in %q", ch, code)
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 45 {
		t.Fatalf("suspiciously many duplicate codes: %d unique of 50", len(seen))
	}
}
