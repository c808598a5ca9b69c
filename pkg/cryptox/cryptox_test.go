package cryptox_test

import (
	"testing"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/cryptox"
	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
)

func TestGenerateSecret_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s, err := cryptox.GenerateSecret()
		if err != nil {
			t.Fatal(err)
		}
		if len(s) != 43 { // 32 bytes base64url without padding
			t.Fatalf("expected 43 chars, got %d", len(s))
		}
		if seen[s] {
			t.Fatalf("duplicate secret generated: %s", s)
		}
		seen[s] = true
	}
}

func TestHashSecret_Deterministic(t *testing.T) {
	a := cryptox.HashSecret("some-secret")
	b := cryptox.HashSecret("some-secret")
	c := cryptox.HashSecret("other-secret")

	if a != b {
		t.Fatal("same input produced different digests")
	}
	if a == c {
		t.Fatal("different inputs produced the same digest")
	}
	if !cryptox.SecureCompare(a, b) {
		t.Fatal("SecureCompare rejected equal digests")
	}
	if cryptox.SecureCompare(a, c) {
		t.Fatal("SecureCompare accepted unequal digests")
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	signer := cryptox.NewIdentitySigner("test-key", "gatekit-test")
	identity := kernel.Identity{TenantID: "tenant-1", Email: "ana@acme.com"}

	token, err := signer.SignIdentity(identity, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	got, err := signer.VerifyIdentity(token)
	if err != nil {
		t.Fatal(err)
	}
	if got.TenantID != identity.TenantID || got.Email != identity.Email {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestVerify_Expired(t *testing.T) {
	signer := cryptox.NewIdentitySigner("test-key", "")
	identity := kernel.Identity{TenantID: "tenant-1", Email: "ana@acme.com"}

	token, err := signer.SignIdentity(identity, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := signer.VerifyIdentity(token); err == nil {
		t.Fatal("expected error for expired token")
	} else {
		var xerr *errx.Error
		if !errx.As(err, &xerr) || xerr.Code != "CRYPTO_EXPIRED" {
			t.Fatalf("expected CRYPTO_EXPIRED, got %v", err)
		}
	}
}

func TestVerify_TamperedNeverYieldsClaims(t *testing.T) {
	signer := cryptox.NewIdentitySigner("test-key", "")
	identity := kernel.Identity{TenantID: "tenant-1", Email: "ana@acme.com"}

	token, err := signer.SignIdentity(identity, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < len(token); i++ {
		mutated := []byte(token)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if string(mutated) == token {
			continue
		}
		if _, err := signer.VerifyIdentity(string(mutated)); err == nil {
			t.Fatalf("tampered token verified at byte %d", i)
		}
	}
}

func TestVerify_ResignedWithDifferentKey(t *testing.T) {
	forger := cryptox.NewIdentitySigner("attacker-key", "")
	identity := kernel.Identity{TenantID: "tenant-1", Email: "ana@acme.com"}

	token, err := forger.SignIdentity(identity, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	victim := cryptox.NewIdentitySigner("real-key", "")
	if _, err := victim.VerifyIdentity(token); err == nil {
		t.Fatal("token signed with wrong key verified")
	}
}
