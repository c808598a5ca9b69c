package onetime_test

import (
	"testing"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/iam/onetime"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
)

func TestSubjectKeyRoundTrip(t *testing.T) {
	subject := onetime.PasswordResetSubject("ana@example.com")
	email, ok := onetime.EmailFromResetSubject(subject)
	if !ok || email != "ana@example.com" {
		t.Fatalf("reset subject round trip failed: %q %v", email, ok)
	}

	tenantID := kernel.NewTenantID("acme")
	subject = onetime.InviteSubject(tenantID, "nuevo@example.com")
	gotTenant, gotEmail, ok := onetime.SplitInviteSubject(subject)
	if !ok || gotTenant != tenantID || gotEmail != "nuevo@example.com" {
		t.Fatalf("invite subject round trip failed: %q %q %v", gotTenant, gotEmail, ok)
	}
}

func TestSubjectKeyRejectsForeignPrefixes(t *testing.T) {
	if _, ok := onetime.EmailFromResetSubject("invite:acme:a@b.com"); ok {
		t.Fatal("invite subject must not parse as reset")
	}
	if _, _, ok := onetime.SplitInviteSubject("reset:a@b.com"); ok {
		t.Fatal("reset subject must not parse as invite")
	}
	if _, _, ok := onetime.SplitInviteSubject("invite:solo-tenant"); ok {
		t.Fatal("invite subject without email must not parse")
	}
}

func TestGrantStateMachine(t *testing.T) {
	hash := "digest"
	future := time.Now().Add(time.Hour)
	g := onetime.Grant{TokenHash: &hash, ExpiresAt: &future}

	if !g.IsUsable() {
		t.Fatal("issued grant should be usable")
	}

	past := time.Now().Add(-time.Minute)
	g.ExpiresAt = &past
	if g.IsUsable() {
		t.Fatal("expired grant should not be usable")
	}
	if !g.IsExpired() {
		t.Fatal("expired grant should report expired")
	}

	now := time.Now()
	g = onetime.Grant{ConsumedAt: &now}
	if !g.IsConsumed() {
		t.Fatal("consumed grant should report consumed")
	}
	if g.IsUsable() {
		t.Fatal("consumed grant should not be usable")
	}
}
