package authsrv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/cryptox"
	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam/authsrv"
	"github.com/Abraxas-365/gatekit/pkg/iam/member"
	"github.com/Abraxas-365/gatekit/pkg/iam/session"
	"github.com/Abraxas-365/gatekit/pkg/iam/user"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
)

type fakeUsers struct {
	byEmail  map[string]*user.User
	failWith error
}

func (f *fakeUsers) FindByID(context.Context, kernel.UserID) (*user.User, error) {
	return nil, user.ErrUserNotFound()
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*user.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, user.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUsers) Save(context.Context, user.User) error { return nil }

type fakeMembers struct {
	rows map[string]*member.Membership
}

func mkey(tenantID kernel.TenantID, email string) string {
	return tenantID.String() + "|" + email
}

func (f *fakeMembers) FindByIdentity(_ context.Context, tenantID kernel.TenantID, email string) (*member.Membership, error) {
	m, ok := f.rows[mkey(tenantID, email)]
	if !ok {
		return nil, member.ErrMemberNotFound()
	}
	return m, nil
}

func (f *fakeMembers) FindByUser(context.Context, kernel.TenantID, kernel.UserID) (*member.Membership, error) {
	return nil, member.ErrMemberNotFound()
}

func (f *fakeMembers) FindByTenant(context.Context, kernel.TenantID) ([]*member.Membership, error) {
	return nil, nil
}

func (f *fakeMembers) Save(context.Context, member.Membership) error { return nil }

func (f *fakeMembers) UpdateStatus(context.Context, kernel.TenantID, kernel.UserID, member.Status) error {
	return nil
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	var xerr *errx.Error
	if !errx.As(err, &xerr) {
		t.Fatalf("expected *errx.Error, got %T: %v", err, err)
	}
	return xerr.Code
}

func newFixture(t *testing.T) (*authsrv.AuthService, *fakeUsers, *fakeMembers, *session.Manager) {
	t.Helper()
	users := &fakeUsers{byEmail: make(map[string]*user.User)}
	members := &fakeMembers{rows: make(map[string]*member.Membership)}
	signer := cryptox.NewIdentitySigner("login-test-key", "")
	sessions := session.NewManager(signer, time.Hour, false)
	return authsrv.NewAuthService(users, members, sessions), users, members, sessions
}

func seed(users *fakeUsers, members *fakeMembers, tenantID kernel.TenantID, email, password string) {
	u := &user.User{ID: kernel.NewUserID("u-1"), Email: email}
	_ = u.SetPassword(password)
	users.byEmail[email] = u
	members.rows[mkey(tenantID, email)] = &member.Membership{
		TenantID: tenantID,
		UserID:   u.ID,
		Email:    email,
		Role:     member.RoleOwner,
		Status:   member.StatusActive,
	}
}

func TestLoginIssuesReadableSession(t *testing.T) {
	svc, users, members, sessions := newFixture(t)
	tenantID := kernel.NewTenantID("acme")
	seed(users, members, tenantID, "ana@example.com", "correct-horse")

	actor, cookieValue, err := svc.Login(context.Background(), tenantID, "ana@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if actor.TenantID != tenantID || actor.Email != "ana@example.com" {
		t.Fatalf("unexpected actor %+v", actor)
	}

	identity, ok := sessions.Read(cookieValue)
	if !ok {
		t.Fatal("issued session does not verify")
	}
	if identity.TenantID != tenantID || identity.Email != "ana@example.com" {
		t.Fatalf("session identity mismatch: %+v", identity)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	svc, users, members, _ := newFixture(t)
	tenantID := kernel.NewTenantID("acme")
	seed(users, members, tenantID, "ana@example.com", "correct-horse")

	cases := map[string]struct {
		tenant   kernel.TenantID
		email    string
		password string
	}{
		"unknown email":  {tenantID, "ghost@example.com", "whatever"},
		"wrong password": {tenantID, "ana@example.com", "wrong"},
		"no membership":  {kernel.NewTenantID("otro"), "ana@example.com", "correct-horse"},
	}

	for name, c := range cases {
		_, _, err := svc.Login(context.Background(), c.tenant, c.email, c.password)
		if err == nil {
			t.Fatalf("%s: login should fail", name)
		}
		if code := errCode(t, err); code != "USER_BAD_CREDENTIAL" {
			t.Fatalf("%s: expected USER_BAD_CREDENTIAL, got %s", name, code)
		}
		var xerr *errx.Error
		errx.As(err, &xerr)
		if xerr.Message != "Authentication required" {
			t.Fatalf("%s: failure message must be uniform, got %q", name, xerr.Message)
		}
	}
}

func TestLoginStorageErrorIsNotADenial(t *testing.T) {
	svc, users, _, _ := newFixture(t)
	users.failWith = errors.New("connection reset")

	_, _, err := svc.Login(context.Background(), kernel.NewTenantID("acme"), "ana@example.com", "pw")
	if err == nil {
		t.Fatal("storage failure must surface")
	}
	if code := errCode(t, err); code != "IAM_STORAGE_ERROR" {
		t.Fatalf("expected IAM_STORAGE_ERROR, got %s", code)
	}
}
