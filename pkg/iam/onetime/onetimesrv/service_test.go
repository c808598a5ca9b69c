package onetimesrv_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/cryptox"
	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam/member"
	"github.com/Abraxas-365/gatekit/pkg/iam/onetime"
	"github.com/Abraxas-365/gatekit/pkg/iam/onetime/onetimesrv"
	"github.com/Abraxas-365/gatekit/pkg/iam/user"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/Abraxas-365/gatekit/pkg/notifx"
	"github.com/jmoiron/sqlx"
)

// fakeGrants is an in-memory onetime.Repository. Consume mirrors the
// transactional semantics of the real repository: the grant is only cleared
// when apply succeeds.
type fakeGrants struct {
	mu     sync.Mutex
	grants map[string]*onetime.Grant // keyed by subject_key
}

func newFakeGrants() *fakeGrants {
	return &fakeGrants{grants: make(map[string]*onetime.Grant)}
}

func (f *fakeGrants) Upsert(_ context.Context, g onetime.Grant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.ConsumedAt = nil
	f.grants[g.SubjectKey] = &g
	return nil
}

func (f *fakeGrants) Consume(ctx context.Context, digest string, apply onetime.ApplyFunc) (*onetime.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.grants {
		if g.TokenHash == nil || !cryptox.SecureCompare(*g.TokenHash, digest) {
			continue
		}
		if g.IsExpired() {
			return nil, onetime.ErrInvalidOrExpired()
		}
		if apply != nil {
			if err := apply(ctx, nil, g); err != nil {
				return nil, err
			}
		}
		now := time.Now()
		g.TokenHash = nil
		g.ExpiresAt = nil
		g.ConsumedAt = &now
		return g, nil
	}
	return nil, onetime.ErrInvalidOrExpired()
}

func (f *fakeGrants) DeleteExpired(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, g := range f.grants {
		if !g.IsConsumed() && g.IsExpired() {
			delete(f.grants, k)
			n++
		}
	}
	return n, nil
}

type fakeUsers struct {
	byEmail map[string]*user.User
}

func (f *fakeUsers) FindByID(context.Context, kernel.UserID) (*user.User, error) {
	return nil, user.ErrUserNotFound()
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*user.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, user.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUsers) Save(_ context.Context, u user.User) error {
	f.byEmail[u.Email] = &u
	return nil
}

type fakeMembers struct {
	rows map[string]*member.Membership
}

func memberKey(tenantID kernel.TenantID, email string) string {
	return tenantID.String() + "|" + email
}

func (f *fakeMembers) FindByIdentity(_ context.Context, tenantID kernel.TenantID, email string) (*member.Membership, error) {
	m, ok := f.rows[memberKey(tenantID, email)]
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

func (f *fakeMembers) Save(_ context.Context, m member.Membership) error {
	k := memberKey(m.TenantID, m.Email)
	if _, exists := f.rows[k]; exists {
		return member.ErrAlreadyExists()
	}
	f.rows[k] = &m
	return nil
}

func (f *fakeMembers) UpdateStatus(context.Context, kernel.TenantID, kernel.UserID, member.Status) error {
	return nil
}

// fakeApplier applies the consume-time state changes against the in-memory
// fakes instead of a SQL transaction.
type fakeApplier struct {
	users   *fakeUsers
	members *fakeMembers
}

func (f *fakeApplier) ApplyPasswordReset(_ context.Context, _ *sqlx.Tx, email, passwordHash string) error {
	u, ok := f.users.byEmail[email]
	if !ok {
		return user.ErrUserNotFound()
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeApplier) ApplyInviteAcceptance(_ context.Context, _ *sqlx.Tx, tenantID kernel.TenantID, email, name, passwordHash string) (kernel.UserID, error) {
	u, ok := f.users.byEmail[email]
	if !ok {
		u = &user.User{ID: kernel.NewUserID("u-" + email), Email: email, Name: name, PasswordHash: passwordHash}
		f.users.byEmail[email] = u
	}
	m, ok := f.members.rows[memberKey(tenantID, email)]
	if !ok {
		return "", member.ErrMemberNotFound()
	}
	m.UserID = u.ID
	m.Status = member.StatusActive
	return u.ID, nil
}

// capturingMailer records every email and the template data sent with it.
type capturingMailer struct {
	mu   sync.Mutex
	sent []sentEmail
}

type sentEmail struct {
	template string
	data     interface{}
	msg      notifx.EmailMessage
}

func (m *capturingMailer) SendTemplatedEmail(_ context.Context, templateName string, data interface{}, msg notifx.EmailMessage, _ ...notifx.Option) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{template: templateName, data: data, msg: msg})
	return nil
}

// waitForEmails polls until n emails were dispatched; issuance sends them
// from a background goroutine.
func (m *capturingMailer) waitForEmails(t *testing.T, n int) []sentEmail {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		if len(m.sent) >= n {
			out := append([]sentEmail(nil), m.sent...)
			m.mu.Unlock()
			return out
		}
		m.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d emails, timed out", n)
	return nil
}

// extractToken pulls the raw secret out of the emailed link.
func extractToken(t *testing.T, sent sentEmail) string {
	t.Helper()
	rendered := fmt.Sprintf("%+v", sent.data)
	_, rest, ok := strings.Cut(rendered, "token=")
	if !ok {
		t.Fatalf("no token in template data %q", rendered)
	}
	token, _, _ := strings.Cut(rest, " ")
	return token
}

type fixture struct {
	grants  *fakeGrants
	users   *fakeUsers
	members *fakeMembers
	mailer  *capturingMailer
	svc     *onetimesrv.TokenService
}

func newFixture() *fixture {
	grants := newFakeGrants()
	users := &fakeUsers{byEmail: make(map[string]*user.User)}
	members := &fakeMembers{rows: make(map[string]*member.Membership)}
	mailer := &capturingMailer{}
	applier := &fakeApplier{users: users, members: members}
	svc := onetimesrv.NewTokenService(grants, users, members, applier, mailer, "https://app.example.com")
	return &fixture{grants: grants, users: users, members: members, mailer: mailer, svc: svc}
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	var xerr *errx.Error
	if !errx.As(err, &xerr) {
		t.Fatalf("expected *errx.Error, got %T: %v", err, err)
	}
	return xerr.Code
}

func addUser(f *fixture, email, password string) {
	u := &user.User{ID: kernel.NewUserID("u-" + email), Email: email}
	_ = u.SetPassword(password)
	f.users.byEmail[email] = u
}

func TestPasswordResetRoundTrip(t *testing.T) {
	f := newFixture()
	addUser(f, "ana@example.com", "old-password")
	ctx := context.Background()

	if err := f.svc.IssuePasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("IssuePasswordReset: %v", err)
	}

	sent := f.mailer.waitForEmails(t, 1)
	if sent[0].template != onetimesrv.TemplateNamePasswordReset {
		t.Fatalf("expected reset template, got %q", sent[0].template)
	}
	if sent[0].msg.To[0] != "ana@example.com" {
		t.Fatalf("email sent to %q", sent[0].msg.To[0])
	}

	token := extractToken(t, sent[0])
	if err := f.svc.ConfirmPasswordReset(ctx, token, "new-password-123"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}

	u := f.users.byEmail["ana@example.com"]
	if !u.CheckPassword("new-password-123") {
		t.Fatal("password was not updated")
	}
	if u.CheckPassword("old-password") {
		t.Fatal("old password still valid")
	}
}

func TestPasswordResetTokenIsSingleUse(t *testing.T) {
	f := newFixture()
	addUser(f, "ana@example.com", "old-password")
	ctx := context.Background()

	if err := f.svc.IssuePasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("IssuePasswordReset: %v", err)
	}
	token := extractToken(t, f.mailer.waitForEmails(t, 1)[0])

	if err := f.svc.ConfirmPasswordReset(ctx, token, "new-password-123"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	err := f.svc.ConfirmPasswordReset(ctx, token, "another-password")
	if err == nil {
		t.Fatal("second confirm should fail")
	}
	if code := errCode(t, err); code != "ONETIME_INVALID_OR_EXPIRED" {
		t.Fatalf("expected ONETIME_INVALID_OR_EXPIRED, got %s", code)
	}
	if !f.users.byEmail["ana@example.com"].CheckPassword("new-password-123") {
		t.Fatal("replay changed the password")
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	f := newFixture()

	if err := f.svc.IssuePasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	f.mailer.mu.Lock()
	defer f.mailer.mu.Unlock()
	if len(f.mailer.sent) != 0 {
		t.Fatalf("no email should be sent for unknown accounts, got %d", len(f.mailer.sent))
	}
}

func TestPasswordResetReissueInvalidatesPrevious(t *testing.T) {
	f := newFixture()
	addUser(f, "ana@example.com", "old-password")
	ctx := context.Background()

	if err := f.svc.IssuePasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	first := extractToken(t, f.mailer.waitForEmails(t, 1)[0])

	if err := f.svc.IssuePasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("second issue: %v", err)
	}
	second := extractToken(t, f.mailer.waitForEmails(t, 2)[1])

	err := f.svc.ConfirmPasswordReset(ctx, first, "new-password-123")
	if err == nil {
		t.Fatal("superseded token should be rejected")
	}
	if code := errCode(t, err); code != "ONETIME_INVALID_OR_EXPIRED" {
		t.Fatalf("expected ONETIME_INVALID_OR_EXPIRED, got %s", code)
	}

	if err := f.svc.ConfirmPasswordReset(ctx, second, "new-password-123"); err != nil {
		t.Fatalf("latest token must work: %v", err)
	}
}

func TestConfirmPasswordResetRejectsShortPassword(t *testing.T) {
	f := newFixture()

	err := f.svc.ConfirmPasswordReset(context.Background(), "whatever", "short")
	if err == nil {
		t.Fatal("short password should be rejected")
	}
	var xerr *errx.Error
	if !errx.As(err, &xerr) || xerr.Type != errx.TypeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInviteRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tenantID := kernel.NewTenantID("acme")

	if err := f.svc.IssueInvite(ctx, tenantID, "nuevo@example.com", member.RoleMember); err != nil {
		t.Fatalf("IssueInvite: %v", err)
	}

	m, err := f.members.FindByIdentity(ctx, tenantID, "nuevo@example.com")
	if err != nil {
		t.Fatalf("pending membership not created: %v", err)
	}
	if m.Status != member.StatusPending {
		t.Fatalf("expected pending, got %s", m.Status)
	}

	sent := f.mailer.waitForEmails(t, 1)
	if sent[0].template != onetimesrv.TemplateNameInvite {
		t.Fatalf("expected invite template, got %q", sent[0].template)
	}
	token := extractToken(t, sent[0])

	identity, err := f.svc.AcceptInvite(ctx, token, "Nuevo Usuario", "strong-password")
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if identity.TenantID != tenantID || identity.Email != "nuevo@example.com" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	m, _ = f.members.FindByIdentity(ctx, tenantID, "nuevo@example.com")
	if m.Status != member.StatusActive {
		t.Fatalf("membership not activated, got %s", m.Status)
	}
	if _, ok := f.users.byEmail["nuevo@example.com"]; !ok {
		t.Fatal("user account was not created")
	}
}

func TestInviteTokenIsSingleUse(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tenantID := kernel.NewTenantID("acme")

	if err := f.svc.IssueInvite(ctx, tenantID, "nuevo@example.com", member.RoleMember); err != nil {
		t.Fatalf("IssueInvite: %v", err)
	}
	token := extractToken(t, f.mailer.waitForEmails(t, 1)[0])

	if _, err := f.svc.AcceptInvite(ctx, token, "Nuevo", "strong-password"); err != nil {
		t.Fatalf("first accept: %v", err)
	}

	_, err := f.svc.AcceptInvite(ctx, token, "Nuevo", "strong-password")
	if err == nil {
		t.Fatal("second accept should fail")
	}
	if code := errCode(t, err); code != "ONETIME_INVALID_OR_EXPIRED" {
		t.Fatalf("expected ONETIME_INVALID_OR_EXPIRED, got %s", code)
	}
}

func TestInviteActiveMemberRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tenantID := kernel.NewTenantID("acme")
	f.members.rows[memberKey(tenantID, "dueno@example.com")] = &member.Membership{
		TenantID: tenantID,
		Email:    "dueno@example.com",
		Role:     member.RoleOwner,
		Status:   member.StatusActive,
	}

	err := f.svc.IssueInvite(ctx, tenantID, "dueno@example.com", member.RoleMember)
	if err == nil {
		t.Fatal("inviting an active member should fail")
	}
	if code := errCode(t, err); code != "MEMBER_ALREADY_EXISTS" {
		t.Fatalf("expected MEMBER_ALREADY_EXISTS, got %s", code)
	}
}

func TestReinvitePendingMemberRenewsToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tenantID := kernel.NewTenantID("acme")

	if err := f.svc.IssueInvite(ctx, tenantID, "nuevo@example.com", member.RoleMember); err != nil {
		t.Fatalf("first invite: %v", err)
	}
	first := extractToken(t, f.mailer.waitForEmails(t, 1)[0])

	if err := f.svc.IssueInvite(ctx, tenantID, "nuevo@example.com", member.RoleMember); err != nil {
		t.Fatalf("re-invite of pending member: %v", err)
	}
	second := extractToken(t, f.mailer.waitForEmails(t, 2)[1])

	if _, err := f.svc.AcceptInvite(ctx, first, "Nuevo", "strong-password"); err == nil {
		t.Fatal("superseded invite token should be rejected")
	}
	if _, err := f.svc.AcceptInvite(ctx, second, "Nuevo", "strong-password"); err != nil {
		t.Fatalf("latest invite token must work: %v", err)
	}
}

func TestResetTokenRejectedOnInviteEndpoint(t *testing.T) {
	f := newFixture()
	addUser(f, "ana@example.com", "old-password")
	ctx := context.Background()

	if err := f.svc.IssuePasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("IssuePasswordReset: %v", err)
	}
	token := extractToken(t, f.mailer.waitForEmails(t, 1)[0])

	_, err := f.svc.AcceptInvite(ctx, token, "Ana", "strong-password")
	if err == nil {
		t.Fatal("reset token must not accept an invite")
	}
	if code := errCode(t, err); code != "ONETIME_INVALID_OR_EXPIRED" {
		t.Fatalf("expected ONETIME_INVALID_OR_EXPIRED, got %s", code)
	}

	// el cruce de propósitos no consume el token
	if err := f.svc.ConfirmPasswordReset(ctx, token, "new-password-123"); err != nil {
		t.Fatalf("token should still be usable for its real purpose: %v", err)
	}
}

func TestFailedApplyLeavesTokenUsable(t *testing.T) {
	f := newFixture()
	addUser(f, "ana@example.com", "old-password")
	ctx := context.Background()

	if err := f.svc.IssuePasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("IssuePasswordReset: %v", err)
	}
	token := extractToken(t, f.mailer.waitForEmails(t, 1)[0])

	// simulate the account disappearing between issue and confirm
	delete(f.users.byEmail, "ana@example.com")
	if err := f.svc.ConfirmPasswordReset(ctx, token, "new-password-123"); err == nil {
		t.Fatal("apply should fail when the user is gone")
	}

	// the failed apply must not have consumed the token
	addUser(f, "ana@example.com", "old-password")
	if err := f.svc.ConfirmPasswordReset(ctx, token, "new-password-123"); err != nil {
		t.Fatalf("token should survive a failed apply: %v", err)
	}
}

func TestCleanExpired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	digest := cryptox.HashSecret("stale-secret")
	_ = f.grants.Upsert(ctx, onetime.Grant{
		SubjectKey: onetime.PasswordResetSubject("vieja@example.com"),
		Purpose:    onetime.PurposePasswordReset,
		TokenHash:  &digest,
		ExpiresAt:  &past,
		CreatedAt:  past,
	})

	deleted, err := f.svc.CleanExpired(ctx)
	if err != nil {
		t.Fatalf("CleanExpired: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted grant, got %d", deleted)
	}
}
