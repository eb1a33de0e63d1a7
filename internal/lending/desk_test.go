// ABOUTME: End-to-end tests for the lending desk over a temp-dir SQLite store
// ABOUTME: Covers login, policy gating, activity recording, tokens and export

package lending

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/lendtrack/internal/auth"
	"github.com/2389/lendtrack/internal/identity"
	"github.com/2389/lendtrack/internal/ledger"
	"github.com/2389/lendtrack/internal/policy"
	"github.com/2389/lendtrack/internal/report"
	"github.com/2389/lendtrack/internal/store"
)

type fixture struct {
	desk  *Desk
	store *store.SQLiteStore
	admin *Session
	now   time.Time
}

func (f *fixture) clock() time.Time { return f.now }

func setupDesk(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{store: s, now: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
	f.desk = NewDesk(s,
		WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)),
		WithSessionTokens([]byte("test-session-secret"), time.Hour),
		WithClock(f.clock),
	)

	ctx := context.Background()
	created, err := f.desk.Bootstrap(ctx)
	require.NoError(t, err)
	require.True(t, created)

	f.admin, err = f.desk.Login(ctx, "admin", "123")
	require.NoError(t, err)

	for _, in := range []identity.RegisterInput{
		{ID: "ADM", DisplayName: "Second Admin", Role: store.RoleAdministrator, Secret: "adm"},
		{ID: "P1", DisplayName: "Professor", Role: store.RoleStaff, Secret: "p1"},
		{ID: "S100", DisplayName: "Student 100", Role: store.RoleBorrower, Secret: "s100"},
		{ID: "S200", DisplayName: "Student 200", Role: store.RoleBorrower, Secret: "s200"},
	} {
		require.NoError(t, f.admin.RegisterIdentity(ctx, in))
	}
	require.NoError(t, f.admin.RegisterAsset(ctx, "NB-01", "Lenovo", "T14"))
	require.NoError(t, f.admin.RegisterAsset(ctx, "NB-02", "Dell", "Latitude"))

	return f
}

func (f *fixture) login(t *testing.T, id, secret string) *Session {
	t.Helper()
	sess, err := f.desk.Login(context.Background(), id, secret)
	require.NoError(t, err)
	return sess
}

func (f *fixture) status(t *testing.T, tag string) store.AssetStatus {
	t.Helper()
	a, err := f.store.GetAsset(context.Background(), tag)
	require.NoError(t, err)
	return a.Status
}

func (f *fixture) loanCount(t *testing.T) int {
	t.Helper()
	loans, err := f.store.ListLoans(context.Background(), store.LoanFilter{})
	require.NoError(t, err)
	return len(loans)
}

func TestLogin(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	sess := f.login(t, "P1", "p1")
	assert.Equal(t, "P1", sess.Actor().IdentityID)
	assert.Equal(t, store.RoleStaff, sess.Actor().Role)
	assert.NotEmpty(t, sess.Actor().SessionID)
	assert.False(t, sess.MustRotate())

	_, err := f.desk.Login(ctx, "P1", "wrong")
	assert.ErrorIs(t, err, identity.ErrAuthenticationFailed)
	_, err = f.desk.Login(ctx, "ghost", "p1")
	assert.ErrorIs(t, err, identity.ErrAuthenticationFailed)
}

func TestLogin_DefaultAdminMustRotate(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	assert.True(t, f.admin.MustRotate())

	require.NoError(t, f.admin.ChangeSecret(ctx, "admin", "a-long-new-secret"))
	assert.False(t, f.admin.MustRotate())

	again := f.login(t, "admin", "a-long-new-secret")
	assert.False(t, again.MustRotate())
}

func TestLogin_SessionsAreDistinct(t *testing.T) {
	f := setupDesk(t)

	a := f.login(t, "P1", "p1")
	b := f.login(t, "P1", "p1")
	assert.NotEqual(t, a.Actor().SessionID, b.Actor().SessionID)
}

func TestCheckoutScenario_StaffSession(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()
	staff := f.login(t, "P1", "p1")

	first, err := staff.Checkout(ctx, "NB-01", "S100", 7)
	require.NoError(t, err)
	assert.Equal(t, store.StatusOnLoan, f.status(t, "NB-01"))

	loan, err := f.store.GetLoan(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "P1", loan.IssuerID, "issuer is the session identity")
	assert.Equal(t, 7*24*time.Hour, loan.DueAt.Sub(loan.IssuedAt))

	_, err = staff.Checkout(ctx, "NB-01", "S200", 3)
	assert.ErrorIs(t, err, store.ErrAssetUnavailable)

	_, err = staff.CheckIn(ctx, "NB-01")
	require.NoError(t, err)
	assert.Equal(t, store.StatusAvailable, f.status(t, "NB-01"))

	second, err := staff.Checkout(ctx, "NB-01", "S200", 3)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestCheckout_InvalidDaysRejected(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	for _, days := range []int{0, -2, ledger.MaxDurationDays + 1} {
		_, err := f.admin.Checkout(ctx, "NB-02", "S100", days)
		assert.ErrorIs(t, err, ledger.ErrInvalidDuration, "days=%d", days)
	}
	assert.Equal(t, store.StatusAvailable, f.status(t, "NB-02"))
	assert.Equal(t, 0, f.loanCount(t))

	id, err := f.admin.Checkout(ctx, "NB-02", "S100", 7)
	require.NoError(t, err)

	loan, err := f.admin.Loan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, loan.DueAt.Sub(loan.IssuedAt))
}

func TestSession_Loan(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	id, err := f.admin.Checkout(ctx, "NB-01", "S100", 3)
	require.NoError(t, err)

	borrower := f.login(t, "S100", "s100")
	loan, err := borrower.Loan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "NB-01", loan.AssetTag)

	_, err = borrower.Loan(ctx, id+100)
	assert.ErrorIs(t, err, store.ErrLoanNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDemotionAppliesToOpenSession(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()
	staff := f.login(t, "P1", "p1")

	require.NoError(t, f.admin.UpdateIdentity(ctx, "P1", "Professor", store.RoleBorrower))

	_, err := staff.Checkout(ctx, "NB-01", "S100", 3)
	require.ErrorIs(t, err, policy.ErrPermissionDenied)
	assert.Equal(t, store.StatusAvailable, f.status(t, "NB-01"))
	assert.Equal(t, 0, f.loanCount(t))
	assert.Equal(t, store.RoleBorrower, staff.Actor().Role)

	// Promotion applies the same way.
	require.NoError(t, f.admin.UpdateIdentity(ctx, "P1", "Professor", store.RoleStaff))
	_, err = staff.Checkout(ctx, "NB-01", "S100", 3)
	require.NoError(t, err)
}

func TestBorrowerCheckoutDenied_NoStateChange(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()
	borrower := f.login(t, "S100", "s100")

	before, err := f.store.ListActivity(ctx, 1000)
	require.NoError(t, err)

	_, err = borrower.Checkout(ctx, "NB-01", "S100", 7)
	require.ErrorIs(t, err, policy.ErrPermissionDenied)

	assert.Equal(t, store.StatusAvailable, f.status(t, "NB-01"))
	assert.Equal(t, 0, f.loanCount(t))

	after, err := f.store.ListActivity(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after), "denied call records nothing")
}

func TestBorrowerDeniedMutations(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()
	borrower := f.login(t, "S100", "s100")

	_, err := f.admin.Checkout(ctx, "NB-02", "S200", 1)
	require.NoError(t, err)

	checks := map[string]error{
		"check_in":          func() error { _, err := borrower.CheckIn(ctx, "NB-02"); return err }(),
		"register_asset":    borrower.RegisterAsset(ctx, "NB-09", "x", "y"),
		"set_asset_status":  borrower.SetAssetStatus(ctx, "NB-01", store.StatusDamaged),
		"update_asset":      borrower.UpdateAsset(ctx, "NB-01", "x", "y"),
		"register_identity": borrower.RegisterIdentity(ctx, identity.RegisterInput{ID: "X", DisplayName: "X", Role: store.RoleAdministrator, Secret: "x"}),
		"update_identity":   borrower.UpdateIdentity(ctx, "S100", "Me", store.RoleAdministrator),
		"change_other":      borrower.ChangeSecret(ctx, "S200", "hacked"),
	}
	for name, err := range checks {
		assert.ErrorIs(t, err, policy.ErrPermissionDenied, name)
	}

	assert.Equal(t, store.StatusOnLoan, f.status(t, "NB-02"))
	assert.Equal(t, store.StatusAvailable, f.status(t, "NB-01"))
	me, err := f.store.GetIdentity(ctx, "S100")
	require.NoError(t, err)
	assert.Equal(t, store.RoleBorrower, me.Role)
	_, err = f.store.GetAsset(ctx, "NB-09")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStaffCannotAdminister(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()
	staff := f.login(t, "P1", "p1")

	assert.ErrorIs(t, staff.RegisterAsset(ctx, "NB-03", "x", "y"), policy.ErrPermissionDenied)
	assert.ErrorIs(t, staff.SetAssetStatus(ctx, "NB-01", store.StatusMaintenance), policy.ErrPermissionDenied)
	_, err := staff.Activity(ctx, 10)
	assert.ErrorIs(t, err, policy.ErrPermissionDenied)
	_, err = staff.Reconcile(ctx)
	assert.ErrorIs(t, err, policy.ErrPermissionDenied)

	people, err := staff.Identities(ctx)
	require.NoError(t, err)
	assert.Len(t, people, 5)
}

func TestBorrowerCanRead(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()
	_, err := f.admin.Checkout(ctx, "NB-01", "S100", 1)
	require.NoError(t, err)

	borrower := f.login(t, "S100", "s100")

	found, err := borrower.Search(ctx, "", ledger.ScopeAll)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	history, err := borrower.History(ctx, "NB-01")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assets, err := borrower.Assets(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, assets, 2)

	_, err = borrower.Identities(ctx)
	assert.ErrorIs(t, err, policy.ErrPermissionDenied)
	_, err = borrower.Export(ctx, &bytes.Buffer{}, report.FormatCSV, "", ledger.ScopeAll)
	assert.ErrorIs(t, err, policy.ErrPermissionDenied)
}

func TestSetAssetStatusWhileOnLoan(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	_, err := f.admin.Checkout(ctx, "NB-01", "S100", 7)
	require.NoError(t, err)

	err = f.admin.SetAssetStatus(ctx, "NB-01", store.StatusDamaged)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	assert.Equal(t, store.StatusOnLoan, f.status(t, "NB-01"))

	_, err = f.admin.CheckIn(ctx, "NB-01")
	require.NoError(t, err)

	require.NoError(t, f.admin.SetAssetStatus(ctx, "NB-01", store.StatusDamaged))
	assert.Equal(t, store.StatusDamaged, f.status(t, "NB-01"))

	_, err = f.admin.Checkout(ctx, "NB-01", "S100", 7)
	assert.ErrorIs(t, err, store.ErrAssetUnavailable)
}

func TestUpdateIdentity_BootstrapProtected(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	err := f.admin.UpdateIdentity(ctx, "admin", "Renamed", store.RoleBorrower)
	assert.ErrorIs(t, err, ErrProtectedIdentity)

	require.NoError(t, f.admin.UpdateIdentity(ctx, "S100", "Renamed", store.RoleStaff))
	got, err := f.store.GetIdentity(ctx, "S100")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.DisplayName)
	assert.Equal(t, store.RoleStaff, got.Role)
}

func TestChangeSecret_Self(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()
	borrower := f.login(t, "S100", "s100")

	require.NoError(t, borrower.ChangeSecret(ctx, "S100", "fresh"))

	_, err := f.desk.Login(ctx, "S100", "s100")
	assert.ErrorIs(t, err, identity.ErrAuthenticationFailed)
	f.login(t, "S100", "fresh")
}

func TestActivityRecorded(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()
	staff := f.login(t, "P1", "p1")

	loanID, err := staff.Checkout(ctx, "NB-01", "S100", 3)
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)
	_, err = staff.CheckIn(ctx, "NB-01")
	require.NoError(t, err)

	recent, err := f.admin.Activity(ctx, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(recent), 3)

	assert.Equal(t, "P1", recent[0].ActorID)
	assert.Contains(t, recent[0].Description, "Checked in NB-01")
	assert.Equal(t, staff.Actor().SessionID, recent[0].SessionID)
	assert.Equal(t, fmt.Sprintf("Checked out NB-01 to S100 for 3 days (loan %d)", loanID), recent[1].Description)
	assert.Equal(t, "Login", recent[2].Description)
	assert.Equal(t, "P1", recent[2].ActorID)
}

func TestOverdue(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	_, err := f.admin.Checkout(ctx, "NB-01", "S100", 1)
	require.NoError(t, err)
	_, err = f.admin.Checkout(ctx, "NB-02", "S200", 5)
	require.NoError(t, err)

	f.now = f.now.Add(24 * time.Hour)
	n, err := f.admin.CountOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f.now = f.now.Add(time.Microsecond)
	n, err = f.admin.CountOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	overdue, err := f.admin.Overdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "NB-01", overdue[0].AssetTag)
	assert.True(t, f.admin.IsOverdue(overdue[0]))
}

func TestResume(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()
	staff := f.login(t, "P1", "p1")

	token, err := staff.Token()
	require.NoError(t, err)

	resumed, err := f.desk.Resume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "P1", resumed.Actor().IdentityID)
	assert.Equal(t, staff.Actor().SessionID, resumed.Actor().SessionID)

	// A demotion applies to the next resumed session.
	require.NoError(t, f.admin.UpdateIdentity(ctx, "P1", "Professor", store.RoleBorrower))
	demoted, err := f.desk.Resume(ctx, token)
	require.NoError(t, err)
	_, err = demoted.Checkout(ctx, "NB-01", "S100", 1)
	assert.ErrorIs(t, err, policy.ErrPermissionDenied)

	_, err = f.desk.Resume(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestResume_WithoutSecret(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	desk := NewDesk(s, WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)))
	_, err = desk.Bootstrap(context.Background())
	require.NoError(t, err)
	sess, err := desk.Login(context.Background(), "admin", "123")
	require.NoError(t, err)

	_, err = sess.Token()
	assert.ErrorIs(t, err, ErrNoSessionSecret)
	_, err = desk.Resume(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNoSessionSecret)
}

func TestReconcile(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	_, err := f.admin.Checkout(ctx, "NB-01", "S100", 1)
	require.NoError(t, err)
	require.NoError(t, f.store.SetAssetStatus(ctx, "NB-01", store.StatusAvailable, nil))

	repairs, err := f.admin.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, repairs, 1)
	assert.Equal(t, store.StatusRepair{Tag: "NB-01", From: store.StatusAvailable, To: store.StatusOnLoan}, repairs[0])
	assert.Equal(t, store.StatusOnLoan, f.status(t, "NB-01"))
}

func TestExport(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	_, err := f.admin.Checkout(ctx, "NB-01", "S100", 1)
	require.NoError(t, err)
	_, err = f.admin.Checkout(ctx, "NB-02", "S200", 1)
	require.NoError(t, err)
	_, err = f.admin.CheckIn(ctx, "NB-02")
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := f.admin.Export(ctx, &buf, report.FormatCSV, "", ledger.ScopeOpenOnly)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "loan_id,asset_tag"))
	assert.Contains(t, lines[1], "NB-01")

	buf.Reset()
	n, err = f.admin.Export(ctx, &buf, report.FormatHTML, "s200", ledger.ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), "<td>NB-02</td>")
}

func TestDesk_InMemoryStore(t *testing.T) {
	ctx := context.Background()
	d := NewDesk(store.NewMockStore(), WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)))

	created, err := d.Bootstrap(ctx)
	require.NoError(t, err)
	require.True(t, created)

	admin, err := d.Login(ctx, "admin", "123")
	require.NoError(t, err)
	require.NoError(t, admin.RegisterIdentity(ctx, identity.RegisterInput{ID: "S1", DisplayName: "Student", Role: store.RoleBorrower, Secret: "s1"}))
	require.NoError(t, admin.RegisterAsset(ctx, "TAB-1", "Apple", "iPad"))

	id, err := admin.Checkout(ctx, "TAB-1", "S1", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = admin.Checkout(ctx, "TAB-1", "S1", 1)
	assert.ErrorIs(t, err, store.ErrAssetUnavailable)

	loan, err := admin.CheckIn(ctx, "TAB-1")
	require.NoError(t, err)
	assert.False(t, loan.IsOpen())

	_, err = admin.Token()
	assert.ErrorIs(t, err, ErrNoSessionSecret)
}
