// ABOUTME: Authenticated session: every operation is checked against the access policy
// ABOUTME: Successful mutations are recorded in the activity log under the session's actor

package lending

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/2389/lendtrack/internal/auth"
	"github.com/2389/lendtrack/internal/identity"
	"github.com/2389/lendtrack/internal/ledger"
	"github.com/2389/lendtrack/internal/policy"
	"github.com/2389/lendtrack/internal/report"
	"github.com/2389/lendtrack/internal/store"
)

// Session is a logged-in identity acting on the desk. It is not safe for
// concurrent use.
type Session struct {
	desk       *Desk
	identity   *store.Identity
	actor      auth.Actor
	mustRotate bool
}

// Identity returns the logged-in identity as read at login or resume.
func (s *Session) Identity() *store.Identity {
	return s.identity
}

// Actor returns who is acting.
func (s *Session) Actor() auth.Actor {
	return s.actor
}

// MustRotate reports whether this is the bootstrap administrator still on
// the default secret.
func (s *Session) MustRotate() bool {
	return s.mustRotate
}

// Token returns a signed token that Desk.Resume accepts.
func (s *Session) Token() (string, error) {
	if s.desk.tokens == nil {
		return "", ErrNoSessionSecret
	}
	return s.desk.tokens.Generate(s.actor.IdentityID, s.actor.SessionID, s.desk.sessionTTL)
}

// Logout records the end of the session.
func (s *Session) Logout(ctx context.Context) {
	s.desk.activity.Record(s.context(ctx), s.actor.IdentityID, "Logout")
}

func (s *Session) context(ctx context.Context) context.Context {
	return auth.WithActor(ctx, &s.actor)
}

// require is the policy gate run before any other store access. The role
// is re-read first, so a demotion applies to sessions already open.
func (s *Session) require(ctx context.Context, op policy.Operation) error {
	ident, err := s.desk.identities.Get(ctx, s.actor.IdentityID)
	if errors.Is(err, store.ErrNotFound) {
		return identity.ErrAuthenticationFailed
	}
	if err != nil {
		return err
	}
	s.identity = ident
	s.actor.Role = ident.Role

	if err := policy.Check(s.actor.Role, op); err != nil {
		s.desk.logger.Warn("operation denied", "id", s.actor.IdentityID, "role", s.actor.Role, "op", op)
		return err
	}
	return nil
}

// record must be given a context built by s.context.
func (s *Session) record(ctx context.Context, format string, args ...any) {
	actor := auth.MustFromContext(ctx)
	s.desk.activity.Record(ctx, actor.IdentityID, fmt.Sprintf(format, args...))
}

// Checkout lends tag to borrowerID for days days, issued by this session's
// identity. days outside 1..ledger.MaxDurationDays is ErrInvalidDuration.
func (s *Session) Checkout(ctx context.Context, tag, borrowerID string, days int) (int64, error) {
	if err := s.require(ctx, policy.OpCheckout); err != nil {
		return 0, err
	}

	ctx = s.context(ctx)
	id, err := s.desk.ledger.Checkout(ctx, ledger.CheckoutRequest{
		AssetTag:     tag,
		BorrowerID:   borrowerID,
		IssuerID:     s.actor.IdentityID,
		DurationDays: days,
	})
	if err != nil {
		return 0, err
	}

	s.record(ctx, "Checked out %s to %s for %d days (loan %d)", tag, borrowerID, days, id)
	return id, nil
}

// CheckIn closes the open loan of tag.
func (s *Session) CheckIn(ctx context.Context, tag string) (*store.Loan, error) {
	if err := s.require(ctx, policy.OpCheckIn); err != nil {
		return nil, err
	}

	ctx = s.context(ctx)
	loan, err := s.desk.ledger.CheckIn(ctx, tag)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "Checked in %s (loan %d)", tag, loan.ID)
	return loan, nil
}

// RegisterAsset adds a new available asset.
func (s *Session) RegisterAsset(ctx context.Context, tag, mk, model string) error {
	if err := s.require(ctx, policy.OpRegisterAsset); err != nil {
		return err
	}

	ctx = s.context(ctx)
	if err := s.desk.registry.Register(ctx, tag, mk, model); err != nil {
		return err
	}

	s.record(ctx, "Registered asset %s (%s %s)", tag, mk, model)
	return nil
}

// SetAssetStatus manually changes the status of tag.
func (s *Session) SetAssetStatus(ctx context.Context, tag string, status store.AssetStatus) error {
	if err := s.require(ctx, policy.OpSetAssetStatus); err != nil {
		return err
	}

	ctx = s.context(ctx)
	if err := s.desk.registry.SetStatus(ctx, tag, status); err != nil {
		return err
	}

	s.record(ctx, "Set status of %s to %s", tag, status)
	return nil
}

// UpdateAsset changes make and model of tag.
func (s *Session) UpdateAsset(ctx context.Context, tag, mk, model string) error {
	if err := s.require(ctx, policy.OpUpdateAsset); err != nil {
		return err
	}

	ctx = s.context(ctx)
	if err := s.desk.registry.UpdateDetails(ctx, tag, mk, model); err != nil {
		return err
	}

	s.record(ctx, "Updated asset %s (%s %s)", tag, mk, model)
	return nil
}

// RegisterIdentity creates a new identity.
func (s *Session) RegisterIdentity(ctx context.Context, in identity.RegisterInput) error {
	if err := s.require(ctx, policy.OpRegisterIdentity); err != nil {
		return err
	}

	ctx = s.context(ctx)
	if err := s.desk.identities.Register(ctx, in); err != nil {
		return err
	}

	s.record(ctx, "Registered %s %s", in.Role, in.ID)
	return nil
}

// UpdateIdentity changes display name and role. The bootstrap administrator
// is refused with ErrProtectedIdentity.
func (s *Session) UpdateIdentity(ctx context.Context, id, displayName string, role store.Role) error {
	if err := s.require(ctx, policy.OpUpdateIdentity); err != nil {
		return err
	}
	if id == s.desk.identities.BootstrapID() {
		return fmt.Errorf("%w: %s", ErrProtectedIdentity, id)
	}

	ctx = s.context(ctx)
	if err := s.desk.identities.UpdateProfile(ctx, id, displayName, role); err != nil {
		return err
	}

	s.record(ctx, "Updated %s (%s, %s)", id, displayName, role)
	return nil
}

// ChangeSecret sets a new secret for id. Anyone may change their own;
// changing someone else's needs update_identity.
func (s *Session) ChangeSecret(ctx context.Context, id, newSecret string) error {
	if id != s.actor.IdentityID {
		if err := s.require(ctx, policy.OpUpdateIdentity); err != nil {
			return err
		}
	}

	ctx = s.context(ctx)
	if err := s.desk.identities.ChangeSecret(ctx, id, newSecret); err != nil {
		return err
	}
	if id == s.actor.IdentityID {
		s.mustRotate = false
	}

	s.record(ctx, "Changed secret of %s", id)
	return nil
}

// Search finds loans by asset tag, borrower id or issuer id.
func (s *Session) Search(ctx context.Context, filter string, scope ledger.Scope) ([]*store.Loan, error) {
	if err := s.require(ctx, policy.OpSearch); err != nil {
		return nil, err
	}
	return s.desk.ledger.Search(s.context(ctx), filter, scope)
}

// Loan returns one loan by id.
func (s *Session) Loan(ctx context.Context, id int64) (*store.Loan, error) {
	if err := s.require(ctx, policy.OpHistory); err != nil {
		return nil, err
	}
	return s.desk.ledger.Loan(s.context(ctx), id)
}

// History lists the loans of one asset, newest first.
func (s *Session) History(ctx context.Context, tag string) ([]*store.Loan, error) {
	if err := s.require(ctx, policy.OpHistory); err != nil {
		return nil, err
	}
	return s.desk.ledger.HistoryForAsset(s.context(ctx), tag)
}

// Overdue lists open loans past due.
func (s *Session) Overdue(ctx context.Context) ([]*store.Loan, error) {
	if err := s.require(ctx, policy.OpSearch); err != nil {
		return nil, err
	}
	return s.desk.ledger.ListOverdue(s.context(ctx))
}

// CountOverdue counts open loans past due.
func (s *Session) CountOverdue(ctx context.Context) (int, error) {
	if err := s.require(ctx, policy.OpSearch); err != nil {
		return 0, err
	}
	return s.desk.ledger.CountOpenOverdue(s.context(ctx))
}

// IsOverdue reports whether loan is overdue at the desk's clock.
func (s *Session) IsOverdue(loan *store.Loan) bool {
	return ledger.IsOverdue(loan, s.desk.now())
}

// Assets lists assets, all of them when status is nil.
func (s *Session) Assets(ctx context.Context, status *store.AssetStatus) ([]*store.Asset, error) {
	if err := s.require(ctx, policy.OpSearch); err != nil {
		return nil, err
	}
	ctx = s.context(ctx)
	if status == nil {
		return s.desk.registry.ListAll(ctx)
	}
	return s.desk.registry.ListByStatus(ctx, *status)
}

// Asset returns one asset.
func (s *Session) Asset(ctx context.Context, tag string) (*store.Asset, error) {
	if err := s.require(ctx, policy.OpSearch); err != nil {
		return nil, err
	}
	return s.desk.registry.Get(s.context(ctx), tag)
}

// Identities lists every identity.
func (s *Session) Identities(ctx context.Context) ([]*store.Identity, error) {
	if err := s.require(ctx, policy.OpViewIdentities); err != nil {
		return nil, err
	}
	return s.desk.identities.ListAll(s.context(ctx))
}

// Activity lists the most recent activity entries.
func (s *Session) Activity(ctx context.Context, limit int) ([]*store.ActivityRecord, error) {
	if err := s.require(ctx, policy.OpViewActivity); err != nil {
		return nil, err
	}
	return s.desk.activity.ListRecent(s.context(ctx), limit)
}

// Reconcile repairs asset statuses that disagree with open loans.
func (s *Session) Reconcile(ctx context.Context) ([]store.StatusRepair, error) {
	if err := s.require(ctx, policy.OpReconcile); err != nil {
		return nil, err
	}

	ctx = s.context(ctx)
	repairs, err := s.desk.ledger.Reconcile(ctx)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "Reconciled asset statuses (%d repaired)", len(repairs))
	return repairs, nil
}

// Export writes the loans matching filter and scope to w in format f.
// Returns the number of loans written.
func (s *Session) Export(ctx context.Context, w io.Writer, f report.Format, filter string, scope ledger.Scope) (int, error) {
	if err := s.require(ctx, policy.OpExport); err != nil {
		return 0, err
	}

	ctx = s.context(ctx)
	loans, err := s.desk.ledger.Search(ctx, filter, scope)
	if err != nil {
		return 0, err
	}
	if err := report.Write(w, f, loans); err != nil {
		return 0, fmt.Errorf("exporting loans: %w", err)
	}

	s.record(ctx, "Exported %d loans as %s", len(loans), f)
	return len(loans), nil
}
