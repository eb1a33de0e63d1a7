// ABOUTME: Loan ledger: checkout, check-in, overdue detection and loan queries
// ABOUTME: Each checkout or check-in is one store transaction covering loan row and asset status

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/2389/lendtrack/internal/store"
)

// ErrInvalidDuration is returned for a non-positive or absurd loan length.
var ErrInvalidDuration = errors.New("invalid loan duration")

// MaxDurationDays bounds a single loan.
const MaxDurationDays = 3650

// Scope selects which loans Search considers
type Scope int

const (
	ScopeOpenOnly Scope = iota
	ScopeAll
)

func (s Scope) String() string {
	if s == ScopeAll {
		return "all"
	}
	return "open_only"
}

// CheckoutRequest carries one checkout
type CheckoutRequest struct {
	AssetTag     string
	BorrowerID   string
	IssuerID     string
	DurationDays int
}

// Ledger coordinates loans with asset status
type Ledger struct {
	store  store.LoanStore
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the ledger's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger.With("component", "ledger")
		}
	}
}

// New creates a Ledger over s.
func New(s store.LoanStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		now:    time.Now,
		logger: slog.Default().With("component", "ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the ledger's current time.
func (l *Ledger) Now() time.Time {
	return l.now()
}

// Checkout lends an asset to a borrower and returns the new loan id.
// DurationDays must be between 1 and MaxDurationDays.
//
// Errors, in the order they are checked: ErrInvalidDuration,
// store.ErrBorrowerNotFound, store.ErrAssetNotFound, store.ErrAssetUnavailable.
func (l *Ledger) Checkout(ctx context.Context, req CheckoutRequest) (int64, error) {
	if req.DurationDays <= 0 || req.DurationDays > MaxDurationDays {
		return 0, fmt.Errorf("%w: %d days", ErrInvalidDuration, req.DurationDays)
	}

	issued := l.now().UTC()
	loan, err := l.store.OpenLoan(ctx, store.NewLoan{
		AssetTag:   req.AssetTag,
		BorrowerID: req.BorrowerID,
		IssuerID:   req.IssuerID,
		IssuedAt:   issued,
		DueAt:      issued.Add(time.Duration(req.DurationDays) * 24 * time.Hour),
	})
	if err != nil {
		return 0, err
	}

	l.logger.Info("asset checked out",
		"loan_id", loan.ID,
		"asset", loan.AssetTag,
		"borrower", loan.BorrowerID,
		"issuer", loan.IssuerID,
	)
	return loan.ID, nil
}

// CheckIn closes the open loan of an asset and makes it available again.
// Returns store.ErrNoOpenLoan when the asset is not out.
func (l *Ledger) CheckIn(ctx context.Context, tag string) (*store.Loan, error) {
	loan, err := l.store.CloseLoan(ctx, tag, l.now())
	if err != nil {
		return nil, err
	}

	l.logger.Info("asset checked in", "loan_id", loan.ID, "asset", tag, "overdue", loan.ReturnedAt.After(loan.DueAt))
	return loan, nil
}

// IsOverdue reports whether loan is open and now is strictly after due_at.
func IsOverdue(loan *store.Loan, now time.Time) bool {
	return loan.IsOpen() && now.After(loan.DueAt)
}

// IsOverdue is the package IsOverdue at the ledger's clock.
func (l *Ledger) IsOverdue(loan *store.Loan) bool {
	return IsOverdue(loan, l.now())
}

// CountOpenOverdue counts open loans past due.
func (l *Ledger) CountOpenOverdue(ctx context.Context) (int, error) {
	return l.store.CountOverdueLoans(ctx, l.now())
}

// ListOverdue returns open loans past due, earliest due first.
func (l *Ledger) ListOverdue(ctx context.Context) ([]*store.Loan, error) {
	return l.store.ListOverdueLoans(ctx, l.now())
}

// Search returns loans in scope whose asset tag, borrower id or issuer id
// contains filter, compared with Unicode case folding. An empty filter
// matches everything in scope. Results are ordered by loan id.
func (l *Ledger) Search(ctx context.Context, filter string, scope Scope) ([]*store.Loan, error) {
	loans, err := l.store.ListLoans(ctx, store.LoanFilter{OpenOnly: scope == ScopeOpenOnly})
	if err != nil {
		return nil, err
	}

	if filter == "" {
		return loans, nil
	}

	fold := cases.Fold()
	needle := fold.String(filter)

	matched := []*store.Loan{}
	for _, loan := range loans {
		for _, field := range []string{loan.AssetTag, loan.BorrowerID, loan.IssuerID} {
			if strings.Contains(fold.String(field), needle) {
				matched = append(matched, loan)
				break
			}
		}
	}
	return matched, nil
}

// Loan returns one loan, or store.ErrLoanNotFound.
func (l *Ledger) Loan(ctx context.Context, id int64) (*store.Loan, error) {
	return l.store.GetLoan(ctx, id)
}

// HistoryForAsset returns every loan of tag, most recently issued first.
func (l *Ledger) HistoryForAsset(ctx context.Context, tag string) ([]*store.Loan, error) {
	return l.store.ListLoansForAsset(ctx, tag)
}

// Reconcile recomputes on_loan flags from open loans and reports each repair.
func (l *Ledger) Reconcile(ctx context.Context) ([]store.StatusRepair, error) {
	repairs, err := l.store.ReconcileAssetStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconciling asset statuses: %w", err)
	}
	if len(repairs) > 0 {
		l.logger.Warn("asset statuses disagreed with ledger", "repaired", len(repairs))
	}
	return repairs, nil
}
