// ABOUTME: Store interfaces and data types for lendtrack persistence
// ABOUTME: Defines Identity, Asset, Loan, ActivityRecord and the sentinel errors callers match on

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrStorage marks failures of the storage engine itself (I/O, driver,
// constraint errors that are not part of the domain). It is always joined
// with the underlying cause.
var ErrStorage = errors.New("storage failure")

// Domain errors raised by store operations. The *NotFound variants wrap
// ErrNotFound so callers may match either.
var (
	ErrDuplicateIdentity = errors.New("identity already exists")
	ErrDuplicateAsset    = errors.New("asset already exists")
	ErrAssetNotFound     = fmt.Errorf("asset %w", ErrNotFound)
	ErrIdentityNotFound  = fmt.Errorf("identity %w", ErrNotFound)
	ErrBorrowerNotFound  = fmt.Errorf("borrower %w", ErrNotFound)
	ErrLoanNotFound      = fmt.Errorf("loan %w", ErrNotFound)
	ErrAssetUnavailable  = errors.New("asset is not available")
	ErrNoOpenLoan        = errors.New("asset has no open loan")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// storageErr joins ErrStorage with the driver error so both errors.Is checks work.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Role is the permission class of an identity
type Role string

const (
	RoleBorrower      Role = "borrower"
	RoleStaff         Role = "staff"
	RoleAdministrator Role = "administrator"
)

// ValidRoles lists all valid roles
var ValidRoles = []Role{
	RoleBorrower,
	RoleStaff,
	RoleAdministrator,
}

// Valid reports whether r is one of ValidRoles.
func (r Role) Valid() bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// AssetStatus is the current condition of an asset
type AssetStatus string

const (
	StatusAvailable   AssetStatus = "available"
	StatusOnLoan      AssetStatus = "on_loan"
	StatusMaintenance AssetStatus = "maintenance"
	StatusDamaged     AssetStatus = "damaged"
)

// ValidAssetStatuses lists all valid asset statuses
var ValidAssetStatuses = []AssetStatus{
	StatusAvailable,
	StatusOnLoan,
	StatusMaintenance,
	StatusDamaged,
}

// Valid reports whether s is one of ValidAssetStatuses.
func (s AssetStatus) Valid() bool {
	for _, v := range ValidAssetStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Identity is a person known to the system
type Identity struct {
	ID               string // user-supplied, e.g. registration number
	DisplayName      string
	Role             Role
	CredentialDigest string // opaque output of the hashing capability
	CreatedAt        time.Time
}

// Asset is a loanable device tracked by its tag
type Asset struct {
	Tag       string
	Make      string
	Model     string
	Status    AssetStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Loan is one checkout-to-return cycle of an asset
type Loan struct {
	ID         int64
	AssetTag   string
	BorrowerID string
	IssuerID   string
	IssuedAt   time.Time
	DueAt      time.Time
	ReturnedAt *time.Time // nil while the loan is open
}

// IsOpen reports whether the loan has not been returned yet.
func (l *Loan) IsOpen() bool {
	return l.ReturnedAt == nil
}

// NewLoan carries the fields needed to open a loan
type NewLoan struct {
	AssetTag   string
	BorrowerID string
	IssuerID   string
	IssuedAt   time.Time
	DueAt      time.Time
}

// LoanFilter narrows ListLoans
type LoanFilter struct {
	OpenOnly bool
	AssetTag string // exact match, empty for all assets
}

// StatusRepair describes an asset whose stored status disagreed with the ledger
type StatusRepair struct {
	Tag  string
	From AssetStatus
	To   AssetStatus
}

// ActivityRecord is one append-only audit entry
type ActivityRecord struct {
	ID          int64
	ActorID     string
	Description string
	SessionID   string // empty when recorded outside a login session
	Timestamp   time.Time
}

// TransitionGuard decides whether an asset may move from one status to another.
// It runs inside the same transaction as the status write.
type TransitionGuard func(from, to AssetStatus) error

// IdentityStore defines persistence for identities
type IdentityStore interface {
	CreateIdentity(ctx context.Context, id *Identity) error
	GetIdentity(ctx context.Context, id string) (*Identity, error)
	UpdateIdentityProfile(ctx context.Context, id, displayName string, role Role) error
	UpdateIdentityCredential(ctx context.Context, id, digest string) error
	ListIdentities(ctx context.Context) ([]*Identity, error)
	CountIdentitiesByRole(ctx context.Context, role Role) (int, error)
}

// AssetStore defines persistence for assets
type AssetStore interface {
	CreateAsset(ctx context.Context, a *Asset) error
	GetAsset(ctx context.Context, tag string) (*Asset, error)
	ListAssets(ctx context.Context, status *AssetStatus) ([]*Asset, error)
	UpdateAssetDetails(ctx context.Context, tag, mk, model string) error
	SetAssetStatus(ctx context.Context, tag string, to AssetStatus, guard TransitionGuard) error
}

// LoanStore defines persistence for the loan ledger. OpenLoan and CloseLoan
// update the loans table and the asset status in one transaction.
type LoanStore interface {
	OpenLoan(ctx context.Context, nl NewLoan) (*Loan, error)
	CloseLoan(ctx context.Context, assetTag string, at time.Time) (*Loan, error)
	GetLoan(ctx context.Context, id int64) (*Loan, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]*Loan, error)
	ListLoansForAsset(ctx context.Context, assetTag string) ([]*Loan, error)
	ListOverdueLoans(ctx context.Context, now time.Time) ([]*Loan, error)
	CountOverdueLoans(ctx context.Context, now time.Time) (int, error)
	ReconcileAssetStatuses(ctx context.Context) ([]StatusRepair, error)
}

// ActivityStore defines persistence for the activity log
type ActivityStore interface {
	AppendActivity(ctx context.Context, rec *ActivityRecord) error
	ListActivity(ctx context.Context, limit int) ([]*ActivityRecord, error)
}

// Store is everything lendtrack persists
type Store interface {
	IdentityStore
	AssetStore
	LoanStore
	ActivityStore

	// Close releases any resources held by the store
	Close() error
}
