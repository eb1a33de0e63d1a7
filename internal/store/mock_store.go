// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing. A single
// mutex makes every method atomic, standing in for SQLite transactions.
type MockStore struct {
	mu         sync.RWMutex
	identities map[string]*Identity // keyed by id
	assets     map[string]*Asset    // keyed by tag
	loans      []*Loan              // in loan_id order
	activity   []*ActivityRecord    // in append order
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		identities: make(map[string]*Identity),
		assets:     make(map[string]*Asset),
	}
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// CreateIdentity stores a new identity.
func (m *MockStore) CreateIdentity(ctx context.Context, id *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.identities[id.ID]; ok {
		return ErrDuplicateIdentity
	}
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}

	// Make a copy to avoid external modification
	c := *id
	m.identities[c.ID] = &c
	return nil
}

// GetIdentity retrieves an identity by id.
func (m *MockStore) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ident, ok := m.identities[id]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	c := *ident
	return &c, nil
}

// UpdateIdentityProfile changes display name and role.
func (m *MockStore) UpdateIdentityProfile(ctx context.Context, id, displayName string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ident, ok := m.identities[id]
	if !ok {
		return ErrIdentityNotFound
	}
	ident.DisplayName = displayName
	ident.Role = role
	return nil
}

// UpdateIdentityCredential replaces the credential digest.
func (m *MockStore) UpdateIdentityCredential(ctx context.Context, id, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ident, ok := m.identities[id]
	if !ok {
		return ErrIdentityNotFound
	}
	ident.CredentialDigest = digest
	return nil
}

// ListIdentities returns all identities ordered by id.
func (m *MockStore) ListIdentities(ctx context.Context) ([]*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Identity, 0, len(m.identities))
	for _, ident := range m.identities {
		c := *ident
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// CountIdentitiesByRole counts identities holding role.
func (m *MockStore) CountIdentitiesByRole(ctx context.Context, role Role) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, ident := range m.identities {
		if ident.Role == role {
			n++
		}
	}
	return n, nil
}

// CreateAsset stores a new asset, defaulting Status to available.
func (m *MockStore) CreateAsset(ctx context.Context, a *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.assets[a.Tag]; ok {
		return ErrDuplicateAsset
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.CreatedAt
	if a.Status == "" {
		a.Status = StatusAvailable
	}

	c := *a
	m.assets[c.Tag] = &c
	return nil
}

// GetAsset retrieves an asset by tag.
func (m *MockStore) GetAsset(ctx context.Context, tag string) (*Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[tag]
	if !ok {
		return nil, ErrAssetNotFound
	}
	c := *a
	return &c, nil
}

// ListAssets returns assets ordered by tag, optionally only those in status.
func (m *MockStore) ListAssets(ctx context.Context, status *AssetStatus) ([]*Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Asset{}
	for _, a := range m.assets {
		if status != nil && a.Status != *status {
			continue
		}
		c := *a
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Tag < result[j].Tag })
	return result, nil
}

// UpdateAssetDetails changes make and model.
func (m *MockStore) UpdateAssetDetails(ctx context.Context, tag, mk, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assets[tag]
	if !ok {
		return ErrAssetNotFound
	}
	a.Make = mk
	a.Model = model
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// SetAssetStatus runs guard against the current status, then writes.
func (m *MockStore) SetAssetStatus(ctx context.Context, tag string, to AssetStatus, guard TransitionGuard) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assets[tag]
	if !ok {
		return ErrAssetNotFound
	}
	if guard != nil {
		if err := guard(a.Status, to); err != nil {
			return err
		}
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// OpenLoan checks borrower, asset and availability in the same order as
// SQLiteStore, then records the loan and marks the asset on_loan.
func (m *MockStore) OpenLoan(ctx context.Context, nl NewLoan) (*Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.identities[nl.BorrowerID]; !ok {
		return nil, ErrBorrowerNotFound
	}
	a, ok := m.assets[nl.AssetTag]
	if !ok {
		return nil, ErrAssetNotFound
	}
	if a.Status != StatusAvailable || m.openLoan(nl.AssetTag) != nil {
		return nil, ErrAssetUnavailable
	}

	loan := &Loan{
		ID:         int64(len(m.loans) + 1),
		AssetTag:   nl.AssetTag,
		BorrowerID: nl.BorrowerID,
		IssuerID:   nl.IssuerID,
		IssuedAt:   nl.IssuedAt.UTC(),
		DueAt:      nl.DueAt.UTC(),
	}
	m.loans = append(m.loans, loan)
	a.Status = StatusOnLoan
	a.UpdatedAt = loan.IssuedAt

	return copyLoan(loan), nil
}

// CloseLoan returns the open loan of assetTag, clamping at to the issue time.
func (m *MockStore) CloseLoan(ctx context.Context, assetTag string, at time.Time) (*Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loan := m.openLoan(assetTag)
	if loan == nil {
		return nil, ErrNoOpenLoan
	}
	a, ok := m.assets[assetTag]
	if !ok {
		return nil, ErrAssetNotFound
	}

	returned := at.UTC()
	if returned.Before(loan.IssuedAt) {
		returned = loan.IssuedAt
	}
	loan.ReturnedAt = &returned
	a.Status = StatusAvailable
	a.UpdatedAt = time.Now().UTC()

	return copyLoan(loan), nil
}

// GetLoan retrieves a loan by id.
func (m *MockStore) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id < 1 || id > int64(len(m.loans)) {
		return nil, ErrLoanNotFound
	}
	return copyLoan(m.loans[id-1]), nil
}

// ListLoans returns loans matching filter ordered by loan id.
func (m *MockStore) ListLoans(ctx context.Context, filter LoanFilter) ([]*Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Loan{}
	for _, l := range m.loans {
		if filter.OpenOnly && !l.IsOpen() {
			continue
		}
		if filter.AssetTag != "" && l.AssetTag != filter.AssetTag {
			continue
		}
		result = append(result, copyLoan(l))
	}
	return result, nil
}

// ListLoansForAsset returns an asset's loans, most recently issued first.
func (m *MockStore) ListLoansForAsset(ctx context.Context, assetTag string) ([]*Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Loan{}
	for _, l := range m.loans {
		if l.AssetTag == assetTag {
			result = append(result, copyLoan(l))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].IssuedAt.Equal(result[j].IssuedAt) {
			return result[i].IssuedAt.After(result[j].IssuedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// ListOverdueLoans returns open loans due strictly before now, earliest due first.
func (m *MockStore) ListOverdueLoans(ctx context.Context, now time.Time) ([]*Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Loan{}
	for _, l := range m.loans {
		if l.IsOpen() && l.DueAt.Before(now) {
			result = append(result, copyLoan(l))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].DueAt.Equal(result[j].DueAt) {
			return result[i].DueAt.Before(result[j].DueAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// CountOverdueLoans counts open loans due strictly before now.
func (m *MockStore) CountOverdueLoans(ctx context.Context, now time.Time) (int, error) {
	loans, err := m.ListOverdueLoans(ctx, now)
	if err != nil {
		return 0, err
	}
	return len(loans), nil
}

// ReconcileAssetStatuses realigns on_loan flags with the open loans.
func (m *MockStore) ReconcileAssetStatuses(ctx context.Context) ([]StatusRepair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tags := make([]string, 0, len(m.assets))
	for tag := range m.assets {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	repairs := []StatusRepair{}
	for _, tag := range tags {
		a := m.assets[tag]
		open := m.openLoan(tag) != nil
		switch {
		case open && a.Status != StatusOnLoan:
			repairs = append(repairs, StatusRepair{Tag: tag, From: a.Status, To: StatusOnLoan})
			a.Status = StatusOnLoan
		case !open && a.Status == StatusOnLoan:
			repairs = append(repairs, StatusRepair{Tag: tag, From: a.Status, To: StatusAvailable})
			a.Status = StatusAvailable
		}
	}
	return repairs, nil
}

// AppendActivity appends an entry, assigning its id.
func (m *MockStore) AppendActivity(ctx context.Context, rec *ActivityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.ID = int64(len(m.activity) + 1)

	c := *rec
	m.activity = append(m.activity, &c)
	return nil
}

// ListActivity returns the newest entries first, with the same limit rules
// as SQLiteStore.
func (m *MockStore) ListActivity(ctx context.Context, limit int) ([]*ActivityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*ActivityRecord, 0, len(m.activity))
	for _, rec := range m.activity {
		c := *rec
		result = append(result, &c)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID > result[j].ID
	})

	if n := normalizeActivityLimit(limit); len(result) > n {
		result = result[:n]
	}
	return result, nil
}

// corruptAssetStatus overwrites a status without any checks so tests can
// simulate a ledger/registry mismatch.
func (m *MockStore) corruptAssetStatus(tag string, status AssetStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assets[tag]; ok {
		a.Status = status
	}
}

// openLoan must be called with mu held.
func (m *MockStore) openLoan(tag string) *Loan {
	for _, l := range m.loans {
		if l.AssetTag == tag && l.IsOpen() {
			return l
		}
	}
	return nil
}

func copyLoan(l *Loan) *Loan {
	c := *l
	if l.ReturnedAt != nil {
		t := *l.ReturnedAt
		c.ReturnedAt = &t
	}
	return &c
}

var _ Store = (*MockStore)(nil)
