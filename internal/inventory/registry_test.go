// ABOUTME: Tests for the asset registry and its transition rule
// ABOUTME: Runs against a temp-dir SQLite store

package inventory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/lendtrack/internal/store"
)

func setupRegistry(t *testing.T) (*Registry, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewRegistry(s, nil), s
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to store.AssetStatus
		wantErr  error
	}{
		{store.StatusAvailable, store.StatusMaintenance, nil},
		{store.StatusAvailable, store.StatusDamaged, nil},
		{store.StatusMaintenance, store.StatusAvailable, nil},
		{store.StatusDamaged, store.StatusMaintenance, nil},
		{store.StatusAvailable, store.StatusAvailable, nil},
		{store.StatusOnLoan, store.StatusOnLoan, nil},
		{store.StatusOnLoan, store.StatusMaintenance, store.ErrInvalidTransition},
		{store.StatusOnLoan, store.StatusDamaged, store.ErrInvalidTransition},
		{store.StatusOnLoan, store.StatusAvailable, store.ErrInvalidTransition},
		{store.StatusAvailable, store.StatusOnLoan, store.ErrInvalidTransition},
		{store.StatusAvailable, store.AssetStatus("lost"), ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CheckTransition(tt.from, tt.to)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegister(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, " NB-01 ", "Lenovo", "T14"))

	a, err := r.Get(ctx, "NB-01")
	require.NoError(t, err)
	assert.Equal(t, store.StatusAvailable, a.Status)
	assert.Equal(t, "Lenovo", a.Make)
	assert.Equal(t, "T14", a.Model)

	assert.ErrorIs(t, r.Register(ctx, "NB-01", "Dell", "X"), store.ErrDuplicateAsset)
	assert.ErrorIs(t, r.Register(ctx, "", "Dell", "X"), ErrInvalidInput)
}

func TestGet_Missing(t *testing.T) {
	r, _ := setupRegistry(t)

	_, err := r.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, "NB-01", "Lenovo", "T14"))

	require.NoError(t, r.SetStatus(ctx, "NB-01", store.StatusMaintenance))
	a, err := r.Get(ctx, "NB-01")
	require.NoError(t, err)
	assert.Equal(t, store.StatusMaintenance, a.Status)

	assert.ErrorIs(t, r.SetStatus(ctx, "missing", store.StatusDamaged), store.ErrNotFound)
	assert.ErrorIs(t, r.SetStatus(ctx, "NB-01", "lost"), ErrInvalidInput)
}

func TestSetStatus_RefusedWhileOnLoan(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, "NB-01", "Lenovo", "T14"))
	require.NoError(t, s.CreateIdentity(ctx, &store.Identity{ID: "S100", DisplayName: "S", Role: store.RoleBorrower, CredentialDigest: "x"}))

	now := time.Now()
	_, err := s.OpenLoan(ctx, store.NewLoan{
		AssetTag: "NB-01", BorrowerID: "S100", IssuerID: "S100",
		IssuedAt: now, DueAt: now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	err = r.SetStatus(ctx, "NB-01", store.StatusDamaged)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	a, err := r.Get(ctx, "NB-01")
	require.NoError(t, err)
	assert.Equal(t, store.StatusOnLoan, a.Status, "refused transition must not write")

	_, err = s.CloseLoan(ctx, "NB-01", time.Now())
	require.NoError(t, err)
	assert.NoError(t, r.SetStatus(ctx, "NB-01", store.StatusDamaged))
}

func TestUpdateDetails(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, "NB-01", "Lenovo", "T14"))
	require.NoError(t, r.SetStatus(ctx, "NB-01", store.StatusDamaged))

	require.NoError(t, r.UpdateDetails(ctx, "NB-01", "Dell", "Latitude"))

	a, err := r.Get(ctx, "NB-01")
	require.NoError(t, err)
	assert.Equal(t, "Dell", a.Make)
	assert.Equal(t, "Latitude", a.Model)
	assert.Equal(t, store.StatusDamaged, a.Status)

	assert.ErrorIs(t, r.UpdateDetails(ctx, "missing", "a", "b"), store.ErrNotFound)
}

func TestListAllAndByStatus(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()
	for _, tag := range []string{"NB-03", "NB-01", "NB-02"} {
		require.NoError(t, r.Register(ctx, tag, "Lenovo", "T14"))
	}
	require.NoError(t, r.SetStatus(ctx, "NB-02", store.StatusMaintenance))

	all, err := r.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "NB-01", all[0].Tag)
	assert.Equal(t, "NB-03", all[2].Tag)

	avail, err := r.ListByStatus(ctx, store.StatusAvailable)
	require.NoError(t, err)
	require.Len(t, avail, 2)
	assert.Equal(t, "NB-01", avail[0].Tag)
	assert.Equal(t, "NB-03", avail[1].Tag)

	_, err = r.ListByStatus(ctx, "lost")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
