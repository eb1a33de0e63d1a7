// ABOUTME: Tests for SQLite store setup, identities and assets
// ABOUTME: Uses a temp-dir database per test via setupTestStore

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// seedIdentity creates an identity with a throwaway digest.
func seedIdentity(t *testing.T, s *SQLiteStore, id string, role Role) {
	t.Helper()
	require.NoError(t, s.CreateIdentity(context.Background(), &Identity{
		ID:               id,
		DisplayName:      "Person " + id,
		Role:             role,
		CredentialDigest: "digest-" + id,
	}))
}

// seedAsset creates an available asset.
func seedAsset(t *testing.T, s *SQLiteStore, tag string) {
	t.Helper()
	require.NoError(t, s.CreateAsset(context.Background(), &Asset{
		Tag:   tag,
		Make:  "Lenovo",
		Model: "T14",
	}))
}

func TestNewSQLiteStore_UnknownDriver(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"), WithDriver("postgres"))
	assert.Error(t, err)
}

func TestNewSQLiteStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	s1, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	seedIdentity(t, s1, "S100", RoleBorrower)
	require.NoError(t, s1.Close())

	// Schema creation and migrations are idempotent
	s2, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetIdentity(context.Background(), "S100")
	require.NoError(t, err)
	assert.Equal(t, RoleBorrower, got.Role)
}

func TestTimeFormat_IsFixedWidthAndOrdered(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := formatTime(base)
	b := formatTime(base.Add(time.Microsecond))

	assert.Len(t, a, len(b))
	assert.Less(t, a, b)

	parsed, err := parseTime(b)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(base.Add(time.Microsecond)))
}

func TestStore_CreateIdentity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id := &Identity{
		ID:               "S100",
		DisplayName:      "Ana",
		Role:             RoleBorrower,
		CredentialDigest: "digest",
	}
	require.NoError(t, s.CreateIdentity(ctx, id))
	assert.False(t, id.CreatedAt.IsZero())

	got, err := s.GetIdentity(ctx, "S100")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.DisplayName)
	assert.Equal(t, RoleBorrower, got.Role)
	assert.Equal(t, "digest", got.CredentialDigest)
}

func TestStore_CreateIdentity_Duplicate(t *testing.T) {
	s := setupTestStore(t)
	seedIdentity(t, s, "S100", RoleBorrower)

	err := s.CreateIdentity(context.Background(), &Identity{
		ID:               "S100",
		DisplayName:      "Other",
		Role:             RoleStaff,
		CredentialDigest: "x",
	})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
}

func TestStore_CreateIdentity_InvalidRoleIsStorageError(t *testing.T) {
	s := setupTestStore(t)

	err := s.CreateIdentity(context.Background(), &Identity{
		ID:               "S100",
		DisplayName:      "Ana",
		Role:             Role("aluno"),
		CredentialDigest: "x",
	})
	assert.ErrorIs(t, err, ErrStorage)
}

func TestStore_GetIdentity_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetIdentity(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateIdentityProfile(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedIdentity(t, s, "S100", RoleBorrower)

	require.NoError(t, s.UpdateIdentityProfile(ctx, "S100", "Ana Maria", RoleStaff))

	got, err := s.GetIdentity(ctx, "S100")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", got.DisplayName)
	assert.Equal(t, RoleStaff, got.Role)

	err = s.UpdateIdentityProfile(ctx, "nobody", "x", RoleStaff)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateIdentityCredential(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedIdentity(t, s, "S100", RoleBorrower)

	require.NoError(t, s.UpdateIdentityCredential(ctx, "S100", "new-digest"))

	got, err := s.GetIdentity(ctx, "S100")
	require.NoError(t, err)
	assert.Equal(t, "new-digest", got.CredentialDigest)

	err = s.UpdateIdentityCredential(ctx, "nobody", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListIdentities_OrderedByID(t *testing.T) {
	s := setupTestStore(t)
	seedIdentity(t, s, "S300", RoleBorrower)
	seedIdentity(t, s, "ADM", RoleAdministrator)
	seedIdentity(t, s, "S100", RoleStaff)

	list, err := s.ListIdentities(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "ADM", list[0].ID)
	assert.Equal(t, "S100", list[1].ID)
	assert.Equal(t, "S300", list[2].ID)
}

func TestStore_CountIdentitiesByRole(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	n, err := s.CountIdentitiesByRole(ctx, RoleAdministrator)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	seedIdentity(t, s, "ADM", RoleAdministrator)
	seedIdentity(t, s, "S100", RoleBorrower)

	n, err = s.CountIdentitiesByRole(ctx, RoleAdministrator)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_CreateAsset_DefaultsAvailable(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedAsset(t, s, "NB-01")

	got, err := s.GetAsset(ctx, "NB-01")
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, got.Status)
	assert.Equal(t, "Lenovo", got.Make)
	assert.Equal(t, "T14", got.Model)
}

func TestStore_CreateAsset_Duplicate(t *testing.T) {
	s := setupTestStore(t)
	seedAsset(t, s, "NB-01")

	err := s.CreateAsset(context.Background(), &Asset{Tag: "NB-01", Make: "Dell", Model: "XPS"})
	assert.ErrorIs(t, err, ErrDuplicateAsset)
}

func TestStore_GetAsset_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetAsset(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAssetNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListAssets_FilterByStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedAsset(t, s, "NB-02")
	seedAsset(t, s, "NB-01")
	seedAsset(t, s, "NB-03")
	require.NoError(t, s.SetAssetStatus(ctx, "NB-02", StatusMaintenance, nil))

	all, err := s.ListAssets(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "NB-01", all[0].Tag)

	available := StatusAvailable
	list, err := s.ListAssets(ctx, &available)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "NB-01", list[0].Tag)
	assert.Equal(t, "NB-03", list[1].Tag)
}

func TestStore_UpdateAssetDetails(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedAsset(t, s, "NB-01")

	require.NoError(t, s.UpdateAssetDetails(ctx, "NB-01", "Dell", "Latitude"))

	got, err := s.GetAsset(ctx, "NB-01")
	require.NoError(t, err)
	assert.Equal(t, "Dell", got.Make)
	assert.Equal(t, "Latitude", got.Model)
	assert.Equal(t, StatusAvailable, got.Status)

	assert.ErrorIs(t, s.UpdateAssetDetails(ctx, "missing", "a", "b"), ErrAssetNotFound)
}

func TestStore_SetAssetStatus_GuardSeesCurrentStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedAsset(t, s, "NB-01")

	var seenFrom, seenTo AssetStatus
	err := s.SetAssetStatus(ctx, "NB-01", StatusDamaged, func(from, to AssetStatus) error {
		seenFrom, seenTo = from, to
		return ErrInvalidTransition
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusAvailable, seenFrom)
	assert.Equal(t, StatusDamaged, seenTo)

	// Vetoed write leaves status untouched
	got, err := s.GetAsset(ctx, "NB-01")
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, got.Status)
}

func TestStore_SetAssetStatus_NotFound(t *testing.T) {
	s := setupTestStore(t)

	err := s.SetAssetStatus(context.Background(), "missing", StatusDamaged, nil)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestRole_Valid(t *testing.T) {
	for _, r := range ValidRoles {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("adm").Valid())
	assert.False(t, Role("").Valid())
}

func TestAssetStatus_Valid(t *testing.T) {
	for _, st := range ValidAssetStatuses {
		assert.True(t, st.Valid(), st)
	}
	assert.False(t, AssetStatus("Disponível").Valid())
}
