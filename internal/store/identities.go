// ABOUTME: Identity store methods for borrowers, staff and administrators
// ABOUTME: Enforces the unique identifier and keeps credential digests opaque

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateIdentity inserts a new identity. Returns ErrDuplicateIdentity if the
// id is already taken. CreatedAt is set to now when zero.
func (s *SQLiteStore) CreateIdentity(ctx context.Context, id *Identity) error {
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO identities (id, display_name, role, credential_digest, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		id.ID,
		id.DisplayName,
		string(id.Role),
		id.CredentialDigest,
		formatTime(id.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdentity
		}
		return storageErr("inserting identity", err)
	}

	s.logger.Debug("created identity", "id", id.ID, "role", id.Role)
	return nil
}

// GetIdentity retrieves an identity by id.
// Returns ErrIdentityNotFound if it doesn't exist.
func (s *SQLiteStore) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	query := `
		SELECT id, display_name, role, credential_digest, created_at
		FROM identities
		WHERE id = ?
	`

	ident, err := scanIdentity(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		return nil, storageErr("querying identity", err)
	}
	return ident, nil
}

// UpdateIdentityProfile changes the display name and role of an identity.
// Returns ErrIdentityNotFound if it doesn't exist.
func (s *SQLiteStore) UpdateIdentityProfile(ctx context.Context, id, displayName string, role Role) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE identities SET display_name = ?, role = ? WHERE id = ?`,
		displayName, string(role), id,
	)
	if err != nil {
		return storageErr("updating identity", err)
	}
	if err := requireOneRow(result, ErrIdentityNotFound); err != nil {
		return err
	}

	s.logger.Debug("updated identity", "id", id, "role", role)
	return nil
}

// UpdateIdentityCredential replaces the stored credential digest.
// Returns ErrIdentityNotFound if it doesn't exist.
func (s *SQLiteStore) UpdateIdentityCredential(ctx context.Context, id, digest string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE identities SET credential_digest = ? WHERE id = ?`,
		digest, id,
	)
	if err != nil {
		return storageErr("updating credential", err)
	}
	if err := requireOneRow(result, ErrIdentityNotFound); err != nil {
		return err
	}

	s.logger.Debug("updated credential", "id", id)
	return nil
}

// ListIdentities returns all identities ordered by id.
func (s *SQLiteStore) ListIdentities(ctx context.Context) ([]*Identity, error) {
	query := `
		SELECT id, display_name, role, credential_digest, created_at
		FROM identities
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("querying identities", err)
	}
	defer rows.Close()

	identities := []*Identity{}
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, storageErr("scanning identity", err)
		}
		identities = append(identities, ident)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating identities", err)
	}
	return identities, nil
}

// CountIdentitiesByRole returns how many identities hold the given role.
func (s *SQLiteStore) CountIdentitiesByRole(ctx context.Context, role Role) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM identities WHERE role = ?`, string(role),
	).Scan(&count)
	if err != nil {
		return 0, storageErr("counting identities", err)
	}
	return count, nil
}

func scanIdentity(row rowScanner) (*Identity, error) {
	var ident Identity
	var role, createdAt string
	if err := row.Scan(&ident.ID, &ident.DisplayName, &role, &ident.CredentialDigest, &createdAt); err != nil {
		return nil, err
	}
	ident.Role = Role(role)

	var err error
	ident.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &ident, nil
}

// requireOneRow maps "no rows affected" to notFound.
func requireOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return storageErr("getting rows affected", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
